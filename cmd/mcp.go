package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"sql-sandbox/configs"
	"sql-sandbox/internal/assignment"
	"sql-sandbox/internal/hint"
	"sql-sandbox/internal/mcpserver"
	"sql-sandbox/internal/sqlproxy"
)

var mcpTransport string

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the sandbox tools over the Model Context Protocol",
	Long:  `Exposes execute_sql, get_hint and list_assignments as MCP tools. The transport defaults to mcp.transport from the configuration.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := fx.New(
			coreModule,
			fx.Decorate(func(conf *configs.Config) *configs.Config {
				if mcpTransport != "" {
					conf.MCP.Transport = mcpTransport
				}
				return conf
			}),
			fx.Provide(newMCPServer),
			fx.Invoke(startMCPServer),
		)
		return runApp(app)
	},
}

func init() {
	mcpCmd.Flags().StringVar(&mcpTransport, "transport", "", "transport to serve: stdio or http")
}

func newMCPServer(conf *configs.Config, log *zap.Logger, queries *sqlproxy.Service, hints *hint.Service, catalog *assignment.Service) *mcpserver.MCPServer {
	return mcpserver.New(conf, log, queries, hints, catalog)
}

func startMCPServer(lc fx.Lifecycle, shutdowner fx.Shutdowner, conf *configs.Config, log *zap.Logger, srv *mcpserver.MCPServer) error {
	transport := conf.MCP.Transport
	if transport != "stdio" && transport != "http" {
		return fmt.Errorf("invalid transport: %s, must be 'stdio' or 'http'", transport)
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				var err error
				if transport == "http" {
					err = srv.ServeHTTP()
				} else {
					err = srv.ServeStdio()
				}
				code := 0
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("mcp server stopped", zap.String("transport", transport), zap.Error(err))
					code = 1
				}
				_ = shutdowner.Shutdown(fx.ExitCode(code))
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
	return nil
}
