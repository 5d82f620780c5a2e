package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"sql-sandbox/configs"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the query, assignment and hint HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := fx.New(
			coreModule,
			fx.Provide(App, newHTTPServer),
			fx.Invoke(func(*http.Server) {}),
		)
		return runApp(app)
	},
}

func newHTTPServer(lc fx.Lifecycle, shutdowner fx.Shutdowner, conf *configs.Config, log *zap.Logger, handler http.Handler) *http.Server {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", conf.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			log.Info("server is listening", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down http server")
			return srv.Shutdown(ctx)
		},
	})
	return srv
}
