package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"sql-sandbox/configs"
	"sql-sandbox/internal/assignment"
	"sql-sandbox/internal/classifier"
	"sql-sandbox/internal/sandbox"
	"sql-sandbox/internal/sqlproxy"
	"sql-sandbox/pkg/db"
	"sql-sandbox/pkg/logger"
)

var (
	runSchema     string
	runAssignment string
	runJSON       bool
)

var runCmd = &cobra.Command{
	Use:   "run [query]",
	Short: "Run one query in the sandbox and print the result",
	Long: `Runs a single statement through the same checks as the HTTP API. The
query is read from the argument, or from stdin when the argument is "-".`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := args[0]
		if text == "-" {
			raw, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
			text = string(raw)
		}
		return runQuery(cmd.Context(), text)
	},
}

func init() {
	runCmd.Flags().StringVar(&runSchema, "schema", "", "schema context to run against")
	runCmd.Flags().StringVar(&runAssignment, "assignment", "", "take the schema context from this assignment")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the API response body instead of a table")
}

func runQuery(ctx context.Context, text string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	conf, err := configs.LoadConfig()
	if err != nil {
		return err
	}
	log, err := logger.NewFromConfig(conf)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	conn, err := db.NewConnection(ctx, conf.Sandbox.DbConfig)
	if err != nil {
		return fmt.Errorf("sandbox database: %w", err)
	}
	defer conn.Close()

	sb, err := sandbox.New(conn, log, conf.Sandbox.CountLimit)
	if err != nil {
		return err
	}

	var catalog sqlproxy.SchemaLookup
	if runAssignment != "" {
		catConn, err := db.NewConnection(ctx, conf.Catalog)
		if err != nil {
			return fmt.Errorf("catalog database: %w", err)
		}
		defer catConn.Close()
		catalog = assignment.NewService(assignment.NewRepository(catConn), nil, 0, log)
	}

	svc := sqlproxy.NewService(classifier.New(conf.Sandbox.ForbiddenKeywords...), sb, catalog, conf.Sandbox, log)
	result, err := svc.Run(ctx, sqlproxy.Query{Text: text, SchemaContext: runSchema, AssignmentID: runAssignment})
	if err != nil {
		var qerr *sqlproxy.Error
		if !errors.As(err, &qerr) {
			return err
		}
		if runJSON {
			return printJSON(sqlproxy.NewErrorResponse(qerr))
		}
		pterm.Error.Printfln("%s (%s)", qerr.Reason, qerr.Kind)
		return fmt.Errorf("query rejected: %s", qerr.Code)
	}

	if runJSON {
		return printJSON(sqlproxy.NewQueryResponse(result))
	}
	printTable(result)
	return nil
}

func printTable(result *sqlproxy.Result) {
	if len(result.Columns) > 0 {
		data := pterm.TableData{result.Columns}
		for _, rec := range result.Records {
			row := make([]string, len(rec.Cells))
			for i, cell := range rec.Cells {
				row[i] = cell.String()
			}
			data = append(data, row)
		}
		_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	}

	pterm.Info.Printfln("%d row(s) in %s", len(result.Records), result.Duration.Round(100*time.Microsecond))
	if result.Truncated {
		total := "more than " + fmt.Sprint(result.TotalRows)
		if result.TotalExact {
			total = fmt.Sprint(result.TotalRows)
		}
		pterm.Warning.Printfln("result truncated: showing %d of %s rows", len(result.Records), total)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
