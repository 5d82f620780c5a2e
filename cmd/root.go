package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:           "sql-sandbox",
	Short:         "Run learner SQL against sample tables without side effects",
	Long:          `sql-sandbox executes single read-only SQL statements inside a rolled-back transaction with a time budget and row cap, and serves the assignment catalog and hint endpoints around it.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI application.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd, mcpCmd, runCmd, seedCmd)
}
