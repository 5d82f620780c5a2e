// Package main is the entry point for the sql-sandbox service.
//
// The binary serves the learner HTTP API (serve), an MCP server over stdio or
// HTTP (mcp), runs a single query from the terminal (run) and loads the
// assignment catalog and sample tables (seed).
package main

func main() {
	Execute()
}
