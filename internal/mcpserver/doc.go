// Package mcpserver exposes the sandbox to Model Context Protocol clients.
//
// Three tools are registered on a mark3labs/mcp-go server:
//
//   - execute_sql runs one learner query through the same classifier, sandbox
//     and normalizer pipeline as POST /api/sql/execute and returns the same
//     JSON body.
//   - get_hint asks the hint service for a nudge on a query attempt.
//   - list_assignments returns the assignment catalog, optionally filtered by
//     difficulty.
//
// Tool failures the caller can act on (a rejected query, an engine error, a
// timeout) are reported as error results, not protocol errors.
//
// Usage:
//
//	srv := mcpserver.New(conf, logger, queries, hints, catalog)
//	err := srv.ServeStdio() // or srv.ServeHTTP()
package mcpserver
