// Package fixtures loads the sample tables into the sandbox database. It is
// an operator path: statements are committed and never come from learners.
package fixtures

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"sql-sandbox/internal/classifier"
	"sql-sandbox/pkg/db"
)

// Load runs every statement of script in one transaction and returns how
// many ran. Engines without transactional DDL may keep earlier tables if a
// later statement fails.
func Load(ctx context.Context, conn *db.Db, script string, log *zap.Logger) (int, error) {
	stmts := classifier.Split(script)
	if len(stmts) == 0 {
		return 0, fmt.Errorf("fixture script has no statements")
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	for i, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return 0, fmt.Errorf("fixture statement %d: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	log.Info("fixtures loaded", zap.Int("statements", len(stmts)), zap.String("dialect", string(conn.Dialect)))
	return len(stmts), nil
}

func LoadFile(ctx context.Context, conn *db.Db, path string, log *zap.Logger) (int, error) {
	script, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return Load(ctx, conn, string(script), log)
}
