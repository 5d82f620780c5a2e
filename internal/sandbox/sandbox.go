// Package sandbox runs classified-safe SQL inside a throwaway transaction.
//
// Every execution checks a connection out of the pool for itself, opens a
// transaction (read-only where the driver allows it), applies the time budget
// both as a context deadline and, where the engine supports it, as a server
// side statement timeout, streams at most rowCap rows, and rolls the
// transaction back on every exit path. Nothing is ever committed.
package sandbox

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"time"

	"go.uber.org/zap"

	"sql-sandbox/internal/normalize"
	"sql-sandbox/pkg/db"
	"sql-sandbox/pkg/metrics"
)

// Executor is the contract the orchestrator depends on.
type Executor interface {
	Execute(ctx context.Context, allowedText, schemaContext string, budget time.Duration, rowCap int) Outcome
}

type Sandbox struct {
	db         *db.Db
	rules      rules
	countLimit int
	log        *zap.Logger
}

// New binds a sandbox to a pool. countLimit bounds how far past the row cap
// the sandbox keeps counting to report a total.
func New(conn *db.Db, log *zap.Logger, countLimit int) (*Sandbox, error) {
	r, err := rulesFor(conn.Dialect)
	if err != nil {
		return nil, err
	}
	return &Sandbox{db: conn, rules: r, countLimit: countLimit, log: log}, nil
}

// Execute runs allowedText, which must already have been classified as safe.
// It always returns exactly one outcome and never panics on engine failures.
func (s *Sandbox) Execute(ctx context.Context, allowedText, schemaContext string, budget time.Duration, rowCap int) Outcome {
	start := time.Now()
	out := s.execute(ctx, allowedText, schemaContext, budget, rowCap)
	out.Duration = time.Since(start)

	metrics.SandboxOutcomes.WithLabelValues(out.Kind.String()).Inc()
	metrics.SandboxDuration.Observe(out.Duration.Seconds())

	fields := []zap.Field{
		zap.String("outcome", out.Kind.String()),
		zap.String("schema", schemaContext),
		zap.Duration("duration", out.Duration),
		zap.Int("rows", len(out.Rows.Values)),
	}
	if out.Err != nil {
		fields = append(fields, zap.String("code", out.Err.Code))
	}
	s.log.Debug("sandbox execution finished", fields...)
	return out
}

func (s *Sandbox) execute(ctx context.Context, text, schema string, budget time.Duration, rowCap int) Outcome {
	sessCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	sess, err := s.open(sessCtx, schema, budget)
	if err != nil {
		return s.failure(sessCtx, err, true)
	}
	defer sess.close()

	rows, err := sess.tx.QueryContext(sessCtx, text)
	if err != nil {
		return s.failure(sessCtx, err, false)
	}
	defer rows.Close()

	native, more, err := scan(rows, rowCap)
	if err != nil {
		return s.failure(sessCtx, err, false)
	}
	if !more {
		return Outcome{Kind: OutcomeRows, Rows: native}
	}

	total, exact := countRest(rows, rowCap+1, s.countLimit)
	return Outcome{
		Kind:       OutcomeRowLimitExceeded,
		Rows:       native,
		TotalRows:  total,
		TotalExact: exact,
	}
}

// failure maps err to an outcome. The session context decides first: a
// passed deadline is a timeout whatever the driver reported.
func (s *Sandbox) failure(sessCtx context.Context, err error, opening bool) Outcome {
	switch {
	case errors.Is(sessCtx.Err(), context.DeadlineExceeded):
		return Outcome{Kind: OutcomeTimeout}
	case errors.Is(sessCtx.Err(), context.Canceled):
		return Outcome{Kind: OutcomeEngineError, Err: &EngineError{Code: CodeCancelled, Message: "query was cancelled"}}
	case s.rules.isTimeout(err):
		return Outcome{Kind: OutcomeTimeout}
	case opening:
		s.log.Error("sandbox session could not be opened", zap.Error(errors.New(Sanitize(err.Error()))))
		return Outcome{Kind: OutcomeEngineError, Err: &EngineError{Code: CodeUnavailable, Message: "sandbox database is unavailable"}}
	default:
		return Outcome{Kind: OutcomeEngineError, Err: engineError(err)}
	}
}

// session owns one pooled connection and the transaction on it until close.
type session struct {
	conn *sql.Conn
	tx   *sql.Tx
	log  *zap.Logger
}

func (s *Sandbox) open(ctx context.Context, schema string, budget time.Duration) (*session, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := conn.BeginTx(ctx, &sql.TxOptions{ReadOnly: s.rules.readOnlyTx})
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	sess := &session{conn: conn, tx: tx, log: s.log}
	for _, stmt := range s.rules.prepare(schema, budget) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			sess.close()
			return nil, err
		}
	}
	return sess, nil
}

// close rolls back and releases the connection. A connection whose rollback
// failed is discarded instead of going back to the pool.
func (sess *session) close() {
	err := sess.tx.Rollback()
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		metrics.RollbackFailures.Inc()
		sess.log.Warn("sandbox rollback failed, discarding connection", zap.String("error", Sanitize(err.Error())))
		_ = sess.conn.Raw(func(any) error { return driver.ErrBadConn })
	}
	_ = sess.conn.Close()
}

// scan copies at most rowCap rows. more reports whether the engine had
// another row beyond the cap; that row is not scanned.
func scan(rows *sql.Rows, rowCap int) (native normalize.NativeRows, more bool, err error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return native, false, err
	}
	native.Columns = make([]normalize.Column, len(types))
	for i, ct := range types {
		native.Columns[i] = normalize.Column{Name: ct.Name(), DatabaseType: ct.DatabaseTypeName()}
	}
	native.Values = make([][]any, 0, min(rowCap, 64))

	for rows.Next() {
		if len(native.Values) == rowCap {
			return native, true, nil
		}
		raw := make([]any, len(types))
		ptrs := make([]any, len(types))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return native, false, err
		}
		native.Values = append(native.Values, raw)
	}
	return native, false, rows.Err()
}

// countRest advances past the remaining rows without scanning them, up to limit.
func countRest(rows *sql.Rows, seen, limit int) (total int, exact bool) {
	total = seen
	for rows.Next() {
		if total >= limit {
			return total, false
		}
		total++
	}
	return total, rows.Err() == nil
}
