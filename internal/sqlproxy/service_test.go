package sqlproxy

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	_ "modernc.org/sqlite"

	"sql-sandbox/configs"
	"sql-sandbox/internal/assignment"
	"sql-sandbox/internal/classifier"
	"sql-sandbox/internal/normalize"
	"sql-sandbox/internal/sandbox"
	"sql-sandbox/pkg/db"
)

var testConf = configs.SandboxConfig{
	Schemas:       []string{"public", "hr"},
	DefaultSchema: "public",
	TimeBudget:    2 * time.Second,
	RowCap:        5,
	CountLimit:    100,
}

type fakeExecutor struct {
	calls  int
	schema string
	out    sandbox.Outcome
}

func (f *fakeExecutor) Execute(_ context.Context, _ string, schema string, _ time.Duration, _ int) sandbox.Outcome {
	f.calls++
	f.schema = schema
	return f.out
}

type fakeCatalog map[string]string

func (f fakeCatalog) LookupSchemaContext(_ context.Context, id string) (*assignment.SchemaContext, error) {
	if id == "broken" {
		return nil, errors.New("connection refused")
	}
	schema, ok := f[id]
	if !ok {
		return nil, assignment.ErrNotFound
	}
	return &assignment.SchemaContext{Schema: schema}, nil
}

func newFakeService(t *testing.T, exec *fakeExecutor) *Service {
	t.Helper()
	return NewService(classifier.New(), exec, fakeCatalog{"ranking": "hr"}, testConf, zaptest.NewLogger(t))
}

func requireKind(t *testing.T, err error, kind ErrorKind) *Error {
	t.Helper()
	var qErr *Error
	require.ErrorAs(t, err, &qErr)
	require.Equal(t, kind, qErr.Kind)
	return qErr
}

func TestRunRejectsBeforeExecuting(t *testing.T) {
	tests := []struct {
		query string
		code  string
	}{
		{"", "empty-query"},
		{"   \n\t ", "empty-query"},
		{"SELECT 1; SELECT 2;", "multiple-statements"},
		{"DROP TABLE users;", "forbidden-keyword"},
		{"delete from users", "forbidden-keyword"},
		{"SELECT * FROM (SELECT 1) t WHERE EXISTS (UPDATE users SET name = 'x')", "forbidden-keyword"},
		{"WITH d AS (DELETE FROM users RETURNING *) SELECT * FROM d", "forbidden-keyword"},
		{"select 1 union select 2; insert into users values (1)", "multiple-statements"},
		{"GRANT ALL ON users TO public", "forbidden-keyword"},
		{"TRUNCATE users", "forbidden-keyword"},
		{"ALTER TABLE users ADD COLUMN x INT", "forbidden-keyword"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			exec := &fakeExecutor{}
			_, err := newFakeService(t, exec).Run(context.Background(), Query{Text: tt.query})
			qErr := requireKind(t, err, InvalidQuery)
			assert.Equal(t, tt.code, qErr.Code)
			assert.NotEmpty(t, qErr.Reason)
			assert.Zero(t, exec.calls)
		})
	}
}

func TestRunMapsOutcomes(t *testing.T) {
	t.Run("Timeout", func(t *testing.T) {
		exec := &fakeExecutor{out: sandbox.Outcome{Kind: sandbox.OutcomeTimeout}}
		_, err := newFakeService(t, exec).Run(context.Background(), Query{Text: "SELECT 1"})
		qErr := requireKind(t, err, QueryTimedOut)
		assert.Equal(t, timedOutReason, qErr.Reason)
	})

	t.Run("EngineError", func(t *testing.T) {
		exec := &fakeExecutor{out: sandbox.Outcome{
			Kind: sandbox.OutcomeEngineError,
			Err:  &sandbox.EngineError{Code: "42P01", Message: `relation "nope" does not exist`},
		}}
		_, err := newFakeService(t, exec).Run(context.Background(), Query{Text: "SELECT * FROM nope"})
		qErr := requireKind(t, err, QueryFailed)
		assert.Equal(t, "42P01", qErr.Code)
		assert.Equal(t, `relation "nope" does not exist`, qErr.Reason)
	})

	t.Run("UnmappedType", func(t *testing.T) {
		exec := &fakeExecutor{out: sandbox.Outcome{
			Kind: sandbox.OutcomeRows,
			Rows: normalize.NativeRows{
				Columns: []normalize.Column{{Name: "c", DatabaseType: "WEIRD"}},
				Values:  [][]any{{struct{}{}}},
			},
		}}
		_, err := newFakeService(t, exec).Run(context.Background(), Query{Text: "SELECT c FROM t"})
		qErr := requireKind(t, err, QueryFailed)
		assert.Contains(t, qErr.Reason, "unsupported column type")
	})

	t.Run("Truncated", func(t *testing.T) {
		rows := normalize.NativeRows{Columns: []normalize.Column{{Name: "n", DatabaseType: "INTEGER"}}}
		for i := 0; i < 5; i++ {
			rows.Values = append(rows.Values, []any{int64(i)})
		}
		exec := &fakeExecutor{out: sandbox.Outcome{
			Kind:       sandbox.OutcomeRowLimitExceeded,
			Rows:       rows,
			TotalRows:  100,
			TotalExact: false,
		}}
		res, err := newFakeService(t, exec).Run(context.Background(), Query{Text: "SELECT n FROM t"})
		require.NoError(t, err)
		assert.True(t, res.Truncated)
		assert.Len(t, res.Records, 5)
		assert.Equal(t, 100, res.TotalRows)
		assert.False(t, res.TotalExact)
	})
}

func TestRunResolvesSchema(t *testing.T) {
	tests := []struct {
		name   string
		query  Query
		schema string
		code   string
	}{
		{name: "Default", query: Query{Text: "SELECT 1"}, schema: "public"},
		{name: "Explicit", query: Query{Text: "SELECT 1", SchemaContext: "hr"}, schema: "hr"},
		{name: "FromAssignment", query: Query{Text: "SELECT 1", AssignmentID: "ranking"}, schema: "hr"},
		{name: "ExplicitWins", query: Query{Text: "SELECT 1", SchemaContext: "public", AssignmentID: "ranking"}, schema: "public"},
		{name: "NotAllowed", query: Query{Text: "SELECT 1", SchemaContext: "pg_catalog"}, code: "unknown-schema"},
		{name: "UnknownAssignment", query: Query{Text: "SELECT 1", AssignmentID: "missing"}, code: "unknown-assignment"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &fakeExecutor{out: sandbox.Outcome{Kind: sandbox.OutcomeRows}}
			_, err := newFakeService(t, exec).Run(context.Background(), tt.query)
			if tt.code != "" {
				qErr := requireKind(t, err, InvalidQuery)
				assert.Equal(t, tt.code, qErr.Code)
				assert.Zero(t, exec.calls)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.schema, exec.schema)
		})
	}

	t.Run("CatalogDown", func(t *testing.T) {
		exec := &fakeExecutor{}
		_, err := newFakeService(t, exec).Run(context.Background(), Query{Text: "SELECT 1", AssignmentID: "broken"})
		requireKind(t, err, QueryFailed)
		assert.Zero(t, exec.calls)
	})
}

// newSQLiteService runs the real pipeline against a file database seeded with
// a users table.
func newSQLiteService(t *testing.T) (*Service, *sql.DB) {
	t.Helper()
	conn, err := sql.Open("sqlite", "file:"+filepath.Join(t.TempDir(), "sandbox.db")+"?_pragma=busy_timeout(5000)")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	for _, stmt := range []string{
		`CREATE TABLE users (id INTEGER PRIMARY KEY, name VARCHAR(100), email VARCHAR(100), created_at TIMESTAMP)`,
		`INSERT INTO users VALUES (1, 'Alice', 'alice@example.com', '2024-01-01 10:00:00')`,
		`INSERT INTO users VALUES (2, 'Bob', 'bob@example.com', '2024-01-02 11:30:00')`,
		`INSERT INTO users VALUES (3, 'Carol', NULL, '2024-01-03 09:15:00')`,
	} {
		_, err := conn.Exec(stmt)
		require.NoError(t, err)
	}

	log := zaptest.NewLogger(t)
	sb, err := sandbox.New(db.Wrap(conn, db.SQLite), log, testConf.CountLimit)
	require.NoError(t, err)
	return NewService(classifier.New(), sb, nil, testConf, log), conn
}

func TestRunSelectUsers(t *testing.T) {
	svc, _ := newSQLiteService(t)

	res, err := svc.Run(context.Background(), Query{Text: "SELECT * FROM users;"})
	require.NoError(t, err)
	require.Len(t, res.Records, 3)
	assert.False(t, res.Truncated)
	for _, rec := range res.Records {
		assert.Equal(t, []string{"id", "name", "email", "created_at"}, rec.Columns)
	}

	email, _ := res.Records[2].Get("email")
	assert.True(t, email.IsNull())
	id, _ := res.Records[0].Get("id")
	assert.Equal(t, normalize.Number("1"), id)

	raw, err := json.Marshal(res.Records[0])
	require.NoError(t, err)
	assert.Regexp(t, `^\{"id":1,"name":"Alice","email":"alice@example.com","created_at":"2024-01-01`, string(raw))
}

func TestRunIsIdempotent(t *testing.T) {
	svc, _ := newSQLiteService(t)

	first, err := svc.Run(context.Background(), Query{Text: "SELECT id, name FROM users ORDER BY id"})
	require.NoError(t, err)
	second, err := svc.Run(context.Background(), Query{Text: "SELECT id, name FROM users ORDER BY id"})
	require.NoError(t, err)
	assert.Equal(t, first.Records, second.Records)
}

func TestRunDropLeavesTable(t *testing.T) {
	svc, conn := newSQLiteService(t)

	_, err := svc.Run(context.Background(), Query{Text: "DROP TABLE users;"})
	qErr := requireKind(t, err, InvalidQuery)
	assert.Equal(t, "forbidden-keyword", qErr.Code)

	var n int
	require.NoError(t, conn.QueryRow("SELECT count(*) FROM users").Scan(&n))
	assert.Equal(t, 3, n)
}

func TestRunRowCapBoundary(t *testing.T) {
	svc, _ := newSQLiteService(t)
	const seq = `WITH RECURSIVE seq(n) AS (SELECT 1 UNION ALL SELECT n + 1 FROM seq WHERE n < %d) SELECT n FROM seq`

	res, err := svc.Run(context.Background(), Query{Text: fmt.Sprintf(seq, testConf.RowCap)})
	require.NoError(t, err)
	assert.False(t, res.Truncated)
	assert.Len(t, res.Records, testConf.RowCap)

	res, err = svc.Run(context.Background(), Query{Text: fmt.Sprintf(seq, testConf.RowCap+1)})
	require.NoError(t, err)
	assert.True(t, res.Truncated)
	assert.Len(t, res.Records, testConf.RowCap)
	assert.Equal(t, testConf.RowCap+1, res.TotalRows)
	assert.True(t, res.TotalExact)
}

func TestRunEngineErrorIsQueryFailed(t *testing.T) {
	svc, _ := newSQLiteService(t)

	_, err := svc.Run(context.Background(), Query{Text: "SELECT missing_column FROM users"})
	qErr := requireKind(t, err, QueryFailed)
	assert.Contains(t, qErr.Reason, "missing_column")
}
