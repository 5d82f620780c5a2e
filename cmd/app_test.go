package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	_ "modernc.org/sqlite"

	"sql-sandbox/configs"
	"sql-sandbox/internal/assignment"
	"sql-sandbox/internal/classifier"
	"sql-sandbox/internal/fixtures"
	"sql-sandbox/internal/hint"
	"sql-sandbox/internal/sandbox"
	"sql-sandbox/internal/sqlproxy"
	"sql-sandbox/pkg/db"
)

func openSQLite(t *testing.T, name string) *db.Db {
	t.Helper()
	conn, err := sql.Open("sqlite", "file:"+filepath.Join(t.TempDir(), name)+"?_pragma=busy_timeout(5000)")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return db.Wrap(conn, db.SQLite)
}

func testApp(t *testing.T, rpm int) http.Handler {
	t.Helper()
	ctx := context.Background()
	log := zaptest.NewLogger(t)

	conf := &configs.Config{
		Server: configs.ServerConfig{Port: 2222, CORSOrigin: "*", RateLimitPerMinute: rpm},
		Sandbox: configs.SandboxConfig{
			Schemas:       []string{"public"},
			DefaultSchema: "public",
			TimeBudget:    2 * time.Second,
			RowCap:        500,
			CountLimit:    10000,
		},
		Hint: configs.HintConfig{Timeout: time.Second, MaxAttempts: 1, RequestsPerMinute: 30},
	}

	sandboxDB := openSQLite(t, "sandbox.db")
	_, err := fixtures.LoadFile(ctx, sandboxDB, filepath.Join("..", "configs", "sample_data.sql"), log)
	require.NoError(t, err)

	catalogDB := openSQLite(t, "catalog.db")
	items, err := assignment.LoadSeedFile(filepath.Join("..", "configs", "assignments.yaml"), time.Now())
	require.NoError(t, err)
	catalog := assignment.NewService(assignment.NewRepository(catalogDB), nil, time.Minute, log)
	require.NoError(t, catalog.Seed(ctx, items))

	sb, err := sandbox.New(sandboxDB, log, conf.Sandbox.CountLimit)
	require.NoError(t, err)

	return App(AppDeps{
		Config:    conf,
		Log:       log,
		Queries:   sqlproxy.NewService(classifier.New(), sb, catalog, conf.Sandbox, log),
		Catalog:   catalog,
		Hints:     hint.NewService(hint.NewChatClient(conf.Hint, http.DefaultClient), catalog, conf.Hint, log),
		SandboxDB: SandboxDB{sandboxDB},
		CatalogDB: CatalogDB{catalogDB},
	})
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAppExecutesQuery(t *testing.T) {
	h := testApp(t, 0)

	rec := do(h, http.MethodPost, "/api/sql/execute", `{"query":"SELECT name FROM users ORDER BY id"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	var body sqlproxy.QueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"name"}, body.Columns)
	assert.Equal(t, 5, body.RowCount)
	assert.False(t, body.Truncated)
}

func TestAppRejectsWrites(t *testing.T) {
	h := testApp(t, 0)

	rec := do(h, http.MethodPost, "/api/sql/execute", `{"query":"DELETE FROM users"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body sqlproxy.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, sqlproxy.InvalidQuery, body.ErrorKind)

	rec = do(h, http.MethodPost, "/api/sql/execute", `{"query":"SELECT COUNT(*) AS n FROM users"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"n":5`)
}

func TestAppQueryUsesAssignmentSchema(t *testing.T) {
	h := testApp(t, 0)

	rec := do(h, http.MethodPost, "/api/sql/execute", `{"query":"SELECT 1 AS one","assignmentId":"no-such-assignment"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown-assignment")

	rec = do(h, http.MethodPost, "/api/sql/execute", `{"query":"SELECT 1 AS one","assignmentId":"get-all-users"}`)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestAppServesCatalog(t *testing.T) {
	h := testApp(t, 0)

	rec := do(h, http.MethodGet, "/api/assignments?difficulty=medium", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list assignment.ListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 2, list.Total)
	for _, a := range list.Items {
		assert.Equal(t, "medium", a.Difficulty)
	}

	rec = do(h, http.MethodGet, "/api/assignments/window-functions", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(h, http.MethodGet, "/api/assignments/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAppHintWithoutProvider(t *testing.T) {
	h := testApp(t, 0)

	rec := do(h, http.MethodPost, "/api/sql/hint", `{"question":"List users","query":"SELECT * FROM users"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAppHealthz(t *testing.T) {
	h := testApp(t, 0)

	rec := do(h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAppRateLimit(t *testing.T) {
	h := testApp(t, 4)

	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/healthz", "").Code)
	rec := do(h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestAppUnknownRoute(t *testing.T) {
	h := testApp(t, 0)
	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/api/nope", "").Code)
}
