package sqlproxy

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"sql-sandbox/internal/sandbox"
)

func serve(t *testing.T, svc *Service, body string) *httptest.ResponseRecorder {
	t.Helper()
	router := http.NewServeMux()
	NewController(router, ControllerDeps{Service: svc, Log: zaptest.NewLogger(t)})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sql/execute", strings.NewReader(body)))
	return rec
}

func TestExecuteEndpoint(t *testing.T) {
	svc, _ := newSQLiteService(t)

	rec := serve(t, svc, `{"query":"SELECT id, name FROM users ORDER BY id"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Columns    []string         `json:"columns"`
		Rows       []map[string]any `json:"rows"`
		RowCount   int              `json:"rowCount"`
		Truncated  bool             `json:"truncated"`
		TotalRows  *int             `json:"totalRows"`
		DurationMs int64            `json:"durationMs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"id", "name"}, body.Columns)
	assert.Equal(t, 3, body.RowCount)
	assert.False(t, body.Truncated)
	assert.Nil(t, body.TotalRows)
	assert.Equal(t, "Bob", body.Rows[1]["name"])
}

func TestExecuteEndpointTruncated(t *testing.T) {
	svc, _ := newSQLiteService(t)

	rec := serve(t, svc, `{"query":"WITH RECURSIVE s(n) AS (SELECT 1 UNION ALL SELECT n + 1 FROM s WHERE n < 9) SELECT n FROM s"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"truncated":true`)
	assert.Contains(t, rec.Body.String(), `"totalRows":9`)
	assert.Contains(t, rec.Body.String(), `"rowCount":5`)
}

func TestExecuteEndpointErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		kind   ErrorKind
		code   string
	}{
		{name: "Empty", body: `{"query":""}`, status: http.StatusBadRequest, kind: InvalidQuery, code: "empty-query"},
		{name: "Drop", body: `{"query":"DROP TABLE users;"}`, status: http.StatusBadRequest, kind: InvalidQuery, code: "forbidden-keyword"},
		{name: "Stacked", body: `{"query":"SELECT 1; SELECT 2;"}`, status: http.StatusBadRequest, kind: InvalidQuery, code: "multiple-statements"},
		{name: "Engine", body: `{"query":"SELECT * FROM nope"}`, status: http.StatusUnprocessableEntity, kind: QueryFailed},
	}
	svc, _ := newSQLiteService(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, svc, tt.body)
			require.Equal(t, tt.status, rec.Code)

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.kind, body.ErrorKind)
			assert.NotEmpty(t, body.Reason)
			assert.Equal(t, body.Reason, body.Error)
			if tt.code != "" {
				assert.Equal(t, tt.code, body.Code)
			}
		})
	}
}

func TestExecuteEndpointTimeout(t *testing.T) {
	exec := &fakeExecutor{out: sandbox.Outcome{Kind: sandbox.OutcomeTimeout}}
	rec := serve(t, newFakeService(t, exec), `{"query":"SELECT 1"}`)
	assert.Equal(t, http.StatusRequestTimeout, rec.Code)
	assert.Contains(t, rec.Body.String(), `"errorKind":"QueryTimedOut"`)
}

func TestExecuteEndpointBadBody(t *testing.T) {
	exec := &fakeExecutor{}
	rec := serve(t, newFakeService(t, exec), `{"query":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, exec.calls)
}
