package sandbox

import (
	"errors"
	"fmt"
	"testing"
	"time"

	mssql "github.com/denisenkom/go-mssqldb"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sql-sandbox/pkg/db"
)

func TestPrepareStatements(t *testing.T) {
	budget := 1500 * time.Millisecond

	t.Run("Postgres", func(t *testing.T) {
		stmts := preparePostgres(`we"ird`, budget)
		assert.Equal(t, []string{
			"SET LOCAL statement_timeout = 1500",
			"SET LOCAL lock_timeout = 1500",
			"SET LOCAL idle_in_transaction_session_timeout = 1500",
			`SET LOCAL search_path TO "we""ird"`,
		}, stmts)
	})

	t.Run("PostgresNoSchema", func(t *testing.T) {
		assert.Len(t, preparePostgres("", budget), 3)
	})

	t.Run("MySQL", func(t *testing.T) {
		assert.Equal(t, []string{
			"SET SESSION max_execution_time = 1500",
			"USE `sand``box`",
		}, prepareMySQL("sand`box", budget))
	})

	t.Run("MSSQL", func(t *testing.T) {
		assert.Equal(t, []string{"SET LOCK_TIMEOUT 1500", "USE [sand]]box]"}, prepareMSSQL("sand]box", budget))
		assert.Equal(t, []string{"SET LOCK_TIMEOUT 1500"}, prepareMSSQL("", budget))
	})

	t.Run("HANA", func(t *testing.T) {
		assert.Equal(t, []string{"SET TRANSACTION READ ONLY", `SET SCHEMA "SANDBOX"`}, prepareHANA("SANDBOX", budget))
	})
}

func TestRulesFor(t *testing.T) {
	for _, d := range []db.Dialect{db.Postgres, db.MySQL, db.MSSQL, db.HANA, db.SQLite} {
		r, err := rulesFor(d)
		require.NoError(t, err, d)
		assert.NotNil(t, r.prepare)
		assert.NotNil(t, r.isTimeout)
	}
	_, err := rulesFor("db2")
	assert.Error(t, err)
}

func TestTimeoutClassification(t *testing.T) {
	assert.True(t, postgresTimeout(fmt.Errorf("query: %w", &pgconn.PgError{Code: "57014"})))
	assert.False(t, postgresTimeout(&pgconn.PgError{Code: "42P01"}))
	assert.True(t, mysqlTimeout(&mysql.MySQLError{Number: 3024}))
	assert.False(t, mysqlTimeout(&mysql.MySQLError{Number: 1146}))
	assert.True(t, mssqlTimeout(mssql.Error{Number: 1222}))
	assert.False(t, mssqlTimeout(errors.New("boom")))
}

func TestEngineError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
		msg  string
	}{
		{"Postgres", &pgconn.PgError{Code: "42P01", Message: `relation "nope" does not exist`}, "42P01", `relation "nope" does not exist`},
		{"MySQL", &mysql.MySQLError{Number: 1146, Message: "Table 'app.nope' doesn't exist"}, "1146", "Table 'app.nope' doesn't exist"},
		{"MSSQL", mssql.Error{Number: 208, Message: "Invalid object name 'nope'."}, "208", "Invalid object name 'nope'."},
		{"Other", errors.New("connection reset by peer"), CodeEngine, "connection reset by peer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := engineError(tt.err)
			assert.Equal(t, tt.code, got.Code)
			assert.Equal(t, tt.msg, got.Message)
		})
	}
}
