package sandbox

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	mssql "github.com/denisenkom/go-mssqldb"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"

	"sql-sandbox/pkg/db"
)

// rules adapt a session to one engine: whether the driver can open a
// read-only transaction, which statements scope the session, and which
// engine errors mean the engine itself gave up on time.
type rules struct {
	readOnlyTx bool
	prepare    func(schema string, budget time.Duration) []string
	isTimeout  func(err error) bool
}

func rulesFor(d db.Dialect) (rules, error) {
	switch d {
	case db.Postgres:
		return rules{readOnlyTx: true, prepare: preparePostgres, isTimeout: postgresTimeout}, nil
	case db.MySQL:
		return rules{readOnlyTx: true, prepare: prepareMySQL, isTimeout: mysqlTimeout}, nil
	case db.MSSQL:
		return rules{prepare: prepareMSSQL, isTimeout: mssqlTimeout}, nil
	case db.HANA:
		return rules{prepare: prepareHANA, isTimeout: never}, nil
	case db.SQLite:
		// One database file is one schema context; configs allows only one.
		return rules{prepare: func(string, time.Duration) []string { return nil }, isTimeout: never}, nil
	default:
		return rules{}, fmt.Errorf("unsupported sandbox dialect: %s", d)
	}
}

func never(error) bool { return false }

// SET LOCAL settings end with the transaction, so nothing leaks back into
// the pool.
func preparePostgres(schema string, budget time.Duration) []string {
	ms := strconv.FormatInt(budget.Milliseconds(), 10)
	stmts := []string{
		"SET LOCAL statement_timeout = " + ms,
		"SET LOCAL lock_timeout = " + ms,
		"SET LOCAL idle_in_transaction_session_timeout = " + ms,
	}
	if schema != "" {
		stmts = append(stmts, "SET LOCAL search_path TO "+pgx.Identifier{schema}.Sanitize())
	}
	return stmts
}

// MySQL has no transaction-scoped variables; every session sets them again.
func prepareMySQL(schema string, budget time.Duration) []string {
	stmts := []string{
		fmt.Sprintf("SET SESSION max_execution_time = %d", budget.Milliseconds()),
	}
	if schema != "" {
		stmts = append(stmts, "USE "+quoteIdent(schema, '`'))
	}
	return stmts
}

// Schema contexts are databases on SQL Server. The driver resets the
// connection on reuse, so every session switches again.
func prepareMSSQL(schema string, budget time.Duration) []string {
	stmts := []string{fmt.Sprintf("SET LOCK_TIMEOUT %d", budget.Milliseconds())}
	if schema != "" {
		stmts = append(stmts, "USE "+bracketIdent(schema))
	}
	return stmts
}

func prepareHANA(schema string, _ time.Duration) []string {
	stmts := []string{"SET TRANSACTION READ ONLY"}
	if schema != "" {
		stmts = append(stmts, "SET SCHEMA "+quoteIdent(schema, '"'))
	}
	return stmts
}

func bracketIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func quoteIdent(name string, q byte) string {
	s := string(q)
	return s + strings.ReplaceAll(name, s, s+s) + s
}

func postgresTimeout(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// query_canceled (statement_timeout), lock_not_available
		return pgErr.Code == "57014" || pgErr.Code == "55P03"
	}
	return false
}

func mysqlTimeout(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		// ER_QUERY_TIMEOUT, ER_LOCK_WAIT_TIMEOUT
		return myErr.Number == 3024 || myErr.Number == 1205
	}
	return false
}

func mssqlTimeout(err error) bool {
	var msErr mssql.Error
	if errors.As(err, &msErr) {
		// lock request time out period exceeded
		return msErr.Number == 1222
	}
	return false
}

// hanaError matches go-hdb driver errors.
type hanaError interface {
	error
	Code() int
	Text() string
}

// engineError extracts the engine's own message and code. Unknown errors keep
// their text under a generic code. The message is always sanitized.
func engineError(err error) *EngineError {
	var (
		pgErr   *pgconn.PgError
		msErr   mssql.Error
		myErr   *mysql.MySQLError
		liteErr *sqlite.Error
		hdbErr  hanaError
	)
	switch {
	case errors.As(err, &pgErr):
		return &EngineError{Code: pgErr.Code, Message: Sanitize(pgErr.Message)}
	case errors.As(err, &msErr):
		return &EngineError{Code: strconv.Itoa(int(msErr.Number)), Message: Sanitize(msErr.Message)}
	case errors.As(err, &myErr):
		return &EngineError{Code: strconv.Itoa(int(myErr.Number)), Message: Sanitize(myErr.Message)}
	case errors.As(err, &liteErr):
		return &EngineError{Code: strconv.Itoa(liteErr.Code()), Message: Sanitize(liteErr.Error())}
	case errors.As(err, &hdbErr):
		return &EngineError{Code: strconv.Itoa(hdbErr.Code()), Message: Sanitize(hdbErr.Text())}
	default:
		return &EngineError{Code: CodeEngine, Message: Sanitize(err.Error())}
	}
}
