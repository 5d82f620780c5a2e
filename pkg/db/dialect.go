package db

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect names the SQL engine behind a pool.
type Dialect string

const (
	Postgres Dialect = "postgres"
	MSSQL    Dialect = "mssql"
	HANA     Dialect = "hana"
	MySQL    Dialect = "mysql"
	SQLite   Dialect = "sqlite"
)

func ParseDialect(name string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(strings.TrimSpace(name))); d {
	case Postgres, MSSQL, HANA, MySQL, SQLite:
		return d, nil
	case "sqlserver":
		return MSSQL, nil
	case "":
		return "", fmt.Errorf("db dialect is required")
	default:
		return "", fmt.Errorf("unsupported db dialect: %s", name)
	}
}

// DriverName is the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	switch d {
	case Postgres:
		return "pgx"
	case MSSQL:
		return "sqlserver"
	case HANA:
		return "hdb"
	case MySQL:
		return "mysql"
	case SQLite:
		return "sqlite"
	default:
		return string(d)
	}
}

// Placeholder returns the bind marker for the n-th (1-based) argument.
func (d Dialect) Placeholder(n int) string {
	switch d {
	case Postgres:
		return "$" + strconv.Itoa(n)
	case MSSQL:
		return "@p" + strconv.Itoa(n)
	default:
		return "?"
	}
}

// Placeholders returns count bind markers starting at position from.
func (d Dialect) Placeholders(from, count int) []string {
	out := make([]string, count)
	for i := range out {
		out[i] = d.Placeholder(from + i)
	}
	return out
}

// Paginate appends the dialect's row window clause. The returned args are
// appended after the caller's own arguments, starting at position next.
func (d Dialect) Paginate(orderBy string, next, limit, offset int) (string, []any) {
	switch d {
	case MSSQL:
		return fmt.Sprintf(" ORDER BY %s OFFSET %s ROWS FETCH NEXT %s ROWS ONLY",
			orderBy, d.Placeholder(next), d.Placeholder(next+1)), []any{offset, limit}
	default:
		return fmt.Sprintf(" ORDER BY %s LIMIT %s OFFSET %s",
			orderBy, d.Placeholder(next), d.Placeholder(next+1)), []any{limit, offset}
	}
}
