package assignment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"sql-sandbox/pkg/db"
)

var ErrNotFound = errors.New("assignment not found")

type Repository struct {
	Db *db.Db
}

func NewRepository(conn *db.Db) *Repository {
	return &Repository{Db: conn}
}

const assignmentColumns = "id, title, question, difficulty, schema_context, created_at"

// EnsureSchema creates the catalog tables when they are missing. Not every
// supported engine has CREATE TABLE IF NOT EXISTS, so existence is probed.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	probe, err := r.Db.QueryContext(ctx, "SELECT 1 FROM assignments WHERE 1 = 0")
	if err == nil {
		return probe.Close()
	}

	text, ts := columnTypes(r.Db.Dialect)
	ddl := []string{
		fmt.Sprintf(`CREATE TABLE assignments (
    id VARCHAR(64) NOT NULL PRIMARY KEY,
    title VARCHAR(255) NOT NULL,
    question %s NOT NULL,
    difficulty VARCHAR(32) NOT NULL,
    schema_context VARCHAR(128) NOT NULL,
    created_at %s NOT NULL
)`, text, ts),
		`CREATE TABLE assignment_columns (
    assignment_id VARCHAR(64) NOT NULL,
    table_pos INTEGER NOT NULL,
    table_name VARCHAR(128) NOT NULL,
    column_pos INTEGER NOT NULL,
    column_name VARCHAR(128) NOT NULL,
    data_type VARCHAR(64) NOT NULL,
    PRIMARY KEY (assignment_id, table_pos, column_pos)
)`,
	}
	for _, stmt := range ddl {
		if _, err := r.Db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create catalog tables: %w", err)
		}
	}
	return nil
}

func columnTypes(d db.Dialect) (text, timestamp string) {
	switch d {
	case db.MSSQL:
		return "NVARCHAR(MAX)", "DATETIME2"
	case db.HANA:
		return "NVARCHAR(5000)", "TIMESTAMP"
	case db.MySQL:
		return "TEXT", "DATETIME(6)"
	default:
		return "TEXT", "TIMESTAMP"
	}
}

// List returns one page of assignments, newest first, and the total count
// matching the filter.
func (r *Repository) List(ctx context.Context, q ListQuery) ([]Assignment, int, error) {
	where, args := r.filter(q.Difficulty)

	var total int
	if err := r.Db.QueryRowContext(ctx, "SELECT COUNT(1) FROM assignments"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	window, windowArgs := r.Db.Dialect.Paginate("created_at DESC, id", len(args)+1, q.PageSize, (q.Page-1)*q.PageSize)
	rows, err := r.Db.QueryContext(ctx,
		"SELECT "+assignmentColumns+" FROM assignments"+where+window,
		append(args, windowArgs...)...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]Assignment, 0, q.PageSize)
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if err := r.attachTables(ctx, items); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *Repository) filter(difficulty string) (string, []any) {
	if difficulty == "" {
		return "", nil
	}
	return " WHERE LOWER(difficulty) LIKE " + r.Db.Dialect.Placeholder(1),
		[]any{"%" + strings.ToLower(difficulty) + "%"}
}

func (r *Repository) Get(ctx context.Context, id string) (*Assignment, error) {
	row := r.Db.QueryRowContext(ctx,
		"SELECT "+assignmentColumns+" FROM assignments WHERE id = "+r.Db.Dialect.Placeholder(1), id)
	a, err := scanAssignment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	items := []Assignment{a}
	if err := r.attachTables(ctx, items); err != nil {
		return nil, err
	}
	return &items[0], nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAssignment(s scanner) (Assignment, error) {
	var a Assignment
	err := s.Scan(&a.ID, &a.Title, &a.Question, &a.Difficulty, &a.SchemaContext, &a.CreatedAt)
	return a, err
}

// attachTables loads the sample tables of every item in one query.
func (r *Repository) attachTables(ctx context.Context, items []Assignment) error {
	if len(items) == 0 {
		return nil
	}
	byID := make(map[string]*Assignment, len(items))
	args := make([]any, len(items))
	for i := range items {
		items[i].SampleTables = []SampleTable{}
		byID[items[i].ID] = &items[i]
		args[i] = items[i].ID
	}

	query := fmt.Sprintf(
		"SELECT assignment_id, table_pos, table_name, column_name, data_type FROM assignment_columns WHERE assignment_id IN (%s) ORDER BY assignment_id, table_pos, column_pos",
		strings.Join(r.Db.Dialect.Placeholders(1, len(args)), ", "),
	)
	rows, err := r.Db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	lastPos := make(map[string]int, len(items))
	for rows.Next() {
		var (
			id, table string
			pos       int
			col       Column
		)
		if err := rows.Scan(&id, &pos, &table, &col.ColumnName, &col.DataType); err != nil {
			return err
		}
		a, ok := byID[id]
		if !ok {
			continue
		}
		if last, seen := lastPos[id]; !seen || last != pos {
			a.SampleTables = append(a.SampleTables, SampleTable{TableName: table})
			lastPos[id] = pos
		}
		t := &a.SampleTables[len(a.SampleTables)-1]
		t.Columns = append(t.Columns, col)
	}
	return rows.Err()
}

// Save replaces the assignment and its sample tables in one transaction.
func (r *Repository) Save(ctx context.Context, a Assignment) error {
	tx, err := r.Db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	ph := r.Db.Dialect.Placeholder
	stmts := []struct {
		query string
		args  []any
	}{
		{"DELETE FROM assignment_columns WHERE assignment_id = " + ph(1), []any{a.ID}},
		{"DELETE FROM assignments WHERE id = " + ph(1), []any{a.ID}},
		{
			fmt.Sprintf("INSERT INTO assignments (%s) VALUES (%s)", assignmentColumns, strings.Join(r.Db.Dialect.Placeholders(1, 6), ", ")),
			[]any{a.ID, a.Title, a.Question, a.Difficulty, a.SchemaContext, a.CreatedAt.UTC().Truncate(time.Microsecond)},
		},
	}
	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, s.query, s.args...); err != nil {
			return fmt.Errorf("save assignment %s: %w", a.ID, err)
		}
	}

	insertCol := fmt.Sprintf(
		"INSERT INTO assignment_columns (assignment_id, table_pos, table_name, column_pos, column_name, data_type) VALUES (%s)",
		strings.Join(r.Db.Dialect.Placeholders(1, 6), ", "),
	)
	for ti, t := range a.SampleTables {
		for ci, c := range t.Columns {
			if _, err := tx.ExecContext(ctx, insertCol, a.ID, ti, t.TableName, ci, c.ColumnName, c.DataType); err != nil {
				return fmt.Errorf("save assignment %s table %s: %w", a.ID, t.TableName, err)
			}
		}
	}
	return tx.Commit()
}
