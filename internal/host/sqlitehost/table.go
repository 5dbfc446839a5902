// Package sqlitehost keeps the forms table in a SQLite database and pushes
// it to the widget the way a spreadsheet host would.
package sqlitehost

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/AnatoleLucet/forms/internal/host"
)

const schema = `CREATE TABLE IF NOT EXISTS forms (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	Name     TEXT NOT NULL DEFAULT '',
	FormJson TEXT,
	Link     TEXT NOT NULL DEFAULT '',
	Form     TEXT NOT NULL DEFAULT ''
)`

// columns that can be written, in table order
var writable = []string{"Name", "FormJson", "Link", "Form"}

// Table is the forms table.
type Table struct {
	db *sql.DB
}

// Open opens or creates the database at path. ":memory:" keeps it in
// memory for the lifetime of the Table.
func Open(path string) (*Table, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := ":memory:"
	if path != dsn {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// one connection so ":memory:" is a single database
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create forms table: %w", err)
	}
	return &Table{db: db}, nil
}

func (t *Table) Close() error {
	if t == nil || t.db == nil {
		return nil
	}
	return t.db.Close()
}

func (t *Table) Create(ctx context.Context, fields host.Fields) (host.RowID, error) {
	names, values, err := assignments(fields)
	if err != nil {
		return 0, fmt.Errorf("create row: %w", err)
	}

	query := "INSERT INTO forms DEFAULT VALUES"
	if len(names) > 0 {
		query = fmt.Sprintf("INSERT INTO forms (%s) VALUES (%s)",
			strings.Join(names, ", "),
			strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", "),
		)
	}

	res, err := t.db.ExecContext(ctx, query, values...)
	if err != nil {
		return 0, fmt.Errorf("create row: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create row: %w", err)
	}
	return host.RowID(id), nil
}

func (t *Table) Update(ctx context.Context, id host.RowID, fields host.Fields) error {
	names, values, err := assignments(fields)
	if err != nil {
		return fmt.Errorf("update row %d: %w", id, err)
	}
	if len(names) == 0 {
		return nil
	}

	sets := make([]string, len(names))
	for i, name := range names {
		sets[i] = name + " = ?"
	}

	res, err := t.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE forms SET %s WHERE id = ?", strings.Join(sets, ", ")),
		append(values, int64(id))...,
	)
	if err != nil {
		return fmt.Errorf("update row %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update row %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("update row %d: %w", id, host.ErrNotFound)
	}
	return nil
}

// Columns describes the table from its schema.
func (t *Table) Columns(ctx context.Context) ([]host.Column, error) {
	rows, err := t.db.QueryContext(ctx, "SELECT cid, name, type FROM pragma_table_info('forms')")
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	defer rows.Close()

	var columns []host.Column
	for rows.Next() {
		var c host.Column
		if err := rows.Scan(&c.ID, &c.ColID, &c.Type); err != nil {
			return nil, fmt.Errorf("list columns: %w", err)
		}
		if c.ColID == "id" {
			continue
		}
		c.Label = c.ColID
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	return columns, nil
}

// Records returns every row ordered by id.
func (t *Table) Records(ctx context.Context) ([]*host.Row, error) {
	rows, err := t.db.QueryContext(ctx, "SELECT id, Name, FormJson, Link, Form FROM forms ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []*host.Row
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("list records: %w", err)
		}
		records = append(records, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return records, nil
}

// Record returns the row with id.
func (t *Table) Record(ctx context.Context, id host.RowID) (*host.Row, error) {
	row, err := scanRow(t.db.QueryRowContext(ctx,
		"SELECT id, Name, FormJson, Link, Form FROM forms WHERE id = ?", int64(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get record %d: %w", id, host.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get record %d: %w", id, err)
	}
	return row, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(s scanner) (*host.Row, error) {
	var (
		row      host.Row
		id       int64
		formJSON sql.NullString
	)
	if err := s.Scan(&id, &row.Name, &formJSON, &row.Link, &row.Form); err != nil {
		return nil, err
	}
	row.ID = host.RowID(id)
	if formJSON.Valid {
		row.FormJson = &formJSON.String
	}
	return &row, nil
}

// assignments validates fields and returns them in table column order.
func assignments(fields host.Fields) ([]string, []any, error) {
	for name := range fields {
		if !slices.Contains(writable, name) {
			return nil, nil, fmt.Errorf("unknown column %q", name)
		}
	}

	var (
		names  []string
		values []any
	)
	for _, name := range writable {
		raw, ok := fields[name]
		if !ok {
			continue
		}
		value, err := columnValue(name, raw)
		if err != nil {
			return nil, nil, err
		}
		names = append(names, name)
		values = append(values, value)
	}
	return names, values, nil
}

// columnValue maps a field value to its stored form. Only FormJson can be
// NULL; the other columns store nil as "".
func columnValue(name string, value any) (any, error) {
	var s *string
	switch v := value.(type) {
	case nil:
	case string:
		s = &v
	case *string:
		s = v
	default:
		return nil, fmt.Errorf("%s: unsupported value %T", name, value)
	}

	switch {
	case s != nil:
		return *s, nil
	case name == "FormJson":
		return nil, nil
	default:
		return "", nil
	}
}
