package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

var ErrSchemaMismatch = errors.New("schema mismatch")

// Table declares a table and the columns the service reads from it.
type Table struct {
	Name    string
	Columns []string
}

// ValidateSchema checks that every declared table exists with at least the
// declared columns. Extra tables and columns are allowed.
func ValidateSchema(ctx context.Context, db *sql.DB, tables []Table) error {
	var problems []string
	for _, table := range tables {
		have, err := tableColumns(ctx, db, table.Name)
		if err != nil {
			return fmt.Errorf("inspect table %s: %w", table.Name, err)
		}
		if len(have) == 0 {
			problems = append(problems, fmt.Sprintf("table %s is missing", table.Name))
			continue
		}
		for _, col := range table.Columns {
			if !have[strings.ToLower(col)] {
				problems = append(problems, fmt.Sprintf("column %s.%s is missing", table.Name, col))
			}
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrSchemaMismatch, strings.Join(problems, "; "))
	}
	return nil
}

func tableColumns(ctx context.Context, db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close table_info rows", "table", table, "error", err)
		}
	}()
	out := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out[strings.ToLower(name)] = true
	}
	return out, rows.Err()
}
