package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// Helper functions for null-safe SQL operations

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt(i int) sql.NullInt64 {
	if i == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(i), Valid: true}
}

func nullInt64(i int64) sql.NullInt64 {
	if i == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: i, Valid: true}
}

// jsonColumn encodes a slice as JSON text, NULL when empty.
func jsonColumn[T any](items []T) sql.NullString {
	if len(items) == 0 {
		return sql.NullString{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

func fromJSONColumn[T any](ns sql.NullString) []T {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	var items []T
	if err := json.Unmarshal([]byte(ns.String), &items); err != nil {
		return nil
	}
	return items
}

// setter accumulates "col = $n" clauses for partial updates.
type setter struct {
	cols []string
	args []any
}

func (s *setter) set(col string, v any) {
	s.args = append(s.args, v)
	s.cols = append(s.cols, fmt.Sprintf("%s = $%d", col, len(s.args)))
}

func (s *setter) empty() bool {
	return len(s.cols) == 0
}

// updateRow applies set to the row of table matching the key columns.
// It returns ErrNotFound when no row matched. An empty setter only checks
// for existence.
func updateRow(ctx context.Context, q Querier, table string, set *setter, keys []string, keyArgs ...any) error {
	where := make([]string, len(keys))
	args := append([]any{}, set.args...)
	for i, k := range keys {
		args = append(args, keyArgs[i])
		where[i] = fmt.Sprintf("%s = $%d", k, len(args))
	}
	cond := strings.Join(where, " AND ")

	if set.empty() {
		var n int
		if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table+" WHERE "+cond, args...).Scan(&n); err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	}

	res, err := q.ExecContext(ctx, "UPDATE "+table+" SET "+strings.Join(set.cols, ", ")+" WHERE "+cond, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// placeholders returns "$from, $from+1, ..." for n arguments.
func placeholders(from, n int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(ps, ", ")
}

func stringArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
