// Package table provides a small positional table of string cells, the shape
// in which the upstream services deliver their data before it is mapped to
// typed records. An empty cell is a null.
package table

import (
	"errors"
	"fmt"
	"sort"
)

// ErrSchemaMismatch is returned when upstream data does not have the shape a
// pipeline expects
var ErrSchemaMismatch = errors.New("upstream schema mismatch")

// ColumnError reports a column that an operation required but did not find
type ColumnError struct {
	Op     string
	Column string
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("%s: column %q not found", e.Op, e.Column)
}

// Unwrap lets callers treat a missing column as schema drift
func (e *ColumnError) Unwrap() error {
	return ErrSchemaMismatch
}

// Table holds named columns and positional rows
type Table struct {
	Columns []string
	Rows    [][]string
}

// New builds a table and verifies every row matches the column count
func New(columns []string, rows [][]string) (*Table, error) {
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		if seen[c] {
			return nil, fmt.Errorf("duplicate column %q: %w", c, ErrSchemaMismatch)
		}
		seen[c] = true
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("row %d has %d values for %d columns: %w", i, len(row), len(columns), ErrSchemaMismatch)
		}
	}
	return &Table{Columns: columns, Rows: rows}, nil
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.Rows)
}

// Index returns the position of a column
func (t *Table) Index(column string) (int, error) {
	for i, c := range t.Columns {
		if c == column {
			return i, nil
		}
	}
	return -1, &ColumnError{Op: "lookup", Column: column}
}

// Has reports whether the column exists
func (t *Table) Has(column string) bool {
	_, err := t.Index(column)
	return err == nil
}

// Column returns a copy of all values in a column
func (t *Table) Column(column string) ([]string, error) {
	idx, err := t.Index(column)
	if err != nil {
		return nil, err
	}
	values := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		values[i] = row[idx]
	}
	return values, nil
}

// Drop removes the named columns. Every column must exist.
func (t *Table) Drop(columns ...string) (*Table, error) {
	drop := make(map[string]bool, len(columns))
	for _, c := range columns {
		if !t.Has(c) {
			return nil, &ColumnError{Op: "drop", Column: c}
		}
		drop[c] = true
	}
	return t.DropFunc(func(c string) bool { return drop[c] }), nil
}

// DropFunc removes every column for which fn returns true
func (t *Table) DropFunc(fn func(column string) bool) *Table {
	var keep []int
	var columns []string
	for i, c := range t.Columns {
		if !fn(c) {
			keep = append(keep, i)
			columns = append(columns, c)
		}
	}
	rows := make([][]string, len(t.Rows))
	for r, row := range t.Rows {
		out := make([]string, len(keep))
		for j, idx := range keep {
			out[j] = row[idx]
		}
		rows[r] = out
	}
	return &Table{Columns: columns, Rows: rows}
}

// Select keeps only the named columns, in the given order
func (t *Table) Select(columns ...string) (*Table, error) {
	idx := make([]int, len(columns))
	for i, c := range columns {
		pos, err := t.Index(c)
		if err != nil {
			return nil, &ColumnError{Op: "select", Column: c}
		}
		idx[i] = pos
	}
	rows := make([][]string, len(t.Rows))
	for r, row := range t.Rows {
		out := make([]string, len(idx))
		for j, pos := range idx {
			out[j] = row[pos]
		}
		rows[r] = out
	}
	return &Table{Columns: append([]string(nil), columns...), Rows: rows}, nil
}

// Rename maps old column names to new ones. Every old name must exist.
func (t *Table) Rename(names map[string]string) (*Table, error) {
	for old := range names {
		if !t.Has(old) {
			return nil, &ColumnError{Op: "rename", Column: old}
		}
	}
	columns := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		if n, ok := names[c]; ok {
			columns[i] = n
		} else {
			columns[i] = c
		}
	}
	return New(columns, t.Rows)
}

// Apply rewrites every non-empty cell of a column in place
func (t *Table) Apply(column string, fn func(string) (string, error)) error {
	idx, err := t.Index(column)
	if err != nil {
		return err
	}
	for r, row := range t.Rows {
		if row[idx] == "" {
			continue
		}
		v, err := fn(row[idx])
		if err != nil {
			return fmt.Errorf("row %d column %q: %w", r, column, err)
		}
		row[idx] = v
	}
	return nil
}

// OuterJoin combines two tables on a key column, keeping keys present in
// either side. Cells of the side lacking a key are left empty. Rows are
// ordered by key. A key repeated within one side keeps its last row.
func OuterJoin(left, right *Table, key string) (*Table, error) {
	li, err := left.Index(key)
	if err != nil {
		return nil, &ColumnError{Op: "join", Column: key}
	}
	ri, err := right.Index(key)
	if err != nil {
		return nil, &ColumnError{Op: "join", Column: key}
	}

	columns := []string{key}
	for i, c := range left.Columns {
		if i != li {
			columns = append(columns, c)
		}
	}
	for i, c := range right.Columns {
		if i == ri {
			continue
		}
		if left.Has(c) {
			return nil, fmt.Errorf("join: column %q present on both sides", c)
		}
		columns = append(columns, c)
	}

	leftRows := indexRows(left, li)
	rightRows := indexRows(right, ri)

	keys := make([]string, 0, len(leftRows)+len(rightRows))
	for k := range leftRows {
		keys = append(keys, k)
	}
	for k := range rightRows {
		if _, ok := leftRows[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		row := []string{k}
		row = append(row, without(leftRows[k], li, len(left.Columns))...)
		row = append(row, without(rightRows[k], ri, len(right.Columns))...)
		rows = append(rows, row)
	}
	return New(columns, rows)
}

func indexRows(t *Table, key int) map[string][]string {
	m := make(map[string][]string, len(t.Rows))
	for _, row := range t.Rows {
		m[row[key]] = row
	}
	return m
}

// without returns row minus the key cell, or empty cells when row is nil
func without(row []string, key, width int) []string {
	out := make([]string, 0, width-1)
	for i := 0; i < width; i++ {
		if i == key {
			continue
		}
		if row == nil {
			out = append(out, "")
		} else {
			out = append(out, row[i])
		}
	}
	return out
}
