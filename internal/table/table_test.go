package table

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsArityMismatch(t *testing.T) {
	_, err := New([]string{"a", "b"}, [][]string{{"1", "2"}, {"3"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchemaMismatch))
}

func TestDropAndRename(t *testing.T) {
	tbl, err := New([]string{"YEAR", "COUNTDATE", "SPECIES"}, [][]string{{"2020", "2020-06-01", "Sockeye"}})
	require.NoError(t, err)

	dropped, err := tbl.Drop("SPECIES")
	require.NoError(t, err)
	assert.Equal(t, []string{"YEAR", "COUNTDATE"}, dropped.Columns)

	renamed, err := dropped.Rename(map[string]string{"YEAR": "year", "COUNTDATE": "date"})
	require.NoError(t, err)
	assert.Equal(t, []string{"year", "date"}, renamed.Columns)
	assert.Equal(t, [][]string{{"2020", "2020-06-01"}}, renamed.Rows)

	// Original is untouched
	assert.Equal(t, []string{"YEAR", "COUNTDATE", "SPECIES"}, tbl.Columns)
}

func TestMissingColumnIsSchemaDrift(t *testing.T) {
	tbl, err := New([]string{"a"}, nil)
	require.NoError(t, err)

	_, err = tbl.Drop("b")
	var colErr *ColumnError
	require.ErrorAs(t, err, &colErr)
	assert.Equal(t, "b", colErr.Column)
	assert.True(t, errors.Is(err, ErrSchemaMismatch))

	_, err = tbl.Rename(map[string]string{"missing": "x"})
	assert.True(t, errors.Is(err, ErrSchemaMismatch))
}

func TestDropFunc(t *testing.T) {
	tbl, err := New([]string{"v", "v_cd", "w"}, [][]string{{"1", "A", "2"}})
	require.NoError(t, err)

	out := tbl.DropFunc(func(c string) bool { return c == "v_cd" })
	assert.Equal(t, []string{"v", "w"}, out.Columns)
	assert.Equal(t, [][]string{{"1", "2"}}, out.Rows)
}

func TestApplySkipsEmptyCells(t *testing.T) {
	tbl, err := New([]string{"d"}, [][]string{{"x"}, {""}})
	require.NoError(t, err)

	calls := 0
	require.NoError(t, tbl.Apply("d", func(s string) (string, error) {
		calls++
		return s + "!", nil
	}))
	assert.Equal(t, 1, calls)
	assert.Equal(t, [][]string{{"x!"}, {""}}, tbl.Rows)
}

func TestOuterJoinKeepsUnionOfKeys(t *testing.T) {
	temp, err := New([]string{"date", "temp"}, [][]string{
		{"2020-01-02", "1.5"},
		{"2020-01-01", "1.0"},
	})
	require.NoError(t, err)
	discharge, err := New([]string{"date", "q"}, [][]string{
		{"2020-01-03", "300"},
		{"2020-01-01", "250"},
	})
	require.NoError(t, err)

	joined, err := OuterJoin(temp, discharge, "date")
	require.NoError(t, err)

	assert.Equal(t, []string{"date", "temp", "q"}, joined.Columns)
	assert.Equal(t, [][]string{
		{"2020-01-01", "1.0", "250"},
		{"2020-01-02", "1.5", ""},
		{"2020-01-03", "", "300"},
	}, joined.Rows)
}

func TestOuterJoinDuplicateKeyLastWins(t *testing.T) {
	left, err := New([]string{"k", "a"}, [][]string{{"1", "first"}, {"1", "second"}})
	require.NoError(t, err)
	right, err := New([]string{"k", "b"}, nil)
	require.NoError(t, err)

	joined, err := OuterJoin(left, right, "k")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", "second", ""}}, joined.Rows)
}

func TestOuterJoinRejectsClashingColumns(t *testing.T) {
	left, err := New([]string{"k", "a"}, nil)
	require.NoError(t, err)
	right, err := New([]string{"k", "a"}, nil)
	require.NoError(t, err)

	_, err = OuterJoin(left, right, "k")
	assert.Error(t, err)

	_, err = OuterJoin(left, right, "missing")
	assert.True(t, errors.Is(err, ErrSchemaMismatch))
}
