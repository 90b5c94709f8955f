package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseYearHeader(t *testing.T) {
	t.Parallel()
	tests := []struct {
		label string
		kind  HeaderKind
		year  int
		name  string
	}{
		{"country", HeaderLabel, 0, "country"},
		{"País", HeaderLabel, 0, "País"},
		{"1990", HeaderQuantity, 1990, "1990_quantity"},
		{"1990.1", HeaderDolars, 1990, "1990_dolars"},
		{"1990_quantity", HeaderQuantity, 1990, "1990_quantity"},
		{"2021_dolars", HeaderDolars, 2021, "2021_dolars"},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			h, err := ParseYearHeader(tt.label)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, h.Kind)
			assert.Equal(t, tt.year, h.Year)
			assert.Equal(t, tt.name, h.Name())
		})
	}

	for _, bad := range []string{"", "199", "19900", "1990.2", "1990_value", "ano 1990", "Id2"} {
		_, err := ParseYearHeader(bad)
		assert.ErrorIs(t, err, ErrUnparseableYear, bad)
	}
}

func TestCorrectColumnNames(t *testing.T) {
	t.Parallel()
	tbl := rawTable(t, []string{"country", "1990", "1990.1", "1991", "1991.1"},
		[]any{"Brasil", 100.0, 1000.0, 5.0, 50.0})

	out, err := CorrectColumnNames(tbl)
	require.NoError(t, err)
	assert.Equal(t, []string{"country", "1990_quantity", "1990_dolars", "1991_quantity", "1991_dolars"}, out.Names())
	assert.Equal(t, "1990.1", tbl.Columns[2].Name, "input is not modified")

	again, err := CorrectColumnNames(out)
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestCorrectColumnNamesErrors(t *testing.T) {
	t.Parallel()
	_, err := CorrectColumnNames(rawTable(t, []string{"country", "1990", "1990.2"}, []any{"Brasil", 1.0, 2.0}))
	require.ErrorIs(t, err, ErrUnparseableYear)

	_, err = CorrectColumnNames(rawTable(t, []string{"1990", "1990_quantity"}, []any{1.0, 2.0}))
	require.ErrorIs(t, err, ErrDuplicateColumn)
}
