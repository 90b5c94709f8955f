package pipeline

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"wine-trade-pipeline/internal/model"
)

const exportCSV = "\ufeffId;País;1990;1990;1991;1991\n" +
	"1;Afeganistão;0;0;11;46\n" +
	"2;\"Alemanha, República Democrática\";100;1000;-;\n" +
	"3;Russia;30;90;5;20\n"

func TestLoadCSV(t *testing.T) {
	t.Parallel()
	tbl, err := LoadCSV(strings.NewReader(exportCSV), "", "")
	require.NoError(t, err)

	assert.Equal(t, "Id", tbl.IndexName)
	assert.Equal(t, []string{"1", "2", "3"}, tbl.Index)
	assert.Equal(t, []string{"País", "1990", "1990.1", "1991", "1991.1"}, tbl.Names())

	pais, _ := tbl.Column("País")
	assert.False(t, pais.IsNumeric())
	assert.Equal(t, "Alemanha, República Democrática", pais.Text[1])

	y1991, _ := tbl.Column("1991")
	require.True(t, y1991.IsNumeric())
	assert.Equal(t, 11.0, y1991.Values[0])
	assert.True(t, math.IsNaN(y1991.Values[1]))
}

func TestLoadCSVOptions(t *testing.T) {
	t.Parallel()
	tbl, err := LoadCSV(strings.NewReader("country,1990,1990\nBrasil,1,2\n"), ",", "country")
	require.NoError(t, err)
	assert.Equal(t, "country", tbl.IndexName)
	assert.Equal(t, []string{"Brasil"}, tbl.Index)

	tabbed, err := LoadCSV(strings.NewReader("País\t1990\nChile\t3\n"), "", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"1990"}, tabbed.Names())

	_, err = LoadCSV(strings.NewReader("a;b\n1;2\n"), "", "missing")
	require.ErrorIs(t, err, ErrMissingColumn)

	_, err = LoadCSV(strings.NewReader(""), "", "")
	require.Error(t, err)
}

func TestDisambiguateHeaders(t *testing.T) {
	t.Parallel()
	assert.Equal(t,
		[]string{"País", "1990", "1990.1", "1990.2", "1991"},
		disambiguateHeaders([]string{"País", "1990", "1990", "1990", "1991"}))
}

func writeWorkbook(t *testing.T, sheet string, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	if sheet != "Sheet1" {
		require.NoError(t, f.SetSheetName("Sheet1", sheet))
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow(sheet, cell, &r))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestLoadXLSX(t *testing.T) {
	t.Parallel()
	data := writeWorkbook(t, "Exportação", [][]any{
		{"Id", "País", "1990", "1990"},
		{1, "Brasil", 100, 1000},
		{2, "Chile", 20, 50},
	})

	tbl, err := LoadXLSX(bytes.NewReader(data), "", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, tbl.Index)
	assert.Equal(t, []string{"País", "1990", "1990.1"}, tbl.Names())
	d, _ := tbl.Column("1990.1")
	assert.Equal(t, []float64{1000, 50}, d.Values)

	_, err = LoadXLSX(bytes.NewReader(data), "Missing", "")
	require.Error(t, err)
}

func TestLoadSources(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "ExpVinho.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(exportCSV), 0o644))
	xlsxPath := filepath.Join(dir, "ExpSuco.xlsx")
	require.NoError(t, os.WriteFile(xlsxPath, writeWorkbook(t, "Sheet1", [][]any{
		{"Id", "País", "1990", "1990"},
		{1, "Brasil", 1, 2},
	}), 0o644))

	sources := []model.Source{
		{Name: "vinho", Path: csvPath},
		{Name: "suco", Path: xlsxPath},
		{Name: "missing", Path: filepath.Join(dir, "nope.csv")},
		{Name: "parquet", Type: "parquet", Path: csvPath},
	}
	results := LoadSources(context.Background(), sources, 2)
	require.Len(t, results, 4)

	require.NoError(t, results[0].Err)
	assert.Equal(t, 3, results[0].Table.Len())
	require.NoError(t, results[1].Err)
	assert.Equal(t, 1, results[1].Table.Len())
	assert.ErrorIs(t, results[2].Err, os.ErrNotExist)
	assert.ErrorIs(t, results[3].Err, ErrUnknownSourceType)
	for i, r := range results {
		assert.Equal(t, sources[i].Name, r.Source.Name)
	}
}

func TestLoadSourcesCancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := LoadSources(ctx, []model.Source{{Name: "vinho", Path: "x.csv"}}, 1)
	require.ErrorIs(t, results[0].Err, context.Canceled)
}
