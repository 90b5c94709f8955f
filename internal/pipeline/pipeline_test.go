package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wine-trade-pipeline/internal/model"
	"wine-trade-pipeline/internal/store"
)

const vinhoCSV = "Id;País;1989;1989;1990;1990;1991;1991\n" +
	"1;Alemanha;1;1;10;20;10;30\n" +
	"2;Brasil;5;5;100;1000;200;1000\n" +
	"3;Chile;0;0;0;0;4;8\n" +
	"4;Italia;9;9;50;100;25;75\n" +
	"5;Russia;1;1;10;30;5;10\n" +
	"6;Republica Federativa da Russia;1;1;0;7;5;20\n"

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRun(t *testing.T) {
	require.NoError(t, store.InitDB(":memory:"))
	t.Cleanup(func() { _ = store.Close() })

	dir := t.TempDir()
	job := model.PipelineJobSpec{
		Sources: []model.Source{
			{Name: "vinho", Path: writeSource(t, dir, "ExpVinho.csv", vinhoCSV)},
		},
		WindowYears: 2,
		Export: &model.Export{
			File: filepath.Join(dir, "out", "trade.xlsx"),
			DB:   ":memory:",
		},
		Charts: &model.Charts{
			Dir:    filepath.Join(dir, "out", "charts"),
			Format: "svg",
			TopN:   3,
		},
		Concurrency: model.ConcurrencyConfig{Workers: 1, JobTimeout: "1m"},
		Logging:     true,
	}

	result, err := Run(context.Background(), "run-ok", job)
	require.NoError(t, err)
	require.Len(t, result.Sources, 1)
	sr := result.Sources[0]
	require.NoError(t, sr.Err)

	assert.Equal(t, []string{"Alemanha", "Brasil", "Chile", "Itália", "Rússia", "Rússia"}, sr.Clean.Index)
	assert.Equal(t, []string{"1990_quantity", "1990_dolars", "1991_quantity", "1991_dolars"}, sr.Clean.Names())

	brasil, _ := sr.UnitValue.Column("1990")
	assert.Equal(t, 10.0, brasil.Values[1])

	assert.Equal(t, []string{"1990", "1991"}, sr.Totals.Index)
	ratio, ok := sr.Totals.Column("vinho_dolar_per_quantity")
	require.True(t, ok)
	assert.Equal(t, []float64{6.806, 4.59}, ratio.Values)

	assert.Equal(t, []string{"Alemanha", "Brasil", "Chile", "Itália", "Rússia"}, sr.CountryTotals.Index)

	require.Len(t, sr.Charts, 2)
	for _, path := range sr.Charts {
		assert.FileExists(t, path)
	}
	assert.FileExists(t, job.Export.File)

	assert.Equal(t, model.StatusCompleted, result.Metrics.Status)
	require.Len(t, result.Metrics.Exports, 2)
	for _, e := range result.Metrics.Exports {
		assert.True(t, e.Success, e.Error)
	}

	runs, err := store.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.StatusCompleted, runs[0].Status)

	var stageNames []string
	for _, m := range result.Metrics.Stages {
		stageNames = append(stageNames, m.StageName)
	}
	assert.Equal(t, []string{
		StageIngestion, StageTransformation, StageValidation, StageUnitValue,
		StageTotals, StageRatio, StageCountryTotals, StageExport, StageCharts, StageCharts,
	}, stageNames)

	stages, err := store.CountStages("run-ok")
	require.NoError(t, err)
	assert.Equal(t, len(result.Metrics.Stages), stages)

	saved, err := store.LoadTable("run-ok", "vinho_country_totals")
	require.NoError(t, err)
	assert.Equal(t, sr.CountryTotals.Index, saved.Index)
}

func TestRunSourceFailure(t *testing.T) {
	dir := t.TempDir()
	broken := "Id;País;1990;1990.2\n1;Brasil;1;2\n"
	job := model.PipelineJobSpec{
		Sources: []model.Source{
			{Name: "vinho", Path: writeSource(t, dir, "ExpVinho.csv", vinhoCSV)},
			{Name: "broken", Path: writeSource(t, dir, "broken.csv", broken)},
		},
		WindowYears: 15,
		Export:      &model.Export{File: filepath.Join(dir, "trade.json")},
		Concurrency: model.ConcurrencyConfig{Workers: 2},
	}

	result, err := Run(context.Background(), "run-partial", job)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrUnparseableYear)
	assert.Contains(t, err.Error(), "source broken")

	require.Len(t, result.Sources, 2)
	assert.NoError(t, result.Sources[0].Err)
	assert.NotNil(t, result.Sources[0].Totals)
	assert.Error(t, result.Sources[1].Err)
	assert.Nil(t, result.Sources[1].Clean)

	assert.Equal(t, model.StatusFailed, result.Metrics.Status)
	assert.FileExists(t, job.Export.File, "healthy sources are still exported")
}

func TestRunUnknownCountryNamesFile(t *testing.T) {
	job := model.PipelineJobSpec{CountryNames: filepath.Join(t.TempDir(), "missing.csv")}
	_, err := Run(context.Background(), "run-names", job)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestRunRejectsNonNumericYear(t *testing.T) {
	dir := t.TempDir()
	source := "Id;País;1990;1990;1991;1991\n" +
		"1;Brasil;100;1000;200;1000\n" +
		"2;Chile;5;50;4;n/d\n"
	job := model.PipelineJobSpec{
		Sources:     []model.Source{{Name: "vinho", Path: writeSource(t, dir, "vinho.csv", source)}},
		WindowYears: 15,
	}

	result, err := Run(context.Background(), "run-nd", job)
	require.ErrorIs(t, err, ErrNonNumericValue)
	assert.Contains(t, err.Error(), "1991_dolars")
	require.Len(t, result.Sources, 1)
	assert.Nil(t, result.Sources[0].Clean)
	assert.Nil(t, result.Sources[0].Totals)
}

func TestLoadCountryNamesFile(t *testing.T) {
	builtin, err := loadCountryNamesFile("")
	require.NoError(t, err)
	assert.Equal(t, CanonicalCountryNames(), builtin)

	path := writeSource(t, t.TempDir(), "names.csv", "name,canonical\nHolanda,Países Baixos\n")
	merged, err := loadCountryNamesFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Países Baixos", merged["Holanda"])
	assert.Equal(t, "Rússia", merged["Russia"])
}
