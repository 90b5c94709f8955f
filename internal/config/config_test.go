package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wine-trade-pipeline/internal/pipeline"
)

const runFile = `
window_years = 10
logging = true

[[sources]]
path = "data/ExpVinho.csv"
delimiter = ";"

[[sources]]
name = "espumantes"
type = "xlsx"
path = "data/ExpEspumantes.xlsx"
sheet = "Planilha1"

[export]
file = "out.json"
db = "runs.db"

[charts]
y_max = 90000000
y_step = 10000000

[concurrency]
workers = 4
`

func TestDefaultConfig(t *testing.T) {
	t.Parallel()
	spec, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultWindowYears, spec.WindowYears)
	assert.Equal(t, pipeline.DefaultTransformations, spec.Transformations)
	assert.Equal(t, DefaultExportFile, spec.Export.File)
	assert.Equal(t, DefaultTopN, spec.Charts.TopN)
	assert.Equal(t, "5m", spec.Concurrency.JobTimeout)

	// callers may change the copy freely
	spec.Transformations[0] = "x"
	assert.Equal(t, pipeline.TransformNormalizeIndex, pipeline.DefaultTransformations[0])
}

func TestLoadRunFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "run.toml")
	require.NoError(t, os.WriteFile(path, []byte(runFile), 0o644))

	spec, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, Validate(spec))

	assert.Equal(t, 10, spec.WindowYears)
	assert.True(t, spec.Logging)
	require.Len(t, spec.Sources, 2)
	assert.Equal(t, "ExpVinho", spec.Sources[0].Name)
	assert.Equal(t, ";", spec.Sources[0].Delimiter)
	assert.Equal(t, "espumantes", spec.Sources[1].Name)
	assert.Equal(t, "Planilha1", spec.Sources[1].Sheet)

	assert.Equal(t, "out.json", spec.Export.File)
	assert.Equal(t, "runs.db", spec.Export.DB)
	assert.Equal(t, 9e7, spec.Charts.YMax)
	assert.Equal(t, DefaultTopN, spec.Charts.TopN)
	assert.Equal(t, DefaultChartsDir, spec.Charts.Dir)
	assert.Equal(t, 4, spec.Concurrency.Workers)
	assert.Equal(t, DefaultJobTimeout, spec.Concurrency.JobTimeout)
	assert.Equal(t, pipeline.DefaultTransformations, spec.Transformations)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	t.Parallel()
	_, err := Parse([]byte("window = 3\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown keys")
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidate(t *testing.T) {
	t.Parallel()
	spec := DefaultConfig()
	require.Error(t, Validate(spec), "no sources")

	spec, err := Parse([]byte(`
window_years = -1
[[sources]]
name = "a"
type = "parquet"
path = "a.parquet"
[[sources]]
name = "a"
`))
	require.NoError(t, err)
	err = Validate(spec)
	require.ErrorIs(t, err, pipeline.ErrInvalidWindow)
	require.ErrorIs(t, err, pipeline.ErrUnknownSourceType)
	assert.Contains(t, err.Error(), "duplicate name")
	assert.Contains(t, err.Error(), "path is required")
}

func TestValidateJobTimeout(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		timeout string
		valid   bool
	}{
		{"5m", true},
		{"90s", true},
		{"5 minutes", false},
		{"0s", false},
		{"-1m", false},
	} {
		spec, err := Parse([]byte("[[sources]]\npath = \"vinho.csv\"\n[concurrency]\njob_timeout = \"" + tc.timeout + "\"\n"))
		require.NoError(t, err)
		err = Validate(spec)
		if tc.valid {
			assert.NoError(t, err, tc.timeout)
			continue
		}
		require.Error(t, err, tc.timeout)
		assert.Contains(t, err.Error(), "job_timeout", tc.timeout)
	}
}
