package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"wine-trade-pipeline/internal/model"
	"wine-trade-pipeline/internal/pipeline"
)

// Defaults
const (
	DefaultWindowYears = 15
	DefaultWorkers     = 2
	DefaultJobTimeout  = "5m"
	DefaultExportFile  = "trade_tables.xlsx"
	DefaultChartsDir   = "charts"
	DefaultChartFormat = "png"
	DefaultTopN        = 5
)

// DefaultConfig returns the run spec used when no file is given
func DefaultConfig() *model.PipelineJobSpec {
	return &model.PipelineJobSpec{
		Transformations: append([]string{}, pipeline.DefaultTransformations...),
		WindowYears:     DefaultWindowYears,
		Export: &model.Export{
			File: DefaultExportFile,
		},
		Charts: &model.Charts{
			Dir:    DefaultChartsDir,
			Format: DefaultChartFormat,
			TopN:   DefaultTopN,
		},
		Concurrency: model.ConcurrencyConfig{
			Workers:    DefaultWorkers,
			JobTimeout: DefaultJobTimeout,
		},
	}
}

// Load reads a TOML run file on top of the defaults. An empty path returns
// the defaults. Unknown keys are rejected.
func Load(path string) (*model.PipelineJobSpec, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	spec, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return spec, nil
}

// Parse decodes a TOML run spec and fills in missing values
func Parse(data []byte) (*model.PipelineJobSpec, error) {
	spec := &model.PipelineJobSpec{}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(spec); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("unknown keys:\n%s", strict.String())
		}
		return nil, err
	}
	applyDefaults(spec)
	return spec, nil
}

func applyDefaults(spec *model.PipelineJobSpec) {
	def := DefaultConfig()
	if len(spec.Transformations) == 0 {
		spec.Transformations = def.Transformations
	}
	if spec.WindowYears == 0 {
		spec.WindowYears = def.WindowYears
	}
	if spec.Export == nil {
		spec.Export = def.Export
	}
	if spec.Charts == nil {
		spec.Charts = def.Charts
	} else {
		if spec.Charts.Dir == "" {
			spec.Charts.Dir = DefaultChartsDir
		}
		if spec.Charts.Format == "" {
			spec.Charts.Format = DefaultChartFormat
		}
		if spec.Charts.TopN == 0 {
			spec.Charts.TopN = DefaultTopN
		}
	}
	if spec.Concurrency.Workers == 0 {
		spec.Concurrency.Workers = DefaultWorkers
	}
	if spec.Concurrency.JobTimeout == "" {
		spec.Concurrency.JobTimeout = DefaultJobTimeout
	}
	for i := range spec.Sources {
		if s := &spec.Sources[i]; s.Name == "" && s.Path != "" {
			base := filepath.Base(s.Path)
			s.Name = strings.TrimSuffix(base, filepath.Ext(base))
		}
	}
}

// Validate reports every problem that would stop a run
func Validate(spec *model.PipelineJobSpec) error {
	var errs []error
	if len(spec.Sources) == 0 {
		errs = append(errs, errors.New("at least one source is required"))
	}
	names := make(map[string]bool)
	for i, s := range spec.Sources {
		if s.Path == "" {
			errs = append(errs, fmt.Errorf("source %d: path is required", i))
		}
		if names[s.Name] {
			errs = append(errs, fmt.Errorf("source %d: duplicate name %q", i, s.Name))
		}
		names[s.Name] = true
		switch strings.ToLower(s.Type) {
		case "", "csv", "xlsx":
		default:
			errs = append(errs, fmt.Errorf("source %d: %w: %s", i, pipeline.ErrUnknownSourceType, s.Type))
		}
	}
	if spec.WindowYears <= 0 {
		errs = append(errs, fmt.Errorf("%w: window_years = %d", pipeline.ErrInvalidWindow, spec.WindowYears))
	}
	if spec.Concurrency.JobTimeout != "" {
		if d, err := time.ParseDuration(spec.Concurrency.JobTimeout); err != nil {
			errs = append(errs, fmt.Errorf("concurrency: job_timeout: %w", err))
		} else if d <= 0 {
			errs = append(errs, fmt.Errorf("concurrency: job_timeout must be positive, got %s", spec.Concurrency.JobTimeout))
		}
	}
	if spec.Charts != nil && spec.Charts.YStep < 0 {
		errs = append(errs, fmt.Errorf("charts: y_step must not be negative"))
	}
	return errors.Join(errs...)
}
