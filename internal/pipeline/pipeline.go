package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"wine-trade-pipeline/internal/chart"
	"wine-trade-pipeline/internal/model"
	"wine-trade-pipeline/internal/store"
	"wine-trade-pipeline/pkg/utils"
)

// Names of the derived tables, prefixed with the source name on export
const (
	TableClean         = "clean"
	TableUnitValue     = "unit_value"
	TableTotals        = "totals"
	TableCountryTotals = "country_totals"
)

// SourceResult holds every table derived from one source
type SourceResult struct {
	Source        model.Source
	Clean         *model.Table // normalized, canonical countries, year window
	UnitValue     *model.Table // value per unit, country x year
	Totals        *model.Table // yearly totals with dolar per quantity
	CountryTotals *model.Table // quantity and dolars per country
	Charts        []string
	Err           error
}

// Tables lists the derived tables under their export names
func (sr SourceResult) Tables() []NamedTable {
	var tables []NamedTable
	add := func(kind string, t *model.Table) {
		if t != nil {
			tables = append(tables, NamedTable{Name: sr.Source.Name + "_" + kind, Table: t})
		}
	}
	add(TableClean, sr.Clean)
	add(TableUnitValue, sr.UnitValue)
	add(TableTotals, sr.Totals)
	add(TableCountryTotals, sr.CountryTotals)
	return tables
}

// RunResult is the outcome of a pipeline run
type RunResult struct {
	RunID   string
	Metrics *model.RunMetrics
	Sources []SourceResult
}

// ------------------- Pipeline Runner -------------------

// Run loads every source, cleans it, derives the metric tables, exports them
// and renders the charts. A failing source does not stop the others; the
// returned error joins every source failure.
func Run(ctx context.Context, runID string, job model.PipelineJobSpec) (result *RunResult, err error) {
	start := time.Now()
	log.Printf("🚀 Starting pipeline for run: %s", runID)

	if err := store.SaveRun(runID, job); err != nil {
		log.Printf("⚠️ failed to save run: %v", err)
	}
	tracker := NewPipelineTracker(runID, job.Logging)
	if err := store.UpdateRunStatus(runID, model.StatusRunning); err != nil {
		log.Printf("⚠️ failed to update run status: %v", err)
	}

	// Defer function to handle status updates on completion/error
	defer func() {
		if err != nil {
			tracker.Fail(err)
			return
		}
		tracker.Complete()
	}()

	ctx, cancel := context.WithTimeout(ctx, utils.ParseDuration(job.Concurrency.JobTimeout))
	defer cancel()

	names, err := loadCountryNamesFile(job.CountryNames)
	if err != nil {
		return nil, err
	}
	opts := TransformOptions{
		WindowYears:  job.WindowYears,
		CountryNames: names,
	}
	transformations := job.Transformations
	if len(transformations) == 0 {
		transformations = DefaultTransformations
	}

	result = &RunResult{RunID: runID, Metrics: tracker.Metrics}

	// --- INGESTION STAGE ---
	log.Printf("📥 Loading %d sources with %d workers", len(job.Sources), job.Concurrency.Workers)
	loaded := LoadSources(ctx, job.Sources, job.Concurrency.Workers)

	var errs []error
	for _, ls := range loaded {
		sr := SourceResult{Source: ls.Source}

		stage := tracker.StartStage(StageIngestion, ls.Source.Name, 0)
		stage.End(ls.Table, ls.Err)

		if ls.Err == nil {
			sr = processSource(ctx, tracker, ls, transformations, opts)
		} else {
			sr.Err = ls.Err
		}
		if sr.Err != nil {
			sr.Err = fmt.Errorf("source %s: %w", ls.Source.Name, sr.Err)
			errs = append(errs, sr.Err)
		}
		result.Sources = append(result.Sources, sr)
	}

	// --- EXPORT STAGE ---
	var tables []NamedTable
	for _, sr := range result.Sources {
		tables = append(tables, sr.Tables()...)
	}
	if len(tables) > 0 {
		log.Printf("💾 Starting export of %d tables...", len(tables))
		stage := tracker.StartStage(StageExport, "", len(tables))
		exports := ExportTables(ctx, runID, tables, job.Export)
		tracker.Metrics.AddExports(exports...)
		stage.End(nil, exportError(exports))
	}

	// --- CHART STAGE ---
	if job.Charts != nil {
		for i := range result.Sources {
			sr := &result.Sources[i]
			if sr.Err != nil {
				continue
			}
			sr.Charts = renderCharts(tracker, *sr, job.Charts)
		}
	}

	log.Printf("🏁 Pipeline finished for run: %s in %v", runID, time.Since(start))
	return result, errors.Join(errs...)
}

// processSource runs the cleaning chain and the metric stages on one table
func processSource(ctx context.Context, tracker *PipelineTracker, ls LoadedSource, transformations []string, opts TransformOptions) SourceResult {
	sr := SourceResult{Source: ls.Source}
	name := ls.Source.Name

	step := func(stageName string, in *model.Table, fn func() (*model.Table, error)) (*model.Table, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stage := tracker.StartStage(stageName, name, in.Len())
		out, err := fn()
		stage.End(out, err)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", stageName, err)
		}
		return out, nil
	}

	clean, err := step(StageTransformation, ls.Table, func() (*model.Table, error) {
		return ApplyTransformations(ls.Table, transformations, opts)
	})
	if err != nil {
		sr.Err = err
		return sr
	}
	if _, err = step(StageValidation, clean, func() (*model.Table, error) {
		return clean, ValidateTable(clean, DefaultValidationRules)
	}); err != nil {
		sr.Err = err
		return sr
	}
	sr.Clean = clean

	if sr.UnitValue, err = step(StageUnitValue, clean, func() (*model.Table, error) {
		return YearUnitValue(clean)
	}); err != nil {
		sr.Err = err
		return sr
	}

	totals, err := step(StageTotals, clean, func() (*model.Table, error) {
		return TransformQuantityDolar(clean, name)
	})
	if err != nil {
		sr.Err = err
		return sr
	}
	if sr.Totals, err = step(StageRatio, totals, func() (*model.Table, error) {
		return DolarPerQuantity(totals, name)
	}); err != nil {
		sr.Err = err
		return sr
	}

	if sr.CountryTotals, err = step(StageCountryTotals, clean, func() (*model.Table, error) {
		return SumCountries(clean)
	}); err != nil {
		sr.Err = err
		return sr
	}

	log.Printf("✅ [%s] %d countries, %d year columns", name, clean.Len(), len(sr.UnitValue.Columns))
	return sr
}

// loadCountryNamesFile returns the built-in lookup merged with an optional csv file
func loadCountryNamesFile(path string) (map[string]string, error) {
	names := CanonicalCountryNames()
	if path == "" {
		return names, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("country names: %w", err)
	}
	defer file.Close()

	extra, err := LoadCountryNames(file)
	if err != nil {
		return nil, fmt.Errorf("country names %s: %w", path, err)
	}
	return MergeCountryNames(names, extra), nil
}

// renderCharts draws the unit value and the quantity chart of one source.
// Chart failures are recorded but do not fail the run.
func renderCharts(tracker *PipelineTracker, sr SourceResult, cfg *model.Charts) []string {
	format := strings.TrimPrefix(strings.ToLower(cfg.Format), ".")
	if format == "" {
		format = "png"
	}
	name := sr.Source.Name

	var paths []string
	draw := func(kind string, t *model.Table, spec chart.Spec) {
		path := filepath.Join(cfg.Dir, fmt.Sprintf("%s_%s.%s", name, kind, format))
		stage := tracker.StartStage(StageCharts, name, t.Len())
		plotted, err := chart.PlotTopCountries(t, spec, path)
		stage.End(nil, err)
		if err != nil {
			tracker.RecordError(fmt.Errorf("source %s: chart %s: %w", name, kind, err))
			return
		}
		log.Printf("📈 [%s] %s chart saved to %s (%s)", name, kind, path, strings.Join(plotted, ", "))
		tracker.Metrics.AddChart(path)
		paths = append(paths, path)
	}

	// The unit value chart keeps its fixed axis; only ranking options apply.
	unit := chart.UnitValueSpec().Apply(&model.Charts{TopN: cfg.TopN, RankYear: cfg.RankYear})
	draw(TableUnitValue, sr.UnitValue, unit)

	quantity, err := YearQuantity(sr.Clean)
	if err != nil {
		tracker.RecordError(fmt.Errorf("source %s: quantity chart: %w", name, err))
		return paths
	}
	draw("quantity", quantity, chart.QuantitySpec().Apply(cfg))
	return paths
}

func exportError(results []model.ExportResult) error {
	var errs []error
	for _, r := range results {
		if !r.Success {
			errs = append(errs, fmt.Errorf("%s export to %s: %s", r.Type, r.Path, r.Error))
		}
	}
	return errors.Join(errs...)
}
