package pipeline

import (
	"log"
	"time"

	"wine-trade-pipeline/internal/model"
	"wine-trade-pipeline/internal/store"
)

// Stage names recorded by the tracker
const (
	StageIngestion      = "ingestion"
	StageTransformation = "transformation"
	StageValidation     = "validation"
	StageUnitValue      = "unit_value"
	StageTotals         = "totals"
	StageRatio          = "ratio"
	StageCountryTotals  = "country_totals"
	StageExport         = "export"
	StageCharts         = "charts"
)

// PipelineTracker records stage metrics for one run, both in memory and in
// the run log when a database is configured
type PipelineTracker struct {
	RunID   string
	Metrics *model.RunMetrics
	Verbose bool
}

// StageTimer is a running stage returned by StartStage
type StageTimer struct {
	tracker *PipelineTracker
	metrics model.StageMetrics
}

// NewPipelineTracker creates a new pipeline tracker
func NewPipelineTracker(runID string, verbose bool) *PipelineTracker {
	return &PipelineTracker{
		RunID:   runID,
		Verbose: verbose,
		Metrics: &model.RunMetrics{
			RunID:     runID,
			StartTime: time.Now(),
			Status:    model.StatusRunning,
		},
	}
}

// StartStage marks the start of a pipeline stage for a source
func (pt *PipelineTracker) StartStage(stage, source string, rowsIn int) *StageTimer {
	if pt.Verbose {
		log.Printf("📊 [%s] stage '%s' started (%d rows)", source, stage, rowsIn)
	}
	return &StageTimer{
		tracker: pt,
		metrics: model.StageMetrics{
			StageName: stage,
			Source:    source,
			StartTime: time.Now(),
			RowsIn:    rowsIn,
			Status:    model.StatusRunning,
		},
	}
}

// End closes the stage. A nil table with a nil error records zero output.
func (st *StageTimer) End(out *model.Table, err error) {
	m := st.metrics
	m.EndTime = time.Now()
	m.Duration = m.EndTime.Sub(m.StartTime)
	if out != nil {
		m.RowsOut = out.Len()
		m.ColumnsOut = len(out.Columns)
	}

	m.Status = model.StatusCompleted
	if err != nil {
		m.Status = model.StatusFailed
		m.Error = err.Error()
		log.Printf("❌ [%s] stage '%s' failed: %v", m.Source, m.StageName, err)
	} else if st.tracker.Verbose {
		log.Printf("✅ [%s] stage '%s' completed: %d rows, %d columns in %v",
			m.Source, m.StageName, m.RowsOut, m.ColumnsOut, m.Duration)
	}

	st.tracker.Metrics.AddStage(m)
	if dbErr := store.SaveStageProgress(st.tracker.RunID, m); dbErr != nil {
		log.Printf("⚠️ failed to save stage progress: %v", dbErr)
	}
}

// RecordError stores an error in the run log
func (pt *PipelineTracker) RecordError(err error) {
	if dbErr := store.SaveRunError(pt.RunID, err); dbErr != nil {
		log.Printf("⚠️ failed to save run error: %v", dbErr)
	}
}

// Complete marks the pipeline as completed
func (pt *PipelineTracker) Complete() {
	pt.Metrics.SetStatus(model.StatusCompleted)
	pt.saveStatus(model.StatusCompleted)
	log.Printf("📊 Run %s completed in %v: %d stages, %d exports, %d charts",
		pt.RunID, pt.Metrics.EndTime.Sub(pt.Metrics.StartTime),
		len(pt.Metrics.Stages), len(pt.Metrics.Exports), len(pt.Metrics.Charts))
}

// Fail marks the pipeline as failed
func (pt *PipelineTracker) Fail(err error) {
	pt.Metrics.SetStatus(model.StatusFailed)
	pt.saveStatus(model.StatusFailed)
	pt.RecordError(err)
	log.Printf("❌ Run %s failed after %v: %v", pt.RunID, pt.Metrics.EndTime.Sub(pt.Metrics.StartTime), err)
}

func (pt *PipelineTracker) saveStatus(status string) {
	if err := store.UpdateRunStatus(pt.RunID, status); err != nil {
		log.Printf("⚠️ failed to update run status: %v", err)
	}
}
