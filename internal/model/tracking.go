package model

import (
	"sync"
	"time"
)

// Run statuses
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// StageMetrics represents metrics for a specific pipeline stage of one source
type StageMetrics struct {
	StageName  string        `json:"stage_name"`
	Source     string        `json:"source"`
	StartTime  time.Time     `json:"start_time"`
	EndTime    time.Time     `json:"end_time"`
	Duration   time.Duration `json:"duration"`
	RowsIn     int           `json:"rows_in"`
	RowsOut    int           `json:"rows_out"`
	ColumnsOut int           `json:"columns_out"`
	Status     string        `json:"status"`
	Error      string        `json:"error,omitempty"`
}

// RunMetrics tracks one pipeline run
type RunMetrics struct {
	RunID     string         `json:"run_id"`
	StartTime time.Time      `json:"start_time"`
	EndTime   time.Time      `json:"end_time"`
	Status    string         `json:"status"`
	Stages    []StageMetrics `json:"stages"`
	Exports   []ExportResult `json:"exports"`
	Charts    []string       `json:"charts"`

	mu sync.Mutex
}

// AddStage appends a finished stage
func (m *RunMetrics) AddStage(stage StageMetrics) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Stages = append(m.Stages, stage)
}

// AddExports appends export results
func (m *RunMetrics) AddExports(results ...ExportResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Exports = append(m.Exports, results...)
}

// AddChart records a rendered chart path
func (m *RunMetrics) AddChart(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Charts = append(m.Charts, path)
}

// SetStatus updates the run status and closes the run when it is terminal
func (m *RunMetrics) SetStatus(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Status = status
	if status == StatusCompleted || status == StatusFailed {
		m.EndTime = time.Now()
	}
}
