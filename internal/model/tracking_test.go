package model

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunMetrics(t *testing.T) {
	t.Parallel()
	m := &RunMetrics{RunID: "run-1", Status: StatusRunning}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.AddStage(StageMetrics{StageName: "ingestion"})
			m.AddChart("chart.png")
		}()
	}
	wg.Wait()
	m.AddExports(ExportResult{Type: "csv", Success: true}, ExportResult{Type: "database"})

	assert.Len(t, m.Stages, 8)
	assert.Len(t, m.Charts, 8)
	assert.Len(t, m.Exports, 2)

	m.SetStatus(StatusRunning)
	assert.True(t, m.EndTime.IsZero())
	m.SetStatus(StatusCompleted)
	assert.False(t, m.EndTime.IsZero())
}
