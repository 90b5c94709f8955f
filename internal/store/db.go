package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"wine-trade-pipeline/internal/model"
)

var db *sql.DB

// RunSummary is one row of the runs table
type RunSummary struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Initialize DB connection
func InitDB(dbPath string) error {
	if dbPath == "" {
		return errors.New("store: path is required")
	}
	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return err
	}
	conn.SetMaxOpenConns(1)

	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			spec TEXT,
			status TEXT,
			created_at DATETIME,
			updated_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS run_errors (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT,
			error_message TEXT,
			created_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS stage_progress (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT,
			source TEXT,
			stage TEXT,
			status TEXT,
			rows_in INTEGER,
			rows_out INTEGER,
			columns_out INTEGER,
			duration_ms INTEGER,
			error_message TEXT,
			started_at DATETIME,
			ended_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS derived_tables (
			run_id TEXT NOT NULL,
			table_name TEXT NOT NULL,
			row_pos INTEGER NOT NULL,
			row_key TEXT NOT NULL,
			index_name TEXT NOT NULL,
			col_pos INTEGER NOT NULL,
			column_name TEXT NOT NULL,
			value REAL,
			text_value TEXT,
			PRIMARY KEY (run_id, table_name, row_pos, col_pos)
		);`,
	}
	for _, statement := range statements {
		if _, err := conn.Exec(statement); err != nil {
			_ = conn.Close()
			return err
		}
	}

	db = conn
	return nil
}

// Enabled reports whether a database is open
func Enabled() bool {
	return db != nil
}

// Close closes the database; it is safe to call without InitDB
func Close() error {
	if db == nil {
		return nil
	}
	err := db.Close()
	db = nil
	return err
}

// SaveRun stores a new pipeline run
func SaveRun(runID string, spec model.PipelineJobSpec) error {
	if db == nil {
		return nil
	}
	specJSON, err := json.Marshal(spec)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = db.Exec(`INSERT INTO runs (id, spec, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		runID, string(specJSON), model.StatusPending, now, now)
	return err
}

// UpdateRunStatus updates run status
func UpdateRunStatus(runID string, status string) error {
	if db == nil {
		return nil
	}
	now := time.Now().UTC()
	_, err := db.Exec(`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`, status, now, runID)
	return err
}

// SaveRunError records an error for a run
func SaveRunError(runID string, err error) error {
	if db == nil || err == nil {
		return nil
	}
	now := time.Now().UTC()
	_, e := db.Exec(`INSERT INTO run_errors (run_id, error_message, created_at) VALUES (?, ?, ?)`,
		runID, err.Error(), now)
	return e
}

// GetRunErrors returns the recorded error messages of a run, oldest first
func GetRunErrors(runID string) ([]string, error) {
	if db == nil {
		return nil, nil
	}
	rows, err := db.Query(`SELECT error_message FROM run_errors WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []string
	for rows.Next() {
		var msg string
		if err := rows.Scan(&msg); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// SaveStageProgress records a finished stage
func SaveStageProgress(runID string, stage model.StageMetrics) error {
	if db == nil {
		return nil
	}
	_, err := db.Exec(`INSERT INTO stage_progress
		(run_id, source, stage, status, rows_in, rows_out, columns_out, duration_ms, error_message, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, stage.Source, stage.StageName, stage.Status, stage.RowsIn, stage.RowsOut, stage.ColumnsOut,
		stage.Duration.Milliseconds(), stage.Error, stage.StartTime.UTC(), stage.EndTime.UTC())
	return err
}

// CountStages returns how many stages were recorded for a run
func CountStages(runID string) (int, error) {
	if db == nil {
		return 0, nil
	}
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM stage_progress WHERE run_id = ?`, runID).Scan(&n)
	return n, err
}

// SaveTable writes a derived table in long form, one row per cell, and
// returns the number of table rows written. Saving the same name again
// replaces the previous copy.
func SaveTable(runID, name string, t *model.Table) (count int, err error) {
	if db == nil {
		return 0, nil
	}

	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.Exec(`DELETE FROM derived_tables WHERE run_id = ? AND table_name = ?`, runID, name); err != nil {
		return 0, err
	}

	stmt, err := tx.Prepare(`INSERT INTO derived_tables
		(run_id, table_name, row_pos, row_key, index_name, col_pos, column_name, value, text_value)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for row, key := range t.Index {
		for col, c := range t.Columns {
			var value, text any
			if c.IsNumeric() {
				if v := c.Values[row]; !math.IsNaN(v) && !math.IsInf(v, 0) {
					value = v
				}
			} else {
				text = c.Text[row]
			}
			if _, err = stmt.Exec(runID, name, row, key, t.IndexName, col, c.Name, value, text); err != nil {
				return 0, fmt.Errorf("save %s row %d: %w", name, row, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return t.Len(), nil
}

// LoadTable reads back a table written by SaveTable
func LoadTable(runID, name string) (*model.Table, error) {
	if db == nil {
		return nil, errors.New("store: database not initialised")
	}
	rows, err := db.Query(`SELECT row_pos, row_key, index_name, col_pos, column_name, value, text_value
		FROM derived_tables WHERE run_id = ? AND table_name = ?
		ORDER BY col_pos, row_pos`, runID, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		indexName string
		index     []string
		columns   []*model.Column
	)
	for rows.Next() {
		var (
			rowPos, colPos int
			rowKey, colName string
			value           sql.NullFloat64
			text            sql.NullString
		)
		if err := rows.Scan(&rowPos, &rowKey, &indexName, &colPos, &colName, &value, &text); err != nil {
			return nil, err
		}
		if colPos == 0 {
			index = append(index, rowKey)
		}
		if colPos == len(columns) {
			columns = append(columns, &model.Column{Name: colName})
		}
		c := columns[colPos]
		if text.Valid {
			c.Text = append(c.Text, text.String)
			continue
		}
		if value.Valid {
			c.Values = append(c.Values, value.Float64)
		} else {
			c.Values = append(c.Values, math.NaN())
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, sql.ErrNoRows
	}

	table := model.NewTable(indexName, index)
	table.Columns = columns
	return table, table.Validate()
}

// ListRuns returns all runs with basic info
func ListRuns() ([]RunSummary, error) {
	if db == nil {
		return nil, nil
	}
	rows, err := db.Query(`SELECT id, status, created_at, updated_at FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var run RunSummary
		if err := rows.Scan(&run.ID, &run.Status, &run.CreatedAt, &run.UpdatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
