package pipeline

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"wine-trade-pipeline/internal/model"
	"wine-trade-pipeline/internal/store"
)

// NamedTable is a derived table ready for export
type NamedTable struct {
	Name  string
	Table *model.Table
}

// ExportManager handles data export operations
type ExportManager struct {
	RunID      string
	ExportSpec *model.Export
	Results    []model.ExportResult
}

// ExportTables writes the tables to every destination of the export spec:
// the file (csv, json or xlsx by extension) and the sqlite run log. A nil
// spec exports nothing.
func ExportTables(ctx context.Context, runID string, tables []NamedTable, spec *model.Export) []model.ExportResult {
	if spec == nil || (spec.File == "" && spec.DB == "") {
		log.Printf("💾 Export: %d tables derived (no export configured)", len(tables))
		return nil
	}

	em := &ExportManager{
		RunID:      runID,
		ExportSpec: spec,
	}

	if spec.File != "" {
		em.Results = append(em.Results, em.exportToFile(ctx, tables))
	}
	if spec.DB != "" {
		em.Results = append(em.Results, em.exportToDatabase(ctx, tables))
	}
	return em.Results
}

// exportToFile exports tables to a file (CSV, JSON or XLSX)
func (em *ExportManager) exportToFile(ctx context.Context, tables []NamedTable) model.ExportResult {
	path := em.ExportSpec.File
	ext := strings.ToLower(filepath.Ext(path))

	var (
		err         error
		recordCount int
		kind        string
	)

	if err = os.MkdirAll(filepath.Dir(path), 0755); err == nil {
		switch ext {
		case ".json":
			kind = "json"
			recordCount, err = em.exportToJSON(ctx, path, tables)
		case ".xlsx":
			kind = "xlsx"
			recordCount, err = em.exportToXLSX(ctx, path, tables)
		default:
			// Default to CSV if no extension or unknown extension
			kind = "csv"
			recordCount, err = em.exportToCSV(ctx, path, tables)
		}
	} else {
		err = fmt.Errorf("failed to create directory: %w", err)
	}

	result := model.ExportResult{
		Type:        kind,
		Path:        path,
		RecordCount: recordCount,
		Success:     err == nil,
		Timestamp:   time.Now(),
	}
	if err != nil {
		result.Error = err.Error()
		log.Printf("❌ Export to file failed: %v", err)
	} else {
		log.Printf("✅ Export to file successful: %d rows exported to %s", recordCount, path)
	}
	return result
}

// csvTablePath gives each table its own file next to the configured one:
// out/trade.csv -> out/trade_vinho_unit_value.csv
func csvTablePath(path, table string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		ext = ".csv"
	}
	return strings.TrimSuffix(path, filepath.Ext(path)) + "_" + table + ext
}

// exportToCSV writes one CSV file per table
func (em *ExportManager) exportToCSV(ctx context.Context, path string, tables []NamedTable) (int, error) {
	recordCount := 0
	for _, nt := range tables {
		if err := ctx.Err(); err != nil {
			return recordCount, err
		}
		n, err := writeTableCSV(csvTablePath(path, nt.Name), nt.Table)
		recordCount += n
		if err != nil {
			return recordCount, fmt.Errorf("table %s: %w", nt.Name, err)
		}
	}
	return recordCount, nil
}

func writeTableCSV(path string, t *model.Table) (int, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	header := append([]string{t.IndexName}, t.Names()...)
	if err := writer.Write(header); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}

	recordCount := 0
	for row, key := range t.Index {
		record := make([]string, 0, len(header))
		record = append(record, key)
		for _, c := range t.Columns {
			record = append(record, c.Cell(row))
		}
		if err := writer.Write(record); err != nil {
			return recordCount, fmt.Errorf("failed to write row: %w", err)
		}
		recordCount++
	}

	writer.Flush()
	return recordCount, writer.Error()
}

// tableJSON is the JSON layout of one exported table; missing numbers are null
type tableJSON struct {
	IndexName string   `json:"index_name"`
	Columns   []string `json:"columns"`
	Rows      [][]any  `json:"rows"`
}

func toTableJSON(t *model.Table) tableJSON {
	out := tableJSON{
		IndexName: t.IndexName,
		Columns:   t.Names(),
		Rows:      make([][]any, t.Len()),
	}
	for row, key := range t.Index {
		values := make([]any, 0, len(t.Columns)+1)
		values = append(values, key)
		for _, c := range t.Columns {
			values = append(values, cellValue(c, row))
		}
		out.Rows[row] = values
	}
	return out
}

// cellValue returns the cell as a string, a float or nil when missing
func cellValue(c *model.Column, row int) any {
	if !c.IsNumeric() {
		return c.Text[row]
	}
	v := c.Values[row]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

// exportToJSON exports every table to a single JSON document
func (em *ExportManager) exportToJSON(ctx context.Context, path string, tables []NamedTable) (int, error) {
	data := make(map[string]tableJSON, len(tables))
	recordCount := 0
	for _, nt := range tables {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		data[nt.Name] = toTableJSON(nt.Table)
		recordCount += nt.Table.Len()
	}

	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	// Create export metadata
	exportData := map[string]interface{}{
		"export_info": map[string]interface{}{
			"run_id":       em.RunID,
			"exported_at":  time.Now().UTC(),
			"record_count": recordCount,
			"table_count":  len(tables),
			"export_type":  "trade_tables",
		},
		"data": data,
	}

	if err := encoder.Encode(exportData); err != nil {
		return 0, fmt.Errorf("failed to encode JSON: %w", err)
	}
	return recordCount, nil
}

// sheetName fits a table name into excel's 31 character sheet limit
func sheetName(name string) string {
	r := []rune(name)
	if len(r) > 31 {
		r = r[:31]
	}
	return string(r)
}

// exportToXLSX writes one worksheet per table
func (em *ExportManager) exportToXLSX(ctx context.Context, path string, tables []NamedTable) (int, error) {
	if len(tables) == 0 {
		return 0, errors.New("no tables to export")
	}

	f := excelize.NewFile()
	defer f.Close()

	recordCount := 0
	for i, nt := range tables {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		sheet := sheetName(nt.Name)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return 0, err
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return 0, fmt.Errorf("sheet %s: %w", sheet, err)
		}

		t := nt.Table
		header := append([]string{t.IndexName}, t.Names()...)
		if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
			return 0, err
		}
		for row, key := range t.Index {
			values := make([]interface{}, 0, len(t.Columns)+1)
			values = append(values, key)
			for _, c := range t.Columns {
				values = append(values, cellValue(c, row))
			}
			cell, err := excelize.CoordinatesToCellName(1, row+2)
			if err != nil {
				return 0, err
			}
			if err := f.SetSheetRow(sheet, cell, &values); err != nil {
				return 0, err
			}
			recordCount++
		}
	}

	if err := f.SaveAs(path); err != nil {
		return 0, fmt.Errorf("failed to save workbook: %w", err)
	}
	return recordCount, nil
}

// exportToDatabase stores every table in the sqlite run log
func (em *ExportManager) exportToDatabase(ctx context.Context, tables []NamedTable) model.ExportResult {
	recordCount := 0
	var lastError error

	if !store.Enabled() {
		lastError = errors.New("database not initialised")
	}
	for _, nt := range tables {
		if lastError != nil {
			break
		}
		if err := ctx.Err(); err != nil {
			lastError = err
			break
		}
		n, err := store.SaveTable(em.RunID, nt.Name, nt.Table)
		if err != nil {
			lastError = fmt.Errorf("table %s: %w", nt.Name, err)
			log.Printf("❌ Failed to save table %s: %v", nt.Name, err)
			continue
		}
		recordCount += n
	}

	result := model.ExportResult{
		Type:        "database",
		Path:        em.ExportSpec.DB,
		RecordCount: recordCount,
		Success:     lastError == nil,
		Timestamp:   time.Now(),
	}
	if lastError != nil {
		result.Error = lastError.Error()
		log.Printf("❌ Export to database failed: %v", lastError)
	} else {
		log.Printf("✅ Export to database successful: %d rows exported", recordCount)
	}
	return result
}
