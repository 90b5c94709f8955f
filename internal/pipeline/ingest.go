package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"

	"wine-trade-pipeline/internal/model"
	"wine-trade-pipeline/pkg/utils"
)

// ------------------- Ingestion -------------------

// LoadedSource is the outcome of loading one source
type LoadedSource struct {
	Source model.Source
	Table  *model.Table
	Err    error
}

// LoadSources loads every source, at most workers at a time. Results keep
// the order of sources; a failed source carries its error.
func LoadSources(ctx context.Context, sources []model.Source, workers int) []LoadedSource {
	if workers <= 0 {
		workers = 2 // default
	}

	results := make([]LoadedSource, len(sources))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, src := range sources {
		wg.Add(1)
		go func(i int, s model.Source) {
			defer wg.Done()
			select {
			case <-ctx.Done():
				results[i] = LoadedSource{Source: s, Err: ctx.Err()}
				return
			case sem <- struct{}{}:
			}
			defer func() { <-sem }()

			table, err := LoadSource(ctx, s)
			results[i] = LoadedSource{Source: s, Table: table, Err: err}
		}(i, src)
	}

	wg.Wait() // wait for all ingestion goroutines
	return results
}

// LoadSource loads a single csv or xlsx source
func LoadSource(ctx context.Context, source model.Source) (*model.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	kind := strings.ToLower(source.Type)
	if kind == "" {
		kind = utils.GetFileType(source.Path)
	}

	file, err := os.Open(source.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open source %s: %w", source.Path, err)
	}
	defer file.Close()

	var table *model.Table
	switch kind {
	case "csv":
		table, err = LoadCSV(file, source.Delimiter, source.IndexColumn)
	case "xlsx":
		table, err = LoadXLSX(file, source.Sheet, source.IndexColumn)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownSourceType, source.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", source.Path, err)
	}

	log.Printf("📄 Loaded %s: %d rows, %d columns", source.Path, table.Len(), len(table.Columns))
	return table, nil
}

// ------------------- CSV Ingestion -------------------

// LoadCSV reads a delimited export. An empty delimiter is sniffed from the
// header line (";", tab or ",").
func LoadCSV(r io.Reader, delimiter, indexColumn string) (*model.Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	text := strings.TrimPrefix(string(data), "\ufeff")

	csvReader := csv.NewReader(strings.NewReader(text))
	csvReader.LazyQuotes = true
	csvReader.FieldsPerRecord = -1
	csvReader.Comma = sniffDelimiter(text, delimiter)

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("CSV read error: %w", err)
	}
	if len(records) == 0 {
		return nil, errors.New("failed to read CSV header: empty input")
	}
	return buildTable(records[0], records[1:], indexColumn)
}

func sniffDelimiter(text, delimiter string) rune {
	if delimiter != "" {
		if delimiter == `\t` {
			return '\t'
		}
		return []rune(delimiter)[0]
	}
	header := text
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		header = text[:i]
	}
	switch {
	case strings.Contains(header, ";"):
		return ';'
	case strings.Contains(header, "\t"):
		return '\t'
	default:
		return ','
	}
}

// ------------------- XLSX Ingestion -------------------

// LoadXLSX reads a worksheet; an empty sheet name reads the first sheet
func LoadXLSX(r io.Reader, sheet, indexColumn string) (*model.Table, error) {
	file, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open excel: %w", err)
	}
	defer file.Close()

	if sheet == "" {
		sheets := file.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.New("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := file.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %s is empty", sheet)
	}
	return buildTable(rows[0], rows[1:], indexColumn)
}

// ------------------- Table building -------------------

// buildTable turns raw rows into a table. Repeated headers are
// disambiguated as "1990", "1990.1", "1990.2". A column is numeric when
// every cell parses as a number.
func buildTable(header []string, rows [][]string, indexColumn string) (*model.Table, error) {
	if len(header) == 0 {
		return nil, errors.New("empty header row")
	}
	names := disambiguateHeaders(header)

	indexPos := 0
	if indexColumn != "" {
		indexPos = -1
		for i, name := range names {
			if strings.EqualFold(strings.TrimSpace(name), strings.TrimSpace(indexColumn)) {
				indexPos = i
				break
			}
		}
		if indexPos < 0 {
			return nil, fmt.Errorf("%w: index column %q", ErrMissingColumn, indexColumn)
		}
	}

	cell := func(row []string, i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	index := make([]string, len(rows))
	for r, row := range rows {
		index[r] = cell(row, indexPos)
	}
	table := model.NewTable(names[indexPos], index)

	for i, name := range names {
		if i == indexPos {
			continue
		}
		raw := make([]string, len(rows))
		for r, row := range rows {
			raw[r] = cell(row, i)
		}
		if values, ok := parseNumbers(raw); ok {
			if err := table.AddNumeric(name, values); err != nil {
				return nil, err
			}
			continue
		}
		if err := table.AddText(name, raw); err != nil {
			return nil, err
		}
	}
	return table, nil
}

func disambiguateHeaders(header []string) []string {
	names := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		name := h
		if n, dup := seen[h]; dup {
			name = h + "." + strconv.Itoa(n)
		}
		seen[h]++
		names[i] = name
	}
	return names
}

func parseNumbers(raw []string) ([]float64, bool) {
	values := make([]float64, len(raw))
	for i, s := range raw {
		v, ok := utils.ParseNumber(s)
		if !ok {
			return nil, false
		}
		values[i] = v
	}
	return values, true
}
