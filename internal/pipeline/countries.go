package pipeline

import (
	_ "embed"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"wine-trade-pipeline/internal/model"
)

// country_names.csv maps historical names, misspellings and locale variants
// to one canonical country name. Corrections go in the data file.
//
//go:embed data/country_names.csv
var countryNamesCSV string

var countryNames = mustLoadCountryNames(countryNamesCSV)

func mustLoadCountryNames(data string) map[string]string {
	names, err := LoadCountryNames(strings.NewReader(data))
	if err != nil {
		panic(fmt.Sprintf("embedded country names: %v", err))
	}
	return names
}

// CanonicalCountryNames returns a copy of the built-in lookup table
func CanonicalCountryNames() map[string]string {
	out := make(map[string]string, len(countryNames))
	for k, v := range countryNames {
		out[k] = v
	}
	return out
}

// LoadCountryNames reads a two column "name,canonical" csv with a header row
func LoadCountryNames(r io.Reader) (map[string]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 2
	reader.Comment = '#'

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read country names: %w", err)
	}

	names := make(map[string]string, len(records))
	for i, record := range records {
		if i == 0 && strings.EqualFold(normalizeLabel(record[0]), "name") {
			continue
		}
		from, to := normalizeLabel(record[0]), normalizeLabel(record[1])
		if from == "" || to == "" {
			return nil, fmt.Errorf("country names line %d: empty name", i+1)
		}
		names[from] = to
	}
	return names, nil
}

// MergeCountryNames returns base overlaid with extra
func MergeCountryNames(base, extra map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// CanonicalCountry maps one name through the lookup table. Unmapped names
// are returned unchanged.
func CanonicalCountry(names map[string]string, name string) string {
	if canonical, ok := names[normalizeLabel(name)]; ok {
		return canonical
	}
	return name
}

// ReplaceCountryNames maps the country column through names, sorts rows by
// country and makes country the index. Rows that collapse onto the same
// canonical name are kept as separate rows; SumCountries merges them.
func ReplaceCountryNames(t *model.Table, names map[string]string) (*model.Table, error) {
	var indexed *model.Table
	if c, ok := t.Column(CountryLabel); ok {
		if c.IsNumeric() {
			return nil, fmt.Errorf("%w: %q is not a label column", ErrMissingColumn, CountryLabel)
		}
		var err error
		if indexed, err = t.SetIndex(CountryLabel); err != nil {
			return nil, err
		}
	} else if t.IndexName == CountryLabel {
		indexed = t.Clone()
	} else {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, CountryLabel)
	}

	for i, name := range indexed.Index {
		indexed.Index[i] = CanonicalCountry(names, name)
	}
	return indexed.SortByIndex()
}
