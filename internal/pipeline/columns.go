package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	"wine-trade-pipeline/internal/model"
	"wine-trade-pipeline/pkg/utils"
)

// Year column suffixes
const (
	QuantitySuffix = "_quantity"
	DolarsSuffix   = "_dolars"
)

// HeaderKind classifies a column label
type HeaderKind int

const (
	HeaderLabel HeaderKind = iota
	HeaderQuantity
	HeaderDolars
)

func (k HeaderKind) String() string {
	switch k {
	case HeaderQuantity:
		return "quantity"
	case HeaderDolars:
		return "dolars"
	default:
		return "label"
	}
}

// YearHeader is a parsed column label
type YearHeader struct {
	Label string
	Kind  HeaderKind
	Year  int
}

// Name returns the reshaped column name
func (h YearHeader) Name() string {
	switch h.Kind {
	case HeaderQuantity:
		return fmt.Sprintf("%04d%s", h.Year, QuantitySuffix)
	case HeaderDolars:
		return fmt.Sprintf("%04d%s", h.Year, DolarsSuffix)
	default:
		return h.Label
	}
}

// ParseYearHeader classifies a column label. Alphabetic labels are kept,
// "1990" is the quantity column of 1990 and "1990.1" (the disambiguated
// repeat of the same year) is its value column. Labels that were already
// reshaped parse to the same kind again. Anything else is rejected.
func ParseYearHeader(label string) (YearHeader, error) {
	if utils.IsAlpha(label) {
		return YearHeader{Label: label, Kind: HeaderLabel}, nil
	}

	token, kind := label, HeaderQuantity
	switch {
	case strings.HasSuffix(label, QuantitySuffix):
		token = strings.TrimSuffix(label, QuantitySuffix)
	case strings.HasSuffix(label, DolarsSuffix):
		token, kind = strings.TrimSuffix(label, DolarsSuffix), HeaderDolars
	case strings.HasSuffix(label, ".1"):
		token, kind = strings.TrimSuffix(label, ".1"), HeaderDolars
	}

	year, ok := parseYear(token)
	if !ok {
		return YearHeader{}, fmt.Errorf("%w: %q", ErrUnparseableYear, label)
	}
	return YearHeader{Label: label, Kind: kind, Year: year}, nil
}

func parseYear(value string) (int, bool) {
	if len(value) != 4 || !utils.IsDigits(value) {
		return 0, false
	}
	year, err := strconv.Atoi(value)
	if err != nil {
		return 0, false
	}
	return year, true
}

// CorrectColumnNames renames year headers to {year}_quantity / {year}_dolars:
//
//	| País | 1990 | 1990.1 |  ->  | País | 1990_quantity | 1990_dolars |
func CorrectColumnNames(t *model.Table) (*model.Table, error) {
	out := t.Clone()
	seen := make(map[string]string, len(out.Columns))
	for _, c := range out.Columns {
		header, err := ParseYearHeader(c.Name)
		if err != nil {
			return nil, err
		}
		name := header.Name()
		if previous, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: %q and %q both map to %q", ErrDuplicateColumn, previous, c.Name, name)
		}
		seen[name] = c.Name
		c.Name = name
	}
	return out, nil
}
