package pipeline

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"wine-trade-pipeline/internal/model"
	"wine-trade-pipeline/pkg/utils"
)

// ValidationRules defines the checks run on a reshaped trade table
type ValidationRules struct {
	RequiredColumns []string // columns that must be present
	RequirePairs    bool     // every year needs both _quantity and _dolars
	NonNegative     bool     // volumes and values cannot be negative
}

// DefaultValidationRules are the invariants of a cleaned trade table
var DefaultValidationRules = ValidationRules{
	RequirePairs: true,
	NonNegative:  true,
}

// ValidateTable checks a table against rules and reports every problem found
func ValidateTable(t *model.Table, rules ValidationRules) error {
	var errs []error
	if err := t.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %v", ErrRowCountMismatch, err))
	}

	// Check required columns
	for _, name := range rules.RequiredColumns {
		if _, ok := t.Column(name); !ok {
			errs = append(errs, fmt.Errorf("%w: %q", ErrMissingColumn, name))
		}
	}

	kinds := make(map[int]map[HeaderKind]bool)
	for _, c := range t.Columns {
		header, err := ParseYearHeader(c.Name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if header.Kind == HeaderLabel {
			continue
		}
		if kinds[header.Year] == nil {
			kinds[header.Year] = make(map[HeaderKind]bool)
		}
		kinds[header.Year][header.Kind] = true

		if !c.IsNumeric() {
			errs = append(errs, nonNumericError(t, c))
			continue
		}
		if !rules.NonNegative {
			continue
		}
		for row, v := range c.Values {
			if !math.IsNaN(v) && v < 0 {
				errs = append(errs, fmt.Errorf("%w: %s at %s %q is %v", ErrNegativeValue, c.Name, t.IndexName, t.Index[row], v))
			}
		}
	}

	if rules.RequirePairs {
		years := make([]int, 0, len(kinds))
		for year := range kinds {
			years = append(years, year)
		}
		sort.Ints(years)
		for _, year := range years {
			if !kinds[year][HeaderQuantity] {
				errs = append(errs, fmt.Errorf("%w: %04d%s", ErrMissingColumn, year, QuantitySuffix))
			}
			if !kinds[year][HeaderDolars] {
				errs = append(errs, fmt.Errorf("%w: %04d%s", ErrMissingColumn, year, DolarsSuffix))
			}
		}
	}

	return errors.Join(errs...)
}

// nonNumericError names the first cell of a year column that is not a number
func nonNumericError(t *model.Table, c *model.Column) error {
	for row, cell := range c.Text {
		if _, ok := utils.ParseNumber(cell); !ok {
			return fmt.Errorf("%w: %s at %s %q is %q", ErrNonNumericValue, c.Name, t.IndexName, t.Index[row], cell)
		}
	}
	return fmt.Errorf("%w: %s holds labels", ErrNonNumericValue, c.Name)
}
