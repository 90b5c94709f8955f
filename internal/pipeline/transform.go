package pipeline

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"wine-trade-pipeline/internal/model"
)

// Canonical labels
const (
	IndexLabel        = "id"
	CountryLabel      = "country"
	LocaleCountryName = "País"
)

// Transformation names understood by ApplyTransformations
const (
	TransformNormalizeIndex      = "normalizeIndex"
	TransformPaisToCountry       = "paisToCountry"
	TransformCorrectColumnNames  = "correctColumnNames"
	TransformReplaceCountryNames = "replaceCountryNames"
	TransformFilterYears         = "filterYears"
)

// DefaultTransformations is the full cleaning chain, in order
var DefaultTransformations = []string{
	TransformNormalizeIndex,
	TransformPaisToCountry,
	TransformCorrectColumnNames,
	TransformReplaceCountryNames,
	TransformFilterYears,
}

// TransformOptions carries the parameters of the parameterised stages
type TransformOptions struct {
	WindowYears  int
	CountryNames map[string]string // nil uses the built-in table
}

// ApplyTransformations applies all specified transformations to a table
func ApplyTransformations(t *model.Table, transformations []string, opts TransformOptions) (*model.Table, error) {
	result := t
	var err error

	// Apply each transformation
	for _, transform := range transformations {
		switch transform {
		case TransformNormalizeIndex:
			result = NormalizeIndex(result)
		case TransformPaisToCountry:
			result = PaisToCountry(result)
		case TransformCorrectColumnNames:
			result, err = CorrectColumnNames(result)
		case TransformReplaceCountryNames:
			names := opts.CountryNames
			if names == nil {
				names = CanonicalCountryNames()
			}
			result, err = ReplaceCountryNames(result, names)
		case TransformFilterYears:
			result, err = FilterYears(result, opts.WindowYears)
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnknownTransformation, transform)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", transform, err)
		}
	}

	if result == t {
		result = t.Clone()
	}
	return result, nil
}

// NormalizeIndex trims every column label and names the index "id".
// Labels are NFC-normalized so composed and decomposed accents compare equal.
func NormalizeIndex(t *model.Table) *model.Table {
	out := t.Clone()
	for _, c := range out.Columns {
		c.Name = normalizeLabel(c.Name)
	}
	out.IndexName = IndexLabel
	return out
}

func normalizeLabel(label string) string {
	label = strings.TrimPrefix(label, "\ufeff")
	return norm.NFC.String(strings.TrimSpace(label))
}

// PaisToCountry renames the "País" column to "country". Tables without it
// are returned unchanged.
func PaisToCountry(t *model.Table) *model.Table {
	out := t.Clone()
	for _, c := range out.Columns {
		if normalizeLabel(c.Name) == LocaleCountryName {
			c.Name = CountryLabel
		}
	}
	return out
}

// FilterYears keeps the last years*2 columns, assuming quantity/dolars pairs
// are contiguous and in chronological order. Asking for more years than the
// table has returns every column.
func FilterYears(t *model.Table, years int) (*model.Table, error) {
	if years <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWindow, years)
	}
	names := t.Names()
	if years <= (len(names)-1)/2 {
		names = names[len(names)-years*2:]
	}
	return t.Select(names)
}
