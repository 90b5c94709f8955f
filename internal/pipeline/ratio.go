package pipeline

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"wine-trade-pipeline/internal/model"
)

// RatioLabel is the column appended by DolarPerQuantity
const RatioLabel = "dolar_per_quantity"

// ratioPlaces is the rounding precision of the dolar per quantity column
const ratioPlaces = 3

// DolarPerQuantity appends value / quantity, rounded to three decimals, as
// "dolar_per_quantity" (or "{name}_dolar_per_quantity"). The table must have
// exactly one column containing "dolars" and one containing "quantity".
func DolarPerQuantity(t *model.Table, name string) (*model.Table, error) {
	dolars, err := singleColumn(t, DolarsLabel)
	if err != nil {
		return nil, err
	}
	quantity, err := singleColumn(t, QuantityLabel)
	if err != nil {
		return nil, err
	}
	if dolars.Len() != t.Len() || quantity.Len() != t.Len() {
		return nil, fmt.Errorf("%w: %q has %d rows, %q has %d, index has %d",
			ErrRowCountMismatch, dolars.Name, dolars.Len(), quantity.Name, quantity.Len(), t.Len())
	}

	ratio := make([]float64, t.Len())
	for row := range ratio {
		d, q := dolars.Values[row], quantity.Values[row]
		if math.IsNaN(d) || math.IsNaN(q) {
			ratio[row] = math.NaN()
			continue
		}
		if q == 0 {
			return nil, fmt.Errorf("%w: zero quantity at %s %q", ErrUndefinedValue, t.IndexName, t.Index[row])
		}
		ratio[row], _ = decimal.NewFromFloat(d).
			Div(decimal.NewFromFloat(q)).
			Round(ratioPlaces).
			Float64()
	}

	label := RatioLabel
	if name != "" {
		label = name + "_" + RatioLabel
	}
	out := t.Clone()
	if err := out.AddNumeric(label, ratio); err != nil {
		return nil, err
	}
	return out, nil
}

func singleColumn(t *model.Table, marker string) (*model.Column, error) {
	var found []*model.Column
	for _, c := range t.Columns {
		if c.IsNumeric() && strings.Contains(c.Name, marker) {
			found = append(found, c)
		}
	}
	if len(found) != 1 {
		return nil, fmt.Errorf("%w: %d columns contain %q", ErrAmbiguousColumn, len(found), marker)
	}
	return found[0], nil
}
