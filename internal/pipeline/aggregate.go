package pipeline

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"

	"wine-trade-pipeline/internal/model"
)

// Output labels of the derived tables
const (
	YearLabel     = "year"
	QuantityLabel = "quantity"
	DolarsLabel   = "dolars"
)

// YearUnitValue computes value per unit for every year that has both a
// dolars and a quantity column. A zero or missing quantity means no trade
// and yields 0.
//
//	| country | 1990_quantity | 1990_dolars |  ->  | country | 1990 |
//	| Brasil  |      100      |     1000    |      | Brasil  |  10  |
func YearUnitValue(t *model.Table) (*model.Table, error) {
	out := model.NewTable(t.IndexName, t.Index)
	for _, dolars := range t.Columns {
		if !dolars.IsNumeric() || !strings.Contains(dolars.Name, DolarsSuffix) {
			continue
		}
		year := strings.TrimSuffix(dolars.Name, DolarsSuffix)
		quantity, ok := t.Column(year + QuantitySuffix)
		if !ok || !quantity.IsNumeric() {
			return nil, fmt.Errorf("%w: %s%s", ErrMissingColumn, year, QuantitySuffix)
		}

		if dolars.Len() != t.Len() || quantity.Len() != t.Len() {
			return nil, fmt.Errorf("%w: year %s", ErrRowCountMismatch, year)
		}

		values := make([]float64, t.Len())
		for row := range values {
			values[row] = unitValue(dolars.Values[row], quantity.Values[row])
		}
		if err := out.AddNumeric(year, values); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func unitValue(dolars, quantity float64) float64 {
	if quantity == 0 || math.IsNaN(quantity) || math.IsNaN(dolars) {
		return 0
	}
	v := dolars / quantity
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0
	}
	return v
}

// SumCountries sums every quantity column and every dolars column per
// country, producing one row per distinct country in first-seen order.
//
//	| country | 1990_quantity | 1990_dolars | 1991_quantity | 1991_dolars |
//	| Brasil  |      100      |     1000    |      200      |     2000    |
//	                              ->
//	| country | quantity | dolars |
//	| Brasil  |   300    |  3000  |
func SumCountries(t *model.Table) (*model.Table, error) {
	df := t.Frame()
	if err := df.Error(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRowCountMismatch, err)
	}
	labels := df.Names()

	var key string
	var countries []string
	if i := t.ColumnIndex(CountryLabel); i >= 0 && !t.Columns[i].IsNumeric() {
		key, countries = labels[i+1], t.Columns[i].Text
	} else if t.IndexName == CountryLabel {
		key, countries = labels[0], t.Index
	} else {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, CountryLabel)
	}

	var quantityCols, dolarsCols []string
	for i, c := range t.Columns {
		if !c.IsNumeric() {
			continue
		}
		switch {
		case strings.HasSuffix(c.Name, QuantitySuffix):
			quantityCols = append(quantityCols, labels[i+1])
		case strings.HasSuffix(c.Name, DolarsSuffix):
			dolarsCols = append(dolarsCols, labels[i+1])
		}
	}
	if len(quantityCols) == 0 {
		return nil, fmt.Errorf("%w: no %s columns", ErrMissingColumn, QuantitySuffix)
	}
	if len(dolarsCols) == 0 {
		return nil, fmt.Errorf("%w: no %s columns", ErrMissingColumn, DolarsSuffix)
	}

	var order []string
	seen := make(map[string]bool)
	for _, country := range countries {
		if !seen[country] {
			seen[country] = true
			order = append(order, country)
		}
	}

	out := model.NewTable(CountryLabel, order)
	if len(order) == 0 {
		if err := out.AddNumeric(QuantityLabel, nil); err != nil {
			return nil, err
		}
		return out, out.AddNumeric(DolarsLabel, nil)
	}

	groups := df.GroupBy(key)
	if groups.Err != nil {
		return nil, groups.Err
	}
	frames := groups.GetGroups()

	quantity := make([]float64, len(order))
	dolars := make([]float64, len(order))
	for i, country := range order {
		g, ok := frames[country]
		if !ok {
			return nil, fmt.Errorf("%w: no group for %q", ErrMissingColumn, country)
		}
		if err := g.Error(); err != nil {
			return nil, err
		}
		quantity[i] = sumGroup(g, quantityCols)
		dolars[i] = sumGroup(g, dolarsCols)
	}

	if err := out.AddNumeric(QuantityLabel, quantity); err != nil {
		return nil, err
	}
	if err := out.AddNumeric(DolarsLabel, dolars); err != nil {
		return nil, err
	}
	return out, nil
}

// sumGroup adds the non-missing cells of cols, row by row
func sumGroup(g dataframe.DataFrame, cols []string) float64 {
	values := make([][]float64, len(cols))
	for i, name := range cols {
		values[i] = g.Col(name).Float()
	}
	total := 0.0
	for row := 0; row < g.Nrow(); row++ {
		rowTotal := 0.0
		for _, col := range values {
			if v := col[row]; !math.IsNaN(v) {
				rowTotal += v
			}
		}
		total += rowTotal
	}
	return total
}

// TransformQuantityDolar sums every year column over all countries and
// reshapes the totals into one row per year. With a name the output columns
// are "{name}_dolars" and "{name}_quantity".
//
//	| country | 1990_quantity | 1990_dolars |  ->  | year | vinho_dolars | vinho_quantity |
//	| Brasil  |      100      |     1000    |      | 1990 |     3000     |      300       |
//	| Chile   |      200      |     2000    |
func TransformQuantityDolar(t *model.Table, name string) (*model.Table, error) {
	quantityByYear := make(map[int]float64)
	var dolarsYears []int
	dolarsByYear := make(map[int]float64)

	for _, c := range t.Columns {
		if !c.IsNumeric() {
			continue
		}
		if !strings.Contains(c.Name, DolarsSuffix) && !strings.Contains(c.Name, QuantitySuffix) {
			continue
		}
		header, err := ParseYearHeader(c.Name)
		if err != nil {
			return nil, err
		}
		total := 0.0
		for _, v := range c.Values {
			if !math.IsNaN(v) {
				total += v
			}
		}
		switch header.Kind {
		case HeaderDolars:
			if _, ok := dolarsByYear[header.Year]; !ok {
				dolarsYears = append(dolarsYears, header.Year)
			}
			dolarsByYear[header.Year] += total
		case HeaderQuantity:
			quantityByYear[header.Year] += total
		}
	}

	var index []string
	var dolars, quantity []float64
	for _, year := range dolarsYears {
		q, ok := quantityByYear[year]
		if !ok {
			continue
		}
		index = append(index, strconv.Itoa(year))
		dolars = append(dolars, dolarsByYear[year])
		quantity = append(quantity, q)
	}

	dolarsName, quantityName := DolarsLabel, QuantityLabel
	if name != "" {
		dolarsName, quantityName = name+"_"+DolarsLabel, name+"_"+QuantityLabel
	}

	out := model.NewTable(YearLabel, index)
	if err := out.AddNumeric(dolarsName, dolars); err != nil {
		return nil, err
	}
	if err := out.AddNumeric(quantityName, quantity); err != nil {
		return nil, err
	}
	return out, nil
}

// DropDolars strips the "_dolars" suffix from the row keys, which must then
// be plain years: "1990_dolars" -> "1990".
func DropDolars(t *model.Table) (*model.Table, error) {
	out := t.Clone()
	for i, key := range out.Index {
		year, ok := parseYear(strings.ReplaceAll(key, DolarsSuffix, ""))
		if !ok {
			return nil, fmt.Errorf("%w: row key %q", ErrUnparseableYear, key)
		}
		out.Index[i] = strconv.Itoa(year)
	}
	return out, nil
}

// YearQuantity keeps the quantity columns, renamed to their year, as the
// input of the quantity chart.
//
//	| country | 1990_quantity | 1990_dolars |  ->  | country | 1990 |
//	| Brasil  |      100      |     1000    |      | Brasil  | 100  |
func YearQuantity(t *model.Table) (*model.Table, error) {
	out := model.NewTable(t.IndexName, t.Index)
	for _, c := range t.Columns {
		if !c.IsNumeric() || !strings.HasSuffix(c.Name, QuantitySuffix) {
			continue
		}
		if err := out.AddNumeric(strings.TrimSuffix(c.Name, QuantitySuffix), c.Values); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRowCountMismatch, err)
		}
	}
	if len(out.Columns) == 0 {
		return nil, fmt.Errorf("%w: no %s columns", ErrMissingColumn, QuantitySuffix)
	}
	return out, nil
}
