package model

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// Column is a named table column holding either labels or numbers.
// A nil Text slice means the column is numeric; missing numbers are NaN.
type Column struct {
	Name   string    `json:"name"`
	Text   []string  `json:"text,omitempty"`
	Values []float64 `json:"values,omitempty"`
}

// IsNumeric reports whether the column holds numbers
func (c *Column) IsNumeric() bool {
	return c.Text == nil
}

// Len returns the number of cells in the column
func (c *Column) Len() int {
	if c.IsNumeric() {
		return len(c.Values)
	}
	return len(c.Text)
}

// Cell returns the cell as a string, used by exporters
func (c *Column) Cell(row int) string {
	if !c.IsNumeric() {
		return c.Text[row]
	}
	v := c.Values[row]
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (c *Column) clone() *Column {
	out := &Column{Name: c.Name}
	if c.Text != nil {
		out.Text = append([]string{}, c.Text...)
	} else {
		out.Values = append([]float64{}, c.Values...)
	}
	return out
}

// Table is a trade table: a row key index plus ordered columns.
// Row keys may repeat.
type Table struct {
	IndexName string    `json:"index_name"`
	Index     []string  `json:"index"`
	Columns   []*Column `json:"columns"`
}

// NewTable creates an empty table over the given row keys
func NewTable(indexName string, index []string) *Table {
	return &Table{
		IndexName: indexName,
		Index:     append([]string{}, index...),
	}
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.Index)
}

// Names returns the column labels in order
func (t *Table) Names() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// ColumnIndex returns the position of the first column with the given name, or -1
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Column returns the first column with the given name
func (t *Table) Column(name string) (*Column, bool) {
	i := t.ColumnIndex(name)
	if i < 0 {
		return nil, false
	}
	return t.Columns[i], true
}

// AddNumeric appends a numeric column; values are copied
func (t *Table) AddNumeric(name string, values []float64) error {
	if len(values) != t.Len() {
		return fmt.Errorf("column %q has %d rows, table has %d", name, len(values), t.Len())
	}
	t.Columns = append(t.Columns, &Column{Name: name, Values: append([]float64{}, values...)})
	return nil
}

// AddText appends a label column; values are copied
func (t *Table) AddText(name string, values []string) error {
	if len(values) != t.Len() {
		return fmt.Errorf("column %q has %d rows, table has %d", name, len(values), t.Len())
	}
	t.Columns = append(t.Columns, &Column{Name: name, Text: append([]string{}, values...)})
	return nil
}

// Clone returns a deep copy
func (t *Table) Clone() *Table {
	out := NewTable(t.IndexName, t.Index)
	out.Columns = make([]*Column, len(t.Columns))
	for i, c := range t.Columns {
		out.Columns[i] = c.clone()
	}
	return out
}

// Frame converts the table to a data frame whose first column holds the row keys
func (t *Table) Frame() dataframe.DataFrame {
	cols := make([]series.Series, 0, len(t.Columns)+1)
	cols = append(cols, series.New(nonNilText(t.Index), series.String, t.IndexName))
	for _, c := range t.Columns {
		if c.IsNumeric() {
			values := c.Values
			if values == nil {
				values = []float64{}
			}
			cols = append(cols, series.New(values, series.Float, c.Name))
			continue
		}
		cols = append(cols, series.New(nonNilText(c.Text), series.String, c.Name))
	}
	return dataframe.New(cols...)
}

func nonNilText(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

// FromFrame builds a table back from a frame laid out like Frame. Column labels
// are passed in because the frame renames duplicates.
func FromFrame(df dataframe.DataFrame, indexName string, names []string) (*Table, error) {
	if err := df.Error(); err != nil {
		return nil, err
	}
	labels := df.Names()
	if len(labels) != len(names)+1 {
		return nil, fmt.Errorf("frame has %d columns, expected %d", len(labels), len(names)+1)
	}

	out := NewTable(indexName, df.Col(labels[0]).Records())
	for i, name := range names {
		s := df.Col(labels[i+1])
		if s.Type() == series.Float {
			out.Columns = append(out.Columns, &Column{Name: name, Values: s.Float()})
			continue
		}
		out.Columns = append(out.Columns, &Column{Name: name, Text: s.Records()})
	}
	return out, nil
}

// Select returns a copy holding only the named columns, in the given order
func (t *Table) Select(names []string) (*Table, error) {
	positions := make([]int, len(names))
	for i, name := range names {
		j := t.ColumnIndex(name)
		if j < 0 {
			return nil, fmt.Errorf("column %q not found", name)
		}
		positions[i] = j + 1
	}
	df := t.Frame()
	return FromFrame(df.Select(append([]int{0}, positions...)), t.IndexName, names)
}

// SetIndex returns a copy where the named label column replaces the index
func (t *Table) SetIndex(name string) (*Table, error) {
	i := t.ColumnIndex(name)
	if i < 0 {
		return nil, fmt.Errorf("column %q not found", name)
	}
	if t.Columns[i].IsNumeric() {
		return nil, fmt.Errorf("column %q holds numbers, not row keys", name)
	}

	positions := []int{i + 1}
	var names []string
	for j, c := range t.Columns {
		if j == i {
			continue
		}
		positions = append(positions, j+1)
		names = append(names, c.Name)
	}
	df := t.Frame()
	return FromFrame(df.Select(positions), name, names)
}

// SortByIndex returns a copy with rows stably sorted ascending by row key
func (t *Table) SortByIndex() (*Table, error) {
	df := t.Frame()
	if err := df.Error(); err != nil {
		return nil, err
	}
	return FromFrame(df.Arrange(dataframe.Sort(df.Names()[0])), t.IndexName, t.Names())
}

// SortBy returns a copy with rows stably sorted by a numeric column.
// Missing values sort last in both directions.
func (t *Table) SortBy(name string, descending bool) (*Table, error) {
	i := t.ColumnIndex(name)
	if i < 0 {
		return nil, fmt.Errorf("column %q not found", name)
	}
	if !t.Columns[i].IsNumeric() {
		return nil, fmt.Errorf("column %q is not numeric", name)
	}
	df := t.Frame()
	if err := df.Error(); err != nil {
		return nil, err
	}
	order := dataframe.Sort(df.Names()[i+1])
	if descending {
		order = dataframe.RevSort(df.Names()[i+1])
	}
	return FromFrame(df.Arrange(order), t.IndexName, t.Names())
}

// Reorder returns a copy with rows taken in the given order
func (t *Table) Reorder(order []int) (*Table, error) {
	for _, row := range order {
		if row < 0 || row >= t.Len() {
			return nil, fmt.Errorf("row %d out of range [0,%d)", row, t.Len())
		}
	}
	if order == nil {
		order = []int{}
	}
	df := t.Frame()
	return FromFrame(df.Subset(order), t.IndexName, t.Names())
}

// Head returns a copy of the first n rows
func (t *Table) Head(n int) (*Table, error) {
	if n > t.Len() {
		n = t.Len()
	}
	order := make([]int, max(n, 0))
	for i := range order {
		order[i] = i
	}
	return t.Reorder(order)
}

// Transpose swaps rows and columns. Only numeric tables can be transposed;
// columnsName becomes the index name of the result.
func (t *Table) Transpose(columnsName string) (*Table, error) {
	for _, c := range t.Columns {
		if !c.IsNumeric() {
			return nil, fmt.Errorf("cannot transpose label column %q", c.Name)
		}
	}
	out := NewTable(columnsName, t.Names())
	for row, key := range t.Index {
		values := make([]float64, len(t.Columns))
		for j, c := range t.Columns {
			values[j] = c.Values[row]
		}
		out.Columns = append(out.Columns, &Column{Name: key, Values: values})
	}
	return out, nil
}

// Validate checks that every column is as long as the index
func (t *Table) Validate() error {
	var errs []error
	for _, c := range t.Columns {
		if c.Len() != t.Len() {
			errs = append(errs, fmt.Errorf("column %q has %d rows, index has %d", c.Name, c.Len(), t.Len()))
		}
	}
	return errors.Join(errs...)
}
