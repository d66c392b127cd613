// Package dataset holds the tabular values that flow between pipeline stages.
//
// A Dataset is the raw, textual form read from CSV: every value is kept as
// the string that appeared in the file, and interpretation (numeric or
// categorical) is left to the preprocessing package. A Table is the
// post-transform form: every value is a float64.
package dataset

import (
	"github.com/YuminosukeSato/tabpipe/pkg/errors"
)

// Column is a named sequence of raw values.
type Column struct {
	Name   string
	Values []string
}

// Dataset is an ordered set of equal-length columns with unique names.
// A Dataset is never modified after construction.
type Dataset struct {
	columns []Column
	index   map[string]int
	rows    int
}

// New builds a Dataset, rejecting duplicate names and ragged columns.
func New(columns ...Column) (*Dataset, error) {
	if len(columns) == 0 {
		return nil, errors.NewValidationError("columns", "dataset needs at least one column", 0)
	}
	ds := &Dataset{
		columns: make([]Column, len(columns)),
		index:   make(map[string]int, len(columns)),
		rows:    len(columns[0].Values),
	}
	for i, c := range columns {
		if c.Name == "" {
			return nil, errors.NewValidationError("columns", "column name must not be empty", i)
		}
		if _, dup := ds.index[c.Name]; dup {
			return nil, errors.NewValidationError("columns", "duplicate column name", c.Name)
		}
		if len(c.Values) != ds.rows {
			return nil, errors.NewValidationError(c.Name, "column length differs from first column", len(c.Values))
		}
		ds.index[c.Name] = i
		ds.columns[i] = Column{Name: c.Name, Values: append([]string(nil), c.Values...)}
	}
	return ds, nil
}

// FromRecords builds a Dataset from a header and row-major records.
func FromRecords(header []string, records [][]string) (*Dataset, error) {
	columns := make([]Column, len(header))
	for j, name := range header {
		columns[j] = Column{Name: name, Values: make([]string, len(records))}
	}
	for i, rec := range records {
		if len(rec) != len(header) {
			return nil, errors.NewValidationError("row", "record has a different number of fields than the header", i+1)
		}
		for j, v := range rec {
			columns[j].Values[i] = v
		}
	}
	return New(columns...)
}

// NumRows returns the row count.
func (d *Dataset) NumRows() int { return d.rows }

// NumColumns returns the column count.
func (d *Dataset) NumColumns() int { return len(d.columns) }

// Names returns the column names in order.
func (d *Dataset) Names() []string {
	names := make([]string, len(d.columns))
	for i, c := range d.columns {
		names[i] = c.Name
	}
	return names
}

// ColumnAt returns the i-th column. The returned values must not be modified.
func (d *Dataset) ColumnAt(i int) Column { return d.columns[i] }

// Column returns the values of the named column.
func (d *Dataset) Column(name string) ([]string, bool) {
	i, ok := d.index[name]
	if !ok {
		return nil, false
	}
	return d.columns[i].Values, true
}

// Index returns the position of the named column, or -1.
func (d *Dataset) Index(name string) int {
	if i, ok := d.index[name]; ok {
		return i
	}
	return -1
}

// Row returns the values of row i in column order.
func (d *Dataset) Row(i int) []string {
	row := make([]string, len(d.columns))
	for j, c := range d.columns {
		row[j] = c.Values[i]
	}
	return row
}

// Take returns a new Dataset holding the given rows, in the given order.
func (d *Dataset) Take(rows []int) *Dataset {
	out := &Dataset{
		columns: make([]Column, len(d.columns)),
		index:   d.index,
		rows:    len(rows),
	}
	for j, c := range d.columns {
		values := make([]string, len(rows))
		for k, r := range rows {
			values[k] = c.Values[r]
		}
		out.columns[j] = Column{Name: c.Name, Values: values}
	}
	return out
}
