package dataset

import (
	"github.com/YuminosukeSato/tabpipe/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Table is a fully numeric, column-major table produced by the transform
// stage and consumed by the training stage.
type Table struct {
	names   []string
	columns [][]float64
	rows    int
}

// NewTable builds a Table from names and equal-length columns.
func NewTable(names []string, columns [][]float64) (*Table, error) {
	if len(names) != len(columns) {
		return nil, errors.NewValidationError("columns", "names and columns differ in count", len(columns))
	}
	t := &Table{names: append([]string(nil), names...), columns: columns}
	seen := make(map[string]struct{}, len(names))
	for j, name := range names {
		if _, dup := seen[name]; dup {
			return nil, errors.NewValidationError("columns", "duplicate column name", name)
		}
		seen[name] = struct{}{}
		if j == 0 {
			t.rows = len(columns[0])
		} else if len(columns[j]) != t.rows {
			return nil, errors.NewValidationError(name, "column length differs from first column", len(columns[j]))
		}
	}
	return t, nil
}

// Names returns the column names in order.
func (t *Table) Names() []string { return append([]string(nil), t.names...) }

// NumRows returns the row count.
func (t *Table) NumRows() int { return t.rows }

// NumColumns returns the column count.
func (t *Table) NumColumns() int { return len(t.names) }

// ColumnAt returns the i-th column. The returned slice must not be modified.
func (t *Table) ColumnAt(i int) []float64 { return t.columns[i] }

// Index returns the position of the named column, or -1.
func (t *Table) Index(name string) int {
	for i, n := range t.names {
		if n == name {
			return i
		}
	}
	return -1
}

// Split separates the column at label from the rest, returning the feature
// matrix (rows × remaining columns, original order) and the label vector.
// The table must have at least one row and two columns.
func (t *Table) Split(label int) (*mat.Dense, *mat.VecDense) {
	X := mat.NewDense(t.rows, len(t.names)-1, nil)
	y := mat.NewVecDense(t.rows, nil)
	for i := 0; i < t.rows; i++ {
		col := 0
		for j := range t.names {
			if j == label {
				y.SetVec(i, t.columns[j][i])
				continue
			}
			X.Set(i, col, t.columns[j][i])
			col++
		}
	}
	return X, y
}
