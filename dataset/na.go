package dataset

import "strings"

// DefaultNAValues are the tokens treated as missing when none are configured.
var DefaultNAValues = []string{"", "NA", "N/A", "NaN", "nan", "null", "NULL", "None"}

// DropNA returns a Dataset without the rows that hold a missing value in any
// column, and the number of rows removed. Values are compared after trimming
// surrounding whitespace.
func DropNA(ds *Dataset, naValues []string) (*Dataset, int) {
	if naValues == nil {
		naValues = DefaultNAValues
	}
	na := make(map[string]struct{}, len(naValues))
	for _, v := range naValues {
		na[v] = struct{}{}
	}

	keep := make([]int, 0, ds.NumRows())
	for i := 0; i < ds.NumRows(); i++ {
		missing := false
		for j := 0; j < ds.NumColumns() && !missing; j++ {
			_, missing = na[strings.TrimSpace(ds.ColumnAt(j).Values[i])]
		}
		if !missing {
			keep = append(keep, i)
		}
	}
	return ds.Take(keep), ds.NumRows() - len(keep)
}
