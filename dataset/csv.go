package dataset

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/YuminosukeSato/tabpipe/pkg/errors"
)

// ReadCSV reads a header row followed by records.
func ReadCSV(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 0

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.NewEmptyDatasetError("ReadCSV")
	}
	if err != nil {
		return nil, errors.Wrap(err, "read CSV header")
	}

	var records [][]string
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read CSV record %d", len(records)+1)
		}
		records = append(records, rec)
	}
	return FromRecords(header, records)
}

// ReadCSVFile opens path and reads it with ReadCSV. A missing file is
// reported as an InputNotFoundError attributed to stage.
func ReadCSVFile(stage, path string) (*Dataset, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.NewInputNotFoundError(stage, path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	ds, err := ReadCSV(f)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return ds, nil
}

// WriteCSV writes ds with a header row.
func WriteCSV(w io.Writer, ds *Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ds.Names()); err != nil {
		return err
	}
	for i := 0; i < ds.NumRows(); i++ {
		if err := cw.Write(ds.Row(i)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// FormatValue renders v in the shortest form that parses back to v, so that
// identical tables always serialize to identical bytes.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteTable writes t with a header row.
func WriteTable(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.names); err != nil {
		return err
	}
	row := make([]string, len(t.names))
	for i := 0; i < t.rows; i++ {
		for j := range t.names {
			row[j] = FormatValue(t.columns[j][i])
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadTable reads a numeric CSV written by WriteTable.
func ReadTable(r io.Reader) (*Table, error) {
	ds, err := ReadCSV(r)
	if err != nil {
		return nil, err
	}
	columns := make([][]float64, ds.NumColumns())
	for j := range columns {
		col := ds.ColumnAt(j)
		columns[j] = make([]float64, len(col.Values))
		for i, raw := range col.Values {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, errors.NewColumnError(col.Name, "parse", errors.NewValueError("ReadTable",
					"row "+strconv.Itoa(i+1)+": non-numeric value "+strconv.Quote(raw)))
			}
			columns[j][i] = v
		}
	}
	return NewTable(ds.Names(), columns)
}

// ReadTableFile opens path and reads it with ReadTable.
func ReadTableFile(stage, path string) (*Table, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.NewInputNotFoundError(stage, path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	t, err := ReadTable(f)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return t, nil
}
