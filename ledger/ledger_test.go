package ledger

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/YuminosukeSato/tabpipe/dataset"
	"github.com/YuminosukeSato/tabpipe/pkg/artifact"
	"github.com/YuminosukeSato/tabpipe/pkg/errors"
	"github.com/YuminosukeSato/tabpipe/preprocessing"
)

func validEntry() *Entry {
	return &Entry{
		Version: Version,
		Stage:   "transform",
		Params:  SplitParams{TestFraction: 0.3, Seed: 42},
		Rows:    Rows{Train: 7, Test: 3},
		Columns: []preprocessing.ColumnSpec{
			{Name: "age", Kind: preprocessing.Numeric},
			{Name: "city", Kind: preprocessing.Categorical},
			{Name: "label", Kind: preprocessing.Categorical},
		},
		NumericColumns:     []string{"age"},
		CategoricalColumns: []string{"city", "label"},
		Label:              Label{Name: "label", Position: 2},
		Diagnostics: Diagnostics{
			Unseen:          map[string]int{"city": 1, "label": 0},
			UnseenCode:      preprocessing.UnseenCode,
			ConstantColumns: []string{},
		},
	}
}

func TestEncodeDecode(t *testing.T) {
	e := validEntry()

	var buf bytes.Buffer
	if err := Encode(&buf, e); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.Contains(buf.String(), `"kind": "categorical"`) {
		t.Errorf("column kinds should be written as text:\n%s", buf.String())
	}

	got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !reflect.DeepEqual(got, e) {
		t.Errorf("Decode() = %+v, want %+v", got, e)
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	var a, b bytes.Buffer
	if err := Encode(&a, validEntry()); err != nil {
		t.Fatal(err)
	}
	if err := Encode(&b, validEntry()); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Error("encoding the same entry twice gave different bytes")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(e *Entry)
		param  string
	}{
		{"wrong version", func(e *Entry) { e.Version = 99 }, "version"},
		{"empty stage", func(e *Entry) { e.Stage = "" }, "stage"},
		{"empty test partition", func(e *Entry) { e.Rows.Test = 0 }, "rows"},
		{"single column", func(e *Entry) { e.Columns = e.Columns[:1] }, "columns"},
		{"label out of range", func(e *Entry) { e.Label.Position = 5 }, "label.position"},
		{"label name mismatch", func(e *Entry) { e.Label.Name = "city" }, "label.name"},
		{"numeric list mismatch", func(e *Entry) { e.NumericColumns = nil }, "numeric_columns"},
		{"categorical list order", func(e *Entry) { e.CategoricalColumns = []string{"label", "city"} }, "categorical_columns"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := validEntry()
			tt.mutate(e)

			err := e.Validate()
			var verr *errors.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.ParamName != tt.param {
				t.Errorf("ParamName = %q, want %q", verr.ParamName, tt.param)
			}
		})
	}
}

func TestFeatureNames(t *testing.T) {
	e := validEntry()
	if got := e.FeatureNames(); !reflect.DeepEqual(got, []string{"age", "city"}) {
		t.Errorf("FeatureNames() = %v", got)
	}
	if !reflect.DeepEqual(e.Names(), []string{"age", "city", "label"}) {
		t.Error("FeatureNames must not modify the column list")
	}
	if e.TotalUnseen() != 1 {
		t.Errorf("TotalUnseen() = %d, want 1", e.TotalUnseen())
	}
}

func table(t *testing.T, names []string, rows int) *dataset.Table {
	t.Helper()
	cols := make([][]float64, len(names))
	for j := range cols {
		cols[j] = make([]float64, rows)
	}
	tbl, err := dataset.NewTable(names, cols)
	if err != nil {
		t.Fatal(err)
	}
	return tbl
}

func TestCheckTable(t *testing.T) {
	e := validEntry()

	if err := e.CheckTable("train", table(t, []string{"age", "city", "label"}, 7)); err != nil {
		t.Errorf("matching train table rejected: %v", err)
	}
	if err := e.CheckTable("test", table(t, []string{"age", "city", "label"}, 3)); err != nil {
		t.Errorf("matching test table rejected: %v", err)
	}

	mismatches := []struct {
		name      string
		partition string
		tbl       *dataset.Table
	}{
		{"reordered columns", "train", table(t, []string{"city", "age", "label"}, 7)},
		{"missing column", "train", table(t, []string{"age", "label"}, 7)},
		{"row count", "test", table(t, []string{"age", "city", "label"}, 4)},
	}
	for _, tt := range mismatches {
		t.Run(tt.name, func(t *testing.T) {
			err := e.CheckTable(tt.partition, tt.tbl)
			var schemaErr *errors.SchemaMismatchError
			if !errors.As(err, &schemaErr) {
				t.Errorf("expected SchemaMismatchError, got %v", err)
			}
		})
	}
}

func TestVerifyArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.csv")
	a, err := artifact.WriteFile(path, func(w io.Writer) error {
		_, err := w.Write([]byte("a,b\n1,2\n"))
		return err
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := VerifyArtifact(path, a); err != nil {
		t.Errorf("VerifyArtifact on untouched file: %v", err)
	}

	if err := os.WriteFile(path, []byte("a,b\n9,9\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	var schemaErr *errors.SchemaMismatchError
	if err := VerifyArtifact(path, a); !errors.As(err, &schemaErr) {
		t.Errorf("expected SchemaMismatchError after modification, got %v", err)
	}

	var notFound *errors.InputNotFoundError
	if err := VerifyArtifact(path+".missing", a); !errors.As(err, &notFound) {
		t.Errorf("expected InputNotFoundError, got %v", err)
	}
}

func TestReadMissing(t *testing.T) {
	_, err := Read("train", filepath.Join(t.TempDir(), FileName))
	var notFound *errors.InputNotFoundError
	if !errors.As(err, &notFound) || notFound.Stage != "train" {
		t.Errorf("expected InputNotFoundError for stage train, got %v", err)
	}
}

func TestDecodeRejectsInvalid(t *testing.T) {
	if _, err := Decode(strings.NewReader(`{"version": 1, "stage": ""}`)); err == nil {
		t.Error("expected validation error")
	}
	if _, err := Decode(strings.NewReader(`{"version": 1, "extra": true}`)); err == nil {
		t.Error("expected error for unknown field")
	}
}
