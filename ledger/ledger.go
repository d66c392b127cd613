// Package ledger defines the record a transform run leaves for the stages
// after it.
//
// An Entry is written once, as the last file of the transform run's output
// batch, and is read-only to every later stage. It pins down what the
// training stage may assume about the transformed tables: their row counts,
// column names, kinds and order, which column is the label, and the digests
// of the files it describes. An Entry carries no timestamps or run ids, so
// identical inputs and parameters produce a byte-identical ledger.
package ledger

import (
	"encoding/json"
	"io"
	"os"
	"slices"

	"github.com/YuminosukeSato/tabpipe/dataset"
	"github.com/YuminosukeSato/tabpipe/pkg/artifact"
	"github.com/YuminosukeSato/tabpipe/pkg/errors"
	"github.com/YuminosukeSato/tabpipe/preprocessing"
)

// FileName is the name of the ledger inside a transform output directory.
const FileName = "ledger.json"

// Version is the current ledger format version.
const Version = 1

// Entry is one transform run's ledger.
type Entry struct {
	Version            int                        `json:"version"`
	Stage              string                     `json:"stage"`
	Params             SplitParams                `json:"params"`
	Rows               Rows                       `json:"rows"`
	Columns            []preprocessing.ColumnSpec `json:"columns"`
	NumericColumns     []string                   `json:"numeric_columns"`
	CategoricalColumns []string                   `json:"categorical_columns"`
	Label              Label                      `json:"label"`
	Source             artifact.Artifact          `json:"source"`
	Outputs            Outputs                    `json:"outputs"`
	Diagnostics        Diagnostics                `json:"diagnostics"`
}

// SplitParams records how the rows were partitioned.
type SplitParams struct {
	TestFraction float64 `json:"test_fraction"`
	Seed         int64   `json:"seed"`
}

// Rows holds the partition sizes.
type Rows struct {
	Train int `json:"train"`
	Test  int `json:"test"`
}

// Label identifies the label column by name and zero-based position.
type Label struct {
	Name     string `json:"name"`
	Position int    `json:"position"`
}

// Outputs are the transformed tables the entry describes.
type Outputs struct {
	Train artifact.Artifact `json:"train"`
	Test  artifact.Artifact `json:"test"`
}

// Diagnostics are non-fatal findings of the run.
type Diagnostics struct {
	// Unseen maps each categorical column to the number of test values that
	// were absent from the training rows and encoded as the unseen sentinel.
	Unseen map[string]int `json:"unseen_categories"`
	// UnseenCode is the sentinel those values were encoded as.
	UnseenCode int `json:"unseen_code"`
	// ConstantColumns are numeric columns whose training values had zero
	// variance and were centred but not scaled.
	ConstantColumns []string `json:"constant_columns"`
}

// Names returns the column names in table order.
func (e *Entry) Names() []string {
	names := make([]string, len(e.Columns))
	for i, c := range e.Columns {
		names[i] = c.Name
	}
	return names
}

// FeatureNames returns every column name except the label, in table order.
func (e *Entry) FeatureNames() []string {
	names := e.Names()
	return slices.Delete(names, e.Label.Position, e.Label.Position+1)
}

// TotalUnseen sums the unseen-category substitutions over all columns.
func (e *Entry) TotalUnseen() int {
	total := 0
	for _, n := range e.Diagnostics.Unseen {
		total += n
	}
	return total
}

// Validate checks the entry's internal consistency.
func (e *Entry) Validate() error {
	if e.Version != Version {
		return errors.NewValidationError("version", "unsupported ledger version", e.Version)
	}
	if e.Stage == "" {
		return errors.NewValidationError("stage", "must not be empty", e.Stage)
	}
	if e.Rows.Train <= 0 || e.Rows.Test <= 0 {
		return errors.NewValidationError("rows", "train and test partitions must be non-empty", e.Rows)
	}
	if len(e.Columns) < 2 {
		return errors.NewValidationError("columns", "need a label and at least one feature", len(e.Columns))
	}
	if e.Label.Position < 0 || e.Label.Position >= len(e.Columns) {
		return errors.NewValidationError("label.position", "out of range", e.Label.Position)
	}
	if e.Columns[e.Label.Position].Name != e.Label.Name {
		return errors.NewValidationError("label.name", "does not match the column at label.position", e.Label.Name)
	}

	var numeric, categorical []string
	for _, c := range e.Columns {
		switch c.Kind {
		case preprocessing.Numeric:
			numeric = append(numeric, c.Name)
		case preprocessing.Categorical:
			categorical = append(categorical, c.Name)
		}
	}
	if !slices.Equal(numeric, e.NumericColumns) {
		return errors.NewValidationError("numeric_columns", "does not match column kinds", e.NumericColumns)
	}
	if !slices.Equal(categorical, e.CategoricalColumns) {
		return errors.NewValidationError("categorical_columns", "does not match column kinds", e.CategoricalColumns)
	}
	return nil
}

// CheckTable verifies that t has exactly the columns and row count the entry
// records for one partition ("train" or "test").
func (e *Entry) CheckTable(partition string, t *dataset.Table) error {
	op := "ledger.CheckTable(" + partition + ")"
	if !slices.Equal(t.Names(), e.Names()) {
		return errors.NewSchemaMismatchError(op, e.Names(), t.Names(), "columns differ from ledger")
	}

	want := e.Rows.Train
	if partition == "test" {
		want = e.Rows.Test
	}
	if t.NumRows() != want {
		return errors.NewSchemaMismatchError(op, e.Names(), t.Names(),
			"row count differs from ledger")
	}
	if t.Index(e.Label.Name) != e.Label.Position {
		return errors.NewSchemaMismatchError(op, e.Names(), t.Names(), "label column differs from ledger")
	}
	return nil
}

// VerifyArtifact checks that the file at path has the digest recorded in want.
func VerifyArtifact(path string, want artifact.Artifact) error {
	got, err := artifact.Describe(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewInputNotFoundError("ledger", path)
		}
		return err
	}
	if got.SHA256 != want.SHA256 {
		return errors.NewSchemaMismatchError("ledger.VerifyArtifact",
			[]string{want.SHA256}, []string{got.SHA256}, "digest of "+path+" differs from ledger")
	}
	return nil
}

// Encode validates e and writes it as indented JSON.
func Encode(w io.Writer, e *Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(e), "encode ledger")
}

// Decode reads and validates an entry.
func Decode(r io.Reader) (*Entry, error) {
	var e Entry
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&e); err != nil {
		return nil, errors.Wrap(err, "decode ledger")
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}

// Read opens and decodes the ledger at path on behalf of stage.
func Read(stage, path string) (*Entry, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.NewInputNotFoundError(stage, path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	e, err := Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return e, nil
}
