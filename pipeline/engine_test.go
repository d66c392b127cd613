package pipeline

import (
	"bytes"
	"context"
	"reflect"
	"strconv"
	"testing"

	"pgregory.net/rapid"

	"github.com/YuminosukeSato/tabpipe/dataset"
	"github.com/YuminosukeSato/tabpipe/ledger"
	"github.com/YuminosukeSato/tabpipe/pkg/errors"
	"github.com/YuminosukeSato/tabpipe/pkg/log"
	"github.com/YuminosukeSato/tabpipe/preprocessing"
	"github.com/YuminosukeSato/tabpipe/selection"
)

func mustDataset(t testing.TB, cols ...dataset.Column) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.New(cols...)
	if err != nil {
		t.Fatalf("dataset.New: %v", err)
	}
	return ds
}

// cityDataset builds the ten-row age/city example with "D" placed on a row
// that the (0.3, 42) split sends to the test partition.
func cityDataset(t *testing.T) (*dataset.Dataset, selection.SplitResult) {
	t.Helper()
	split, err := selection.TrainTestSplit(10, 0.3, 42)
	if err != nil {
		t.Fatal(err)
	}

	city := []string{"A", "A", "B", "C", "A", "B", "A", "A", "B", "A"}
	city[split.Test[0]] = "D"

	ds := mustDataset(t,
		dataset.Column{Name: "age", Values: []string{"23", "35", "41", "29", "52", "38", "44", "31", "27", "60"}},
		dataset.Column{Name: "city", Values: city},
		dataset.Column{Name: "label", Values: []string{"0", "1", "1", "0", "1", "0", "1", "0", "0", "1"}},
	)
	return ds, split
}

func TestTransformCityExample(t *testing.T) {
	ds, split := cityDataset(t)

	var warnings []error
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	defer errors.SetWarningHandler(func(error) {})

	engine := NewEngine(Options{LabelAsCategorical: true})
	result, err := engine.Transform(context.Background(), ds, 0.3, 42)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}

	if result.Train.NumRows() != 7 || result.Test.NumRows() != 3 {
		t.Fatalf("rows = %d/%d, want 7/3", result.Train.NumRows(), result.Test.NumRows())
	}
	if !reflect.DeepEqual(result.Split, split) {
		t.Errorf("Split = %v, want %v", result.Split, split)
	}

	wantSpecs := []preprocessing.ColumnSpec{
		{Name: "age", Kind: preprocessing.Numeric},
		{Name: "city", Kind: preprocessing.Categorical},
		{Name: "label", Kind: preprocessing.Categorical},
	}
	if !reflect.DeepEqual(result.Specs, wantSpecs) {
		t.Errorf("Specs = %v", result.Specs)
	}

	// the encoder only knows the cities of the training rows, in first-seen order
	cityValues, _ := ds.Column("city")
	var wantCategories []string
	for _, r := range split.Train {
		if !containsString(wantCategories, cityValues[r]) {
			wantCategories = append(wantCategories, cityValues[r])
		}
	}
	tr, _ := result.Registry.Lookup("city")
	enc := tr.(*preprocessing.CategoricalEncoder)
	if !reflect.DeepEqual(enc.Categories(), wantCategories) {
		t.Errorf("Categories() = %v, want %v", enc.Categories(), wantCategories)
	}
	if containsString(enc.Categories(), "D") {
		t.Fatal("test-only value D leaked into the encoder")
	}

	testCity := result.Test.ColumnAt(1)
	if testCity[0] != preprocessing.UnseenCode {
		t.Errorf("D encoded as %v, want sentinel %d", testCity[0], preprocessing.UnseenCode)
	}
	for k, r := range split.Test {
		code, seen := enc.Code(cityValues[r])
		if seen && testCity[k] != float64(code) {
			t.Errorf("test row %d: %q encoded as %v, want %d", r, cityValues[r], testCity[k], code)
		}
	}

	if result.Entry.Diagnostics.Unseen["city"] < 1 {
		t.Errorf("Unseen[city] = %d, want >= 1", result.Entry.Diagnostics.Unseen["city"])
	}
	if len(warnings) == 0 {
		t.Error("expected an UnseenCategoryWarning")
	}
	var w *errors.UnseenCategoryWarning
	if !errors.As(warnings[0], &w) || w.Column != "city" {
		t.Errorf("unexpected warning %v", warnings[0])
	}

	if result.Entry.Label != (ledger.Label{Name: "label", Position: 2}) {
		t.Errorf("Label = %+v", result.Entry.Label)
	}
	if err := result.Entry.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}

	// the numeric label is passed through unscaled
	tr, _ = result.Registry.Lookup("label")
	if _, ok := tr.(*preprocessing.IntegerLabel); !ok {
		t.Errorf("label transformer = %T, want *IntegerLabel", tr)
	}
	labels, _ := ds.Column("label")
	for i, r := range result.Split.Train {
		want, _ := strconv.ParseFloat(labels[r], 64)
		if got := result.Train.ColumnAt(2)[i]; got != want {
			t.Errorf("train label[%d] = %v, want raw %v", i, got, want)
		}
	}
}

func TestTransformRejectsContinuousNumericLabel(t *testing.T) {
	ds := mustDataset(t,
		dataset.Column{Name: "x", Values: []string{"1", "2", "3", "4", "5", "6"}},
		dataset.Column{Name: "y", Values: []string{"0.5", "1.5", "0.5", "1.5", "0.5", "1.5"}},
	)

	_, err := NewEngine(Options{}).Transform(context.Background(), ds, 0.5, 1)

	var colErr *errors.ColumnError
	if !errors.As(err, &colErr) {
		t.Fatalf("expected ColumnError, got %v", err)
	}
	if colErr.Column != "y" || colErr.Op != log.OperationFit {
		t.Errorf("ColumnError = %q/%q, want y/fit", colErr.Column, colErr.Op)
	}
	var valueErr *errors.ValueError
	if !errors.As(err, &valueErr) {
		t.Errorf("expected ValueError cause, got %v", err)
	}
}

func TestCheckSchemaDetectsMismatch(t *testing.T) {
	age, err := preprocessing.FitNumeric("age", []string{"1", "2"})
	if err != nil {
		t.Fatal(err)
	}
	city, err := preprocessing.FitCategorical("city", []string{"A", "B"})
	if err != nil {
		t.Fatal(err)
	}
	registry, err := preprocessing.NewRegistry(age, city)
	if err != nil {
		t.Fatal(err)
	}

	good, _ := dataset.NewTable([]string{"age", "city"}, [][]float64{{0}, {1}})
	swapped, _ := dataset.NewTable([]string{"city", "age"}, [][]float64{{0}, {1}})
	short, _ := dataset.NewTable([]string{"age"}, [][]float64{{0}})

	if err := checkSchema(registry, good, good); err != nil {
		t.Errorf("matching tables: %v", err)
	}
	for name, bad := range map[string]*dataset.Table{"swapped": swapped, "short": short} {
		if err := checkSchema(registry, good, bad); !is[*errors.SchemaMismatchError](err) {
			t.Errorf("%s: expected SchemaMismatchError, got %v", name, err)
		}
	}
}

func containsString(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func TestTransformNumericUsesTrainStatistics(t *testing.T) {
	ds, split := cityDataset(t)

	result, err := NewEngine(Options{LabelAsCategorical: true}).Transform(context.Background(), ds, 0.3, 42)
	if err != nil {
		t.Fatal(err)
	}

	ages, _ := ds.Column("age")
	var sum float64
	for _, r := range split.Train {
		v, _ := strconv.ParseFloat(ages[r], 64)
		sum += v
	}
	tr, _ := result.Registry.Lookup("age")
	scaler := tr.(*preprocessing.NumericScaler)
	if got, want := scaler.Mean(), sum/float64(len(split.Train)); got != want {
		t.Errorf("Mean() = %v, want train mean %v", got, want)
	}

	// standardized training column has zero mean
	var trainSum float64
	for _, v := range result.Train.ColumnAt(0) {
		trainSum += v
	}
	if trainSum > 1e-9 || trainSum < -1e-9 {
		t.Errorf("standardized train column sums to %v", trainSum)
	}
}

func TestTransformEntryCompletes(t *testing.T) {
	ds, _ := cityDataset(t)
	result, err := NewEngine(Options{}).Transform(context.Background(), ds, 0.3, 42)
	if err != nil {
		t.Fatal(err)
	}

	// without LabelAsCategorical a 0/1 label stays numeric
	if result.Specs[2].Kind != preprocessing.Numeric {
		t.Errorf("label kind = %v, want numeric", result.Specs[2].Kind)
	}
	if !reflect.DeepEqual(result.Entry.NumericColumns, []string{"age", "label"}) {
		t.Errorf("NumericColumns = %v", result.Entry.NumericColumns)
	}
	if !reflect.DeepEqual(result.Entry.CategoricalColumns, []string{"city"}) {
		t.Errorf("CategoricalColumns = %v", result.Entry.CategoricalColumns)
	}
	if err := result.Entry.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestTransformConstantColumn(t *testing.T) {
	ds := mustDataset(t,
		dataset.Column{Name: "flat", Values: []string{"5", "5", "5", "5", "5", "5"}},
		dataset.Column{Name: "y", Values: []string{"a", "b", "a", "b", "a", "b"}},
	)

	result, err := NewEngine(Options{}).Transform(context.Background(), ds, 0.5, 1)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if !reflect.DeepEqual(result.Entry.Diagnostics.ConstantColumns, []string{"flat"}) {
		t.Errorf("ConstantColumns = %v", result.Entry.Diagnostics.ConstantColumns)
	}
	for _, v := range append(result.Train.ColumnAt(0), result.Test.ColumnAt(0)...) {
		if v != 0 {
			t.Errorf("constant column should centre to 0, got %v", v)
		}
	}
}

func TestTransformNonNumericTestValueFailsWithColumn(t *testing.T) {
	split, _ := selection.TrainTestSplit(6, 0.5, 3)
	x := []string{"1", "2", "3", "4", "5", "6"}
	x[split.Test[0]] = "oops"
	ds := mustDataset(t,
		dataset.Column{Name: "x", Values: x},
		dataset.Column{Name: "y", Values: []string{"a", "b", "a", "b", "a", "b"}},
	)

	_, err := NewEngine(Options{}).Transform(context.Background(), ds, 0.5, 3)
	var colErr *errors.ColumnError
	if !errors.As(err, &colErr) {
		t.Fatalf("expected ColumnError, got %v", err)
	}
	if colErr.Column != "x" || colErr.Op != log.OperationApply {
		t.Errorf("ColumnError = %q/%q, want x/apply", colErr.Column, colErr.Op)
	}
}

func TestTransformErrors(t *testing.T) {
	twoRows := mustDataset(t,
		dataset.Column{Name: "x", Values: []string{"1", "2"}},
		dataset.Column{Name: "y", Values: []string{"a", "b"}},
	)
	empty := mustDataset(t,
		dataset.Column{Name: "x", Values: []string{}},
		dataset.Column{Name: "y", Values: []string{}},
	)
	oneColumn := mustDataset(t, dataset.Column{Name: "y", Values: []string{"a", "b"}})

	tests := []struct {
		name     string
		opts     Options
		ds       *dataset.Dataset
		fraction float64
		check    func(error) bool
	}{
		{"empty dataset", Options{}, empty, 0.5, is[*errors.EmptyDatasetError]},
		{"single column", Options{}, oneColumn, 0.5, is[*errors.ValidationError]},
		{"empty test partition", Options{}, twoRows, 0.2, is[*errors.InsufficientRowsError]},
		{"bad fraction", Options{}, twoRows, 1.5, is[*errors.ValidationError]},
		{"unknown label", Options{LabelColumn: "target"}, twoRows, 0.5, is[*errors.SchemaMismatchError]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngine(tt.opts).Transform(context.Background(), tt.ds, tt.fraction, 1)
			if err == nil || !tt.check(err) {
				t.Errorf("unexpected error %v", err)
			}
		})
	}
}

func is[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}

func TestTransformLogsThroughLogger(t *testing.T) {
	ds, _ := cityDataset(t)
	logger, _ := log.NewTestLogger(log.LevelDebug)

	_, err := NewEngine(Options{Logger: logger, LabelAsCategorical: true}).Transform(context.Background(), ds, 0.3, 42)
	if err != nil {
		t.Fatal(err)
	}

	if !logger.ContainsMessage("Split dataset") {
		t.Error("expected split log record")
	}
	if !logger.ContainsField(log.TrainRowsKey, float64(7)) {
		t.Error("expected train row count field")
	}
	if !logger.ContainsField(log.ColumnKey, "city") {
		t.Error("expected per-column debug record for city")
	}
}

func encodeResult(t *rapid.T, r *Result) []byte {
	var buf bytes.Buffer
	if err := dataset.WriteTable(&buf, r.Train); err != nil {
		t.Fatal(err)
	}
	if err := dataset.WriteTable(&buf, r.Test); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type fittedParams struct {
	categories map[string][]string
	mean, std  map[string]float64
}

func paramsOf(reg *preprocessing.Registry) fittedParams {
	p := fittedParams{
		categories: map[string][]string{},
		mean:       map[string]float64{},
		std:        map[string]float64{},
	}
	for i := 0; i < reg.Len(); i++ {
		switch tr := reg.At(i).(type) {
		case *preprocessing.CategoricalEncoder:
			p.categories[tr.Column()] = tr.Categories()
		case *preprocessing.NumericScaler:
			p.mean[tr.Column()] = tr.Mean()
			p.std[tr.Column()] = tr.Std()
		}
	}
	return p
}

func drawDataset(t *rapid.T) (*dataset.Dataset, int) {
	n := rapid.IntRange(4, 40).Draw(t, "n")
	num := make([]string, n)
	cat := make([]string, n)
	label := make([]string, n)
	for i := 0; i < n; i++ {
		num[i] = strconv.Itoa(rapid.IntRange(-50, 50).Draw(t, "num"))
		cat[i] = rapid.SampledFrom([]string{"red", "green", "blue"}).Draw(t, "cat")
		label[i] = rapid.SampledFrom([]string{"yes", "no"}).Draw(t, "label")
	}
	ds, err := dataset.New(
		dataset.Column{Name: "num", Values: num},
		dataset.Column{Name: "cat", Values: cat},
		dataset.Column{Name: "label", Values: label},
	)
	if err != nil {
		t.Fatal(err)
	}
	return ds, n
}

func TestTransformNoLeakageProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ds, n := drawDataset(t)
		seed := rapid.Int64().Draw(t, "seed")

		engine := NewEngine(Options{Workers: 2, LabelAsCategorical: true})
		base, err := engine.Transform(context.Background(), ds, 0.25, seed)
		if err != nil {
			t.Fatalf("Transform: %v", err)
		}

		// perturb every test row without changing row membership
		num, _ := ds.Column("num")
		cat, _ := ds.Column("cat")
		label, _ := ds.Column("label")
		num2 := append([]string(nil), num...)
		cat2 := append([]string(nil), cat...)
		label2 := append([]string(nil), label...)
		for _, r := range base.Split.Test {
			num2[r] = strconv.Itoa(rapid.IntRange(-1000, 1000).Draw(t, "perturbed"))
			cat2[r] = "unseen-" + strconv.Itoa(r)
			label2[r] = "maybe"
		}
		perturbed, err := dataset.New(
			dataset.Column{Name: "num", Values: num2},
			dataset.Column{Name: "cat", Values: cat2},
			dataset.Column{Name: "label", Values: label2},
		)
		if err != nil {
			t.Fatal(err)
		}

		other, err := engine.Transform(context.Background(), perturbed, 0.25, seed)
		if err != nil {
			t.Fatalf("Transform perturbed: %v", err)
		}

		if !reflect.DeepEqual(paramsOf(base.Registry), paramsOf(other.Registry)) {
			t.Fatalf("fitted parameters changed when only test rows changed (n=%d)", n)
		}
		if !reflect.DeepEqual(base.Specs, other.Specs) {
			t.Fatal("column kinds changed when only test rows changed")
		}
		var a, b bytes.Buffer
		_ = dataset.WriteTable(&a, base.Train)
		_ = dataset.WriteTable(&b, other.Train)
		if !bytes.Equal(a.Bytes(), b.Bytes()) {
			t.Fatal("train table changed when only test rows changed")
		}
		if other.Entry.Diagnostics.Unseen["cat"] != len(base.Split.Test) {
			t.Fatalf("Unseen[cat] = %d, want %d", other.Entry.Diagnostics.Unseen["cat"], len(base.Split.Test))
		}
	})
}

func TestTransformDeterminismProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ds, _ := drawDataset(t)
		seed := rapid.Int64().Draw(t, "seed")
		workers := rapid.IntRange(1, 4).Draw(t, "workers")

		first, err := NewEngine(Options{Workers: 1}).Transform(context.Background(), ds, 0.25, seed)
		if err != nil {
			t.Fatalf("Transform: %v", err)
		}
		second, err := NewEngine(Options{Workers: workers}).Transform(context.Background(), ds, 0.25, seed)
		if err != nil {
			t.Fatalf("Transform: %v", err)
		}

		if !bytes.Equal(encodeResult(t, first), encodeResult(t, second)) {
			t.Fatal("identical inputs produced different tables")
		}
		if !reflect.DeepEqual(first.Entry, second.Entry) {
			t.Fatal("identical inputs produced different ledger entries")
		}
		if !reflect.DeepEqual(first.Train.Names(), first.Test.Names()) {
			t.Fatal("train and test schemas differ")
		}
	})
}
