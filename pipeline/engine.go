// Package pipeline implements the feature transformation engine and the
// transform stage built on it.
//
// The engine splits first, classifies and fits on the training rows only,
// then applies the same fitted transformers to both partitions. No value from
// a test row ever reaches a fitted parameter.
package pipeline

import (
	"context"
	"slices"

	"github.com/YuminosukeSato/tabpipe/core/parallel"
	"github.com/YuminosukeSato/tabpipe/dataset"
	"github.com/YuminosukeSato/tabpipe/ledger"
	"github.com/YuminosukeSato/tabpipe/pkg/errors"
	"github.com/YuminosukeSato/tabpipe/pkg/log"
	"github.com/YuminosukeSato/tabpipe/preprocessing"
	"github.com/YuminosukeSato/tabpipe/selection"
)

// Options configures an Engine.
type Options struct {
	// Workers bounds per-column parallelism. Zero means one per CPU.
	Workers int
	// LabelColumn names the label. Empty means the last column.
	LabelColumn string
	// LabelAsCategorical encodes the label as class codes even when its
	// values are numeric.
	LabelAsCategorical bool
	Logger             log.Logger
}

// Engine runs split, classify, fit and apply for one dataset.
type Engine struct {
	opts   Options
	logger log.Logger
}

// Result is the outcome of one transformation.
type Result struct {
	Train    *dataset.Table
	Test     *dataset.Table
	Specs    []preprocessing.ColumnSpec
	Registry *preprocessing.Registry
	Split    selection.SplitResult
	// Entry is the ledger for this run without Source and Outputs, which
	// the caller fills in once the tables are written.
	Entry *ledger.Entry
}

// NewEngine creates an Engine.
func NewEngine(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Engine{
		opts:   opts,
		logger: logger.With(log.ComponentKey, "engine"),
	}
}

// columnOutput holds what one column worker produced.
type columnOutput struct {
	transformer preprocessing.Transformer
	train       []float64
	test        []float64
	unseen      int
}

// Transform partitions ds with (testFraction, seed), fits one transformer
// per column on the training rows, and applies it to both partitions.
//
// Any per-column failure aborts the run with a ColumnError naming the
// column; no partial result is returned.
func (e *Engine) Transform(ctx context.Context, ds *dataset.Dataset, testFraction float64, seed int64) (*Result, error) {
	if ds == nil || ds.NumRows() == 0 {
		return nil, errors.NewEmptyDatasetError("Transform")
	}
	if ds.NumColumns() < 2 {
		return nil, errors.NewValidationError("columns", "need a label and at least one feature", ds.NumColumns())
	}
	label, err := e.resolveLabel(ds)
	if err != nil {
		return nil, err
	}

	// 1. split before any statistic is computed
	split, err := selection.TrainTestSplit(ds.NumRows(), testFraction, seed)
	if err != nil {
		return nil, err
	}
	train := ds.Take(split.Train)
	test := ds.Take(split.Test)
	e.logger.Info("Split dataset",
		log.OperationKey, log.OperationSplit,
		log.RowsKey, ds.NumRows(),
		log.TrainRowsKey, train.NumRows(),
		log.TestRowsKey, test.NumRows(),
		log.TestFractionKey, testFraction,
		log.RandomSeedKey, seed,
	)

	// 2. classify on the training rows only
	var forced []string
	if e.opts.LabelAsCategorical {
		forced = append(forced, label.Name)
	}
	specs, err := preprocessing.Classify(train, forced...)
	if err != nil {
		return nil, err
	}
	numeric, categorical := preprocessing.SplitKinds(specs)
	e.logger.Info("Classified columns",
		log.OperationKey, log.OperationClassify,
		log.NumericColumnsKey, numeric,
		log.CategoricalColumnsKey, categorical,
	)

	// 3. fit on train, apply to both, one column per task
	outputs := make([]columnOutput, len(specs))
	workers := parallel.Workers(e.opts.Workers, len(specs))
	err = parallel.ForEach(ctx, len(specs), workers, func(_ context.Context, j int) error {
		name := specs[j].Name
		err := errors.SafeExecute("transform column "+name, func() error {
			out, err := e.transformColumn(specs[j], j == label.Position, train.ColumnAt(j).Values, test.ColumnAt(j).Values)
			if err != nil {
				return err
			}
			outputs[j] = out
			return nil
		})
		if err != nil {
			return columnError(name, "transform", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 4. assemble by column index, independent of completion order
	names := ds.Names()
	transformers := make([]preprocessing.Transformer, len(specs))
	trainCols := make([][]float64, len(specs))
	testCols := make([][]float64, len(specs))
	diag := ledger.Diagnostics{
		Unseen:          make(map[string]int, len(categorical)),
		UnseenCode:      preprocessing.UnseenCode,
		ConstantColumns: []string{},
	}
	for j, out := range outputs {
		transformers[j] = out.transformer
		trainCols[j] = out.train
		testCols[j] = out.test
		if specs[j].Kind == preprocessing.Categorical {
			diag.Unseen[names[j]] = out.unseen
			if out.unseen > 0 {
				errors.Warn(errors.NewUnseenCategoryWarning(names[j], out.unseen, preprocessing.UnseenCode))
			}
		}
		if s, ok := out.transformer.(*preprocessing.NumericScaler); ok && s.Constant() {
			diag.ConstantColumns = append(diag.ConstantColumns, names[j])
		}
	}

	registry, err := preprocessing.NewRegistry(transformers...)
	if err != nil {
		return nil, err
	}
	trainTable, err := dataset.NewTable(names, trainCols)
	if err != nil {
		return nil, err
	}
	testTable, err := dataset.NewTable(names, testCols)
	if err != nil {
		return nil, err
	}

	// 5. both tables must match the fitted registry column for column
	if err := checkSchema(registry, trainTable, testTable); err != nil {
		return nil, err
	}
	e.logger.Info("Transformed tables",
		log.TrainRowsKey, trainTable.NumRows(),
		log.TestRowsKey, testTable.NumRows(),
		log.ColumnsKey, trainTable.NumColumns(),
		log.WorkersKey, workers,
	)

	entry := &ledger.Entry{
		Version:            ledger.Version,
		Stage:              log.StageTransform,
		Params:             ledger.SplitParams{TestFraction: testFraction, Seed: seed},
		Rows:               ledger.Rows{Train: trainTable.NumRows(), Test: testTable.NumRows()},
		Columns:            specs,
		NumericColumns:     numeric,
		CategoricalColumns: categorical,
		Label:              label,
		Diagnostics:        diag,
	}

	return &Result{
		Train:    trainTable,
		Test:     testTable,
		Specs:    specs,
		Registry: registry,
		Split:    split,
		Entry:    entry,
	}, nil
}

func (e *Engine) resolveLabel(ds *dataset.Dataset) (ledger.Label, error) {
	if e.opts.LabelColumn == "" {
		pos := ds.NumColumns() - 1
		return ledger.Label{Name: ds.ColumnAt(pos).Name, Position: pos}, nil
	}
	pos := ds.Index(e.opts.LabelColumn)
	if pos < 0 {
		return ledger.Label{}, errors.NewSchemaMismatchError("Transform",
			[]string{e.opts.LabelColumn}, ds.Names(), "label column not found")
	}
	return ledger.Label{Name: e.opts.LabelColumn, Position: pos}, nil
}

func (e *Engine) transformColumn(spec preprocessing.ColumnSpec, isLabel bool, train, test []string) (columnOutput, error) {
	fit := preprocessing.Fit
	if isLabel {
		// a numeric label keeps its raw integer classes
		fit = preprocessing.FitLabel
	}
	tr, err := fit(spec, train)
	if err != nil {
		return columnOutput{}, columnError(spec.Name, log.OperationFit, err)
	}

	trainOut, err := tr.Apply(train)
	if err != nil {
		return columnOutput{}, columnError(spec.Name, log.OperationApply, err)
	}
	testOut, err := tr.Apply(test)
	if err != nil {
		return columnOutput{}, columnError(spec.Name, log.OperationApply, err)
	}

	fields := []any{
		log.ColumnKey, spec.Name,
		log.KindKey, spec.Kind.String(),
		log.UnseenKey, testOut.Unseen,
	}
	switch t := tr.(type) {
	case *preprocessing.NumericScaler:
		fields = append(fields, "mean", t.Mean(), "std", t.Std())
	case *preprocessing.CategoricalEncoder:
		fields = append(fields, "categories", t.Categories())
	}
	e.logger.Debug("Transformed column", fields...)
	return columnOutput{
		transformer: tr,
		train:       trainOut.Values,
		test:        testOut.Values,
		unseen:      testOut.Unseen,
	}, nil
}

// checkSchema verifies that every table has exactly the registry's columns,
// in registry order.
func checkSchema(registry *preprocessing.Registry, tables ...*dataset.Table) error {
	specs := registry.Specs()
	want := make([]string, len(specs))
	for i, s := range specs {
		want[i] = s.Name
	}
	for _, t := range tables {
		if !slices.Equal(t.Names(), want) {
			return errors.NewSchemaMismatchError("Transform", want, t.Names(), "table columns differ from fitted transformers")
		}
	}
	return nil
}

// columnError attaches the column name unless err already carries one.
func columnError(column, op string, err error) error {
	var colErr *errors.ColumnError
	if errors.As(err, &colErr) {
		return err
	}
	return errors.NewColumnError(column, op, err)
}
