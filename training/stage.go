// Package training implements the last pipeline stage: it fits a
// classifier on the transformed train table, evaluates it on the test table
// and publishes the model, its metrics and a chart of per-class scores.
//
// The stage never re-splits. It trusts only tables whose digests, columns,
// row counts and label position match the ledger written by the transform
// stage.
package training

import (
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabpipe/config"
	"github.com/YuminosukeSato/tabpipe/core/model"
	"github.com/YuminosukeSato/tabpipe/dataset"
	"github.com/YuminosukeSato/tabpipe/ledger"
	"github.com/YuminosukeSato/tabpipe/metrics"
	"github.com/YuminosukeSato/tabpipe/pipeline"
	"github.com/YuminosukeSato/tabpipe/pkg/artifact"
	"github.com/YuminosukeSato/tabpipe/pkg/errors"
	"github.com/YuminosukeSato/tabpipe/pkg/log"
	"github.com/YuminosukeSato/tabpipe/preprocessing"
	"github.com/YuminosukeSato/tabpipe/sklearn/linear_model"
)

// Output file names inside a training output directory.
const (
	ModelFile   = "model.gob"
	MetricsFile = "metrics.json"
	ChartFile   = "metrics.png"
)

// Config locates the inputs and outputs of one training run.
type Config struct {
	// InputDir holds train.csv, test.csv and ledger.json.
	InputDir  string
	OutputDir string
	Params    *config.Params
	Logger    log.Logger
}

// Metrics is the content of metrics.json.
type Metrics struct {
	Accuracy float64 `json:"accuracy"`
	F1Score  float64 `json:"f1_score"`
}

// SavedModel is what model.gob holds: the fitted classifier together with
// the feature order it expects.
type SavedModel struct {
	Features   []string
	Label      string
	Classifier *linear_model.LogisticRegression
}

// Result summarises a training run.
type Result struct {
	Metrics Metrics
	Report  *metrics.Report
	Model   artifact.Artifact
	Output  artifact.Artifact
	Chart   artifact.Artifact
}

// Run trains and evaluates the classifier described by cfg.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	params := cfg.Params
	if params == nil {
		params = config.Default()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	logger = logger.With(log.StageKey, log.StageTrain)
	start := time.Now()

	entry, err := ledger.Read(log.StageTrain, filepath.Join(cfg.InputDir, ledger.FileName))
	if err != nil {
		return nil, err
	}
	train, err := loadPartition(cfg.InputDir, "train", pipeline.TrainFile, entry.Outputs.Train, entry)
	if err != nil {
		return nil, err
	}
	test, err := loadPartition(cfg.InputDir, "test", pipeline.TestFile, entry.Outputs.Test, entry)
	if err != nil {
		return nil, err
	}
	logger.Info("Loaded transformed tables",
		log.TrainRowsKey, train.NumRows(),
		log.TestRowsKey, test.NumRows(),
		log.ColumnsKey, train.NumColumns(),
	)

	XTrain, yTrain := train.Split(entry.Label.Position)
	XTest, yTest := test.Split(entry.Label.Position)
	for _, y := range []*mat.VecDense{yTrain, yTest} {
		if err := checkLabels(entry.Label.Name, y); err != nil {
			return nil, err
		}
	}
	if n := entry.Diagnostics.Unseen[entry.Label.Name]; n > 0 {
		logger.Warn("Test labels unseen during transform are scored as their own class",
			log.ColumnKey, entry.Label.Name,
			log.UnseenKey, n,
			"sentinel", entry.Diagnostics.UnseenCode,
		)
	}

	clf := linear_model.NewLogisticRegression(
		linear_model.WithLRC(params.Train.C),
		linear_model.WithLRMaxIter(params.Train.MaxIter),
		linear_model.WithLRTol(params.Train.Tol),
		linear_model.WithLRRandomState(params.Train.Seed),
		linear_model.WithLRWorkers(params.Transform.Workers),
	)
	logger.Debug("Fitting classifier", log.OperationKey, log.OperationFit, log.RandomSeedKey, params.Train.Seed)
	if err := clf.FitContext(ctx, XTrain, yTrain); err != nil {
		return nil, errors.Wrap(err, "fit classifier")
	}

	pred, err := clf.Predict(XTest)
	if err != nil {
		return nil, errors.Wrap(err, "predict test partition")
	}
	report, err := metrics.ClassificationReport(yTest, pred)
	if err != nil {
		return nil, errors.Wrap(err, "evaluate")
	}
	logger.Debug("Evaluated classifier",
		log.OperationKey, log.OperationEvaluate,
		"confusion_matrix", report.Confusion,
	)
	res := &Result{
		Metrics: Metrics{Accuracy: report.Accuracy, F1Score: report.F1},
		Report:  report,
	}

	batch, err := artifact.NewBatch(cfg.OutputDir)
	if err != nil {
		return nil, err
	}
	defer batch.Abort()

	saved := &SavedModel{
		Features:   entry.FeatureNames(),
		Label:      entry.Label.Name,
		Classifier: clf,
	}
	if res.Model, err = batch.Write(ModelFile, func(w io.Writer) error {
		return model.Save(w, saved)
	}); err != nil {
		return nil, err
	}
	if res.Output, err = batch.Write(MetricsFile, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res.Metrics)
	}); err != nil {
		return nil, err
	}
	if res.Chart, err = batch.Write(ChartFile, func(w io.Writer) error {
		return WriteChart(w, report)
	}); err != nil {
		return nil, err
	}
	if err := batch.Commit(); err != nil {
		return nil, err
	}

	logger.Info("Training complete",
		log.OperationKey, log.OperationEvaluate,
		log.AccuracyKey, res.Metrics.Accuracy,
		log.F1Key, res.Metrics.F1Score,
		log.PathKey, res.Model.Path,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return res, nil
}

// loadPartition verifies a transformed table against its ledger record
// before reading it.
func loadPartition(dir, partition, name string, want artifact.Artifact, entry *ledger.Entry) (*dataset.Table, error) {
	path := filepath.Join(dir, name)
	if err := ledger.VerifyArtifact(path, want); err != nil {
		return nil, err
	}
	t, err := dataset.ReadTableFile(log.StageTrain, path)
	if err != nil {
		return nil, err
	}
	if err := entry.CheckTable(partition, t); err != nil {
		return nil, err
	}
	return t, nil
}

// checkLabels rejects label values that cannot be class labels, e.g. a
// label column that was standardized instead of encoded.
func checkLabels(name string, y *mat.VecDense) error {
	for i := 0; i < y.Len(); i++ {
		if v := y.AtVec(i); !preprocessing.IsClassLabel(v) {
			return errors.NewValidationError(name, "class labels must be integers", v)
		}
	}
	return nil
}

// LoadModel reads a model.gob written by Run.
func LoadModel(path string) (*SavedModel, error) {
	var m SavedModel
	if err := model.LoadFile(path, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
