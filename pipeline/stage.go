package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/YuminosukeSato/tabpipe/config"
	"github.com/YuminosukeSato/tabpipe/dataset"
	"github.com/YuminosukeSato/tabpipe/ledger"
	"github.com/YuminosukeSato/tabpipe/pkg/artifact"
	"github.com/YuminosukeSato/tabpipe/pkg/log"
)

// Output file names inside a transform output directory.
const (
	TrainFile = "train.csv"
	TestFile  = "test.csv"
)

// TransformConfig locates the inputs and outputs of one transform run.
type TransformConfig struct {
	// InputPath is the cleaned CSV produced by ingestion.
	InputPath string
	OutputDir string
	Params    *config.Params
	Logger    log.Logger
}

// RunTransform reads the cleaned dataset, transforms it, and publishes
// train.csv, test.csv and ledger.json together. On any failure nothing is
// published.
func RunTransform(ctx context.Context, cfg TransformConfig) (*ledger.Entry, error) {
	params := cfg.Params
	if params == nil {
		params = config.Default()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	logger = logger.With(log.StageKey, log.StageTransform)
	start := time.Now()

	logger.Info("Starting transformation", log.PathKey, cfg.InputPath)

	ds, err := dataset.ReadCSVFile(log.StageTransform, cfg.InputPath)
	if err != nil {
		return nil, err
	}
	logger.Info("Loaded dataset", log.RowsKey, ds.NumRows(), log.ColumnsKey, ds.NumColumns())

	source, err := artifact.Describe(cfg.InputPath)
	if err != nil {
		return nil, err
	}

	engine := NewEngine(Options{
		Workers:            params.Transform.Workers,
		LabelColumn:        params.Data.LabelColumn,
		LabelAsCategorical: params.Transform.LabelAsCategorical,
		Logger:             logger,
	})
	result, err := engine.Transform(ctx, ds, params.Data.TestSize, params.Data.Seed)
	if err != nil {
		return nil, err
	}

	batch, err := artifact.NewBatch(cfg.OutputDir)
	if err != nil {
		return nil, err
	}
	defer batch.Abort()

	entry := result.Entry
	entry.Source = source
	if entry.Outputs.Train, err = batch.Write(TrainFile, func(w io.Writer) error {
		return dataset.WriteTable(w, result.Train)
	}); err != nil {
		return nil, err
	}
	if entry.Outputs.Test, err = batch.Write(TestFile, func(w io.Writer) error {
		return dataset.WriteTable(w, result.Test)
	}); err != nil {
		return nil, err
	}
	ledgerArtifact, err := batch.Write(ledger.FileName, func(w io.Writer) error {
		return ledger.Encode(w, entry)
	})
	if err != nil {
		return nil, err
	}

	if err := batch.Commit(); err != nil {
		return nil, err
	}

	logger.Info("Transformation complete",
		log.PathKey, ledgerArtifact.Path,
		log.DigestKey, ledgerArtifact.SHA256,
		log.TrainRowsKey, entry.Rows.Train,
		log.TestRowsKey, entry.Rows.Test,
		log.UnseenKey, entry.TotalUnseen(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return entry, nil
}
