// Package ingestion implements the first pipeline stage: read the raw CSV,
// drop rows holding missing values, and publish the cleaned table.
package ingestion

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/YuminosukeSato/tabpipe/config"
	"github.com/YuminosukeSato/tabpipe/dataset"
	"github.com/YuminosukeSato/tabpipe/pkg/artifact"
	"github.com/YuminosukeSato/tabpipe/pkg/errors"
	"github.com/YuminosukeSato/tabpipe/pkg/log"
)

// Output file names inside an ingestion output directory.
const (
	CleanedFile = "cleaned.csv"
	RecordFile  = "ingest.json"
)

// Record describes what one ingestion run read and wrote.
type Record struct {
	Stage       string            `json:"stage"`
	RowsRead    int               `json:"rows_read"`
	RowsDropped int               `json:"rows_dropped"`
	Rows        int               `json:"rows"`
	Columns     []string          `json:"columns"`
	NAValues    []string          `json:"na_values"`
	Source      artifact.Artifact `json:"source"`
	Output      artifact.Artifact `json:"output"`
}

// Config locates the inputs and outputs of one ingestion run.
type Config struct {
	InputPath string
	OutputDir string
	Params    *config.Params
	Logger    log.Logger
}

// Run reads cfg.InputPath, drops rows containing any NA token, and publishes
// cleaned.csv and ingest.json together.
func Run(ctx context.Context, cfg Config) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	params := cfg.Params
	if params == nil {
		params = config.Default()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	logger = logger.With(log.StageKey, log.StageIngest)
	start := time.Now()

	logger.Info("Starting ingestion", log.PathKey, cfg.InputPath)

	raw, err := dataset.ReadCSVFile(log.StageIngest, cfg.InputPath)
	if err != nil {
		return nil, err
	}
	source, err := artifact.Describe(cfg.InputPath)
	if err != nil {
		return nil, err
	}

	cleaned, dropped := dataset.DropNA(raw, params.Data.NAValues)
	logger.Info("Dropped rows with missing values",
		log.RowsKey, raw.NumRows(),
		log.DroppedRowsKey, dropped,
	)
	if cleaned.NumRows() == 0 {
		return nil, errors.NewEmptyDatasetError("ingest")
	}

	batch, err := artifact.NewBatch(cfg.OutputDir)
	if err != nil {
		return nil, err
	}
	defer batch.Abort()

	output, err := batch.Write(CleanedFile, func(w io.Writer) error {
		return dataset.WriteCSV(w, cleaned)
	})
	if err != nil {
		return nil, err
	}

	rec := &Record{
		Stage:       log.StageIngest,
		RowsRead:    raw.NumRows(),
		RowsDropped: dropped,
		Rows:        cleaned.NumRows(),
		Columns:     cleaned.Names(),
		NAValues:    params.Data.NAValues,
		Source:      source,
		Output:      output,
	}
	if _, err := batch.Write(RecordFile, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	}); err != nil {
		return nil, err
	}

	if err := batch.Commit(); err != nil {
		return nil, err
	}

	logger.Info("Ingestion complete",
		log.PathKey, output.Path,
		log.RowsKey, rec.Rows,
		log.ColumnsKey, len(rec.Columns),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return rec, nil
}

// ReadRecord reads an ingest.json written by Run.
func ReadRecord(path string) (*Record, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.NewInputNotFoundError(log.StageIngest, path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	var rec Record
	if err := json.NewDecoder(f).Decode(&rec); err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return &rec, nil
}
