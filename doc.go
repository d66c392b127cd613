// Package tabpipe is a three-stage batch pipeline for tabular CSV data:
// ingest, transform and train.
//
// Each stage reads from disk and writes to disk, so stages can be re-run
// independently. The transform stage is the core: it splits the cleaned
// dataset once, learns every column transformation from the train partition
// only, applies the learned transformations to both partitions and records
// what it did in a ledger that the train stage trusts instead of re-deriving.
//
// # Installation
//
//	go install github.com/YuminosukeSato/tabpipe/cmd/tabpipe@latest
//
// # Quick Start
//
//	tabpipe all data/raw.csv params.yaml out/
//
// params.yaml:
//
//	data:
//	  test_size: 0.2
//	  seed: 42
//	transform:
//	  workers: 4
//	train:
//	  max_iter: 1000
//	log:
//	  level: info
//
// Every key can be overridden from the environment, e.g.
// TABPIPE_DATA__TEST_SIZE=0.3.
//
// # Library use
//
//	engine := pipeline.NewEngine(pipeline.Options{Workers: 4})
//	res, err := engine.Transform(ctx, ds, 0.2, 42)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res.Entry.CategoricalColumns, res.Entry.Diagnostics.Unseen)
//
// # Packages
//
//   - dataset: raw string datasets, numeric tables, CSV I/O, NA handling
//   - selection: seeded train/test split
//   - preprocessing: column classification, categorical encoder, numeric scaler, registry
//   - pipeline: the transformation engine and the transform stage
//   - ledger: the record handed from transform to train
//   - ingestion: the ingest stage
//   - training: the train stage, metrics and chart
//   - sklearn/linear_model: one-vs-rest logistic regression
//   - metrics: accuracy, weighted F1, confusion matrix
//   - audit: SQLite history of stage runs
//   - config: layered params (defaults, YAML, environment)
//   - core/model, core/parallel: estimator state, persistence, worker pool
//   - pkg/errors, pkg/log, pkg/artifact: errors, structured logging, atomic outputs
package tabpipe
