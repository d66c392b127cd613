// Package log defines standard attribute keys for pipeline operations.
//
// Using these keys across stages keeps the log stream of one run greppable:
// every record of a transform run carries the same stage and run keys, and
// per-column records carry the column key.
//
// The keys follow a hierarchical naming convention (e.g. "pipeline.stage",
// "data.rows") to enable structured log analysis and filtering.

package log

// Run and stage context.
const (
	// StageKey names the pipeline stage emitting the record.
	// Standard values: "ingest", "transform", "train".
	StageKey = "pipeline.stage"

	// RunIDKey identifies a single stage run.
	RunIDKey = "pipeline.run_id"

	// ComponentKey identifies which component or package is logging.
	// Examples: "engine", "registry", "split"
	ComponentKey = "pipeline.component"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "apply", "split", "classify", "write"
	OperationKey = "pipeline.operation"
)

// Data shape and schema.
const (
	// RowsKey is the number of rows in the table being processed.
	RowsKey = "data.rows"

	// TrainRowsKey and TestRowsKey carry partition sizes after a split.
	TrainRowsKey = "data.train_rows"
	TestRowsKey  = "data.test_rows"

	// ColumnsKey is the number of columns in the table.
	ColumnsKey = "data.columns"

	// ColumnKey names a single column.
	ColumnKey = "data.column"

	// KindKey is the semantic kind assigned to a column ("numeric", "categorical").
	KindKey = "data.kind"

	// NumericColumnsKey and CategoricalColumnsKey carry the classified column lists.
	NumericColumnsKey     = "data.numeric_columns"
	CategoricalColumnsKey = "data.categorical_columns"

	// DroppedRowsKey counts rows removed by the NA policy during ingestion.
	DroppedRowsKey = "data.dropped_rows"

	// UnseenKey counts categorical values substituted by the unseen sentinel.
	UnseenKey = "data.unseen"
)

// Artifacts.
const (
	// PathKey is a filesystem path of an input or output artifact.
	PathKey = "artifact.path"

	// DigestKey is the content digest of an artifact.
	DigestKey = "artifact.digest"
)

// Configuration and metrics.
const (
	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"

	// TestFractionKey records the configured test fraction.
	TestFractionKey = "config.test_fraction"

	// WorkersKey records the size of the column worker pool.
	WorkersKey = "config.workers"

	// AccuracyKey and F1Key record evaluation metrics.
	AccuracyKey = "metrics.accuracy"
	F1Key       = "metrics.f1_score"

	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"
)

// Error context.
const (
	// ErrorTypeKey categorizes the type of error encountered.
	ErrorTypeKey = "error.type"

	// StacktraceKey contains stack trace information for debugging.
	StacktraceKey = "error.stacktrace"
)

// Standard attribute values.
const (
	StageIngest    = "ingest"
	StageTransform = "transform"
	StageTrain     = "train"

	OperationFit      = "fit"
	OperationApply    = "apply"
	OperationSplit    = "split"
	OperationClassify = "classify"
	OperationWrite    = "write"
	OperationEvaluate = "evaluate"
)
