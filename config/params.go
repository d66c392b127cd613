// Package config loads the pipeline parameters shared by every stage.
//
// Values are layered, lowest precedence first: built-in defaults, the params
// YAML file named on the command line, then TABPIPE_ environment variables.
// Nested keys are addressed in the environment with a double underscore, so
// TABPIPE_DATA__TEST_SIZE overrides data.test_size.
package config

import (
	"math"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/YuminosukeSato/tabpipe/dataset"
	"github.com/YuminosukeSato/tabpipe/pkg/errors"
	"github.com/YuminosukeSato/tabpipe/pkg/log"
)

// EnvPrefix is the prefix of environment variables that override params.
const EnvPrefix = "TABPIPE_"

// Params is the full parameter record read by the stages.
type Params struct {
	Data      DataParams      `koanf:"data"`
	Transform TransformParams `koanf:"transform"`
	Train     TrainParams     `koanf:"train"`
	Log       LogParams       `koanf:"log"`
	Audit     AuditParams     `koanf:"audit"`
}

// DataParams controls ingestion and the train/test split.
type DataParams struct {
	TestSize float64 `koanf:"test_size"`
	Seed     int64   `koanf:"seed"`
	// LabelColumn names the label. Empty means the last column.
	LabelColumn string   `koanf:"label_column"`
	NAValues    []string `koanf:"na_values"`
}

// TransformParams controls the feature transformation engine.
type TransformParams struct {
	// Workers bounds per-column parallelism. Zero means runtime.NumCPU().
	Workers            int  `koanf:"workers"`
	LabelAsCategorical bool `koanf:"label_as_categorical"`
}

// TrainParams holds the classifier hyperparameters.
type TrainParams struct {
	MaxIter int     `koanf:"max_iter"`
	C       float64 `koanf:"c"`
	Tol     float64 `koanf:"tol"`
	Seed    int64   `koanf:"seed"`
}

// LogParams selects the log level and output format.
type LogParams struct {
	Level  string `koanf:"level"`
	Pretty bool   `koanf:"pretty"`
}

// AuditParams locates the SQLite run history. Empty Path disables auditing.
type AuditParams struct {
	Path string `koanf:"path"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"data.test_size":                 0.2,
		"data.seed":                      42,
		"data.label_column":              "",
		"data.na_values":                 dataset.DefaultNAValues,
		"transform.workers":              0,
		"transform.label_as_categorical": true,
		"train.max_iter":                 1000,
		"train.c":                        1.0,
		"train.tol":                      1e-4,
		"train.seed":                     42,
		"log.level":                      "info",
		"log.pretty":                     false,
		"audit.path":                     "",
	}
}

// Default returns the parameters used when no file or environment overrides
// are present.
func Default() *Params {
	p, err := load("")
	if err != nil {
		// defaults are static; a failure here is a programming error
		panic(err)
	}
	return p
}

// Load reads params from path layered over the defaults and the environment,
// then validates the result. A missing file yields InputNotFoundError.
func Load(path string) (*Params, error) {
	if path == "" {
		return nil, errors.NewValidationError("params_path", "must not be empty", path)
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewInputNotFoundError("config", path)
		}
		return nil, errors.Wrapf(err, "stat params file %s", path)
	}

	p, err := load(path)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func load(path string) (*Params, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, errors.Wrap(err, "load default params")
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "read params file %s", path)
		}
	}

	// TABPIPE_TRAIN__MAX_ITER -> train.max_iter
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load params from environment")
	}

	var p Params
	if err := k.Unmarshal("", &p); err != nil {
		return nil, errors.Wrap(err, "decode params")
	}
	return &p, nil
}

// Validate checks every value against its allowed range.
func (p *Params) Validate() error {
	ts := p.Data.TestSize
	if math.IsNaN(ts) || ts <= 0 || ts >= 1 {
		return errors.NewValidationError("data.test_size", "must be in the open interval (0, 1)", ts)
	}
	if p.Transform.Workers < 0 {
		return errors.NewValidationError("transform.workers", "must be non-negative", p.Transform.Workers)
	}
	if p.Train.MaxIter <= 0 {
		return errors.NewValidationError("train.max_iter", "must be positive", p.Train.MaxIter)
	}
	if !(p.Train.C > 0) || math.IsInf(p.Train.C, 0) {
		return errors.NewValidationError("train.c", "must be a positive finite number", p.Train.C)
	}
	if !(p.Train.Tol > 0) || math.IsInf(p.Train.Tol, 0) {
		return errors.NewValidationError("train.tol", "must be a positive finite number", p.Train.Tol)
	}
	if _, err := log.ParseLevel(p.Log.Level); err != nil {
		return err
	}
	return nil
}
