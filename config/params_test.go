package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/tabpipe/dataset"
	"github.com/YuminosukeSato/tabpipe/pkg/errors"
)

func writeParams(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "params.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	p := Default()

	assert.Equal(t, 0.2, p.Data.TestSize)
	assert.Equal(t, int64(42), p.Data.Seed)
	assert.Empty(t, p.Data.LabelColumn)
	assert.Equal(t, dataset.DefaultNAValues, p.Data.NAValues)
	assert.Equal(t, 0, p.Transform.Workers)
	assert.True(t, p.Transform.LabelAsCategorical)
	assert.Equal(t, 1000, p.Train.MaxIter)
	assert.Equal(t, 1.0, p.Train.C)
	assert.Equal(t, "info", p.Log.Level)
	assert.Empty(t, p.Audit.Path)
	assert.NoError(t, p.Validate())
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeParams(t, `
data:
  test_size: 0.3
  seed: 7
  label_column: species
transform:
  workers: 2
train:
  max_iter: 50
`)

	p, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.3, p.Data.TestSize)
	assert.Equal(t, int64(7), p.Data.Seed)
	assert.Equal(t, "species", p.Data.LabelColumn)
	assert.Equal(t, 2, p.Transform.Workers)
	assert.Equal(t, 50, p.Train.MaxIter)
	// untouched keys keep their defaults
	assert.Equal(t, 1e-4, p.Train.Tol)
	assert.True(t, p.Transform.LabelAsCategorical)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeParams(t, "data:\n  test_size: 0.3\n")
	t.Setenv("TABPIPE_DATA__TEST_SIZE", "0.25")
	t.Setenv("TABPIPE_LOG__LEVEL", "debug")

	p, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.25, p.Data.TestSize)
	assert.Equal(t, "debug", p.Log.Level)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)

	var notFound *errors.InputNotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		param string
	}{
		{"test size one", "data:\n  test_size: 1\n", "data.test_size"},
		{"test size zero", "data:\n  test_size: 0\n", "data.test_size"},
		{"negative workers", "transform:\n  workers: -1\n", "transform.workers"},
		{"zero max iter", "train:\n  max_iter: 0\n", "train.max_iter"},
		{"negative c", "train:\n  c: -2\n", "train.c"},
		{"bad log level", "log:\n  level: loud\n", "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeParams(t, tt.body))
			require.Error(t, err)

			var verr *errors.ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.param, verr.ParamName)
		})
	}
}
