package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/tabpipe/audit"
	"github.com/YuminosukeSato/tabpipe/ingestion"
	"github.com/YuminosukeSato/tabpipe/ledger"
	"github.com/YuminosukeSato/tabpipe/pipeline"
	"github.com/YuminosukeSato/tabpipe/training"
)

const rawCSV = `age,city,income,label
23,A,31000,no
35,A,42000,yes
41,B,58000,yes
29,C,39000,no
,A,50000,no
52,A,61000,yes
38,B,45000,no
44,A,52000,yes
31,NA,40000,yes
31,A,36000,no
27,B,33000,no
60,D,70000,yes
`

func writeFixtures(t *testing.T, extraParams string) (raw, params string) {
	t.Helper()
	dir := t.TempDir()
	raw = filepath.Join(dir, "raw.csv")
	params = filepath.Join(dir, "params.yaml")
	require.NoError(t, os.WriteFile(raw, []byte(rawCSV), 0o644))
	body := "data:\n  test_size: 0.3\n  seed: 42\ntrain:\n  max_iter: 200\nlog:\n  level: error\n" + extraParams
	require.NoError(t, os.WriteFile(params, []byte(body), 0o644))
	return raw, params
}

func TestAllWritesEveryArtifact(t *testing.T) {
	raw, params := writeFixtures(t, "")
	out := filepath.Join(t.TempDir(), "out")
	var stdout, stderr bytes.Buffer

	code := run([]string{"all", raw, params, out}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	for _, name := range []string{
		ingestion.CleanedFile, ingestion.RecordFile,
		pipeline.TrainFile, pipeline.TestFile, ledger.FileName,
		training.ModelFile, training.MetricsFile, training.ChartFile,
	} {
		assert.FileExists(t, filepath.Join(out, name))
	}
}

func TestStagesRunSeparately(t *testing.T) {
	raw, params := writeFixtures(t, "")
	base := t.TempDir()
	ingested := filepath.Join(base, "ingested")
	transformed := filepath.Join(base, "transformed")
	trained := filepath.Join(base, "trained")
	var stdout, stderr bytes.Buffer

	require.Equal(t, 0, run([]string{"ingest", raw, params, ingested}, &stdout, &stderr), stderr.String())
	require.Equal(t, 0, run([]string{"transform", filepath.Join(ingested, ingestion.CleanedFile), params, transformed}, &stdout, &stderr), stderr.String())
	require.Equal(t, 0, run([]string{"train", transformed, params, trained}, &stdout, &stderr), stderr.String())

	assert.FileExists(t, filepath.Join(trained, training.MetricsFile))
	assert.NoFileExists(t, filepath.Join(trained, ledger.FileName))
}

func TestMissingInputExitsOne(t *testing.T) {
	_, params := writeFixtures(t, "")
	out := filepath.Join(t.TempDir(), "out")
	var stdout, stderr bytes.Buffer

	code := run([]string{"transform", filepath.Join(t.TempDir(), "missing.csv"), params, out}, &stdout, &stderr)

	assert.Equal(t, 1, code)
	lines := strings.Split(strings.TrimSpace(stderr.String()), "\n")
	assert.True(t, strings.HasPrefix(lines[len(lines)-1], "Error: "), stderr.String())
	assert.Contains(t, lines[len(lines)-1], "input not found")
	assert.NoDirExists(t, out)
}

func TestWrongArgCountExitsOne(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, run([]string{"train", "only-one"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "Error: ")
}

func TestBadParamsExitsOne(t *testing.T) {
	raw, _ := writeFixtures(t, "")
	params := filepath.Join(t.TempDir(), "params.yaml")
	require.NoError(t, os.WriteFile(params, []byte("data:\n  test_size: 1.5\n"), 0o644))
	var stdout, stderr bytes.Buffer

	code := run([]string{"ingest", raw, params, filepath.Join(t.TempDir(), "out")}, &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "test_size")
}

func TestAuditRecordsEachStage(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "audit.db")
	raw, params := writeFixtures(t, "audit:\n  path: "+dbPath+"\n")
	out := filepath.Join(t.TempDir(), "out")
	var stdout, stderr bytes.Buffer

	require.Equal(t, 0, run([]string{"all", raw, params, out}, &stdout, &stderr), stderr.String())
	code := run([]string{"train", filepath.Join(t.TempDir(), "nothing"), params, filepath.Join(t.TempDir(), "x")}, &stdout, &stderr)
	require.Equal(t, 1, code)

	store, err := audit.Open(context.Background(), dbPath)
	require.NoError(t, err)
	defer store.Close()

	runs, err := store.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, runs, 4)

	var stages, statuses []string
	for _, r := range runs {
		stages = append(stages, r.Stage)
		statuses = append(statuses, r.Status)
	}
	assert.Equal(t, []string{"ingest", "transform", "train", "train"}, stages)
	assert.Equal(t, []string{audit.StatusSucceeded, audit.StatusSucceeded, audit.StatusSucceeded, audit.StatusFailed}, statuses)
	assert.Contains(t, string(runs[2].Details), "f1_score")
}
