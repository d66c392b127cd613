package main

import (
	"context"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/tabpipe/audit"
	"github.com/YuminosukeSato/tabpipe/config"
	"github.com/YuminosukeSato/tabpipe/ingestion"
	"github.com/YuminosukeSato/tabpipe/pipeline"
	"github.com/YuminosukeSato/tabpipe/pkg/log"
	"github.com/YuminosukeSato/tabpipe/training"
)

// env is what every stage command needs once the params file is loaded.
type env struct {
	params *config.Params
	logger log.Logger
	store  *audit.Store
}

func newRootCmd(logOut io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "tabpipe",
		Short:         "ingest, transform and train on tabular CSV data",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	stage := func(use, short string, fn func(ctx context.Context, e *env, input, output string) error) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <input> <params> <output_dir>",
			Short: short,
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				e, err := setup(cmd.Context(), args[1], logOut)
				if err != nil {
					return err
				}
				defer e.close()
				return fn(cmd.Context(), e, args[0], args[2])
			},
		}
	}

	root.AddCommand(
		stage("ingest", "drop rows with missing values", runIngest),
		stage("transform", "split, encode and scale a cleaned CSV", runTransform),
		stage("train", "fit and evaluate a classifier on transformed tables", runTrain),
		stage("all", "run ingest, transform and train into one directory", runAll),
	)
	return root
}

func setup(ctx context.Context, paramsPath string, logOut io.Writer) (*env, error) {
	params, err := config.Load(paramsPath)
	if err != nil {
		return nil, err
	}
	level, err := log.ParseLevel(params.Log.Level)
	if err != nil {
		return nil, err
	}
	var provider log.LoggerProvider = log.NewZerologProviderWithWriter(logOut, level, params.Log.Pretty)
	logger := provider.GetLogger()
	log.InstallWarnHook(logger)

	e := &env{params: params, logger: logger}
	if params.Audit.Path != "" {
		if e.store, err = audit.Open(ctx, params.Audit.Path); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *env) close() {
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			e.logger.Warn("failed to close audit store", err)
		}
	}
}

// audited runs fn and, when an audit store is configured, records the run
// with the details fn returns.
func (e *env) audited(ctx context.Context, stage string, fn func() (any, error)) error {
	if e.store == nil {
		_, err := fn()
		if err != nil {
			e.logger.Error("Stage failed", err, log.StageKey, stage)
		}
		return err
	}
	run, err := e.store.Begin(ctx, stage)
	if err != nil {
		return err
	}
	logger := e.logger
	e.logger = logger.With(log.RunIDKey, run.ID)
	defer func() { e.logger = logger }()

	details, runErr := fn()
	if runErr != nil {
		details = nil
		e.logger.Error("Stage failed", runErr, log.StageKey, stage)
	}
	if err := run.Finish(ctx, runErr, details); err != nil {
		e.logger.Warn("failed to record audit run", err)
	}
	return runErr
}

func runIngest(ctx context.Context, e *env, input, output string) error {
	return e.audited(ctx, log.StageIngest, func() (any, error) {
		return ingestion.Run(ctx, ingestion.Config{
			InputPath: input,
			OutputDir: output,
			Params:    e.params,
			Logger:    e.logger,
		})
	})
}

func runTransform(ctx context.Context, e *env, input, output string) error {
	return e.audited(ctx, log.StageTransform, func() (any, error) {
		return pipeline.RunTransform(ctx, pipeline.TransformConfig{
			InputPath: input,
			OutputDir: output,
			Params:    e.params,
			Logger:    e.logger,
		})
	})
}

func runTrain(ctx context.Context, e *env, input, output string) error {
	return e.audited(ctx, log.StageTrain, func() (any, error) {
		res, err := training.Run(ctx, training.Config{
			InputDir:  input,
			OutputDir: output,
			Params:    e.params,
			Logger:    e.logger,
		})
		if err != nil {
			return nil, err
		}
		return res.Metrics, nil
	})
}

func runAll(ctx context.Context, e *env, input, output string) error {
	if err := runIngest(ctx, e, input, output); err != nil {
		return err
	}
	if err := runTransform(ctx, e, filepath.Join(output, ingestion.CleanedFile), output); err != nil {
		return err
	}
	return runTrain(ctx, e, output, output)
}
