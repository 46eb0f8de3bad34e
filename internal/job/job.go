// Package job executes YAML-declared table pipelines: read a dataset,
// apply named operations through the table op registry, optionally
// write the result.
package job

import (
	"context"
	stderrors "errors"
	"time"

	"go.uber.org/zap"

	"github.com/quiverdata/quiver/pkg/compression"
	"github.com/quiverdata/quiver/pkg/config"
	"github.com/quiverdata/quiver/pkg/dataset"
	"github.com/quiverdata/quiver/pkg/errors"
	"github.com/quiverdata/quiver/pkg/logger"
	"github.com/quiverdata/quiver/pkg/metrics"
	"github.com/quiverdata/quiver/pkg/observability"
	"github.com/quiverdata/quiver/pkg/table"

	// Register the filter operator so every job can use it.
	_ "github.com/quiverdata/quiver/pkg/query"
)

// Job is one parsed pipeline definition.
type Job struct {
	Name   string  `yaml:"name" json:"name"`
	Input  Input   `yaml:"input" json:"input"`
	Steps  []Step  `yaml:"steps" json:"steps"`
	Output *Output `yaml:"output" json:"output"`
}

// Input names the dataset a job starts from.
type Input struct {
	Path      string `yaml:"path" json:"path"`
	Format    string `yaml:"format" json:"format"`
	ChunkRows int    `yaml:"chunk_rows" json:"chunk_rows"`
}

// Output names where the result lands. A nil Output keeps the result
// in memory only.
type Output struct {
	Path   string `yaml:"path" json:"path"`
	Format string `yaml:"format" json:"format"`
	Level  int    `yaml:"level" json:"level"`
}

// Step applies one registered table operation. With carries the
// operation arguments as decoded YAML. A join step may name its right
// table by path: the runner loads it and passes the table along.
type Step struct {
	Op   string                 `yaml:"op" json:"op"`
	With map[string]interface{} `yaml:"with" json:"with"`
}

// Load reads a job file, substituting environment references.
func Load(path string) (*Job, error) {
	var j Job
	if err := config.Load(path, &j); err != nil {
		return nil, err
	}
	if err := j.Validate(); err != nil {
		return nil, err
	}
	return &j, nil
}

// Validate checks the job shape. Violations are ConfigErrors.
func (j *Job) Validate() error {
	if j.Input.Path == "" {
		return errors.New(errors.ErrorTypeConfig, "job has no input path")
	}
	if j.Input.Format != "" {
		if _, err := dataset.ParseFormat(j.Input.Format); err != nil {
			return err
		}
	}
	for i, s := range j.Steps {
		if s.Op == "" {
			return errors.Newf(errors.ErrorTypeConfig, "step %d has no op", i+1)
		}
	}
	if j.Output != nil {
		if j.Output.Path == "" {
			return errors.New(errors.ErrorTypeConfig, "job output has no path")
		}
		if j.Output.Format != "" {
			if _, err := dataset.ParseFormat(j.Output.Format); err != nil {
				return err
			}
		}
	}
	return nil
}

// Result reports what a run did.
type Result struct {
	Table    *table.Table
	RowsIn   int
	RowsOut  int
	Steps    int
	Duration time.Duration
}

// Runner executes jobs with the engine configuration's dataset
// defaults.
type Runner struct {
	cfg       *config.Config
	log       *zap.Logger
	collector *metrics.Collector
}

// NewRunner builds a runner. A nil cfg uses config.Default.
func NewRunner(cfg *config.Config) *Runner {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Runner{
		cfg:       cfg,
		log:       logger.Get().With(zap.String("component", "job")),
		collector: metrics.NewCollector("job"),
	}
}

// Run executes the job and returns its result. The context cancels
// between steps.
func (r *Runner) Run(ctx context.Context, j *Job) (*Result, error) {
	if err := j.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	res := &Result{}

	err := observability.Traced(ctx, "job "+j.Name, func(ctx context.Context) error {
		t, err := r.readInput(ctx, j)
		if err != nil {
			return err
		}
		res.RowsIn = t.RowCount()

		for i, step := range j.Steps {
			if err := ctx.Err(); err != nil {
				return errors.Wrapf(err, errors.ErrorTypeInternal, "job canceled before step %d", i+1)
			}
			t, err = r.runStep(ctx, t, step)
			if err != nil {
				return wrapStep(err, i+1, step.Op)
			}
			res.Steps++
		}

		res.Table = t
		res.RowsOut = t.RowCount()

		if j.Output != nil {
			return r.writeOutput(ctx, j, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	res.Duration = time.Since(start)
	r.log.Info("job finished",
		zap.String("job", j.Name),
		zap.Int("rows_in", res.RowsIn),
		zap.Int("rows_out", res.RowsOut),
		zap.Int("steps", res.Steps),
		zap.Duration("duration", res.Duration))
	return res, nil
}

func (r *Runner) readInput(ctx context.Context, j *Job) (*table.Table, error) {
	var t *table.Table
	err := observability.Traced(ctx, "job input", func(context.Context) error {
		opts, err := r.datasetOptions(j.Input.Format, 0)
		if err != nil {
			return err
		}
		opts.ChunkRows = j.Input.ChunkRows
		if opts.ChunkRows == 0 {
			opts.ChunkRows = r.cfg.Dataset.ChunkRows
		}
		t, err = dataset.Read(j.Input.Path, opts)
		return err
	})
	return t, err
}

func (r *Runner) writeOutput(ctx context.Context, j *Job, t *table.Table) error {
	return observability.Traced(ctx, "job output", func(context.Context) error {
		opts, err := r.datasetOptions(j.Output.Format, j.Output.Level)
		if err != nil {
			return err
		}
		return dataset.Write(j.Output.Path, t, opts)
	})
}

func (r *Runner) datasetOptions(format string, level int) (*dataset.Options, error) {
	opts := &dataset.Options{
		Level:            compression.Level(level),
		DisableInference: r.cfg.Dataset.DisableInference,
	}
	if format != "" {
		f, err := dataset.ParseFormat(format)
		if err != nil {
			return nil, err
		}
		opts.Format = f
	}
	return opts, nil
}

func (r *Runner) runStep(ctx context.Context, t *table.Table, step Step) (*table.Table, error) {
	op, ok := table.LookupOp(step.Op)
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeArgument, "unknown operation %q", step.Op)
	}

	args, err := r.resolveArgs(step)
	if err != nil {
		return nil, err
	}

	var out *table.Table
	stepStart := time.Now()
	err = observability.Traced(ctx, "step "+step.Op, func(context.Context) error {
		var stepErr error
		out, stepErr = op(t, args)
		return stepErr
	})
	r.collector.ObserveOperation(step.Op, t.RowCount(), time.Since(stepStart), err)
	if err != nil {
		return nil, err
	}

	r.log.Debug("step applied",
		zap.String("op", step.Op),
		zap.Int("rows_in", t.RowCount()),
		zap.Int("rows_out", out.RowCount()))
	return out, nil
}

// wrapStep annotates a step failure, keeping the cause's error type so
// the taxonomy survives the extra context.
func wrapStep(err error, n int, op string) error {
	errType := errors.ErrorTypeInternal
	var qe *errors.Error
	if stderrors.As(err, &qe) {
		errType = qe.Type
	}
	return errors.Wrapf(err, errType, "step %d (%s)", n, op)
}

// resolveArgs copies the step arguments, loading a join's right table
// when it is given as a path.
func (r *Runner) resolveArgs(step Step) (map[string]interface{}, error) {
	args := make(map[string]interface{}, len(step.With))
	for k, v := range step.With {
		args[k] = v
	}
	if path, ok := args["right"].(string); ok {
		opts, err := r.datasetOptions("", 0)
		if err != nil {
			return nil, err
		}
		right, err := dataset.Read(path, opts)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrorTypeIO, "loading join table %s", path)
		}
		args["right"] = right
	}
	return args, nil
}
