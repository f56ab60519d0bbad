package engine

import (
	"context"
	"time"

	qerrors "github.com/otherjamesbrown/qidlink/pkg/errors"
	"github.com/otherjamesbrown/qidlink/pkg/linking"
	"github.com/otherjamesbrown/qidlink/pkg/logging"
	"github.com/otherjamesbrown/qidlink/pkg/observability"
)

// DefaultCheckpointEvery is how many records are processed between cache flushes.
const DefaultCheckpointEvery = 50

// Saver persists run state, typically the query cache.
type Saver interface {
	Save(ctx context.Context) error
}

// Status is the outcome of one record in a run.
type Status string

const (
	StatusResolved        Status = "resolved"
	StatusUnresolved      Status = "unresolved"
	StatusAlreadyResolved Status = "already_resolved"
	StatusSkipped         Status = "skipped"
	StatusFailed          Status = "failed"
)

// Result reports what happened to one record.
type Result struct {
	Record     *linking.Record
	Status     Status
	Resolution *linking.Resolution
	Err        error
}

// RunOptions controls a batch run.
type RunOptions struct {
	Force           bool
	CheckpointEvery int
	// Skip excludes records from the run without resolving them.
	Skip func(*linking.Record) bool
	// OnResult is called after every record, in input order.
	OnResult func(Result)
}

// Summary counts the outcomes of a run.
type Summary struct {
	Total           int                  `json:"total"`
	Resolved        int                  `json:"resolved"`
	Unresolved      int                  `json:"unresolved"`
	AlreadyResolved int                  `json:"already_resolved"`
	Skipped         int                  `json:"skipped"`
	Failed          int                  `json:"failed"`
	Tiers           map[linking.Tier]int `json:"tiers"`
	Checkpoints     int                  `json:"checkpoints"`
	Duration        time.Duration        `json:"duration"`
}

// Runner drives the engine over a batch of records.
type Runner struct {
	engine  *Engine
	saver   Saver
	logger  logging.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer
}

// NewRunner creates a runner. saver may be nil.
func NewRunner(engine *Engine, saver Saver, logger logging.Logger, metrics *observability.Metrics) *Runner {
	if logger == nil {
		logger = logging.MustGlobal()
	}
	return &Runner{
		engine:  engine,
		saver:   saver,
		logger:  logger.With(logging.F("component", "runner")),
		metrics: metrics,
		tracer:  observability.NewTracer(),
	}
}

// Run resolves records in input order and sets Record.Resolution for every
// new match. A failing record is logged and counted; it never stops the run.
// Cancelling ctx stops the run after a final checkpoint and returns the
// partial summary with the context error.
func (r *Runner) Run(ctx context.Context, records []*linking.Record, opts RunOptions) (*Summary, error) {
	if opts.CheckpointEvery <= 0 {
		opts.CheckpointEvery = DefaultCheckpointEvery
	}
	runID, _ := ctx.Value(logging.RunIDKey).(string)
	ctx, span := r.tracer.StartRunSpan(ctx, runID)
	defer span.End()

	log := r.logger.WithContext(ctx)
	start := time.Now()
	sum := &Summary{Tiers: make(map[linking.Tier]int)}

	var runErr error
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		sum.Total++

		result := r.process(ctx, log, rec, opts)
		if result.Err != nil && ctx.Err() != nil {
			// Interrupted mid-record: not counted as a failure.
			sum.Total--
			runErr = ctx.Err()
			break
		}
		sum.count(result)
		r.metrics.RecordRecord(string(result.Status))
		if opts.OnResult != nil {
			opts.OnResult(result)
		}

		if (i+1)%opts.CheckpointEvery == 0 {
			r.checkpoint(ctx, log, sum)
			log.Info("Progress",
				logging.F("processed", i+1),
				logging.F("total", len(records)),
				logging.F("resolved", sum.Resolved),
			)
		}
	}

	r.checkpoint(context.WithoutCancel(ctx), log, sum)
	sum.Duration = time.Since(start)

	log.Info("Run complete",
		logging.F("total", sum.Total),
		logging.F("resolved", sum.Resolved),
		logging.F("unresolved", sum.Unresolved),
		logging.F("already_resolved", sum.AlreadyResolved),
		logging.F("skipped", sum.Skipped),
		logging.F("failed", sum.Failed),
		logging.F("duration", sum.Duration),
	)
	return sum, runErr
}

func (r *Runner) process(ctx context.Context, log logging.Logger, rec *linking.Record, opts RunOptions) Result {
	if opts.Skip != nil && opts.Skip(rec) {
		return Result{Record: rec, Status: StatusSkipped}
	}

	existing := rec.Resolution
	res, err := r.engine.Resolve(ctx, rec, opts.Force)
	switch {
	case err != nil && qerrors.IsEmptyInput(err):
		log.Debug("Skipping record with empty name", logging.F("row", rec.Row))
		return Result{Record: rec, Status: StatusSkipped, Err: err}
	case err != nil:
		if ctx.Err() == nil {
			log.Error("Record failed", logging.F("row", rec.Row), logging.F("name", rec.Name), logging.Err(err))
		}
		return Result{Record: rec, Status: StatusFailed, Err: err}
	case res == nil && existing != nil:
		// Nothing beat the threshold; the prior identifier stays in the output.
		return Result{Record: rec, Status: StatusAlreadyResolved, Resolution: existing}
	case res == nil:
		return Result{Record: rec, Status: StatusUnresolved}
	case res == existing && !opts.Force:
		return Result{Record: rec, Status: StatusAlreadyResolved, Resolution: res}
	}

	rec.Resolution = res
	log.Debug("Record resolved",
		logging.F("row", rec.Row),
		logging.F("name", rec.Name),
		logging.F("identifier", res.Identifier),
		logging.F("tier", string(res.Tier)),
		logging.F("score", res.Score),
	)
	return Result{Record: rec, Status: StatusResolved, Resolution: res}
}

func (r *Runner) checkpoint(ctx context.Context, log logging.Logger, sum *Summary) {
	if r.saver == nil {
		return
	}
	if err := r.saver.Save(ctx); err != nil {
		log.Warn("Checkpoint failed", logging.Err(err))
		return
	}
	sum.Checkpoints++
}

func (s *Summary) count(res Result) {
	switch res.Status {
	case StatusResolved:
		s.Resolved++
		s.Tiers[res.Resolution.Tier]++
	case StatusUnresolved:
		s.Unresolved++
	case StatusAlreadyResolved:
		s.AlreadyResolved++
	case StatusSkipped:
		s.Skipped++
	case StatusFailed:
		s.Failed++
	}
}
