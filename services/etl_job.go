package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bestsellers-etl/models"
	"bestsellers-etl/utils"

	"go.uber.org/zap"
)

const DefaultPacingDelay = time.Second

// DateOutcome is the result of processing one requested date.
type DateOutcome string

const (
	OutcomeLoaded  DateOutcome = "loaded"
	OutcomeSkipped DateOutcome = "skipped"
	OutcomeFailed  DateOutcome = "failed"
)

// BatchTransformer turns a raw response into warehouse records.
type BatchTransformer interface {
	Transform(raw *RawResponse) (*TransformedBatch, error)
}

// RunRecorder persists one row per job run.
type RunRecorder interface {
	Start(ctx context.Context, mode, trigger string, start, end time.Time) (*models.EtlRun, error)
	MarkSuccess(ctx context.Context, runID uint, summary *RunSummary) error
	MarkFailure(ctx context.Context, runID uint, summary *RunSummary, err error) error
}

// RunNotifier is told about runs that finished with failed dates.
type RunNotifier interface {
	NotifyRunFailures(ctx context.Context, summary *RunSummary) error
}

// DateResult describes how one requested date was handled.
type DateResult struct {
	RequestedDate time.Time   `json:"requested_date"`
	ResolvedDate  *time.Time  `json:"resolved_date,omitempty"`
	Outcome       DateOutcome `json:"outcome"`
	Load          *LoadResult `json:"load,omitempty"`
	Err           error       `json:"-"`
}

// Succeeded reports whether the date counts as a success; skipped dates do.
func (r DateResult) Succeeded() bool { return r.Outcome != OutcomeFailed }

// RunSummary tallies a run. Succeeded includes Skipped dates.
type RunSummary struct {
	RunUUID   string       `json:"run_uuid,omitempty"`
	Mode      string       `json:"mode"`
	Start     time.Time    `json:"start"`
	End       time.Time    `json:"end"`
	Succeeded int          `json:"succeeded"`
	Skipped   int          `json:"skipped"`
	Failed    int          `json:"failed"`
	Dates     []DateResult `json:"dates"`
}

// EtlJobDeps are the collaborators of an EtlJobService. Runs, Lock,
// Notifier and Metrics are optional.
type EtlJobDeps struct {
	Extractor   Extractor
	Transformer BatchTransformer
	Loader      Loader
	Status      StatusTracker
	Runs        RunRecorder
	Lock        RunLocker
	Notifier    RunNotifier
	Metrics     *Metrics
	Logger      *zap.Logger
}

// EtlJobConfig tunes an EtlJobService. A zero PacingDelay means
// DefaultPacingDelay; set NoPacing to process dates back to back.
type EtlJobConfig struct {
	PacingDelay   time.Duration
	NoPacing      bool
	TriggerSource string
	LockName      string
}

// EtlJobService drives dates through extract, transform and load one at a
// time, consulting and updating the load status around every phase.
type EtlJobService struct {
	deps   EtlJobDeps
	cfg    EtlJobConfig
	logger *zap.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewEtlJobService constructs an EtlJobService.
func NewEtlJobService(deps EtlJobDeps, cfg EtlJobConfig) *EtlJobService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	switch {
	case cfg.NoPacing || cfg.PacingDelay < 0:
		cfg.PacingDelay = 0
	case cfg.PacingDelay == 0:
		cfg.PacingDelay = DefaultPacingDelay
	}
	if cfg.TriggerSource == "" {
		cfg.TriggerSource = "cli"
	}
	if cfg.LockName == "" {
		cfg.LockName = DefaultLockName
	}
	return &EtlJobService{
		deps:   deps,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		sleep:  sleepContext,
	}
}

// ProcessDate runs the per-date procedure: extract, resolve the bestsellers
// date, skip when that date is already COMPLETED, otherwise mark
// IN_PROGRESS, transform, load and mark COMPLETED. Failures are recorded as
// FAILED with the error message and reported in the result, never returned.
// A failure before the bestsellers date is known writes no status row.
func (j *EtlJobService) ProcessDate(ctx context.Context, requested time.Time) DateResult {
	requested = utils.TruncateDay(requested)
	result := DateResult{RequestedDate: requested}
	log := j.logger.With(zap.String("requested_date", utils.FormatDate(requested)))

	fail := func(resolved *time.Time, err error) DateResult {
		log.Error("error processing date", zap.Error(err))
		if resolved != nil {
			msg := err.Error()
			j.deps.Status.SetStatus(ctx, requested, *resolved, models.LoadStatusFailed, &msg)
		}
		result.Outcome = OutcomeFailed
		result.Err = err
		j.deps.Metrics.observeDate(OutcomeFailed, j.now())
		return result
	}

	raw, err := j.deps.Extractor.Extract(ctx, requested)
	if err != nil {
		return fail(nil, fmt.Errorf("data extraction failed: %w", err))
	}
	if raw == nil || raw.Results.Empty() {
		return fail(nil, fmt.Errorf("data extraction failed: %w", ErrNoData))
	}

	resolved, err := utils.ParseDate(raw.Results.BestsellersDate)
	if err != nil {
		return fail(nil, fmt.Errorf("%w: no bestsellers date in response: %v", ErrValidation, err))
	}
	result.ResolvedDate = &resolved
	log = log.With(zap.String("bestsellers_date", utils.FormatDate(resolved)))

	if status, ok := j.deps.Status.LatestStatus(ctx, resolved); ok && status == models.LoadStatusCompleted {
		log.Info("data already loaded, skipping")
		result.Outcome = OutcomeSkipped
		j.deps.Metrics.observeDate(OutcomeSkipped, j.now())
		return result
	}

	j.deps.Status.SetStatus(ctx, requested, resolved, models.LoadStatusInProgress, nil)

	batch, err := j.deps.Transformer.Transform(raw)
	if err != nil {
		return fail(&resolved, err)
	}
	loaded, err := j.deps.Loader.Load(ctx, batch)
	if err != nil {
		return fail(&resolved, err)
	}

	j.deps.Status.SetStatus(ctx, requested, resolved, models.LoadStatusCompleted, nil)
	log.Info("successfully processed date")
	result.Outcome = OutcomeLoaded
	result.Load = loaded
	j.deps.Metrics.observeDate(OutcomeLoaded, j.now())
	return result
}

// RunIncremental processes the calendar day before the current time.
func (j *EtlJobService) RunIncremental(ctx context.Context) (*RunSummary, error) {
	target := utils.TruncateDay(j.now().AddDate(0, 0, -1))
	j.logger.Info("starting incremental load", zap.String("target_date", utils.FormatDate(target)))
	return j.run(ctx, models.EtlRunModeIncremental, target, target)
}

// RunHistorical processes every day from start to end inclusive, pausing
// PacingDelay between dates. A failed date never stops the run; only
// context cancellation does.
func (j *EtlJobService) RunHistorical(ctx context.Context, start, end time.Time) (*RunSummary, error) {
	start, end = utils.TruncateDay(start), utils.TruncateDay(end)
	if end.Before(start) {
		return nil, fmt.Errorf("end date %s is before start date %s", utils.FormatDate(end), utils.FormatDate(start))
	}
	j.logger.Info("starting historical load",
		zap.String("start_date", utils.FormatDate(start)),
		zap.String("end_date", utils.FormatDate(end)))
	return j.run(ctx, models.EtlRunModeHistorical, start, end)
}

func (j *EtlJobService) run(ctx context.Context, mode string, start, end time.Time) (*RunSummary, error) {
	if j.deps.Lock != nil {
		release, err := j.deps.Lock.Acquire(ctx, j.cfg.LockName)
		if err != nil {
			return nil, err
		}
		defer func() {
			if relErr := release(); relErr != nil {
				j.logger.Warn("failed to release etl run lock", zap.Error(relErr))
			}
		}()
	}

	summary := &RunSummary{Mode: mode, Start: start, End: end}

	var run *models.EtlRun
	if j.deps.Runs != nil {
		var err error
		run, err = j.deps.Runs.Start(ctx, mode, j.cfg.TriggerSource, start, end)
		if err != nil {
			j.logger.Warn("failed to record etl run start", zap.Error(err))
		} else {
			summary.RunUUID = run.RunUUID
			ctx = WithRunID(ctx, run.RunUUID)
		}
	}

	days := utils.DaysInclusive(start, end)
	var runErr error
	for i, day := range days {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		res := j.ProcessDate(ctx, day)
		summary.Dates = append(summary.Dates, res)
		switch res.Outcome {
		case OutcomeFailed:
			summary.Failed++
		case OutcomeSkipped:
			summary.Skipped++
			summary.Succeeded++
		default:
			summary.Succeeded++
		}

		if i < len(days)-1 && j.cfg.PacingDelay > 0 {
			if err := j.sleep(ctx, j.cfg.PacingDelay); err != nil {
				runErr = err
				break
			}
		}
	}

	j.logger.Info(fmt.Sprintf("%s load completed", mode),
		zap.Int("successes", summary.Succeeded),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failures", summary.Failed))

	j.finishRun(ctx, run, summary, runErr)
	if summary.Failed > 0 && j.deps.Notifier != nil {
		if err := j.deps.Notifier.NotifyRunFailures(persistentContext(ctx), summary); err != nil {
			j.logger.Warn("failed to send failure notification", zap.Error(err))
		}
	}
	return summary, runErr
}

func (j *EtlJobService) finishRun(ctx context.Context, run *models.EtlRun, summary *RunSummary, runErr error) {
	if run == nil {
		return
	}
	finalErr := runErr
	if finalErr == nil && summary.Failed > 0 {
		finalErr = fmt.Errorf("%d of %d dates failed", summary.Failed, len(summary.Dates))
		for _, d := range summary.Dates {
			if d.Err != nil {
				finalErr = errors.Join(finalErr, d.Err)
				break
			}
		}
	}

	var err error
	if finalErr != nil {
		err = j.deps.Runs.MarkFailure(ctx, run.ID, summary, finalErr)
	} else {
		err = j.deps.Runs.MarkSuccess(ctx, run.ID, summary)
	}
	if err != nil {
		j.logger.Warn("failed to record etl run result", zap.String("run_uuid", run.RunUUID), zap.Error(err))
	}
}
