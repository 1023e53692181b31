package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fightgen/pkg/config"
	errs "fightgen/pkg/errors"
	"fightgen/pkg/generator"
	"fightgen/pkg/logger"
	"fightgen/pkg/metrics"
	"fightgen/pkg/models"
	"fightgen/pkg/ratelimit"
	"fightgen/pkg/retry"
	"fightgen/pkg/ui"
	"fightgen/pkg/validation"
)

const pausePoll = 500 * time.Millisecond

var (
	// ErrGeneratorExhausted stops a run after too many consecutive abandoned rounds
	ErrGeneratorExhausted = errors.New("generator exhausted")
	// ErrEmptyBatch marks a batch with nothing left after filtering
	ErrEmptyBatch = errors.New("batch contained no usable records")
)

// Store is the persistence the orchestrator drives. *storage.Manager
// implements it.
type Store interface {
	Load() (models.State, error)
	Append(records []models.FightRecord) (int, error)
	Checkpoint(state models.State) error
}

// Options controls batch sizing, retries and pacing
type Options struct {
	BatchSize   int
	TotalTarget int

	MaxRetries         int
	RetryBaseDelay     time.Duration
	RetryMaxDelay      time.Duration
	MaxAbandonedRounds int

	InterBatchDelay time.Duration
	ErrorDelay      time.Duration

	RejectDuplicateFacts bool
}

// OptionsFromConfig extracts orchestrator options from configuration
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		BatchSize:            cfg.Batch.Size,
		TotalTarget:          cfg.Batch.TotalTarget,
		MaxRetries:           cfg.Retry.MaxRetries,
		RetryBaseDelay:       cfg.Retry.BaseDelay,
		RetryMaxDelay:        cfg.Retry.MaxDelay,
		MaxAbandonedRounds:   cfg.Retry.MaxAbandonedRounds,
		InterBatchDelay:      cfg.Batch.InterBatchDelay,
		ErrorDelay:           cfg.Batch.ErrorDelay,
		RejectDuplicateFacts: cfg.Dedupe.RejectDuplicateFacts,
	}
}

// Result summarises a run
type Result struct {
	Accepted        int
	Batches         int
	FailedAttempts  int
	AbandonedRounds int
	DuplicateFacts  int
	StorageErrors   int
	Elapsed         time.Duration
	State           models.State
}

// stageError tags an error with the pipeline stage that produced it
type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string { return e.stage + ": " + e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

func stageOf(err error) string {
	var se *stageError
	if errors.As(err, &se) {
		return se.stage
	}
	return "generate"
}

// Orchestrator runs the generate, validate, append, checkpoint loop
type Orchestrator struct {
	client   generator.Client
	store    Store
	opts     Options
	limiter  ratelimit.Limiter
	backoff  retry.BackoffStrategy
	recovery retry.BackoffStrategy
	sleep    retry.SleepFunc
	metrics  *metrics.Recorder
	display  ui.Display
	logger   logger.Logger
	now      func() time.Time
}

// New creates an orchestrator. Pacing is disabled until SetLimiter is called.
func New(client generator.Client, store Store, opts Options, log logger.Logger) *Orchestrator {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = 1
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}

	return &Orchestrator{
		client:   client,
		store:    store,
		opts:     opts,
		limiter:  ratelimit.Unlimited{},
		backoff:  retry.NewRoundBackoff(opts.RetryBaseDelay, opts.RetryMaxDelay),
		recovery: &retry.ConstantBackoff{Delay: opts.ErrorDelay},
		sleep:    retry.Wait,
		display:  nopDisplay{},
		logger:   log.WithField("component", "orchestrator"),
		now:      time.Now,
	}
}

// SetLimiter sets the request pacing limiter
func (o *Orchestrator) SetLimiter(l ratelimit.Limiter) {
	if l != nil {
		o.limiter = l
	}
}

// SetDisplay sets where run events are shown
func (o *Orchestrator) SetDisplay(d ui.Display) {
	if d != nil {
		o.display = d
	}
}

// SetMetrics sets the metrics recorder
func (o *Orchestrator) SetMetrics(m *metrics.Recorder) {
	o.metrics = m
}

// SetSleep replaces the context-aware sleep, mainly for tests
func (o *Orchestrator) SetSleep(s retry.SleepFunc) {
	if s != nil {
		o.sleep = s
	}
}

// Run generates until TotalTarget records have been accepted. It returns the
// partial result together with the error when it stops early.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	start := o.now()

	state, err := o.store.Load()
	if err != nil {
		o.logger.WithError(err).WithField("stage", "load").Error("Failed to load generation state")
		return nil, fmt.Errorf("load state: %w", err)
	}

	res := &Result{}
	defer func() {
		res.Elapsed = o.now().Sub(start)
		res.State = state
	}()

	target := o.opts.TotalTarget
	o.metrics.SetLastID(state.LastID)
	o.display.Start(target, state.LastID)
	logger.LogComponentStart(o.logger, "orchestrator", map[string]interface{}{
		"target":     target,
		"batch_size": o.opts.BatchSize,
		"last_id":    state.LastID,
		"model":      o.client.Model(),
	})

	retries, streak, round, storageFailures := 0, 0, 1, 0
	for res.Accepted < target {
		if err := o.waitIfPaused(ctx); err != nil {
			return res, err
		}
		if err := o.pace(ctx); err != nil {
			return res, err
		}

		want := min(o.opts.BatchSize, target-res.Accepted)
		attempt := retries + 1
		o.display.BatchStarted(round, attempt, want)

		records, dups, err := o.produce(ctx, want, state)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			if errs.Is(err, errs.ErrorTypeAuth) {
				o.logger.WithError(err).Error("Generation API rejected the credentials")
				return res, err
			}
			res.FailedAttempts++
			res.DuplicateFacts += dups
			o.metrics.FailedAttempt()
			o.metrics.DuplicateFacts(dups)

			fields := map[string]interface{}{
				"stage":   stageOf(err),
				"round":   round,
				"attempt": attempt,
			}

			if retries < o.opts.MaxRetries {
				retries++
				delay := o.backoff.NextDelay(retries)
				fields["delay"] = delay.String()
				o.logger.WithError(err).WarnWithFields("Batch attempt failed, retrying", fields)
				o.display.BatchFailed(round, attempt, err, delay)
				if err := o.sleep(ctx, delay); err != nil {
					return res, err
				}
				continue
			}

			retries = 0
			streak++
			res.AbandonedRounds++
			o.metrics.RoundAbandoned()
			o.logger.WithError(err).ErrorWithFields("Round abandoned after max retries", fields)
			o.display.BatchFailed(round, attempt, err, 0)
			o.display.RoundAbandoned(round)
			round++

			if o.opts.MaxAbandonedRounds > 0 && streak >= o.opts.MaxAbandonedRounds {
				return res, fmt.Errorf("%w: %d consecutive rounds abandoned", ErrGeneratorExhausted, streak)
			}
			continue
		}

		next := state.Clone()
		for i := range records {
			records[i].ID = state.LastID + i + 1
			next.Apply(records[i])
		}

		n, err := o.store.Append(records)
		if err != nil || n != len(records) {
			res.StorageErrors++
			o.metrics.StorageError()
			o.logger.WithError(err).ErrorWithFields("Append failed, reloading state", map[string]interface{}{
				"stage":     "append",
				"requested": len(records),
				"written":   n,
			})

			var landed int
			state, landed = o.reconcile(state)
			if landed > 0 {
				res.Accepted += landed
				res.Batches++
				o.checkpoint(state)
				o.metrics.BatchAccepted(landed, state.LastID)
				o.display.BatchAccepted(landed, 0, state.LastID)
			}
			storageFailures++
			if err := o.sleep(ctx, o.recovery.NextDelay(storageFailures)); err != nil {
				return res, err
			}
			continue
		}

		state = next
		res.Accepted += n
		res.Batches++
		res.DuplicateFacts += dups
		retries, streak, storageFailures = 0, 0, 0
		round++

		o.checkpoint(state)
		o.metrics.BatchAccepted(n, state.LastID)
		o.metrics.DuplicateFacts(dups)
		o.display.BatchAccepted(n, dups, state.LastID)
		logger.LogBatchProgress(o.logger, res.Accepted, target, state.LastID)

		if res.Accepted < target {
			if err := o.sleep(ctx, o.opts.InterBatchDelay); err != nil {
				return res, err
			}
		}
	}

	elapsed := o.now().Sub(start)
	o.display.Complete(res.Accepted, elapsed)
	logger.LogComponentStop(o.logger, "orchestrator", "target reached")
	return res, nil
}

// produce requests one batch and returns the records that survive
// validation, truncation and duplicate filtering, plus the number of
// repeated facts seen.
func (o *Orchestrator) produce(ctx context.Context, want int, state models.State) ([]models.FightRecord, int, error) {
	started := o.now()
	payload, err := o.client.Generate(ctx, generator.Request{Count: want, Usage: state.Usage, Facts: state.Facts})
	o.metrics.ObserveGeneration(o.now().Sub(started))
	if err != nil {
		return nil, 0, &stageError{stage: "generate", err: err}
	}

	records, err := validation.Decode(payload)
	if err != nil {
		return nil, 0, &stageError{stage: "validate", err: err}
	}

	if len(records) > want {
		o.logger.DebugWithFields("Truncating oversized batch", map[string]interface{}{
			"received":  len(records),
			"requested": want,
		})
		records = records[:want]
	}

	records, dups := o.dedupe(records, state.Facts)
	if len(records) == 0 {
		return nil, dups, &stageError{stage: "validate", err: ErrEmptyBatch}
	}
	return records, dups, nil
}

// dedupe counts records whose winning fact was already used, historically or
// earlier in the same batch, and drops them when configured to.
func (o *Orchestrator) dedupe(records []models.FightRecord, used models.FactIndex) ([]models.FightRecord, int) {
	seen := models.FactIndex{}
	kept := records[:0]
	dups := 0
	for _, r := range records {
		species := r.WinnerSpecies()
		if used.Has(species, r.Fact) || !seen.Add(species, r.Fact) {
			dups++
			o.logger.DebugWithFields("Repeated fact", map[string]interface{}{
				"species": species,
				"fact":    r.Fact,
			})
			if o.opts.RejectDuplicateFacts {
				continue
			}
		}
		kept = append(kept, r)
	}
	return kept, dups
}

// reconcile reloads state after a failed append and reports how many records
// landed beyond prev. The record history decides which ids are taken.
func (o *Orchestrator) reconcile(prev models.State) (models.State, int) {
	fresh, err := o.store.Load()
	if err != nil {
		o.logger.WithError(err).WithField("stage", "load").Error("Failed to reload state after append error")
		return prev, 0
	}
	landed := fresh.LastID - prev.LastID
	if landed < 0 {
		landed = 0
	}
	return fresh, landed
}

func (o *Orchestrator) checkpoint(state models.State) {
	if err := o.store.Checkpoint(state); err != nil {
		o.logger.WithError(err).WarnWithFields("Checkpoint failed, the next batch will catch up", map[string]interface{}{
			"stage":   "checkpoint",
			"last_id": state.LastID,
		})
	}
}

// pace blocks until the limiter admits the next request
func (o *Orchestrator) pace(ctx context.Context) error {
	if wait := o.limiter.Until(); wait > 0 {
		logger.LogRateLimit(o.logger, wait)
		o.display.RateLimited(wait)
	}
	return o.limiter.Wait(ctx)
}

func (o *Orchestrator) waitIfPaused(ctx context.Context) error {
	for o.display.IsPaused() {
		if err := o.sleep(ctx, pausePoll); err != nil {
			return err
		}
	}
	return ctx.Err()
}

type nopDisplay struct{}

func (nopDisplay) Start(int, int)                             {}
func (nopDisplay) BatchStarted(int, int, int)                 {}
func (nopDisplay) BatchAccepted(int, int, int)                {}
func (nopDisplay) BatchFailed(int, int, error, time.Duration) {}
func (nopDisplay) RoundAbandoned(int)                         {}
func (nopDisplay) RateLimited(time.Duration)                  {}
func (nopDisplay) Complete(int, time.Duration)                {}
func (nopDisplay) IsPaused() bool                             { return false }
