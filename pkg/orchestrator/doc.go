// Package orchestrator drives fight generation from start to target.
//
// The Orchestrator is the only writer of generation state. Each iteration it:
//   - waits on the pacing limiter
//   - asks the generator for min(batch size, remaining) fights
//   - validates the payload as a whole and truncates oversized batches
//   - counts (or, if configured, drops) fights whose winning fact was used before
//   - assigns the next sequential ids, appends, then checkpoints
//
// A failed attempt is retried after 2s, 4s, 8s (capped at the configured
// maximum). After the last retry the round is abandoned and a fresh one
// starts. Too many consecutive abandoned rounds stop the run with
// ErrGeneratorExhausted.
//
// Usage:
//
//	store, _ := storage.NewManager(storage.PathsFromConfig(cfg.Output), log)
//	client, _ := generator.NewOpenAI(cfg.Generator, log)
//
//	o := orchestrator.New(client, store, orchestrator.OptionsFromConfig(cfg), log)
//	o.SetLimiter(ratelimit.New(cfg.RateLimit.RequestsPerMinute))
//	result, err := o.Run(ctx)
//
// Cancelling ctx stops the loop between steps. Everything appended before
// that point is already checkpointed.
package orchestrator
