// Package retry provides backoff strategies and a context-aware retry loop.
//
// Two layers of fightgen use it. The generation client wraps each API call in
// Do so that rate limits and transient server errors are retried with an
// ErrorTypeBackoff. The orchestrator uses NewRoundBackoff to space out failed
// batch attempts, where the delay before retry n is unit * 2^n capped at a
// maximum.
//
//	cfg := &retry.Config{
//		MaxAttempts: 3,
//		Backoff:     retry.NewErrorTypeBackoff(),
//		Logger:      log,
//	}
//	payload, err := retry.DoWithResult(ctx, call, cfg)
package retry
