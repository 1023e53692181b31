package logger

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// LogGenerationRequest logs the outcome of one call to the generation API.
func LogGenerationRequest(l Logger, model string, requested int, duration time.Duration, err error) {
	fields := map[string]interface{}{
		"model":       model,
		"requested":   requested,
		"duration_ms": duration.Milliseconds(),
	}

	if err != nil {
		l.WithError(err).WarnWithFields("Generation request failed", fields)
		return
	}
	l.DebugWithFields("Generation request completed", fields)
}

// LogRateLimit logs rate limiting events
func LogRateLimit(l Logger, wait time.Duration) {
	l.WithFields(map[string]interface{}{
		"wait":   wait,
		"action": "rate_limited",
	}).Warn("Rate limit reached, backing off")
}

// LogBatchProgress logs accepted records against the run target.
func LogBatchProgress(l Logger, accepted, target, lastID int) {
	percentage := 0.0
	if target > 0 {
		percentage = float64(accepted) / float64(target) * 100
	}

	l.WithFields(map[string]interface{}{
		"accepted":   accepted,
		"target":     target,
		"last_id":    lastID,
		"percentage": fmt.Sprintf("%.1f%%", percentage),
	}).Info("Generation progress")
}

// LogComponentStart logs when a component starts
func LogComponentStart(l Logger, component string, config map[string]interface{}) {
	logger := l.WithField("component", component)
	if len(config) > 0 {
		logger = logger.WithFields(config)
	}
	logger.Info("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(l Logger, component string, reason string) {
	l.WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger                               { return nil }
