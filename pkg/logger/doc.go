// Package logger provides the structured logging interface used across fightgen.
//
// It wraps zerolog behind the Logger interface so components can take a
// logger as a dependency and tests can swap in NewTestLogger or NewNopLogger.
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	log := logger.GetLogger().WithField("component", "orchestrator")
//	log.InfoWithFields("Batch accepted", map[string]interface{}{"count": 50})
package logger
