// Package logger wraps zerolog behind a small structured logging interface.
//
// Console output is colourised and written to stderr so it never interleaves
// with interactive prompts. When a log file is configured, entries are also
// appended to it as JSON.
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	log := logger.GetLogger().WithField("item_id", id)
//	log.Info("Download started")
//
// Tests use NewTestLogger to capture messages or NewNopLogger to discard them.
package logger
