// Package logger wraps zerolog behind a small interface used throughout douyindl.
//
//	logger.Initialize(&cfg.Logging)
//	logger.WithField("sec_user_id", id).Info("Resolved profile")
//
// Console output is colourised and written to stderr; set logging.format to
// "json" for machine-readable output and logging.file to tee into a file.
// Tests use NewTestLogger to capture messages or NewNopLogger to drop them.
package logger
