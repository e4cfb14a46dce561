package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogPage logs one fetched listing page
func LogPage(l Logger, secUserID string, page, count, total int) {
	l.InfoWithFields("Fetched post page", map[string]interface{}{
		"sec_user_id": secUserID,
		"page":        page,
		"count":       count,
		"total":       total,
	})
}

// LogDownload logs the end state of one media download
func LogDownload(l Logger, kind, path string, attempts int, duration time.Duration, err error) {
	fields := map[string]interface{}{
		"kind":     kind,
		"path":     path,
		"attempts": attempts,
		"duration": duration,
	}
	if err != nil {
		l.WithError(err).WarnWithFields("Download failed", fields)
		return
	}
	l.DebugWithFields("Download completed", fields)
}

// LogRetry logs a retry about to happen
func LogRetry(l Logger, url string, attempt int, delay time.Duration, err error) {
	l.WithError(err).DebugWithFields("Retrying download", map[string]interface{}{
		"url":      url,
		"attempt":  attempt,
		"delay_ms": delay.Milliseconds(),
	})
}

// LogBatch logs the summary of a finished download batch
func LogBatch(l Logger, runID string, success, failed, skipped int, elapsed time.Duration) {
	l.InfoWithFields("Download batch finished", map[string]interface{}{
		"run_id":   runID,
		"success":  success,
		"failed":   failed,
		"skipped":  skipped,
		"duration": elapsed,
	})
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(string)                                    {}
func (n *nopLogger) Info(string)                                     {}
func (n *nopLogger) Warn(string)                                     {}
func (n *nopLogger) Error(string)                                    {}
func (n *nopLogger) Fatal(string)                                    {}
func (n *nopLogger) WithField(string, interface{}) Logger            { return n }
func (n *nopLogger) WithFields(map[string]interface{}) Logger        { return n }
func (n *nopLogger) WithError(error) Logger                          { return n }
func (n *nopLogger) WithContext(context.Context) Logger              { return n }
func (n *nopLogger) DebugWithFields(string, map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(string, map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(string, map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(string, map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(string, map[string]interface{}) {}

func (n *nopLogger) GetZerolog() *zerolog.Logger {
	nop := zerolog.Nop()
	return &nop
}
