package logger

import (
	"context"

	"github.com/rs/zerolog"
)

// LogRequest logs HTTP request information
func LogRequest(log Logger, method, url string, statusCode int, duration float64) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration_ms": duration,
	}

	switch {
	case statusCode >= 200 && statusCode < 300:
		log.DebugWithFields("HTTP request completed", fields)
	case statusCode >= 400 && statusCode < 500:
		log.WarnWithFields("HTTP request client error", fields)
	case statusCode >= 500:
		log.ErrorWithFields("HTTP request server error", fields)
	}
}

// LogToolRun logs the outcome of one external tool invocation
func LogToolRun(log Logger, tool string, attempt int, outcome string, err error) {
	l := log.WithFields(map[string]interface{}{
		"tool":    tool,
		"attempt": attempt,
		"outcome": outcome,
	})
	if err != nil {
		l.WithError(err).Warn("Tool run failed")
		return
	}
	l.Info("Tool run finished")
}

// LogStep logs a workflow step for an item
func LogStep(log Logger, itemID, step string) {
	log.WithFields(map[string]interface{}{
		"item_id": itemID,
		"step":    step,
	}).Info("Step started")
}

// LogUpload logs a finished upload batch
func LogUpload(log Logger, kind string, files, messages int) {
	log.WithFields(map[string]interface{}{
		"kind":     kind,
		"files":    files,
		"messages": messages,
	}).Info("Upload completed")
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

// nopLogger is a logger that does nothing (useful for testing)
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
