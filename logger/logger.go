package logger

import "context"

// Logger is the structured logger handed to every component of the
// bootstrapper. Fields are attached per call or bound with WithField(s).
type Logger interface {
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Info(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
	Error(ctx context.Context, msg string, fields map[string]interface{})

	// WithField returns a child logger that adds key to every entry.
	WithField(key string, value interface{}) Logger

	// WithFields returns a child logger that adds fields to every entry.
	WithFields(fields map[string]interface{}) Logger
}
