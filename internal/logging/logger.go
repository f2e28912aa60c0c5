// Package logging is the structured logger handed to the server, the
// ingestion workers and the notification senders. The only production
// implementation is SlogLogger.
package logging

import "context"

// Logger is a context-aware, structured logger. args are key/value pairs:
//
//	log.Info(ctx, "document recorded", "patient_id", id, "state", "pending")
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	// Warn is for recoverable problems such as a skipped record or an
	// undelivered email.
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that adds args to every entry.
	With(args ...any) Logger
}
