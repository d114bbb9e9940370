// Package logging is the structured logger the server components log through.
// SlogLogger adapts it to log/slog.
package logging

import "context"

// Logger takes a message followed by alternating attribute keys and values:
//
//	l.Warn(ctx, "ledger sweep failed", "error", err)
//
// Components usually hold a child from With("module", name).
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a Logger that adds args to every record.
	With(args ...any) Logger
}
