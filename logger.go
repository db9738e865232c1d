package vecback

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with vecback-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithBackup adds a backup name field to the logger.
func (l *Logger) WithBackup(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("backup", name),
	}
}

// WithCollection adds a collection name field to the logger.
func (l *Logger) WithCollection(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("collection", name),
	}
}

// LogBackup logs a backup operation.
func (l *Logger) LogBackup(ctx context.Context, backup, collection string, entities int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "backup failed",
			"backup", backup,
			"collection", collection,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "backup completed",
			"backup", backup,
			"collection", collection,
			"entities", entities,
		)
	}
}

// LogRestore logs a restore operation.
func (l *Logger) LogRestore(ctx context.Context, backup, target string, inserted int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "restore failed",
			"backup", backup,
			"target", target,
			"inserted", inserted,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "restore completed",
			"backup", backup,
			"target", target,
			"inserted", inserted,
		)
	}
}

// LogVerify logs a verification operation.
func (l *Logger) LogVerify(ctx context.Context, backup string, passed bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "verification failed",
			"backup", backup,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "verification completed",
			"backup", backup,
			"passed", passed,
		)
	}
}

// LogDrill logs a recovery drill.
func (l *Logger) LogDrill(ctx context.Context, backup string, passed bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "recovery drill failed",
			"backup", backup,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "recovery drill completed",
			"backup", backup,
			"passed", passed,
		)
	}
}

// LogDelete logs a backup deletion.
func (l *Logger) LogDelete(ctx context.Context, backup string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "backup deletion failed",
			"backup", backup,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "backup deleted",
			"backup", backup,
		)
	}
}
