package log

import (
	"context"
	"log/slog"
	"net/http"
)

type ctxKey struct{}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the request-scoped logger, or Default when none is set.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return logger
	}
	return Default()
}

// RequestLogger writes the start and completion lines of HTTP requests.
type RequestLogger struct {
	logger *Logger
}

func NewRequestLogger(logger *Logger) *RequestLogger {
	return &RequestLogger{logger: logger}
}

func requestAttrs(r *http.Request, clientIP string) []any {
	return []any{
		FieldMethod, r.Method,
		FieldPath, r.URL.Path,
		FieldQuery, r.URL.RawQuery,
		FieldClientIP, clientIP,
	}
}

// Started logs at debug level, with user agent and referer when present.
func (rl *RequestLogger) Started(ctx context.Context, r *http.Request, clientIP string) {
	args := requestAttrs(r, clientIP)
	if ua := r.UserAgent(); ua != "" {
		args = append(args, FieldUserAgent, ua)
	}
	if ref := r.Referer(); ref != "" {
		args = append(args, FieldReferer, ref)
	}
	rl.logger.log(ctx, slog.LevelDebug, "HTTP request started", args)
}

// Completed logs 2xx/3xx at info, 4xx at warn and 5xx at error.
func (rl *RequestLogger) Completed(ctx context.Context, r *http.Request, status int, durationMs int64, clientIP string) {
	level := slog.LevelInfo
	switch {
	case status >= 500:
		level = slog.LevelError
	case status >= 400:
		level = slog.LevelWarn
	}
	args := append(requestAttrs(r, clientIP),
		FieldStatusCode, status,
		FieldDuration, durationMs,
		FieldSuccess, status < 400,
	)
	rl.logger.log(ctx, level, "HTTP request completed", args)
}
