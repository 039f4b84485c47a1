// Package middleware provides Fiber middleware for logging, tracing, metrics and rate limiting.
package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Logger is the global structured logger instance used throughout the application.
var Logger *slog.Logger

type contextKey string

const (
	RequestIDKey contextKey = "request_id"
	UserIDKey    contextKey = "user_id"
	TraceIDKey   contextKey = "trace_id"
)

// quietPrefixes are polled by orchestrators and scrapers; successful hits are
// logged at debug so they do not drown the feed and realtime traffic.
var quietPrefixes = []string{"/health/", "/metrics"}

// ctxHandler is a slog.Handler that adds context values to the log record.
type ctxHandler struct {
	slog.Handler
}

// Handle adds context values to the record before passing it to the underlying handler.
func (h *ctxHandler) Handle(ctx context.Context, r slog.Record) error {
	if rid, ok := ctx.Value(RequestIDKey).(string); ok {
		r.AddAttrs(slog.String("request_id", rid))
	}
	// Anonymous viewers carry no user; a zero ID is never logged.
	if uid, ok := ctx.Value(UserIDKey).(uint); ok && uid != 0 {
		r.AddAttrs(slog.Any("user_id", uid))
	}
	if tid, ok := ctx.Value(TraceIDKey).(string); ok {
		r.AddAttrs(slog.String("trace_id", tid))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *ctxHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ctxHandler{h.Handler.WithAttrs(attrs)}
}

func (h *ctxHandler) WithGroup(name string) slog.Handler {
	return &ctxHandler{h.Handler.WithGroup(name)}
}

func init() {
	Logger = NewLogger(os.Getenv("APP_ENV"))
	slog.SetDefault(Logger)
}

// NewLogger builds the context-aware logger on stdout: JSON in production,
// text elsewhere.
func NewLogger(env string) *slog.Logger {
	return newLogger(os.Stdout, env, slog.LevelInfo)
}

func newLogger(w io.Writer, env string, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if env == "production" || env == "prod" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		// Pretty text output for local development
		handler = slog.NewTextHandler(w, opts)
	}
	// Wrap with our context-aware handler
	return slog.New(&ctxHandler{handler})
}

// WithUserID returns ctx carrying the acting user for log records.
func WithUserID(ctx context.Context, userID uint) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// ContextMiddleware copies the request and trace IDs from Fiber locals into
// the request context, so service and repository logs carry them too.
func ContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()

		if rid, ok := c.Locals("requestid").(string); ok {
			ctx = context.WithValue(ctx, RequestIDKey, rid)
		}

		// Auth runs per route, after this middleware, and sets the user itself
		// through WithUserID. Only a user resolved earlier is picked up here.
		if uid, ok := c.Locals("userID").(uint); ok {
			ctx = context.WithValue(ctx, UserIDKey, uid)
		}

		// Set by TracingMiddleware
		if tid, ok := c.Locals("traceID").(string); ok {
			ctx = context.WithValue(ctx, TraceIDKey, tid)
		}

		c.SetUserContext(ctx)
		return c.Next()
	}
}

// StructuredLogger returns a Fiber middleware for logging requests using slog.
// Server errors log at error, client errors at warn.
func StructuredLogger() fiber.Handler {
	return requestLogger(nil)
}

// requestLogger logs through logger, or through Logger as it stands at request
// time when logger is nil.
func requestLogger(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		// The error handler has not run yet, so a returned *fiber.Error decides the status.
		status := c.Response().StatusCode()
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}

		fields := []any{
			slog.Int("status", status),
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.String("route", c.Route().Path),
			slog.String("ip", c.IP()),
			slog.Duration("latency", time.Since(start)),
			slog.Int("bytes", len(c.Response().Body())),
			slog.String("user_agent", c.Get("User-Agent")),
		}
		if err != nil {
			fields = append(fields, slog.String("error", err.Error()))
		}

		l := logger
		if l == nil {
			l = Logger
		}
		// Log with the request context so the ctxHandler can pick up rid/uid
		ctx := c.UserContext()
		switch {
		case status >= fiber.StatusInternalServerError || (err != nil && fe == nil):
			l.ErrorContext(ctx, "request failed", fields...)
		case status >= fiber.StatusBadRequest:
			l.WarnContext(ctx, "request rejected", fields...)
		case isQuiet(c.Path()):
			l.DebugContext(ctx, "request processed", fields...)
		default:
			l.InfoContext(ctx, "request processed", fields...)
		}

		return err
	}
}

func isQuiet(path string) bool {
	for _, p := range quietPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
