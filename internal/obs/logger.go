// Package obs provides the archive core's structured logging: a
// package-level logrus logger, a context-aware wrapper that attaches
// request/session/user identifiers pulled from context.Context, and
// field-builder helpers for the HTTP, storage and database layers.
package obs

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger is the process-wide structured logger. Configure once at boot
// via Configure; components take it as an explicit dependency rather
// than reaching for the package variable, except at the few places
// (panic recovery, init-time fatal errors) where a global is the
// simplest correct choice.
var Logger = logrus.New()

// Config controls the base logger's verbosity and wire format.
type Config struct {
	Level  string // debug|info|warn|error|fatal
	Format string // "json" or "text"
	Caller bool
}

// Configure applies cfg to the package logger.
func Configure(cfg Config) {
	lvl, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Logger.SetLevel(lvl)

	if cfg.Format == "json" {
		Logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		Logger.SetFormatter(&logrus.TextFormatter{TimestampFormat: time.RFC3339, FullTimestamp: true})
	}
	Logger.SetReportCaller(cfg.Caller)
}

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "request_id"
	ctxKeySessionID ctxKey = "session_id"
	ctxKeyUserID    ctxKey = "user_id"
)

// WithRequestID attaches a request id to ctx for later extraction by
// ContextLogger.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

// WithSessionID attaches a session id to ctx.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeySessionID, id)
}

// WithUserID attaches a user id to ctx.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyUserID, id)
}

// ContextLogger carries a base field set and knows how to enrich itself
// from a request-scoped context.Context.
type ContextLogger struct {
	logger *logrus.Logger
	fields logrus.Fields
}

// New returns a ContextLogger rooted at the package logger (or the
// supplied one, for tests).
func New(logger *logrus.Logger) *ContextLogger {
	if logger == nil {
		logger = Logger
	}
	return &ContextLogger{logger: logger, fields: logrus.Fields{}}
}

// WithField returns a derived logger with an additional field.
func (cl *ContextLogger) WithField(key string, value interface{}) *ContextLogger {
	next := make(logrus.Fields, len(cl.fields)+1)
	for k, v := range cl.fields {
		next[k] = v
	}
	next[key] = value
	return &ContextLogger{logger: cl.logger, fields: next}
}

// WithError returns a derived logger carrying the error field.
func (cl *ContextLogger) WithError(err error) *ContextLogger {
	if err == nil {
		return cl
	}
	return cl.WithField("error", err.Error())
}

// WithContext extracts request/session/user identifiers from ctx and
// attaches whichever are present.
func (cl *ContextLogger) WithContext(ctx context.Context) *ContextLogger {
	out := cl
	if v, ok := ctx.Value(ctxKeyRequestID).(string); ok && v != "" {
		out = out.WithField("request_id", v)
	}
	if v, ok := ctx.Value(ctxKeySessionID).(string); ok && v != "" {
		out = out.WithField("session_id", v)
	}
	if v, ok := ctx.Value(ctxKeyUserID).(string); ok && v != "" {
		out = out.WithField("user_id", v)
	}
	return out
}

func (cl *ContextLogger) entry() *logrus.Entry { return cl.logger.WithFields(cl.fields) }

func (cl *ContextLogger) Debug(args ...interface{}) { cl.entry().Debug(args...) }
func (cl *ContextLogger) Info(args ...interface{})  { cl.entry().Info(args...) }
func (cl *ContextLogger) Warn(args ...interface{})  { cl.entry().Warn(args...) }
func (cl *ContextLogger) Error(args ...interface{}) { cl.entry().Error(args...) }

func (cl *ContextLogger) Debugf(format string, args ...interface{}) { cl.entry().Debugf(format, args...) }
func (cl *ContextLogger) Infof(format string, args ...interface{})  { cl.entry().Infof(format, args...) }
func (cl *ContextLogger) Warnf(format string, args ...interface{})  { cl.entry().Warnf(format, args...) }
func (cl *ContextLogger) Errorf(format string, args ...interface{}) { cl.entry().Errorf(format, args...) }

// HTTPFields builds the standard field set for an HTTP access log line.
func HTTPFields(method, path string, status int, latency time.Duration) logrus.Fields {
	return logrus.Fields{
		"method":     method,
		"path":       path,
		"status":     status,
		"latency_ms": latency.Milliseconds(),
	}
}

// StorageFields builds the standard field set for a storage backend
// operation.
func StorageFields(backend, op, key string) logrus.Fields {
	return logrus.Fields{"backend": backend, "op": op, "key": key}
}

// DBFields builds the standard field set for a metadata DB operation.
func DBFields(table, op string) logrus.Fields {
	return logrus.Fields{"table": table, "op": op}
}
