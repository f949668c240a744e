// Package logging configures the process-wide logrus logger and carries a
// request-scoped entry, tagged with a correlation id, through contexts.
package logging

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v3"
	"github.com/sirupsen/logrus"
)

// CorrelationIDHeader is the HTTP header carrying the correlation id.
const CorrelationIDHeader = "X-Correlation-ID"

type ctxKey int

const (
	loggerKey ctxKey = iota
	correlationIDKey
)

// Init configures the standard logrus logger.  format is "json" (default)
// or "text"; an unknown level falls back to info.
func Init(level, format string, out io.Writer) {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
	if out != nil {
		logrus.SetOutput(out)
	}

	if strings.EqualFold(format, "text") {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339Nano,
		})
		return
	}
	logrus.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
}

// NewCorrelationID returns a short random id suitable for log correlation.
func NewCorrelationID() string { return "gen_" + shortuuid.New() }

// ContextWithCorrelationID stores id in ctx and attaches it to the logger
// carried by ctx.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	ctx = context.WithValue(ctx, correlationIDKey, id)
	return ToContext(ctx, FromContext(ctx).WithField("correlation_id", id))
}

// CorrelationIDFromContext returns the correlation id, or "" when none is set.
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey).(string)
	return id
}

// ToContext stores a logger entry in ctx.
func ToContext(ctx context.Context, l *logrus.Entry) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns the entry stored in ctx, or one on the standard
// logger when there is none.
func FromContext(ctx context.Context) *logrus.Entry {
	if l, ok := ctx.Value(loggerKey).(*logrus.Entry); ok {
		return l
	}
	return logrus.NewEntry(logrus.StandardLogger())
}
