// Package logs owns the process-wide logrus logger.
package logs

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var Logger = logrus.New()

type Options struct {
	Level  string // debug|info|warn|error
	Format string // text|json
	File   string // пусто = stderr
}

func Init(o Options) {
	lvl, lvlErr := logrus.ParseLevel(strings.TrimSpace(o.Level))
	if lvlErr != nil {
		lvl = logrus.InfoLevel
	}
	Logger.SetLevel(lvl)

	switch strings.ToLower(o.Format) {
	case "json":
		Logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		Logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	var out io.Writer = os.Stderr
	if o.File != "" {
		f, err := os.OpenFile(o.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			Logger.Warnf("log file %s: %v, using stderr", o.File, err)
		} else {
			out = io.MultiWriter(os.Stderr, f)
		}
	}
	Logger.SetOutput(out)

	if lvlErr != nil && o.Level != "" {
		Logger.Warnf("unknown log level %q, using info", o.Level)
	}
}

type ctxKey struct{}

// WithRequestID stores the request id for FromContext.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// FromContext returns an entry tagged with the request id, if any.
func FromContext(ctx context.Context) *logrus.Entry {
	e := logrus.NewEntry(Logger)
	if id := RequestID(ctx); id != "" {
		e = e.WithField("request_id", id)
	}
	return e
}
