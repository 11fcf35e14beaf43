package logger

import (
	"context"
	"os"

	"github.com/gravitational/trace"
	log "github.com/sirupsen/logrus"
)

// Config stores logger configuration, typically loaded from the
// process configuration file.
type Config struct {
	Output   string `toml:"output"`
	Severity string `toml:"severity"`
}

type contextKey struct{}

// Init sets up a bare-bones logger for the time before the
// configuration file has been parsed.
func Init() {
	log.SetOutput(os.Stderr)
	log.SetLevel(log.ErrorLevel)
}

// Setup configures the standard logger according to the config.
func Setup(conf Config) error {
	switch conf.Output {
	case "", "stderr", "error", "2":
		log.SetOutput(os.Stderr)
	case "stdout", "out", "1":
		log.SetOutput(os.Stdout)
	default:
		// Assume the output is a file path.
		file, err := os.OpenFile(conf.Output, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0640)
		if err != nil {
			return trace.ConvertSystemError(err)
		}
		log.SetOutput(file)
	}

	severity := conf.Severity
	if severity == "" {
		severity = "info"
	}
	level, err := log.ParseLevel(severity)
	if err != nil {
		return trace.BadParameter("unknown log severity %q", conf.Severity)
	}
	log.SetLevel(level)

	return nil
}

// Standard returns the standard logger.
func Standard() log.FieldLogger {
	return log.StandardLogger()
}

// Get returns the logger stored in the context, falling back to the
// standard one.
func Get(ctx context.Context) log.FieldLogger {
	if logger, ok := ctx.Value(contextKey{}).(log.FieldLogger); ok && logger != nil {
		return logger
	}
	return Standard()
}

// With stores the given logger in the context.
func With(ctx context.Context, logger log.FieldLogger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// WithField returns a context holding the contextual logger extended
// with an additional field, along with that logger.
func WithField(ctx context.Context, key string, value interface{}) (context.Context, log.FieldLogger) {
	logger := Get(ctx).WithField(key, value)
	return With(ctx, logger), logger
}
