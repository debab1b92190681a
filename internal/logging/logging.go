// Package logging builds the zap logger carried by elaboration sessions.
package logging

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/funvibe/metakernel/internal/config"
)

// New builds a logger from the log section of opts. An empty level yields a no-op logger.
func New(opts config.LogOptions) (*zap.Logger, error) {
	if opts.Level == "" {
		return zap.NewNop(), nil
	}
	level, err := zapcore.ParseLevel(opts.Level)
	if err != nil {
		return nil, errors.Wrap(err, "log level")
	}
	var cfg zap.Config
	if opts.JSON {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.DisableStacktrace = true
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize logger")
	}
	return logger, nil
}

// SessionID returns a fresh identifier used to tag the log lines of one session.
func SessionID() string {
	return uuid.NewString()
}

// Tracer gates debug output per trace class.
type Tracer struct {
	logger  *zap.Logger
	enabled map[string]bool
}

// NewTracer enables the listed classes on logger. A nil logger disables tracing.
func NewTracer(logger *zap.Logger, classes []string) *Tracer {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracer{logger: logger, enabled: make(map[string]bool, len(classes))}
	for _, c := range classes {
		t.enabled[c] = true
	}
	return t
}

// Logger is the underlying logger.
func (t *Tracer) Logger() *zap.Logger { return t.logger }

// Enabled reports whether cls is traced and debug output is on.
func (t *Tracer) Enabled(cls string) bool {
	return t.enabled[cls] && t.logger.Core().Enabled(zapcore.DebugLevel)
}

// Trace emits msg under cls. fields is only called when the class is enabled.
func (t *Tracer) Trace(cls, msg string, fields func() []zap.Field) {
	if !t.Enabled(cls) {
		return
	}
	var fs []zap.Field
	if fields != nil {
		fs = fields()
	}
	t.logger.Debug(msg, append(fs, zap.String("class", cls))...)
}
