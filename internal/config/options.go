package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Options are the session settings read from a YAML file.
type Options struct {
	// MaxRecDepth bounds nested whnf/inferType/isDefEq/telescope calls.
	// Defaults to DefaultMaxRecDepth; values below MinMaxRecDepth are rejected.
	MaxRecDepth int `yaml:"maxRecDepth,omitempty"`

	// Transparency is the initial unfolding tier: all, default, reducible or instances.
	Transparency string `yaml:"transparency,omitempty"`

	// Trace lists the enabled trace classes (e.g. "meta.isClass").
	Trace []string `yaml:"trace,omitempty"`

	// Approx holds the approximation flags of definitional equality.
	Approx ApproxOptions `yaml:"approx,omitempty"`

	// Log configures the session logger.
	Log LogOptions `yaml:"log,omitempty"`
}

// ApproxOptions mirror the unifier's approximation switches.
type ApproxOptions struct {
	FOApprox           bool `yaml:"foApprox,omitempty"`
	CtxApprox          bool `yaml:"ctxApprox,omitempty"`
	QuasiPatternApprox bool `yaml:"quasiPatternApprox,omitempty"`
	ConstApprox        bool `yaml:"constApprox,omitempty"`
}

// LogOptions select the zap encoder and level.
type LogOptions struct {
	// Level is one of debug, info, warn, error. Empty disables logging.
	Level string `yaml:"level,omitempty"`

	// JSON selects the JSON encoder instead of the console one.
	JSON bool `yaml:"json,omitempty"`
}

// DefaultOptions returns the settings used when no file is given.
func DefaultOptions() *Options {
	return &Options{MaxRecDepth: DefaultMaxRecDepth, Transparency: TransparencyDefault}
}

// LoadOptions reads options from a YAML file.
func LoadOptions(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading options %s", path)
	}
	return ParseOptions(data, path)
}

// ParseOptions decodes and validates options. path is only used in messages.
func ParseOptions(data []byte, path string) (*Options, error) {
	opts := DefaultOptions()
	if err := yaml.Unmarshal(data, opts); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	if err := opts.validate(); err != nil {
		return nil, errors.Wrap(err, path)
	}
	return opts, nil
}

func (o *Options) validate() error {
	if o.MaxRecDepth == 0 {
		o.MaxRecDepth = DefaultMaxRecDepth
	}
	if o.MaxRecDepth < MinMaxRecDepth {
		return errors.Errorf("maxRecDepth %d is below the minimum %d", o.MaxRecDepth, MinMaxRecDepth)
	}
	switch o.Transparency {
	case "":
		o.Transparency = TransparencyDefault
	case TransparencyAll, TransparencyDefault, TransparencyReducible, TransparencyInstances:
	default:
		return errors.Errorf("unknown transparency %q", o.Transparency)
	}
	switch o.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return errors.Errorf("unknown log level %q", o.Log.Level)
	}
	return nil
}

// TraceEnabled reports whether the trace class cls was requested.
func (o *Options) TraceEnabled(cls string) bool {
	for _, c := range o.Trace {
		if c == cls {
			return true
		}
	}
	return false
}
