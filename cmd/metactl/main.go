// Command metactl loads a YAML environment and runs the metavariable layer
// against its constants: telescopes, the type class oracle and metavariable
// telescopes with instance synthesis.
package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/funvibe/metakernel/internal/config"
	"github.com/funvibe/metakernel/internal/env"
	"github.com/funvibe/metakernel/internal/expr"
	"github.com/funvibe/metakernel/internal/logging"
	"github.com/funvibe/metakernel/internal/meta"
	"github.com/funvibe/metakernel/internal/reduce"
)

// preludeArg selects the built-in prelude instead of an environment file.
const preludeArg = "-"

type cli struct {
	configPath string
	dump       bool
	reducing   bool
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "metactl",
		Short: "Inspect an environment through the metavariable layer",
		Long: `metactl loads an environment file (or the prelude when the file is "-")
and runs one operation of the metavariable layer on the type of a constant.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "session options file (YAML)")
	flags.BoolVar(&c.dump, "dump", false, "dump the computed structures")
	flags.BoolVar(&c.reducing, "reducing", false, "unfold definitions to expose more binders")

	root.AddCommand(
		&cobra.Command{
			Use:   "telescope <env.yaml> <const>",
			Short: "Open the Pi telescope of a constant's type",
			Args:  cobra.ExactArgs(2),
			RunE:  c.runTelescope,
		},
		&cobra.Command{
			Use:   "isclass <env.yaml> <const>",
			Short: "Check whether a constant's type is a type class",
			Args:  cobra.ExactArgs(2),
			RunE:  c.runIsClass,
		},
		&cobra.Command{
			Use:   "instantiate <env.yaml> <const>",
			Short: "Replace the binders of a constant's type with metavariables and synthesize instances",
			Args:  cobra.ExactArgs(2),
			RunE:  c.runInstantiate,
		},
	)
	return root
}

// session starts a meta session over the environment at envPath.
func (c *cli) session(envPath string) (*meta.Meta, func(), error) {
	opts := config.DefaultOptions()
	if c.configPath != "" {
		var err error
		if opts, err = config.LoadOptions(c.configPath); err != nil {
			return nil, nil, err
		}
	}
	var e *env.Environment
	if envPath == preludeArg {
		e = env.Prelude()
	} else {
		var err error
		if e, err = env.LoadFile(envPath); err != nil {
			return nil, nil, err
		}
	}
	logger, err := logging.New(opts.Log)
	if err != nil {
		return nil, nil, err
	}
	m := meta.New(e, reduce.NewRegistry(), opts, logger)
	m.Logger().Debug("session started", zap.Int("constants", e.NumConstants()), zap.Int("classes", len(e.Classes())))
	return m, func() { _ = logger.Sync() }, nil
}

// constant looks name up and returns it applied to its own universe parameters.
func constant(m *meta.Meta, name string) (*env.ConstantInfo, expr.Expr, error) {
	info, err := m.GetConstInfo(expr.Name(name))
	if err != nil {
		return nil, nil, errors.Wrap(err, "metactl")
	}
	ls := make([]expr.Level, len(info.LevelParams))
	for i, p := range info.LevelParams {
		ls[i] = expr.MkLevelParam(p)
	}
	return info, expr.MkConst(info.Name, ls...), nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
