// Package reduce provides small reference implementations of the deferred
// meta operations: weak head normalization by beta, zeta and delta steps,
// structural type inference and first-order definitional equality.
//
// They are enough to drive telescopes, the class oracle and the CLI against a
// YAML environment. A full elaborator registers its own implementations instead.
package reduce

import (
	"github.com/pkg/errors"

	"github.com/funvibe/metakernel/internal/expr"
	"github.com/funvibe/metakernel/internal/meta"
)

// Install fills every slot of reg with the reference implementations.
func Install(reg *meta.Registry) error {
	if err := reg.RegisterWhnf(Whnf); err != nil {
		return errors.Wrap(err, "installing whnf")
	}
	if err := reg.RegisterInferType(InferType); err != nil {
		return errors.Wrap(err, "installing inferType")
	}
	if err := reg.RegisterIsExprDefEq(IsDefEq); err != nil {
		return errors.Wrap(err, "installing isExprDefEq")
	}
	if err := reg.RegisterSynthPending(SynthPending); err != nil {
		return errors.Wrap(err, "installing synthPending")
	}
	return nil
}

// NewRegistry returns a registry with the reference implementations installed.
// It panics if installation fails, which can only happen if Install itself
// fills a slot twice.
func NewRegistry() *meta.Registry {
	reg := meta.NewRegistry()
	if err := Install(reg); err != nil {
		panic(err)
	}
	return reg
}

// SynthPending never synthesizes anything: there is no tactic or instance
// engine at this layer.
func SynthPending(*meta.Meta, expr.MVarID) (bool, error) {
	return false, nil
}
