package meta

import (
	"fmt"

	"github.com/funvibe/metakernel/internal/expr"
)

// Slot names one deferred operation.
type Slot int

const (
	SlotWhnf Slot = iota
	SlotInferType
	SlotIsExprDefEq
	SlotSynthPending
)

func (s Slot) String() string {
	switch s {
	case SlotWhnf:
		return "whnf"
	case SlotInferType:
		return "inferType"
	case SlotIsExprDefEq:
		return "isExprDefEq"
	case SlotSynthPending:
		return "synthPending"
	}
	return fmt.Sprintf("slot(%d)", int(s))
}

type (
	// WhnfFunc puts e in weak head normal form at the transparency of m.
	WhnfFunc func(m *Meta, e expr.Expr) (expr.Expr, error)
	// InferTypeFunc computes the type of e.
	InferTypeFunc func(m *Meta, e expr.Expr) (expr.Expr, error)
	// IsDefEqFunc decides definitional equality, possibly assigning metavariables.
	IsDefEqFunc func(m *Meta, a, b expr.Expr) (bool, error)
	// SynthPendingFunc retries the synthesis of a pending synthetic metavariable.
	SynthPendingFunc func(m *Meta, id expr.MVarID) (bool, error)
)

// Registry holds the operations implemented by higher layers. Each slot is
// filled once, before sessions are created; an empty slot fails when called.
type Registry struct {
	whnf         WhnfFunc
	inferType    InferTypeFunc
	isExprDefEq  IsDefEqFunc
	synthPending SynthPendingFunc
}

func NewRegistry() *Registry {
	return &Registry{}
}

func slotTaken(s Slot) error {
	return &Exception{Kind: KindRegistrySlotTaken, render: func() string {
		return fmt.Sprintf("registry slot '%s' is already initialized", s)
	}}
}

func slotEmpty(m *Meta, s Slot) error {
	return m.throwf(KindRegistryUninitialized, "registry slot '%s' is not initialized", s)
}

func (r *Registry) RegisterWhnf(f WhnfFunc) error {
	if r.whnf != nil {
		return slotTaken(SlotWhnf)
	}
	r.whnf = f
	return nil
}

func (r *Registry) RegisterInferType(f InferTypeFunc) error {
	if r.inferType != nil {
		return slotTaken(SlotInferType)
	}
	r.inferType = f
	return nil
}

func (r *Registry) RegisterIsExprDefEq(f IsDefEqFunc) error {
	if r.isExprDefEq != nil {
		return slotTaken(SlotIsExprDefEq)
	}
	r.isExprDefEq = f
	return nil
}

func (r *Registry) RegisterSynthPending(f SynthPendingFunc) error {
	if r.synthPending != nil {
		return slotTaken(SlotSynthPending)
	}
	r.synthPending = f
	return nil
}

// IsRegistered reports whether slot s has been filled.
func (r *Registry) IsRegistered(s Slot) bool {
	switch s {
	case SlotWhnf:
		return r.whnf != nil
	case SlotInferType:
		return r.inferType != nil
	case SlotIsExprDefEq:
		return r.isExprDefEq != nil
	case SlotSynthPending:
		return r.synthPending != nil
	}
	return false
}
