package lctx

import "github.com/funvibe/metakernel/internal/expr"

// LocalInstance records that a free variable witnesses a type class.
type LocalInstance struct {
	ClassName expr.Name
	FVar      expr.Expr
}

// LocalInstances is the ordered list of instances in scope. It is only ever extended
// by appending to a clipped copy, so values handed out earlier are never overwritten.
type LocalInstances []LocalInstance

// Push returns a new list with inst appended.
func (insts LocalInstances) Push(inst LocalInstance) LocalInstances {
	out := make(LocalInstances, len(insts), len(insts)+1)
	copy(out, insts)
	return append(out, inst)
}

// Contains reports whether fvar is registered as an instance.
func (insts LocalInstances) Contains(fvar expr.Expr) bool {
	for _, inst := range insts {
		if expr.Equal(inst.FVar, fvar) {
			return true
		}
	}
	return false
}

// Erase drops every instance owned by one of the given free variables.
func (insts LocalInstances) Erase(fvars []expr.Expr) LocalInstances {
	var out LocalInstances
	for _, inst := range insts {
		drop := false
		for _, x := range fvars {
			if expr.Equal(inst.FVar, x) {
				drop = true
				break
			}
		}
		if !drop {
			out = append(out, inst)
		}
	}
	return out
}

// Equal compares two lists pointwise.
func (insts LocalInstances) Equal(other LocalInstances) bool {
	if len(insts) != len(other) {
		return false
	}
	for i := range insts {
		if insts[i].ClassName != other[i].ClassName || !expr.Equal(insts[i].FVar, other[i].FVar) {
			return false
		}
	}
	return true
}
