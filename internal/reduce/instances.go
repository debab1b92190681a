package reduce

import (
	"github.com/funvibe/metakernel/internal/expr"
	"github.com/funvibe/metakernel/internal/meta"
)

// EnvInstances is an InstanceResolver that answers a class goal with the first
// constant, by name, whose type is a class and is defeq to the goal. Constants
// with universe parameters are skipped.
func EnvInstances(m *meta.Meta, goal expr.Expr) (expr.Expr, error) {
	for _, c := range m.Env().Constants() {
		if len(c.LevelParams) > 0 {
			continue
		}
		if _, ok := m.IsClass(c.Type); !ok {
			continue
		}
		ok, err := m.IsDefEq(c.Type, goal)
		if err != nil {
			return nil, err
		}
		if ok {
			return expr.MkConst(c.Name), nil
		}
	}
	return nil, nil
}
