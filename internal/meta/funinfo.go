package meta

import (
	"slices"

	"github.com/funvibe/metakernel/internal/expr"
)

// ParamInfo describes one parameter of a function type.
type ParamInfo struct {
	BinderInfo expr.BinderInfo
	// HasFwdDeps is set when a later parameter or the result type mentions this one.
	HasFwdDeps bool
	// BackDeps lists the earlier parameters this parameter's type depends on.
	BackDeps []int
}

func (p ParamInfo) IsInstImplicit() bool { return p.BinderInfo.IsInstImplicit() }

func (p ParamInfo) IsExplicit() bool { return p.BinderInfo.IsExplicit() }

// FunInfo is the dependency shape of a function's parameters.
type FunInfo struct {
	ParamInfo []ParamInfo
	// ResultDeps lists the parameters the result type depends on.
	ResultDeps []int
}

// GetFunInfo describes every parameter of fn. Results are cached; each call
// returns a fresh copy.
func (m *Meta) GetFunInfo(fn expr.Expr) (*FunInfo, error) {
	return m.getFunInfo(fn, Unbounded)
}

// GetFunInfoNArgs describes at most the first n parameters of fn.
func (m *Meta) GetFunInfoNArgs(fn expr.Expr, n int) (*FunInfo, error) {
	return m.getFunInfo(fn, n)
}

func (m *Meta) getFunInfo(fn expr.Expr, maxArgs int) (*FunInfo, error) {
	key := funInfoKey{transparency: m.ctx.Config.Transparency, fn: fn, nargs: maxArgs}
	if fi, ok := m.s.state.Cache.funInfo.Get(key); ok {
		return fi.clone(), nil
	}
	t, err := m.InferType(fn)
	if err != nil {
		return nil, err
	}
	fi, err := ForallBoundedTelescope(m.WithAtLeastTransparency(TransparencyDefault), t, maxArgs,
		func(m *Meta, xs []expr.Expr, body expr.Expr) (*FunInfo, error) {
			fi := &FunInfo{ParamInfo: make([]ParamInfo, len(xs))}
			for i, x := range xs {
				d, err := m.GetFVarLocalDecl(x)
				if err != nil {
					return nil, err
				}
				fi.ParamInfo[i].BinderInfo = d.BinderInfo
				fi.ParamInfo[i].BackDeps = collectDeps(xs[:i], d.Type)
				for _, j := range fi.ParamInfo[i].BackDeps {
					fi.ParamInfo[j].HasFwdDeps = true
				}
			}
			fi.ResultDeps = collectDeps(xs, body)
			for _, j := range fi.ResultDeps {
				fi.ParamInfo[j].HasFwdDeps = true
			}
			return fi, nil
		})
	if err != nil {
		return nil, err
	}
	m.s.state.Cache.funInfo = m.s.state.Cache.funInfo.Put(key, fi)
	return fi.clone(), nil
}

// clone copies fi so callers never share slices with the cache.
func (fi *FunInfo) clone() *FunInfo {
	c := &FunInfo{ParamInfo: make([]ParamInfo, len(fi.ParamInfo)), ResultDeps: slices.Clone(fi.ResultDeps)}
	for i, p := range fi.ParamInfo {
		p.BackDeps = slices.Clone(p.BackDeps)
		c.ParamInfo[i] = p
	}
	return c
}

// collectDeps returns the positions in xs of the free variables occurring in e.
func collectDeps(xs []expr.Expr, e expr.Expr) []int {
	if !e.HasFVar() {
		return nil
	}
	var deps []int
	for i, x := range xs {
		if expr.ContainsFVar(e, x.(*expr.FVar).ID) {
			deps = append(deps, i)
		}
	}
	return deps
}
