package mctx

import (
	"github.com/funvibe/metakernel/internal/expr"
	"github.com/funvibe/metakernel/internal/lctx"
)

// BindingOptions tune MkBinding.
type BindingOptions struct {
	// UsedOnly drops plain binders whose variable does not occur in the body.
	UsedOnly bool
	// UsedLetOnly drops let binders whose variable does not occur in the body.
	UsedLetOnly bool
}

// MkBinding abstracts the free variables xs (declared in lc) over e, producing
// lambdas (isLambda) or Pis, and lets for let-declarations. Metavariables whose
// local context contains one of xs are replaced first by fresh metavariables that
// take the reverted variables as explicit arguments; see ElimMVarDeps.
// It returns the new expression and the updated context.
func (m MetavarContext) MkBinding(ngen *expr.NameGenerator, isLambda bool, lc *lctx.LocalContext,
	xs []expr.Expr, e expr.Expr, opts BindingOptions) (expr.Expr, MetavarContext, error) {
	b := binder{mctx: m, ngen: ngen}
	r, err := b.mkBinding(isLambda, lc, xs, e, opts)
	if err != nil {
		return nil, m, err
	}
	return r, b.mctx, nil
}

// ElimMVarDeps rewrites e so that no metavariable in it has one of xs in its local
// context. Assignable metavariables are assigned to a fresh metavariable applied to
// the reverted variables; read-only ones receive a delayed assignment instead.
func (m MetavarContext) ElimMVarDeps(ngen *expr.NameGenerator, xs []expr.Expr, e expr.Expr) (expr.Expr, MetavarContext, error) {
	b := binder{mctx: m, ngen: ngen}
	r, err := b.elim(xs, b.mctx.InstantiateMVars(e))
	if err != nil {
		return nil, m, err
	}
	return r, b.mctx, nil
}

// CollectForwardDeps extends toRevert with every later declaration of lc that
// depends on it, directly or through assignments. The order of toRevert is kept;
// dependents are appended in context order.
func (m MetavarContext) CollectForwardDeps(lc *lctx.LocalContext, toRevert []expr.Expr) []expr.Expr {
	if len(toRevert) == 0 {
		return nil
	}
	start := lc.NumIndices()
	for _, x := range toRevert {
		if d, ok := lc.FindFVar(x); ok && d.Index < start {
			start = d.Index
		}
	}
	out := append([]expr.Expr(nil), toRevert...)
	initial := len(out)
	lc.ForEachFrom(start, func(d *lctx.LocalDecl) bool {
		for _, x := range out[:initial] {
			if fv, ok := x.(*expr.FVar); ok && fv.ID == d.FVarID {
				return true
			}
		}
		if m.LocalDeclDependsOnAny(d, out) {
			out = append(out, d.ToExpr())
		}
		return true
	})
	return out
}

// LocalDeclDependsOnAny reports whether the type or value of d mentions one of xs.
func (m MetavarContext) LocalDeclDependsOnAny(d *lctx.LocalDecl, xs []expr.Expr) bool {
	if m.ExprDependsOnAny(d.Type, xs) {
		return true
	}
	return d.IsLet() && m.ExprDependsOnAny(d.Value, xs)
}

// ExprDependsOnAny reports whether e mentions one of xs, looking through
// (delayed) metavariable assignments.
func (m MetavarContext) ExprDependsOnAny(e expr.Expr, xs []expr.Expr) bool {
	ids := make(map[expr.FVarID]bool, len(xs))
	for _, x := range xs {
		if fv, ok := x.(*expr.FVar); ok {
			ids[fv.ID] = true
		}
	}
	visited := make(map[expr.MVarID]bool)
	var dep func(expr.Expr) bool
	dep = func(e expr.Expr) bool {
		if !e.HasFVar() && !e.HasExprMVar() {
			return false
		}
		return expr.Find(e, func(x expr.Expr) bool {
			switch v := x.(type) {
			case *expr.FVar:
				return ids[v.ID]
			case *expr.MVar:
				if visited[v.ID] {
					return false
				}
				visited[v.ID] = true
				if a, ok := m.GetExprAssignment(v.ID); ok {
					return dep(a)
				}
				if d, ok := m.GetDelayedAssignment(v.ID); ok {
					return dep(expr.MkMVar(d.MVarIDPending))
				}
			}
			return false
		}) != nil
	}
	return dep(e)
}

type binder struct {
	mctx MetavarContext
	ngen *expr.NameGenerator
}

// checkOrder fails when some xs[j] depends on a later xs[i].
func (b *binder) checkOrder(lc *lctx.LocalContext, xs []expr.Expr) error {
	for i := 1; i < len(xs); i++ {
		for j := 0; j < i; j++ {
			d, ok := lc.FindFVar(xs[j])
			if !ok {
				continue
			}
			if b.mctx.LocalDeclDependsOnAny(d, xs[i:i+1]) {
				return &RevertFailure{LCtx: lc, ToRevert: xs, VarName: d.UserName}
			}
		}
	}
	return nil
}

func (b *binder) abstractRange(xs []expr.Expr, i int, e expr.Expr) (expr.Expr, error) {
	e, err := b.elim(xs, b.mctx.InstantiateMVars(e))
	if err != nil {
		return nil, err
	}
	return expr.AbstractRange(e, i, xs), nil
}

func (b *binder) mkBinding(isLambda bool, lc *lctx.LocalContext, xs []expr.Expr, e expr.Expr, opts BindingOptions) (expr.Expr, error) {
	if err := b.checkOrder(lc, xs); err != nil {
		return nil, err
	}
	r, err := b.abstractRange(xs, len(xs), e)
	if err != nil {
		return nil, err
	}
	for i := len(xs) - 1; i >= 0; i-- {
		d, ok := lc.FindFVar(xs[i])
		if !ok {
			return nil, newError(ErrUnknownFVar, expr.Format(xs[i], nil))
		}
		if d.IsLet() {
			if opts.UsedLetOnly && !expr.HasLooseBVar(r, 0) {
				r = expr.LowerLooseBVars(r, 1, 1)
				continue
			}
			t, err := b.abstractRange(xs, i, expr.HeadBeta(d.Type))
			if err != nil {
				return nil, err
			}
			v, err := b.abstractRange(xs, i, d.Value)
			if err != nil {
				return nil, err
			}
			r = expr.MkLet(d.UserName, t, v, r, d.NonDep)
			continue
		}
		if opts.UsedOnly && !expr.HasLooseBVar(r, 0) {
			r = expr.LowerLooseBVars(r, 1, 1)
			continue
		}
		t, err := b.abstractRange(xs, i, expr.HeadBeta(d.Type))
		if err != nil {
			return nil, err
		}
		if isLambda {
			r = expr.MkLambda(d.UserName, d.BinderInfo, t, r)
		} else {
			r = expr.MkForall(d.UserName, d.BinderInfo, t, r)
		}
	}
	return r, nil
}

// elim expects e to be instantiated.
func (b *binder) elim(xs []expr.Expr, e expr.Expr) (expr.Expr, error) {
	if !e.HasExprMVar() || len(xs) == 0 {
		return e, nil
	}
	cache := make(map[expr.Expr]expr.Expr)
	var visit func(expr.Expr) (expr.Expr, error)
	visit = func(e expr.Expr) (expr.Expr, error) {
		if !e.HasExprMVar() {
			return e, nil
		}
		if r, ok := cache[e]; ok {
			return r, nil
		}
		r, err := b.elimNode(xs, e, visit)
		if err != nil {
			return nil, err
		}
		cache[e] = r
		return r, nil
	}
	return visit(e)
}

func (b *binder) elimNode(xs []expr.Expr, e expr.Expr, visit func(expr.Expr) (expr.Expr, error)) (expr.Expr, error) {
	switch x := e.(type) {
	case *expr.MVar:
		return b.elimApp(xs, x, nil, visit)
	case *expr.App:
		if mv, ok := expr.GetAppFn(x).(*expr.MVar); ok {
			return b.elimApp(xs, mv, expr.GetAppArgs(x), visit)
		}
		fn, err := visit(x.Fn)
		if err != nil {
			return nil, err
		}
		arg, err := visit(x.Arg)
		if err != nil {
			return nil, err
		}
		return expr.MkApp(fn, arg), nil
	case *expr.Lam:
		t, bd, err := visit2(visit, x.BinderType, x.Body)
		if err != nil {
			return nil, err
		}
		return expr.MkLambda(x.BinderName, x.Info, t, bd), nil
	case *expr.Pi:
		t, bd, err := visit2(visit, x.BinderType, x.Body)
		if err != nil {
			return nil, err
		}
		return expr.MkForall(x.BinderName, x.Info, t, bd), nil
	case *expr.Let:
		t, v, err := visit2(visit, x.Type, x.Value)
		if err != nil {
			return nil, err
		}
		bd, err := visit(x.Body)
		if err != nil {
			return nil, err
		}
		return expr.MkLet(x.Name, t, v, bd, x.NonDep), nil
	case *expr.MData:
		inner, err := visit(x.Expr)
		if err != nil {
			return nil, err
		}
		return expr.MkMData(x.Data, inner), nil
	case *expr.Proj:
		inner, err := visit(x.Expr)
		if err != nil {
			return nil, err
		}
		return expr.MkProj(x.Struct, x.Idx, inner), nil
	}
	return e, nil
}

func visit2(visit func(expr.Expr) (expr.Expr, error), a, c expr.Expr) (expr.Expr, expr.Expr, error) {
	ra, err := visit(a)
	if err != nil {
		return nil, nil, err
	}
	rc, err := visit(c)
	if err != nil {
		return nil, nil, err
	}
	return ra, rc, nil
}

func (b *binder) elimArgs(args []expr.Expr, visit func(expr.Expr) (expr.Expr, error)) ([]expr.Expr, error) {
	out := make([]expr.Expr, len(args))
	for i, a := range args {
		r, err := visit(a)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

func inScope(lc *lctx.LocalContext, xs []expr.Expr) []expr.Expr {
	var out []expr.Expr
	for _, x := range xs {
		if fv, ok := x.(*expr.FVar); ok && lc.Contains(fv.ID) {
			out = append(out, x)
		}
	}
	return out
}

func (b *binder) elimApp(xs []expr.Expr, mv *expr.MVar, args []expr.Expr, visit func(expr.Expr) (expr.Expr, error)) (expr.Expr, error) {
	if v, ok := b.mctx.GetExprAssignment(mv.ID); ok {
		return visit(expr.HeadBeta(expr.Beta(b.mctx.InstantiateMVars(v), args)))
	}
	newArgs, err := b.elimArgs(args, visit)
	if err != nil {
		return nil, err
	}
	if b.mctx.IsDelayedAssigned(mv.ID) {
		return expr.MkAppN(mv, newArgs...), nil
	}
	decl, err := b.mctx.GetDecl(mv.ID)
	if err != nil {
		return nil, err
	}
	toRevert := inScope(decl.LCtx, xs)
	if len(toRevert) == 0 {
		return expr.MkAppN(mv, newArgs...), nil
	}
	toRevert = b.mctx.CollectForwardDeps(decl.LCtx, toRevert)
	if err := b.checkOrder(decl.LCtx, toRevert); err != nil {
		return nil, err
	}
	newLCtx := decl.LCtx
	for _, x := range toRevert {
		newLCtx = newLCtx.Erase(x.(*expr.FVar).ID)
	}
	newInsts := decl.LocalInstances.Erase(toRevert)
	readOnly := b.mctx.IsReadOnlyExprMVar(mv.ID)
	kind := decl.Kind
	if readOnly {
		kind = SyntheticOpaque
	}
	newType, err := b.mkAuxMVarType(decl.LCtx, toRevert, decl.Type)
	if err != nil {
		return nil, err
	}
	newID := expr.MVarID(b.ngen.Next())
	newMVar := expr.MkMVar(newID)
	result := expr.MkAppN(newMVar, toRevert...)
	b.mctx = b.mctx.AddExprMVarDecl(newID, expr.Anonymous, newLCtx, newInsts, newType, kind,
		decl.NumScopeArgs+len(toRevert))
	if readOnly {
		b.mctx, err = b.mctx.AssignDelayed(newID, toRevert, mv.ID)
	} else {
		b.mctx, err = b.mctx.AssignExpr(mv.ID, result)
	}
	if err != nil {
		return nil, err
	}
	return expr.MkAppN(result, newArgs...), nil
}

// mkAuxMVarType closes t over toRevert. Let declarations become plain Pi binders so
// that the auxiliary metavariable can take every reverted variable as an argument.
func (b *binder) mkAuxMVarType(lc *lctx.LocalContext, toRevert []expr.Expr, t expr.Expr) (expr.Expr, error) {
	r, err := b.abstractRange(toRevert, len(toRevert), t)
	if err != nil {
		return nil, err
	}
	for i := len(toRevert) - 1; i >= 0; i-- {
		d, ok := lc.FindFVar(toRevert[i])
		if !ok {
			return nil, newError(ErrUnknownFVar, expr.Format(toRevert[i], nil))
		}
		dt, err := b.abstractRange(toRevert, i, expr.HeadBeta(d.Type))
		if err != nil {
			return nil, err
		}
		bi := d.BinderInfo
		if d.IsLet() {
			bi = expr.BinderDefault
		}
		r = expr.MkForall(d.UserName, bi, dt, r)
	}
	return r, nil
}
