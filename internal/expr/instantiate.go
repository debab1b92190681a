package expr

// LiftLooseBVars adds d to every loose bound variable with index >= s.
func LiftLooseBVars(e Expr, s, d uint32) Expr {
	if d == 0 || e.LooseBVarRange() <= s {
		return e
	}
	return Replace(e, func(x Expr, offset uint32) (Expr, bool) {
		if x.LooseBVarRange() <= s+offset {
			return x, true
		}
		if bv, ok := x.(*BVar); ok {
			return MkBVar(bv.Idx + d), true
		}
		return nil, false
	})
}

// LowerLooseBVars subtracts d from every loose bound variable with index >= s.
// The caller guarantees that no variable in [s-d, s) occurs.
func LowerLooseBVars(e Expr, s, d uint32) Expr {
	if d == 0 || e.LooseBVarRange() <= s {
		return e
	}
	return Replace(e, func(x Expr, offset uint32) (Expr, bool) {
		if x.LooseBVarRange() <= s+offset {
			return x, true
		}
		if bv, ok := x.(*BVar); ok {
			return MkBVar(bv.Idx - d), true
		}
		return nil, false
	})
}

// HasLooseBVar reports whether bound variable i occurs loose in e.
func HasLooseBVar(e Expr, i uint32) bool {
	if e.LooseBVarRange() <= i {
		return false
	}
	switch x := e.(type) {
	case *BVar:
		return x.Idx == i
	case *App:
		return HasLooseBVar(x.Fn, i) || HasLooseBVar(x.Arg, i)
	case *Lam:
		return HasLooseBVar(x.BinderType, i) || HasLooseBVar(x.Body, i+1)
	case *Pi:
		return HasLooseBVar(x.BinderType, i) || HasLooseBVar(x.Body, i+1)
	case *Let:
		return HasLooseBVar(x.Type, i) || HasLooseBVar(x.Value, i) || HasLooseBVar(x.Body, i+1)
	case *MData:
		return HasLooseBVar(x.Expr, i)
	case *Proj:
		return HasLooseBVar(x.Expr, i)
	case *Local:
		return HasLooseBVar(x.Type, i)
	}
	return false
}

// InstantiateRevRange replaces loose bound variables using the window subst[begin:end],
// where bvar 0 is subst[end-1]. Variables past the window are shifted down by end-begin.
// Only the indices still unresolved are touched, so telescopes can instantiate each
// binder domain against the variables introduced so far.
func InstantiateRevRange(e Expr, begin, end int, subst []Expr) Expr {
	n := uint32(end - begin)
	if n == 0 || !HasLooseBVars(e) {
		return e
	}
	return Replace(e, func(x Expr, offset uint32) (Expr, bool) {
		if x.LooseBVarRange() <= offset {
			return x, true
		}
		bv, ok := x.(*BVar)
		if !ok {
			return nil, false
		}
		h := bv.Idx - offset
		if h < n {
			return LiftLooseBVars(subst[end-1-int(h)], 0, offset), true
		}
		return MkBVar(bv.Idx - n), true
	})
}

// InstantiateRev replaces bvar i with subst[len(subst)-1-i].
func InstantiateRev(e Expr, subst []Expr) Expr {
	return InstantiateRevRange(e, 0, len(subst), subst)
}

// Instantiate replaces bvar i with subst[i].
func Instantiate(e Expr, subst []Expr) Expr {
	rev := make([]Expr, len(subst))
	for i, s := range subst {
		rev[len(subst)-1-i] = s
	}
	return InstantiateRev(e, rev)
}

// Instantiate1 replaces bvar 0 with v.
func Instantiate1(e Expr, v Expr) Expr {
	return InstantiateRevRange(e, 0, 1, []Expr{v})
}

// AbstractRange replaces the free variables (or raw locals) xs[0:n] with bound
// variables, xs[n-1] becoming bvar 0.
func AbstractRange(e Expr, n int, xs []Expr) Expr {
	if n == 0 || (!e.HasFVar() && !e.HasLocal()) {
		return e
	}
	return Replace(e, func(x Expr, offset uint32) (Expr, bool) {
		if !x.HasFVar() && !x.HasLocal() {
			return x, true
		}
		switch v := x.(type) {
		case *FVar:
			for i := n - 1; i >= 0; i-- {
				if fv, ok := xs[i].(*FVar); ok && fv.ID == v.ID {
					return MkBVar(offset + uint32(n-1-i)), true
				}
			}
			return x, true
		case *Local:
			for i := n - 1; i >= 0; i-- {
				if l, ok := xs[i].(*Local); ok && l.ID == v.ID {
					return MkBVar(offset + uint32(n-1-i)), true
				}
			}
		}
		return nil, false
	})
}

// Abstract is AbstractRange over all of xs.
func Abstract(e Expr, xs []Expr) Expr {
	return AbstractRange(e, len(xs), xs)
}

// GetAppFn strips all arguments.
func GetAppFn(e Expr) Expr {
	for {
		app, ok := e.(*App)
		if !ok {
			return e
		}
		e = app.Fn
	}
}

// GetAppNumArgs counts the arguments of an application spine.
func GetAppNumArgs(e Expr) int {
	n := 0
	for {
		app, ok := e.(*App)
		if !ok {
			return n
		}
		n++
		e = app.Fn
	}
}

// GetAppArgs returns the arguments of an application spine in order.
func GetAppArgs(e Expr) []Expr {
	n := GetAppNumArgs(e)
	args := make([]Expr, n)
	for i := n - 1; i >= 0; i-- {
		app := e.(*App)
		args[i] = app.Arg
		e = app.Fn
	}
	return args
}

// Beta applies f to args, contracting as many leading lambdas as there are arguments.
func Beta(f Expr, args []Expr) Expr {
	i := 0
	body := f
	for i < len(args) {
		lam, ok := body.(*Lam)
		if !ok {
			break
		}
		body = lam.Body
		i++
	}
	body = InstantiateRevRange(body, 0, i, args)
	return MkAppRange(body, i, len(args), args)
}

// BetaRev is Beta with the arguments given last-first.
func BetaRev(f Expr, revArgs []Expr) Expr {
	return Beta(f, reverse(revArgs))
}

// HeadBeta contracts the head redex of e, if any.
func HeadBeta(e Expr) Expr {
	if !IsHeadBetaTarget(e) {
		return e
	}
	return HeadBeta(Beta(GetAppFn(e), GetAppArgs(e)))
}

// IsHeadBetaTarget reports whether HeadBeta would change e.
func IsHeadBetaTarget(e Expr) bool {
	if _, ok := e.(*App); !ok {
		return false
	}
	_, ok := GetAppFn(e).(*Lam)
	return ok
}

func reverse(xs []Expr) []Expr {
	out := make([]Expr, len(xs))
	for i, x := range xs {
		out[len(xs)-1-i] = x
	}
	return out
}

// ConsumeMData strips outer metadata annotations.
func ConsumeMData(e Expr) Expr {
	for {
		m, ok := e.(*MData)
		if !ok {
			return e
		}
		e = m.Expr
	}
}

// IsForall reports whether e is a Pi node.
func IsForall(e Expr) bool { return e.Kind() == PiKind }

// IsLambda reports whether e is a lambda node.
func IsLambda(e Expr) bool { return e.Kind() == LamKind }

// IsConstOf reports whether e is the constant n.
func IsConstOf(e Expr, n Name) bool {
	c, ok := e.(*Const)
	return ok && c.Name == n
}

// IsAppOf reports whether e is an application of constant n to exactly nargs arguments.
func IsAppOf(e Expr, n Name, nargs int) bool {
	return IsConstOf(GetAppFn(e), n) && GetAppNumArgs(e) == nargs
}

// ConstName returns the head constant name of e, if any.
func ConstName(e Expr) (Name, bool) {
	c, ok := GetAppFn(e).(*Const)
	if !ok {
		return Anonymous, false
	}
	return c.Name, true
}
