package expr

// ReplaceFn is called on every subterm together with the number of binders crossed.
// Returning (r, true) replaces the subterm with r and stops descent.
type ReplaceFn func(e Expr, offset uint32) (Expr, bool)

type replaceKey struct {
	e      Expr
	offset uint32
}

// Replace rebuilds e bottom-up. Shared subterms are visited once per offset.
func Replace(e Expr, f ReplaceFn) Expr {
	r := replacer{f: f, cache: make(map[replaceKey]Expr)}
	return r.visit(e, 0)
}

type replacer struct {
	f     ReplaceFn
	cache map[replaceKey]Expr
}

func (r *replacer) visit(e Expr, offset uint32) Expr {
	key := replaceKey{e, offset}
	if v, ok := r.cache[key]; ok {
		return v
	}
	res := r.visitNoCache(e, offset)
	r.cache[key] = res
	return res
}

func (r *replacer) visitNoCache(e Expr, offset uint32) Expr {
	if v, ok := r.f(e, offset); ok {
		return v
	}
	switch x := e.(type) {
	case *App:
		fn, arg := r.visit(x.Fn, offset), r.visit(x.Arg, offset)
		if fn == x.Fn && arg == x.Arg {
			return e
		}
		return MkApp(fn, arg)
	case *Lam:
		t, b := r.visit(x.BinderType, offset), r.visit(x.Body, offset+1)
		if t == x.BinderType && b == x.Body {
			return e
		}
		return MkLambda(x.BinderName, x.Info, t, b)
	case *Pi:
		t, b := r.visit(x.BinderType, offset), r.visit(x.Body, offset+1)
		if t == x.BinderType && b == x.Body {
			return e
		}
		return MkForall(x.BinderName, x.Info, t, b)
	case *Let:
		t, v, b := r.visit(x.Type, offset), r.visit(x.Value, offset), r.visit(x.Body, offset+1)
		if t == x.Type && v == x.Value && b == x.Body {
			return e
		}
		return MkLet(x.Name, t, v, b, x.NonDep)
	case *MData:
		inner := r.visit(x.Expr, offset)
		if inner == x.Expr {
			return e
		}
		return MkMData(x.Data, inner)
	case *Proj:
		inner := r.visit(x.Expr, offset)
		if inner == x.Expr {
			return e
		}
		return MkProj(x.Struct, x.Idx, inner)
	case *Local:
		t := r.visit(x.Type, offset)
		if t == x.Type {
			return e
		}
		return MkLocal(x.ID, x.UserName, t, x.Info)
	}
	return e
}

// ForEach visits subterms in pre-order. f returns false to skip the children.
// Shared subterms are visited once.
func ForEach(e Expr, f func(Expr) bool) {
	visited := make(map[Expr]struct{})
	var visit func(Expr)
	visit = func(e Expr) {
		if _, ok := visited[e]; ok {
			return
		}
		visited[e] = struct{}{}
		if !f(e) {
			return
		}
		switch x := e.(type) {
		case *App:
			visit(x.Fn)
			visit(x.Arg)
		case *Lam:
			visit(x.BinderType)
			visit(x.Body)
		case *Pi:
			visit(x.BinderType)
			visit(x.Body)
		case *Let:
			visit(x.Type)
			visit(x.Value)
			visit(x.Body)
		case *MData:
			visit(x.Expr)
		case *Proj:
			visit(x.Expr)
		case *Local:
			visit(x.Type)
		}
	}
	visit(e)
}

// Find returns the first subterm satisfying p in pre-order, or nil.
func Find(e Expr, p func(Expr) bool) Expr {
	var found Expr
	ForEach(e, func(x Expr) bool {
		if found != nil {
			return false
		}
		if p(x) {
			found = x
			return false
		}
		return true
	})
	return found
}

// CollectFVars returns the distinct free variables of e in first-occurrence order.
func CollectFVars(e Expr) []FVarID {
	if !e.HasFVar() {
		return nil
	}
	var ids []FVarID
	seen := make(map[FVarID]bool)
	ForEach(e, func(x Expr) bool {
		if !x.HasFVar() {
			return false
		}
		if fv, ok := x.(*FVar); ok && !seen[fv.ID] {
			seen[fv.ID] = true
			ids = append(ids, fv.ID)
		}
		return true
	})
	return ids
}

// ContainsFVar reports whether the free variable id occurs in e.
func ContainsFVar(e Expr, id FVarID) bool {
	if !e.HasFVar() {
		return false
	}
	return Find(e, func(x Expr) bool {
		fv, ok := x.(*FVar)
		return ok && fv.ID == id
	}) != nil
}

// InstantiateLevelParamsExpr substitutes universe arguments for the parameters ps.
func InstantiateLevelParamsExpr(e Expr, ps []Name, us []Level) Expr {
	if len(ps) == 0 || !e.HasLevelParam() {
		return e
	}
	return Replace(e, func(x Expr, _ uint32) (Expr, bool) {
		if !x.HasLevelParam() {
			return x, true
		}
		switch v := x.(type) {
		case *Sort:
			return MkSort(InstantiateLevelParams(v.Level, ps, us)), true
		case *Const:
			ls := make([]Level, len(v.Levels))
			for i, l := range v.Levels {
				ls[i] = InstantiateLevelParams(l, ps, us)
			}
			return MkConst(v.Name, ls...), true
		}
		return nil, false
	})
}

// ReplaceLevels maps f over every level occurring in e.
func ReplaceLevels(e Expr, f func(Level) Level) Expr {
	return Replace(e, func(x Expr, _ uint32) (Expr, bool) {
		if !x.HasLevelMVar() && !x.HasLevelParam() {
			return x, true
		}
		switch v := x.(type) {
		case *Sort:
			return MkSort(f(v.Level)), true
		case *Const:
			ls := make([]Level, len(v.Levels))
			for i, l := range v.Levels {
				ls[i] = f(l)
			}
			return MkConst(v.Name, ls...), true
		}
		return nil, false
	})
}
