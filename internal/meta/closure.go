package meta

import (
	"strconv"

	"go.uber.org/zap"

	"github.com/funvibe/metakernel/internal/config"
	"github.com/funvibe/metakernel/internal/env"
	"github.com/funvibe/metakernel/internal/expr"
	"github.com/funvibe/metakernel/internal/lctx"
)

type closureDecl struct {
	local    *expr.Local
	userName expr.Name
	info     expr.BinderInfo
	typ      expr.Expr
}

// closure collects what a term depends on: universe parameters, universe
// metavariables, free variables and unassigned metavariables. The free
// variables and metavariables are replaced by raw locals while collecting.
type closure struct {
	m  *Meta
	lc *lctx.LocalContext

	levelParams []expr.Name
	levelArgs   []expr.Level
	seenParams  map[expr.Name]bool
	usedNames   map[expr.Name]bool
	lmvarParams map[expr.LMVarID]expr.Level
	nextParam   int

	decls []closureDecl
	args  []expr.Expr
	fvars map[expr.FVarID]expr.Expr
	mvars map[expr.MVarID]expr.Expr
	lets  map[expr.FVarID]expr.Expr
	err   error
}

func newClosure(m *Meta, es ...expr.Expr) *closure {
	c := &closure{
		m:           m,
		lc:          m.ctx.LCtx,
		seenParams:  make(map[expr.Name]bool),
		usedNames:   make(map[expr.Name]bool),
		lmvarParams: make(map[expr.LMVarID]expr.Level),
		fvars:       make(map[expr.FVarID]expr.Expr),
		mvars:       make(map[expr.MVarID]expr.Expr),
		lets:        make(map[expr.FVarID]expr.Expr),
	}
	note := func(l expr.Level) {
		expr.ForEachLevel(l, func(x expr.Level) bool {
			if p, ok := x.(*expr.LevelParam); ok {
				c.usedNames[p.Name] = true
			}
			return x.HasParam()
		})
	}
	for _, e := range es {
		expr.ForEach(e, func(x expr.Expr) bool {
			switch v := x.(type) {
			case *expr.Sort:
				note(v.Level)
			case *expr.Const:
				for _, l := range v.Levels {
					note(l)
				}
			}
			return x.HasLevelParam()
		})
	}
	return c
}

func (c *closure) addParam(n expr.Name, arg expr.Level) {
	if c.seenParams[n] {
		return
	}
	c.seenParams[n] = true
	c.usedNames[n] = true
	c.levelParams = append(c.levelParams, n)
	c.levelArgs = append(c.levelArgs, arg)
}

func (c *closure) freshParam() expr.Name {
	for {
		c.nextParam++
		n := expr.Name(config.AuxLevelPrefix + "_" + strconv.Itoa(c.nextParam))
		if !c.usedNames[n] {
			c.usedNames[n] = true
			return n
		}
	}
}

func (c *closure) level(l expr.Level) expr.Level {
	return expr.ReplaceLevel(l, func(x expr.Level) (expr.Level, bool) {
		if !x.HasMVar() && !x.HasParam() {
			return x, true
		}
		switch v := x.(type) {
		case *expr.LevelParam:
			c.addParam(v.Name, x)
			return x, true
		case *expr.LevelMVar:
			if p, ok := c.lmvarParams[v.ID]; ok {
				return p, true
			}
			n := c.freshParam()
			p := expr.MkLevelParam(n)
			c.lmvarParams[v.ID] = p
			c.addParam(n, x)
			return p, true
		}
		return nil, false
	})
}

func (c *closure) push(userName expr.Name, bi expr.BinderInfo, t, arg expr.Expr) expr.Expr {
	id := c.m.MkFreshFVarID()
	l := expr.MkLocal(id, userName, t, bi).(*expr.Local)
	c.decls = append(c.decls, closureDecl{local: l, userName: userName, info: bi, typ: t})
	c.args = append(c.args, arg)
	return l
}

func (c *closure) visit(e expr.Expr) expr.Expr {
	if c.err != nil {
		return e
	}
	if !e.HasFVar() && !expr.HasMVar(e) && !e.HasLevelParam() {
		return e
	}
	return expr.Replace(e, func(x expr.Expr, _ uint32) (expr.Expr, bool) {
		if c.err != nil {
			return x, true
		}
		if !x.HasFVar() && !expr.HasMVar(x) && !x.HasLevelParam() {
			return x, true
		}
		switch v := x.(type) {
		case *expr.Sort:
			return expr.MkSort(c.level(v.Level)), true
		case *expr.Const:
			ls := make([]expr.Level, len(v.Levels))
			for i, l := range v.Levels {
				ls[i] = c.level(l)
			}
			return expr.MkConst(v.Name, ls...), true
		case *expr.FVar:
			return c.visitFVar(v), true
		case *expr.MVar:
			return c.visitMVar(v), true
		}
		return nil, false
	})
}

func (c *closure) visitFVar(v *expr.FVar) expr.Expr {
	if r, ok := c.fvars[v.ID]; ok {
		return r
	}
	if r, ok := c.lets[v.ID]; ok {
		return r
	}
	d, ok := c.lc.Find(v.ID)
	if !ok {
		c.err = c.m.throwf(KindUnknownFVar, "unknown free variable '%s'", v.ID)
		return v
	}
	if d.IsLet() {
		r := c.visit(c.m.InstantiateMVars(d.Value))
		c.lets[v.ID] = r
		return r
	}
	t := c.visit(c.m.InstantiateMVars(d.Type))
	r := c.push(d.UserName, d.BinderInfo, t, v)
	c.fvars[v.ID] = r
	return r
}

func (c *closure) visitMVar(v *expr.MVar) expr.Expr {
	if a, ok := c.m.MCtx().GetExprAssignment(v.ID); ok {
		return c.visit(c.m.InstantiateMVars(a))
	}
	if r, ok := c.mvars[v.ID]; ok {
		return r
	}
	d, err := c.m.GetMVarDecl(v.ID)
	if err != nil {
		c.err = err
		return v
	}
	// The type of a metavariable lives in the metavariable's own context.
	saved := c.lc
	c.lc = d.LCtx
	t := c.visit(c.m.InstantiateMVars(d.Type))
	c.lc = saved
	userName := d.UserName
	if userName.IsAnonymous() {
		userName = "x"
	}
	r := c.push(userName, expr.BinderDefault, t, v)
	c.mvars[v.ID] = r
	return r
}

// abstract closes e over the collected binders, innermost last.
func (c *closure) abstract(e expr.Expr, isLambda bool) expr.Expr {
	locals := make([]expr.Expr, len(c.decls))
	for i, d := range c.decls {
		locals[i] = d.local
	}
	b := expr.Abstract(e, locals)
	for i := len(c.decls) - 1; i >= 0; i-- {
		d := c.decls[i]
		t := expr.AbstractRange(d.typ, i, locals)
		if isLambda {
			b = expr.MkLambda(d.userName, d.info, t, b)
		} else {
			b = expr.MkForall(d.userName, d.info, t, b)
		}
	}
	return b
}

// MkAuxDefinition closes value : t over everything it depends on, adds the
// result to the session environment as the definition name, and returns the
// application of the new constant to the captured variables. Let-bound free
// variables are inlined rather than captured.
func (m *Meta) MkAuxDefinition(name expr.Name, t, value expr.Expr) (expr.Expr, error) {
	t = m.InstantiateMVars(t)
	value = m.InstantiateMVars(value)
	c := newClosure(m, t, value)
	ct := c.visit(t)
	cv := c.visit(value)
	if c.err != nil {
		return nil, c.err
	}
	closedType := c.abstract(ct, false)
	closedValue := c.abstract(cv, true)
	if closedType.HasLocal() || closedValue.HasLocal() || expr.HasLooseBVars(closedType) || expr.HasLooseBVars(closedValue) {
		return nil, m.throwf(KindMalformedTelescope, "auxiliary definition '%s' is not closed", name)
	}
	e, err := m.Env().AddDecl(&env.ConstantInfo{
		Name:        name,
		LevelParams: c.levelParams,
		Type:        closedType,
		Value:       closedValue,
		Kind:        env.DefnKind,
	})
	if err != nil {
		return nil, &Exception{Kind: KindOther, Ref: m.ctx.Ref, Cause: err}
	}
	m.s.state.Env = e
	m.trace(config.TraceAuxDef, "added", func() []zap.Field {
		return []zap.Field{
			zap.String("name", string(name)),
			zap.Int("binders", len(c.decls)),
			zap.Int("levelParams", len(c.levelParams)),
		}
	})
	return expr.MkAppN(expr.MkConst(name, c.levelArgs...), c.args...), nil
}
