package meta

import (
	"go.uber.org/zap"

	"github.com/funvibe/metakernel/internal/config"
	"github.com/funvibe/metakernel/internal/expr"
)

// LOptionKind is the state of an LOption.
type LOptionKind uint8

const (
	LNone LOptionKind = iota
	LSome
	LUndef
)

// LOption is the answer of the quick class check: definitely not a class,
// definitely the class Name, or undetermined without unfolding.
type LOption struct {
	Kind LOptionKind
	Name expr.Name
}

func lnone() LOption            { return LOption{Kind: LNone} }
func lundef() LOption           { return LOption{Kind: LUndef} }
func lsome(n expr.Name) LOption { return LOption{Kind: LSome, Name: n} }

func (o LOption) String() string {
	switch o.Kind {
	case LSome:
		return "some " + string(o.Name)
	case LUndef:
		return "undef"
	}
	return "none"
}

func (m *Meta) isClassQuickConst(n expr.Name) LOption {
	if m.Env().IsClass(n) {
		return lsome(n)
	}
	if c, ok := m.Env().Find(n); ok && c.HasValue() {
		return lundef()
	}
	return lnone()
}

// IsClassQuick inspects the head of t without unfolding anything.
func (m *Meta) IsClassQuick(t expr.Expr) LOption {
	switch x := t.(type) {
	case *expr.BVar, *expr.Lit, *expr.FVar, *expr.Sort, *expr.Lam:
		return lnone()
	case *expr.Let, *expr.Proj:
		return lundef()
	case *expr.Pi:
		return m.IsClassQuick(x.Body)
	case *expr.MData:
		return m.IsClassQuick(x.Expr)
	case *expr.Const:
		return m.isClassQuickConst(x.Name)
	case *expr.MVar:
		v, ok := m.MCtx().GetExprAssignment(x.ID)
		if !ok {
			return lnone()
		}
		return m.IsClassQuick(v)
	case *expr.App:
		switch f := expr.GetAppFn(x).(type) {
		case *expr.Const:
			return m.isClassQuickConst(f.Name)
		case *expr.Lam:
			return lundef()
		case *expr.MVar:
			v, ok := m.MCtx().GetExprAssignment(f.ID)
			if !ok {
				return lnone()
			}
			if c, ok := expr.GetAppFn(v).(*expr.Const); ok {
				return m.isClassQuickConst(c.Name)
			}
			return lundef()
		}
	}
	return lnone()
}

func (m *Meta) isClassApp(t expr.Expr, instantiated bool) (expr.Name, bool, error) {
	switch f := expr.GetAppFn(t).(type) {
	case *expr.Const:
		if m.Env().IsClass(f.Name) {
			return f.Name, true, nil
		}
		r, err := m.Whnf(t)
		if err != nil {
			return "", false, err
		}
		if c, ok := expr.GetAppFn(r).(*expr.Const); ok && m.Env().IsClass(c.Name) {
			return c.Name, true, nil
		}
	case *expr.MVar:
		if !instantiated {
			return m.isClassApp(m.InstantiateMVars(t), true)
		}
	}
	return "", false, nil
}

// IsClassExpensive opens the reducing telescope of t under reducible
// transparency and checks the head of the residual type, after one whnf.
func (m *Meta) IsClassExpensive(t expr.Expr) (expr.Name, bool, error) {
	type result struct {
		name expr.Name
		ok   bool
	}
	r, err := ForallTelescopeReducing(m.WithReducible(), t, func(m *Meta, _ []expr.Expr, body expr.Expr) (result, error) {
		n, ok, err := m.isClassApp(body, false)
		return result{n, ok}, err
	})
	return r.name, r.ok, err
}

// IsClass answers whether t is a class type, escalating to IsClassExpensive only
// when the quick check is undetermined. Failures during escalation mean "no".
func (m *Meta) IsClass(t expr.Expr) (expr.Name, bool) {
	q := m.IsClassQuick(t)
	m.trace(config.TraceIsClass, "quick", func() []zap.Field {
		return []zap.Field{zap.Stringer("result", q), zap.String("type", expr.Format(t, m.ctx.LCtx.UserNameOf))}
	})
	switch q.Kind {
	case LSome:
		return q.Name, true
	case LNone:
		return "", false
	}
	n, ok, err := m.IsClassExpensive(t)
	if err != nil {
		m.trace(config.TraceIsClass, "expensive check failed", func() []zap.Field {
			return []zap.Field{zap.Error(err)}
		})
		return "", false
	}
	return n, ok
}
