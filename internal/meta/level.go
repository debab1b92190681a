package meta

import (
	"go.uber.org/zap"

	"github.com/funvibe/metakernel/internal/config"
	"github.com/funvibe/metakernel/internal/expr"
)

type lbool uint8

const (
	lfalse lbool = iota
	ltrue
	lundefined
)

func toLBool(b bool) lbool {
	if b {
		return ltrue
	}
	return lfalse
}

// levelOffset strips the succ applications of l and counts them.
func levelOffset(l expr.Level) (expr.Level, int) {
	n := 0
	for {
		s, ok := l.(*expr.LevelSucc)
		if !ok {
			return l, n
		}
		l = s.Of
		n++
	}
}

// decLevel returns a level l' with succ l' = l, when one exists syntactically.
func decLevel(l expr.Level) (expr.Level, bool) {
	switch v := l.(type) {
	case *expr.LevelSucc:
		return v.Of, true
	case *expr.LevelMax:
		a, ok := decLevel(v.Lhs)
		if !ok {
			return nil, false
		}
		b, ok := decLevel(v.Rhs)
		if !ok {
			return nil, false
		}
		return expr.MkLevelMaxSimp(a, b), true
	case *expr.LevelIMax:
		// imax a b with b never zero behaves as max.
		if !expr.IsNeverZero(v.Rhs) {
			return nil, false
		}
		return decLevel(expr.MkLevelMax(v.Lhs, v.Rhs))
	}
	return nil, false
}

// simplifyLevel applies the max/imax simplifications bottom-up.
func simplifyLevel(l expr.Level) expr.Level {
	switch v := l.(type) {
	case *expr.LevelSucc:
		return expr.MkLevelSucc(simplifyLevel(v.Of))
	case *expr.LevelMax:
		return expr.MkLevelMaxSimp(simplifyLevel(v.Lhs), simplifyLevel(v.Rhs))
	case *expr.LevelIMax:
		return expr.MkLevelIMaxSimp(simplifyLevel(v.Lhs), simplifyLevel(v.Rhs))
	}
	return l
}

// maxArgs flattens nested max applications.
func maxArgs(l expr.Level, out []expr.Level) []expr.Level {
	if mx, ok := l.(*expr.LevelMax); ok {
		return maxArgs(mx.Rhs, maxArgs(mx.Lhs, out))
	}
	return append(out, l)
}

// IsLevelDefEq decides a =?= b on universe levels, assigning level
// metavariables of the current depth. Constraints that cannot be decided yet
// are postponed and count as success.
func (m *Meta) IsLevelDefEq(a, b expr.Level) (bool, error) {
	return m.isLevelDefEqAux(m.InstantiateLevelMVars(a), m.InstantiateLevelMVars(b))
}

// IsLevelsDefEq is IsLevelDefEq pointwise.
func (m *Meta) IsLevelsDefEq(as, bs []expr.Level) (bool, error) {
	if len(as) != len(bs) {
		return false, nil
	}
	for i := range as {
		ok, err := m.IsLevelDefEq(as[i], bs[i])
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (m *Meta) isLevelDefEqAux(a, b expr.Level) (bool, error) {
	if expr.LevelEqual(a, b) {
		return true, nil
	}
	if sa, ok := a.(*expr.LevelSucc); ok {
		if sb, ok := b.(*expr.LevelSucc); ok {
			return m.isLevelDefEqAux(sa.Of, sb.Of)
		}
	}
	ba, na := levelOffset(a)
	bb, nb := levelOffset(b)
	if expr.LevelEqual(ba, bb) {
		return na == nb, nil
	}
	if a2 := m.InstantiateLevelMVars(a); !expr.LevelEqual(a2, a) {
		return m.isLevelDefEqAux(a2, b)
	}
	if b2 := m.InstantiateLevelMVars(b); !expr.LevelEqual(b2, b) {
		return m.isLevelDefEqAux(a, b2)
	}
	if a2, b2 := simplifyLevel(a), simplifyLevel(b); !expr.LevelEqual(a2, a) || !expr.LevelEqual(b2, b) {
		return m.isLevelDefEqAux(a2, b2)
	}
	r, err := m.solveLevel(a, b)
	if err != nil || r != lundefined {
		return r == ltrue, err
	}
	r, err = m.solveLevel(b, a)
	if err != nil || r != lundefined {
		return r == ltrue, err
	}
	mc := m.MCtx()
	if !mc.HasAssignableLevelMVar(a) && !mc.HasAssignableLevelMVar(b) {
		return false, nil
	}
	m.PostponeLevelDefEq(a, b)
	return true, nil
}

func (m *Meta) solveLevel(a, b expr.Level) (lbool, error) {
	switch x := a.(type) {
	case *expr.LevelMVar:
		if m.IsReadOnlyLevelMVar(x.ID) {
			return lundefined, nil
		}
		if !levelMentions(b, x.ID) {
			return ltrue, m.AssignLevelMVar(x.ID, b)
		}
		if _, ok := b.(*expr.LevelMax); ok {
			return m.solveSelfMax(x.ID, b)
		}
		return lundefined, nil
	case *expr.LevelZero:
		switch y := b.(type) {
		case *expr.LevelMax:
			ok, err := m.isLevelDefEqAux(a, y.Lhs)
			if err != nil || !ok {
				return lfalse, err
			}
			ok, err = m.isLevelDefEqAux(a, y.Rhs)
			return toLBool(ok), err
		case *expr.LevelIMax:
			ok, err := m.isLevelDefEqAux(a, y.Rhs)
			return toLBool(ok), err
		case *expr.LevelSucc:
			return lfalse, nil
		}
	case *expr.LevelSucc:
		if _, ok := b.(*expr.LevelMVar); ok {
			return lundefined, nil
		}
		if d, ok := decLevel(b); ok {
			ok, err := m.isLevelDefEqAux(x.Of, d)
			return toLBool(ok), err
		}
	}
	return lundefined, nil
}

// solveSelfMax solves ?u =?= max ?u v by ?u := max ?w v, provided ?u only
// occurs as a top-level argument of the max.
func (m *Meta) solveSelfMax(id expr.LMVarID, b expr.Level) (lbool, error) {
	var rest []expr.Level
	for _, arg := range maxArgs(b, nil) {
		if mv, ok := arg.(*expr.LevelMVar); ok && mv.ID == id {
			continue
		}
		if levelMentions(arg, id) {
			return lundefined, nil
		}
		rest = append(rest, arg)
	}
	v := m.MkFreshLevelMVar()
	for _, arg := range rest {
		v = expr.MkLevelMax(v, arg)
	}
	return ltrue, m.AssignLevelMVar(id, v)
}

func levelMentions(l expr.Level, id expr.LMVarID) bool {
	if !l.HasMVar() {
		return false
	}
	found := false
	expr.ForEachLevel(l, func(x expr.Level) bool {
		if mv, ok := x.(*expr.LevelMVar); ok && mv.ID == id {
			found = true
		}
		return !found && x.HasMVar()
	})
	return found
}

// PostponeLevelDefEq queues lhs =?= rhs for ProcessPostponed.
func (m *Meta) PostponeLevelDefEq(lhs, rhs expr.Level) {
	ps := m.s.state.Postponed
	// Full slice expression: snapshots taken by SaveState must not see the append.
	m.s.state.Postponed = append(ps[:len(ps):len(ps)], PostponedEntry{Ref: m.ctx.Ref, Lhs: lhs, Rhs: rhs})
	m.trace(config.TracePostponed, "postponed", func() []zap.Field {
		return []zap.Field{zap.Stringer("lhs", lhs), zap.Stringer("rhs", rhs)}
	})
}

// ProcessPostponed retries the postponed universe constraints until none are
// left or no progress is made. With mayPostpone, constraints that are still
// stuck stay queued and the result is true; otherwise they are a failure.
func (m *Meta) ProcessPostponed(mayPostpone bool) (bool, error) {
	for {
		ps := m.s.state.Postponed
		if len(ps) == 0 {
			return true, nil
		}
		m.s.state.Postponed = nil
		m.trace(config.TracePostponed, "processing", func() []zap.Field {
			return []zap.Field{zap.Int("constraints", len(ps))}
		})
		for _, p := range ps {
			ok, err := m.WithRef(p.Ref).IsLevelDefEq(p.Lhs, p.Rhs)
			if err != nil || !ok {
				return false, err
			}
		}
		n := len(m.s.state.Postponed)
		switch {
		case n == 0:
			return true, nil
		case n < len(ps):
			continue
		case mayPostpone:
			return true, nil
		}
		m.trace(config.TracePostponed, "stuck", func() []zap.Field {
			return []zap.Field{zap.Int("constraints", n)}
		})
		return false, nil
	}
}
