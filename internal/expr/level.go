package expr

import (
	"fmt"
	"strings"
)

// LevelKind tags the universe level node kinds.
type LevelKind uint8

const (
	LevelZeroKind LevelKind = iota
	LevelSuccKind
	LevelMaxKind
	LevelIMaxKind
	LevelParamKind
	LevelMVarKind
)

// Level is a universe level expression.
type Level interface {
	Kind() LevelKind
	Hash() uint64
	HasMVar() bool
	HasParam() bool
	String() string
	levelNode()
}

type levelData struct {
	hash     uint64
	hasMVar  bool
	hasParam bool
}

func (d *levelData) Hash() uint64   { return d.hash }
func (d *levelData) HasMVar() bool  { return d.hasMVar }
func (d *levelData) HasParam() bool { return d.hasParam }
func (d *levelData) levelNode()     {}

// LevelZero is the universe of propositions' level.
type LevelZero struct{ levelData }

// LevelSucc is l+1.
type LevelSucc struct {
	levelData
	Of Level
}

// LevelMax is max l1 l2.
type LevelMax struct {
	levelData
	Lhs, Rhs Level
}

// LevelIMax is imax l1 l2: zero when l2 is zero, max otherwise.
type LevelIMax struct {
	levelData
	Lhs, Rhs Level
}

// LevelParam is a universe parameter of a declaration.
type LevelParam struct {
	levelData
	Name Name
}

// LevelMVar is a universe metavariable.
type LevelMVar struct {
	levelData
	ID LMVarID
}

func (*LevelZero) Kind() LevelKind  { return LevelZeroKind }
func (*LevelSucc) Kind() LevelKind  { return LevelSuccKind }
func (*LevelMax) Kind() LevelKind   { return LevelMaxKind }
func (*LevelIMax) Kind() LevelKind  { return LevelIMaxKind }
func (*LevelParam) Kind() LevelKind { return LevelParamKind }
func (*LevelMVar) Kind() LevelKind  { return LevelMVarKind }

// LevelZeroVal is the shared zero level.
var LevelZeroVal Level = &LevelZero{levelData{hash: 2221}}

// LevelOne is succ zero.
var LevelOne = MkLevelSucc(LevelZeroVal)

func MkLevelSucc(l Level) Level {
	return &LevelSucc{
		levelData: levelData{hash: mixHash(2243, l.Hash()), hasMVar: l.HasMVar(), hasParam: l.HasParam()},
		Of:        l,
	}
}

func MkLevelMax(a, b Level) Level {
	return &LevelMax{
		levelData: levelData{
			hash:     mixHash(mixHash(2251, a.Hash()), b.Hash()),
			hasMVar:  a.HasMVar() || b.HasMVar(),
			hasParam: a.HasParam() || b.HasParam(),
		},
		Lhs: a, Rhs: b,
	}
}

func MkLevelIMax(a, b Level) Level {
	return &LevelIMax{
		levelData: levelData{
			hash:     mixHash(mixHash(2267, a.Hash()), b.Hash()),
			hasMVar:  a.HasMVar() || b.HasMVar(),
			hasParam: a.HasParam() || b.HasParam(),
		},
		Lhs: a, Rhs: b,
	}
}

func MkLevelParam(n Name) Level {
	return &LevelParam{levelData: levelData{hash: mixHash(2269, hashString(string(n))), hasParam: true}, Name: n}
}

func MkLevelMVar(id LMVarID) Level {
	return &LevelMVar{levelData: levelData{hash: mixHash(2273, hashString(string(id))), hasMVar: true}, ID: id}
}

// LevelOfNat builds succ^n zero.
func LevelOfNat(n int) Level {
	l := LevelZeroVal
	for i := 0; i < n; i++ {
		l = MkLevelSucc(l)
	}
	return l
}

// LevelToNat returns n when l is succ^n zero.
func LevelToNat(l Level) (int, bool) {
	n := 0
	for {
		switch v := l.(type) {
		case *LevelZero:
			return n, true
		case *LevelSucc:
			n++
			l = v.Of
		default:
			return 0, false
		}
	}
}

// IsZero reports whether l is syntactically zero.
func IsZero(l Level) bool { return l.Kind() == LevelZeroKind }

// IsNeverZero reports whether l is nonzero under every assignment.
func IsNeverZero(l Level) bool {
	switch v := l.(type) {
	case *LevelSucc:
		return true
	case *LevelMax:
		return IsNeverZero(v.Lhs) || IsNeverZero(v.Rhs)
	case *LevelIMax:
		return IsNeverZero(v.Rhs)
	default:
		return false
	}
}

// MkLevelIMaxSimp builds imax with the cheap simplifications applied.
func MkLevelIMaxSimp(a, b Level) Level {
	switch {
	case IsNeverZero(b):
		return MkLevelMaxSimp(a, b)
	case IsZero(b):
		return b
	case IsZero(a):
		return b
	case LevelEqual(a, b):
		return a
	}
	return MkLevelIMax(a, b)
}

// MkLevelMaxSimp builds max with the cheap simplifications applied.
func MkLevelMaxSimp(a, b Level) Level {
	switch {
	case IsZero(a):
		return b
	case IsZero(b):
		return a
	case LevelEqual(a, b):
		return a
	}
	if na, ok := LevelToNat(a); ok {
		if nb, ok := LevelToNat(b); ok {
			if na >= nb {
				return a
			}
			return b
		}
	}
	return MkLevelMax(a, b)
}

// LevelEqual is structural equality.
func LevelEqual(a, b Level) bool {
	if a == b {
		return true
	}
	if a.Hash() != b.Hash() || a.Kind() != b.Kind() {
		return false
	}
	switch x := a.(type) {
	case *LevelZero:
		return true
	case *LevelSucc:
		return LevelEqual(x.Of, b.(*LevelSucc).Of)
	case *LevelMax:
		y := b.(*LevelMax)
		return LevelEqual(x.Lhs, y.Lhs) && LevelEqual(x.Rhs, y.Rhs)
	case *LevelIMax:
		y := b.(*LevelIMax)
		return LevelEqual(x.Lhs, y.Lhs) && LevelEqual(x.Rhs, y.Rhs)
	case *LevelParam:
		return x.Name == b.(*LevelParam).Name
	case *LevelMVar:
		return x.ID == b.(*LevelMVar).ID
	}
	return false
}

// LevelsEqual compares level lists pointwise.
func LevelsEqual(as, bs []Level) bool {
	if len(as) != len(bs) {
		return false
	}
	for i := range as {
		if !LevelEqual(as[i], bs[i]) {
			return false
		}
	}
	return true
}

// ReplaceLevel rebuilds l bottom-up. f returns (replacement, true) to stop descent at a node.
func ReplaceLevel(l Level, f func(Level) (Level, bool)) Level {
	if r, ok := f(l); ok {
		return r
	}
	switch v := l.(type) {
	case *LevelSucc:
		of := ReplaceLevel(v.Of, f)
		if of == v.Of {
			return l
		}
		return MkLevelSucc(of)
	case *LevelMax:
		a, b := ReplaceLevel(v.Lhs, f), ReplaceLevel(v.Rhs, f)
		if a == v.Lhs && b == v.Rhs {
			return l
		}
		return MkLevelMax(a, b)
	case *LevelIMax:
		a, b := ReplaceLevel(v.Lhs, f), ReplaceLevel(v.Rhs, f)
		if a == v.Lhs && b == v.Rhs {
			return l
		}
		return MkLevelIMax(a, b)
	}
	return l
}

// ForEachLevel visits every node of l; f returns false to skip the children.
func ForEachLevel(l Level, f func(Level) bool) {
	if !f(l) {
		return
	}
	switch v := l.(type) {
	case *LevelSucc:
		ForEachLevel(v.Of, f)
	case *LevelMax:
		ForEachLevel(v.Lhs, f)
		ForEachLevel(v.Rhs, f)
	case *LevelIMax:
		ForEachLevel(v.Lhs, f)
		ForEachLevel(v.Rhs, f)
	}
}

// InstantiateLevelParams substitutes us for the parameters ps.
func InstantiateLevelParams(l Level, ps []Name, us []Level) Level {
	if !l.HasParam() {
		return l
	}
	return ReplaceLevel(l, func(x Level) (Level, bool) {
		if !x.HasParam() {
			return x, true
		}
		if p, ok := x.(*LevelParam); ok {
			for i, n := range ps {
				if n == p.Name && i < len(us) {
					return us[i], true
				}
			}
			return x, true
		}
		return nil, false
	})
}

func (l *LevelZero) String() string { return "0" }

func (l *LevelSucc) String() string {
	if n, ok := LevelToNat(l); ok {
		return fmt.Sprint(n)
	}
	k := 0
	var base Level = l
	for {
		s, ok := base.(*LevelSucc)
		if !ok {
			break
		}
		k++
		base = s.Of
	}
	return fmt.Sprintf("%s+%d", levelArg(base), k)
}

func (l *LevelMax) String() string {
	return fmt.Sprintf("max %s %s", levelArg(l.Lhs), levelArg(l.Rhs))
}

func (l *LevelIMax) String() string {
	return fmt.Sprintf("imax %s %s", levelArg(l.Lhs), levelArg(l.Rhs))
}

func (l *LevelParam) String() string { return string(l.Name) }

func (l *LevelMVar) String() string { return "?" + l.ID.String() }

func levelArg(l Level) string {
	s := l.String()
	if strings.ContainsAny(s, " +") {
		return "(" + s + ")"
	}
	return s
}
