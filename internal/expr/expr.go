package expr

import (
	"maps"
	"slices"
)

// Kind tags the expression node kinds.
type Kind uint8

const (
	BVarKind Kind = iota
	FVarKind
	MVarKind
	SortKind
	ConstKind
	AppKind
	LamKind
	PiKind
	LetKind
	LitKind
	MDataKind
	ProjKind
	LocalKind
)

var kindNames = [...]string{"bvar", "fvar", "mvar", "sort", "const", "app", "lam", "forallE", "letE", "lit", "mdata", "proj", "local"}

func (k Kind) String() string { return kindNames[k] }

// BinderInfo is the annotation carried by lambda and Pi binders.
type BinderInfo uint8

const (
	BinderDefault BinderInfo = iota
	BinderImplicit
	BinderStrictImplicit
	BinderInstImplicit
)

func (bi BinderInfo) IsInstImplicit() bool { return bi == BinderInstImplicit }

func (bi BinderInfo) IsExplicit() bool { return bi == BinderDefault }

func (bi BinderInfo) String() string {
	switch bi {
	case BinderImplicit:
		return "implicit"
	case BinderStrictImplicit:
		return "strictImplicit"
	case BinderInstImplicit:
		return "instImplicit"
	}
	return "default"
}

// Expr is an immutable, hash-consed-by-content expression tree.
// Nodes are shared by pointer and never mutated after construction.
type Expr interface {
	Kind() Kind
	Hash() uint64
	// LooseBVarRange is one more than the largest loose de Bruijn index (0 when closed).
	LooseBVarRange() uint32
	HasFVar() bool
	HasExprMVar() bool
	HasLevelMVar() bool
	HasLevelParam() bool
	// HasLocal reports raw Local nodes, which must never leave telescope construction.
	HasLocal() bool
	String() string
	data() *exprData
}

const (
	flagFVar uint8 = 1 << iota
	flagExprMVar
	flagLevelMVar
	flagLevelParam
	flagLocal
)

type exprData struct {
	hash           uint64
	looseBVarRange uint32
	flags          uint8
}

func (d *exprData) Hash() uint64           { return d.hash }
func (d *exprData) LooseBVarRange() uint32 { return d.looseBVarRange }
func (d *exprData) HasFVar() bool          { return d.flags&flagFVar != 0 }
func (d *exprData) HasExprMVar() bool      { return d.flags&flagExprMVar != 0 }
func (d *exprData) HasLevelMVar() bool     { return d.flags&flagLevelMVar != 0 }
func (d *exprData) HasLevelParam() bool    { return d.flags&flagLevelParam != 0 }
func (d *exprData) HasLocal() bool         { return d.flags&flagLocal != 0 }
func (d *exprData) data() *exprData        { return d }

// HasMVar reports expression or level metavariables.
func HasMVar(e Expr) bool { return e.HasExprMVar() || e.HasLevelMVar() }

// HasLooseBVars reports whether e has any loose bound variable.
func HasLooseBVars(e Expr) bool { return e.LooseBVarRange() > 0 }

// BVar is a de Bruijn indexed bound variable.
type BVar struct {
	exprData
	Idx uint32
}

// FVar is a free variable, resolved through a LocalContext.
type FVar struct {
	exprData
	ID FVarID
}

// MVar is an expression metavariable, resolved through a MetavarContext.
type MVar struct {
	exprData
	ID MVarID
}

// Sort is a universe.
type Sort struct {
	exprData
	Level Level
}

// Const is a reference to a global declaration with universe arguments.
type Const struct {
	exprData
	Name   Name
	Levels []Level
}

// App is a single-argument application.
type App struct {
	exprData
	Fn, Arg Expr
}

// Binding is shared by lambda and Pi nodes.
type Binding struct {
	exprData
	BinderName Name
	BinderType Expr
	Body       Expr
	Info       BinderInfo
}

// Lam is a lambda abstraction.
type Lam struct{ Binding }

// Pi is a dependent function type.
type Pi struct{ Binding }

// Let is a local definition.
type Let struct {
	exprData
	Name   Name
	Type   Expr
	Value  Expr
	Body   Expr
	NonDep bool
}

// LiteralKind distinguishes literal payloads.
type LiteralKind uint8

const (
	NatLit LiteralKind = iota
	StrLit
)

// Lit is a natural number or string literal.
type Lit struct {
	exprData
	LitKind LiteralKind
	Nat     uint64
	Str     string
}

// MData annotates an expression with key/value metadata.
type MData struct {
	exprData
	Data map[string]string
	Expr Expr
}

// Proj is the Idx-th field projection of a structure value.
type Proj struct {
	exprData
	Struct Name
	Idx    int
	Expr   Expr
}

// Local is a raw, free-standing locally-bound variable. It is not registered in any
// LocalContext and exists only while a binder telescope is being assembled.
type Local struct {
	exprData
	ID       FVarID
	UserName Name
	Type     Expr
	Info     BinderInfo
}

func (*BVar) Kind() Kind  { return BVarKind }
func (*FVar) Kind() Kind  { return FVarKind }
func (*MVar) Kind() Kind  { return MVarKind }
func (*Sort) Kind() Kind  { return SortKind }
func (*Const) Kind() Kind { return ConstKind }
func (*App) Kind() Kind   { return AppKind }
func (*Lam) Kind() Kind   { return LamKind }
func (*Pi) Kind() Kind    { return PiKind }
func (*Let) Kind() Kind   { return LetKind }
func (*Lit) Kind() Kind   { return LitKind }
func (*MData) Kind() Kind { return MDataKind }
func (*Proj) Kind() Kind  { return ProjKind }
func (*Local) Kind() Kind { return LocalKind }

func levelFlags(l Level) uint8 {
	var f uint8
	if l.HasMVar() {
		f |= flagLevelMVar
	}
	if l.HasParam() {
		f |= flagLevelParam
	}
	return f
}

// binderRange drops the binder's own index from the body's loose range.
func binderRange(r uint32) uint32 {
	if r == 0 {
		return 0
	}
	return r - 1
}

func MkBVar(idx uint32) Expr {
	return &BVar{exprData: exprData{hash: mixHash(7, uint64(idx)), looseBVarRange: idx + 1}, Idx: idx}
}

func MkFVar(id FVarID) Expr {
	return &FVar{exprData: exprData{hash: mixHash(13, hashString(string(id))), flags: flagFVar}, ID: id}
}

func MkMVar(id MVarID) Expr {
	return &MVar{exprData: exprData{hash: mixHash(17, hashString(string(id))), flags: flagExprMVar}, ID: id}
}

func MkSort(l Level) Expr {
	return &Sort{exprData: exprData{hash: mixHash(19, l.Hash()), flags: levelFlags(l)}, Level: l}
}

// MkType is Sort 1.
func MkType() Expr { return MkSort(LevelOne) }

// MkProp is Sort 0.
func MkProp() Expr { return MkSort(LevelZeroVal) }

func MkConst(n Name, ls ...Level) Expr {
	h := mixHash(23, hashString(string(n)))
	var flags uint8
	for _, l := range ls {
		h = mixHash(h, l.Hash())
		flags |= levelFlags(l)
	}
	return &Const{exprData: exprData{hash: h, flags: flags}, Name: n, Levels: ls}
}

func MkApp(f, a Expr) Expr {
	fd, ad := f.data(), a.data()
	return &App{
		exprData: exprData{
			hash:           mixHash(mixHash(29, fd.hash), ad.hash),
			looseBVarRange: max(fd.looseBVarRange, ad.looseBVarRange),
			flags:          fd.flags | ad.flags,
		},
		Fn: f, Arg: a,
	}
}

// MkAppN applies f to args left to right.
func MkAppN(f Expr, args ...Expr) Expr {
	for _, a := range args {
		f = MkApp(f, a)
	}
	return f
}

// MkAppRange applies f to args[i:j].
func MkAppRange(f Expr, i, j int, args []Expr) Expr {
	for ; i < j; i++ {
		f = MkApp(f, args[i])
	}
	return f
}

func mkBinding(seed uint64, n Name, bi BinderInfo, t, b Expr) Binding {
	td, bd := t.data(), b.data()
	return Binding{
		exprData: exprData{
			hash:           mixHash(mixHash(seed, td.hash), bd.hash),
			looseBVarRange: max(td.looseBVarRange, binderRange(bd.looseBVarRange)),
			flags:          td.flags | bd.flags,
		},
		BinderName: n, BinderType: t, Body: b, Info: bi,
	}
}

func MkLambda(n Name, bi BinderInfo, t, b Expr) Expr {
	return &Lam{mkBinding(31, n, bi, t, b)}
}

func MkForall(n Name, bi BinderInfo, t, b Expr) Expr {
	return &Pi{mkBinding(37, n, bi, t, b)}
}

// MkArrow is the non-dependent function type a -> b.
func MkArrow(a, b Expr) Expr {
	return MkForall("a", BinderDefault, a, LiftLooseBVars(b, 0, 1))
}

func MkLet(n Name, t, v, b Expr, nonDep bool) Expr {
	td, vd, bd := t.data(), v.data(), b.data()
	return &Let{
		exprData: exprData{
			hash:           mixHash(mixHash(mixHash(41, td.hash), vd.hash), bd.hash),
			looseBVarRange: max(td.looseBVarRange, vd.looseBVarRange, binderRange(bd.looseBVarRange)),
			flags:          td.flags | vd.flags | bd.flags,
		},
		Name: n, Type: t, Value: v, Body: b, NonDep: nonDep,
	}
}

func MkNatLit(n uint64) Expr {
	return &Lit{exprData: exprData{hash: mixHash(43, n)}, LitKind: NatLit, Nat: n}
}

func MkStrLit(s string) Expr {
	return &Lit{exprData: exprData{hash: mixHash(47, hashString(s))}, LitKind: StrLit, Str: s}
}

func MkMData(d map[string]string, e Expr) Expr {
	ed := e.data()
	h := mixHash(53, ed.hash)
	keys := slices.Sorted(maps.Keys(d))
	for _, k := range keys {
		h = mixHash(mixHash(h, hashString(k)), hashString(d[k]))
	}
	return &MData{exprData: exprData{hash: h, looseBVarRange: ed.looseBVarRange, flags: ed.flags}, Data: d, Expr: e}
}

func MkProj(s Name, idx int, e Expr) Expr {
	ed := e.data()
	return &Proj{
		exprData: exprData{
			hash:           mixHash(mixHash(mixHash(59, hashString(string(s))), uint64(idx)), ed.hash),
			looseBVarRange: ed.looseBVarRange,
			flags:          ed.flags,
		},
		Struct: s, Idx: idx, Expr: e,
	}
}

func MkLocal(id FVarID, userName Name, t Expr, bi BinderInfo) Expr {
	td := t.data()
	return &Local{
		exprData: exprData{
			hash:           mixHash(mixHash(61, hashString(string(id))), td.hash),
			looseBVarRange: td.looseBVarRange,
			flags:          td.flags | flagLocal,
		},
		ID: id, UserName: userName, Type: t, Info: bi,
	}
}

// Equal is structural equality modulo binder names and binder info (alpha equivalence).
func Equal(a, b Expr) bool {
	if a == b {
		return true
	}
	ad, bd := a.data(), b.data()
	if ad.hash != bd.hash || a.Kind() != b.Kind() || ad.looseBVarRange != bd.looseBVarRange {
		return false
	}
	switch x := a.(type) {
	case *BVar:
		return x.Idx == b.(*BVar).Idx
	case *FVar:
		return x.ID == b.(*FVar).ID
	case *MVar:
		return x.ID == b.(*MVar).ID
	case *Sort:
		return LevelEqual(x.Level, b.(*Sort).Level)
	case *Const:
		y := b.(*Const)
		return x.Name == y.Name && LevelsEqual(x.Levels, y.Levels)
	case *App:
		y := b.(*App)
		return Equal(x.Fn, y.Fn) && Equal(x.Arg, y.Arg)
	case *Lam:
		y := b.(*Lam)
		return Equal(x.BinderType, y.BinderType) && Equal(x.Body, y.Body)
	case *Pi:
		y := b.(*Pi)
		return Equal(x.BinderType, y.BinderType) && Equal(x.Body, y.Body)
	case *Let:
		y := b.(*Let)
		return Equal(x.Type, y.Type) && Equal(x.Value, y.Value) && Equal(x.Body, y.Body)
	case *Lit:
		y := b.(*Lit)
		return x.LitKind == y.LitKind && x.Nat == y.Nat && x.Str == y.Str
	case *MData:
		y := b.(*MData)
		return maps.Equal(x.Data, y.Data) && Equal(x.Expr, y.Expr)
	case *Proj:
		y := b.(*Proj)
		return x.Struct == y.Struct && x.Idx == y.Idx && Equal(x.Expr, y.Expr)
	case *Local:
		return x.ID == b.(*Local).ID
	}
	return false
}

// EqualStrict is Equal that also compares binder names and binder info.
func EqualStrict(a, b Expr) bool {
	if !Equal(a, b) {
		return false
	}
	switch x := a.(type) {
	case *App:
		y := b.(*App)
		return EqualStrict(x.Fn, y.Fn) && EqualStrict(x.Arg, y.Arg)
	case *Lam:
		y := b.(*Lam)
		return x.BinderName == y.BinderName && x.Info == y.Info &&
			EqualStrict(x.BinderType, y.BinderType) && EqualStrict(x.Body, y.Body)
	case *Pi:
		y := b.(*Pi)
		return x.BinderName == y.BinderName && x.Info == y.Info &&
			EqualStrict(x.BinderType, y.BinderType) && EqualStrict(x.Body, y.Body)
	case *Let:
		y := b.(*Let)
		return x.Name == y.Name && EqualStrict(x.Type, y.Type) &&
			EqualStrict(x.Value, y.Value) && EqualStrict(x.Body, y.Body)
	case *MData:
		return EqualStrict(x.Expr, b.(*MData).Expr)
	case *Proj:
		return EqualStrict(x.Expr, b.(*Proj).Expr)
	}
	return true
}

// ExprHasher lets expressions key persistent maps.
type ExprHasher struct{}

func (ExprHasher) Hash(e Expr) uint32 { return uint32(e.Hash() ^ e.Hash()>>32) }

func (ExprHasher) Equal(a, b Expr) bool { return Equal(a, b) }

func mixHash(h, x uint64) uint64 {
	h ^= x + 0x9e3779b97f4a7c15 + (h << 6) + (h >> 2)
	return h
}

func hashString(s string) uint64 {
	h := uint64(14695981039346656037)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return h
}
