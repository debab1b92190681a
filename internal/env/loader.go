package env

import (
	"os"
	"strconv"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/funvibe/metakernel/internal/config"
	"github.com/funvibe/metakernel/internal/expr"
)

// File is the YAML document describing an environment.
//
//	classes: [Monad]
//	constants:
//	  - name: Monad
//	    type: {pi: [{name: m, type: {arrow: [Type, Type]}}], body: Type}
//	  - name: id
//	    levelParams: [u]
//	    type: {pi: [{name: α, type: {sort: {succ: u}}}, {name: a, type: α}], body: α}
//	    value: {lam: [{name: α, type: {sort: {succ: u}}}, {name: a, type: α}], body: a}
//	    kind: def
//	    reducibility: reducible
type File struct {
	// Classes names declarations registered as type classes. Each must also
	// appear in Constants.
	Classes []string `yaml:"classes"`

	// Constants are added in order; a constant may only mention earlier ones.
	Constants []ConstantSpec `yaml:"constants"`
}

// ConstantSpec is the YAML form of a ConstantInfo.
type ConstantSpec struct {
	Name        string   `yaml:"name"`
	LevelParams []string `yaml:"levelParams,omitempty"`

	// Type and Value use the expression encoding described on DecodeExpr.
	Type  yaml.Node `yaml:"type"`
	Value yaml.Node `yaml:"value,omitempty"`

	// Kind is one of axiom, def, theorem, opaque, inductive, ctor. Defaults to
	// def when a value is present and axiom otherwise.
	Kind string `yaml:"kind,omitempty"`

	// Reducibility is one of regular, reducible, irreducible.
	Reducibility string `yaml:"reducibility,omitempty"`
}

// LoadFile reads and decodes an environment file.
func LoadFile(path string) (*Environment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading environment %s", path)
	}
	return Parse(data, path)
}

// Parse decodes an environment document. path is only used in messages.
func Parse(data []byte, path string) (*Environment, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	e, err := f.Build()
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return e, nil
}

// Build turns a decoded document into an Environment.
func (f *File) Build() (*Environment, error) {
	e := Empty()
	for i := range f.Constants {
		spec := &f.Constants[i]
		c, red, err := spec.decode()
		if err != nil {
			return nil, errors.Wrapf(err, "constants[%d] (%s)", i, spec.Name)
		}
		if e, err = e.AddDecl(c); err != nil {
			return nil, errors.Wrapf(err, "constants[%d]", i)
		}
		if e, err = e.SetReducibility(c.Name, red); err != nil {
			return nil, errors.Wrapf(err, "constants[%d]", i)
		}
	}
	for i, n := range f.Classes {
		var err error
		if e, err = e.AddClass(expr.Name(n)); err != nil {
			return nil, errors.Wrapf(err, "classes[%d]", i)
		}
	}
	return e, nil
}

func (s *ConstantSpec) decode() (*ConstantInfo, ReducibilityStatus, error) {
	if s.Name == "" {
		return nil, Regular, errors.New("name is required")
	}
	if s.Type.Kind == 0 {
		return nil, Regular, errors.New("type is required")
	}
	c := &ConstantInfo{Name: expr.Name(s.Name)}
	for _, p := range s.LevelParams {
		c.LevelParams = append(c.LevelParams, expr.Name(p))
	}
	var err error
	if c.Type, err = DecodeExpr(&s.Type); err != nil {
		return nil, Regular, errors.Wrap(err, "type")
	}
	hasValue := s.Value.Kind != 0
	if hasValue {
		if c.Value, err = DecodeExpr(&s.Value); err != nil {
			return nil, Regular, errors.Wrap(err, "value")
		}
	}
	switch {
	case s.Kind != "":
		k, ok := ParseConstantKind(s.Kind)
		if !ok {
			return nil, Regular, errors.Errorf("unknown kind %q", s.Kind)
		}
		c.Kind = k
	case hasValue:
		c.Kind = DefnKind
	default:
		c.Kind = AxiomKind
	}
	red, ok := ParseReducibility(s.Reducibility)
	if !ok {
		return nil, Regular, errors.Errorf("unknown reducibility %q", s.Reducibility)
	}
	return c, red, nil
}

// DecodeExpr reads the structured YAML encoding of an expression:
//
//	Nat                      constant, or bound variable when a binder of that name is in scope
//	Prop / Type              sorts
//	{sort: <level>}
//	{const: Name, levels: [<level>...]}
//	{bvar: 0}
//	{app: [f, a, b]}
//	{pi: [<binder>...], body: e} and {lam: ...}; binder = {name, type, info}
//	{arrow: [A, B, C]}       non-dependent A -> B -> C
//	{let: {name, type, value}, body: e}
//	{nat: 3}, {str: "s"}
//	{proj: {struct: S, idx: 0, expr: e}}
//
// Levels are integers, parameter names, {succ: l}, {max: [a, b]} or {imax: [a, b]}.
func DecodeExpr(n *yaml.Node) (expr.Expr, error) {
	d := decoder{}
	return d.expr(n)
}

type decoder struct {
	binders []expr.Name
}

func nodeErr(n *yaml.Node, format string, args ...any) error {
	return errors.Errorf("line %d: "+format, append([]any{n.Line}, args...)...)
}

func (d *decoder) lookup(name string) (uint32, bool) {
	for i := len(d.binders) - 1; i >= 0; i-- {
		if string(d.binders[i]) == name {
			return uint32(len(d.binders) - 1 - i), true
		}
	}
	return 0, false
}

func (d *decoder) expr(n *yaml.Node) (expr.Expr, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		return d.scalar(n)
	case yaml.MappingNode:
		return d.mapping(n)
	case yaml.AliasNode:
		return d.expr(n.Alias)
	}
	return nil, nodeErr(n, "expected an expression")
}

func (d *decoder) scalar(n *yaml.Node) (expr.Expr, error) {
	if n.Tag == "!!int" {
		v, err := strconv.ParseUint(n.Value, 10, 64)
		if err != nil {
			return nil, nodeErr(n, "invalid natural literal %q", n.Value)
		}
		return expr.MkNatLit(v), nil
	}
	if idx, ok := d.lookup(n.Value); ok {
		return expr.MkBVar(idx), nil
	}
	switch n.Value {
	case "Prop":
		return expr.MkProp(), nil
	case "Type":
		return expr.MkType(), nil
	case "":
		return nil, nodeErr(n, "empty expression")
	}
	return expr.MkConst(expr.Name(n.Value)), nil
}

func fields(n *yaml.Node) map[string]*yaml.Node {
	out := make(map[string]*yaml.Node, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		out[n.Content[i].Value] = n.Content[i+1]
	}
	return out
}

func (d *decoder) mapping(n *yaml.Node) (expr.Expr, error) {
	fs := fields(n)
	switch {
	case fs["sort"] != nil:
		l, err := d.level(fs["sort"])
		if err != nil {
			return nil, err
		}
		return expr.MkSort(l), nil
	case fs["const"] != nil:
		var ls []expr.Level
		if lv := fs["levels"]; lv != nil {
			for _, c := range lv.Content {
				l, err := d.level(c)
				if err != nil {
					return nil, err
				}
				ls = append(ls, l)
			}
		}
		return expr.MkConst(expr.Name(fs["const"].Value), ls...), nil
	case fs["bvar"] != nil:
		i, err := strconv.ParseUint(fs["bvar"].Value, 10, 32)
		if err != nil {
			return nil, nodeErr(n, "invalid bvar index %q", fs["bvar"].Value)
		}
		return expr.MkBVar(uint32(i)), nil
	case fs["app"] != nil:
		return d.app(fs["app"])
	case fs["pi"] != nil:
		return d.binding(fs["pi"], fs["body"], false)
	case fs["lam"] != nil:
		return d.binding(fs["lam"], fs["body"], true)
	case fs["arrow"] != nil:
		return d.arrow(fs["arrow"])
	case fs["let"] != nil:
		return d.let(fs["let"], fs["body"])
	case fs["nat"] != nil:
		v, err := strconv.ParseUint(fs["nat"].Value, 10, 64)
		if err != nil {
			return nil, nodeErr(n, "invalid natural literal %q", fs["nat"].Value)
		}
		return expr.MkNatLit(v), nil
	case fs["str"] != nil:
		return expr.MkStrLit(fs["str"].Value), nil
	case fs["proj"] != nil:
		return d.proj(fs["proj"])
	}
	return nil, nodeErr(n, "unknown expression form")
}

func (d *decoder) app(n *yaml.Node) (expr.Expr, error) {
	if n.Kind != yaml.SequenceNode || len(n.Content) == 0 {
		return nil, nodeErr(n, "app expects a non-empty list")
	}
	f, err := d.expr(n.Content[0])
	if err != nil {
		return nil, err
	}
	for _, c := range n.Content[1:] {
		a, err := d.expr(c)
		if err != nil {
			return nil, err
		}
		f = expr.MkApp(f, a)
	}
	return f, nil
}

func parseBinderInfo(s string) (expr.BinderInfo, bool) {
	switch s {
	case "", "default":
		return expr.BinderDefault, true
	case "implicit":
		return expr.BinderImplicit, true
	case "strictImplicit":
		return expr.BinderStrictImplicit, true
	case "instImplicit":
		return expr.BinderInstImplicit, true
	}
	return expr.BinderDefault, false
}

type binderSpec struct {
	name expr.Name
	info expr.BinderInfo
	typ  expr.Expr
}

func (d *decoder) binding(bs, body *yaml.Node, isLambda bool) (expr.Expr, error) {
	if bs.Kind != yaml.SequenceNode {
		return nil, nodeErr(bs, "binders must be a list")
	}
	if body == nil {
		return nil, nodeErr(bs, "missing body")
	}
	saved := len(d.binders)
	defer func() { d.binders = d.binders[:saved] }()

	specs := make([]binderSpec, 0, len(bs.Content))
	for _, b := range bs.Content {
		fs := fields(b)
		if fs["type"] == nil {
			return nil, nodeErr(b, "binder without type")
		}
		t, err := d.expr(fs["type"])
		if err != nil {
			return nil, err
		}
		var info string
		if fs["info"] != nil {
			info = fs["info"].Value
		}
		bi, ok := parseBinderInfo(info)
		if !ok {
			return nil, nodeErr(b, "unknown binder info %q", info)
		}
		var name expr.Name
		if fs["name"] != nil {
			name = expr.Name(fs["name"].Value)
		}
		specs = append(specs, binderSpec{name: name, info: bi, typ: t})
		d.binders = append(d.binders, name)
	}
	r, err := d.expr(body)
	if err != nil {
		return nil, err
	}
	for i := len(specs) - 1; i >= 0; i-- {
		s := specs[i]
		if isLambda {
			r = expr.MkLambda(s.name, s.info, s.typ, r)
		} else {
			r = expr.MkForall(s.name, s.info, s.typ, r)
		}
	}
	return r, nil
}

func (d *decoder) arrow(n *yaml.Node) (expr.Expr, error) {
	if n.Kind != yaml.SequenceNode || len(n.Content) < 2 {
		return nil, nodeErr(n, "arrow expects at least two types")
	}
	saved := len(d.binders)
	defer func() { d.binders = d.binders[:saved] }()

	doms := make([]expr.Expr, 0, len(n.Content))
	for _, c := range n.Content {
		t, err := d.expr(c)
		if err != nil {
			return nil, err
		}
		doms = append(doms, t)
		d.binders = append(d.binders, expr.Anonymous)
	}
	r := doms[len(doms)-1]
	for i := len(doms) - 2; i >= 0; i-- {
		r = expr.MkForall(expr.Anonymous, expr.BinderDefault, doms[i], r)
	}
	return r, nil
}

func (d *decoder) let(n, body *yaml.Node) (expr.Expr, error) {
	fs := fields(n)
	if fs["type"] == nil || fs["value"] == nil || body == nil {
		return nil, nodeErr(n, "let needs type, value and body")
	}
	t, err := d.expr(fs["type"])
	if err != nil {
		return nil, err
	}
	v, err := d.expr(fs["value"])
	if err != nil {
		return nil, err
	}
	var name expr.Name
	if fs["name"] != nil {
		name = expr.Name(fs["name"].Value)
	}
	d.binders = append(d.binders, name)
	b, err := d.expr(body)
	d.binders = d.binders[:len(d.binders)-1]
	if err != nil {
		return nil, err
	}
	return expr.MkLet(name, t, v, b, false), nil
}

func (d *decoder) proj(n *yaml.Node) (expr.Expr, error) {
	fs := fields(n)
	if fs["struct"] == nil || fs["idx"] == nil || fs["expr"] == nil {
		return nil, nodeErr(n, "proj needs struct, idx and expr")
	}
	idx, err := strconv.Atoi(fs["idx"].Value)
	if err != nil {
		return nil, nodeErr(n, "invalid projection index %q", fs["idx"].Value)
	}
	e, err := d.expr(fs["expr"])
	if err != nil {
		return nil, err
	}
	return expr.MkProj(expr.Name(fs["struct"].Value), idx, e), nil
}

func (d *decoder) level(n *yaml.Node) (expr.Level, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		if k, err := strconv.Atoi(n.Value); err == nil && k >= 0 {
			return expr.LevelOfNat(k), nil
		}
		if n.Value == "" {
			return nil, nodeErr(n, "empty level")
		}
		return expr.MkLevelParam(expr.Name(n.Value)), nil
	case yaml.MappingNode:
		fs := fields(n)
		switch {
		case fs["succ"] != nil:
			l, err := d.level(fs["succ"])
			if err != nil {
				return nil, err
			}
			return expr.MkLevelSucc(l), nil
		case fs["max"] != nil:
			a, b, err := d.levelPair(fs["max"])
			if err != nil {
				return nil, err
			}
			return expr.MkLevelMax(a, b), nil
		case fs["imax"] != nil:
			a, b, err := d.levelPair(fs["imax"])
			if err != nil {
				return nil, err
			}
			return expr.MkLevelIMax(a, b), nil
		}
	}
	return nil, nodeErr(n, "expected a level")
}

func (d *decoder) levelPair(n *yaml.Node) (expr.Level, expr.Level, error) {
	if n.Kind != yaml.SequenceNode || len(n.Content) != 2 {
		return nil, nil, nodeErr(n, "expected two levels")
	}
	a, err := d.level(n.Content[0])
	if err != nil {
		return nil, nil, err
	}
	b, err := d.level(n.Content[1])
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

// Prelude is a small environment with natural numbers and strings, used when no
// environment file is given.
func Prelude() *Environment {
	e := Empty()
	nat := expr.MkConst(config.NatTypeName)
	decls := []*ConstantInfo{
		{Name: config.NatTypeName, Type: expr.MkType(), Kind: InductiveKind},
		{Name: config.StringTypeName, Type: expr.MkType(), Kind: InductiveKind},
		{Name: "Nat.zero", Type: nat, Kind: CtorKind},
		{Name: "Nat.succ", Type: expr.MkArrow(nat, nat), Kind: CtorKind},
	}
	for _, c := range decls {
		e, _ = e.AddDecl(c)
	}
	return e
}
