package expr

import (
	"fmt"
	"strconv"
	"strings"
)

// NameResolver maps free variables to display names.
type NameResolver func(FVarID) (Name, bool)

// Format pretty-prints e. Free variables are shown through names when it resolves them.
func Format(e Expr, names NameResolver) string {
	p := printer{names: names}
	var sb strings.Builder
	p.print(&sb, e, false)
	return sb.String()
}

// FormatBinder prints n : t inside the brackets of bi.
func FormatBinder(n Name, bi BinderInfo, t Expr, names NameResolver) string {
	p := printer{names: names}
	var sb strings.Builder
	p.printBinder(&sb, n, bi, t)
	return sb.String()
}

func (e *BVar) String() string  { return Format(e, nil) }
func (e *FVar) String() string  { return Format(e, nil) }
func (e *MVar) String() string  { return Format(e, nil) }
func (e *Sort) String() string  { return Format(e, nil) }
func (e *Const) String() string { return Format(e, nil) }
func (e *App) String() string   { return Format(e, nil) }
func (e *Lam) String() string   { return Format(e, nil) }
func (e *Pi) String() string    { return Format(e, nil) }
func (e *Let) String() string   { return Format(e, nil) }
func (e *Lit) String() string   { return Format(e, nil) }
func (e *MData) String() string { return Format(e, nil) }
func (e *Proj) String() string  { return Format(e, nil) }
func (e *Local) String() string { return Format(e, nil) }

type printer struct {
	names  NameResolver
	binder []Name
}

func (p *printer) print(sb *strings.Builder, e Expr, paren bool) {
	switch x := e.(type) {
	case *BVar:
		if int(x.Idx) < len(p.binder) {
			sb.WriteString(string(p.binder[len(p.binder)-1-int(x.Idx)]))
		} else {
			fmt.Fprintf(sb, "#%d", x.Idx)
		}
	case *FVar:
		if p.names != nil {
			if n, ok := p.names(x.ID); ok {
				sb.WriteString(string(n))
				return
			}
		}
		sb.WriteString(x.ID.String())
	case *MVar:
		sb.WriteString("?" + x.ID.String())
	case *Sort:
		p.printSort(sb, x.Level, paren)
	case *Const:
		sb.WriteString(string(x.Name))
		if len(x.Levels) > 0 {
			ls := make([]string, len(x.Levels))
			for i, l := range x.Levels {
				ls[i] = l.String()
			}
			sb.WriteString(".{" + strings.Join(ls, ", ") + "}")
		}
	case *App:
		open(sb, paren)
		p.print(sb, GetAppFn(x), true)
		for _, a := range GetAppArgs(x) {
			sb.WriteByte(' ')
			p.print(sb, a, true)
		}
		closeParen(sb, paren)
	case *Lam:
		open(sb, paren)
		sb.WriteString("fun ")
		p.printBinder(sb, x.BinderName, x.Info, x.BinderType)
		sb.WriteString(" => ")
		p.push(x.BinderName)
		p.print(sb, x.Body, false)
		p.pop()
		closeParen(sb, paren)
	case *Pi:
		open(sb, paren)
		if x.Info.IsExplicit() && !HasLooseBVar(x.Body, 0) {
			p.print(sb, x.BinderType, true)
			sb.WriteString(" -> ")
		} else {
			sb.WriteString("∀ ")
			p.printBinder(sb, x.BinderName, x.Info, x.BinderType)
			sb.WriteString(", ")
		}
		p.push(x.BinderName)
		p.print(sb, x.Body, false)
		p.pop()
		closeParen(sb, paren)
	case *Let:
		open(sb, paren)
		sb.WriteString("let " + binderName(x.Name) + " : ")
		p.print(sb, x.Type, false)
		sb.WriteString(" := ")
		p.print(sb, x.Value, false)
		sb.WriteString("; ")
		p.push(x.Name)
		p.print(sb, x.Body, false)
		p.pop()
		closeParen(sb, paren)
	case *Lit:
		if x.LitKind == StrLit {
			sb.WriteString(strconv.Quote(x.Str))
		} else {
			sb.WriteString(strconv.FormatUint(x.Nat, 10))
		}
	case *MData:
		p.print(sb, x.Expr, paren)
	case *Proj:
		p.print(sb, x.Expr, true)
		fmt.Fprintf(sb, ".%d", x.Idx+1)
	case *Local:
		sb.WriteString(binderName(x.UserName))
	}
}

func (p *printer) printSort(sb *strings.Builder, l Level, paren bool) {
	if IsZero(l) {
		sb.WriteString("Prop")
		return
	}
	if s, ok := l.(*LevelSucc); ok {
		if IsZero(s.Of) {
			sb.WriteString("Type")
			return
		}
		open(sb, paren)
		sb.WriteString("Type " + levelArg(s.Of))
		closeParen(sb, paren)
		return
	}
	open(sb, paren)
	sb.WriteString("Sort " + levelArg(l))
	closeParen(sb, paren)
}

func (p *printer) printBinder(sb *strings.Builder, n Name, bi BinderInfo, t Expr) {
	l, r := "(", ")"
	switch bi {
	case BinderImplicit:
		l, r = "{", "}"
	case BinderStrictImplicit:
		l, r = "⦃", "⦄"
	case BinderInstImplicit:
		l, r = "[", "]"
	}
	sb.WriteString(l + binderName(n) + " : ")
	p.print(sb, t, false)
	sb.WriteString(r)
}

func (p *printer) push(n Name) { p.binder = append(p.binder, Name(binderName(n))) }

func (p *printer) pop() { p.binder = p.binder[:len(p.binder)-1] }

func binderName(n Name) string {
	if n.IsAnonymous() {
		return "_"
	}
	return string(n)
}

func open(sb *strings.Builder, paren bool) {
	if paren {
		sb.WriteByte('(')
	}
}

func closeParen(sb *strings.Builder, paren bool) {
	if paren {
		sb.WriteByte(')')
	}
}
