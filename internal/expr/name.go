package expr

import (
	"strconv"
	"strings"

	"github.com/funvibe/metakernel/internal/config"
)

// Name is a hierarchical, dot-separated identifier (e.g. "Nat.add").
type Name string

// Anonymous is the empty name.
const Anonymous Name = ""

func (n Name) IsAnonymous() bool { return n == Anonymous }

// Str appends a string component.
func (n Name) Str(s string) Name {
	if n.IsAnonymous() {
		return Name(s)
	}
	return Name(string(n) + "." + s)
}

// Num appends a numeric component.
func (n Name) Num(i uint64) Name {
	return n.Str(strconv.FormatUint(i, 10))
}

// Components splits the name at dots.
func (n Name) Components() []string {
	if n.IsAnonymous() {
		return nil
	}
	return strings.Split(string(n), ".")
}

func (n Name) String() string {
	if n.IsAnonymous() {
		return "[anonymous]"
	}
	return string(n)
}

// FVarID identifies a free variable declared in a LocalContext.
type FVarID Name

// MVarID identifies an expression metavariable.
type MVarID Name

// LMVarID identifies a universe level metavariable.
type LMVarID Name

func (id FVarID) String() string { return normalizeUniq(Name(id)) }

func (id MVarID) String() string { return normalizeUniq(Name(id)) }

func (id LMVarID) String() string { return normalizeUniq(Name(id)) }

// UniqPrefix is the root of every generated identifier.
const UniqPrefix Name = "_uniq"

// normalizeUniq hides generated counters in test mode so printed terms are deterministic.
func normalizeUniq(n Name) string {
	s := string(n)
	if config.IsTestMode && strings.HasPrefix(s, string(UniqPrefix)+".") {
		if _, err := strconv.Atoi(s[len(UniqPrefix)+1:]); err == nil {
			return string(UniqPrefix) + ".?"
		}
	}
	return s
}

// NameGenerator hands out fresh identifiers "_uniq.1", "_uniq.2", ...
// The counter never goes backwards, even when the state that used the names is rolled back.
type NameGenerator struct {
	prefix Name
	next   uint64
}

// NewNameGenerator creates a generator rooted at UniqPrefix.
func NewNameGenerator() *NameGenerator {
	return &NameGenerator{prefix: UniqPrefix, next: 1}
}

// Next returns a fresh name.
func (g *NameGenerator) Next() Name {
	n := g.prefix.Num(g.next)
	g.next++
	return n
}
