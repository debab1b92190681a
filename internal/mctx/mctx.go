package mctx

import (
	"github.com/funvibe/metakernel/internal/expr"
	"github.com/funvibe/metakernel/internal/lctx"
	"github.com/funvibe/metakernel/internal/pmap"
)

// MetavarKind controls who may assign a metavariable.
type MetavarKind uint8

const (
	// Natural metavariables are assigned freely by unification.
	Natural MetavarKind = iota
	// Synthetic metavariables are meant to be filled by a procedure (e.g. instance
	// resolution) but unification may still assign them.
	Synthetic
	// SyntheticOpaque metavariables are never assigned by unification.
	SyntheticOpaque
)

func (k MetavarKind) String() string {
	switch k {
	case Synthetic:
		return "synthetic"
	case SyntheticOpaque:
		return "syntheticOpaque"
	}
	return "natural"
}

// MetavarDecl is the declaration of an expression metavariable.
type MetavarDecl struct {
	UserName       expr.Name
	LCtx           *lctx.LocalContext
	LocalInstances lctx.LocalInstances
	Type           expr.Expr
	Depth          int
	Kind           MetavarKind
	NumScopeArgs   int
	Index          int
}

// DelayedAssignment says: once MVarIDPending is fully assigned, ?m a_1 ... a_n is
// that value with FVars replaced by a_1 ... a_n.
type DelayedAssignment struct {
	FVars         []expr.Expr
	MVarIDPending expr.MVarID
}

type (
	declMap     = pmap.Map[expr.MVarID, *MetavarDecl, pmap.Str[expr.MVarID]]
	userNameMap = pmap.Map[expr.Name, expr.MVarID, pmap.Str[expr.Name]]
	lDepthMap   = pmap.Map[expr.LMVarID, int, pmap.Str[expr.LMVarID]]
	eAssignMap  = pmap.Map[expr.MVarID, expr.Expr, pmap.Str[expr.MVarID]]
	dAssignMap  = pmap.Map[expr.MVarID, DelayedAssignment, pmap.Str[expr.MVarID]]
	lAssignMap  = pmap.Map[expr.LMVarID, expr.Level, pmap.Str[expr.LMVarID]]
)

// MetavarContext owns every metavariable declaration and assignment of a session.
// It is a value: all fields are persistent maps, so copying the struct is a full
// snapshot and assigning a saved copy back is a full rollback.
type MetavarContext struct {
	depth       int
	mvarCounter int
	decls       *declMap
	userNames   *userNameMap
	lDepth      *lDepthMap
	eAssignment *eAssignMap
	dAssignment *dAssignMap
	lAssignment *lAssignMap
}

// New returns an empty context at depth 0.
func New() MetavarContext {
	return MetavarContext{
		decls:       pmap.New[expr.MVarID, *MetavarDecl, pmap.Str[expr.MVarID]](),
		userNames:   pmap.New[expr.Name, expr.MVarID, pmap.Str[expr.Name]](),
		lDepth:      pmap.New[expr.LMVarID, int, pmap.Str[expr.LMVarID]](),
		eAssignment: pmap.New[expr.MVarID, expr.Expr, pmap.Str[expr.MVarID]](),
		dAssignment: pmap.New[expr.MVarID, DelayedAssignment, pmap.Str[expr.MVarID]](),
		lAssignment: pmap.New[expr.LMVarID, expr.Level, pmap.Str[expr.LMVarID]](),
	}
}

// Depth is the current depth frame.
func (m MetavarContext) Depth() int { return m.depth }

// IncDepth opens a new depth frame. Metavariables created before become read-only.
func (m MetavarContext) IncDepth() MetavarContext {
	m.depth++
	return m
}

// NumDecls is the number of declared expression metavariables.
func (m MetavarContext) NumDecls() int { return m.decls.Len() }

// AddExprMVarDecl registers a new unassigned metavariable at the current depth.
func (m MetavarContext) AddExprMVarDecl(id expr.MVarID, userName expr.Name, lc *lctx.LocalContext,
	insts lctx.LocalInstances, t expr.Expr, kind MetavarKind, numScopeArgs int) MetavarContext {
	decl := &MetavarDecl{
		UserName:       userName,
		LCtx:           lc,
		LocalInstances: insts,
		Type:           t,
		Depth:          m.depth,
		Kind:           kind,
		NumScopeArgs:   numScopeArgs,
		Index:          m.mvarCounter,
	}
	m.decls = m.decls.Put(id, decl)
	m.mvarCounter++
	if !userName.IsAnonymous() {
		m.userNames = m.userNames.Put(userName, id)
	}
	return m
}

// AddLevelMVarDecl registers a universe metavariable at the current depth.
func (m MetavarContext) AddLevelMVarDecl(id expr.LMVarID) MetavarContext {
	m.lDepth = m.lDepth.Put(id, m.depth)
	return m
}

// FindDecl looks up an expression metavariable declaration.
func (m MetavarContext) FindDecl(id expr.MVarID) (*MetavarDecl, bool) {
	return m.decls.Get(id)
}

// GetDecl is FindDecl with an error for unknown ids.
func (m MetavarContext) GetDecl(id expr.MVarID) (*MetavarDecl, error) {
	d, ok := m.decls.Get(id)
	if !ok {
		return nil, newError(ErrUnknownMVar, id.String())
	}
	return d, nil
}

// FindUserName resolves a metavariable by its display name.
func (m MetavarContext) FindUserName(n expr.Name) (expr.MVarID, bool) {
	return m.userNames.Get(n)
}

// IsLevelMVarDeclared reports whether id was created in this context.
func (m MetavarContext) IsLevelMVarDeclared(id expr.LMVarID) bool {
	return m.lDepth.Contains(id)
}

func (m MetavarContext) modifyDecl(id expr.MVarID, f func(*MetavarDecl)) (MetavarContext, error) {
	d, err := m.GetDecl(id)
	if err != nil {
		return m, err
	}
	nd := *d
	f(&nd)
	m.decls = m.decls.Put(id, &nd)
	return m, nil
}

// SetMVarKind changes the kind of a metavariable.
func (m MetavarContext) SetMVarKind(id expr.MVarID, kind MetavarKind) (MetavarContext, error) {
	return m.modifyDecl(id, func(d *MetavarDecl) { d.Kind = kind })
}

// SetMVarType replaces the declared type of a metavariable.
func (m MetavarContext) SetMVarType(id expr.MVarID, t expr.Expr) (MetavarContext, error) {
	return m.modifyDecl(id, func(d *MetavarDecl) { d.Type = t })
}

// RenameMVar changes the display name. The id is unchanged.
func (m MetavarContext) RenameMVar(id expr.MVarID, newName expr.Name) (MetavarContext, error) {
	d, err := m.GetDecl(id)
	if err != nil {
		return m, err
	}
	userNames := m.userNames
	if !d.UserName.IsAnonymous() {
		if owner, ok := userNames.Get(d.UserName); ok && owner == id {
			userNames = userNames.Remove(d.UserName)
		}
	}
	m, _ = m.modifyDecl(id, func(d *MetavarDecl) { d.UserName = newName })
	if !newName.IsAnonymous() {
		userNames = userNames.Put(newName, id)
	}
	m.userNames = userNames
	return m, nil
}

// IsReadOnlyExprMVar: synthetic-opaque metavariables and those created in another
// depth frame cannot be assigned. Unknown ids are read-only.
func (m MetavarContext) IsReadOnlyExprMVar(id expr.MVarID) bool {
	d, ok := m.decls.Get(id)
	if !ok {
		return true
	}
	return d.Kind == SyntheticOpaque || d.Depth != m.depth
}

// IsReadOnlyLevelMVar: level metavariables from another depth frame cannot be assigned.
func (m MetavarContext) IsReadOnlyLevelMVar(id expr.LMVarID) bool {
	depth, ok := m.lDepth.Get(id)
	return !ok || depth != m.depth
}

func (m MetavarContext) IsExprAssigned(id expr.MVarID) bool { return m.eAssignment.Contains(id) }

func (m MetavarContext) IsDelayedAssigned(id expr.MVarID) bool { return m.dAssignment.Contains(id) }

func (m MetavarContext) IsLevelAssigned(id expr.LMVarID) bool { return m.lAssignment.Contains(id) }

func (m MetavarContext) GetExprAssignment(id expr.MVarID) (expr.Expr, bool) {
	return m.eAssignment.Get(id)
}

func (m MetavarContext) GetDelayedAssignment(id expr.MVarID) (DelayedAssignment, bool) {
	return m.dAssignment.Get(id)
}

func (m MetavarContext) GetLevelAssignment(id expr.LMVarID) (expr.Level, bool) {
	return m.lAssignment.Get(id)
}

// AssignExpr assigns v to the metavariable id. It fails when id is unknown,
// read-only, already (possibly delayed) assigned, or occurs in v.
func (m MetavarContext) AssignExpr(id expr.MVarID, v expr.Expr) (MetavarContext, error) {
	if _, err := m.GetDecl(id); err != nil {
		return m, err
	}
	if m.IsReadOnlyExprMVar(id) {
		return m, newError(ErrReadOnly, id.String())
	}
	if m.IsExprAssigned(id) || m.IsDelayedAssigned(id) {
		return m, newError(ErrAlreadyAssigned, id.String())
	}
	if m.OccursIn(id, v) {
		return m, newError(ErrOccurs, id.String())
	}
	m.eAssignment = m.eAssignment.Put(id, v)
	return m, nil
}

// AssignDelayed records a delayed assignment for id.
func (m MetavarContext) AssignDelayed(id expr.MVarID, fvars []expr.Expr, pending expr.MVarID) (MetavarContext, error) {
	if _, err := m.GetDecl(id); err != nil {
		return m, err
	}
	if m.IsExprAssigned(id) || m.IsDelayedAssigned(id) {
		return m, newError(ErrAlreadyAssigned, id.String())
	}
	m.dAssignment = m.dAssignment.Put(id, DelayedAssignment{FVars: fvars, MVarIDPending: pending})
	return m, nil
}

// AssignLevel assigns a universe metavariable.
func (m MetavarContext) AssignLevel(id expr.LMVarID, l expr.Level) (MetavarContext, error) {
	if !m.IsLevelMVarDeclared(id) {
		return m, newError(ErrUnknownLevelMVar, id.String())
	}
	if m.IsReadOnlyLevelMVar(id) {
		return m, newError(ErrReadOnly, id.String())
	}
	if m.IsLevelAssigned(id) {
		return m, newError(ErrAlreadyAssigned, id.String())
	}
	if m.levelOccursIn(id, l) {
		return m, newError(ErrOccurs, id.String())
	}
	m.lAssignment = m.lAssignment.Put(id, l)
	return m, nil
}

// OccursIn reports whether id occurs in e, looking through assignments.
func (m MetavarContext) OccursIn(id expr.MVarID, e expr.Expr) bool {
	if !e.HasExprMVar() {
		return false
	}
	visited := make(map[expr.MVarID]bool)
	var occurs func(expr.Expr) bool
	occurs = func(e expr.Expr) bool {
		return expr.Find(e, func(x expr.Expr) bool {
			mv, ok := x.(*expr.MVar)
			if !ok {
				return false
			}
			if mv.ID == id {
				return true
			}
			if visited[mv.ID] {
				return false
			}
			visited[mv.ID] = true
			if v, ok := m.GetExprAssignment(mv.ID); ok {
				return occurs(v)
			}
			if d, ok := m.GetDelayedAssignment(mv.ID); ok {
				return d.MVarIDPending == id || occurs(expr.MkMVar(d.MVarIDPending))
			}
			return false
		}) != nil
	}
	return occurs(e)
}

func (m MetavarContext) levelOccursIn(id expr.LMVarID, l expr.Level) bool {
	if !l.HasMVar() {
		return false
	}
	found := false
	expr.ForEachLevel(m.InstantiateLevelMVars(l), func(x expr.Level) bool {
		if mv, ok := x.(*expr.LevelMVar); ok && mv.ID == id {
			found = true
		}
		return !found && x.HasMVar()
	})
	return found
}

// HasAssignableMVar reports whether e contains a metavariable the current depth
// frame may assign. Assigned metavariables are looked through.
func (m MetavarContext) HasAssignableMVar(e expr.Expr) bool {
	if !expr.HasMVar(e) {
		return false
	}
	return expr.Find(e, func(x expr.Expr) bool {
		switch v := x.(type) {
		case *expr.MVar:
			if a, ok := m.GetExprAssignment(v.ID); ok {
				return m.HasAssignableMVar(a)
			}
			return !m.IsReadOnlyExprMVar(v.ID)
		case *expr.Sort:
			return m.HasAssignableLevelMVar(v.Level)
		case *expr.Const:
			for _, l := range v.Levels {
				if m.HasAssignableLevelMVar(l) {
					return true
				}
			}
		}
		return false
	}) != nil
}

// HasAssignableLevelMVar is HasAssignableMVar for universe levels.
func (m MetavarContext) HasAssignableLevelMVar(l expr.Level) bool {
	if !l.HasMVar() {
		return false
	}
	found := false
	expr.ForEachLevel(l, func(x expr.Level) bool {
		if found {
			return false
		}
		if mv, ok := x.(*expr.LevelMVar); ok {
			if a, ok := m.GetLevelAssignment(mv.ID); ok {
				found = m.HasAssignableLevelMVar(a)
			} else {
				found = !m.IsReadOnlyLevelMVar(mv.ID)
			}
		}
		return x.HasMVar()
	})
	return found
}

// ExprMVars lists the unassigned expression metavariables of e after instantiation,
// in first-occurrence order.
func (m MetavarContext) ExprMVars(e expr.Expr) []expr.MVarID {
	e = m.InstantiateMVars(e)
	var ids []expr.MVarID
	seen := make(map[expr.MVarID]bool)
	expr.ForEach(e, func(x expr.Expr) bool {
		if !x.HasExprMVar() {
			return false
		}
		if mv, ok := x.(*expr.MVar); ok && !seen[mv.ID] {
			seen[mv.ID] = true
			ids = append(ids, mv.ID)
		}
		return true
	})
	return ids
}
