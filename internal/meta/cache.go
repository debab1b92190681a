package meta

import (
	"go.uber.org/zap"

	"github.com/funvibe/metakernel/internal/config"
	"github.com/funvibe/metakernel/internal/expr"
	"github.com/funvibe/metakernel/internal/pmap"
)

type funInfoKey struct {
	transparency TransparencyMode
	fn           expr.Expr
	nargs        int // -1 when unbounded
}

type funInfoHasher struct{}

func (funInfoHasher) Hash(k funInfoKey) uint32 {
	return expr.ExprHasher{}.Hash(k.fn) ^ uint32(k.transparency)<<24 ^ uint32(k.nargs+1)*0x9e3779b1
}

func (funInfoHasher) Equal(a, b funInfoKey) bool {
	return a.transparency == b.transparency && a.nargs == b.nargs && expr.Equal(a.fn, b.fn)
}

type (
	exprCache    = pmap.Map[expr.Expr, expr.Expr, expr.ExprHasher]
	funInfoCache = pmap.Map[funInfoKey, *FunInfo, funInfoHasher]
)

// Cache holds the session memo tables. It is a value of persistent maps, so a
// copy is a snapshot. synthInstance stores nil for "no instance".
type Cache struct {
	inferType     *exprCache
	funInfo       *funInfoCache
	synthInstance *exprCache
	whnfDefault   *exprCache
	whnfAll       *exprCache
}

// Sizes reports the number of entries per table, for tracing and tests.
func (c Cache) Sizes() map[string]int {
	return map[string]int{
		"inferType":     c.inferType.Len(),
		"funInfo":       c.funInfo.Len(),
		"synthInstance": c.synthInstance.Len(),
		"whnfDefault":   c.whnfDefault.Len(),
		"whnfAll":       c.whnfAll.Len(),
	}
}

// whnfTable returns the table for mode. Reducible and Instances are not cached,
// and each cached tier has its own table.
func (c *Cache) whnfTable(mode TransparencyMode) **exprCache {
	switch mode {
	case TransparencyDefault:
		return &c.whnfDefault
	case TransparencyAll:
		return &c.whnfAll
	}
	return nil
}

func useWhnfCache(e expr.Expr) bool {
	return !e.HasFVar() && !expr.HasMVar(e)
}

func (m *Meta) whnfCacheFind(e expr.Expr) (expr.Expr, bool) {
	if !useWhnfCache(e) {
		return nil, false
	}
	t := m.s.state.Cache.whnfTable(m.ctx.Config.Transparency)
	if t == nil {
		return nil, false
	}
	return (*t).Get(e)
}

func (m *Meta) whnfCacheStore(e, r expr.Expr) {
	if !useWhnfCache(e) {
		return
	}
	if t := m.s.state.Cache.whnfTable(m.ctx.Config.Transparency); t != nil {
		*t = (*t).Put(e, r)
	}
}

// SavingCache runs body and puts every cache table back as it was, on every exit path.
func SavingCache[T any](m *Meta, body func(m *Meta) (T, error)) (T, error) {
	saved := m.s.state.Cache
	defer func() {
		m.s.state.Cache = saved
		m.trace(config.TraceCache, "cache restored", nil)
	}()
	return body(m)
}

// ResettingSynthInstanceCache runs body and restores only the instance table.
func ResettingSynthInstanceCache[T any](m *Meta, body func(m *Meta) (T, error)) (T, error) {
	saved := m.s.state.Cache.synthInstance
	defer func() {
		m.s.state.Cache.synthInstance = saved
		m.trace(config.TraceCache, "synthInstance cache reset", func() []zap.Field {
			return []zap.Field{zap.Int("entries", saved.Len())}
		})
	}()
	return body(m)
}

// ResettingSynthInstanceCacheWhen is ResettingSynthInstanceCache when cond holds
// and a plain call otherwise.
func ResettingSynthInstanceCacheWhen[T any](m *Meta, cond bool, body func(m *Meta) (T, error)) (T, error) {
	if !cond {
		return body(m)
	}
	return ResettingSynthInstanceCache(m, body)
}
