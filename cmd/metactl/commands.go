package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/funvibe/metakernel/internal/expr"
	"github.com/funvibe/metakernel/internal/mctx"
	"github.com/funvibe/metakernel/internal/meta"
	"github.com/funvibe/metakernel/internal/reduce"
)

type telescopeView struct {
	binders   []string
	instances []string
	body      string
}

func openTelescope(m *meta.Meta, t expr.Expr, reducing bool) (telescopeView, error) {
	k := func(m *meta.Meta, xs []expr.Expr, body expr.Expr) (telescopeView, error) {
		lc := m.LCtx()
		var v telescopeView
		for _, x := range xs {
			d, err := m.GetFVarLocalDecl(x)
			if err != nil {
				return v, err
			}
			v.binders = append(v.binders, expr.FormatBinder(d.UserName, d.BinderInfo, d.Type, lc.UserNameOf))
		}
		for _, inst := range m.LocalInstances() {
			v.instances = append(v.instances, expr.Format(inst.FVar, lc.UserNameOf)+" : "+string(inst.ClassName))
		}
		v.body = expr.Format(body, lc.UserNameOf)
		return v, nil
	}
	if reducing {
		return meta.ForallTelescopeReducing(m, t, k)
	}
	return meta.ForallTelescope(m, t, k)
}

func (c *cli) runTelescope(cmd *cobra.Command, args []string) error {
	m, done, err := c.session(args[0])
	if err != nil {
		return err
	}
	defer done()
	info, fn, err := constant(m, args[1])
	if err != nil {
		return err
	}
	v, err := openTelescope(m, info.Type, c.reducing)
	if err != nil {
		return err
	}

	out := newOutput(cmd.OutOrStdout())
	out.field("constant", string(info.Name))
	out.section("binders", v.binders)
	out.section("local instances", v.instances)
	out.field("body", v.body)
	if c.dump {
		fi, err := m.GetFunInfo(fn)
		if err != nil {
			return err
		}
		out.dump("funInfo", fi)
		out.dump("cache", m.Cache().Sizes())
	}
	return nil
}

func (c *cli) runIsClass(cmd *cobra.Command, args []string) error {
	m, done, err := c.session(args[0])
	if err != nil {
		return err
	}
	defer done()
	info, _, err := constant(m, args[1])
	if err != nil {
		return err
	}

	quick := m.IsClassQuick(info.Type)
	class := "none"
	if n, ok := m.IsClass(info.Type); ok {
		class = string(n)
	}
	out := newOutput(cmd.OutOrStdout())
	out.field("type", info.Type.String())
	out.field("quick", quick.String())
	out.field("class", class)
	if c.dump {
		out.dump("quick", quick)
	}
	return nil
}

func (c *cli) runInstantiate(cmd *cobra.Command, args []string) error {
	m, done, err := c.session(args[0])
	if err != nil {
		return err
	}
	defer done()
	info, _, err := constant(m, args[1])
	if err != nil {
		return err
	}

	ls := make([]expr.Level, len(info.LevelParams))
	for i := range ls {
		ls[i] = m.MkFreshLevelMVar()
	}
	t := info.InstantiateType(ls)
	var tel meta.MetaTelescope
	if c.reducing {
		tel, err = m.ForallMetaTelescopeReducing(t, meta.Unbounded, mctx.Natural)
	} else {
		tel, err = m.ForallMetaTelescope(t, mctx.Natural)
	}
	if err != nil {
		return err
	}

	var mvars, insts []string
	for i, mv := range tel.MVars {
		id := mv.(*expr.MVar).ID
		d, err := m.GetMVarDecl(id)
		if err != nil {
			return err
		}
		mvars = append(mvars, fmt.Sprintf("%s : %s (%s, %s)", mv, m.InstantiateMVars(d.Type), tel.BinderInfos[i], d.Kind))
		if !tel.BinderInfos[i].IsInstImplicit() {
			continue
		}
		r, ok, err := m.SynthInstanceCached(d.Type, reduce.EnvInstances)
		if err != nil {
			return err
		}
		if !ok {
			insts = append(insts, fmt.Sprintf("%s : %s has no instance", mv, m.InstantiateMVars(d.Type)))
			continue
		}
		if err := m.AssignExprMVar(id, r); err != nil {
			return err
		}
		insts = append(insts, fmt.Sprintf("%s := %s", mv, r))
	}

	out := newOutput(cmd.OutOrStdout())
	out.section("metavariables", mvars)
	out.section("instances", insts)
	out.field("type", m.InstantiateMVars(tel.Type).String())
	if c.dump {
		out.dump("cache", m.Cache().Sizes())
		out.dump("postponed", m.Postponed())
	}
	return nil
}
