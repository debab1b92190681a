package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cliEnv = `
classes: [Monad]
constants:
  - name: Nat
    type: Type
    kind: inductive
  - name: F
    type: {arrow: [Type, Type]}
  - name: G
    type: {arrow: [Type, Type]}
  - name: Monad
    type: {arrow: [{arrow: [Type, Type]}, Type]}
    kind: inductive
  - name: instMonadF
    type: {app: [Monad, F]}
  - name: bind
    type: {pi: [{name: α, type: {arrow: [Type, Type]}}, {name: inst, type: {app: [Monad, α]}, info: instImplicit}, {name: x, type: {app: [α, Nat]}}], body: Nat}
  - name: needsF
    type: {pi: [{name: inst, type: {app: [Monad, F]}, info: instImplicit}], body: Nat}
  - name: needsG
    type: {pi: [{name: inst, type: {app: [Monad, G]}, info: instImplicit}], body: Nat}
`

func writeEnv(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "env.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cliEnv), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestTelescopeCommand(t *testing.T) {
	out, err := run(t, "telescope", writeEnv(t), "bind")
	require.NoError(t, err)
	assert.Contains(t, out, "constant: bind")
	assert.Contains(t, out, "(α : Type -> Type)")
	assert.Contains(t, out, "[inst : Monad α]")
	assert.Contains(t, out, "inst : Monad")
	assert.Contains(t, out, "body: Nat")
}

func TestTelescopeCommandDump(t *testing.T) {
	out, err := run(t, "--dump", "telescope", writeEnv(t), "bind")
	require.NoError(t, err)
	assert.Contains(t, out, "-- funInfo")
	assert.Contains(t, out, "HasFwdDeps")
	assert.Contains(t, out, "-- cache")
}

func TestIsClassCommand(t *testing.T) {
	path := writeEnv(t)
	out, err := run(t, "isclass", path, "instMonadF")
	require.NoError(t, err)
	assert.Contains(t, out, "quick: some Monad")
	assert.Contains(t, out, "class: Monad")

	out, err = run(t, "isclass", path, "F")
	require.NoError(t, err)
	assert.Contains(t, out, "quick: none")
	assert.Contains(t, out, "class: none")
}

func TestInstantiateCommand(t *testing.T) {
	path := writeEnv(t)
	out, err := run(t, "instantiate", path, "needsF")
	require.NoError(t, err)
	assert.Contains(t, out, ":= instMonadF")
	assert.Contains(t, out, "type: Nat")

	out, err = run(t, "instantiate", path, "needsG")
	require.NoError(t, err)
	assert.Contains(t, out, "Monad G has no instance")
}

func TestPreludeArgument(t *testing.T) {
	out, err := run(t, "telescope", preludeArg, "Nat.succ")
	require.NoError(t, err)
	assert.Contains(t, out, "(a : Nat)")
	assert.Contains(t, out, "body: Nat")
}

func TestCommandErrors(t *testing.T) {
	_, err := run(t, "telescope", writeEnv(t), "missing")
	assert.Error(t, err)

	_, err = run(t, "telescope", filepath.Join(t.TempDir(), "nope.yaml"), "Nat")
	assert.Error(t, err)

	_, err = run(t, "telescope", preludeArg)
	assert.Error(t, err)
}
