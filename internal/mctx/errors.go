package mctx

import (
	"fmt"
	"strings"

	"github.com/funvibe/metakernel/internal/expr"
	"github.com/funvibe/metakernel/internal/lctx"
)

// ErrorKind classifies metavariable context failures.
type ErrorKind int

const (
	ErrUnknownMVar ErrorKind = iota
	ErrUnknownLevelMVar
	ErrReadOnly
	ErrAlreadyAssigned
	ErrOccurs
	ErrUnknownFVar
)

func (k ErrorKind) String() string {
	switch k {
	case ErrUnknownMVar:
		return "unknown metavariable"
	case ErrUnknownLevelMVar:
		return "unknown universe metavariable"
	case ErrReadOnly:
		return "metavariable is read-only"
	case ErrAlreadyAssigned:
		return "metavariable is already assigned"
	case ErrOccurs:
		return "metavariable occurs in its own assignment"
	case ErrUnknownFVar:
		return "unknown free variable"
	}
	return "metavariable error"
}

// Error is returned by the assignment and lookup operations.
type Error struct {
	Kind ErrorKind
	ID   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s '%s'", e.Kind, e.ID)
}

func newError(kind ErrorKind, id string) *Error {
	return &Error{Kind: kind, ID: id}
}

// RevertFailure reports a binder construction whose reversion order is impossible:
// VarName must be reverted before a variable it depends on.
type RevertFailure struct {
	LCtx     *lctx.LocalContext
	ToRevert []expr.Expr
	VarName  expr.Name
}

func (e *RevertFailure) Error() string {
	names := make([]string, len(e.ToRevert))
	for i, x := range e.ToRevert {
		names[i] = expr.Format(x, e.LCtx.UserNameOf)
	}
	return fmt.Sprintf("failed to revert [%s], '%s' depends on a variable reverted after it",
		strings.Join(names, ", "), e.VarName)
}
