package meta

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/funvibe/metakernel/internal/expr"
	"github.com/funvibe/metakernel/internal/lctx"
	"github.com/funvibe/metakernel/internal/mctx"
)

// Kind classifies an Exception.
type Kind int

const (
	KindOther Kind = iota
	KindUnknownConstant
	KindUnknownFVar
	KindUnknownMVar
	KindBinderConstruction
	KindRecursionLimit
	KindRegistryUninitialized
	KindRegistrySlotTaken
	KindMalformedTelescope
	KindReadOnlyMVar
	KindAlreadyAssigned
)

var kindNames = [...]string{
	KindOther:                 "error",
	KindUnknownConstant:       "unknown constant",
	KindUnknownFVar:           "unknown free variable",
	KindUnknownMVar:           "unknown metavariable",
	KindBinderConstruction:    "binder construction failure",
	KindRecursionLimit:        "maximum recursion depth has been reached",
	KindRegistryUninitialized: "registry slot not initialized",
	KindRegistrySlotTaken:     "registry slot already initialized",
	KindMalformedTelescope:    "malformed telescope",
	KindReadOnlyMVar:          "read-only metavariable",
	KindAlreadyAssigned:       "metavariable already assigned",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "error"
}

// SourceRef locates the syntax an operation was elaborating.
type SourceRef struct {
	File string
	Line int
	Col  int
}

func (r SourceRef) IsZero() bool { return r == SourceRef{} }

func (r SourceRef) String() string {
	if r.IsZero() {
		return ""
	}
	return fmt.Sprintf("%s:%d:%d", r.File, r.Line, r.Col)
}

// Exception is the failure value of every meta operation. Its message is built
// on the first call to Error, from the contexts captured when it was raised, so
// exceptions swallowed by speculative code cost no formatting.
type Exception struct {
	Kind  Kind
	Ref   SourceRef
	Cause error

	render   func() string
	rendered bool
	text     string
}

func (e *Exception) Message() string {
	if !e.rendered {
		e.rendered = true
		if e.render != nil {
			e.text = e.render()
		}
	}
	return e.text
}

func (e *Exception) Error() string {
	msg := e.Message()
	switch {
	case msg == "" && e.Cause != nil:
		msg = e.Cause.Error()
	case msg == "":
		msg = e.Kind.String()
	case e.Cause != nil:
		msg += ": " + e.Cause.Error()
	}
	if !e.Ref.IsZero() {
		return e.Ref.String() + ": " + msg
	}
	return msg
}

func (e *Exception) Unwrap() error { return e.Cause }

// IsKind reports whether err is (or wraps) an Exception of kind k.
func IsKind(err error, k Kind) bool {
	var ex *Exception
	return errors.As(err, &ex) && ex.Kind == k
}

// throwf builds an Exception whose message is rendered lazily. Expression
// arguments are instantiated and printed against the contexts at throw time.
func (m *Meta) throwf(kind Kind, format string, args ...any) *Exception {
	lc := m.ctx.LCtx
	mc := m.s.state.MCtx
	return &Exception{
		Kind: kind,
		Ref:  m.ctx.Ref,
		render: func() string {
			return fmt.Sprintf(format, renderArgs(lc, mc, args)...)
		},
	}
}

// Throwf is throwf for the layers that implement the registry slots.
func (m *Meta) Throwf(kind Kind, format string, args ...any) error {
	return m.throwf(kind, format, args...)
}

func renderArgs(lc *lctx.LocalContext, mc mctx.MetavarContext, args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case expr.Expr:
			out[i] = expr.Format(mc.InstantiateMVars(v), lc.UserNameOf)
		case expr.Level:
			out[i] = mc.InstantiateLevelMVars(v).String()
		default:
			out[i] = a
		}
	}
	return out
}

// wrap lifts errors from the lower layers into Exceptions.
func (m *Meta) wrap(err error) error {
	if err == nil {
		return nil
	}
	var ex *Exception
	if errors.As(err, &ex) {
		return err
	}
	kind := KindOther
	var mErr *mctx.Error
	var rf *mctx.RevertFailure
	switch {
	case errors.As(err, &mErr):
		switch mErr.Kind {
		case mctx.ErrUnknownMVar, mctx.ErrUnknownLevelMVar:
			kind = KindUnknownMVar
		case mctx.ErrReadOnly:
			kind = KindReadOnlyMVar
		case mctx.ErrAlreadyAssigned:
			kind = KindAlreadyAssigned
		case mctx.ErrUnknownFVar:
			kind = KindUnknownFVar
		}
	case errors.As(err, &rf):
		kind = KindBinderConstruction
	}
	return &Exception{Kind: kind, Ref: m.ctx.Ref, Cause: err}
}
