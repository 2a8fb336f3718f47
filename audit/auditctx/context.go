// Package auditctx carries the ambient per-request audit state.
//
// This is a scoped, task-local container, not a global singleton and not
// an explicit argument threaded through every function. Go already has the
// primitive for that: context.Context. The package below is a thin,
// typed wrapper over context.WithValue, grounded on
// v3/runtime/context.go's contextKey/With*/​*FromContext idiom.
package auditctx

import "context"

type contextKey int

const (
	auditContextKey contextKey = iota
)

// Actor identifies who performed a mutation.
type Actor struct {
	Category string
	Type     string
	ID       string
	Name     string // optional, empty means unset
}

// Request carries optional HTTP-ish provenance for the mutation.
type Request struct {
	IPAddress string
	UserAgent string
	Path      string
	Method    string
}

// AuditContext is the ambient state borrowed for the lifetime of the
// scoped block it is attached to and shallow-copied into every log emitted
// during that scope.
type AuditContext struct {
	Actor    Actor
	Request  *Request // nil if not provided
	Metadata interface{}
}

// With attaches an AuditContext to ctx, shadowing any AuditContext already
// present on an outer scope. It never mutates the caller's context or any
// ambient global state.
func With(ctx context.Context, ac AuditContext) context.Context {
	return context.WithValue(ctx, auditContextKey, ac)
}

// From returns the AuditContext bound to ctx, if any. The bool result is
// false when no mutation is currently scoped under an AuditContext, which
// must yield zero logs rather than a zero-value Actor.
func From(ctx context.Context) (AuditContext, bool) {
	v := ctx.Value(auditContextKey)
	if v == nil {
		return AuditContext{}, false
	}
	ac, ok := v.(AuditContext)
	return ac, ok
}
