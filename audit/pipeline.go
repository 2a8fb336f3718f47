package audit

import (
	"context"

	"github.com/satishbabariya/audit-go/value"
)

// Middleware wraps one full Interceptor.Execute call - the whole
// classify-through-emit pipeline, not a single phase - letting callers
// add cross-cutting behavior (tracing spans, rate limiting, custom
// retries) around it without reaching into the pipeline's internals.
// The onion shape mirrors a generated client's query middleware chain;
// here the wrapped unit is one audited operation instead of one SQL
// query.
type Middleware func(ctx context.Context, call OperationCall, next func(ctx context.Context) (value.Value, error)) (value.Value, error)

// Chain composes middlewares into a single onion around a terminal call.
// A zero-value Chain with no registered middlewares calls terminal
// directly.
type Chain struct {
	middlewares []Middleware
}

// Use appends mw to the chain. Middlewares run in registration order on
// the way in and unwind in reverse order on the way out, same onion
// shape as a generated client's query middleware.
func (c *Chain) Use(mw Middleware) {
	c.middlewares = append(c.middlewares, mw)
}

// Execute runs terminal through the chain.
func (c *Chain) Execute(ctx context.Context, call OperationCall, terminal func(ctx context.Context) (value.Value, error)) (value.Value, error) {
	if len(c.middlewares) == 0 {
		return terminal(ctx)
	}

	index := 0
	var next func(ctx context.Context) (value.Value, error)
	next = func(ctx context.Context) (value.Value, error) {
		if index >= len(c.middlewares) {
			return terminal(ctx)
		}
		mw := c.middlewares[index]
		index++
		return mw(ctx, call, next)
	}
	return next(ctx)
}
