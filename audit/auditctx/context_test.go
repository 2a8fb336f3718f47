package auditctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromMissingContextReturnsFalse(t *testing.T) {
	_, ok := From(context.Background())
	assert.False(t, ok)
}

func TestWithThenFromRoundTrips(t *testing.T) {
	ac := AuditContext{Actor: Actor{Category: "model", Type: "User", ID: "u1"}}
	ctx := With(context.Background(), ac)
	got, ok := From(ctx)
	assert.True(t, ok)
	assert.Equal(t, "u1", got.Actor.ID)
}

func TestNestedWithShadowsOuter(t *testing.T) {
	outer := With(context.Background(), AuditContext{Actor: Actor{ID: "outer"}})
	inner := With(outer, AuditContext{Actor: Actor{ID: "inner"}})

	got, ok := From(inner)
	assert.True(t, ok)
	assert.Equal(t, "inner", got.Actor.ID)

	got, ok = From(outer)
	assert.True(t, ok)
	assert.Equal(t, "outer", got.Actor.ID)
}
