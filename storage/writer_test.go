package storage

import (
	"context"
	"testing"
	"time"

	"github.com/satishbabariya/audit-go/dbclient"
	"github.com/satishbabariya/audit-go/schema"
	"github.com/satishbabariya/audit-go/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientWriterWritesThroughDelegate(t *testing.T) {
	client := dbclient.NewMemory(schema.Static{})
	w := NewClientWriter(client)

	err := w.Write(context.Background(), []Entry{{
		ID:                "e1",
		EntityCategory:    "model",
		EntityType:        "User",
		EntityID:          "u1",
		AggregateCategory: "model",
		AggregateType:     "User",
		AggregateID:       "u1",
		ActorCategory:     "model",
		ActorType:         "User",
		ActorID:           "u1",
		Action:            ActionCreate,
		After:             value.FromAny(map[string]interface{}{"email": "a@x"}),
		Before:            value.Null(),
		Changes:           value.Null(),
		CreatedAt:         time.Unix(0, 0).UTC(),
	}})
	require.NoError(t, err)

	d, _ := client.Delegate("AuditLog")
	rows, err := d.FindMany(context.Background(), value.Null())
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	action, _ := rows[0].Get("action")
	a, _ := action.AsStr()
	assert.Equal(t, "create", a)
}

func TestClientWriterNoopOnEmpty(t *testing.T) {
	client := dbclient.NewMemory(schema.Static{})
	w := NewClientWriter(client)
	err := w.Write(context.Background(), nil)
	require.NoError(t, err)
}
