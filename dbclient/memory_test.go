package dbclient

import (
	"context"
	"testing"

	"github.com/satishbabariya/audit-go/schema"
	"github.com/satishbabariya/audit-go/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema() schema.Static {
	return schema.Static{
		"User": {
			Relations: []schema.RelationField{
				{Name: "posts", RelatedModel: "Post", IsList: true, ForeignKey: "authorId"},
			},
			Constraints: []schema.UniqueConstraint{{Type: schema.PrimaryKey, Fields: []string{"id"}}},
		},
		"Post": {
			Relations: []schema.RelationField{
				{Name: "author", RelatedModel: "User", IsList: false, ForeignKey: "authorId"},
			},
			Constraints: []schema.UniqueConstraint{{Type: schema.PrimaryKey, Fields: []string{"id"}}},
		},
	}
}

func TestMemoryCreateAndFindUnique(t *testing.T) {
	m := NewMemory(testSchema())
	d, _ := m.Delegate("User")
	row, err := d.Create(context.Background(), value.FromAny(map[string]interface{}{
		"email": "a@x", "name": "A",
	}))
	require.NoError(t, err)
	id, _ := row.Get("id")
	idStr, _ := id.AsStr()

	found, err := d.FindUnique(context.Background(), value.FromAny(map[string]interface{}{"id": idStr}))
	require.NoError(t, err)
	name, _ := found.Get("name")
	n, _ := name.AsStr()
	assert.Equal(t, "A", n)
}

func TestMemoryNestedCreateSetsForeignKey(t *testing.T) {
	m := NewMemory(testSchema())
	userDelegate, _ := m.Delegate("User")
	row, err := userDelegate.Create(context.Background(), value.FromAny(map[string]interface{}{
		"email": "a@x",
		"posts": map[string]interface{}{
			"create": []interface{}{
				map[string]interface{}{"title": "P1"},
				map[string]interface{}{"title": "P2"},
			},
		},
	}))
	require.NoError(t, err)
	userID, _ := mustGetID(row).AsStr()

	postDelegate, _ := m.Delegate("Post")
	posts, err := postDelegate.FindMany(context.Background(), value.FromAny(map[string]interface{}{"authorId": userID}))
	require.NoError(t, err)
	assert.Len(t, posts, 2)
}

func TestMemoryUpsertExistingVsMissing(t *testing.T) {
	m := NewMemory(testSchema())
	d, _ := m.Delegate("User")

	row, existed, err := d.Upsert(context.Background(),
		value.FromAny(map[string]interface{}{"id": "missing"}),
		value.FromAny(map[string]interface{}{"email": "new@x"}),
		value.FromAny(map[string]interface{}{"email": "updated@x"}))
	require.NoError(t, err)
	assert.False(t, existed)
	email, _ := row.Get("email")
	e, _ := email.AsStr()
	assert.Equal(t, "new@x", e)

	id, _ := mustGetID(row).AsStr()
	row2, existed2, err := d.Upsert(context.Background(),
		value.FromAny(map[string]interface{}{"id": id}),
		value.FromAny(map[string]interface{}{"email": "ignored@x"}),
		value.FromAny(map[string]interface{}{"email": "updated@x"}))
	require.NoError(t, err)
	assert.True(t, existed2)
	email2, _ := row2.Get("email")
	e2, _ := email2.AsStr()
	assert.Equal(t, "updated@x", e2)
}

func TestMemoryTransactionRollsBackOnError(t *testing.T) {
	m := NewMemory(testSchema())
	d, _ := m.Delegate("User")

	err := m.Transaction(context.Background(), func(ctx context.Context, tx Client) error {
		td, _ := tx.Delegate("User")
		_, err := td.Create(ctx, value.FromAny(map[string]interface{}{"email": "a@x"}))
		require.NoError(t, err)
		return assertErr
	})
	assert.Equal(t, assertErr, err)

	rows, _ := d.FindMany(context.Background(), value.Null())
	assert.Empty(t, rows)
}

var assertErr = errorString("boom")
