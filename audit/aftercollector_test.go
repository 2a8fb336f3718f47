package audit

import (
	"testing"

	"github.com/satishbabariya/audit-go/schema"
	"github.com/satishbabariya/audit-go/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectorSchema() schema.Static {
	return schema.Static{
		"User": {Relations: []schema.RelationField{{Name: "posts", RelatedModel: "Post", IsList: true, ForeignKey: "authorId"}}},
		"Post": {Relations: []schema.RelationField{{Name: "author", RelatedModel: "User", IsList: false, ForeignKey: "authorId"}}},
	}
}

func TestCollectAfterCreateWithNestedCreates(t *testing.T) {
	meta := collectorSchema()
	call := OperationCall{Model: "User", Action: ActionCreate}
	result := PreFetchResult{
		Map:       map[string]PreFetchSnapshot{},
		NestedOps: []NestedOp{{Path: "posts", FieldName: "posts", RelatedModel: "Post", Operation: OpCreate, IsList: true}},
	}
	opResult := value.FromAny(map[string]interface{}{
		"id": "u1",
		"posts": []interface{}{
			map[string]interface{}{"id": "p1", "authorId": "u1"},
			map[string]interface{}{"id": "p2", "authorId": "u1"},
		},
	})

	pairs := CollectAfter(call, meta, result, opResult)
	require.Len(t, pairs, 3)
	assert.Equal(t, "User", pairs[0].Entity)
	assert.Equal(t, "create", pairs[0].Action)
	assert.False(t, pairs[0].Before.Present)

	for _, p := range pairs[1:] {
		assert.Equal(t, "Post", p.Entity)
		assert.Equal(t, "create", p.Action)
	}
}

func TestCollectAfterUpdateUsesRootBeforeAndPrunesNestedUpdateVsCreate(t *testing.T) {
	meta := collectorSchema()
	call := OperationCall{Model: "User", Action: ActionUpdate}
	before := value.FromAny(map[string]interface{}{"id": "u1", "email": "old@x"})
	result := PreFetchResult{
		RootBefore: Present(before),
		Map: map[string]PreFetchSnapshot{
			"posts": {Path: "posts", EntityID: "p1", Before: value.FromAny(map[string]interface{}{"id": "p1", "title": "old"})},
		},
		NestedOps: []NestedOp{
			{Path: "posts", FieldName: "posts", RelatedModel: "Post", Operation: OpUpdate, IsList: true},
			{Path: "posts", FieldName: "posts", RelatedModel: "Post", Operation: OpCreate, IsList: true},
		},
	}
	opResult := value.FromAny(map[string]interface{}{
		"id":    "u1",
		"email": "new@x",
		"posts": []interface{}{
			map[string]interface{}{"id": "p1", "title": "new"}, // matches pre-fetch snapshot -> update
			map[string]interface{}{"id": "p2", "title": "brand new"}, // no snapshot -> create
		},
	})

	pairs := CollectAfter(call, meta, result, opResult)
	require.Len(t, pairs, 3)
	assert.Equal(t, "update", pairs[0].Action)
	assert.True(t, pairs[0].Before.Present)

	var p1, p2 RecordPair
	for _, p := range pairs[1:] {
		if p.EntityID == "p1" {
			p1 = p
		} else {
			p2 = p
		}
	}
	assert.Equal(t, "update", p1.Action)
	assert.True(t, p1.Before.Present)
	assert.Equal(t, "create", p2.Action)
	assert.False(t, p2.Before.Present)
}

func TestCollectAfterDeleteUsesRootBeforeOnly(t *testing.T) {
	meta := collectorSchema()
	call := OperationCall{Model: "User", Action: ActionDelete}
	before := value.FromAny(map[string]interface{}{"id": "u1"})
	result := PreFetchResult{RootBefore: Present(before)}

	pairs := CollectAfter(call, meta, result, value.Null())
	require.Len(t, pairs, 1)
	assert.Equal(t, "delete", pairs[0].Action)
	assert.False(t, pairs[0].After.Present)
	assert.Equal(t, "u1", pairs[0].EntityID)
}
