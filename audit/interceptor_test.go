package audit

import (
	"context"
	"testing"

	"github.com/satishbabariya/audit-go/audit/auditctx"
	"github.com/satishbabariya/audit-go/dbclient"
	"github.com/satishbabariya/audit-go/schema"
	"github.com/satishbabariya/audit-go/storage"
	"github.com/satishbabariya/audit-go/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func interceptorSchema() schema.Static {
	return schema.Static{
		"User": {
			Relations:   []schema.RelationField{{Name: "posts", RelatedModel: "Post", IsList: true, ForeignKey: "authorId"}},
			Constraints: []schema.UniqueConstraint{{Type: schema.PrimaryKey, Fields: []string{"id"}}},
		},
		"Post": {
			Relations:   []schema.RelationField{{Name: "author", RelatedModel: "User", IsList: false, ForeignKey: "authorId"}},
			Constraints: []schema.UniqueConstraint{{Type: schema.PrimaryKey, Fields: []string{"id"}}},
		},
	}
}

func newTestInterceptor(t *testing.T) (*Interceptor, *dbclient.Memory) {
	t.Helper()
	meta := interceptorSchema()
	mem := dbclient.NewMemory(meta)
	cfg, err := NewConfig(
		WithBasePrisma(mem),
		WithWriter(storage.NewClientWriter(mem)),
		WithAwaitWrite(true),
		WithGlobalExcludeFields("updatedAt"),
		WithRedactFields("password"),
		WithAggregateMapping(AggregateMapping{
			"User": {Type: "User", Category: "model", IDResolver: ByField("id")},
			"Post": {
				Type:       "Post",
				Category:   "model",
				IDResolver: ByField("id"),
				Aggregates: []AggregateRef{ForeignKeyAggregate("model", "User", "authorId")},
			},
		}),
	)
	require.NoError(t, err)
	return NewInterceptor(cfg, meta), mem
}

func auditLogRows(t *testing.T, mem *dbclient.Memory) []value.Value {
	t.Helper()
	d, _ := mem.Delegate("AuditLog")
	rows, err := d.FindMany(context.Background(), value.Null())
	require.NoError(t, err)
	return rows
}

func withActor(actorID string) context.Context {
	return auditctx.With(context.Background(), auditctx.AuditContext{
		Actor: auditctx.Actor{Category: "user", Type: "User", ID: actorID},
	})
}

func TestInterceptorSimpleCreateProducesOneLog(t *testing.T) {
	ic, mem := newTestInterceptor(t)
	ctx := withActor("actor-1")

	call := OperationCall{Model: "User", Action: ActionCreate, Args: value.FromAny(map[string]interface{}{
		"data": map[string]interface{}{"email": "a@x"},
	})}
	_, err := ic.ExecuteDelegate(ctx, call)
	require.NoError(t, err)

	rows := auditLogRows(t, mem)
	require.Len(t, rows, 1)
	action, _ := rows[0].Get("action")
	a, _ := action.AsStr()
	assert.Equal(t, "create", a)
	changes, _ := rows[0].Get("changes")
	assert.True(t, changes.IsNull(), "a create has nothing on the before side to diff against")
}

func TestInterceptorConnectProducesNoLogOnTargetEntity(t *testing.T) {
	ic, mem := newTestInterceptor(t)

	postDelegate, _ := mem.Delegate("Post")
	existingPost, err := postDelegate.Create(context.Background(), value.FromAny(map[string]interface{}{"title": "existing"}))
	require.NoError(t, err)
	postID, _ := existingPost.Get("id")
	postIDStr, _ := postID.AsStr()

	ctx := withActor("actor-1")
	call := OperationCall{Model: "User", Action: ActionCreate, Args: value.FromAny(map[string]interface{}{
		"data": map[string]interface{}{
			"email": "a@x",
			"posts": map[string]interface{}{
				"connect": map[string]interface{}{"id": postIDStr},
			},
		},
	})}
	_, err = ic.ExecuteDelegate(ctx, call)
	require.NoError(t, err)

	rows := auditLogRows(t, mem)
	require.Len(t, rows, 1, "only the User create should be logged; connect writes nothing")
	typ, _ := rows[0].Get("entityType")
	s, _ := typ.AsStr()
	assert.Equal(t, "User", s)
}

func TestInterceptorNestedCreatesProduceUserAndPostLogs(t *testing.T) {
	ic, mem := newTestInterceptor(t)
	ctx := withActor("actor-1")

	call := OperationCall{Model: "User", Action: ActionCreate, Args: value.FromAny(map[string]interface{}{
		"data": map[string]interface{}{
			"email": "a@x",
			"posts": map[string]interface{}{
				"create": []interface{}{
					map[string]interface{}{"title": "P1"},
					map[string]interface{}{"title": "P2"},
				},
			},
		},
	})}
	_, err := ic.ExecuteDelegate(ctx, call)
	require.NoError(t, err)

	rows := auditLogRows(t, mem)
	// 1 User create + 2 Post create (self) + 2 Post create logged under the
	// User aggregate = 5.
	assert.Len(t, rows, 5)

	var userLogs, postLogs int
	for _, r := range rows {
		typ, _ := r.Get("entityType")
		s, _ := typ.AsStr()
		if s == "User" {
			userLogs++
		} else if s == "Post" {
			postLogs++
		}
	}
	assert.Equal(t, 1, userLogs)
	assert.Equal(t, 4, postLogs)
}

func TestInterceptorUpdateWithOnlyExcludedFieldProducesNoLog(t *testing.T) {
	ic, mem := newTestInterceptor(t)

	userDelegate, _ := mem.Delegate("User")
	created, err := userDelegate.Create(context.Background(), value.FromAny(map[string]interface{}{"email": "a@x"}))
	require.NoError(t, err)
	id, _ := created.Get("id")
	idStr, _ := id.AsStr()

	ctx := withActor("actor-1")
	call := OperationCall{Model: "User", Action: ActionUpdate, Args: value.FromAny(map[string]interface{}{
		"where": map[string]interface{}{"id": idStr},
		"data":  map[string]interface{}{"updatedAt": "2026-07-31T00:00:00Z"},
	})}
	_, err = ic.ExecuteDelegate(ctx, call)
	require.NoError(t, err)

	rows := auditLogRows(t, mem)
	assert.Empty(t, rows)
}

func TestInterceptorUpdateRedactsPasswordField(t *testing.T) {
	ic, mem := newTestInterceptor(t)

	userDelegate, _ := mem.Delegate("User")
	created, err := userDelegate.Create(context.Background(), value.FromAny(map[string]interface{}{"email": "a@x", "password": "old"}))
	require.NoError(t, err)
	id, _ := created.Get("id")
	idStr, _ := id.AsStr()

	ctx := withActor("actor-1")
	call := OperationCall{Model: "User", Action: ActionUpdate, Args: value.FromAny(map[string]interface{}{
		"where": map[string]interface{}{"id": idStr},
		"data":  map[string]interface{}{"password": "new"},
	})}
	_, err = ic.ExecuteDelegate(ctx, call)
	require.NoError(t, err)

	rows := auditLogRows(t, mem)
	require.Len(t, rows, 1)
	changes, _ := rows[0].Get("changes")
	redacted, ok := changes.Get("password")
	require.True(t, ok)
	isRedacted, _ := mustField(redacted, "redacted").AsBool()
	assert.True(t, isRedacted)
}

func TestInterceptorUpsertBranchSelectionCreateThenUpdate(t *testing.T) {
	ic, mem := newTestInterceptor(t)
	ctx := withActor("actor-1")

	// First call: no existing row -> create branch, with a nested post
	// create under the create data (root-level Upsert with no match).
	call1 := OperationCall{Model: "User", Action: ActionUpsert, Args: value.FromAny(map[string]interface{}{
		"where": map[string]interface{}{"id": "u-upsert"},
		"create": map[string]interface{}{
			"id":    "u-upsert",
			"email": "u@x",
			"posts": map[string]interface{}{
				"create": []interface{}{map[string]interface{}{"id": "p-upsert", "title": "P1"}},
			},
		},
		"update": map[string]interface{}{"email": "unused@x"},
	})}
	_, err := ic.ExecuteDelegate(ctx, call1)
	require.NoError(t, err)

	firstRows := auditLogRows(t, mem)
	for _, r := range firstRows {
		action, _ := r.Get("action")
		a, _ := action.AsStr()
		assert.Equal(t, "create", a)
	}

	// Second call: the User now exists -> update branch, with a nested
	// post upsert that matches the existing Post -> update, not create.
	call2 := OperationCall{Model: "User", Action: ActionUpsert, Args: value.FromAny(map[string]interface{}{
		"where":  map[string]interface{}{"id": "u-upsert"},
		"create": map[string]interface{}{"id": "u-upsert", "email": "ignored@x"},
		"update": map[string]interface{}{
			"email": "updated@x",
			"posts": map[string]interface{}{
				"upsert": []interface{}{
					map[string]interface{}{
						"where":  map[string]interface{}{"id": "p-upsert"},
						"create": map[string]interface{}{"title": "ignored"},
						"update": map[string]interface{}{"title": "P1 updated"},
					},
				},
			},
		},
	})}
	_, err = ic.ExecuteDelegate(ctx, call2)
	require.NoError(t, err)

	allRows := auditLogRows(t, mem)
	assert.Greater(t, len(allRows), len(firstRows))

	var sawPostUpdate bool
	for _, r := range allRows[len(firstRows):] {
		typ, _ := r.Get("entityType")
		t_, _ := typ.AsStr()
		action, _ := r.Get("action")
		a, _ := action.AsStr()
		if t_ == "Post" && a == "update" {
			sawPostUpdate = true
		}
		assert.NotEqual(t, "create", a, "second call should only take the update branch")
	}
	assert.True(t, sawPostUpdate, "expected the nested post upsert to take the update branch")
}
