package audit

import (
	"testing"

	"github.com/satishbabariya/audit-go/dbclient"
	"github.com/satishbabariya/audit-go/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveAggregatesIncludesSelfAndForeignKeyAggregate(t *testing.T) {
	cfg := Config{
		AggregateMapping: AggregateMapping{
			"Post": {
				Type:       "Post",
				Category:   "model",
				IDResolver: ByField("id"),
				Aggregates: []AggregateRef{ForeignKeyAggregate("model", "User", "authorId")},
			},
		},
		ErrorPolicy: DefaultErrorPolicy(),
	}
	record := value.FromAny(map[string]interface{}{"id": "p1", "authorId": "u1"})
	pair := RecordPair{Entity: "Post", EntityID: "p1", Before: Absent(), After: Present(record), Action: "create"}

	resolved, err := ResolveAggregates(pair, cfg, nil)
	require.NoError(t, err)
	require.Len(t, resolved, 2)
	assert.Equal(t, ResolvedId{AggregateCategory: "model", AggregateType: "Post", AggregateID: "p1"}, resolved[0])
	assert.Equal(t, ResolvedId{AggregateCategory: "model", AggregateType: "User", AggregateID: "u1"}, resolved[1])
}

func TestResolveAggregatesExcludeSelfOmitsOwnIdentity(t *testing.T) {
	cfg := Config{
		AggregateMapping: AggregateMapping{
			"Post": {
				Type:        "Post",
				ExcludeSelf: true,
				Aggregates:  []AggregateRef{ForeignKeyAggregate("model", "User", "authorId")},
			},
		},
		ErrorPolicy: DefaultErrorPolicy(),
	}
	record := value.FromAny(map[string]interface{}{"id": "p1", "authorId": "u1"})
	pair := RecordPair{Entity: "Post", EntityID: "p1", Before: Absent(), After: Present(record), Action: "create"}

	resolved, err := ResolveAggregates(pair, cfg, nil)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, "User", resolved[0].AggregateType)
}

func TestResolveAggregatesDedupsRepeatedTriple(t *testing.T) {
	cfg := Config{
		AggregateMapping: AggregateMapping{
			"Post": {
				Type:       "Post",
				IDResolver: ByField("id"),
				Aggregates: []AggregateRef{
					ForeignKeyAggregate("model", "User", "authorId"),
					{Category: "model", Type: "Post", Resolve: func(e value.Value, _ dbclient.Client) (value.Value, error) {
						id, _ := e.Get("id")
						return id, nil
					}}, // deliberately duplicates self
				},
			},
		},
		ErrorPolicy: DefaultErrorPolicy(),
	}
	record := value.FromAny(map[string]interface{}{"id": "p1", "authorId": "u1"})
	pair := RecordPair{Entity: "Post", EntityID: "p1", Before: Absent(), After: Present(record), Action: "create"}

	resolved, err := ResolveAggregates(pair, cfg, nil)
	require.NoError(t, err)
	assert.Len(t, resolved, 2) // Post(p1) counted once, User(u1) once
}

func TestResolveAggregatesUnmappedModelYieldsNoResolvedIds(t *testing.T) {
	cfg := Config{AggregateMapping: AggregateMapping{}, ErrorPolicy: DefaultErrorPolicy()}
	pair := RecordPair{Entity: "Unmapped", EntityID: "x", After: Present(value.FromAny(map[string]interface{}{"id": "x"})), Action: "create"}

	resolved, err := ResolveAggregates(pair, cfg, nil)
	require.NoError(t, err)
	assert.Empty(t, resolved)
}
