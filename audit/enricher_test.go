package audit

import (
	"testing"

	"github.com/satishbabariya/audit-go/dbclient"
	"github.com/satishbabariya/audit-go/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEnrichBatchCallsEntityEnricherOnceForWholeBatch is the
// enricher-batch-exactly-once property: two drafts referencing two
// distinct Post records must still invoke the registered entity
// enricher exactly once, with both records in a single batch.
func TestEnrichBatchCallsEntityEnricherOnceForWholeBatch(t *testing.T) {
	calls := 0
	cfg := Config{
		AggregateMapping: AggregateMapping{
			"Post": {
				Type: "Post",
				EntityContextEnricher: func(entities []value.Value, _ dbclient.Client) ([]value.Value, error) {
					calls++
					out := make([]value.Value, len(entities))
					for i := range entities {
						out[i] = value.Str("tag")
					}
					return out, nil
				},
			},
		},
		ErrorPolicy: DefaultErrorPolicy(),
	}

	p1 := RecordPair{Entity: "Post", EntityID: "p1", After: Present(value.FromAny(map[string]interface{}{"id": "p1"})), Action: "create"}
	p2 := RecordPair{Entity: "Post", EntityID: "p2", After: Present(value.FromAny(map[string]interface{}{"id": "p2"})), Action: "create"}
	drafts := []draft{
		{pair: p1, resolved: ResolvedId{AggregateType: "Post", AggregateID: "p1"}, changes: value.Map(nil)},
		{pair: p2, resolved: ResolvedId{AggregateType: "Post", AggregateID: "p2"}, changes: value.Map(nil)},
	}

	enriched, err := EnrichBatch(drafts, value.Null(), cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	require.Len(t, enriched, 2)
	for _, e := range enriched {
		s, _ := e.EntityContext.AsStr()
		assert.Equal(t, "tag", s)
	}
}

func TestEnrichBatchActorEnricherRunsOnceRegardlessOfEntryCount(t *testing.T) {
	calls := 0
	cfg := Config{
		AggregateMapping: AggregateMapping{},
		ActorEnricher: &ActorEnricherConfig{
			Enricher: func(actor value.Value, _ dbclient.Client) (value.Value, error) {
				calls++
				return value.Str("enriched-actor"), nil
			},
		},
		ErrorPolicy: DefaultErrorPolicy(),
	}
	drafts := []draft{
		{pair: RecordPair{Entity: "Post", EntityID: "p1", Action: "create"}, resolved: ResolvedId{AggregateType: "Post", AggregateID: "p1"}, changes: value.Map(nil)},
		{pair: RecordPair{Entity: "Post", EntityID: "p2", Action: "create"}, resolved: ResolvedId{AggregateType: "Post", AggregateID: "p2"}, changes: value.Map(nil)},
	}

	enriched, err := EnrichBatch(drafts, value.Null(), cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	for _, e := range enriched {
		s, _ := e.ActorContext.AsStr()
		assert.Equal(t, "enriched-actor", s)
	}
}

func TestEnrichBatchEmptyDraftsIsNoop(t *testing.T) {
	enriched, err := EnrichBatch(nil, value.Null(), Config{ErrorPolicy: DefaultErrorPolicy()}, nil)
	require.NoError(t, err)
	assert.Nil(t, enriched)
}
