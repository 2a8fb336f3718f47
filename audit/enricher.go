package audit

import (
	"sync"

	"github.com/satishbabariya/audit-go/audit/cache"
	"github.com/satishbabariya/audit-go/dbclient"
	"github.com/satishbabariya/audit-go/telemetry"
	"github.com/satishbabariya/audit-go/value"
	"go.uber.org/multierr"
)

// EnrichedEntry is one draft log entry after context enrichment, ready
// for the emitter.
type EnrichedEntry struct {
	Pair            RecordPair
	Resolved        ResolvedId
	Changes         value.Value
	EntityContext   value.Value
	AggregateContext value.Value
	ActorContext    value.Value
}

// draft is the pre-enrichment shape: one entry per (RecordPair,
// ResolvedId) - one log entry per (entity, aggregate root) pair.
type draft struct {
	pair     RecordPair
	resolved ResolvedId
	changes  value.Value
}

// EnrichBatch is the batched Context Enricher: every registered
// entity/aggregate/actor enricher is invoked at most once per
// call, over the full distinct set of entities/aggregates touched by that
// call, rather than once per draft entry - the property the conformance
// suite calls "enricher-batch-exactly-once".
//
// actor is the resolved actor record from the AuditContext (by value, not
// by further lookup) unless an ActorEnricher is configured, in which case
// it is enriched exactly once for the whole call regardless of how many
// entries reference it.
func EnrichBatch(drafts []draft, actor value.Value, cfg Config, client dbclient.Client) ([]EnrichedEntry, error) {
	if len(drafts) == 0 {
		return nil, nil
	}

	// The three enricher groups are independent, possibly-unrelated
	// registrations, so they run concurrently rather than one after
	// another; a failing entity enricher never prevents the aggregate or
	// actor enrichers from running. Failures are combined via multierr
	// and returned together so a StrategyThrow caller sees the whole
	// picture at once.
	var (
		wg                          sync.WaitGroup
		mu                          sync.Mutex
		errs                        error
		entityCtxByModel, aggCtxByType map[string]value.Value
		actorCtx                    value.Value
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		m, err := enrichEntities(drafts, cfg, client)
		mu.Lock()
		entityCtxByModel, errs = m, multierr.Append(errs, err)
		mu.Unlock()
	}()
	go func() {
		defer wg.Done()
		m, err := enrichAggregates(drafts, cfg, client)
		mu.Lock()
		aggCtxByType, errs = m, multierr.Append(errs, err)
		mu.Unlock()
	}()
	go func() {
		defer wg.Done()
		v, err := enrichActor(actor, cfg, client)
		mu.Lock()
		actorCtx, errs = v, multierr.Append(errs, err)
		mu.Unlock()
	}()
	wg.Wait()
	if errs != nil {
		return nil, errs
	}

	out := make([]EnrichedEntry, 0, len(drafts))
	for _, d := range drafts {
		entityKey := d.pair.Entity + "\x00" + d.pair.EntityID
		aggKey := d.resolved.AggregateType + "\x00" + d.resolved.AggregateID
		out = append(out, EnrichedEntry{
			Pair:             d.pair,
			Resolved:         d.resolved,
			Changes:          d.changes,
			EntityContext:    entityCtxByModel[entityKey],
			AggregateContext: aggCtxByType[aggKey],
			ActorContext:     actorCtx,
		})
	}
	return out, nil
}

// enrichEntities groups drafts by model, collects the distinct current
// records per model, and calls each model's EntityContextEnricher exactly
// once with the full distinct batch.
func enrichEntities(drafts []draft, cfg Config, client dbclient.Client) (map[string]value.Value, error) {
	byModel := map[string][]draft{}
	for _, d := range drafts {
		byModel[d.pair.Entity] = append(byModel[d.pair.Entity], d)
	}

	out := map[string]value.Value{}
	for model, ds := range byModel {
		ec, ok := cfg.AggregateMapping[model]
		if !ok || ec.EntityContextEnricher == nil {
			continue
		}
		recordsByKey, distinct := distinctRecords(ds)
		telemetry.RecordEnricherBatch("entity:"+model, len(distinct))
		results, err := ec.EntityContextEnricher(distinct, client)
		if err != nil {
			if herr := enricherErr(model, "entity", cfg, ec.EnricherErrorPolicy, err); herr != nil {
				return nil, herr
			}
			for key := range recordsByKey {
				out[key] = ec.EnricherFallback
			}
			continue
		}
		assignByPosition(recordsByKey, results, out)
	}
	return out, nil
}

func enrichAggregates(drafts []draft, cfg Config, client dbclient.Client) (map[string]value.Value, error) {
	byType := map[string][]draft{}
	for _, d := range drafts {
		if d.resolved.AggregateType == "" {
			continue
		}
		byType[d.resolved.AggregateType] = append(byType[d.resolved.AggregateType], d)
	}

	out := map[string]value.Value{}
	for typ, ds := range byType {
		fn, ok := cfg.AggregateCtx[typ]
		if !ok {
			continue
		}
		seen := map[string]struct{}{}
		var roots []value.Value
		var keys []string
		for _, d := range ds {
			key := d.resolved.AggregateType + "\x00" + d.resolved.AggregateID
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			if cfg.AggregateContextCache != nil {
				if v, hit := cfg.AggregateContextCache.Get(cache.Key(d.resolved.AggregateType, d.resolved.AggregateID)); hit {
					out[key] = v.(value.Value)
					continue
				}
			}
			keys = append(keys, key)
			roots = append(roots, value.Str(d.resolved.AggregateID))
		}
		if len(roots) == 0 {
			continue
		}
		telemetry.RecordEnricherBatch("aggregate:"+typ, len(roots))
		results, err := fn(roots, client)
		if err != nil {
			if herr := enricherErr(typ, "aggregate", cfg, StrategyLog, err); herr != nil {
				return nil, herr
			}
			continue
		}
		for i, key := range keys {
			if i < len(results) {
				out[key] = results[i]
				if cfg.AggregateContextCache != nil {
					parts := splitAggregateKey(key)
					cfg.AggregateContextCache.Set(cache.Key(parts[0], parts[1]), results[i], cfg.AggregateContextTTL)
				}
			}
		}
	}
	return out, nil
}

func splitAggregateKey(key string) [2]string {
	for i := 0; i < len(key)-1; i++ {
		if key[i] == 0 {
			return [2]string{key[:i], key[i+1:]}
		}
	}
	return [2]string{key, ""}
}

func enrichActor(actor value.Value, cfg Config, client dbclient.Client) (value.Value, error) {
	if cfg.ActorEnricher == nil || cfg.ActorEnricher.Enricher == nil {
		return actor, nil
	}
	telemetry.RecordEnricherBatch("actor", 1)
	result, err := cfg.ActorEnricher.Enricher(actor, client)
	if err != nil {
		ae := NewAuditError(PhaseEnrichment, "", "actor", nil, err)
		if herr := cfg.ErrorPolicy.Apply(ae, cfg.Logger); herr != nil {
			return value.Null(), herr
		}
		return cfg.ActorEnricher.Fallback, nil
	}
	return result, nil
}

// distinctRecords returns a stable-ordered distinct batch of "current"
// records (one per entity id) plus a key->index map so results can be
// reassigned after the enricher call.
func distinctRecords(ds []draft) (map[string]int, []value.Value) {
	out := map[string]int{}
	var batch []value.Value
	for _, d := range ds {
		key := d.pair.Entity + "\x00" + d.pair.EntityID
		if _, ok := out[key]; ok {
			continue
		}
		rec := currentRecord(d.pair)
		if !rec.Present {
			continue
		}
		out[key] = len(batch)
		batch = append(batch, rec.Value)
	}
	return out, batch
}

func assignByPosition(keyToIndex map[string]int, results []value.Value, out map[string]value.Value) {
	for key, idx := range keyToIndex {
		if idx < len(results) {
			out[key] = results[idx]
		}
	}
}

func enricherErr(model, kind string, cfg Config, fallbackPolicy Strategy, err error) error {
	ae := NewAuditError(PhaseEnrichment, model, kind, nil, err)
	if _, ok := cfg.ErrorPolicy.Strategies[PhaseEnrichment]; ok {
		return cfg.ErrorPolicy.Apply(ae, cfg.Logger)
	}
	policy := cfg.ErrorPolicy
	strategies := make(map[ErrorPhase]Strategy, len(policy.Strategies)+1)
	for k, v := range policy.Strategies {
		strategies[k] = v
	}
	strategies[PhaseEnrichment] = fallbackPolicy
	policy.Strategies = strategies
	return policy.Apply(ae, cfg.Logger)
}
