package audit

import (
	"github.com/satishbabariya/audit-go/dbclient"
	"github.com/satishbabariya/audit-go/value"
)

// ResolveAggregates is the Aggregate Resolver: for one RecordPair,
// determine every (category,type,id) triple its log entries should
// attach to. The entity's own identity is included first (unless
// ExcludeSelf), in declaration order, followed by each configured
// AggregateRef in the order it appears in EntityConfig.Aggregates.
// Duplicate (category,type,id) triples collapse to one ResolvedId.
//
// A resolver that returns an error is logged (via cfg.ErrorPolicy, phase
// PhaseResolver) and simply contributes no ResolvedId for that one
// aggregate rather than aborting the whole record's audit — other
// aggregates for the same record still resolve.
func ResolveAggregates(pair RecordPair, cfg Config, client dbclient.Client) ([]ResolvedId, error) {
	ec, ok := cfg.AggregateMapping[pair.Entity]
	if !ok {
		return nil, nil
	}

	current := currentRecord(pair)
	var out []ResolvedId
	seen := map[string]struct{}{}

	add := func(category, typ string, id value.Value) {
		normalized, ok := value.Normalize(id)
		if !ok {
			return
		}
		key := category + "\x00" + typ + "\x00" + normalized
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, ResolvedId{AggregateCategory: category, AggregateType: typ, AggregateID: normalized})
	}

	if !ec.ExcludeSelf && ec.IDResolver != nil && current.Present {
		id, err := ec.IDResolver(current.Value)
		if err != nil {
			if herr := resolverErr(pair.Entity, "self", cfg, err); herr != nil {
				return out, herr
			}
		} else if !id.IsNull() {
			category := ec.Category
			if category == "" {
				category = "model"
			}
			add(category, ec.Type, id)
		}
	}

	if current.Present {
		for _, agg := range ec.Aggregates {
			id, err := agg.Resolve(current.Value, client)
			if err != nil {
				if herr := resolverErr(pair.Entity, agg.Type, cfg, err); herr != nil {
					return out, herr
				}
				continue
			}
			if id.IsNull() {
				continue
			}
			add(agg.Category, agg.Type, id)
		}
	}

	return out, nil
}

// currentRecord is the record the resolver reads fields off: the after
// state for create/update, the before state for delete (there is no
// after state to read an id or FK from once a row is gone).
func currentRecord(pair RecordPair) RecordOrAbsent {
	if pair.After.Present {
		return pair.After
	}
	return pair.Before
}

func resolverErr(model, aggregate string, cfg Config, err error) error {
	ae := NewAuditError(PhaseResolver, model, aggregate, nil, err)
	return cfg.ErrorPolicy.Apply(ae, cfg.Logger)
}
