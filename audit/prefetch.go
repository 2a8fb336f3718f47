package audit

import (
	"context"

	"github.com/satishbabariya/audit-go/dbclient"
	"github.com/satishbabariya/audit-go/schema"
	"github.com/satishbabariya/audit-go/value"
)

// PreFetchResult is everything the two-phase pre-fetch produced: the
// root record's before-state (single-record ops), the root's upsert
// existence flag, the populated path→snapshot map, and the final,
// branch-pruned set of nested operations that will actually execute.
type PreFetchResult struct {
	RootBefore    RecordOrAbsent
	RootBeforeMany []value.Value // for updateMany/deleteMany
	RootExisted   *bool          // non-nil only for Action == ActionUpsert
	Map           map[string]PreFetchSnapshot
	NestedOps     []NestedOp
}

// PreFetch runs the two-phase pre-fetch: discovery (walk both upsert
// branches, build WHERE from unique constraints, execute against the
// transaction-bound client) then branch pruning (re-walk using the
// populated map). Failures are wrapped as AuditError{Phase: PhasePreFetch}
// and routed through policy; a StrategyLog/Ignore outcome continues with
// before=null substituted for that one record rather than aborting the
// whole call.
func PreFetch(ctx context.Context, call OperationCall, meta schema.Metadata, client dbclient.Client, cfg Config) (PreFetchResult, error) {
	result := PreFetchResult{Map: map[string]PreFetchSnapshot{}}

	if err := prefetchRoot(ctx, call, client, cfg, &result); err != nil {
		return result, err
	}

	// Phase 1: discovery, exploring both upsert branches and checking
	// whether each connectOrCreate target already exists.
	phase1Ops := WalkNested(call, meta, nil, nil)
	for _, op := range phase1Ops {
		switch op.Operation {
		case OpUpdate, OpDelete, OpUpsert, OpConnectOrCreate:
		default:
			continue
		}
		if err := prefetchOne(ctx, op, meta, client, cfg, result.Map); err != nil {
			return result, err
		}
	}

	// Phase 2: branch pruning using the populated map.
	result.NestedOps = WalkNested(call, meta, result.Map, result.RootExisted)
	return result, nil
}

func prefetchRoot(ctx context.Context, call OperationCall, client dbclient.Client, cfg Config, result *PreFetchResult) error {
	delegate, ok := client.Delegate(call.Model)
	if !ok {
		return nil
	}
	where, _ := call.Args.Get("where")

	switch call.Action {
	case ActionUpdate:
		if !cfg.FetchBeforeOnUpdate {
			return nil
		}
		row, err := delegate.FindUnique(ctx, where)
		if err != nil {
			return handlePreFetchErr(call.Model, "update", cfg, err)
		}
		if !row.IsNull() {
			result.RootBefore = Present(row)
		}
	case ActionDelete:
		if !cfg.FetchBeforeOnDelete {
			return nil
		}
		row, err := delegate.FindUnique(ctx, where)
		if err != nil {
			return handlePreFetchErr(call.Model, "delete", cfg, err)
		}
		if !row.IsNull() {
			result.RootBefore = Present(row)
		}
	case ActionUpdateMany:
		if !cfg.FetchBeforeOnUpdate {
			return nil
		}
		rows, err := delegate.FindMany(ctx, where)
		if err != nil {
			return handlePreFetchErr(call.Model, "updateMany", cfg, err)
		}
		result.RootBeforeMany = rows
	case ActionDeleteMany:
		if !cfg.FetchBeforeOnDelete {
			return nil
		}
		rows, err := delegate.FindMany(ctx, where)
		if err != nil {
			return handlePreFetchErr(call.Model, "deleteMany", cfg, err)
		}
		result.RootBeforeMany = rows
	case ActionUpsert:
		row, err := delegate.FindUnique(ctx, where)
		if err != nil {
			return handlePreFetchErr(call.Model, "upsert", cfg, err)
		}
		existed := !row.IsNull()
		result.RootExisted = &existed
		if existed {
			result.RootBefore = Present(row)
		}
	}
	return nil
}

func prefetchOne(ctx context.Context, op NestedOp, meta schema.Metadata, client dbclient.Client, cfg Config, out map[string]PreFetchSnapshot) error {
	delegate, ok := client.Delegate(op.RelatedModel)
	if !ok {
		return nil
	}
	where := nestedWhere(op)
	fieldSet := fieldSetOf(where)

	if _, unique := schema.IsUniqueConstraintSatisfied(meta, op.RelatedModel, fieldSet); unique {
		row, err := delegate.FindUnique(ctx, where)
		if err != nil {
			return handlePreFetchErr(op.RelatedModel, string(op.Operation), cfg, err)
		}
		if !row.IsNull() {
			id, _ := row.Get("id")
			idStr, _ := id.AsStr()
			out[op.Path] = PreFetchSnapshot{Path: op.Path, EntityID: idStr, Before: row}
		}
		return nil
	}

	rows, err := delegate.FindMany(ctx, where)
	if err != nil {
		return handlePreFetchErr(op.RelatedModel, string(op.Operation), cfg, err)
	}
	if len(rows) > 0 {
		out[op.Path] = PreFetchSnapshot{Path: op.Path, EntityID: "__default__", Before: value.Seq(rows)}
	}
	return nil
}

func nestedWhere(op NestedOp) value.Value {
	if w, ok := op.Data.Get("where"); ok {
		return w
	}
	return op.Data
}

func fieldSetOf(where value.Value) map[string]struct{} {
	out := map[string]struct{}{}
	m, ok := where.AsMap()
	if !ok {
		return out
	}
	for k := range m {
		out[k] = struct{}{}
	}
	return out
}

func handlePreFetchErr(model, op string, cfg Config, err error) error {
	ae := NewAuditError(PhasePreFetch, model, op, nil, err)
	return cfg.ErrorPolicy.Apply(ae, cfg.Logger)
}
