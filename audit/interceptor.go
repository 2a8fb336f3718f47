package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/satishbabariya/audit-go/audit/auditctx"
	"github.com/satishbabariya/audit-go/dbclient"
	"github.com/satishbabariya/audit-go/schema"
	"github.com/satishbabariya/audit-go/storage"
	"github.com/satishbabariya/audit-go/telemetry"
	"github.com/satishbabariya/audit-go/value"
)

// ClassifyCall is the OperationClassifier: turn a model name, ORM method
// name, and argument tree into an OperationCall.
func ClassifyCall(model, method string, args value.Value) (OperationCall, error) {
	var action Action
	switch method {
	case "create":
		action = ActionCreate
	case "update":
		action = ActionUpdate
	case "delete":
		action = ActionDelete
	case "upsert":
		action = ActionUpsert
	case "createMany":
		action = ActionCreateMany
	case "updateMany":
		action = ActionUpdateMany
	case "deleteMany":
		action = ActionDeleteMany
	default:
		return OperationCall{}, fmt.Errorf("audit: unrecognized operation %q", method)
	}
	return OperationCall{Model: model, Action: action, Args: args}, nil
}

// Interceptor is the engine's entrypoint: it owns the
// configuration, schema metadata, and the long-lived async emitter, and
// wraps every intercepted write with the full pipeline. One Interceptor
// is built once per process (or per Prisma-like client instance) and
// reused across calls, the same lifetime as the generated client's own
// *PrismaClient.
type Interceptor struct {
	cfg   Config
	meta  schema.Metadata
	async *AsyncEmitter
	idGen func() string
	chain Chain
}

func NewInterceptor(cfg Config, meta schema.Metadata) *Interceptor {
	return &Interceptor{
		cfg:   cfg,
		meta:  meta,
		async: NewAsyncEmitter(cfg.Writer, cfg),
		idGen: func() string { return uuid.NewString() },
	}
}

// Use registers a Middleware around every subsequent Execute call. Not
// safe to call concurrently with Execute.
func (ic *Interceptor) Use(mw Middleware) {
	ic.chain.Use(mw)
}

// Close drains the bounded async emitter, if any. Safe to call once at
// shutdown; a no-op for the unbounded (per-call goroutine) configuration.
func (ic *Interceptor) Close() {
	ic.async.Close()
}

// Execute runs execute (the original ORM operation) under the audit
// pipeline: two-phase pre-fetch, the operation itself, after-state
// collection, aggregate resolution, diffing, batched enrichment, and
// emission - all inside one transaction on ic.cfg.BasePrisma so a write
// failure at any audit phase can roll back the original mutation under
// the default StrategyThrow emission policy.
//
// Two cases bypass the pipeline entirely and just run execute: the model
// is in cfg.ExcludeModels, or ctx carries no auditctx.AuditContext - an
// operation with no ambient actor context must produce zero log entries,
// not logs with a zero-value actor.
func (ic *Interceptor) Execute(ctx context.Context, call OperationCall, execute func(ctx context.Context, client dbclient.Client) (value.Value, error)) (value.Value, error) {
	return ic.chain.Execute(ctx, call, func(ctx context.Context) (value.Value, error) {
		return ic.runPipeline(ctx, call, execute)
	})
}

func (ic *Interceptor) runPipeline(ctx context.Context, call OperationCall, execute func(ctx context.Context, client dbclient.Client) (value.Value, error)) (value.Value, error) {
	if _, excluded := ic.cfg.ExcludeModels[call.Model]; excluded {
		return execute(ctx, ic.cfg.BasePrisma)
	}
	actorCtx, hasCtx := auditctx.From(ctx)
	if !hasCtx {
		return execute(ctx, ic.cfg.BasePrisma)
	}

	ic.cfg.Hooks.Execute(call.Model, PhaseBeforeClassify, PipelineEvent{Model: call.Model, Operation: call.Action.String(), Call: call})

	start := time.Now()
	var opResult value.Value
	var fetchResult PreFetchResult

	txErr := ic.cfg.BasePrisma.Transaction(ctx, func(ctx context.Context, tx dbclient.Client) error {
		var err error
		fetchResult, err = PreFetch(ctx, call, ic.meta, tx, ic.cfg)
		if err != nil {
			return err
		}
		ic.cfg.Hooks.Execute(call.Model, PhaseAfterPreFetch, PipelineEvent{Model: call.Model, Call: call})

		opResult, err = execute(ctx, tx)
		if err != nil {
			return err
		}
		ic.cfg.Hooks.Execute(call.Model, PhaseAfterOperation, PipelineEvent{Model: call.Model, Call: call})

		pairs := CollectAfter(call, ic.meta, fetchResult, opResult)
		pairs = append(pairs, nestedOpPairs(fetchResult.NestedOps, fetchResult.Map)...)

		var drafts []draft
		for _, pair := range pairs {
			resolved, err := ResolveAggregates(pair, ic.cfg, tx)
			if err != nil {
				return err
			}
			changes := Diff(pair.Before, pair.After, ic.cfg)
			if pair.Action == "update" && isEmptyChanges(changes) {
				continue
			}
			for _, r := range resolved {
				drafts = append(drafts, draft{pair: pair, resolved: r, changes: changes})
			}
		}
		ic.cfg.Hooks.Execute(call.Model, PhaseAfterResolve, PipelineEvent{Model: call.Model, Call: call})
		ic.cfg.Hooks.Execute(call.Model, PhaseAfterDiff, PipelineEvent{Model: call.Model, Call: call})

		enriched, err := EnrichBatch(drafts, actorValue(actorCtx), ic.cfg, ic.cfg.BasePrisma)
		if err != nil {
			return err
		}
		ic.cfg.Hooks.Execute(call.Model, PhaseAfterEnrich, PipelineEvent{Model: call.Model, Call: call})

		rows := ToEntries(enriched, storageActorFrom(actorCtx), time.Now(), ic.idGen, ic.cfg)

		var writer storage.Writer
		if ic.cfg.Performance.AwaitWrite {
			writer = &storage.ClientWriter{Client: tx, Model: "AuditLog"}
		} else {
			writer = ic.cfg.Writer
		}
		if err := Emit(ctx, rows, writer, ic.async, ic.cfg); err != nil {
			return err
		}
		ic.cfg.Hooks.Execute(call.Model, PhaseAfterEmit, PipelineEvent{Model: call.Model, Call: call})
		return nil
	})
	telemetry.RecordPipeline(call.Model, call.Action.String(), time.Since(start), txErr)
	return opResult, txErr
}

// ExecuteDelegate is the common case of Execute: dispatch call directly
// onto the delegate via RunDelegate, for bindings with no richer native
// client of their own.
func (ic *Interceptor) ExecuteDelegate(ctx context.Context, call OperationCall) (value.Value, error) {
	return ic.Execute(ctx, call, func(ctx context.Context, tx dbclient.Client) (value.Value, error) {
		return RunDelegate(ctx, call, tx)
	})
}

// RunDelegate is the default execute function for Interceptor.Execute: it
// dispatches call onto tx's delegate for call.Model using the same args
// shape the classifier read call.Action from. Bindings with a richer
// native client (e.g. generated per-model methods) are free to supply
// their own execute closure instead of this one.
func RunDelegate(ctx context.Context, call OperationCall, tx dbclient.Client) (value.Value, error) {
	delegate, ok := tx.Delegate(call.Model)
	if !ok {
		return value.Null(), fmt.Errorf("audit: no delegate for %s", call.Model)
	}
	switch call.Action {
	case ActionCreate:
		data, _ := call.Args.Get("data")
		return delegate.Create(ctx, data)
	case ActionUpdate:
		where, _ := call.Args.Get("where")
		data, _ := call.Args.Get("data")
		return delegate.Update(ctx, where, data)
	case ActionDelete:
		where, _ := call.Args.Get("where")
		return delegate.Delete(ctx, where)
	case ActionUpsert:
		where, _ := call.Args.Get("where")
		create, _ := call.Args.Get("create")
		update, _ := call.Args.Get("update")
		row, _, err := delegate.Upsert(ctx, where, create, update)
		return row, err
	case ActionCreateMany:
		data, _ := call.Args.Get("data")
		rows, err := delegate.CreateMany(ctx, toItems(data))
		return value.Seq(rows), err
	case ActionUpdateMany:
		where, _ := call.Args.Get("where")
		data, _ := call.Args.Get("data")
		rows, err := delegate.UpdateMany(ctx, where, data)
		return value.Seq(rows), err
	case ActionDeleteMany:
		where, _ := call.Args.Get("where")
		rows, err := delegate.DeleteMany(ctx, where)
		return value.Seq(rows), err
	default:
		return value.Null(), fmt.Errorf("audit: unsupported action %s for RunDelegate", call.Action)
	}
}

// nestedOpPairs covers the one case the after-state collector's direct
// result-tree extraction cannot see: records deleted by a nested
// delete/deleteMany never appear in the returned tree at all, so their
// only before-state is the pre-fetch snapshot taken before the operation
// ran. Nested creates/updates (and connectOrCreate's create branch) are
// already covered by extractNestedPairs walking the operation's own
// result; connect and connectOrCreate's connect branch attach an
// existing record and produce no log entry at all, on either side.
func nestedOpPairs(ops []NestedOp, prefetch map[string]PreFetchSnapshot) []RecordPair {
	var pairs []RecordPair
	for _, op := range ops {
		switch op.Operation {
		case OpDelete:
			snap, ok := prefetch[op.Path]
			if !ok {
				continue
			}
			pairs = append(pairs, RecordPair{Entity: op.RelatedModel, EntityID: snap.EntityID, Before: Present(snap.Before), After: Absent(), Action: "delete"})
		case OpDeleteMany:
			snap, ok := prefetch[op.Path]
			if !ok {
				continue
			}
			rows, _ := snap.Before.AsSeq()
			for _, r := range rows {
				pairs = append(pairs, RecordPair{Entity: op.RelatedModel, EntityID: idOfValue(r), Before: Present(r), After: Absent(), Action: "delete"})
			}
		}
	}
	return pairs
}

func isEmptyChanges(changes value.Value) bool {
	m, _ := changes.AsMap()
	return len(m) == 0
}

func actorValue(ac auditctx.AuditContext) value.Value {
	m := map[string]value.Value{
		"category": value.Str(ac.Actor.Category),
		"type":     value.Str(ac.Actor.Type),
		"id":       value.Str(ac.Actor.ID),
	}
	if ac.Actor.Name != "" {
		m["name"] = value.Str(ac.Actor.Name)
	}
	return value.Map(m)
}

func storageActorFrom(ac auditctx.AuditContext) storageActor {
	return storageActor{
		Category:       ac.Actor.Category,
		Type:           ac.Actor.Type,
		ID:             ac.Actor.ID,
		RequestContext: requestContextValue(ac),
	}
}

func requestContextValue(ac auditctx.AuditContext) value.Value {
	if ac.Request == nil {
		return value.Null()
	}
	return value.Map(map[string]value.Value{
		"ipAddress": value.Str(ac.Request.IPAddress),
		"userAgent": value.Str(ac.Request.UserAgent),
		"path":      value.Str(ac.Request.Path),
		"method":    value.Str(ac.Request.Method),
	})
}
