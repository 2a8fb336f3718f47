package audit

import (
	"context"
	"math/rand"
	"time"

	"github.com/satishbabariya/audit-go/storage"
	"github.com/satishbabariya/audit-go/value"
)

// ToEntries converts a batch of enriched drafts into persisted rows,
// applying per-(call,record,aggregate) sampling: each triple is kept
// independently with probability cfg.Performance.Sampling, so a single
// call with several aggregates can log some and drop others.
func ToEntries(entries []EnrichedEntry, actor storageActor, now time.Time, idGen func() string, cfg Config) []storage.Entry {
	rate := cfg.Performance.Sampling
	redact := func(r RecordOrAbsent) value.Value {
		m, ok := r.Value.AsMap()
		if !r.Present || !ok {
			return r.Value
		}
		out := make(map[string]value.Value, len(m))
		for k, v := range m {
			if isRedacted(k, v, cfg) {
				v = Redacted(!v.IsNull(), nil)
			}
			out[k] = v
		}
		return value.Map(out)
	}
	out := make([]storage.Entry, 0, len(entries))
	for _, e := range entries {
		if rate < 1 && rand.Float64() >= rate {
			continue
		}
		out = append(out, storage.Entry{
			ID:                idGen(),
			EntityCategory:    entityCategory(e.Pair.Entity, cfg),
			EntityType:        e.Pair.Entity,
			EntityID:          e.Pair.EntityID,
			EntityContext:     e.EntityContext,
			AggregateCategory: e.Resolved.AggregateCategory,
			AggregateType:     e.Resolved.AggregateType,
			AggregateID:       e.Resolved.AggregateID,
			AggregateContext:  e.AggregateContext,
			ActorCategory:     actor.Category,
			ActorType:         actor.Type,
			ActorID:           actor.ID,
			ActorContext:      e.ActorContext,
			Action:            storageAction(e.Pair.Action),
			Before:            redact(e.Pair.Before),
			After:             redact(e.Pair.After),
			Changes:           e.Changes,
			RequestContext:    actor.RequestContext,
			CreatedAt:         now,
		})
	}
	return out
}

// storageActor is the flattened actor identity plus request context read
// out of the AuditContext once per call, handed to ToEntries rather than
// re-read per entry.
type storageActor struct {
	Category       string
	Type           string
	ID             string
	RequestContext value.Value
}

func entityCategory(model string, cfg Config) string {
	if ec, ok := cfg.AggregateMapping[model]; ok && ec.Category != "" {
		return ec.Category
	}
	return "model"
}

func storageAction(a string) storage.Action {
	switch a {
	case "create":
		return storage.ActionCreate
	case "update":
		return storage.ActionUpdate
	case "delete":
		return storage.ActionDelete
	default:
		return storage.Action(a)
	}
}

// Emit is the Log Emitter. Under awaitWrite=true it writes synchronously
// and returns the writer's error to the caller (an AuditError{Phase:
// PhaseEmission}, routed through policy - the default StrategyThrow means
// a write failure rolls back the original operation when the writer
// shares its transaction, the "commit-coupled" mode). Under
// awaitWrite=false it hands the rows to asyncEmitter and
// returns immediately; any failure there only ever reaches
// cfg.ErrorPolicy.Handler, since there is no caller left to propagate to.
func Emit(ctx context.Context, rows []storage.Entry, writer storage.Writer, async *AsyncEmitter, cfg Config) error {
	if len(rows) == 0 {
		return nil
	}
	if cfg.Performance.AwaitWrite || async == nil {
		if err := writeWithRetry(ctx, writer, rows, cfg); err != nil {
			ae := NewAuditError(PhaseEmission, "", "write", nil, err)
			return cfg.ErrorPolicy.Apply(ae, cfg.Logger)
		}
		return nil
	}
	async.Enqueue(rows)
	return nil
}

func writeWithRetry(ctx context.Context, writer storage.Writer, rows []storage.Entry, cfg Config) error {
	var err error
	attempts := cfg.Performance.MaxEmitRetries
	if attempts <= 0 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		if err = writer.Write(ctx, rows); err == nil {
			return nil
		}
		if !storage.IsSerializationError(err) {
			return err
		}
	}
	return err
}

// AsyncEmitter is the background writer for awaitWrite=false: it writes
// through the Writer it was built with (the Interceptor passes
// cfg.Writer), never the caller's transaction, which may already be
// committed or rolled back by the time the write happens.
// AsyncQueueSize==0 means unbounded: every call spawns its own
// goroutine. A positive size is the capacity of a queue drained by one
// worker goroutine; once the queue is full, Enqueue logs a warning and
// spawns an overflow goroutine for the batch rather than blocking the
// caller or dropping the entries, so overflow writes are not bounded.
type AsyncEmitter struct {
	writer storage.Writer
	cfg    Config
	queue  chan []storage.Entry
	done   chan struct{}
}

func NewAsyncEmitter(writer storage.Writer, cfg Config) *AsyncEmitter {
	e := &AsyncEmitter{writer: writer, cfg: cfg}
	if cfg.Performance.AsyncQueueSize > 0 {
		e.queue = make(chan []storage.Entry, cfg.Performance.AsyncQueueSize)
		e.done = make(chan struct{})
		go e.run()
	}
	return e
}

func (e *AsyncEmitter) run() {
	for rows := range e.queue {
		e.write(rows)
	}
	close(e.done)
}

func (e *AsyncEmitter) Enqueue(rows []storage.Entry) {
	if e.queue == nil {
		go e.write(rows)
		return
	}
	select {
	case e.queue <- rows:
	default:
		if e.cfg.Logger != nil {
			e.cfg.Logger.Warnw("audit async queue at capacity, spilling to overflow goroutine", "size", cap(e.queue))
		}
		go e.write(rows)
	}
}

func (e *AsyncEmitter) write(rows []storage.Entry) {
	if err := writeWithRetry(context.Background(), e.writer, rows, e.cfg); err != nil {
		ae := NewAuditError(PhaseEmission, "", "async-write", nil, err)
		if e.cfg.ErrorPolicy.Handler != nil {
			_ = e.cfg.ErrorPolicy.Handler(*ae)
		} else if e.cfg.Logger != nil {
			e.cfg.Logger.Errorw("audit async write failed", "error", err)
		}
	}
}

// Close stops accepting new work and waits for the queue to drain, for
// bounded emitters only; unbounded (per-call goroutine) emitters have
// nothing to drain.
func (e *AsyncEmitter) Close() {
	if e.queue == nil {
		return
	}
	close(e.queue)
	<-e.done
}
