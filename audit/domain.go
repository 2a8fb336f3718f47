// Package audit implements the interception engine: operation
// classification, the nested-operation walker, the two-phase pre-fetcher,
// the after-state collector, the aggregate resolver, the differ, the
// batched context enricher, and the log emitter, wired together by the
// Interceptor.
package audit

import (
	"github.com/satishbabariya/audit-go/value"
)

// Action is the classified shape of a call.
type Action int

const (
	ActionCreate Action = iota
	ActionUpdate
	ActionDelete
	ActionUpsert
	ActionCreateMany
	ActionUpdateMany
	ActionDeleteMany
	ActionNestedOnly
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	case ActionUpsert:
		return "upsert"
	case ActionCreateMany:
		return "createMany"
	case ActionUpdateMany:
		return "updateMany"
	case ActionDeleteMany:
		return "deleteMany"
	default:
		return "nestedOnly"
	}
}

// NormalizedAction collapses Action into the three persisted actions:
// createMany→create, updateMany→update, deleteMany→delete; upsert
// resolves dynamically based on pre-fetch (existed ? update : create),
// handled separately wherever the existed flag is known.
func (a Action) NormalizedAction() string {
	switch a {
	case ActionCreate, ActionCreateMany:
		return "create"
	case ActionUpdate, ActionUpdateMany:
		return "update"
	case ActionDelete, ActionDeleteMany:
		return "delete"
	default:
		return ""
	}
}

// OperationCall is one intercepted mutation.
type OperationCall struct {
	Model  string
	Action Action
	Args   value.Value // the full {where?, data?, create?, update?, ...} args tree
	Path   string       // dotted path from root; "" at the root call
}

// ResolvedId is one (category,type,id) triple a log will be attached to.
type ResolvedId struct {
	AggregateCategory string
	AggregateType     string
	AggregateID       string
}

// PreFetchSnapshot is the "before" state of a record about to be
// updated/deleted, keyed by dotted path in the pre-fetch map.
type PreFetchSnapshot struct {
	Path     string
	EntityID string // "__default__" when no stable id exists (composite findMany result)
	Before   value.Value
}

// NestedWriteOp enumerates the nine recognized operation keywords.
type NestedWriteOp string

const (
	OpCreate          NestedWriteOp = "create"
	OpCreateMany      NestedWriteOp = "createMany"
	OpConnect         NestedWriteOp = "connect"
	OpConnectOrCreate NestedWriteOp = "connectOrCreate"
	OpUpdate          NestedWriteOp = "update"
	OpUpdateMany      NestedWriteOp = "updateMany"
	OpDelete          NestedWriteOp = "delete"
	OpDeleteMany      NestedWriteOp = "deleteMany"
	OpUpsert          NestedWriteOp = "upsert"
)

// NestedOp is a detected write at some depth in the args tree.
type NestedOp struct {
	Path         string // dotted, e.g. "postTags.tag"
	FieldName    string
	RelatedModel string
	Operation    NestedWriteOp
	IsList       bool
	Data         value.Value
}

// RecordPair is a (before,after) pair ready for diffing.
type RecordPair struct {
	Entity string // model name
	EntityID string
	Before RecordOrAbsent
	After  RecordOrAbsent
	Action string // create|update|delete, normalized
}

// RecordOrAbsent distinguishes "known to be absent/null" from "not yet
// resolved", so the Differ can tell a genuine null before/after from a
// value the pipeline simply never looked up.
type RecordOrAbsent struct {
	Value   value.Value
	Present bool
}

func Absent() RecordOrAbsent           { return RecordOrAbsent{} }
func Present(v value.Value) RecordOrAbsent { return RecordOrAbsent{Value: v, Present: true} }
