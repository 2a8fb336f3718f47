package audit

import (
	"github.com/satishbabariya/audit-go/schema"
	"github.com/satishbabariya/audit-go/value"
)

// CollectAfter is the After-State Collector. Direct extraction from the
// operation result is the only source implemented here. dbclient.Memory
// returns the row(s) the operation produced, with any nested rows
// written in the same call embedded under their relation field;
// dbclient.SQLClient performs no nested writes and returns the data it
// was given. There is no refetch fallback: a nested row that is missing
// from the returned tree gets no after-state and therefore no log.
func CollectAfter(call OperationCall, meta schema.Metadata, result PreFetchResult, opResult value.Value) []RecordPair {
	switch call.Action {
	case ActionCreate, ActionUpdate:
		norm := call.Action.NormalizedAction()
		before := Absent()
		if call.Action == ActionUpdate {
			before = result.RootBefore
		}
		pairs := []RecordPair{{Entity: call.Model, EntityID: idOfValue(opResult), Before: before, After: Present(opResult), Action: norm}}
		return append(pairs, extractNestedPairs(call.Model, opResult, meta, result, "")...)

	case ActionDelete:
		return []RecordPair{{Entity: call.Model, EntityID: idOf(result.RootBefore), Before: result.RootBefore, After: Absent(), Action: "delete"}}

	case ActionCreateMany:
		rows, _ := opResult.AsSeq()
		pairs := make([]RecordPair, 0, len(rows))
		for _, r := range rows {
			pairs = append(pairs, RecordPair{Entity: call.Model, EntityID: idOfValue(r), Before: Absent(), After: Present(r), Action: "create"})
		}
		return pairs

	case ActionUpdateMany:
		beforeByID := indexByID(result.RootBeforeMany)
		rows, _ := opResult.AsSeq()
		pairs := make([]RecordPair, 0, len(rows))
		for _, r := range rows {
			id := idOfValue(r)
			before := Absent()
			if b, ok := beforeByID[id]; ok {
				before = Present(b)
			}
			pairs = append(pairs, RecordPair{Entity: call.Model, EntityID: id, Before: before, After: Present(r), Action: "update"})
		}
		return pairs

	case ActionDeleteMany:
		pairs := make([]RecordPair, 0, len(result.RootBeforeMany))
		for _, r := range result.RootBeforeMany {
			pairs = append(pairs, RecordPair{Entity: call.Model, EntityID: idOfValue(r), Before: Present(r), After: Absent(), Action: "delete"})
		}
		return pairs

	case ActionUpsert:
		action := "create"
		before := Absent()
		if result.RootExisted != nil && *result.RootExisted {
			action = "update"
			before = result.RootBefore
		}
		pairs := []RecordPair{{Entity: call.Model, EntityID: idOfValue(opResult), Before: before, After: Present(opResult), Action: action}}
		return append(pairs, extractNestedPairs(call.Model, opResult, meta, result, "")...)

	default:
		return nil
	}
}

// extractNestedPairs walks only the paths that result.NestedOps (the
// branch-pruned walker output) identifies as an actual write on the
// target entity - create/createMany/update/updateMany/upsert, and
// connectOrCreate's create branch. It must not walk every relation field
// present in row: dbclient implementations echo a connect target (and
// any other already-populated relation) into the parent row regardless
// of whether this call wrote it, and connect/connectOrCreate-in-connect-mode
// attach an existing record with no write of their own.
func extractNestedPairs(model string, row value.Value, meta schema.Metadata, result PreFetchResult, path string) []RecordPair {
	return walkNestedPairs(model, row, meta, result, path, writeNestedPaths(result.NestedOps, result.Map))
}

// writeNestedPaths returns the set of dotted paths (from result.NestedOps)
// that correspond to a write on the related entity, keyed the same way
// NestedOp.Path/the walker's subpath are built. connect is never
// included; connectOrCreate is included only when prefetch shows the
// target did not already exist, i.e. its create branch ran.
func writeNestedPaths(ops []NestedOp, prefetch map[string]PreFetchSnapshot) map[string]struct{} {
	paths := map[string]struct{}{}
	for _, op := range ops {
		switch op.Operation {
		case OpCreate, OpCreateMany, OpUpdate, OpUpdateMany, OpUpsert:
			paths[op.Path] = struct{}{}
		case OpConnectOrCreate:
			if _, existed := prefetch[op.Path]; !existed {
				paths[op.Path] = struct{}{}
			}
		}
	}
	return paths
}

func walkNestedPairs(model string, row value.Value, meta schema.Metadata, result PreFetchResult, path string, writePaths map[string]struct{}) []RecordPair {
	m, ok := row.AsMap()
	if !ok {
		return nil
	}
	var pairs []RecordPair
	for _, rel := range meta.RelationFields(model) {
		subpath := joinPath(path, rel.Name)
		if _, isWrite := writePaths[subpath]; !isWrite {
			continue
		}
		fieldVal, ok := m[rel.Name]
		if !ok {
			continue
		}
		if rel.IsList {
			items, _ := fieldVal.AsSeq()
			for _, item := range items {
				pairs = append(pairs, nestedPair(rel.RelatedModel, item, result, subpath)...)
				pairs = append(pairs, walkNestedPairs(rel.RelatedModel, item, meta, result, subpath, writePaths)...)
			}
		} else if !fieldVal.IsNull() {
			pairs = append(pairs, nestedPair(rel.RelatedModel, fieldVal, result, subpath)...)
			pairs = append(pairs, walkNestedPairs(rel.RelatedModel, fieldVal, meta, result, subpath, writePaths)...)
		}
	}
	return pairs
}

func nestedPair(relatedModel string, item value.Value, result PreFetchResult, subpath string) []RecordPair {
	id := idOfValue(item)
	before := Absent()
	if snap, ok := result.Map[subpath]; ok {
		before = matchBeforeByID(snap, id)
	}
	action := "create"
	if before.Present {
		action = "update"
	}
	pair := RecordPair{Entity: relatedModel, EntityID: id, Before: before, After: Present(item), Action: action}
	return []RecordPair{pair}
}

func matchBeforeByID(snap PreFetchSnapshot, id string) RecordOrAbsent {
	if snap.EntityID == id {
		return Present(snap.Before)
	}
	if seq, ok := snap.Before.AsSeq(); ok {
		for _, r := range seq {
			if idOfValue(r) == id {
				return Present(r)
			}
		}
	}
	return Absent()
}

func indexByID(rows []value.Value) map[string]value.Value {
	out := make(map[string]value.Value, len(rows))
	for _, r := range rows {
		out[idOfValue(r)] = r
	}
	return out
}

func idOfValue(v value.Value) string {
	id, ok := v.Get("id")
	if !ok {
		return ""
	}
	s, _ := id.AsStr()
	return s
}

func idOf(r RecordOrAbsent) string {
	if !r.Present {
		return ""
	}
	return idOfValue(r.Value)
}
