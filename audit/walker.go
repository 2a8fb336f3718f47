package audit

import (
	"github.com/satishbabariya/audit-go/schema"
	"github.com/satishbabariya/audit-go/value"
)

var recognizedKeywords = []NestedWriteOp{
	OpCreate, OpCreateMany, OpConnect, OpConnectOrCreate,
	OpUpdate, OpUpdateMany, OpDelete, OpDeleteMany, OpUpsert,
}

type walkFrame struct {
	model string
	data  value.Value
	path  string
}

// WalkNested is the iterative-DFS Nested Operation Walker, grounded
// conceptually on query/executor/nested_writes.go's per-relation dispatch
// (there: reflect over Go structs; here: over value.Value, since args
// arrive as an untyped tree).
//
// rootExisted controls root-level upsert branch selection: nil means
// "unknown" (phase 1 — explore both create and update branches of a root
// upsert); non-nil means "known" (phase 2 — explore exactly the indicated
// branch). prefetch is nil in phase 1 (explore both branches of every
// nested upsert) and non-nil in phase 2 (prune based on what was found).
func WalkNested(call OperationCall, meta schema.Metadata, prefetch map[string]PreFetchSnapshot, rootExisted *bool) []NestedOp {
	var out []NestedOp
	seen := map[string]struct{}{}

	stack := rootFrames(call, rootExisted)

	for len(stack) > 0 {
		n := len(stack) - 1
		frame := stack[n]
		stack = stack[:n]

		dataMap, ok := frame.data.AsMap()
		if !ok {
			continue
		}
		for fieldName, fieldVal := range dataMap {
			rel, isRel := findRelation(meta, frame.model, fieldName)
			if !isRel {
				continue
			}
			opsMap, ok := fieldVal.AsMap()
			if !ok {
				continue
			}
			subpath := joinPath(frame.path, fieldName)
			for _, kw := range recognizedKeywords {
				opVal, present := opsMap[string(kw)]
				if !present {
					continue
				}
				dedupKey := fieldName + "\x00" + string(kw) + "\x00" + frame.path
				if _, dup := seen[dedupKey]; dup {
					continue
				}
				seen[dedupKey] = struct{}{}

				switch kw {
				case OpCreate, OpCreateMany:
					for _, item := range toItems(opVal) {
						out = append(out, NestedOp{Path: subpath, FieldName: fieldName, RelatedModel: rel.RelatedModel, Operation: kw, IsList: rel.IsList, Data: item})
						stack = append(stack, walkFrame{model: rel.RelatedModel, data: item, path: subpath})
					}
				case OpConnectOrCreate:
					for _, item := range toItems(opVal) {
						out = append(out, NestedOp{Path: subpath, FieldName: fieldName, RelatedModel: rel.RelatedModel, Operation: kw, IsList: rel.IsList, Data: item})
						createData, _ := item.Get("create")
						if prefetch == nil {
							// Phase 1: existence unknown yet; explore the create
							// branch so any writes nested inside it still get
							// pre-fetched if it turns out to be the one that runs.
							stack = append(stack, walkFrame{model: rel.RelatedModel, data: createData, path: subpath})
						} else if _, existed := prefetch[subpath]; !existed {
							stack = append(stack, walkFrame{model: rel.RelatedModel, data: createData, path: subpath})
						}
						// existed: connect branch ran, nothing written to walk.
					}
				case OpConnect:
					out = append(out, NestedOp{Path: subpath, FieldName: fieldName, RelatedModel: rel.RelatedModel, Operation: kw, IsList: rel.IsList, Data: opVal})
				case OpUpdate, OpDelete, OpUpdateMany, OpDeleteMany:
					out = append(out, NestedOp{Path: subpath, FieldName: fieldName, RelatedModel: rel.RelatedModel, Operation: kw, IsList: rel.IsList, Data: opVal})
				case OpUpsert:
					for _, item := range toItems(opVal) {
						out = append(out, NestedOp{Path: subpath, FieldName: fieldName, RelatedModel: rel.RelatedModel, Operation: kw, IsList: rel.IsList, Data: item})
						createData, _ := item.Get("create")
						updateData, _ := item.Get("update")
						if prefetch == nil {
							stack = append(stack, walkFrame{model: rel.RelatedModel, data: createData, path: subpath})
							stack = append(stack, walkFrame{model: rel.RelatedModel, data: updateData, path: subpath})
						} else if _, existed := prefetch[subpath]; existed {
							stack = append(stack, walkFrame{model: rel.RelatedModel, data: updateData, path: subpath})
						} else {
							stack = append(stack, walkFrame{model: rel.RelatedModel, data: createData, path: subpath})
						}
					}
				}
			}
		}
	}
	return out
}

func rootFrames(call OperationCall, rootExisted *bool) []walkFrame {
	switch call.Action {
	case ActionCreate, ActionUpdate, ActionUpdateMany:
		data, _ := call.Args.Get("data")
		return []walkFrame{{model: call.Model, data: data, path: ""}}
	case ActionCreateMany:
		data, _ := call.Args.Get("data")
		items := toItems(data)
		frames := make([]walkFrame, 0, len(items))
		for _, item := range items {
			frames = append(frames, walkFrame{model: call.Model, data: item, path: ""})
		}
		return frames
	case ActionUpsert:
		createData, _ := call.Args.Get("create")
		updateData, _ := call.Args.Get("update")
		if rootExisted == nil {
			return []walkFrame{
				{model: call.Model, data: createData, path: ""},
				{model: call.Model, data: updateData, path: ""},
			}
		}
		if *rootExisted {
			return []walkFrame{{model: call.Model, data: updateData, path: ""}}
		}
		return []walkFrame{{model: call.Model, data: createData, path: ""}}
	default:
		return nil
	}
}

func findRelation(meta schema.Metadata, model, field string) (schema.RelationField, bool) {
	for _, r := range meta.RelationFields(model) {
		if r.Name == field {
			return r, true
		}
	}
	return schema.RelationField{}, false
}

func toItems(v value.Value) []value.Value {
	if seq, ok := v.AsSeq(); ok {
		return seq
	}
	if v.IsNull() {
		return nil
	}
	return []value.Value{v}
}

func joinPath(parent, field string) string {
	if parent == "" {
		return field
	}
	return parent + "." + field
}
