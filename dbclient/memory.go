package dbclient

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/satishbabariya/audit-go/schema"
	"github.com/satishbabariya/audit-go/value"
)

// Memory is an in-memory fake of the concrete ORM binding the engine
// treats as an external collaborator. It interprets the same nested-write
// argument shapes the engine's walker/pre-fetcher inspect, so the pipeline
// can be exercised end to end without a live database.
//
// It is not a general-purpose ORM. Nested writes inside Create support
// create, connect and connectOrCreate; inside Update and Upsert they
// support create, connect, update, delete and upsert. Any other nested
// keyword (createMany, updateMany, deleteMany, and connectOrCreate
// inside an update) is ignored. It
// resolves relations via schema.RelationField.ForeignKey, the same
// convention the AggregateResolver's foreignKey helper uses.
type Memory struct {
	meta schema.Metadata
	mu   sync.Mutex
	db   map[string]*modelStore
}

type modelStore struct {
	records map[string]map[string]value.Value
	nextID  int
}

// NewMemory builds an empty in-memory client bound to the given schema.
func NewMemory(meta schema.Metadata) *Memory {
	return &Memory{meta: meta, db: map[string]*modelStore{}}
}

func (m *Memory) store(model string) *modelStore {
	s, ok := m.db[model]
	if !ok {
		s = &modelStore{records: map[string]map[string]value.Value{}}
		m.db[model] = s
	}
	return s
}

func (m *Memory) Delegate(model string) (Delegate, bool) {
	return &memDelegate{model: model, m: m}, true
}

// Transaction snapshots the whole store, runs fn, and restores the
// snapshot if fn returns an error — giving the fake real rollback
// semantics so atomicity can be verified against it directly, including
// for the audit log rows
// themselves when storage.ClientWriter targets this same Memory instance.
func (m *Memory) Transaction(ctx context.Context, fn func(ctx context.Context, tx Client) error) error {
	m.mu.Lock()
	snapshot := m.clone()
	m.mu.Unlock()

	if err := fn(ctx, m); err != nil {
		m.mu.Lock()
		m.db = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *Memory) clone() map[string]*modelStore {
	out := make(map[string]*modelStore, len(m.db))
	for model, s := range m.db {
		recs := make(map[string]map[string]value.Value, len(s.records))
		for id, rec := range s.records {
			recs[id] = cloneRecord(rec)
		}
		out[model] = &modelStore{records: recs, nextID: s.nextID}
	}
	return out
}

func cloneRecord(rec map[string]value.Value) map[string]value.Value {
	cp := value.FromAny(value.ToAny(value.Map(rec)))
	m, _ := cp.AsMap()
	return m
}

type memDelegate struct {
	model string
	m     *Memory
}

func (d *memDelegate) newID() string {
	d.m.mu.Lock()
	defer d.m.mu.Unlock()
	s := d.m.store(d.model)
	s.nextID++
	return strconv.Itoa(s.nextID)
}

func flattenWhere(where value.Value) map[string]value.Value {
	out := map[string]value.Value{}
	m, ok := where.AsMap()
	if !ok {
		return out
	}
	for k, v := range m {
		if k == "AND" || k == "OR" || k == "NOT" {
			continue // logical composition unsupported by the fake
		}
		if sub, ok := v.AsMap(); ok && strings.Contains(k, "_") {
			for sk, sv := range sub {
				out[sk] = sv
			}
			continue
		}
		out[k] = v
	}
	return out
}

func matchesWhere(rec map[string]value.Value, where value.Value) bool {
	flat := flattenWhere(where)
	if len(flat) == 0 {
		return true
	}
	for k, v := range flat {
		rv, ok := rec[k]
		if !ok || !value.Equal(rv, v) {
			return false
		}
	}
	return true
}

func (d *memDelegate) findFirst(where value.Value) (string, map[string]value.Value, bool) {
	s := d.m.store(d.model)
	for id, rec := range s.records {
		if matchesWhere(rec, where) {
			return id, rec, true
		}
	}
	return "", nil, false
}

func (d *memDelegate) FindUnique(ctx context.Context, where value.Value) (value.Value, error) {
	_, rec, ok := d.findFirst(where)
	if !ok {
		return value.Null(), nil
	}
	return value.Map(cloneRecord(rec)), nil
}

func (d *memDelegate) FindMany(ctx context.Context, where value.Value) ([]value.Value, error) {
	s := d.m.store(d.model)
	out := []value.Value{}
	for _, rec := range s.records {
		if matchesWhere(rec, where) {
			out = append(out, value.Map(cloneRecord(rec)))
		}
	}
	return out, nil
}

func (d *memDelegate) relation(name string) (schema.RelationField, bool) {
	for _, r := range d.m.meta.RelationFields(d.model) {
		if r.Name == name {
			return r, true
		}
	}
	return schema.RelationField{}, false
}

// Create interprets data's scalar fields directly and any relation-named
// keys as nested operations, using the recognized operation keywords.
func (d *memDelegate) Create(ctx context.Context, data value.Value) (value.Value, error) {
	fields, _ := data.AsMap()
	rec := map[string]value.Value{}
	id := d.newID()
	rec["id"] = value.Str(id)

	var nested []func() error
	for k, v := range fields {
		if rel, ok := d.relation(k); ok {
			rv := v
			relField := rel
			nested = append(nested, func() error {
				result, err := d.applyRelationCreate(ctx, relField, rv, rec, id)
				if err != nil {
					return err
				}
				rec[k] = result
				return nil
			})
			continue
		}
		rec[k] = v
	}
	for _, fn := range nested {
		if err := fn(); err != nil {
			return value.Null(), err
		}
	}

	d.m.mu.Lock()
	d.m.store(d.model).records[id] = rec
	d.m.mu.Unlock()
	return value.Map(rec), nil
}

// applyRelationCreate handles the nested-op object attached to a relation
// field during a parent Create, e.g. {"create": [...]}, {"connect": {...}}.
func (d *memDelegate) applyRelationCreate(ctx context.Context, rel schema.RelationField, ops value.Value, parent map[string]value.Value, parentID string) (value.Value, error) {
	opsMap, ok := ops.AsMap()
	if !ok {
		return value.Null(), nil
	}
	relDelegate := &memDelegate{model: rel.RelatedModel, m: d.m}

	if createVal, ok := opsMap["create"]; ok {
		items := toList(createVal)
		created := make([]value.Value, 0, len(items))
		for _, item := range items {
			item = withForeignKey(item, rel, parent, parentID, true)
			row, err := relDelegate.Create(ctx, item)
			if err != nil {
				return value.Null(), err
			}
			if !rel.IsList {
				parent[rel.ForeignKey] = mustGetID(row)
			}
			created = append(created, row)
		}
		if rel.IsList {
			return value.Seq(created), nil
		}
		if len(created) > 0 {
			return created[0], nil
		}
	}

	if connectVal, ok := opsMap["connect"]; ok {
		wheres := toList(connectVal)
		connected := make([]value.Value, 0, len(wheres))
		for _, w := range wheres {
			_, rec, found := relDelegate.findFirst(w)
			if !found {
				return value.Null(), fmt.Errorf("dbclient: connect target not found on %s", rel.RelatedModel)
			}
			connected = append(connected, d.linkExisting(rel, parent, parentID, rec))
		}
		if rel.IsList {
			return value.Seq(connected), nil
		}
		if len(connected) > 0 {
			return connected[0], nil
		}
	}

	if coVal, ok := opsMap["connectOrCreate"]; ok {
		items := toList(coVal)
		out := make([]value.Value, 0, len(items))
		for _, item := range items {
			itemMap, _ := item.AsMap()
			where := itemMap["where"]
			if _, rec, found := relDelegate.findFirst(where); found {
				out = append(out, d.linkExisting(rel, parent, parentID, rec))
				continue
			}
			createData := withForeignKey(itemMap["create"], rel, parent, parentID, true)
			row, err := relDelegate.Create(ctx, createData)
			if err != nil {
				return value.Null(), err
			}
			if !rel.IsList {
				parent[rel.ForeignKey] = mustGetID(row)
			}
			out = append(out, row)
		}
		if rel.IsList {
			return value.Seq(out), nil
		}
		if len(out) > 0 {
			return out[0], nil
		}
	}

	return value.Null(), nil
}

func (d *memDelegate) linkExisting(rel schema.RelationField, parent map[string]value.Value, parentID string, child map[string]value.Value) value.Value {
	if rel.IsList {
		child[rel.ForeignKey] = value.Str(parentID)
		d.m.mu.Lock()
		d.m.store(rel.RelatedModel).records[mustIDString(child)] = child
		d.m.mu.Unlock()
		return value.Map(child)
	}
	parent[rel.ForeignKey] = mustGetID(value.Map(child))
	return value.Map(child)
}

func withForeignKey(data value.Value, rel schema.RelationField, parent map[string]value.Value, parentID string, isNewChild bool) value.Value {
	m, _ := data.AsMap()
	cp := map[string]value.Value{}
	for k, v := range m {
		cp[k] = v
	}
	if rel.IsList && isNewChild {
		cp[rel.ForeignKey] = value.Str(parentID)
	}
	return value.Map(cp)
}

func toList(v value.Value) []value.Value {
	if seq, ok := v.AsSeq(); ok {
		return seq
	}
	if v.IsNull() {
		return nil
	}
	return []value.Value{v}
}

func mustGetID(v value.Value) value.Value {
	m, _ := v.AsMap()
	return m["id"]
}

func mustIDString(rec map[string]value.Value) string {
	s, _ := rec["id"].AsStr()
	return s
}

func (d *memDelegate) CreateMany(ctx context.Context, data []value.Value) ([]value.Value, error) {
	out := make([]value.Value, 0, len(data))
	for _, item := range data {
		row, err := d.Create(ctx, item)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

func (d *memDelegate) applyScalarUpdate(rec map[string]value.Value, data map[string]value.Value) {
	for k, v := range data {
		if _, isRel := d.relation(k); isRel {
			continue
		}
		rec[k] = v
	}
}

func (d *memDelegate) applyNestedUpdate(ctx context.Context, rec map[string]value.Value, recID string, data map[string]value.Value) error {
	for k, v := range data {
		rel, isRel := d.relation(k)
		if !isRel {
			continue
		}
		if err := d.applyRelationUpdate(ctx, rel, v, rec, recID); err != nil {
			return err
		}
	}
	return nil
}

func (d *memDelegate) applyRelationUpdate(ctx context.Context, rel schema.RelationField, ops value.Value, parent map[string]value.Value, parentID string) error {
	opsMap, ok := ops.AsMap()
	if !ok {
		return nil
	}
	relDelegate := &memDelegate{model: rel.RelatedModel, m: d.m}

	if cv, ok := opsMap["create"]; ok {
		if _, err := d.applyRelationCreate(ctx, rel, value.Map(map[string]value.Value{"create": cv}), parent, parentID); err != nil {
			return err
		}
	}
	if cv, ok := opsMap["connect"]; ok {
		if _, err := d.applyRelationCreate(ctx, rel, value.Map(map[string]value.Value{"connect": cv}), parent, parentID); err != nil {
			return err
		}
	}

	if upVal, ok := opsMap["update"]; ok {
		for _, item := range toList(upVal) {
			itemMap, _ := item.AsMap()
			where := itemMap["where"]
			updData, _ := itemMap["data"].AsMap()
			if updData == nil {
				updData, _ = item.AsMap() // bare data form for to-one relations
			}
			var target string
			var rec map[string]value.Value
			if rel.IsList {
				id, r, found := relDelegate.findFirst(addFK(where, rel, parentID))
				if !found {
					continue
				}
				target, rec = id, r
			} else {
				fk, ok := parent[rel.ForeignKey]
				if !ok {
					continue
				}
				id, r, found := relDelegate.findFirst(value.Map(map[string]value.Value{"id": fk}))
				if !found {
					continue
				}
				target, rec = id, r
			}
			relDelegate.applyScalarUpdate(rec, updData)
			if err := relDelegate.applyNestedUpdate(ctx, rec, target, updData); err != nil {
				return err
			}
			d.m.mu.Lock()
			d.m.store(rel.RelatedModel).records[target] = rec
			d.m.mu.Unlock()
		}
	}

	if delVal, ok := opsMap["delete"]; ok {
		for _, item := range toList(delVal) {
			if rel.IsList {
				id, _, found := relDelegate.findFirst(addFK(item, rel, parentID))
				if found {
					d.m.mu.Lock()
					delete(d.m.store(rel.RelatedModel).records, id)
					d.m.mu.Unlock()
				}
			} else if fk, ok := parent[rel.ForeignKey]; ok {
				id, _ := fk.AsStr()
				d.m.mu.Lock()
				delete(d.m.store(rel.RelatedModel).records, id)
				d.m.mu.Unlock()
				delete(parent, rel.ForeignKey)
			}
		}
	}

	if upsVal, ok := opsMap["upsert"]; ok {
		for _, item := range toList(upsVal) {
			itemMap, _ := item.AsMap()
			where := itemMap["where"]
			create := itemMap["create"]
			update, _ := itemMap["update"].AsMap()
			var found bool
			var id string
			if rel.IsList {
				id, _, found = relDelegate.findFirst(addFK(where, rel, parentID))
			} else if fk, ok := parent[rel.ForeignKey]; ok {
				id, _ = fk.AsStr()
				_, _, found = relDelegate.findFirst(value.Map(map[string]value.Value{"id": fk}))
			}
			if found {
				rec := d.m.store(rel.RelatedModel).records[id]
				relDelegate.applyScalarUpdate(rec, update)
				if err := relDelegate.applyNestedUpdate(ctx, rec, id, update); err != nil {
					return err
				}
				d.m.mu.Lock()
				d.m.store(rel.RelatedModel).records[id] = rec
				d.m.mu.Unlock()
			} else {
				createData := withForeignKey(create, rel, parent, parentID, true)
				row, err := relDelegate.Create(ctx, createData)
				if err != nil {
					return err
				}
				if !rel.IsList {
					parent[rel.ForeignKey] = mustGetID(row)
				}
			}
		}
	}

	d.refreshRelationField(rel, parent, parentID)
	return nil
}

// refreshRelationField re-reads rel's current related row(s) from their own
// store and rewrites parent[rel.Name], so a parent record returned after an
// Update that touched a relation reflects the post-mutation state rather
// than whatever was embedded at create time.
func (d *memDelegate) refreshRelationField(rel schema.RelationField, parent map[string]value.Value, parentID string) {
	relDelegate := &memDelegate{model: rel.RelatedModel, m: d.m}
	if rel.IsList {
		rows, _ := relDelegate.FindMany(context.Background(), value.FromAny(map[string]interface{}{rel.ForeignKey: parentID}))
		parent[rel.Name] = value.Seq(rows)
		return
	}
	fk, ok := parent[rel.ForeignKey]
	if !ok || fk.IsNull() {
		parent[rel.Name] = value.Null()
		return
	}
	row, err := relDelegate.FindUnique(context.Background(), value.FromAny(map[string]interface{}{"id": fk}))
	if err != nil {
		parent[rel.Name] = value.Null()
		return
	}
	parent[rel.Name] = row
}

func addFK(where value.Value, rel schema.RelationField, parentID string) value.Value {
	m, _ := where.AsMap()
	cp := map[string]value.Value{}
	for k, v := range m {
		cp[k] = v
	}
	if rel.IsList {
		cp[rel.ForeignKey] = value.Str(parentID)
	}
	return value.Map(cp)
}

func (d *memDelegate) Update(ctx context.Context, where, data value.Value) (value.Value, error) {
	id, rec, found := d.findFirst(where)
	if !found {
		return value.Null(), ErrRecordNotFound
	}
	fields, _ := data.AsMap()
	d.applyScalarUpdate(rec, fields)
	if err := d.applyNestedUpdate(ctx, rec, id, fields); err != nil {
		return value.Null(), err
	}
	d.m.mu.Lock()
	d.m.store(d.model).records[id] = rec
	d.m.mu.Unlock()
	return value.Map(rec), nil
}

func (d *memDelegate) UpdateMany(ctx context.Context, where, data value.Value) ([]value.Value, error) {
	s := d.m.store(d.model)
	fields, _ := data.AsMap()
	out := []value.Value{}
	for id, rec := range s.records {
		if !matchesWhere(rec, where) {
			continue
		}
		d.applyScalarUpdate(rec, fields)
		s.records[id] = rec
		out = append(out, value.Map(rec))
	}
	return out, nil
}

func (d *memDelegate) Delete(ctx context.Context, where value.Value) (value.Value, error) {
	id, rec, found := d.findFirst(where)
	if !found {
		return value.Null(), ErrRecordNotFound
	}
	d.m.mu.Lock()
	delete(d.m.store(d.model).records, id)
	d.m.mu.Unlock()
	return value.Map(rec), nil
}

func (d *memDelegate) DeleteMany(ctx context.Context, where value.Value) ([]value.Value, error) {
	s := d.m.store(d.model)
	out := []value.Value{}
	var ids []string
	for id, rec := range s.records {
		if matchesWhere(rec, where) {
			out = append(out, value.Map(rec))
			ids = append(ids, id)
		}
	}
	d.m.mu.Lock()
	for _, id := range ids {
		delete(s.records, id)
	}
	d.m.mu.Unlock()
	return out, nil
}

func (d *memDelegate) Upsert(ctx context.Context, where, create, update value.Value) (value.Value, bool, error) {
	id, rec, found := d.findFirst(where)
	if found {
		fields, _ := update.AsMap()
		d.applyScalarUpdate(rec, fields)
		if err := d.applyNestedUpdate(ctx, rec, id, fields); err != nil {
			return value.Null(), true, err
		}
		d.m.mu.Lock()
		d.m.store(d.model).records[id] = rec
		d.m.mu.Unlock()
		return value.Map(rec), true, nil
	}
	row, err := d.Create(ctx, create)
	return row, false, err
}
