// Package schema defines the injected SchemaMetadata trait: relation
// fields and unique constraints per model, as provided by a concrete ORM
// binding. A Static map-backed implementation is included for tests and
// the demo, adapted from the relation/index shape in
// internal/core/schema/domain/schema.go.
package schema

// RelationField describes one relation on a model.
//
// ForeignKey names the scalar field that carries the relation:
//   - for a to-one relation (IsList == false), it is the FK field on THIS
//     model pointing at the related row (e.g. Post.authorId).
//   - for a to-many relation (IsList == true), it is the FK field on the
//     RELATED model pointing back at this row (e.g. Post.authorId, declared
//     on User's "posts" relation).
//
// This mirrors a common declarative aggregate mapping shape
// ("to('User', foreignKey('authorId'))") closely enough that both the
// in-memory fake client and the AggregateResolver's foreignKey helper can
// share one convention instead of inventing their own.
type RelationField struct {
	Name         string
	RelatedModel string
	IsList       bool
	ForeignKey   string
}

// ConstraintType distinguishes how a unique constraint is declared.
type ConstraintType string

const (
	PrimaryKey  ConstraintType = "primaryKey"
	UniqueIndex ConstraintType = "uniqueIndex"
)

// UniqueConstraint names a set of fields that, together, uniquely
// identify a row.
type UniqueConstraint struct {
	Type   ConstraintType
	Fields []string
	Name   string // optional
}

// Metadata is the injected trait the pre-fetcher and walker consult to
// distinguish real relations from JSON keys that happen to share a name
// with an operation keyword, and to decide whether a WHERE clause can be
// satisfied with findUnique versus findMany.
type Metadata interface {
	RelationFields(model string) []RelationField
	UniqueConstraints(model string) []UniqueConstraint
}

// ModelSchema is one model's static relation/constraint declaration.
type ModelSchema struct {
	Relations   []RelationField
	Constraints []UniqueConstraint
}

// Static is a map-backed Metadata, sufficient for tests and the demo CLI;
// a real binding would derive this from the ORM's own schema source.
type Static map[string]ModelSchema

func (s Static) RelationFields(model string) []RelationField {
	return s[model].Relations
}

func (s Static) UniqueConstraints(model string) []UniqueConstraint {
	return s[model].Constraints
}

// IsUniqueConstraintSatisfied reports whether fieldSet contains exactly the
// fields of some declared unique constraint on model: a full composite
// unique index, a primary key, or a single @unique field all count;
// partial composite keys do not.
func IsUniqueConstraintSatisfied(m Metadata, model string, fieldSet map[string]struct{}) (UniqueConstraint, bool) {
	for _, uc := range m.UniqueConstraints(model) {
		if len(uc.Fields) != len(fieldSet) {
			continue
		}
		all := true
		for _, f := range uc.Fields {
			if _, ok := fieldSet[f]; !ok {
				all = false
				break
			}
		}
		if all {
			return uc, true
		}
	}
	return UniqueConstraint{}, false
}
