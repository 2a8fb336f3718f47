package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStaticRelationFields(t *testing.T) {
	s := Static{
		"User": ModelSchema{
			Relations: []RelationField{{Name: "posts", RelatedModel: "Post", IsList: true}},
		},
	}
	rels := s.RelationFields("User")
	assert.Len(t, rels, 1)
	assert.Equal(t, "Post", rels[0].RelatedModel)
	assert.Empty(t, s.RelationFields("Unknown"))
}

func TestIsUniqueConstraintSatisfied(t *testing.T) {
	s := Static{
		"Profile": ModelSchema{
			Constraints: []UniqueConstraint{
				{Type: PrimaryKey, Fields: []string{"id"}},
				{Type: UniqueIndex, Fields: []string{"userId", "kind"}},
			},
		},
	}

	uc, ok := IsUniqueConstraintSatisfied(s, "Profile", map[string]struct{}{"id": {}})
	assert.True(t, ok)
	assert.Equal(t, PrimaryKey, uc.Type)

	_, ok = IsUniqueConstraintSatisfied(s, "Profile", map[string]struct{}{"userId": {}})
	assert.False(t, ok, "partial composite key must not satisfy the constraint")

	uc, ok = IsUniqueConstraintSatisfied(s, "Profile", map[string]struct{}{"userId": {}, "kind": {}})
	assert.True(t, ok)
	assert.Equal(t, UniqueIndex, uc.Type)
}
