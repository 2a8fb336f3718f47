package commands

import "github.com/satishbabariya/audit-go/schema"

// demoSchema wires up the five demo models: User, Post (many, FK to
// User), and a three-deep one-to-one chain Profile -> Avatar ->
// AvatarImage, enough to exercise both the flat nested-create fan-out and
// the two-level nested-upsert branch-prune scenarios.
func demoSchema() schema.Static {
	return schema.Static{
		"User": {
			Relations: []schema.RelationField{
				{Name: "posts", RelatedModel: "Post", IsList: true, ForeignKey: "authorId"},
				{Name: "profile", RelatedModel: "Profile", IsList: false, ForeignKey: "userId"},
			},
			Constraints: []schema.UniqueConstraint{
				{Type: schema.PrimaryKey, Fields: []string{"id"}},
				{Type: schema.UniqueIndex, Fields: []string{"email"}},
			},
		},
		"Post": {
			Relations: []schema.RelationField{
				{Name: "author", RelatedModel: "User", IsList: false, ForeignKey: "authorId"},
			},
			Constraints: []schema.UniqueConstraint{
				{Type: schema.PrimaryKey, Fields: []string{"id"}},
			},
		},
		"Profile": {
			Relations: []schema.RelationField{
				{Name: "user", RelatedModel: "User", IsList: false, ForeignKey: "userId"},
				{Name: "avatar", RelatedModel: "Avatar", IsList: false, ForeignKey: "profileId"},
			},
			Constraints: []schema.UniqueConstraint{
				{Type: schema.PrimaryKey, Fields: []string{"id"}},
				{Type: schema.UniqueIndex, Fields: []string{"userId"}},
			},
		},
		"Avatar": {
			Relations: []schema.RelationField{
				{Name: "profile", RelatedModel: "Profile", IsList: false, ForeignKey: "profileId"},
				{Name: "image", RelatedModel: "AvatarImage", IsList: false, ForeignKey: "avatarId"},
			},
			Constraints: []schema.UniqueConstraint{
				{Type: schema.PrimaryKey, Fields: []string{"id"}},
				{Type: schema.UniqueIndex, Fields: []string{"profileId"}},
			},
		},
		"AvatarImage": {
			Relations: []schema.RelationField{
				{Name: "avatar", RelatedModel: "Avatar", IsList: false, ForeignKey: "avatarId"},
			},
			Constraints: []schema.UniqueConstraint{
				{Type: schema.PrimaryKey, Fields: []string{"id"}},
				{Type: schema.UniqueIndex, Fields: []string{"avatarId"}},
			},
		},
	}
}
