package audit

import (
	"testing"

	"github.com/satishbabariya/audit-go/value"
	"github.com/stretchr/testify/assert"
)

func TestDiffOnlyIncludesChangedFields(t *testing.T) {
	before := Present(value.FromAny(map[string]interface{}{"name": "A", "email": "a@x"}))
	after := Present(value.FromAny(map[string]interface{}{"name": "A", "email": "b@x"}))

	changes := Diff(before, after, Config{})
	m, _ := changes.AsMap()
	assert.Len(t, m, 1)
	email, _ := m["email"].AsStr()
	assert.Equal(t, "b@x", email)
}

func TestDiffExcludesGlobalExcludeFields(t *testing.T) {
	before := Present(value.FromAny(map[string]interface{}{"name": "A", "updatedAt": "t0"}))
	after := Present(value.FromAny(map[string]interface{}{"name": "B", "updatedAt": "t1"}))
	cfg := Config{GlobalExcludeFields: map[string]struct{}{"updatedAt": {}}}

	changes := Diff(before, after, cfg)
	m, _ := changes.AsMap()
	assert.Len(t, m, 1)
	_, hasUpdatedAt := m["updatedAt"]
	assert.False(t, hasUpdatedAt)
}

func TestDiffOnlyExcludedFieldProducesEmptyChanges(t *testing.T) {
	before := Present(value.FromAny(map[string]interface{}{"name": "A", "updatedAt": "t0"}))
	after := Present(value.FromAny(map[string]interface{}{"name": "A", "updatedAt": "t1"}))
	cfg := Config{GlobalExcludeFields: map[string]struct{}{"updatedAt": {}}}

	changes := Diff(before, after, cfg)
	m, _ := changes.AsMap()
	assert.Empty(t, m)
}

func TestDiffRedactsConfiguredFields(t *testing.T) {
	before := Present(value.FromAny(map[string]interface{}{"password": "old"}))
	after := Present(value.FromAny(map[string]interface{}{"password": "new"}))
	cfg := Config{RedactFields: map[string]struct{}{"password": {}}}

	changes := Diff(before, after, cfg)
	redacted, ok := changes.Get("password")
	assertRedactedShape(t, redacted, ok, true, true, true)
}

func TestDiffOmitsUnchangedRedactedField(t *testing.T) {
	before := Present(value.FromAny(map[string]interface{}{"password": "same"}))
	after := Present(value.FromAny(map[string]interface{}{"password": "same"}))
	cfg := Config{RedactFields: map[string]struct{}{"password": {}}}

	changes := Diff(before, after, cfg)
	m, _ := changes.AsMap()
	_, ok := m["password"]
	assert.False(t, ok)
}

func TestDiffCreateProducesNoChanges(t *testing.T) {
	before := Absent()
	after := Present(value.FromAny(map[string]interface{}{"password": "new"}))
	cfg := Config{RedactFields: map[string]struct{}{"password": {}}}

	changes := Diff(before, after, cfg)
	assert.True(t, changes.IsNull())
}

func TestDiffDeleteProducesNoChanges(t *testing.T) {
	before := Present(value.FromAny(map[string]interface{}{"password": "old"}))
	after := Absent()
	cfg := Config{RedactFields: map[string]struct{}{"password": {}}}

	changes := Diff(before, after, cfg)
	assert.True(t, changes.IsNull())
}

func assertRedactedShape(t *testing.T, redacted value.Value, ok bool, hadValue, wantIsDifferentPresent, wantIsDifferent bool) {
	t.Helper()
	assert.True(t, ok)
	isRedacted, _ := mustField(redacted, "redacted").AsBool()
	assert.True(t, isRedacted)
	had, _ := mustField(redacted, "hadValue").AsBool()
	assert.Equal(t, hadValue, had)
	isDifferent, hasIsDifferent := redacted.Get("isDifferent")
	assert.Equal(t, wantIsDifferentPresent, hasIsDifferent)
	if hasIsDifferent {
		d, _ := isDifferent.AsBool()
		assert.Equal(t, wantIsDifferent, d)
	}
}

func mustField(v value.Value, key string) value.Value {
	f, _ := v.Get(key)
	return f
}
