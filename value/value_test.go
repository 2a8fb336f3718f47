package value

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromAnyRoundTrip(t *testing.T) {
	in := map[string]interface{}{
		"name":   "A",
		"age":    float64(30),
		"active": true,
		"tags":   []interface{}{"x", "y"},
		"parent": nil,
	}
	v := FromAny(in)
	m, ok := v.AsMap()
	assert.True(t, ok)
	name, _ := m["name"].AsStr()
	assert.Equal(t, "A", name)
	age, _ := m["age"].AsInt()
	assert.Equal(t, int64(30), age)
	assert.True(t, m["parent"].IsNull())

	back := ToAny(v).(map[string]interface{})
	assert.Equal(t, "A", back["name"])
}

func TestEqualNullAndAbsentTreatedEqual(t *testing.T) {
	assert.True(t, Equal(Null(), Null()))
	assert.False(t, Equal(Null(), Str("")))
}

func TestEqualNumeric(t *testing.T) {
	assert.True(t, Equal(Int(3), Float(3)))
	assert.False(t, Equal(Int(3), Int(4)))
}

func TestEqualMapStructural(t *testing.T) {
	a := Map(map[string]Value{"x": Int(1), "y": Str("a")})
	b := Map(map[string]Value{"x": Int(1), "y": Str("a")})
	c := Map(map[string]Value{"x": Int(2), "y": Str("a")})
	assert.True(t, Equal(a, b))
	assert.False(t, Equal(a, c))
}

func TestNormalizeBigIntNoTruncation(t *testing.T) {
	bi, ok := new(big.Int).SetString("123456789012345678901234567890", 10)
	assert.True(t, ok)
	s, ok := Normalize(BigInt(bi))
	assert.True(t, ok)
	assert.Equal(t, "123456789012345678901234567890", s)
}

func TestNormalizeRejectsSeqAndMap(t *testing.T) {
	_, ok := Normalize(Seq([]Value{Int(1)}))
	assert.False(t, ok)
	_, ok = Normalize(Map(map[string]Value{}))
	assert.False(t, ok)
}
