// Package value implements the tagged variant used everywhere the engine
// would otherwise need to duck-type an untyped record: operation args,
// pre-fetch snapshots, diff output, enrichment context blobs.
package value

import (
	"encoding/json"
	"math/big"
	"sort"
)

// Kind discriminates the variant carried by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindBigInt
	KindFloat
	KindStr
	KindSeq
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindBigInt:
		return "bigint"
	case KindFloat:
		return "float"
	case KindStr:
		return "str"
	case KindSeq:
		return "seq"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Value is a closed, pattern-matchable variant over the shapes an ORM
// result tree or operation-args tree can take. It replaces "has property X"
// runtime checks with typed accessors.
type Value struct {
	kind Kind
	b    bool
	i    int64
	big  *big.Int
	f    float64
	s    string
	seq  []Value
	m    map[string]Value
}

func Null() Value               { return Value{kind: KindNull} }
func Bool(b bool) Value         { return Value{kind: KindBool, b: b} }
func Int(i int64) Value         { return Value{kind: KindInt, i: i} }
func BigInt(i *big.Int) Value   { return Value{kind: KindBigInt, big: i} }
func Float(f float64) Value     { return Value{kind: KindFloat, f: f} }
func Str(s string) Value        { return Value{kind: KindStr, s: s} }
func Seq(vs []Value) Value      { return Value{kind: KindSeq, seq: vs} }
func Map(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}
	return Value{kind: KindMap, m: m}
}

func (v Value) Kind() Kind  { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsBool() (bool, bool)       { return v.b, v.kind == KindBool }
func (v Value) AsInt() (int64, bool)       { return v.i, v.kind == KindInt }
func (v Value) AsBigInt() (*big.Int, bool) { return v.big, v.kind == KindBigInt }
func (v Value) AsFloat() (float64, bool)   { return v.f, v.kind == KindFloat }
func (v Value) AsStr() (string, bool)      { return v.s, v.kind == KindStr }
func (v Value) AsSeq() ([]Value, bool)     { return v.seq, v.kind == KindSeq }
func (v Value) AsMap() (map[string]Value, bool) {
	return v.m, v.kind == KindMap
}

// Get looks up a key in a Map value. Returns Null, false if v is not a Map
// or the key is absent.
func (v Value) Get(key string) (Value, bool) {
	m, ok := v.AsMap()
	if !ok {
		return Null(), false
	}
	val, ok := m[key]
	return val, ok
}

// FromAny converts a decoded-JSON-shaped interface{} (map[string]interface{},
// []interface{}, string, float64/json.Number, bool, nil) into a Value tree.
// Integers that do not fit in an int64 are preserved as BigInt rather than
// silently losing precision as a float64 would.
func FromAny(a interface{}) Value {
	switch t := a.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(t)
	case string:
		return Str(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Int(i)
		}
		if bi, ok := new(big.Int).SetString(t.String(), 10); ok {
			return BigInt(bi)
		}
		if f, err := t.Float64(); err == nil {
			return Float(f)
		}
		return Str(t.String())
	case int:
		return Int(int64(t))
	case int64:
		return Int(t)
	case float64:
		if float64(int64(t)) == t {
			return Int(int64(t))
		}
		return Float(t)
	case *big.Int:
		return BigInt(t)
	case []interface{}:
		out := make([]Value, len(t))
		for i, e := range t {
			out[i] = FromAny(e)
		}
		return Seq(out)
	case []Value:
		return Seq(t)
	case map[string]interface{}:
		out := make(map[string]Value, len(t))
		for k, e := range t {
			out[k] = FromAny(e)
		}
		return Map(out)
	case map[string]Value:
		return Map(t)
	case Value:
		return t
	default:
		return Str("")
	}
}

// ToAny converts back to a plain interface{} tree suitable for
// json.Marshal, e.g. when writing an AuditLogEntry's before/after/changes
// columns.
func ToAny(v Value) interface{} {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindBigInt:
		if v.big == nil {
			return nil
		}
		return v.big.String()
	case KindFloat:
		return v.f
	case KindStr:
		return v.s
	case KindSeq:
		out := make([]interface{}, len(v.seq))
		for i, e := range v.seq {
			out[i] = ToAny(e)
		}
		return out
	case KindMap:
		out := make(map[string]interface{}, len(v.m))
		for k, e := range v.m {
			out[k] = ToAny(e)
		}
		return out
	default:
		return nil
	}
}

// Equal implements the deep-equality semantics the Differ relies on: null
// and absent are equal, numbers/strings/bools compare by value, and
// sequences/maps compare structurally.
func Equal(a, b Value) bool {
	if a.kind == KindNull && b.kind == KindNull {
		return true
	}
	switch a.kind {
	case KindBool:
		bb, ok := b.AsBool()
		return ok && a.b == bb
	case KindInt:
		if bi, ok := b.AsInt(); ok {
			return a.i == bi
		}
		if bf, ok := b.AsFloat(); ok {
			return float64(a.i) == bf
		}
		return false
	case KindFloat:
		if bf, ok := b.AsFloat(); ok {
			return a.f == bf
		}
		if bi, ok := b.AsInt(); ok {
			return a.f == float64(bi)
		}
		return false
	case KindBigInt:
		bb, ok := b.AsBigInt()
		if !ok || a.big == nil || bb == nil {
			return false
		}
		return a.big.Cmp(bb) == 0
	case KindStr:
		bs, ok := b.AsStr()
		return ok && a.s == bs
	case KindSeq:
		bs, ok := b.AsSeq()
		if !ok || len(a.seq) != len(bs) {
			return false
		}
		for i := range a.seq {
			if !Equal(a.seq[i], bs[i]) {
				return false
			}
		}
		return true
	case KindMap:
		bm, ok := b.AsMap()
		if !ok {
			return false
		}
		keys := unionKeys(a.m, bm)
		for _, k := range keys {
			if !Equal(a.m[k], bm[k]) {
				return false
			}
		}
		return true
	default:
		return b.kind == KindNull
	}
}

func unionKeys(a, b map[string]Value) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		seen[k] = struct{}{}
	}
	for k := range b {
		seen[k] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Normalize stringifies an id Value per the engine's normalize(id)
// contract: strings unchanged, ints/big ints as decimal, bools as
// "true"/"false". Anything else is an error.
func Normalize(v Value) (string, bool) {
	switch v.kind {
	case KindStr:
		return v.s, true
	case KindInt:
		return Int(v.i).stringifyInt(), true
	case KindBigInt:
		if v.big == nil {
			return "", false
		}
		return v.big.String(), true
	case KindBool:
		if v.b {
			return "true", true
		}
		return "false", true
	default:
		return "", false
	}
}

func (v Value) stringifyInt() string {
	return big.NewInt(v.i).String()
}
