package vm

import (
	"fmt"
	"math"
)

// heapPool keeps heap-allocated payloads (strings, objects) reachable for
// the GC's mark phase even though they are addressed through a tagged
// uint64 index rather than a Go pointer field directly in Value — the same
// trick the teacher's Value used for its string pool, generalized to every
// heap-backed subtype this VM needs and indexed rather than addressed so a
// later append's reallocation can never invalidate an earlier pin. No
// locking: the machine is single-threaded.
var heapPool []interface{}

func pin(v interface{}) uint64 {
	heapPool = append(heapPool, v)
	return uint64(len(heapPool) - 1)
}

// ValueType is the tag half of Value's tagged union: Number, String,
// Boolean, Null, Undefined, Object. The core does not distinguish further
// among Object subtypes.
type ValueType byte

const (
	TypeUndefined ValueType = iota
	TypeNull
	TypeBoolean
	TypeNumber
	TypeString
	TypeObject
)

// Value is an opaque tagged script value. Observable capabilities
// (predicate tests, coercions, get/put/call/construct/hasInstance) are
// methods on Value and Object below; the core never switches on ValueType
// outside of this file and the coercion helpers.
type Value struct {
	Type ValueType
	Data uint64
}

func Undefined() Value { return Value{Type: TypeUndefined} }
func Null() Value      { return Value{Type: TypeNull} }

func Bool(b bool) Value {
	var d uint64
	if b {
		d = 1
	}
	return Value{Type: TypeBoolean, Data: d}
}

func Number(f float64) Value {
	return Value{Type: TypeNumber, Data: math.Float64bits(f)}
}

func String(s string) Value {
	return Value{Type: TypeString, Data: pin(s)}
}

func Obj(o *Object) Value {
	return Value{Type: TypeObject, Data: pin(o)}
}

func (v Value) rawString() string { return heapPool[v.Data].(string) }
func (v Value) rawObject() *Object {
	return heapPool[v.Data].(*Object)
}

func (v Value) IsObject() bool          { return v.Type == TypeObject }
func (v Value) IsUndefinedOrNull() bool { return v.Type == TypeUndefined || v.Type == TypeNull }
func (v Value) IsString() bool          { return v.Type == TypeString }
func (v Value) IsNumber() bool          { return v.Type == TypeNumber }

// AsObject returns the Object backing v; callers must have checked IsObject.
func (v Value) AsObject() *Object { return v.rawObject() }

// ToBoolean is the boolean coercion used by conditional branches.
func (v Value) ToBoolean() bool {
	switch v.Type {
	case TypeUndefined, TypeNull:
		return false
	case TypeBoolean:
		return v.Data != 0
	case TypeNumber:
		n := math.Float64frombits(v.Data)
		return n != 0 && !math.IsNaN(n)
	case TypeString:
		return v.rawString() != ""
	default:
		return true
	}
}

// ToPrimitive is the hint-free primitive coercion `add` uses before
// deciding concat vs numeric: objects delegate to their hook; everything else
// is already primitive.
func (v Value) ToPrimitive() Value {
	if v.Type == TypeObject {
		return v.rawObject().ToPrimitive()
	}
	return v
}

// ToNumber is the numeric coercion behind the arithmetic opcodes.
func (v Value) ToNumber() float64 {
	switch v.Type {
	case TypeUndefined:
		return math.NaN()
	case TypeNull:
		return 0
	case TypeBoolean:
		if v.Data != 0 {
			return 1
		}
		return 0
	case TypeNumber:
		return math.Float64frombits(v.Data)
	case TypeString:
		var f float64
		if _, err := fmt.Sscanf(v.rawString(), "%g", &f); err != nil {
			return math.NaN()
		}
		return f
	case TypeObject:
		return v.ToPrimitive().ToNumber()
	default:
		return math.NaN()
	}
}

func (v Value) ToInt32() int32 {
	f := v.ToNumber()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int32(uint32(int64(f)))
}

func (v Value) ToUint32() uint32 {
	f := v.ToNumber()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return uint32(int64(f))
}

// ToString is the string coercion behind concatenation and property keys.
func (v Value) ToString() string {
	switch v.Type {
	case TypeUndefined:
		return "undefined"
	case TypeNull:
		return "null"
	case TypeBoolean:
		if v.Data != 0 {
			return "true"
		}
		return "false"
	case TypeNumber:
		return formatNumber(math.Float64frombits(v.Data))
	case TypeString:
		return v.rawString()
	case TypeObject:
		return v.ToPrimitive().ToString()
	default:
		return "<unknown>"
	}
}

func formatNumber(f float64) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	if math.IsInf(f, 1) {
		return "Infinity"
	}
	if math.IsInf(f, -1) {
		return "-Infinity"
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}

// ToObject boxes primitives as needed by
// `object_get`/`push_scope` on non-object values.
func (v Value) ToObject() *Object {
	if v.Type == TypeObject {
		return v.rawObject()
	}
	o := NewObject(nil)
	o.Primitive = &v
	return o
}

// StrictEquals implements `stricteq`/`nstricteq`: same type, same
// value, NaN != NaN.
func (v Value) StrictEquals(other Value) bool {
	if v.Type != other.Type {
		return false
	}
	switch v.Type {
	case TypeUndefined, TypeNull:
		return true
	case TypeBoolean:
		return v.Data == other.Data
	case TypeNumber:
		a, b := math.Float64frombits(v.Data), math.Float64frombits(other.Data)
		return a == b
	case TypeString:
		return v.rawString() == other.rawString()
	case TypeObject:
		return v.rawObject() == other.rawObject()
	default:
		return false
	}
}

// AbstractEquals implements `equal`/`nequal`'s coercing comparison.
func (v Value) AbstractEquals(other Value) bool {
	if v.Type == other.Type {
		return v.StrictEquals(other)
	}
	if v.IsUndefinedOrNull() && other.IsUndefinedOrNull() {
		return true
	}
	if v.IsUndefinedOrNull() || other.IsUndefinedOrNull() {
		return false
	}
	if v.Type == TypeNumber && other.Type == TypeString {
		return v.ToNumber() == other.ToNumber()
	}
	if v.Type == TypeString && other.Type == TypeNumber {
		return v.ToNumber() == other.ToNumber()
	}
	if v.Type == TypeBoolean {
		return Number(v.ToNumber()).AbstractEquals(other)
	}
	if other.Type == TypeBoolean {
		return v.AbstractEquals(Number(other.ToNumber()))
	}
	if v.Type == TypeObject {
		return v.ToPrimitive().AbstractEquals(other)
	}
	if other.Type == TypeObject {
		return v.AbstractEquals(other.ToPrimitive())
	}
	return false
}

// TypeOf implements the `typeof` operator: distinct strings per ValueType,
// except a callable Object reports "function" rather than "object".
func (v Value) TypeOf() string {
	switch v.Type {
	case TypeUndefined:
		return "undefined"
	case TypeNull:
		return "object"
	case TypeBoolean:
		return "boolean"
	case TypeNumber:
		return "number"
	case TypeString:
		return "string"
	case TypeObject:
		if v.rawObject().IsCallable() {
			return "function"
		}
		return "object"
	default:
		return "undefined"
	}
}

func (v Value) String() string { return v.ToString() }
