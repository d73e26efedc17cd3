package codec

// Kind is the closed set of document field types (spec.md §3).
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindI64
	KindU64
	KindF32
	KindF64
	KindString
	KindBytes
	KindVector
	KindArray
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindI64:
		return "i64"
	case KindU64:
		return "u64"
	case KindF32:
		return "f32"
	case KindF64:
		return "f64"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindVector:
		return "vector<f32>"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Value is the tagged sum type over every field value the engine stores.
// Exactly one field is meaningful for a given Kind; cbor canonical mode
// omits the rest via `omitempty`, keeping the wire form small and
// deterministic since struct field order (not map order) decides layout.
type Value struct {
	Kind Kind `cbor:"kind"`

	Bool   bool      `cbor:"bool,omitempty"`
	I64    int64     `cbor:"i64,omitempty"`
	U64    uint64    `cbor:"u64,omitempty"`
	F32    float32   `cbor:"f32,omitempty"`
	F64    float64   `cbor:"f64,omitempty"`
	Str    string    `cbor:"str,omitempty"`
	Bytes  []byte    `cbor:"bytes,omitempty"`
	Vector []float32 `cbor:"vector,omitempty"`
	Array  []Value   `cbor:"array,omitempty"`
	Map    map[string]Value `cbor:"map,omitempty"`
}

// Null is the canonical null value.
var Null = Value{Kind: KindNull}

func BoolValue(b bool) Value     { return Value{Kind: KindBool, Bool: b} }
func I64Value(v int64) Value     { return Value{Kind: KindI64, I64: v} }
func U64Value(v uint64) Value    { return Value{Kind: KindU64, U64: v} }
func F32Value(v float32) Value   { return Value{Kind: KindF32, F32: v} }
func F64Value(v float64) Value   { return Value{Kind: KindF64, F64: v} }
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }
func BytesValue(b []byte) Value  { return Value{Kind: KindBytes, Bytes: b} }
func VectorValue(v []float32) Value {
	return Value{Kind: KindVector, Vector: v}
}
func ArrayValue(v []Value) Value { return Value{Kind: KindArray, Array: v} }
func MapValue(m map[string]Value) Value {
	return Value{Kind: KindMap, Map: m}
}

// AsString returns the string value and whether Kind is KindString.
func (v Value) AsString() (string, bool) {
	return v.Str, v.Kind == KindString
}

// AsVector returns the float32 vector and whether Kind is KindVector.
func (v Value) AsVector() ([]float32, bool) {
	return v.Vector, v.Kind == KindVector
}

// AsU64 returns the value as u64 for id-like fields (subject_id, object_id),
// accepting both KindU64 and KindI64 encodings.
func (v Value) AsU64() (uint64, bool) {
	switch v.Kind {
	case KindU64:
		return v.U64, true
	case KindI64:
		if v.I64 >= 0 {
			return uint64(v.I64), true
		}
	}
	return 0, false
}

// AsMap returns the nested map and whether Kind is KindMap.
func (v Value) AsMap() (map[string]Value, bool) {
	return v.Map, v.Kind == KindMap
}
