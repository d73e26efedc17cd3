package kip

import (
	"sort"
	"strings"

	"github.com/andalabs/andadb/internal/errors"
	"github.com/andalabs/andadb/pkg/codec"
)

// varName strips the leading "?" off a Variable token's text.
func varName(s string) string { return strings.TrimPrefix(s, "?") }

func sortUint64(ids []uint64) []uint64 {
	out := append([]uint64(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func setToSortedSlice(set map[uint64]struct{}) []uint64 {
	out := make([]uint64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return sortUint64(out)
}

// intersectSorted returns the intersection of two ascending-sorted
// slices.
func intersectSorted(a, b []uint64) []uint64 {
	out := make([]uint64, 0, min(len(a), len(b)))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			out = append(out, a[i])
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return out
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// valueNodeToCodec converts one parsed JSON-literal Value node into a
// codec.Value. Numbers decode to F64 (the grammar doesn't distinguish
// integer from float literals); codec.Value.AsU64 accepts only U64 and
// non-negative I64, so it reports false for these.
func valueNodeToCodec(v *Value) (codec.Value, error) {
	switch {
	case v == nil:
		return codec.Null, nil
	case v.Str != nil:
		return codec.StringValue(*v.Str), nil
	case v.Number != nil:
		return codec.F64Value(*v.Number), nil
	case v.Bool != nil:
		return codec.BoolValue(bool(*v.Bool)), nil
	case v.Null:
		return codec.Null, nil
	case v.Object != nil:
		fields, err := objectToFields(v.Object)
		if err != nil {
			return codec.Value{}, err
		}
		return codec.MapValue(fields), nil
	case v.Array != nil:
		elems := make([]codec.Value, 0, len(v.Array.Elements))
		for _, e := range v.Array.Elements {
			cv, err := valueNodeToCodec(e)
			if err != nil {
				return codec.Value{}, err
			}
			elems = append(elems, cv)
		}
		return codec.ArrayValue(elems), nil
	default:
		return codec.Null, nil
	}
}

// objectToFields converts a parsed Object into a field map. A nil
// Object (no SET ATTRIBUTES/WITH METADATA clause present) yields a nil
// map, not an error.
func objectToFields(obj *Object) (map[string]codec.Value, error) {
	if obj == nil {
		return nil, nil
	}
	out := make(map[string]codec.Value, len(obj.Fields))
	for _, f := range obj.Fields {
		v, err := valueNodeToCodec(f.Value)
		if err != nil {
			return nil, err
		}
		out[f.Key] = v
	}
	return out, nil
}

// objectTypeName extracts the "type" and "name" string fields a concept
// head or reference object carries. hasType reports whether "type" was
// present; name is required whenever either is consulted.
func objectTypeName(obj *Object) (typ, name string, hasType bool, err error) {
	fields, err := objectToFields(obj)
	if err != nil {
		return "", "", false, err
	}
	if n, ok := fields["name"]; ok {
		name, _ = n.AsString()
	} else {
		return "", "", false, errors.Validationf("kip: object reference requires a \"name\" field")
	}
	if t, ok := fields["type"]; ok {
		typ, _ = t.AsString()
		hasType = true
	}
	return typ, name, hasType, nil
}

// docToRow flattens a concept/proposition document into a plain map
// suitable for JSON encoding over the wire.
func docToRow(doc *codec.Document) map[string]any {
	row := make(map[string]any, len(doc.Fields)+1)
	row["doc_id"] = doc.DocID
	for k, v := range doc.Fields {
		row[k] = valueToAny(v)
	}
	return row
}

func valueToAny(v codec.Value) any {
	switch v.Kind {
	case codec.KindNull:
		return nil
	case codec.KindBool:
		return v.Bool
	case codec.KindI64:
		return v.I64
	case codec.KindU64:
		return v.U64
	case codec.KindF32:
		return v.F32
	case codec.KindF64:
		return v.F64
	case codec.KindString:
		return v.Str
	case codec.KindBytes:
		return v.Bytes
	case codec.KindVector:
		return v.Vector
	case codec.KindArray:
		out := make([]any, len(v.Array))
		for i, e := range v.Array {
			out[i] = valueToAny(e)
		}
		return out
	case codec.KindMap:
		out := make(map[string]any, len(v.Map))
		for k, e := range v.Map {
			out[k] = valueToAny(e)
		}
		return out
	default:
		return nil
	}
}
