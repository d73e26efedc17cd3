package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDocument_EncodeDecodeRoundTrip(t *testing.T) {
	doc := &Document{
		DocID: 7,
		Fields: map[string]Value{
			"type":      StringValue("Person"),
			"name":      StringValue("Alice"),
			"age":       I64Value(30),
			"embedding": VectorValue([]float32{0.1, 0.2, 0.3}),
			"attributes": MapValue(map[string]Value{
				"active": BoolValue(true),
			}),
		},
	}

	data, err := EncodeDocument(doc)
	require.NoError(t, err)

	got, err := DecodeDocument(data)
	require.NoError(t, err)
	require.Equal(t, doc.DocID, got.DocID)
	require.Equal(t, doc.Fields, got.Fields)
}

func TestDocument_DecodeRejectsCorruptFrame(t *testing.T) {
	doc := &Document{DocID: 1, Fields: map[string]Value{"name": StringValue("x")}}
	data, err := EncodeDocument(doc)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xFF

	_, err = DecodeDocument(data)
	require.Error(t, err)
}

func TestDocument_Field(t *testing.T) {
	doc := &Document{Fields: map[string]Value{"name": StringValue("Bob")}}

	v, ok := doc.Field("name")
	require.True(t, ok)
	s, isStr := v.AsString()
	require.True(t, isStr)
	require.Equal(t, "Bob", s)

	_, ok = doc.Field("missing")
	require.False(t, ok)
}

func TestValue_AsU64AcceptsBothEncodings(t *testing.T) {
	u, ok := U64Value(5).AsU64()
	require.True(t, ok)
	require.Equal(t, uint64(5), u)

	i, ok := I64Value(5).AsU64()
	require.True(t, ok)
	require.Equal(t, uint64(5), i)

	_, ok = I64Value(-1).AsU64()
	require.False(t, ok)

	_, ok = StringValue("x").AsU64()
	require.False(t, ok)
}
