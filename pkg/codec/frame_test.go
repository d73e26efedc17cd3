package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type framePayload struct {
	Name  string `cbor:"name"`
	Count int    `cbor:"count"`
}

func TestEncodeFramed_DecodeFramed_RoundTrip(t *testing.T) {
	want := framePayload{Name: "concepts", Count: 42}

	data, err := EncodeFramed(want)
	require.NoError(t, err)

	var got framePayload
	require.NoError(t, DecodeFramed(data, &got))
	require.Equal(t, want, got)
}

func TestFrame_BeginsWithMagicAndVersion(t *testing.T) {
	data := Frame([]byte("payload"))
	require.GreaterOrEqual(t, len(data), 9)
	require.Equal(t, byte('A'), data[0])
	require.Equal(t, byte('N'), data[1])
	require.Equal(t, byte('D'), data[2])
	require.Equal(t, byte('A'), data[3])
	require.Equal(t, FormatVersion, data[4])
}

func TestUnframe_RejectsBadMagic(t *testing.T) {
	data := Frame([]byte("payload"))
	data[0] ^= 0xFF
	_, err := Unframe(data)
	require.Error(t, err)
}

func TestUnframe_RejectsWrongVersion(t *testing.T) {
	data := Frame([]byte("payload"))
	data[4] = FormatVersion + 1
	_, err := Unframe(data)
	require.Error(t, err)
}

func TestUnframe_RejectsCorruptCRC(t *testing.T) {
	data := Frame([]byte("payload"))
	data[len(data)-1] ^= 0xFF
	_, err := Unframe(data)
	require.Error(t, err)
}

func TestUnframe_RejectsTooShort(t *testing.T) {
	_, err := Unframe([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestEncodeCanonical_DeterministicAcrossMapKeyOrder(t *testing.T) {
	a := map[string]int{"z": 1, "a": 2, "m": 3}
	b := map[string]int{"m": 3, "z": 1, "a": 2}

	encA, err := EncodeCanonical(a)
	require.NoError(t, err)
	encB, err := EncodeCanonical(b)
	require.NoError(t, err)
	require.Equal(t, encA, encB)
}
