package kbin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVarintRoundtrip(t *testing.T) {
	vals := []int32{0, 1, -1, 63, -64, 64, -65, 1 << 20, -(1 << 20), 1<<31 - 1, -(1 << 31)}
	for _, v := range vals {
		w := NewWriter()
		w.Varint(v)
		require.Equal(t, SizeVarint(v), w.Len())

		r := NewReader(w.Bytes())
		got := r.Varint()
		require.NoError(t, r.Err())
		assert.Equal(t, v, got)
	}
}

func TestVarlongRoundtrip(t *testing.T) {
	vals := []int64{0, 1, -1, 1 << 40, -(1 << 40), 1<<63 - 1, -(1 << 63)}
	for _, v := range vals {
		w := NewWriter()
		w.Varlong(v)
		require.Equal(t, SizeVarlong(v), w.Len())

		r := NewReader(w.Bytes())
		got := r.Varlong()
		require.NoError(t, r.Err())
		assert.Equal(t, v, got)
	}
}

func TestUvarintMalformedSixthByte(t *testing.T) {
	// Five continuation bytes followed by a sixth: must be rejected.
	buf := []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x00}
	r := NewReader(buf)
	r.Uvarint()
	require.Error(t, r.Err())
}

func TestNullVsEmptyString(t *testing.T) {
	wNull := NewWriter()
	wNull.String("", false)
	assert.Equal(t, []byte{0xff, 0xff}, wNull.Bytes())

	wEmpty := NewWriter()
	wEmpty.String("", true)
	assert.Equal(t, []byte{0x00, 0x00}, wEmpty.Bytes())

	rNull := NewReader(wNull.Bytes())
	s, present := rNull.String()
	require.NoError(t, rNull.Err())
	assert.False(t, present)
	assert.Equal(t, "", s)

	rEmpty := NewReader(wEmpty.Bytes())
	s, present = rEmpty.String()
	require.NoError(t, rEmpty.Err())
	assert.True(t, present)
	assert.Equal(t, "", s)
}

func TestNullVsEmptyCompactString(t *testing.T) {
	wNull := NewWriter()
	wNull.CompactString("", false)
	assert.Equal(t, []byte{0x00}, wNull.Bytes())

	wEmpty := NewWriter()
	wEmpty.CompactString("", true)
	assert.Equal(t, []byte{0x01}, wEmpty.Bytes())

	rNull := NewReader(wNull.Bytes())
	_, present := rNull.CompactString()
	require.NoError(t, rNull.Err())
	assert.False(t, present)

	rEmpty := NewReader(wEmpty.Bytes())
	_, present = rEmpty.CompactString()
	require.NoError(t, rEmpty.Err())
	assert.True(t, present)
}

func TestNullableArrayRejectsOtherNegatives(t *testing.T) {
	w := NewWriter()
	w.Int32(-2)
	r := NewReader(w.Bytes())
	_, present := r.ArrayLen()
	require.Error(t, r.Err())
	assert.False(t, present)
}

func TestUUIDRoundtrip(t *testing.T) {
	var u [16]byte
	for i := range u {
		u[i] = byte(i)
	}
	w := NewWriter()
	w.UUID(u)
	r := NewReader(w.Bytes())
	got := r.UUID()
	require.NoError(t, r.Err())
	assert.Equal(t, u, got)
}

func TestTaggedFieldsRoundtripUnknown(t *testing.T) {
	w := NewWriter()
	WriteTags(w, 0, nil, []RawTag{
		{Tag: 5, Payload: []byte("hello")},
		{Tag: 9, Payload: []byte{1, 2, 3}},
	})

	r := NewReader(w.Bytes())
	raw := ReadTags(r, nil)
	require.NoError(t, r.Err())
	require.Len(t, raw, 2)
	assert.Equal(t, uint32(5), raw[0].Tag)
	assert.Equal(t, []byte("hello"), raw[0].Payload)
	assert.Equal(t, uint32(9), raw[1].Tag)
	assert.Equal(t, []byte{1, 2, 3}, raw[1].Payload)
}
