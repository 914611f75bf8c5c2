package recordbatch

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildBatch assembles one well-formed magic-v2 batch with a single record,
// computing the CRC itself, so tests exercise the real encode/decode path
// rather than a hand-copied fixture.
func buildBatch(baseOffset int64, key []byte, keyPresent bool, value []byte, valuePresent bool) []byte {
	rec := EncodeRecord(Record{
		Attributes:   0,
		OffsetDelta:  0,
		Key:          key,
		KeyPresent:   keyPresent,
		Value:        value,
		ValuePresent: valuePresent,
	})

	buf := make([]byte, headerSize+len(rec))
	copy(buf[headerSize:], rec)

	binary.BigEndian.PutUint64(buf[offBaseOffset:], uint64(baseOffset))
	binary.BigEndian.PutUint32(buf[offLength:], uint32(len(buf)-12))
	binary.BigEndian.PutUint32(buf[offLeaderEpoch:], 0)
	buf[offMagic] = byte(magicV2)
	binary.BigEndian.PutUint16(buf[offAttributes:], 0)
	binary.BigEndian.PutUint32(buf[offLastOffsetDelta:], 0)
	binary.BigEndian.PutUint64(buf[offBaseTimestamp:], 0)
	binary.BigEndian.PutUint64(buf[offMaxTimestamp:], 0)
	binary.BigEndian.PutUint64(buf[offProducerID:], 0)
	binary.BigEndian.PutUint16(buf[offProducerEpoch:], 0)
	binary.BigEndian.PutUint32(buf[offBaseSequence:], 0)
	binary.BigEndian.PutUint32(buf[offRecordsCount:], 1)

	crc := crc32c(buf[offAttributes:])
	binary.BigEndian.PutUint32(buf[offCRC:], crc)
	return buf
}

func TestBatchesEachDecodesTwoIdenticalBatches(t *testing.T) {
	value := []byte("This is the first message.")
	one := buildBatch(0, nil, false, value, true)
	buf := append(append([]byte(nil), one...), one...)

	bs := Wrap(buf)
	count, err := bs.Count()
	require.NoError(t, err)
	require.Equal(t, 2, count)

	var views []View
	require.NoError(t, bs.Each(func(v View) error {
		views = append(views, v)
		return nil
	}))
	require.Len(t, views, 2)

	for _, v := range views {
		require.NoError(t, v.VerifyCRC())
		require.EqualValues(t, 1, v.RecordsCount())

		recs, err := v.Records()
		require.NoError(t, err)
		require.Len(t, recs, 1)
		require.False(t, recs[0].KeyPresent)
		require.True(t, recs[0].ValuePresent)
		require.Equal(t, 26, len(recs[0].Value))
		require.Equal(t, "This is the first message.", string(recs[0].Value))
	}
}

func TestVerifyCRCDetectsCorruption(t *testing.T) {
	buf := buildBatch(0, []byte("k"), true, []byte("v"), true)
	buf[len(buf)-1] ^= 0xFF // flip every bit of the last record-payload byte

	v := View{buf: buf}
	err := v.VerifyCRC()
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestSetLastOffsetRewritesBaseOffset(t *testing.T) {
	buf := buildBatch(0, nil, false, []byte("v"), true)
	v := View{buf: buf}
	require.EqualValues(t, 0, v.LastOffset())

	mv := v.AsMutable()
	mv.SetLastOffset(41)
	require.EqualValues(t, 41, v.BaseOffset())
	require.EqualValues(t, 41, v.LastOffset())
}

func TestIncrementDecrementSequenceWrap(t *testing.T) {
	wrapped := IncrementSequence(2147483646, 5)
	require.Equal(t, int32(3), wrapped)
	require.Equal(t, int32(2147483646), DecrementSequence(wrapped, 5))
}

func TestEachRejectsShortBuffer(t *testing.T) {
	bs := Wrap([]byte{1, 2, 3})
	_, err := bs.Count()
	require.ErrorIs(t, err, ErrShortBuffer)
}

func TestEachRejectsBadMagic(t *testing.T) {
	buf := buildBatch(0, nil, false, []byte("v"), true)
	buf[offMagic] = 1
	crc := crc32c(buf[offAttributes:])
	binary.BigEndian.PutUint32(buf[offCRC:], crc)

	bs := Wrap(buf)
	_, err := bs.Count()
	require.ErrorIs(t, err, ErrBadMagic)
}
