// Package recordbatch parses and mutates the on-wire Kafka record-batch
// container (magic v2): the fixed 61-byte batch header, its CRC32C
// protection, and the inner records it frames. See spec §4.3.
package recordbatch

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"math"

	"github.com/moraxdb/morax/internal/kbin"
	"github.com/moraxdb/morax/internal/kerr"
)

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

const (
	// headerSize is the fixed portion of a batch: the 12-byte
	// base_offset+length prefix plus the 49 bytes from
	// partition_leader_epoch through records_count.
	headerSize = 61

	magicV2 = int8(2)

	offBaseOffset    = 0
	offLength        = 8
	offLeaderEpoch   = 12
	offMagic         = 16
	offCRC           = 17
	offAttributes    = 21
	offLastOffsetDelta = 23
	offBaseTimestamp = 27
	offMaxTimestamp  = 35
	offProducerID    = 43
	offProducerEpoch = 51
	offBaseSequence  = 53
	offRecordsCount  = 57
)

// Attribute bit layout (spec §3): bits 0-2 compression, bit 3 timestamp
// type, bit 4 transactional, bit 5 control, bit 6 delete-horizon present.
const (
	attrCompressionMask = 0x7
	attrTimestampType   = 1 << 3
	attrTransactional   = 1 << 4
	attrControl         = 1 << 5
	attrDeleteHorizon   = 1 << 6
)

// CompressionType identifies the codec packed into attribute bits 0-2.
type CompressionType uint8

const (
	CompressionNone   CompressionType = 0
	CompressionGzip   CompressionType = 1
	CompressionSnappy CompressionType = 2
	CompressionLZ4    CompressionType = 3
	CompressionZstd   CompressionType = 4
)

// ErrShortBuffer is returned when a buffer is too small to contain even one
// complete batch header, or a batch's declared length overruns the buffer.
var ErrShortBuffer = errors.New("recordbatch: buffer too short")

// ErrBadMagic is returned when a batch's magic byte is not 2; the core only
// understands magic-2 (record-batch) framing.
var ErrBadMagic = errors.New("recordbatch: unsupported magic byte, only v2 record batches are supported")

// ErrCorrupt is returned when a batch's stored CRC does not match the
// computed CRC32C of its post-CRC bytes.
var ErrCorrupt = kerr.CorruptMessage

// Batches is an owned buffer containing zero or more concatenated record
// batches, as read from storage or a Produce request body.
type Batches struct {
	buf []byte
}

// Wrap takes ownership of buf (it must not be modified by the caller
// afterwards) and returns a Batches view over it.
func Wrap(buf []byte) *Batches {
	return &Batches{buf: buf}
}

// Bytes returns the underlying buffer.
func (bs *Batches) Bytes() []byte {
	return bs.buf
}

// Each iterates over every complete batch in the buffer, calling fn with a
// View into each one. Iteration stops at the first error: either a genuine
// parse error, or whatever fn returns.
func (bs *Batches) Each(fn func(View) error) error {
	off := 0
	for off < len(bs.buf) {
		remaining := bs.buf[off:]
		if len(remaining) < headerSize {
			return fmt.Errorf("%w: %d bytes left, need at least %d", ErrShortBuffer, len(remaining), headerSize)
		}
		length := int32(binary.BigEndian.Uint32(remaining[offLength:]))
		total := int(length) + 12
		if total < headerSize || total > len(remaining) {
			return fmt.Errorf("%w: declared batch length %d overruns buffer", ErrShortBuffer, length)
		}
		magic := int8(remaining[offMagic])
		if magic != magicV2 {
			return ErrBadMagic
		}
		v := View{buf: remaining[:total]}
		if err := fn(v); err != nil {
			return err
		}
		off += total
	}
	return nil
}

// Count returns the number of complete batches in the buffer.
func (bs *Batches) Count() (int, error) {
	n := 0
	err := bs.Each(func(View) error {
		n++
		return nil
	})
	return n, err
}

// View is a read-only window into one record batch within a larger buffer.
// It aliases the parent buffer; callers that need to mutate fields use
// MutableView instead.
type View struct {
	buf []byte
}

// MutableView is a View that additionally allows rewriting base_offset and
// partition_leader_epoch in place, per spec §4.3.
type MutableView struct {
	View
}

// AsMutable returns a MutableView over the same bytes as v. The caller must
// own buf exclusively (e.g. a just-read copy from storage), since mutation
// writes through the slice in place.
func (v View) AsMutable() MutableView {
	return MutableView{v}
}

// Bytes returns the raw bytes of this batch, including its 12-byte
// base_offset+length prefix.
func (v View) Bytes() []byte { return v.buf }

// Len returns the total byte length of this batch (including the prefix).
func (v View) Len() int { return len(v.buf) }

func (v View) i64(off int) int64 { return int64(binary.BigEndian.Uint64(v.buf[off:])) }
func (v View) i32(off int) int32 { return int32(binary.BigEndian.Uint32(v.buf[off:])) }
func (v View) i16(off int) int16 { return int16(binary.BigEndian.Uint16(v.buf[off:])) }

// BaseOffset returns the batch's base_offset field.
func (v View) BaseOffset() int64 { return v.i64(offBaseOffset) }

// PartitionLeaderEpoch returns the batch's partition_leader_epoch field.
func (v View) PartitionLeaderEpoch() int32 { return v.i32(offLeaderEpoch) }

// Magic returns the batch's magic byte; always 2 for any View produced by
// this package's parsers.
func (v View) Magic() int8 { return int8(v.buf[offMagic]) }

// CRC returns the batch's stored CRC32C value.
func (v View) CRC() uint32 { return binary.BigEndian.Uint32(v.buf[offCRC:]) }

// Attributes returns the raw attributes bit field.
func (v View) Attributes() int16 { return v.i16(offAttributes) }

// LastOffsetDelta returns the batch's last_offset_delta field.
func (v View) LastOffsetDelta() int32 { return v.i32(offLastOffsetDelta) }

// BaseTimestamp returns the batch's base_timestamp field.
func (v View) BaseTimestamp() int64 { return v.i64(offBaseTimestamp) }

// MaxTimestamp returns the batch's max_timestamp field.
func (v View) MaxTimestamp() int64 { return v.i64(offMaxTimestamp) }

// ProducerID returns the batch's producer_id field.
func (v View) ProducerID() int64 { return v.i64(offProducerID) }

// ProducerEpoch returns the batch's producer_epoch field.
func (v View) ProducerEpoch() int16 { return v.i16(offProducerEpoch) }

// BaseSequence returns the batch's base_sequence field.
func (v View) BaseSequence() int32 { return v.i32(offBaseSequence) }

// RecordsCount returns the batch's records_count field.
func (v View) RecordsCount() int32 { return v.i32(offRecordsCount) }

// LastOffset returns base_offset + last_offset_delta.
func (v View) LastOffset() int64 { return v.BaseOffset() + int64(v.LastOffsetDelta()) }

// LastSequence returns base_sequence + last_offset_delta, wrapping at
// math.MaxInt32 instead of overflowing into math.MinInt32, per spec §4.3.
func (v View) LastSequence() int32 {
	return IncrementSequence(v.BaseSequence(), v.LastOffsetDelta())
}

// CompressionType returns the codec packed into attribute bits 0-2.
func (v View) CompressionType() CompressionType {
	return CompressionType(v.Attributes() & attrCompressionMask)
}

// TimestampType returns bit 3 of the attributes field: 0 for CreateTime,
// non-zero for LogAppendTime.
func (v View) TimestampType() int16 { return v.Attributes() & attrTimestampType }

// IsTransactional reports whether attribute bit 4 is set.
func (v View) IsTransactional() bool { return v.Attributes()&attrTransactional != 0 }

// IsControl reports whether attribute bit 5 is set.
func (v View) IsControl() bool { return v.Attributes()&attrControl != 0 }

// DeleteHorizonMs returns the batch's delete-horizon timestamp and whether
// attribute bit 6 marks it present. The field, when present, occupies the
// same bytes as max_timestamp in the on-wire layout used by this core
// (compacted-topic delete horizons are not otherwise distinguished).
func (v View) DeleteHorizonMs() (int64, bool) {
	if v.Attributes()&attrDeleteHorizon == 0 {
		return 0, false
	}
	return v.MaxTimestamp(), true
}

// VerifyCRC recomputes CRC32C over the bytes from the attributes field
// onward and compares it to the stored CRC, returning ErrCorrupt on
// mismatch.
func (v View) VerifyCRC() error {
	want := v.CRC()
	got := crc32c(v.buf[offAttributes:])
	if want != got {
		return fmt.Errorf("%w: stored crc %#x, computed %#x", ErrCorrupt, want, got)
	}
	return nil
}

// Records decodes every inner record in this batch.
func (v View) Records() ([]Record, error) {
	count := int(v.RecordsCount())
	if count < 0 {
		return nil, fmt.Errorf("recordbatch: negative records_count %d", count)
	}
	r := kbin.NewReader(v.buf[headerSize:])
	out := make([]Record, 0, count)
	for i := 0; i < count; i++ {
		rec, err := decodeRecord(r)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SetBaseOffset rewrites the batch's base_offset field directly.
func (v MutableView) SetBaseOffset(base int64) {
	binary.BigEndian.PutUint64(v.buf[offBaseOffset:], uint64(base))
}

// SetLastOffset derives and rewrites base_offset so that this batch's
// LastOffset() becomes last, per spec §4.3:
// base_offset = last - last_offset_delta.
func (v MutableView) SetLastOffset(last int64) {
	v.SetBaseOffset(last - int64(v.LastOffsetDelta()))
}

// SetPartitionLeaderEpoch rewrites the batch's partition_leader_epoch
// field.
func (v MutableView) SetPartitionLeaderEpoch(epoch int32) {
	binary.BigEndian.PutUint32(v.buf[offLeaderEpoch:], uint32(epoch))
}

// IncrementSequence applies Kafka's wrapping sequence arithmetic: if s would
// overflow math.MaxInt32 when advanced by delta, it wraps around to 0
// (skipping the negative range) instead of actually overflowing. See spec §4.3.
func IncrementSequence(s int32, delta int32) int32 {
	if s > math.MaxInt32-delta {
		return delta - (math.MaxInt32 - s) - 1
	}
	return s + delta
}

// DecrementSequence is the inverse of IncrementSequence.
func DecrementSequence(s int32, delta int32) int32 {
	if s < delta {
		return math.MaxInt32 - (delta - s) + 1
	}
	return s - delta
}

// RecordHeader is one inner record's header key/value pair.
type RecordHeader struct {
	Key   string
	Value []byte
	// ValuePresent distinguishes a null header value from an empty one.
	ValuePresent bool
}

// Record is one decoded inner record, per the schema in spec §3.
type Record struct {
	Length         int32
	Attributes     int8
	TimestampDelta int64
	OffsetDelta    int32
	Key            []byte
	KeyPresent     bool
	Value          []byte
	ValuePresent   bool
	Headers        []RecordHeader
}

func decodeRecord(r *kbin.Reader) (Record, error) {
	var rec Record
	rec.Length = r.Varint()
	rec.Attributes = r.Int8()
	rec.TimestampDelta = r.Varlong()
	rec.OffsetDelta = r.Varint()
	rec.Key, rec.KeyPresent = r.VarintBytes()
	rec.Value, rec.ValuePresent = r.VarintBytes()

	headerCount := r.Varint()
	if headerCount < 0 {
		return rec, fmt.Errorf("recordbatch: negative header count %d", headerCount)
	}
	rec.Headers = make([]RecordHeader, 0, headerCount)
	for i := int32(0); i < headerCount; i++ {
		keyBytes, _ := r.VarintBytes()
		val, present := r.VarintBytes()
		rec.Headers = append(rec.Headers, RecordHeader{Key: string(keyBytes), Value: val, ValuePresent: present})
	}
	if err := r.Err(); err != nil {
		return rec, err
	}
	return rec, nil
}

// EncodeRecord appends one inner record using the varint-framed schema from
// spec §3. The returned bytes start with the record's own varint length
// prefix, followed by the record body.
func EncodeRecord(rec Record) []byte {
	w := kbin.NewWriter()
	w.Int8(rec.Attributes)
	w.Varlong(rec.TimestampDelta)
	w.Varint(rec.OffsetDelta)
	w.VarintBytes(rec.Key, rec.KeyPresent)
	w.VarintBytes(rec.Value, rec.ValuePresent)
	w.Varint(int32(len(rec.Headers)))
	for _, h := range rec.Headers {
		w.VarintBytes([]byte(h.Key), true)
		w.VarintBytes(h.Value, h.ValuePresent)
	}
	body := w.Bytes()

	out := kbin.NewWriter()
	out.Varint(int32(len(body)))
	out.Raw(body)
	return out.Bytes()
}

func crc32c(b []byte) uint32 {
	return crc32.Checksum(b, crc32cTable)
}
