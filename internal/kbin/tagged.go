package kbin

import "errors"

// RawTag is an opaque tagged field that was not recognized by a schema's
// decode callback. It is retained verbatim so a later re-encode reproduces
// it, per the flexible-version contract in spec §4.1: unknown tags survive
// a decode/encode round trip unchanged.
type RawTag struct {
	Tag     uint32
	Payload []byte
}

// TaggedFieldDecoder is invoked once per tagged field found while decoding a
// flexible-version structure. It must consume exactly size bytes from r (or
// leave r in an errored state) and report whether it recognized the tag. An
// unrecognized tag's raw bytes are captured by the caller instead.
type TaggedFieldDecoder func(r *Reader, tag uint32, size int) (consumed bool)

// ReadTags decodes a tagged field list: an unsigned varint count, then that
// many (tag, size, payload) triples in ascending tag order. Fields the
// decode callback does not consume are returned as RawTags so a later
// encode can re-append them.
func ReadTags(r *Reader, decode TaggedFieldDecoder) []RawTag {
	n := r.Uvarint()
	if r.err != nil || n == 0 {
		return nil
	}
	var raw []RawTag
	for i := uint32(0); i < n; i++ {
		tag := r.Uvarint()
		size := r.Uvarint()
		if r.err != nil {
			return raw
		}
		start := r.off
		if decode != nil && decode(r, tag, int(size)) {
			if r.off != start+int(size) {
				r.fail(errTagSizeMismatch)
			}
			continue
		}
		payload := r.take(int(size))
		if payload == nil {
			return raw
		}
		buf := make([]byte, len(payload))
		copy(buf, payload)
		raw = append(raw, RawTag{Tag: tag, Payload: buf})
	}
	return raw
}

var errTagSizeMismatch = errors.New("kbin: tagged field decoder consumed a different number of bytes than declared")

// WriteTags appends a tagged field list: extra (already-known) fields
// contributed by the caller via appendKnown, followed by any RawTags
// retained from a prior decode, in ascending tag order. Kafka requires tags
// to be written in ascending order; since known fields use tags lower than
// any the core currently retains unknown, callers must keep this invariant
// when adding new known tagged fields.
func WriteTags(w *Writer, knownCount int, appendKnown func(w *Writer), raw []RawTag) {
	w.Uvarint(uint32(knownCount) + uint32(len(raw)))
	if appendKnown != nil {
		appendKnown(w)
	}
	for _, t := range raw {
		w.Uvarint(t.Tag)
		w.Uvarint(uint32(len(t.Payload)))
		w.Raw(t.Payload)
	}
}

// SizeTags returns the encoded size of a tagged field list with the given
// known-field encoded size and retained raw tags.
func SizeTags(knownCount int, knownSize int, raw []RawTag) int {
	n := SizeUvarint(uint32(knownCount) + uint32(len(raw)))
	n += knownSize
	for _, t := range raw {
		n += SizeUvarint(t.Tag) + SizeUvarint(uint32(len(t.Payload))) + len(t.Payload)
	}
	return n
}
