package kmsg

import "github.com/moraxdb/morax/internal/kbin"

// RequestHeader is the framing that precedes every request body. Its shape
// depends on version: v0 is api_key, api_version and correlation_id, v1 adds
// client_id, v2 adds the tagged-field list. See spec §6.1.
type RequestHeader struct {
	ApiKey        Key
	ApiVersion    int16
	CorrelationID int32
	ClientID      string
	ClientIDSet   bool
	UnknownTags   []kbin.RawTag
}

// ReadRequestHeader decodes a header of the given version. r must start at
// the beginning of the header: ApiKey and ApiVersion are read from r again,
// so the apiKey and apiVersion arguments the dispatcher peeked are
// overwritten by the decoded values.
func ReadRequestHeader(r *kbin.Reader, version int16, apiKey Key, apiVersion int16) RequestHeader {
	h := RequestHeader{ApiKey: apiKey, ApiVersion: apiVersion}
	h.ApiKey = Key(r.Int16())
	h.ApiVersion = r.Int16()
	h.CorrelationID = r.Int32()
	if version >= 1 {
		h.ClientID, h.ClientIDSet = r.String()
	}
	if version >= 2 {
		h.UnknownTags = kbin.ReadTags(r, nil)
	}
	return h
}

// Size returns the encoded size of this header at the given version.
func (h RequestHeader) Size(version int16) int {
	n := 2 + 2 + 4
	if version >= 1 {
		n += kbin.SizeString(h.ClientID, h.ClientIDSet)
	}
	if version >= 2 {
		n += kbin.SizeTags(0, 0, h.UnknownTags)
	}
	return n
}

// Write encodes this header at the given version.
func (h RequestHeader) Write(w *kbin.Writer, version int16) {
	w.Int16(int16(h.ApiKey))
	w.Int16(h.ApiVersion)
	w.Int32(h.CorrelationID)
	if version >= 1 {
		w.String(h.ClientID, h.ClientIDSet)
	}
	if version >= 2 {
		kbin.WriteTags(w, 0, nil, h.UnknownTags)
	}
}

// ResponseHeader is the framing that precedes every response body. v0 is
// correlation_id alone; v1 adds the tagged-field list.
type ResponseHeader struct {
	CorrelationID int32
	UnknownTags   []kbin.RawTag
}

// Size returns the encoded size of this header at the given version.
func (h ResponseHeader) Size(version int16) int {
	n := 4
	if version >= 1 {
		n += kbin.SizeTags(0, 0, h.UnknownTags)
	}
	return n
}

// Write encodes this header at the given version.
func (h ResponseHeader) Write(w *kbin.Writer, version int16) {
	w.Int32(h.CorrelationID)
	if version >= 1 {
		kbin.WriteTags(w, 0, nil, h.UnknownTags)
	}
}
