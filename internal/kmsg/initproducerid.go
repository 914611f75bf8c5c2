package kmsg

import "github.com/moraxdb/morax/internal/kbin"

type InitProducerIdRequest struct {
	TransactionalID      string
	TransactionalIDSet   bool
	TransactionTimeoutMs int32
	ProducerID           int64
	ProducerEpoch        int16
	UnknownTags          []kbin.RawTag
}

func ReadInitProducerIdRequest(r *kbin.Reader, version int16) InitProducerIdRequest {
	var req InitProducerIdRequest
	flexible := registry[KeyInitProducerId].RequestIsFlexible(version)
	req.TransactionalID, req.TransactionalIDSet = readStr(r, flexible)
	req.TransactionTimeoutMs = r.Int32()
	req.ProducerID = -1
	req.ProducerEpoch = -1
	if version >= 3 {
		req.ProducerID = r.Int64()
		req.ProducerEpoch = r.Int16()
	}
	req.UnknownTags = tags(r, flexible, nil)
	return req
}

// InitProducerIdResponse allocates a fresh producer id from the metadata
// store's sequence; epoch is always 0 since this core does not track
// epoch bumps across InitProducerId calls (spec §4.5).
type InitProducerIdResponse struct {
	ThrottleTimeMs int32
	ErrorCode      int16
	ProducerID     int64
	ProducerEpoch  int16
	UnknownTags    []kbin.RawTag
}

func (resp InitProducerIdResponse) Size(version int16) int {
	flexible := registry[KeyInitProducerId].ResponseIsFlexible(version)
	n := 4 + 2 + 8 + 2
	n += sizeTags(flexible, 0, 0, resp.UnknownTags)
	return n
}

func (resp InitProducerIdResponse) Write(w *kbin.Writer, version int16) {
	flexible := registry[KeyInitProducerId].ResponseIsFlexible(version)
	w.Int32(resp.ThrottleTimeMs)
	w.Int16(resp.ErrorCode)
	w.Int64(resp.ProducerID)
	w.Int16(resp.ProducerEpoch)
	writeTags(w, flexible, 0, nil, resp.UnknownTags)
}
