package kmsg

import "github.com/moraxdb/morax/internal/kbin"

type CreateTopicsRequestTopic struct {
	Name              string
	NumPartitions     int32
	ReplicationFactor int16
	UnknownTags       []kbin.RawTag
}

type CreateTopicsRequest struct {
	Topics       []CreateTopicsRequestTopic
	TimeoutMs    int32
	ValidateOnly bool
	UnknownTags  []kbin.RawTag
}

func ReadCreateTopicsRequest(r *kbin.Reader, version int16) CreateTopicsRequest {
	var req CreateTopicsRequest
	flexible := registry[KeyCreateTopics].RequestIsFlexible(version)
	n, _ := readArrayLen(r, flexible)
	req.Topics = make([]CreateTopicsRequestTopic, 0, n)
	for i := 0; i < n; i++ {
		var t CreateTopicsRequestTopic
		t.Name = readNonNullStr(r, flexible)
		t.NumPartitions = r.Int32()
		t.ReplicationFactor = r.Int16()
		// assignments[] and configs[] are accepted but unused by this core:
		// consume and discard them to stay wire-compatible.
		assignN, _ := readArrayLen(r, flexible)
		for j := 0; j < assignN; j++ {
			r.Int32()
			repN, _ := readArrayLen(r, flexible)
			for k := 0; k < repN; k++ {
				r.Int32()
			}
			tags(r, flexible, nil)
		}
		cfgN, _ := readArrayLen(r, flexible)
		for j := 0; j < cfgN; j++ {
			readNonNullStr(r, flexible)
			readStr(r, flexible)
			tags(r, flexible, nil)
		}
		t.UnknownTags = tags(r, flexible, nil)
		req.Topics = append(req.Topics, t)
	}
	req.TimeoutMs = r.Int32()
	if version >= 1 {
		req.ValidateOnly = r.Bool()
	}
	req.UnknownTags = tags(r, flexible, nil)
	return req
}

type CreateTopicsResponseTopic struct {
	Name              string
	TopicID           [16]byte
	ErrorCode         int16
	ErrorMessage      string
	ErrorMessageSet   bool
	NumPartitions     int32
	ReplicationFactor int16
}

type CreateTopicsResponse struct {
	ThrottleTimeMs int32
	Topics         []CreateTopicsResponseTopic
	UnknownTags    []kbin.RawTag
}

func (resp CreateTopicsResponse) Size(version int16) int {
	flexible := registry[KeyCreateTopics].ResponseIsFlexible(version)
	n := 0
	if version >= 2 {
		n += 4
	}
	n += sizeArrayLen(len(resp.Topics), flexible)
	for _, t := range resp.Topics {
		n += sizeNonNullStr(t.Name, flexible)
		if version >= 7 {
			n += 16
		}
		n += 2
		if version >= 1 {
			n += sizeStr(t.ErrorMessage, t.ErrorMessageSet, flexible)
		}
		if version >= 5 {
			n += 4 + 2
		}
		n += sizeTags(flexible, 0, 0, nil)
	}
	n += sizeTags(flexible, 0, 0, resp.UnknownTags)
	return n
}

func (resp CreateTopicsResponse) Write(w *kbin.Writer, version int16) {
	flexible := registry[KeyCreateTopics].ResponseIsFlexible(version)
	if version >= 2 {
		w.Int32(resp.ThrottleTimeMs)
	}
	writeArrayLen(w, len(resp.Topics), flexible)
	for _, t := range resp.Topics {
		writeNonNullStr(w, t.Name, flexible)
		if version >= 7 {
			w.UUID(t.TopicID)
		}
		w.Int16(t.ErrorCode)
		if version >= 1 {
			writeStr(w, t.ErrorMessage, t.ErrorMessageSet, flexible)
		}
		if version >= 5 {
			w.Int32(t.NumPartitions)
			w.Int16(t.ReplicationFactor)
		}
		writeTags(w, flexible, 0, nil, nil)
	}
	writeTags(w, flexible, 0, nil, resp.UnknownTags)
}
