package kmsg

import "github.com/moraxdb/morax/internal/kbin"

type ProduceRequestPartition struct {
	Index   int32
	Records []byte
}

type ProduceRequestTopic struct {
	Name       string
	Partitions []ProduceRequestPartition
}

type ProduceRequest struct {
	TransactionalID    string
	TransactionalIDSet bool
	Acks               int16
	TimeoutMs          int32
	Topics             []ProduceRequestTopic
	UnknownTags        []kbin.RawTag
}

func ReadProduceRequest(r *kbin.Reader, version int16) ProduceRequest {
	var req ProduceRequest
	flexible := registry[KeyProduce].RequestIsFlexible(version)
	if version >= 3 {
		req.TransactionalID, req.TransactionalIDSet = readStr(r, flexible)
	}
	req.Acks = r.Int16()
	req.TimeoutMs = r.Int32()
	n, _ := readArrayLen(r, flexible)
	req.Topics = make([]ProduceRequestTopic, 0, n)
	for i := 0; i < n; i++ {
		var t ProduceRequestTopic
		t.Name = readNonNullStr(r, flexible)
		pn, _ := readArrayLen(r, flexible)
		t.Partitions = make([]ProduceRequestPartition, 0, pn)
		for j := 0; j < pn; j++ {
			var p ProduceRequestPartition
			p.Index = r.Int32()
			p.Records, _ = readBytes(r, flexible)
			tags(r, flexible, nil)
			t.Partitions = append(t.Partitions, p)
		}
		tags(r, flexible, nil)
		req.Topics = append(req.Topics, t)
	}
	req.UnknownTags = tags(r, flexible, nil)
	return req
}

type ProduceResponsePartition struct {
	Index          int32
	ErrorCode      int16
	BaseOffset     int64
	LogAppendTimeMs int64
	LogStartOffset int64
}

type ProduceResponseTopic struct {
	Name       string
	Partitions []ProduceResponsePartition
}

type ProduceResponse struct {
	Topics         []ProduceResponseTopic
	ThrottleTimeMs int32
	UnknownTags    []kbin.RawTag
}

func (resp ProduceResponse) Size(version int16) int {
	flexible := registry[KeyProduce].ResponseIsFlexible(version)
	n := sizeArrayLen(len(resp.Topics), flexible)
	for _, t := range resp.Topics {
		n += sizeNonNullStr(t.Name, flexible)
		n += sizeArrayLen(len(t.Partitions), flexible)
		for _, p := range t.Partitions {
			n += 4 + 2 + 8
			if version >= 2 {
				n += 8
			}
			if version >= 5 {
				n += 8
			}
			n += sizeTags(flexible, 0, 0, nil)
		}
		n += sizeTags(flexible, 0, 0, nil)
	}
	if version >= 1 {
		n += 4
	}
	n += sizeTags(flexible, 0, 0, resp.UnknownTags)
	return n
}

func (resp ProduceResponse) Write(w *kbin.Writer, version int16) {
	flexible := registry[KeyProduce].ResponseIsFlexible(version)
	writeArrayLen(w, len(resp.Topics), flexible)
	for _, t := range resp.Topics {
		writeNonNullStr(w, t.Name, flexible)
		writeArrayLen(w, len(t.Partitions), flexible)
		for _, p := range t.Partitions {
			w.Int32(p.Index)
			w.Int16(p.ErrorCode)
			w.Int64(p.BaseOffset)
			if version >= 2 {
				w.Int64(p.LogAppendTimeMs)
			}
			if version >= 5 {
				w.Int64(p.LogStartOffset)
			}
			writeTags(w, flexible, 0, nil, nil)
		}
		writeTags(w, flexible, 0, nil, nil)
	}
	if version >= 1 {
		w.Int32(resp.ThrottleTimeMs)
	}
	writeTags(w, flexible, 0, nil, resp.UnknownTags)
}
