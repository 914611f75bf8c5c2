package kmsg

import "github.com/moraxdb/morax/internal/kbin"

type FetchRequestPartition struct {
	Partition          int32
	CurrentLeaderEpoch int32
	FetchOffset        int64
	LastFetchedEpoch   int32
	LogStartOffset     int64
	PartitionMaxBytes  int32
}

type FetchRequestTopic struct {
	Name       string
	TopicID    [16]byte
	Partitions []FetchRequestPartition
}

type FetchRequest struct {
	ReplicaID      int32
	MaxWaitMs      int32
	MinBytes       int32
	MaxBytes       int32
	IsolationLevel int8
	SessionID      int32
	SessionEpoch   int32
	Topics         []FetchRequestTopic
	UnknownTags    []kbin.RawTag
}

func ReadFetchRequest(r *kbin.Reader, version int16) FetchRequest {
	var req FetchRequest
	flexible := registry[KeyFetch].RequestIsFlexible(version)
	req.ReplicaID = r.Int32()
	req.MaxWaitMs = r.Int32()
	req.MinBytes = r.Int32()
	if version >= 3 {
		req.MaxBytes = r.Int32()
	}
	if version >= 4 {
		req.IsolationLevel = r.Int8()
	}
	if version >= 7 {
		req.SessionID = r.Int32()
		req.SessionEpoch = r.Int32()
	}
	n, _ := readArrayLen(r, flexible)
	req.Topics = make([]FetchRequestTopic, 0, n)
	for i := 0; i < n; i++ {
		var t FetchRequestTopic
		if version >= 13 {
			t.TopicID = r.UUID()
		} else {
			t.Name = readNonNullStr(r, flexible)
		}
		pn, _ := readArrayLen(r, flexible)
		t.Partitions = make([]FetchRequestPartition, 0, pn)
		for j := 0; j < pn; j++ {
			var p FetchRequestPartition
			p.Partition = r.Int32()
			if version >= 9 {
				p.CurrentLeaderEpoch = r.Int32()
			}
			p.FetchOffset = r.Int64()
			if version >= 12 {
				p.LastFetchedEpoch = r.Int32()
			}
			if version >= 5 {
				p.LogStartOffset = r.Int64()
			}
			p.PartitionMaxBytes = r.Int32()
			tags(r, flexible, nil)
			t.Partitions = append(t.Partitions, p)
		}
		tags(r, flexible, nil)
		req.Topics = append(req.Topics, t)
	}
	if version >= 7 {
		// forgotten_topics_data: accepted but unused, this core has no
		// incremental fetch-session cache.
		fn, _ := readArrayLen(r, flexible)
		for i := 0; i < fn; i++ {
			if version >= 13 {
				r.UUID()
			} else {
				readNonNullStr(r, flexible)
			}
			pn, _ := readArrayLen(r, flexible)
			for j := 0; j < pn; j++ {
				r.Int32()
			}
			tags(r, flexible, nil)
		}
	}
	if version >= 11 {
		readNonNullStr(r, flexible) // rack_id
	}
	req.UnknownTags = tags(r, flexible, nil)
	return req
}

type FetchResponsePartition struct {
	PartitionIndex    int32
	ErrorCode         int16
	HighWatermark     int64
	LastStableOffset  int64
	LogStartOffset    int64
	Records           []byte
}

type FetchResponseTopic struct {
	Name       string
	TopicID    [16]byte
	Partitions []FetchResponsePartition
}

type FetchResponse struct {
	ThrottleTimeMs int32
	ErrorCode      int16
	SessionID      int32
	Topics         []FetchResponseTopic
	UnknownTags    []kbin.RawTag
}

func (resp FetchResponse) Size(version int16) int {
	flexible := registry[KeyFetch].ResponseIsFlexible(version)
	n := 0
	if version >= 1 {
		n += 4
	}
	if version >= 7 {
		n += 2 + 4
	}
	n += sizeArrayLen(len(resp.Topics), flexible)
	for _, t := range resp.Topics {
		if version >= 13 {
			n += 16
		} else {
			n += sizeNonNullStr(t.Name, flexible)
		}
		n += sizeArrayLen(len(t.Partitions), flexible)
		for _, p := range t.Partitions {
			n += 4 + 2 + 8
			if version >= 4 {
				n += 8
			}
			if version >= 5 {
				n += 8
			}
			if version >= 4 {
				n += sizeArrayLen(0, flexible) // aborted_transactions, always empty
			}
			if version >= 11 {
				n += 4 // preferred_read_replica
			}
			n += sizeBytes(p.Records, true, flexible)
			n += sizeTags(flexible, 0, 0, nil)
		}
		n += sizeTags(flexible, 0, 0, nil)
	}
	n += sizeTags(flexible, 0, 0, resp.UnknownTags)
	return n
}

func (resp FetchResponse) Write(w *kbin.Writer, version int16) {
	flexible := registry[KeyFetch].ResponseIsFlexible(version)
	if version >= 1 {
		w.Int32(resp.ThrottleTimeMs)
	}
	if version >= 7 {
		w.Int16(resp.ErrorCode)
		w.Int32(resp.SessionID)
	}
	writeArrayLen(w, len(resp.Topics), flexible)
	for _, t := range resp.Topics {
		if version >= 13 {
			w.UUID(t.TopicID)
		} else {
			writeNonNullStr(w, t.Name, flexible)
		}
		writeArrayLen(w, len(t.Partitions), flexible)
		for _, p := range t.Partitions {
			w.Int32(p.PartitionIndex)
			w.Int16(p.ErrorCode)
			w.Int64(p.HighWatermark)
			if version >= 4 {
				w.Int64(p.LastStableOffset)
			}
			if version >= 5 {
				w.Int64(p.LogStartOffset)
			}
			if version >= 4 {
				writeArrayLen(w, 0, flexible)
			}
			if version >= 11 {
				w.Int32(-1)
			}
			writeBytes(w, p.Records, true, flexible)
			writeTags(w, flexible, 0, nil, nil)
		}
		writeTags(w, flexible, 0, nil, nil)
	}
	writeTags(w, flexible, 0, nil, resp.UnknownTags)
}
