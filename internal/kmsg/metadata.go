package kmsg

import "github.com/moraxdb/morax/internal/kbin"

// MetadataRequestTopic names a topic by id, name, or both. A request with
// TopicsIsNull set (a null topics array on the wire, not just an empty one)
// requests every topic, matching real Kafka clients' "fetch all topics"
// sentinel.
type MetadataRequestTopic struct {
	TopicID [16]byte
	Name    string
	NameSet bool
}

type MetadataRequest struct {
	Topics                 []MetadataRequestTopic
	TopicsIsNull            bool
	AllowAutoTopicCreation bool
	UnknownTags            []kbin.RawTag
}

func ReadMetadataRequest(r *kbin.Reader, version int16) MetadataRequest {
	var req MetadataRequest
	flexible := registry[KeyMetadata].RequestIsFlexible(version)
	n, present := readArrayLen(r, flexible)
	if !present {
		req.TopicsIsNull = true
	} else {
		req.Topics = make([]MetadataRequestTopic, 0, n)
		for i := 0; i < n; i++ {
			var t MetadataRequestTopic
			if version >= 10 {
				t.TopicID = r.UUID()
			}
			t.Name, t.NameSet = readStr(r, flexible)
			tags(r, flexible, nil)
			req.Topics = append(req.Topics, t)
		}
	}
	if version >= 4 {
		req.AllowAutoTopicCreation = r.Bool()
	}
	req.UnknownTags = tags(r, flexible, nil)
	return req
}

func (req MetadataRequest) Size(version int16) int {
	flexible := registry[KeyMetadata].RequestIsFlexible(version)
	n := 0
	if req.TopicsIsNull {
		n += sizeArrayLenNull(flexible)
	} else {
		n += sizeArrayLen(len(req.Topics), flexible)
		for _, t := range req.Topics {
			if version >= 10 {
				n += 16
			}
			n += sizeStr(t.Name, t.NameSet, flexible)
			n += sizeTags(flexible, 0, 0, nil)
		}
	}
	if version >= 4 {
		n++
	}
	n += sizeTags(flexible, 0, 0, req.UnknownTags)
	return n
}

func (req MetadataRequest) Write(w *kbin.Writer, version int16) {
	flexible := registry[KeyMetadata].RequestIsFlexible(version)
	if req.TopicsIsNull {
		writeArrayLenNull(w, flexible)
	} else {
		writeArrayLen(w, len(req.Topics), flexible)
		for _, t := range req.Topics {
			if version >= 10 {
				w.UUID(t.TopicID)
			}
			writeStr(w, t.Name, t.NameSet, flexible)
			writeTags(w, flexible, 0, nil, nil)
		}
	}
	if version >= 4 {
		w.Bool(req.AllowAutoTopicCreation)
	}
	writeTags(w, flexible, 0, nil, req.UnknownTags)
}

func sizeArrayLenNull(flexible bool) int {
	if flexible {
		return kbin.SizeUvarint(0)
	}
	return 4
}

func writeArrayLenNull(w *kbin.Writer, flexible bool) {
	if flexible {
		w.CompactArrayLen(0, false)
		return
	}
	w.ArrayLen(0, false)
}

// MetadataBroker is one entry of the response's broker list; this broker
// always reports exactly one entry, itself.
type MetadataBroker struct {
	NodeID int32
	Host   string
	Port   int32
	Rack   string
	RackSet bool
}

type MetadataPartition struct {
	ErrorCode      int16
	PartitionIndex int32
	LeaderID       int32
	LeaderEpoch    int32
	ReplicaNodes   []int32
	IsrNodes       []int32
}

type MetadataTopic struct {
	ErrorCode  int16
	Name       string
	NameSet    bool
	TopicID    [16]byte
	IsInternal bool
	Partitions []MetadataPartition
}

type MetadataResponse struct {
	ThrottleTimeMs int32
	Brokers        []MetadataBroker
	ClusterID      string
	ClusterIDSet   bool
	ControllerID   int32
	Topics         []MetadataTopic
	UnknownTags    []kbin.RawTag
}

func (resp MetadataResponse) Size(version int16) int {
	flexible := registry[KeyMetadata].ResponseIsFlexible(version)
	n := 0
	if version >= 3 {
		n += 4
	}
	n += sizeArrayLen(len(resp.Brokers), flexible)
	for _, b := range resp.Brokers {
		n += 4
		n += sizeNonNullStr(b.Host, flexible)
		n += 4
		if version >= 1 {
			n += sizeStr(b.Rack, b.RackSet, flexible)
		}
		n += sizeTags(flexible, 0, 0, nil)
	}
	if version >= 2 {
		n += sizeStr(resp.ClusterID, resp.ClusterIDSet, flexible)
	}
	if version >= 1 {
		n += 4
	}
	n += sizeArrayLen(len(resp.Topics), flexible)
	for _, t := range resp.Topics {
		n += 2
		n += sizeStr(t.Name, t.NameSet, flexible)
		if version >= 10 {
			n += 16
		}
		if version >= 1 {
			n++
		}
		n += sizeArrayLen(len(t.Partitions), flexible)
		for _, p := range t.Partitions {
			n += 2 + 4 + 4
			if version >= 7 {
				n += 4
			}
			n += sizeArrayLen(len(p.ReplicaNodes), flexible) + 4*len(p.ReplicaNodes)
			n += sizeArrayLen(len(p.IsrNodes), flexible) + 4*len(p.IsrNodes)
			if version >= 5 {
				n += sizeArrayLen(0, flexible) // offline_replicas, always empty
			}
			n += sizeTags(flexible, 0, 0, nil)
		}
		n += sizeTags(flexible, 0, 0, nil)
	}
	n += sizeTags(flexible, 0, 0, resp.UnknownTags)
	return n
}

func (resp MetadataResponse) Write(w *kbin.Writer, version int16) {
	flexible := registry[KeyMetadata].ResponseIsFlexible(version)
	if version >= 3 {
		w.Int32(resp.ThrottleTimeMs)
	}
	writeArrayLen(w, len(resp.Brokers), flexible)
	for _, b := range resp.Brokers {
		w.Int32(b.NodeID)
		writeNonNullStr(w, b.Host, flexible)
		w.Int32(b.Port)
		if version >= 1 {
			writeStr(w, b.Rack, b.RackSet, flexible)
		}
		writeTags(w, flexible, 0, nil, nil)
	}
	if version >= 2 {
		writeStr(w, resp.ClusterID, resp.ClusterIDSet, flexible)
	}
	if version >= 1 {
		w.Int32(resp.ControllerID)
	}
	writeArrayLen(w, len(resp.Topics), flexible)
	for _, t := range resp.Topics {
		w.Int16(t.ErrorCode)
		writeStr(w, t.Name, t.NameSet, flexible)
		if version >= 10 {
			w.UUID(t.TopicID)
		}
		if version >= 1 {
			w.Bool(t.IsInternal)
		}
		writeArrayLen(w, len(t.Partitions), flexible)
		for _, p := range t.Partitions {
			w.Int16(p.ErrorCode)
			w.Int32(p.PartitionIndex)
			w.Int32(p.LeaderID)
			if version >= 7 {
				w.Int32(p.LeaderEpoch)
			}
			writeArrayLen(w, len(p.ReplicaNodes), flexible)
			for _, n := range p.ReplicaNodes {
				w.Int32(n)
			}
			writeArrayLen(w, len(p.IsrNodes), flexible)
			for _, n := range p.IsrNodes {
				w.Int32(n)
			}
			if version >= 5 {
				writeArrayLen(w, 0, flexible)
			}
			writeTags(w, flexible, 0, nil, nil)
		}
		writeTags(w, flexible, 0, nil, nil)
	}
	writeTags(w, flexible, 0, nil, resp.UnknownTags)
}
