package kmsg

import "github.com/moraxdb/morax/internal/kbin"

type OffsetFetchRequestTopic struct {
	Name             string
	PartitionIndexes []int32
}

type OffsetFetchRequestGroup struct {
	GroupID string
	Topics  []OffsetFetchRequestTopic
}

// OffsetFetchRequest normalizes both wire shapes (pre-v8 single group,
// v8+ list of groups) into Groups so handlers only deal with one shape.
type OffsetFetchRequest struct {
	Groups      []OffsetFetchRequestGroup
	UnknownTags []kbin.RawTag
}

func ReadOffsetFetchRequest(r *kbin.Reader, version int16) OffsetFetchRequest {
	var req OffsetFetchRequest
	flexible := registry[KeyOffsetFetch].RequestIsFlexible(version)
	readTopics := func() []OffsetFetchRequestTopic {
		n, present := readArrayLen(r, flexible)
		if !present {
			return nil
		}
		out := make([]OffsetFetchRequestTopic, 0, n)
		for i := 0; i < n; i++ {
			var t OffsetFetchRequestTopic
			t.Name = readNonNullStr(r, flexible)
			pn, _ := readArrayLen(r, flexible)
			t.PartitionIndexes = make([]int32, pn)
			for j := range t.PartitionIndexes {
				t.PartitionIndexes[j] = r.Int32()
			}
			tags(r, flexible, nil)
			out = append(out, t)
		}
		return out
	}

	if version < 8 {
		var g OffsetFetchRequestGroup
		g.GroupID = readNonNullStr(r, flexible)
		g.Topics = readTopics()
		req.Groups = []OffsetFetchRequestGroup{g}
	} else {
		n, _ := readArrayLen(r, flexible)
		req.Groups = make([]OffsetFetchRequestGroup, 0, n)
		for i := 0; i < n; i++ {
			var g OffsetFetchRequestGroup
			g.GroupID = readNonNullStr(r, flexible)
			g.Topics = readTopics()
			tags(r, flexible, nil)
			req.Groups = append(req.Groups, g)
		}
	}
	if version >= 7 {
		r.Bool() // require_stable, not honored by this core
	}
	req.UnknownTags = tags(r, flexible, nil)
	return req
}

// OffsetFetchResponsePartition always reports committed_offset=0,
// committed_leader_epoch=0 (spec §4.5/§9 Open Question #2): real offset
// commits are not implemented.
type OffsetFetchResponsePartition struct {
	PartitionIndex      int32
	CommittedOffset     int64
	CommittedLeaderEpoch int32
	Metadata            string
	MetadataSet         bool
	ErrorCode           int16
}

type OffsetFetchResponseTopic struct {
	Name       string
	Partitions []OffsetFetchResponsePartition
}

type OffsetFetchResponseGroup struct {
	GroupID   string
	Topics    []OffsetFetchResponseTopic
	ErrorCode int16
}

type OffsetFetchResponse struct {
	ThrottleTimeMs int32
	Topics         []OffsetFetchResponseTopic // used for version < 8
	ErrorCode      int16                      // used for version < 8, >= 2
	Groups         []OffsetFetchResponseGroup // used for version >= 8
	UnknownTags    []kbin.RawTag
}

func writeOffsetFetchTopics(w *kbin.Writer, flexible bool, version int16, topics []OffsetFetchResponseTopic) {
	writeArrayLen(w, len(topics), flexible)
	for _, t := range topics {
		writeNonNullStr(w, t.Name, flexible)
		writeArrayLen(w, len(t.Partitions), flexible)
		for _, p := range t.Partitions {
			w.Int32(p.PartitionIndex)
			w.Int64(p.CommittedOffset)
			if version >= 5 {
				w.Int32(p.CommittedLeaderEpoch)
			}
			writeStr(w, p.Metadata, p.MetadataSet, flexible)
			w.Int16(p.ErrorCode)
			writeTags(w, flexible, 0, nil, nil)
		}
		writeTags(w, flexible, 0, nil, nil)
	}
}

func sizeOffsetFetchTopics(flexible bool, version int16, topics []OffsetFetchResponseTopic) int {
	n := sizeArrayLen(len(topics), flexible)
	for _, t := range topics {
		n += sizeNonNullStr(t.Name, flexible)
		n += sizeArrayLen(len(t.Partitions), flexible)
		for _, p := range t.Partitions {
			n += 4 + 8
			if version >= 5 {
				n += 4
			}
			n += sizeStr(p.Metadata, p.MetadataSet, flexible)
			n += 2
			n += sizeTags(flexible, 0, 0, nil)
		}
		n += sizeTags(flexible, 0, 0, nil)
	}
	return n
}

func (resp OffsetFetchResponse) Size(version int16) int {
	flexible := registry[KeyOffsetFetch].ResponseIsFlexible(version)
	n := 0
	if version >= 3 {
		n += 4
	}
	if version < 8 {
		n += sizeOffsetFetchTopics(flexible, version, resp.Topics)
		if version >= 2 {
			n += 2
		}
	} else {
		n += sizeArrayLen(len(resp.Groups), flexible)
		for _, g := range resp.Groups {
			n += sizeNonNullStr(g.GroupID, flexible)
			n += sizeOffsetFetchTopics(flexible, version, g.Topics)
			n += 2
			n += sizeTags(flexible, 0, 0, nil)
		}
	}
	n += sizeTags(flexible, 0, 0, resp.UnknownTags)
	return n
}

func (resp OffsetFetchResponse) Write(w *kbin.Writer, version int16) {
	flexible := registry[KeyOffsetFetch].ResponseIsFlexible(version)
	if version >= 3 {
		w.Int32(resp.ThrottleTimeMs)
	}
	if version < 8 {
		writeOffsetFetchTopics(w, flexible, version, resp.Topics)
		if version >= 2 {
			w.Int16(resp.ErrorCode)
		}
	} else {
		writeArrayLen(w, len(resp.Groups), flexible)
		for _, g := range resp.Groups {
			writeNonNullStr(w, g.GroupID, flexible)
			writeOffsetFetchTopics(w, flexible, version, g.Topics)
			w.Int16(g.ErrorCode)
			writeTags(w, flexible, 0, nil, nil)
		}
	}
	writeTags(w, flexible, 0, nil, resp.UnknownTags)
}
