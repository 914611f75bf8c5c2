package kmsg

import "github.com/moraxdb/morax/internal/kbin"

type JoinGroupRequestProtocol struct {
	Name     string
	Metadata []byte
}

type JoinGroupRequest struct {
	GroupID            string
	SessionTimeoutMs   int32
	RebalanceTimeoutMs int32
	MemberID           string
	GroupInstanceID    string
	GroupInstanceIDSet bool
	ProtocolType       string
	Protocols          []JoinGroupRequestProtocol
	UnknownTags        []kbin.RawTag
}

func ReadJoinGroupRequest(r *kbin.Reader, version int16) JoinGroupRequest {
	var req JoinGroupRequest
	flexible := registry[KeyJoinGroup].RequestIsFlexible(version)
	req.GroupID = readNonNullStr(r, flexible)
	req.SessionTimeoutMs = r.Int32()
	if version >= 1 {
		req.RebalanceTimeoutMs = r.Int32()
	}
	req.MemberID = readNonNullStr(r, flexible)
	if version >= 5 {
		req.GroupInstanceID, req.GroupInstanceIDSet = readStr(r, flexible)
	}
	req.ProtocolType = readNonNullStr(r, flexible)
	n, _ := readArrayLen(r, flexible)
	req.Protocols = make([]JoinGroupRequestProtocol, 0, n)
	for i := 0; i < n; i++ {
		var p JoinGroupRequestProtocol
		p.Name = readNonNullStr(r, flexible)
		p.Metadata, _ = readBytes(r, flexible)
		tags(r, flexible, nil)
		req.Protocols = append(req.Protocols, p)
	}
	req.UnknownTags = tags(r, flexible, nil)
	return req
}

type JoinGroupResponseMember struct {
	MemberID        string
	GroupInstanceID string
	GroupInstanceIDSet bool
	Metadata        []byte
}

// JoinGroupResponse echoes generation_id, protocol, leader, member_id, and
// the member list per spec §4.7; the core returns the member list to every
// member rather than only the leader (clients tolerate it).
type JoinGroupResponse struct {
	ThrottleTimeMs int32
	ErrorCode      int16
	GenerationID   int32
	ProtocolType   string
	ProtocolTypeSet bool
	ProtocolName   string
	ProtocolNameSet bool
	LeaderID       string
	SkipAssignment bool
	MemberID       string
	Members        []JoinGroupResponseMember
	UnknownTags    []kbin.RawTag
}

func (resp JoinGroupResponse) Size(version int16) int {
	flexible := registry[KeyJoinGroup].ResponseIsFlexible(version)
	n := 0
	if version >= 2 {
		n += 4
	}
	n += 2 + 4
	if version >= 7 {
		n += sizeStr(resp.ProtocolType, resp.ProtocolTypeSet, flexible)
	}
	n += sizeStr(resp.ProtocolName, resp.ProtocolNameSet, flexible)
	n += sizeNonNullStr(resp.LeaderID, flexible)
	if version >= 9 {
		n++
	}
	n += sizeNonNullStr(resp.MemberID, flexible)
	n += sizeArrayLen(len(resp.Members), flexible)
	for _, m := range resp.Members {
		n += sizeNonNullStr(m.MemberID, flexible)
		if version >= 5 {
			n += sizeStr(m.GroupInstanceID, m.GroupInstanceIDSet, flexible)
		}
		n += sizeBytes(m.Metadata, true, flexible)
		n += sizeTags(flexible, 0, 0, nil)
	}
	n += sizeTags(flexible, 0, 0, resp.UnknownTags)
	return n
}

func (resp JoinGroupResponse) Write(w *kbin.Writer, version int16) {
	flexible := registry[KeyJoinGroup].ResponseIsFlexible(version)
	if version >= 2 {
		w.Int32(resp.ThrottleTimeMs)
	}
	w.Int16(resp.ErrorCode)
	w.Int32(resp.GenerationID)
	if version >= 7 {
		writeStr(w, resp.ProtocolType, resp.ProtocolTypeSet, flexible)
	}
	writeStr(w, resp.ProtocolName, resp.ProtocolNameSet, flexible)
	writeNonNullStr(w, resp.LeaderID, flexible)
	if version >= 9 {
		w.Bool(resp.SkipAssignment)
	}
	writeNonNullStr(w, resp.MemberID, flexible)
	writeArrayLen(w, len(resp.Members), flexible)
	for _, m := range resp.Members {
		writeNonNullStr(w, m.MemberID, flexible)
		if version >= 5 {
			writeStr(w, m.GroupInstanceID, m.GroupInstanceIDSet, flexible)
		}
		writeBytes(w, m.Metadata, true, flexible)
		writeTags(w, flexible, 0, nil, nil)
	}
	writeTags(w, flexible, 0, nil, resp.UnknownTags)
}
