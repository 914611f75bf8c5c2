package kmsg

import "github.com/moraxdb/morax/internal/kbin"

type SyncGroupRequestAssignment struct {
	MemberID   string
	Assignment []byte
}

type SyncGroupRequest struct {
	GroupID            string
	GenerationID       int32
	MemberID           string
	GroupInstanceID    string
	GroupInstanceIDSet bool
	ProtocolType       string
	ProtocolTypeSet    bool
	ProtocolName       string
	ProtocolNameSet    bool
	Assignments        []SyncGroupRequestAssignment
	UnknownTags        []kbin.RawTag
}

func ReadSyncGroupRequest(r *kbin.Reader, version int16) SyncGroupRequest {
	var req SyncGroupRequest
	flexible := registry[KeySyncGroup].RequestIsFlexible(version)
	req.GroupID = readNonNullStr(r, flexible)
	req.GenerationID = r.Int32()
	req.MemberID = readNonNullStr(r, flexible)
	if version >= 3 {
		req.GroupInstanceID, req.GroupInstanceIDSet = readStr(r, flexible)
	}
	if version >= 5 {
		req.ProtocolType, req.ProtocolTypeSet = readStr(r, flexible)
		req.ProtocolName, req.ProtocolNameSet = readStr(r, flexible)
	}
	n, _ := readArrayLen(r, flexible)
	req.Assignments = make([]SyncGroupRequestAssignment, 0, n)
	for i := 0; i < n; i++ {
		var a SyncGroupRequestAssignment
		a.MemberID = readNonNullStr(r, flexible)
		a.Assignment, _ = readBytes(r, flexible)
		tags(r, flexible, nil)
		req.Assignments = append(req.Assignments, a)
	}
	req.UnknownTags = tags(r, flexible, nil)
	return req
}

// SyncGroupResponse echoes protocol_type, protocol_name, and the caller's
// own stored assignment per spec §4.7.
type SyncGroupResponse struct {
	ThrottleTimeMs  int32
	ErrorCode       int16
	ProtocolType    string
	ProtocolTypeSet bool
	ProtocolName    string
	ProtocolNameSet bool
	Assignment      []byte
	UnknownTags     []kbin.RawTag
}

func (resp SyncGroupResponse) Size(version int16) int {
	flexible := registry[KeySyncGroup].ResponseIsFlexible(version)
	n := 0
	if version >= 1 {
		n += 4
	}
	n += 2
	if version >= 5 {
		n += sizeStr(resp.ProtocolType, resp.ProtocolTypeSet, flexible)
		n += sizeStr(resp.ProtocolName, resp.ProtocolNameSet, flexible)
	}
	n += sizeBytes(resp.Assignment, true, flexible)
	n += sizeTags(flexible, 0, 0, resp.UnknownTags)
	return n
}

func (resp SyncGroupResponse) Write(w *kbin.Writer, version int16) {
	flexible := registry[KeySyncGroup].ResponseIsFlexible(version)
	if version >= 1 {
		w.Int32(resp.ThrottleTimeMs)
	}
	w.Int16(resp.ErrorCode)
	if version >= 5 {
		writeStr(w, resp.ProtocolType, resp.ProtocolTypeSet, flexible)
		writeStr(w, resp.ProtocolName, resp.ProtocolNameSet, flexible)
	}
	writeBytes(w, resp.Assignment, true, flexible)
	writeTags(w, flexible, 0, nil, resp.UnknownTags)
}
