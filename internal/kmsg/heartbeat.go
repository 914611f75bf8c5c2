package kmsg

import "github.com/moraxdb/morax/internal/kbin"

type HeartbeatRequest struct {
	GroupID      string
	GenerationID int32
	MemberID     string
	GroupInstanceID string
	GroupInstanceIDSet bool
	UnknownTags  []kbin.RawTag
}

func ReadHeartbeatRequest(r *kbin.Reader, version int16) HeartbeatRequest {
	var req HeartbeatRequest
	flexible := registry[KeyHeartbeat].RequestIsFlexible(version)
	req.GroupID = readNonNullStr(r, flexible)
	req.GenerationID = r.Int32()
	req.MemberID = readNonNullStr(r, flexible)
	if version >= 3 {
		req.GroupInstanceID, req.GroupInstanceIDSet = readStr(r, flexible)
	}
	req.UnknownTags = tags(r, flexible, nil)
	return req
}

// HeartbeatResponse always reports success; session-timeout eviction is not
// implemented in this core (see Open Question decisions in DESIGN.md).
type HeartbeatResponse struct {
	ThrottleTimeMs int32
	ErrorCode      int16
	UnknownTags    []kbin.RawTag
}

func (resp HeartbeatResponse) Size(version int16) int {
	flexible := registry[KeyHeartbeat].ResponseIsFlexible(version)
	n := 0
	if version >= 1 {
		n += 4
	}
	n += 2
	n += sizeTags(flexible, 0, 0, resp.UnknownTags)
	return n
}

func (resp HeartbeatResponse) Write(w *kbin.Writer, version int16) {
	flexible := registry[KeyHeartbeat].ResponseIsFlexible(version)
	if version >= 1 {
		w.Int32(resp.ThrottleTimeMs)
	}
	w.Int16(resp.ErrorCode)
	writeTags(w, flexible, 0, nil, resp.UnknownTags)
}
