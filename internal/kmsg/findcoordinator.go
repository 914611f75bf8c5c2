package kmsg

import "github.com/moraxdb/morax/internal/kbin"

type FindCoordinatorRequest struct {
	Key         string
	KeyType     int8
	CoordinatorKeys []string
	UnknownTags []kbin.RawTag
}

func ReadFindCoordinatorRequest(r *kbin.Reader, version int16) FindCoordinatorRequest {
	var req FindCoordinatorRequest
	flexible := registry[KeyFindCoordinator].RequestIsFlexible(version)
	if version < 4 {
		req.Key = readNonNullStr(r, flexible)
	}
	if version >= 1 {
		req.KeyType = r.Int8()
	}
	if version >= 4 {
		n, _ := readArrayLen(r, flexible)
		req.CoordinatorKeys = make([]string, 0, n)
		for i := 0; i < n; i++ {
			req.CoordinatorKeys = append(req.CoordinatorKeys, readNonNullStr(r, flexible))
		}
	}
	req.UnknownTags = tags(r, flexible, nil)
	return req
}

// FindCoordinatorResponse always names the local broker as the coordinator
// for every requested key, since this broker is its own coordinator in the
// stateless model (spec §4.5).
type FindCoordinatorResponse struct {
	ThrottleTimeMs int32
	ErrorCode      int16
	ErrorMessage   string
	ErrorMessageSet bool
	NodeID         int32
	Host           string
	Port           int32
	Coordinators   []FindCoordinatorResponseCoordinator
	UnknownTags    []kbin.RawTag
}

type FindCoordinatorResponseCoordinator struct {
	Key          string
	NodeID       int32
	Host         string
	Port         int32
	ErrorCode    int16
	ErrorMessage string
	ErrorMessageSet bool
}

func (resp FindCoordinatorResponse) Size(version int16) int {
	flexible := registry[KeyFindCoordinator].ResponseIsFlexible(version)
	n := 4
	if version < 4 {
		n += 2
		if version >= 1 {
			n += sizeStr(resp.ErrorMessage, resp.ErrorMessageSet, flexible)
		}
		n += 4
		n += sizeNonNullStr(resp.Host, flexible)
		n += 4
	} else {
		n += sizeArrayLen(len(resp.Coordinators), flexible)
		for _, c := range resp.Coordinators {
			n += sizeNonNullStr(c.Key, flexible)
			n += 4
			n += sizeNonNullStr(c.Host, flexible)
			n += 4
			n += 2
			n += sizeStr(c.ErrorMessage, c.ErrorMessageSet, flexible)
			n += sizeTags(flexible, 0, 0, nil)
		}
	}
	n += sizeTags(flexible, 0, 0, resp.UnknownTags)
	return n
}

func (resp FindCoordinatorResponse) Write(w *kbin.Writer, version int16) {
	flexible := registry[KeyFindCoordinator].ResponseIsFlexible(version)
	w.Int32(resp.ThrottleTimeMs)
	if version < 4 {
		w.Int16(resp.ErrorCode)
		if version >= 1 {
			writeStr(w, resp.ErrorMessage, resp.ErrorMessageSet, flexible)
		}
		w.Int32(resp.NodeID)
		writeNonNullStr(w, resp.Host, flexible)
		w.Int32(resp.Port)
	} else {
		writeArrayLen(w, len(resp.Coordinators), flexible)
		for _, c := range resp.Coordinators {
			writeNonNullStr(w, c.Key, flexible)
			w.Int32(c.NodeID)
			writeNonNullStr(w, c.Host, flexible)
			w.Int32(c.Port)
			w.Int16(c.ErrorCode)
			writeStr(w, c.ErrorMessage, c.ErrorMessageSet, flexible)
			writeTags(w, flexible, 0, nil, nil)
		}
	}
	writeTags(w, flexible, 0, nil, resp.UnknownTags)
}
