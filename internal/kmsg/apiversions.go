package kmsg

import "github.com/moraxdb/morax/internal/kbin"

// ApiVersionsRequest carries the client's own software version info
// (versions 3+); the broker does not act on these fields but must decode
// and preserve them.
type ApiVersionsRequest struct {
	ClientSoftwareName    string
	ClientSoftwareVersion string
	UnknownTags           []kbin.RawTag
}

func ReadApiVersionsRequest(r *kbin.Reader, version int16) ApiVersionsRequest {
	var req ApiVersionsRequest
	flexible := registry[KeyApiVersions].RequestIsFlexible(version)
	if version >= 3 {
		req.ClientSoftwareName = readNonNullStr(r, flexible)
		req.ClientSoftwareVersion = readNonNullStr(r, flexible)
	}
	req.UnknownTags = tags(r, flexible, nil)
	return req
}

func (req ApiVersionsRequest) Size(version int16) int {
	flexible := registry[KeyApiVersions].RequestIsFlexible(version)
	n := 0
	if version >= 3 {
		n += sizeNonNullStr(req.ClientSoftwareName, flexible)
		n += sizeNonNullStr(req.ClientSoftwareVersion, flexible)
	}
	n += sizeTags(flexible, 0, 0, req.UnknownTags)
	return n
}

func (req ApiVersionsRequest) Write(w *kbin.Writer, version int16) {
	flexible := registry[KeyApiVersions].RequestIsFlexible(version)
	if version >= 3 {
		writeNonNullStr(w, req.ClientSoftwareName, flexible)
		writeNonNullStr(w, req.ClientSoftwareVersion, flexible)
	}
	writeTags(w, flexible, 0, nil, req.UnknownTags)
}

// ApiVersionKey is one entry of the supported-apis list in an ApiVersions
// response.
type ApiVersionKey struct {
	ApiKey     Key
	MinVersion int16
	MaxVersion int16
}

// ApiVersionsResponse enumerates every API this broker serves, per spec
// §4.5: ApiVersions always returns error code 0.
type ApiVersionsResponse struct {
	ErrorCode      int16
	ApiKeys        []ApiVersionKey
	ThrottleTimeMs int32
	UnknownTags    []kbin.RawTag
}

// NewApiVersionsResponse builds the static response from the registry.
func NewApiVersionsResponse() ApiVersionsResponse {
	apis := SupportedApis()
	keys := make([]ApiVersionKey, 0, len(apis))
	for _, a := range apis {
		keys = append(keys, ApiVersionKey{ApiKey: a.Key, MinVersion: a.Versions.Lowest, MaxVersion: a.Versions.Highest})
	}
	return ApiVersionsResponse{ErrorCode: 0, ApiKeys: keys}
}

func (resp ApiVersionsResponse) Size(version int16) int {
	flexible := registry[KeyApiVersions].ResponseIsFlexible(version)
	n := 2 // error_code
	n += sizeArrayLen(len(resp.ApiKeys), flexible)
	for range resp.ApiKeys {
		n += 2 + 2 + 2 // api_key, min_version, max_version
		n += sizeTags(flexible, 0, 0, nil)
	}
	if version >= 1 {
		n += 4 // throttle_time_ms
	}
	n += sizeTags(flexible, 0, 0, resp.UnknownTags)
	return n
}

func (resp ApiVersionsResponse) Write(w *kbin.Writer, version int16) {
	flexible := registry[KeyApiVersions].ResponseIsFlexible(version)
	w.Int16(resp.ErrorCode)
	writeArrayLen(w, len(resp.ApiKeys), flexible)
	for _, k := range resp.ApiKeys {
		w.Int16(int16(k.ApiKey))
		w.Int16(k.MinVersion)
		w.Int16(k.MaxVersion)
		writeTags(w, flexible, 0, nil, nil)
	}
	if version >= 1 {
		w.Int32(resp.ThrottleTimeMs)
	}
	writeTags(w, flexible, 0, nil, resp.UnknownTags)
}

func ReadApiVersionsResponse(r *kbin.Reader, version int16) ApiVersionsResponse {
	var resp ApiVersionsResponse
	flexible := registry[KeyApiVersions].ResponseIsFlexible(version)
	resp.ErrorCode = r.Int16()
	n, _ := readArrayLen(r, flexible)
	resp.ApiKeys = make([]ApiVersionKey, 0, n)
	for i := 0; i < n; i++ {
		var k ApiVersionKey
		k.ApiKey = Key(r.Int16())
		k.MinVersion = r.Int16()
		k.MaxVersion = r.Int16()
		tags(r, flexible, nil)
		resp.ApiKeys = append(resp.ApiKeys, k)
	}
	if version >= 1 {
		resp.ThrottleTimeMs = r.Int32()
	}
	resp.UnknownTags = tags(r, flexible, nil)
	return resp
}
