// Package kmsg implements the Kafka request/response message schemas this
// broker understands: per-API version-gated encode/decode, the API-key
// registry, and the header framing rules that select which header version
// accompanies a given request/response pair. See spec §4.2.
package kmsg

import "fmt"

// Key identifies a Kafka API by its numeric api_key.
type Key int16

const (
	KeyProduce         Key = 0
	KeyFetch           Key = 1
	KeyMetadata        Key = 3
	KeyOffsetFetch     Key = 9
	KeyFindCoordinator Key = 10
	KeyJoinGroup       Key = 11
	KeyHeartbeat       Key = 12
	KeySyncGroup       Key = 14
	KeyApiVersions     Key = 18
	KeyCreateTopics    Key = 19
	KeyInitProducerId  Key = 22
)

// VersionRange is the closed interval of api_versions this broker
// understands for a given api_key.
type VersionRange struct {
	Lowest  int16
	Highest int16
}

// ApiMessageType describes one supported API: its supported version range
// and the version at which each direction's encoding switches to the
// flexible (KIP-482) framing (tagged fields, compact strings/bytes/arrays).
// A RequestFlexSince or ResponseFlexSince of -1 means the direction never uses flexible framing
// within the supported range.
type ApiMessageType struct {
	Key              Key
	Name             string
	Versions         VersionRange
	RequestFlexSince  int16
	ResponseFlexSince int16
}

// registry is the static table of every API this broker serves, keyed by
// api_key. Ranges and flexible-version cutovers follow the published Kafka
// protocol for each listed API.
var registry = map[Key]ApiMessageType{
	KeyProduce:         {KeyProduce, "Produce", VersionRange{0, 9}, 9, 9},
	KeyFetch:           {KeyFetch, "Fetch", VersionRange{0, 15}, 12, 12},
	KeyMetadata:        {KeyMetadata, "Metadata", VersionRange{0, 12}, 9, 9},
	KeyOffsetFetch:     {KeyOffsetFetch, "OffsetFetch", VersionRange{0, 8}, 6, 6},
	KeyFindCoordinator: {KeyFindCoordinator, "FindCoordinator", VersionRange{0, 4}, 3, 3},
	KeyJoinGroup:       {KeyJoinGroup, "JoinGroup", VersionRange{0, 9}, 6, 6},
	KeyHeartbeat:       {KeyHeartbeat, "Heartbeat", VersionRange{0, 4}, 4, 4},
	KeySyncGroup:       {KeySyncGroup, "SyncGroup", VersionRange{0, 5}, 4, 4},
	KeyApiVersions:     {KeyApiVersions, "ApiVersions", VersionRange{0, 3}, 3, 3},
	KeyCreateTopics:    {KeyCreateTopics, "CreateTopics", VersionRange{0, 7}, 5, 5},
	KeyInitProducerId:  {KeyInitProducerId, "InitProducerId", VersionRange{0, 4}, 2, 2},
}

// ErrUnknownAPIKey is returned by Lookup for an api_key this broker does not
// serve; the dispatcher treats this as a fatal decode error (spec §4.4).
type ErrUnknownAPIKey struct{ Key Key }

func (e ErrUnknownAPIKey) Error() string {
	return fmt.Sprintf("kmsg: unknown api key %d", e.Key)
}

// ErrUnsupportedVersion is returned when a request names an api_version
// outside the registered range for its api_key.
type ErrUnsupportedVersion struct {
	Key     Key
	Version int16
}

func (e ErrUnsupportedVersion) Error() string {
	return fmt.Sprintf("kmsg: api key %d does not support version %d", e.Key, e.Version)
}

// Lookup returns the registered ApiMessageType for key, or
// ErrUnknownAPIKey.
func Lookup(key Key) (ApiMessageType, error) {
	t, ok := registry[key]
	if !ok {
		return ApiMessageType{}, ErrUnknownAPIKey{Key: key}
	}
	return t, nil
}

// CheckVersion validates that version falls within t's supported range.
func (t ApiMessageType) CheckVersion(version int16) error {
	if version < t.Versions.Lowest || version > t.Versions.Highest {
		return ErrUnsupportedVersion{Key: t.Key, Version: version}
	}
	return nil
}

// RequestIsFlexible reports whether requests at the given version use
// flexible (KIP-482) framing.
func (t ApiMessageType) RequestIsFlexible(version int16) bool {
	return t.RequestFlexSince >= 0 && version >= t.RequestFlexSince
}

// ResponseIsFlexible reports whether responses at the given version use
// flexible (KIP-482) framing.
func (t ApiMessageType) ResponseIsFlexible(version int16) bool {
	return t.ResponseFlexSince >= 0 && version >= t.ResponseFlexSince
}

// RequestHeaderVersion derives the request header version per spec §4.2:
// v2 if the request body at this version is flexible, else v1.
func (t ApiMessageType) RequestHeaderVersion(version int16) int16 {
	if t.RequestIsFlexible(version) {
		return 2
	}
	return 1
}

// ResponseHeaderVersion derives the response header version per spec §4.2:
// v1 if the response body at this version is flexible, else v0 — except
// ApiVersions, whose response always uses header v0 for backwards
// compatibility with clients probing an unknown broker version.
func (t ApiMessageType) ResponseHeaderVersion(version int16) int16 {
	if t.Key == KeyApiVersions {
		return 0
	}
	if t.ResponseIsFlexible(version) {
		return 1
	}
	return 0
}

// SupportedApis returns every registered ApiMessageType, used to answer
// ApiVersions requests. The returned slice is sorted by Key ascending.
func SupportedApis() []ApiMessageType {
	out := make([]ApiMessageType, 0, len(registry))
	for _, t := range registry {
		out = append(out, t)
	}
	// Small fixed set; insertion sort keeps this dependency-free.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].Key > out[j].Key; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
