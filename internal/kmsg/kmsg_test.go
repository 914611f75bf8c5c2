package kmsg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moraxdb/morax/internal/kbin"
)

func TestRequestHeaderVersionSelection(t *testing.T) {
	apiVersions, err := Lookup(KeyApiVersions)
	require.NoError(t, err)
	assert.Equal(t, int16(0), apiVersions.ResponseHeaderVersion(3))

	metadata, err := Lookup(KeyMetadata)
	require.NoError(t, err)
	assert.Equal(t, int16(1), metadata.RequestHeaderVersion(8))
	assert.Equal(t, int16(2), metadata.RequestHeaderVersion(9))
	assert.Equal(t, int16(0), metadata.ResponseHeaderVersion(8))
	assert.Equal(t, int16(1), metadata.ResponseHeaderVersion(9))
}

func TestLookupUnknownKey(t *testing.T) {
	_, err := Lookup(Key(999))
	require.Error(t, err)
}

func TestCheckVersionRejectsOutOfRange(t *testing.T) {
	t_, err := Lookup(KeyProduce)
	require.NoError(t, err)
	require.NoError(t, t_.CheckVersion(9))
	require.Error(t, t_.CheckVersion(10))
}

func TestRequestHeaderRoundtrip(t *testing.T) {
	h := RequestHeader{ApiKey: KeyMetadata, ApiVersion: 9, CorrelationID: 42, ClientID: "abc", ClientIDSet: true}
	w := kbin.NewWriter()
	h.Write(w, 2)
	require.Equal(t, h.Size(2), w.Len())

	r := kbin.NewReader(w.Bytes())
	got := ReadRequestHeader(r, 2, 0, 0)
	require.NoError(t, r.Err())
	assert.Equal(t, h.ApiKey, got.ApiKey)
	assert.Equal(t, h.ApiVersion, got.ApiVersion)
	assert.Equal(t, h.CorrelationID, got.CorrelationID)
	assert.Equal(t, h.ClientID, got.ClientID)
}

func TestApiVersionsResponseRoundtrip(t *testing.T) {
	resp := NewApiVersionsResponse()
	w := kbin.NewWriter()
	resp.Write(w, 3)
	require.Equal(t, resp.Size(3), w.Len())

	r := kbin.NewReader(w.Bytes())
	got := ReadApiVersionsResponse(r, 3)
	require.NoError(t, r.Err())
	assert.Equal(t, resp.ErrorCode, got.ErrorCode)
	assert.Equal(t, len(resp.ApiKeys), len(got.ApiKeys))
}

func TestProduceResponseRoundtripSize(t *testing.T) {
	resp := ProduceResponse{
		Topics: []ProduceResponseTopic{{
			Name: "orders",
			Partitions: []ProduceResponsePartition{
				{Index: 0, ErrorCode: 0, BaseOffset: 100},
			},
		}},
		ThrottleTimeMs: 0,
	}
	for _, v := range []int16{0, 5, 9} {
		w := kbin.NewWriter()
		resp.Write(w, v)
		require.Equal(t, resp.Size(v), w.Len(), "version %d", v)
	}
}

func TestFetchResponseRoundtripSize(t *testing.T) {
	resp := FetchResponse{
		Topics: []FetchResponseTopic{{
			Name: "orders",
			Partitions: []FetchResponsePartition{
				{PartitionIndex: 0, ErrorCode: 0, HighWatermark: 10, Records: []byte("hello")},
			},
		}},
	}
	for _, v := range []int16{0, 7, 15} {
		w := kbin.NewWriter()
		resp.Write(w, v)
		require.Equal(t, resp.Size(v), w.Len(), "version %d", v)
	}
}
