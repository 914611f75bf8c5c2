package kafkabroker

import (
	"context"
	"encoding/binary"
	"hash/crc32"
	"net"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moraxdb/morax/internal/kbin"
	"github.com/moraxdb/morax/internal/kmsg"
	"github.com/moraxdb/morax/internal/metastore"
	"github.com/moraxdb/morax/internal/recordbatch"
)

// encodeTestBatch builds one well-formed magic-v2 batch containing n
// trivial records, with a real CRC32C so it parses like a genuine
// producer-sent batch.
func encodeTestBatch(t *testing.T, n int32) []byte {
	t.Helper()
	const headerSize = 61

	var body []byte
	for i := int32(0); i < n; i++ {
		body = append(body, recordbatch.EncodeRecord(recordbatch.Record{
			OffsetDelta:  i,
			ValuePresent: true,
			Value:        []byte("v"),
		})...)
	}

	buf := make([]byte, headerSize+len(body))
	copy(buf[headerSize:], body)

	binary.BigEndian.PutUint64(buf[0:], 0)                       // base_offset
	binary.BigEndian.PutUint32(buf[8:], uint32(len(buf)-12))      // length
	binary.BigEndian.PutUint32(buf[12:], 0)                       // partition_leader_epoch
	buf[16] = 2                                                   // magic
	binary.BigEndian.PutUint16(buf[21:], 0)                       // attributes
	binary.BigEndian.PutUint32(buf[23:], uint32(n-1))             // last_offset_delta
	binary.BigEndian.PutUint64(buf[27:], 0)                       // base_timestamp
	binary.BigEndian.PutUint64(buf[35:], 0)                       // max_timestamp
	binary.BigEndian.PutUint64(buf[43:], 0)                       // producer_id
	binary.BigEndian.PutUint16(buf[51:], 0)                       // producer_epoch
	binary.BigEndian.PutUint32(buf[53:], 0)                       // base_sequence
	binary.BigEndian.PutUint32(buf[57:], uint32(n))               // records_count

	crc := crc32.Checksum(buf[21:], crc32.MakeTable(crc32.Castagnoli))
	binary.BigEndian.PutUint32(buf[17:], crc)
	return buf
}

func testBroker() *Broker {
	return New(NodeInfo{NodeID: 0, AdvertiseHost: "localhost", AdvertisePort: 9092, ClusterID: "morax"}, nil, nil, log.NewNopLogger(), prometheus.NewRegistry())
}

func TestApiVersionsRoundTripOverPipe(t *testing.T) {
	b := testBroker()
	clientConn, serverConn := net.Pipe()
	done := make(chan struct{})

	go func() {
		b.ServeConn(context.Background(), serverConn, done)
	}()
	defer clientConn.Close()
	defer close(done)

	reqHeader := kmsg.RequestHeader{ApiKey: int16(kmsg.KeyApiVersions), ApiVersion: 3, CorrelationID: 42, ClientID: "test-client", ClientIDSet: true}
	var req kmsg.ApiVersionsRequest

	w := kbin.NewWriter()
	reqHeader.Write(w, 2) // header v2 is flexible; ApiVersions v3 requests are flexible
	req.Write(w, 3)
	body := w.Bytes()

	frame := kbin.NewWriter()
	frame.Int32(int32(len(body)))
	frame.Raw(body)

	writeDone := make(chan error, 1)
	go func() {
		_, err := clientConn.Write(frame.Bytes())
		writeDone <- err
	}()
	require.NoError(t, <-writeDone)

	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	lenBuf := make([]byte, 4)
	_, err := readFull(clientConn, lenBuf)
	require.NoError(t, err)
	n := int32(lenBuf[0])<<24 | int32(lenBuf[1])<<16 | int32(lenBuf[2])<<8 | int32(lenBuf[3])
	respBuf := make([]byte, n)
	_, err = readFull(clientConn, respBuf)
	require.NoError(t, err)

	r := kbin.NewReader(respBuf)
	correlationID := r.Int32() // ApiVersions response header is always v0: bare correlation_id
	require.NoError(t, r.Err())
	assert.Equal(t, int32(42), correlationID)

	resp := kmsg.ReadApiVersionsResponse(r, 3)
	require.NoError(t, r.Err())
	assert.Equal(t, int16(0), resp.ErrorCode)
	assert.NotEmpty(t, resp.ApiKeys)
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func TestNextGenerationProtocolVotingPicksPlurality(t *testing.T) {
	group := metastore.GroupMeta{
		GenerationID: 0,
		Members: map[string]metastore.MemberMeta{
			"m1": {ProtocolOrder: []string{"range", "roundrobin"}, Protocols: map[string][]byte{"range": {1}, "roundrobin": {2}}},
			"m2": {ProtocolOrder: []string{"roundrobin", "range"}, Protocols: map[string][]byte{"range": {1}, "roundrobin": {2}}},
			"m3": {ProtocolOrder: []string{"roundrobin"}, Protocols: map[string][]byte{"roundrobin": {2}, "range": {1}}},
		},
	}

	next, err := nextGeneration(group)
	require.NoError(t, err)
	assert.Equal(t, int32(1), next.GenerationID)
	assert.Equal(t, "roundrobin", next.Protocol)
}

func TestNextGenerationEmptyIntersectionFails(t *testing.T) {
	group := metastore.GroupMeta{
		Members: map[string]metastore.MemberMeta{
			"m1": {ProtocolOrder: []string{"range"}, Protocols: map[string][]byte{"range": {1}}},
			"m2": {ProtocolOrder: []string{"sticky"}, Protocols: map[string][]byte{"sticky": {1}}},
		},
	}

	_, err := nextGeneration(group)
	require.Error(t, err)
}

func TestNextGenerationNoMembersClearsProtocol(t *testing.T) {
	next, err := nextGeneration(metastore.GroupMeta{Members: map[string]metastore.MemberMeta{}})
	require.NoError(t, err)
	assert.Equal(t, "", next.Protocol)
	assert.Equal(t, int32(1), next.GenerationID)
}

func TestHeartbeatAlwaysSucceeds(t *testing.T) {
	b := testBroker()
	resp := b.Heartbeat(context.Background(), kmsg.HeartbeatRequest{GroupID: "g", MemberID: "m"}, ClientInfo{})
	assert.Equal(t, int16(0), resp.ErrorCode)
}

func TestFindCoordinatorAlwaysLocal(t *testing.T) {
	b := testBroker()
	resp := b.FindCoordinator(context.Background(), kmsg.FindCoordinatorRequest{Key: "g", KeyType: 0}, ClientInfo{})
	assert.Equal(t, int32(0), resp.NodeID)
	assert.Equal(t, "localhost", resp.Host)
}

func TestCountRecordsSumsAcrossBatchesNotBatchCount(t *testing.T) {
	one := encodeTestBatch(t, 3)
	two := encodeTestBatch(t, 5)

	n, err := countRecords(append(append([]byte(nil), one...), two...))
	require.NoError(t, err)
	assert.EqualValues(t, 8, n)
}

func TestCountRecordsRejectsShortBuffer(t *testing.T) {
	_, err := countRecords([]byte{1, 2, 3})
	require.Error(t, err)
}
