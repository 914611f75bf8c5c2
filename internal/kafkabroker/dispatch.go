package kafkabroker

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/go-kit/log/level"

	"github.com/moraxdb/morax/internal/kbin"
	"github.com/moraxdb/morax/internal/kmsg"
)

// response is implemented by every kmsg.*Response type: Size/Write follow
// the same version-gated shape throughout the package.
type response interface {
	Size(version int16) int
	Write(w *kbin.Writer, version int16)
}

// ServeConn runs the per-connection dispatch loop described in spec §4.4:
// read a length-prefixed request, decode its header and body, call the
// matching handler, and write back a length-prefixed response. It returns
// when the connection is closed by the peer, a decode error occurs, or
// done is closed (cooperative shutdown — the in-flight request is allowed
// to finish first).
func (b *Broker) ServeConn(ctx context.Context, conn net.Conn, done <-chan struct{}) {
	defer conn.Close()
	host, _, _ := net.SplitHostPort(conn.RemoteAddr().String())

	// Unblock a read that is waiting for the next request once done closes.
	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-done:
			_ = conn.SetReadDeadline(time.Now())
		case <-finished:
		}
	}()

	for {
		select {
		case <-done:
			return
		default:
		}

		req, err := readFrame(conn)
		if err != nil {
			if err != io.EOF {
				level.Debug(b.Logger).Log("msg", "connection read failed", "remote", host, "err", err)
			}
			return
		}

		resp, respVersion, header, headerVersion, err := b.dispatch(ctx, req, ClientInfo{ClientHost: host})
		if err != nil {
			level.Warn(b.Logger).Log("msg", "request decode/dispatch failed, closing connection", "remote", host, "err", err)
			return
		}

		if err := writeFrame(conn, header, headerVersion, respVersion, resp); err != nil {
			level.Debug(b.Logger).Log("msg", "connection write failed", "remote", host, "err", err)
			return
		}
	}
}

func readFrame(conn net.Conn) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(conn, lenBuf[:]); err != nil {
		return nil, err
	}
	n := int32(binary.BigEndian.Uint32(lenBuf[:]))
	if n < 0 {
		return nil, fmt.Errorf("kafkabroker: negative frame length %d", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(conn, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func writeFrame(conn net.Conn, header kmsg.ResponseHeader, headerVersion, apiVersion int16, resp response) error {
	n := header.Size(headerVersion) + resp.Size(apiVersion)
	w := kbin.NewWriterSize(4 + n)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(n))
	w.Raw(lenBuf[:])
	header.Write(w, headerVersion)
	resp.Write(w, apiVersion)
	_, err := conn.Write(w.Bytes())
	return err
}

// dispatch decodes one request frame and invokes the matching handler. It
// returns the response, the api_version to encode it at, the request
// header (for correlation_id), and the response header version, or an
// error on an unknown api_key or malformed request — both of which close
// the connection per spec §4.4.
func (b *Broker) dispatch(ctx context.Context, frame []byte, client ClientInfo) (response, int16, kmsg.ResponseHeader, int16, error) {
	peek := kbin.NewReader(frame)
	apiKey := kmsg.Key(peek.Int16())
	apiVersion := peek.Int16()
	if err := peek.Err(); err != nil {
		return nil, 0, kmsg.ResponseHeader{}, 0, err
	}

	apiType, err := kmsg.Lookup(apiKey)
	if err != nil {
		return nil, 0, kmsg.ResponseHeader{}, 0, err
	}
	if err := apiType.CheckVersion(apiVersion); err != nil {
		return nil, 0, kmsg.ResponseHeader{}, 0, err
	}

	reqHeaderVersion := apiType.RequestHeaderVersion(apiVersion)
	r := kbin.NewReader(frame)
	header := kmsg.ReadRequestHeader(r, reqHeaderVersion, apiKey, apiVersion)
	client.ClientID = header.ClientID

	respHeaderVersion := apiType.ResponseHeaderVersion(apiVersion)
	respHeader := kmsg.ResponseHeader{CorrelationID: header.CorrelationID}

	resp, err := b.handle(ctx, apiKey, apiVersion, r, client)
	if err != nil {
		return nil, 0, kmsg.ResponseHeader{}, 0, err
	}
	if err := r.Err(); err != nil {
		return nil, 0, kmsg.ResponseHeader{}, 0, err
	}
	return resp, apiVersion, respHeader, respHeaderVersion, nil
}

func (b *Broker) handle(ctx context.Context, apiKey kmsg.Key, apiVersion int16, r *kbin.Reader, client ClientInfo) (response, error) {
	switch apiKey {
	case kmsg.KeyApiVersions:
		req := kmsg.ReadApiVersionsRequest(r, apiVersion)
		resp := b.ApiVersions(ctx, req, client)
		return resp, nil
	case kmsg.KeyMetadata:
		req := kmsg.ReadMetadataRequest(r, apiVersion)
		resp := b.Metadata(ctx, req, client)
		return resp, nil
	case kmsg.KeyCreateTopics:
		req := kmsg.ReadCreateTopicsRequest(r, apiVersion)
		resp := b.CreateTopics(ctx, req, client)
		return resp, nil
	case kmsg.KeyFindCoordinator:
		req := kmsg.ReadFindCoordinatorRequest(r, apiVersion)
		resp := b.FindCoordinator(ctx, req, client)
		return resp, nil
	case kmsg.KeyHeartbeat:
		req := kmsg.ReadHeartbeatRequest(r, apiVersion)
		resp := b.Heartbeat(ctx, req, client)
		return resp, nil
	case kmsg.KeyInitProducerId:
		req := kmsg.ReadInitProducerIdRequest(r, apiVersion)
		resp := b.InitProducerId(ctx, req, client)
		return resp, nil
	case kmsg.KeyOffsetFetch:
		req := kmsg.ReadOffsetFetchRequest(r, apiVersion)
		resp := b.OffsetFetch(ctx, req, client, apiVersion)
		return resp, nil
	case kmsg.KeyProduce:
		req := kmsg.ReadProduceRequest(r, apiVersion)
		resp := b.Produce(ctx, req, client)
		return resp, nil
	case kmsg.KeyFetch:
		req := kmsg.ReadFetchRequest(r, apiVersion)
		resp := b.Fetch(ctx, req, client)
		return resp, nil
	case kmsg.KeyJoinGroup:
		req := kmsg.ReadJoinGroupRequest(r, apiVersion)
		resp := b.JoinGroup(ctx, req, client)
		return resp, nil
	case kmsg.KeySyncGroup:
		req := kmsg.ReadSyncGroupRequest(r, apiVersion)
		resp := b.SyncGroup(ctx, req, client)
		return resp, nil
	default:
		return nil, fmt.Errorf("kafkabroker: unhandled api_key %d", apiKey)
	}
}
