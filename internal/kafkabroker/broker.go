// Package kafkabroker implements the Kafka-wire-protocol front door:
// component D (the per-connection dispatcher) and component E (the
// per-API handlers), wired to the metadata store (F) and the split blob
// store (H). See spec §4.4, §4.5, §4.7.
package kafkabroker

import (
	"context"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/moraxdb/morax/internal/kerr"
	"github.com/moraxdb/morax/internal/kmsg"
	"github.com/moraxdb/morax/internal/metastore"
	"github.com/moraxdb/morax/internal/objstore"
)

// NodeInfo describes this broker's own identity, returned verbatim in
// Metadata and FindCoordinator responses (spec §4.5: "a single-broker
// cluster view").
type NodeInfo struct {
	NodeID        int32
	AdvertiseHost string
	AdvertisePort int32
	ClusterID     string
}

// ClientInfo is derived by the dispatcher from the peer connection and
// passed to every handler, per spec §4.5.
type ClientInfo struct {
	ClientID   string
	ClientHost string
}

// Broker holds the handler dependencies shared by every connection:
// the metadata store, the split blob store, and this node's identity.
type Broker struct {
	Node     NodeInfo
	Meta     *metastore.Store
	Splits   objstore.ReadWriter
	Logger   log.Logger

	metrics brokerMetrics
}

type brokerMetrics struct {
	requestsTotal   *prometheus.CounterVec
	orphanedSplits  prometheus.Counter
}

// New builds a Broker, registering its metrics with reg.
func New(node NodeInfo, meta *metastore.Store, splits objstore.ReadWriter, logger log.Logger, reg prometheus.Registerer) *Broker {
	return &Broker{
		Node:   node,
		Meta:   meta,
		Splits: splits,
		Logger: logger,
		metrics: brokerMetrics{
			requestsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
				Name: "morax_kafka_requests_total",
				Help: "Total Kafka requests handled, by api_key and error_code.",
			}, []string{"api_key", "error_code"}),
			orphanedSplits: promauto.With(reg).NewCounter(prometheus.CounterOpts{
				Name: "morax_orphaned_splits_total",
				Help: "Split blobs successfully written to object storage whose metadata commit subsequently failed (spec §9 Open Question #3).",
			}),
		},
	}
}

func (b *Broker) recordResult(apiKey kmsg.Key, code kerr.Code) {
	b.metrics.requestsTotal.WithLabelValues(apiKeyLabel(apiKey), code.Name()).Inc()
}

func apiKeyLabel(k kmsg.Key) string {
	switch k {
	case kmsg.KeyProduce:
		return "produce"
	case kmsg.KeyFetch:
		return "fetch"
	case kmsg.KeyMetadata:
		return "metadata"
	case kmsg.KeyOffsetFetch:
		return "offset_fetch"
	case kmsg.KeyFindCoordinator:
		return "find_coordinator"
	case kmsg.KeyJoinGroup:
		return "join_group"
	case kmsg.KeyHeartbeat:
		return "heartbeat"
	case kmsg.KeySyncGroup:
		return "sync_group"
	case kmsg.KeyApiVersions:
		return "api_versions"
	case kmsg.KeyCreateTopics:
		return "create_topics"
	case kmsg.KeyInitProducerId:
		return "init_producer_id"
	default:
		return "unknown"
	}
}

// ApiVersions returns the static table of supported APIs, per spec §4.5.
func (b *Broker) ApiVersions(_ context.Context, _ kmsg.ApiVersionsRequest, _ ClientInfo) kmsg.ApiVersionsResponse {
	resp := kmsg.NewApiVersionsResponse()
	b.recordResult(kmsg.KeyApiVersions, kerr.None)
	return resp
}

// Metadata returns a single-broker cluster view and every requested (or,
// if Topics is null, every known) topic with synthetic partition metadata,
// per spec §4.5. A failure to list all topics degrades to brokers-only with
// an empty topic list rather than failing the whole response; a named topic
// whose lookup fails is returned with UNKNOWN_TOPIC_OR_PARTITION.
func (b *Broker) Metadata(ctx context.Context, req kmsg.MetadataRequest, _ ClientInfo) kmsg.MetadataResponse {
	resp := kmsg.MetadataResponse{
		Brokers: []kmsg.MetadataBroker{{
			NodeID: b.Node.NodeID,
			Host:   b.Node.AdvertiseHost,
			Port:   b.Node.AdvertisePort,
		}},
		ClusterID:    b.Node.ClusterID,
		ClusterIDSet: true,
		ControllerID: b.Node.NodeID,
	}

	var topics []metastore.Topic
	var err error
	if req.TopicsIsNull {
		topics, err = b.Meta.ListTopics(ctx)
	} else {
		topics = make([]metastore.Topic, 0, len(req.Topics))
		for _, rt := range req.Topics {
			var t metastore.Topic
			var terr error
			if rt.NameSet {
				t, terr = b.Meta.TopicByName(ctx, rt.Name)
			} else {
				t, terr = b.Meta.TopicByID(ctx, uuidFromBytes(rt.TopicID))
			}
			if terr != nil {
				resp.Topics = append(resp.Topics, kmsg.MetadataTopic{
					ErrorCode: int16(kerr.UnknownTopicOrPartition),
					Name:      rt.Name,
					NameSet:   rt.NameSet,
				})
				continue
			}
			topics = append(topics, t)
		}
	}
	if err != nil {
		level.Warn(b.Logger).Log("msg", "metadata store unavailable, returning brokers only", "err", err)
		b.recordResult(kmsg.KeyMetadata, kerr.None)
		return resp
	}

	for _, t := range topics {
		mt := kmsg.MetadataTopic{
			Name:    t.Name,
			NameSet: true,
			TopicID: uuidBytes(t.TopicID),
		}
		for p := int32(0); p < t.Partitions; p++ {
			mt.Partitions = append(mt.Partitions, kmsg.MetadataPartition{
				PartitionIndex: p,
				LeaderID:       b.Node.NodeID,
				LeaderEpoch:    0,
				ReplicaNodes:   []int32{b.Node.NodeID},
				IsrNodes:       []int32{b.Node.NodeID},
			})
		}
		resp.Topics = append(resp.Topics, mt)
	}
	b.recordResult(kmsg.KeyMetadata, kerr.None)
	return resp
}

// CreateTopics inserts each requested topic via the metadata store,
// mapping a unique-constraint violation to TOPIC_ALREADY_EXISTS, per spec
// §4.5.
func (b *Broker) CreateTopics(ctx context.Context, req kmsg.CreateTopicsRequest, _ ClientInfo) kmsg.CreateTopicsResponse {
	resp := kmsg.CreateTopicsResponse{}
	for _, rt := range req.Topics {
		partitions := rt.NumPartitions
		if partitions < 1 {
			partitions = 1
		}
		rct := kmsg.CreateTopicsResponseTopic{Name: rt.Name, NumPartitions: partitions, ReplicationFactor: 1}
		topic, err := b.Meta.CreateTopic(ctx, rt.Name, partitions, nil)
		switch {
		case err == nil:
			rct.TopicID = uuidBytes(topic.TopicID)
			rct.ErrorCode = int16(kerr.None)
		case err == metastore.ErrTopicAlreadyExists:
			rct.ErrorCode = int16(kerr.TopicAlreadyExists)
			rct.ErrorMessage, rct.ErrorMessageSet = kerr.TopicAlreadyExists.Error(), true
		default:
			level.Error(b.Logger).Log("msg", "create topic failed", "topic", rt.Name, "err", err)
			rct.ErrorCode = int16(kerr.UnknownServerError)
			rct.ErrorMessage, rct.ErrorMessageSet = kerr.UnknownServerError.Error(), true
		}
		resp.Topics = append(resp.Topics, rct)
		b.recordResult(kmsg.KeyCreateTopics, kerr.Code(rct.ErrorCode))
	}
	return resp
}

// FindCoordinator always names the local broker, since this node is its
// own group and transaction coordinator in the stateless model (spec
// §4.5).
func (b *Broker) FindCoordinator(_ context.Context, req kmsg.FindCoordinatorRequest, _ ClientInfo) kmsg.FindCoordinatorResponse {
	resp := kmsg.FindCoordinatorResponse{
		NodeID: b.Node.NodeID,
		Host:   b.Node.AdvertiseHost,
		Port:   b.Node.AdvertisePort,
	}
	for _, key := range req.CoordinatorKeys {
		resp.Coordinators = append(resp.Coordinators, kmsg.FindCoordinatorResponseCoordinator{
			Key:    key,
			NodeID: b.Node.NodeID,
			Host:   b.Node.AdvertiseHost,
			Port:   b.Node.AdvertisePort,
		})
	}
	b.recordResult(kmsg.KeyFindCoordinator, kerr.None)
	return resp
}

// Heartbeat always succeeds; session-timeout eviction is out of scope
// (spec §4.5, §9 Open Question #1).
func (b *Broker) Heartbeat(_ context.Context, _ kmsg.HeartbeatRequest, _ ClientInfo) kmsg.HeartbeatResponse {
	b.recordResult(kmsg.KeyHeartbeat, kerr.None)
	return kmsg.HeartbeatResponse{}
}

// InitProducerId allocates the next value from the metadata store's
// producer-id sequence, per spec §4.5.
func (b *Broker) InitProducerId(ctx context.Context, _ kmsg.InitProducerIdRequest, _ ClientInfo) kmsg.InitProducerIdResponse {
	id, err := b.Meta.NextProducerID(ctx)
	if err != nil {
		level.Error(b.Logger).Log("msg", "init producer id failed", "err", err)
		b.recordResult(kmsg.KeyInitProducerId, kerr.UnknownServerError)
		return kmsg.InitProducerIdResponse{ErrorCode: int16(kerr.UnknownServerError)}
	}
	b.recordResult(kmsg.KeyInitProducerId, kerr.None)
	return kmsg.InitProducerIdResponse{ProducerID: id, ProducerEpoch: 0}
}

// OffsetFetch always reports committed_offset=0, committed_leader_epoch=0
// for every requested partition; real offset commits are not implemented
// (spec §4.5, §9 Open Question #2).
func (b *Broker) OffsetFetch(_ context.Context, req kmsg.OffsetFetchRequest, _ ClientInfo, version int16) kmsg.OffsetFetchResponse {
	b.recordResult(kmsg.KeyOffsetFetch, kerr.None)
	zeroTopics := func(topics []kmsg.OffsetFetchRequestTopic) []kmsg.OffsetFetchResponseTopic {
		out := make([]kmsg.OffsetFetchResponseTopic, 0, len(topics))
		for _, t := range topics {
			rt := kmsg.OffsetFetchResponseTopic{Name: t.Name}
			for _, p := range t.PartitionIndexes {
				rt.Partitions = append(rt.Partitions, kmsg.OffsetFetchResponsePartition{
					PartitionIndex:  p,
					CommittedOffset: 0,
				})
			}
			out = append(out, rt)
		}
		return out
	}
	if version < 8 {
		var topics []kmsg.OffsetFetchRequestTopic
		if len(req.Groups) > 0 {
			topics = req.Groups[0].Topics
		}
		return kmsg.OffsetFetchResponse{Topics: zeroTopics(topics)}
	}
	resp := kmsg.OffsetFetchResponse{}
	for _, g := range req.Groups {
		resp.Groups = append(resp.Groups, kmsg.OffsetFetchResponseGroup{
			GroupID: g.GroupID,
			Topics:  zeroTopics(g.Topics),
		})
	}
	return resp
}
