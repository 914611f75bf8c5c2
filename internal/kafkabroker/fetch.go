package kafkabroker

import (
	"context"

	"github.com/go-kit/log/level"
	"github.com/google/uuid"

	"github.com/moraxdb/morax/internal/kerr"
	"github.com/moraxdb/morax/internal/kmsg"
	"github.com/moraxdb/morax/internal/metastore"
	"github.com/moraxdb/morax/internal/objstore"
	"github.com/moraxdb/morax/internal/recordbatch"
)

// Fetch resolves the requested (topic, partition, fetch_offset) tuples
// against the metadata store's split index, reads each split's blob, and
// rewrites its batch's base_offset so its last offset equals the split's
// end_offset - 1, per spec §4.5.
func (b *Broker) Fetch(ctx context.Context, req kmsg.FetchRequest, _ ClientInfo) kmsg.FetchResponse {
	resp := kmsg.FetchResponse{}
	for _, t := range req.Topics {
		var topic metastore.Topic
		var err error
		if zero := (uuid.UUID{}); t.TopicID != zero {
			topic, err = b.Meta.TopicByID(ctx, uuidFromBytes(t.TopicID))
		} else {
			topic, err = b.Meta.TopicByName(ctx, t.Name)
		}
		rt := kmsg.FetchResponseTopic{Name: t.Name, TopicID: t.TopicID}
		if err != nil {
			for _, p := range t.Partitions {
				rt.Partitions = append(rt.Partitions, kmsg.FetchResponsePartition{
					PartitionIndex: p.Partition,
					ErrorCode:      int16(kerr.UnknownTopicOrPartition),
				})
				b.recordResult(kmsg.KeyFetch, kerr.UnknownTopicOrPartition)
			}
			resp.Topics = append(resp.Topics, rt)
			continue
		}
		for _, p := range t.Partitions {
			rp := b.fetchPartition(ctx, topic, p)
			rt.Partitions = append(rt.Partitions, rp)
			b.recordResult(kmsg.KeyFetch, kerr.Code(rp.ErrorCode))
		}
		resp.Topics = append(resp.Topics, rt)
	}
	return resp
}

func (b *Broker) fetchPartition(ctx context.Context, topic metastore.Topic, p kmsg.FetchRequestPartition) kmsg.FetchResponsePartition {
	splits, err := b.Meta.SplitsAfter(ctx, topic.TopicID, p.Partition, p.FetchOffset)
	if err != nil {
		level.Error(b.Logger).Log("msg", "fetch split query failed", "topic", topic.Name, "partition", p.Partition, "err", err)
		return kmsg.FetchResponsePartition{PartitionIndex: p.Partition, ErrorCode: int16(kerr.KafkaStorageError)}
	}

	var records []byte
	var maxEnd int64
	for _, split := range splits {
		blob, err := b.Splits.Read(ctx, objstore.KafkaSplitKey(topic.Name, p.Partition, split.SplitID))
		if err != nil {
			level.Error(b.Logger).Log("msg", "fetch blob read failed", "topic", topic.Name, "partition", p.Partition, "split_id", split.SplitID, "err", err)
			return kmsg.FetchResponsePartition{PartitionIndex: p.Partition, ErrorCode: int16(kerr.KafkaStorageError)}
		}
		blob = append([]byte(nil), blob...)
		if err := recordbatch.Wrap(blob).Each(func(v recordbatch.View) error {
			v.AsMutable().SetLastOffset(split.EndOffset - 1)
			return nil
		}); err != nil {
			level.Warn(b.Logger).Log("msg", "fetch decode failed", "topic", topic.Name, "partition", p.Partition, "split_id", split.SplitID, "err", err)
			return kmsg.FetchResponsePartition{PartitionIndex: p.Partition, ErrorCode: int16(kerr.InvalidRecord)}
		}
		records = append(records, blob...)
		if split.EndOffset > maxEnd {
			maxEnd = split.EndOffset
		}
	}

	hw := maxEnd - 1
	if hw < 0 {
		hw = 0
	}
	return kmsg.FetchResponsePartition{
		PartitionIndex:   p.Partition,
		ErrorCode:        int16(kerr.None),
		HighWatermark:    hw,
		LastStableOffset: hw,
		LogStartOffset:   0,
		Records:          records,
	}
}
