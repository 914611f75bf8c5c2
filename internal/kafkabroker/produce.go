package kafkabroker

import (
	"context"

	"github.com/go-kit/log/level"

	"github.com/moraxdb/morax/internal/kerr"
	"github.com/moraxdb/morax/internal/kmsg"
	"github.com/moraxdb/morax/internal/metastore"
	"github.com/moraxdb/morax/internal/objstore"
	"github.com/moraxdb/morax/internal/recordbatch"
)

// Produce writes one split blob per requested (topic, partition) and
// commits its offset range via the metadata store, per spec §4.5.
func (b *Broker) Produce(ctx context.Context, req kmsg.ProduceRequest, _ ClientInfo) kmsg.ProduceResponse {
	resp := kmsg.ProduceResponse{}
	for _, t := range req.Topics {
		rt := kmsg.ProduceResponseTopic{Name: t.Name}

		topic, err := b.Meta.TopicByName(ctx, t.Name)
		if err != nil {
			for _, p := range t.Partitions {
				rt.Partitions = append(rt.Partitions, kmsg.ProduceResponsePartition{Index: p.Index, ErrorCode: int16(kerr.UnknownTopicOrPartition)})
				b.recordResult(kmsg.KeyProduce, kerr.UnknownTopicOrPartition)
			}
			resp.Topics = append(resp.Topics, rt)
			continue
		}
		if topic.Format() != metastore.FormatKafka {
			for _, p := range t.Partitions {
				rt.Partitions = append(rt.Partitions, kmsg.ProduceResponsePartition{Index: p.Index, ErrorCode: int16(kerr.UnsupportedForMessageFmt)})
				b.recordResult(kmsg.KeyProduce, kerr.UnsupportedForMessageFmt)
			}
			resp.Topics = append(resp.Topics, rt)
			continue
		}

		for _, p := range t.Partitions {
			rp := b.producePartition(ctx, t.Name, p)
			rt.Partitions = append(rt.Partitions, rp)
			b.recordResult(kmsg.KeyProduce, kerr.Code(rp.ErrorCode))
		}
		resp.Topics = append(resp.Topics, rt)
	}
	return resp
}

func (b *Broker) producePartition(ctx context.Context, topicName string, p kmsg.ProduceRequestPartition) kmsg.ProduceResponsePartition {
	recordLen, err := countRecords(p.Records)
	if err != nil {
		level.Warn(b.Logger).Log("msg", "produce decode failed", "topic", topicName, "partition", p.Index, "err", err)
		return kmsg.ProduceResponsePartition{Index: p.Index, ErrorCode: int16(kerr.InvalidRecord)}
	}
	// Each split holds exactly one record batch, so Fetch can rewrite its
	// offsets from the split's range alone.
	if batches, _ := recordbatch.Wrap(p.Records).Count(); batches != 1 {
		level.Warn(b.Logger).Log("msg", "produce rejected: split must hold exactly one record batch", "topic", topicName, "partition", p.Index, "batches", batches)
		return kmsg.ProduceResponsePartition{Index: p.Index, ErrorCode: int16(kerr.InvalidRecord)}
	}

	splitID := objstore.NewSplitID()
	key := objstore.KafkaSplitKey(topicName, p.Index, splitID)
	if err := b.Splits.Write(ctx, key, p.Records); err != nil {
		level.Error(b.Logger).Log("msg", "produce blob write failed", "topic", topicName, "partition", p.Index, "err", err)
		return kmsg.ProduceResponsePartition{Index: p.Index, ErrorCode: int16(kerr.KafkaStorageError)}
	}

	start, _, err := b.Meta.CommitRecordBatch(ctx, topicName, p.Index, recordLen, splitID)
	if err != nil {
		// The blob in H is already durable; only the metadata commit failed.
		// It is left in place as an orphan rather than garbage-collected
		// here (spec §9 Open Question #3).
		b.metrics.orphanedSplits.Inc()
		level.Error(b.Logger).Log("msg", "produce commit failed, split orphaned", "topic", topicName, "partition", p.Index, "split_id", splitID, "err", err)
		return kmsg.ProduceResponsePartition{Index: p.Index, ErrorCode: int16(kerr.KafkaStorageError)}
	}

	return kmsg.ProduceResponsePartition{Index: p.Index, BaseOffset: start, ErrorCode: int16(kerr.None)}
}

// countRecords sums records_count across every batch in buf. Offsets
// advance by this total, not by the number of batch containers (spec §4.5
// step 2): a producer may pack many records into one batch.
func countRecords(buf []byte) (int64, error) {
	var total int64
	err := recordbatch.Wrap(buf).Each(func(v recordbatch.View) error {
		total += int64(v.RecordsCount())
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}
