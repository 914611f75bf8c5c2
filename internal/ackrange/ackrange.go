// Package ackrange implements the half-open interval bookkeeping behind
// Pub/Sub acknowledgement tracking: merging newly-acked ids into a
// subscription's stored range set, and computing the unacked windows a pull
// should serve from. See spec §4.8.
package ackrange

import "sort"

// Range is a half-open interval [Start, End) of message ids.
type Range struct {
	Start int64
	End   int64
}

// Merge sorts ranges by start and coalesces any that touch or overlap,
// returning a new sorted, disjoint slice. An empty input yields an empty
// output.
func Merge(ranges []Range) []Range {
	if len(ranges) == 0 {
		return nil
	}
	sorted := make([]Range, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	out := make([]Range, 0, len(sorted))
	current := sorted[0]
	for _, r := range sorted[1:] {
		if r.Start <= current.End {
			if r.End > current.End {
				current.End = r.End
			}
			continue
		}
		out = append(out, current)
		current = r
	}
	out = append(out, current)
	return out
}

// Ack folds a batch of newly-acknowledged message ids into an existing,
// already-merged range set, returning the new merged set. Each id i
// contributes the singleton range [i, i+1).
func Ack(existing []Range, ids []int64) []Range {
	next := make([]Range, 0, len(existing)+len(ids))
	next = append(next, existing...)
	for _, id := range ids {
		next = append(next, Range{Start: id, End: id + 1})
	}
	return Merge(next)
}

// Unacked computes the open intervals between a sorted, disjoint set of
// acked ranges, plus a trailing window of width max extending past the last
// ack (or from zero, if acks is empty). This is the set of ranges a pull
// should search for unacknowledged messages.
//
// acks must already be sorted and disjoint, as produced by Merge.
func Unacked(acks []Range, max int64) []Range {
	cur := Range{0, 0}
	out := make([]Range, 0, len(acks)+1)
	for _, r := range acks {
		if r.Start > cur.End {
			out = append(out, Range{cur.End, r.Start})
		}
		cur = r
	}
	out = append(out, Range{cur.End, cur.End + max})
	return out
}
