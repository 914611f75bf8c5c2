package ackrange

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeSortsAndCoalesces(t *testing.T) {
	in := []Range{{10, 12}, {0, 1}, {1, 3}, {5, 6}}
	got := Merge(in)
	want := []Range{{0, 3}, {5, 6}, {10, 12}}
	assert.Equal(t, want, got)
}

func TestMergeTouchingRangesCoalesce(t *testing.T) {
	// [2,4) and [4,6) touch at 4 and must merge into one range.
	got := Merge([]Range{{2, 4}, {4, 6}})
	assert.Equal(t, []Range{{2, 6}}, got)
}

func TestMergeEmpty(t *testing.T) {
	assert.Nil(t, Merge(nil))
}

func TestAckAddsSingletonsAndMerges(t *testing.T) {
	existing := []Range{{0, 3}}
	got := Ack(existing, []int64{3, 4, 10})
	want := []Range{{0, 5}, {10, 11}}
	assert.Equal(t, want, got)
}

func TestUnackedNoAcks(t *testing.T) {
	got := Unacked(nil, 5)
	assert.Equal(t, []Range{{0, 5}}, got)
}

func TestUnackedBetweenAndTail(t *testing.T) {
	acks := []Range{{0, 3}, {5, 6}}
	got := Unacked(acks, 4)
	want := []Range{{3, 5}, {6, 10}}
	assert.Equal(t, want, got)
}

func TestUnackedAdjacentAcksProduceNoGap(t *testing.T) {
	acks := []Range{{0, 3}, {3, 7}}
	got := Unacked(acks, 2)
	assert.Equal(t, []Range{{7, 9}}, got)
}
