package metastore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/moraxdb/morax/internal/ackrange"
)

func TestPgInt8RangeArrayScanEmpty(t *testing.T) {
	var a pgInt8RangeArray
	require.NoError(t, a.Scan(nil))
	require.Nil(t, a.toRanges())

	require.NoError(t, a.Scan("{}"))
	require.Nil(t, a.toRanges())
}

func TestPgInt8RangeArrayScanRoundTrip(t *testing.T) {
	want := []ackrange.Range{{Start: 0, End: 1}, {Start: 2, End: 5}}

	var a pgInt8RangeArray
	require.NoError(t, a.Scan(`{"[0,1)","[2,5)"}`))
	require.Equal(t, want, a.toRanges())

	require.Equal(t, `{"[0,1)","[2,5)"}`, fromRanges(want))
}

func TestPgInt8RangeArrayScanFromBytes(t *testing.T) {
	var a pgInt8RangeArray
	require.NoError(t, a.Scan([]byte(`{"[10,20)"}`)))
	require.Equal(t, []ackrange.Range{{Start: 10, End: 20}}, a.toRanges())
}

func TestPgInt8RangeArrayScanRejectsUnsupportedType(t *testing.T) {
	var a pgInt8RangeArray
	require.Error(t, a.Scan(42))
}

func TestParsePgInt8RangeArrayMalformed(t *testing.T) {
	_, err := parsePgInt8RangeArray(`{"[0,oops)"}`)
	require.Error(t, err)
}

func TestFromRangesEmpty(t *testing.T) {
	require.Equal(t, "{}", fromRanges(nil))
}
