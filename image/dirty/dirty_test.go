package dirty

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Tracker_AlignsToWords(t *testing.T) {
	tr := NewTracker()
	tr.Add(12, 2)

	got := tr.Ranges()
	require.Equal(t, []Range{{Off: 8, Len: 8}}, got)
}

func Test_Tracker_CoalescesAdjacentSlots(t *testing.T) {
	tr := NewTracker()
	// Three consecutive class-ref slots, written out of order.
	tr.Add(0x110, 8)
	tr.Add(0x100, 8)
	tr.Add(0x108, 8)

	require.Equal(t, []Range{{Off: 0x100, Len: 0x18}}, tr.Ranges())
	require.Equal(t, 3, tr.Len())
}

func Test_Tracker_KeepsSeparateRanges(t *testing.T) {
	tr := NewTracker()
	tr.Add(0x200, 8)
	tr.Add(0x100, 8)

	got := tr.Ranges()
	require.Len(t, got, 2)
	require.Equal(t, int64(0x100), got[0].Off)
	require.Equal(t, int64(0x200), got[1].Off)
}

func Test_Tracker_OverlapAndReset(t *testing.T) {
	tr := NewTracker()
	tr.Add(0, 24)
	tr.Add(8, 8)
	tr.Add(16, 0)

	require.Equal(t, []Range{{Off: 0, Len: 24}}, tr.Ranges())

	tr.Reset()
	require.Zero(t, tr.Len())
	require.Nil(t, tr.Ranges())
}
