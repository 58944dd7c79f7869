package region_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/buddyfs/blockcore/pkg/region"
)

func testLayout() region.Layout {
	return region.Layout{
		BMBlkno:     10,
		BMNr:        2,
		BuddyBlocks: 4,
		TotalBlocks: 100,
	}
}

func TestClassifyPair(t *testing.T) {
	l := testLayout()
	require.Equal(t, region.Pair, l.Classify(0))
	require.Equal(t, region.Pair, l.Classify(10))
	require.Equal(t, region.Pair, l.Classify(11))
}

func TestClassifyBitmap(t *testing.T) {
	l := testLayout()
	require.Equal(t, region.Bitmap, l.Classify(12))
	require.Equal(t, region.Bitmap, l.Classify(15))
}

func TestClassifyBuddy(t *testing.T) {
	l := testLayout()
	require.Equal(t, region.Buddy, l.Classify(16))
	require.Equal(t, region.Buddy, l.Classify(99))
}

func TestFirstBuddyBlkno(t *testing.T) {
	l := testLayout()
	require.Equal(t, uint64(16), l.FirstBuddyBlkno())
}

func TestAllocPairFlipsLowBit(t *testing.T) {
	require.Equal(t, uint64(11), region.AllocPair(10))
	require.Equal(t, uint64(10), region.AllocPair(11))
}

func TestFreePairIsNoop(t *testing.T) {
	require.NotPanics(t, func() { region.FreePair(42) })
}

func TestKindString(t *testing.T) {
	require.Equal(t, "Pair", region.Pair.String())
	require.Equal(t, "Bitmap", region.Bitmap.String())
	require.Equal(t, "Buddy", region.Buddy.String())
	require.Equal(t, "Unknown", region.Kind(99).String())
}
