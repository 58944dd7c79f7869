package volume_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/buddyfs/blockcore/internal/mock"
	"github.com/buddyfs/blockcore/pkg/blockio"
	"github.com/buddyfs/blockcore/pkg/btreestore"
	"github.com/buddyfs/blockcore/pkg/memdev"
	"github.com/buddyfs/blockcore/pkg/volume"
	"github.com/buddyfs/blockcore/pkg/writepath"
)

// testConfig mirrors pkg/buddy's newTestAllocator layout: a 4-block
// Pair region, a 4-block self-host bitmap region, and two
// buddy-governed slots of 8 blocks each, over a 128-byte block.
func testConfig() volume.Config {
	return volume.Config{
		BlockSize:   128,
		TotalBlocks: 24,

		BMBlkno:     0,
		BMNr:        4,
		BuddyBlocks: 4,
		Orders:      3,
		Order0Bits:  8,
		Slots:       2,

		MapShift:      3,
		MapMask:       7,
		MapCount:      8,
		BlocksPerPage: 4,
	}
}

// newTestVolume wires a Volume the way a mount path would: construct
// the device, dirty the mkfs-time indirect and self-host bitmap
// blocks directly (SeedLayout assumes they already exist), then hand
// everything to volume.New and SeedLayout.
func newTestVolume(t *testing.T, guard *mock.MockGuard) (*volume.Volume, *memdev.Device) {
	device := memdev.New(128)

	_, err := device.Dirty(0) // indirect block
	require.NoError(t, err)
	bmH, err := device.Dirty(1) // self-host bitmap block
	require.NoError(t, err)
	for i := range bmH.Bytes() {
		bmH.Bytes()[i] = 0xff
	}

	store := btreestore.New()
	v := volume.New(device, store, guard, testConfig())
	require.NoError(t, v.SeedLayout(blockio.Ref{Blkno: 0}, blockio.Ref{Blkno: 1}))
	return v, device
}

func TestSeedLayoutLeavesTheBuddyRegionFullyAllocatable(t *testing.T) {
	ctrl := gomock.NewController(t)
	guard := mock.NewMockGuard(ctrl)
	v, _ := newTestVolume(t, guard)

	total, err := v.Buddy().Bfree()
	require.NoError(t, err)
	require.Equal(t, uint64(16), total) // two 8-block slots
}

func TestMapWritableBlockDrawsFromTheBuddyAllocator(t *testing.T) {
	ctrl := gomock.NewController(t)
	guard := mock.NewMockGuard(ctrl)
	v, _ := newTestVolume(t, guard)

	blkno, err := v.Mapper().MapWritableBlock(1, 0)
	require.NoError(t, err)
	require.GreaterOrEqual(t, blkno, uint64(8))
	require.Less(t, blkno, uint64(24))

	got, count, err := v.Mapper().ContigMappedBlocks(1, 0)
	require.NoError(t, err)
	require.Equal(t, blkno, got)
	require.Equal(t, 1, count)
}

func TestWriteBeginEndToEndMapsABlockThroughTheWholeStack(t *testing.T) {
	ctrl := gomock.NewController(t)
	guard := mock.NewMockGuard(ctrl)
	released := false
	guard.EXPECT().Hold().Return(func() { released = true }, nil)
	v, _ := newTestVolume(t, guard)

	page := writepath.NewPage(0, 4)
	page.Uptodate = true

	release, err := v.WritePath().WriteBegin(1, page, 0, 128)
	require.NoError(t, err)
	require.True(t, page.Mapped[0])
	require.GreaterOrEqual(t, page.Blkno[0], uint64(8), "mapped block must come from the buddy region")

	release()
	require.True(t, released)
}

func TestCommitDrainsTheReservoirAndPublishesTheStableSuper(t *testing.T) {
	ctrl := gomock.NewController(t)
	guard := mock.NewMockGuard(ctrl)
	v, _ := newTestVolume(t, guard)

	// Mapping a block pulls a whole order-2 (4-block) extent into the
	// reservoir and hands back only its first block; the other three
	// sit uncommitted in the reservoir.
	_, err := v.Mapper().MapWritableBlock(1, 0)
	require.NoError(t, err)

	afterAlloc, err := v.Buddy().Bfree()
	require.NoError(t, err)
	require.Equal(t, uint64(12), afterAlloc) // 16 - 4

	require.NoError(t, v.Commit())

	// Drain returns the three blocks the reservoir never handed out,
	// so only the one block actually mapped stays allocated.
	afterCommit, err := v.Buddy().Bfree()
	require.NoError(t, err)
	require.Equal(t, uint64(15), afterCommit) // 16 - 1
}

func TestCommitIsSafeWithAnEmptyReservoir(t *testing.T) {
	ctrl := gomock.NewController(t)
	guard := mock.NewMockGuard(ctrl)
	v, _ := newTestVolume(t, guard)

	require.NoError(t, v.Commit())
	require.NoError(t, v.Commit())
}

func TestMappingSurvivesACommit(t *testing.T) {
	ctrl := gomock.NewController(t)
	guard := mock.NewMockGuard(ctrl)
	guard.EXPECT().Hold().Return(func() {}, nil)
	v, _ := newTestVolume(t, guard)

	page := writepath.NewPage(0, 4)
	page.Uptodate = true
	release, err := v.WritePath().WriteBegin(1, page, 0, 128)
	require.NoError(t, err)
	blkno := page.Blkno[0]
	release()

	require.NoError(t, v.Commit())

	got, count, err := v.Mapper().ContigMappedBlocks(1, 0)
	require.NoError(t, err)
	require.Equal(t, blkno, got)
	require.Equal(t, 1, count)
}
