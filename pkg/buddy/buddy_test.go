package buddy_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/buddyfs/blockcore/pkg/blockio"
	"github.com/buddyfs/blockcore/pkg/buddy"
	"github.com/buddyfs/blockcore/pkg/fserrors"
	"github.com/buddyfs/blockcore/pkg/memdev"
	"github.com/buddyfs/blockcore/pkg/region"
)

// newTestAllocator builds a one-transaction buddy allocator: a region
// layout with a 4-block Pair region, a 4-block self-host bitmap
// region, and two buddy-governed slots of 8 blocks each. The indirect
// and self-host bitmap blocks live at blknos 0 and 1, inside the Pair
// region, and the dirty/stable supers start out identical.
func newTestAllocator(t *testing.T) (*buddy.Allocator, *memdev.Device, *buddy.Super) {
	device := memdev.New(128)

	regionLayout := region.Layout{
		BMBlkno:     0,
		BMNr:        4,
		BuddyBlocks: 4,
		TotalBlocks: 24,
	}
	layout := buddy.Layout{
		Region:     regionLayout,
		Orders:     3,
		Order0Bits: 8,
		Slots:      2,
	}

	_, err := device.Dirty(0) // indirect block
	require.NoError(t, err)
	bmH, err := device.Dirty(1) // self-host bitmap block
	require.NoError(t, err)
	for i := range bmH.Bytes() {
		bmH.Bytes()[i] = 0xff
	}

	dirtySuper := &buddy.Super{
		BuddyIndRef: blockio.Ref{Blkno: 0},
		BuddyBMRef:  blockio.Ref{Blkno: 1},
	}
	stableSuper := *dirtySuper
	stableFn := func() *buddy.Super { return &stableSuper }

	a := buddy.New(device, layout, dirtySuper, stableFn)
	require.NoError(t, a.InitIndirect())

	return a, device, &stableSuper
}

func TestAllocOrder0FromFreshSlot(t *testing.T) {
	a, _, _ := newTestAllocator(t)

	blkno, order, err := a.Alloc(0)
	require.NoError(t, err)
	require.Equal(t, 0, order)
	require.Equal(t, uint64(8), blkno) // first_blkno of slot 0
}

func TestAllocHighestOrderFirst(t *testing.T) {
	a, _, _ := newTestAllocator(t)

	// Order 2 (4 blocks) should be satisfiable directly from a
	// freshly initialized 8-block slot without falling back.
	blkno, order, err := a.Alloc(2)
	require.NoError(t, err)
	require.Equal(t, 2, order)
	require.Equal(t, uint64(8), blkno)
}

func TestAllocFreeRoundTrip(t *testing.T) {
	a, _, _ := newTestAllocator(t)

	blkno, order, err := a.Alloc(1)
	require.NoError(t, err)

	free, err := a.WasFree(blkno, order)
	require.NoError(t, err)
	require.False(t, free, "just-allocated extent must not read back as free against the same stable view")

	require.NoError(t, a.Free(blkno, order))

	blkno2, order2, err := a.Alloc(order)
	require.NoError(t, err)
	require.Equal(t, blkno, blkno2)
	require.Equal(t, order, order2)
}

// newOddSlotAllocator builds a single 10-block slot. dirty_buddy_block's
// initial split of a 10-block slot (not a power of two) leaves two
// order-2 (4-block) free regions and one order-1 (2-block) leftover,
// which is what exercises a real fallback from order 2 to order 1.
func newOddSlotAllocator(t *testing.T) *buddy.Allocator {
	device := memdev.New(128)

	regionLayout := region.Layout{
		BMBlkno:     0,
		BMNr:        4,
		BuddyBlocks: 4,
		TotalBlocks: 18,
	}
	layout := buddy.Layout{
		Region:     regionLayout,
		Orders:     3,
		Order0Bits: 10,
		Slots:      1,
	}

	_, err := device.Dirty(0)
	require.NoError(t, err)
	bmH, err := device.Dirty(1)
	require.NoError(t, err)
	for i := range bmH.Bytes() {
		bmH.Bytes()[i] = 0xff
	}

	dirtySuper := &buddy.Super{
		BuddyIndRef: blockio.Ref{Blkno: 0},
		BuddyBMRef:  blockio.Ref{Blkno: 1},
	}
	stableSuper := *dirtySuper
	stableFn := func() *buddy.Super { return &stableSuper }

	a := buddy.New(device, layout, dirtySuper, stableFn)
	require.NoError(t, a.InitIndirect())
	return a
}

func TestAllocFallsBackToSmallerOrder(t *testing.T) {
	a := newOddSlotAllocator(t)

	// Drain the slot's two order-2 (4-block) regions.
	for i := 0; i < 2; i++ {
		_, order, err := a.Alloc(2)
		require.NoError(t, err)
		require.Equal(t, 2, order)
	}

	// No order-2 extent remains; the order-1 (2-block) leftover from
	// the slot's initial, non-power-of-two split must still satisfy
	// the request at a lower order.
	_, order, err := a.Alloc(2)
	require.NoError(t, err)
	require.Equal(t, 1, order)
}

func TestAllocExhaustion(t *testing.T) {
	a, _, _ := newTestAllocator(t)

	// Two 8-block slots hold 16 order-0 blocks in total.
	for i := 0; i < 16; i++ {
		_, _, err := a.Alloc(0)
		require.NoError(t, err)
	}

	_, _, err := a.Alloc(0)
	require.True(t, fserrors.Is(err, fserrors.NoSpace))
}

func TestAllocRejectsOutOfRangeOrder(t *testing.T) {
	a, _, _ := newTestAllocator(t)

	_, _, err := a.Alloc(3)
	require.True(t, fserrors.Is(err, fserrors.Invalid))

	_, _, err = a.Alloc(-1)
	require.True(t, fserrors.Is(err, fserrors.Invalid))
}

func TestFreeExtentDecomposesUnalignedRun(t *testing.T) {
	a, _, _ := newTestAllocator(t)

	blkno, order, err := a.Alloc(2) // 4 blocks at 8
	require.NoError(t, err)
	require.Equal(t, uint64(8), blkno)
	require.Equal(t, 2, order)

	// Free block 8 on its own, then the unaligned 3-block run 9..11,
	// which FreeExtent has to split into an order-0 and an order-1
	// piece.
	require.NoError(t, a.Free(blkno, 0))
	require.NoError(t, a.FreeExtent(blkno+1, 3))

	// The pieces should have re-merged back into a single order-2
	// extent, allocatable again in one shot.
	blkno2, order2, err := a.Alloc(2)
	require.NoError(t, err)
	require.Equal(t, blkno, blkno2)
	require.Equal(t, order, order2)
}

func TestAllocSamePairRegionFlipsBit(t *testing.T) {
	a, _, _ := newTestAllocator(t)

	blkno, err := a.AllocSame(0, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(1), blkno)
}

func TestAllocSameBitmapRegionDrawsFreshSlot(t *testing.T) {
	a, _, _ := newTestAllocator(t)

	// Block 4 lies in the Bitmap region ([4,8) under this layout).
	blkno, err := a.AllocSame(0, 4)
	require.NoError(t, err)
	require.GreaterOrEqual(t, blkno, uint64(4))
	require.Less(t, blkno, uint64(8))
}

func TestAllocSameBuddyRegionAllocatesOrder0(t *testing.T) {
	a, _, _ := newTestAllocator(t)

	// Block 8 lies in the Buddy region; AllocSame always uses order
	// 0 for single-block CoW.
	blkno, err := a.AllocSame(0, 8)
	require.NoError(t, err)
	require.Equal(t, uint64(8), blkno)
}

// newDivergentAllocator builds the same two-slot layout as
// newTestAllocator, but with the indirect block and the self-host
// bitmap reference block in disjoint Pair slots (0/1 and 2/3) and the
// device's region allocator actually bound to the returned Allocator,
// so DirtyRef can genuinely CoW once a transaction boundary is
// crossed. commit snapshots the dirty super into the stable view and
// advances the device's transaction sequence, the way volume.Commit
// does.
func newDivergentAllocator(t *testing.T) (a *buddy.Allocator, device *memdev.Device, commit func()) {
	device = memdev.New(128)

	regionLayout := region.Layout{
		BMBlkno:     0,
		BMNr:        4,
		BuddyBlocks: 4,
		TotalBlocks: 24,
	}
	layout := buddy.Layout{
		Region:     regionLayout,
		Orders:     3,
		Order0Bits: 8,
		Slots:      2,
	}

	_, err := device.Dirty(0) // indirect block; its CoW partner is blkno 1
	require.NoError(t, err)
	bmH, err := device.Dirty(2) // self-host bitmap block; its CoW partner is blkno 3
	require.NoError(t, err)
	for i := range bmH.Bytes() {
		bmH.Bytes()[i] = 0xff
	}

	dirtySuper := &buddy.Super{
		BuddyIndRef: blockio.Ref{Blkno: 0},
		BuddyBMRef:  blockio.Ref{Blkno: 2},
	}
	stableSuper := *dirtySuper
	stableFn := func() *buddy.Super { return &stableSuper }

	a = buddy.New(device, layout, dirtySuper, stableFn)
	device.SetRegionAllocator(a)
	require.NoError(t, a.InitIndirect())

	commit = func() {
		stableSuper = *dirtySuper
		device.BeginTransaction()
	}
	return a, device, commit
}

func TestAllocNeverReturnsABlockStillAllocatedInTheStableView(t *testing.T) {
	a, _, commit := newDivergentAllocator(t)

	blkno, order, err := a.Alloc(0)
	require.NoError(t, err)
	require.Equal(t, uint64(8), blkno)
	require.Equal(t, 0, order)

	// Commit: the stable view now agrees blkno 8 is allocated. A new
	// transaction starts, so the next CoW of the indirect/buddy
	// blocks lands on fresh blocks instead of mutating the stable
	// copy in place.
	commit()

	// Free blkno 8 in the new transaction's dirty view only; the
	// stable view committed above still shows it allocated.
	require.NoError(t, a.Free(blkno, order))

	free, err := a.WasFree(blkno, order)
	require.NoError(t, err)
	require.False(t, free, "stable view must still show the block allocated even though dirty just freed it")

	again, _, err := a.Alloc(0)
	require.NoError(t, err)
	require.NotEqual(t, blkno, again, "a block freed only in dirty must not be handed out while stable still references it")
}

func TestBfreeTracksAllocationsAndFrees(t *testing.T) {
	a, _, _ := newTestAllocator(t)

	total, err := a.Bfree()
	require.NoError(t, err)
	require.Equal(t, uint64(16), total) // two 8-block slots

	blkno, order, err := a.Alloc(2)
	require.NoError(t, err)

	afterAlloc, err := a.Bfree()
	require.NoError(t, err)
	require.Equal(t, total-4, afterAlloc)

	require.NoError(t, a.Free(blkno, order))
	afterFree, err := a.Bfree()
	require.NoError(t, err)
	require.Equal(t, total, afterFree)
}
