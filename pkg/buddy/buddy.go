// Package buddy implements the hierarchical power-of-two block
// allocator (§4.C): an indirect block holding a slot array, each slot
// lazily backed by a buddy block whose flat bit vector packs one
// sub-bitmap per order. A high bit set means the whole region it
// covers is free; when it's clear either the region is allocated or
// it has been split into two lower-order regions, at most one of
// which is still free.
package buddy

import (
	"sync"

	"github.com/buddyfs/blockcore/pkg/blockio"
	"github.com/buddyfs/blockcore/pkg/fserrors"
	"github.com/buddyfs/blockcore/pkg/region"
	"github.com/buddyfs/blockcore/pkg/sbitmap"
)

// Super holds the two block references this allocator mutates: the
// indirect block and the self-host bitmap block it allocates its own
// metadata blocks from. Both live in the Pair region, so their own
// CoW is a trivial existing-XOR-1 handled by AllocSame before this
// package ever sees them.
type Super struct {
	BuddyIndRef blockio.Ref
	BuddyBMRef  blockio.Ref
}

// Allocator is the hierarchical buddy allocator for one volume. It
// owns the allocator mutex of §5: every mutation of the indirect
// block or a buddy block's bits happens with mu held, matching
// buddy_alloc/buddy_free's mutex_lock(&sbi->buddy_mutex). AllocSame's
// Pair and Bitmap branches deliberately do not take mu, mirroring the
// source exactly — bitmap_alloc/bitmap_free have no locking of their
// own beyond whatever their caller already holds, and the only caller
// that already holds mu is dirty_buddy_block, reached from inside
// buddy_alloc. Nothing in this package ever CoWs the indirect block
// itself through the Buddy branch, because its own blkno always
// classifies as Pair; that's what keeps mu from ever being
// reacquired by the same goroutine.
type Allocator struct {
	device blockio.Device
	layout Layout
	sbm    *sbitmap.Allocator

	dirty  *Super
	stable func() *Super

	mu sync.Mutex
}

// New builds an Allocator over dirty, the live mutable super fields,
// and stable, an accessor for the super committed by the last
// transaction. volume is expected to swap what stable returns at
// commit.
func New(device blockio.Device, layout Layout, dirty *Super, stable func() *Super) *Allocator {
	return &Allocator{
		device: device,
		layout: layout,
		sbm:    sbitmap.New(device, layout.Region),
		dirty:  dirty,
		stable: stable,
	}
}

// InitIndirect seeds every slot's free-orders summary to claim the
// full range of orders, without touching slot.ref. mkfs lays down an
// indirect block with every slot still lazily unbacked (ref.blkno ==
// 0), and alloc_order only ever tries a slot whose free_orders mask
// says it might satisfy the request; without this seed, a slot that
// has never been touched would never be tried and dirty_buddy_block
// would never run to actually back it. This must be called exactly
// once, right after the indirect block itself is created.
func (a *Allocator) InitIndirect() error {
	if a.dirty.BuddyIndRef.IsZero() {
		return fserrors.IoCorruptErr("buddy indirect reference absent")
	}

	h, err := a.device.DirtyRef(&a.dirty.BuddyIndRef)
	if err != nil {
		return fserrors.IoErr(err, "dirty buddy indirect block")
	}
	defer a.device.Put(h)

	ind := a.layout.decodeIndirect(h.Bytes())
	full := uint8(0xff)
	if a.layout.Orders < 8 {
		full = uint8((1 << uint(a.layout.Orders)) - 1)
	}
	for i := range ind.slots {
		ind.slots[i].freeOrders = full
	}
	a.layout.encodeIndirect(h.Bytes(), ind)
	return nil
}

// AllocSame satisfies memdev.RegionAllocator (§6): it classifies
// existing's region and either flips the Pair bit, draws a fresh
// self-host bitmap slot, or allocates order blocks from the buddy
// hierarchy. The block layer's generic CoW path is expected to call
// this for every block it needs to dirty.
func (a *Allocator) AllocSame(order int, existing uint64) (uint64, error) {
	switch a.layout.Region.Classify(existing) {
	case region.Pair:
		return region.AllocPair(existing), nil
	case region.Bitmap:
		return a.sbm.Alloc(&a.dirty.BuddyBMRef, a.stable().BuddyBMRef)
	default:
		blkno, _, err := a.allocOrderWithFallback(order)
		return blkno, err
	}
}

// Alloc allocates a fresh, order-aligned extent of 1<<order blocks
// from the buddy hierarchy. It returns the order actually satisfied,
// which may be lower than requested if higher orders were exhausted.
func (a *Allocator) Alloc(order int) (blkno uint64, usedOrder int, err error) {
	return a.allocOrderWithFallback(order)
}

// allocOrderWithFallback is buddy_alloc: it holds the allocator mutex
// and keeps trying smaller orders until one succeeds or every order
// down to 0 has been exhausted.
func (a *Allocator) allocOrderWithFallback(order int) (uint64, int, error) {
	if order < 0 || order >= a.layout.Orders {
		return 0, 0, fserrors.InvalidErr("buddy order %d out of range", order)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for {
		blkno, err := a.allocOrder(order)
		if err == nil {
			return blkno, order, nil
		}
		if !fserrors.Is(err, fserrors.NoSpace) || order == 0 {
			return 0, 0, err
		}
		order--
	}
}

// allocOrder is alloc_order: it tries every slot that advertises the
// order free in both the dirty and stable indirect blocks.
func (a *Allocator) allocOrder(order int) (uint64, error) {
	if a.dirty.BuddyIndRef.IsZero() || a.stable().BuddyIndRef.IsZero() {
		return 0, fserrors.IoCorruptErr("buddy indirect reference absent")
	}

	indH, err := a.device.DirtyRef(&a.dirty.BuddyIndRef)
	if err != nil {
		return 0, fserrors.IoErr(err, "dirty buddy indirect block")
	}
	defer a.device.Put(indH)
	ind := a.layout.decodeIndirect(indH.Bytes())

	stH, err := a.device.ReadRef(a.stable().BuddyIndRef)
	if err != nil {
		return 0, fserrors.IoErr(err, "read stable buddy indirect block")
	}
	defer a.device.Put(stH)
	stInd := a.layout.decodeIndirect(stH.Bytes())

	mask := uint8(0xff) << uint(order)
	var lastErr error = fserrors.NoSpaceErr("no free order %d buddy extent", order)
	for sl := 0; sl < a.layout.Slots; sl++ {
		if mask&ind.slots[sl].freeOrders == 0 || mask&stInd.slots[sl].freeOrders == 0 {
			continue
		}
		blkno, err := a.allocSlot(ind, sl, stInd.slots[sl].ref, order)
		if err == nil {
			a.layout.encodeIndirect(indH.Bytes(), ind)
			return blkno, nil
		}
		if !fserrors.Is(err, fserrors.NoSpace) {
			return 0, err
		}
		lastErr = err
	}
	return 0, lastErr
}

// allocSlot is alloc_slot: it dirties (or initializes) the slot's
// buddy block, finds the first order-aligned region that's free in
// both the dirty and stable views, clears that bit, and splits off
// the right-hand buddies of every larger order it had to break up.
func (a *Allocator) allocSlot(ind *indirect, sl int, stableRef blockio.Ref, order int) (uint64, error) {
	bh, bud, err := a.dirtyBuddyBlock(ind, sl)
	if err != nil {
		return 0, err
	}
	defer a.device.Put(bh)

	var stBud *block
	if !stableRef.IsZero() {
		sth, err := a.device.ReadRef(stableRef)
		if err != nil {
			return 0, fserrors.IoErr(err, "read stable buddy block")
		}
		defer a.device.Put(sth)
		stBud = a.layout.decodeBlock(sth.Bytes())
	}

	nr, found := a.findFirstFit(sl, bud, stBud, order)
	if found < 0 {
		return 0, fserrors.NoSpaceErr("no free order %d region in slot %d", order, sl)
	}

	blkno := a.layout.slotBuddyBlkno(sl, found, nr)

	a.clearBuddyBit(ind, bud, found, nr)
	nr <<= 1
	for i := found - 1; i >= order; i-- {
		a.setBuddyBit(ind, bud, i, nr|1)
		nr <<= 1
	}

	updateFreeOrders(&ind.slots[sl], bud)
	a.layout.encodeBlock(bh.Bytes(), bud)
	return blkno, nil
}

// findFirstFit is find_first_fit: it walks the dirty sub-bitmap of
// every order >= the requested one in lockstep, one set bit per order
// per round, skipping regions that are not also free in the stable
// view (a slot with no stable buddy block counts as entirely free).
// In the first round that turns up any region free in both views it
// returns, of that round's candidates, the one whose blkno is
// smallest, the lower order winning a tie. found is -1 if nothing
// fits.
func (a *Allocator) findFirstFit(sl int, bud, stBud *block, order int) (nr int, found int) {
	nrs := make([]int, a.layout.Orders)
	best := ^uint64(0)
	found = -1

	for {
		madeProgress := false
		for i := order; i < a.layout.Orders; i++ {
			n := a.findNextBuddyBit(bud, i, nrs[i])
			if n < 0 {
				continue
			}
			nrs[i] = n
			madeProgress = true

			if stBud != nil && !a.testBuddyBitOrHigher(stBud, i, n) {
				nrs[i] = n + 1
				continue
			}

			bno := a.layout.slotBuddyBlkno(sl, i, n)
			if bno < best {
				best = bno
				found = i
				nr = n
			}
		}
		if found >= 0 || !madeProgress {
			break
		}
	}
	return nr, found
}

// dirtyBuddyBlock is dirty_buddy_block: the fast path dirties the
// slot's existing buddy block; the slow path draws a fresh block from
// the self-host bitmap allocator and seeds it with the highest orders
// free that fit the slot's actual block count (the last slot may be
// short if the device size isn't an exact multiple of Order0Bits).
func (a *Allocator) dirtyBuddyBlock(ind *indirect, sl int) (blockio.Handle, *block, error) {
	s := &ind.slots[sl]
	if !s.ref.IsZero() {
		h, err := a.device.DirtyRef(&s.ref)
		if err != nil {
			return nil, nil, fserrors.IoErr(err, "dirty buddy block")
		}
		return h, a.layout.decodeBlock(h.Bytes()), nil
	}

	blkno, err := a.sbm.Alloc(&a.dirty.BuddyBMRef, a.stable().BuddyBMRef)
	if err != nil {
		return nil, nil, err
	}

	h, err := a.device.Dirty(blkno)
	if err != nil {
		a.sbm.Free(&a.dirty.BuddyBMRef, blkno)
		return nil, nil, fserrors.IoErr(err, "dirty new buddy block")
	}

	bud := &block{
		bits:        make([]uint64, (a.layout.bitsWidth()+63)/64),
		orderCounts: make([]int32, a.layout.Orders),
	}

	count := a.layout.slotCount(sl)
	order := a.layout.Orders - 1
	size := 1 << uint(order)
	nr := 0
	for count > size {
		a.setBuddyBit(ind, bud, order, nr)
		nr++
		count -= size
	}
	for {
		if count&(1<<uint(order)) != 0 {
			a.setBuddyBit(ind, bud, order, nr)
			nr = (nr + 1) << 1
		} else {
			nr <<= 1
		}
		if order == 0 {
			break
		}
		order--
	}

	s.ref = blockio.Ref{Blkno: blkno}
	updateFreeOrders(s, bud)
	a.layout.encodeBlock(h.Bytes(), bud)
	return h, bud, nil
}

// Free returns the order-aligned extent at blkno to the allocator,
// merging it into its free buddy at each order until it hits a buddy
// that's still allocated or reaches the top order.
func (a *Allocator) Free(blkno uint64, order int) error {
	if order < 0 || order >= a.layout.Orders || !a.layout.validOrder(blkno, order) {
		return fserrors.InvalidErr("invalid buddy free: blkno=%d order=%d", blkno, order)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.dirty.BuddyIndRef.IsZero() {
		return fserrors.IoCorruptErr("buddy indirect reference absent")
	}

	indH, err := a.device.DirtyRef(&a.dirty.BuddyIndRef)
	if err != nil {
		return fserrors.IoErr(err, "dirty buddy indirect block")
	}
	defer a.device.Put(indH)
	ind := a.layout.decodeIndirect(indH.Bytes())

	sl := a.layout.indirectSlot(blkno)
	s := &ind.slots[sl]
	bh, err := a.device.DirtyRef(&s.ref)
	if err != nil {
		return fserrors.IoErr(err, "dirty buddy block")
	}
	defer a.device.Put(bh)
	bud := a.layout.decodeBlock(bh.Bytes())

	nr := a.layout.buddyBit(blkno) >> uint(order)
	i := order
	for ; i < a.layout.Orders-1; i++ {
		if !testBuddyBit(a.layout, bud, i, nr^1) {
			break
		}
		a.clearBuddyBit(ind, bud, i, nr^1)
		nr >>= 1
	}
	a.setBuddyBit(ind, bud, i, nr)

	updateFreeOrders(s, bud)
	a.layout.encodeBlock(bh.Bytes(), bud)
	a.layout.encodeIndirect(indH.Bytes(), ind)
	return nil
}

// FreeExtent frees an arbitrary, possibly unaligned run of count
// blocks starting at blkno by decomposing it into the largest
// order-aligned pieces that fit, one Free call per piece. It stops at
// the first Free that fails and returns that error; pieces freed
// before it stay freed.
func (a *Allocator) FreeExtent(blkno, count uint64) error {
	for count > 0 {
		order := trailingZeros(a.layout.buddyBit(blkno))
		if fit := bitLen(count); fit < order {
			order = fit
		}
		if order > a.layout.Orders-1 {
			order = a.layout.Orders - 1
		}
		if order < 0 {
			order = 0
		}
		size := uint64(1) << uint(order)

		if err := a.Free(blkno, order); err != nil {
			return fserrors.IoErr(err, "free extent at blkno %d order %d", blkno, order)
		}
		blkno += size
		count -= size
	}
	return nil
}

// WasFree reports whether the order-aligned region at blkno was free
// in the last committed transaction's buddy state. The file block
// mapper uses this to decide whether it can reuse a block in place
// instead of allocating a fresh one for a CoW write.
func (a *Allocator) WasFree(blkno uint64, order int) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	st := a.stable()
	if st.BuddyIndRef.IsZero() {
		return false, fserrors.IoCorruptErr("stable buddy indirect reference absent")
	}

	indH, err := a.device.ReadRef(st.BuddyIndRef)
	if err != nil {
		return false, fserrors.IoErr(err, "read stable buddy indirect block")
	}
	defer a.device.Put(indH)
	ind := a.layout.decodeIndirect(indH.Bytes())

	sl := a.layout.indirectSlot(blkno)
	ref := ind.slots[sl].ref
	if ref.IsZero() {
		return true, nil
	}

	budH, err := a.device.ReadRef(ref)
	if err != nil {
		return false, fserrors.IoErr(err, "read stable buddy block")
	}
	defer a.device.Put(budH)
	bud := a.layout.decodeBlock(budH.Bytes())

	nr := a.layout.buddyBit(blkno) >> uint(order)
	return a.testBuddyBitOrHigher(bud, order, nr), nil
}

// Bfree returns an approximate count of free blocks, summing
// order_totals across the indirect block plus the whole span of every
// slot that InitIndirect seeded but no allocation has backed with a
// buddy block yet. Callers tolerate a racy read: this is a statistics
// query, not a reservation.
func (a *Allocator) Bfree() (uint64, error) {
	indH, err := a.device.ReadRef(a.dirty.BuddyIndRef)
	if err != nil {
		return 0, fserrors.IoErr(err, "read buddy indirect block")
	}
	defer a.device.Put(indH)
	ind := a.layout.decodeIndirect(indH.Bytes())

	var total uint64
	for i, v := range ind.orderTotals {
		total += uint64(v) << uint(i)
	}
	for sl, s := range ind.slots {
		if s.ref.IsZero() && s.freeOrders != 0 {
			total += uint64(a.layout.slotCount(sl))
		}
	}
	return total, nil
}
