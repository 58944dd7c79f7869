package buddy

import "github.com/buddyfs/blockcore/pkg/region"

// Layout fixes the geometry of the buddy hierarchy on top of the
// region layout: how many power-of-two orders exist, how many order-0
// bits a single buddy block covers, and how many slots the indirect
// block's array holds.
type Layout struct {
	Region region.Layout
	// Orders is the number of power-of-two allocation sizes. Each
	// slot's free-orders summary is packed into a single byte, so
	// this must not exceed 8.
	Orders     int
	Order0Bits int
	Slots      int
}

// firstBlkno is the first device block number governed by the buddy
// allocator (the coverage invariant of §3).
func (l Layout) firstBlkno() uint64 {
	return l.Region.FirstBuddyBlkno()
}

// indirectSlot returns the slot in the indirect block's array that
// covers blkno.
func (l Layout) indirectSlot(blkno uint64) int {
	return int((blkno - l.firstBlkno()) / uint64(l.Order0Bits))
}

// slotBuddyBlkno returns the device block number of the order/nr bit
// within the buddy block referenced by slot sl.
func (l Layout) slotBuddyBlkno(sl, order, nr int) uint64 {
	return l.firstBlkno() + uint64(sl)*uint64(l.Order0Bits) + uint64(nr)<<uint(order)
}

// slotCount returns the number of device blocks managed by the buddy
// block referenced by slot sl, clamped at the end of the device.
func (l Layout) slotCount(sl int) int {
	first := l.firstBlkno() + uint64(sl)*uint64(l.Order0Bits)
	if first >= l.Region.TotalBlocks {
		return 0
	}
	if rem := l.Region.TotalBlocks - first; rem < uint64(l.Order0Bits) {
		return int(rem)
	}
	return l.Order0Bits
}

// buddyBit returns the order-0 bit offset of blkno within its slot.
func (l Layout) buddyBit(blkno uint64) int {
	return int((blkno - l.firstBlkno()) % uint64(l.Order0Bits))
}

// validOrder reports whether blkno could be the start of an
// allocation of the given order: its order-0 bit must be aligned to
// that order's size.
func (l Layout) validOrder(blkno uint64, order int) bool {
	return l.buddyBit(blkno)&((1<<uint(order))-1) == 0
}

// orderOff returns the starting bit offset, within a buddy block's
// flat bit vector, of the given order's sub-bitmap. Order 0 spans
// Order0Bits bits starting at 0; each higher order's sub-bitmap is
// half the width of the one below it, packed immediately after.
// orderOff(Orders) is therefore the total width of the bit vector.
func (l Layout) orderOff(order int) int {
	if order == 0 {
		return 0
	}
	return 2*l.Order0Bits - l.Order0Bits/(1<<uint(order-1))
}

// orderNr returns the absolute bit offset of bit nr within order's
// sub-bitmap.
func (l Layout) orderNr(order, nr int) int {
	return l.orderOff(order) + nr
}

// bitsWidth is the total width, in bits, of a buddy block's flat bit
// vector.
func (l Layout) bitsWidth() int {
	return l.orderOff(l.Orders)
}
