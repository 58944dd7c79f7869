package buddy

import "math/bits"

// testBuddyBit reports whether the order/nr bit is set in bud's flat
// bit vector — i.e. whether that region is currently free.
func testBuddyBit(l Layout, b *block, order, nr int) bool {
	return b.testBit(l.orderNr(order, nr))
}

// testBuddyBitOrHigher reports whether order/nr or any of the higher
// orders that contain it are free. A set high bit implies every lower
// region it covers is free, so this is how was_free and find_first_fit
// check "free in the stable view" without having to also track which
// higher bit, if any, subsumes a given low one.
func (a *Allocator) testBuddyBitOrHigher(b *block, order, nr int) bool {
	for i := order; i < a.layout.Orders; i++ {
		if testBuddyBit(a.layout, b, i, nr) {
			return true
		}
		nr >>= 1
	}
	return false
}

// setBuddyBit marks order/nr free, bumping the block's per-order count
// and the indirect block's global per-order total if the bit wasn't
// already set.
func (a *Allocator) setBuddyBit(ind *indirect, bud *block, order, nr int) {
	if bud.setBit(a.layout.orderNr(order, nr)) {
		ind.orderTotals[order]++
		bud.orderCounts[order]++
	}
}

// clearBuddyBit marks order/nr allocated, decrementing the counts
// set up kept by setBuddyBit.
func (a *Allocator) clearBuddyBit(ind *indirect, bud *block, order, nr int) {
	if bud.clearBit(a.layout.orderNr(order, nr)) {
		ind.orderTotals[order]--
		bud.orderCounts[order]--
	}
}

// findNextBuddyBit finds the lowest bit set at index >= nr within
// order's sub-bitmap, returned relative to that sub-bitmap's own
// origin. Returns -1 if none is set.
func (a *Allocator) findNextBuddyBit(bud *block, order, nr int) int {
	limit := a.layout.orderOff(order + 1)
	pos := bud.findNextSetFrom(a.layout.orderNr(order, nr), limit)
	if pos >= limit {
		return -1
	}
	return pos - a.layout.orderOff(order)
}

// updateFreeOrders recomputes a slot's free-orders summary bitmask
// from its buddy block's per-order counts.
func updateFreeOrders(s *slot, bud *block) {
	var free uint8
	for i, c := range bud.orderCounts {
		if c != 0 {
			free |= 1 << uint(i)
		}
	}
	s.freeOrders = free
}

// trailingZeros returns the bit position of the lowest set bit of x,
// or the full bit width if x is zero (fully aligned).
func trailingZeros(x int) int {
	if x == 0 {
		return 64
	}
	return bits.TrailingZeros64(uint64(x))
}

// bitLen returns the position of the highest set bit of x, i.e. the
// largest order whose size does not exceed x.
func bitLen(x uint64) int {
	return bits.Len64(x) - 1
}
