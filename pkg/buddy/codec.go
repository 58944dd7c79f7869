package buddy

import (
	"encoding/binary"
	"math/bits"

	"github.com/buddyfs/blockcore/pkg/blockio"
)

// slot is one entry of the indirect block's slot array: a reference
// to the buddy block covering one Order0Bits-sized span of the
// device, plus a summary bitmask of which orders have at least one
// free region in that block. FreeOrders lets alloc_order skip slots
// that can't satisfy an order without reading their buddy block.
type slot struct {
	ref        blockio.Ref
	freeOrders uint8
}

const slotSize = 8 + 8 + 1 // blkno + seq + freeOrders, no padding needed

// indirect is the decoded form of the buddy indirect block: per-order
// totals summed across every slot (used by Bfree) and the slot array
// itself.
type indirect struct {
	orderTotals []int64
	slots       []slot
}

func (l Layout) decodeIndirect(raw []byte) *indirect {
	ind := &indirect{
		orderTotals: make([]int64, l.Orders),
		slots:       make([]slot, l.Slots),
	}
	for i := range ind.orderTotals {
		ind.orderTotals[i] = int64(binary.LittleEndian.Uint64(raw[i*8:]))
	}
	base := l.Orders * 8
	for i := range ind.slots {
		off := base + i*slotSize
		ind.slots[i] = slot{
			ref: blockio.Ref{
				Blkno: binary.LittleEndian.Uint64(raw[off:]),
				Seq:   binary.LittleEndian.Uint64(raw[off+8:]),
			},
			freeOrders: raw[off+16],
		}
	}
	return ind
}

func (l Layout) encodeIndirect(raw []byte, ind *indirect) {
	for i, v := range ind.orderTotals {
		binary.LittleEndian.PutUint64(raw[i*8:], uint64(v))
	}
	base := l.Orders * 8
	for i, s := range ind.slots {
		off := base + i*slotSize
		binary.LittleEndian.PutUint64(raw[off:], s.ref.Blkno)
		binary.LittleEndian.PutUint64(raw[off+8:], s.ref.Seq)
		raw[off+16] = s.freeOrders
	}
}

// indirectSize is the encoded byte length of an indirect block under
// this layout.
func (l Layout) indirectSize() int {
	return l.Orders*8 + l.Slots*slotSize
}

// block is the decoded form of one buddy block: the flat bit vector
// (one bit per order-nr pair, packed order by order per orderOff) and
// a per-order free-region count used to maintain the slot's
// freeOrders summary cheaply.
type block struct {
	bits        []uint64
	orderCounts []int32
}

func (l Layout) decodeBlock(raw []byte) *block {
	b := &block{orderCounts: make([]int32, l.Orders)}
	for i := range b.orderCounts {
		b.orderCounts[i] = int32(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	base := l.Orders * 4
	nwords := (l.bitsWidth() + 63) / 64
	b.bits = make([]uint64, nwords)
	for i := range b.bits {
		off := base + i*8
		if off+8 <= len(raw) {
			b.bits[i] = binary.LittleEndian.Uint64(raw[off:])
		}
	}
	return b
}

func (l Layout) encodeBlock(raw []byte, b *block) {
	for i, v := range b.orderCounts {
		binary.LittleEndian.PutUint32(raw[i*4:], uint32(v))
	}
	base := l.Orders * 4
	for i, w := range b.bits {
		off := base + i*8
		if off+8 <= len(raw) {
			binary.LittleEndian.PutUint64(raw[off:], w)
		}
	}
}

// blockSize is the encoded byte length of a buddy block under this
// layout.
func (l Layout) blockSize() int {
	nwords := (l.bitsWidth() + 63) / 64
	return l.Orders*4 + nwords*8
}

func (b *block) testBit(off int) bool {
	return b.bits[off/64]&(uint64(1)<<uint(off%64)) != 0
}

func (b *block) setBit(off int) bool {
	w, m := off/64, uint64(1)<<uint(off%64)
	was := b.bits[w]&m != 0
	b.bits[w] |= m
	return !was
}

func (b *block) clearBit(off int) bool {
	w, m := off/64, uint64(1)<<uint(off%64)
	was := b.bits[w]&m != 0
	b.bits[w] &^= m
	return was
}

// findNextSetFrom finds the lowest set bit at index in [from, limit),
// scanning a word at a time. Returns limit if none is found.
func (b *block) findNextSetFrom(from, limit int) int {
	if from >= limit {
		return limit
	}
	wordIdx := from / 64
	if m := b.bits[wordIdx] & (^uint64(0) << uint(from%64)); m != 0 {
		if pos := wordIdx*64 + bits.TrailingZeros64(m); pos < limit {
			return pos
		}
		return limit
	}
	for i := wordIdx + 1; i < len(b.bits); i++ {
		if b.bits[i] != 0 {
			if pos := i*64 + bits.TrailingZeros64(b.bits[i]); pos < limit {
				return pos
			}
			return limit
		}
	}
	return limit
}
