// Package sbitmap implements the self-host bitmap allocator (§4.B): a
// single flat bitmap block, pinned at a known device offset, that hands
// out and reclaims the blocks backing the buddy allocator's own
// metadata (the per-slot buddy blocks).
//
// Allocation is intersected against the last committed (stable) view
// of the same bitmap so that a block freed earlier in the current
// transaction is never handed back out before it commits — the stable
// tree may still reference it.
package sbitmap

import (
	"math/bits"

	"github.com/buddyfs/blockcore/pkg/blockio"
	"github.com/buddyfs/blockcore/pkg/fserrors"
	"github.com/buddyfs/blockcore/pkg/region"
)

// wordsFor returns the number of 64-bit words needed to hold n bits.
func wordsFor(n uint64) int {
	return int((n + 63) / 64)
}

// Allocator allocates and frees the blocks backing buddy metadata.
// Every method dirties or reads the bitmap block through device; the
// caller is responsible for serializing access (the allocator mutex of
// §5) since this type does no internal locking of its own, matching
// the source's bitmap_alloc/bitmap_free having no locking beyond
// whatever their caller already holds.
type Allocator struct {
	device blockio.Device
	layout region.Layout
}

// New creates an Allocator whose bitmap covers layout.BuddyBlocks
// slots. The bitmap block itself is found through the references
// passed to Alloc and Free.
func New(device blockio.Device, layout region.Layout) *Allocator {
	return &Allocator{device: device, layout: layout}
}

// bitmapWords extracts the little-endian bit vector from a dirtied or
// read-only block's backing buffer.
func bitmapWords(h blockio.Handle, nbits uint64) []uint64 {
	raw := h.Bytes()
	words := make([]uint64, wordsFor(nbits))
	for i := range words {
		var w uint64
		base := i * 8
		for b := 0; b < 8 && base+b < len(raw); b++ {
			w |= uint64(raw[base+b]) << (8 * b)
		}
		words[i] = w
	}
	return words
}

func putBitmapWords(h blockio.Handle, words []uint64) {
	raw := h.Bytes()
	for i, w := range words {
		base := i * 8
		for b := 0; b < 8 && base+b < len(raw); b++ {
			raw[base+b] = byte(w >> (8 * b))
		}
	}
}

func clearBit(words []uint64, i uint64) {
	words[i/64] &^= uint64(1) << (i % 64)
}

func setBit(words []uint64, i uint64) {
	words[i/64] |= uint64(1) << (i % 64)
}

// findNextSet finds the lowest set bit at index >= from, scanning a
// whole word at a time the way bitmap_sector_allocator.go's
// allocateAt does, rather than testing one bit per iteration. Returns
// limit if no such bit exists.
func findNextSet(words []uint64, from, limit uint64) uint64 {
	if from >= limit {
		return limit
	}
	wordIdx := from / 64
	if m := words[wordIdx] & (^uint64(0) << (from % 64)); m != 0 {
		if pos := wordIdx*64 + uint64(bits.TrailingZeros64(m)); pos < limit {
			return pos
		}
		return limit
	}
	for i := wordIdx + 1; i < uint64(len(words)); i++ {
		if words[i] != 0 {
			if pos := i*64 + uint64(bits.TrailingZeros64(words[i])); pos < limit {
				return pos
			}
			return limit
		}
	}
	return limit
}

// Alloc dirties the dirty-super's bitmap block, reads the stable
// bitmap block, and returns the block number of the lowest-indexed
// slot free in both. It mirrors buddy.c's bitmap_alloc: the
// do-while(d != s) double scan guarantees the returned bit is free in
// both views even though each scan only searches one bitmap.
//
// dirtyRef is updated in place if dirtying it required a CoW, exactly
// as Device.DirtyRef documents, so callers must pass the live super
// field and not a copy.
func (a *Allocator) Alloc(dirtyRef *blockio.Ref, stableRef blockio.Ref) (uint64, error) {
	if dirtyRef.IsZero() || stableRef.IsZero() {
		return 0, fserrors.IoCorruptErr("self-host bitmap reference absent")
	}

	dh, err := a.device.DirtyRef(dirtyRef)
	if err != nil {
		return 0, fserrors.IoErr(err, "dirty self-host bitmap block")
	}
	defer a.device.Put(dh)

	sh, err := a.device.ReadRef(stableRef)
	if err != nil {
		return 0, fserrors.IoErr(err, "read stable self-host bitmap block")
	}
	defer a.device.Put(sh)

	dirtyWords := bitmapWords(dh, a.layout.BuddyBlocks)
	stableWords := bitmapWords(sh, a.layout.BuddyBlocks)

	size := a.layout.BuddyBlocks
	d, s := uint64(0), uint64(0)
	for {
		d = findNextSet(dirtyWords, s, size)
		s = findNextSet(stableWords, d, size)
		if d == s {
			break
		}
	}
	if d >= size {
		return 0, fserrors.NoSpaceErr("no free self-host bitmap slot")
	}

	clearBit(dirtyWords, d)
	putBitmapWords(dh, dirtyWords)

	return a.layout.BMBlkno + a.layout.BMNr + d, nil
}

// Free marks blkno free again in the dirty bitmap block. It is
// idempotent with respect to the stable view, because the stable bit
// for blkno was already clear the moment it was allocated.
func (a *Allocator) Free(dirtyRef *blockio.Ref, blkno uint64) error {
	if dirtyRef.IsZero() {
		return fserrors.IoCorruptErr("self-host bitmap reference absent")
	}

	dh, err := a.device.DirtyRef(dirtyRef)
	if err != nil {
		return fserrors.IoErr(err, "dirty self-host bitmap block")
	}
	defer a.device.Put(dh)

	words := bitmapWords(dh, a.layout.BuddyBlocks)
	d := blkno - (a.layout.BMBlkno + a.layout.BMNr)
	setBit(words, d)
	putBitmapWords(dh, words)
	return nil
}
