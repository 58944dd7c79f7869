// Package region implements the top-level classification of device
// block numbers into the three self-hosted regions the allocator core
// manages: Pair, Bitmap, and Buddy (§4.A).
package region

// Kind identifies which sub-allocator governs a block number.
type Kind int

const (
	// Pair blocks come in fixed even/odd ping-pong pairs, each pair
	// backing a single CoW'd structure (in this module, the buddy
	// indirect block and the self-host bitmap block). Allocation is
	// existing XOR 1; free is a no-op because one of the two slots is
	// always in use.
	Pair Kind = iota
	// Bitmap blocks store buddy metadata (the per-slot buddy
	// blocks) and are governed by the self-host bitmap allocator.
	Bitmap
	// Buddy blocks are everything else: B-tree index blocks and
	// file data extents, governed by the hierarchical buddy
	// allocator.
	Buddy
)

func (k Kind) String() string {
	switch k {
	case Pair:
		return "Pair"
	case Bitmap:
		return "Bitmap"
	case Buddy:
		return "Buddy"
	default:
		return "Unknown"
	}
}

// Layout fixes the on-disk geometry constants every layer of this
// module agrees on (§6). All fields are measured in blocks unless
// stated otherwise.
type Layout struct {
	// BMBlkno is where the pinned Pair blocks start. Every block
	// below BMBlkno+BMNr classifies as Pair.
	BMBlkno uint64
	// BMNr is the number of pinned Pair blocks from BMBlkno on, taken
	// as even/odd pairs that each ping-pong one structure on every
	// CoW. It is named
	// BMNr (not PairNr) to mirror the on-disk constant it derives
	// from in the source format: the Pair region ends exactly where
	// the self-host bitmap region begins.
	BMNr uint64
	// BuddyBlocks is the number of self-host bitmap slots (i.e. the
	// number of buddy blocks addressable through the indirect
	// block's slot array).
	BuddyBlocks uint64
	// TotalBlocks is the size of the device in blocks.
	TotalBlocks uint64
}

// FirstBuddyBlkno returns the first block number governed by the Buddy
// region, i.e. the coverage invariant's first_blkno (§3 invariant 2).
func (l Layout) FirstBuddyBlkno() uint64 {
	return l.BMBlkno + l.BMNr + l.BuddyBlocks
}

// bitmapStart is the first block number governed by the Bitmap region.
func (l Layout) bitmapStart() uint64 {
	return l.BMBlkno + l.BMNr
}

// Classify returns which region governs blkno.
func (l Layout) Classify(blkno uint64) Kind {
	if blkno < l.bitmapStart() {
		return Pair
	}
	if blkno < l.FirstBuddyBlkno() {
		return Bitmap
	}
	return Buddy
}

// AllocPair allocates within the Pair region: the other side of the
// ping-pong pair from existing. The caller must already know existing
// lies in the Pair region; this function does not re-check.
func AllocPair(existing uint64) uint64 {
	return existing ^ 1
}

// FreePair is a no-op: one of the two Pair slots is always in use by
// the other side of the pair, so there is nothing to reclaim.
func FreePair(uint64) {}
