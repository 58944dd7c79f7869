package volume

// Config fixes the on-disk layout constants of §6 for one volume: the
// self-host bitmap and buddy geometry, plus the block-map item shape.
// A real mount reads these from the super block; tests construct one
// directly.
type Config struct {
	BlockSize   uint64
	TotalBlocks uint64

	BMBlkno     uint64
	BMNr        uint64
	BuddyBlocks uint64
	Orders      int
	Order0Bits  int
	Slots       int

	MapCount      int
	MapShift      uint
	MapMask       uint64
	BlocksPerPage int

	// MaxBlocks caps the number of blocks the buddy allocator may have
	// outstanding at once. Zero means unlimited; a mount that wants to
	// enforce a disk quota sets this from the volume's configured
	// limit, the same role quotaEnforcingSectorAllocator's
	// maximumSectors plays for the teacher's file pools.
	MaxBlocks int64
}
