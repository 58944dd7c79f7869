package blockmap

import (
	"github.com/buddyfs/blockcore/pkg/fserrors"
)

// BlockAllocator is the narrow slice of the buddy allocator (§4.C)
// this package needs: querying and releasing single order-0 blocks.
type BlockAllocator interface {
	WasFree(blkno uint64, order int) (bool, error)
	Free(blkno uint64, order int) error
}

// Reservoir is the per-volume file-block pool (§4.D.3) this package
// draws fresh block numbers from.
type Reservoir interface {
	AllocFileBlock() (uint64, error)
	ReturnFileBlock(blkno uint64)
}

// Mapper is the file block mapper: it resolves an inode's logical
// block numbers to physical device blocks through store, allocating
// and CoW-reusing blocks through alloc and reservoir.
type Mapper struct {
	store    ItemStore
	alloc    BlockAllocator
	reservoir Reservoir

	mapShift uint
	mapMask  uint64
	mapCount int
}

// New builds a Mapper over the given B-tree item store, block
// allocator, and file-block reservoir, sized to the volume's
// MapShift/MapMask/MapCount geometry (§6).
func New(store ItemStore, alloc BlockAllocator, reservoir Reservoir, mapShift uint, mapMask uint64, mapCount int) *Mapper {
	return &Mapper{
		store:     store,
		alloc:     alloc,
		reservoir: reservoir,
		mapShift:  mapShift,
		mapMask:   mapMask,
		mapCount:  mapCount,
	}
}

// ContigMappedBlocks is contig_mapped_blocks: it returns the physical
// block mapped at iblock and a count of how many logical blocks,
// iblock itself included, are contiguously mapped from there within
// the same block-map item. A miss (never written) reports blkno 0, count 0,
// no error.
func (m *Mapper) ContigMappedBlocks(ino uint64, iblock uint64) (blkno uint64, count int, err error) {
	item, ok, err := m.store.Lookup(BmapKey(ino, iblock, m.mapShift))
	if err != nil {
		return 0, 0, fserrors.IoErr(err, "lookup block-map item")
	}
	if !ok {
		return 0, 0, nil
	}

	i := int(iblock & m.mapMask)
	blkno = item.Blkno[i]
	if blkno == 0 {
		return 0, 0, nil
	}

	count = 1
	for j := i + 1; j < m.mapCount && item.Blkno[j] != 0; j++ {
		count++
	}
	return blkno, count, nil
}

// MapWritableBlock is map_writable_block: it guarantees the logical
// block at iblock is backed by a block number writable in the current
// transaction, allocating and replacing the mapping if the previously
// mapped block is still referenced by the last stable transaction.
//
// Rollback on error mirrors the source exactly: a freshly allocated
// replacement block is returned to the reservoir, and a block-map item
// created solely to service this call is deleted, so a failed mapping
// attempt never leaves partial state behind.
func (m *Mapper) MapWritableBlock(ino uint64, iblock uint64) (uint64, error) {
	key := BmapKey(ino, iblock, m.mapShift)

	item, ok, err := m.store.Update(key)
	if err != nil {
		return 0, fserrors.IoErr(err, "update block-map item")
	}
	inserted := false
	if !ok {
		item, err = m.store.Insert(key, m.mapCount)
		if err != nil {
			return 0, fserrors.IoErr(err, "insert block-map item")
		}
		inserted = true
	}

	i := int(iblock & m.mapMask)
	oldBlkno := item.Blkno[i]

	var newBlkno uint64
	result, mapErr := m.mapWritableBlockLocked(item, i, oldBlkno, &newBlkno)
	if mapErr != nil {
		if newBlkno != 0 {
			m.reservoir.ReturnFileBlock(newBlkno)
		}
		if inserted {
			if delErr := m.store.Delete(key); delErr != nil {
				return 0, fserrors.IoErr(delErr, "roll back inserted block-map item")
			}
		}
		return 0, mapErr
	}
	return result, nil
}

func (m *Mapper) mapWritableBlockLocked(item *Item, i int, oldBlkno uint64, newBlkno *uint64) (uint64, error) {
	if oldBlkno != 0 {
		free, err := m.alloc.WasFree(oldBlkno, 0)
		if err != nil {
			return 0, fserrors.IoErr(err, "query was-free for blkno %d", oldBlkno)
		}
		if free {
			return oldBlkno, nil
		}
	}

	blkno, err := m.reservoir.AllocFileBlock()
	if err != nil {
		return 0, err
	}
	*newBlkno = blkno

	if oldBlkno != 0 {
		if err := m.alloc.Free(oldBlkno, 0); err != nil {
			return 0, fserrors.IoErr(err, "free superseded blkno %d", oldBlkno)
		}
	}

	item.Blkno[i] = blkno
	*newBlkno = 0
	return blkno, nil
}
