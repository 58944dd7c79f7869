// Package writepath adapts the file block mapper to the page-cache
// write path (§4.E): it is the Go analogue of scoutfs_write_begin and
// its get_block callbacks, minus the VFS page cache itself, which is
// modeled here as a small Page type the caller fills buffers into.
package writepath

import (
	"github.com/buddyfs/blockcore/pkg/fserrors"
	"github.com/buddyfs/blockcore/pkg/trans"
)

// BlockMapper is the slice of pkg/blockmap this package drives.
type BlockMapper interface {
	ContigMappedBlocks(ino uint64, iblock uint64) (blkno uint64, count int, err error)
	MapWritableBlock(ino uint64, iblock uint64) (uint64, error)
}

// Page models one page-cache page's buffer-head state for a single
// inode: which logical blocks within it are currently mapped to a
// device block, and whether its contents are up to date. Real buffer
// heads track a great deal more; this is the slice the write path
// adapter actually touches.
type Page struct {
	Index     uint64 // page index, in units of BlocksPerPage logical blocks
	Mapped    []bool
	Blkno     []uint64
	Uptodate  bool
}

// NewPage allocates a Page with blocksPerPage buffer slots, all
// initially unmapped.
func NewPage(index uint64, blocksPerPage int) *Page {
	return &Page{
		Index:  index,
		Mapped: make([]bool, blocksPerPage),
		Blkno:  make([]uint64, blocksPerPage),
	}
}

// ClearMappedBuffers is clear_mapped_page_buffers: it drops every
// buffer's mapping on the page so the next get_block call is forced
// to run, even for a page that readpage already mapped to stable
// blocks. Skipping this would let a buffered write land on a block
// that's still referenced by the last stable transaction.
func (p *Page) ClearMappedBuffers() {
	for i := range p.Mapped {
		p.Mapped[i] = false
	}
}

func isAligned(pos, length, blockSize uint64) bool {
	return (pos|length)%blockSize == 0
}

// Adapter is the per-inode write path: it resolves blocks for reads,
// refuses unmapped writepage callbacks, and runs the read-before-
// write-begin sequence under a transaction guard.
type Adapter struct {
	mapper        BlockMapper
	guard         trans.Guard
	blockSize     uint64
	blocksPerPage int
}

// New builds an Adapter over mapper, guarded by guard, for a device
// with the given block size and page size (in blocks).
func New(mapper BlockMapper, guard trans.Guard, blockSize uint64, blocksPerPage int) *Adapter {
	return &Adapter{mapper: mapper, guard: guard, blockSize: blockSize, blocksPerPage: blocksPerPage}
}

// GetBlockForRead is scoutfs_readpage_get_block: it only ever looks
// up existing mappings, for readpage/readpages. A hole returns
// mappedRun 0 and no error; the caller is expected to zero-fill.
func (a *Adapter) GetBlockForRead(ino uint64, iblock uint64) (blkno uint64, mappedRun int, err error) {
	return a.mapper.ContigMappedBlocks(ino, iblock)
}

// GetBlockForWritepage is scoutfs_writepage_get_block: writeback must
// never encounter an unmapped buffer, because every dirty block was
// mapped when it was written in WriteBegin. Reaching this means a
// buffer was dirtied through a path this adapter doesn't know about —
// mmap, most likely, which this module does not implement — so it is
// reported as a hard error rather than silently allocating behind the
// write path's back.
func (a *Adapter) GetBlockForWritepage(ino uint64, iblock uint64) error {
	return fserrors.InvalidErr("unmapped buffer reached writepage for ino %d iblock %d; mmap writeback is unimplemented", ino, iblock)
}

// readPagePartial fills every buffer slot of page with its current
// stable mapping, mirroring the readpage call scoutfs_write_begin
// makes before a sub-block write so the unwritten part of the block
// isn't clobbered.
func (a *Adapter) readPagePartial(ino uint64, page *Page) error {
	base := page.Index * uint64(a.blocksPerPage)
	for i := 0; i < len(page.Mapped); i++ {
		// run counts contiguous logical blocks, not physically
		// sequential device blocks, so each slot needs its own
		// lookup rather than an extrapolated blkno+offset.
		blkno, _, err := a.GetBlockForRead(ino, base+uint64(i))
		if err != nil {
			return fserrors.IoErr(err, "read block map for partial page fill")
		}
		if blkno == 0 {
			continue
		}
		page.Blkno[i] = blkno
		page.Mapped[i] = true
	}
	page.Uptodate = true
	return nil
}

// WriteBegin is scoutfs_write_begin: read the page first if the write
// doesn't cover whole blocks, hold a transaction, force every buffer
// on the page to be remapped, then map the blocks actually being
// written to fresh, transaction-writable space. The returned release
// must be called exactly once, whether or not the write that follows
// succeeds — the transaction barrier only cares that writers
// eventually let go, not that they succeeded.
func (a *Adapter) WriteBegin(ino uint64, page *Page, pos, length uint64) (release func(), err error) {
	if !page.Uptodate && !isAligned(pos, length, a.blockSize) {
		if err := a.readPagePartial(ino, page); err != nil {
			return nil, err
		}
	}

	release, err = a.guard.Hold()
	if err != nil {
		return nil, fserrors.IoErr(err, "hold transaction for write_begin")
	}

	page.ClearMappedBuffers()

	base := page.Index * uint64(a.blocksPerPage)
	first := (pos / a.blockSize) % uint64(a.blocksPerPage)
	last := ((pos + length - 1) / a.blockSize) % uint64(a.blocksPerPage)
	for i := first; i <= last; i++ {
		blkno, mapErr := a.mapper.MapWritableBlock(ino, base+i)
		if mapErr != nil {
			release()
			return nil, mapErr
		}
		page.Blkno[i] = blkno
		page.Mapped[i] = true
	}

	return release, nil
}
