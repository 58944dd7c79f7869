// Package volume assembles the region classifier, self-host bitmap
// allocator, buddy allocator, metrics decorator, file block mapper,
// reservoir, and write path adapter into one object per mounted
// filesystem, the way the teacher's
// NewFilePoolFactoryFromConfiguration wires a BlockDevice into a
// SectorAllocator into a FilePool. This is also where the allocator
// mutex's outer scope — the dirty/stable super pair — lives.
package volume

import (
	"sync"

	"github.com/buddyfs/blockcore/pkg/blockio"
	"github.com/buddyfs/blockcore/pkg/blockmap"
	"github.com/buddyfs/blockcore/pkg/buddy"
	"github.com/buddyfs/blockcore/pkg/fserrors"
	"github.com/buddyfs/blockcore/pkg/memdev"
	"github.com/buddyfs/blockcore/pkg/metrics"
	"github.com/buddyfs/blockcore/pkg/quota"
	"github.com/buddyfs/blockcore/pkg/region"
	"github.com/buddyfs/blockcore/pkg/reservoir"
	"github.com/buddyfs/blockcore/pkg/trans"
	"github.com/buddyfs/blockcore/pkg/writepath"
)

// regionBinder is satisfied by *memdev.Device; volume only depends on
// this narrow shape so it doesn't have to import memdev just to wire
// a test device, the same way pkg/memdev avoids importing buddy.
type regionBinder interface {
	SetRegionAllocator(memdev.RegionAllocator)
}

// transactor is satisfied by *memdev.Device. Production devices back
// this with their own commit machinery; Volume only needs to know
// when to advance it.
type transactor interface {
	BeginTransaction() uint64
}

// BuddyAllocator is the full surface Volume needs from its buddy
// allocator, satisfied by both *metrics.Allocator and, when a quota
// is configured, *quota.Allocator wrapped around it.
type BuddyAllocator interface {
	Alloc(order int) (uint64, int, error)
	AllocSame(order int, existing uint64) (uint64, error)
	Free(blkno uint64, order int) error
	FreeExtent(blkno, count uint64) error
	WasFree(blkno uint64, order int) (bool, error)
	Bfree() (uint64, error)
	InitIndirect() error
}

// Volume is one mounted filesystem's allocation and file-data-mapping
// core.
type Volume struct {
	device blockio.Device
	layout buddy.Layout

	superMu     sync.RWMutex
	dirtySuper  *buddy.Super
	stableSuper buddy.Super

	buddyAlloc BuddyAllocator
	reservoir  *reservoir.Reservoir
	mapper     *blockmap.Mapper
	writePath  *writepath.Adapter
}

// New assembles a Volume. device is expected to have been constructed
// with a matching block size; if it also implements regionBinder
// (memdev.Device does), New binds the buddy allocator back into it so
// the device's own CoW dispatch has somewhere to go.
func New(device blockio.Device, store blockmap.ItemStore, guard trans.Guard, cfg Config) *Volume {
	regionLayout := region.Layout{
		BMBlkno:     cfg.BMBlkno,
		BMNr:        cfg.BMNr,
		BuddyBlocks: cfg.BuddyBlocks,
		TotalBlocks: cfg.TotalBlocks,
	}
	buddyLayout := buddy.Layout{
		Region:     regionLayout,
		Orders:     cfg.Orders,
		Order0Bits: cfg.Order0Bits,
		Slots:      cfg.Slots,
	}

	v := &Volume{
		device: device,
		layout: buddyLayout,
	}
	v.dirtySuper = &buddy.Super{}

	core := buddy.New(device, buddyLayout, v.dirtySuper, v.stableSnapshot)
	instrumented := metrics.NewAllocator(core)
	if cfg.MaxBlocks > 0 {
		v.buddyAlloc = quota.NewAllocator(instrumented, cfg.MaxBlocks)
	} else {
		v.buddyAlloc = instrumented
	}

	if binder, ok := device.(regionBinder); ok {
		binder.SetRegionAllocator(core)
	}

	v.reservoir = reservoir.New(v.buddyAlloc, cfg.Orders-1)
	v.mapper = blockmap.New(store, v.buddyAlloc, v.reservoir, cfg.MapShift, cfg.MapMask, cfg.MapCount)
	v.writePath = writepath.New(v.mapper, guard, cfg.BlockSize, cfg.BlocksPerPage)

	return v
}

// stableSnapshot returns a pointer to a point-in-time copy of the
// last committed super. It's handed to the buddy allocator as its
// view of "stable"; Commit swaps the copy it returns by replacing
// v.stableSuper under superMu, so concurrent allocator work never
// observes a torn super.
func (v *Volume) stableSnapshot() *buddy.Super {
	v.superMu.RLock()
	defer v.superMu.RUnlock()
	s := v.stableSuper
	return &s
}

// SeedLayout initializes the dirty super's references, the mkfs-time
// step the allocator assumes has already happened ("mkfs should have
// ensured that there's bitmap/indirect blocks"). It also seeds the
// stable super to the same values so the very first allocation has
// something to intersect against, and seeds the indirect block's
// slots so alloc_order has something to try before any slot has ever
// been backed by a real buddy block.
func (v *Volume) SeedLayout(indRef, bmRef blockio.Ref) error {
	v.dirtySuper.BuddyIndRef = indRef
	v.dirtySuper.BuddyBMRef = bmRef

	v.superMu.Lock()
	v.stableSuper = buddy.Super{BuddyIndRef: indRef, BuddyBMRef: bmRef}
	v.superMu.Unlock()

	return v.buddyAlloc.InitIndirect()
}

// Mapper returns the file block mapper (§4.D).
func (v *Volume) Mapper() *blockmap.Mapper { return v.mapper }

// WritePath returns the write path adapter (§4.E).
func (v *Volume) WritePath() *writepath.Adapter { return v.writePath }

// Buddy returns the metrics-instrumented (and, if a quota is
// configured, quota-enforcing) buddy allocator (§4.C).
func (v *Volume) Buddy() BuddyAllocator { return v.buddyAlloc }

// Commit ends the current transaction: it drains whatever remains in
// the file-block reservoir back to the buddy allocator
// (scoutfs_filerw_free_alloc), publishes the dirty super as the new
// stable super, and advances the device's transaction sequence so the
// next DirtyRef call CoWs instead of mutating in place.
func (v *Volume) Commit() error {
	if err := v.reservoir.Drain(); err != nil {
		return fserrors.IoErr(err, "drain file-block reservoir at commit")
	}

	v.superMu.Lock()
	v.stableSuper = *v.dirtySuper
	v.superMu.Unlock()

	if t, ok := v.device.(transactor); ok {
		t.BeginTransaction()
	}
	return nil
}
