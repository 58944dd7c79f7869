// Package reservoir implements the per-volume file-block reservoir
// (§4.D.3): a small LIFO pool of pre-allocated block numbers that the
// write path draws single blocks from without going through the full
// buddy allocator on every write.
package reservoir

import (
	"sync"
	"sync/atomic"

	"github.com/buddyfs/blockcore/pkg/fserrors"
	"github.com/buddyfs/blockcore/pkg/metrics"
)

// Allocator is the slice of the buddy allocator this package needs:
// a bulk extent allocation to refill from, and a bulk extent free to
// drain the remainder back at commit.
type Allocator interface {
	Alloc(order int) (blkno uint64, usedOrder int, err error)
	FreeExtent(blkno, count uint64) error
}

// Reservoir hands out single file data blocks, refilling itself from
// the buddy allocator's highest order extent whenever it runs dry.
// The lock here stands in for the source's spin-lock (§5): every
// critical section is O(1) pointer/counter work, so a sync.Mutex is
// the idiomatic equivalent, the teacher's own choice for quotaMetric's
// compound counter transitions.
type Reservoir struct {
	alloc      Allocator
	topOrder   int
	refillsTot atomic.Int64

	mu    sync.Mutex
	blkno uint64
	count uint64
}

// New builds a Reservoir that refills from alloc using extents of
// order topOrder (typically the highest buddy order).
func New(alloc Allocator, topOrder int) *Reservoir {
	return &Reservoir{alloc: alloc, topOrder: topOrder}
}

// AllocFileBlock is alloc_file_block: it hands out the next block
// from the reservoir, refilling from the buddy allocator first if the
// reservoir is empty. The refill happens outside the lock, matching
// the source's fast-path-then-recheck pattern, because buddy
// allocation can block and must not be done while the reservoir's
// spin-lock-equivalent is held.
func (r *Reservoir) AllocFileBlock() (uint64, error) {
	r.mu.Lock()
	empty := r.count == 0
	r.mu.Unlock()

	if empty {
		blkno, order, err := r.alloc.Alloc(r.topOrder)
		if err != nil {
			return 0, err
		}

		r.mu.Lock()
		if r.count == 0 {
			r.blkno = blkno
			r.count = uint64(1) << uint(order)
			r.refillsTot.Add(1)
			metrics.RecordReservoirRefill()
			blkno = 0
		}
		r.mu.Unlock()

		// Someone else refilled between our unlock and this lock;
		// the extent we just drew is unused and must go back.
		if blkno != 0 {
			if err := r.alloc.FreeExtent(blkno, uint64(1)<<uint(order)); err != nil {
				return 0, fserrors.IoErr(err, "return unused reservoir refill")
			}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count == 0 {
		return 0, fserrors.NoSpaceErr("file-block reservoir exhausted")
	}

	blkno := r.blkno
	r.blkno++
	r.count--
	return blkno, nil
}

// ReturnFileBlock is return_file_block: the caller ended up not
// needing a block it drew from the reservoir, most commonly during
// MapWritableBlock's error rollback. It must succeed — the caller has
// already done things that would be painful to unwind otherwise — and
// only ever returns the block most recently handed out, so the
// reservoir stays contiguous.
func (r *Reservoir) ReturnFileBlock(blkno uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count != 0 && r.blkno != blkno+1 {
		panic("reservoir: returned block is not the most recently allocated one")
	}
	if r.count == 0 {
		r.blkno = blkno + 1
	}
	r.blkno--
	r.count++
}

// Drain frees whatever remains in the reservoir back to the buddy
// allocator. The volume calls this at the end of every transaction
// (scoutfs_filerw_free_alloc): leaving a partially consumed extent in
// the reservoir across a commit would let it be handed out again
// before the stable view catches up, which is exactly the stale-free
// hazard the allocator's dirty/stable split exists to prevent.
func (r *Reservoir) Drain() error {
	r.mu.Lock()
	blkno, count := r.blkno, r.count
	r.blkno, r.count = 0, 0
	r.mu.Unlock()

	if count == 0 {
		return nil
	}
	return r.alloc.FreeExtent(blkno, count)
}

// Refills reports how many times the reservoir has been refilled from
// the buddy allocator, for tests and diagnostics. The Prometheus
// counter is bumped separately through metrics.RecordReservoirRefill.
func (r *Reservoir) Refills() int64 {
	return r.refillsTot.Load()
}
