// Package quota enforces a ceiling on the number of blocks a volume's
// buddy allocator may have outstanding at once. It follows the
// decorator the teacher uses for quotaEnforcingSectorAllocator and
// quotaMetric: a CAS-based counter reserves the request's worst case
// up front, and callers credit back whatever they didn't end up
// using.
package quota

import (
	"sync/atomic"

	"github.com/buddyfs/blockcore/pkg/fserrors"
	"github.com/buddyfs/blockcore/pkg/metrics"
)

// metric is a 64-bit counter that can be allocated from and released
// to atomically, the same shape as the teacher's quotaMetric.
type metric struct {
	remaining atomic.Int64
}

func (m *metric) init(v int64) {
	m.remaining.Store(v)
}

func (m *metric) allocate(v int64) bool {
	for {
		remaining := m.remaining.Load()
		if remaining < v {
			return false
		}
		if m.remaining.CompareAndSwap(remaining, remaining-v) {
			return true
		}
	}
}

func (m *metric) release(v int64) {
	m.remaining.Add(v)
}

// Allocator decorates a *metrics.Allocator with a ceiling on the
// number of blocks it may have allocated at once. It embeds the base
// allocator so every method it doesn't override (AllocSame, WasFree,
// InitIndirect, Bfree) passes straight through.
type Allocator struct {
	*metrics.Allocator
	blocksRemaining metric
}

// NewAllocator wraps base so it never has more than maxBlocks blocks
// allocated from it at once.
func NewAllocator(base *metrics.Allocator, maxBlocks int64) *Allocator {
	a := &Allocator{Allocator: base}
	a.blocksRemaining.init(maxBlocks)
	return a
}

// Alloc reserves the worst case (1<<order blocks) against the quota
// before delegating, then credits back the difference if the
// underlying allocator only satisfied a smaller order, mirroring
// quotaEnforcingSectorAllocator.AllocateContiguous.
func (a *Allocator) Alloc(order int) (uint64, int, error) {
	want := int64(1) << uint(order)
	if !a.blocksRemaining.allocate(want) {
		return 0, 0, fserrors.NoSpaceErr("block quota exhausted")
	}

	blkno, usedOrder, err := a.Allocator.Alloc(order)
	if err != nil {
		a.blocksRemaining.release(want)
		return 0, 0, err
	}

	got := int64(1) << uint(usedOrder)
	if got < want {
		a.blocksRemaining.release(want - got)
	}
	return blkno, usedOrder, nil
}

// Free credits order's blocks back to the quota after the underlying
// free succeeds.
func (a *Allocator) Free(blkno uint64, order int) error {
	if err := a.Allocator.Free(blkno, order); err != nil {
		return err
	}
	a.blocksRemaining.release(int64(1) << uint(order))
	return nil
}

// FreeExtent credits count blocks back to the quota after the
// underlying free succeeds.
func (a *Allocator) FreeExtent(blkno, count uint64) error {
	if err := a.Allocator.FreeExtent(blkno, count); err != nil {
		return err
	}
	a.blocksRemaining.release(int64(count))
	return nil
}

// Remaining reports the number of blocks still allocatable under the
// quota, for tests and diagnostics.
func (a *Allocator) Remaining() int64 {
	return a.blocksRemaining.remaining.Load()
}
