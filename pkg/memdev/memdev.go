// Package memdev provides an in-memory implementation of
// pkg/blockio's Device contract, grounded on the teacher's
// in_memory_file_pool.go: a mutex-guarded, lazily-grown collection of
// byte buffers standing in for a real block device so the rest of
// this module's property tests (§8) can run against a real store
// instead of a hand-rolled fake per test file.
package memdev

import (
	"sync"

	"github.com/buddyfs/blockcore/pkg/blockio"
	"github.com/buddyfs/blockcore/pkg/fserrors"
)

// RegionAllocator is the callback memdev uses to resolve a CoW of a
// stable block: given the block it's replacing, it returns a fresh
// block number in the same region. It is satisfied by
// *buddy.Allocator, but memdev only depends on this narrow shape to
// avoid importing the buddy package directly and creating a cycle —
// the allocator itself depends on a Device to do its own I/O.
type RegionAllocator interface {
	AllocSame(order int, existing uint64) (uint64, error)
}

type blockEntry struct {
	data []byte
	seq  uint64
}

// Device is an in-memory, transaction-aware blockio.Device. Every
// block carries the transaction sequence number it was last dirtied
// in; DirtyRef compares that against the device's current sequence to
// decide whether the referenced block is already dirty in this
// transaction (fast path) or still belongs to the last stable
// transaction and needs a fresh copy (CoW path).
type Device struct {
	mu        sync.Mutex
	blockSize int
	blocks    map[uint64]*blockEntry
	curSeq    uint64
	region    RegionAllocator
}

// New creates an empty Device. SetRegionAllocator must be called
// before any DirtyRef that needs to CoW, which is every caller except
// initial layout setup — the allocator and the device it does its own
// I/O through are mutually dependent, so wiring is necessarily two
// steps: construct the Device, construct the allocator over it, then
// bind the allocator back into the Device.
func New(blockSize int) *Device {
	return &Device{blockSize: blockSize, blocks: make(map[uint64]*blockEntry)}
}

// SetRegionAllocator binds the allocator the device delegates CoW
// decisions to.
func (d *Device) SetRegionAllocator(region RegionAllocator) {
	d.region = region
}

// BeginTransaction advances the device's current sequence number.
// Every block dirtied before this call is "stable" from the next
// DirtyRef's point of view and must be CoW'd rather than mutated in
// place.
func (d *Device) BeginTransaction() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.curSeq++
	return d.curSeq
}

type handle struct {
	blkno uint64
	data  []byte
}

func (h *handle) Bytes() []byte { return h.data }
func (h *handle) Blkno() uint64 { return h.blkno }

// Dirty produces a fresh, zeroed buffer for blkno, stamped with the
// device's current transaction sequence, discarding whatever blkno
// previously held. This is only correct for block numbers the caller
// knows are uninitialized or being entirely re-seeded, matching
// scoutfs_block_dirty's contract.
func (d *Device) Dirty(blkno uint64) (blockio.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	data := make([]byte, d.blockSize)
	d.blocks[blkno] = &blockEntry{data: data, seq: d.curSeq}
	return &handle{blkno: blkno, data: data}, nil
}

// DirtyRef dirties the block ref points at, CoWing it into a fresh
// block in the same region (via RegionAllocator) if it still belongs
// to the last stable transaction, and updating ref in place when it
// does.
func (d *Device) DirtyRef(ref *blockio.Ref) (blockio.Handle, error) {
	if ref.IsZero() {
		return nil, fserrors.InvalidErr("DirtyRef called with a zero reference")
	}

	d.mu.Lock()
	entry, ok := d.blocks[ref.Blkno]
	if ok && entry.seq == d.curSeq {
		data := entry.data
		d.mu.Unlock()
		return &handle{blkno: ref.Blkno, data: data}, nil
	}
	curSeq := d.curSeq
	d.mu.Unlock()

	if d.region == nil {
		return nil, fserrors.InvalidErr("DirtyRef needs a CoW but no region allocator is bound")
	}
	newBlkno, err := d.region.AllocSame(0, ref.Blkno)
	if err != nil {
		return nil, fserrors.IoErr(err, "allocate CoW replacement for blkno %d", ref.Blkno)
	}

	data := make([]byte, d.blockSize)
	if ok {
		copy(data, entry.data)
	}

	d.mu.Lock()
	d.blocks[newBlkno] = &blockEntry{data: data, seq: curSeq}
	d.mu.Unlock()

	ref.Blkno = newBlkno
	ref.Seq = curSeq
	return &handle{blkno: newBlkno, data: data}, nil
}

// ReadRef returns a read-only copy of the block ref points at. A copy
// is returned, rather than the live buffer, so a caller that only
// asked to read can never accidentally mutate state a concurrent
// dirtier is relying on.
func (d *Device) ReadRef(ref blockio.Ref) (blockio.Handle, error) {
	if ref.IsZero() {
		return nil, fserrors.InvalidErr("ReadRef called with a zero reference")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.blocks[ref.Blkno]
	if !ok {
		return nil, fserrors.IoCorruptErr("read of never-dirtied blkno %d", ref.Blkno)
	}
	data := make([]byte, len(entry.data))
	copy(data, entry.data)
	return &handle{blkno: ref.Blkno, data: data}, nil
}

// Put releases a handle. The in-memory device needs no reference
// counting, so this is a no-op; it exists to satisfy blockio.Device.
func (d *Device) Put(blockio.Handle) {}
