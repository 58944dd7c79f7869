package memdev_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/buddyfs/blockcore/pkg/blockio"
	"github.com/buddyfs/blockcore/pkg/fserrors"
	"github.com/buddyfs/blockcore/pkg/memdev"
)

// fakeRegion hands out blknos from a fixed list, in order, recording
// every call it served.
type fakeRegion struct {
	next  []uint64
	calls []uint64
}

func (f *fakeRegion) AllocSame(order int, existing uint64) (uint64, error) {
	f.calls = append(f.calls, existing)
	blkno := f.next[0]
	f.next = f.next[1:]
	return blkno, nil
}

func TestDirtyThenReadRefSeesTheWrite(t *testing.T) {
	device := memdev.New(8)
	h, err := device.Dirty(1)
	require.NoError(t, err)
	h.Bytes()[0] = 0x42

	read, err := device.ReadRef(blockio.Ref{Blkno: 1})
	require.NoError(t, err)
	require.Equal(t, byte(0x42), read.Bytes()[0])
}

func TestReadRefReturnsACopy(t *testing.T) {
	device := memdev.New(8)
	h, err := device.Dirty(1)
	require.NoError(t, err)
	h.Bytes()[0] = 1

	read, err := device.ReadRef(blockio.Ref{Blkno: 1})
	require.NoError(t, err)
	read.Bytes()[0] = 99

	read2, err := device.ReadRef(blockio.Ref{Blkno: 1})
	require.NoError(t, err)
	require.Equal(t, byte(1), read2.Bytes()[0], "mutating a read handle must not affect the stored block")
}

func TestDirtyRefFastPathWithinSameTransaction(t *testing.T) {
	device := memdev.New(8)
	_, err := device.Dirty(1)
	require.NoError(t, err)

	ref := blockio.Ref{Blkno: 1}
	h, err := device.DirtyRef(&ref)
	require.NoError(t, err)
	require.Equal(t, uint64(1), h.Blkno())
	require.Equal(t, uint64(1), ref.Blkno, "fast path must not renumber the block")
}

func TestDirtyRefCoWsAStaleBlock(t *testing.T) {
	device := memdev.New(8)
	h, err := device.Dirty(1)
	require.NoError(t, err)
	h.Bytes()[0] = 7

	region := &fakeRegion{next: []uint64{2}}
	device.SetRegionAllocator(region)
	device.BeginTransaction()

	ref := blockio.Ref{Blkno: 1}
	dirty, err := device.DirtyRef(&ref)
	require.NoError(t, err)
	require.Equal(t, uint64(2), dirty.Blkno())
	require.Equal(t, uint64(2), ref.Blkno, "CoW must update the reference in place")
	require.Equal(t, []uint64{1}, region.calls)

	// The CoW'd copy must carry over the stale block's contents.
	require.Equal(t, byte(7), dirty.Bytes()[0])

	// The original block is untouched.
	old, err := device.ReadRef(blockio.Ref{Blkno: 1})
	require.NoError(t, err)
	require.Equal(t, byte(7), old.Bytes()[0])
}

func TestDirtyRefWithoutRegionAllocatorBoundIsAnError(t *testing.T) {
	device := memdev.New(8)
	_, err := device.Dirty(1)
	require.NoError(t, err)
	device.BeginTransaction()

	ref := blockio.Ref{Blkno: 1}
	_, err = device.DirtyRef(&ref)
	require.True(t, fserrors.Is(err, fserrors.Invalid))
}

func TestDirtyRefRejectsZeroReference(t *testing.T) {
	device := memdev.New(8)
	var ref blockio.Ref
	_, err := device.DirtyRef(&ref)
	require.True(t, fserrors.Is(err, fserrors.Invalid))
}

func TestReadRefOfNeverDirtiedBlockIsCorrupt(t *testing.T) {
	device := memdev.New(8)
	_, err := device.ReadRef(blockio.Ref{Blkno: 99})
	require.True(t, fserrors.Is(err, fserrors.IoCorrupt))
}
