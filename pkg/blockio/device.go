// Package blockio defines the narrow contract this module consumes
// from the on-disk block I/O layer (§6 of the design: read/dirty/release
// of block references). The block layer itself — buffer management,
// staleness detection via sequence numbers, write-back — is an external
// collaborator; this package only fixes the shape of the interface.
package blockio

// Ref is a persistent block reference. A zero Blkno denotes "absent".
// Seq is stamped by the block layer at dirty time and used there for
// staleness detection; this module treats it as opaque.
type Ref struct {
	Blkno uint64
	Seq   uint64
}

// IsZero reports whether the reference is absent.
func (r Ref) IsZero() bool {
	return r.Blkno == 0
}

// Handle is a held reference to one in-memory block buffer. Exactly one
// Put call must be issued per Handle obtained from Device.
type Handle interface {
	// Bytes returns the block's backing buffer. Callers may read or
	// (if the handle came from Dirty/DirtyRef) write it in place.
	Bytes() []byte
	// Blkno returns the physical block number this handle covers.
	Blkno() uint64
}

// Device is the block I/O contract consumed by the allocator and
// mapper layers. Implementations may block on any method.
type Device interface {
	// Dirty produces a writable, zeroed buffer for blkno.
	Dirty(blkno uint64) (Handle, error)
	// DirtyRef dirties the block referenced by ref. If the
	// referenced block is stable, a fresh block is allocated in the
	// same region and ref is updated in place; otherwise the
	// existing block is dirtied directly.
	DirtyRef(ref *Ref) (Handle, error)
	// ReadRef returns a read-only handle for ref. It is an error to
	// call this with a zero reference.
	ReadRef(ref Ref) (Handle, error)
	// Put releases one handle. The last release of a dirtied block
	// flushes its contents into the enclosing transaction.
	Put(h Handle)
}
