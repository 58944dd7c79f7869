package blockmap

// Item is one block-map B-tree item: a fixed-width array of physical
// block numbers, one slot per logical block the item covers. A zero
// entry means that logical block has never been written.
type Item struct {
	Blkno []uint64
}

// ItemStore is the B-tree collaborator this package consumes (§6): a
// keyed store of fixed-width Items. It is implemented by
// pkg/btreestore for tests and would be backed by the volume's real
// metadata tree in production.
type ItemStore interface {
	// Lookup returns the item at key, or ok=false if absent.
	Lookup(key Key) (item Item, ok bool, err error)
	// Update returns a writable view of the item at key, or
	// ok=false if absent. It creates nothing; callers that want to
	// create on miss use Insert.
	Update(key Key) (item *Item, ok bool, err error)
	// Insert creates a zeroed item of width mapCount at key and
	// returns a writable view of it. It is an error to call this
	// when an item already exists at key.
	Insert(key Key, mapCount int) (*Item, error)
	// Delete removes the item at key. Deleting an absent key is not
	// an error, matching the B-tree's own idempotent delete.
	Delete(key Key) error
}
