// Package blockmap implements the file block mapper (§4.D): the
// lookup and CoW-writable-mapping operations that translate an
// inode's logical block number into a physical device block number
// through a B-tree of fixed-width block-map items.
package blockmap

// KeyType distinguishes the kinds of items a volume's B-tree can hold.
// Only KeyBmap is meaningful to this package; the rest are carried so
// that the key taxonomy of §6 has one home instead of being
// rediscovered by every package that touches the tree.
type KeyType uint8

const (
	KeyInode KeyType = iota
	KeyXattr
	KeyDirent
	KeyLinkBackref
	KeySymlink
	KeyExtent
	KeyBmap
)

// Key identifies one block-map item: the inode it belongs to and
// which span of MapCount logical blocks it covers.
type Key struct {
	Ino     uint64
	Type    KeyType
	Logical uint64
}

// BmapKey builds the key of the block-map item covering iblock, per
// filerw.c's set_bmap_key: the item granularity is MapCount logical
// blocks, selected by iblock >> MapShift.
func BmapKey(ino uint64, iblock uint64, mapShift uint) Key {
	return Key{Ino: ino, Type: KeyBmap, Logical: iblock >> mapShift}
}
