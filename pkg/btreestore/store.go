// Package btreestore provides an in-memory blockmap.ItemStore backed
// by github.com/google/btree, playing the same role for the block
// mapper that in_memory_file_pool.go and directory_backed_file_pool.go
// play as swappable FilePool backends: a real, ordered, testable
// implementation of an external collaborator the core treats as an
// interface.
package btreestore

import (
	"sync"

	"github.com/google/btree"

	"github.com/buddyfs/blockcore/pkg/blockmap"
)

// entry holds a pointer to the item rather than the item itself, so
// that Update and Insert can hand callers a view that writes straight
// through to the tree, the same way a real B-tree cursor's curs.val
// points directly at memory inside a dirty block.
type entry struct {
	key  blockmap.Key
	item *blockmap.Item
}

func less(a, b blockmap.Key) bool {
	if a.Ino != b.Ino {
		return a.Ino < b.Ino
	}
	if a.Type != b.Type {
		return a.Type < b.Type
	}
	return a.Logical < b.Logical
}

func (e entry) Less(other btree.Item) bool {
	return less(e.key, other.(entry).key)
}

// Store is a mutex-guarded btree.BTree of block-map items, keyed by
// (ino, type, logical). It satisfies blockmap.ItemStore.
type Store struct {
	mu   sync.Mutex
	tree *btree.BTree
}

// New creates an empty Store.
func New() *Store {
	return &Store{tree: btree.New(32)}
}

func (s *Store) Lookup(key blockmap.Key) (blockmap.Item, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := s.tree.Get(entry{key: key})
	if found == nil {
		return blockmap.Item{}, false, nil
	}
	return cloneItem(*found.(entry).item), true, nil
}

func (s *Store) Update(key blockmap.Key) (*blockmap.Item, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := s.tree.Get(entry{key: key})
	if found == nil {
		return nil, false, nil
	}
	return found.(entry).item, true, nil
}

func (s *Store) Insert(key blockmap.Key, mapCount int) (*blockmap.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tree.Get(entry{key: key}) != nil {
		return nil, errItemExists{key}
	}
	item := &blockmap.Item{Blkno: make([]uint64, mapCount)}
	s.tree.ReplaceOrInsert(entry{key: key, item: item})
	return item, nil
}

func (s *Store) Delete(key blockmap.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tree.Delete(entry{key: key})
	return nil
}

func cloneItem(item blockmap.Item) blockmap.Item {
	out := blockmap.Item{Blkno: make([]uint64, len(item.Blkno))}
	copy(out.Blkno, item.Blkno)
	return out
}

type errItemExists struct {
	key blockmap.Key
}

func (e errItemExists) Error() string {
	return "btreestore: item already exists"
}
