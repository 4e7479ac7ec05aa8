package btree

import (
	"github.com/pkg/errors"

	"pagetree/internal/page"
)

// -----------------------------
// Search in B+ Tree
// -----------------------------

// Get returns the values stored under key in insertion order.
// The boolean is false when the key is absent.
func (tree *BPlusTree[K, V]) Get(key K) ([]V, bool, error) {
	if tree.closed {
		return nil, false, ErrClosed
	}
	if tree.meta.RootPage == page.InvalidPage {
		tree.recorder.RecordStepWithKey(StepTypeSearchNotFound, page.InvalidPage, 0, key, nil)
		return nil, false, nil
	}

	leaf, leafNo, path, err := tree.findLeaf(key)
	if err != nil {
		return nil, false, errors.Wrap(err, "get")
	}
	i, found := binarySearchFirstGreaterOrEqual(leaf.Keys, key, tree.codec.Compare)
	if !found {
		tree.recorder.RecordStepWithKey(StepTypeSearchNotFound, leafNo, len(path), key, nil)
		return nil, false, nil
	}
	tree.recorder.RecordStepWithKey(StepTypeSearchFound, leafNo, len(path), key, map[string]interface{}{"values": len(leaf.Values[i])})
	return leaf.Values[i], true, nil
}

// -----------------------------
// Range scans over the leaf chain
// -----------------------------

// Scan calls fn for every key in [start, end] in ascending order, with the
// key's values. It descends once to the leaf for start and then follows
// next_leaf links. Returning false from fn stops the scan.
func (tree *BPlusTree[K, V]) Scan(start, end K, fn func(key K, values []V) bool) error {
	if tree.closed {
		return ErrClosed
	}
	if tree.meta.RootPage == page.InvalidPage || tree.codec.Compare(start, end) > 0 {
		return nil
	}

	leaf, leafNo, _, err := tree.findLeaf(start)
	if err != nil {
		return errors.Wrap(err, "scan")
	}
	i, _ := binarySearchFirstGreaterOrEqual(leaf.Keys, start, tree.codec.Compare)
	return tree.walkLeaves(leaf, leafNo, i, func(key K, values []V) bool {
		if tree.codec.Compare(key, end) > 0 {
			return false
		}
		return fn(key, values)
	})
}

// ScanAll calls fn for every key in ascending order, starting at the
// leftmost leaf reached through first children and following next_leaf
// links from there.
func (tree *BPlusTree[K, V]) ScanAll(fn func(key K, values []V) bool) error {
	if tree.closed {
		return ErrClosed
	}
	if tree.meta.RootPage == page.InvalidPage {
		return nil
	}
	leaf, leafNo, err := tree.leftmostLeaf()
	if err != nil {
		return errors.Wrap(err, "scan")
	}
	return tree.walkLeaves(leaf, leafNo, 0, fn)
}

// walkLeaves visits entries from leaf[i] onwards along the leaf chain.
// A chain longer than the number of allocated pages must contain a cycle.
func (tree *BPlusTree[K, V]) walkLeaves(leaf *page.LeafPage[K, V], leafNo page.PageNo, i int, fn func(K, []V) bool) error {
	for hops := 0; ; hops++ {
		for ; i < len(leaf.Keys); i++ {
			if !fn(leaf.Keys[i], leaf.Values[i]) {
				return nil
			}
		}
		if leaf.NextLeaf == page.InvalidPage {
			return nil
		}
		if hops > int(tree.pager.Next) {
			return errors.Wrapf(page.ErrCorruptPage, "leaf chain from page %d does not terminate", leafNo)
		}

		next := leaf.NextLeaf
		n, err := tree.pager.ReadNode(next)
		if err != nil {
			return errors.Wrapf(err, "scan: follow next_leaf of page %d", leafNo)
		}
		l, ok := n.(*page.LeafPage[K, V])
		if !ok {
			return errors.Wrapf(page.ErrCorruptPage, "next_leaf of page %d points at %s page %d", leafNo, n.Type(), next)
		}
		leaf, leafNo, i = l, next, 0
	}
}
