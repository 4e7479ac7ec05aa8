package btree

import (
	"github.com/pkg/errors"

	"pagetree/internal/page"
)

// TreeStats summarizes the shape of a tree.
type TreeStats struct {
	Order         int
	Height        int // levels including the leaf level; 0 when empty
	LeafPages     int
	InternalPages int
	Keys          int
	Values        int
	RootPage      page.PageNo
	NextFreePage  page.PageNo
	IO            page.IOStats
}

// bound is an optional key limit used while checking separator ranges.
type bound[K any] struct {
	key K
	set bool
}

type verifier[K, V any] struct {
	tree      *BPlusTree[K, V]
	leafDepth int
	leaves    []page.PageNo
	visited   map[page.PageNo]bool
}

// Verify walks the whole tree and checks the structural invariants:
//   - keys strictly increase inside every node
//   - every key lies within the separator range of its parent
//   - all leaves sit at the same depth
//   - leaves hold at most order-1 keys and internal nodes at most order children
//   - no page is reachable twice
//   - the leaf chain visits exactly the leaves in descent order and ends
//     with next_leaf = 0
//
// Violations are reported as ErrInvariant.
func (tree *BPlusTree[K, V]) Verify() error {
	if tree.closed {
		return ErrClosed
	}
	if tree.meta.RootPage == page.InvalidPage {
		return nil
	}

	v := &verifier[K, V]{tree: tree, leafDepth: -1, visited: make(map[page.PageNo]bool)}
	if err := v.check(tree.meta.RootPage, bound[K]{}, bound[K]{}, 0); err != nil {
		return err
	}

	// the chain must match descent order exactly
	i := 0
	leafNo := v.leaves[0]
	for {
		if i >= len(v.leaves) || v.leaves[i] != leafNo {
			return errors.Wrapf(ErrInvariant, "leaf chain reaches page %d at position %d, descent order has %v", leafNo, i, v.leaves)
		}
		n, err := tree.pager.ReadNode(leafNo)
		if err != nil {
			return err
		}
		leaf, ok := n.(*page.LeafPage[K, V])
		if !ok {
			return errors.Wrapf(ErrInvariant, "leaf chain reaches %s page %d", n.Type(), leafNo)
		}
		i++
		if leaf.NextLeaf == page.InvalidPage {
			break
		}
		leafNo = leaf.NextLeaf
	}
	if i != len(v.leaves) {
		return errors.Wrapf(ErrInvariant, "leaf chain ends after %d of %d leaves", i, len(v.leaves))
	}
	return nil
}

func (v *verifier[K, V]) check(pageNo page.PageNo, lo, hi bound[K], depth int) error {
	tree := v.tree
	if v.visited[pageNo] {
		return errors.Wrapf(ErrInvariant, "page %d reachable twice", pageNo)
	}
	v.visited[pageNo] = true

	n, err := tree.pager.ReadNode(pageNo)
	if err != nil {
		return errors.Wrapf(err, "verify page %d", pageNo)
	}

	var keys []K
	switch node := n.(type) {
	case *page.LeafPage[K, V]:
		keys = node.Keys
		if len(keys) == 0 {
			return errors.Wrapf(ErrInvariant, "leaf %d is empty", pageNo)
		}
		if len(keys) > tree.order-1 {
			return errors.Wrapf(ErrInvariant, "leaf %d has %d keys, max %d", pageNo, len(keys), tree.order-1)
		}
		if v.leafDepth == -1 {
			v.leafDepth = depth
		} else if v.leafDepth != depth {
			return errors.Wrapf(ErrInvariant, "leaf %d at depth %d, others at %d", pageNo, depth, v.leafDepth)
		}
		v.leaves = append(v.leaves, pageNo)
	case *page.InternalPage[K]:
		keys = node.Keys
		if len(node.Children) < 2 || len(node.Children) > tree.order {
			return errors.Wrapf(ErrInvariant, "internal %d has %d children, want 2..%d", pageNo, len(node.Children), tree.order)
		}
	}

	for i, k := range keys {
		if i > 0 && tree.codec.Compare(keys[i-1], k) >= 0 {
			return errors.Wrapf(ErrInvariant, "page %d keys not strictly increasing at index %d", pageNo, i)
		}
		if lo.set && tree.codec.Compare(k, lo.key) < 0 {
			return errors.Wrapf(ErrInvariant, "page %d key %v below separator %v", pageNo, k, lo.key)
		}
		if hi.set && tree.codec.Compare(k, hi.key) >= 0 {
			return errors.Wrapf(ErrInvariant, "page %d key %v not below separator %v", pageNo, k, hi.key)
		}
	}

	if node, ok := n.(*page.InternalPage[K]); ok {
		for i, child := range node.Children {
			clo, chi := lo, hi
			if i > 0 {
				clo = bound[K]{key: node.Keys[i-1], set: true}
			}
			if i < len(node.Keys) {
				chi = bound[K]{key: node.Keys[i], set: true}
			}
			if err := v.check(child, clo, chi, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

// Stats walks the tree level by level and reports its shape.
func (tree *BPlusTree[K, V]) Stats() (TreeStats, error) {
	if tree.closed {
		return TreeStats{}, ErrClosed
	}
	stats := TreeStats{
		Order:        tree.order,
		RootPage:     tree.meta.RootPage,
		NextFreePage: tree.pager.Next,
	}
	if tree.meta.RootPage == page.InvalidPage {
		stats.IO = tree.pager.Stats()
		return stats, nil
	}

	level := []page.PageNo{tree.meta.RootPage}
	for len(level) > 0 {
		stats.Height++
		var next []page.PageNo
		for _, no := range level {
			n, err := tree.pager.ReadNode(no)
			if err != nil {
				return stats, errors.Wrapf(err, "stats page %d", no)
			}
			switch node := n.(type) {
			case *page.LeafPage[K, V]:
				stats.LeafPages++
				stats.Keys += len(node.Keys)
				for _, vals := range node.Values {
					stats.Values += len(vals)
				}
			case *page.InternalPage[K]:
				stats.InternalPages++
				next = append(next, node.Children...)
			}
		}
		if stats.Height > int(tree.pager.Next) {
			return stats, errors.Wrap(page.ErrCorruptPage, "tree deeper than allocated pages")
		}
		level = next
	}
	stats.IO = tree.pager.Stats()
	return stats, nil
}
