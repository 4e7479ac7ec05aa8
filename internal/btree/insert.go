package btree

import (
	"github.com/pkg/errors"

	"pagetree/internal/page"
)

// pendingWrite is an encoded page waiting to be written.
type pendingWrite struct {
	pageNo page.PageNo
	buf    []byte
}

// -----------------------------
// Insert into B+ Tree
// -----------------------------

// Insert function used for: Adding value under key, keeping every node
// within the tree order by splitting and growing the root as needed.
//
// Algorithm steps:
// 1. Empty tree - allocate a one-entry leaf and make it the root
// 2. Find the target leaf and the internal path above it
// 3. Existing key - append value to its list; new key - insert in sorted position
// 4. Leaf overflow (more than order-1 keys, or more bytes than a page when
// it holds at least two keys) - split, promote the right half's first key
// 5. Walk the path upwards inserting the promoted key and right page; split
// internal nodes with more than order children, promoting their middle key
// 6. Promotion out of the root - allocate a new internal root over both halves
// 7. Encode every touched page, then write right halves before left halves,
// children before parents, and the superblock last
//
// Duplicate keys are allowed: values accumulate under the existing key.
// If any page fails to encode (for example a key collected more values
// than a page can hold) nothing is written.
func (tree *BPlusTree[K, V]) Insert(key K, value V) (err error) {
	if tree.closed {
		return ErrClosed
	}
	defer func() {
		if err == nil {
			tree.recorder.RecordStepWithKey(StepTypeOperationComplete, tree.meta.RootPage, 0, key, map[string]interface{}{"operation": "insert"})
		}
	}()

	if tree.meta.RootPage == page.InvalidPage {
		return tree.insertFirst(key, value)
	}

	leaf, leafNo, path, err := tree.findLeaf(key)
	if err != nil {
		return errors.Wrap(err, "insert")
	}

	depth := len(path)
	if i, found := binarySearchFirstGreaterOrEqual(leaf.Keys, key, tree.codec.Compare); found {
		leaf.AppendValue(i, value)
		tree.recorder.RecordStepWithKey(StepTypeAppendValue, leafNo, depth, key, map[string]interface{}{"values": len(leaf.Values[i])})
	} else {
		leaf.InsertAt(i, key, value)
		tree.recorder.RecordStepWithKey(StepTypeInsertEntry, leafNo, depth, key, map[string]interface{}{"index": i})
	}

	var writes []pendingWrite
	stage := func(no page.PageNo, n page.Node[K, V]) error {
		buf, err := tree.pager.EncodeNode(n)
		if err != nil {
			return errors.Wrapf(err, "insert: encode page %d", no)
		}
		writes = append(writes, pendingWrite{pageNo: no, buf: buf})
		return nil
	}

	overflow := len(leaf.Keys) > tree.order-1
	size := tree.codec.EncodedSize(leaf)
	if !overflow && len(leaf.Keys) > 1 && size > page.PageSize {
		// key count fits but accumulated values do not
		overflow = true
	}
	if !overflow {
		if err := stage(leafNo, leaf); err != nil {
			return err
		}
		return tree.flush(writes, tree.meta.RootPage)
	}

	// Leaf split
	tree.recorder.RecordStep(StepTypeOverflowDetected, leafNo, depth, map[string]interface{}{"keys": len(leaf.Keys), "bytes": size})
	rightNo := tree.pager.Allocate()
	right := leaf.Split(rightNo)
	tree.recorder.RecordStepWithTarget(StepTypeNodeSplit, leafNo, rightNo, depth, right.Keys[0], map[string]interface{}{"type": "leaf"})
	tree.logger.Debug("split leaf", "page", leafNo, "right", rightNo, "separator", right.Keys[0])
	if err := stage(rightNo, right); err != nil {
		return err
	}
	if err := stage(leafNo, leaf); err != nil {
		return err
	}

	promoted, child := right.Keys[0], rightNo

	// Propagate the split upwards. `child` always points to the right-side
	// page produced by the most recent split.
	for len(path) > 0 {
		entry := path[len(path)-1]
		path = path[:len(path)-1]
		depth = len(path)

		parent := entry.node
		pos := binarySearchFirstGreater(parent.Keys, promoted, tree.codec.Compare)
		parent.InsertChild(pos, promoted, child)
		tree.recorder.RecordStepWithTarget(StepTypePromoteKey, child, entry.pageNo, depth, promoted, map[string]interface{}{"index": pos})

		if len(parent.Children) <= tree.order {
			if err := stage(entry.pageNo, parent); err != nil {
				return err
			}
			return tree.flush(writes, tree.meta.RootPage)
		}

		tree.recorder.RecordStep(StepTypeOverflowDetected, entry.pageNo, depth, map[string]interface{}{"children": len(parent.Children)})
		newNo := tree.pager.Allocate()
		var newRight *page.InternalPage[K]
		promoted, newRight = parent.Split()
		tree.recorder.RecordStepWithTarget(StepTypeNodeSplit, entry.pageNo, newNo, depth, promoted, map[string]interface{}{"type": "internal"})
		tree.logger.Debug("split internal", "page", entry.pageNo, "right", newNo, "separator", promoted)
		if err := stage(newNo, newRight); err != nil {
			return err
		}
		if err := stage(entry.pageNo, parent); err != nil {
			return err
		}
		child = newNo
	}

	// The root split: grow the tree by one level.
	oldRoot := tree.meta.RootPage
	rootNo := tree.pager.Allocate()
	root := &page.InternalPage[K]{
		Keys:     []K{promoted},
		Children: []page.PageNo{oldRoot, child},
	}
	tree.recorder.RecordStepWithTarget(StepTypeNewRootCreated, rootNo, oldRoot, 0, promoted, map[string]interface{}{"right": child})
	tree.logger.Debug("grew root", "old_root", oldRoot, "new_root", rootNo, "separator", promoted)
	if err := stage(rootNo, root); err != nil {
		return err
	}
	return tree.flush(writes, rootNo)
}

// insertFirst creates the root leaf of an empty tree.
func (tree *BPlusTree[K, V]) insertFirst(key K, value V) error {
	leafNo := tree.pager.Allocate()
	leaf := page.NewLeafPage[K, V](tree.order)
	leaf.InsertAt(0, key, value)

	buf, err := tree.pager.EncodeNode(leaf)
	if err != nil {
		return errors.Wrap(err, "insert: encode root leaf")
	}
	tree.recorder.RecordStepWithKey(StepTypeInsertEntry, leafNo, 0, key, map[string]interface{}{"index": 0})
	return tree.flush([]pendingWrite{{pageNo: leafNo, buf: buf}}, leafNo)
}

// flush writes staged pages in order, then rewrites the superblock if the
// root or the allocator cursor moved. The superblock write is the last
// write of the insert; until it lands a reopened tree sees the old root.
func (tree *BPlusTree[K, V]) flush(writes []pendingWrite, root page.PageNo) error {
	for _, w := range writes {
		if err := tree.pager.WritePage(w.pageNo, w.buf); err != nil {
			return errors.Wrap(err, "insert")
		}
	}
	if root == tree.meta.RootPage && tree.pager.Next == tree.meta.NextFree {
		return nil
	}

	meta := *tree.meta
	meta.RootPage = root
	meta.NextFree = tree.pager.Next
	if err := tree.pager.WriteMeta(&meta); err != nil {
		return errors.Wrap(err, "insert: write superblock")
	}
	tree.meta = &meta
	return nil
}
