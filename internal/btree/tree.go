package btree

import (
	"log/slog"

	"github.com/pkg/errors"

	"pagetree/internal/page"
	"pagetree/internal/storage"
)

var (
	ErrClosed    = errors.New("btree: tree is closed")
	ErrInvariant = errors.New("btree: invariant violated")
)

// BPlusTree is a disk-backed B+ tree mapping fixed-width keys to one or
// more fixed-width values. It is not safe for concurrent use.
type BPlusTree[K, V any] struct {
	pager    *page.PageManager[K, V]
	codec    *page.Codec[K, V]
	meta     *page.MetaPage
	order    int
	logger   *slog.Logger
	recorder StepRecorder
	closed   bool
}

// pathEntry is one internal node on the way from the root to a leaf.
type pathEntry[K any] struct {
	pageNo page.PageNo
	node   *page.InternalPage[K]
}

// OpenFile opens or creates a tree stored in the file at path.
func OpenFile[K, V any](path string, cfg Config, keys storage.KeyCodec[K], values storage.Codec[V]) (*BPlusTree[K, V], error) {
	medium, err := page.OpenFile(path, cfg.Truncate)
	if err != nil {
		return nil, err
	}
	tree, err := Open(medium, cfg, keys, values)
	if err != nil {
		_ = medium.Close()
		return nil, err
	}
	return tree, nil
}

// Open function used for: Attaching a tree to a page medium, formatting it
// when empty and validating the stored superblock otherwise.
//
// Algorithm steps:
// 1. Build the node codec and page manager from the key/value codecs
// 2. Empty medium - pick the order, write a fresh superblock at page 0 and sync
// 3. Existing medium - read the superblock, adopt or check the order, check
// page size and key/value widths
// 4. Resume the allocator past every page already on the medium
//
// Return: *BPlusTree - the opened tree; the caller must Close it
func Open[K, V any](medium page.Medium, cfg Config, keys storage.KeyCodec[K], values storage.Codec[V]) (*BPlusTree[K, V], error) {
	cfg = cfg.withDefaults()

	codec, err := page.NewCodec(keys, values)
	if err != nil {
		return nil, err
	}
	pager := page.NewPageManager(medium, codec, cfg.SyncOnWrite)

	count, err := medium.PageCount()
	if err != nil {
		return nil, errors.Wrap(err, "open tree")
	}

	tree := &BPlusTree[K, V]{
		pager:    pager,
		codec:    codec,
		logger:   cfg.Logger,
		recorder: cfg.Recorder,
	}

	if count == 0 {
		order := cfg.Order
		if order == 0 {
			order = DefaultOrder
		}
		if err := ValidateOrder(order, codec.KeyWidth(), codec.ValueWidth()); err != nil {
			return nil, err
		}
		tree.order = order
		tree.meta = &page.MetaPage{
			Version:    page.MetaVersion,
			PageSize:   page.PageSize,
			Order:      uint32(order),
			KeyWidth:   uint32(codec.KeyWidth()),
			ValueWidth: uint32(codec.ValueWidth()),
			RootPage:   page.InvalidPage,
			NextFree:   pager.Next,
		}
		if err := pager.WriteMeta(tree.meta); err != nil {
			return nil, errors.Wrap(err, "format tree")
		}
		if err := pager.Sync(); err != nil {
			return nil, errors.Wrap(err, "format tree")
		}
		tree.logger.Debug("formatted new tree", "order", order, "key_width", codec.KeyWidth(), "value_width", codec.ValueWidth())
		return tree, nil
	}

	meta, err := pager.ReadMeta()
	if err != nil {
		return nil, errors.Wrap(err, "open tree")
	}
	if err := checkMeta(meta, cfg.Order, codec); err != nil {
		return nil, err
	}
	if meta.RootPage != page.InvalidPage && meta.RootPage >= count {
		return nil, errors.Wrapf(page.ErrCorruptPage, "root page %d beyond end of medium (%d pages)", meta.RootPage, count)
	}
	if err := pager.Resume(meta.NextFree); err != nil {
		return nil, err
	}

	tree.meta = meta
	tree.order = int(meta.Order)
	tree.logger.Debug("opened tree", "order", tree.order, "root", meta.RootPage, "next_free", pager.Next, "pages", count)
	return tree, nil
}

func checkMeta[K, V any](meta *page.MetaPage, order int, codec *page.Codec[K, V]) error {
	if meta.PageSize != page.PageSize {
		return errors.Wrapf(ErrConfigMismatch, "page size %d, want %d", meta.PageSize, page.PageSize)
	}
	if order != 0 && meta.Order != uint32(order) {
		return errors.Wrapf(ErrConfigMismatch, "order %d, want %d", meta.Order, order)
	}
	if meta.KeyWidth != uint32(codec.KeyWidth()) || meta.ValueWidth != uint32(codec.ValueWidth()) {
		return errors.Wrapf(ErrConfigMismatch, "key/value width %d/%d, want %d/%d",
			meta.KeyWidth, meta.ValueWidth, codec.KeyWidth(), codec.ValueWidth())
	}
	return ValidateOrder(int(meta.Order), codec.KeyWidth(), codec.ValueWidth())
}

// RootPage returns the page number of the root, or page.InvalidPage when
// the tree is empty.
func (tree *BPlusTree[K, V]) RootPage() page.PageNo {
	return tree.meta.RootPage
}

// IsRoot reports whether pageNo is the current root.
func (tree *BPlusTree[K, V]) IsRoot(pageNo page.PageNo) bool {
	return pageNo != page.InvalidPage && pageNo == tree.meta.RootPage
}

func (tree *BPlusTree[K, V]) Order() int { return tree.order }

// Sync flushes all written pages to stable storage.
func (tree *BPlusTree[K, V]) Sync() error {
	if tree.closed {
		return ErrClosed
	}
	return tree.pager.Sync()
}

// Close syncs and closes the underlying medium.
func (tree *BPlusTree[K, V]) Close() error {
	if tree.closed {
		return nil
	}
	tree.closed = true
	return tree.pager.Close()
}

// -----------------------------
// Finding the correct leaf
// -----------------------------

// findLeaf traverses the tree from the root to the leaf that holds, or
// would receive, key. At each internal node it follows the child after
// the last separator <= key. The returned path lists the internal nodes
// from the root down, excluding the leaf, for split propagation.
func (tree *BPlusTree[K, V]) findLeaf(key K) (*page.LeafPage[K, V], page.PageNo, []pathEntry[K], error) {
	pageNo := tree.meta.RootPage
	var path []pathEntry[K]

	for depth := 0; ; depth++ {
		n, err := tree.pager.ReadNode(pageNo)
		if err != nil {
			return nil, page.InvalidPage, nil, err
		}
		switch node := n.(type) {
		case *page.LeafPage[K, V]:
			tree.recorder.RecordStepWithKey(StepTypeLeafFound, pageNo, depth, key, nil)
			return node, pageNo, path, nil
		case *page.InternalPage[K]:
			tree.recorder.RecordStep(StepTypeNodeVisit, pageNo, depth, nil)
			if depth > int(tree.pager.Next) {
				return nil, page.InvalidPage, nil, errors.Wrapf(page.ErrCorruptPage, "descent deeper than %d pages", tree.pager.Next)
			}
			path = append(path, pathEntry[K]{pageNo: pageNo, node: node})
			pageNo = node.Children[binarySearchFirstGreater(node.Keys, key, tree.codec.Compare)]
		default:
			return nil, page.InvalidPage, nil, errors.Wrapf(page.ErrInvalidTag, "page %d", pageNo)
		}
	}
}

// leftmostLeaf descends through Children[0] to the first leaf in key order.
func (tree *BPlusTree[K, V]) leftmostLeaf() (*page.LeafPage[K, V], page.PageNo, error) {
	pageNo := tree.meta.RootPage
	for depth := 0; ; depth++ {
		n, err := tree.pager.ReadNode(pageNo)
		if err != nil {
			return nil, page.InvalidPage, err
		}
		switch node := n.(type) {
		case *page.LeafPage[K, V]:
			return node, pageNo, nil
		case *page.InternalPage[K]:
			if depth > int(tree.pager.Next) {
				return nil, page.InvalidPage, errors.Wrapf(page.ErrCorruptPage, "descent deeper than %d pages", tree.pager.Next)
			}
			pageNo = node.Children[0]
		default:
			return nil, page.InvalidPage, errors.Wrapf(page.ErrInvalidTag, "page %d", pageNo)
		}
	}
}
