package page

import (
	"github.com/pkg/errors"
)

// ErrReservedPage is returned when a node operation targets page 0.
var ErrReservedPage = errors.New("page: page 0 is reserved for the superblock")

// IOStats counts page traffic through a PageManager.
type IOStats struct {
	Reads     uint64
	Writes    uint64
	Syncs     uint64
	Allocated uint64
}

// PageManager hands out page numbers and moves encoded nodes between
// memory and a Medium. Page numbers are allocated sequentially starting
// at 1 and are never reused.
type PageManager[K, V any] struct {
	Next        PageNo // next page number Allocate will return
	medium      Medium
	codec       *Codec[K, V]
	syncOnWrite bool
	stats       IOStats
}

// NewPageManager wraps medium. The cursor starts at 1; call Resume when
// opening a medium that already holds pages.
func NewPageManager[K, V any](medium Medium, codec *Codec[K, V], syncOnWrite bool) *PageManager[K, V] {
	return &PageManager[K, V]{
		Next:        1,
		medium:      medium,
		codec:       codec,
		syncOnWrite: syncOnWrite,
	}
}

// Resume positions the allocator after reopening a medium.
//
// Algorithm steps:
// 1. Start from the cursor recorded in the superblock
// 2. Raise it to the medium's page count, so pages written by an insert
// that never reached its superblock write are skipped rather than reused
// 3. Never go below 1
func (pm *PageManager[K, V]) Resume(recorded PageNo) error {
	count, err := pm.medium.PageCount()
	if err != nil {
		return errors.Wrap(err, "resume allocator")
	}
	pm.Next = max(recorded, count, 1)
	return nil
}

// Allocate returns a fresh page number. It only advances the in-memory
// cursor; nothing is written.
func (pm *PageManager[K, V]) Allocate() PageNo {
	no := pm.Next
	pm.Next++
	pm.stats.Allocated++
	return no
}

func (pm *PageManager[K, V]) Codec() *Codec[K, V] { return pm.codec }

// ReadNode reads and decodes the node at page no.
func (pm *PageManager[K, V]) ReadNode(no PageNo) (Node[K, V], error) {
	if no == InvalidPage {
		return nil, errors.Wrap(ErrReservedPage, "read node")
	}
	buf := make([]byte, PageSize)
	if err := pm.medium.ReadPage(no, buf); err != nil {
		return nil, err
	}
	pm.stats.Reads++
	n, err := pm.codec.Decode(buf)
	if err != nil {
		return nil, errors.Wrapf(err, "decode page %d", no)
	}
	return n, nil
}

// EncodeNode serializes n without writing it. Callers that must write
// several pages for one change encode them all first so an encode error
// leaves the medium untouched.
func (pm *PageManager[K, V]) EncodeNode(n Node[K, V]) ([]byte, error) {
	return pm.codec.Encode(n)
}

// WritePage writes an already encoded node page.
func (pm *PageManager[K, V]) WritePage(no PageNo, buf []byte) error {
	if no == InvalidPage {
		return errors.Wrap(ErrReservedPage, "write node")
	}
	return pm.write(no, buf)
}

// WriteNode encodes n and writes it to page no.
func (pm *PageManager[K, V]) WriteNode(no PageNo, n Node[K, V]) error {
	buf, err := pm.codec.Encode(n)
	if err != nil {
		return errors.Wrapf(err, "encode page %d", no)
	}
	return pm.WritePage(no, buf)
}

// ReadMeta loads the superblock from page 0.
func (pm *PageManager[K, V]) ReadMeta() (*MetaPage, error) {
	buf := make([]byte, PageSize)
	if err := pm.medium.ReadPage(MetaPageNo, buf); err != nil {
		return nil, errors.Wrap(err, "read superblock")
	}
	pm.stats.Reads++
	return DecodeMeta(buf)
}

// WriteMeta persists the superblock to page 0.
func (pm *PageManager[K, V]) WriteMeta(m *MetaPage) error {
	buf, err := EncodeMeta(m)
	if err != nil {
		return err
	}
	return pm.write(MetaPageNo, buf)
}

func (pm *PageManager[K, V]) write(no PageNo, buf []byte) error {
	if err := pm.medium.WritePage(no, buf); err != nil {
		return err
	}
	pm.stats.Writes++
	if pm.syncOnWrite {
		return pm.Sync()
	}
	return nil
}

func (pm *PageManager[K, V]) PageCount() (PageNo, error) {
	return pm.medium.PageCount()
}

// Sync flushes the medium.
func (pm *PageManager[K, V]) Sync() error {
	if err := pm.medium.Sync(); err != nil {
		return err
	}
	pm.stats.Syncs++
	return nil
}

// Close flushes and closes the medium.
func (pm *PageManager[K, V]) Close() error {
	if err := pm.Sync(); err != nil {
		_ = pm.medium.Close()
		return err
	}
	return pm.medium.Close()
}

func (pm *PageManager[K, V]) Stats() IOStats { return pm.stats }
