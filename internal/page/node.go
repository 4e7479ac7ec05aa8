package page

import (
	"fmt"

	"github.com/pkg/errors"

	"pagetree/internal/storage"
)

// PageNo is the index of a fixed-size page inside the backing medium.
// The byte offset of a page is PageNo * PageSize.
type PageNo uint32

const (
	// InvalidPage means "no page". Page 0 holds the superblock and is
	// never used as a node page, so it doubles as the null pointer for
	// next_leaf links and the empty-tree root.
	InvalidPage PageNo = 0
	// MetaPageNo is where the superblock lives.
	MetaPageNo PageNo = 0
)

// PageSize is the size of every page in bytes.
const PageSize = 4096

// Layout sizes shared by the codecs.
const (
	TagSize            = 1
	CountSize          = 4
	PageNoSize         = 4
	LeafHeaderSize     = TagSize + PageNoSize + CountSize // tag, next_leaf, key_count
	InternalHeaderSize = TagSize + CountSize              // tag, key_count
)

// NodeType is the tag stored in byte 0 of every node page.
type NodeType uint8

const (
	NodeInvalid  NodeType = 0
	NodeLeaf     NodeType = 1
	NodeInternal NodeType = 2
)

func (t NodeType) String() string {
	switch t {
	case NodeLeaf:
		return "leaf"
	case NodeInternal:
		return "internal"
	case NodeInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

var (
	ErrPageOverflow  = errors.New("page: node does not fit in one page")
	ErrMalformedNode = errors.New("page: node breaks shape invariants")
	ErrInvalidTag    = errors.New("page: invalid node tag")
	ErrCorruptPage   = errors.New("page: corrupt page")
	ErrBadWidth      = errors.New("page: key and value widths must be positive")
)

// Node is either a *LeafPage[K, V] or an *InternalPage[K].
// Callers distinguish the two with a type switch.
type Node[K, V any] interface {
	Type() NodeType
	KeyCount() int
	node()
}

// LeafPage holds keys in strictly increasing order with a non-empty
// list of values per key. Leaves are chained through NextLeaf.
type LeafPage[K, V any] struct {
	Keys     []K
	Values   [][]V
	NextLeaf PageNo
}

// InternalPage routes lookups: Children[i] covers keys below Keys[i],
// Children[i+1] covers keys at or above it.
type InternalPage[K any] struct {
	Keys     []K
	Children []PageNo
}

func (*LeafPage[K, V]) Type() NodeType  { return NodeLeaf }
func (p *LeafPage[K, V]) KeyCount() int { return len(p.Keys) }
func (*LeafPage[K, V]) node()           {}

func (*InternalPage[K]) Type() NodeType  { return NodeInternal }
func (p *InternalPage[K]) KeyCount() int { return len(p.Keys) }
func (*InternalPage[K]) node()           {}

// NewLeafPage returns an empty leaf with room for order-1 keys.
func NewLeafPage[K, V any](order int) *LeafPage[K, V] {
	return &LeafPage[K, V]{
		Keys:   make([]K, 0, order),
		Values: make([][]V, 0, order),
	}
}

// NewInternalPage returns an empty internal node with room for order children.
func NewInternalPage[K any](order int) *InternalPage[K] {
	return &InternalPage[K]{
		Keys:     make([]K, 0, order),
		Children: make([]PageNo, 0, order+1),
	}
}

// Codec serializes nodes to and from PageSize buffers using fixed-width
// key and value codecs.
type Codec[K, V any] struct {
	keys   storage.KeyCodec[K]
	values storage.Codec[V]
}

// NewCodec builds a node codec. Both widths must be positive.
func NewCodec[K, V any](keys storage.KeyCodec[K], values storage.Codec[V]) (*Codec[K, V], error) {
	if keys.Width() <= 0 || values.Width() <= 0 {
		return nil, errors.Wrapf(ErrBadWidth, "key width %d, value width %d", keys.Width(), values.Width())
	}
	return &Codec[K, V]{keys: keys, values: values}, nil
}

func (c *Codec[K, V]) KeyWidth() int   { return c.keys.Width() }
func (c *Codec[K, V]) ValueWidth() int { return c.values.Width() }

// Compare orders two keys with the key codec.
func (c *Codec[K, V]) Compare(a, b K) int { return c.keys.Compare(a, b) }

// EncodedSize returns the number of bytes Encode would produce before padding.
func (c *Codec[K, V]) EncodedSize(n Node[K, V]) int {
	switch p := n.(type) {
	case *LeafPage[K, V]:
		return c.leafSize(p)
	case *InternalPage[K]:
		return c.internalSize(p)
	default:
		return 0
	}
}

// Encode serializes n into a zero-padded PageSize buffer.
// It fails with ErrPageOverflow if the node does not fit and with
// ErrMalformedNode if the node's slices disagree in length.
func (c *Codec[K, V]) Encode(n Node[K, V]) ([]byte, error) {
	switch p := n.(type) {
	case *LeafPage[K, V]:
		return c.encodeLeaf(p)
	case *InternalPage[K]:
		return c.encodeInternal(p)
	default:
		return nil, errors.Wrapf(ErrInvalidTag, "cannot encode %T", n)
	}
}

// Decode parses a page produced by Encode. Every read is bounds checked.
func (c *Codec[K, V]) Decode(buf []byte) (Node[K, V], error) {
	if len(buf) < TagSize {
		return nil, errors.Wrap(ErrCorruptPage, "empty buffer")
	}
	switch t := NodeType(buf[0]); t {
	case NodeLeaf:
		return c.decodeLeaf(buf)
	case NodeInternal:
		return c.decodeInternal(buf)
	default:
		return nil, errors.Wrapf(ErrInvalidTag, "tag %d", uint8(t))
	}
}
