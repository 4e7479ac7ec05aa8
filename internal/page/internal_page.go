package page

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// InsertChild inserts key at index i and child right after it, at i+1.
// The new child covers keys at or above key.
func (p *InternalPage[K]) InsertChild(i int, key K, child PageNo) {
	var zk K
	p.Keys = append(p.Keys, zk)
	copy(p.Keys[i+1:], p.Keys[i:])
	p.Keys[i] = key

	p.Children = append(p.Children, InvalidPage)
	copy(p.Children[i+2:], p.Children[i+1:])
	p.Children[i+1] = child
}

// Split moves everything right of the middle key into a new node and
// returns the middle key, which moves up to the parent and is kept in
// neither half.
func (p *InternalPage[K]) Split() (K, *InternalPage[K]) {
	mid := len(p.Keys) / 2
	promoted := p.Keys[mid]

	right := &InternalPage[K]{
		Keys:     append(make([]K, 0, cap(p.Keys)), p.Keys[mid+1:]...),
		Children: append(make([]PageNo, 0, cap(p.Children)), p.Children[mid+1:]...),
	}

	clear(p.Keys[mid:])
	p.Keys = p.Keys[:mid]
	p.Children = p.Children[:mid+1]

	return promoted, right
}

// -----------------------------
// Internal serialization
// -----------------------------

func (c *Codec[K, V]) internalSize(p *InternalPage[K]) int {
	return InternalHeaderSize + len(p.Keys)*c.keys.Width() + len(p.Children)*PageNoSize
}

// encodeInternal writes the internal layout:
//
//	[0]    tag (2)
//	[1:5]  key_count u32
//	then key_count keys, then key_count+1 child page numbers (u32 each)
func (c *Codec[K, V]) encodeInternal(p *InternalPage[K]) ([]byte, error) {
	if len(p.Children) != len(p.Keys)+1 {
		return nil, errors.Wrapf(ErrMalformedNode, "internal has %d keys and %d children", len(p.Keys), len(p.Children))
	}
	if size := c.internalSize(p); size > PageSize {
		return nil, errors.Wrapf(ErrPageOverflow, "internal needs %d bytes", size)
	}

	out := make([]byte, PageSize)
	out[0] = byte(NodeInternal)
	binary.LittleEndian.PutUint32(out[1:5], uint32(len(p.Keys)))

	kw := c.keys.Width()
	off := InternalHeaderSize
	for i, k := range p.Keys {
		if err := c.keys.Encode(out[off:off+kw], k); err != nil {
			return nil, errors.Wrapf(err, "internal key %d", i)
		}
		off += kw
	}
	for _, child := range p.Children {
		binary.LittleEndian.PutUint32(out[off:off+PageNoSize], uint32(child))
		off += PageNoSize
	}
	return out, nil
}

func (c *Codec[K, V]) decodeInternal(buf []byte) (*InternalPage[K], error) {
	r := bytes.NewReader(buf[TagSize:])
	kw := c.keys.Width()

	var keyCount uint32
	if err := binary.Read(r, binary.LittleEndian, &keyCount); err != nil {
		return nil, errors.Wrap(ErrCorruptPage, "internal key_count truncated")
	}
	need := int64(keyCount)*int64(kw) + (int64(keyCount)+1)*PageNoSize
	if need > int64(r.Len()) {
		return nil, errors.Wrapf(ErrCorruptPage, "internal key_count %d exceeds page", keyCount)
	}

	p := &InternalPage[K]{
		Keys:     make([]K, 0, keyCount),
		Children: make([]PageNo, 0, keyCount+1),
	}
	kbuf := make([]byte, kw)
	for i := uint32(0); i < keyCount; i++ {
		if _, err := io.ReadFull(r, kbuf); err != nil {
			return nil, errors.Wrapf(ErrCorruptPage, "internal key %d truncated", i)
		}
		k, err := c.keys.Decode(kbuf)
		if err != nil {
			return nil, errors.Wrapf(ErrCorruptPage, "internal key %d: %v", i, err)
		}
		p.Keys = append(p.Keys, k)
	}
	for i := uint32(0); i <= keyCount; i++ {
		var child uint32
		if err := binary.Read(r, binary.LittleEndian, &child); err != nil {
			return nil, errors.Wrapf(ErrCorruptPage, "internal child %d truncated", i)
		}
		if PageNo(child) == InvalidPage {
			return nil, errors.Wrapf(ErrCorruptPage, "internal child %d points at page 0", i)
		}
		p.Children = append(p.Children, PageNo(child))
	}
	return p, nil
}
