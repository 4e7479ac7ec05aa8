package page

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// -----------------------------
// In-memory leaf operations
// -----------------------------

// InsertAt inserts key with a single value at index i, shifting later
// entries right. The caller picks i so that Keys stays sorted.
func (p *LeafPage[K, V]) InsertAt(i int, key K, value V) {
	var zk K
	p.Keys = append(p.Keys, zk)
	p.Values = append(p.Values, nil)

	copy(p.Keys[i+1:], p.Keys[i:])
	copy(p.Values[i+1:], p.Values[i:])

	p.Keys[i] = key
	p.Values[i] = []V{value}
}

// AppendValue adds value to the list of the key at index i.
func (p *LeafPage[K, V]) AppendValue(i int, value V) {
	p.Values[i] = append(p.Values[i], value)
}

// Split moves the upper half of p into a new right sibling and stitches
// it into the leaf chain. The right sibling inherits p's old NextLeaf and
// p points at rightPage afterwards. The separator for the parent is
// right.Keys[0].
func (p *LeafPage[K, V]) Split(rightPage PageNo) *LeafPage[K, V] {
	mid := len(p.Keys) / 2

	right := &LeafPage[K, V]{
		Keys:     append(make([]K, 0, cap(p.Keys)), p.Keys[mid:]...),
		Values:   append(make([][]V, 0, cap(p.Values)), p.Values[mid:]...),
		NextLeaf: p.NextLeaf,
	}

	clear(p.Keys[mid:])
	clear(p.Values[mid:])
	p.Keys = p.Keys[:mid]
	p.Values = p.Values[:mid]
	p.NextLeaf = rightPage

	return right
}

// -----------------------------
// Leaf serialization
// -----------------------------

func (c *Codec[K, V]) leafSize(p *LeafPage[K, V]) int {
	size := LeafHeaderSize
	kw, vw := c.keys.Width(), c.values.Width()
	for _, vals := range p.Values {
		size += kw + CountSize + len(vals)*vw
	}
	return size
}

// encodeLeaf writes the leaf layout:
//
//	[0]    tag (1)
//	[1:5]  next_leaf u32
//	[5:9]  key_count u32
//	then per key: key bytes, value_count u32, value_count * value bytes
func (c *Codec[K, V]) encodeLeaf(p *LeafPage[K, V]) ([]byte, error) {
	if len(p.Keys) != len(p.Values) {
		return nil, errors.Wrapf(ErrMalformedNode, "leaf has %d keys and %d value lists", len(p.Keys), len(p.Values))
	}
	for i, vals := range p.Values {
		if len(vals) == 0 {
			return nil, errors.Wrapf(ErrMalformedNode, "leaf key %d has no values", i)
		}
	}
	if size := c.leafSize(p); size > PageSize {
		return nil, errors.Wrapf(ErrPageOverflow, "leaf needs %d bytes", size)
	}

	out := make([]byte, PageSize)
	out[0] = byte(NodeLeaf)
	binary.LittleEndian.PutUint32(out[1:5], uint32(p.NextLeaf))
	binary.LittleEndian.PutUint32(out[5:9], uint32(len(p.Keys)))

	kw, vw := c.keys.Width(), c.values.Width()
	off := LeafHeaderSize
	for i, k := range p.Keys {
		if err := c.keys.Encode(out[off:off+kw], k); err != nil {
			return nil, errors.Wrapf(err, "leaf key %d", i)
		}
		off += kw
		binary.LittleEndian.PutUint32(out[off:off+CountSize], uint32(len(p.Values[i])))
		off += CountSize
		for j, v := range p.Values[i] {
			if err := c.values.Encode(out[off:off+vw], v); err != nil {
				return nil, errors.Wrapf(err, "leaf key %d value %d", i, j)
			}
			off += vw
		}
	}
	return out, nil
}

func (c *Codec[K, V]) decodeLeaf(buf []byte) (*LeafPage[K, V], error) {
	r := bytes.NewReader(buf[TagSize:])
	kw, vw := c.keys.Width(), c.values.Width()

	var next, keyCount uint32
	if err := binary.Read(r, binary.LittleEndian, &next); err != nil {
		return nil, errors.Wrap(ErrCorruptPage, "leaf next_leaf truncated")
	}
	if err := binary.Read(r, binary.LittleEndian, &keyCount); err != nil {
		return nil, errors.Wrap(ErrCorruptPage, "leaf key_count truncated")
	}
	// each key needs at least its bytes plus a value count
	if int64(keyCount)*int64(kw+CountSize) > int64(r.Len()) {
		return nil, errors.Wrapf(ErrCorruptPage, "leaf key_count %d exceeds page", keyCount)
	}

	p := &LeafPage[K, V]{
		Keys:     make([]K, 0, keyCount),
		Values:   make([][]V, 0, keyCount),
		NextLeaf: PageNo(next),
	}
	kbuf := make([]byte, kw)
	vbuf := make([]byte, vw)
	for i := uint32(0); i < keyCount; i++ {
		if _, err := io.ReadFull(r, kbuf); err != nil {
			return nil, errors.Wrapf(ErrCorruptPage, "leaf key %d truncated", i)
		}
		k, err := c.keys.Decode(kbuf)
		if err != nil {
			return nil, errors.Wrapf(ErrCorruptPage, "leaf key %d: %v", i, err)
		}

		var valueCount uint32
		if err := binary.Read(r, binary.LittleEndian, &valueCount); err != nil {
			return nil, errors.Wrapf(ErrCorruptPage, "leaf key %d value_count truncated", i)
		}
		if valueCount == 0 {
			return nil, errors.Wrapf(ErrCorruptPage, "leaf key %d has zero values", i)
		}
		if int64(valueCount)*int64(vw) > int64(r.Len()) {
			return nil, errors.Wrapf(ErrCorruptPage, "leaf key %d value_count %d exceeds page", i, valueCount)
		}

		vals := make([]V, 0, valueCount)
		for j := uint32(0); j < valueCount; j++ {
			if _, err := io.ReadFull(r, vbuf); err != nil {
				return nil, errors.Wrapf(ErrCorruptPage, "leaf key %d value %d truncated", i, j)
			}
			v, err := c.values.Decode(vbuf)
			if err != nil {
				return nil, errors.Wrapf(ErrCorruptPage, "leaf key %d value %d: %v", i, j, err)
			}
			vals = append(vals, v)
		}

		p.Keys = append(p.Keys, k)
		p.Values = append(p.Values, vals)
	}
	return p, nil
}
