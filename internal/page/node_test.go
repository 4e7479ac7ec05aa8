package page

import (
	"encoding/binary"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagetree/internal/storage"
)

func newTestCodec(t *testing.T) *Codec[int64, int64] {
	t.Helper()
	c, err := NewCodec[int64, int64](storage.Int64{}, storage.Int64{})
	require.NoError(t, err)
	return c
}

func TestCodec_LeafRoundTrip(t *testing.T) {
	c := newTestCodec(t)
	leaf := &LeafPage[int64, int64]{
		Keys:     []int64{10, 20, 30},
		Values:   [][]int64{{100}, {200, 201, 202}, {300}},
		NextLeaf: 7,
	}

	buf, err := c.Encode(leaf)
	require.NoError(t, err)
	require.Len(t, buf, PageSize)

	n, err := c.Decode(buf)
	require.NoError(t, err)
	got, ok := n.(*LeafPage[int64, int64])
	require.True(t, ok, "expected leaf, got %T", n)
	assert.Equal(t, leaf, got)
}

func TestCodec_LeafLayout(t *testing.T) {
	c := newTestCodec(t)
	leaf := &LeafPage[int64, int64]{
		Keys:     []int64{10},
		Values:   [][]int64{{100, 101}},
		NextLeaf: 3,
	}
	buf, err := c.Encode(leaf)
	require.NoError(t, err)

	assert.Equal(t, byte(NodeLeaf), buf[0])
	assert.Equal(t, uint32(3), binary.LittleEndian.Uint32(buf[1:5]))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(buf[5:9]))
	assert.Equal(t, uint64(10), binary.LittleEndian.Uint64(buf[9:17]))
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(buf[17:21]))
	assert.Equal(t, uint64(100), binary.LittleEndian.Uint64(buf[21:29]))
	assert.Equal(t, uint64(101), binary.LittleEndian.Uint64(buf[29:37]))
	assert.Equal(t, 37, c.EncodedSize(leaf))
	for _, b := range buf[37:] {
		if b != 0 {
			t.Fatalf("expected zero padding after payload")
		}
	}
}

func TestCodec_InternalRoundTrip(t *testing.T) {
	c := newTestCodec(t)
	node := &InternalPage[int64]{
		Keys:     []int64{30, 50},
		Children: []PageNo{1, 2, 4},
	}

	buf, err := c.Encode(node)
	require.NoError(t, err)

	assert.Equal(t, byte(NodeInternal), buf[0])
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(buf[1:5]))
	// keys then children
	assert.Equal(t, uint64(30), binary.LittleEndian.Uint64(buf[5:13]))
	assert.Equal(t, uint64(50), binary.LittleEndian.Uint64(buf[13:21]))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(buf[21:25]))
	assert.Equal(t, uint32(4), binary.LittleEndian.Uint32(buf[29:33]))

	n, err := c.Decode(buf)
	require.NoError(t, err)
	got, ok := n.(*InternalPage[int64])
	require.True(t, ok, "expected internal, got %T", n)
	assert.Equal(t, node, got)
}

func TestCodec_StringValues(t *testing.T) {
	c, err := NewCodec[int64, string](storage.Int64{}, storage.NewFixedString(16))
	require.NoError(t, err)

	leaf := &LeafPage[int64, string]{
		Keys:   []int64{-5, 0, 9},
		Values: [][]string{{"minus five"}, {"zero", "nil"}, {"nine"}},
	}
	buf, err := c.Encode(leaf)
	require.NoError(t, err)

	n, err := c.Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, leaf, n)
}

func TestCodec_EncodeOverflow(t *testing.T) {
	c := newTestCodec(t)

	// 9 + n*(8+4+8) > 4096 once n >= 205
	leaf := &LeafPage[int64, int64]{}
	for i := int64(0); i < 205; i++ {
		leaf.Keys = append(leaf.Keys, i)
		leaf.Values = append(leaf.Values, []int64{i})
	}
	require.Greater(t, c.EncodedSize(leaf), PageSize)
	_, err := c.Encode(leaf)
	assert.True(t, errors.Is(err, ErrPageOverflow), "got %v", err)

	// one key with too many duplicates
	dup := &LeafPage[int64, int64]{Keys: []int64{1}, Values: [][]int64{make([]int64, 600)}}
	_, err = c.Encode(dup)
	assert.True(t, errors.Is(err, ErrPageOverflow), "got %v", err)

	internal := &InternalPage[int64]{}
	for i := 0; i < 400; i++ {
		internal.Keys = append(internal.Keys, int64(i))
		internal.Children = append(internal.Children, PageNo(i+1))
	}
	internal.Children = append(internal.Children, 401)
	_, err = c.Encode(internal)
	assert.True(t, errors.Is(err, ErrPageOverflow), "got %v", err)
}

func TestCodec_EncodeExactFit(t *testing.T) {
	c := newTestCodec(t)

	// 9 + 204*20 = 4089, then 7 spare bytes
	leaf := &LeafPage[int64, int64]{}
	for i := int64(0); i < 204; i++ {
		leaf.Keys = append(leaf.Keys, i)
		leaf.Values = append(leaf.Values, []int64{i})
	}
	buf, err := c.Encode(leaf)
	require.NoError(t, err)

	n, err := c.Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, 204, n.KeyCount())
}

func TestCodec_EncodeMalformed(t *testing.T) {
	c := newTestCodec(t)

	_, err := c.Encode(&LeafPage[int64, int64]{Keys: []int64{1, 2}, Values: [][]int64{{1}}})
	assert.True(t, errors.Is(err, ErrMalformedNode))

	_, err = c.Encode(&LeafPage[int64, int64]{Keys: []int64{1}, Values: [][]int64{{}}})
	assert.True(t, errors.Is(err, ErrMalformedNode))

	_, err = c.Encode(&InternalPage[int64]{Keys: []int64{1}, Children: []PageNo{1}})
	assert.True(t, errors.Is(err, ErrMalformedNode))
}

func TestCodec_DecodeRejectsBadTags(t *testing.T) {
	c := newTestCodec(t)
	buf := make([]byte, PageSize)

	for _, tag := range []byte{0, 3, 0xff} {
		buf[0] = tag
		_, err := c.Decode(buf)
		assert.True(t, errors.Is(err, ErrInvalidTag), "tag %d: got %v", tag, err)
	}

	_, err := c.Decode(nil)
	assert.True(t, errors.Is(err, ErrCorruptPage))
}

func TestCodec_DecodeBoundsChecks(t *testing.T) {
	c := newTestCodec(t)

	good, err := c.Encode(&LeafPage[int64, int64]{Keys: []int64{1, 2}, Values: [][]int64{{10}, {20}}})
	require.NoError(t, err)

	// every prefix shorter than the payload must fail cleanly
	size := LeafHeaderSize + 2*(8+4+8)
	for cut := 1; cut < size; cut++ {
		_, err := c.Decode(good[:cut])
		assert.True(t, errors.Is(err, ErrCorruptPage), "cut %d: got %v", cut, err)
	}

	huge := append([]byte(nil), good...)
	binary.LittleEndian.PutUint32(huge[5:9], 1<<31)
	_, err = c.Decode(huge)
	assert.True(t, errors.Is(err, ErrCorruptPage))

	zeroVals := append([]byte(nil), good...)
	binary.LittleEndian.PutUint32(zeroVals[17:21], 0)
	_, err = c.Decode(zeroVals)
	assert.True(t, errors.Is(err, ErrCorruptPage))

	manyVals := append([]byte(nil), good...)
	binary.LittleEndian.PutUint32(manyVals[17:21], 1<<20)
	_, err = c.Decode(manyVals)
	assert.True(t, errors.Is(err, ErrCorruptPage))

	internal := make([]byte, PageSize)
	internal[0] = byte(NodeInternal)
	binary.LittleEndian.PutUint32(internal[1:5], 1000)
	_, err = c.Decode(internal)
	assert.True(t, errors.Is(err, ErrCorruptPage))

	// a child pointing at the superblock page
	nullChild, err := c.Encode(&InternalPage[int64]{Keys: []int64{5}, Children: []PageNo{1, 2}})
	require.NoError(t, err)
	binary.LittleEndian.PutUint32(nullChild[13:17], 0)
	_, err = c.Decode(nullChild)
	assert.True(t, errors.Is(err, ErrCorruptPage))
}

func TestNewCodec_RejectsZeroWidth(t *testing.T) {
	_, err := NewCodec[int64, string](storage.Int64{}, storage.NewFixedString(0))
	assert.True(t, errors.Is(err, ErrBadWidth))
}

func TestLeafPage_InsertAndSplit(t *testing.T) {
	leaf := NewLeafPage[int64, int64](4)
	leaf.InsertAt(0, 30, 300)
	leaf.InsertAt(0, 10, 100)
	leaf.InsertAt(1, 20, 200)
	leaf.AppendValue(1, 201)
	leaf.InsertAt(3, 40, 400)
	leaf.NextLeaf = 9

	assert.Equal(t, []int64{10, 20, 30, 40}, leaf.Keys)
	assert.Equal(t, [][]int64{{100}, {200, 201}, {300}, {400}}, leaf.Values)

	right := leaf.Split(5)
	assert.Equal(t, []int64{10, 20}, leaf.Keys)
	assert.Equal(t, [][]int64{{100}, {200, 201}}, leaf.Values)
	assert.Equal(t, PageNo(5), leaf.NextLeaf)
	assert.Equal(t, []int64{30, 40}, right.Keys)
	assert.Equal(t, [][]int64{{300}, {400}}, right.Values)
	assert.Equal(t, PageNo(9), right.NextLeaf)

	// halves must not share backing arrays
	leaf.InsertAt(2, 25, 250)
	assert.Equal(t, []int64{30, 40}, right.Keys)
}

func TestInternalPage_InsertAndSplit(t *testing.T) {
	node := NewInternalPage[int64](4)
	node.Children = append(node.Children, 1)
	node.InsertChild(0, 20, 2)
	node.InsertChild(1, 40, 4)
	node.InsertChild(1, 30, 3)
	node.InsertChild(3, 50, 5)

	assert.Equal(t, []int64{20, 30, 40, 50}, node.Keys)
	assert.Equal(t, []PageNo{1, 2, 3, 4, 5}, node.Children)

	promoted, right := node.Split()
	assert.Equal(t, int64(40), promoted)
	assert.Equal(t, []int64{20, 30}, node.Keys)
	assert.Equal(t, []PageNo{1, 2, 3}, node.Children)
	assert.Equal(t, []int64{50}, right.Keys)
	assert.Equal(t, []PageNo{4, 5}, right.Children)
}

func TestNodeType_String(t *testing.T) {
	assert.Equal(t, "leaf", NodeLeaf.String())
	assert.Equal(t, "internal", NodeInternal.String())
	assert.Equal(t, "invalid", NodeInvalid.String())
	assert.Equal(t, "unknown(7)", NodeType(7).String())
}
