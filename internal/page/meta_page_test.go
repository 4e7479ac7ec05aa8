package page

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetaPage_WriteToBuffer(t *testing.T) {
	meta := &MetaPage{
		Version:    MetaVersion,
		PageSize:   PageSize,
		Order:      4,
		KeyWidth:   8,
		ValueWidth: 16,
		RootPage:   2,
		NextFree:   5,
	}

	buf := &bytes.Buffer{}
	if err := meta.WriteToBuffer(buf); err != nil {
		t.Fatalf("Failed to write MetaPage to buffer: %v", err)
	}
	if buf.Len() != MetaSize {
		t.Fatalf("Expected %d bytes, got %d", MetaSize, buf.Len())
	}

	raw := buf.Bytes()
	assert.Equal(t, MetaMagic, string(raw[:8]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(raw[8:10]))
	assert.Equal(t, uint32(PageSize), binary.LittleEndian.Uint32(raw[10:14]))
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(raw[26:30]))
	assert.Equal(t, uint32(5), binary.LittleEndian.Uint32(raw[30:34]))
}

func TestMetaPage_RoundTrip(t *testing.T) {
	meta := &MetaPage{
		Version:    MetaVersion,
		PageSize:   PageSize,
		Order:      64,
		KeyWidth:   8,
		ValueWidth: 8,
		RootPage:   17,
		NextFree:   42,
	}
	buf, err := EncodeMeta(meta)
	require.NoError(t, err)
	require.Len(t, buf, PageSize)

	got, err := DecodeMeta(buf)
	require.NoError(t, err)
	assert.Equal(t, meta, got)
}

func TestMetaPage_Rejects(t *testing.T) {
	_, err := DecodeMeta(make([]byte, PageSize))
	assert.True(t, errors.Is(err, ErrBadMagic), "got %v", err)

	buf, err := EncodeMeta(&MetaPage{Version: MetaVersion, PageSize: PageSize})
	require.NoError(t, err)

	// a node page is not a superblock
	node := append([]byte(nil), buf...)
	node[0] = byte(NodeLeaf)
	_, err = DecodeMeta(node)
	assert.True(t, errors.Is(err, ErrBadMagic))

	future := append([]byte(nil), buf...)
	binary.LittleEndian.PutUint16(future[8:10], 9)
	_, err = DecodeMeta(future)
	assert.True(t, errors.Is(err, ErrUnsupportedVersion))

	_, err = DecodeMeta(buf[:20])
	assert.True(t, errors.Is(err, ErrCorruptPage))
}
