package page

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

const (
	// MetaMagic identifies a pagetree file.
	MetaMagic = "PGTREE01"
	// MetaVersion is the superblock layout version written by this package.
	MetaVersion uint16 = 1
	// MetaSize is the number of meaningful bytes at the start of page 0.
	MetaSize = len(MetaMagic) + 2 + 4*6
)

var (
	ErrBadMagic           = errors.New("page: bad superblock magic")
	ErrUnsupportedVersion = errors.New("page: unsupported superblock version")
)

// MetaPage is the superblock stored at page 0. It records the tree shape
// parameters needed to reopen a file and the two pieces of mutable tree
// state: the root page and the allocator cursor.
type MetaPage struct {
	Version    uint16
	PageSize   uint32
	Order      uint32
	KeyWidth   uint32
	ValueWidth uint32
	RootPage   PageNo
	NextFree   PageNo
}

// WriteToBuffer serializes the superblock fields in order, little-endian:
// magic, version, page_size, order, key_width, value_width, root_page,
// next_free_page.
func (m *MetaPage) WriteToBuffer(buf *bytes.Buffer) error {
	if _, err := buf.WriteString(MetaMagic); err != nil {
		return err
	}
	fields := []any{
		m.Version,
		m.PageSize,
		m.Order,
		m.KeyWidth,
		m.ValueWidth,
		uint32(m.RootPage),
		uint32(m.NextFree),
	}
	for _, f := range fields {
		if err := binary.Write(buf, binary.LittleEndian, f); err != nil {
			return err
		}
	}
	return nil
}

// ReadFromBuffer parses a superblock, rejecting a wrong magic or version.
func (m *MetaPage) ReadFromBuffer(r *bytes.Reader) error {
	magic := make([]byte, len(MetaMagic))
	if _, err := r.Read(magic); err != nil || string(magic) != MetaMagic {
		return errors.Wrapf(ErrBadMagic, "found %q", magic)
	}

	var root, next uint32
	fields := []any{
		&m.Version,
		&m.PageSize,
		&m.Order,
		&m.KeyWidth,
		&m.ValueWidth,
		&root,
		&next,
	}
	for _, f := range fields {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return errors.Wrap(ErrCorruptPage, "superblock truncated")
		}
	}
	if m.Version != MetaVersion {
		return errors.Wrapf(ErrUnsupportedVersion, "version %d", m.Version)
	}
	m.RootPage = PageNo(root)
	m.NextFree = PageNo(next)
	return nil
}

// EncodeMeta renders m into a zero-padded PageSize buffer.
func EncodeMeta(m *MetaPage) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(PageSize)
	if err := m.WriteToBuffer(&buf); err != nil {
		return nil, errors.Wrap(err, "encode superblock")
	}
	out := make([]byte, PageSize)
	copy(out, buf.Bytes())
	return out, nil
}

// DecodeMeta parses the superblock at the start of buf.
func DecodeMeta(buf []byte) (*MetaPage, error) {
	m := &MetaPage{}
	if err := m.ReadFromBuffer(bytes.NewReader(buf)); err != nil {
		return nil, err
	}
	return m, nil
}
