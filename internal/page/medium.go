package page

import (
	"io"
	"os"

	"github.com/pkg/errors"
)

var (
	ErrBadBufferSize = errors.New("page: buffer is not exactly one page")
	ErrPageNotFound  = errors.New("page: page beyond end of medium")
	ErrClosed        = errors.New("page: medium is closed")
)

// Medium is a random-access store of PageSize pages. Page n lives at byte
// offset n*PageSize. Implementations are not safe for concurrent use.
type Medium interface {
	ReadPage(no PageNo, buf []byte) error
	WritePage(no PageNo, buf []byte) error
	Sync() error
	// PageCount is the number of pages the medium currently spans,
	// counting a trailing partial page as a whole one.
	PageCount() (PageNo, error)
	Close() error
}

// -----------------------------
// File-backed medium
// -----------------------------

// FileMedium stores pages in a single os.File.
type FileMedium struct {
	f    *os.File
	path string
}

// OpenFile opens or creates the file at path. truncate discards any
// existing contents.
func OpenFile(path string, truncate bool) (*FileMedium, error) {
	flags := os.O_RDWR | os.O_CREATE
	if truncate {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o666)
	if err != nil {
		return nil, errors.Wrapf(err, "open page file %s", path)
	}
	return &FileMedium{f: f, path: path}, nil
}

func (m *FileMedium) Path() string { return m.path }

func (m *FileMedium) ReadPage(no PageNo, buf []byte) error {
	if m.f == nil {
		return ErrClosed
	}
	if len(buf) != PageSize {
		return errors.Wrapf(ErrBadBufferSize, "read page %d with %d bytes", no, len(buf))
	}
	n, err := m.f.ReadAt(buf, int64(no)*PageSize)
	if err == io.EOF {
		if n == 0 {
			return errors.Wrapf(ErrPageNotFound, "page %d", no)
		}
		// torn trailing page: the unwritten tail reads as zeros
		clear(buf[n:])
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "read page %d", no)
	}
	return nil
}

func (m *FileMedium) WritePage(no PageNo, buf []byte) error {
	if m.f == nil {
		return ErrClosed
	}
	if len(buf) != PageSize {
		return errors.Wrapf(ErrBadBufferSize, "write page %d with %d bytes", no, len(buf))
	}
	if _, err := m.f.WriteAt(buf, int64(no)*PageSize); err != nil {
		return errors.Wrapf(err, "write page %d", no)
	}
	return nil
}

func (m *FileMedium) Sync() error {
	if m.f == nil {
		return ErrClosed
	}
	return errors.Wrap(m.f.Sync(), "sync page file")
}

func (m *FileMedium) PageCount() (PageNo, error) {
	if m.f == nil {
		return 0, ErrClosed
	}
	fi, err := m.f.Stat()
	if err != nil {
		return 0, errors.Wrap(err, "stat page file")
	}
	return PageNo((fi.Size() + PageSize - 1) / PageSize), nil
}

func (m *FileMedium) Close() error {
	if m.f == nil {
		return nil
	}
	err := m.f.Close()
	m.f = nil
	return errors.Wrap(err, "close page file")
}

// -----------------------------
// In-memory medium
// -----------------------------

// MemMedium keeps pages in memory. Pages below PageCount that were never
// written read back as zeros, like holes in a sparse file.
type MemMedium struct {
	pages map[PageNo][]byte
	count PageNo
}

func NewMemMedium() *MemMedium {
	return &MemMedium{pages: make(map[PageNo][]byte)}
}

func (m *MemMedium) ReadPage(no PageNo, buf []byte) error {
	if len(buf) != PageSize {
		return errors.Wrapf(ErrBadBufferSize, "read page %d with %d bytes", no, len(buf))
	}
	if no >= m.count {
		return errors.Wrapf(ErrPageNotFound, "page %d", no)
	}
	if p, ok := m.pages[no]; ok {
		copy(buf, p)
	} else {
		clear(buf)
	}
	return nil
}

func (m *MemMedium) WritePage(no PageNo, buf []byte) error {
	if len(buf) != PageSize {
		return errors.Wrapf(ErrBadBufferSize, "write page %d with %d bytes", no, len(buf))
	}
	m.pages[no] = append([]byte(nil), buf...)
	if no >= m.count {
		m.count = no + 1
	}
	return nil
}

func (m *MemMedium) Sync() error                { return nil }
func (m *MemMedium) PageCount() (PageNo, error) { return m.count, nil }
func (m *MemMedium) Close() error               { return nil }
