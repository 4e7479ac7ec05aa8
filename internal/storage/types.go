package storage

import (
	"bytes"
	"cmp"
	"encoding/binary"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrShortBuffer is returned when a buffer is smaller than the codec width.
	ErrShortBuffer = errors.New("storage: buffer shorter than codec width")
	// ErrTooWide is returned when a value does not fit the fixed width.
	ErrTooWide = errors.New("storage: value exceeds fixed width")
)

// Codec converts values of type T to and from a fixed number of bytes.
// Every encoded value occupies exactly Width() bytes on a page.
type Codec[T any] interface {
	Width() int
	Encode(dst []byte, v T) error
	Decode(src []byte) (T, error)
}

// KeyCodec is a Codec whose values are totally ordered.
// Compare returns -1, 0 or +1.
type KeyCodec[K any] interface {
	Codec[K]
	Compare(a, b K) int
}

// -----------------------------
// Integer codecs (little-endian)
// -----------------------------

// Int64 encodes signed 64-bit integers.
type Int64 struct{}

func (Int64) Width() int { return 8 }

func (c Int64) Encode(dst []byte, v int64) error {
	if len(dst) < c.Width() {
		return errors.Wrapf(ErrShortBuffer, "int64 encode: have %d bytes", len(dst))
	}
	binary.LittleEndian.PutUint64(dst, uint64(v))
	return nil
}

func (c Int64) Decode(src []byte) (int64, error) {
	if len(src) < c.Width() {
		return 0, errors.Wrapf(ErrShortBuffer, "int64 decode: have %d bytes", len(src))
	}
	return int64(binary.LittleEndian.Uint64(src)), nil
}

func (Int64) Compare(a, b int64) int { return cmp.Compare(a, b) }

// Int32 encodes signed 32-bit integers.
type Int32 struct{}

func (Int32) Width() int { return 4 }

func (c Int32) Encode(dst []byte, v int32) error {
	if len(dst) < c.Width() {
		return errors.Wrapf(ErrShortBuffer, "int32 encode: have %d bytes", len(dst))
	}
	binary.LittleEndian.PutUint32(dst, uint32(v))
	return nil
}

func (c Int32) Decode(src []byte) (int32, error) {
	if len(src) < c.Width() {
		return 0, errors.Wrapf(ErrShortBuffer, "int32 decode: have %d bytes", len(src))
	}
	return int32(binary.LittleEndian.Uint32(src)), nil
}

func (Int32) Compare(a, b int32) int { return cmp.Compare(a, b) }

// Uint64 encodes unsigned 64-bit integers.
type Uint64 struct{}

func (Uint64) Width() int { return 8 }

func (c Uint64) Encode(dst []byte, v uint64) error {
	if len(dst) < c.Width() {
		return errors.Wrapf(ErrShortBuffer, "uint64 encode: have %d bytes", len(dst))
	}
	binary.LittleEndian.PutUint64(dst, v)
	return nil
}

func (c Uint64) Decode(src []byte) (uint64, error) {
	if len(src) < c.Width() {
		return 0, errors.Wrapf(ErrShortBuffer, "uint64 decode: have %d bytes", len(src))
	}
	return binary.LittleEndian.Uint64(src), nil
}

func (Uint64) Compare(a, b uint64) int { return cmp.Compare(a, b) }

// Uint32 encodes unsigned 32-bit integers.
type Uint32 struct{}

func (Uint32) Width() int { return 4 }

func (c Uint32) Encode(dst []byte, v uint32) error {
	if len(dst) < c.Width() {
		return errors.Wrapf(ErrShortBuffer, "uint32 encode: have %d bytes", len(dst))
	}
	binary.LittleEndian.PutUint32(dst, v)
	return nil
}

func (c Uint32) Decode(src []byte) (uint32, error) {
	if len(src) < c.Width() {
		return 0, errors.Wrapf(ErrShortBuffer, "uint32 decode: have %d bytes", len(src))
	}
	return binary.LittleEndian.Uint32(src), nil
}

func (Uint32) Compare(a, b uint32) int { return cmp.Compare(a, b) }

// -----------------------------
// Fixed-width strings
// -----------------------------

// FixedString stores strings in exactly N bytes, zero padded on the right.
// Strings containing NUL cannot be stored because padding is stripped on decode.
type FixedString struct {
	N int
}

// NewFixedString returns a FixedString codec of width n.
func NewFixedString(n int) FixedString {
	return FixedString{N: n}
}

func (c FixedString) Width() int { return c.N }

func (c FixedString) Encode(dst []byte, v string) error {
	if len(dst) < c.N {
		return errors.Wrapf(ErrShortBuffer, "string encode: have %d bytes", len(dst))
	}
	if len(v) > c.N {
		return errors.Wrapf(ErrTooWide, "string of %d bytes into width %d", len(v), c.N)
	}
	if strings.IndexByte(v, 0) >= 0 {
		return errors.Wrapf(ErrTooWide, "string %q contains NUL", v)
	}
	n := copy(dst[:c.N], v)
	clear(dst[n:c.N])
	return nil
}

func (c FixedString) Decode(src []byte) (string, error) {
	if len(src) < c.N {
		return "", errors.Wrapf(ErrShortBuffer, "string decode: have %d bytes", len(src))
	}
	b := src[:c.N]
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b), nil
}

// Compare orders strings byte-wise, which matches the order of their
// zero-padded encodings.
func (FixedString) Compare(a, b string) int { return strings.Compare(a, b) }
