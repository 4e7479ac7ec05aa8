package btree

import (
	"io"
	"log/slog"

	"github.com/pkg/errors"

	"pagetree/internal/page"
)

// DefaultOrder is the order used when a new tree is created without one.
// Internal nodes hold at most DefaultOrder children, leaves at most
// DefaultOrder-1 keys.
const DefaultOrder = 4

// MinOrder is the smallest order that still splits into two non-empty halves.
const MinOrder = 3

var (
	ErrInvalidOrder   = errors.New("btree: order must be at least 3")
	ErrOrderTooLarge  = errors.New("btree: order does not fit a page")
	ErrConfigMismatch = errors.New("btree: file was created with different parameters")
)

// Config controls how a tree is opened.
type Config struct {
	// Order is the maximum number of children of an internal node.
	// Zero means DefaultOrder for a new file and the stored order for an
	// existing one.
	Order int
	// SyncOnWrite flushes the medium after every page write. Without it
	// data is durable only after Sync or Close.
	SyncOnWrite bool
	// Truncate discards an existing file in OpenFile.
	Truncate bool
	Logger   *slog.Logger
	Recorder StepRecorder
}

func DefaultConfig() Config {
	return Config{Order: DefaultOrder}
}

func (c Config) withDefaults() Config {
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if c.Recorder == nil {
		c.Recorder = NewNoOpRecorder()
	}
	return c
}

// ValidateOrder checks that order is usable with the given key and value
// widths: a full internal node (order children) and a full leaf (order-1
// keys with one value each) must both fit in one page.
func ValidateOrder(order, keyWidth, valueWidth int) error {
	if order < MinOrder {
		return errors.Wrapf(ErrInvalidOrder, "got %d", order)
	}
	internal := page.InternalHeaderSize + (order-1)*keyWidth + order*page.PageNoSize
	if internal > page.PageSize {
		return errors.Wrapf(ErrOrderTooLarge, "order %d internal node needs %d bytes", order, internal)
	}
	leaf := page.LeafHeaderSize + (order-1)*(keyWidth+page.CountSize+valueWidth)
	if leaf > page.PageSize {
		return errors.Wrapf(ErrOrderTooLarge, "order %d leaf needs %d bytes", order, leaf)
	}
	return nil
}

// MaxOrder returns the largest order ValidateOrder accepts for the widths.
func MaxOrder(keyWidth, valueWidth int) int {
	// internal: 5 + (o-1)*kw + o*4 <= 4096
	byInternal := (page.PageSize - page.InternalHeaderSize + keyWidth) / (keyWidth + page.PageNoSize)
	// leaf: 9 + (o-1)*(kw+4+vw) <= 4096
	byLeaf := (page.PageSize-page.LeafHeaderSize)/(keyWidth+page.CountSize+valueWidth) + 1
	return min(byInternal, byLeaf)
}
