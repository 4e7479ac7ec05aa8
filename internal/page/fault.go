package page

import "github.com/pkg/errors"

// ErrInjectedFault is returned by FaultyMedium once its write budget is spent.
var ErrInjectedFault = errors.New("page: injected fault")

// FaultyMedium wraps a Medium and simulates the process being killed
// after a fixed number of page writes: the first failAfter writes reach
// the inner medium, every later write and sync fails and reaches nothing.
// Reads are passed through so the state at the moment of the kill can be
// inspected by reopening the inner medium.
type FaultyMedium struct {
	inner     Medium
	failAfter int
	writes    int
	tripped   bool
}

func NewFaultyMedium(inner Medium, failAfter int) *FaultyMedium {
	return &FaultyMedium{inner: inner, failAfter: failAfter}
}

func (f *FaultyMedium) ReadPage(no PageNo, buf []byte) error {
	return f.inner.ReadPage(no, buf)
}

func (f *FaultyMedium) WritePage(no PageNo, buf []byte) error {
	if f.tripped || f.writes >= f.failAfter {
		f.tripped = true
		return errors.Wrapf(ErrInjectedFault, "write page %d after %d writes", no, f.writes)
	}
	if err := f.inner.WritePage(no, buf); err != nil {
		return err
	}
	f.writes++
	return nil
}

func (f *FaultyMedium) Sync() error {
	if f.tripped {
		return errors.Wrap(ErrInjectedFault, "sync")
	}
	return f.inner.Sync()
}

func (f *FaultyMedium) PageCount() (PageNo, error) { return f.inner.PageCount() }

// Close does not close the inner medium; the caller still owns it.
func (f *FaultyMedium) Close() error { return nil }

// Writes reports how many writes reached the inner medium.
func (f *FaultyMedium) Writes() int { return f.writes }

// Tripped reports whether a write has been refused.
func (f *FaultyMedium) Tripped() bool { return f.tripped }
