package btree

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagetree/internal/page"
	"pagetree/internal/storage"
)

// crashWorkload returns a shuffled key sequence with some repeats, so that
// the run covers leaf splits, internal splits, root growth and appends.
func crashWorkload() []int64 {
	rng := rand.New(rand.NewSource(7))
	keys := rng.Perm(80)
	out := make([]int64, 0, len(keys)+10)
	for i, k := range keys {
		out = append(out, int64(k))
		if i%8 == 0 {
			out = append(out, int64(keys[i/2]))
		}
	}
	return out
}

// runUntilCrash inserts the workload through a medium that dies after
// failAfter writes. It returns the keys whose Insert returned nil, the key
// that was in flight when the fault hit, and whether a fault happened.
func runUntilCrash(t *testing.T, inner page.Medium, failAfter int, workload []int64) (done []int64, inflight *int64, crashed bool) {
	t.Helper()
	faulty := page.NewFaultyMedium(inner, failAfter)

	tree, err := Open[int64, int64](faulty, Config{Order: 4}, storage.Int64{}, storage.Int64{})
	if err != nil {
		require.True(t, errors.Is(err, page.ErrInjectedFault), "open: %v", err)
		return nil, nil, true
	}

	for i, k := range workload {
		if err := tree.Insert(k, int64(i)); err != nil {
			require.True(t, errors.Is(err, page.ErrInjectedFault), "insert %d: %v", k, err)
			k := k
			return done, &k, true
		}
		done = append(done, k)
	}
	require.False(t, faulty.Tripped())
	return done, nil, false
}

// checkRecovered reopens inner and checks that a full scan from the
// leftmost leaf sees every completed key, in strictly increasing order,
// and nothing else besides the in-flight key.
func checkRecovered(t *testing.T, inner page.Medium, failAfter int, done []int64, inflight *int64) {
	t.Helper()
	tree, err := Open[int64, int64](inner, Config{Order: 4}, storage.Int64{}, storage.Int64{})
	require.NoError(t, err, "reopen after %d writes", failAfter)

	want := make(map[int64]bool)
	for _, k := range done {
		want[k] = true
	}

	var keys []int64
	require.NoError(t, tree.ScanAll(func(k int64, _ []int64) bool {
		keys = append(keys, k)
		return true
	}), "scan after %d writes", failAfter)

	for i := 1; i < len(keys); i++ {
		require.Less(t, keys[i-1], keys[i], "scan after %d writes not strictly increasing", failAfter)
	}
	got := make(map[int64]bool)
	for _, k := range keys {
		got[k] = true
		if !want[k] {
			require.NotNil(t, inflight, "after %d writes: unexpected key %d", failAfter, k)
			require.Equal(t, *inflight, k, "after %d writes: unexpected key %d", failAfter, k)
		}
	}
	for k := range want {
		require.True(t, got[k], "after %d writes: completed key %d lost", failAfter, k)
	}

	// the allocator never hands out a page that is already on the medium
	count, err := inner.PageCount()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, tree.pager.Next, count)
}

func TestCrashAfterEveryWrite(t *testing.T) {
	workload := crashWorkload()

	for failAfter := 0; ; failAfter++ {
		inner := page.NewMemMedium()
		done, inflight, crashed := runUntilCrash(t, inner, failAfter, workload)
		checkRecovered(t, inner, failAfter, done, inflight)
		if !crashed {
			require.Len(t, done, len(workload))
			break
		}
		require.Less(t, failAfter, 10000, "workload never completed")
	}
}

func TestCrashOnFileMedium(t *testing.T) {
	workload := crashWorkload()

	for _, failAfter := range []int{1, 5, 17, 40, 63, 100} {
		path := filepath.Join(t.TempDir(), "crash.db")
		file, err := page.OpenFile(path, true)
		require.NoError(t, err)

		done, inflight, _ := runUntilCrash(t, file, failAfter, workload)
		require.NoError(t, file.Close())

		file, err = page.OpenFile(path, false)
		require.NoError(t, err)
		checkRecovered(t, file, failAfter, done, inflight)
		require.NoError(t, file.Close())
	}
}

func TestCrashDuringFirstSplit(t *testing.T) {
	// format: 1 write; inserts 10, 20, 30: 1 leaf write each plus one
	// superblock write for the first. The fourth insert splits and writes
	// right leaf, left leaf, new root, superblock.
	for extra := 0; extra < 4; extra++ {
		inner := page.NewMemMedium()
		failAfter := 1 + 2 + 1 + 1 + extra
		done, inflight, crashed := runUntilCrash(t, inner, failAfter, []int64{10, 20, 30, 40})
		require.True(t, crashed)
		require.Equal(t, []int64{10, 20, 30}, done)
		require.NotNil(t, inflight)
		require.Equal(t, int64(40), *inflight)

		checkRecovered(t, inner, failAfter, done, inflight)

		tree, err := Open[int64, int64](inner, Config{Order: 4}, storage.Int64{}, storage.Int64{})
		require.NoError(t, err)
		// the root changes only once the superblock lands
		assert.Equal(t, page.PageNo(1), tree.RootPage())
	}
}
