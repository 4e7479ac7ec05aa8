package btree

import (
	"bufio"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"pagetree/internal/page"
)

// Dump writes a level-by-level description of every reachable page to w.
// Write errors from w are returned.
func (tree *BPlusTree[K, V]) Dump(w io.Writer) error {
	if tree.closed {
		return ErrClosed
	}
	bw := bufio.NewWriter(w)
	if tree.meta.RootPage == page.InvalidPage {
		fmt.Fprintln(bw, "(empty tree)")
		return errors.Wrap(bw.Flush(), "dump")
	}

	// BFS with level separation
	queue := []page.PageNo{tree.meta.RootPage}
	level := 0
	for len(queue) > 0 {
		levelSize := len(queue)
		fmt.Fprintf(bw, "Level %d:\n", level)
		for i := 0; i < levelSize; i++ {
			id := queue[0]
			queue = queue[1:]

			n, err := tree.pager.ReadNode(id)
			if err != nil {
				fmt.Fprintf(bw, "  Page %d: <%v>\n", id, err)
				continue
			}

			switch node := n.(type) {
			case *page.InternalPage[K]:
				fmt.Fprintf(bw, "  Internal[%d] keys=%v children=%v\n", id, node.Keys, node.Children)
				queue = append(queue, node.Children...)
			case *page.LeafPage[K, V]:
				fmt.Fprintf(bw, "  Leaf[%d] keys=%v vals=%v next=%d\n", id, node.Keys, node.Values, node.NextLeaf)
			}
		}
		level++
		fmt.Fprintln(bw)
		if level > int(tree.pager.Next) {
			_ = bw.Flush()
			return errors.Wrapf(page.ErrCorruptPage, "dump: tree deeper than %d pages", tree.pager.Next)
		}
	}
	return errors.Wrap(bw.Flush(), "dump")
}
