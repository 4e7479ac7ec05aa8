package btree_test

import (
	"fmt"
	"os"

	"pagetree/internal/btree"
	"pagetree/internal/page"
	"pagetree/internal/storage"
)

// Example: a small in-memory tree with duplicate keys
func ExampleBPlusTree_Insert() {
	tree, err := btree.Open[int64, string](page.NewMemMedium(), btree.DefaultConfig(), storage.Int64{}, storage.NewFixedString(16))
	if err != nil {
		fmt.Println(err)
		return
	}
	defer tree.Close()

	for _, k := range []int64{30, 10, 40, 20} {
		_ = tree.Insert(k, fmt.Sprintf("row-%d", k))
	}
	_ = tree.Insert(10, "row-10b")

	vals, ok, _ := tree.Get(10)
	fmt.Println("Get(10):", vals, ok)

	_ = tree.Scan(15, 35, func(k int64, v []string) bool {
		fmt.Println("Scan:", k, v)
		return true
	})

	// Output:
	// Get(10): [row-10 row-10b] true
	// Scan: 20 [row-20]
	// Scan: 30 [row-30]
}

// Example: level-order dump after the first split
func ExampleBPlusTree_Dump() {
	tree, _ := btree.Open[int64, int64](page.NewMemMedium(), btree.Config{Order: 3}, storage.Int64{}, storage.Int64{})
	defer tree.Close()

	for _, k := range []int64{1, 2, 3} {
		_ = tree.Insert(k, k*100)
	}
	_ = tree.Dump(os.Stdout)

	// Output:
	// Level 0:
	//   Internal[3] keys=[2] children=[1 2]
	//
	// Level 1:
	//   Leaf[1] keys=[1] vals=[[100]] next=2
	//   Leaf[2] keys=[2 3] vals=[[200] [300]] next=0
}
