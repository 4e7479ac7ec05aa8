package btree

// binarySearchFirstGreaterOrEqual finds the index of the first key that is
// >= target and whether that key equals target. Leaves use it both to find
// an existing key and to find the insert position for a new one.
//
// Return: int - index of first key >= target, or len(keys) if all keys < target
func binarySearchFirstGreaterOrEqual[K any](keys []K, target K, compare func(a, b K) int) (int, bool) {
	left, right := 0, len(keys)-1
	pos := len(keys) // Default: all keys are less than target

	for left <= right {
		mid := (left + right) / 2
		if compare(keys[mid], target) >= 0 {
			pos = mid
			right = mid - 1 // Continue searching left for first position
		} else {
			left = mid + 1 // Search right
		}
	}

	return pos, pos < len(keys) && compare(keys[pos], target) == 0
}

// binarySearchFirstGreater finds the index of the first key that is > target.
// In an internal node this is the index of the child to follow: keys equal
// to a separator route right.
//
// Return: int - index of first key > target, or len(keys) if none
func binarySearchFirstGreater[K any](keys []K, target K, compare func(a, b K) int) int {
	left, right := 0, len(keys)-1
	pos := len(keys)

	for left <= right {
		mid := (left + right) / 2
		if compare(keys[mid], target) > 0 {
			pos = mid
			right = mid - 1
		} else {
			left = mid + 1
		}
	}

	return pos
}
