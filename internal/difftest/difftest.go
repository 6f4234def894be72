// Package difftest is a slow, independently written reference model of
// the SQLite session extension's row-emission hash table, used only from
// tests to differentially check the builder's fast simulation
// (DiffSet's sessionRowOrder) against a second implementation of the
// same documented bucket semantics.
//
// It does not share any code with the builder's implementation: the
// builder grows buckets as plain slices and recovers emission order by
// appending on insert and reversing each bucket once at the end; this
// package instead models the reference's actual linked-list chaining
// directly (insert-at-head, walk head-to-tail), so the two
// implementations can disagree if either has a bug in the bucket-walk
// mechanics, while both must still agree on the parts that are part of
// the documented contract (the hash function and growth thresholds,
// which the caller supplies via hashes).
package difftest

// node is one link in a bucket's chain. Chains are built by insertion at
// the head, exactly as the reference's own chained hash table does, so a
// chain's head-to-tail order (following next) is already the reference's
// true emission order for that bucket — no reversal is ever needed here.
type node struct {
	idx  int
	next *node
}

// RowOrder simulates the reference hash table given the already-computed
// per-row hash values, in first-touch order, and returns the row
// emission order (indices into hashes) it would produce.
//
// Growth follows the same thresholds as the builder: the table starts at
// size 256 and doubles whenever the entry count about to be inserted is
// at least half the current size.
func RowOrder(hashes []uint32) []int {
	n := len(hashes)
	if n == 0 {
		return nil
	}

	var buckets []*node
	size := 0

	for idx := 0; idx < n; idx++ {
		if size == 0 || idx >= size/2 {
			buckets, size = rehash(buckets, size, hashes)
		}

		h := int(hashes[idx] % uint32(size))
		buckets[h] = &node{idx: idx, next: buckets[h]}
	}

	order := make([]int, 0, n)
	for _, head := range buckets {
		for cur := head; cur != nil; cur = cur.next {
			order = append(order, cur.idx)
		}
	}
	return order
}

// rehash grows the table, walking every old bucket head-to-tail (its
// true order) and re-inserting each entry at the head of its new bucket.
// Prepending entries in head-to-tail order necessarily reverses each
// bucket's relative order, matching the reference's documented behavior.
func rehash(buckets []*node, size int, hashes []uint32) ([]*node, int) {
	newSize := 256
	if size != 0 {
		newSize = size * 2
	}
	newBuckets := make([]*node, newSize)

	for _, head := range buckets {
		for cur := head; cur != nil; cur = cur.next {
			h := int(hashes[cur.idx] % uint32(newSize))
			newBuckets[h] = &node{idx: cur.idx, next: newBuckets[h]}
		}
	}

	return newBuckets, newSize
}
