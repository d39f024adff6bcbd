// Package ordered provides lookups over sorted sequences.
//
// Callers own the sort precondition: every function here assumes its input is
// already sorted under the comparison it is given. Unsorted input yields an
// unspecified index but never panics.
package ordered

import (
	"slices"
	"strconv"
	"strings"
)

// BinarySearch returns the index of an element e of seq with cmp(target, e) == 0.
// When no such element exists it returns -(insertionIndex)-1, where
// insertionIndex is the position at which target would keep seq sorted.
//
// cmp must be a strict total order consistent with the order of seq.
func BinarySearch[T any](seq []T, target T, cmp func(target, elem T) int) int {
	idx, found := slices.BinarySearchFunc(seq, target, func(elem, t T) int {
		return -cmp(t, elem)
	})
	if found {
		return idx
	}
	return -idx - 1
}

// InsertionPoint decodes a negative BinarySearch result. ok is false when
// result denotes a match.
func InsertionPoint(result int) (index int, ok bool) {
	if result >= 0 {
		return result, false
	}
	return -result - 1, true
}

// LessThanIndex searches timestamps, a sequence of decimal integer strings, for
// an entry equal to target by recursive halving and returns its index, or -1
// once the search interval is empty.
//
// The halving direction is inverted compared to BinarySearch: when the middle
// value is below target the search continues in the lower half, otherwise in
// the upper half. That makes it a regular binary search over timestamps sorted
// in descending order, while on ascending input most present values are
// missed. Existing callers depend on this, so it is kept as is even though it
// looks like a defect. Entries that do not parse never match and steer the
// search into the upper half.
func LessThanIndex(timestamps []string, target int64) int {
	return lessThanIndex(timestamps, target, 0, len(timestamps)-1)
}

func lessThanIndex(timestamps []string, target int64, start, end int) int {
	if start > end {
		return -1
	}
	mid := start + (end-start)/2
	value, err := strconv.ParseInt(strings.TrimSpace(timestamps[mid]), 10, 64)
	if err == nil && value == target {
		return mid
	}
	if err == nil && value < target {
		return lessThanIndex(timestamps, target, start, mid-1)
	}
	return lessThanIndex(timestamps, target, mid+1, end)
}
