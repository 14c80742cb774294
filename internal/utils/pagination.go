// Package utils holds small helpers for reading paging parameters of the
// admin listings (staff inbox and conversation history).
package utils

import "strconv"

// AtoiDefault parses s, returning def when s is empty or not an integer.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// ClampPage normalizes a 1-based page and a page size: page < 1 becomes 1,
// size < 1 becomes def and size is capped at max (def when max <= 0).
func ClampPage(page, size, def, max int) (int, int) {
	if page < 1 {
		page = 1
	}
	if max <= 0 {
		max = def
	}
	if size < 1 {
		size = def
	}
	if size > max {
		size = max
	}
	return page, size
}
