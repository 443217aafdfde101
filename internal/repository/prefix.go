package repository

import "unicode/utf8"

// PrefixUpperBound returns the smallest string that sorts after every string
// starting with prefix under code-point order, so that the half-open range
// [prefix, bound) selects exactly the strings with that prefix. ok is false
// when no such bound exists (prefix is empty or consists of U+10FFFF only)
// and the range is open-ended.
func PrefixUpperBound(prefix string) (bound string, ok bool) {
	runes := []rune(prefix)
	for n := len(runes); n > 0; n-- {
		last := runes[n-1]
		if last == utf8.MaxRune {
			continue
		}
		next := last + 1
		if next >= 0xD800 && next <= 0xDFFF {
			next = 0xE000
		}
		runes[n-1] = next
		return string(runes[:n]), true
	}
	return "", false
}
