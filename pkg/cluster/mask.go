package cluster

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Group masks use a small glob grammar: '*' matches any run of characters,
// including an empty one and '.', and '?' matches exactly one character
// (one UTF-8 code point, not one byte). Everything else is literal.

// ValidateMask checks that mask is non-empty and uses only supported syntax.
func ValidateMask(mask string) error {
	if mask == "" {
		return fmt.Errorf("group mask is empty")
	}
	if !utf8.ValidString(mask) {
		return fmt.Errorf("group mask is not valid UTF-8")
	}
	if i := strings.IndexAny(mask, `[]\`); i >= 0 {
		return fmt.Errorf("unsupported character %q at offset %d", mask[i], i)
	}
	return nil
}

// MatchMask reports whether group matches mask.
func MatchMask(maskStr, groupStr string) bool {
	mask, group := []rune(maskStr), []rune(groupStr)

	// Iterative glob with single-star backtracking.
	m, g := 0, 0
	starM, starG := -1, 0
	for g < len(group) {
		switch {
		case m < len(mask) && (mask[m] == '?' || mask[m] == group[g]):
			m++
			g++
		case m < len(mask) && mask[m] == '*':
			starM, starG = m, g
			m++
		case starM >= 0:
			m = starM + 1
			starG++
			g = starG
		default:
			return false
		}
	}
	for m < len(mask) && mask[m] == '*' {
		m++
	}
	return m == len(mask)
}

// MasksOverlap reports whether at least one group name matches both masks.
func MasksOverlap(a, b string) bool {
	o := overlap{a: []rune(a), b: []rune(b), memo: make(map[[2]int]bool), seen: make(map[[2]int]bool)}
	return o.at(0, 0)
}

type overlap struct {
	a, b []rune
	memo map[[2]int]bool
	seen map[[2]int]bool
}

func (o *overlap) at(i, j int) bool {
	k := [2]int{i, j}
	if o.seen[k] {
		return o.memo[k]
	}
	o.seen[k] = true
	r := o.step(i, j)
	o.memo[k] = r
	return r
}

func (o *overlap) step(i, j int) bool {
	if i == len(o.a) && j == len(o.b) {
		return true
	}
	if i < len(o.a) && o.a[i] == '*' {
		if o.at(i+1, j) {
			return true
		}
		// The star absorbs the next symbol of b, whatever it produces.
		if j < len(o.b) && o.at(i, j+1) {
			return true
		}
		return false
	}
	if j < len(o.b) && o.b[j] == '*' {
		if o.at(i, j+1) {
			return true
		}
		return i < len(o.a) && o.at(i+1, j)
	}
	if i == len(o.a) || j == len(o.b) {
		return false
	}
	if o.a[i] == '?' || o.b[j] == '?' || o.a[i] == o.b[j] {
		return o.at(i+1, j+1)
	}
	return false
}
