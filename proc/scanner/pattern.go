// Package scanner searches a tracee's address space for literal or
// wildcard byte patterns, optionally restricted by region permissions.
package scanner

import (
	"github.com/vantage-systems/proctrace/proc"
)

// patternElem is one byte of a compiled pattern: either a literal value
// to match exactly, or a wildcard that matches any byte.
type patternElem struct {
	value    byte
	wildcard bool
}

// Pattern is a compiled byte pattern ready for searching.
type Pattern struct {
	elems []patternElem
}

// Len returns the pattern's length in bytes.
func (p Pattern) Len() int { return len(p.elems) }

// wildcardByte is the mask character marking a pattern byte as a
// wildcard (matches anything at that offset); any other mask byte
// requires an exact match against the corresponding pattern byte.
const wildcardByte = '*'

// Compile builds a Pattern from pattern bytes and a parallel mask, per
// spec.md §4.6's (pattern[i], mask[i] == '*') convention. pattern and
// mask must be the same length.
func Compile(pattern, mask []byte) (Pattern, error) {
	if len(pattern) == 0 {
		return Pattern{}, proc.NewArgumentError("Compile", "pattern must not be empty")
	}
	if len(pattern) != len(mask) {
		return Pattern{}, proc.NewArgumentError("Compile", "pattern and mask must be the same length")
	}
	elems := make([]patternElem, len(pattern))
	for i := range pattern {
		elems[i] = patternElem{value: pattern[i], wildcard: mask[i] == wildcardByte}
	}
	return Pattern{elems: elems}, nil
}

// CompileLiteral builds a Pattern that matches pattern exactly, with no
// wildcards.
func CompileLiteral(pattern []byte) (Pattern, error) {
	mask := make([]byte, len(pattern))
	for i := range mask {
		mask[i] = '?'
	}
	return Compile(pattern, mask)
}

func (p Pattern) hasWildcard() bool {
	for _, e := range p.elems {
		if e.wildcard {
			return true
		}
	}
	return false
}

func (p Pattern) matchesAt(data []byte, offset int) bool {
	if offset+len(p.elems) > len(data) {
		return false
	}
	for i, e := range p.elems {
		if !e.wildcard && data[offset+i] != e.value {
			return false
		}
	}
	return true
}

// findAll returns every offset in data where p matches, using a naive
// scan at every offset for both wildcard and literal patterns; no skip
// table is used. This mirrors the source's own std::search behavior
// exactly rather than attempting an "improved" algorithm that could
// change match semantics at the pattern's boundary bytes.
func (p Pattern) findAll(data []byte) []int {
	var out []int
	if len(p.elems) == 0 || len(p.elems) > len(data) {
		return out
	}
	for i := 0; i <= len(data)-len(p.elems); i++ {
		if p.matchesAt(data, i) {
			out = append(out, i)
		}
	}
	return out
}
