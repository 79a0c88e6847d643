// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

package cache

import "strings"

// MatchPattern reports whether key matches a glob pattern.
//
// The syntax is the subset of Redis MATCH used for cache invalidation:
// '*' matches any run of bytes, '?' matches exactly one byte and '\'
// makes the next byte literal. Every other byte, including '[' and ']',
// matches itself.
func MatchPattern(pattern, key string) bool {
	p, k := 0, 0
	starP, starK := -1, 0

	for k < len(key) {
		if p < len(pattern) {
			switch c := pattern[p]; c {
			case '*':
				starP, starK = p, k
				p++
				continue
			case '?':
				p++
				k++
				continue
			case '\\':
				lit, width := byte('\\'), 1
				if p+1 < len(pattern) {
					lit, width = pattern[p+1], 2
				}
				if lit == key[k] {
					p += width
					k++
					continue
				}
			default:
				if c == key[k] {
					p++
					k++
					continue
				}
			}
		}
		if starP < 0 {
			return false
		}
		// Backtrack: let the last '*' absorb one more byte.
		starK++
		p, k = starP+1, starK
	}

	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	return p == len(pattern)
}

// LiteralPrefix returns the unescaped text of pattern before its first
// wildcard. Every key matching pattern starts with it.
func LiteralPrefix(pattern string) string {
	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		switch c := pattern[i]; c {
		case '*', '?':
			return b.String()
		case '\\':
			if i+1 < len(pattern) {
				i++
				b.WriteByte(pattern[i])
			} else {
				b.WriteByte(c)
			}
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
