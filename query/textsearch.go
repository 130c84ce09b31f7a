// query/textsearch.go
package query

import (
	"strings"
	"unicode"
)

/*
 * Reference full-text semantics for the Search predicate.
 *
 * Both the query and the field value tokenize on any run of
 * non-letter/non-digit runes, case-folded. A query token matches when some
 * value token is within the edit-distance budget. Real full-text backends
 * may match more richly (stemming, prefix expansion) and are allowed to
 * return a superset of these matches, but a backend must never drop a
 * record this evaluator accepts under requireAll.
 */

// Tokenize splits a string into lower-cased tokens on whitespace and
// punctuation.
func Tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func searchMatch(value, q string, maxDist int, requireAll bool) bool {
	queryTokens := Tokenize(q)
	if len(queryTokens) == 0 {
		return true
	}
	valueTokens := Tokenize(value)

	for _, qt := range queryTokens {
		matched := false
		for _, vt := range valueTokens {
			if editDistanceAtMost(qt, vt, maxDist) {
				matched = true
				break
			}
		}
		if requireAll && !matched {
			return false
		}
		if !requireAll && matched {
			return true
		}
	}
	return requireAll
}

// editDistanceAtMost reports whether the Levenshtein distance between a
// and b is at most k. Bails out early when a full row of the DP table
// exceeds the budget, so the common non-match case stays cheap.
func editDistanceAtMost(a, b string, k int) bool {
	if a == b {
		return true
	}
	ra, rb := []rune(a), []rune(b)
	if abs(len(ra)-len(rb)) > k {
		return false
	}

	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		rowMin := cur[0]
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
			if cur[j] < rowMin {
				rowMin = cur[j]
			}
		}
		if rowMin > k {
			return false
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)] <= k
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
