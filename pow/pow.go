// Package pow implements the proof of work predicate checked against
// revision identifiers: a required count of leading zero hex digits.
package pow

import (
	"math"
	"strings"
)

const zero = '0'

// Matches reports whether the first zeroes characters of revision are all '0'.
// A non-positive zeroes is trivially satisfied; a zeroes longer than the
// revision never is.
func Matches(revision string, zeroes int) bool {
	if zeroes <= 0 {
		return true
	}
	if zeroes > len(revision) {
		return false
	}
	for i := 0; i < zeroes; i++ {
		if revision[i] != zero {
			return false
		}
	}
	return true
}

// LeadingZeroes counts the leading '0' characters of revision.
func LeadingZeroes(revision string) int {
	return len(revision) - len(strings.TrimLeft(revision, string(zero)))
}

// ExpectedAttempts is the mean number of uniformly random hex revisions
// needed to satisfy Matches for the given zeroes.
func ExpectedAttempts(zeroes int) float64 {
	if zeroes <= 0 {
		return 1
	}
	return math.Pow(16, float64(zeroes))
}

// SuccessProbability is the chance that at least one of tries uniformly
// random hex revisions satisfies Matches for the given zeroes.
func SuccessProbability(zeroes, tries int) float64 {
	if tries <= 0 {
		return 0
	}
	if zeroes <= 0 {
		return 1
	}
	miss := 1 - 1/ExpectedAttempts(zeroes)
	return 1 - math.Pow(miss, float64(tries))
}
