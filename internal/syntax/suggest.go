package syntax

import (
	"github.com/salmanbareesh039/check-if-email-exists/internal/misc"
)

const maxSuggestDistance = 2

// SuggestDomain proposes the well-known mailbox provider the user most
// likely meant to type. An exact match, or a domain further than two
// edits from every known provider, yields no suggestion. Among equally
// close providers the first in list order wins.
func SuggestDomain(domain string) string {
	best := ""
	bestDist := maxSuggestDistance + 1
	for _, known := range misc.FreeDomainList() {
		if known == domain {
			return ""
		}
		diff := len(known) - len(domain)
		if diff > maxSuggestDistance || -diff > maxSuggestDistance {
			continue
		}
		if d := editDistance(domain, known); d < bestDist {
			best, bestDist = known, d
		}
	}
	return best
}

// editDistance is the optimal-string-alignment variant of
// Damerau-Levenshtein: substitutions, insertions, deletions and
// adjacent transpositions each cost one. Domains are ASCII after IDN
// mapping, so byte indexing is safe.
func editDistance(a, b string) int {
	if a == b {
		return 0
	}
	la, lb := len(a), len(b)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	prev2 := make([]int, lb+1)
	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}

	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			d := min(curr[j-1]+1, prev[j]+1)
			d = min(d, prev[j-1]+cost)
			if i > 1 && j > 1 && a[i-1] == b[j-2] && a[i-2] == b[j-1] {
				d = min(d, prev2[j-2]+1)
			}
			curr[j] = d
		}
		prev2, prev, curr = prev, curr, prev2
	}
	return prev[lb]
}
