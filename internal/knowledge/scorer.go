package knowledge

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// Fold normalises text for matching: Unicode case folding, which also covers
// Cyrillic and other non-ASCII scripts that strings.ToLower handles unevenly.
// A Caser is stateful, so one is created per call.
func Fold(s string) string {
	return cases.Fold().String(s)
}

// TokenSetRatio scores two strings on a 0..100 scale by comparing their
// whitespace-separated token sets: the shared tokens plus each side's
// leftovers are compared with a normalised Indel similarity and the best of
// the three pairings wins. A full containment of one token set in the other
// scores 100. Either side empty scores 0.
func TokenSetRatio(a, b string) float64 {
	tokensA := tokenSet(a)
	tokensB := tokenSet(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	var intersect, diffAB, diffBA []string
	for tok := range tokensA {
		if _, ok := tokensB[tok]; ok {
			intersect = append(intersect, tok)
		} else {
			diffAB = append(diffAB, tok)
		}
	}
	for tok := range tokensB {
		if _, ok := tokensA[tok]; !ok {
			diffBA = append(diffBA, tok)
		}
	}
	if len(intersect) > 0 && (len(diffAB) == 0 || len(diffBA) == 0) {
		return 100
	}
	sort.Strings(intersect)
	sort.Strings(diffAB)
	sort.Strings(diffBA)

	abJoined := []rune(strings.Join(diffAB, " "))
	baJoined := []rune(strings.Join(diffBA, " "))
	abLen := len(abJoined)
	baLen := len(baJoined)
	sectLen := len([]rune(strings.Join(intersect, " ")))

	sep := 0
	if sectLen != 0 {
		sep = 1
	}
	sectABLen := sectLen + sep + abLen
	sectBALen := sectLen + sep + baLen

	result := normalizedSimilarity(indelDistance(abJoined, baJoined), sectABLen+sectBALen)
	if sectLen == 0 {
		return result
	}

	// The intersection prefixes both "sect+diff" strings, so their distance
	// to the bare intersection is just the separator plus the diff.
	sectABRatio := normalizedSimilarity(sep+abLen, sectLen+sectABLen)
	sectBARatio := normalizedSimilarity(sep+baLen, sectLen+sectBALen)
	return max(result, sectABRatio, sectBARatio)
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(s)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func normalizedSimilarity(dist, lensum int) float64 {
	if lensum == 0 {
		return 100
	}
	return 100 * (1 - float64(dist)/float64(lensum))
}

// indelDistance counts insertions plus deletions needed to turn a into b,
// i.e. len(a)+len(b)-2*LCS(a,b).
func indelDistance(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return len(a) + len(b)
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return len(a) + len(b) - 2*prev[len(b)]
}
