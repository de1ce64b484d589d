package fields

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/schollz/closestmatch"
)

// substringSizes are byte lengths: one or two CJK runes, or an ASCII
// trigram. A candidate sharing none of them with the target is never
// scored.
var substringSizes = []int{3, 6}

// pad is appended to indexed and searched words: closestmatch never
// indexes a word's final window, and the pad brings it in.
const pad = " "

// Ratio is the Ratcliff/Obershelp similarity of a and b over runes, in [0, 1].
func Ratio(a, b string) float64 {
	m := difflib.NewMatcher(splitRunes(a), splitRunes(b))
	return m.Ratio()
}

func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// Best returns the index of the candidate most similar to target and its
// score, or -1 when no candidate reaches threshold. Both sides are
// normalized first. Ties go to the earlier candidate.
func Best(target string, candidates []string, threshold float64) (int, float64) {
	key := Normalize(target)
	if key == "" || len(candidates) == 0 {
		return -1, 0
	}

	keys := make([]string, len(candidates))
	var possible []string
	seen := make(map[string]bool)
	for i, c := range candidates {
		keys[i] = Normalize(c)
		if keys[i] != "" && !seen[keys[i]] {
			seen[keys[i]] = true
			possible = append(possible, keys[i])
		}
	}
	if len(possible) == 0 {
		return -1, 0
	}

	// closestmatch shortlists the candidates sharing a substring with the
	// target; the difflib ratio decides among them. The shortlist is not
	// cut to a fixed length because closestmatch orders equal counts
	// arbitrarily.
	padded := make([]string, len(possible))
	for i, k := range possible {
		padded[i] = k + pad
	}
	shortlist := make(map[string]bool)
	cm := closestmatch.New(padded, substringSizes)
	for _, k := range cm.ClosestN(key+pad, len(padded)) {
		if k != "" {
			shortlist[strings.TrimSuffix(k, pad)] = true
		}
	}

	bestIdx, bestScore := -1, 0.0
	for i, k := range keys {
		if !shortlist[k] {
			continue
		}
		score := Ratio(key, k)
		if score > bestScore {
			bestIdx, bestScore = i, score
		}
	}
	if bestIdx < 0 || bestScore < threshold {
		return -1, bestScore
	}
	return bestIdx, bestScore
}
