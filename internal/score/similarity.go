package score

import (
	"strings"
	"unicode"
)

// Signals holds the three independent similarity signals for a title pair
type Signals struct {
	Raw        float64 `json:"raw"`        // Case-insensitive ratio of the titles as given
	Normalized float64 `json:"normalized"` // Ratio after punctuation stripping and whitespace collapsing
	Words      float64 `json:"words"`      // Jaccard overlap of normalized word sets
}

// Max returns the fused score
func (s Signals) Max() float64 {
	m := s.Raw
	if s.Normalized > m {
		m = s.Normalized
	}
	if s.Words > m {
		m = s.Words
	}
	return m
}

// Breakdown computes every signal for a and b
func Breakdown(a, b string) Signals {
	na, nb := Normalize(a), Normalize(b)
	return Signals{
		Raw:        Ratio(strings.ToLower(a), strings.ToLower(b)),
		Normalized: Ratio(na, nb),
		Words:      Jaccard(strings.Fields(na), strings.Fields(nb)),
	}
}

// Score returns the blended similarity of two titles in [0,1]. Any single
// strong signal counts, so the maximum of the three is used.
func Score(a, b string) float64 {
	return Breakdown(a, b).Max()
}

// IsMatch reports whether Score(a, b) strictly exceeds threshold.
func IsMatch(a, b string, threshold float64) bool {
	return Score(a, b) > threshold
}

// Normalize lowercases s, replaces every rune that is neither a letter, digit
// nor whitespace with a space, collapses whitespace runs and trims.
func Normalize(s string) string {
	var buf strings.Builder
	buf.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.IsSpace(r) {
			buf.WriteRune(r)
		} else {
			buf.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(buf.String()), " ")
}

// Jaccard returns |A∩B| / |A∪B| over the word sets, or 0 if either is empty.
func Jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := make(map[string]struct{}, len(a))
	for _, w := range a {
		setA[w] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, w := range b {
		setB[w] = struct{}{}
	}

	inter := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

// Ratio is the Ratcliff/Obershelp similarity 2*M/T over runes, where M is the
// total size of the matching blocks and T the combined length. The block
// search prefers earlier positions in its first argument, which can make the
// one-directional value order dependent; Ratio evaluates both orders and keeps
// the larger so Ratio(a, b) == Ratio(b, a).
func Ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1.0
	}
	m := matchedRunes(ra, rb)
	if rev := matchedRunes(rb, ra); rev > m {
		m = rev
	}
	return 2.0 * float64(m) / float64(total)
}

// matchedRunes sums the sizes of the recursively found longest common blocks.
func matchedRunes(a, b []rune) int {
	index := make(map[rune][]int)
	for j, r := range b {
		index[r] = append(index[r], j)
	}

	type span struct{ alo, ahi, blo, bhi int }
	queue := []span{{0, len(a), 0, len(b)}}
	matched := 0

	for len(queue) > 0 {
		s := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		i, j, k := longestMatch(a, index, s.alo, s.ahi, s.blo, s.bhi)
		if k == 0 {
			continue
		}
		matched += k
		if s.alo < i && s.blo < j {
			queue = append(queue, span{s.alo, i, s.blo, j})
		}
		if i+k < s.ahi && j+k < s.bhi {
			queue = append(queue, span{i + k, s.ahi, j + k, s.bhi})
		}
	}
	return matched
}

// longestMatch finds the longest block a[i:i+k] == b[j:j+k] inside the given
// ranges, preferring the smallest i and then the smallest j.
func longestMatch(a []rune, bIndex map[rune][]int, alo, ahi, blo, bhi int) (int, int, int) {
	besti, bestj, bestk := alo, blo, 0
	j2len := make(map[int]int)

	for i := alo; i < ahi; i++ {
		next := make(map[int]int)
		for _, j := range bIndex[a[i]] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}
			k := j2len[j-1] + 1
			next[j] = k
			if k > bestk {
				besti, bestj, bestk = i-k+1, j-k+1, k
			}
		}
		j2len = next
	}
	return besti, bestj, bestk
}
