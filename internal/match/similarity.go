package match

import "strings"

// Similarity scores two normalized names in [0, 1]. The engine accepts
// a fuzzy match when the best candidate scores at or above its
// threshold. Implementations must be pure.
type Similarity func(a, b string) float64

// TokenSetSimilarity weights. Jaccard rewards shared vocabulary across
// the whole name; the pair component rewards near-identical tokens so a
// one-token extension ("acme supplies" vs "acme supplies international")
// is not over-punished. Equal weights put a single-token superset of a
// two-token name at the default 0.75 acceptance boundary.
const (
	jaccardWeight = 0.5
	pairWeight    = 0.5
)

// TokenSetSimilarity is the default similarity: Jaccard overlap of the
// unique token sets blended with the average best per-token overlap in
// both directions.
func TokenSetSimilarity(a, b string) float64 {
	ta := strings.Fields(a)
	tb := strings.Fields(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	setA := tokenSet(ta)
	setB := tokenSet(tb)

	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	jaccard := float64(intersection) / float64(union)

	pair := (directionalPairScore(ta, tb) + directionalPairScore(tb, ta)) / 2

	return jaccardWeight*jaccard + pairWeight*pair
}

func tokenSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}

// directionalPairScore averages, over the tokens of from, the best
// overlap each achieves against any token of to.
func directionalPairScore(from, to []string) float64 {
	var sum float64
	for _, f := range from {
		best := 0.0
		for _, t := range to {
			if s := tokenOverlap(f, t); s > best {
				best = s
			}
		}
		sum += best
	}
	return sum / float64(len(from))
}

// tokenOverlap scores two tokens by shared prefix length relative to
// the longer token. Equal tokens score 1.
func tokenOverlap(a, b string) float64 {
	if a == b {
		return 1
	}

	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}

	longer := len(a)
	if len(b) > longer {
		longer = len(b)
	}
	return float64(n) / float64(longer)
}
