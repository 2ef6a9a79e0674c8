// Package match resolves a document to a party from the directory.
// Strategies run in a fixed order from cheapest to loosest: exact
// number, exact name, normalized name, learned alias, fuzzy similarity.
// The engine is pure: candidates are processed in party-id order and
// identical inputs always produce identical results. A manual result is
// never produced here, only by an operator override.
package match

import (
	"bytes"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/courier-labs/courier/internal/documents"
	"github.com/courier-labs/courier/internal/parties"
	"github.com/courier-labs/courier/pkg/formatting"
)

// Match methods recorded in results.
const (
	MethodExactID        = "exact-id"
	MethodExactName      = "exact-name"
	MethodNormalizedName = "normalized-name"
	MethodAlias          = "alias"
	MethodFuzzy          = "fuzzy"
	MethodManual         = "manual"
	MethodNone           = "none"
)

// Default scores per strategy. Exact strategies are certain; the
// normalized and alias strategies discount for the transformation
// applied. Fuzzy results carry their computed similarity.
const (
	DefaultFuzzyThreshold = 0.75
	scoreExact            = 1.0
	scoreNormalized       = 0.9
	defaultAliasScore     = 0.85
)

// Engine matches documents to parties. Safe for concurrent use.
type Engine struct {
	threshold  float64
	similarity Similarity
}

// NewEngine creates an Engine. A non-positive threshold falls back to
// DefaultFuzzyThreshold; a nil similarity falls back to
// TokenSetSimilarity.
func NewEngine(threshold float64, similarity Similarity) *Engine {
	if threshold <= 0 {
		threshold = DefaultFuzzyThreshold
	}
	if similarity == nil {
		similarity = TokenSetSimilarity
	}
	return &Engine{threshold: threshold, similarity: similarity}
}

// Match resolves the document's party fields against the candidate
// directory and learned aliases. It never fails; when no strategy
// lands, the result is method none with score 0 and no party.
func (e *Engine) Match(
	fields map[string]any,
	candidates []parties.Party,
	aliases []parties.Alias,
) documents.MatchResult {
	number := formatting.FieldString(fields, "vendor_number", "customer_number")
	name := formatting.FieldString(fields, "vendor_name", "customer_name")

	sorted := sortCandidates(candidates)

	if number != "" {
		for _, c := range sorted {
			if strings.EqualFold(c.Number, number) {
				return result(MethodExactID, scoreExact, c.ID)
			}
		}
	}

	if name == "" {
		return noMatch()
	}

	for _, c := range sorted {
		if strings.EqualFold(c.Name, name) {
			return result(MethodExactName, scoreExact, c.ID)
		}
	}

	normalized := parties.Normalize(name)
	if normalized == "" {
		return noMatch()
	}

	for _, c := range sorted {
		if parties.Normalize(c.Name) == normalized {
			return result(MethodNormalizedName, scoreNormalized, c.ID)
		}
	}

	for _, a := range sortAliases(aliases) {
		if a.Alias == normalized {
			score := a.Score
			if score <= 0 {
				score = defaultAliasScore
			}
			return result(MethodAlias, score, a.PartyID)
		}
	}

	bestScore := 0.0
	var bestID uuid.UUID
	found := false
	for _, c := range sorted {
		s := e.similarity(normalized, parties.Normalize(c.Name))
		if s > bestScore {
			bestScore = s
			bestID = c.ID
			found = true
		}
	}
	if found && bestScore >= e.threshold {
		return result(MethodFuzzy, bestScore, bestID)
	}

	return noMatch()
}

func result(method string, score float64, partyID uuid.UUID) documents.MatchResult {
	id := partyID
	return documents.MatchResult{Method: method, Score: score, PartyID: &id}
}

func noMatch() documents.MatchResult {
	return documents.MatchResult{Method: MethodNone, Score: 0}
}

func sortCandidates(candidates []parties.Party) []parties.Party {
	sorted := slices.Clone(candidates)
	slices.SortFunc(sorted, func(a, b parties.Party) int {
		return bytes.Compare(a.ID[:], b.ID[:])
	})
	return sorted
}

func sortAliases(aliases []parties.Alias) []parties.Alias {
	sorted := slices.Clone(aliases)
	slices.SortFunc(sorted, func(a, b parties.Alias) int {
		if c := strings.Compare(a.Alias, b.Alias); c != 0 {
			return c
		}
		return bytes.Compare(a.PartyID[:], b.PartyID[:])
	})
	return sorted
}
