package usecase

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/grocerybot/assistant/internal/domain"
)

// Scoring constants
const (
	exactMatchScore     = 100
	containmentBase     = 50
	closenessMax        = 100
	closenessPenaltyCap = 50
	tokenOverlapWeight  = 30.0
)

// MatchConfig holds configuration for the matching service
type MatchConfig struct {
	EnableDebugLogging bool
	Logger             zerolog.Logger
}

// MatchingService resolves shopping-list names against the catalog.
// It performs no I/O.
type MatchingService struct {
	enableDebugLogging bool
	log                zerolog.Logger
}

// NewMatchingService creates a new matching service with the given configuration
func NewMatchingService(config MatchConfig) *MatchingService {
	return &MatchingService{
		enableDebugLogging: config.EnableDebugLogging,
		log:                config.Logger.With().Str("component", "matcher").Logger(),
	}
}

// Resolve scores every active catalog item against name and returns the
// candidates best-first. An empty result means the item is new.
func (s *MatchingService) Resolve(name string, catalog []domain.CatalogItem) []domain.MatchCandidate {
	query := normalize(name)
	if query == "" {
		return nil
	}

	var candidates []domain.MatchCandidate
	for _, item := range catalog {
		if !item.IsActive() {
			continue
		}

		combined := item.CombinedText()
		score := max(Score(name, item.Description), Score(name, combined))
		if score == 0 {
			continue
		}

		kind := domain.MatchFuzzy
		if query == normalize(item.Description) || query == normalize(combined) {
			kind = domain.MatchExact
		}

		if s.enableDebugLogging {
			s.log.Debug().
				Str("query", name).
				Str("id", item.ID).
				Str("description", item.Description).
				Int("score", score).
				Str("kind", string(kind)).
				Msg("candidate")
		}

		candidates = append(candidates, domain.MatchCandidate{Item: item, Score: score, Kind: kind})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if ka, kb := kindRank(a.Kind), kindRank(b.Kind); ka != kb {
			return ka < kb
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.Item.NormalizedPriority() < b.Item.NormalizedPriority()
	})

	return candidates
}

// Decide applies the resolution policy to a ranked candidate list:
// several exact matches pick the lowest normalized priority, one exact or one
// fuzzy match is selected, several fuzzy matches need the human.
func (s *MatchingService) Decide(candidates []domain.MatchCandidate) domain.Resolution {
	if len(candidates) == 0 {
		return domain.Resolution{Kind: domain.ResolutionNew}
	}

	var exact []domain.MatchCandidate
	for _, c := range candidates {
		if c.Kind == domain.MatchExact {
			exact = append(exact, c)
		}
	}

	switch {
	case len(exact) >= 1:
		best := exact[0]
		for _, c := range exact[1:] {
			if c.Item.NormalizedPriority() < best.Item.NormalizedPriority() {
				best = c
			}
		}
		return domain.Resolution{Kind: domain.ResolutionSelected, Selected: &best, Candidates: candidates}
	case len(candidates) == 1:
		only := candidates[0]
		return domain.Resolution{Kind: domain.ResolutionSelected, Selected: &only, Candidates: candidates}
	default:
		return domain.Resolution{Kind: domain.ResolutionAmbiguous, Candidates: candidates}
	}
}

// ResolveAndDecide is Resolve followed by Decide
func (s *MatchingService) ResolveAndDecide(name string, catalog []domain.CatalogItem) domain.Resolution {
	return s.Decide(s.Resolve(name, catalog))
}

// Score computes the similarity between a query and a candidate text:
//   - 100 for equality after trimming and lowercasing
//   - 50 plus a closeness bonus when one contains the other
//   - up to 30 for whitespace-token overlap
//
// Blank input on either side scores 0.
func Score(query, candidate string) int {
	q := normalize(query)
	c := normalize(candidate)
	if q == "" || c == "" {
		return 0
	}

	if q == c {
		return exactMatchScore
	}

	if strings.Contains(q, c) || strings.Contains(c, q) {
		diff := utf8.RuneCountInString(q) - utf8.RuneCountInString(c)
		if diff < 0 {
			diff = -diff
		}
		return containmentBase + (closenessMax - min(diff, closenessPenaltyCap))
	}

	queryTokens := tokenize(q)
	candidateTokens := tokenize(c)
	common := findIntersection(queryTokens, candidateTokens)
	if common == 0 {
		return 0
	}

	ratio := float64(common) / float64(max(len(queryTokens), len(candidateTokens)))
	return int(math.Round(tokenOverlapWeight * ratio))
}

func kindRank(k domain.MatchKind) int {
	if k == domain.MatchExact {
		return 0
	}
	return 1
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// tokenize splits an already-normalized string on whitespace
func tokenize(s string) []string {
	return strings.Fields(s)
}

// findIntersection returns the number of distinct tokens present in both lists
func findIntersection(tokens1, tokens2 []string) int {
	set := make(map[string]bool, len(tokens1))
	for _, t := range tokens1 {
		set[t] = true
	}

	seen := make(map[string]bool)
	for _, t := range tokens2 {
		if set[t] && !seen[t] {
			seen[t] = true
		}
	}
	return len(seen)
}
