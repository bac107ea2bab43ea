package usecase

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// SearchQueryBuilder turns a shopping-list name into the term sent with SEARCH
type SearchQueryBuilder struct {
	enabled bool
	log     zerolog.Logger
}

// Compiled regex patterns for search term cleaning
var (
	// Matches size/quantity patterns like "128 fl oz", "12 oz", "1.5 liter", "2 lb"
	sizeQuantityPattern = regexp.MustCompile(`(?i)\b\d+\.?\d*\s*(fl\s*)?oz\b|\b\d+\.?\d*\s*(fl\s*)?ounces?\b|\b\d+\.?\d*\s*lbs?\b|\b\d+\.?\d*\s*pounds?\b|\b\d+\.?\d*\s*ml\b|\b\d+\.?\d*\s*liters?\b|\b\d+\.?\d*\s*gallons?\b|\b\d+\.?\d*\s*quarts?\b|\b\d+\.?\d*\s*pints?\b|\b\d+\.?\d*\s*kg\b|\b\d+\.?\d*\s*grams?\b|\b\d+\.?\d*\s*g\b`)

	// Matches pack/count patterns like "12 pack", "pack of 6", "6-pack", "24 count", "6 ct"
	packCountPattern = regexp.MustCompile(`(?i)\b\d+[-\s]*(pack|pk|count|ct)\b|\bpack\s*of\s*\d+\b|\b\d+\s*cans?\b|\b\d+\s*bottles?\b`)

	// Matches standalone numbers with no unit at either end (", 128", "12 -")
	standaloneNumberPattern = regexp.MustCompile(`[,\-]\s*\d+\.?\d*\s*$|^\d+\.?\d*\s*[,\-]`)

	orphanedPunctuationPattern = regexp.MustCompile(`\s+[,\-;:]+\s+`)
	trailingPunctuationPattern = regexp.MustCompile(`[,\-;:]+\s*$`)
	leadingPunctuationPattern  = regexp.MustCompile(`^\s*[,\-;:]+`)

	multiSpacePattern = regexp.MustCompile(`\s+`)
)

// maxSearchTermLength keeps search URLs reasonable. Counted in characters.
const maxSearchTermLength = 100

// NewSearchQueryBuilder creates a builder. When disabled, Build only trims.
func NewSearchQueryBuilder(enabled bool, logger zerolog.Logger) *SearchQueryBuilder {
	return &SearchQueryBuilder{
		enabled: enabled,
		log:     logger.With().Str("component", "search_query").Logger(),
	}
}

// Build strips size and pack-count noise from a list name.
// Falls back to the trimmed name when cleaning would leave nothing.
func (b *SearchQueryBuilder) Build(name string) string {
	raw := strings.TrimSpace(name)
	if !b.enabled || raw == "" {
		return raw
	}

	cleaned := sizeQuantityPattern.ReplaceAllString(raw, " ")
	cleaned = packCountPattern.ReplaceAllString(cleaned, " ")
	cleaned = standaloneNumberPattern.ReplaceAllString(cleaned, " ")
	cleaned = cleanOrphanedPunctuation(cleaned)
	cleaned = multiSpacePattern.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(cleaned)

	if utf8.RuneCountInString(cleaned) > maxSearchTermLength {
		cleaned = string([]rune(cleaned)[:maxSearchTermLength])
		// Try to cut at word boundary
		if lastSpace := strings.LastIndex(cleaned, " "); lastSpace > 0 && utf8.RuneCountInString(cleaned[:lastSpace]) > maxSearchTermLength/2 {
			cleaned = cleaned[:lastSpace]
		}
		cleaned = strings.TrimSpace(cleaned)
	}

	if cleaned == "" {
		return raw
	}

	if cleaned != raw {
		b.log.Debug().Str("input", raw).Str("output", cleaned).Msg("cleaned search term")
	}
	return cleaned
}

// cleanOrphanedPunctuation removes punctuation left alone after stripping
func cleanOrphanedPunctuation(s string) string {
	result := orphanedPunctuationPattern.ReplaceAllString(s, " ")
	result = trailingPunctuationPattern.ReplaceAllString(result, "")
	return leadingPunctuationPattern.ReplaceAllString(result, "")
}
