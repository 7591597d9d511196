// Package matcher implements pattern-based forwarder identification.
//
// Identification scores each configured forwarder pattern against the OCR
// text using four signals: company name variants, distinctive keywords,
// tracking-number format regexes, and logo-adjacent phrases. The highest
// scoring candidate above the review threshold wins.
package matcher

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"forwarder-mapping-engine/internal/models"
)

// Confidence score contributions per signal.
const (
	ScoreNameMatch     = 40.0
	ScoreKeywordMatch  = 15.0
	ScoreKeywordMax    = 30.0
	ScoreFormatMatch   = 20.0
	ScoreLogoTextMatch = 10.0
	ScoreBonusPerMatch = 5.0
)

// Confidence thresholds. These constants are the single source of truth for
// the tri-state status derivation done by the calling layer.
const (
	ThresholdAutoIdentify = 80.0
	ThresholdNeedsReview  = 50.0
)

// Unidentified-result reason codes.
const (
	ReasonEmptyText = "empty_text"
	ReasonNoMatch   = "no_match"
)

// UnknownForwarderCode marks the catch-all pattern that is never scored.
const UnknownForwarderCode = "UNKNOWN"

var whitespaceRE = regexp.MustCompile(`\s+`)

// Matcher identifies forwarders from OCR text. It holds an immutable pattern
// set; concurrent Identify calls are safe without locking.
type Matcher struct {
	patterns []models.ForwarderPattern
	log      *zap.Logger
}

// New creates a matcher over the given patterns. Patterns are evaluated in
// descending priority order; ties keep input order.
func New(patterns []models.ForwarderPattern, log *zap.Logger) *Matcher {
	sorted := make([]models.ForwarderPattern, len(patterns))
	copy(sorted, patterns)
	stableSortByPriorityDesc(sorted)

	log.Info("Matcher initialized", zap.Int("pattern_count", len(sorted)))

	return &Matcher{patterns: sorted, log: log}
}

// Patterns returns a copy of the configured patterns in evaluation order.
// The matcher's own set stays immutable for the epoch's lifetime.
func (m *Matcher) Patterns() []models.ForwarderPattern {
	out := make([]models.ForwarderPattern, len(m.patterns))
	copy(out, m.patterns)
	return out
}

// Identify scores every pattern against the text and returns the best
// candidate, or an unidentified result when nothing clears the review
// threshold.
func (m *Matcher) Identify(text string) models.IdentificationResult {
	if strings.TrimSpace(text) == "" {
		return unidentifiedResult(ReasonEmptyText)
	}

	normalized := normalizeText(text)

	var best *models.IdentificationResult
	bestConfidence := 0.0

	for i := range m.patterns {
		pattern := &m.patterns[i]
		if pattern.Code == UnknownForwarderCode {
			continue
		}

		result := m.matchPattern(pattern, normalized, text)
		if result.Confidence > bestConfidence {
			bestConfidence = result.Confidence
			best = &result
		}
	}

	if best == nil || bestConfidence < ThresholdNeedsReview {
		return unidentifiedResult(ReasonNoMatch)
	}

	m.log.Info("Identification completed",
		zap.String("forwarder_code", best.ForwarderCode),
		zap.Float64("confidence", best.Confidence),
		zap.String("match_method", string(best.MatchMethod)),
	)

	return *best
}

// matchPattern scores a single forwarder pattern. The scoring stages run in
// a fixed order (name, keyword, format, logo text); the first stage that
// contributes sets the match method.
func (m *Matcher) matchPattern(pattern *models.ForwarderPattern, normalizedText, originalText string) models.IdentificationResult {
	totalScore := 0.0
	matchedPatterns := make([]string, 0)
	matchDetails := make([]models.MatchDetail, 0)
	primaryMethod := models.MatchTypeNone

	// 1. Name match: full bonus once, then a small bonus per extra variant.
	nameMatched := false
	for _, name := range pattern.Names {
		if !strings.Contains(normalizedText, strings.ToLower(name)) {
			continue
		}

		score := ScoreBonusPerMatch
		if !nameMatched {
			score = ScoreNameMatch
			primaryMethod = models.MatchTypeName
			nameMatched = true
		}
		totalScore += score

		matchedPatterns = append(matchedPatterns, "name:"+name)
		matchDetails = append(matchDetails, models.MatchDetail{
			Type:    models.MatchTypeName,
			Pattern: name,
			Score:   score,
		})
	}

	// 2. Keyword match: per-keyword bonus, cumulative contribution capped.
	keywordScore := 0.0
	for _, keyword := range pattern.Keywords {
		if !strings.Contains(normalizedText, strings.ToLower(keyword)) {
			continue
		}

		scoreToAdd := ScoreKeywordMatch
		if remaining := ScoreKeywordMax - keywordScore; scoreToAdd > remaining {
			scoreToAdd = remaining
		}
		if scoreToAdd > 0 {
			keywordScore += scoreToAdd
			totalScore += scoreToAdd
			if primaryMethod == models.MatchTypeNone {
				primaryMethod = models.MatchTypeKeyword
			}
		} else {
			scoreToAdd = 0
		}

		matchedPatterns = append(matchedPatterns, "keyword:"+keyword)
		matchDetails = append(matchDetails, models.MatchDetail{
			Type:    models.MatchTypeKeyword,
			Pattern: keyword,
			Score:   scoreToAdd,
		})
	}

	// 3. Format match against the original text; one bonus per pattern,
	// first matching format wins.
	for _, format := range pattern.Formats {
		re, err := regexp.Compile("(?i)" + format)
		if err != nil {
			m.log.Warn("Invalid format regex, skipping",
				zap.String("pattern", format),
				zap.String("forwarder_code", pattern.Code),
				zap.Error(err),
			)
			continue
		}

		matched := re.FindString(originalText)
		if matched == "" {
			continue
		}

		totalScore += ScoreFormatMatch
		if primaryMethod == models.MatchTypeNone {
			primaryMethod = models.MatchTypeFormat
		}
		matchedPatterns = append(matchedPatterns, "format:"+format)
		matchDetails = append(matchDetails, models.MatchDetail{
			Type:        models.MatchTypeFormat,
			Pattern:     format,
			MatchedText: matched,
			Score:       ScoreFormatMatch,
		})
		break
	}

	// 4. Logo text match; single bonus, first hit wins.
	for _, logoText := range pattern.LogoText {
		if !strings.Contains(normalizedText, strings.ToLower(logoText)) {
			continue
		}

		totalScore += ScoreLogoTextMatch
		if primaryMethod == models.MatchTypeNone {
			primaryMethod = models.MatchTypeLogoText
		}
		matchedPatterns = append(matchedPatterns, "logo:"+logoText)
		matchDetails = append(matchDetails, models.MatchDetail{
			Type:    models.MatchTypeLogoText,
			Pattern: logoText,
			Score:   ScoreLogoTextMatch,
		})
		break
	}

	confidence := totalScore
	if confidence > 100 {
		confidence = 100
	}

	return models.IdentificationResult{
		ForwarderID:     pattern.ForwarderID,
		ForwarderCode:   pattern.Code,
		ForwarderName:   pattern.DisplayName,
		Confidence:      confidence,
		MatchMethod:     primaryMethod,
		MatchedPatterns: matchedPatterns,
		MatchDetails:    matchDetails,
		IsIdentified:    confidence >= ThresholdAutoIdentify,
	}
}

// normalizeText lowercases the text and collapses whitespace runs so name,
// keyword and logo matching are layout-insensitive. Format regexes run on
// the original text instead, since they may be whitespace sensitive.
func normalizeText(text string) string {
	normalized := strings.ToLower(text)
	normalized = whitespaceRE.ReplaceAllString(normalized, " ")
	return strings.TrimSpace(normalized)
}

func unidentifiedResult(reason string) models.IdentificationResult {
	return models.IdentificationResult{
		Confidence:      0,
		MatchMethod:     models.MatchTypeNone,
		MatchedPatterns: []string{},
		MatchDetails:    []models.MatchDetail{},
		IsIdentified:    false,
		Reason:          reason,
	}
}

// stableSortByPriorityDesc sorts patterns by descending priority, keeping
// input order on ties. Insertion sort keeps this dependency-free for the
// small pattern sets involved.
func stableSortByPriorityDesc(patterns []models.ForwarderPattern) {
	for i := 1; i < len(patterns); i++ {
		for j := i; j > 0 && patterns[j].Priority > patterns[j-1].Priority; j-- {
			patterns[j], patterns[j-1] = patterns[j-1], patterns[j]
		}
	}
}
