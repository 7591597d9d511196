package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"forwarder-mapping-engine/internal/models"
)

// mockPatterns builds a small carrier pattern set for identification tests.
func mockPatterns() []models.ForwarderPattern {
	return []models.ForwarderPattern{
		{
			ForwarderID: "fwd-dhl",
			Code:        "DHL",
			Name:        "dhl",
			DisplayName: "DHL Express",
			Names:       []string{"DHL", "DHL Express", "DHL Global Forwarding"},
			Keywords:    []string{"waybill", "express worldwide", "dhl.com"},
			Formats:     []string{`\b\d{10}\b`},
			LogoText:    []string{"excellence. simply delivered"},
			Priority:    100,
		},
		{
			ForwarderID: "fwd-fdx",
			Code:        "FDX",
			Name:        "fedex",
			DisplayName: "FedEx",
			Names:       []string{"FedEx", "Federal Express"},
			Keywords:    []string{"tracking id", "fedex.com", "air waybill"},
			Formats:     []string{`\b\d{12}\b`},
			LogoText:    []string{"the world on time"},
			Priority:    90,
		},
		{
			ForwarderID: "fwd-unknown",
			Code:        "UNKNOWN",
			Name:        "unknown",
			DisplayName: "Unknown Forwarder",
			Names:       []string{"invoice", "shipment"},
			Keywords:    []string{"total", "date"},
			Priority:    0,
		},
	}
}

func newTestMatcher(patterns []models.ForwarderPattern) *Matcher {
	return New(patterns, zap.NewNop())
}

func TestIdentify_EmptyText(t *testing.T) {
	m := newTestMatcher(mockPatterns())

	for _, text := range []string{"", "   ", "\n\t  \n"} {
		result := m.Identify(text)

		assert.False(t, result.IsIdentified)
		assert.Equal(t, 0.0, result.Confidence)
		assert.Equal(t, ReasonEmptyText, result.Reason)
		assert.Empty(t, result.ForwarderCode)
		assert.Empty(t, result.MatchDetails)
	}
}

func TestIdentify_NoMatch(t *testing.T) {
	m := newTestMatcher(mockPatterns())

	result := m.Identify("completely unrelated grocery receipt text")

	assert.False(t, result.IsIdentified)
	assert.Equal(t, 0.0, result.Confidence)
	assert.Equal(t, ReasonNoMatch, result.Reason)
	assert.Empty(t, result.ForwarderCode)
}

func TestIdentify_StrongNameAndKeywordMatch(t *testing.T) {
	m := newTestMatcher(mockPatterns())

	text := "DHL Express\nWaybill Number: 1234567890\nVisit dhl.com for tracking"
	result := m.Identify(text)

	assert.True(t, result.IsIdentified)
	assert.Equal(t, "DHL", result.ForwarderCode)
	assert.Equal(t, "fwd-dhl", result.ForwarderID)
	assert.Equal(t, "DHL Express", result.ForwarderName)
	assert.Equal(t, models.MatchTypeName, result.MatchMethod)
	assert.GreaterOrEqual(t, result.Confidence, ThresholdAutoIdentify)
	assert.Empty(t, result.Reason)
}

func TestIdentify_ConfidenceWithinBounds(t *testing.T) {
	m := newTestMatcher(mockPatterns())

	// Every signal fires: all names, all keywords, a format and a logo line.
	text := "DHL DHL Express DHL Global Forwarding waybill express worldwide " +
		"dhl.com 1234567890 excellence. simply delivered"
	result := m.Identify(text)

	assert.True(t, result.IsIdentified)
	assert.LessOrEqual(t, result.Confidence, 100.0)
	assert.GreaterOrEqual(t, result.Confidence, 0.0)
}

func TestIdentify_ExtraNameVariantsAddBonus(t *testing.T) {
	m := newTestMatcher(mockPatterns())

	// "DHL Express" also contains "DHL", so two name variants match:
	// 40 for the first plus 5 for the extra, then 15 for the keyword.
	result := m.Identify("DHL Express waybill shipment")

	assert.Equal(t, ScoreNameMatch+ScoreBonusPerMatch+ScoreKeywordMatch, result.Confidence)
	assert.Equal(t, models.MatchTypeName, result.MatchMethod)

	nameScores := make([]float64, 0)
	for _, detail := range result.MatchDetails {
		if detail.Type == models.MatchTypeName {
			nameScores = append(nameScores, detail.Score)
		}
	}
	assert.Equal(t, []float64{ScoreNameMatch, ScoreBonusPerMatch}, nameScores)
}

func TestIdentify_KeywordScoreCapped(t *testing.T) {
	patterns := []models.ForwarderPattern{{
		ForwarderID: "fwd-kw",
		Code:        "KW",
		DisplayName: "Keyword Carrier",
		Keywords:    []string{"alpha", "bravo", "charlie", "delta"},
		Priority:    10,
	}}
	m := newTestMatcher(patterns)

	result := m.Identify("alpha bravo charlie delta")

	// Four keyword hits at 15 each would be 60; the cap holds it at 30,
	// which sits below the review threshold.
	assert.False(t, result.IsIdentified)
	assert.Equal(t, ReasonNoMatch, result.Reason)

	// With a name match on top the same keywords still only contribute 30.
	patterns[0].Names = []string{"keyword carrier"}
	m = newTestMatcher(patterns)
	result = m.Identify("keyword carrier alpha bravo charlie delta")

	assert.Equal(t, ScoreNameMatch+ScoreKeywordMax, result.Confidence)
}

func TestIdentify_KeywordBeyondCapRecordedWithZeroScore(t *testing.T) {
	patterns := []models.ForwarderPattern{{
		ForwarderID: "fwd-kw",
		Code:        "KW",
		DisplayName: "Keyword Carrier",
		Names:       []string{"keyword carrier"},
		Keywords:    []string{"alpha", "bravo", "charlie"},
		Priority:    10,
	}}
	m := newTestMatcher(patterns)

	result := m.Identify("keyword carrier alpha bravo charlie")

	keywordScores := make([]float64, 0)
	for _, detail := range result.MatchDetails {
		if detail.Type == models.MatchTypeKeyword {
			keywordScores = append(keywordScores, detail.Score)
		}
	}

	assert.Equal(t, []float64{15, 15, 0}, keywordScores)
	assert.Contains(t, result.MatchedPatterns, "keyword:charlie")
}

func TestIdentify_FormatMatchSingleBonus(t *testing.T) {
	patterns := []models.ForwarderPattern{{
		ForwarderID: "fwd-fmt",
		Code:        "FMT",
		DisplayName: "Format Carrier",
		Names:       []string{"format carrier"},
		Formats:     []string{`\bAB\d{6}\b`, `\b\d{8}\b`},
		Priority:    10,
	}}
	m := newTestMatcher(patterns)

	// Both formats are present; only the first contributes.
	result := m.Identify("format carrier ref AB123456 and 12345678")

	assert.Equal(t, ScoreNameMatch+ScoreFormatMatch, result.Confidence)

	formatDetails := make([]models.MatchDetail, 0)
	for _, detail := range result.MatchDetails {
		if detail.Type == models.MatchTypeFormat {
			formatDetails = append(formatDetails, detail)
		}
	}
	assert.Len(t, formatDetails, 1)
	assert.Equal(t, "AB123456", formatDetails[0].MatchedText)
	assert.Equal(t, `\bAB\d{6}\b`, formatDetails[0].Pattern)
}

func TestIdentify_InvalidFormatRegexSkipped(t *testing.T) {
	patterns := []models.ForwarderPattern{{
		ForwarderID: "fwd-bad",
		Code:        "BAD",
		DisplayName: "Bad Format Carrier",
		Names:       []string{"bad format carrier"},
		Formats:     []string{`[unclosed`, `\b\d{4}\b`},
		Priority:    10,
	}}
	m := newTestMatcher(patterns)

	result := m.Identify("bad format carrier ref 1234")

	// The malformed first format is skipped, the second still scores.
	assert.Equal(t, ScoreNameMatch+ScoreFormatMatch, result.Confidence)
}

func TestIdentify_LogoTextSingleBonus(t *testing.T) {
	patterns := []models.ForwarderPattern{{
		ForwarderID: "fwd-logo",
		Code:        "LOGO",
		DisplayName: "Logo Carrier",
		Names:       []string{"logo carrier"},
		LogoText:    []string{"we deliver", "on time"},
		Priority:    10,
	}}
	m := newTestMatcher(patterns)

	// Both logo phrases are present; only the first contributes, and the
	// total lands exactly on the review threshold.
	result := m.Identify("logo carrier we deliver on time")

	assert.Equal(t, ScoreNameMatch+ScoreLogoTextMatch, result.Confidence)
	assert.Len(t, result.MatchDetails, 2)
	assert.Equal(t, models.MatchTypeLogoText, result.MatchDetails[1].Type)
	assert.Equal(t, "we deliver", result.MatchDetails[1].Pattern)
}

func TestIdentify_CaseAndWhitespaceInsensitive(t *testing.T) {
	m := newTestMatcher(mockPatterns())

	upper := m.Identify("DHL EXPRESS WAYBILL 1234567890")
	spaced := m.Identify("dhl   express\n\nwaybill\t1234567890")

	assert.Equal(t, upper.Confidence, spaced.Confidence)
	assert.Equal(t, upper.ForwarderCode, spaced.ForwarderCode)
}

func TestIdentify_UnknownPatternNeverWins(t *testing.T) {
	m := newTestMatcher(mockPatterns())

	// Text matching only the UNKNOWN catch-all pattern stays unidentified.
	result := m.Identify("invoice shipment total date")

	assert.False(t, result.IsIdentified)
	assert.Empty(t, result.ForwarderCode)
	assert.Equal(t, ReasonNoMatch, result.Reason)
}

func TestIdentify_TieKeepsHigherPriority(t *testing.T) {
	patterns := []models.ForwarderPattern{
		{
			ForwarderID: "fwd-low",
			Code:        "LOW",
			DisplayName: "Low Priority",
			Names:       []string{"acme logistics"},
			Keywords:    []string{"shipment ref"},
			Priority:    10,
		},
		{
			ForwarderID: "fwd-high",
			Code:        "HIGH",
			DisplayName: "High Priority",
			Names:       []string{"acme logistics"},
			Keywords:    []string{"shipment ref"},
			Priority:    50,
		},
	}
	m := newTestMatcher(patterns)

	// Identical scores; the strictly-greater comparison keeps the first
	// evaluated candidate, which is the higher priority one.
	result := m.Identify("acme logistics shipment ref 42")

	assert.Equal(t, "HIGH", result.ForwarderCode)
}

func TestIdentify_Deterministic(t *testing.T) {
	m := newTestMatcher(mockPatterns())
	text := "FedEx air waybill tracking id 123456789012"

	first := m.Identify(text)
	for i := 0; i < 5; i++ {
		again := m.Identify(text)
		assert.Equal(t, first, again)
	}
}

func TestIdentify_NeedsReviewBand(t *testing.T) {
	patterns := []models.ForwarderPattern{{
		ForwarderID: "fwd-mid",
		Code:        "MID",
		DisplayName: "Mid Carrier",
		Names:       []string{"mid carrier"},
		Keywords:    []string{"midkey"},
		Priority:    10,
	}}
	m := newTestMatcher(patterns)

	// 40 name + 15 keyword = 55: above review threshold, below auto.
	result := m.Identify("mid carrier midkey")

	assert.Equal(t, 55.0, result.Confidence)
	assert.False(t, result.IsIdentified)
	assert.Equal(t, "MID", result.ForwarderCode)
	assert.Empty(t, result.Reason)
}

func TestNew_SortsByPriorityDesc(t *testing.T) {
	patterns := []models.ForwarderPattern{
		{Code: "C", Priority: 5},
		{Code: "A", Priority: 100},
		{Code: "B", Priority: 50},
	}
	m := newTestMatcher(patterns)

	sorted := m.Patterns()
	assert.Equal(t, "A", sorted[0].Code)
	assert.Equal(t, "B", sorted[1].Code)
	assert.Equal(t, "C", sorted[2].Code)

	// The input slice is not mutated.
	assert.Equal(t, "C", patterns[0].Code)
}

func TestPatterns_ReturnsCopy(t *testing.T) {
	m := newTestMatcher(mockPatterns())

	leaked := m.Patterns()
	leaked[0].Code = "TAMPERED"

	assert.Equal(t, "DHL", m.Patterns()[0].Code)
}
