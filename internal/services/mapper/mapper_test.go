package mapper

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"forwarder-mapping-engine/internal/models"
)

const sampleInvoiceText = `DHL Express
Invoice Number: INV-2024-0042
Invoice Date: 12/18/2024
Total Amount: $1,234.56
Gross Weight: 25.5 kg
Tracking: 1234567890`

func newTestMapper() *Mapper {
	return New(zap.NewNop())
}

// regexRule builds a regex mapping rule for a single field.
func regexRule(id, fieldName, pattern string, priority int) models.MappingRule {
	return models.MappingRule{
		ID:         id,
		FieldName:  fieldName,
		FieldLabel: fieldName,
		Extraction: models.RegexPattern{Pattern: pattern, Flags: "i", GroupIndex: 1},
		Priority:   priority,
	}
}

func TestMapFields_EmptyRules(t *testing.T) {
	m := newTestMapper()

	mapped, unmapped, stats := m.MapFields(sampleInvoiceText, nil, nil, "")

	assert.Empty(t, mapped)
	assert.Empty(t, unmapped)
	assert.Equal(t, 0, stats.TotalFields)
	assert.Equal(t, 0, stats.MappedFields)
	assert.Equal(t, 0, stats.UnmappedFields)
	assert.Equal(t, 0.0, stats.AverageConfidence)
}

func TestMapFields_RegexExtraction(t *testing.T) {
	m := newTestMapper()
	rules := []models.MappingRule{
		regexRule("r1", "invoiceId", `Invoice Number[:\s]+(\S+)`, 10),
	}

	mapped, unmapped, stats := m.MapFields(sampleInvoiceText, rules, nil, "")

	assert.Empty(t, unmapped)
	result, ok := mapped["invoiceId"]
	assert.True(t, ok)
	assert.Equal(t, "INV-2024-0042", result.Value)
	assert.Equal(t, "INV-2024-0042", result.RawValue)
	assert.Equal(t, BaseConfidenceRegex, result.Confidence)
	assert.Equal(t, models.SourceTier1, result.Source)
	assert.Equal(t, models.MethodRegex, result.ExtractionMethod)
	assert.Equal(t, "r1", result.RuleID)
	assert.True(t, result.IsValidated)

	assert.Equal(t, 1, stats.TotalFields)
	assert.Equal(t, 1, stats.MappedFields)
	assert.Equal(t, 1, stats.RulesApplied)
}

func TestMapFields_ForwarderSpecificSource(t *testing.T) {
	m := newTestMapper()
	rules := []models.MappingRule{
		regexRule("r1", "invoiceId", `Invoice Number[:\s]+(\S+)`, 10),
	}

	mapped, _, _ := m.MapFields(sampleInvoiceText, rules, nil, "fwd-dhl")

	assert.Equal(t, models.SourceTier2, mapped["invoiceId"].Source)
}

func TestMapFields_PriorityOrderWithinField(t *testing.T) {
	m := newTestMapper()
	rules := []models.MappingRule{
		regexRule("low", "invoiceId", `Invoice Number[:\s]+(\S+)`, 10),
		regexRule("high", "invoiceId", `INV-(\d{4})-\d+`, 50),
	}

	mapped, _, _ := m.MapFields(sampleInvoiceText, rules, nil, "")

	// The higher-priority rule wins even though it appears second.
	assert.Equal(t, "high", mapped["invoiceId"].RuleID)
	assert.Equal(t, "2024", mapped["invoiceId"].Value)
}

func TestMapFields_FallsThroughToNextRule(t *testing.T) {
	m := newTestMapper()
	rules := []models.MappingRule{
		regexRule("miss", "invoiceId", `Reference No[:\s]+(\S+)`, 50),
		regexRule("hit", "invoiceId", `Invoice Number[:\s]+(\S+)`, 10),
	}

	mapped, unmapped, _ := m.MapFields(sampleInvoiceText, rules, nil, "")

	assert.Empty(t, unmapped)
	assert.Equal(t, "hit", mapped["invoiceId"].RuleID)
}

func TestMapFields_AzureFieldExtraction(t *testing.T) {
	m := newTestMapper()
	structured := map[string]interface{}{
		"fields": map[string]interface{}{
			"InvoiceId": map[string]interface{}{
				"value":      "INV-2024-0042",
				"confidence": 0.98,
			},
		},
	}
	rules := []models.MappingRule{{
		ID:         "a1",
		FieldName:  "invoiceId",
		FieldLabel: "Invoice ID",
		Extraction: models.AzureFieldPattern{AzureFieldName: "InvoiceId"},
		Priority:   100,
	}}

	mapped, _, _ := m.MapFields(sampleInvoiceText, rules, structured, "")

	result := mapped["invoiceId"]
	assert.Equal(t, "INV-2024-0042", result.Value)
	assert.Equal(t, BaseConfidenceAzureField, result.Confidence)
	assert.Equal(t, models.SourceAzure, result.Source)
	assert.Equal(t, models.MethodAzureField, result.ExtractionMethod)
}

func TestMapFields_AzureFieldCaseInsensitiveLookup(t *testing.T) {
	m := newTestMapper()
	structured := map[string]interface{}{
		"invoicetotal": map[string]interface{}{"content": "1024.00"},
	}
	rules := []models.MappingRule{{
		ID:         "a1",
		FieldName:  "invoiceTotal",
		Extraction: models.AzureFieldPattern{AzureFieldName: "InvoiceTotal"},
		Priority:   100,
	}}

	mapped, _, _ := m.MapFields("", rules, structured, "")

	assert.Equal(t, "1024.00", mapped["invoiceTotal"].Value)
}

func TestMapFields_AzureFieldMissingFallsThrough(t *testing.T) {
	m := newTestMapper()
	rules := []models.MappingRule{
		{
			ID:         "a1",
			FieldName:  "invoiceId",
			Extraction: models.AzureFieldPattern{AzureFieldName: "InvoiceId"},
			Priority:   100,
		},
		regexRule("r1", "invoiceId", `Invoice Number[:\s]+(\S+)`, 10),
	}

	// No structured fields at all: the azure rule yields nothing and the
	// regex rule resolves the field.
	mapped, _, _ := m.MapFields(sampleInvoiceText, rules, nil, "")

	result := mapped["invoiceId"]
	assert.Equal(t, "r1", result.RuleID)
	assert.Equal(t, models.MethodRegex, result.ExtractionMethod)
	assert.Equal(t, models.SourceTier1, result.Source)
}

func TestMapFields_KeywordExtraction(t *testing.T) {
	m := newTestMapper()
	rules := []models.MappingRule{{
		ID:         "k1",
		FieldName:  "invoiceId",
		Extraction: models.KeywordPattern{Keywords: []string{"Invoice Number"}},
		Priority:   10,
	}}

	mapped, _, _ := m.MapFields(sampleInvoiceText, rules, nil, "")

	result := mapped["invoiceId"]
	assert.Equal(t, "INV-2024-0042", result.Value)
	assert.Equal(t, BaseConfidenceKeyword, result.Confidence)
	assert.Equal(t, models.MethodKeyword, result.ExtractionMethod)
}

func TestMapFields_KeywordStopsAtNewline(t *testing.T) {
	m := newTestMapper()
	rules := []models.MappingRule{{
		ID:         "k1",
		FieldName:  "vendor",
		Extraction: models.KeywordPattern{Keywords: []string{"Shipper"}, MaxDistance: 80},
		Priority:   10,
	}}

	text := "Shipper: Acme Freight GmbH\nConsignee: Other Corp"
	mapped, _, _ := m.MapFields(text, rules, nil, "")

	assert.Equal(t, "Acme Freight GmbH", mapped["vendor"].Value)
}

func TestMapFields_KeywordWindowCountsCharacters(t *testing.T) {
	m := newTestMapper()
	value := strings.Repeat("貨", 30)
	rules := []models.MappingRule{{
		ID:         "k1",
		FieldName:  "reference",
		Extraction: models.KeywordPattern{Keywords: []string{"參考"}, MaxDistance: 31},
		Priority:   10,
	}}

	// The fullwidth colon takes one character of the 31-character window;
	// the remaining 30 cover the whole value.
	text := "參考：" + value + "\n託運人: 順豐速運"
	mapped, _, _ := m.MapFields(text, rules, nil, "")

	result, ok := mapped["reference"]
	assert.True(t, ok)
	assert.Equal(t, value, result.Value)
	assert.Equal(t, 30, utf8.RuneCountInString(result.Value))
}

func TestMapFields_KeywordTriesAlternatives(t *testing.T) {
	m := newTestMapper()
	rules := []models.MappingRule{{
		ID:         "k1",
		FieldName:  "invoiceId",
		Extraction: models.KeywordPattern{Keywords: []string{"Rechnung", "Invoice Number"}},
		Priority:   10,
	}}

	mapped, _, _ := m.MapFields(sampleInvoiceText, rules, nil, "")

	assert.Equal(t, "INV-2024-0042", mapped["invoiceId"].Value)
}

func TestMapFields_ConfidenceBoostApplied(t *testing.T) {
	m := newTestMapper()
	rules := []models.MappingRule{{
		ID:         "r1",
		FieldName:  "invoiceId",
		Extraction: models.RegexPattern{Pattern: `Invoice Number[:\s]+(\S+)`, GroupIndex: 1, ConfidenceBoost: 10},
		Priority:   10,
	}}

	mapped, _, _ := m.MapFields(sampleInvoiceText, rules, nil, "")

	assert.Equal(t, BaseConfidenceRegex+10, mapped["invoiceId"].Confidence)
}

func TestMapFields_ConfidenceCappedAt100(t *testing.T) {
	m := newTestMapper()
	rules := []models.MappingRule{{
		ID:         "r1",
		FieldName:  "invoiceId",
		Extraction: models.RegexPattern{Pattern: `Invoice Number[:\s]+(\S+)`, GroupIndex: 1, ConfidenceBoost: 50},
		Priority:   10,
	}}

	mapped, _, _ := m.MapFields(sampleInvoiceText, rules, nil, "")

	assert.Equal(t, 100.0, mapped["invoiceId"].Confidence)
}

func TestMapFields_PositionRuleNeverResolves(t *testing.T) {
	m := newTestMapper()
	rules := []models.MappingRule{{
		ID:         "p1",
		FieldName:  "invoiceId",
		Extraction: models.PositionPattern{Page: 1, Region: models.PositionRegion{Top: 0, Left: 0, Width: 0.5, Height: 0.2}},
		Priority:   10,
		IsRequired: true,
	}}

	mapped, unmapped, stats := m.MapFields(sampleInvoiceText, rules, nil, "")

	assert.Empty(t, mapped)
	detail, ok := unmapped["invoiceId"]
	assert.True(t, ok)
	assert.Equal(t, "no_matching_rule", detail.Reason)
	assert.Equal(t, []string{"position"}, detail.Attempts)
	assert.True(t, detail.IsRequired)
	assert.Equal(t, 1, stats.UnmappedFields)
}

func TestMapFields_InvalidRegexTreatedAsNoMatch(t *testing.T) {
	m := newTestMapper()
	rules := []models.MappingRule{
		regexRule("bad", "invoiceId", `[unclosed`, 50),
		regexRule("good", "invoiceId", `Invoice Number[:\s]+(\S+)`, 10),
	}

	mapped, unmapped, _ := m.MapFields(sampleInvoiceText, rules, nil, "")

	assert.Empty(t, unmapped)
	assert.Equal(t, "good", mapped["invoiceId"].RuleID)
}

func TestMapFields_InvalidGroupIndexUsesWholeMatch(t *testing.T) {
	m := newTestMapper()
	rules := []models.MappingRule{{
		ID:         "r1",
		FieldName:  "tracking",
		Extraction: models.RegexPattern{Pattern: `\b\d{10}\b`, GroupIndex: 3},
		Priority:   10,
	}}

	mapped, _, _ := m.MapFields(sampleInvoiceText, rules, nil, "")

	assert.Equal(t, "1234567890", mapped["tracking"].Value)
}

func TestMapFields_ValidationFailureKeepsValue(t *testing.T) {
	m := newTestMapper()
	rules := []models.MappingRule{{
		ID:                "r1",
		FieldName:         "invoiceId",
		Extraction:        models.RegexPattern{Pattern: `Invoice Number[:\s]+(\S+)`, GroupIndex: 1},
		ValidationPattern: `\d{6}$`,
		Priority:          10,
	}}

	mapped, _, _ := m.MapFields(sampleInvoiceText, rules, nil, "")

	result := mapped["invoiceId"]
	assert.Equal(t, "INV-2024-0042", result.Value)
	assert.False(t, result.IsValidated)
	assert.Contains(t, result.ValidationError, `\d{6}$`)
}

func TestMapFields_InvalidValidationPatternFailsOpen(t *testing.T) {
	m := newTestMapper()
	rules := []models.MappingRule{{
		ID:                "r1",
		FieldName:         "invoiceId",
		Extraction:        models.RegexPattern{Pattern: `Invoice Number[:\s]+(\S+)`, GroupIndex: 1},
		ValidationPattern: `[unclosed`,
		Priority:          10,
	}}

	mapped, _, _ := m.MapFields(sampleInvoiceText, rules, nil, "")

	result := mapped["invoiceId"]
	assert.True(t, result.IsValidated)
	assert.Empty(t, result.ValidationError)
}

func TestMapFields_NormalizationApplied(t *testing.T) {
	m := newTestMapper()
	rules := []models.MappingRule{
		regexRule("d1", "invoiceDate", `Invoice Date[:\s]+(\S+)`, 10),
		regexRule("t1", "invoiceTotal", `Total Amount[:\s]+(\S+)`, 10),
		regexRule("w1", "grossWeight", `Gross Weight[:\s]+([\d.,]+\s*kg)`, 10),
	}

	mapped, _, _ := m.MapFields(sampleInvoiceText, rules, nil, "")

	assert.Equal(t, "2024-12-18", mapped["invoiceDate"].Value)
	assert.Equal(t, "12/18/2024", mapped["invoiceDate"].RawValue)
	assert.Equal(t, "1234.56", mapped["invoiceTotal"].Value)
	assert.Equal(t, "$1,234.56", mapped["invoiceTotal"].RawValue)
	assert.Equal(t, "25.50", mapped["grossWeight"].Value)
}

func TestMapFields_Statistics(t *testing.T) {
	m := newTestMapper()
	rules := []models.MappingRule{
		regexRule("r1", "invoiceId", `Invoice Number[:\s]+(\S+)`, 10),
		regexRule("r2", "missing", `Nothing Matches This[:\s]+(\S+)`, 10),
	}

	mapped, unmapped, stats := m.MapFields(sampleInvoiceText, rules, nil, "")

	assert.Len(t, mapped, 1)
	assert.Len(t, unmapped, 1)
	assert.Equal(t, 2, stats.TotalFields)
	assert.Equal(t, 1, stats.MappedFields)
	assert.Equal(t, 1, stats.UnmappedFields)
	assert.Equal(t, 1, stats.RulesApplied)
	assert.Equal(t, BaseConfidenceRegex, stats.AverageConfidence)
	assert.GreaterOrEqual(t, stats.ProcessingTimeMS, int64(0))
}

func TestMapFields_AverageConfidenceRounded(t *testing.T) {
	m := newTestMapper()
	rules := []models.MappingRule{
		{
			ID:         "r1",
			FieldName:  "invoiceId",
			Extraction: models.RegexPattern{Pattern: `Invoice Number[:\s]+(\S+)`, GroupIndex: 1},
			Priority:   10,
		},
		{
			ID:         "k1",
			FieldName:  "tracking",
			Extraction: models.KeywordPattern{Keywords: []string{"Tracking"}, ConfidenceBoost: 0.55},
			Priority:   10,
		},
	}

	_, _, stats := m.MapFields(sampleInvoiceText, rules, nil, "")

	// (85 + 75.55) / 2 = 80.275, rounded to two decimals.
	assert.Equal(t, 80.28, stats.AverageConfidence)
}

func TestMapFields_NilExtractionPatternFailsRule(t *testing.T) {
	m := newTestMapper()
	rules := []models.MappingRule{
		{ID: "broken", FieldName: "invoiceId", Extraction: nil, Priority: 50},
		regexRule("good", "invoiceId", `Invoice Number[:\s]+(\S+)`, 10),
	}

	mapped, unmapped, _ := m.MapFields(sampleInvoiceText, rules, nil, "")

	// The broken rule is skipped without aborting the run.
	assert.Empty(t, unmapped)
	assert.Equal(t, "good", mapped["invoiceId"].RuleID)
}
