// Package mapper implements rule-driven field extraction from OCR text and
// structured document-intelligence output.
//
// Rules are grouped per target field and tried in descending priority order;
// the first rule yielding a non-empty normalized value resolves the field.
// Extraction supports direct structured-field lookup, regex capture and
// keyword proximity; positional extraction is declared but not implemented.
package mapper

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"forwarder-mapping-engine/internal/models"
)

// Base confidence per extraction method, before the rule's boost.
const (
	BaseConfidenceAzureField = 90.0
	BaseConfidenceRegex      = 85.0
	BaseConfidenceKeyword    = 75.0
	BaseConfidencePosition   = 70.0
)

// DefaultKeywordMaxDistance bounds the context window scanned after a
// keyword hit when the rule does not set its own distance.
const DefaultKeywordMaxDistance = 50

var keywordValueRE = regexp.MustCompile(`^([^\n\r|]{1,100})`)

// Mapper resolves field values from OCR text and structured fields. It holds
// no per-run state; concurrent MapFields calls are safe.
type Mapper struct {
	log *zap.Logger
}

// New creates a field mapper.
func New(log *zap.Logger) *Mapper {
	return &Mapper{log: log}
}

// MapFields runs every rule group against the inputs and returns the
// resolved fields, diagnostics for unresolved fields, and run statistics.
// Rule evaluation failures are logged and never abort the run.
func (m *Mapper) MapFields(
	ocrText string,
	rules []models.MappingRule,
	structuredFields map[string]interface{},
	forwarderID string,
) (map[string]models.FieldMappingResult, map[string]models.UnmappedFieldDetail, models.ExtractionStatistics) {
	startTime := time.Now()

	fieldMappings := make(map[string]models.FieldMappingResult)
	unmappedDetails := make(map[string]models.UnmappedFieldDetail)

	// Group rules by field name, preserving first-seen field order.
	rulesByField := make(map[string][]models.MappingRule)
	fieldOrder := make([]string, 0)
	for _, rule := range rules {
		if _, seen := rulesByField[rule.FieldName]; !seen {
			fieldOrder = append(fieldOrder, rule.FieldName)
		}
		rulesByField[rule.FieldName] = append(rulesByField[rule.FieldName], rule)
	}

	rulesApplied := 0
	for _, fieldName := range fieldOrder {
		fieldRules := rulesByField[fieldName]
		sort.SliceStable(fieldRules, func(i, j int) bool {
			return fieldRules[i].Priority > fieldRules[j].Priority
		})

		result := m.extractField(fieldName, fieldRules, ocrText, structuredFields, forwarderID)
		if result != nil {
			fieldMappings[fieldName] = *result
			rulesApplied++
			continue
		}

		attempts := make([]string, len(fieldRules))
		required := false
		for i, rule := range fieldRules {
			attempts[i] = methodName(rule.Extraction)
			required = required || rule.IsRequired
		}
		unmappedDetails[fieldName] = models.UnmappedFieldDetail{
			Reason:     "no_matching_rule",
			Attempts:   attempts,
			IsRequired: required,
		}
	}

	statistics := calculateStatistics(fieldMappings, len(rulesByField), time.Since(startTime).Milliseconds(), rulesApplied)

	return fieldMappings, unmappedDetails, statistics
}

// extractField tries the field's rules in order and returns the first result
// with a non-empty value, or nil when every rule fails.
func (m *Mapper) extractField(
	fieldName string,
	rules []models.MappingRule,
	ocrText string,
	structuredFields map[string]interface{},
	forwarderID string,
) *models.FieldMappingResult {
	for i := range rules {
		rule := &rules[i]

		result, err := m.extractWithRule(rule, ocrText, structuredFields, forwarderID)
		if err != nil {
			m.log.Warn("Rule evaluation failed",
				zap.String("field", fieldName),
				zap.String("method", methodName(rule.Extraction)),
				zap.String("rule_id", rule.ID),
				zap.Error(err),
			)
			continue
		}

		if result != nil && result.Value != "" {
			return result
		}
	}

	return nil
}

// extractWithRule dispatches on the rule's extraction pattern type. A pattern
// outside the closed type set is an internal inconsistency, reported as an
// error and treated as a failed rule by the caller.
func (m *Mapper) extractWithRule(
	rule *models.MappingRule,
	ocrText string,
	structuredFields map[string]interface{},
	forwarderID string,
) (*models.FieldMappingResult, error) {
	switch pattern := rule.Extraction.(type) {
	case models.AzureFieldPattern:
		return m.extractAzureField(pattern, structuredFields, rule), nil
	case models.RegexPattern:
		return m.extractRegex(pattern, ocrText, rule, forwarderID)
	case models.KeywordPattern:
		return m.extractKeyword(pattern, ocrText, rule, forwarderID), nil
	case models.PositionPattern:
		// Positional extraction needs page geometry this engine does not
		// model; the rule never produces a value.
		m.log.Debug("Position extraction not implemented", zap.String("field", rule.FieldName))
		return nil, nil
	case nil:
		return nil, fmt.Errorf("rule %s has no extraction pattern: %w", rule.ID, models.ErrInternalInconsistency)
	default:
		return nil, fmt.Errorf("rule %s: pattern type %T: %w", rule.ID, pattern, models.ErrInternalInconsistency)
	}
}

// extractAzureField looks the field up in the structured field bag. A missing
// field is no match, not an error.
func (m *Mapper) extractAzureField(
	pattern models.AzureFieldPattern,
	structuredFields map[string]interface{},
	rule *models.MappingRule,
) *models.FieldMappingResult {
	if structuredFields == nil || pattern.AzureFieldName == "" {
		return nil
	}

	rawValue, ok := lookupStructuredField(structuredFields, pattern.AzureFieldName)
	if !ok {
		return nil
	}

	confidence := clampConfidence(BaseConfidenceAzureField + pattern.ConfidenceBoost)
	normalized := m.normalizeValue(rawValue, rule.FieldName)
	isValid, validationError := m.validateValue(normalized, rule.ValidationPattern)

	return &models.FieldMappingResult{
		Value:            normalized,
		RawValue:         rawValue,
		Confidence:       confidence,
		Source:           models.SourceAzure,
		RuleID:           rule.ID,
		ExtractionMethod: models.MethodAzureField,
		IsValidated:      isValid,
		ValidationError:  validationError,
	}
}

// extractRegex searches the full OCR text with the rule's expression and
// extracts the configured capture group. A malformed expression is logged
// and treated as no match.
func (m *Mapper) extractRegex(
	pattern models.RegexPattern,
	ocrText string,
	rule *models.MappingRule,
	forwarderID string,
) (*models.FieldMappingResult, error) {
	if pattern.Pattern == "" {
		return nil, nil
	}

	re, err := regexp.Compile(regexFlagsPrefix(pattern.Flags) + pattern.Pattern)
	if err != nil {
		m.log.Warn("Invalid extraction regex",
			zap.String("pattern", pattern.Pattern),
			zap.String("rule_id", rule.ID),
			zap.Error(err),
		)
		return nil, nil
	}

	groups := re.FindStringSubmatch(ocrText)
	if groups == nil {
		return nil, nil
	}

	groupIndex := pattern.GroupIndex
	if groupIndex < 0 || groupIndex >= len(groups) {
		groupIndex = 0
	}
	rawValue := groups[groupIndex]
	if rawValue == "" {
		return nil, nil
	}

	confidence := clampConfidence(BaseConfidenceRegex + pattern.ConfidenceBoost)
	normalized := m.normalizeValue(rawValue, rule.FieldName)
	isValid, validationError := m.validateValue(normalized, rule.ValidationPattern)

	return &models.FieldMappingResult{
		Value:            normalized,
		RawValue:         rawValue,
		Confidence:       confidence,
		Source:           determineSource(forwarderID),
		RuleID:           rule.ID,
		ExtractionMethod: models.MethodRegex,
		IsValidated:      isValid,
		ValidationError:  validationError,
	}, nil
}

// extractKeyword scans for the first keyword occurrence and takes the value
// from a bounded window of the text following it. The window is measured in
// characters, not bytes, so multi-byte scripts get the same reach as ASCII.
func (m *Mapper) extractKeyword(
	pattern models.KeywordPattern,
	ocrText string,
	rule *models.MappingRule,
	forwarderID string,
) *models.FieldMappingResult {
	if len(pattern.Keywords) == 0 {
		return nil
	}

	maxDistance := pattern.MaxDistance
	if maxDistance <= 0 {
		maxDistance = DefaultKeywordMaxDistance
	}

	textLower := strings.ToLower(ocrText)

	for _, keyword := range pattern.Keywords {
		idx := strings.Index(textLower, strings.ToLower(keyword))
		if idx == -1 {
			continue
		}

		context := windowRunes(ocrText[idx+len(keyword):], maxDistance)

		value := extractValueAfterKeyword(context)
		if value == "" {
			continue
		}

		confidence := clampConfidence(BaseConfidenceKeyword + pattern.ConfidenceBoost)
		normalized := m.normalizeValue(value, rule.FieldName)
		isValid, validationError := m.validateValue(normalized, rule.ValidationPattern)

		return &models.FieldMappingResult{
			Value:            normalized,
			RawValue:         value,
			Confidence:       confidence,
			Source:           determineSource(forwarderID),
			RuleID:           rule.ID,
			ExtractionMethod: models.MethodKeyword,
			IsValidated:      isValid,
			ValidationError:  validationError,
		}
	}

	return nil
}

// windowRunes returns the prefix of s holding at most n runes.
func windowRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// extractValueAfterKeyword pulls the leading value run out of the context
// following a keyword: separators are trimmed, the value ends at a newline
// or pipe, and trailing punctuation is dropped.
func extractValueAfterKeyword(context string) string {
	context = strings.TrimLeft(context, " :：\t\n")
	if context == "" {
		return ""
	}

	match := keywordValueRE.FindStringSubmatch(context)
	if match == nil {
		return ""
	}

	value := strings.TrimSpace(match[1])
	value = strings.TrimRight(value, ",;: \t\n\r")
	return value
}

// lookupStructuredField finds a field by exact then case-insensitive name.
// The bag may nest its fields under a "fields" key; entries may be scalar
// values or records carrying "value"/"content".
func lookupStructuredField(bag map[string]interface{}, fieldName string) (string, bool) {
	fields := bag
	if nested, ok := bag["fields"].(map[string]interface{}); ok {
		fields = nested
	}

	if value, ok := fields[fieldName]; ok {
		return structuredFieldValue(value)
	}

	fieldNameLower := strings.ToLower(fieldName)
	for key, value := range fields {
		if strings.ToLower(key) == fieldNameLower {
			return structuredFieldValue(value)
		}
	}

	return "", false
}

// structuredFieldValue extracts a usable string from a field entry.
func structuredFieldValue(value interface{}) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case map[string]interface{}:
		if s := stringifyScalar(v["value"]); s != "" {
			return s, true
		}
		if s := stringifyScalar(v["content"]); s != "" {
			return s, true
		}
		return "", false
	default:
		s := stringifyScalar(v)
		return s, s != ""
	}
}

func stringifyScalar(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		// JSON numbers decode as float64; keep integral values clean.
		if v == math.Trunc(v) {
			return fmt.Sprintf("%.0f", v)
		}
		return fmt.Sprintf("%v", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// determineSource maps a run to its provenance tier. Rules are assumed to
// have been filtered to the right tier by the caller; a forwarder id means
// forwarder-specific rules are in play.
func determineSource(forwarderID string) models.ConfidenceSource {
	if forwarderID != "" {
		return models.SourceTier2
	}
	return models.SourceTier1
}

// validateValue checks the normalized value against the rule's validation
// pattern, anchored at the start. A failing value is still returned to the
// caller, just marked invalid; an invalid pattern fails open.
func (m *Mapper) validateValue(value, validationPattern string) (bool, string) {
	if validationPattern == "" || value == "" {
		return true, ""
	}

	re, err := regexp.Compile("^(?:" + validationPattern + ")")
	if err != nil {
		m.log.Warn("Invalid validation pattern, treating as valid",
			zap.String("pattern", validationPattern),
			zap.Error(err),
		)
		return true, ""
	}

	if !re.MatchString(value) {
		return false, fmt.Sprintf("Value does not match pattern: %s", validationPattern)
	}

	return true, ""
}

// regexFlagsPrefix converts the stored flag string to a Go regexp prefix.
func regexFlagsPrefix(flags string) string {
	var prefix strings.Builder
	if strings.Contains(flags, "i") {
		prefix.WriteString("(?i)")
	}
	if strings.Contains(flags, "m") {
		prefix.WriteString("(?m)")
	}
	if strings.Contains(flags, "s") {
		prefix.WriteString("(?s)")
	}
	return prefix.String()
}

func methodName(pattern models.ExtractionPattern) string {
	if pattern == nil {
		return "unknown"
	}
	return string(pattern.Method())
}

func clampConfidence(confidence float64) float64 {
	if confidence > 100 {
		return 100
	}
	if confidence < 0 {
		return 0
	}
	return confidence
}

// calculateStatistics aggregates a mapping run. Average confidence covers
// mapped fields only and is rounded to two decimals.
func calculateStatistics(
	fieldMappings map[string]models.FieldMappingResult,
	totalFields int,
	processingTimeMS int64,
	rulesApplied int,
) models.ExtractionStatistics {
	mappedCount := len(fieldMappings)

	avgConfidence := 0.0
	if mappedCount > 0 {
		total := 0.0
		for _, result := range fieldMappings {
			total += result.Confidence
		}
		avgConfidence = math.Round(total/float64(mappedCount)*100) / 100
	}

	return models.ExtractionStatistics{
		TotalFields:       totalFields,
		MappedFields:      mappedCount,
		UnmappedFields:    totalFields - mappedCount,
		AverageConfidence: avgConfidence,
		ProcessingTimeMS:  processingTimeMS,
		RulesApplied:      rulesApplied,
	}
}
