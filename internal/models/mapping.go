// Package models defines the data structures for the forwarder mapping engine.
package models

import (
	"encoding/json"
	"fmt"
)

// ExtractionMethod identifies how a mapping rule extracts its value.
type ExtractionMethod string

const (
	MethodRegex      ExtractionMethod = "regex"
	MethodKeyword    ExtractionMethod = "keyword"
	MethodPosition   ExtractionMethod = "position"
	MethodAzureField ExtractionMethod = "azure_field"
)

// ConfidenceSource indicates which tier produced a field mapping.
type ConfidenceSource string

const (
	SourceTier1 ConfidenceSource = "tier1" // universal rules
	SourceTier2 ConfidenceSource = "tier2" // forwarder-specific rules
	SourceTier3 ConfidenceSource = "tier3" // reserved for learned classification
	SourceAzure ConfidenceSource = "azure" // structured OCR output
)

// ExtractionPattern is the closed set of per-method extraction parameters.
// Exactly one concrete type exists per ExtractionMethod; dispatch is a type
// switch, so an unsupported method can only enter through decoding, where it
// is rejected with UnsupportedMethodError.
type ExtractionPattern interface {
	Method() ExtractionMethod
	Boost() float64
}

// RegexPattern extracts a capture group from the full OCR text.
type RegexPattern struct {
	Pattern         string  `json:"pattern"`
	Flags           string  `json:"flags,omitempty"`
	GroupIndex      int     `json:"group_index,omitempty"`
	ConfidenceBoost float64 `json:"confidence_boost,omitempty"`
}

func (p RegexPattern) Method() ExtractionMethod { return MethodRegex }
func (p RegexPattern) Boost() float64           { return p.ConfidenceBoost }

// KeywordPattern extracts the value following the first keyword occurrence.
type KeywordPattern struct {
	Keywords        []string `json:"keywords"`
	ProximityWords  []string `json:"proximity_words,omitempty"`
	MaxDistance     int      `json:"max_distance,omitempty"`
	ConfidenceBoost float64  `json:"confidence_boost,omitempty"`
}

func (p KeywordPattern) Method() ExtractionMethod { return MethodKeyword }
func (p KeywordPattern) Boost() float64           { return p.ConfidenceBoost }

// PositionRegion is a normalized page region.
type PositionRegion struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PositionPattern declares a page-region extraction. Region geometry is
// carried for rule round-tripping but positional extraction is not
// implemented; rules using it never produce a value.
type PositionPattern struct {
	Page            int            `json:"page,omitempty"`
	Region          PositionRegion `json:"region"`
	ConfidenceBoost float64        `json:"confidence_boost,omitempty"`
}

func (p PositionPattern) Method() ExtractionMethod { return MethodPosition }
func (p PositionPattern) Boost() float64           { return p.ConfidenceBoost }

// AzureFieldPattern maps a field directly from the structured OCR field bag.
type AzureFieldPattern struct {
	AzureFieldName  string  `json:"azure_field_name"`
	FallbackPattern string  `json:"fallback_pattern,omitempty"`
	ConfidenceBoost float64 `json:"confidence_boost,omitempty"`
}

func (p AzureFieldPattern) Method() ExtractionMethod { return MethodAzureField }
func (p AzureFieldPattern) Boost() float64           { return p.ConfidenceBoost }

// DecodeExtractionPattern decodes the tagged JSON form of an extraction
// pattern. A missing method defaults to regex; an unrecognized method is an
// UnsupportedMethodError.
func DecodeExtractionPattern(data []byte) (ExtractionPattern, error) {
	var tag struct {
		Method ExtractionMethod `json:"method"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, fmt.Errorf("failed to decode extraction pattern: %w", err)
	}

	if tag.Method == "" {
		tag.Method = MethodRegex
	}

	switch tag.Method {
	case MethodRegex:
		var p RegexPattern
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to decode regex pattern: %w", err)
		}
		return p, nil
	case MethodKeyword:
		var p KeywordPattern
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to decode keyword pattern: %w", err)
		}
		return p, nil
	case MethodPosition:
		var p PositionPattern
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to decode position pattern: %w", err)
		}
		return p, nil
	case MethodAzureField:
		var p AzureFieldPattern
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to decode azure field pattern: %w", err)
		}
		return p, nil
	default:
		return nil, &UnsupportedMethodError{Method: string(tag.Method)}
	}
}

// EncodeExtractionPattern encodes a pattern back to its tagged JSON form.
func EncodeExtractionPattern(p ExtractionPattern) ([]byte, error) {
	if p == nil {
		return nil, ErrInternalInconsistency
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode extraction pattern: %w", err)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to encode extraction pattern: %w", err)
	}
	fields["method"] = string(p.Method())

	return json.Marshal(fields)
}

// MappingRule is one extraction instruction for one target field. Multiple
// rules may target the same field; higher priority is tried first.
type MappingRule struct {
	ID                string            `json:"id"`
	ForwarderID       string            `json:"forwarder_id,omitempty"`
	FieldName         string            `json:"field_name"`
	FieldLabel        string            `json:"field_label"`
	Extraction        ExtractionPattern `json:"-"`
	Priority          int               `json:"priority"`
	IsRequired        bool              `json:"is_required"`
	ValidationPattern string            `json:"validation_pattern,omitempty"`
	DefaultValue      string            `json:"default_value,omitempty"`
	Category          string            `json:"category,omitempty"`
}

// mappingRuleJSON is the wire form of MappingRule with the extraction
// pattern as raw tagged JSON.
type mappingRuleJSON struct {
	ID                string          `json:"id"`
	ForwarderID       string          `json:"forwarder_id,omitempty"`
	FieldName         string          `json:"field_name"`
	FieldLabel        string          `json:"field_label"`
	ExtractionPattern json.RawMessage `json:"extraction_pattern"`
	Priority          int             `json:"priority"`
	IsRequired        bool            `json:"is_required"`
	ValidationPattern string          `json:"validation_pattern,omitempty"`
	DefaultValue      string          `json:"default_value,omitempty"`
	Category          string          `json:"category,omitempty"`
}

// UnmarshalJSON decodes a rule, resolving the tagged extraction pattern.
func (r *MappingRule) UnmarshalJSON(data []byte) error {
	var aux mappingRuleJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var extraction ExtractionPattern
	if len(aux.ExtractionPattern) > 0 {
		var err error
		extraction, err = DecodeExtractionPattern(aux.ExtractionPattern)
		if err != nil {
			return fmt.Errorf("rule %s: %w", aux.ID, err)
		}
	}

	r.ID = aux.ID
	r.ForwarderID = aux.ForwarderID
	r.FieldName = aux.FieldName
	r.FieldLabel = aux.FieldLabel
	r.Extraction = extraction
	r.Priority = aux.Priority
	r.IsRequired = aux.IsRequired
	r.ValidationPattern = aux.ValidationPattern
	r.DefaultValue = aux.DefaultValue
	r.Category = aux.Category

	return nil
}

// MarshalJSON encodes a rule with its tagged extraction pattern.
func (r MappingRule) MarshalJSON() ([]byte, error) {
	var raw json.RawMessage
	if r.Extraction != nil {
		encoded, err := EncodeExtractionPattern(r.Extraction)
		if err != nil {
			return nil, err
		}
		raw = encoded
	}

	return json.Marshal(mappingRuleJSON{
		ID:                r.ID,
		ForwarderID:       r.ForwarderID,
		FieldName:         r.FieldName,
		FieldLabel:        r.FieldLabel,
		ExtractionPattern: raw,
		Priority:          r.Priority,
		IsRequired:        r.IsRequired,
		ValidationPattern: r.ValidationPattern,
		DefaultValue:      r.DefaultValue,
		Category:          r.Category,
	})
}

// FieldPosition locates an extracted value on a page.
type FieldPosition struct {
	Page        int             `json:"page"`
	BoundingBox *PositionRegion `json:"bounding_box,omitempty"`
}

// FieldMappingResult is the outcome for one resolved field.
type FieldMappingResult struct {
	Value            string           `json:"value"`
	RawValue         string           `json:"raw_value"`
	Confidence       float64          `json:"confidence"`
	Source           ConfidenceSource `json:"source"`
	RuleID           string           `json:"rule_id"`
	ExtractionMethod ExtractionMethod `json:"extraction_method"`
	Position         *FieldPosition   `json:"position,omitempty"`
	IsValidated      bool             `json:"is_validated"`
	ValidationError  string           `json:"validation_error,omitempty"`
}

// UnmappedFieldDetail explains why a field produced no value.
type UnmappedFieldDetail struct {
	Reason     string   `json:"reason"`
	Attempts   []string `json:"attempts"`
	IsRequired bool     `json:"is_required"`
}

// ExtractionStatistics aggregates one mapping run.
type ExtractionStatistics struct {
	TotalFields       int     `json:"total_fields"`
	MappedFields      int     `json:"mapped_fields"`
	UnmappedFields    int     `json:"unmapped_fields"`
	AverageConfidence float64 `json:"average_confidence"`
	ProcessingTimeMS  int64   `json:"processing_time_ms"`
	RulesApplied      int     `json:"rules_applied"`
}
