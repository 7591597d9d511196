// Package models defines the data structures for the forwarder mapping engine.
package models

// ForwarderPattern holds the recognition rules for a single forwarder.
// Patterns are loaded once at startup and treated as immutable for the
// lifetime of a configuration epoch.
type ForwarderPattern struct {
	ForwarderID string   `json:"forwarder_id" db:"id"`
	Code        string   `json:"code" db:"code"`
	Name        string   `json:"name" db:"name"`
	DisplayName string   `json:"display_name" db:"display_name"`
	Names       []string `json:"names"`
	Keywords    []string `json:"keywords"`
	Formats     []string `json:"formats"`
	LogoText    []string `json:"logo_text"`
	Priority    int      `json:"priority" db:"priority"`
}

// MatchType identifies which signal produced a match contribution.
type MatchType string

const (
	MatchTypeName     MatchType = "name"
	MatchTypeKeyword  MatchType = "keyword"
	MatchTypeFormat   MatchType = "format"
	MatchTypeLogoText MatchType = "logo_text"
	MatchTypeNone     MatchType = "none"
)

// MatchDetail records one atomic contribution to a candidate's score.
type MatchDetail struct {
	Type        MatchType `json:"type"`
	Pattern     string    `json:"pattern"`
	MatchedText string    `json:"matched_text,omitempty"`
	Score       float64   `json:"score"`
}

// IdentificationResult is the outcome of one identification call.
// When no forwarder is identified the forwarder fields are empty and
// Reason carries a machine-readable code ("empty_text" or "no_match").
type IdentificationResult struct {
	ForwarderID     string        `json:"forwarder_id,omitempty"`
	ForwarderCode   string        `json:"forwarder_code,omitempty"`
	ForwarderName   string        `json:"forwarder_name,omitempty"`
	Confidence      float64       `json:"confidence"`
	MatchMethod     MatchType     `json:"match_method"`
	MatchedPatterns []string      `json:"matched_patterns"`
	MatchDetails    []MatchDetail `json:"match_details"`
	IsIdentified    bool          `json:"is_identified"`
	Reason          string        `json:"reason,omitempty"`
}

// IdentificationStatus is the caller-facing tri-state derived from the
// matcher's confidence thresholds. The three states are disjoint.
type IdentificationStatus string

const (
	StatusIdentified   IdentificationStatus = "IDENTIFIED"
	StatusNeedsReview  IdentificationStatus = "NEEDS_REVIEW"
	StatusUnidentified IdentificationStatus = "UNIDENTIFIED"
)

// ForwarderInfo is a lightweight view of a forwarder for listing endpoints.
type ForwarderInfo struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Priority    int    `json:"priority"`
}

// ToInfo converts a ForwarderPattern to its listing view.
func (p *ForwarderPattern) ToInfo() ForwarderInfo {
	return ForwarderInfo{
		ID:          p.ForwarderID,
		Code:        p.Code,
		Name:        p.Name,
		DisplayName: p.DisplayName,
		Priority:    p.Priority,
	}
}
