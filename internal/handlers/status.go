// Package handlers provides HTTP handlers for the forwarder mapping engine.
package handlers

import (
	"forwarder-mapping-engine/internal/models"
	"forwarder-mapping-engine/internal/services/matcher"
)

// StatusFor derives the tri-state identification status from a confidence
// score. The bands are disjoint: at or above the auto threshold is
// identified, at or above the review threshold needs review, below is
// unidentified.
func StatusFor(confidence float64) models.IdentificationStatus {
	switch {
	case confidence >= matcher.ThresholdAutoIdentify:
		return models.StatusIdentified
	case confidence >= matcher.ThresholdNeedsReview:
		return models.StatusNeedsReview
	default:
		return models.StatusUnidentified
	}
}

// NeedsReview reports whether a result should go to a human.
func NeedsReview(confidence float64) bool {
	return StatusFor(confidence) == models.StatusNeedsReview
}
