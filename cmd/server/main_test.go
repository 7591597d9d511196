package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"forwarder-mapping-engine/internal/models"
)

func TestRequiredUnmappedNames_FiltersOptionalFields(t *testing.T) {
	unmapped := map[string]models.UnmappedFieldDetail{
		"invoiceId": {
			Reason:     "no_matching_rule",
			Attempts:   []string{"regex"},
			IsRequired: true,
		},
		"grossWeight": {
			Reason:   "no_matching_rule",
			Attempts: []string{"keyword"},
		},
		"invoiceDate": {
			Reason:     "no_matching_rule",
			Attempts:   []string{"azure_field"},
			IsRequired: true,
		},
	}

	names := requiredUnmappedNames(unmapped)

	assert.Equal(t, []string{"invoiceDate", "invoiceId"}, names)
}

func TestRequiredUnmappedNames_Empty(t *testing.T) {
	assert.Empty(t, requiredUnmappedNames(nil))
	assert.Empty(t, requiredUnmappedNames(map[string]models.UnmappedFieldDetail{
		"optional": {Reason: "no_matching_rule"},
	}))
}
