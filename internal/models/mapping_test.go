package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeExtractionPattern_Regex(t *testing.T) {
	data := []byte(`{"method":"regex","pattern":"INV-(\\d+)","flags":"i","group_index":1,"confidence_boost":5}`)

	pattern, err := DecodeExtractionPattern(data)

	assert.NoError(t, err)
	regex, ok := pattern.(RegexPattern)
	assert.True(t, ok)
	assert.Equal(t, `INV-(\d+)`, regex.Pattern)
	assert.Equal(t, "i", regex.Flags)
	assert.Equal(t, 1, regex.GroupIndex)
	assert.Equal(t, 5.0, pattern.Boost())
	assert.Equal(t, MethodRegex, pattern.Method())
}

func TestDecodeExtractionPattern_DefaultsToRegex(t *testing.T) {
	data := []byte(`{"pattern":"\\d{10}"}`)

	pattern, err := DecodeExtractionPattern(data)

	assert.NoError(t, err)
	assert.Equal(t, MethodRegex, pattern.Method())
}

func TestDecodeExtractionPattern_Keyword(t *testing.T) {
	data := []byte(`{"method":"keyword","keywords":["Invoice No","Rechnung"],"max_distance":80}`)

	pattern, err := DecodeExtractionPattern(data)

	assert.NoError(t, err)
	keyword, ok := pattern.(KeywordPattern)
	assert.True(t, ok)
	assert.Equal(t, []string{"Invoice No", "Rechnung"}, keyword.Keywords)
	assert.Equal(t, 80, keyword.MaxDistance)
}

func TestDecodeExtractionPattern_Position(t *testing.T) {
	data := []byte(`{"method":"position","page":1,"region":{"top":0.1,"left":0.5,"width":0.4,"height":0.1}}`)

	pattern, err := DecodeExtractionPattern(data)

	assert.NoError(t, err)
	position, ok := pattern.(PositionPattern)
	assert.True(t, ok)
	assert.Equal(t, 1, position.Page)
	assert.Equal(t, 0.5, position.Region.Left)
}

func TestDecodeExtractionPattern_AzureField(t *testing.T) {
	data := []byte(`{"method":"azure_field","azure_field_name":"InvoiceId"}`)

	pattern, err := DecodeExtractionPattern(data)

	assert.NoError(t, err)
	azure, ok := pattern.(AzureFieldPattern)
	assert.True(t, ok)
	assert.Equal(t, "InvoiceId", azure.AzureFieldName)
}

func TestDecodeExtractionPattern_UnsupportedMethod(t *testing.T) {
	data := []byte(`{"method":"llm","prompt":"extract the invoice id"}`)

	pattern, err := DecodeExtractionPattern(data)

	assert.Nil(t, pattern)
	assert.Error(t, err)
	assert.True(t, IsUnsupportedMethod(err))
	assert.NotErrorIs(t, err, ErrInternalInconsistency)
	assert.Contains(t, err.Error(), "llm")
}

func TestEncodeExtractionPattern_RoundTrip(t *testing.T) {
	original := KeywordPattern{
		Keywords:        []string{"Total"},
		MaxDistance:     60,
		ConfidenceBoost: 3,
	}

	data, err := EncodeExtractionPattern(original)
	assert.NoError(t, err)

	decoded, err := DecodeExtractionPattern(data)
	assert.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestMappingRule_JSONRoundTrip(t *testing.T) {
	rule := MappingRule{
		ID:                "rule-1",
		ForwarderID:       "fwd-dhl",
		FieldName:         "invoiceId",
		FieldLabel:        "Invoice ID",
		Extraction:        RegexPattern{Pattern: `INV-\d+`, Flags: "i"},
		Priority:          50,
		IsRequired:        true,
		ValidationPattern: `INV-\d+`,
		Category:          "invoice",
	}

	data, err := json.Marshal(rule)
	assert.NoError(t, err)
	assert.Contains(t, string(data), `"extraction_pattern"`)
	assert.Contains(t, string(data), `"method":"regex"`)

	var decoded MappingRule
	assert.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, rule, decoded)
}

func TestMappingRule_UnmarshalRejectsUnsupportedMethod(t *testing.T) {
	data := []byte(`{
		"id": "rule-1",
		"field_name": "invoiceId",
		"field_label": "Invoice ID",
		"extraction_pattern": {"method": "table_cell"},
		"priority": 10
	}`)

	var rule MappingRule
	err := json.Unmarshal(data, &rule)

	assert.Error(t, err)
	assert.True(t, IsUnsupportedMethod(err))
}
