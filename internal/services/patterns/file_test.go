package patterns

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"forwarder-mapping-engine/internal/models"
)

const sampleYAML = `
forwarders:
  - id: fwd-acme
    code: ACME
    name: Acme Freight
    display_name: Acme Freight Lines
    names: ["Acme Freight", "Acme"]
    keywords: ["acme tracking"]
    formats: ['AC\d{8}']
    logo_text: ["we ship anything"]
    priority: 70

rules:
  - id: acme-invoice-id
    forwarder_id: fwd-acme
    field_name: invoiceId
    field_label: Invoice Number
    extraction_pattern:
      method: regex
      pattern: 'AC-INV-(\d+)'
      group_index: 1
    priority: 80
    is_required: true
  - id: universal-total
    field_name: invoiceTotal
    field_label: Invoice Total
    extraction_pattern:
      method: keyword
      keywords: ["Total"]
      max_distance: 30
    priority: 40
`

func writeTempPatterns(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "patterns.yaml")
	err := os.WriteFile(path, []byte(content), 0o600)
	assert.NoError(t, err)
	return path
}

func TestLoadFile_ParsesForwardersAndRules(t *testing.T) {
	path := writeTempPatterns(t, sampleYAML)

	forwarders, rules, err := LoadFile(path)

	assert.NoError(t, err)
	assert.Len(t, forwarders, 1)
	assert.Equal(t, "ACME", forwarders[0].Code)
	assert.Equal(t, []string{"Acme Freight", "Acme"}, forwarders[0].Names)
	assert.Equal(t, 70, forwarders[0].Priority)

	assert.Len(t, rules, 2)

	regex, ok := rules[0].Extraction.(models.RegexPattern)
	assert.True(t, ok)
	assert.Equal(t, `AC-INV-(\d+)`, regex.Pattern)
	assert.Equal(t, "fwd-acme", rules[0].ForwarderID)
	assert.True(t, rules[0].IsRequired)

	keyword, ok := rules[1].Extraction.(models.KeywordPattern)
	assert.True(t, ok)
	assert.Equal(t, []string{"Total"}, keyword.Keywords)
	assert.Empty(t, rules[1].ForwarderID)
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadFile_ForwarderWithoutCode(t *testing.T) {
	path := writeTempPatterns(t, "forwarders:\n  - name: Nameless\n")

	_, _, err := LoadFile(path)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "without code")
}

func TestLoadFile_UnsupportedExtractionMethod(t *testing.T) {
	content := `
rules:
  - id: bad-rule
    field_name: invoiceId
    field_label: Invoice Number
    extraction_pattern:
      method: table_cell
`
	path := writeTempPatterns(t, content)

	_, _, err := LoadFile(path)

	assert.Error(t, err)
	assert.True(t, models.IsUnsupportedMethod(err))
}
