package patterns

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"forwarder-mapping-engine/internal/models"
)

// fileSchema is the YAML layout of a patterns file.
type fileSchema struct {
	Forwarders []fileForwarder `yaml:"forwarders"`
	Rules      []fileRule      `yaml:"rules"`
}

type fileForwarder struct {
	ID          string   `yaml:"id"`
	Code        string   `yaml:"code"`
	Name        string   `yaml:"name"`
	DisplayName string   `yaml:"display_name"`
	Names       []string `yaml:"names"`
	Keywords    []string `yaml:"keywords"`
	Formats     []string `yaml:"formats"`
	LogoText    []string `yaml:"logo_text"`
	Priority    int      `yaml:"priority"`
}

type fileRule struct {
	ID                string                 `yaml:"id"`
	ForwarderID       string                 `yaml:"forwarder_id"`
	FieldName         string                 `yaml:"field_name"`
	FieldLabel        string                 `yaml:"field_label"`
	Extraction        map[string]interface{} `yaml:"extraction_pattern"`
	Priority          int                    `yaml:"priority"`
	IsRequired        bool                   `yaml:"is_required"`
	ValidationPattern string                 `yaml:"validation_pattern"`
	DefaultValue      string                 `yaml:"default_value"`
	Category          string                 `yaml:"category"`
}

// LoadFile reads forwarder patterns and mapping rules from a YAML file.
func LoadFile(path string) ([]models.ForwarderPattern, []models.MappingRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read patterns file: %w", err)
	}

	var schema fileSchema
	if err := yaml.Unmarshal(data, &schema); err != nil {
		return nil, nil, fmt.Errorf("failed to parse patterns file: %w", err)
	}

	forwarders := make([]models.ForwarderPattern, 0, len(schema.Forwarders))
	for _, f := range schema.Forwarders {
		if f.Code == "" {
			return nil, nil, fmt.Errorf("patterns file: forwarder entry without code")
		}
		forwarders = append(forwarders, models.ForwarderPattern{
			ForwarderID: f.ID,
			Code:        f.Code,
			Name:        f.Name,
			DisplayName: f.DisplayName,
			Names:       f.Names,
			Keywords:    f.Keywords,
			Formats:     f.Formats,
			LogoText:    f.LogoText,
			Priority:    f.Priority,
		})
	}

	rules := make([]models.MappingRule, 0, len(schema.Rules))
	for _, r := range schema.Rules {
		extraction, err := decodeFileExtraction(r.Extraction)
		if err != nil {
			return nil, nil, fmt.Errorf("patterns file: rule %s: %w", r.ID, err)
		}
		rules = append(rules, models.MappingRule{
			ID:                r.ID,
			ForwarderID:       r.ForwarderID,
			FieldName:         r.FieldName,
			FieldLabel:        r.FieldLabel,
			Extraction:        extraction,
			Priority:          r.Priority,
			IsRequired:        r.IsRequired,
			ValidationPattern: r.ValidationPattern,
			DefaultValue:      r.DefaultValue,
			Category:          r.Category,
		})
	}

	return forwarders, rules, nil
}

// decodeFileExtraction converts the loose YAML map into a typed extraction
// pattern via the tagged JSON codec, so the file and database share one
// method vocabulary.
func decodeFileExtraction(raw map[string]interface{}) (models.ExtractionPattern, error) {
	if raw == nil {
		return nil, fmt.Errorf("missing extraction_pattern")
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode extraction pattern: %w", err)
	}

	return models.DecodeExtractionPattern(data)
}
