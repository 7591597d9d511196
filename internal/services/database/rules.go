// Package database provides database operations for the forwarder mapping engine.
package database

import (
	"context"
	"fmt"
	"time"

	"forwarder-mapping-engine/internal/models"
)

// RuleRepository handles mapping rule database operations.
type RuleRepository struct {
	db *DB
}

// NewRuleRepository creates a new rule repository.
func NewRuleRepository(db *DB) *RuleRepository {
	return &RuleRepository{db: db}
}

// Create inserts a new mapping rule and returns its generated id. Universal
// rules carry a NULL forwarder_id.
func (r *RuleRepository) Create(ctx context.Context, rule *models.MappingRule) (string, error) {
	extractionJSON, err := models.EncodeExtractionPattern(rule.Extraction)
	if err != nil {
		return "", fmt.Errorf("failed to encode extraction pattern: %w", err)
	}

	var forwarderID *string
	if rule.ForwarderID != "" {
		forwarderID = &rule.ForwarderID
	}

	query := `
		INSERT INTO mapping_rules (
			forwarder_id, field_name, field_label, extraction_pattern, priority,
			is_required, validation_pattern, default_value, category,
			created_at, updated_at, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10, true)
		RETURNING id`

	var id string
	now := time.Now().UTC()

	err = r.db.QueryRowContext(ctx, query,
		forwarderID,
		rule.FieldName,
		rule.FieldLabel,
		string(extractionJSON),
		rule.Priority,
		rule.IsRequired,
		nullableString(rule.ValidationPattern),
		nullableString(rule.DefaultValue),
		nullableString(rule.Category),
		now,
	).Scan(&id)

	if err != nil {
		return "", fmt.Errorf("failed to create mapping rule: %w", err)
	}

	return id, nil
}

// GetUniversalRules retrieves active rules that apply to every forwarder.
func (r *RuleRepository) GetUniversalRules(ctx context.Context) ([]models.MappingRule, error) {
	query := `
		SELECT id, forwarder_id, field_name, field_label, extraction_pattern,
			priority, is_required, validation_pattern, default_value, category
		FROM mapping_rules
		WHERE forwarder_id IS NULL AND is_active = true
		ORDER BY field_name, priority DESC`

	return r.queryRules(ctx, query)
}

// GetRulesForForwarder retrieves active rules specific to one forwarder.
func (r *RuleRepository) GetRulesForForwarder(ctx context.Context, forwarderID string) ([]models.MappingRule, error) {
	query := `
		SELECT id, forwarder_id, field_name, field_label, extraction_pattern,
			priority, is_required, validation_pattern, default_value, category
		FROM mapping_rules
		WHERE forwarder_id = $1 AND is_active = true
		ORDER BY field_name, priority DESC`

	return r.queryRules(ctx, query, forwarderID)
}

// GetAllActiveRules retrieves every active rule, universal and specific.
func (r *RuleRepository) GetAllActiveRules(ctx context.Context) ([]models.MappingRule, error) {
	query := `
		SELECT id, forwarder_id, field_name, field_label, extraction_pattern,
			priority, is_required, validation_pattern, default_value, category
		FROM mapping_rules
		WHERE is_active = true
		ORDER BY forwarder_id NULLS FIRST, field_name, priority DESC`

	return r.queryRules(ctx, query)
}

// Deactivate soft-deletes a mapping rule.
func (r *RuleRepository) Deactivate(ctx context.Context, id string) error {
	query := `UPDATE mapping_rules SET is_active = false, updated_at = $2 WHERE id = $1`

	affected, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to deactivate mapping rule: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("mapping rule %s not found", id)
	}

	return nil
}

func (r *RuleRepository) queryRules(ctx context.Context, query string, args ...interface{}) ([]models.MappingRule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query mapping rules: %w", err)
	}
	defer rows.Close()

	rules := make([]models.MappingRule, 0)
	for rows.Next() {
		var rule models.MappingRule
		var forwarderID, validationPattern, defaultValue, category *string
		var extractionJSON []byte

		err := rows.Scan(
			&rule.ID,
			&forwarderID,
			&rule.FieldName,
			&rule.FieldLabel,
			&extractionJSON,
			&rule.Priority,
			&rule.IsRequired,
			&validationPattern,
			&defaultValue,
			&category,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mapping rule: %w", err)
		}

		rule.Extraction, err = models.DecodeExtractionPattern(extractionJSON)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
		}

		if forwarderID != nil {
			rule.ForwarderID = *forwarderID
		}
		if validationPattern != nil {
			rule.ValidationPattern = *validationPattern
		}
		if defaultValue != nil {
			rule.DefaultValue = *defaultValue
		}
		if category != nil {
			rule.Category = *category
		}

		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate mapping rules: %w", err)
	}

	return rules, nil
}

// nullableString maps an empty string to SQL NULL.
func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
