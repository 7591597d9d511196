// Package database provides database operations for the forwarder mapping engine.
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"forwarder-mapping-engine/internal/models"
)

// ForwarderRepository handles forwarder pattern database operations.
type ForwarderRepository struct {
	db *DB
}

// NewForwarderRepository creates a new forwarder repository.
func NewForwarderRepository(db *DB) *ForwarderRepository {
	return &ForwarderRepository{db: db}
}

// identificationPatterns is the JSONB shape of the identification_patterns
// column.
type identificationPatterns struct {
	Names    []string `json:"names"`
	Keywords []string `json:"keywords"`
	Formats  []string `json:"formats"`
	LogoText []string `json:"logo_text"`
}

// Create inserts a new forwarder and returns its generated id.
func (r *ForwarderRepository) Create(ctx context.Context, pattern *models.ForwarderPattern) (string, error) {
	patternsJSON, err := json.Marshal(identificationPatterns{
		Names:    pattern.Names,
		Keywords: pattern.Keywords,
		Formats:  pattern.Formats,
		LogoText: pattern.LogoText,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal identification patterns: %w", err)
	}

	query := `
		INSERT INTO forwarders (
			code, name, display_name, identification_patterns, priority,
			created_at, updated_at, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $6, true)
		RETURNING id`

	var id string
	now := time.Now().UTC()

	err = r.db.QueryRowContext(ctx, query,
		pattern.Code,
		pattern.Name,
		pattern.DisplayName,
		string(patternsJSON),
		pattern.Priority,
		now,
	).Scan(&id)

	if err != nil {
		return "", fmt.Errorf("failed to create forwarder: %w", err)
	}

	return id, nil
}

// GetByCode retrieves a forwarder by its short code, or nil when absent.
func (r *ForwarderRepository) GetByCode(ctx context.Context, code string) (*models.ForwarderPattern, error) {
	query := `
		SELECT id, code, name, display_name, identification_patterns, priority
		FROM forwarders
		WHERE code = $1 AND is_active = true`

	pattern, err := scanForwarder(r.db.QueryRowContext(ctx, query, code))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get forwarder: %w", err)
	}

	return pattern, nil
}

// GetActivePatterns retrieves all active forwarder patterns in descending
// priority order.
func (r *ForwarderRepository) GetActivePatterns(ctx context.Context) ([]models.ForwarderPattern, error) {
	query := `
		SELECT id, code, name, display_name, identification_patterns, priority
		FROM forwarders
		WHERE is_active = true
		ORDER BY priority DESC, code`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query forwarders: %w", err)
	}
	defer rows.Close()

	patterns := make([]models.ForwarderPattern, 0)
	for rows.Next() {
		pattern, err := scanForwarder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan forwarder: %w", err)
		}
		patterns = append(patterns, *pattern)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate forwarders: %w", err)
	}

	return patterns, nil
}

// Deactivate soft-deletes a forwarder.
func (r *ForwarderRepository) Deactivate(ctx context.Context, id string) error {
	query := `UPDATE forwarders SET is_active = false, updated_at = $2 WHERE id = $1`

	affected, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to deactivate forwarder: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("forwarder %s not found", id)
	}

	return nil
}

// scanForwarder scans one forwarder row, decoding the JSONB pattern column.
func scanForwarder(row pgx.Row) (*models.ForwarderPattern, error) {
	var pattern models.ForwarderPattern
	var patternsJSON []byte

	err := row.Scan(
		&pattern.ForwarderID,
		&pattern.Code,
		&pattern.Name,
		&pattern.DisplayName,
		&patternsJSON,
		&pattern.Priority,
	)
	if err != nil {
		return nil, err
	}

	if len(patternsJSON) > 0 {
		var decoded identificationPatterns
		if err := json.Unmarshal(patternsJSON, &decoded); err != nil {
			return nil, fmt.Errorf("failed to decode identification patterns: %w", err)
		}
		pattern.Names = decoded.Names
		pattern.Keywords = decoded.Keywords
		pattern.Formats = decoded.Formats
		pattern.LogoText = decoded.LogoText
	}

	return &pattern, nil
}
