// Database initialization script: creates the forwarders and mapping_rules
// tables and seeds them with the compiled-in defaults.
//
// Usage: go run scripts/init_db.go
package main

import (
	"context"
	"log"
	"time"

	"forwarder-mapping-engine/internal/config"
	"forwarder-mapping-engine/internal/services/database"
	"forwarder-mapping-engine/internal/services/patterns"
)

const schema = `
CREATE EXTENSION IF NOT EXISTS "pgcrypto";

CREATE TABLE IF NOT EXISTS forwarders (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	code VARCHAR(20) NOT NULL UNIQUE,
	name VARCHAR(100) NOT NULL,
	display_name VARCHAR(100) NOT NULL,
	identification_patterns JSONB NOT NULL DEFAULT '{}',
	priority INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	is_active BOOLEAN NOT NULL DEFAULT true
);

CREATE INDEX IF NOT EXISTS idx_forwarders_active_priority
	ON forwarders (is_active, priority DESC);

CREATE TABLE IF NOT EXISTS mapping_rules (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	forwarder_id UUID REFERENCES forwarders(id),
	field_name VARCHAR(100) NOT NULL,
	field_label VARCHAR(200) NOT NULL,
	extraction_pattern JSONB NOT NULL,
	priority INTEGER NOT NULL DEFAULT 0,
	is_required BOOLEAN NOT NULL DEFAULT false,
	validation_pattern TEXT,
	default_value TEXT,
	category VARCHAR(50),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	is_active BOOLEAN NOT NULL DEFAULT true
);

CREATE INDEX IF NOT EXISTS idx_mapping_rules_forwarder
	ON mapping_rules (forwarder_id, is_active);
CREATE INDEX IF NOT EXISTS idx_mapping_rules_field
	ON mapping_rules (field_name, priority DESC);
`

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.New(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	log.Println("Creating schema...")
	if _, err := db.ExecContext(ctx, schema); err != nil {
		log.Fatalf("Failed to create schema: %v", err)
	}

	forwarderRepo := database.NewForwarderRepository(db)
	ruleRepo := database.NewRuleRepository(db)

	log.Println("Seeding forwarders...")
	seeded := 0
	for i := range patterns.DefaultForwarderPatterns {
		pattern := patterns.DefaultForwarderPatterns[i]

		existing, err := forwarderRepo.GetByCode(ctx, pattern.Code)
		if err != nil {
			log.Fatalf("Failed to check forwarder %s: %v", pattern.Code, err)
		}
		if existing != nil {
			continue
		}

		if _, err := forwarderRepo.Create(ctx, &pattern); err != nil {
			log.Fatalf("Failed to seed forwarder %s: %v", pattern.Code, err)
		}
		seeded++
	}
	log.Printf("Seeded %d forwarders", seeded)

	log.Println("Seeding universal mapping rules...")
	existingRules, err := ruleRepo.GetUniversalRules(ctx)
	if err != nil {
		log.Fatalf("Failed to check mapping rules: %v", err)
	}

	if len(existingRules) > 0 {
		log.Printf("Found %d existing universal rules, skipping seed", len(existingRules))
	} else {
		for i := range patterns.DefaultUniversalRules {
			rule := patterns.DefaultUniversalRules[i]
			rule.ForwarderID = ""
			if _, err := ruleRepo.Create(ctx, &rule); err != nil {
				log.Fatalf("Failed to seed rule %s: %v", rule.FieldName, err)
			}
		}
		log.Printf("Seeded %d universal rules", len(patterns.DefaultUniversalRules))
	}

	log.Println("Database initialization complete")
}
