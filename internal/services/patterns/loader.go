package patterns

import (
	"context"

	"go.uber.org/zap"

	"forwarder-mapping-engine/internal/models"
	"forwarder-mapping-engine/internal/services/database"
)

// Configuration sources, recorded on the loaded set for diagnostics.
const (
	SourceDatabase = "database"
	SourceFile     = "file"
	SourceDefaults = "defaults"
)

// Set is one loaded configuration epoch: forwarder patterns plus mapping
// rules split into universal and per-forwarder groups.
type Set struct {
	Patterns       []models.ForwarderPattern
	UniversalRules []models.MappingRule
	ForwarderRules map[string][]models.MappingRule
	Source         string
}

// RulesFor returns the rules that apply to a document: universal rules first,
// then forwarder-specific ones when a forwarder is known.
func (s *Set) RulesFor(forwarderID string) []models.MappingRule {
	rules := make([]models.MappingRule, 0, len(s.UniversalRules))
	rules = append(rules, s.UniversalRules...)
	if forwarderID != "" {
		rules = append(rules, s.ForwarderRules[forwarderID]...)
	}
	return rules
}

// Loader resolves the active configuration from the first available source:
// database, then patterns file, then compiled-in defaults.
type Loader struct {
	db   *database.DB
	path string
	log  *zap.Logger
}

// NewLoader creates a loader. Both db and path may be empty; the compiled-in
// defaults always remain as the final fallback.
func NewLoader(db *database.DB, path string, log *zap.Logger) *Loader {
	return &Loader{db: db, path: path, log: log}
}

// Load resolves one configuration epoch. Source failures degrade to the next
// source rather than failing the load.
func (l *Loader) Load(ctx context.Context) *Set {
	if l.db != nil {
		set, err := l.loadFromDatabase(ctx)
		if err != nil {
			l.log.Warn("Failed to load patterns from database, falling back", zap.Error(err))
		} else if len(set.Patterns) > 0 {
			l.log.Info("Loaded patterns from database",
				zap.Int("forwarder_count", len(set.Patterns)),
				zap.Int("universal_rule_count", len(set.UniversalRules)),
			)
			return set
		}
	}

	if l.path != "" {
		forwarders, rules, err := LoadFile(l.path)
		if err != nil {
			l.log.Warn("Failed to load patterns file, falling back",
				zap.String("path", l.path),
				zap.Error(err),
			)
		} else if len(forwarders) > 0 {
			l.log.Info("Loaded patterns from file",
				zap.String("path", l.path),
				zap.Int("forwarder_count", len(forwarders)),
			)
			return buildSet(forwarders, rules, SourceFile)
		}
	}

	l.log.Info("Using compiled-in default patterns",
		zap.Int("forwarder_count", len(DefaultForwarderPatterns)),
	)
	return buildSet(DefaultForwarderPatterns, DefaultUniversalRules, SourceDefaults)
}

func (l *Loader) loadFromDatabase(ctx context.Context) (*Set, error) {
	forwarderRepo := database.NewForwarderRepository(l.db)
	ruleRepo := database.NewRuleRepository(l.db)

	forwarders, err := forwarderRepo.GetActivePatterns(ctx)
	if err != nil {
		return nil, err
	}

	rules, err := ruleRepo.GetAllActiveRules(ctx)
	if err != nil {
		return nil, err
	}

	return buildSet(forwarders, rules, SourceDatabase), nil
}

func buildSet(forwarders []models.ForwarderPattern, rules []models.MappingRule, source string) *Set {
	set := &Set{
		Patterns:       forwarders,
		UniversalRules: make([]models.MappingRule, 0),
		ForwarderRules: make(map[string][]models.MappingRule),
		Source:         source,
	}

	for _, rule := range rules {
		if rule.ForwarderID == "" {
			set.UniversalRules = append(set.UniversalRules, rule)
			continue
		}
		set.ForwarderRules[rule.ForwarderID] = append(set.ForwarderRules[rule.ForwarderID], rule)
	}

	return set
}
