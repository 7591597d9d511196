// Package registry holds the active configuration epoch and swaps it
// atomically on reload, so in-flight requests always see one consistent
// pattern and rule set.
package registry

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"forwarder-mapping-engine/internal/models"
	"forwarder-mapping-engine/internal/services/matcher"
	"forwarder-mapping-engine/internal/services/patterns"
)

// Registry serves the current matcher and rule set. Reads take the shared
// lock; Reload builds the next epoch outside the lock and swaps it in.
type Registry struct {
	mu      sync.RWMutex
	matcher *matcher.Matcher
	set     *patterns.Set

	loader *patterns.Loader
	log    *zap.Logger
}

// New creates a registry and loads the initial epoch.
func New(ctx context.Context, loader *patterns.Loader, log *zap.Logger) *Registry {
	r := &Registry{loader: loader, log: log}
	r.Reload(ctx)
	return r
}

// Reload loads a fresh configuration epoch and swaps it in.
func (r *Registry) Reload(ctx context.Context) {
	set := r.loader.Load(ctx)
	m := matcher.New(set.Patterns, r.log)

	r.mu.Lock()
	r.matcher = m
	r.set = set
	r.mu.Unlock()

	r.log.Info("Configuration epoch swapped",
		zap.String("source", set.Source),
		zap.Int("forwarder_count", len(set.Patterns)),
	)
}

// Matcher returns the current matcher.
func (r *Registry) Matcher() *matcher.Matcher {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.matcher
}

// RulesFor returns the rules applying to the given forwarder in the current
// epoch.
func (r *Registry) RulesFor(forwarderID string) []models.MappingRule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.set.RulesFor(forwarderID)
}

// Forwarders lists the configured forwarders, excluding the catch-all entry.
func (r *Registry) Forwarders() []models.ForwarderInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]models.ForwarderInfo, 0, len(r.set.Patterns))
	for i := range r.set.Patterns {
		if r.set.Patterns[i].Code == matcher.UnknownForwarderCode {
			continue
		}
		infos = append(infos, r.set.Patterns[i].ToInfo())
	}
	return infos
}

// Source reports which configuration source the current epoch came from.
func (r *Registry) Source() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.set.Source
}

// StartReloadSchedule registers a periodic reload with the given cron spec
// and starts the scheduler. The returned cron is already running; stop it
// on shutdown.
func (r *Registry) StartReloadSchedule(spec string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		r.Reload(context.Background())
	})
	if err != nil {
		return nil, err
	}
	c.Start()

	r.log.Info("Pattern reload scheduled", zap.String("spec", spec))
	return c, nil
}
