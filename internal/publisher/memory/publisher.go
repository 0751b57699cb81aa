// Package memory contains an in-memory publisher for tests and broker-less
// runs.
package memory

import (
	"context"
	"sync"

	"github.com/weerwacht/weerwacht/internal/weather"
)

// Publisher stores published entity batches for inspection.
type Publisher struct {
	mu        sync.RWMutex
	announced map[string][]weather.Entity
	published []PublishedBatch
}

// PublishedBatch captures one Publish call.
type PublishedBatch struct {
	Slug     string
	Entities []weather.Entity
}

// New returns a memory Publisher.
func New() *Publisher {
	return &Publisher{announced: make(map[string][]weather.Entity)}
}

// Announce records the discovery batch for a location.
func (p *Publisher) Announce(_ context.Context, slug string, entities []weather.Entity) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.announced[slug] = append([]weather.Entity(nil), entities...)
	return nil
}

// Publish records the entity states for a location.
func (p *Publisher) Publish(_ context.Context, slug string, entities []weather.Entity) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, PublishedBatch{
		Slug:     slug,
		Entities: append([]weather.Entity(nil), entities...),
	})
	return nil
}

// Close is a no-op.
func (p *Publisher) Close() {}

// Announced returns the recorded discovery batch for a slug.
func (p *Publisher) Announced(slug string) []weather.Entity {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.announced[slug]
}

// Published returns the recorded state batches.
func (p *Publisher) Published() []PublishedBatch {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]PublishedBatch, len(p.published))
	copy(out, p.published)
	return out
}
