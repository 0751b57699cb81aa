// Package manager owns one refresh coordinator per configured location and
// fans their committed states out to the entity publisher.
package manager

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/weerwacht/weerwacht/internal/astro"
	"github.com/weerwacht/weerwacht/internal/config"
	"github.com/weerwacht/weerwacht/internal/coordinator"
	"github.com/weerwacht/weerwacht/internal/projection"
	"github.com/weerwacht/weerwacht/internal/weather"
)

// Manager builds and runs the per-location coordinators. Locations are fully
// independent: each has its own coordinator, its own ticker, and no shared
// mutable state.
type Manager struct {
	coordinators map[string]*coordinator.Coordinator
	order        []string
	publisher    weather.Publisher
	logger       *zap.Logger
}

// New wires a coordinator for every configured location.
func New(
	cfg config.Config,
	fetcher weather.Fetcher,
	extractor weather.Extractor,
	hasher weather.Hasher,
	clock weather.Clock,
	ids weather.IDGenerator,
	publisher weather.Publisher,
	logger *zap.Logger,
) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		coordinators: make(map[string]*coordinator.Coordinator, len(cfg.Locations)),
		publisher:    publisher,
		logger:       logger,
	}

	for _, loc := range cfg.Locations {
		slug := loc.Slug()
		name := loc.Name

		var sun *astro.Calculator
		if loc.HasCoordinates() {
			sun = astro.New(loc.Latitude, loc.Longitude)
		}

		coord := coordinator.New(
			coordinator.Config{
				Name:     name,
				Path:     loc.Path,
				Slug:     slug,
				Interval: cfg.Interval(loc),
			},
			fetcher,
			extractor,
			hasher,
			clock,
			ids,
			sun,
			logger.Named("coordinator").With(zap.String("location", slug)),
			m.publishState(slug, name),
		)
		m.coordinators[slug] = coord
		m.order = append(m.order, slug)
	}

	return m
}

// publishState builds the per-location on-update hook: project the committed
// state and push the entities to the publisher.
func (m *Manager) publishState(slug, name string) coordinator.UpdateFunc {
	return func(ctx context.Context, state weather.State) {
		entities := projection.Project(slug, name, state)
		if err := m.publisher.Publish(ctx, slug, entities); err != nil {
			m.logger.Error("entity publish failed",
				zap.String("location", slug),
				zap.Error(err),
			)
		}
	}
}

// Announce registers every location's entities with the publisher before the
// first refresh, so the host platform knows them even while data is pending.
func (m *Manager) Announce(ctx context.Context) error {
	for _, slug := range m.order {
		coord := m.coordinators[slug]
		entities := projection.Project(slug, coord.Name(), coord.State())
		if err := m.publisher.Announce(ctx, slug, entities); err != nil {
			return fmt.Errorf("announce %s: %w", slug, err)
		}
	}
	return nil
}

// Run starts all coordinators and blocks until the context finishes.
func (m *Manager) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, slug := range m.order {
		wg.Add(1)
		go func(c *coordinator.Coordinator) {
			defer wg.Done()
			c.Run(ctx)
		}(m.coordinators[slug])
	}
	<-ctx.Done()
	wg.Wait()
}

// Lookup returns the coordinator for a slug.
func (m *Manager) Lookup(slug string) (*coordinator.Coordinator, bool) {
	coord, ok := m.coordinators[slug]
	return coord, ok
}

// Slugs returns the configured location slugs in configuration order.
func (m *Manager) Slugs() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}
