// Package coordinator implements the per-location refresh loop.
//
// One Coordinator owns the mutable state of one configured location. It is
// the only writer; readers get whole-state value copies. Failed cycles are
// absorbed here: the last-known-good snapshot is retained indefinitely and
// served unconditionally, so downstream entities stay populated through
// transient scrape failures.
package coordinator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/weerwacht/weerwacht/internal/astro"
	"github.com/weerwacht/weerwacht/internal/metrics"
	"github.com/weerwacht/weerwacht/internal/weather"
)

// Config identifies the location this coordinator refreshes.
type Config struct {
	Name     string
	Path     string
	Slug     string
	Interval time.Duration
}

// UpdateFunc receives the post-commit state of every cycle.
type UpdateFunc func(ctx context.Context, state weather.State)

// Coordinator periodically runs the fetch → extract pipeline and owns the
// resulting state.
type Coordinator struct {
	cfg       Config
	fetcher   weather.Fetcher
	extractor weather.Extractor
	hasher    weather.Hasher
	clock     weather.Clock
	ids       weather.IDGenerator
	sun       *astro.Calculator
	logger    *zap.Logger
	onUpdate  UpdateFunc

	mu       sync.RWMutex
	state    weather.State
	lastHash string

	refreshing atomic.Bool
}

// New constructs a Coordinator. sun may be nil when the location has no
// configured coordinates; onUpdate may be nil.
func New(
	cfg Config,
	fetcher weather.Fetcher,
	extractor weather.Extractor,
	hasher weather.Hasher,
	clock weather.Clock,
	ids weather.IDGenerator,
	sun *astro.Calculator,
	logger *zap.Logger,
	onUpdate UpdateFunc,
) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Coordinator{
		cfg:       cfg,
		fetcher:   fetcher,
		extractor: extractor,
		hasher:    hasher,
		clock:     clock,
		ids:       ids,
		sun:       sun,
		logger:    logger,
		onUpdate:  onUpdate,
	}
}

// Slug returns the entity slug of the coordinated location.
func (c *Coordinator) Slug() string {
	return c.cfg.Slug
}

// Name returns the user-facing location name.
func (c *Coordinator) Name() string {
	return c.cfg.Name
}

// State returns an atomic value copy of the current coordinator state.
func (c *Coordinator) State() weather.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Run refreshes immediately and then on every interval tick until the
// context finishes. Overlapping refreshes are never run; a tick that fires
// while a refresh is in flight is skipped.
func (c *Coordinator) Run(ctx context.Context) {
	c.Refresh(ctx)

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Refresh(ctx)
		}
	}
}

// Refresh executes one fetch → extract cycle and commits either the success
// or the failure branch. It never returns an error: scrape failures are
// recorded in the state and the retained snapshot keeps being served.
func (c *Coordinator) Refresh(ctx context.Context) weather.State {
	if !c.refreshing.CompareAndSwap(false, true) {
		c.logger.Debug("refresh in flight, tick skipped", zap.String("location", c.cfg.Slug))
		return c.State()
	}
	defer c.refreshing.Store(false)

	start := c.clock.Now()
	cycleID, err := c.ids.NewID()
	if err != nil {
		cycleID = "unknown"
	}

	page, err := c.fetcher.Fetch(ctx, c.cfg.Path)
	if err != nil {
		return c.commitFailure(ctx, cycleID, start, 0, err)
	}

	snapshot, unchanged, err := c.extract(page)
	if err != nil {
		return c.commitFailure(ctx, cycleID, start, len(page.Body), err)
	}

	// Only freshly extracted snapshots are enriched: a reused snapshot is
	// already published and its astro map may have concurrent readers.
	if c.sun != nil && !unchanged {
		if err := c.sun.Enrich(snapshot.Astro, page.FetchedAt); err != nil {
			c.logger.Warn("astro enrichment failed",
				zap.String("location", c.cfg.Slug),
				zap.Error(err),
			)
		}
	}

	return c.commitSuccess(ctx, cycleID, start, page, snapshot, unchanged)
}

// extract parses the fetched markup, reusing the retained snapshot when the
// page bytes are identical to the previous successful cycle.
func (c *Coordinator) extract(page weather.Page) (*weather.Snapshot, bool, error) {
	hash, err := c.hasher.Hash(page.Body)
	if err != nil {
		hash = ""
	}

	if hash != "" {
		c.mu.RLock()
		prior := c.state.Snapshot
		priorHash := c.lastHash
		c.mu.RUnlock()
		if prior != nil && hash == priorHash {
			return prior, true, nil
		}
	}

	snapshot, err := c.extractor.Extract(page.Body, page.FetchedAt)
	if err != nil {
		return nil, false, err
	}

	c.mu.Lock()
	c.lastHash = hash
	c.mu.Unlock()
	return snapshot, false, nil
}

func (c *Coordinator) commitSuccess(
	ctx context.Context,
	cycleID string,
	start time.Time,
	page weather.Page,
	snapshot *weather.Snapshot,
	unchanged bool,
) weather.State {
	now := c.clock.Now()

	c.mu.Lock()
	c.state.Snapshot = snapshot
	c.state.ConsecutiveErrors = 0
	c.state.LastUpdateStatus = weather.StatusOK
	c.state.LastSuccessAt = now
	c.state.LastCycleID = cycleID
	committed := c.state
	c.mu.Unlock()

	duration := now.Sub(start)
	metrics.ObserveCycle(c.cfg.Slug, "ok", duration, len(page.Body))
	metrics.SetConsecutiveErrors(c.cfg.Slug, 0)
	metrics.SetLastSuccess(c.cfg.Slug, now)

	c.logger.Debug("refresh succeeded",
		zap.String("location", c.cfg.Slug),
		zap.String("cycle_id", cycleID),
		zap.Bool("markup_unchanged", unchanged),
		zap.Duration("duration", duration),
		zap.Int("hourly_entries", len(snapshot.Hourly)),
		zap.Int("daily_entries", len(snapshot.Daily)),
	)

	c.notify(ctx, committed)
	return committed
}

func (c *Coordinator) commitFailure(
	ctx context.Context,
	cycleID string,
	start time.Time,
	bytesFetched int,
	cause error,
) weather.State {
	now := c.clock.Now()

	c.mu.Lock()
	c.state.ConsecutiveErrors++
	c.state.LastUpdateStatus = weather.StatusError
	c.state.LastCycleID = cycleID
	committed := c.state
	c.mu.Unlock()

	metrics.ObserveCycle(c.cfg.Slug, "error", now.Sub(start), bytesFetched)
	metrics.SetConsecutiveErrors(c.cfg.Slug, committed.ConsecutiveErrors)

	fields := []zap.Field{
		zap.String("location", c.cfg.Slug),
		zap.String("cycle_id", cycleID),
		zap.Int("consecutive_errors", committed.ConsecutiveErrors),
		zap.Error(cause),
	}
	switch {
	case errors.Is(cause, weather.ErrNoData):
		c.logger.Warn("location page not found", fields...)
	case errors.Is(cause, weather.ErrExtraction):
		c.logger.Error("markup no longer has the expected shape", fields...)
	default:
		c.logger.Error("refresh failed", fields...)
	}

	c.notify(ctx, committed)
	return committed
}

func (c *Coordinator) notify(ctx context.Context, state weather.State) {
	if c.onUpdate == nil {
		return
	}
	c.onUpdate(ctx, state)
}
