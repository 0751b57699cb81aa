// Package astro computes sun event times for locations with configured
// coordinates, supplementing the astro attributes when the scraped page does
// not carry them.
package astro

import (
	"fmt"
	"sync"
	"time"

	"github.com/sj14/astral/pkg/astral"
)

// SunEvents holds the computed sun event times for one date.
type SunEvents struct {
	Dawn    time.Time
	Sunrise time.Time
	Sunset  time.Time
	Dusk    time.Time
}

// Calculator computes and caches sun event times for one observer position.
type Calculator struct {
	observer astral.Observer
	mu       sync.RWMutex
	cache    map[string]SunEvents
}

// New builds a Calculator for the given coordinates.
func New(latitude, longitude float64) *Calculator {
	return &Calculator{
		observer: astral.Observer{Latitude: latitude, Longitude: longitude},
		cache:    make(map[string]SunEvents),
	}
}

// SunEventTimes returns the sun events for the given date, cached per day.
func (c *Calculator) SunEventTimes(date time.Time) (SunEvents, error) {
	key := date.Format("2006-01-02")

	c.mu.RLock()
	events, ok := c.cache[key]
	c.mu.RUnlock()
	if ok {
		return events, nil
	}

	events, err := c.calculate(date)
	if err != nil {
		return SunEvents{}, err
	}

	c.mu.Lock()
	c.cache[key] = events
	c.mu.Unlock()

	return events, nil
}

func (c *Calculator) calculate(date time.Time) (SunEvents, error) {
	dawn, err := astral.Dawn(c.observer, date, astral.DepressionCivil)
	if err != nil {
		return SunEvents{}, fmt.Errorf("calculate dawn: %w", err)
	}
	sunrise, err := astral.Sunrise(c.observer, date)
	if err != nil {
		return SunEvents{}, fmt.Errorf("calculate sunrise: %w", err)
	}
	sunset, err := astral.Sunset(c.observer, date)
	if err != nil {
		return SunEvents{}, fmt.Errorf("calculate sunset: %w", err)
	}
	dusk, err := astral.Dusk(c.observer, date, astral.DepressionCivil)
	if err != nil {
		return SunEvents{}, fmt.Errorf("calculate dusk: %w", err)
	}
	return SunEvents{Dawn: dawn, Sunrise: sunrise, Sunset: sunset, Dusk: dusk}, nil
}

// Enrich fills missing sun attributes in an astro map with computed values.
// Scraped page values always win over computed ones.
func (c *Calculator) Enrich(attrs map[string]string, date time.Time) error {
	events, err := c.SunEventTimes(date)
	if err != nil {
		return err
	}
	local := date.Location()
	setIfAbsent(attrs, "zon op", events.Sunrise.In(local).Format("15:04"))
	setIfAbsent(attrs, "zon onder", events.Sunset.In(local).Format("15:04"))
	setIfAbsent(attrs, "dageraad", events.Dawn.In(local).Format("15:04"))
	setIfAbsent(attrs, "schemering", events.Dusk.In(local).Format("15:04"))
	return nil
}

func setIfAbsent(attrs map[string]string, key, value string) {
	if _, ok := attrs[key]; !ok {
		attrs[key] = value
	}
}
