package astro

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// De Bilt, roughly the center of the Netherlands.
const (
	testLat = 52.11
	testLon = 5.18
)

func TestSunEventTimesOrdering(t *testing.T) {
	t.Parallel()

	c := New(testLat, testLon)
	date := time.Date(2026, 6, 21, 12, 0, 0, 0, time.UTC)

	events, err := c.SunEventTimes(date)
	require.NoError(t, err)

	require.True(t, events.Dawn.Before(events.Sunrise))
	require.True(t, events.Sunrise.Before(events.Sunset))
	require.True(t, events.Sunset.Before(events.Dusk))
	// A midsummer day at this latitude is long.
	require.Greater(t, events.Sunset.Sub(events.Sunrise), 14*time.Hour)
}

func TestSunEventTimesCachedPerDay(t *testing.T) {
	t.Parallel()

	c := New(testLat, testLon)
	morning := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	evening := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)

	first, err := c.SunEventTimes(morning)
	require.NoError(t, err)
	second, err := c.SunEventTimes(evening)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestEnrichFillsOnlyAbsentKeys(t *testing.T) {
	t.Parallel()

	c := New(testLat, testLon)
	date := time.Date(2026, 3, 14, 14, 0, 0, 0, time.UTC)

	attrs := map[string]string{"zon op": "07:02"}
	require.NoError(t, c.Enrich(attrs, date))

	// The scraped value wins over the computed one.
	require.Equal(t, "07:02", attrs["zon op"])
	require.NotEmpty(t, attrs["zon onder"])
	require.NotEmpty(t, attrs["dageraad"])
	require.NotEmpty(t, attrs["schemering"])
	require.Regexp(t, `^\d{2}:\d{2}$`, attrs["zon onder"])
}
