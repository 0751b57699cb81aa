package weather

import (
	"time"
)

// NoWarning is the sentinel warning state published when the page carries no
// active warning markup.
const NoWarning = "Geen waarschuwing"

// NoFlashMessage is the sentinel flash-message state.
const NoFlashMessage = "Geen flash bericht"

// Warning carries an active weather warning scraped from the page. Code is
// one of the provider's color codes ("Code geel", "Code oranje", ...); text
// the provider uses that we do not recognize is passed through unchanged.
type Warning struct {
	Code        string `json:"code"`
	Description string `json:"description,omitempty"`
	Link        string `json:"link,omitempty"`
}

// FlashMessage is the optional short-notice banner shown above the forecast.
type FlashMessage struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// HourlyEntry is a single hour of the hour-by-hour forecast. Only the hour
// label is guaranteed; every other field is extracted best-effort.
type HourlyEntry struct {
	Hour          string   `json:"hour"`
	Temperature   *float64 `json:"temperature,omitempty"`
	Icon          string   `json:"icon,omitempty"`
	Precipitation *int     `json:"precipitation,omitempty"`
}

// DayPart is one segment (morning, afternoon, ...) of a daily forecast entry.
type DayPart struct {
	Label         string   `json:"label"`
	Temperature   *float64 `json:"temperature,omitempty"`
	Icon          string   `json:"icon,omitempty"`
	Precipitation *int     `json:"precipitation,omitempty"`
}

// DailyEntry is a single day of the multi-day forecast. Only the day label is
// guaranteed. Min/max are aggregated over the day parts when present.
type DailyEntry struct {
	Day            string    `json:"day"`
	MinTemperature *float64  `json:"min_temperature,omitempty"`
	MaxTemperature *float64  `json:"max_temperature,omitempty"`
	Icon           string    `json:"icon,omitempty"`
	Summary        string    `json:"summary,omitempty"`
	Parts          []DayPart `json:"parts,omitempty"`
}

// Snapshot is the immutable value produced by one successful extraction
// cycle. A nil pointer field means the page did not offer that value.
type Snapshot struct {
	CurrentTemperature *float64          `json:"current_temperature,omitempty"`
	Warning            *Warning          `json:"warning,omitempty"`
	FlashMessage       *FlashMessage     `json:"flash_message,omitempty"`
	Hourly             []HourlyEntry     `json:"hourly_forecast"`
	Daily              []DailyEntry      `json:"daily_forecast"`
	Astro              map[string]string `json:"astro,omitempty"`
	FetchedAt          time.Time         `json:"fetched_at"`
}

// WarningCode returns the warning entity state, falling back to the
// no-warning sentinel.
func (s *Snapshot) WarningCode() string {
	if s == nil || s.Warning == nil || s.Warning.Code == "" {
		return NoWarning
	}
	return s.Warning.Code
}

// UpdateStatus distinguishes the healthy and degraded coordinator states.
type UpdateStatus string

// Coordinator health states published through the diagnostic entities.
const (
	StatusOK    UpdateStatus = "OK"
	StatusError UpdateStatus = "Error"
)

// State is the coordinator-owned view of one configured location. Snapshot is
// the last-known-good extraction; it survives failed cycles and is only ever
// replaced by a newer successful one.
type State struct {
	Snapshot          *Snapshot
	ConsecutiveErrors int
	LastUpdateStatus  UpdateStatus
	LastSuccessAt     time.Time
	LastCycleID       string
}

// HasData reports whether any cycle has ever succeeded for this location.
func (s State) HasData() bool {
	return s.Snapshot != nil
}

// Page is the raw result of a single fetch.
type Page struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
	FetchedAt  time.Time
}

// Entity is one named, attributed value projected from a State. UniqueID is
// stable across restarts so the receiving platform can track the entity.
type Entity struct {
	UniqueID    string         `json:"unique_id"`
	Key         string         `json:"key"`
	Name        string         `json:"name"`
	State       any            `json:"state"`
	Attributes  map[string]any `json:"attributes,omitempty"`
	Icon        string         `json:"icon,omitempty"`
	DeviceClass string         `json:"device_class,omitempty"`
	Unit        string         `json:"unit,omitempty"`
	Diagnostic  bool           `json:"diagnostic,omitempty"`
	Available   bool           `json:"available"`
}
