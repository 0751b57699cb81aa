// Package projection maps coordinator state onto the published entities.
// It is a pure mapping: no fetching, no retries, no state of its own.
package projection

import (
	"time"

	"github.com/weerwacht/weerwacht/internal/weather"
)

// Entity keys published per location.
const (
	KeyCurrentWeather    = "current_weather"
	KeyWarnings          = "warnings"
	KeyFlashMessage      = "flash_message"
	KeyHourlyForecast    = "hourly_forecast"
	KeyDailyForecast     = "daily_forecast"
	KeyLastUpdateStatus  = "diag_last_update_status"
	KeyLastUpdateTime    = "diag_last_update_time"
	KeyConsecutiveErrors = "diag_consecutive_errors"
)

// Project maps one location's coordinator state onto its eight entities.
// Identical input states yield field-identical entities.
func Project(slug, name string, state weather.State) []weather.Entity {
	snap := state.Snapshot
	hasData := state.HasData()

	entities := []weather.Entity{
		currentWeather(slug, name, snap, hasData),
		warnings(slug, name, snap, hasData),
		flashMessage(slug, name, snap, hasData),
		forecast(slug, name, KeyHourlyForecast, name+" Hourly Forecast", "mdi:clock-outline", hourlyPayload(snap), hasData),
		forecast(slug, name, KeyDailyForecast, name+" Daily Forecast", "mdi:calendar-today", dailyPayload(snap), hasData),
	}
	entities = append(entities, diagnostics(slug, name, state)...)
	return entities
}

func currentWeather(slug, name string, snap *weather.Snapshot, hasData bool) weather.Entity {
	e := weather.Entity{
		UniqueID:    slug + "_" + KeyCurrentWeather,
		Key:         KeyCurrentWeather,
		Name:        name,
		DeviceClass: "temperature",
		Unit:        "°C",
		Icon:        "mdi:weather-partly-cloudy",
		Available:   hasData,
	}
	if !hasData {
		return e
	}
	if snap.CurrentTemperature != nil {
		e.State = *snap.CurrentTemperature
	}
	e.Icon = conditionIcon(firstHourlyIcon(snap))
	e.Attributes = map[string]any{
		"warnings":        snap.Warning,
		"flash_message":   snap.FlashMessage,
		"hourly_forecast": snap.Hourly,
		"daily_forecast":  snap.Daily,
		"astro":           snap.Astro,
		"fetched_at":      snap.FetchedAt.Format(time.RFC3339),
	}
	return e
}

func warnings(slug, name string, snap *weather.Snapshot, hasData bool) weather.Entity {
	e := weather.Entity{
		UniqueID:  slug + "_" + KeyWarnings,
		Key:       KeyWarnings,
		Name:      name + " Warnings",
		State:     weather.NoWarning,
		Icon:      "mdi:check-circle-outline",
		Available: hasData,
	}
	if snap == nil || snap.Warning == nil {
		return e
	}
	e.State = snap.WarningCode()
	e.Icon = "mdi:alert-outline"
	e.Attributes = map[string]any{
		"code":        snap.Warning.Code,
		"description": snap.Warning.Description,
		"link":        snap.Warning.Link,
	}
	return e
}

func flashMessage(slug, name string, snap *weather.Snapshot, hasData bool) weather.Entity {
	e := weather.Entity{
		UniqueID:  slug + "_" + KeyFlashMessage,
		Key:       KeyFlashMessage,
		Name:      name + " Flash Message",
		State:     weather.NoFlashMessage,
		Icon:      "mdi:information-outline",
		Available: hasData,
	}
	if snap == nil || snap.FlashMessage == nil {
		return e
	}
	e.State = snap.FlashMessage.Message
	e.Icon = "mdi:flash"
	e.Attributes = map[string]any{
		"title":   snap.FlashMessage.Title,
		"message": snap.FlashMessage.Message,
	}
	return e
}

func forecast(slug, name, key, entityName, icon string, payload []any, hasData bool) weather.Entity {
	e := weather.Entity{
		UniqueID:  slug + "_" + key,
		Key:       key,
		Name:      entityName,
		State:     len(payload),
		Icon:      icon,
		Available: hasData,
	}
	if len(payload) > 0 {
		e.Attributes = map[string]any{"forecast": payload}
	}
	return e
}

func diagnostics(slug, name string, state weather.State) []weather.Entity {
	status := state.LastUpdateStatus
	if status == "" {
		status = weather.StatusOK
	}

	var lastUpdate any
	if !state.LastSuccessAt.IsZero() {
		lastUpdate = state.LastSuccessAt.Format(time.RFC3339)
	}

	// Diagnostics stay available regardless of snapshot presence; they are
	// the failure signal when nothing else is.
	return []weather.Entity{
		{
			UniqueID:   slug + "_" + KeyLastUpdateStatus,
			Key:        KeyLastUpdateStatus,
			Name:       name + " Last Update Status",
			State:      string(status),
			Diagnostic: true,
			Available:  true,
		},
		{
			UniqueID:    slug + "_" + KeyLastUpdateTime,
			Key:         KeyLastUpdateTime,
			Name:        name + " Last Successful Update",
			State:       lastUpdate,
			DeviceClass: "timestamp",
			Diagnostic:  true,
			Available:   true,
		},
		{
			UniqueID:   slug + "_" + KeyConsecutiveErrors,
			Key:        KeyConsecutiveErrors,
			Name:       name + " Consecutive Update Errors",
			State:      state.ConsecutiveErrors,
			Diagnostic: true,
			Available:  true,
		},
	}
}

func hourlyPayload(snap *weather.Snapshot) []any {
	if snap == nil {
		return nil
	}
	out := make([]any, 0, len(snap.Hourly))
	for _, entry := range snap.Hourly {
		out = append(out, entry)
	}
	return out
}

func dailyPayload(snap *weather.Snapshot) []any {
	if snap == nil {
		return nil
	}
	out := make([]any, 0, len(snap.Daily))
	for _, entry := range snap.Daily {
		out = append(out, entry)
	}
	return out
}

func firstHourlyIcon(snap *weather.Snapshot) string {
	if snap == nil || len(snap.Hourly) == 0 {
		return ""
	}
	return snap.Hourly[0].Icon
}
