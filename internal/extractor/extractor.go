// Package extractor parses weerplaza.nl location pages into snapshots.
//
// The markup is not a contract: the provider can reshape the page at any
// time. Extraction is therefore asymmetric: a single mandatory anchor (the
// hour-by-hour forecast block, which carries the current temperature) decides
// whether the page still has the expected shape, and every other field is
// parsed best-effort and simply absent when its markup drifted.
package extractor

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/weerwacht/weerwacht/internal/weather"
)

// Section headings used as structural anchors in the provider markup.
const (
	headingWarnings = "Waarschuwingen"
	headingHourly   = "Weerbericht uur tot uur"
	headingDaily    = "Weerbericht daaglijks"
	headingAstro    = "Zon en maan"
)

// astroKeys is the fixed set of astro attributes extracted from the sun and
// moon section.
var astroKeys = []string{"zon op", "zon onder", "maan op", "maan onder", "maanfase"}

// warningCodes is the provider's color-code vocabulary. Warning text outside
// this set is passed through unchanged rather than rejected.
var warningCodes = []string{"Code groen", "Code geel", "Code oranje", "Code rood"}

// Config controls extraction behavior.
type Config struct {
	// BaseURL absolutizes relative warning links; defaults to the provider.
	BaseURL string
}

// Extractor implements weather.Extractor over goquery.
type Extractor struct {
	cfg    Config
	logger *zap.Logger
}

// New builds an Extractor.
func New(cfg Config, logger *zap.Logger) *Extractor {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.weerplaza.nl/"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{cfg: cfg, logger: logger}
}

// fieldParser extracts one optional snapshot field. Failures are recorded
// and skipped; they never abort the extraction.
type fieldParser struct {
	name  string
	parse func(e *Extractor, doc *goquery.Document, snap *weather.Snapshot) error
}

var optionalFields = []fieldParser{
	{"warnings", (*Extractor).parseWarnings},
	{"flash_message", (*Extractor).parseFlashMessage},
	{"daily_forecast", (*Extractor).parseDaily},
	{"astro", (*Extractor).parseAstro},
}

// Extract produces a Snapshot from raw markup. Only an unparsable document
// or a missing hour-by-hour temperature anchor fails; all other fields
// degrade to absent values.
func (e *Extractor) Extract(markup []byte, fetchedAt time.Time) (*weather.Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("%w: parse document: %v", weather.ErrExtraction, err)
	}

	snap := &weather.Snapshot{
		Astro:     map[string]string{},
		FetchedAt: fetchedAt,
	}

	if err := e.parseHourly(doc, snap); err != nil {
		return nil, err
	}

	for _, field := range optionalFields {
		if err := field.parse(e, doc, snap); err != nil {
			e.logger.Debug("optional field absent",
				zap.String("field", field.name),
				zap.Error(err),
			)
		}
	}

	return snap, nil
}

// parseHourly extracts the hour-by-hour forecast. This block is the mandatory
// anchor: its heading must exist and its first entry must carry a parsable
// temperature, which doubles as the current temperature.
func (e *Extractor) parseHourly(doc *goquery.Document, snap *weather.Snapshot) error {
	container := sectionContainer(doc, headingHourly)
	if container.Length() == 0 {
		return fmt.Errorf("%w: hour-by-hour section %q not found", weather.ErrExtraction, headingHourly)
	}

	container.Find("div.flex.flex-col.items-center").Each(func(_ int, item *goquery.Selection) {
		hour := strings.TrimSpace(item.Find("p.text-sm").First().Text())
		if hour == "" {
			return
		}
		entry := weather.HourlyEntry{
			Hour:          hour,
			Temperature:   parseTemperature(item.Find("p.text-xl").First().Text()),
			Icon:          strings.TrimSpace(item.Find("img").First().AttrOr("alt", "")),
			Precipitation: parsePercentage(item.Find("div.flex.items-center span").First().Text()),
		}
		snap.Hourly = append(snap.Hourly, entry)
	})

	if len(snap.Hourly) == 0 || snap.Hourly[0].Temperature == nil {
		return fmt.Errorf("%w: no parsable temperature in hour-by-hour block", weather.ErrExtraction)
	}
	snap.CurrentTemperature = snap.Hourly[0].Temperature
	return nil
}

func (e *Extractor) parseWarnings(doc *goquery.Document, snap *weather.Snapshot) error {
	container := sectionContainer(doc, headingWarnings)
	if container.Length() == 0 {
		return fmt.Errorf("warnings section not present")
	}
	box := container.Find("div.border").First()
	if box.Length() == 0 {
		// Section exists but no active warning box; that is the normal state.
		return nil
	}

	w := &weather.Warning{
		Code:        normalizeWarningCode(box.Find("h3.h3").First().Text()),
		Description: strings.TrimSpace(box.Find("p.font-normal").First().Text()),
	}
	if href, ok := box.Find("a.button-link").First().Attr("href"); ok {
		w.Link = e.absoluteLink(href)
	}
	if w.Code == "" && w.Description == "" {
		return nil
	}
	snap.Warning = w
	return nil
}

func (e *Extractor) parseFlashMessage(doc *goquery.Document, snap *weather.Snapshot) error {
	banner := doc.Find("div.rounded-md.border").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.Contains(s.AttrOr("style", ""), "yellow")
	}).First()
	if banner.Length() == 0 {
		return nil
	}

	title := strings.TrimSpace(strings.ReplaceAll(banner.Find("div.flex.items-center").First().Text(), "Flash", ""))
	if title == "" {
		title = "Flash"
	}
	message := strings.TrimSpace(banner.Find("p.text-xs").First().Text())
	if message == "" {
		return nil
	}
	snap.FlashMessage = &weather.FlashMessage{Title: title, Message: message}
	return nil
}

func (e *Extractor) parseDaily(doc *goquery.Document, snap *weather.Snapshot) error {
	container := sectionContainer(doc, headingDaily)
	if container.Length() == 0 {
		return fmt.Errorf("daily section not present")
	}

	container.Find("div.bg-gray-50").Each(func(_ int, dayBox *goquery.Selection) {
		day := strings.TrimSpace(dayBox.Find("h3.h3").First().Text())
		if day == "" {
			return
		}
		entry := weather.DailyEntry{Day: day}

		dayBox.Find("div.flex.flex-col.items-center").Each(func(_ int, partBox *goquery.Selection) {
			part := weather.DayPart{
				Label:         strings.TrimSpace(partBox.Find("p.text-sm").First().Text()),
				Temperature:   parseTemperature(partBox.Find("p.text-xl").First().Text()),
				Icon:          strings.TrimSpace(partBox.Find("img").First().AttrOr("alt", "")),
				Precipitation: parsePercentage(partBox.Find("div.flex.items-center span").First().Text()),
			}
			entry.Parts = append(entry.Parts, part)
		})

		aggregateDay(&entry)
		snap.Daily = append(snap.Daily, entry)
	})
	return nil
}

func (e *Extractor) parseAstro(doc *goquery.Document, snap *weather.Snapshot) error {
	container := sectionContainer(doc, headingAstro)
	if container.Length() == 0 {
		return nil
	}
	container.Find("dt").Each(func(_ int, dt *goquery.Selection) {
		key := strings.ToLower(strings.TrimSpace(dt.Text()))
		value := strings.TrimSpace(dt.NextAllFiltered("dd").First().Text())
		if value == "" {
			return
		}
		for _, known := range astroKeys {
			if key == known {
				snap.Astro[key] = value
				return
			}
		}
	})
	return nil
}

func (e *Extractor) absoluteLink(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "http") {
		return href
	}
	return strings.TrimSuffix(e.cfg.BaseURL, "/") + "/" + strings.TrimPrefix(href, "/")
}

// sectionContainer finds the content div that follows a section heading.
func sectionContainer(doc *goquery.Document, heading string) *goquery.Selection {
	h := doc.Find("h2").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.TrimSpace(s.Text()) == heading
	}).First()
	if h.Length() == 0 {
		return h
	}
	return h.NextAllFiltered("div").First()
}

// aggregateDay derives min/max and a summary from the day parts.
func aggregateDay(entry *weather.DailyEntry) {
	var summaryTemp float64
	for i := range entry.Parts {
		part := &entry.Parts[i]
		if part.Icon != "" && entry.Icon == "" {
			entry.Icon = part.Icon
		}
		if part.Temperature == nil {
			continue
		}
		t := *part.Temperature
		if entry.MinTemperature == nil || t < *entry.MinTemperature {
			v := t
			entry.MinTemperature = &v
		}
		if entry.MaxTemperature == nil || t > *entry.MaxTemperature {
			v := t
			entry.MaxTemperature = &v
		}
		// Summary follows the warmest part of the day.
		if part.Icon != "" && (entry.Summary == "" || t > summaryTemp) {
			entry.Summary = part.Icon
			summaryTemp = t
		}
	}
}

// parseTemperature converts provider temperature text ("15°", "-3,5 °C") to
// degrees Celsius. Returns nil when the text has no parsable number.
func parseTemperature(text string) *float64 {
	cleaned := strings.NewReplacer("°C", "", "°", "", ",", ".").Replace(strings.TrimSpace(text))
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return nil
	}
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &value
}

// parsePercentage converts precipitation chance text ("30%") to a number.
func parsePercentage(text string) *int {
	cleaned := strings.TrimSuffix(strings.TrimSpace(text), "%")
	if cleaned == "" {
		return nil
	}
	value, err := strconv.Atoi(cleaned)
	if err != nil || value < 0 || value > 100 {
		return nil
	}
	return &value
}

// normalizeWarningCode maps provider warning text onto the known color-code
// vocabulary; unrecognized text passes through as-is.
func normalizeWarningCode(text string) string {
	text = strings.TrimSpace(text)
	lower := strings.ToLower(text)
	for _, code := range warningCodes {
		if strings.Contains(lower, strings.ToLower(strings.TrimPrefix(code, "Code "))) {
			return code
		}
	}
	return text
}
