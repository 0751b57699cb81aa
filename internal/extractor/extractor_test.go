package extractor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/weerwacht/weerwacht/internal/weather"
)

const hourlySection = `
<h2>Weerbericht uur tot uur</h2>
<div>
  <div class="flex flex-col items-center">
    <p class="text-sm">14:00</p>
    <img src="/icons/bewolkt.svg" alt="bewolkt"/>
    <p class="text-xl">14,2°</p>
    <div class="flex items-center"><span>30%</span></div>
  </div>
  <div class="flex flex-col items-center">
    <p class="text-sm">15:00</p>
    <img src="/icons/regen.svg" alt="lichte regen"/>
    <p class="text-xl">13°</p>
    <div class="flex items-center"><span>80%</span></div>
  </div>
</div>`

const warningSection = `
<h2>Waarschuwingen</h2>
<div>
  <div class="border">
    <h3 class="h3">Code Geel waarschuwing</h3>
    <p class="font-normal">Plaatselijk gladde wegen door ijzel.</p>
    <a class="button-link" href="/waarschuwingen">Lees meer</a>
  </div>
</div>`

const emptyWarningSection = `
<h2>Waarschuwingen</h2>
<div>
  <p>Er zijn geen waarschuwingen van kracht.</p>
</div>`

const flashBanner = `
<div class="rounded-md border" style="background-color: yellow">
  <div class="flex items-center">Flash Gladheid</div>
  <p class="text-xs">Pas op voor gladheid in de ochtend.</p>
</div>`

const dailySection = `
<h2>Weerbericht daaglijks</h2>
<div>
  <div class="bg-gray-50">
    <h3 class="h3">Morgen</h3>
    <div class="flex flex-col items-center">
      <p class="text-sm">Ochtend</p>
      <img src="/icons/mist.svg" alt="mist"/>
      <p class="text-xl">4°</p>
      <div class="flex items-center"><span>10%</span></div>
    </div>
    <div class="flex flex-col items-center">
      <p class="text-sm">Middag</p>
      <img src="/icons/zonnig.svg" alt="zonnig"/>
      <p class="text-xl">11°</p>
      <div class="flex items-center"><span>0%</span></div>
    </div>
  </div>
</div>`

const astroSection = `
<h2>Zon en maan</h2>
<div>
  <dl>
    <dt>Zon op</dt><dd>07:02</dd>
    <dt>Zon onder</dt><dd>20:31</dd>
    <dt>Maanfase</dt><dd>Volle maan</dd>
    <dt>Luchtdruk</dt><dd>1013 hPa</dd>
  </dl>
</div>`

func page(sections ...string) []byte {
	body := ""
	for _, s := range sections {
		body += s
	}
	return []byte("<html><body>" + body + "</body></html>")
}

func newExtractor(t *testing.T) *Extractor {
	t.Helper()
	return New(Config{BaseURL: "https://www.weerplaza.nl/"}, zap.NewNop())
}

func TestExtract_FullPage(t *testing.T) {
	t.Parallel()

	fetchedAt := time.Date(2026, 3, 14, 14, 5, 0, 0, time.UTC)
	snap, err := newExtractor(t).Extract(page(flashBanner, warningSection, hourlySection, dailySection, astroSection), fetchedAt)
	require.NoError(t, err)

	require.Equal(t, fetchedAt, snap.FetchedAt)
	require.NotNil(t, snap.CurrentTemperature)
	require.InDelta(t, 14.2, *snap.CurrentTemperature, 0.001)

	require.Len(t, snap.Hourly, 2)
	require.Equal(t, "14:00", snap.Hourly[0].Hour)
	require.Equal(t, "bewolkt", snap.Hourly[0].Icon)
	require.NotNil(t, snap.Hourly[0].Precipitation)
	require.Equal(t, 30, *snap.Hourly[0].Precipitation)
	require.NotNil(t, snap.Hourly[1].Temperature)
	require.InDelta(t, 13, *snap.Hourly[1].Temperature, 0.001)

	require.NotNil(t, snap.Warning)
	require.Equal(t, "Code geel", snap.Warning.Code)
	require.Equal(t, "Plaatselijk gladde wegen door ijzel.", snap.Warning.Description)
	require.Equal(t, "https://www.weerplaza.nl/waarschuwingen", snap.Warning.Link)

	require.NotNil(t, snap.FlashMessage)
	require.Equal(t, "Gladheid", snap.FlashMessage.Title)
	require.Equal(t, "Pas op voor gladheid in de ochtend.", snap.FlashMessage.Message)

	require.Len(t, snap.Daily, 1)
	day := snap.Daily[0]
	require.Equal(t, "Morgen", day.Day)
	require.NotNil(t, day.MinTemperature)
	require.InDelta(t, 4, *day.MinTemperature, 0.001)
	require.NotNil(t, day.MaxTemperature)
	require.InDelta(t, 11, *day.MaxTemperature, 0.001)
	// The summary follows the warmest part of the day.
	require.Equal(t, "zonnig", day.Summary)
	require.Len(t, day.Parts, 2)

	require.Equal(t, map[string]string{
		"zon op":    "07:02",
		"zon onder": "20:31",
		"maanfase":  "Volle maan",
	}, snap.Astro)
}

func TestExtract_HourlyOnly(t *testing.T) {
	t.Parallel()

	snap, err := newExtractor(t).Extract(page(hourlySection), time.Now())
	require.NoError(t, err)

	require.Nil(t, snap.Warning)
	require.Equal(t, weather.NoWarning, snap.WarningCode())
	require.Nil(t, snap.FlashMessage)
	require.Empty(t, snap.Daily)
	require.Empty(t, snap.Astro)
	require.Len(t, snap.Hourly, 2)
}

func TestExtract_WarningSectionWithoutActiveWarning(t *testing.T) {
	t.Parallel()

	snap, err := newExtractor(t).Extract(page(hourlySection, emptyWarningSection), time.Now())
	require.NoError(t, err)
	require.Nil(t, snap.Warning)
	require.Equal(t, weather.NoWarning, snap.WarningCode())
}

func TestExtract_UnknownWarningTextPassesThrough(t *testing.T) {
	t.Parallel()

	section := `
<h2>Waarschuwingen</h2>
<div>
  <div class="border">
    <h3 class="h3">Extreem weer verwacht</h3>
    <p class="font-normal">Bijzondere situatie.</p>
  </div>
</div>`
	snap, err := newExtractor(t).Extract(page(hourlySection, section), time.Now())
	require.NoError(t, err)
	require.NotNil(t, snap.Warning)
	require.Equal(t, "Extreem weer verwacht", snap.Warning.Code)
	require.Empty(t, snap.Warning.Link)
}

func TestExtract_MissingHourlySectionFails(t *testing.T) {
	t.Parallel()

	_, err := newExtractor(t).Extract(page(warningSection, dailySection), time.Now())
	require.ErrorIs(t, err, weather.ErrExtraction)
}

func TestExtract_UnparsableFirstTemperatureFails(t *testing.T) {
	t.Parallel()

	section := `
<h2>Weerbericht uur tot uur</h2>
<div>
  <div class="flex flex-col items-center">
    <p class="text-sm">14:00</p>
    <p class="text-xl">--</p>
  </div>
</div>`
	_, err := newExtractor(t).Extract(page(section), time.Now())
	require.ErrorIs(t, err, weather.ErrExtraction)
}

func TestExtract_Idempotent(t *testing.T) {
	t.Parallel()

	markup := page(warningSection, hourlySection, dailySection, astroSection)
	fetchedAt := time.Date(2026, 3, 14, 14, 5, 0, 0, time.UTC)

	ex := newExtractor(t)
	first, err := ex.Extract(markup, fetchedAt)
	require.NoError(t, err)
	second, err := ex.Extract(markup, fetchedAt)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestParseTemperature(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want *float64
	}{
		{"15°", ptr(15.0)},
		{"-3,5 °C", ptr(-3.5)},
		{"0°", ptr(0.0)},
		{"  12,8° ", ptr(12.8)},
		{"--", nil},
		{"", nil},
		{"warm", nil},
	}
	for _, tc := range cases {
		got := parseTemperature(tc.in)
		if tc.want == nil {
			require.Nil(t, got, "input %q", tc.in)
			continue
		}
		require.NotNil(t, got, "input %q", tc.in)
		require.InDelta(t, *tc.want, *got, 0.001, "input %q", tc.in)
	}
}

func TestParsePercentage(t *testing.T) {
	t.Parallel()

	require.Nil(t, parsePercentage(""))
	require.Nil(t, parsePercentage("droog"))
	require.Nil(t, parsePercentage("130%"))
	require.Nil(t, parsePercentage("-5%"))

	got := parsePercentage("30%")
	require.NotNil(t, got)
	require.Equal(t, 30, *got)

	got = parsePercentage("0%")
	require.NotNil(t, got)
	require.Equal(t, 0, *got)
}

func TestNormalizeWarningCode(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Code geel", normalizeWarningCode("Code Geel waarschuwing"))
	require.Equal(t, "Code oranje", normalizeWarningCode("code oranje"))
	require.Equal(t, "Code rood", normalizeWarningCode("Waarschuwing: CODE ROOD"))
	require.Equal(t, "Onbekende tekst", normalizeWarningCode(" Onbekende tekst "))
	require.Equal(t, "", normalizeWarningCode("   "))
}

func ptr[T any](v T) *T { return &v }
