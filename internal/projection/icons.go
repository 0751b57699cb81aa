package projection

import "strings"

// conditionKeywords maps Dutch condition keywords from the provider's icon
// descriptions onto mdi icons. Order matters: the first match wins.
var conditionKeywords = []struct {
	keyword string
	icon    string
}{
	{"onweer", "mdi:weather-lightning-rainy"},
	{"sneeuw", "mdi:weather-snowy"},
	{"hagel", "mdi:weather-hail"},
	{"regen", "mdi:weather-pouring"},
	{"buien", "mdi:weather-pouring"},
	{"mist", "mdi:weather-fog"},
	{"bewolkt", "mdi:weather-cloudy"},
	{"zon", "mdi:weather-sunny"},
}

// conditionIcon picks an mdi icon for a condition description, falling back
// to partly cloudy when nothing matches.
func conditionIcon(description string) string {
	lower := strings.ToLower(description)
	for _, c := range conditionKeywords {
		if strings.Contains(lower, c.keyword) {
			return c.icon
		}
	}
	return "mdi:weather-partly-cloudy"
}
