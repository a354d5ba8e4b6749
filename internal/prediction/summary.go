package prediction

import (
	"strings"

	"rainbowcast/internal/types"
)

// summarizeWeather renders the observation as a short human-readable phrase,
// one fragment per recognized measurement. Unrecognized-only observations are
// reported as unknown rather than empty.
func summarizeWeather(obs types.WeatherObservation) string {
	var parts []string

	if temp, ok := obs.Get(types.FieldTemperature); ok {
		switch {
		case temp < 10:
			parts = append(parts, "cold")
		case temp > 25:
			parts = append(parts, "warm")
		default:
			parts = append(parts, "mild")
		}
	}
	if humidity, ok := obs.Get(types.FieldHumidity); ok {
		switch {
		case humidity > 80:
			parts = append(parts, "very humid")
		case humidity > 60:
			parts = append(parts, "humid")
		default:
			parts = append(parts, "dry")
		}
	}
	if precip, ok := obs.Get(types.FieldPrecipitation); ok {
		switch {
		case precip > 5:
			parts = append(parts, "heavy rain")
		case precip > 0:
			parts = append(parts, "light rain")
		}
	}
	if cloud, ok := obs.Get(types.FieldCloudCover); ok {
		switch {
		case cloud > 75:
			parts = append(parts, "overcast")
		case cloud > 25:
			parts = append(parts, "partly cloudy")
		default:
			parts = append(parts, "clear")
		}
	}

	if len(parts) == 0 {
		return "unknown conditions"
	}
	return strings.Join(parts, ", ")
}

// recommendationFor maps a probability to advisory text in five fixed bands.
func recommendationFor(probability float64) string {
	switch {
	case probability >= 0.8:
		return "Excellent chance of rainbow! Get your camera ready and head outside."
	case probability >= 0.6:
		return "Good chance of rainbow. Keep an eye on the sky and be prepared."
	case probability >= 0.4:
		return "Moderate chance of rainbow. Weather conditions are promising."
	case probability >= 0.2:
		return "Low chance of rainbow, but still possible under right conditions."
	default:
		return "Very low chance of rainbow with current weather conditions."
	}
}
