// Package features maps raw weather observations into the engineered feature
// space the trained classifier was fitted on. The transforms here mirror the
// ones applied to the training set: a single observation is treated as a
// one-row dataset, so rolling statistics collapse to the value itself and
// rate-of-change features collapse to zero.
package features

import (
	"math"

	"rainbowcast/internal/types"
)

// standardPressure is mean sea-level pressure in hPa, the reference point for
// the pressure delta features.
const standardPressure = 1013.25

// Transformer converts a single WeatherObservation into the named feature
// space. It is a pure function of the observation plus the clock (used only
// when the observation carries no timestamp).
type Transformer struct {
	clock types.Clock
}

// NewTransformer creates a Transformer. A nil clock defaults to real time.
func NewTransformer(clock types.Clock) *Transformer {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Transformer{clock: clock}
}

// Transform engineers the full feature set for one observation. Missing
// optional measurements simply produce no derived features; downstream vector
// assembly substitutes zero for any feature name the model expects but the
// map lacks. An observation with no measurements at all is rejected because
// it can never be coerced into a feature vector.
func (t *Transformer) Transform(obs types.WeatherObservation) (map[string]float64, error) {
	if obs.IsEmpty() {
		return nil, types.NewAppError(
			types.ErrCodeValidationInvalidObservation,
			"observation contains no numeric measurements",
			nil,
		)
	}

	f := make(map[string]float64, 48)
	for name, value := range obs.Measurements {
		f[name] = value
	}

	ts := t.clock.Now()
	if obs.Timestamp != nil {
		ts = *obs.Timestamp
	}

	addTimeFeatures(f, ts.Hour(), int(ts.Month()), ts.YearDay(), int(ts.Weekday()))
	addInteractionFeatures(f, obs)
	addRollingFeatures(f, obs)

	return f, nil
}

// Vector assembles the fixed-order numeric vector the model expects. Feature
// names absent from the map yield 0 at their position; they are never dropped,
// so the vector length always equals len(names) and positions stay aligned
// with the trained model.
func Vector(featureMap map[string]float64, names []string) []float64 {
	vec := make([]float64, len(names))
	for i, name := range names {
		vec[i] = featureMap[name]
	}
	return vec
}

// addTimeFeatures derives calendar and time-of-day features, including the
// cyclical sine/cosine encodings that let tree and linear models see hour 23
// as adjacent to hour 0.
func addTimeFeatures(f map[string]float64, hour, month, dayOfYear, dayOfWeek int) {
	f["hour"] = float64(hour)
	f["month"] = float64(month)
	f["day_of_year"] = float64(dayOfYear)
	f["day_of_week"] = float64(dayOfWeek)
	f["season"] = float64(seasonOf(month))

	f["is_morning"] = boolFeature(hour >= 6 && hour < 12)
	f["is_afternoon"] = boolFeature(hour >= 12 && hour < 18)
	f["is_evening"] = boolFeature(hour >= 18 && hour < 22)

	f["hour_sin"] = math.Sin(2 * math.Pi * float64(hour) / 24)
	f["hour_cos"] = math.Cos(2 * math.Pi * float64(hour) / 24)
	f["month_sin"] = math.Sin(2 * math.Pi * float64(month) / 12)
	f["month_cos"] = math.Cos(2 * math.Pi * float64(month) / 12)
}

// seasonOf buckets months into 0=winter, 1=spring, 2=summer, 3=autumn.
func seasonOf(month int) int {
	switch month {
	case 12, 1, 2:
		return 0
	case 3, 4, 5:
		return 1
	case 6, 7, 8:
		return 2
	default:
		return 3
	}
}

// addInteractionFeatures derives cross-measurement terms and categorical
// buckets. Each group is gated on the presence of its contributing
// measurements so partial sensor data never fabricates features.
func addInteractionFeatures(f map[string]float64, obs types.WeatherObservation) {
	temp, hasTemp := obs.Get(types.FieldTemperature)
	humidity, hasHumidity := obs.Get(types.FieldHumidity)
	pressure, hasPressure := obs.Get(types.FieldPressure)
	wind, hasWind := obs.Get(types.FieldWindSpeed)

	if hasTemp && hasHumidity {
		f["temp_humidity_interaction"] = temp * humidity / 100
		f["heat_index"] = heatIndex(temp, humidity)
	}

	if hasPressure {
		f["pressure_diff"] = pressure - standardPressure
		f["pressure_normalized"] = pressure / standardPressure
	}

	if hasWind && hasPressure {
		f["wind_pressure_interaction"] = wind * (pressure - standardPressure)
	}

	if precip, ok := obs.Get(types.FieldPrecipitation); ok {
		f["is_light_rain"] = boolFeature(precip > 0 && precip <= 2.5)
		f["is_moderate_rain"] = boolFeature(precip > 2.5 && precip <= 10)
		f["is_heavy_rain"] = boolFeature(precip > 10)
		f["has_precipitation"] = boolFeature(precip > 0)
	}

	if clouds, ok := obs.Get(types.FieldCloudCover); ok {
		f["is_partly_cloudy"] = boolFeature(clouds > 25 && clouds <= 75)
		f["is_mostly_cloudy"] = boolFeature(clouds > 75)
		f["is_clear"] = boolFeature(clouds <= 25)
	}

	if vis, ok := obs.Get(types.FieldVisibility); ok {
		f["good_visibility"] = boolFeature(vis >= 10)
		f["poor_visibility"] = boolFeature(vis < 5)
	}

	if uv, ok := obs.Get(types.FieldUVIndex); ok {
		f["low_uv"] = boolFeature(uv <= 3)
		f["moderate_uv"] = boolFeature(uv > 3 && uv <= 6)
		f["high_uv"] = boolFeature(uv > 6)
	}
}

// rollingBase lists the measurements that carry rolling statistics in the
// training pipeline.
var rollingBase = []string{
	types.FieldTemperature,
	types.FieldHumidity,
	types.FieldPressure,
	types.FieldWindSpeed,
}

// addRollingFeatures emits the degenerate single-row forms of the training
// pipeline's rolling-window statistics: the rolling mean of one sample is the
// sample, its standard deviation is zero, and its rate of change is zero.
func addRollingFeatures(f map[string]float64, obs types.WeatherObservation) {
	for _, name := range rollingBase {
		v, ok := obs.Get(name)
		if !ok {
			continue
		}
		f[name+"_rolling_mean_3h"] = v
		f[name+"_rolling_std_3h"] = 0
		f[name+"_rolling_mean_6h"] = v
		f[name+"_change_1h"] = 0
		f[name+"_change_3h"] = 0
	}
}

// heatIndex computes the feels-like temperature in Celsius from air
// temperature (Celsius) and relative humidity (percent). Uses the simplified
// Steadman regression, switching to the full Rothfusz regression above 80F.
func heatIndex(tempC, humidity float64) float64 {
	tf := tempC*9/5 + 32

	hi := 0.5 * (tf + 61.0 + (tf-68.0)*1.2 + humidity*0.094)

	if tf >= 80 {
		hi = -42.379 +
			2.04901523*tf +
			10.14333127*humidity -
			0.22475541*tf*humidity -
			0.00683783*tf*tf -
			0.05481717*humidity*humidity +
			0.00122874*tf*tf*humidity +
			0.00085282*tf*humidity*humidity -
			0.00000199*tf*tf*humidity*humidity
	}

	return (hi - 32) * 5 / 9
}

// boolFeature encodes a boolean condition as the numeric 0/1 the model expects.
func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
