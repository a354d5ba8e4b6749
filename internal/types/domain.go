package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// Canonical measurement field names. Upstream sensors report an arbitrary
// subset of these; unknown numeric fields are carried through untouched so
// they still participate in cache-key derivation.
const (
	FieldTemperature   = "temperature"
	FieldHumidity      = "humidity"
	FieldPressure      = "pressure"
	FieldWindSpeed     = "wind_speed"
	FieldWindDirection = "wind_direction"
	FieldPrecipitation = "precipitation"
	FieldCloudCover    = "cloud_cover"
	FieldVisibility    = "visibility"
	FieldUVIndex       = "uv_index"
)

// WeatherObservation is one set of weather measurements at a point in time.
// Any subset of fields may be present. Immutable once constructed.
type WeatherObservation struct {
	Measurements map[string]float64
	Timestamp    *time.Time
}

// Get returns the named measurement and whether it is present.
func (o WeatherObservation) Get(name string) (float64, bool) {
	v, ok := o.Measurements[name]
	return v, ok
}

// IsEmpty reports whether the observation carries no measurements at all.
func (o WeatherObservation) IsEmpty() bool {
	return len(o.Measurements) == 0
}

// Clone returns a deep copy of the observation. Callers that need to merge
// location coordinates into the measurement set do so on a copy, keeping the
// original immutable.
func (o WeatherObservation) Clone() WeatherObservation {
	m := make(map[string]float64, len(o.Measurements))
	for k, v := range o.Measurements {
		m[k] = v
	}
	return WeatherObservation{Measurements: m, Timestamp: o.Timestamp}
}

// UnmarshalJSON decodes a flat JSON object into the observation. Every field
// except "timestamp" must be numeric; "timestamp" is an RFC 3339 string.
// Non-numeric measurement values are a hard error because an observation that
// cannot be coerced to numbers can never become a feature vector.
func (o *WeatherObservation) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	o.Measurements = make(map[string]float64, len(raw))
	o.Timestamp = nil

	for k, v := range raw {
		if k == "timestamp" {
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return fmt.Errorf("timestamp must be an RFC 3339 string: %w", err)
			}
			ts, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return fmt.Errorf("parsing timestamp %q: %w", s, err)
			}
			o.Timestamp = &ts
			continue
		}

		var f float64
		if err := json.Unmarshal(v, &f); err != nil {
			return fmt.Errorf("measurement %q is not numeric: %w", k, err)
		}
		o.Measurements[k] = f
	}

	return nil
}

// MarshalJSON encodes the observation back into the flat wire form.
func (o WeatherObservation) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(o.Measurements)+1)
	for k, v := range o.Measurements {
		out[k] = v
	}
	if o.Timestamp != nil {
		out["timestamp"] = o.Timestamp.Format(time.RFC3339)
	}
	return json.Marshal(out)
}

// Location is a latitude/longitude pair attached to an observation for
// cache-key derivation and persistence. It never enters the feature vector
// unless the caller merges it into the observation explicitly.
type Location struct {
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
}

// Confidence is the qualitative certainty band of a prediction.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ConfidenceFor derives the confidence band from a probability. Confidence is
// about distance from the decision boundary's uncertainty region: values deep
// in either tail are "high", values near the boundary are "medium".
func ConfidenceFor(probability float64) Confidence {
	if probability > 0.7 || probability < 0.3 {
		return ConfidenceHigh
	}
	return ConfidenceMedium
}

// ResultWarning records a recovered, non-fatal dependency failure on a
// prediction result (cache or persistence degradation). Callers can assert on
// degradation via the code without parsing log output.
type ResultWarning struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// PredictionResult is the outcome of one inference call, enriched by the
// prediction service with location, summary and recommendation text. It is
// never mutated after creation except for the Cached flag when a stored copy
// is served from cache.
type PredictionResult struct {
	ID             string     `json:"id,omitempty"`
	Probability    float64    `json:"probability"`
	PredictedClass int        `json:"predicted_class"`
	Confidence     Confidence `json:"confidence"`
	ModelID        string     `json:"model_id,omitempty"`
	ExecutionTime  float64    `json:"execution_time_seconds"`
	Timestamp      time.Time  `json:"timestamp"`
	Cached         bool       `json:"cached"`

	Location       *Location `json:"location,omitempty"`
	WeatherSummary string    `json:"weather_summary,omitempty"`
	Recommendation string    `json:"recommendation,omitempty"`

	// Set on batch and time-series items.
	BatchIndex   *int       `json:"batch_index,omitempty"`
	ForecastHour *int       `json:"forecast_hour,omitempty"`
	ForecastTime *time.Time `json:"forecast_time,omitempty"`

	// Error annotates failed batch/time-series items that were substituted
	// with a zero-probability result instead of aborting the operation.
	Error string `json:"error,omitempty"`

	Warnings []ResultWarning `json:"warnings,omitempty"`
}

// AddWarning appends a degradation warning to the result.
func (r *PredictionResult) AddWarning(code ErrorCode, message string) {
	r.Warnings = append(r.Warnings, ResultWarning{Code: code, Message: message})
}

// HourlyPoint pairs a forecast hour offset with its predicted probability.
// Input to peak-window analysis; must be ordered by ascending hour.
type HourlyPoint struct {
	Hour        int     `json:"hour"`
	Probability float64 `json:"probability"`
}

// ForecastWindow is a contiguous run of forecast hours whose predicted
// probability stays at or above the peak threshold. Hours are inclusive on
// both ends.
type ForecastWindow struct {
	StartHour      int     `json:"start_hour"`
	EndHour        int     `json:"end_hour"`
	MaxProbability float64 `json:"max_probability"`
	AvgProbability float64 `json:"avg_probability"`
	DurationHours  int     `json:"duration_hours"`
}

// ForecastSummary aggregates a full time-series forecast.
type ForecastSummary struct {
	MaxProbability float64 `json:"max_probability"`
	AvgProbability float64 `json:"avg_probability"`
	PeakHour       int     `json:"peak_hour"`
	FavorableHours int     `json:"favorable_hours"`
	TotalHours     int     `json:"total_hours"`
}

// TimeSeriesForecast is the result of a multi-hour forecast: the ordered
// per-hour predictions, the peak windows found in them, and a summary.
type TimeSeriesForecast struct {
	Predictions    []*PredictionResult `json:"predictions"`
	PeakWindows    []ForecastWindow    `json:"peak_windows"`
	MaxProbability float64             `json:"max_probability"`
	Summary        ForecastSummary     `json:"forecast_summary"`
	GeneratedAt    time.Time           `json:"generated_at"`
}

// PredictionRecord is the persisted form of a prediction, stored for history
// and statistics. WeatherData holds the raw observation as JSON.
type PredictionRecord struct {
	ID             string          `json:"id" db:"id"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	Probability    float64         `json:"probability" db:"probability"`
	PredictedClass int             `json:"predicted_class" db:"predicted_class"`
	WeatherData    json.RawMessage `json:"weather_data" db:"weather_data"`
	ModelVersion   string          `json:"model_version" db:"model_version"`
}
