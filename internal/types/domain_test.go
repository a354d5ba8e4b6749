package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfidenceFor(t *testing.T) {
	tests := []struct {
		probability float64
		want        Confidence
	}{
		{0.0, ConfidenceHigh},
		{0.29, ConfidenceHigh},
		{0.3, ConfidenceMedium}, // boundary: not strictly below
		{0.5, ConfidenceMedium},
		{0.7, ConfidenceMedium}, // boundary: not strictly above
		{0.71, ConfidenceHigh},
		{1.0, ConfidenceHigh},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ConfidenceFor(tt.probability), "probability %v", tt.probability)
	}
}

func TestWeatherObservation_UnmarshalJSON(t *testing.T) {
	var obs WeatherObservation
	err := json.Unmarshal([]byte(`{
		"temperature": 22.5,
		"humidity": 80,
		"mystery_sensor": 3.14,
		"timestamp": "2026-06-15T14:00:00Z"
	}`), &obs)
	require.NoError(t, err)

	temp, ok := obs.Get(FieldTemperature)
	require.True(t, ok)
	assert.Equal(t, 22.5, temp)

	// Unknown numeric fields are carried through.
	mystery, ok := obs.Get("mystery_sensor")
	require.True(t, ok)
	assert.Equal(t, 3.14, mystery)

	require.NotNil(t, obs.Timestamp)
	assert.Equal(t, time.Date(2026, 6, 15, 14, 0, 0, 0, time.UTC), obs.Timestamp.UTC())
}

func TestWeatherObservation_UnmarshalJSON_NonNumeric(t *testing.T) {
	var obs WeatherObservation
	err := json.Unmarshal([]byte(`{"temperature": "warm"}`), &obs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "temperature")
}

func TestWeatherObservation_UnmarshalJSON_BadTimestamp(t *testing.T) {
	var obs WeatherObservation
	err := json.Unmarshal([]byte(`{"timestamp": "yesterday"}`), &obs)
	require.Error(t, err)
}

func TestWeatherObservation_MarshalRoundTrip(t *testing.T) {
	ts := time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)
	obs := WeatherObservation{
		Measurements: map[string]float64{FieldTemperature: 18, FieldHumidity: 72},
		Timestamp:    &ts,
	}

	data, err := json.Marshal(obs)
	require.NoError(t, err)

	var decoded WeatherObservation
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, obs.Measurements, decoded.Measurements)
	require.NotNil(t, decoded.Timestamp)
	assert.True(t, decoded.Timestamp.Equal(ts))
}

func TestWeatherObservation_Clone(t *testing.T) {
	obs := WeatherObservation{Measurements: map[string]float64{FieldTemperature: 20}}
	clone := obs.Clone()

	clone.Measurements[FieldTemperature] = 99
	temp, _ := obs.Get(FieldTemperature)
	assert.Equal(t, 20.0, temp, "clone must not share the measurement map")
}

func TestAddWarning(t *testing.T) {
	r := &PredictionResult{}
	r.AddWarning(ErrCodeCacheUnavailable, "cache write failed")
	r.AddWarning(ErrCodePersistenceFailure, "not persisted")

	require.Len(t, r.Warnings, 2)
	assert.Equal(t, ErrCodeCacheUnavailable, r.Warnings[0].Code)
	assert.Equal(t, ErrCodePersistenceFailure, r.Warnings[1].Code)
}
