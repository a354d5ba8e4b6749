package cache

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"rainbowcast/internal/types"
)

func obs(m map[string]float64) types.WeatherObservation {
	return types.WeatherObservation{Measurements: m}
}

func TestDeriveKey_Deterministic(t *testing.T) {
	o := obs(map[string]float64{"temperature": 22.5, "humidity": 80})
	loc := &types.Location{Latitude: 47.6062, Longitude: -122.3321}

	k1 := DeriveKey(o, loc)
	k2 := DeriveKey(o.Clone(), &types.Location{Latitude: 47.6062, Longitude: -122.3321})

	assert.Equal(t, k1, k2)
	assert.True(t, strings.HasPrefix(k1, KeyPrefix))
}

func TestDeriveKey_QuantizationCollapsesNoise(t *testing.T) {
	// Differences past the second decimal place collapse onto one key.
	a := DeriveKey(obs(map[string]float64{"temperature": 22.501}), nil)
	b := DeriveKey(obs(map[string]float64{"temperature": 22.503}), nil)
	assert.Equal(t, a, b)

	// Differences at the second decimal place stay distinct.
	c := DeriveKey(obs(map[string]float64{"temperature": 22.50}), nil)
	d := DeriveKey(obs(map[string]float64{"temperature": 22.51}), nil)
	assert.NotEqual(t, c, d)
}

func TestDeriveKey_CoordinateQuantization(t *testing.T) {
	o := obs(map[string]float64{"temperature": 20})

	a := DeriveKey(o, &types.Location{Latitude: 47.60621, Longitude: 0})
	b := DeriveKey(o, &types.Location{Latitude: 47.60624, Longitude: 0})
	assert.Equal(t, a, b, "sub-4-decimal latitude noise collapses")

	c := DeriveKey(o, &types.Location{Latitude: 47.6062, Longitude: 0})
	d := DeriveKey(o, &types.Location{Latitude: 47.6063, Longitude: 0})
	assert.NotEqual(t, c, d)
}

func TestDeriveKey_LocationChangesKey(t *testing.T) {
	o := obs(map[string]float64{"temperature": 20})

	without := DeriveKey(o, nil)
	with := DeriveKey(o, &types.Location{Latitude: 10, Longitude: 10})
	assert.NotEqual(t, without, with)
}

func TestDeriveKey_TimestampChangesKey(t *testing.T) {
	t1 := time.Date(2026, 6, 15, 14, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	o1 := types.WeatherObservation{Measurements: map[string]float64{"temperature": 20}, Timestamp: &t1}
	o2 := types.WeatherObservation{Measurements: map[string]float64{"temperature": 20}, Timestamp: &t2}

	assert.NotEqual(t, DeriveKey(o1, nil), DeriveKey(o2, nil))
}

func TestDeriveKey_FieldOrderIrrelevant(t *testing.T) {
	// Map iteration order varies run to run; the sorted canonical form must
	// make derivation independent of it. Distinct field sets must differ.
	a := DeriveKey(obs(map[string]float64{"temperature": 20, "humidity": 80, "pressure": 1013}), nil)
	b := DeriveKey(obs(map[string]float64{"pressure": 1013, "humidity": 80, "temperature": 20}), nil)
	assert.Equal(t, a, b)

	c := DeriveKey(obs(map[string]float64{"temperature": 20, "humidity": 80}), nil)
	assert.NotEqual(t, a, c)
}

func TestQuantize(t *testing.T) {
	assert.Equal(t, "22.50", quantize(22.501, 2))
	assert.Equal(t, "22.50", quantize(22.499, 2))
	assert.Equal(t, "-0.25", quantize(-0.2501, 2))
	assert.Equal(t, "47.6062", quantize(47.60621, 4))
	assert.Equal(t, "0.00", quantize(0, 2))
}
