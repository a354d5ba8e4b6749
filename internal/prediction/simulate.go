package prediction

import (
	"math/rand/v2"
	"sync"
	"time"

	"rainbowcast/internal/types"
)

// ForecastSimulator projects a current observation N hours forward. The
// default implementation is a synthetic diurnal model; a real forecast
// provider can be dropped in behind the same interface.
type ForecastSimulator interface {
	Project(obs types.WeatherObservation, base time.Time, hoursAhead int) types.WeatherObservation
}

// DiurnalSimulator applies simple day/night cycles to the current
// measurements: temperature dips overnight and peaks in the afternoon,
// humidity moves inversely, precipitation gets random decay/growth jitter.
type DiurnalSimulator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewDiurnalSimulator creates a simulator with a deterministic source so
// forecasts are reproducible under test.
func NewDiurnalSimulator(seed uint64) *DiurnalSimulator {
	return &DiurnalSimulator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Project returns a copy of obs adjusted for the target hour, stamped with
// the projected time. The input observation is never mutated.
func (s *DiurnalSimulator) Project(obs types.WeatherObservation, base time.Time, hoursAhead int) types.WeatherObservation {
	projected := obs.Clone()
	hour := (base.Hour() + hoursAhead) % 24

	if temp, ok := projected.Get(types.FieldTemperature); ok {
		projected.Measurements[types.FieldTemperature] = temp * tempFactor(hour)
	}
	if humidity, ok := projected.Get(types.FieldHumidity); ok {
		adjusted := humidity * humidityFactor(hour)
		if adjusted > 100 {
			adjusted = 100
		}
		projected.Measurements[types.FieldHumidity] = adjusted
	}
	if precip, ok := projected.Get(types.FieldPrecipitation); ok {
		s.mu.Lock()
		jitter := 0.5 + s.rng.Float64()
		s.mu.Unlock()
		projected.Measurements[types.FieldPrecipitation] = precip * jitter
	}

	when := base.Add(time.Duration(hoursAhead) * time.Hour)
	projected.Timestamp = &when
	return projected
}

func tempFactor(hour int) float64 {
	switch {
	case hour <= 6:
		return 0.8
	case hour >= 12 && hour <= 16:
		return 1.1
	default:
		return 1.0
	}
}

func humidityFactor(hour int) float64 {
	switch {
	case hour <= 6:
		return 1.2
	case hour >= 12 && hour <= 16:
		return 0.9
	default:
		return 1.0
	}
}
