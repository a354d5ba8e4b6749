// Package cache implements the prediction cache: a deterministic key deriver
// that fingerprints (observation, location) pairs, and a Redis-backed,
// best-effort store for previously computed prediction results.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"rainbowcast/internal/types"
)

// KeyPrefix namespaces every cache key written by this service.
const KeyPrefix = "rainbow_prediction:"

// Quantization precision for key derivation. Measurement noise below these
// precisions intentionally collapses onto the same key: two observations
// differing only past the rounding digit are indistinguishable for caching,
// trading a small accuracy risk for a materially higher hit rate on noisy
// sensor data.
const (
	measurementDecimals = 2
	coordinateDecimals  = 4
)

// DeriveKey produces the stable, collision-resistant cache identifier for an
// observation and optional location. Measurements are rounded to 2 decimal
// places, coordinates to 4; the quantized fields are serialized with sorted
// keys and hashed, so identical quantized inputs always yield identical keys
// regardless of field order. The observation's timestamp, when present,
// participates in the key: time of day shifts the engineered features, so
// observations an hour apart must not share an entry.
func DeriveKey(obs types.WeatherObservation, loc *types.Location) string {
	fields := make([]string, 0, len(obs.Measurements)+3)

	for name, value := range obs.Measurements {
		fields = append(fields, name+"="+quantize(value, measurementDecimals))
	}
	if loc != nil {
		fields = append(fields, "lat="+quantize(loc.Latitude, coordinateDecimals))
		fields = append(fields, "lon="+quantize(loc.Longitude, coordinateDecimals))
	}
	if obs.Timestamp != nil {
		fields = append(fields, "timestamp="+obs.Timestamp.UTC().Format(time.RFC3339))
	}

	sort.Strings(fields)
	canonical := strings.Join(fields, "&")

	sum := sha256.Sum256([]byte(canonical))
	return KeyPrefix + hex.EncodeToString(sum[:16])
}

// quantize renders a value rounded to the given number of decimal places in a
// fixed-width form, so 22.001 and 22.004 both become "22.00" while 22.00 and
// 22.01 stay distinct.
func quantize(v float64, decimals int) string {
	shift := math.Pow10(decimals)
	rounded := math.Round(v*shift) / shift
	return strconv.FormatFloat(rounded, 'f', decimals, 64)
}
