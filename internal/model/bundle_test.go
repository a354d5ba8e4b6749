package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const logisticArtifact = `{
	"model_name": "rainbow_lr",
	"version": "1.2.0",
	"threshold": 0.6,
	"feature_names": ["temperature", "humidity"],
	"trained_at": "2026-05-01T00:00:00Z",
	"logistic": {
		"weights": [0.8, -0.2],
		"intercept": 0.1
	}
}`

func TestParseBundle_Logistic(t *testing.T) {
	bundle, err := ParseBundle([]byte(logisticArtifact))
	require.NoError(t, err)

	assert.Equal(t, "rainbow_lr", bundle.Name)
	assert.Equal(t, "1.2.0", bundle.Version)
	assert.Equal(t, "rainbow_lr-1.2.0", bundle.ID())
	assert.Equal(t, 0.6, bundle.Threshold)
	assert.Equal(t, []string{"temperature", "humidity"}, bundle.FeatureNames)
	assert.False(t, bundle.LoadedAt.IsZero())

	p, err := bundle.PredictProba([]float64{1, 1})
	require.NoError(t, err)
	// sigmoid(0.1 + 0.8 - 0.2) = sigmoid(0.7)
	assert.InDelta(t, 0.66818, p, 1e-4)
}

func TestParseBundle_Defaults(t *testing.T) {
	bundle, err := ParseBundle([]byte(`{
		"feature_names": ["x"],
		"logistic": {"weights": [1.0], "intercept": 0}
	}`))
	require.NoError(t, err)

	assert.Equal(t, "unknown", bundle.Name)
	assert.Equal(t, "0.0.0", bundle.Version)
	assert.Equal(t, DefaultThreshold, bundle.Threshold)
}

func TestParseBundleWithDefault_FallbackApplies(t *testing.T) {
	bundle, err := ParseBundleWithDefault([]byte(`{
		"feature_names": ["x"],
		"logistic": {"weights": [1.0], "intercept": 0}
	}`), 0.9)
	require.NoError(t, err)
	assert.Equal(t, 0.9, bundle.Threshold)
}

func TestParseBundleWithDefault_ArtifactThresholdWins(t *testing.T) {
	bundle, err := ParseBundleWithDefault([]byte(logisticArtifact), 0.9)
	require.NoError(t, err)
	assert.Equal(t, 0.6, bundle.Threshold)
}

func TestParseBundleWithDefault_FallbackOutOfRangeIgnored(t *testing.T) {
	for _, fallback := range []float64{0, -0.1, 1, 1.5} {
		bundle, err := ParseBundleWithDefault([]byte(`{
			"feature_names": ["x"],
			"logistic": {"weights": [1.0], "intercept": 0}
		}`), fallback)
		require.NoError(t, err)
		assert.Equal(t, DefaultThreshold, bundle.Threshold)
	}
}

func TestParseBundle_ThresholdOutOfRangeIgnored(t *testing.T) {
	bundle, err := ParseBundle([]byte(`{
		"feature_names": ["x"],
		"threshold": 1.5,
		"logistic": {"weights": [1.0], "intercept": 0}
	}`))
	require.NoError(t, err)
	assert.Equal(t, DefaultThreshold, bundle.Threshold)
}

func TestParseBundle_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"invalid json", `{`},
		{"no feature names", `{"logistic": {"weights": [], "intercept": 0}}`},
		{"no classifier", `{"feature_names": ["x"]}`},
		{"two classifiers", `{
			"feature_names": ["x"],
			"logistic": {"weights": [1.0], "intercept": 0},
			"ensemble": {"init_score": 0, "learning_rate": 0.1, "trees": [{"nodes": [{"leaf": true, "value": 1}]}]}
		}`},
		{"weight count mismatch", `{
			"feature_names": ["x", "y"],
			"logistic": {"weights": [1.0], "intercept": 0}
		}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBundle([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestBundle_PredictProba_LengthMismatch(t *testing.T) {
	bundle, err := ParseBundle([]byte(logisticArtifact))
	require.NoError(t, err)

	_, err = bundle.PredictProba([]float64{1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match model schema")
}

func TestLoadBundle(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.json")
	require.NoError(t, os.WriteFile(path, []byte(logisticArtifact), 0o644))

	bundle, err := LoadBundle(path)
	require.NoError(t, err)
	assert.Equal(t, "rainbow_lr", bundle.Name)

	_, err = LoadBundle(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
