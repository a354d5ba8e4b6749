// Package model loads and serves the trained rainbow classifier. A model is
// distributed as a JSON artifact produced by the offline training pipeline:
// it carries the ordered feature names the classifier was fitted on, the
// decision threshold, and the classifier parameters themselves (either
// logistic-regression weights or a gradient-boosted tree ensemble).
//
// The artifact is opaque to the rest of the service beyond PredictProba and
// its metadata. Bundles are immutable after loading; replacement happens by
// atomic swap in the Provider, never by field mutation.
package model

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Classifier scores a feature vector, returning the probability of the
// positive class in [0, 1].
type Classifier interface {
	PredictProba(features []float64) (float64, error)
}

// DefaultThreshold is the decision threshold used when the artifact does not
// carry one.
const DefaultThreshold = 0.5

// Bundle is a loaded, ready-to-serve model: classifier plus the schema and
// threshold captured at training time. Read concurrently by all inference
// calls; never mutated after construction.
type Bundle struct {
	Name         string
	Version      string
	Threshold    float64
	FeatureNames []string
	TrainedAt    time.Time
	LoadedAt     time.Time

	classifier Classifier
}

// ID returns the model identifier recorded on every prediction result.
func (b *Bundle) ID() string {
	return fmt.Sprintf("%s-%s", b.Name, b.Version)
}

// PredictProba scores the feature vector with the underlying classifier.
// The vector length must match the trained feature schema.
func (b *Bundle) PredictProba(features []float64) (float64, error) {
	if len(features) != len(b.FeatureNames) {
		return 0, fmt.Errorf("feature vector length %d does not match model schema length %d",
			len(features), len(b.FeatureNames))
	}
	return b.classifier.PredictProba(features)
}

// artifact is the on-disk JSON form of a trained model.
type artifact struct {
	ModelName    string    `json:"model_name"`
	Version      string    `json:"version"`
	Threshold    *float64  `json:"threshold,omitempty"`
	FeatureNames []string  `json:"feature_names"`
	TrainedAt    time.Time `json:"trained_at"`

	// Exactly one of the following must be present.
	Logistic *LogisticParams     `json:"logistic,omitempty"`
	Ensemble *TreeEnsembleParams `json:"ensemble,omitempty"`
}

// LoadBundle reads and validates a model artifact from disk. Artifacts that
// omit a threshold get DefaultThreshold.
func LoadBundle(path string) (*Bundle, error) {
	return LoadBundleWithDefault(path, DefaultThreshold)
}

// LoadBundleWithDefault is LoadBundle with a caller-supplied fallback
// threshold for artifacts that do not carry one. A fallback outside (0, 1)
// falls through to DefaultThreshold; an artifact threshold always wins.
func LoadBundleWithDefault(path string, fallback float64) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model artifact %s: %w", path, err)
	}
	return ParseBundleWithDefault(data, fallback)
}

// ParseBundle decodes a model artifact from its serialized JSON form.
func ParseBundle(data []byte) (*Bundle, error) {
	return ParseBundleWithDefault(data, DefaultThreshold)
}

// ParseBundleWithDefault is ParseBundle with a caller-supplied fallback
// threshold for artifacts that do not carry one.
func ParseBundleWithDefault(data []byte, fallback float64) (*Bundle, error) {
	var art artifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("decoding model artifact: %w", err)
	}

	if len(art.FeatureNames) == 0 {
		return nil, fmt.Errorf("model artifact has no feature names")
	}

	var (
		clf Classifier
		err error
	)
	switch {
	case art.Logistic != nil && art.Ensemble != nil:
		return nil, fmt.Errorf("model artifact declares multiple classifiers")
	case art.Logistic != nil:
		clf, err = newLogistic(art.Logistic, len(art.FeatureNames))
	case art.Ensemble != nil:
		clf, err = newTreeEnsemble(art.Ensemble, len(art.FeatureNames))
	default:
		return nil, fmt.Errorf("model artifact declares no classifier")
	}
	if err != nil {
		return nil, err
	}

	return assemble(&art, clf, fallback), nil
}

func assemble(art *artifact, clf Classifier, fallback float64) *Bundle {
	threshold := fallback
	if threshold <= 0 || threshold >= 1 {
		threshold = DefaultThreshold
	}
	if art.Threshold != nil && *art.Threshold > 0 && *art.Threshold < 1 {
		threshold = *art.Threshold
	}

	name := art.ModelName
	if name == "" {
		name = "unknown"
	}
	version := art.Version
	if version == "" {
		version = "0.0.0"
	}

	return &Bundle{
		Name:         name,
		Version:      version,
		Threshold:    threshold,
		FeatureNames: art.FeatureNames,
		TrainedAt:    art.TrainedAt,
		LoadedAt:     time.Now().UTC(),
		classifier:   clf,
	}
}
