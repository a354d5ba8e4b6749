// Package prediction implements the prediction-serving pipeline: the
// inference engine wrapping the trained classifier, peak-window analysis over
// hourly forecasts, and the orchestrating service that composes feature
// transformation, caching, persistence, and result enrichment.
package prediction

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"rainbowcast/internal/features"
	"rainbowcast/internal/model"
	"rainbowcast/internal/types"
)

// BundleProvider supplies the trained model bundle currently in service.
// Implemented by model.Provider; hot reload swaps the bundle atomically, so
// in-flight calls keep the bundle they started with.
type BundleProvider interface {
	Current() (*model.Bundle, error)
}

// Engine wraps the trained classifier. Given an observation it produces a
// probability, a thresholded class label, and a confidence band. Pure given a
// loaded model; a missing model is a hard precondition failure, never retried.
type Engine struct {
	provider    BundleProvider
	transformer *features.Transformer
	logger      *slog.Logger
	clock       types.Clock
}

// NewEngine creates an inference engine over the given bundle provider.
func NewEngine(provider BundleProvider, transformer *features.Transformer, logger *slog.Logger, clock types.Clock) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	if transformer == nil {
		transformer = features.NewTransformer(clock)
	}
	return &Engine{
		provider:    provider,
		transformer: transformer,
		logger:      logger,
		clock:       clock,
	}
}

// Predict scores a single observation against the current model bundle.
//
// Fails with model_not_loaded when no bundle is in service and with
// validation_invalid_observation when the input cannot be coerced into a
// feature vector. Classifier errors (and panics) surface as
// inference_failure. The predicted class is 1 iff probability >= threshold;
// ties go to the positive class.
func (e *Engine) Predict(ctx context.Context, obs types.WeatherObservation) (*types.PredictionResult, error) {
	bundle, err := e.provider.Current()
	if err != nil {
		return nil, err
	}

	start := time.Now()

	featureMap, err := e.transformer.Transform(obs)
	if err != nil {
		return nil, err
	}
	vector := features.Vector(featureMap, bundle.FeatureNames)

	probability, err := safePredict(bundle, vector)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInferenceFailure, "classifier prediction failed", err)
	}

	predictedClass := 0
	if probability >= bundle.Threshold {
		predictedClass = 1
	}

	elapsed := time.Since(start)

	e.logger.DebugContext(ctx, "prediction computed",
		"model", bundle.ID(),
		"probability", probability,
		"class", predictedClass,
		"elapsed", elapsed.String(),
	)

	return &types.PredictionResult{
		Probability:    probability,
		PredictedClass: predictedClass,
		Confidence:     types.ConfidenceFor(probability),
		ModelID:        bundle.ID(),
		ExecutionTime:  elapsed.Seconds(),
		Timestamp:      e.clock.Now(),
		Cached:         false,
	}, nil
}

// safePredict shields the caller from classifier panics so a corrupt model
// artifact degrades to an inference failure instead of crashing the worker.
func safePredict(bundle *model.Bundle, vector []float64) (probability float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("classifier panicked: %v", r)
		}
	}()
	return bundle.PredictProba(vector)
}
