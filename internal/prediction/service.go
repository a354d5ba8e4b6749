package prediction

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"rainbowcast/internal/cache"
	"rainbowcast/internal/config"
	"rainbowcast/internal/types"
)

const (
	defaultBatchConcurrency = 8

	// Hours with probability at or above this count as favorable in the
	// forecast summary.
	favorableThreshold = 0.4
)

// ResultCache is the read-through cache consulted before single predictions.
// Implemented by cache.PredictionCache.
type ResultCache interface {
	Get(ctx context.Context, key string) (*types.PredictionResult, error)
	Put(ctx context.Context, key string, result *types.PredictionResult) error
}

// HistoryStore persists prediction outcomes and serves the history queries
// behind the recent and stats endpoints. Implemented by db.PredictionRepository.
type HistoryStore interface {
	Save(ctx context.Context, record *types.PredictionRecord) error
	Recent(ctx context.Context, limit int) ([]*types.PredictionRecord, error)
	ListSince(ctx context.Context, since time.Time, limit int) ([]*types.PredictionRecord, error)
}

// Service is the prediction pipeline entrypoint used by the HTTP layer.
type Service interface {
	Predict(ctx context.Context, obs types.WeatherObservation, loc *types.Location, useCache bool) (*types.PredictionResult, error)
	PredictBatch(ctx context.Context, observations []types.WeatherObservation, loc *types.Location) ([]*types.PredictionResult, error)
	PredictTimeSeries(ctx context.Context, obs types.WeatherObservation, forecastHours int, loc *types.Location) (*types.TimeSeriesForecast, error)
	RecentPredictions(ctx context.Context, limit int) ([]*types.PredictionRecord, error)
	Stats(ctx context.Context, days int) (*PredictionStats, error)
}

type service struct {
	engine    *Engine
	cache     ResultCache
	history   HistoryStore
	simulator ForecastSimulator
	cfg       config.PredictionConfig
	logger    *slog.Logger
	clock     types.Clock
}

// NewService wires the pipeline. cache and history are optional; when nil the
// corresponding stage is skipped without degradation warnings.
func NewService(engine *Engine, resultCache ResultCache, history HistoryStore, simulator ForecastSimulator, cfg config.PredictionConfig, logger *slog.Logger, clock types.Clock) Service {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	if simulator == nil {
		simulator = NewDiurnalSimulator(uint64(clock.Now().UnixNano()))
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = defaultBatchConcurrency
	}
	return &service{
		engine:    engine,
		cache:     resultCache,
		history:   history,
		simulator: simulator,
		cfg:       cfg,
		logger:    logger,
		clock:     clock,
	}
}

// Predict runs one observation through the full pipeline: cache lookup,
// inference, enrichment, cache write-back, persistence. Cache and persistence
// failures degrade to warnings on the result; only model, validation, and
// inference errors fail the call.
func (s *service) Predict(ctx context.Context, obs types.WeatherObservation, loc *types.Location, useCache bool) (*types.PredictionResult, error) {
	var key string
	var readDegraded bool

	if useCache && s.cache != nil {
		key = cache.DeriveKey(obs, loc)
		cached, err := s.cache.Get(ctx, key)
		if err != nil {
			readDegraded = true
			s.logger.WarnContext(ctx, "cache read degraded", "error", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	result, err := s.engine.Predict(ctx, obs)
	if err != nil {
		return nil, err
	}

	result.Location = loc
	result.WeatherSummary = summarizeWeather(obs)
	result.Recommendation = recommendationFor(result.Probability)

	if readDegraded {
		result.AddWarning(types.ErrCodeCacheUnavailable, "cache read failed; prediction computed without cache")
	}

	if key != "" {
		if err := s.cache.Put(ctx, key, result); err != nil {
			s.logger.WarnContext(ctx, "cache write degraded", "error", err)
			result.AddWarning(types.ErrCodeCacheUnavailable, "cache write failed; result not cached")
		}
	}

	s.persist(ctx, result, obs)

	return result, nil
}

// persist records the result for later analysis. Persistence is best-effort:
// a failed save becomes a warning on the result, never a request failure.
func (s *service) persist(ctx context.Context, result *types.PredictionResult, obs types.WeatherObservation) {
	if s.history == nil {
		return
	}

	weatherData, err := json.Marshal(obs)
	if err != nil {
		s.logger.WarnContext(ctx, "prediction not persisted", "error", err)
		result.AddWarning(types.ErrCodePersistenceFailure, "prediction result was not persisted")
		return
	}

	record := &types.PredictionRecord{
		ID:             uuid.NewString(),
		CreatedAt:      s.clock.Now(),
		Probability:    result.Probability,
		PredictedClass: result.PredictedClass,
		WeatherData:    weatherData,
		ModelVersion:   result.ModelID,
	}
	if err := s.history.Save(ctx, record); err != nil {
		s.logger.WarnContext(ctx, "prediction not persisted", "error", err)
		result.AddWarning(types.ErrCodePersistenceFailure, "prediction result was not persisted")
		return
	}
	result.ID = record.ID
}

// PredictBatch scores observations concurrently, preserving input order.
// A failing item never aborts the batch: it yields a placeholder result with
// the error message and zero probability. The cache is bypassed for batch
// items.
func (s *service) PredictBatch(ctx context.Context, observations []types.WeatherObservation, loc *types.Location) ([]*types.PredictionResult, error) {
	results := make([]*types.PredictionResult, len(observations))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.BatchConcurrency)

	for i, obs := range observations {
		g.Go(func() error {
			result, err := s.Predict(gctx, obs, loc, false)
			if err != nil {
				result = s.failedResult(err)
			}
			index := i
			result.BatchIndex = &index
			results[i] = result
			return nil
		})
	}
	// Workers never return errors; failures are encoded per item.
	_ = g.Wait()

	return results, nil
}

// PredictTimeSeries projects the observation forward hour by hour, scores
// each projection, and analyzes the resulting probability curve for peak
// windows. Hours are scored sequentially in ascending order.
func (s *service) PredictTimeSeries(ctx context.Context, obs types.WeatherObservation, forecastHours int, loc *types.Location) (*types.TimeSeriesForecast, error) {
	base := s.clock.Now()
	if obs.Timestamp != nil {
		base = *obs.Timestamp
	}

	predictions := make([]*types.PredictionResult, 0, forecastHours)
	points := make([]types.HourlyPoint, 0, forecastHours)

	for hour := 0; hour < forecastHours; hour++ {
		projected := s.simulator.Project(obs, base, hour)

		result, err := s.Predict(ctx, projected, loc, false)
		if err != nil {
			result = s.failedResult(err)
		}

		h := hour
		forecastTime := base.Add(time.Duration(hour) * time.Hour)
		result.ForecastHour = &h
		result.ForecastTime = &forecastTime

		predictions = append(predictions, result)
		points = append(points, types.HourlyPoint{Hour: hour, Probability: result.Probability})
	}

	windows := FindPeakWindows(points, s.cfg.PeakWindowThreshold)
	summary := summarizeForecast(points)

	return &types.TimeSeriesForecast{
		Predictions:    predictions,
		PeakWindows:    windows,
		MaxProbability: summary.MaxProbability,
		Summary:        summary,
		GeneratedAt:    s.clock.Now(),
	}, nil
}

// RecentPredictions returns the newest persisted results, newest first.
func (s *service) RecentPredictions(ctx context.Context, limit int) ([]*types.PredictionRecord, error) {
	if s.history == nil {
		return nil, types.NewAppError(types.ErrCodePersistenceFailure, "prediction history is not configured", nil)
	}
	return s.history.Recent(ctx, limit)
}

// failedResult encodes a per-item failure as a result so batches and series
// stay positionally complete.
func (s *service) failedResult(err error) *types.PredictionResult {
	return &types.PredictionResult{
		Probability:    0,
		PredictedClass: 0,
		Confidence:     types.ConfidenceLow,
		Timestamp:      s.clock.Now(),
		Error:          err.Error(),
	}
}

func summarizeForecast(points []types.HourlyPoint) types.ForecastSummary {
	summary := types.ForecastSummary{TotalHours: len(points)}
	if len(points) == 0 {
		return summary
	}

	var sum float64
	peak := points[0]
	for _, pt := range points {
		sum += pt.Probability
		if pt.Probability > peak.Probability {
			peak = pt
		}
		if pt.Probability >= favorableThreshold {
			summary.FavorableHours++
		}
	}
	summary.MaxProbability = peak.Probability
	summary.AvgProbability = sum / float64(len(points))
	summary.PeakHour = peak.Hour
	return summary
}
