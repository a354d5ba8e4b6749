package prediction

import (
	"context"
	"time"

	"github.com/montanaflynn/stats"

	"rainbowcast/internal/types"
)

// statsQueryLimit caps how many records one stats computation will pull.
const statsQueryLimit = 10000

// PredictionStats aggregates persisted predictions over a trailing window.
type PredictionStats struct {
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	PeriodDays  int       `json:"period_days"`

	TotalPredictions  int     `json:"total_predictions"`
	PositiveClass     int     `json:"positive_class"`
	PositiveRate      float64 `json:"positive_rate"`
	HighConfidence    int     `json:"high_confidence"`
	MediumConfidence  int     `json:"medium_confidence"`
	AvgProbability    float64 `json:"avg_probability"`
	MedianProbability float64 `json:"median_probability"`
	StdDevProbability float64 `json:"std_dev_probability"`
	MinProbability    float64 `json:"min_probability"`
	MaxProbability    float64 `json:"max_probability"`

	ModelVersions map[string]int `json:"model_versions"`
}

// Stats computes aggregate statistics over predictions persisted in the last
// days days.
func (s *service) Stats(ctx context.Context, days int) (*PredictionStats, error) {
	if s.history == nil {
		return nil, types.NewAppError(types.ErrCodePersistenceFailure, "prediction history is not configured", nil)
	}
	if days <= 0 {
		days = 7
	}

	end := s.clock.Now()
	start := end.AddDate(0, 0, -days)

	records, err := s.history.ListSince(ctx, start, statsQueryLimit)
	if err != nil {
		return nil, err
	}

	out := &PredictionStats{
		PeriodStart:   start,
		PeriodEnd:     end,
		PeriodDays:    days,
		ModelVersions: make(map[string]int),
	}
	if len(records) == 0 {
		return out, nil
	}

	probabilities := make([]float64, 0, len(records))
	for _, rec := range records {
		probabilities = append(probabilities, rec.Probability)
		if rec.PredictedClass == 1 {
			out.PositiveClass++
		}
		// Confidence derives from probability, so it is not stored.
		if types.ConfidenceFor(rec.Probability) == types.ConfidenceHigh {
			out.HighConfidence++
		} else {
			out.MediumConfidence++
		}
		if rec.ModelVersion != "" {
			out.ModelVersions[rec.ModelVersion]++
		}
	}

	out.TotalPredictions = len(records)
	out.PositiveRate = float64(out.PositiveClass) / float64(len(records))
	out.AvgProbability, _ = stats.Mean(probabilities)
	out.MedianProbability, _ = stats.Median(probabilities)
	out.StdDevProbability, _ = stats.StandardDeviation(probabilities)
	out.MinProbability, _ = stats.Min(probabilities)
	out.MaxProbability, _ = stats.Max(probabilities)

	return out, nil
}
