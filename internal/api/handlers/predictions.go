// Package handlers contains the HTTP handler implementations for the
// Rainbowcast API. Handlers translate between the wire format and the
// prediction service; request caps (batch size, forecast horizon) are
// enforced here, never inside the prediction core.
package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	"rainbowcast/internal/core"
	"rainbowcast/internal/prediction"
	"rainbowcast/internal/types"
)

// defaultForecastHours is used when a forecast request omits forecast_hours.
const defaultForecastHours = 24

// requiredObservationFields must be present in single-prediction input.
// Batch and forecast items are looser: the model tolerates sparse vectors,
// and per-item validation there degrades to error-annotated results.
var requiredObservationFields = []string{
	types.FieldTemperature,
	types.FieldHumidity,
	types.FieldPressure,
}

// PredictionServiceInterface is the service contract the handler consumes.
// Defined locally to keep the handler decoupled from the concrete service.
type PredictionServiceInterface interface {
	Predict(ctx context.Context, obs types.WeatherObservation, loc *types.Location, useCache bool) (*types.PredictionResult, error)
	PredictBatch(ctx context.Context, observations []types.WeatherObservation, loc *types.Location) ([]*types.PredictionResult, error)
	PredictTimeSeries(ctx context.Context, obs types.WeatherObservation, forecastHours int, loc *types.Location) (*types.TimeSeriesForecast, error)
	RecentPredictions(ctx context.Context, limit int) ([]*types.PredictionRecord, error)
	Stats(ctx context.Context, days int) (*prediction.PredictionStats, error)
}

// PredictionHandler maps HTTP requests to prediction service operations.
type PredictionHandler struct {
	service          PredictionServiceInterface
	validator        *core.Validator
	maxBatchSize     int
	maxForecastHours int
	logger           *slog.Logger
}

// NewPredictionHandler creates the handler with request caps from config.
func NewPredictionHandler(svc PredictionServiceInterface, val *core.Validator, maxBatchSize, maxForecastHours int, logger *slog.Logger) *PredictionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if val == nil {
		val = core.NewValidator(logger)
	}
	return &PredictionHandler{
		service:          svc,
		validator:        val,
		maxBatchSize:     maxBatchSize,
		maxForecastHours: maxForecastHours,
		logger:           logger,
	}
}

// RegisterRoutes mounts the prediction endpoints onto the mux.
func (h *PredictionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/predictions", func(r chi.Router) {
		r.Post("/", h.HandlePredict)
		r.Post("/batch", h.HandlePredictBatch)
		r.Post("/forecast", h.HandlePredictForecast)
		r.Get("/recent", h.HandleRecent)
		r.Get("/stats", h.HandleStats)
	})
}

type predictRequest struct {
	WeatherData types.WeatherObservation `json:"weather_data"`
	Location    *types.Location          `json:"location"`
	UseCache    *bool                    `json:"use_cache"`
}

// HandlePredict handles POST /v1/predictions.
func (h *PredictionHandler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	if req.WeatherData.IsEmpty() {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"weather_data is required",
			nil,
		))
		return
	}
	if err := checkRequiredFields(req.WeatherData); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.checkLocation(req.Location); err != nil {
		core.Error(w, r, err)
		return
	}

	useCache := true
	if req.UseCache != nil {
		useCache = *req.UseCache
	}

	result, err := h.service.Predict(r.Context(), req.WeatherData, req.Location, useCache)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: result})
}

type batchPredictRequest struct {
	WeatherDataList []types.WeatherObservation `json:"weather_data_list"`
	Location        *types.Location            `json:"location"`
}

// HandlePredictBatch handles POST /v1/predictions/batch.
func (h *PredictionHandler) HandlePredictBatch(w http.ResponseWriter, r *http.Request) {
	var req batchPredictRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	if len(req.WeatherDataList) == 0 {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"weather_data_list is required",
			nil,
		))
		return
	}
	if len(req.WeatherDataList) > h.maxBatchSize {
		core.Error(w, r, types.NewAppErrorWithDetails(
			types.ErrCodeValidationBatchSize,
			fmt.Sprintf("batch size too large, maximum %d predictions per request", h.maxBatchSize),
			nil,
			map[string]any{"max_batch_size": h.maxBatchSize, "received": len(req.WeatherDataList)},
		))
		return
	}
	if err := h.checkLocation(req.Location); err != nil {
		core.Error(w, r, err)
		return
	}

	results, err := h.service.PredictBatch(r.Context(), req.WeatherDataList, req.Location)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{
		Data: map[string]any{"predictions": results},
		Meta: &core.ResponseMeta{Count: len(results)},
	})
}

type forecastRequest struct {
	CurrentWeather types.WeatherObservation `json:"current_weather"`
	ForecastHours  *int                     `json:"forecast_hours"`
	Location       *types.Location          `json:"location"`
}

// HandlePredictForecast handles POST /v1/predictions/forecast.
func (h *PredictionHandler) HandlePredictForecast(w http.ResponseWriter, r *http.Request) {
	var req forecastRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	if req.CurrentWeather.IsEmpty() {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"current_weather is required",
			nil,
		))
		return
	}

	hours := defaultForecastHours
	if req.ForecastHours != nil {
		hours = *req.ForecastHours
	}
	if hours < 1 || hours > h.maxForecastHours {
		core.Error(w, r, types.NewAppErrorWithDetails(
			types.ErrCodeValidationForecastHours,
			fmt.Sprintf("forecast_hours must be between 1 and %d", h.maxForecastHours),
			nil,
			map[string]any{"max_forecast_hours": h.maxForecastHours, "received": hours},
		))
		return
	}
	if err := h.checkLocation(req.Location); err != nil {
		core.Error(w, r, err)
		return
	}

	forecast, err := h.service.PredictTimeSeries(r.Context(), req.CurrentWeather, hours, req.Location)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: forecast})
}

// HandleRecent handles GET /v1/predictions/recent.
func (h *PredictionHandler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			core.Error(w, r, types.NewAppError(
				types.ErrCodeValidationMissingField,
				"limit must be an integer between 1 and 100",
				err,
			))
			return
		}
		limit = parsed
	}

	records, err := h.service.RecentPredictions(r.Context(), limit)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{
		Data: map[string]any{"predictions": records},
		Meta: &core.ResponseMeta{Count: len(records)},
	})
}

// HandleStats handles GET /v1/predictions/stats.
func (h *PredictionHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	days := 7
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 365 {
			core.Error(w, r, types.NewAppError(
				types.ErrCodeValidationMissingField,
				"days must be an integer between 1 and 365",
				err,
			))
			return
		}
		days = parsed
	}

	stats, err := h.service.Stats(r.Context(), days)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: stats})
}

// checkRequiredFields verifies the minimum measurement set for a single
// prediction. Missing fields are listed in the error details in stable order.
func checkRequiredFields(obs types.WeatherObservation) error {
	var missing []string
	for _, field := range requiredObservationFields {
		if _, ok := obs.Get(field); !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return types.NewAppErrorWithDetails(
		types.ErrCodeValidationInvalidObservation,
		"missing required weather fields",
		nil,
		map[string]any{"missing_fields": missing},
	)
}

// checkLocation validates the optional location through its struct tags.
func (h *PredictionHandler) checkLocation(loc *types.Location) error {
	if loc == nil {
		return nil
	}
	return h.validator.ValidateStruct(loc)
}
