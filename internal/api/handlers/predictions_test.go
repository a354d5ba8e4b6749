package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rainbowcast/internal/core"
	"rainbowcast/internal/prediction"
	"rainbowcast/internal/types"
)

// =============================================================================
// Mock Implementations
// =============================================================================

// mockPredictionService implements PredictionServiceInterface for testing.
type mockPredictionService struct {
	predictFn    func(ctx context.Context, obs types.WeatherObservation, loc *types.Location, useCache bool) (*types.PredictionResult, error)
	batchFn      func(ctx context.Context, observations []types.WeatherObservation, loc *types.Location) ([]*types.PredictionResult, error)
	timeSeriesFn func(ctx context.Context, obs types.WeatherObservation, forecastHours int, loc *types.Location) (*types.TimeSeriesForecast, error)
	recentFn     func(ctx context.Context, limit int) ([]*types.PredictionRecord, error)
	statsFn      func(ctx context.Context, days int) (*prediction.PredictionStats, error)

	// captured arguments for inspection
	capturedObs      *types.WeatherObservation
	capturedLoc      *types.Location
	capturedUseCache bool
	capturedHours    int
	capturedLimit    int
	capturedDays     int
}

func (m *mockPredictionService) Predict(ctx context.Context, obs types.WeatherObservation, loc *types.Location, useCache bool) (*types.PredictionResult, error) {
	m.capturedObs = &obs
	m.capturedLoc = loc
	m.capturedUseCache = useCache
	if m.predictFn != nil {
		return m.predictFn(ctx, obs, loc, useCache)
	}
	return &types.PredictionResult{Probability: 0.5, PredictedClass: 1, Confidence: types.ConfidenceMedium}, nil
}

func (m *mockPredictionService) PredictBatch(ctx context.Context, observations []types.WeatherObservation, loc *types.Location) ([]*types.PredictionResult, error) {
	m.capturedLoc = loc
	if m.batchFn != nil {
		return m.batchFn(ctx, observations, loc)
	}
	results := make([]*types.PredictionResult, len(observations))
	for i := range observations {
		idx := i
		results[i] = &types.PredictionResult{Probability: 0.5, BatchIndex: &idx}
	}
	return results, nil
}

func (m *mockPredictionService) PredictTimeSeries(ctx context.Context, obs types.WeatherObservation, forecastHours int, loc *types.Location) (*types.TimeSeriesForecast, error) {
	m.capturedObs = &obs
	m.capturedHours = forecastHours
	m.capturedLoc = loc
	if m.timeSeriesFn != nil {
		return m.timeSeriesFn(ctx, obs, forecastHours, loc)
	}
	return &types.TimeSeriesForecast{GeneratedAt: time.Now()}, nil
}

func (m *mockPredictionService) RecentPredictions(ctx context.Context, limit int) ([]*types.PredictionRecord, error) {
	m.capturedLimit = limit
	if m.recentFn != nil {
		return m.recentFn(ctx, limit)
	}
	return nil, nil
}

func (m *mockPredictionService) Stats(ctx context.Context, days int) (*prediction.PredictionStats, error) {
	m.capturedDays = days
	if m.statsFn != nil {
		return m.statsFn(ctx, days)
	}
	return &prediction.PredictionStats{PeriodDays: days}, nil
}

func newTestPredictionHandler(svc *mockPredictionService) *PredictionHandler {
	return NewPredictionHandler(svc, core.NewValidator(nil), 100, 168, nil)
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(body)
}

func decodeErrorResponse(t *testing.T, w *httptest.ResponseRecorder) core.ErrorDetail {
	t.Helper()
	var resp core.APIErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}

func validWeatherData() map[string]any {
	return map[string]any{
		"temperature": 22.5,
		"humidity":    80.0,
		"pressure":    1013.0,
	}
}

// =============================================================================
// Predict Tests
// =============================================================================

func TestPredictionHandler_Predict_Success(t *testing.T) {
	svc := &mockPredictionService{}
	handler := newTestPredictionHandler(svc)

	reqBody := jsonBody(t, map[string]any{
		"weather_data": validWeatherData(),
		"location":     map[string]any{"latitude": 47.6, "longitude": -122.3},
	})
	r := httptest.NewRequest(http.MethodPost, "/v1/predictions", reqBody)
	w := httptest.NewRecorder()

	handler.HandlePredict(w, r)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp core.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Data)

	// Caching defaults to on; the observation and location pass through.
	assert.True(t, svc.capturedUseCache)
	require.NotNil(t, svc.capturedObs)
	temp, ok := svc.capturedObs.Get(types.FieldTemperature)
	require.True(t, ok)
	assert.Equal(t, 22.5, temp)
	require.NotNil(t, svc.capturedLoc)
	assert.Equal(t, 47.6, svc.capturedLoc.Latitude)
}

func TestPredictionHandler_Predict_UseCacheFalse(t *testing.T) {
	svc := &mockPredictionService{}
	handler := newTestPredictionHandler(svc)

	reqBody := jsonBody(t, map[string]any{
		"weather_data": validWeatherData(),
		"use_cache":    false,
	})
	r := httptest.NewRequest(http.MethodPost, "/v1/predictions", reqBody)
	w := httptest.NewRecorder()

	handler.HandlePredict(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, svc.capturedUseCache)
}

func TestPredictionHandler_Predict_MissingWeatherData(t *testing.T) {
	handler := newTestPredictionHandler(&mockPredictionService{})

	r := httptest.NewRequest(http.MethodPost, "/v1/predictions", jsonBody(t, map[string]any{}))
	w := httptest.NewRecorder()

	handler.HandlePredict(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	detail := decodeErrorResponse(t, w)
	assert.Equal(t, string(types.ErrCodeValidationMissingField), detail.Code)
}

func TestPredictionHandler_Predict_MissingRequiredFields(t *testing.T) {
	handler := newTestPredictionHandler(&mockPredictionService{})

	reqBody := jsonBody(t, map[string]any{
		"weather_data": map[string]any{"temperature": 22.5},
	})
	r := httptest.NewRequest(http.MethodPost, "/v1/predictions", reqBody)
	w := httptest.NewRecorder()

	handler.HandlePredict(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	detail := decodeErrorResponse(t, w)
	assert.Equal(t, string(types.ErrCodeValidationInvalidObservation), detail.Code)
	assert.ElementsMatch(t, []any{"humidity", "pressure"}, detail.Details["missing_fields"])
}

func TestPredictionHandler_Predict_InvalidCoordinates(t *testing.T) {
	tests := []struct {
		name     string
		location map[string]any
		wantCode types.ErrorCode
	}{
		{"latitude too large", map[string]any{"latitude": 91.0, "longitude": 0.0}, types.ErrCodeValidationInvalidLat},
		{"latitude too small", map[string]any{"latitude": -90.5, "longitude": 0.0}, types.ErrCodeValidationInvalidLat},
		{"longitude too large", map[string]any{"latitude": 0.0, "longitude": 180.5}, types.ErrCodeValidationInvalidLon},
		{"longitude too small", map[string]any{"latitude": 0.0, "longitude": -181.0}, types.ErrCodeValidationInvalidLon},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestPredictionHandler(&mockPredictionService{})

			reqBody := jsonBody(t, map[string]any{
				"weather_data": validWeatherData(),
				"location":     tt.location,
			})
			r := httptest.NewRequest(http.MethodPost, "/v1/predictions", reqBody)
			w := httptest.NewRecorder()

			handler.HandlePredict(w, r)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, string(tt.wantCode), decodeErrorResponse(t, w).Code)
		})
	}
}

func TestPredictionHandler_Predict_MalformedJSON(t *testing.T) {
	handler := newTestPredictionHandler(&mockPredictionService{})

	r := httptest.NewRequest(http.MethodPost, "/v1/predictions", bytes.NewBufferString(`{"weather_data":`))
	w := httptest.NewRecorder()

	handler.HandlePredict(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPredictionHandler_Predict_ServiceError(t *testing.T) {
	svc := &mockPredictionService{
		predictFn: func(context.Context, types.WeatherObservation, *types.Location, bool) (*types.PredictionResult, error) {
			return nil, types.NewAppError(types.ErrCodeModelNotLoaded, "no trained model available", nil)
		},
	}
	handler := newTestPredictionHandler(svc)

	r := httptest.NewRequest(http.MethodPost, "/v1/predictions", jsonBody(t, map[string]any{"weather_data": validWeatherData()}))
	w := httptest.NewRecorder()

	handler.HandlePredict(w, r)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, string(types.ErrCodeModelNotLoaded), decodeErrorResponse(t, w).Code)
}

// =============================================================================
// Batch Tests
// =============================================================================

func TestPredictionHandler_Batch_Success(t *testing.T) {
	svc := &mockPredictionService{}
	handler := newTestPredictionHandler(svc)

	reqBody := jsonBody(t, map[string]any{
		"weather_data_list": []map[string]any{
			{"temperature": 20.0},
			{"temperature": 25.0},
			{"humidity": 70.0},
		},
	})
	r := httptest.NewRequest(http.MethodPost, "/v1/predictions/batch", reqBody)
	w := httptest.NewRecorder()

	handler.HandlePredictBatch(w, r)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp core.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Meta)
	assert.Equal(t, 3, resp.Meta.Count)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	predictions, ok := data["predictions"].([]any)
	require.True(t, ok)
	assert.Len(t, predictions, 3)
}

func TestPredictionHandler_Batch_Empty(t *testing.T) {
	handler := newTestPredictionHandler(&mockPredictionService{})

	reqBody := jsonBody(t, map[string]any{"weather_data_list": []map[string]any{}})
	r := httptest.NewRequest(http.MethodPost, "/v1/predictions/batch", reqBody)
	w := httptest.NewRecorder()

	handler.HandlePredictBatch(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(types.ErrCodeValidationMissingField), decodeErrorResponse(t, w).Code)
}

func TestPredictionHandler_Batch_TooLarge(t *testing.T) {
	handler := newTestPredictionHandler(&mockPredictionService{})

	list := make([]map[string]any, 101)
	for i := range list {
		list[i] = map[string]any{"temperature": 20.0}
	}
	r := httptest.NewRequest(http.MethodPost, "/v1/predictions/batch", jsonBody(t, map[string]any{"weather_data_list": list}))
	w := httptest.NewRecorder()

	handler.HandlePredictBatch(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	detail := decodeErrorResponse(t, w)
	assert.Equal(t, string(types.ErrCodeValidationBatchSize), detail.Code)
	assert.EqualValues(t, 100, detail.Details["max_batch_size"])
	assert.EqualValues(t, 101, detail.Details["received"])
}

func TestPredictionHandler_Batch_ItemsNotIndividuallyValidated(t *testing.T) {
	// Batch items may omit required single-prediction fields; per-item
	// failures surface inside the results, not as request rejections.
	svc := &mockPredictionService{}
	handler := newTestPredictionHandler(svc)

	reqBody := jsonBody(t, map[string]any{
		"weather_data_list": []map[string]any{{"cloud_cover": 10.0}},
	})
	r := httptest.NewRequest(http.MethodPost, "/v1/predictions/batch", reqBody)
	w := httptest.NewRecorder()

	handler.HandlePredictBatch(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
}

// =============================================================================
// Forecast Tests
// =============================================================================

func TestPredictionHandler_Forecast_Success(t *testing.T) {
	svc := &mockPredictionService{}
	handler := newTestPredictionHandler(svc)

	reqBody := jsonBody(t, map[string]any{
		"current_weather": validWeatherData(),
		"forecast_hours":  48,
	})
	r := httptest.NewRequest(http.MethodPost, "/v1/predictions/forecast", reqBody)
	w := httptest.NewRecorder()

	handler.HandlePredictForecast(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 48, svc.capturedHours)
}

func TestPredictionHandler_Forecast_DefaultHours(t *testing.T) {
	svc := &mockPredictionService{}
	handler := newTestPredictionHandler(svc)

	reqBody := jsonBody(t, map[string]any{"current_weather": validWeatherData()})
	r := httptest.NewRequest(http.MethodPost, "/v1/predictions/forecast", reqBody)
	w := httptest.NewRecorder()

	handler.HandlePredictForecast(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, defaultForecastHours, svc.capturedHours)
}

func TestPredictionHandler_Forecast_HoursOutOfRange(t *testing.T) {
	for _, hours := range []int{0, -1, 169} {
		handler := newTestPredictionHandler(&mockPredictionService{})

		reqBody := jsonBody(t, map[string]any{
			"current_weather": validWeatherData(),
			"forecast_hours":  hours,
		})
		r := httptest.NewRequest(http.MethodPost, "/v1/predictions/forecast", reqBody)
		w := httptest.NewRecorder()

		handler.HandlePredictForecast(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code, "hours=%d", hours)
		assert.Equal(t, string(types.ErrCodeValidationForecastHours), decodeErrorResponse(t, w).Code)
	}
}

func TestPredictionHandler_Forecast_MissingCurrentWeather(t *testing.T) {
	handler := newTestPredictionHandler(&mockPredictionService{})

	r := httptest.NewRequest(http.MethodPost, "/v1/predictions/forecast", jsonBody(t, map[string]any{"forecast_hours": 24}))
	w := httptest.NewRecorder()

	handler.HandlePredictForecast(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(types.ErrCodeValidationMissingField), decodeErrorResponse(t, w).Code)
}

// =============================================================================
// Recent Tests
// =============================================================================

func TestPredictionHandler_Recent(t *testing.T) {
	svc := &mockPredictionService{
		recentFn: func(_ context.Context, limit int) ([]*types.PredictionRecord, error) {
			return []*types.PredictionRecord{{ID: "a"}, {ID: "b"}}, nil
		},
	}
	handler := newTestPredictionHandler(svc)

	r := httptest.NewRequest(http.MethodGet, "/v1/predictions/recent?limit=5", nil)
	w := httptest.NewRecorder()

	handler.HandleRecent(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, svc.capturedLimit)

	var resp core.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Meta)
	assert.Equal(t, 2, resp.Meta.Count)
}

func TestPredictionHandler_Recent_DefaultLimit(t *testing.T) {
	svc := &mockPredictionService{}
	handler := newTestPredictionHandler(svc)

	r := httptest.NewRequest(http.MethodGet, "/v1/predictions/recent", nil)
	w := httptest.NewRecorder()

	handler.HandleRecent(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 20, svc.capturedLimit)
}

func TestPredictionHandler_Recent_InvalidLimit(t *testing.T) {
	for _, limit := range []string{"0", "101", "-3", "abc"} {
		handler := newTestPredictionHandler(&mockPredictionService{})

		r := httptest.NewRequest(http.MethodGet, "/v1/predictions/recent?limit="+limit, nil)
		w := httptest.NewRecorder()

		handler.HandleRecent(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code, "limit=%s", limit)
	}
}

// =============================================================================
// Stats Tests
// =============================================================================

func TestPredictionHandler_Stats(t *testing.T) {
	svc := &mockPredictionService{}
	handler := newTestPredictionHandler(svc)

	r := httptest.NewRequest(http.MethodGet, "/v1/predictions/stats?days=30", nil)
	w := httptest.NewRecorder()

	handler.HandleStats(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 30, svc.capturedDays)
}

func TestPredictionHandler_Stats_DefaultDays(t *testing.T) {
	svc := &mockPredictionService{}
	handler := newTestPredictionHandler(svc)

	r := httptest.NewRequest(http.MethodGet, "/v1/predictions/stats", nil)
	w := httptest.NewRecorder()

	handler.HandleStats(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 7, svc.capturedDays)
}

func TestPredictionHandler_Stats_InvalidDays(t *testing.T) {
	for _, days := range []string{"0", "366", "x"} {
		handler := newTestPredictionHandler(&mockPredictionService{})

		r := httptest.NewRequest(http.MethodGet, "/v1/predictions/stats?days="+days, nil)
		w := httptest.NewRecorder()

		handler.HandleStats(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code, "days=%s", days)
	}
}
