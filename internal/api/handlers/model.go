package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"rainbowcast/internal/core"
	"rainbowcast/internal/model"
)

// BundleSource supplies the active model bundle for the info endpoint.
type BundleSource interface {
	Current() (*model.Bundle, error)
	Loaded() bool
}

// ModelHandler serves metadata about the model currently in service.
type ModelHandler struct {
	source BundleSource
	logger *slog.Logger
}

func NewModelHandler(source BundleSource, logger *slog.Logger) *ModelHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelHandler{source: source, logger: logger}
}

// RegisterRoutes mounts the model endpoints onto the mux.
func (h *ModelHandler) RegisterRoutes(r chi.Router) {
	r.Get("/model", h.HandleModelInfo)
}

type modelInfoResponse struct {
	Loaded       bool       `json:"loaded"`
	ModelID      string     `json:"model_id,omitempty"`
	Name         string     `json:"name,omitempty"`
	Version      string     `json:"version,omitempty"`
	Threshold    float64    `json:"threshold,omitempty"`
	FeatureCount int        `json:"feature_count,omitempty"`
	FeatureNames []string   `json:"feature_names,omitempty"`
	TrainedAt    *time.Time `json:"trained_at,omitempty"`
	LoadedAt     *time.Time `json:"loaded_at,omitempty"`
}

// HandleModelInfo handles GET /v1/model. Reports loaded=false with 200 when
// no bundle is in service so operators can distinguish "not loaded" from
// "endpoint broken".
func (h *ModelHandler) HandleModelInfo(w http.ResponseWriter, r *http.Request) {
	if !h.source.Loaded() {
		core.JSON(w, r, http.StatusOK, core.APIResponse{Data: modelInfoResponse{Loaded: false}})
		return
	}

	bundle, err := h.source.Current()
	if err != nil {
		core.Error(w, r, err)
		return
	}

	resp := modelInfoResponse{
		Loaded:       true,
		ModelID:      bundle.ID(),
		Name:         bundle.Name,
		Version:      bundle.Version,
		Threshold:    bundle.Threshold,
		FeatureCount: len(bundle.FeatureNames),
		FeatureNames: bundle.FeatureNames,
	}
	if !bundle.TrainedAt.IsZero() {
		t := bundle.TrainedAt
		resp.TrainedAt = &t
	}
	if !bundle.LoadedAt.IsZero() {
		t := bundle.LoadedAt
		resp.LoadedAt = &t
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: resp})
}
