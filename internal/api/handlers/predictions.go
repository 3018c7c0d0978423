// Package handlers contains the HTTP handler implementations for the
// sunsetcast API. It covers:
//   - Single-day prediction (GET /v1/predictions/point)
//   - Timeline retrieval (GET and POST /v1/predictions/timeline)
//   - Stored prediction history (GET /v1/predictions/history)
//   - Location search (GET /v1/locations/search)
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"sunsetcast/internal/core"
	"sunsetcast/internal/db"
	"sunsetcast/internal/types"
)

// PredictionServiceInterface defines the service contract for the prediction
// handler. Matches the predictor.Service interface but is defined locally to
// avoid tight coupling per the handler injection pattern.
type PredictionServiceInterface interface {
	PredictDay(ctx context.Context, lat, lon float64) (*types.SunsetPrediction, error)
	PredictTimeline(ctx context.Context, lat, lon float64, pastDays, forecastDays int) (*types.Timeline, error)
	History(ctx context.Context, lat, lon float64, limit int) ([]db.StoredPrediction, error)
}

// TimelineDefaults carries the default window sizes applied when the request
// does not name them.
type TimelineDefaults struct {
	PastDays     int
	ForecastDays int
	HistoryLimit int
}

// PredictionsHandler maps HTTP requests to prediction service methods.
type PredictionsHandler struct {
	service   PredictionServiceInterface
	validator *core.Validator
	logger    *slog.Logger
	defaults  TimelineDefaults
}

// NewPredictionsHandler creates a new PredictionsHandler with the provided
// dependencies.
func NewPredictionsHandler(
	svc PredictionServiceInterface,
	val *core.Validator,
	logger *slog.Logger,
	defaults TimelineDefaults,
) *PredictionsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PredictionsHandler{
		service:   svc,
		validator: val,
		logger:    logger,
		defaults:  defaults,
	}
}

// RegisterRoutes mounts the prediction endpoints onto the mux.
func (h *PredictionsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/point", h.HandleGetPoint)
	r.Get("/timeline", h.HandleGetTimeline)
	r.Post("/timeline", h.HandlePostTimeline)
	r.Get("/history", h.HandleGetHistory)
}

// parseCoordinates extracts and parses the lat/lon query parameters. Bounds
// checking happens in the service layer; this only rejects absent or
// non-numeric values.
func parseCoordinates(r *http.Request) (lat, lon float64, err error) {
	q := r.URL.Query()

	latStr := q.Get("lat")
	if latStr == "" {
		return 0, 0, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"lat query parameter is required",
			nil,
		)
	}
	lat, perr := strconv.ParseFloat(latStr, 64)
	if perr != nil {
		return 0, 0, types.NewAppError(
			types.ErrCodeValidationInvalidLat,
			"lat must be a valid number",
			nil,
		)
	}

	lonStr := q.Get("lon")
	if lonStr == "" {
		return 0, 0, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"lon query parameter is required",
			nil,
		)
	}
	lon, perr = strconv.ParseFloat(lonStr, 64)
	if perr != nil {
		return 0, 0, types.NewAppError(
			types.ErrCodeValidationInvalidLon,
			"lon must be a valid number",
			nil,
		)
	}

	return lat, lon, nil
}

// parseDayParam parses an optional integer query parameter, returning def
// when the parameter is absent.
func parseDayParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, types.NewAppError(
			types.ErrCodeValidationInvalidRange,
			name+" must be an integer",
			nil,
		)
	}
	return v, nil
}

// HandleGetPoint handles GET /v1/predictions/point. It returns today's
// sunset prediction for the given coordinates.
func (h *PredictionsHandler) HandleGetPoint(w http.ResponseWriter, r *http.Request) {
	lat, lon, err := parseCoordinates(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	prediction, err := h.service.PredictDay(r.Context(), lat, lon)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "private, max-age=300")
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: prediction})
}

// HandleGetTimeline handles GET /v1/predictions/timeline. The past_days and
// forecast_days parameters default to the configured window.
func (h *PredictionsHandler) HandleGetTimeline(w http.ResponseWriter, r *http.Request) {
	lat, lon, err := parseCoordinates(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	pastDays, err := parseDayParam(r, "past_days", h.defaults.PastDays)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	forecastDays, err := parseDayParam(r, "forecast_days", h.defaults.ForecastDays)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	tl, err := h.service.PredictTimeline(r.Context(), lat, lon, pastDays, forecastDays)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "private, max-age=300")
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: tl})
}

// timelineRequest is the JSON body accepted by POST /v1/predictions/timeline.
// Coordinates are pointers so zero values survive the required check.
type timelineRequest struct {
	Latitude     *float64 `json:"latitude" validate:"required"`
	Longitude    *float64 `json:"longitude" validate:"required"`
	PastDays     *int     `json:"past_days,omitempty"`
	ForecastDays *int     `json:"forecast_days,omitempty"`
}

// HandlePostTimeline handles POST /v1/predictions/timeline with a JSON body.
// Omitted window fields fall back to the configured defaults.
func (h *PredictionsHandler) HandlePostTimeline(w http.ResponseWriter, r *http.Request) {
	var req timelineRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	pastDays := h.defaults.PastDays
	if req.PastDays != nil {
		pastDays = *req.PastDays
	}
	forecastDays := h.defaults.ForecastDays
	if req.ForecastDays != nil {
		forecastDays = *req.ForecastDays
	}

	tl, err := h.service.PredictTimeline(r.Context(), *req.Latitude, *req.Longitude, pastDays, forecastDays)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: tl})
}

// HandleGetHistory handles GET /v1/predictions/history. It returns stored
// predictions for the coordinates, newest sunset first.
func (h *PredictionsHandler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	lat, lon, err := parseCoordinates(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	limit, err := parseDayParam(r, "limit", h.defaults.HistoryLimit)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	stored, err := h.service.History(r.Context(), lat, lon, limit)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if stored == nil {
		stored = []db.StoredPrediction{}
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: stored})
}
