package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"sunsetcast/internal/core"
	"sunsetcast/internal/openmeteo"
	"sunsetcast/internal/types"
)

// defaultSearchCount is the number of geocoding candidates returned when the
// request does not specify one.
const defaultSearchCount = 5

// maxSearchCount caps the candidate list size.
const maxSearchCount = 20

// LocationSearcher defines the geocoding contract for the locations handler.
// The Open-Meteo client satisfies it directly.
type LocationSearcher interface {
	SearchLocations(ctx context.Context, name string, count int) ([]openmeteo.GeocodingResult, error)
}

// LocationsHandler maps HTTP requests to the geocoding search.
type LocationsHandler struct {
	searcher LocationSearcher
	logger   *slog.Logger
}

// NewLocationsHandler creates a new LocationsHandler.
func NewLocationsHandler(searcher LocationSearcher, logger *slog.Logger) *LocationsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocationsHandler{
		searcher: searcher,
		logger:   logger,
	}
}

// RegisterRoutes mounts the location endpoints onto the mux.
func (h *LocationsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/search", h.HandleSearch)
}

// HandleSearch handles GET /v1/locations/search. It resolves a place name to
// candidate coordinates via the upstream geocoding API.
func (h *LocationsHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	name := q.Get("name")
	if name == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"name query parameter is required",
			nil,
		))
		return
	}

	count := defaultSearchCount
	if raw := q.Get("count"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			core.Error(w, r, types.NewAppError(
				types.ErrCodeValidationInvalidRange,
				"count must be a positive integer",
				nil,
			))
			return
		}
		count = v
	}
	if count > maxSearchCount {
		count = maxSearchCount
	}

	results, err := h.searcher.SearchLocations(r.Context(), name, count)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	locations := make([]types.Location, 0, len(results))
	for _, res := range results {
		locations = append(locations, res.Location())
	}

	w.Header().Set("Cache-Control", "private, max-age=3600")
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: locations})
}
