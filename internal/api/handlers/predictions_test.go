package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"sunsetcast/internal/core"
	"sunsetcast/internal/db"
	"sunsetcast/internal/types"
)

// --- Mock Service ---

type mockPredictionService struct {
	dayResult     *types.SunsetPrediction
	dayErr        error
	timelineCall  struct {
		lat, lon     float64
		pastDays     int
		forecastDays int
	}
	timelineResult *types.Timeline
	timelineErr    error
	historyResult  []db.StoredPrediction
	historyErr     error
}

func (m *mockPredictionService) PredictDay(_ context.Context, _, _ float64) (*types.SunsetPrediction, error) {
	return m.dayResult, m.dayErr
}

func (m *mockPredictionService) PredictTimeline(_ context.Context, lat, lon float64, pastDays, forecastDays int) (*types.Timeline, error) {
	m.timelineCall.lat = lat
	m.timelineCall.lon = lon
	m.timelineCall.pastDays = pastDays
	m.timelineCall.forecastDays = forecastDays
	return m.timelineResult, m.timelineErr
}

func (m *mockPredictionService) History(_ context.Context, _, _ float64, _ int) ([]db.StoredPrediction, error) {
	return m.historyResult, m.historyErr
}

// --- Helpers ---

var testDefaults = TimelineDefaults{PastDays: 7, ForecastDays: 3, HistoryLimit: 30}

func newTestPredictionsHandler(svc PredictionServiceInterface) *PredictionsHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewPredictionsHandler(svc, core.NewValidator(logger), logger, testDefaults)
}

func makePredictionsRouter(h *PredictionsHandler) http.Handler {
	r := chi.NewRouter()
	r.Route("/v1/predictions", h.RegisterRoutes)
	return r
}

func samplePrediction() *types.SunsetPrediction {
	return &types.SunsetPrediction{
		Score:      96,
		Rating:     types.RatingAmazing,
		SunsetTime: time.Date(2026, 8, 30, 19, 42, 0, 0, time.UTC),
	}
}

func sampleTimeline() *types.Timeline {
	return &types.Timeline{
		Location: types.Location{Lat: 37.3394, Lon: -121.895, Timezone: "America/Los_Angeles"},
		Entries: []types.TimelineEntry{
			{DataType: types.DataCurrent, Prediction: *samplePrediction()},
		},
		Trend: types.TrendStable,
	}
}

func decodeErrorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp core.APIErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("error response is not valid JSON: %v", err)
	}
	return resp.Error.Code
}

// --- HandleGetPoint ---

func TestHandleGetPoint_Success(t *testing.T) {
	svc := &mockPredictionService{dayResult: samplePrediction()}
	h := newTestPredictionsHandler(svc)
	router := makePredictionsRouter(h)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/predictions/point?lat=37.3394&lon=-121.895", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body.String())
	}
	if cc := w.Header().Get("Cache-Control"); cc != "private, max-age=300" {
		t.Errorf("Cache-Control = %q", cc)
	}

	var resp struct {
		Data types.SunsetPrediction `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if resp.Data.Score != 96 {
		t.Errorf("data.score = %d, want 96", resp.Data.Score)
	}
	if resp.Data.Rating != types.RatingAmazing {
		t.Errorf("data.rating = %q, want Amazing", resp.Data.Rating)
	}
}

func TestHandleGetPoint_MissingLat(t *testing.T) {
	h := newTestPredictionsHandler(&mockPredictionService{})
	router := makePredictionsRouter(h)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/predictions/point?lon=-121.895", nil))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if code := decodeErrorCode(t, w); code != string(types.ErrCodeValidationMissingField) {
		t.Errorf("error.code = %q", code)
	}
}

func TestHandleGetPoint_InvalidLat(t *testing.T) {
	h := newTestPredictionsHandler(&mockPredictionService{})
	router := makePredictionsRouter(h)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/predictions/point?lat=north&lon=-121.895", nil))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if code := decodeErrorCode(t, w); code != string(types.ErrCodeValidationInvalidLat) {
		t.Errorf("error.code = %q", code)
	}
}

func TestHandleGetPoint_UpstreamError(t *testing.T) {
	svc := &mockPredictionService{
		dayErr: types.NewAppError(types.ErrCodeUpstreamWeather, "provider unavailable", nil),
	}
	h := newTestPredictionsHandler(svc)
	router := makePredictionsRouter(h)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/predictions/point?lat=37.3394&lon=-121.895", nil))

	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
	if code := decodeErrorCode(t, w); code != string(types.ErrCodeUpstreamWeather) {
		t.Errorf("error.code = %q", code)
	}
}

// --- HandleGetTimeline ---

func TestHandleGetTimeline_DefaultWindow(t *testing.T) {
	svc := &mockPredictionService{timelineResult: sampleTimeline()}
	h := newTestPredictionsHandler(svc)
	router := makePredictionsRouter(h)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/predictions/timeline?lat=37.3394&lon=-121.895", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body.String())
	}
	if svc.timelineCall.pastDays != 7 || svc.timelineCall.forecastDays != 3 {
		t.Errorf("window = (%d, %d), want defaults (7, 3)",
			svc.timelineCall.pastDays, svc.timelineCall.forecastDays)
	}
}

func TestHandleGetTimeline_ExplicitWindow(t *testing.T) {
	svc := &mockPredictionService{timelineResult: sampleTimeline()}
	h := newTestPredictionsHandler(svc)
	router := makePredictionsRouter(h)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
		"/v1/predictions/timeline?lat=37.3394&lon=-121.895&past_days=0&forecast_days=10", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if svc.timelineCall.pastDays != 0 || svc.timelineCall.forecastDays != 10 {
		t.Errorf("window = (%d, %d), want (0, 10)",
			svc.timelineCall.pastDays, svc.timelineCall.forecastDays)
	}
}

func TestHandleGetTimeline_NonIntegerWindow(t *testing.T) {
	h := newTestPredictionsHandler(&mockPredictionService{})
	router := makePredictionsRouter(h)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
		"/v1/predictions/timeline?lat=37.3394&lon=-121.895&past_days=week", nil))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if code := decodeErrorCode(t, w); code != string(types.ErrCodeValidationInvalidRange) {
		t.Errorf("error.code = %q", code)
	}
}

func TestHandleGetTimeline_RangeErrorFromService(t *testing.T) {
	svc := &mockPredictionService{
		timelineErr: types.NewAppError(types.ErrCodeValidationInvalidRange, "pastDays must be between 0 and 92", nil),
	}
	h := newTestPredictionsHandler(svc)
	router := makePredictionsRouter(h)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
		"/v1/predictions/timeline?lat=37.3394&lon=-121.895&past_days=93", nil))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

// --- HandlePostTimeline ---

func TestHandlePostTimeline_Success(t *testing.T) {
	svc := &mockPredictionService{timelineResult: sampleTimeline()}
	h := newTestPredictionsHandler(svc)
	router := makePredictionsRouter(h)

	body := `{"latitude":37.3394,"longitude":-121.895,"past_days":2,"forecast_days":1}`
	req := httptest.NewRequest(http.MethodPost, "/v1/predictions/timeline", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body.String())
	}
	if svc.timelineCall.pastDays != 2 || svc.timelineCall.forecastDays != 1 {
		t.Errorf("window = (%d, %d), want (2, 1)",
			svc.timelineCall.pastDays, svc.timelineCall.forecastDays)
	}
}

func TestHandlePostTimeline_DefaultsApplied(t *testing.T) {
	svc := &mockPredictionService{timelineResult: sampleTimeline()}
	h := newTestPredictionsHandler(svc)
	router := makePredictionsRouter(h)

	body := `{"latitude":0,"longitude":0}`
	req := httptest.NewRequest(http.MethodPost, "/v1/predictions/timeline", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body.String())
	}
	// Zero coordinates are valid (Gulf of Guinea) and must not trip the
	// required check.
	if svc.timelineCall.lat != 0 || svc.timelineCall.lon != 0 {
		t.Errorf("coordinates = (%v, %v), want (0, 0)", svc.timelineCall.lat, svc.timelineCall.lon)
	}
	if svc.timelineCall.pastDays != 7 || svc.timelineCall.forecastDays != 3 {
		t.Errorf("window = (%d, %d), want defaults (7, 3)",
			svc.timelineCall.pastDays, svc.timelineCall.forecastDays)
	}
}

func TestHandlePostTimeline_MissingLatitude(t *testing.T) {
	h := newTestPredictionsHandler(&mockPredictionService{})
	router := makePredictionsRouter(h)

	body := `{"longitude":-121.895}`
	req := httptest.NewRequest(http.MethodPost, "/v1/predictions/timeline", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if code := decodeErrorCode(t, w); code != string(types.ErrCodeValidationMissingField) {
		t.Errorf("error.code = %q", code)
	}
}

func TestHandlePostTimeline_MalformedBody(t *testing.T) {
	h := newTestPredictionsHandler(&mockPredictionService{})
	router := makePredictionsRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/v1/predictions/timeline", strings.NewReader(`{"latitude":`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

// --- HandleGetHistory ---

func TestHandleGetHistory_Success(t *testing.T) {
	svc := &mockPredictionService{
		historyResult: []db.StoredPrediction{
			{ID: 1, Prediction: *samplePrediction()},
			{ID: 2, Prediction: *samplePrediction()},
		},
	}
	h := newTestPredictionsHandler(svc)
	router := makePredictionsRouter(h)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/predictions/history?lat=37.3394&lon=-121.895", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp struct {
		Data []db.StoredPrediction `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if len(resp.Data) != 2 {
		t.Errorf("len(data) = %d, want 2", len(resp.Data))
	}
}

func TestHandleGetHistory_EmptyIsArray(t *testing.T) {
	h := newTestPredictionsHandler(&mockPredictionService{})
	router := makePredictionsRouter(h)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/predictions/history?lat=1&lon=2", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"data":[]`) {
		t.Errorf("empty history should serialize as an empty array; body: %s", w.Body.String())
	}
}

func TestHandleGetHistory_DBError(t *testing.T) {
	svc := &mockPredictionService{
		historyErr: types.NewAppError(types.ErrCodeInternalDB, "listing predictions", nil),
	}
	h := newTestPredictionsHandler(svc)
	router := makePredictionsRouter(h)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/predictions/history?lat=1&lon=2", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
}
