// Package predictor implements the sunset quality prediction service. It
// orchestrates upstream weather and air-quality fetches, runs the composite
// scorer over each day's sunset-hour sample, and persists the resulting
// predictions.
package predictor

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"sunsetcast/internal/db"
	"sunsetcast/internal/openmeteo"
	"sunsetcast/internal/timeline"
	"sunsetcast/internal/types"
)

// Bounds accepted for timeline range parameters. These mirror the limits the
// upstream provider enforces on past_days and forecast_days.
const (
	MaxPastDays     = openmeteo.MaxPastDays
	MaxForecastDays = openmeteo.MaxForecastDays
)

// Default timeline window: a week of history plus three days ahead.
const (
	DefaultPastDays     = 7
	DefaultForecastDays = 3
)

// Provider fetches weather, air-quality and geocoding data from the upstream
// forecast API.
type Provider interface {
	FetchForecast(ctx context.Context, lat, lon float64, pastDays, forecastDays int) (*openmeteo.ForecastResponse, error)
	FetchAirQuality(ctx context.Context, lat, lon float64, pastDays, forecastDays int) (*openmeteo.AirQualityResponse, error)
	SearchLocations(ctx context.Context, name string, count int) ([]openmeteo.GeocodingResult, error)
}

// Store persists computed predictions. A nil Store disables persistence.
type Store interface {
	InsertTimeline(ctx context.Context, tl *types.Timeline) (int, error)
	ListByLocation(ctx context.Context, lat, lon float64, limit int) ([]db.StoredPrediction, error)
}

// Service defines the business logic interface for sunset predictions.
type Service interface {
	PredictDay(ctx context.Context, lat, lon float64) (*types.SunsetPrediction, error)
	PredictTimeline(ctx context.Context, lat, lon float64, pastDays, forecastDays int) (*types.Timeline, error)
	ResolveLocation(ctx context.Context, name string) (types.Location, error)
	History(ctx context.Context, lat, lon float64, limit int) ([]db.StoredPrediction, error)
}

type service struct {
	provider Provider
	store    Store
	logger   *slog.Logger
	clock    types.Clock
}

// NewService creates a prediction service. store may be nil, in which case
// computed predictions are returned but never persisted.
func NewService(provider Provider, store Store, logger *slog.Logger, clock types.Clock) Service {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &service{
		provider: provider,
		store:    store,
		logger:   logger,
		clock:    clock,
	}
}

func validateCoordinates(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return &types.AppError{
			Code:    types.ErrCodeValidationInvalidLat,
			Message: "latitude must be between -90 and 90",
		}
	}
	if lon < -180 || lon > 180 {
		return &types.AppError{
			Code:    types.ErrCodeValidationInvalidLon,
			Message: "longitude must be between -180 and 180",
		}
	}
	return nil
}

func validateRange(pastDays, forecastDays int) error {
	if pastDays < 0 || pastDays > MaxPastDays {
		return &types.AppError{
			Code:    types.ErrCodeValidationInvalidRange,
			Message: "pastDays must be between 0 and 92",
		}
	}
	if forecastDays < 0 || forecastDays > MaxForecastDays {
		return &types.AppError{
			Code:    types.ErrCodeValidationInvalidRange,
			Message: "forecastDays must be between 0 and 16",
		}
	}
	return nil
}

// PredictDay computes today's sunset prediction for a coordinate pair.
func (s *service) PredictDay(ctx context.Context, lat, lon float64) (*types.SunsetPrediction, error) {
	tl, err := s.PredictTimeline(ctx, lat, lon, 0, 0)
	if err != nil {
		return nil, err
	}
	for i := range tl.Entries {
		if tl.Entries[i].DataType == types.DataCurrent {
			return &tl.Entries[i].Prediction, nil
		}
	}
	return nil, &types.AppError{
		Code:    types.ErrCodeUpstreamMisaligned,
		Message: "upstream response did not cover the current day",
	}
}

// PredictTimeline computes predictions for pastDays before today through
// forecastDays after today, one batched upstream fetch per data source. The
// result has pastDays+forecastDays+1 entries in date order, except at
// forecastDays == MaxForecastDays where the provider window tops out one day
// short and the last forecast entry is omitted.
func (s *service) PredictTimeline(ctx context.Context, lat, lon float64, pastDays, forecastDays int) (*types.Timeline, error) {
	if err := validateCoordinates(lat, lon); err != nil {
		return nil, err
	}
	if err := validateRange(pastDays, forecastDays); err != nil {
		return nil, err
	}

	// The provider's forecast_days window includes today, so one extra day
	// covers the current entry. At the provider cap the window already ends
	// on the last reachable day and is not extended further.
	fetchDays := forecastDays + 1
	if fetchDays > MaxForecastDays {
		fetchDays = MaxForecastDays
	}

	var (
		weather *openmeteo.ForecastResponse
		air     *openmeteo.AirQualityResponse
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		weather, err = s.provider.FetchForecast(gctx, lat, lon, pastDays, fetchDays)
		return err
	})
	g.Go(func() error {
		var err error
		air, err = s.provider.FetchAirQuality(gctx, lat, lon, pastDays, fetchDays)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	zone, err := weather.Zone()
	if err != nil {
		return nil, err
	}
	wSeries, err := weather.Series(zone)
	if err != nil {
		return nil, err
	}
	aqSeries, err := air.Series(zone)
	if err != nil {
		return nil, err
	}

	loc := types.Location{Lat: lat, Lon: lon, Timezone: weather.Timezone}
	tl, err := timeline.Build(loc, wSeries, aqSeries, s.clock.Now().In(zone))
	if err != nil {
		return nil, err
	}

	if s.store != nil {
		written, err := s.store.InsertTimeline(ctx, tl)
		if err != nil {
			// Persistence is best effort; the computed timeline is still
			// valid and returned to the caller.
			s.logger.WarnContext(ctx, "failed to persist timeline",
				"error", err,
				"latitude", lat,
				"longitude", lon,
			)
		} else if written > 0 {
			s.logger.InfoContext(ctx, "persisted timeline predictions",
				"written", written,
				"entries", len(tl.Entries),
			)
		}
	}

	return tl, nil
}

// ResolveLocation geocodes a place name to coordinates using the provider's
// geocoding endpoint. The best match wins.
func (s *service) ResolveLocation(ctx context.Context, name string) (types.Location, error) {
	if name == "" {
		return types.Location{}, &types.AppError{
			Code:    types.ErrCodeValidationMissingField,
			Message: "location name is required",
		}
	}
	results, err := s.provider.SearchLocations(ctx, name, 1)
	if err != nil {
		return types.Location{}, err
	}
	return results[0].Location(), nil
}

// History returns previously stored predictions for a coordinate pair,
// newest first.
func (s *service) History(ctx context.Context, lat, lon float64, limit int) ([]db.StoredPrediction, error) {
	if err := validateCoordinates(lat, lon); err != nil {
		return nil, err
	}
	if s.store == nil {
		return nil, nil
	}
	return s.store.ListByLocation(ctx, lat, lon, limit)
}
