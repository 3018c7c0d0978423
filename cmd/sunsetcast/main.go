// Package main implements the sunsetcast CLI for predicting sunset quality
// from the command line.
//
// Usage:
//
//	go run ./cmd/sunsetcast --lat 37.33 --lon -121.89
//	go run ./cmd/sunsetcast --location "San Jose" --past-days 14 --forecast-days 5
//	go run ./cmd/sunsetcast --lat 37.33 --lon -121.89 --json
//
// The tool reads DATABASE_URL from environment variables (or a .env file via
// godotenv). When DATABASE_URL is set and --skip-db is not given, each run's
// timeline is persisted; duplicate (location, sunset) rows are skipped.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"sunsetcast/internal/db"
	"sunsetcast/internal/openmeteo"
	"sunsetcast/internal/predictor"
	"sunsetcast/internal/types"
)

const runTimeout = 60 * time.Second

func main() {
	latFlag := flag.Float64("lat", 0, "Latitude in decimal degrees")
	lonFlag := flag.Float64("lon", 0, "Longitude in decimal degrees")
	locationFlag := flag.String("location", "", "Place name to geocode instead of --lat/--lon")
	pastDaysFlag := flag.Int("past-days", predictor.DefaultPastDays, "Days of history to include (0-92)")
	forecastDaysFlag := flag.Int("forecast-days", predictor.DefaultForecastDays, "Days of forecast to include (0-16)")
	skipDBFlag := flag.Bool("skip-db", false, "Do not persist the timeline even if DATABASE_URL is set")
	jsonFlag := flag.Bool("json", false, "Print the timeline as JSON instead of a table")
	verboseFlag := flag.Bool("verbose", false, "Enable debug logging")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: sunsetcast [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Predict sunset visual quality for a location.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	logLevel := slog.LevelWarn
	if *verboseFlag {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	latSet, lonSet := false, false
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "lat":
			latSet = true
		case "lon":
			lonSet = true
		}
	})
	if *locationFlag == "" && !(latSet && lonSet) {
		fmt.Fprintf(os.Stderr, "error: either --location or both --lat and --lon are required\n\n")
		flag.Usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	if err := run(ctx, logger, runOptions{
		lat:          *latFlag,
		lon:          *lonFlag,
		location:     *locationFlag,
		pastDays:     *pastDaysFlag,
		forecastDays: *forecastDaysFlag,
		skipDB:       *skipDBFlag,
		asJSON:       *jsonFlag,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type runOptions struct {
	lat          float64
	lon          float64
	location     string
	pastDays     int
	forecastDays int
	skipDB       bool
	asJSON       bool
}

func run(ctx context.Context, logger *slog.Logger, opts runOptions) error {
	_ = godotenv.Load()

	client := openmeteo.NewClient()

	var store predictor.Store
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" && !opts.skipDB {
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return fmt.Errorf("opening database pool: %w", err)
		}
		defer pool.Close()

		repo := db.NewPredictionRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensuring schema: %w", err)
		}
		store = repo
	}

	svc := predictor.NewService(client, store, logger, nil)

	loc := types.Location{Lat: opts.lat, Lon: opts.lon}
	if opts.location != "" {
		resolved, err := svc.ResolveLocation(ctx, opts.location)
		if err != nil {
			return fmt.Errorf("resolving %q: %w", opts.location, err)
		}
		loc = resolved
		fmt.Fprintf(os.Stderr, "resolved %q to %s (%.4f, %.4f)\n",
			opts.location, resolved.DisplayName, resolved.Lat, resolved.Lon)
	}

	tl, err := svc.PredictTimeline(ctx, loc.Lat, loc.Lon, opts.pastDays, opts.forecastDays)
	if err != nil {
		return err
	}

	if opts.asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(tl)
	}

	printTimeline(os.Stdout, tl)
	return nil
}

// printTimeline renders the timeline as an aligned table with a trend summary.
func printTimeline(w *os.File, tl *types.Timeline) {
	name := tl.Location.DisplayName
	if name == "" {
		name = fmt.Sprintf("%.4f, %.4f", tl.Location.Lat, tl.Location.Lon)
	}
	fmt.Fprintf(w, "Sunset quality for %s (%s)\n\n", name, tl.Location.Timezone)

	fmt.Fprintf(w, "%-12s %-11s %-10s %6s  %-8s %7s %7s %8s  %s\n",
		"DATE", "TYPE", "SUNSET", "SCORE", "RATING", "CLOUD%", "PM2.5", "VIS(KM)", "")
	for _, e := range tl.Entries {
		marker := ""
		if e.DataType == types.DataCurrent {
			marker = "<- today"
		}
		fmt.Fprintf(w, "%-12s %-11s %-10s %6d  %-8s %6.0f%% %7.1f %8.1f  %s\n",
			e.Date.Format("2006-01-02"),
			e.DataType,
			e.Prediction.SunsetTime.Format("15:04 MST"),
			e.Prediction.Score,
			e.Prediction.Rating,
			e.Prediction.Factors.CloudCover,
			e.Prediction.Factors.PM25,
			e.Prediction.Factors.VisibilityM/1000,
			marker,
		)
		if len(e.Prediction.MissingFields) > 0 {
			fmt.Fprintf(w, "%-12s   (incomplete data: %s)\n",
				"", strings.Join(e.Prediction.MissingFields, ", "))
		}
	}

	fmt.Fprintln(w)
	if tl.HistoricalAvg != nil {
		fmt.Fprintf(w, "Historical average: %.1f\n", *tl.HistoricalAvg)
	}
	if tl.ForecastAvg != nil {
		fmt.Fprintf(w, "Forecast average:   %.1f\n", *tl.ForecastAvg)
	}
	fmt.Fprintf(w, "Trend: %s\n", tl.Trend)
}
