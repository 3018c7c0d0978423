// Package types defines the shared domain model for the sunsetcast service:
// locations, atmospheric samples, predictions, timelines, and the application
// error taxonomy. It is a leaf package with no internal dependencies so that
// every other layer can import it freely.
package types

import "time"

// Location represents a geographic point, optionally with a human-readable name.
type Location struct {
	Lat         float64 `json:"lat" db:"latitude"`
	Lon         float64 `json:"lon" db:"longitude"`
	DisplayName string  `json:"display_name,omitempty"`
	Timezone    string  `json:"timezone,omitempty"`
}

// AtmosphericSample holds the raw measurements at one sunset moment.
// Percent fields are already clamped to [0,100] by the upstream provider;
// missing values arrive as zero (see SunsetPrediction.MissingFields).
//
// VPD and Dust are carried for display and persistence but do not participate
// in scoring.
type AtmosphericSample struct {
	CloudCover  float64 `json:"cloud_cover"`
	CloudLow    float64 `json:"cloud_low"`
	CloudMid    float64 `json:"cloud_mid"`
	CloudHigh   float64 `json:"cloud_high"`
	Humidity    float64 `json:"humidity"`
	VisibilityM float64 `json:"visibility_m"`
	PM25        float64 `json:"pm2_5"`
	PM10        float64 `json:"pm10"`
	AOD         float64 `json:"aod"`
	VPD         float64 `json:"vpd,omitempty"`
	Dust        float64 `json:"dust,omitempty"`
}

// Rating is the five-band ordinal quality classification.
type Rating string

const (
	RatingPoor    Rating = "Poor"
	RatingFair    Rating = "Fair"
	RatingGood    Rating = "Good"
	RatingGreat   Rating = "Great"
	RatingAmazing Rating = "Amazing"
)

// ratingBands is indexed by score/20. A perfect score of 100 yields index 5,
// which is clamped to the top band.
var ratingBands = [5]Rating{RatingPoor, RatingFair, RatingGood, RatingGreat, RatingAmazing}

// RatingForScore maps an integer score in [0,100] to its rating band.
func RatingForScore(score int) Rating {
	idx := score / 20
	if idx < 0 {
		idx = 0
	}
	if idx > 4 {
		idx = 4
	}
	return ratingBands[idx]
}

// SunsetPrediction is the scorer output for one sunset.
type SunsetPrediction struct {
	Score      int               `json:"score"`
	Rating     Rating            `json:"rating"`
	SunsetTime time.Time         `json:"sunset_time"`
	Factors    AtmosphericSample `json:"factors"`

	// MissingFields lists measurement names that were absent upstream and
	// defaulted to zero before scoring. A non-empty list means the score was
	// computed from incomplete data and should be treated as lower confidence.
	MissingFields []string `json:"missing_fields,omitempty"`
}

// DataType classifies a timeline entry relative to "today" in the location's
// local calendar.
type DataType string

const (
	DataHistorical DataType = "historical"
	DataCurrent    DataType = "current"
	DataForecast   DataType = "forecast"
)

// Trend summarizes the direction of the forecast relative to recent history.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendDeclining Trend = "declining"
	TrendStable    Trend = "stable"
)

// TimelineEntry is one day's prediction plus its classification.
type TimelineEntry struct {
	Date       time.Time        `json:"date"`
	Prediction SunsetPrediction `json:"prediction"`
	DataType   DataType         `json:"data_type"`
}

// Timeline is an ordered, chronological sequence of daily predictions with
// derived aggregates. It is a value object produced fresh per request.
type Timeline struct {
	Location    Location        `json:"location"`
	GeneratedAt time.Time       `json:"generated_at"`
	Entries     []TimelineEntry `json:"entries"`

	// HistoricalAvg and ForecastAvg are nil when the corresponding span
	// contributed no entries.
	HistoricalAvg *float64 `json:"historical_avg,omitempty"`
	ForecastAvg   *float64 `json:"forecast_avg,omitempty"`
	Trend         Trend    `json:"trend"`
}
