// Package timeline assembles multi-day weather and air-quality series into a
// scored sunset quality timeline. It aligns the two hourly series on a common
// day axis, resolves the hourly slot nearest each day's sunset, scores each
// day with the composite model, classifies entries as historical/current/
// forecast, and computes trend aggregates.
//
// The assembler is pure: it performs no I/O and receives "now" explicitly so
// that classification is deterministic under test.
package timeline

import (
	"fmt"
	"time"

	"sunsetcast/internal/scoring"
	"sunsetcast/internal/types"
)

// HoursPerDay is the number of hourly slots the provider returns per day.
const HoursPerDay = 24

// MaxSunsetHourDeviation bounds how far the resolved hourly slot may sit from
// the actual sunset hour. Beyond this the series is treated as misaligned
// rather than silently scoring a slot hours away from sunset.
const MaxSunsetHourDeviation = 2

// Provider variable names, used as reduced-confidence markers when a value is
// absent upstream.
const (
	VarCloudCover = "cloud_cover"
	VarCloudLow   = "cloud_cover_low"
	VarCloudMid   = "cloud_cover_mid"
	VarCloudHigh  = "cloud_cover_high"
	VarHumidity   = "relative_humidity_2m"
	VarVisibility = "visibility"
	VarVPD        = "vapour_pressure_deficit"
	VarPM25       = "pm2_5"
	VarPM10       = "pm10"
	VarDust       = "dust"
	VarAOD        = "aerosol_optical_depth"
)

// WeatherSeries is the multi-day weather input: one sunset timestamp per day
// plus hourly measurements, 24 slots per day, chronologically contiguous.
// Hourly values are pointers so that provider nulls survive as missing
// markers instead of silently reading as zero.
type WeatherSeries struct {
	SunsetTimes []time.Time
	HourlyTimes []time.Time
	CloudCover  []*float64
	CloudLow    []*float64
	CloudMid    []*float64
	CloudHigh   []*float64
	Humidity    []*float64
	Visibility  []*float64
	VPD         []*float64
}

// AirQualitySeries is the multi-day air-quality input, indexed consistently
// with the weather series' day boundaries.
type AirQualitySeries struct {
	HourlyTimes []time.Time
	PM25        []*float64
	PM10        []*float64
	Dust        []*float64
	AOD         []*float64
}

// Days returns the day span covered by the weather series.
func (w WeatherSeries) Days() int { return len(w.SunsetTimes) }

// misaligned wraps a structural series defect as a data-alignment error.
func misaligned(format string, args ...any) *types.AppError {
	return types.NewAppError(
		types.ErrCodeUpstreamMisaligned,
		fmt.Sprintf(format, args...),
		nil,
	)
}

// validate checks the structural invariants of the two series: matching day
// spans, 24 hourly slots per day, and every required field present with the
// full hourly length. A field that is entirely absent is a structural defect;
// individual null values are not.
func validate(w WeatherSeries, aq AirQualitySeries) error {
	days := w.Days()
	if days == 0 {
		return misaligned("weather series contains no days")
	}

	wantHours := days * HoursPerDay
	if len(w.HourlyTimes) != wantHours {
		return misaligned("weather hourly length %d does not cover %d days", len(w.HourlyTimes), days)
	}
	if len(aq.HourlyTimes) != wantHours {
		return misaligned("air-quality hourly length %d does not cover %d days", len(aq.HourlyTimes), days)
	}

	weatherFields := map[string][]*float64{
		VarCloudCover: w.CloudCover,
		VarCloudLow:   w.CloudLow,
		VarCloudMid:   w.CloudMid,
		VarCloudHigh:  w.CloudHigh,
		VarHumidity:   w.Humidity,
		VarVisibility: w.Visibility,
		VarVPD:        w.VPD,
	}
	airFields := map[string][]*float64{
		VarPM25: aq.PM25,
		VarPM10: aq.PM10,
		VarDust: aq.Dust,
		VarAOD:  aq.AOD,
	}
	for name, field := range weatherFields {
		if len(field) != wantHours {
			return misaligned("weather field %s has %d values, want %d", name, len(field), wantHours)
		}
	}
	for name, field := range airFields {
		if len(field) != wantHours {
			return misaligned("air-quality field %s has %d values, want %d", name, len(field), wantHours)
		}
	}
	return nil
}

// resolveSunsetIndex finds, within day d's 24-slot block, the hourly index
// whose local hour is nearest the sunset hour. It fails when the nearest slot
// deviates more than MaxSunsetHourDeviation hours, which indicates the hourly
// axis does not line up with the daily sunset list.
func resolveSunsetIndex(hourlyTimes []time.Time, d, sunsetHour int) (int, error) {
	blockStart := d * HoursPerDay
	bestIdx := -1
	bestDev := HoursPerDay

	for i := 0; i < HoursPerDay; i++ {
		dev := hourlyTimes[blockStart+i].Hour() - sunsetHour
		if dev < 0 {
			dev = -dev
		}
		// Hour distance wraps at midnight: 23 and 0 are one hour apart.
		if dev > HoursPerDay/2 {
			dev = HoursPerDay - dev
		}
		if dev < bestDev {
			bestDev = dev
			bestIdx = blockStart + i
		}
	}

	if bestDev > MaxSunsetHourDeviation {
		return 0, misaligned(
			"no hourly slot within %dh of sunset hour %d on day %d (nearest deviates %dh)",
			MaxSunsetHourDeviation, sunsetHour, d, bestDev,
		)
	}
	return bestIdx, nil
}

// sampleAt reads every measurement at the resolved hourly index, defaulting
// absent values to zero and recording their names.
func sampleAt(w WeatherSeries, aq AirQualitySeries, idx int) (types.AtmosphericSample, []string) {
	var missing []string
	read := func(name string, field []*float64) float64 {
		if field[idx] == nil {
			missing = append(missing, name)
			return 0
		}
		return *field[idx]
	}

	s := types.AtmosphericSample{
		CloudCover:  read(VarCloudCover, w.CloudCover),
		CloudLow:    read(VarCloudLow, w.CloudLow),
		CloudMid:    read(VarCloudMid, w.CloudMid),
		CloudHigh:   read(VarCloudHigh, w.CloudHigh),
		Humidity:    read(VarHumidity, w.Humidity),
		VisibilityM: read(VarVisibility, w.Visibility),
		VPD:         read(VarVPD, w.VPD),
		PM25:        read(VarPM25, aq.PM25),
		PM10:        read(VarPM10, aq.PM10),
		Dust:        read(VarDust, aq.Dust),
		AOD:         read(VarAOD, aq.AOD),
	}
	return s, missing
}

// classify tags a calendar date relative to today's date. Both times must be
// in the location's local zone; comparison is by calendar day, not instant.
func classify(date, today time.Time) types.DataType {
	dy, dm, dd := date.Date()
	ty, tm, td := today.Date()
	switch {
	case dy < ty || (dy == ty && (dm < tm || (dm == tm && dd < td))):
		return types.DataHistorical
	case dy == ty && dm == tm && dd == td:
		return types.DataCurrent
	default:
		return types.DataForecast
	}
}

// average returns the mean score of entries matching the given data type, or
// nil when none match.
func average(entries []types.TimelineEntry, dt types.DataType) *float64 {
	var sum float64
	var n int
	for _, e := range entries {
		if e.DataType == dt {
			sum += float64(e.Prediction.Score)
			n++
		}
	}
	if n == 0 {
		return nil
	}
	avg := sum / float64(n)
	return &avg
}

// trend compares the forecast average against the historical average.
// The trend is stable when the averages are equal or either is undefined.
func trend(historical, forecast *float64) types.Trend {
	if historical == nil || forecast == nil {
		return types.TrendStable
	}
	switch {
	case *forecast > *historical:
		return types.TrendImproving
	case *forecast < *historical:
		return types.TrendDeclining
	default:
		return types.TrendStable
	}
}

// Build assembles a scored timeline from aligned weather and air-quality
// series. now anchors the historical/current/forecast classification and must
// be expressed in the location's local zone. On any structural misalignment
// the whole build fails; no partial timeline is returned.
func Build(loc types.Location, w WeatherSeries, aq AirQualitySeries, now time.Time) (*types.Timeline, error) {
	if err := validate(w, aq); err != nil {
		return nil, err
	}

	entries := make([]types.TimelineEntry, 0, w.Days())
	for d, sunset := range w.SunsetTimes {
		idx, err := resolveSunsetIndex(w.HourlyTimes, d, sunset.Hour())
		if err != nil {
			return nil, err
		}

		sample, missing := sampleAt(w, aq, idx)
		y, m, day := sunset.Date()
		entries = append(entries, types.TimelineEntry{
			Date:       time.Date(y, m, day, 0, 0, 0, 0, sunset.Location()),
			Prediction: scoring.Predict(sample, sunset, missing),
			DataType:   classify(sunset, now),
		})
	}

	histAvg := average(entries, types.DataHistorical)
	fcAvg := average(entries, types.DataForecast)

	return &types.Timeline{
		Location:      loc,
		GeneratedAt:   now,
		Entries:       entries,
		HistoricalAvg: histAvg,
		ForecastAvg:   fcAvg,
		Trend:         trend(histAvg, fcAvg),
	}, nil
}
