package openmeteo

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"sunsetcast/internal/timeline"
	"sunsetcast/internal/types"
)

// Hourly variable lists requested from the two APIs. These match the
// timeline package's variable names so missing-value markers line up with
// what was actually requested.
const (
	weatherHourlyVars = "relative_humidity_2m,visibility,cloud_cover_low,cloud_cover_mid,cloud_cover_high,cloud_cover,vapour_pressure_deficit"
	airHourlyVars     = "pm10,pm2_5,dust,aerosol_optical_depth"
)

// Open-Meteo timestamp layouts. Timestamps carry no zone designator; they are
// expressed in the timezone named by the response envelope.
const hourlyTimeLayout = "2006-01-02T15:04"

// ForecastResponse is the wire shape of the forecast API. Hourly values
// decode as pointers so JSON nulls survive as missing markers.
type ForecastResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone"`

	Daily struct {
		Time    []string `json:"time"`
		Sunrise []string `json:"sunrise"`
		Sunset  []string `json:"sunset"`
	} `json:"daily"`

	Hourly struct {
		Time       []string   `json:"time"`
		CloudCover []*float64 `json:"cloud_cover"`
		CloudLow   []*float64 `json:"cloud_cover_low"`
		CloudMid   []*float64 `json:"cloud_cover_mid"`
		CloudHigh  []*float64 `json:"cloud_cover_high"`
		Humidity   []*float64 `json:"relative_humidity_2m"`
		Visibility []*float64 `json:"visibility"`
		VPD        []*float64 `json:"vapour_pressure_deficit"`
	} `json:"hourly"`
}

// AirQualityResponse is the wire shape of the air-quality API.
type AirQualityResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone"`

	Hourly struct {
		Time []string   `json:"time"`
		PM10 []*float64 `json:"pm10"`
		PM25 []*float64 `json:"pm2_5"`
		Dust []*float64 `json:"dust"`
		AOD  []*float64 `json:"aerosol_optical_depth"`
	} `json:"hourly"`
}

// FetchForecast retrieves the batched daily sunset list and hourly weather
// series covering pastDays before today through forecastDays ahead. Bounds
// are validated by the caller; this method only builds and executes the call.
func (c *Client) FetchForecast(ctx context.Context, lat, lon float64, pastDays, forecastDays int) (*ForecastResponse, error) {
	q := url.Values{}
	q.Set("latitude", formatCoord(lat))
	q.Set("longitude", formatCoord(lon))
	q.Set("daily", "sunrise,sunset")
	q.Set("hourly", weatherHourlyVars)
	q.Set("timezone", "auto")
	q.Set("past_days", strconv.Itoa(pastDays))
	q.Set("forecast_days", strconv.Itoa(forecastDays))

	var resp ForecastResponse
	if err := c.getJSON(ctx, c.forecastURL+"?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FetchAirQuality retrieves the hourly particulate and aerosol series for the
// same day window as FetchForecast.
func (c *Client) FetchAirQuality(ctx context.Context, lat, lon float64, pastDays, forecastDays int) (*AirQualityResponse, error) {
	q := url.Values{}
	q.Set("latitude", formatCoord(lat))
	q.Set("longitude", formatCoord(lon))
	q.Set("hourly", airHourlyVars)
	q.Set("timezone", "auto")
	q.Set("past_days", strconv.Itoa(pastDays))
	q.Set("forecast_days", strconv.Itoa(forecastDays))

	var resp AirQualityResponse
	if err := c.getJSON(ctx, c.airQualityURL+"?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Zone resolves the IANA timezone named by the forecast response.
func (f *ForecastResponse) Zone() (*time.Location, error) {
	loc, err := time.LoadLocation(f.Timezone)
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamMisaligned,
			fmt.Sprintf("unknown timezone %q in upstream response", f.Timezone),
			err,
		)
	}
	return loc, nil
}

// Series converts the wire response into the timeline assembler's weather
// input, parsing all timestamps in the response's local zone. Structural
// checks (day counts, hourly coverage) are left to the assembler.
func (f *ForecastResponse) Series(zone *time.Location) (timeline.WeatherSeries, error) {
	sunsets, err := parseTimes(f.Daily.Sunset, hourlyTimeLayout, zone)
	if err != nil {
		return timeline.WeatherSeries{}, err
	}
	hours, err := parseTimes(f.Hourly.Time, hourlyTimeLayout, zone)
	if err != nil {
		return timeline.WeatherSeries{}, err
	}

	return timeline.WeatherSeries{
		SunsetTimes: sunsets,
		HourlyTimes: hours,
		CloudCover:  f.Hourly.CloudCover,
		CloudLow:    f.Hourly.CloudLow,
		CloudMid:    f.Hourly.CloudMid,
		CloudHigh:   f.Hourly.CloudHigh,
		Humidity:    f.Hourly.Humidity,
		Visibility:  f.Hourly.Visibility,
		VPD:         f.Hourly.VPD,
	}, nil
}

// Series converts the wire response into the timeline assembler's air-quality
// input. zone must come from the paired forecast response so both hourly axes
// share a calendar.
func (a *AirQualityResponse) Series(zone *time.Location) (timeline.AirQualitySeries, error) {
	hours, err := parseTimes(a.Hourly.Time, hourlyTimeLayout, zone)
	if err != nil {
		return timeline.AirQualitySeries{}, err
	}

	return timeline.AirQualitySeries{
		HourlyTimes: hours,
		PM25:        a.Hourly.PM25,
		PM10:        a.Hourly.PM10,
		Dust:        a.Hourly.Dust,
		AOD:         a.Hourly.AOD,
	}, nil
}

// parseTimes parses a slice of zoneless Open-Meteo timestamps in the given zone.
func parseTimes(raw []string, layout string, zone *time.Location) ([]time.Time, error) {
	out := make([]time.Time, len(raw))
	for i, s := range raw {
		t, err := time.ParseInLocation(layout, s, zone)
		if err != nil {
			return nil, types.NewAppError(
				types.ErrCodeUpstreamMisaligned,
				fmt.Sprintf("malformed timestamp %q in upstream series", s),
				err,
			)
		}
		out[i] = t
	}
	return out, nil
}
