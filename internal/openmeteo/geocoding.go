package openmeteo

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"sunsetcast/internal/types"
)

// GeocodingResult is one match from the location search API.
type GeocodingResult struct {
	Name      string  `json:"name"`
	Admin1    string  `json:"admin1"`
	Country   string  `json:"country"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone"`
}

// geocodingResponse is the wire envelope of the search API. An empty result
// set is returned as a missing "results" key, not an empty array.
type geocodingResponse struct {
	Results []GeocodingResult `json:"results"`
}

// Location converts a geocoding match into the domain location type.
func (g GeocodingResult) Location() types.Location {
	display := g.Name
	if g.Admin1 != "" {
		display += ", " + g.Admin1
	}
	if g.Country != "" {
		display += ", " + g.Country
	}
	return types.Location{
		Lat:         g.Latitude,
		Lon:         g.Longitude,
		DisplayName: display,
		Timezone:    g.Timezone,
	}
}

// SearchLocations looks up candidate locations by name. It fails with a
// not-found error when the provider returns no matches.
func (c *Client) SearchLocations(ctx context.Context, name string, count int) ([]GeocodingResult, error) {
	if count <= 0 {
		count = 5
	}

	q := url.Values{}
	q.Set("name", name)
	q.Set("count", strconv.Itoa(count))

	var resp geocodingResponse
	if err := c.getJSON(ctx, c.geocodingURL+"?"+q.Encode(), &resp); err != nil {
		return nil, err
	}

	if len(resp.Results) == 0 {
		return nil, types.NewAppError(
			types.ErrCodeNotFoundLocation,
			fmt.Sprintf("no locations found matching %q", name),
			nil,
		)
	}
	return resp.Results, nil
}
