package geocode

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/domain"
	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/external"
	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/infrastructure/logging"
)

//ErrNoMatch is returned when the geocoder knows no place at the given position
var ErrNoMatch = errors.New("no place found at these coordinates")

//Place is the result of a reverse lookup
type Place struct {
	Label     string
	Latitude  float64
	Longitude float64
	Address   map[string]string
}

//Short returns a compact label built from village/town, district and state, falling back
//to the full label
func (p Place) Short() string {
	parts := []string{}
	for _, keys := range [][]string{{"village", "town", "city", "hamlet"}, {"state_district", "county"}, {"state"}} {
		for _, key := range keys {
			if value := p.Address[key]; value != "" {
				parts = append(parts, value)
				break
			}
		}
	}

	if len(parts) == 0 {
		return p.Label
	}
	return strings.Join(parts, ", ")
}

//Client performs keyless reverse geocoding
type Client struct {
	upstream *external.Upstream
}

//New creates a geocoding client for the service rooted at baseURL
func New(baseURL string, settings external.Settings, log logging.Logger) *Client {
	return &Client{upstream: external.NewUpstream("geocoder", baseURL, settings, log)}
}

//Upstream exposes the guarded service
func (c *Client) Upstream() *external.Upstream {
	return c.upstream
}

//Reverse looks up the place at the given coordinates. Coordinates are validated before
//anything is sent.
func (c *Client) Reverse(ctx context.Context, at domain.Coordinates) (Place, error) {
	if err := at.Validate(); err != nil {
		return Place{}, err
	}

	query := url.Values{}
	query.Set("format", "json")
	query.Set("lat", strconv.FormatFloat(at.Latitude, 'f', 6, 64))
	query.Set("lon", strconv.FormatFloat(at.Longitude, 'f', 6, 64))
	query.Set("zoom", "14")
	query.Set("addressdetails", "1")

	var body struct {
		DisplayName string            `json:"display_name"`
		Lat         string            `json:"lat"`
		Lon         string            `json:"lon"`
		Address     map[string]string `json:"address"`
		Error       string            `json:"error"`
	}

	if err := c.upstream.GetJSON(ctx, "/reverse", query, &body); err != nil {
		return Place{}, err
	}

	if body.Error != "" || body.DisplayName == "" {
		return Place{}, ErrNoMatch
	}

	place := Place{Label: body.DisplayName, Latitude: at.Latitude, Longitude: at.Longitude, Address: body.Address}
	if lat, err := strconv.ParseFloat(body.Lat, 64); err == nil {
		place.Latitude = lat
	}
	if lon, err := strconv.ParseFloat(body.Lon, 64); err == nil {
		place.Longitude = lon
	}

	return place, nil
}

//Prefill sets the location of a farm from its coordinates when the location is still empty.
//Farms that already have a location or lack coordinates are returned unchanged.
func (c *Client) Prefill(ctx context.Context, farm domain.Farm) (domain.Farm, error) {
	at, ok := farm.Coordinates()
	if !ok || strings.TrimSpace(farm.Location) != "" {
		return farm, nil
	}

	place, err := c.Reverse(ctx, at)
	if err != nil {
		return farm, err
	}

	farm.Location = place.Short()
	return farm, nil
}
