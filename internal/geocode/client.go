// Package geocode resolves free-text place names to coordinates via
// the Nominatim search API.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/tripscout/tripscout/internal/geo"
	"github.com/tripscout/tripscout/internal/upstream"
)

// userAgent identifies this service to the geocoding provider, as its
// usage policy requires.
const userAgent = "tripscout/1.0"

// ErrNotFound is returned when the provider has no match for a name.
var ErrNotFound = errors.New("place not found")

// Place couples a resolved coordinate with the provider's canonical
// display name.
type Place struct {
	Coordinate  geo.Coordinate
	DisplayName string
}

// Client queries the Nominatim search endpoint.
type Client struct {
	baseURL string
	httpCfg upstream.Config
	circuit *gobreaker.CircuitBreaker
}

// NewClient creates a geocoding client. Lookups are single-attempt:
// a failed resolution is terminal for the request, so there is nothing
// to gain from retrying inline.
func NewClient(client *http.Client, baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpCfg: upstream.Config{
			Client: client,
			Backoff: upstream.Backoff{
				MaxRetries:      0,
				InitialInterval: 500 * time.Millisecond,
			},
		},
		circuit: upstream.NewBreaker("nominatim"),
	}
}

// Lookup resolves a place name to its best-match coordinate and display
// name. Returns ErrNotFound when the provider has no match; transport
// failures and malformed responses surface as errors.
func (c *Client) Lookup(ctx context.Context, place string) (*Place, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("q", place)
		values.Set("format", "json")
		values.Set("limit", "1")

		req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s?%s", c.baseURL, values.Encode()), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", userAgent)
		return req, nil
	}

	resp, err := upstream.Do(ctx, c.httpCfg, c.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// Nominatim returns lat/lon as strings.
	var results []struct {
		Lat         string `json:"lat"`
		Lon         string `json:"lon"`
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decode geocoding response: %w", err)
	}

	if len(results) == 0 {
		return nil, ErrNotFound
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("parse latitude %q: %w", results[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("parse longitude %q: %w", results[0].Lon, err)
	}

	return &Place{
		Coordinate:  geo.Coordinate{Lat: lat, Lon: lon},
		DisplayName: results[0].DisplayName,
	}, nil
}
