// Package weather fetches current conditions from the Open-Meteo
// forecast API.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/tripscout/tripscout/internal/geo"
	"github.com/tripscout/tripscout/internal/upstream"
)

// Reading is the current-conditions view returned to callers. Nil
// fields mean the upstream omitted the value, which is not an error.
type Reading struct {
	TemperatureC  *float64 `json:"temp_c"`
	RainChancePct *int     `json:"rain_chance"`
}

// Client queries the Open-Meteo forecast endpoint.
type Client struct {
	baseURL string
	httpCfg upstream.Config
	circuit *gobreaker.CircuitBreaker
}

func NewClient(client *http.Client, baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpCfg: upstream.Config{
			Client: client,
			Backoff: upstream.Backoff{
				MaxRetries:      2,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		circuit: upstream.NewBreaker("openmeteo"),
	}
}

// Current returns the temperature right now and the first entry of the
// hourly precipitation-probability series as the near-term rain chance.
func (c *Client) Current(ctx context.Context, center geo.Coordinate) (*Reading, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", fmt.Sprintf("%f", center.Lat))
		values.Set("longitude", fmt.Sprintf("%f", center.Lon))
		values.Set("current_weather", "true")
		values.Set("hourly", "precipitation_probability")

		return http.NewRequest(http.MethodGet, fmt.Sprintf("%s?%s", c.baseURL, values.Encode()), nil)
	}

	resp, err := upstream.Do(ctx, c.httpCfg, c.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		CurrentWeather *struct {
			Temperature *float64 `json:"temperature"`
		} `json:"current_weather"`
		Hourly *struct {
			PrecipitationProbability []*int `json:"precipitation_probability"`
		} `json:"hourly"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode weather response: %w", err)
	}

	reading := &Reading{}
	if payload.CurrentWeather != nil {
		reading.TemperatureC = payload.CurrentWeather.Temperature
	}
	if payload.Hourly != nil && len(payload.Hourly.PrecipitationProbability) > 0 {
		reading.RainChancePct = payload.Hourly.PrecipitationProbability[0]
	}

	return reading, nil
}
