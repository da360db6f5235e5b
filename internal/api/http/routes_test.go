package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/tripscout/tripscout/internal/assistant"
	"github.com/tripscout/tripscout/internal/geo"
	"github.com/tripscout/tripscout/internal/geocode"
	"github.com/tripscout/tripscout/internal/places"
	"github.com/tripscout/tripscout/internal/weather"
)

type fakeGeocoder struct{ place *geocode.Place }

func (f fakeGeocoder) Lookup(ctx context.Context, place string) (*geocode.Place, error) {
	if f.place == nil {
		return nil, geocode.ErrNotFound
	}
	return f.place, nil
}

type fakeWeather struct{ reading *weather.Reading }

func (f fakeWeather) Current(ctx context.Context, center geo.Coordinate) (*weather.Reading, error) {
	return f.reading, nil
}

type fakePlaces struct{ results []places.RankedPOI }

func (f fakePlaces) Search(ctx context.Context, center geo.Coordinate, limit int) []places.RankedPOI {
	return f.results
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func newTestApp(svc *assistant.Service) *fiber.App {
	app := fiber.New()
	RegisterRoutes(app, svc)
	return app
}

func postChat(t *testing.T, app *fiber.App, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return resp
}

// TestChatValidation verifies that malformed or incomplete requests are
// rejected before the pipeline runs.
func TestChatValidation(t *testing.T) {
	app := newTestApp(assistant.NewService(fakeGeocoder{}, fakeWeather{}, fakePlaces{}, 5))

	resp := postChat(t, app, `{}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty message: status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	resp = postChat(t, app, `{"message":"places near me","lat":123.0,"lon":2.0}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("out-of-range lat: status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	resp = postChat(t, app, `not json`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid body: status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestChatWeatherInBerlin(t *testing.T) {
	svc := assistant.NewService(
		fakeGeocoder{place: &geocode.Place{
			Coordinate:  geo.Coordinate{Lat: 52.52, Lon: 13.38},
			DisplayName: "Berlin, Germany",
		}},
		fakeWeather{reading: &weather.Reading{TemperatureC: floatPtr(15), RainChancePct: intPtr(20)}},
		fakePlaces{},
		5,
	)
	app := newTestApp(svc)

	resp := postChat(t, app, `{"message":"weather in Berlin","lat":null,"lon":null}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}

	var payload struct {
		Reply     string             `json:"reply"`
		Weather   *weather.Reading   `json:"weather"`
		Places    []places.RankedPOI `json:"places"`
		City      *string            `json:"city"`
		CenterLat *float64           `json:"center_lat"`
		CenterLon *float64           `json:"center_lon"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}

	for _, want := range []string{"Berlin", "15", "20"} {
		if !strings.Contains(payload.Reply, want) {
			t.Errorf("reply %q missing %q", payload.Reply, want)
		}
	}
	if payload.City == nil || *payload.City != "Berlin" {
		t.Errorf("city = %v, want Berlin", payload.City)
	}
	if payload.CenterLat == nil || *payload.CenterLat != 52.52 {
		t.Errorf("center_lat = %v", payload.CenterLat)
	}
}

func TestChatPlacesNearMe(t *testing.T) {
	svc := assistant.NewService(
		fakeGeocoder{},
		fakeWeather{},
		fakePlaces{results: []places.RankedPOI{
			{Name: "Grand Museum", Lat: 48.86, Lon: 2.34, DistanceKm: 1.25},
		}},
		5,
	)
	app := newTestApp(svc)

	resp := postChat(t, app, `{"message":"places near me","lat":48.85,"lon":2.35}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}

	var payload struct {
		Places []places.RankedPOI `json:"places"`
		City   *string            `json:"city"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}

	if len(payload.Places) == 0 {
		t.Error("places must be non-empty")
	}
	if payload.City != nil {
		t.Errorf("city = %v, want null", *payload.City)
	}
}
