// Package assistant runs the query pipeline: classify intent, resolve
// a place, fetch weather and points of interest, and compose one reply.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/tripscout/tripscout/internal/geo"
	"github.com/tripscout/tripscout/internal/geocode"
	"github.com/tripscout/tripscout/internal/intent"
	"github.com/tripscout/tripscout/internal/places"
	"github.com/tripscout/tripscout/internal/weather"
)

// Geocoder resolves a place name to a coordinate and display name.
type Geocoder interface {
	Lookup(ctx context.Context, place string) (*geocode.Place, error)
}

// WeatherSource reports current conditions at a coordinate.
type WeatherSource interface {
	Current(ctx context.Context, center geo.Coordinate) (*weather.Reading, error)
}

// PlaceFinder returns ranked points of interest around a coordinate.
type PlaceFinder interface {
	Search(ctx context.Context, center geo.Coordinate, limit int) []places.RankedPOI
}

// Request is one raw user query with optional caller coordinates.
type Request struct {
	Message string   `json:"message" validate:"required"`
	Lat     *float64 `json:"lat" validate:"omitempty,gte=-90,lte=90"`
	Lon     *float64 `json:"lon" validate:"omitempty,gte=-180,lte=180"`
}

// Response is the aggregated answer for one request. It is recomputed
// from scratch per request; nothing here is shared or cached.
type Response struct {
	Reply     string             `json:"reply"`
	Weather   *weather.Reading   `json:"weather"`
	Places    []places.RankedPOI `json:"places"`
	City      *string            `json:"city"`
	CenterLat *float64           `json:"center_lat"`
	CenterLon *float64           `json:"center_lon"`
}

// Service wires the three upstream clients into the pipeline.
type Service struct {
	geocoder Geocoder
	weather  WeatherSource
	places   PlaceFinder
	poiLimit int
}

func NewService(g Geocoder, w WeatherSource, p PlaceFinder, poiLimit int) *Service {
	if poiLimit <= 0 {
		poiLimit = places.DefaultLimit
	}
	return &Service{
		geocoder: g,
		weather:  w,
		places:   p,
		poiLimit: poiLimit,
	}
}

// Answer runs the full pipeline for one message. Place resolution
// failures are terminal and answered with a clarifying reply; weather
// and POI failures degrade to null/empty fields.
func (s *Service) Answer(ctx context.Context, req Request) Response {
	in := intent.Classify(req.Message)

	if in.NearMe && in.WantsPlaces && req.Lat != nil && req.Lon != nil {
		return s.answerNearMe(ctx, *req.Lat, *req.Lon)
	}

	name, ok := intent.ExtractPlaceName(req.Message)
	if !ok {
		return Response{
			Reply:  "Please mention a city name.",
			Places: []places.RankedPOI{},
		}
	}

	place, err := s.geocoder.Lookup(ctx, name)
	if err != nil {
		if !errors.Is(err, geocode.ErrNotFound) {
			log.Printf("assistant: geocoding %q failed: %v", name, err)
		}
		return Response{
			Reply:  fmt.Sprintf("I don't know if %q exists.", name),
			Places: []places.RankedPOI{},
		}
	}
	log.Printf("assistant: resolved %q to %q (%.4f, %.4f)",
		name, place.DisplayName, place.Coordinate.Lat, place.Coordinate.Lon)

	center := place.Coordinate

	// Weather and POI lookups have no data dependency on each other
	// once the center is known; run them in parallel and join before
	// composing so completion order never changes the output.
	var (
		wg      sync.WaitGroup
		reading *weather.Reading
		found   []places.RankedPOI
	)

	if in.WantsWeather {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := s.weather.Current(ctx, center)
			if err != nil {
				log.Printf("assistant: weather lookup failed: %v", err)
				return
			}
			reading = r
		}()
	}

	if in.WantsPlaces {
		wg.Add(1)
		go func() {
			defer wg.Done()
			found = s.places.Search(ctx, center, s.poiLimit)
		}()
	}

	wg.Wait()

	reply := composeReply(req.Message, name, in, reading, found)
	if found == nil {
		found = []places.RankedPOI{}
	}

	return Response{
		Reply:     reply,
		Weather:   reading,
		Places:    found,
		City:      &name,
		CenterLat: &center.Lat,
		CenterLon: &center.Lon,
	}
}

func (s *Service) answerNearMe(ctx context.Context, lat, lon float64) Response {
	center := geo.Coordinate{Lat: lat, Lon: lon}
	found := s.places.Search(ctx, center, s.poiLimit)
	if found == nil {
		found = []places.RankedPOI{}
	}

	reply := "Here are the nearest places you can visit:\n" + strings.Join(poiNames(found), "\n")

	return Response{
		Reply:     reply,
		Places:    found,
		CenterLat: &lat,
		CenterLon: &lon,
	}
}

// composeReply assembles the reply text in fixed order: weather
// sentence first when requested, then the places sentence. A weather
// fetch that failed entirely drops its sentence; individually missing
// fields render as "unknown".
func composeReply(message, place string, in intent.Intent, reading *weather.Reading, found []places.RankedPOI) string {
	var b strings.Builder

	if in.WantsWeather && reading != nil {
		fmt.Fprintf(&b, "In %s it's currently %s°C with a %s%% chance to rain.\n",
			place, formatTemperature(reading.TemperatureC), formatRainChance(reading.RainChancePct))
	}

	if in.WantsPlaces {
		names := strings.Join(poiNames(found), "\n")
		if strings.Contains(strings.ToLower(message), "plan my trip") {
			fmt.Fprintf(&b, "In %s these are the places you can go,\n%s", place, names)
		} else {
			fmt.Fprintf(&b, "And these are the places you can go:\n%s", names)
		}
	}

	return strings.TrimSpace(b.String())
}

func poiNames(found []places.RankedPOI) []string {
	names := make([]string, 0, len(found))
	for _, p := range found {
		names = append(names, p.Name)
	}
	return names
}

func formatTemperature(v *float64) string {
	if v == nil {
		return "unknown"
	}
	return fmt.Sprintf("%g", *v)
}

func formatRainChance(v *int) string {
	if v == nil {
		return "unknown"
	}
	return fmt.Sprintf("%d", *v)
}
