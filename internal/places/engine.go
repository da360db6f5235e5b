// Package places searches the Overpass map-data API for tourist points
// of interest around a coordinate, expanding the search radius until
// enough candidates are collected.
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/tripscout/tripscout/internal/common"
	"github.com/tripscout/tripscout/internal/geo"
	"github.com/tripscout/tripscout/internal/upstream"
)

// DefaultLimit is the number of ranked POIs returned when the caller
// does not ask for a specific count.
const DefaultLimit = 5

// dedupEpsilon is the coordinate tolerance below which two same-named
// nodes are treated as the same physical POI.
const dedupEpsilon = 1e-5

// maxNodesPerQuery caps the raw result volume of one Overpass query.
const maxNodesPerQuery = 80

// radiiMeters are tried in order until enough candidates accumulate.
var radiiMeters = []int{5000, 10000, 20000, 30000}

// nodeSelectors is the fixed category set queried at every radius.
var nodeSelectors = []string{
	`node["tourism"="attraction"]`,
	`node["tourism"="museum"]`,
	`node["tourism"="theme_park"]`,
	`node["tourism"="zoo"]`,
	`node["historic"]`,
	`node["leisure"="park"]`,
	`node["leisure"="garden"]`,
	`node["natural"="beach"]`,
	`node["natural"="peak"]`,
	`node["amenity"="place_of_worship"]`,
}

// blockedNameKeywords mark nodes the data source mis-tagged as
// touristic: businesses, institutions, and the like.
var blockedNameKeywords = []string{
	"company", "group", "finance", "corporation", "pvt", "limited", "ltd",
	"hospital", "clinic", "bank", "school", "college", "office",
}

// RankedPOI is one scored, deduplicated search result.
type RankedPOI struct {
	Name       string  `json:"name"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	DistanceKm float64 `json:"distance_km"`
}

type candidate struct {
	name       string
	lat        float64
	lon        float64
	score      int
	distanceKm float64
}

// Engine queries the Overpass interpreter endpoint.
type Engine struct {
	baseURL string
	httpCfg upstream.Config
	circuit *gobreaker.CircuitBreaker
}

func NewEngine(client *http.Client, baseURL string) *Engine {
	return &Engine{
		baseURL: baseURL,
		httpCfg: upstream.Config{
			Client: client,
			Backoff: upstream.Backoff{
				MaxRetries:      1,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		circuit: upstream.NewBreaker("overpass"),
	}
}

// Search returns up to limit POIs around center, highest tourism score
// first and closest first within a score. A failed query at one radius
// counts as zero results at that radius; if nothing usable turns up at
// any radius the result is empty, not an error.
func (e *Engine) Search(ctx context.Context, center geo.Coordinate, limit int) []RankedPOI {
	if limit <= 0 {
		limit = DefaultLimit
	}

	var collected []candidate

	for _, radius := range radiiMeters {
		elements, err := e.query(ctx, center, radius)
		if err != nil {
			log.Printf("places: overpass query failed at radius %dm: %v", radius, err)
			continue
		}

		for _, el := range elements {
			name := el.Tags["name"]
			if name == "" {
				continue
			}
			if common.HasAny(strings.ToLower(name), blockedNameKeywords...) {
				continue
			}
			if isDuplicate(collected, name, el.Lat, el.Lon) {
				continue
			}

			collected = append(collected, candidate{
				name:       name,
				lat:        el.Lat,
				lon:        el.Lon,
				score:      scoreTags(el.Tags),
				distanceKm: common.Round2(geo.DistanceKm(center, geo.Coordinate{Lat: el.Lat, Lon: el.Lon})),
			})
		}

		// Enough pre-ranking candidates; no need to widen further.
		if len(collected) >= limit {
			break
		}
	}

	sort.Slice(collected, func(i, j int) bool {
		if collected[i].score != collected[j].score {
			return collected[i].score > collected[j].score
		}
		return collected[i].distanceKm < collected[j].distanceKm
	})

	if len(collected) > limit {
		collected = collected[:limit]
	}

	ranked := make([]RankedPOI, 0, len(collected))
	for _, c := range collected {
		ranked = append(ranked, RankedPOI{
			Name:       c.name,
			Lat:        c.lat,
			Lon:        c.lon,
			DistanceKm: c.distanceKm,
		})
	}
	return ranked
}

type overpassElement struct {
	Lat  float64           `json:"lat"`
	Lon  float64           `json:"lon"`
	Tags map[string]string `json:"tags"`
}

func (e *Engine) query(ctx context.Context, center geo.Coordinate, radiusMeters int) ([]overpassElement, error) {
	query := buildQuery(center, radiusMeters)

	buildRequest := func() (*http.Request, error) {
		return http.NewRequest(http.MethodPost, e.baseURL, strings.NewReader(query))
	}

	resp, err := upstream.Do(ctx, e.httpCfg, e.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		Elements []overpassElement `json:"elements"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode overpass response: %w", err)
	}

	return payload.Elements, nil
}

func buildQuery(center geo.Coordinate, radiusMeters int) string {
	var b strings.Builder
	b.WriteString("[out:json];\n(\n")
	for _, sel := range nodeSelectors {
		fmt.Fprintf(&b, "  %s(around:%d,%f,%f);\n", sel, radiusMeters, center.Lat, center.Lon)
	}
	fmt.Fprintf(&b, ");\nout %d;\n", maxNodesPerQuery)
	return b.String()
}

func isDuplicate(collected []candidate, name string, lat, lon float64) bool {
	for _, c := range collected {
		if c.name == name &&
			math.Abs(c.lat-lat) < dedupEpsilon &&
			math.Abs(c.lon-lon) < dedupEpsilon {
			return true
		}
	}
	return false
}

// scoreTags rates how touristy a node is from its tags: 3 for the big
// draws, 2 for attractions and anything historic, 1 for the rest.
func scoreTags(tags map[string]string) int {
	switch tags["tourism"] {
	case "museum", "theme_park", "zoo":
		return 3
	case "attraction":
		return 2
	}
	if _, ok := tags["historic"]; ok {
		return 2
	}
	return 1
}
