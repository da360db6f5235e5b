package places

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tripscout/tripscout/internal/geo"
)

func newTestEngine(handler http.HandlerFunc) (*Engine, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return NewEngine(&http.Client{Timeout: 2 * time.Second}, srv.URL), srv
}

func elementsJSON(elements ...string) string {
	return fmt.Sprintf(`{"elements":[%s]}`, strings.Join(elements, ","))
}

func node(name string, lat, lon float64, tags string) string {
	named := fmt.Sprintf(`"name":%q`, name)
	if tags != "" {
		named += "," + tags
	}
	return fmt.Sprintf(`{"lat":%f,"lon":%f,"tags":{%s}}`, lat, lon, named)
}

var center = geo.Coordinate{Lat: 48.8566, Lon: 2.3522}

func TestSearchRanksByScoreThenDistance(t *testing.T) {
	var queries int
	engine, srv := newTestEngine(func(w http.ResponseWriter, r *http.Request) {
		queries++
		w.Write([]byte(elementsJSON(
			// Farther museum must still beat a nearby park.
			node("City Park", 48.8570, 2.3530, `"leisure":"park"`),
			node("Grand Museum", 48.8700, 2.3700, `"tourism":"museum"`),
			node("Old Fort", 48.8600, 2.3600, `"historic":"fort"`),
			node("Main Attraction", 48.8580, 2.3540, `"tourism":"attraction"`),
			node("Hidden Garden", 48.8590, 2.3550, `"leisure":"garden"`),
		)))
	})
	defer srv.Close()

	got := engine.Search(context.Background(), center, 5)
	if queries != 1 {
		t.Errorf("queried %d radii, want early termination after 1", queries)
	}

	wantOrder := []string{"Grand Museum", "Main Attraction", "Old Fort", "City Park", "Hidden Garden"}
	if len(got) != len(wantOrder) {
		t.Fatalf("got %d results, want %d", len(got), len(wantOrder))
	}
	for i, name := range wantOrder {
		if got[i].Name != name {
			t.Errorf("result[%d] = %q, want %q", i, got[i].Name, name)
		}
	}
}

func TestSearchRespectsLimit(t *testing.T) {
	engine, srv := newTestEngine(func(w http.ResponseWriter, r *http.Request) {
		nodes := make([]string, 0, 10)
		for i := 0; i < 10; i++ {
			nodes = append(nodes, node(fmt.Sprintf("Museum %d", i), 48.8+float64(i)*0.01, 2.35, `"tourism":"museum"`))
		}
		w.Write([]byte(elementsJSON(nodes...)))
	})
	defer srv.Close()

	got := engine.Search(context.Background(), center, 3)
	if len(got) != 3 {
		t.Fatalf("got %d results, want 3", len(got))
	}
}

func TestSearchFiltersUnnamedAndBlockedNodes(t *testing.T) {
	engine, srv := newTestEngine(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(elementsJSON(
			`{"lat":48.86,"lon":2.36,"tags":{"tourism":"museum"}}`,
			node("Riverside Hospital", 48.8600, 2.3600, `"historic":"yes"`),
			node("First National Bank Museum", 48.8610, 2.3610, `"tourism":"museum"`),
			node("Acme Ltd Headquarters", 48.8620, 2.3620, `"tourism":"attraction"`),
			node("Louvre", 48.8606, 2.3376, `"tourism":"museum"`),
		)))
	})
	defer srv.Close()

	got := engine.Search(context.Background(), center, 5)
	if len(got) != 1 || got[0].Name != "Louvre" {
		t.Fatalf("got %v, want only Louvre", got)
	}
}

func TestSearchDeduplicatesNearIdenticalNodes(t *testing.T) {
	engine, srv := newTestEngine(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(elementsJSON(
			// Same POI surfaced by the historic and tourism selectors.
			node("Notre-Dame", 48.852968, 2.349902, `"tourism":"attraction"`),
			node("Notre-Dame", 48.852969, 2.349903, `"historic":"cathedral"`),
			// Same name but genuinely elsewhere stays.
			node("Notre-Dame", 48.9000, 2.4000, `"amenity":"place_of_worship"`),
		)))
	})
	defer srv.Close()

	got := engine.Search(context.Background(), center, 5)
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2 after dedup: %v", len(got), got)
	}
}

func TestSearchEscalatesRadiusUntilEnoughCandidates(t *testing.T) {
	var queries int
	engine, srv := newTestEngine(func(w http.ResponseWriter, r *http.Request) {
		queries++
		if queries < 3 {
			w.Write([]byte(elementsJSON()))
			return
		}
		w.Write([]byte(elementsJSON(
			node("Remote Abbey", 48.9500, 2.5000, `"historic":"abbey"`),
		)))
	})
	defer srv.Close()

	got := engine.Search(context.Background(), center, 1)
	if len(got) != 1 {
		t.Fatalf("got %d results, want 1", len(got))
	}
	if queries != 3 {
		t.Errorf("queried %d radii, want 3", queries)
	}
}

func TestSearchAbsorbsTotalUpstreamFailure(t *testing.T) {
	engine, srv := newTestEngine(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	defer srv.Close()

	got := engine.Search(context.Background(), center, 5)
	if got == nil {
		t.Fatal("want empty non-nil result on total failure")
	}
	if len(got) != 0 {
		t.Fatalf("got %d results, want 0", len(got))
	}
}

func TestSearchDistanceIsRounded(t *testing.T) {
	engine, srv := newTestEngine(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(elementsJSON(
			node("Grand Museum", 48.8700, 2.3700, `"tourism":"museum"`),
		)))
	})
	defer srv.Close()

	got := engine.Search(context.Background(), center, 5)
	if len(got) != 1 {
		t.Fatalf("got %d results, want 1", len(got))
	}
	d := got[0].DistanceKm
	if math.Abs(d*100-math.Round(d*100)) > 1e-9 {
		t.Errorf("distance %v not rounded to 2 decimal places", d)
	}
	if d <= 0 || d > 5 {
		t.Errorf("distance %v out of plausible range", d)
	}
}
