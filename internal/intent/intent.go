// Package intent turns raw user messages into structured query intents
// and extracts candidate place names. Matching is ordered substring
// lookup, not NLU: "no weather please" still wants weather.
package intent

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tripscout/tripscout/internal/common"
)

// Intent is the structured reading of one user message.
type Intent struct {
	WantsWeather bool
	WantsPlaces  bool
	NearMe       bool
}

var (
	weatherWords = []string{"weather", "temperature", "temp"}
	placesWords  = []string{"places", "visit", "tourist", "attraction", "plan my trip"}
	nearMeWords  = []string{"near me", "around me"}
)

// Classify maps a message to an Intent via keyword tables. A bare
// "trip" mention with no other match implies a full itinerary request,
// so both weather and places are set; the near-me flag is computed
// independently either way.
func Classify(message string) Intent {
	text := strings.ToLower(message)

	in := Intent{
		WantsWeather: common.HasAny(text, weatherWords...),
		WantsPlaces:  common.HasAny(text, placesWords...),
		NearMe:       common.HasAny(text, nearMeWords...),
	}

	if strings.Contains(text, "trip") && !in.WantsWeather && !in.WantsPlaces {
		in.WantsWeather = true
		in.WantsPlaces = true
	}

	return in
}

var (
	// Filler verbs are dropped but the anchor word itself survives,
	// so "going to tokyo" still yields tokyo.
	fillerToRe    = regexp.MustCompile(`\b(?:going|want|planning)\s+to\s+`)
	fillerBareRe  = regexp.MustCompile(`\bgonna\s+`)
	placeAnchorRe = regexp.MustCompile(`\b(?:to|in)\s+([a-zA-Z\s]+)`)
)

// ExtractPlaceName pulls a candidate place name out of a message: the
// letters and spaces following the first "to" or "in", truncated at
// punctuation and title-cased. The second return is false when no
// anchor word is present. Trailing connective words ("paris and visit
// museums") are kept as-is; the geocoder decides what they resolve to.
func ExtractPlaceName(message string) (string, bool) {
	text := strings.ToLower(message)
	text = fillerToRe.ReplaceAllString(text, "to ")
	text = fillerBareRe.ReplaceAllString(text, "")

	m := placeAnchorRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}

	place := m[1]
	if i := strings.IndexAny(place, "?,."); i >= 0 {
		place = place[:i]
	}

	place = strings.TrimSpace(place)
	if place == "" {
		return "", false
	}

	// Casers are stateful, so build one per call.
	return cases.Title(language.English).String(place), true
}
