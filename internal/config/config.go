package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	Port string

	// HTTPTimeout bounds every outbound upstream call so a slow
	// provider cannot stall a request indefinitely.
	HTTPTimeout time.Duration

	// Upstream base URLs, overridable for tests and self-hosted mirrors.
	NominatimBaseURL string
	OpenMeteoBaseURL string
	OverpassBaseURL  string

	// POILimit caps the ranked places per reply.
	POILimit int

	// ProbeInterval controls how often upstream health is checked.
	ProbeInterval time.Duration
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg := &AppConfig{}

	cfg.Port = getenvDefault("PORT", "8080")

	timeoutStr := getenvDefault("HTTP_TIMEOUT", "10s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = timeout

	cfg.NominatimBaseURL = getenvDefault("NOMINATIM_BASE_URL", "https://nominatim.openstreetmap.org/search")
	cfg.OpenMeteoBaseURL = getenvDefault("OPENMETEO_BASE_URL", "https://api.open-meteo.com/v1/forecast")
	cfg.OverpassBaseURL = getenvDefault("OVERPASS_BASE_URL", "https://overpass-api.de/api/interpreter")

	cfg.POILimit = getenvInt("POI_LIMIT", 5)

	probeStr := getenvDefault("HEALTH_PROBE_INTERVAL", "5m")
	probe, err := time.ParseDuration(probeStr)
	if err != nil {
		return nil, fmt.Errorf("invalid HEALTH_PROBE_INTERVAL: %w", err)
	}
	cfg.ProbeInterval = probe

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}
