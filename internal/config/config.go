package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	// OpenWeatherAPIKey may be empty at load time; the gateway reports a
	// user-visible error on fetch instead of the process refusing to start.
	OpenWeatherAPIKey string

	// Google geocoding credential for the home-location provider.
	GeocoderAPIKey string

	// Home location standing in for the device position.
	LocationCity    string
	LocationCountry string

	// LocationConsent mirrors the device permission prompt.
	LocationConsent bool

	Port string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg := &AppConfig{}

	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")
	cfg.LocationCity = os.Getenv("LOCATION_CITY")
	cfg.LocationCountry = os.Getenv("LOCATION_COUNTRY")
	cfg.LocationConsent = getenvBool("LOCATION_CONSENT", true)
	cfg.Port = getenvDefault("PORT", "8080")

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}
