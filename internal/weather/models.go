package weather

import (
	"math"
	"time"

	"github.com/hsg0/RN-weather-app1/internal/geo"
)

// Query identifies what to fetch weather for: either resolved device
// coordinates or a user-typed city name. Exactly one side is set.
type Query struct {
	Coords *geo.Coordinates
	City   string
}

// ByCoordinates builds a coordinate query.
func ByCoordinates(c geo.Coordinates) Query {
	return Query{Coords: &c}
}

// ByCityName builds a city-name query.
func ByCityName(city string) Query {
	return Query{City: city}
}

// Key returns a short human-readable form of the query for log lines.
func (q Query) Key() string {
	if q.Coords != nil {
		return "coords"
	}
	return "city:" + q.City
}

// CurrentWeather is the normalized current-conditions view for one place.
// It is replaced wholesale on every successful fetch; there is no merging.
type CurrentWeather struct {
	City        string    `json:"city"`
	Temperature float64   `json:"temperatureC"`
	Description string    `json:"description"`
	Humidity    int       `json:"humidityPercent"`
	WindSpeed   float64   `json:"windSpeed"`
	Sunrise     time.Time `json:"sunrise"`
	Sunset      time.Time `json:"sunset"`
}

// TemperatureRounded returns the display temperature, rounded to the
// nearest whole degree.
func (w CurrentWeather) TemperatureRounded() int {
	return int(math.Round(w.Temperature))
}

// ForecastSample is one entry of the provider's fixed-interval forecast series.
type ForecastSample struct {
	Time        time.Time `json:"time"`
	Temperature float64   `json:"temperatureC"`
	Description string    `json:"description"`
}

// Bundle is the paired result of a current-conditions fetch and a forecast
// fetch for one query.
type Bundle struct {
	Current  CurrentWeather
	Forecast []ForecastSample
}
