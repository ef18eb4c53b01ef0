package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

var (
	// ErrNoAPIKey is returned before any request is issued when no credential is configured.
	ErrNoAPIKey = errors.New("openweather api key is not configured")
	// ErrProvider is returned when either endpoint reports a non-success status.
	ErrProvider = errors.New("weather provider reported failure")
	// ErrNetwork is returned on a transport-level failure of either request.
	ErrNetwork = errors.New("weather provider unreachable")
)

const (
	defaultCurrentURL  = "https://api.openweathermap.org/data/2.5/weather"
	defaultForecastURL = "https://api.openweathermap.org/data/2.5/forecast"

	// All requests use a single fixed unit system.
	unitSystem = "metric"
)

// The current-conditions endpoint reports success as a JSON number while the
// forecast endpoint reports the same code as a JSON string. That asymmetry is
// a provider quirk and is validated as-is.
const (
	codSuccessCurrent  = 200
	codSuccessForecast = "200"
)

// Gateway fetches a weather bundle (current conditions plus the 5-day
// forecast series) from OpenWeatherMap.
type Gateway struct {
	client      *http.Client
	apiKey      string
	currentURL  string
	forecastURL string
}

// NewGateway creates a Gateway using the shared HTTP client. The gateway
// itself imposes no timeout on provider calls.
func NewGateway(client *http.Client, apiKey string) *Gateway {
	return &Gateway{
		client:      client,
		apiKey:      apiKey,
		currentURL:  defaultCurrentURL,
		forecastURL: defaultForecastURL,
	}
}

type currentPayload struct {
	Cod  int    `json:"cod"`
	Name string `json:"name"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Sys struct {
		Sunrise int64 `json:"sunrise"`
		Sunset  int64 `json:"sunset"`
	} `json:"sys"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
}

type forecastPayload struct {
	Cod  string `json:"cod"`
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
		Weather []struct {
			Description string `json:"description"`
		} `json:"weather"`
	} `json:"list"`
}

// FetchBundle issues the current-conditions and forecast requests
// concurrently for the same query and returns the combined result. The two
// requests are not independently recoverable: both responses are awaited,
// then both status codes are validated; if either side failed the whole
// bundle fails and no partial data is returned.
func (g *Gateway) FetchBundle(ctx context.Context, q Query) (Bundle, error) {
	if g.apiKey == "" {
		return Bundle{}, ErrNoAPIKey
	}

	params := g.queryParams(q)

	var (
		wg     sync.WaitGroup
		cur    currentPayload
		curErr error
		fc     forecastPayload
		fcErr  error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		curErr = g.getJSON(ctx, g.currentURL, params, &cur)
	}()
	go func() {
		defer wg.Done()
		fcErr = g.getJSON(ctx, g.forecastURL, params, &fc)
	}()
	wg.Wait()

	if curErr != nil {
		return Bundle{}, curErr
	}
	if fcErr != nil {
		return Bundle{}, fcErr
	}

	if cur.Cod != codSuccessCurrent || fc.Cod != codSuccessForecast {
		return Bundle{}, fmt.Errorf("%w: current cod=%d, forecast cod=%q", ErrProvider, cur.Cod, fc.Cod)
	}

	bundle := Bundle{
		Current: CurrentWeather{
			City:        cur.Name,
			Temperature: cur.Main.Temp,
			Humidity:    cur.Main.Humidity,
			WindSpeed:   cur.Wind.Speed,
			Sunrise:     time.Unix(cur.Sys.Sunrise, 0).UTC(),
			Sunset:      time.Unix(cur.Sys.Sunset, 0).UTC(),
		},
	}
	if len(cur.Weather) > 0 {
		bundle.Current.Description = cur.Weather[0].Description
	}

	bundle.Forecast = make([]ForecastSample, 0, len(fc.List))
	for _, item := range fc.List {
		sample := ForecastSample{
			Time:        time.Unix(item.Dt, 0).UTC(),
			Temperature: item.Main.Temp,
		}
		if len(item.Weather) > 0 {
			sample.Description = item.Weather[0].Description
		}
		bundle.Forecast = append(bundle.Forecast, sample)
	}

	return bundle, nil
}

func (g *Gateway) queryParams(q Query) url.Values {
	values := url.Values{}
	values.Set("appid", g.apiKey)
	values.Set("units", unitSystem)

	if q.Coords != nil {
		values.Set("lat", strconv.FormatFloat(q.Coords.Latitude, 'f', -1, 64))
		values.Set("lon", strconv.FormatFloat(q.Coords.Longitude, 'f', -1, 64))
	} else {
		values.Set("q", q.City)
	}
	return values
}

// getJSON performs one GET and decodes the body. Transport failures map to
// ErrNetwork; a body the provider filled with something undecodable maps to
// ErrProvider, since the transport itself worked.
func (g *Gateway) getJSON(ctx context.Context, baseURL string, params url.Values, out any) error {
	u := fmt.Sprintf("%s?%s", baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: undecodable response: %v", ErrProvider, err)
	}
	return nil
}
