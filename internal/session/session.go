package session

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/hsg0/RN-weather-app1/internal/geo"
	"github.com/hsg0/RN-weather-app1/internal/weather"
)

var (
	// ErrEmptyQuery is returned for an empty or whitespace-only search input.
	ErrEmptyQuery = errors.New("empty city name")
	// ErrSearchInFlight is returned when a search is requested while another is outstanding.
	ErrSearchInFlight = errors.New("a search is already in progress")
)

// User-visible messages surfaced through the snapshot.
const (
	msgPermissionDenied = "Permission to access location was denied"
	msgEmptyQuery       = "Please enter a city name."
	msgLocateFailed     = "Unable to determine device location."
	msgCityNotFound     = "City not found. Please check the city name and try again."
	msgFetchFailed      = "Error fetching weather data."
	msgNoCredentials    = "Weather service credentials are not configured."
)

// State names the session's position in the lookup flow.
type State string

const (
	StateIdle           State = "idle"
	StateLocating       State = "locating"
	StateAwaitingBundle State = "awaiting_bundle"
	StateReady          State = "ready"
	StateError          State = "error"
)

// Mode says what kind of query produced (or is producing) the current data.
type Mode string

const (
	ModeDevice Mode = "device"
	ModeSearch Mode = "search"
)

type origin int

const (
	originDevice origin = iota
	originSearch
)

// Fetcher is the gateway contract the session depends on.
type Fetcher interface {
	FetchBundle(ctx context.Context, q weather.Query) (weather.Bundle, error)
}

// Snapshot is a read-only copy of the session state for rendering.
type Snapshot struct {
	State     State                    `json:"state"`
	Mode      Mode                     `json:"mode"`
	Weather   *weather.CurrentWeather  `json:"weather,omitempty"`
	Forecast  []weather.ForecastSample `json:"forecast,omitempty"`
	Error     string                   `json:"error,omitempty"`
	Searching bool                     `json:"searching"`
}

// Session owns the weather lookup state machine. All state lives on the run
// loop goroutine; location results, search requests, bundle results and
// snapshot reads arrive as events on a single channel, so no locking is
// needed anywhere in this package.
type Session struct {
	locator geo.Provider
	gateway Fetcher
	stride  int

	events chan event

	// Owned by the run loop; never touched from outside it.
	state      State
	mode       Mode
	weather    *weather.CurrentWeather
	forecast   []weather.ForecastSample
	errMsg     string
	searching  bool
	permDenied bool
}

type event interface{ isEvent() }

type locateEvent struct{}
type permissionEvent struct {
	status geo.PermissionStatus
	err    error
}
type positionEvent struct {
	coords geo.Coordinates
	err    error
}
type searchEvent struct {
	city string
	done chan error
}
type bundleEvent struct {
	origin origin
	cycle  string
	bundle weather.Bundle
	err    error
	done   chan error
}
type snapshotEvent struct {
	reply chan Snapshot
}

func (locateEvent) isEvent()     {}
func (permissionEvent) isEvent() {}
func (positionEvent) isEvent()   {}
func (searchEvent) isEvent()     {}
func (bundleEvent) isEvent()     {}
func (snapshotEvent) isEvent()   {}

// New creates a Session. stride is the daily-forecast downsampling stride;
// values below 1 fall back to the provider's samples-per-day.
func New(locator geo.Provider, gateway Fetcher, stride int) *Session {
	if stride < 1 {
		stride = weather.SamplesPerDay
	}
	return &Session{
		locator: locator,
		gateway: gateway,
		stride:  stride,
		events:  make(chan event),
		state:   StateIdle,
		mode:    ModeDevice,
	}
}

// Run processes events until ctx is cancelled. It must be running before
// Locate, Search or Snapshot are called.
func (s *Session) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.events:
			s.handle(ctx, ev)
		}
	}
}

// Locate starts a device-location cycle: permission check, position
// resolution, then a coordinate fetch. The cycle runs asynchronously; its
// outcome lands in the snapshot. Locate never fires on its own; every cycle
// is an explicit trigger.
func (s *Session) Locate(ctx context.Context) error {
	if !s.post(ctx, locateEvent{}) {
		return ctx.Err()
	}
	return nil
}

// Search looks up weather for a user-typed city name and blocks until the
// search settles. Empty or whitespace-only input fails with ErrEmptyQuery
// before any network activity.
func (s *Session) Search(ctx context.Context, city string) error {
	done := make(chan error, 1)
	if !s.post(ctx, searchEvent{city: city, done: done}) {
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns a read-only copy of the current session state.
func (s *Session) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	if !s.post(ctx, snapshotEvent{reply: reply}) {
		return Snapshot{}, ctx.Err()
	}
	select {
	case snap := <-reply:
		return snap, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

func (s *Session) post(ctx context.Context, ev event) bool {
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Session) handle(ctx context.Context, ev event) {
	switch ev := ev.(type) {
	case locateEvent:
		s.handleLocate(ctx)
	case permissionEvent:
		s.handlePermission(ev)
	case positionEvent:
		s.handlePosition(ctx, ev)
	case searchEvent:
		s.handleSearch(ctx, ev)
	case bundleEvent:
		s.handleBundle(ev)
	case snapshotEvent:
		ev.reply <- s.snapshot()
	}
}

func (s *Session) handleLocate(ctx context.Context) {
	if s.state == StateLocating || s.state == StateAwaitingBundle {
		log.Printf("session: locate ignored, a cycle is already running (state=%s)", s.state)
		return
	}
	// Permission is requested once; a denial is final for the session.
	if s.permDenied {
		s.state = StateError
		s.errMsg = msgPermissionDenied
		return
	}

	s.state = StateLocating
	go func() {
		status, err := s.locator.RequestPermission(ctx)
		if err != nil || status != geo.PermissionGranted {
			s.post(ctx, permissionEvent{status: status, err: err})
			return
		}
		coords, err := s.locator.CurrentPosition(ctx)
		s.post(ctx, positionEvent{coords: coords, err: err})
	}()
}

func (s *Session) handlePermission(ev permissionEvent) {
	if ev.err != nil {
		log.Printf("session: permission request failed: %v", ev.err)
	} else if ev.status == geo.PermissionDenied {
		log.Printf("session: location permission denied")
	}
	s.permDenied = true
	s.state = StateError
	s.errMsg = msgPermissionDenied
}

func (s *Session) handlePosition(ctx context.Context, ev positionEvent) {
	if ev.err != nil {
		log.Printf("session: position resolution failed: %v", ev.err)
		s.state = StateError
		s.errMsg = msgLocateFailed
		return
	}
	if s.searching {
		// A search takes priority; late device coordinates must not start
		// a competing fetch.
		log.Printf("session: device coordinates suppressed, search in flight")
		return
	}
	s.state = StateAwaitingBundle
	s.mode = ModeDevice
	s.startFetch(ctx, weather.ByCoordinates(ev.coords), originDevice, nil)
}

func (s *Session) handleSearch(ctx context.Context, ev searchEvent) {
	city := strings.TrimSpace(ev.city)
	if city == "" {
		// Fail fast: no in-flight entry, no network call, prior weather
		// and forecast stay as they were.
		s.errMsg = msgEmptyQuery
		ev.done <- ErrEmptyQuery
		return
	}
	if s.searching {
		ev.done <- ErrSearchInFlight
		return
	}

	s.searching = true
	s.mode = ModeSearch
	s.startFetch(ctx, weather.ByCityName(city), originSearch, ev.done)
}

func (s *Session) startFetch(ctx context.Context, q weather.Query, org origin, done chan error) {
	cycle := uuid.NewString()
	log.Printf("session: fetch %s started for %s", cycle, q.Key())
	go func() {
		bundle, err := s.gateway.FetchBundle(ctx, q)
		if !s.post(ctx, bundleEvent{origin: org, cycle: cycle, bundle: bundle, err: err, done: done}) && done != nil {
			done <- ctx.Err()
		}
	}()
}

func (s *Session) handleBundle(ev bundleEvent) {
	if ev.origin == originSearch {
		// Released on every exit path, success or failure.
		s.searching = false
	}

	if ev.err != nil {
		log.Printf("session: fetch %s failed: %v", ev.cycle, ev.err)
		s.errMsg = failureMessage(ev.origin, ev.err)
		s.state = StateError
		if ev.origin == originSearch {
			// A failed search clears prior data; a failed device fetch
			// leaves the last known weather in place.
			s.weather = nil
			s.forecast = nil
		}
		if ev.done != nil {
			ev.done <- ev.err
		}
		return
	}

	log.Printf("session: fetch %s succeeded for %s", ev.cycle, ev.bundle.Current.City)
	current := ev.bundle.Current
	s.weather = &current
	s.forecast = weather.DeriveDaily(ev.bundle.Forecast, s.stride)
	s.errMsg = ""
	s.state = StateReady
	if ev.done != nil {
		ev.done <- nil
	}
}

func failureMessage(org origin, err error) string {
	switch {
	case errors.Is(err, weather.ErrNoAPIKey):
		return msgNoCredentials
	case errors.Is(err, weather.ErrProvider):
		if org == originSearch {
			return msgCityNotFound
		}
		return msgFetchFailed
	default:
		return msgFetchFailed
	}
}

// snapshot builds a copy of the state; it runs on the loop goroutine.
func (s *Session) snapshot() Snapshot {
	snap := Snapshot{
		State:     s.state,
		Mode:      s.mode,
		Error:     s.errMsg,
		Searching: s.searching,
	}
	if s.weather != nil {
		w := *s.weather
		snap.Weather = &w
	}
	if len(s.forecast) > 0 {
		snap.Forecast = append([]weather.ForecastSample(nil), s.forecast...)
	}
	return snap
}
