package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hsg0/RN-weather-app1/internal/geo"
	"github.com/hsg0/RN-weather-app1/internal/weather"
)

type fakeLocator struct {
	status  geo.PermissionStatus
	permErr error
	coords  geo.Coordinates
	posErr  error
	posGate chan struct{} // when set, CurrentPosition blocks until closed
}

func (l *fakeLocator) RequestPermission(_ context.Context) (geo.PermissionStatus, error) {
	return l.status, l.permErr
}

func (l *fakeLocator) CurrentPosition(_ context.Context) (geo.Coordinates, error) {
	if l.posGate != nil {
		<-l.posGate
	}
	return l.coords, l.posErr
}

type fakeGateway struct {
	mu     sync.Mutex
	calls  []weather.Query
	bundle weather.Bundle
	err    error
	block  chan struct{} // when set, FetchBundle blocks until closed
}

func (g *fakeGateway) FetchBundle(_ context.Context, q weather.Query) (weather.Bundle, error) {
	g.mu.Lock()
	g.calls = append(g.calls, q)
	g.mu.Unlock()
	if g.block != nil {
		<-g.block
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.bundle, g.err
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func (g *fakeGateway) setResult(b weather.Bundle, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.bundle = b
	g.err = err
}

func testBundle(temp float64, samples int) weather.Bundle {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	b := weather.Bundle{
		Current: weather.CurrentWeather{
			City:        "Paris",
			Temperature: temp,
			Description: "clear sky",
			Humidity:    61,
		},
	}
	for i := 0; i < samples; i++ {
		b.Forecast = append(b.Forecast, weather.ForecastSample{
			Time:        base.Add(time.Duration(i) * 3 * time.Hour),
			Temperature: temp,
		})
	}
	return b
}

func startSession(t *testing.T, locator geo.Provider, gateway Fetcher) (*Session, context.Context) {
	t.Helper()
	sess := New(locator, gateway, weather.SamplesPerDay)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go sess.Run(ctx)
	return sess, ctx
}

func waitForState(t *testing.T, ctx context.Context, sess *Session, want State) Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := sess.Snapshot(ctx)
		if err != nil {
			t.Fatalf("snapshot failed: %v", err)
		}
		if snap.State == want {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	snap, _ := sess.Snapshot(ctx)
	t.Fatalf("timed out waiting for state %s, last state %s", want, snap.State)
	return Snapshot{}
}

func TestPermissionDenied(t *testing.T) {
	locator := &fakeLocator{status: geo.PermissionDenied}
	gateway := &fakeGateway{}
	sess, ctx := startSession(t, locator, gateway)

	if err := sess.Locate(ctx); err != nil {
		t.Fatalf("locate failed: %v", err)
	}
	snap := waitForState(t, ctx, sess, StateError)

	if snap.Error != msgPermissionDenied {
		t.Errorf("expected %q, got %q", msgPermissionDenied, snap.Error)
	}
	if snap.Weather != nil {
		t.Error("expected no weather data after permission denial")
	}
	if gateway.callCount() != 0 {
		t.Errorf("expected no gateway calls, got %d", gateway.callCount())
	}
}

func TestDeviceFlowSuccess(t *testing.T) {
	locator := &fakeLocator{
		status: geo.PermissionGranted,
		coords: geo.Coordinates{Latitude: 10.0, Longitude: 20.0},
	}
	gateway := &fakeGateway{bundle: testBundle(15.3, 40)}
	sess, ctx := startSession(t, locator, gateway)

	if err := sess.Locate(ctx); err != nil {
		t.Fatalf("locate failed: %v", err)
	}
	snap := waitForState(t, ctx, sess, StateReady)

	if snap.Weather == nil {
		t.Fatal("expected weather data")
	}
	if got := snap.Weather.TemperatureRounded(); got != 15 {
		t.Errorf("expected rounded temperature 15, got %d", got)
	}
	if len(snap.Forecast) != 5 {
		t.Errorf("expected 5 daily forecast entries from 40 samples, got %d", len(snap.Forecast))
	}
	if snap.Mode != ModeDevice {
		t.Errorf("expected device mode, got %s", snap.Mode)
	}
	if snap.Error != "" {
		t.Errorf("expected no error, got %q", snap.Error)
	}

	gateway.mu.Lock()
	defer gateway.mu.Unlock()
	if len(gateway.calls) != 1 {
		t.Fatalf("expected one gateway call, got %d", len(gateway.calls))
	}
	q := gateway.calls[0]
	if q.Coords == nil || q.Coords.Latitude != 10.0 || q.Coords.Longitude != 20.0 {
		t.Errorf("expected coordinate query (10, 20), got %+v", q)
	}
}

func TestSearchEmptyInput(t *testing.T) {
	gateway := &fakeGateway{bundle: testBundle(20.0, 40)}
	sess, ctx := startSession(t, &fakeLocator{}, gateway)

	// Seed known-good state with a successful search.
	if err := sess.Search(ctx, "Paris"); err != nil {
		t.Fatalf("seed search failed: %v", err)
	}
	before := gateway.callCount()

	for _, input := range []string{"", "   ", "\t\n"} {
		err := sess.Search(ctx, input)
		if !errors.Is(err, ErrEmptyQuery) {
			t.Fatalf("input %q: expected ErrEmptyQuery, got %v", input, err)
		}
	}

	if gateway.callCount() != before {
		t.Errorf("empty input must not trigger a network call, got %d extra", gateway.callCount()-before)
	}

	snap, err := sess.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if snap.Weather == nil || len(snap.Forecast) == 0 {
		t.Error("expected prior weather and forecast to survive a validation failure")
	}
	if snap.Error != msgEmptyQuery {
		t.Errorf("expected %q, got %q", msgEmptyQuery, snap.Error)
	}
	if snap.Searching {
		t.Error("validation failure must not enter the in-flight state")
	}
}

func TestSearchSuccessReplacesStateAndClearsError(t *testing.T) {
	gateway := &fakeGateway{err: weather.ErrNetwork}
	sess, ctx := startSession(t, &fakeLocator{}, gateway)

	if err := sess.Search(ctx, "Nowhere"); err == nil {
		t.Fatal("expected search failure")
	}

	gateway.setResult(testBundle(18.6, 40), nil)
	if err := sess.Search(ctx, "Paris"); err != nil {
		t.Fatalf("search failed: %v", err)
	}

	snap, err := sess.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if snap.State != StateReady {
		t.Errorf("expected ready state, got %s", snap.State)
	}
	if snap.Error != "" {
		t.Errorf("expected cleared error, got %q", snap.Error)
	}
	if snap.Weather == nil || snap.Weather.City != "Paris" {
		t.Errorf("expected weather for Paris, got %+v", snap.Weather)
	}
	if len(snap.Forecast) != 5 {
		t.Errorf("expected 5 daily entries, got %d", len(snap.Forecast))
	}
	if snap.Searching {
		t.Error("in-flight flag must be released after a successful search")
	}
}

func TestSearchFailureClearsData(t *testing.T) {
	gateway := &fakeGateway{bundle: testBundle(20.0, 40)}
	sess, ctx := startSession(t, &fakeLocator{}, gateway)

	if err := sess.Search(ctx, "Paris"); err != nil {
		t.Fatalf("seed search failed: %v", err)
	}

	gateway.setResult(weather.Bundle{}, weather.ErrProvider)
	err := sess.Search(ctx, "Atlantis")
	if !errors.Is(err, weather.ErrProvider) {
		t.Fatalf("expected ErrProvider, got %v", err)
	}

	snap, serr := sess.Snapshot(ctx)
	if serr != nil {
		t.Fatalf("snapshot failed: %v", serr)
	}
	if snap.Weather != nil || len(snap.Forecast) != 0 {
		t.Error("a failed search must clear prior weather and forecast")
	}
	if snap.Error != msgCityNotFound {
		t.Errorf("expected %q, got %q", msgCityNotFound, snap.Error)
	}
	if snap.Searching {
		t.Error("in-flight flag must be released after a failed search")
	}
}

func TestDeviceFailurePreservesData(t *testing.T) {
	locator := &fakeLocator{
		status: geo.PermissionGranted,
		coords: geo.Coordinates{Latitude: 10.0, Longitude: 20.0},
	}
	gateway := &fakeGateway{bundle: testBundle(15.3, 40)}
	sess, ctx := startSession(t, locator, gateway)

	if err := sess.Locate(ctx); err != nil {
		t.Fatalf("locate failed: %v", err)
	}
	waitForState(t, ctx, sess, StateReady)

	gateway.setResult(weather.Bundle{}, weather.ErrNetwork)
	if err := sess.Locate(ctx); err != nil {
		t.Fatalf("locate failed: %v", err)
	}
	snap := waitForState(t, ctx, sess, StateError)

	if snap.Weather == nil || len(snap.Forecast) != 5 {
		t.Error("a failed device fetch must preserve the last known weather and forecast")
	}
	if snap.Error != msgFetchFailed {
		t.Errorf("expected %q, got %q", msgFetchFailed, snap.Error)
	}
}

func TestCoordinatesSuppressedWhileSearching(t *testing.T) {
	posGate := make(chan struct{})
	locator := &fakeLocator{
		status:  geo.PermissionGranted,
		coords:  geo.Coordinates{Latitude: 10.0, Longitude: 20.0},
		posGate: posGate,
	}
	fetchGate := make(chan struct{})
	gateway := &fakeGateway{bundle: testBundle(20.0, 40), block: fetchGate}
	sess, ctx := startSession(t, locator, gateway)

	// Device cycle starts but its position result is held back.
	if err := sess.Locate(ctx); err != nil {
		t.Fatalf("locate failed: %v", err)
	}

	searchDone := make(chan error, 1)
	go func() {
		searchDone <- sess.Search(ctx, "Paris")
	}()

	// Wait for the search fetch to be in flight.
	deadline := time.Now().Add(2 * time.Second)
	for gateway.callCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if gateway.callCount() != 1 {
		t.Fatalf("expected the search fetch to start, got %d calls", gateway.callCount())
	}

	// Now let the device coordinates arrive while the search is outstanding.
	close(posGate)
	time.Sleep(100 * time.Millisecond)

	close(fetchGate)
	if err := <-searchDone; err != nil {
		t.Fatalf("search failed: %v", err)
	}

	// The late coordinate result must not have started a second fetch.
	gateway.mu.Lock()
	defer gateway.mu.Unlock()
	if len(gateway.calls) != 1 {
		t.Fatalf("expected exactly one fetch, got %d", len(gateway.calls))
	}
	if gateway.calls[0].City != "Paris" {
		t.Errorf("expected the single fetch to be the search, got %+v", gateway.calls[0])
	}
}

func TestSecondSearchRejectedWhileInFlight(t *testing.T) {
	fetchGate := make(chan struct{})
	gateway := &fakeGateway{bundle: testBundle(20.0, 40), block: fetchGate}
	sess, ctx := startSession(t, &fakeLocator{}, gateway)

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- sess.Search(ctx, "Paris")
	}()

	deadline := time.Now().Add(2 * time.Second)
	for gateway.callCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	err := sess.Search(ctx, "London")
	if !errors.Is(err, ErrSearchInFlight) {
		t.Fatalf("expected ErrSearchInFlight, got %v", err)
	}

	close(fetchGate)
	if err := <-firstDone; err != nil {
		t.Fatalf("first search failed: %v", err)
	}
}

func TestLocateAfterPermissionDenialStaysDenied(t *testing.T) {
	locator := &fakeLocator{status: geo.PermissionDenied}
	gateway := &fakeGateway{}
	sess, ctx := startSession(t, locator, gateway)

	if err := sess.Locate(ctx); err != nil {
		t.Fatalf("locate failed: %v", err)
	}
	waitForState(t, ctx, sess, StateError)

	// Flip the fake to granted; the session must not ask again.
	locator.status = geo.PermissionGranted
	if err := sess.Locate(ctx); err != nil {
		t.Fatalf("locate failed: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	snap, err := sess.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if snap.State != StateError || snap.Error != msgPermissionDenied {
		t.Errorf("expected denial to stick, got state=%s error=%q", snap.State, snap.Error)
	}
	if gateway.callCount() != 0 {
		t.Errorf("expected no gateway calls, got %d", gateway.callCount())
	}
}
