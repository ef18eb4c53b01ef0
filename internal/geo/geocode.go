package geo

import (
	"context"
	"fmt"
	"log"

	"github.com/kelvins/geocoder"
)

// GeocodeProvider resolves the configured home location to coordinates through
// the Google geocoding API. It performs a fresh lookup on every call; resolved
// positions are never cached.
type GeocodeProvider struct {
	city    string
	country string
	consent bool
}

// NewGeocodeProvider builds a provider for the given home city/country.
// consent mirrors the device permission prompt: when false, RequestPermission
// reports Denied and no geocoding is attempted.
func NewGeocodeProvider(apiKey, city, country string, consent bool) *GeocodeProvider {
	geocoder.ApiKey = apiKey
	return &GeocodeProvider{
		city:    city,
		country: country,
		consent: consent,
	}
}

// RequestPermission reports whether location lookups are allowed.
func (p *GeocodeProvider) RequestPermission(_ context.Context) (PermissionStatus, error) {
	if !p.consent {
		return PermissionDenied, nil
	}
	return PermissionGranted, nil
}

// CurrentPosition geocodes the configured home location.
func (p *GeocodeProvider) CurrentPosition(ctx context.Context) (Coordinates, error) {
	if !p.consent {
		return Coordinates{}, ErrPermissionDenied
	}
	if ctx.Err() != nil {
		return Coordinates{}, ctx.Err()
	}
	if p.city == "" {
		return Coordinates{}, fmt.Errorf("%w: no home location configured", ErrPositionUnavailable)
	}

	addr := geocoder.Address{
		City:    p.city,
		Country: p.country,
	}

	loc, err := geocoder.Geocoding(addr)
	if err != nil {
		log.Printf("geo: geocoding failed for %s,%s: %v", p.city, p.country, err)
		return Coordinates{}, fmt.Errorf("%w: %v", ErrPositionUnavailable, err)
	}

	return Coordinates{
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
	}, nil
}
