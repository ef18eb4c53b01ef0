package geo

import (
	"context"
	"errors"
)

var (
	// ErrPermissionDenied is returned when the operator has not consented to location lookups.
	ErrPermissionDenied = errors.New("permission to access location was denied")
	// ErrPositionUnavailable is returned when the current position cannot be resolved.
	ErrPositionUnavailable = errors.New("position unavailable")
)

// Coordinates is a resolved geographic position.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// PermissionStatus is the outcome of a permission request.
type PermissionStatus int

const (
	PermissionDenied PermissionStatus = iota
	PermissionGranted
)

// Provider abstracts the location source (device GPS on mobile, a configured
// home location here). RequestPermission is asked once per session; on Denied
// no further location calls are made.
type Provider interface {
	RequestPermission(ctx context.Context) (PermissionStatus, error)
	CurrentPosition(ctx context.Context) (Coordinates, error)
}
