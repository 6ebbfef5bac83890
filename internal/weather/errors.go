package weather

import "errors"

var (
	// ErrInvalidInput is returned for blank or malformed search input.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned when a provider cannot resolve a location.
	ErrNotFound = errors.New("location not found")
	// ErrNetwork covers transport and provider failures.
	ErrNetwork = errors.New("network error")
	// ErrPermissionDenied is returned by a Geolocator that may not report a position.
	ErrPermissionDenied = errors.New("geolocation permission denied")
	// ErrUnsupported is returned by a Geolocator that has no position source.
	ErrUnsupported = errors.New("geolocation unsupported")
)

// ErrorKind classifies an error for user-facing notifications.
type ErrorKind string

const (
	KindInvalidInput     ErrorKind = "invalid_input"
	KindNotFound         ErrorKind = "not_found"
	KindNetwork          ErrorKind = "network"
	KindPermissionDenied ErrorKind = "permission_denied"
	KindUnsupported      ErrorKind = "unsupported"
)

// KindOf maps err to its ErrorKind. Anything unrecognised is a network error.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrPermissionDenied):
		return KindPermissionDenied
	case errors.Is(err, ErrUnsupported):
		return KindUnsupported
	default:
		return KindNetwork
	}
}
