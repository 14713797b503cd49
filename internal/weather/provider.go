// Package weather defines the contract for current-conditions lookups and an
// Open-Meteo implementation. Providers are treated as slow and unreliable:
// every call takes a context, and every failure maps to
// ErrProviderUnavailable so callers can degrade without inspecting details.
package weather

import (
	"context"
	"errors"
	"math"
)

// ErrProviderUnavailable wraps every fetch failure (timeout, transport,
// non-2xx status, malformed payload).
var ErrProviderUnavailable = errors.New("weather provider unavailable")

// Location identifies what to fetch. ZoneID is carried through so batch
// results can be keyed by zone.
type Location struct {
	ZoneID    string
	Latitude  float64
	Longitude float64
}

// Reading is a current temperature in both scales.
type Reading struct {
	TemperatureCelsius    float64
	TemperatureFahrenheit float64
}

// Provider fetches the current reading for one location.
type Provider interface {
	FetchCurrent(ctx context.Context, loc Location) (Reading, error)
}

// BatchProvider can fetch many locations in one round-trip. Missing zones in
// the returned map are failures for those zones only.
type BatchProvider interface {
	Provider
	FetchCurrentBatch(ctx context.Context, locs []Location) (map[string]Reading, error)
}

// NewReading builds a Reading from a Celsius value, rounding both scales to
// one decimal place.
func NewReading(celsius float64) Reading {
	return Reading{
		TemperatureCelsius:    round1(celsius),
		TemperatureFahrenheit: round1(celsius*9/5 + 32),
	}
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
