// Package geoip looks up the approximate position of this host from a
// public IP geolocation service.
package geoip

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxBodyBytes caps how much of the response is read.
const maxBodyBytes = 64 << 10

var (
	// ErrLookupFailed is returned when the service cannot be reached or
	// answers with a non-200 status.
	ErrLookupFailed = errors.New("geoip: lookup failed")

	// ErrNoPosition is returned when the response lacks usable coordinates.
	ErrNoPosition = errors.New("geoip: response has no position")
)

// Position is the located host.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	IP        string  `json:"ip"`
}

// response accepts the field names used by ipapi.co, freegeoip-style
// services ("latitude"/"longitude"/"ip") and ip-api.com ("lat"/"lon"/"query").
type response struct {
	IP        string   `json:"ip"`
	Query     string   `json:"query"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Lat       *float64 `json:"lat"`
	Lon       *float64 `json:"lon"`
	Error     bool     `json:"error"`
	Reason    string   `json:"reason"`
}

// Locator queries a geolocation endpoint.
type Locator struct {
	url    string
	client *http.Client
}

// New creates a Locator for url. A non-positive timeout means 10 seconds.
func New(url string, timeout time.Duration) *Locator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Locator{url: url, client: &http.Client{Timeout: timeout}}
}

// Locate fetches the position of the calling host.
//
// Returns:
//   - Position: Latitude, longitude and the public IP the service saw
//   - error: ErrLookupFailed or ErrNoPosition
func (l *Locator) Locate(ctx context.Context) (Position, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return Position{}, fmt.Errorf("%w: %w", ErrLookupFailed, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "sunspy")

	resp, err := l.client.Do(req)
	if err != nil {
		return Position{}, fmt.Errorf("%w: %w", ErrLookupFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Position{}, fmt.Errorf("%w: status %d", ErrLookupFailed, resp.StatusCode)
	}

	var r response
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&r); err != nil {
		return Position{}, fmt.Errorf("%w: decoding response: %w", ErrNoPosition, err)
	}
	if r.Error {
		return Position{}, fmt.Errorf("%w: %s", ErrLookupFailed, r.Reason)
	}

	lat, lon := r.Latitude, r.Longitude
	if lat == nil || lon == nil {
		lat, lon = r.Lat, r.Lon
	}
	if lat == nil || lon == nil {
		return Position{}, ErrNoPosition
	}
	if *lat < -90 || *lat > 90 || *lon < -180 || *lon > 180 {
		return Position{}, fmt.Errorf("%w: out of range (%g, %g)", ErrNoPosition, *lat, *lon)
	}

	ip := r.IP
	if ip == "" {
		ip = r.Query
	}
	return Position{Latitude: *lat, Longitude: *lon, IP: ip}, nil
}

// Locate is a convenience wrapper around New(url, 0).Locate(ctx).
func Locate(ctx context.Context, url string) (Position, error) {
	return New(url, 0).Locate(ctx)
}
