// Package geo fetches a best-effort device position from an IP-geolocation
// endpoint. "No location" is a normal degraded state, never an error.
package geo

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	log "log/slog"

	"connectaid/internal/alert"
)

const DefaultEndpoint = "http://ip-api.com/json/"

type Acquirer struct {
	client   *http.Client
	endpoint string
	timeout  time.Duration
}

func NewAcquirer(endpoint string, timeout time.Duration) *Acquirer {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Acquirer{
		client:   &http.Client{Timeout: timeout},
		endpoint: endpoint,
		timeout:  timeout,
	}
}

// positionBody tolerates the two field spellings common across providers.
type positionBody struct {
	Lat       *float64 `json:"lat"`
	Lon       *float64 `json:"lon"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Status    string   `json:"status"`
}

// Acquire performs exactly one position request with a bounded wait. On
// denial, timeout, or any provider error it returns nil; the caller treats
// missing location as a user-visible degraded state.
func (a *Acquirer) Acquire(ctx context.Context) *alert.GeoPoint {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.endpoint, nil)
	if err != nil {
		log.Warn("location request build failed", "err", err)
		return nil
	}

	resp, err := a.client.Do(req)
	if err != nil {
		log.Warn("location fetch failed", "err", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warn("location fetch rejected", "status", resp.StatusCode)
		return nil
	}

	var body positionBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		log.Warn("location decode failed", "err", err)
		return nil
	}
	if body.Status != "" && body.Status != "success" {
		log.Warn("location provider declined", "status", body.Status)
		return nil
	}

	lat, lng := body.Lat, body.Lon
	if lat == nil || lng == nil {
		lat, lng = body.Latitude, body.Longitude
	}
	if lat == nil || lng == nil {
		log.Warn("location response missing coordinates")
		return nil
	}

	return &alert.GeoPoint{Lat: *lat, Lng: *lng}
}
