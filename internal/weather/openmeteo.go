// This file implements Provider against the Open-Meteo forecast API. Batch
// lookups send comma-separated coordinates in one request and are paced by a
// shared token bucket.

package weather

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// OpenMeteo queries the Open-Meteo forecast API for current temperature.
// It is safe for concurrent use.
type OpenMeteo struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// Option configures an OpenMeteo client.
type Option func(*OpenMeteo)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *OpenMeteo) {
		if c != nil {
			o.client = c
		}
	}
}

// WithRateLimit caps outbound requests per second. rps <= 0 disables the cap.
func WithRateLimit(rps float64, burst int) Option {
	return func(o *OpenMeteo) {
		if rps <= 0 {
			o.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		o.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewOpenMeteo returns a client for baseURL (e.g. https://api.open-meteo.com/v1).
// timeout bounds each HTTP exchange in addition to the caller's context.
func NewOpenMeteo(baseURL string, timeout time.Duration, opts ...Option) *OpenMeteo {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	o := &OpenMeteo{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// forecast is the subset of the /forecast response we read.
type forecast struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Current   *struct {
		Time          string   `json:"time"`
		Temperature2M *float64 `json:"temperature_2m"`
	} `json:"current"`
}

// FetchCurrent implements Provider.
func (o *OpenMeteo) FetchCurrent(ctx context.Context, loc Location) (Reading, error) {
	var f forecast
	if err := o.get(ctx, []Location{loc}, &f); err != nil {
		return Reading{}, err
	}
	return readingOf(f)
}

// FetchCurrentBatch implements BatchProvider. Open-Meteo accepts
// comma-separated coordinates and answers with an array in request order.
func (o *OpenMeteo) FetchCurrentBatch(ctx context.Context, locs []Location) (map[string]Reading, error) {
	out := make(map[string]Reading, len(locs))
	switch len(locs) {
	case 0:
		return out, nil
	case 1:
		r, err := o.FetchCurrent(ctx, locs[0])
		if err != nil {
			return nil, err
		}
		out[locs[0].ZoneID] = r
		return out, nil
	}

	var fs []forecast
	if err := o.get(ctx, locs, &fs); err != nil {
		return nil, err
	}
	if len(fs) != len(locs) {
		return nil, fmt.Errorf("%w: got %d results for %d locations", ErrProviderUnavailable, len(fs), len(locs))
	}
	for i, f := range fs {
		if r, err := readingOf(f); err == nil {
			out[locs[i].ZoneID] = r
		}
	}
	return out, nil
}

func (o *OpenMeteo) get(ctx context.Context, locs []Location, into any) error {
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}
	}

	lats := make([]string, len(locs))
	lons := make([]string, len(locs))
	for i, l := range locs {
		lats[i] = strconv.FormatFloat(l.Latitude, 'f', 4, 64)
		lons[i] = strconv.FormatFloat(l.Longitude, 'f', 4, 64)
	}
	q := url.Values{}
	q.Set("latitude", strings.Join(lats, ","))
	q.Set("longitude", strings.Join(lons, ","))
	q.Set("current", "temperature_2m")
	q.Set("temperature_unit", "celsius")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/forecast?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrProviderUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode)
	}
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(into); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrProviderUnavailable, err)
	}
	return nil
}

func readingOf(f forecast) (Reading, error) {
	if f.Current == nil || f.Current.Temperature2M == nil {
		return Reading{}, fmt.Errorf("%w: missing current.temperature_2m", ErrProviderUnavailable)
	}
	return NewReading(*f.Current.Temperature2M), nil
}
