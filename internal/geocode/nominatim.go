package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// DefaultBaseURL is the public OpenStreetMap Nominatim endpoint.
const DefaultBaseURL = "https://nominatim.openstreetmap.org"

const maxRetries = 3

// reverseResponse is the subset of a Nominatim reverse result we read.
type reverseResponse struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
	Address     struct {
		State   string `json:"state"`
		Country string `json:"country"`
	} `json:"address"`
}

// Nominatim is a Geocoder backed by the Nominatim reverse endpoint. Results
// are cached per coordinate rounded to six decimals.
type Nominatim struct {
	baseURL   string
	userAgent string
	client    *http.Client
	backoff   time.Duration
	cache     *stateCache
}

// NewNominatim creates a client. An empty baseURL uses DefaultBaseURL.
func NewNominatim(baseURL, userAgent string, timeout time.Duration) *Nominatim {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Nominatim{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
		backoff:   2 * time.Second,
		cache:     newStateCache(),
	}
}

// ReverseState looks up the state for (lat, lon). Rate limiting and server
// errors are retried with exponential backoff.
func (n *Nominatim) ReverseState(ctx context.Context, lat, lon float64) (string, bool, error) {
	if state, ok := n.cache.get(lat, lon); ok {
		return state, state != "", nil
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			// 2s, 4s, ...
			delay := n.backoff * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				return "", false, ctx.Err()
			case <-time.After(delay):
			}
		}

		state, retry, err := n.reverse(ctx, lat, lon)
		if err == nil {
			n.cache.set(lat, lon, state)
			return state, state != "", nil
		}
		lastErr = err
		if !retry || ctx.Err() != nil {
			break
		}
	}
	return "", false, lastErr
}

func (n *Nominatim) reverse(ctx context.Context, lat, lon float64) (state string, retry bool, err error) {
	params := url.Values{}
	params.Set("lat", fmt.Sprintf("%.6f", lat))
	params.Set("lon", fmt.Sprintf("%.6f", lon))
	params.Set("format", "json")
	params.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/reverse?"+params.Encode(), nil)
	if err != nil {
		return "", false, err
	}
	// Nominatim's usage policy requires an identifying User-Agent.
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept-Language", "en")

	resp, err := n.client.Do(req)
	if err != nil {
		return "", true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", true, fmt.Errorf("geocoder returned status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", false, fmt.Errorf("geocoder returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", false, fmt.Errorf("decode geocoder response: %w", err)
	}
	// "Unable to geocode" and friends come back as 200 with an error field.
	if out.Error != "" {
		return "", false, nil
	}
	return out.Address.State, false, nil
}

// stateCache remembers lookups, including points with no state.
type stateCache struct {
	mu    sync.RWMutex
	cache map[string]string
}

func newStateCache() *stateCache {
	return &stateCache{cache: make(map[string]string)}
}

func cacheKey(lat, lon float64) string {
	return fmt.Sprintf("%.6f,%.6f", lat, lon)
}

func (c *stateCache) get(lat, lon float64) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	state, ok := c.cache[cacheKey(lat, lon)]
	return state, ok
}

func (c *stateCache) set(lat, lon float64, state string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[cacheKey(lat, lon)] = state
}
