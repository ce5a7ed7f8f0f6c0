// Copyright 2023 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metno fetches forecasts from the api.met.no locationforecast 2.0
// endpoint while honoring its terms of service: an identifying User-Agent,
// truncated coordinates, conditional requests and client side caching.
package metno

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/nic0lette/LilaWeltWeather/cmd/weather-to-mqtt/config"
	"github.com/nic0lette/LilaWeltWeather/internal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrThrottled is returned on HTTP 429. Callers back off instead of
// retrying on the normal schedule.
var ErrThrottled = errors.New("throttled by api.met.no")

type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
	baseURL    string
	cacheTTL   time.Duration

	mu          sync.Mutex
	conditional map[string]conditionalState
}

// conditionalState remembers per coordinate key what the upstream told us
// about the validity of the last response.
type conditionalState struct {
	lastModified string
	expires      time.Time
}

// Result is the outcome of one Fetch. Forecast is always set on success:
// on NotModified and FromCache it comes from the response cache.
type Result struct {
	Forecast     *ForecastResponse
	Raw          []byte
	Expires      time.Time
	LastModified string
	NotModified  bool
	FromCache    bool
}

var client *Client
var once sync.Once

// GetOrInit returns the shared met.no client. The rate limiter is shared
// across all places so the service as a whole stays inside the configured
// request budget.
func GetOrInit(cfg *config.Config) *Client {
	once.Do(func() {
		if cfg.UserAgent == "" {
			zap.S().Fatalf("USER_AGENT is not set, api.met.no rejects anonymous clients")
		}
		client = &Client{
			httpClient: &http.Client{
				Timeout: cfg.Poll.Timeout.Std(),
			},
			limiter:     rate.NewLimiter(rate.Limit(cfg.Poll.RequestsPerSecond), cfg.Poll.Burst),
			userAgent:   cfg.UserAgent,
			baseURL:     cfg.Forecast.URL,
			cacheTTL:    cfg.Forecast.CacheTTL.Std(),
			conditional: make(map[string]conditionalState),
		}
	})
	return client
}

// TruncateCoord cuts a coordinate to four decimals. The upstream terms of
// service refuse higher precision to keep their cache hit rate up.
func TruncateCoord(v float64) float64 {
	return math.Trunc(v*10000) / 10000
}

// FormatCoord renders a truncated coordinate without trailing zeros, the
// form the upstream cache normalizes on.
func FormatCoord(v float64) string {
	return strconv.FormatFloat(TruncateCoord(v), 'f', -1, 64)
}

func (c *Client) conditionalFor(cacheKey string) conditionalState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conditional[cacheKey]
}

func (c *Client) rememberConditional(cacheKey string, state conditionalState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conditional[cacheKey] = state
}

// ttlFor keeps a response cached for the configured TTL, or longer when the
// upstream Expires header outlives it.
func (c *Client) ttlFor(expires time.Time) time.Duration {
	ttl := c.cacheTTL
	if until := time.Until(expires); until > ttl {
		ttl = until
	}
	return ttl
}

// Fetch retrieves the forecast for one coordinate pair. An altitudeM above
// zero is passed upstream so temperatures get adjusted to the station
// height.
//
// The client remembers Last-Modified and Expires per coordinate key: while
// the previous response has not expired, Fetch answers from the response
// cache without any HTTP. After expiry it revalidates with
// If-Modified-Since, so an unchanged forecast costs one cheap 304.
func (c *Client) Fetch(ctx context.Context, latitude float64, longitude float64, altitudeM int) (*Result, error) {
	cacheKey := fmt.Sprintf("metno-forecast-%s-%s", FormatCoord(latitude), FormatCoord(longitude))
	state := c.conditionalFor(cacheKey)

	var cached *ForecastResponse
	var cachedRaw []byte
	if ok, raw := internal.GetTiered(cacheKey); ok {
		var forecast ForecastResponse
		if err := json.Unmarshal(raw, &forecast); err == nil {
			cached = &forecast
			cachedRaw = raw
		} else {
			zap.S().Warnf("Discarding corrupt cached forecast for %s", cacheKey)
		}
	}

	if cached != nil && time.Now().Before(state.expires) {
		return &Result{
			Forecast:     cached,
			Raw:          cachedRaw,
			Expires:      state.expires,
			LastModified: state.lastModified,
			FromCache:    true,
		}, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait canceled: %w", err)
	}

	requestURL := fmt.Sprintf("%s?lat=%s&lon=%s", c.baseURL, FormatCoord(latitude), FormatCoord(longitude))
	if altitudeM > 0 {
		requestURL += fmt.Sprintf("&altitude=%d", altitudeM)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	// Only revalidate when the cache can serve the body a 304 stands for.
	if cached != nil && state.lastModified != "" {
		req.Header.Set("If-Modified-Since", state.lastModified)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch forecast: %w", err)
	}
	defer resp.Body.Close()

	result := &Result{
		LastModified: resp.Header.Get("Last-Modified"),
	}
	if expires := resp.Header.Get("Expires"); expires != "" {
		if t, err := http.ParseTime(expires); err == nil {
			result.Expires = t
		}
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNonAuthoritativeInfo:
		// 203 is the upstream signal that this product version is
		// deprecated and will be withdrawn.
		zap.S().Warnf("api.met.no marked %s as deprecated, update the forecast URL", c.baseURL)
	case http.StatusNotModified:
		result.NotModified = true
		result.Forecast = cached
		result.Raw = cachedRaw
		if result.LastModified == "" {
			result.LastModified = state.lastModified
		}
		c.rememberConditional(cacheKey, conditionalState{
			lastModified: result.LastModified,
			expires:      result.Expires,
		})
		internal.SetTiered(cacheKey, cachedRaw, c.ttlFor(result.Expires))
		return result, nil
	case http.StatusTooManyRequests:
		return nil, ErrThrottled
	case http.StatusUnprocessableEntity:
		return nil, fmt.Errorf("api.met.no rejected coordinates lat=%s lon=%s", FormatCoord(latitude), FormatCoord(longitude))
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("api.met.no returned status %d: %s", resp.StatusCode, body)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var forecast ForecastResponse
	if err := json.Unmarshal(body, &forecast); err != nil {
		return nil, fmt.Errorf("failed to parse forecast: %w", err)
	}

	result.Forecast = &forecast
	result.Raw = body
	internal.SetTiered(cacheKey, body, c.ttlFor(result.Expires))
	c.rememberConditional(cacheKey, conditionalState{
		lastModified: result.LastModified,
		expires:      result.Expires,
	})

	return result, nil
}
