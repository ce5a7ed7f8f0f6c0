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

// Package geocoder resolves place names to coordinates through the
// geocode.maps.co search endpoint and attaches the IANA timezone via an
// offline polygon lookup. Results are cached, one in-flight resolution per
// name.
package geocoder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/EagleChen/mapmutex"
	"github.com/goccy/go-json"
	lru "github.com/hashicorp/golang-lru"
	"github.com/nic0lette/LilaWeltWeather/cmd/weather-to-mqtt/config"
	"github.com/nic0lette/LilaWeltWeather/pkg/datamodel"
	"github.com/ringsaturn/tzf"
	"go.uber.org/zap"
)

// ErrNotFound is returned when the search comes back empty. Misses are not
// cached: a typo'd place keeps erroring visibly instead of being burned into
// the cache until restart.
var ErrNotFound = errors.New("place not found")

type Geocoder struct {
	httpClient *http.Client
	userAgent  string
	baseURL    string
	apiKey     string
	cache      *lru.Cache
	lock       *mapmutex.Mutex
	finder     tzf.F
}

// geocodeResult is one entry of the JSON array the search endpoint returns.
// Coordinates arrive as strings.
type geocodeResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

var geocoder *Geocoder
var once sync.Once

// GetOrInit returns the shared geocoder. Loading the timezone polygons
// takes a moment, so this runs once at startup rather than on first use.
func GetOrInit(cfg *config.Config) *Geocoder {
	once.Do(func() {
		cache, err := lru.New(cfg.Geocoder.CacheSize)
		if err != nil {
			zap.S().Fatalf("Failed to create geocoder cache: %s", err)
		}

		finder, err := tzf.NewDefaultFinder()
		if err != nil {
			zap.S().Fatalf("Failed to load timezone data: %s", err)
		}

		geocoder = &Geocoder{
			httpClient: &http.Client{
				Timeout: cfg.Poll.Timeout.Std(),
			},
			userAgent: cfg.UserAgent,
			baseURL:   cfg.Geocoder.URL,
			apiKey:    cfg.Geocoder.APIKey,
			cache:     cache,
			lock: mapmutex.NewCustomizedMapMutex(
				800,
				100000000,
				10,
				1.1,
				0.2),
			finder: finder,
		}
	})
	return geocoder
}

// Resolve turns a place name into a Place. The cache key is the lowercased
// name, and the name lock keeps concurrent resolutions of the same name down
// to one upstream request.
func (g *Geocoder) Resolve(ctx context.Context, name string) (datamodel.Place, error) {
	cacheKey := strings.ToLower(name)

	if cached, ok := g.cache.Get(cacheKey); ok {
		return cached.(datamodel.Place), nil
	}

	if !g.lock.TryLock(cacheKey) {
		zap.S().Errorf("Failed to get lock for geocoding %s", name)
		return datamodel.Place{}, fmt.Errorf("geocoding of %q is stuck behind another resolution", name)
	}
	defer g.lock.Unlock(cacheKey)

	// Another resolver may have filled the cache while we waited.
	if cached, ok := g.cache.Get(cacheKey); ok {
		return cached.(datamodel.Place), nil
	}

	latitude, longitude, err := g.search(ctx, name)
	if err != nil {
		return datamodel.Place{}, err
	}

	place := g.buildPlace(name, latitude, longitude, 0)
	g.cache.Add(cacheKey, place)
	return place, nil
}

// ResolveFixed builds a Place from configured coordinates without talking
// to the geocoder, only the timezone lookup runs.
func (g *Geocoder) ResolveFixed(loc config.LocationConfig) datamodel.Place {
	return g.buildPlace(loc.Name, loc.Latitude, loc.Longitude, loc.AltitudeM)
}

func (g *Geocoder) buildPlace(name string, latitude float64, longitude float64, altitudeM int) datamodel.Place {
	timezone := g.finder.GetTimezoneName(longitude, latitude)
	if timezone == "" {
		zap.S().Warnf("No timezone found for %s (%f, %f), falling back to UTC", name, latitude, longitude)
		timezone = "UTC"
	}

	return datamodel.Place{
		Name:      name,
		Slug:      datamodel.Slugify(name),
		Latitude:  latitude,
		Longitude: longitude,
		AltitudeM: altitudeM,
		Timezone:  timezone,
	}
}

func (g *Geocoder) search(ctx context.Context, name string) (latitude float64, longitude float64, err error) {
	requestURL := fmt.Sprintf("%s?q=%s", g.baseURL, url.QueryEscape(name))
	if g.apiKey != "" {
		requestURL += fmt.Sprintf("&api_key=%s", url.QueryEscape(g.apiKey))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to geocode %q: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, 0, fmt.Errorf("geocoder returned status %d for %q: %s", resp.StatusCode, name, body)
	}

	var results []geocodeResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return 0, 0, fmt.Errorf("failed to parse geocoder response for %q: %w", name, err)
	}

	if len(results) == 0 {
		return 0, 0, fmt.Errorf("geocoder found no results for %q: %w", name, ErrNotFound)
	}

	// The first result is the most relevant one, same ranking the
	// interactive search uses.
	first := results[0]
	latitude, err = strconv.ParseFloat(first.Lat, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("geocoder returned invalid latitude %q for %q: %w", first.Lat, name, err)
	}
	longitude, err = strconv.ParseFloat(first.Lon, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("geocoder returned invalid longitude %q for %q: %w", first.Lon, name, err)
	}

	zap.S().Infof("Geocoded %s to %s (%f, %f)", name, first.DisplayName, latitude, longitude)
	return latitude, longitude, nil
}
