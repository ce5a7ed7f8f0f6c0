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

package metno

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nic0lette/LilaWeltWeather/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

const sampleForecast = `{
	"type": "Feature",
	"geometry": {"type": "Point", "coordinates": [10.7522, 59.9139, 23]},
	"properties": {
		"meta": {
			"updated_at": "2023-11-05T11:00:00Z",
			"units": {"air_temperature": "celsius", "precipitation_amount": "mm"}
		},
		"timeseries": [
			{
				"time": "2023-11-05T12:00:00Z",
				"data": {
					"instant": {"details": {
						"air_pressure_at_sea_level": 1017.2,
						"air_temperature": 4.3,
						"cloud_area_fraction": 95.2,
						"relative_humidity": 81.4,
						"wind_from_direction": 212.5,
						"wind_speed": 3.1,
						"wind_speed_of_gust": 7.2
					}},
					"next_1_hours": {
						"summary": {"symbol_code": "lightrain"},
						"details": {"precipitation_amount": 0.4, "probability_of_thunder": 0.2}
					},
					"next_6_hours": {
						"summary": {"symbol_code": "rain"},
						"details": {"precipitation_amount": 2.8}
					}
				}
			},
			{
				"time": "2023-11-08T12:00:00Z",
				"data": {
					"instant": {"details": {
						"air_pressure_at_sea_level": 1020.0,
						"air_temperature": 1.0,
						"cloud_area_fraction": 10.0,
						"relative_humidity": 70.0,
						"wind_from_direction": 10.0,
						"wind_speed": 1.5
					}},
					"next_12_hours": {
						"summary": {"symbol_code": "clearsky_day"}
					}
				}
			}
		]
	}
}`

func testClient(baseURL string) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: time.Second},
		limiter:     rate.NewLimiter(rate.Inf, 1),
		userAgent:   "weather-to-mqtt/test github.com/nic0lette/LilaWeltWeather",
		baseURL:     baseURL,
		cacheTTL:    time.Minute,
		conditional: make(map[string]conditionalState),
	}
}

func TestFetchParsesForecast(t *testing.T) {
	var gotUserAgent, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent = r.Header.Get("User-Agent")
		gotQuery = r.URL.RawQuery
		w.Header().Set("Last-Modified", "Sun, 05 Nov 2023 11:00:00 GMT")
		w.Header().Set("Expires", "Sun, 05 Nov 2023 11:30:00 GMT")
		_, _ = w.Write([]byte(sampleForecast))
	}))
	defer server.Close()

	result, err := testClient(server.URL).Fetch(context.Background(), 59.91390001, 10.75220009, 0)
	require.NoError(t, err)

	assert.Equal(t, "weather-to-mqtt/test github.com/nic0lette/LilaWeltWeather", gotUserAgent)
	assert.Equal(t, "lat=59.9139&lon=10.7522", gotQuery)
	assert.Equal(t, "Sun, 05 Nov 2023 11:00:00 GMT", result.LastModified)
	assert.Equal(t, time.Date(2023, 11, 5, 11, 30, 0, 0, time.UTC), result.Expires.UTC())
	assert.False(t, result.NotModified)
	assert.False(t, result.FromCache)

	require.NotNil(t, result.Forecast)
	lat, lon, alt := result.Forecast.Coordinates()
	assert.Equal(t, 59.9139, lat)
	assert.Equal(t, 10.7522, lon)
	assert.Equal(t, 23, alt)

	require.Len(t, result.Forecast.Properties.Timeseries, 2)
	first := result.Forecast.Properties.Timeseries[0]
	assert.Equal(t, 4.3, first.Data.Instant.Details.AirTemperature)
	require.NotNil(t, first.Data.Instant.Details.WindSpeedOfGust)
	assert.Equal(t, 7.2, *first.Data.Instant.Details.WindSpeedOfGust)
	assert.Equal(t, "lightrain", first.SymbolCode())

	amount, window := first.Precipitation()
	assert.Equal(t, 0.4, amount)
	assert.Equal(t, 1, window)

	thunder, ok := first.ProbabilityOfThunder()
	require.True(t, ok)
	assert.Equal(t, 0.2, thunder)
	_, ok = first.ProbabilityOfPrecipitation()
	assert.False(t, ok)

	second := result.Forecast.Properties.Timeseries[1]
	assert.Equal(t, "clearsky_day", second.SymbolCode())
	amount, window = second.Precipitation()
	assert.Equal(t, 0.0, amount)
	assert.Equal(t, 0, window)
}

func TestFetchSendsAltitude(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(sampleForecast))
	}))
	defer server.Close()

	_, err := testClient(server.URL).Fetch(context.Background(), 47.4, 9.7, 430)
	require.NoError(t, err)
	assert.Equal(t, "lat=47.4&lon=9.7&altitude=430", gotQuery)
}

func TestFetchRevalidatesAfterExpiry(t *testing.T) {
	internal.InitMemcache(time.Minute)

	var conditionals int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-Modified-Since") == "Sun, 05 Nov 2023 11:00:00 GMT" {
			conditionals++
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Last-Modified", "Sun, 05 Nov 2023 11:00:00 GMT")
		// Expires lies in the past, so the next Fetch revalidates right away.
		w.Header().Set("Expires", "Sun, 05 Nov 2023 11:30:00 GMT")
		_, _ = w.Write([]byte(sampleForecast))
	}))
	defer server.Close()

	c := testClient(server.URL)

	first, err := c.Fetch(context.Background(), 48.1, 11.5, 0)
	require.NoError(t, err)
	assert.False(t, first.NotModified)

	second, err := c.Fetch(context.Background(), 48.1, 11.5, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, conditionals)
	assert.True(t, second.NotModified)
	assert.Equal(t, "Sun, 05 Nov 2023 11:00:00 GMT", second.LastModified)

	// The 304 is answered from the response cache.
	require.NotNil(t, second.Forecast)
	assert.Len(t, second.Forecast.Properties.Timeseries, 2)
}

func TestFetchThrottled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := testClient(server.URL).Fetch(context.Background(), 48.2, 11.6, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrThrottled)
}

func TestFetchDeprecatedProductStillParses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNonAuthoritativeInfo)
		_, _ = w.Write([]byte(sampleForecast))
	}))
	defer server.Close()

	result, err := testClient(server.URL).Fetch(context.Background(), 48.3, 11.7, 0)
	require.NoError(t, err)
	require.NotNil(t, result.Forecast)
	assert.Len(t, result.Forecast.Properties.Timeseries, 2)
}

func TestFetchServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("upstream broke"))
	}))
	defer server.Close()

	_, err := testClient(server.URL).Fetch(context.Background(), 48.4, 11.8, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "upstream broke")
}

func TestFetchHonorsExpires(t *testing.T) {
	internal.InitMemcache(time.Minute)

	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		w.Header().Set("Last-Modified", "Sun, 05 Nov 2023 11:00:00 GMT")
		w.Header().Set("Expires", time.Now().Add(30*time.Minute).UTC().Format(http.TimeFormat))
		_, _ = w.Write([]byte(sampleForecast))
	}))
	defer server.Close()

	c := testClient(server.URL)

	first, err := c.Fetch(context.Background(), 35.6897, 139.6922, 0)
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, 1, requests)

	// Within the Expires window the cache answers without any HTTP.
	second, err := c.Fetch(context.Background(), 35.6897, 139.6922, 0)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, 1, requests)
	require.NotNil(t, second.Forecast)
	assert.Len(t, second.Forecast.Properties.Timeseries, 2)
	assert.Equal(t, "Sun, 05 Nov 2023 11:00:00 GMT", second.LastModified)
}

func TestFormatCoord(t *testing.T) {
	tcs := []struct {
		name string
		in   float64
		want string
	}{
		{name: "truncates-excess-precision", in: 59.91390001, want: "59.9139"},
		{name: "strips-trailing-zeros", in: 51.5, want: "51.5"},
		{name: "negative", in: -33.86880001, want: "-33.8688"},
		{name: "integer", in: 10, want: "10"},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FormatCoord(tc.in))
		})
	}
}
