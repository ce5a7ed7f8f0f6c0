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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nic0lette/LilaWeltWeather/pkg/datamodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0600))
	return path
}

const minimalConfig = `
user_agent = "weather-to-mqtt/test github.com/nic0lette/LilaWeltWeather"
places = ["Tokyo"]

[mqtt]
broker = "localhost"
`

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, []string{"Tokyo"}, cfg.Places)
	assert.Equal(t, 1883, cfg.MQTT.Port)
	assert.Equal(t, 1, cfg.MQTT.QoS)
	assert.True(t, cfg.MQTT.Retain)
	assert.Equal(t, "weather", cfg.MQTT.TopicPrefix)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.BrokerURL())
	assert.Equal(t, 10*time.Minute, cfg.Poll.Interval.Std())
	assert.Equal(t, 30*time.Second, cfg.Poll.Timeout.Std())
	assert.Equal(t, "https://geocode.maps.co/search", cfg.Geocoder.URL)
	assert.Equal(t, 1000, cfg.Geocoder.CacheSize)
	assert.Equal(t, "https://api.met.no/weatherapi/locationforecast/2.0/complete.json", cfg.Forecast.URL)
	assert.Equal(t, 10*time.Minute, cfg.Forecast.CacheTTL.Std())
	assert.Equal(t, 3, cfg.Forecast.DailyDays)
	assert.Equal(t, 48, cfg.Forecast.HorizonH)
	assert.Equal(t, datamodel.LanguageEnglish, cfg.Forecast.SymbolLanguage())
	assert.InDelta(t, 0.1, cfg.Poll.Jitter, 1e-9)
	assert.True(t, cfg.API.Enabled)
	assert.Equal(t, ":8080", cfg.API.Address)
}

func TestLoadFullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
user_agent = "weather-to-mqtt/test github.com/nic0lette/LilaWeltWeather"
places = ["Tokyo", "Oslo"]

[[locations]]
name = "Home"
latitude = 52.52
longitude = 13.405
altitude_m = 34

[mqtt]
broker = "broker.example.com"
port = 8883
user = "weather"
password = "hunter2"
ssl = true
qos = 2
topic_prefix = "home/weather"

[poll]
interval = "15m"
timeout = "10s"
jitter = 0.2

[geocoder]
api_key = "free-tier-key"

[forecast]
publish_raw = true
daily_days = 5
horizon_hours = 72
language = "de"

[api]
address = ":9090"
`))
	require.NoError(t, err)

	assert.Equal(t, "ssl://broker.example.com:8883", cfg.MQTT.BrokerURL())
	assert.Equal(t, 2, cfg.MQTT.QoS)
	assert.Equal(t, "home/weather", cfg.MQTT.TopicPrefix)
	assert.Equal(t, 15*time.Minute, cfg.Poll.Interval.Std())
	assert.Equal(t, 10*time.Second, cfg.Poll.Timeout.Std())
	assert.InDelta(t, 0.2, cfg.Poll.Jitter, 1e-9)
	assert.Equal(t, "free-tier-key", cfg.Geocoder.APIKey)
	assert.True(t, cfg.Forecast.PublishRaw)
	assert.Equal(t, 5, cfg.Forecast.DailyDays)
	assert.Equal(t, 72, cfg.Forecast.HorizonH)
	assert.Equal(t, datamodel.LanguageGerman, cfg.Forecast.SymbolLanguage())
	assert.Equal(t, ":9090", cfg.API.Address)
	assert.Equal(t, []string{"Tokyo", "Oslo", "Home"}, cfg.PlaceNames())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MQTT_PASSWORD", "from-env")
	t.Setenv("POLL_INTERVAL", "30m")

	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.MQTT.Password)
	assert.Equal(t, 30*time.Minute, cfg.Poll.Interval.Std())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoadMissingUserAgent(t *testing.T) {
	_, err := Load(writeConfig(t, `
places = ["Tokyo"]

[mqtt]
broker = "localhost"
`))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			UserAgent: "test",
			Places:    []string{"Tokyo"},
			MQTT:      MQTTConfig{Broker: "localhost", QoS: 1},
			Poll:      PollConfig{Interval: Duration(10 * time.Minute)},
		}
	}

	tcs := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(_ *Config) {},
		},
		{
			name: "no-places",
			mutate: func(c *Config) {
				c.Places = nil
			},
			wantErr: "no places configured",
		},
		{
			name: "bad-qos",
			mutate: func(c *Config) {
				c.MQTT.QoS = 3
			},
			wantErr: "mqtt.qos",
		},
		{
			name: "interval-too-short",
			mutate: func(c *Config) {
				c.Poll.Interval = Duration(10 * time.Second)
			},
			wantErr: "poll.interval",
		},
		{
			name: "jitter-out-of-range",
			mutate: func(c *Config) {
				c.Poll.Jitter = 0.8
			},
			wantErr: "poll.jitter",
		},
		{
			name: "horizon-out-of-range",
			mutate: func(c *Config) {
				c.Forecast.HorizonH = 500
			},
			wantErr: "forecast.horizon_hours",
		},
		{
			name: "slug-collision",
			mutate: func(c *Config) {
				c.Places = []string{"Münster", "Munster"}
			},
			wantErr: "topic slug",
		},
		{
			name: "empty-slug",
			mutate: func(c *Config) {
				c.Places = []string{"###"}
			},
			wantErr: "empty topic slug",
		},
		{
			name: "reserved-slug",
			mutate: func(c *Config) {
				c.Places = []string{"Bridge"}
			},
			wantErr: "reserved topic slug",
		},
		{
			name: "location-without-name",
			mutate: func(c *Config) {
				c.Locations = []LocationConfig{{Latitude: 1, Longitude: 2}}
			},
			wantErr: "need a name",
		},
		{
			name: "latitude-out-of-range",
			mutate: func(c *Config) {
				c.Locations = []LocationConfig{{Name: "X", Latitude: 91}}
			},
			wantErr: "latitude",
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
			}
		})
	}
}

func TestDurationUnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Std())

	require.Error(t, d.UnmarshalText([]byte("soon")))
}
