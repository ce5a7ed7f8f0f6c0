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

// Package config loads and validates the service configuration from a TOML
// file. Every value can be overridden through environment variables, which is
// how the Helm chart injects secrets such as the MQTT password.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/nic0lette/LilaWeltWeather/pkg/datamodel"
	"go.uber.org/zap"
)

// Duration is a time.Duration that decodes from strings like "10m" both in
// the TOML file and in environment variables.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for the TOML decoder.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// SetValue implements cleanenv.Setter for environment variable overrides.
func (d *Duration) SetValue(s string) error {
	return d.UnmarshalText([]byte(s))
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type Config struct {
	// UserAgent identifies this deployment against api.met.no. The upstream
	// terms of service reject anonymous clients, so there is no default.
	UserAgent string `toml:"user_agent" env:"USER_AGENT" env-required:"true"`

	// Places are location names resolved through the geocoder on startup.
	Places []string `toml:"places"`

	// Locations are fixed coordinates that skip the geocoder entirely.
	Locations []LocationConfig `toml:"locations"`

	MQTT     MQTTConfig     `toml:"mqtt"`
	Poll     PollConfig     `toml:"poll"`
	Geocoder GeocoderConfig `toml:"geocoder"`
	Forecast ForecastConfig `toml:"forecast"`
	Cache    CacheConfig    `toml:"cache"`
	API      APIConfig      `toml:"api"`
}

type MQTTConfig struct {
	Broker      string `toml:"broker" env:"MQTT_BROKER" env-required:"true"`
	Port        int    `toml:"port" env:"MQTT_PORT" env-default:"1883"`
	User        string `toml:"user" env:"MQTT_USER"`
	Password    string `toml:"password" env:"MQTT_PASSWORD"`
	ClientID    string `toml:"client_id" env:"MQTT_CLIENT_ID" env-default:"weather-to-mqtt"`
	QoS         int    `toml:"qos" env:"MQTT_QOS" env-default:"1"`
	Retain      bool   `toml:"retain" env:"MQTT_RETAIN" env-default:"true"`
	TopicPrefix string `toml:"topic_prefix" env:"MQTT_TOPIC_PREFIX" env-default:"weather"`
	SSL         bool   `toml:"ssl" env:"MQTT_SSL" env-default:"false"`

	// BufferDir holds the on-disk publish queue that rides out broker
	// outages. It must survive restarts, so mount a volume there.
	BufferDir string `toml:"buffer_dir" env:"MQTT_BUFFER_DIR" env-default:"/data/queue"`
}

func (m MQTTConfig) BrokerURL() string {
	scheme := "tcp"
	if m.SSL {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, m.Broker, m.Port)
}

type PollConfig struct {
	Interval          Duration `toml:"interval" env:"POLL_INTERVAL" env-default:"10m"`
	Timeout           Duration `toml:"timeout" env:"POLL_TIMEOUT" env-default:"30s"`
	RequestsPerSecond float64  `toml:"requests_per_second" env:"POLL_REQUESTS_PER_SECOND" env-default:"2"`
	Burst             int      `toml:"burst" env:"POLL_BURST" env-default:"4"`

	// Jitter spreads the poll rounds by up to this fraction of the interval
	// in either direction, so a fleet of replicas does not hit api.met.no in
	// lockstep.
	Jitter float64 `toml:"jitter" env:"POLL_JITTER" env-default:"0.1"`
}

type GeocoderConfig struct {
	URL       string `toml:"url" env:"GEOCODER_URL" env-default:"https://geocode.maps.co/search"`
	APIKey    string `toml:"api_key" env:"GEOCODER_API_KEY"`
	CacheSize int    `toml:"cache_size" env:"GEOCODER_CACHE_SIZE" env-default:"1000"`
}

type ForecastConfig struct {
	URL        string   `toml:"url" env:"FORECAST_URL" env-default:"https://api.met.no/weatherapi/locationforecast/2.0/complete.json"`
	CacheTTL   Duration `toml:"cache_ttl" env:"FORECAST_CACHE_TTL" env-default:"10m"`
	PublishRaw bool     `toml:"publish_raw" env:"FORECAST_PUBLISH_RAW" env-default:"false"`
	DailyDays  int      `toml:"daily_days" env:"FORECAST_DAILY_DAYS" env-default:"3"`
	HorizonH   int      `toml:"horizon_hours" env:"FORECAST_HORIZON_HOURS" env-default:"48"`
	Language   string   `toml:"language" env:"FORECAST_LANGUAGE" env-default:"en"`
}

// SymbolLanguage maps the configured language onto the symbol description
// table. Anything that is not German falls back to English.
func (f ForecastConfig) SymbolLanguage() datamodel.LanguageCode {
	if f.Language == "de" {
		return datamodel.LanguageGerman
	}
	return datamodel.LanguageEnglish
}

type CacheConfig struct {
	RedisURI      string `toml:"redis_uri" env:"REDIS_URI"`
	RedisURI2     string `toml:"redis_uri2" env:"REDIS_URI2"`
	RedisURI3     string `toml:"redis_uri3" env:"REDIS_URI3"`
	RedisPassword string `toml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int    `toml:"redis_db" env:"REDIS_DB" env-default:"0"`
}

// APIConfig covers the read-only REST surface. It serves cached data to
// cluster-internal consumers, so it carries no authentication.
type APIConfig struct {
	Enabled bool   `toml:"enabled" env:"API_ENABLED" env-default:"true"`
	Address string `toml:"address" env:"API_ADDRESS" env-default:":8080"`
}

type LocationConfig struct {
	Name      string  `toml:"name"`
	Latitude  float64 `toml:"latitude"`
	Longitude float64 `toml:"longitude"`
	AltitudeM int     `toml:"altitude_m"`
}

// Load reads the configuration from configPath. An empty path falls back to
// the CONFIG_PATH environment variable and then to config.toml in the working
// directory.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}

	if configPath == "" {
		configPath = "config.toml"
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad is Load for main: any configuration problem is fatal.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		zap.S().Fatalf("Failed to load configuration: %s", err)
	}
	return cfg
}

// Validate rejects configurations that would only fail later at runtime.
func (c *Config) Validate() error {
	if len(c.Places) == 0 && len(c.Locations) == 0 {
		return fmt.Errorf("no places configured: set places or locations")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}

	if c.Poll.Interval.Std() < time.Minute {
		return fmt.Errorf("poll.interval must be at least 1m, got %s", c.Poll.Interval.Std())
	}

	if c.Poll.Jitter < 0 || c.Poll.Jitter > 0.5 {
		return fmt.Errorf("poll.jitter must be between 0 and 0.5, got %f", c.Poll.Jitter)
	}

	if c.Forecast.DailyDays < 0 || c.Forecast.DailyDays > 10 {
		return fmt.Errorf("forecast.daily_days must be between 0 and 10, got %d", c.Forecast.DailyDays)
	}

	if c.Forecast.HorizonH < 0 || c.Forecast.HorizonH > 240 {
		return fmt.Errorf("forecast.horizon_hours must be between 0 and 240, got %d", c.Forecast.HorizonH)
	}

	for _, loc := range c.Locations {
		if loc.Name == "" {
			return fmt.Errorf("locations entries need a name")
		}
		if loc.Latitude < -90 || loc.Latitude > 90 {
			return fmt.Errorf("location %s: latitude %f out of range", loc.Name, loc.Latitude)
		}
		if loc.Longitude < -180 || loc.Longitude > 180 {
			return fmt.Errorf("location %s: longitude %f out of range", loc.Name, loc.Longitude)
		}
	}

	// Topic names derive from the slug, so two places collapsing onto the
	// same slug would silently overwrite each other on the broker.
	slugs := make(map[string]string)
	for _, name := range c.PlaceNames() {
		slug := datamodel.Slugify(name)
		if slug == "" {
			return fmt.Errorf("place %q produces an empty topic slug", name)
		}
		if slug == "bridge" {
			return fmt.Errorf("place %q maps to the reserved topic slug %q", name, slug)
		}
		if other, ok := slugs[slug]; ok {
			return fmt.Errorf("places %q and %q both map to topic slug %q", other, name, slug)
		}
		slugs[slug] = name
	}

	return nil
}

// PlaceNames returns the names of all configured places, geocoded and fixed
// ones alike, in configuration order.
func (c *Config) PlaceNames() []string {
	names := make([]string, 0, len(c.Places)+len(c.Locations))
	names = append(names, c.Places...)
	for _, loc := range c.Locations {
		names = append(names, loc.Name)
	}
	return names
}
