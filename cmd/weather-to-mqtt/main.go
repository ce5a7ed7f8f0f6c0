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

package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/united-manufacturing-hub/umh-utils/env"
	"github.com/united-manufacturing-hub/umh-utils/logger"
	"go.uber.org/zap"

	"github.com/nic0lette/LilaWeltWeather/cmd/weather-to-mqtt/config"
	"github.com/nic0lette/LilaWeltWeather/cmd/weather-to-mqtt/geocoder"
	"github.com/nic0lette/LilaWeltWeather/cmd/weather-to-mqtt/metno"
	"github.com/nic0lette/LilaWeltWeather/cmd/weather-to-mqtt/mqtt"
	"github.com/nic0lette/LilaWeltWeather/cmd/weather-to-mqtt/store"
	"github.com/nic0lette/LilaWeltWeather/cmd/weather-to-mqtt/worker"
	"github.com/nic0lette/LilaWeltWeather/internal"
)

func main() {
	InitLogging()
	internal.Initfgtrace()
	InitPrometheus()

	configPath := flag.String("config", "", "path to config.toml, falls back to CONFIG_PATH and ./config.toml")
	flag.Parse()
	cfg := config.MustLoad(*configPath)

	// The dedup window follows the poll interval: a payload that did not
	// change since the last round is dropped, the broker keeps the retained
	// copy. Redis in front of the memcache survives restarts.
	internal.InitMemcache(cfg.Poll.Interval.Std())
	if cfg.Cache.RedisURI != "" {
		internal.InitCache(
			cfg.Cache.RedisURI,
			cfg.Cache.RedisURI2,
			cfg.Cache.RedisURI3,
			cfg.Cache.RedisPassword,
			cfg.Cache.RedisDB,
			cfg.Forecast.CacheTTL.Std())
	}

	st := store.GetOrInit()
	_ = geocoder.GetOrInit(cfg)
	_ = metno.GetOrInit(cfg)
	publisher := mqtt.GetOrInit(cfg)
	work := worker.GetOrInit(cfg)

	InitHealthCheck(cfg, publisher, work)

	if cfg.API.Enabled {
		go SetupRestAPI(cfg, st, publisher, work)
	}

	shutdown := internal.NewGracefulShutdown(func() error {
		work.Shutdown()
		return publisher.Shutdown()
	})
	shutdown.Wait()

	_ = zap.S().Sync()
	os.Exit(0)
}

func InitLogging() {
	logLevel, _ := env.GetAsString("LOGGING_LEVEL", false, "PRODUCTION") //nolint:errcheck
	_ = logger.New(logLevel)
}

func InitPrometheus() {
	// Prometheus
	metricsPath := "/metrics"
	metricsPort := ":2112"
	zap.S().Debugf("Setting up metrics %s %v", metricsPath, metricsPort)

	http.Handle(metricsPath, promhttp.Handler())
	go func() {
		/* #nosec G114 */
		err := http.ListenAndServe(metricsPort, nil)
		if err != nil {
			zap.S().Errorf("Error starting metrics: %s", err)
		}
	}()
}

func InitHealthCheck(cfg *config.Config, publisher *mqtt.Publisher, work *worker.Worker) {
	zap.S().Debugf("Setting up healthcheck")

	health := healthcheck.NewHandler()
	health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(1000000))

	health.AddReadinessCheck("broker", publisher.GetReadinessCheck())
	if cfg.Cache.RedisURI != "" {
		health.AddReadinessCheck("cache", cacheAvailable())
	}
	health.AddLivenessCheck("poll-loop", work.GetLivenessCheck())
	health.AddLivenessCheck("publish-queue", publisher.GetLivenessCheck())

	go func() {
		/* #nosec G114 */
		err := http.ListenAndServe("0.0.0.0:8086", health)
		if err != nil {
			zap.S().Errorf("Error starting healthcheck: %s", err)
		}
	}()
}

func cacheAvailable() healthcheck.Check {
	return func() error {
		if !internal.IsRedisAvailable() {
			return fmt.Errorf("redis is not reachable")
		}
		return nil
	}
}
