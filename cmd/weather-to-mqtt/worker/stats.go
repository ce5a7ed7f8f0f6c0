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

package worker

import (
	"runtime"
	"time"

	"github.com/goccy/go-json"
	"github.com/shirou/gopsutil/load"
	"github.com/shirou/gopsutil/mem"
	"go.uber.org/zap"

	"github.com/nic0lette/LilaWeltWeather/cmd/weather-to-mqtt/mqtt"
	"github.com/nic0lette/LilaWeltWeather/pkg/datamodel"
)

// publishStats sends the bridge stats message. Unlike the weather payloads
// it carries a wall clock timestamp, consumers use it as a heartbeat.
func (w *Worker) publishStats() {
	stats := w.BuildStats()

	payload, err := json.Marshal(stats)
	if err != nil {
		zap.S().Errorf("Failed to marshal stats message: %s", err)
		return
	}
	w.publisher.Publish(mqtt.TopicStats(w.cfg.MQTT.TopicPrefix), payload, false)
}

// BuildStats assembles the current bridge statistics. The stats topic and
// the status endpoint both serve it.
func (w *Worker) BuildStats() *datamodel.StatsMessage {
	published, skipped, publishErrors, queueLength := w.publisher.Stats()

	stats := &datamodel.StatsMessage{
		TimestampMs:          uint64(time.Now().UTC().UnixMilli()),
		UptimeS:              uint64(time.Since(w.startTime).Seconds()),
		Places:               len(w.store.Places()),
		ForecastsFetched:     w.forecastsFetched.Load(),
		ForecastsNotModified: w.forecastsNotModified.Load(),
		FetchErrors:          w.fetchErrors.Load(),
		MessagesPublished:    published,
		MessagesSkipped:      skipped,
		PublishErrors:        publishErrors,
		QueueLength:          queueLength,
		Goroutines:           runtime.NumGoroutine(),
	}

	if vmStat, err := mem.VirtualMemory(); err == nil {
		stats.MemoryUsedBytes = vmStat.Used
		stats.MemoryUsedPercent = vmStat.UsedPercent
	}
	if loadStat, err := load.Avg(); err == nil {
		stats.LoadAvg1 = loadStat.Load1
	}
	return stats
}
