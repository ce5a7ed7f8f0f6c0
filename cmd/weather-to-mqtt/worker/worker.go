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

// Package worker drives the bridge: it resolves the configured places,
// polls api.met.no for each of them on a jittered interval and hands the
// rebuilt payloads to the publisher.
package worker

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/EagleChen/mapmutex"
	"github.com/goccy/go-json"
	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"github.com/nic0lette/LilaWeltWeather/cmd/weather-to-mqtt/config"
	"github.com/nic0lette/LilaWeltWeather/cmd/weather-to-mqtt/geocoder"
	"github.com/nic0lette/LilaWeltWeather/cmd/weather-to-mqtt/metno"
	"github.com/nic0lette/LilaWeltWeather/cmd/weather-to-mqtt/mqtt"
	"github.com/nic0lette/LilaWeltWeather/cmd/weather-to-mqtt/store"
	"github.com/nic0lette/LilaWeltWeather/internal"
	"github.com/nic0lette/LilaWeltWeather/pkg/datamodel"
)

const (
	statsInterval = time.Minute
	staleAfter    = 48 * time.Hour
	maxBackoff    = 30 * time.Minute
)

type placeResolver interface {
	Resolve(ctx context.Context, name string) (datamodel.Place, error)
	ResolveFixed(loc config.LocationConfig) datamodel.Place
}

type forecastFetcher interface {
	Fetch(ctx context.Context, latitude float64, longitude float64, altitudeM int) (*metno.Result, error)
}

type forecastPublisher interface {
	Publish(topic string, payload []byte, retain bool)
	Stats() (published uint64, skipped uint64, publishErrors uint64, queueLength uint64)
}

// placeEntry is the per place poll state. The place pointer stays nil until
// the geocoder resolved the name, unresolved entries are retried every round
// and skipped by the poll fan out.
type placeEntry struct {
	name  string
	fixed *config.LocationConfig

	place    *datamodel.Place
	location *time.Location

	failures     atomic.Int64
	backoffUntil atomic.Int64 // unix nanoseconds, zero when healthy
}

type Worker struct {
	cfg *config.Config

	resolver  placeResolver
	fetcher   forecastFetcher
	publisher forecastPublisher
	store     *store.Store

	entries  []*placeEntry
	pollLock *mapmutex.Mutex

	startTime     time.Time
	lastRoundUnix atomic.Int64

	forecastsFetched     atomic.Uint64
	forecastsNotModified atomic.Uint64
	fetchErrors          atomic.Uint64

	shutdown     chan struct{}
	loopStopped  chan struct{}
	statsStopped chan struct{}
}

var worker *Worker
var once sync.Once

// GetOrInit wires the worker to the shared geocoder, met.no client,
// publisher and store, then starts the poll loop and the stats loop.
func GetOrInit(cfg *config.Config) *Worker {
	once.Do(func() {
		worker = newWorker(cfg, geocoder.GetOrInit(cfg), metno.GetOrInit(cfg), mqtt.GetOrInit(cfg), store.GetOrInit())
		go worker.run()
		go worker.statsLoop()
	})
	return worker
}

func newWorker(cfg *config.Config, resolver placeResolver, fetcher forecastFetcher, publisher forecastPublisher, st *store.Store) *Worker {
	w := &Worker{
		cfg:       cfg,
		resolver:  resolver,
		fetcher:   fetcher,
		publisher: publisher,
		store:     st,
		// Single attempt: a place still being polled is skipped, not
		// waited for.
		pollLock: mapmutex.NewCustomizedMapMutex(
			1,
			100000000,
			10,
			1.1,
			0.2),
		startTime:    time.Now(),
		shutdown:     make(chan struct{}),
		loopStopped:  make(chan struct{}),
		statsStopped: make(chan struct{}),
	}

	for _, name := range cfg.Places {
		w.entries = append(w.entries, &placeEntry{name: name})
	}
	for i := range cfg.Locations {
		w.entries = append(w.entries, &placeEntry{
			name:  cfg.Locations[i].Name,
			fixed: &cfg.Locations[i],
		})
	}

	w.lastRoundUnix.Store(time.Now().Unix())
	return w
}

// run is the poll loop: resolve whatever is still unresolved, poll every
// place, sleep one jittered interval, repeat. The first round runs
// immediately.
func (w *Worker) run() {
	defer close(w.loopStopped)

	for {
		w.resolvePlaces()
		w.pollRound()

		timer := time.NewTimer(w.jitteredInterval())
		select {
		case <-w.shutdown:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// statsLoop publishes the stats message once a minute and prunes store
// entries whose place stopped updating.
func (w *Worker) statsLoop() {
	defer close(w.statsStopped)

	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.shutdown:
			return
		case <-ticker.C:
			w.publishStats()
			if pruned := w.store.Prune(staleAfter); pruned > 0 {
				zap.S().Warnf("Pruned %d stale entries from the store", pruned)
			}
		}
	}
}

// jitteredInterval spreads the rounds around poll.interval so a fleet of
// bridges does not hit api.met.no in lockstep.
func (w *Worker) jitteredInterval() time.Duration {
	interval := w.cfg.Poll.Interval.Std()
	if w.cfg.Poll.Jitter <= 0 {
		return interval
	}
	spread := (rand.Float64()*2 - 1) * w.cfg.Poll.Jitter
	return time.Duration(float64(interval) * (1 + spread))
}

// resolvePlaces fills in the places that are still unresolved. A failed
// resolution is logged and retried on the next round, the resolved places
// keep polling either way.
func (w *Worker) resolvePlaces() {
	resolved := make([]datamodel.Place, 0, len(w.entries))
	for _, entry := range w.entries {
		if entry.place == nil {
			w.resolveEntry(entry)
		}
		if entry.place != nil {
			resolved = append(resolved, *entry.place)
		}
	}
	w.store.SetPlaces(resolved)
}

func (w *Worker) resolveEntry(entry *placeEntry) {
	var place datamodel.Place
	if entry.fixed != nil {
		place = w.resolver.ResolveFixed(*entry.fixed)
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), w.cfg.Poll.Timeout.Std())
		defer cancel()

		var err error
		place, err = w.resolver.Resolve(ctx, entry.name)
		if err != nil {
			zap.S().Warnf("Failed to resolve place %s, retrying next round: %s", entry.name, err)
			return
		}
	}

	location, err := time.LoadLocation(place.Timezone)
	if err != nil {
		zap.S().Warnf("Place %s has unknown timezone %q, falling back to UTC", entry.name, place.Timezone)
		location = time.UTC
	}

	entry.place = &place
	entry.location = location
	zap.S().Infof("Watching %s (%.4f, %.4f, %s)", place.Name, place.Latitude, place.Longitude, place.Timezone)
}

// pollRound fans out one goroutine per resolved place and waits for all of
// them. A place in its backoff window is skipped, its neighbours poll
// normally.
func (w *Worker) pollRound() {
	w.lastRoundUnix.Store(time.Now().Unix())

	var wg sync.WaitGroup
	now := time.Now()
	for _, entry := range w.entries {
		if entry.place == nil {
			continue
		}
		if until := entry.backoffUntil.Load(); until > 0 && now.UnixNano() < until {
			zap.S().Debugf("Skipping %s, in backoff for another %s",
				entry.name, time.Until(time.Unix(0, until)).Round(time.Second))
			continue
		}

		wg.Add(1)
		go func(entry *placeEntry) {
			defer wg.Done()
			w.pollPlace(entry)
		}(entry)
	}
	wg.Wait()
}

// pollPlace fetches and republishes one place. The per slug lock makes a
// poll that outlives its round skip the next one instead of piling up.
func (w *Worker) pollPlace(entry *placeEntry) {
	place := *entry.place

	if !w.pollLock.TryLock(place.Slug) {
		zap.S().Warnf("Previous poll of %s is still running, skipping", place.Name)
		return
	}
	defer w.pollLock.Unlock(place.Slug)

	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.Poll.Timeout.Std())
	defer cancel()

	result, err := w.fetcher.Fetch(ctx, place.Latitude, place.Longitude, place.AltitudeM)
	if err != nil {
		w.fetchErrors.Add(1)
		failures := entry.failures.Add(1)

		slot := internal.TenSeconds
		if errors.Is(err, metno.ErrThrottled) {
			// A 429 asks for real restraint.
			slot = time.Minute
		}
		backoff := internal.GetBackoffTime(failures, slot, maxBackoff)
		if backoff < slot {
			backoff = slot
		}
		entry.backoffUntil.Store(time.Now().Add(backoff).UnixNano())
		zap.S().Warnf("Failed to fetch forecast for %s (failure %d, backing off %s): %s",
			place.Name, failures, backoff.Round(time.Second), err)
		return
	}
	entry.failures.Store(0)
	entry.backoffUntil.Store(0)

	if result.NotModified || result.FromCache {
		w.forecastsNotModified.Add(1)
	} else {
		w.forecastsFetched.Add(1)
	}

	w.publishPlace(entry, result)
}

// publishPlace rebuilds all payloads from the latest document and hands them
// to the publisher. Unchanged payloads are deduplicated there, so this runs
// on cache hits too.
func (w *Worker) publishPlace(entry *placeEntry, result *metno.Result) {
	place := *entry.place
	forecast := result.Forecast
	prefix := w.cfg.MQTT.TopicPrefix
	retain := w.cfg.MQTT.Retain

	forecastMsg := buildForecastMessage(place, forecast, entry.location, w.cfg.Forecast.HorizonH)
	if payload, err := json.Marshal(forecastMsg); err != nil {
		zap.S().Errorf("Failed to marshal forecast for %s: %s", place.Name, err)
	} else {
		w.publisher.Publish(mqtt.TopicForecast(prefix, place.Slug), payload, retain)
		w.store.SetForecast(place.Slug, forecastMsg)
	}

	if currentMsg := buildCurrentMessage(place, forecast, entry.location, w.cfg.Forecast.SymbolLanguage()); currentMsg != nil {
		if payload, err := json.Marshal(currentMsg); err != nil {
			zap.S().Errorf("Failed to marshal current conditions for %s: %s", place.Name, err)
		} else {
			w.publisher.Publish(mqtt.TopicCurrent(prefix, place.Slug), payload, retain)
			w.store.SetCurrent(place.Slug, currentMsg)
		}
	}

	if dailyMsg := buildDailyMessage(place, forecast, entry.location, w.cfg.Forecast.DailyDays, w.cfg.Forecast.SymbolLanguage()); dailyMsg != nil {
		if payload, err := json.Marshal(dailyMsg); err != nil {
			zap.S().Errorf("Failed to marshal daily summary for %s: %s", place.Name, err)
		} else {
			w.publisher.Publish(mqtt.TopicDaily(prefix, place.Slug), payload, retain)
			w.store.SetDaily(place.Slug, dailyMsg)
		}
	}

	if w.cfg.Forecast.PublishRaw && len(result.Raw) > 0 {
		w.publisher.Publish(mqtt.TopicRaw(prefix, place.Slug), result.Raw, retain)
	}
}

// Shutdown stops both loops and waits for the running round to finish.
func (w *Worker) Shutdown() {
	close(w.shutdown)
	<-w.loopStopped
	<-w.statsStopped
	zap.S().Infof("Worker stopped")
}

// GetLivenessCheck fails when no poll round started for three intervals,
// which means the loop is stuck rather than slow.
func (w *Worker) GetLivenessCheck() healthcheck.Check {
	return func() error {
		limit := 3 * w.cfg.Poll.Interval.Std()
		last := time.Unix(w.lastRoundUnix.Load(), 0)
		if time.Since(last) > limit {
			return fmt.Errorf("last poll round started %s ago", time.Since(last).Round(time.Second))
		}
		return nil
	}
}
