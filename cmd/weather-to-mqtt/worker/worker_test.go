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
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nic0lette/LilaWeltWeather/cmd/weather-to-mqtt/config"
	"github.com/nic0lette/LilaWeltWeather/cmd/weather-to-mqtt/metno"
	"github.com/nic0lette/LilaWeltWeather/cmd/weather-to-mqtt/store"
	"github.com/nic0lette/LilaWeltWeather/pkg/datamodel"
)

type fakeResolver struct {
	mu     sync.Mutex
	places map[string]datamodel.Place
	errs   map[string]error
}

func (f *fakeResolver) Resolve(_ context.Context, name string) (datamodel.Place, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[name]; err != nil {
		return datamodel.Place{}, err
	}
	place, ok := f.places[name]
	if !ok {
		return datamodel.Place{}, errors.New("no such place")
	}
	return place, nil
}

func (f *fakeResolver) ResolveFixed(loc config.LocationConfig) datamodel.Place {
	return datamodel.Place{
		Name:      loc.Name,
		Slug:      datamodel.Slugify(loc.Name),
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
		AltitudeM: loc.AltitudeM,
		Timezone:  "UTC",
	}
}

func (f *fakeResolver) setErr(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errs == nil {
		f.errs = make(map[string]error)
	}
	f.errs[name] = err
}

type fetchCall struct {
	latitude  float64
	longitude float64
	altitudeM int
}

type fakeFetcher struct {
	mu     sync.Mutex
	result *metno.Result
	err    error
	calls  []fetchCall
}

func (f *fakeFetcher) Fetch(_ context.Context, latitude float64, longitude float64, altitudeM int) (*metno.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fetchCall{latitude: latitude, longitude: longitude, altitudeM: altitudeM})
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeFetcher) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type publishedMessage struct {
	topic   string
	payload []byte
	retain  bool
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []publishedMessage
}

func (f *fakePublisher) Publish(topic string, payload []byte, retain bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, publishedMessage{
		topic:   topic,
		payload: append([]byte(nil), payload...),
		retain:  retain,
	})
}

func (f *fakePublisher) Stats() (published uint64, skipped uint64, publishErrors uint64, queueLength uint64) {
	return 10, 2, 1, 3
}

func (f *fakePublisher) topics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	topics := make([]string, 0, len(f.messages))
	for _, msg := range f.messages {
		topics = append(topics, msg.topic)
	}
	return topics
}

func (f *fakePublisher) find(topic string) (publishedMessage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, msg := range f.messages {
		if msg.topic == topic {
			return msg, true
		}
	}
	return publishedMessage{}, false
}

func testWorkerConfig() *config.Config {
	cfg := &config.Config{}
	cfg.UserAgent = "weather-to-mqtt/test github.com/nic0lette/LilaWeltWeather"
	cfg.Places = []string{"Berlin"}
	cfg.Locations = []config.LocationConfig{
		{Name: "Oslo", Latitude: 59.9139, Longitude: 10.7522, AltitudeM: 23},
	}
	cfg.MQTT.TopicPrefix = "weather"
	cfg.MQTT.Retain = true
	cfg.Poll.Interval = config.Duration(time.Minute)
	cfg.Poll.Timeout = config.Duration(5 * time.Second)
	cfg.Forecast.DailyDays = 3
	cfg.Forecast.HorizonH = 48
	cfg.Forecast.Language = "en"
	return cfg
}

func newTestWorker(t *testing.T, cfg *config.Config) (*Worker, *fakeResolver, *fakeFetcher, *fakePublisher) {
	t.Helper()
	resolver := &fakeResolver{
		places: map[string]datamodel.Place{
			"Berlin": {Name: "Berlin", Slug: "berlin", Latitude: 52.52, Longitude: 13.405, Timezone: "UTC"},
		},
	}
	fetcher := &fakeFetcher{
		result: &metno.Result{
			Forecast: sampleResponse(t),
			Raw:      []byte(sampleDocument),
		},
	}
	publisher := &fakePublisher{}
	return newWorker(cfg, resolver, fetcher, publisher, store.New()), resolver, fetcher, publisher
}

func TestPollRoundPublishesAllPlaces(t *testing.T) {
	w, _, fetcher, publisher := newTestWorker(t, testWorkerConfig())

	w.resolvePlaces()
	w.pollRound()

	topics := publisher.topics()
	for _, want := range []string{
		"weather/berlin/forecast", "weather/berlin/current", "weather/berlin/daily",
		"weather/oslo/forecast", "weather/oslo/current", "weather/oslo/daily",
	} {
		assert.Contains(t, topics, want)
	}
	assert.Len(t, topics, 6, "raw publishing is off by default")

	assert.Equal(t, 2, fetcher.callCount())
	assert.Contains(t, fetcher.calls, fetchCall{latitude: 59.9139, longitude: 10.7522, altitudeM: 23})
	assert.Equal(t, uint64(2), w.forecastsFetched.Load())
	assert.Zero(t, w.forecastsNotModified.Load())

	msg, ok := publisher.find("weather/oslo/forecast")
	require.True(t, ok)
	assert.True(t, msg.retain)

	var forecast datamodel.ForecastMessage
	require.NoError(t, json.Unmarshal(msg.payload, &forecast))
	assert.Equal(t, "oslo", forecast.Place)
	assert.Len(t, forecast.Timesteps, 3)

	_, ok = w.store.Forecast("oslo")
	assert.True(t, ok)
	_, ok = w.store.Current("berlin")
	assert.True(t, ok)
	_, ok = w.store.Daily("berlin")
	assert.True(t, ok)
	assert.Len(t, w.store.Places(), 2)
}

func TestPollRoundPublishesRaw(t *testing.T) {
	cfg := testWorkerConfig()
	cfg.Forecast.PublishRaw = true
	w, _, _, publisher := newTestWorker(t, cfg)

	w.resolvePlaces()
	w.pollRound()

	assert.Len(t, publisher.topics(), 8)
	msg, ok := publisher.find("weather/oslo/raw")
	require.True(t, ok)
	assert.Equal(t, []byte(sampleDocument), msg.payload)
}

func TestResolveFailureRetriesNextRound(t *testing.T) {
	w, resolver, fetcher, _ := newTestWorker(t, testWorkerConfig())
	resolver.setErr("Berlin", errors.New("geocoder is down"))

	w.resolvePlaces()
	w.pollRound()

	assert.Equal(t, 1, fetcher.callCount(), "only the fixed place polls")
	assert.Len(t, w.store.Places(), 1)

	resolver.setErr("Berlin", nil)
	w.resolvePlaces()
	w.pollRound()

	assert.Equal(t, 3, fetcher.callCount())
	assert.Len(t, w.store.Places(), 2)
}

func TestResolveUnknownTimezoneFallsBack(t *testing.T) {
	cfg := testWorkerConfig()
	cfg.Locations = nil
	w, resolver, _, _ := newTestWorker(t, cfg)
	resolver.places["Berlin"] = datamodel.Place{
		Name: "Berlin", Slug: "berlin", Latitude: 52.52, Longitude: 13.405, Timezone: "Mars/Olympus",
	}

	w.resolvePlaces()

	entry := w.entries[0]
	require.NotNil(t, entry.place)
	assert.Equal(t, time.UTC, entry.location)
}

func TestFetchFailureBacksOff(t *testing.T) {
	cfg := testWorkerConfig()
	cfg.Places = nil
	w, _, fetcher, _ := newTestWorker(t, cfg)
	fetcher.setErr(errors.New("api.met.no is down"))

	w.resolvePlaces()
	w.pollRound()

	assert.Equal(t, 1, fetcher.callCount())
	assert.Equal(t, uint64(1), w.fetchErrors.Load())

	entry := w.entries[0]
	assert.Equal(t, int64(1), entry.failures.Load())
	assert.Greater(t, entry.backoffUntil.Load(), time.Now().UnixNano())

	// Still inside the backoff window, the place is skipped.
	w.pollRound()
	assert.Equal(t, 1, fetcher.callCount())

	fetcher.setErr(nil)
	entry.backoffUntil.Store(0)
	w.pollRound()

	assert.Equal(t, 2, fetcher.callCount())
	assert.Equal(t, int64(0), entry.failures.Load())
	assert.Zero(t, entry.backoffUntil.Load())
}

func TestThrottledBackoffIsLonger(t *testing.T) {
	cfg := testWorkerConfig()
	cfg.Places = nil
	w, _, fetcher, _ := newTestWorker(t, cfg)
	fetcher.setErr(metno.ErrThrottled)

	w.resolvePlaces()
	w.pollRound()

	// A 429 backs off by at least a whole minute slot.
	entry := w.entries[0]
	assert.GreaterOrEqual(t, entry.backoffUntil.Load(), time.Now().Add(50*time.Second).UnixNano())
}

func TestNotModifiedCountsSeparately(t *testing.T) {
	cfg := testWorkerConfig()
	cfg.Places = nil
	w, _, fetcher, publisher := newTestWorker(t, cfg)
	fetcher.result.NotModified = true

	w.resolvePlaces()
	w.pollRound()

	assert.Zero(t, w.forecastsFetched.Load())
	assert.Equal(t, uint64(1), w.forecastsNotModified.Load())
	// The payloads still go out, the publisher deduplicates them.
	assert.Len(t, publisher.topics(), 3)
}

func TestPollPlaceSkipsWhenLocked(t *testing.T) {
	cfg := testWorkerConfig()
	cfg.Places = nil
	w, _, fetcher, _ := newTestWorker(t, cfg)

	w.resolvePlaces()
	entry := w.entries[0]

	require.True(t, w.pollLock.TryLock("oslo"))
	w.pollPlace(entry)
	assert.Zero(t, fetcher.callCount(), "a locked place is skipped")

	w.pollLock.Unlock("oslo")
	w.pollPlace(entry)
	assert.Equal(t, 1, fetcher.callCount())
}

func TestRunLoopAndShutdown(t *testing.T) {
	cfg := testWorkerConfig()
	cfg.Poll.Interval = config.Duration(30 * time.Millisecond)
	cfg.Poll.Jitter = 0
	w, _, fetcher, _ := newTestWorker(t, cfg)

	go w.run()
	go w.statsLoop()

	require.Eventually(t, func() bool {
		return fetcher.callCount() >= 4
	}, 2*time.Second, 5*time.Millisecond, "the loop should keep polling")

	w.Shutdown()

	calls := fetcher.callCount()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, calls, fetcher.callCount(), "no polls after shutdown")
}

func TestJitteredInterval(t *testing.T) {
	cfg := testWorkerConfig()
	cfg.Poll.Interval = config.Duration(10 * time.Minute)
	cfg.Poll.Jitter = 0.1
	w, _, _, _ := newTestWorker(t, cfg)

	for i := 0; i < 200; i++ {
		interval := w.jitteredInterval()
		assert.GreaterOrEqual(t, interval, 9*time.Minute)
		assert.LessOrEqual(t, interval, 11*time.Minute)
	}

	cfg.Poll.Jitter = 0
	assert.Equal(t, 10*time.Minute, w.jitteredInterval())
}

func TestBuildStats(t *testing.T) {
	w, _, _, _ := newTestWorker(t, testWorkerConfig())
	w.resolvePlaces()
	w.forecastsFetched.Store(7)
	w.forecastsNotModified.Store(4)
	w.fetchErrors.Store(2)

	stats := w.BuildStats()
	assert.Equal(t, 2, stats.Places)
	assert.Equal(t, uint64(7), stats.ForecastsFetched)
	assert.Equal(t, uint64(4), stats.ForecastsNotModified)
	assert.Equal(t, uint64(2), stats.FetchErrors)
	assert.Equal(t, uint64(10), stats.MessagesPublished)
	assert.Equal(t, uint64(2), stats.MessagesSkipped)
	assert.Equal(t, uint64(1), stats.PublishErrors)
	assert.Equal(t, uint64(3), stats.QueueLength)
	assert.Positive(t, stats.TimestampMs)
	assert.Positive(t, stats.Goroutines)
}

func TestPublishStats(t *testing.T) {
	w, _, _, publisher := newTestWorker(t, testWorkerConfig())

	w.publishStats()

	msg, ok := publisher.find("weather/bridge/stats")
	require.True(t, ok)
	assert.False(t, msg.retain, "stats are a heartbeat, not state")

	var stats datamodel.StatsMessage
	require.NoError(t, json.Unmarshal(msg.payload, &stats))
	assert.Positive(t, stats.TimestampMs)
}

func TestLivenessCheck(t *testing.T) {
	w, _, _, _ := newTestWorker(t, testWorkerConfig())
	check := w.GetLivenessCheck()

	assert.NoError(t, check())

	w.lastRoundUnix.Store(time.Now().Add(-time.Hour).Unix())
	assert.Error(t, check())
}
