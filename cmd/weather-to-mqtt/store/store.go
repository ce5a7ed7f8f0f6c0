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

// Package store keeps the latest message per place and topic kind in
// memory. The REST API reads from here, so a broker outage does not blank
// out the HTTP surface.
package store

import (
	"sync"
	"time"

	"github.com/nic0lette/LilaWeltWeather/pkg/datamodel"
)

type Store struct {
	mu        sync.RWMutex
	places    []datamodel.Place
	forecasts map[string]*datamodel.ForecastMessage
	currents  map[string]*datamodel.CurrentMessage
	dailies   map[string]*datamodel.DailySummaryMessage
}

var store *Store
var once sync.Once

// New returns an empty store. Most callers want the shared one from
// GetOrInit.
func New() *Store {
	return &Store{
		forecasts: make(map[string]*datamodel.ForecastMessage),
		currents:  make(map[string]*datamodel.CurrentMessage),
		dailies:   make(map[string]*datamodel.DailySummaryMessage),
	}
}

func GetOrInit() *Store {
	once.Do(func() {
		store = New()
	})
	return store
}

// SetPlaces replaces the resolved place list. Called once after startup
// resolution, order is the configuration order.
func (s *Store) SetPlaces(places []datamodel.Place) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.places = append([]datamodel.Place(nil), places...)
}

func (s *Store) Places() []datamodel.Place {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]datamodel.Place(nil), s.places...)
}

func (s *Store) PlaceBySlug(slug string) (datamodel.Place, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, place := range s.places {
		if place.Slug == slug {
			return place, true
		}
	}
	return datamodel.Place{}, false
}

func (s *Store) SetForecast(slug string, msg *datamodel.ForecastMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forecasts[slug] = msg
}

func (s *Store) Forecast(slug string) (*datamodel.ForecastMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.forecasts[slug]
	return msg, ok
}

func (s *Store) SetCurrent(slug string, msg *datamodel.CurrentMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currents[slug] = msg
}

func (s *Store) Current(slug string) (*datamodel.CurrentMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.currents[slug]
	return msg, ok
}

func (s *Store) SetDaily(slug string, msg *datamodel.DailySummaryMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dailies[slug] = msg
}

func (s *Store) Daily(slug string) (*datamodel.DailySummaryMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.dailies[slug]
	return msg, ok
}

// Prune drops messages older than maxAge and returns how many were
// removed. Entries only age out when polling for their place stopped
// working, so a non-zero return is worth a look.
func (s *Store) Prune(maxAge time.Duration) int {
	cutoff := uint64(time.Now().Add(-maxAge).UnixMilli())

	s.mu.Lock()
	defer s.mu.Unlock()

	pruned := 0
	for slug, msg := range s.forecasts {
		if msg.TimestampMs < cutoff {
			delete(s.forecasts, slug)
			pruned++
		}
	}
	for slug, msg := range s.currents {
		if msg.TimestampMs < cutoff {
			delete(s.currents, slug)
			pruned++
		}
	}
	for slug, msg := range s.dailies {
		if msg.TimestampMs < cutoff {
			delete(s.dailies, slug)
			pruned++
		}
	}
	return pruned
}
