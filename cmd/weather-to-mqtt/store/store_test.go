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

package store

import (
	"testing"
	"time"

	"github.com/nic0lette/LilaWeltWeather/pkg/datamodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *Store {
	return &Store{
		forecasts: make(map[string]*datamodel.ForecastMessage),
		currents:  make(map[string]*datamodel.CurrentMessage),
		dailies:   make(map[string]*datamodel.DailySummaryMessage),
	}
}

func TestPlaces(t *testing.T) {
	s := newTestStore()
	assert.Empty(t, s.Places())

	s.SetPlaces([]datamodel.Place{
		{Name: "Tokyo", Slug: "tokyo"},
		{Name: "Oslo", Slug: "oslo"},
	})

	places := s.Places()
	require.Len(t, places, 2)
	assert.Equal(t, "tokyo", places[0].Slug)

	// Mutating the returned slice must not affect the store.
	places[0].Slug = "changed"
	place, ok := s.PlaceBySlug("tokyo")
	require.True(t, ok)
	assert.Equal(t, "Tokyo", place.Name)

	_, ok = s.PlaceBySlug("nowhere")
	assert.False(t, ok)
}

func TestLastValues(t *testing.T) {
	s := newTestStore()

	_, ok := s.Forecast("tokyo")
	assert.False(t, ok)
	_, ok = s.Current("tokyo")
	assert.False(t, ok)
	_, ok = s.Daily("tokyo")
	assert.False(t, ok)

	s.SetForecast("tokyo", &datamodel.ForecastMessage{Place: "tokyo"})
	s.SetCurrent("tokyo", &datamodel.CurrentMessage{Place: "tokyo"})
	s.SetDaily("tokyo", &datamodel.DailySummaryMessage{Place: "tokyo"})

	forecast, ok := s.Forecast("tokyo")
	require.True(t, ok)
	assert.Equal(t, "tokyo", forecast.Place)

	current, ok := s.Current("tokyo")
	require.True(t, ok)
	assert.Equal(t, "tokyo", current.Place)

	daily, ok := s.Daily("tokyo")
	require.True(t, ok)
	assert.Equal(t, "tokyo", daily.Place)

	// Newer values replace older ones.
	s.SetForecast("tokyo", &datamodel.ForecastMessage{Place: "tokyo", Name: "Tokyo"})
	forecast, ok = s.Forecast("tokyo")
	require.True(t, ok)
	assert.Equal(t, "Tokyo", forecast.Name)
}

func TestPrune(t *testing.T) {
	s := newTestStore()
	fresh := uint64(time.Now().UnixMilli())
	stale := uint64(time.Now().Add(-72 * time.Hour).UnixMilli())

	s.SetForecast("fresh", &datamodel.ForecastMessage{TimestampMs: fresh})
	s.SetForecast("stale", &datamodel.ForecastMessage{TimestampMs: stale})
	s.SetCurrent("stale", &datamodel.CurrentMessage{TimestampMs: stale})
	s.SetDaily("fresh", &datamodel.DailySummaryMessage{TimestampMs: fresh})

	assert.Equal(t, 2, s.Prune(48*time.Hour))

	_, ok := s.Forecast("fresh")
	assert.True(t, ok)
	_, ok = s.Forecast("stale")
	assert.False(t, ok)
	_, ok = s.Current("stale")
	assert.False(t, ok)
	_, ok = s.Daily("fresh")
	assert.True(t, ok)
}
