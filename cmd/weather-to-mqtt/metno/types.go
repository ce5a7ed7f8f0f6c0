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
	"time"
)

// ForecastResponse mirrors the GeoJSON document returned by the
// locationforecast 2.0 complete endpoint.
type ForecastResponse struct {
	Type       string     `json:"type"`
	Geometry   Geometry   `json:"geometry"`
	Properties Properties `json:"properties"`
}

type Geometry struct {
	Type string `json:"type"`

	// Coordinates is [longitude, latitude, altitude].
	Coordinates []float64 `json:"coordinates"`
}

type Properties struct {
	Meta       Meta       `json:"meta"`
	Timeseries []Timestep `json:"timeseries"`
}

type Meta struct {
	UpdatedAt time.Time         `json:"updated_at"`
	Units     map[string]string `json:"units"`
}

type Timestep struct {
	Time time.Time    `json:"time"`
	Data TimestepData `json:"data"`
}

type TimestepData struct {
	Instant     InstantData `json:"instant"`
	Next1Hours  *PeriodData `json:"next_1_hours,omitempty"`
	Next6Hours  *PeriodData `json:"next_6_hours,omitempty"`
	Next12Hours *PeriodData `json:"next_12_hours,omitempty"`
}

type InstantData struct {
	Details InstantDetails `json:"details"`
}

// InstantDetails carries the measured values at one point in time. Fields
// that the upstream model does not always provide are pointers so that a
// genuine zero survives the trip.
type InstantDetails struct {
	AirPressureAtSeaLevel float64  `json:"air_pressure_at_sea_level"`
	AirTemperature        float64  `json:"air_temperature"`
	CloudAreaFraction     float64  `json:"cloud_area_fraction"`
	DewPointTemperature   *float64 `json:"dew_point_temperature,omitempty"`
	FogAreaFraction       *float64 `json:"fog_area_fraction,omitempty"`
	RelativeHumidity      float64  `json:"relative_humidity"`
	UltravioletIndex      *float64 `json:"ultraviolet_index_clear_sky,omitempty"`
	WindFromDirection     float64  `json:"wind_from_direction"`
	WindSpeed             float64  `json:"wind_speed"`
	WindSpeedOfGust       *float64 `json:"wind_speed_of_gust,omitempty"`
}

type PeriodData struct {
	Summary PeriodSummary  `json:"summary"`
	Details *PeriodDetails `json:"details,omitempty"`
}

type PeriodSummary struct {
	SymbolCode string `json:"symbol_code"`
}

type PeriodDetails struct {
	AirTemperatureMax          *float64 `json:"air_temperature_max,omitempty"`
	AirTemperatureMin          *float64 `json:"air_temperature_min,omitempty"`
	PrecipitationAmount        *float64 `json:"precipitation_amount,omitempty"`
	PrecipitationAmountMax     *float64 `json:"precipitation_amount_max,omitempty"`
	PrecipitationAmountMin     *float64 `json:"precipitation_amount_min,omitempty"`
	ProbabilityOfPrecipitation *float64 `json:"probability_of_precipitation,omitempty"`
	ProbabilityOfThunder       *float64 `json:"probability_of_thunder,omitempty"`
}

// Coordinates unpacks the GeoJSON point. The upstream order is longitude
// first.
func (f *ForecastResponse) Coordinates() (latitude float64, longitude float64, altitudeM int) {
	if len(f.Geometry.Coordinates) >= 2 {
		longitude = f.Geometry.Coordinates[0]
		latitude = f.Geometry.Coordinates[1]
	}
	if len(f.Geometry.Coordinates) >= 3 {
		altitudeM = int(f.Geometry.Coordinates[2])
	}
	return latitude, longitude, altitudeM
}

// SymbolCode returns the symbol for a timestep, preferring the shortest
// period. Later timesteps only carry 6 or 12 hour summaries.
func (t *Timestep) SymbolCode() string {
	for _, period := range []*PeriodData{t.Data.Next1Hours, t.Data.Next6Hours, t.Data.Next12Hours} {
		if period != nil && period.Summary.SymbolCode != "" {
			return period.Summary.SymbolCode
		}
	}
	return ""
}

// Precipitation returns the expected precipitation amount in mm together
// with the window length it covers, preferring the shortest period.
func (t *Timestep) Precipitation() (amountMm float64, windowH int) {
	type window struct {
		period *PeriodData
		hours  int
	}
	for _, w := range []window{
		{t.Data.Next1Hours, 1},
		{t.Data.Next6Hours, 6},
		{t.Data.Next12Hours, 12},
	} {
		if w.period != nil && w.period.Details != nil && w.period.Details.PrecipitationAmount != nil {
			return *w.period.Details.PrecipitationAmount, w.hours
		}
	}
	return 0, 0
}

// periods lists the forecast windows of a timestep, shortest first.
func (t *Timestep) periods() []*PeriodData {
	return []*PeriodData{t.Data.Next1Hours, t.Data.Next6Hours, t.Data.Next12Hours}
}

// ProbabilityOfPrecipitation returns the precipitation probability in percent
// from the shortest window that carries one, or false when none does.
func (t *Timestep) ProbabilityOfPrecipitation() (float64, bool) {
	for _, period := range t.periods() {
		if period != nil && period.Details != nil && period.Details.ProbabilityOfPrecipitation != nil {
			return *period.Details.ProbabilityOfPrecipitation, true
		}
	}
	return 0, false
}

// ProbabilityOfThunder returns the thunder probability in percent from the
// shortest window that carries one, or false when none does.
func (t *Timestep) ProbabilityOfThunder() (float64, bool) {
	for _, period := range t.periods() {
		if period != nil && period.Details != nil && period.Details.ProbabilityOfThunder != nil {
			return *period.Details.ProbabilityOfThunder, true
		}
	}
	return 0, false
}
