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
	"time"

	"github.com/nic0lette/LilaWeltWeather/cmd/weather-to-mqtt/metno"
	"github.com/nic0lette/LilaWeltWeather/pkg/datamodel"
)

// buildTimestep flattens one upstream timestep. Optional upstream values are
// pointers on the met.no side, absent ones stay zero here and drop out of the
// JSON through omitempty.
func buildTimestep(step *metno.Timestep, loc *time.Location) datamodel.TimestepMessage {
	details := step.Data.Instant.Details

	msg := datamodel.TimestepMessage{
		Time:                  step.Time.In(loc).Format(time.RFC3339),
		AirTemperature:        details.AirTemperature,
		AirPressureAtSeaLevel: details.AirPressureAtSeaLevel,
		RelativeHumidity:      details.RelativeHumidity,
		WindSpeed:             details.WindSpeed,
		WindFromDirection:     details.WindFromDirection,
		CloudAreaFraction:     details.CloudAreaFraction,
	}

	if details.WindSpeedOfGust != nil {
		msg.WindSpeedOfGust = *details.WindSpeedOfGust
	}
	if details.FogAreaFraction != nil {
		msg.FogAreaFraction = *details.FogAreaFraction
	}
	if details.DewPointTemperature != nil {
		msg.DewPointTemperature = *details.DewPointTemperature
	}
	if details.UltravioletIndex != nil {
		msg.UltravioletIndex = *details.UltravioletIndex
	}

	if code := step.SymbolCode(); code != "" {
		msg.SymbolCode = code
		msg.SymbolID = datamodel.ConvertSymbolToLegacy(code)
	}

	msg.PrecipitationAmount, msg.PrecipitationWindowH = step.Precipitation()
	if probability, ok := step.ProbabilityOfPrecipitation(); ok {
		msg.ProbabilityOfPrecipitation = probability
	}
	if probability, ok := step.ProbabilityOfThunder(); ok {
		msg.ProbabilityOfThunder = probability
	}

	return msg
}

// buildForecastMessage assembles the retained forecast payload for one place.
// Timestamp and horizon are anchored on the upstream document, not the wall
// clock, so an unchanged document converts to a byte identical payload and
// the publisher drops it as a duplicate.
func buildForecastMessage(place datamodel.Place, forecast *metno.ForecastResponse, loc *time.Location, horizonH int) *datamodel.ForecastMessage {
	updatedAt := forecast.Properties.Meta.UpdatedAt
	_, _, altitudeM := forecast.Coordinates()

	msg := &datamodel.ForecastMessage{
		TimestampMs: uint64(updatedAt.UnixMilli()),
		Place:       place.Slug,
		Name:        place.Name,
		Latitude:    place.Latitude,
		Longitude:   place.Longitude,
		AltitudeM:   altitudeM,
		Timezone:    place.Timezone,
		UpdatedAt:   updatedAt.In(loc).Format(time.RFC3339),
		Units:       forecast.Properties.Meta.Units,
		Timesteps:   []datamodel.TimestepMessage{},
	}

	series := forecast.Properties.Timeseries
	if len(series) == 0 {
		return msg
	}

	var cutoff time.Time
	if horizonH > 0 {
		cutoff = series[0].Time.Add(time.Duration(horizonH) * time.Hour)
	}

	for i := range series {
		// The series is sorted by time.
		if horizonH > 0 && series[i].Time.After(cutoff) {
			break
		}
		msg.Timesteps = append(msg.Timesteps, buildTimestep(&series[i], loc))
	}
	return msg
}

// buildCurrentMessage extracts the first timestep as a standalone payload so
// dashboards do not need to unpack the whole series, annotated with the
// symbol text in the configured language. Returns nil when the document has
// no timesteps.
func buildCurrentMessage(place datamodel.Place, forecast *metno.ForecastResponse, loc *time.Location, language datamodel.LanguageCode) *datamodel.CurrentMessage {
	series := forecast.Properties.Timeseries
	if len(series) == 0 {
		return nil
	}
	updatedAt := forecast.Properties.Meta.UpdatedAt

	msg := &datamodel.CurrentMessage{
		TimestampMs:     uint64(updatedAt.UnixMilli()),
		Place:           place.Slug,
		Name:            place.Name,
		Latitude:        place.Latitude,
		Longitude:       place.Longitude,
		Timezone:        place.Timezone,
		UpdatedAt:       updatedAt.In(loc).Format(time.RFC3339),
		TimestepMessage: buildTimestep(&series[0], loc),
	}
	if msg.SymbolCode != "" {
		msg.SymbolText = datamodel.ConvertSymbolToString(msg.SymbolCode, language)
	}
	return msg
}
