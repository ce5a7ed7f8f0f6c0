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
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/nic0lette/LilaWeltWeather/cmd/weather-to-mqtt/metno"
	"github.com/nic0lette/LilaWeltWeather/pkg/datamodel"
)

// minDailySamples drops the partial days at the edges of the series. The
// far end of a forecast only carries two 12 hour steps per day, aggregates
// over those would look authoritative without being it.
const minDailySamples = 3

// buildDailyMessage aggregates the forecast into per day summaries, grouped
// by the local calendar date of the place. At most maxDays days are kept, a
// maxDays of zero disables the summary entirely.
func buildDailyMessage(place datamodel.Place, forecast *metno.ForecastResponse, loc *time.Location, maxDays int, language datamodel.LanguageCode) *datamodel.DailySummaryMessage {
	if maxDays <= 0 {
		return nil
	}

	msg := &datamodel.DailySummaryMessage{
		TimestampMs: uint64(forecast.Properties.Meta.UpdatedAt.UnixMilli()),
		Place:       place.Slug,
		Days:        []datamodel.DailySummary{},
	}

	series := forecast.Properties.Timeseries
	var dates []string
	byDate := make(map[string][]*metno.Timestep)
	for i := range series {
		date := series[i].Time.In(loc).Format("2006-01-02")
		if _, ok := byDate[date]; !ok {
			dates = append(dates, date)
		}
		byDate[date] = append(byDate[date], &series[i])
	}

	for _, date := range dates {
		if len(msg.Days) == maxDays {
			break
		}
		steps := byDate[date]
		if len(steps) < minDailySamples {
			continue
		}
		msg.Days = append(msg.Days, summarizeDay(date, steps, language))
	}
	return msg
}

// summarizeDay reduces the timesteps of one local day. The symbol is the
// most severe one of the day so a thunderstorm at 16:00 is not hidden behind
// a sunny morning.
func summarizeDay(date string, steps []*metno.Timestep, language datamodel.LanguageCode) datamodel.DailySummary {
	temperatures := make([]float64, 0, len(steps))
	winds := make([]float64, 0, len(steps))

	var precipitationSum float64
	var probabilityMax float64
	var symbolCode string
	severity := -1

	for _, step := range steps {
		details := step.Data.Instant.Details
		temperatures = append(temperatures, details.AirTemperature)
		winds = append(winds, details.WindSpeed)

		amount, _ := step.Precipitation()
		precipitationSum += amount
		if probability, ok := step.ProbabilityOfPrecipitation(); ok && probability > probabilityMax {
			probabilityMax = probability
		}

		if code := step.SymbolCode(); code != "" {
			if s := datamodel.SymbolSeverity(code); s > severity {
				severity = s
				symbolCode = code
			}
		}
	}

	sorted := make([]float64, len(temperatures))
	copy(sorted, temperatures)
	sort.Float64s(sorted)

	summary := datamodel.DailySummary{
		Date:                        date,
		AirTemperatureMin:           floats.Min(temperatures),
		AirTemperatureMax:           floats.Max(temperatures),
		AirTemperatureMean:          round2(stat.Mean(temperatures, nil)),
		AirTemperatureMedian:        round2(stat.Quantile(0.5, stat.Empirical, sorted, nil)),
		AirTemperatureStdDev:        round2(stat.StdDev(temperatures, nil)),
		WindSpeedMean:               round2(stat.Mean(winds, nil)),
		WindSpeedMax:                floats.Max(winds),
		PrecipitationSum:            round2(precipitationSum),
		PrecipitationProbabilityMax: probabilityMax,
		Samples:                     len(steps),
	}
	if symbolCode != "" {
		summary.SymbolCode = symbolCode
		summary.SymbolID = datamodel.ConvertSymbolToLegacy(symbolCode)
		summary.SymbolText = datamodel.ConvertSymbolToString(symbolCode, language)
	}
	return summary
}

// round2 keeps the aggregates at two decimals, matching the precision of the
// upstream values.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
