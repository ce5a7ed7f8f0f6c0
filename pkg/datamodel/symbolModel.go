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

package datamodel

import "strings"

/*
 * Symbol codes as defined by api.met.no/weatherapi/weathericon/2.0 (base
 * codes, without the _day/_night/_polartwilight variant suffix).
 */

const (
	// SymbolClearsky means a clear sky without clouds
	SymbolClearsky = "clearsky"

	// SymbolFair means a mostly clear sky with a few clouds
	SymbolFair = "fair"

	// SymbolPartlycloudy means a sky that is partly covered by clouds
	SymbolPartlycloudy = "partlycloudy"

	// SymbolCloudy means an overcast sky
	SymbolCloudy = "cloudy"

	// SymbolFog means reduced visibility due to fog
	SymbolFog = "fog"

	// SymbolLightRain means continuous light rain
	SymbolLightRain = "lightrain"

	// SymbolRain means continuous moderate rain
	SymbolRain = "rain"

	// SymbolHeavyRain means continuous heavy rain
	SymbolHeavyRain = "heavyrain"

	// SymbolLightRainShowers means intermittent light rain
	SymbolLightRainShowers = "lightrainshowers"

	// SymbolRainShowers means intermittent moderate rain
	SymbolRainShowers = "rainshowers"

	// SymbolHeavyRainShowers means intermittent heavy rain
	SymbolHeavyRainShowers = "heavyrainshowers"

	// SymbolLightSleet means continuous light sleet
	SymbolLightSleet = "lightsleet"

	// SymbolSleet means continuous moderate sleet
	SymbolSleet = "sleet"

	// SymbolHeavySleet means continuous heavy sleet
	SymbolHeavySleet = "heavysleet"

	// SymbolLightSleetShowers means intermittent light sleet
	SymbolLightSleetShowers = "lightsleetshowers"

	// SymbolSleetShowers means intermittent moderate sleet
	SymbolSleetShowers = "sleetshowers"

	// SymbolHeavySleetShowers means intermittent heavy sleet
	SymbolHeavySleetShowers = "heavysleetshowers"

	// SymbolLightSnow means continuous light snowfall
	SymbolLightSnow = "lightsnow"

	// SymbolSnow means continuous moderate snowfall
	SymbolSnow = "snow"

	// SymbolHeavySnow means continuous heavy snowfall
	SymbolHeavySnow = "heavysnow"

	// SymbolLightSnowShowers means intermittent light snowfall
	SymbolLightSnowShowers = "lightsnowshowers"

	// SymbolSnowShowers means intermittent moderate snowfall
	SymbolSnowShowers = "snowshowers"

	// SymbolHeavySnowShowers means intermittent heavy snowfall
	SymbolHeavySnowShowers = "heavysnowshowers"

	// SymbolLightRainAndThunder means continuous light rain with thunder
	SymbolLightRainAndThunder = "lightrainandthunder"

	// SymbolRainAndThunder means continuous moderate rain with thunder
	SymbolRainAndThunder = "rainandthunder"

	// SymbolHeavyRainAndThunder means continuous heavy rain with thunder
	SymbolHeavyRainAndThunder = "heavyrainandthunder"

	// SymbolLightRainShowersAndThunder means intermittent light rain with thunder
	SymbolLightRainShowersAndThunder = "lightrainshowersandthunder"

	// SymbolRainShowersAndThunder means intermittent moderate rain with thunder
	SymbolRainShowersAndThunder = "rainshowersandthunder"

	// SymbolHeavyRainShowersAndThunder means intermittent heavy rain with thunder
	SymbolHeavyRainShowersAndThunder = "heavyrainshowersandthunder"

	// SymbolLightSleetAndThunder means continuous light sleet with thunder
	SymbolLightSleetAndThunder = "lightsleetandthunder"

	// SymbolSleetAndThunder means continuous moderate sleet with thunder
	SymbolSleetAndThunder = "sleetandthunder"

	// SymbolHeavySleetAndThunder means continuous heavy sleet with thunder
	SymbolHeavySleetAndThunder = "heavysleetandthunder"

	// SymbolLightSleetShowersAndThunder means intermittent light sleet with thunder.
	// The double s is the upstream spelling, not a typo on our side.
	SymbolLightSleetShowersAndThunder = "lightssleetshowersandthunder"

	// SymbolSleetShowersAndThunder means intermittent moderate sleet with thunder
	SymbolSleetShowersAndThunder = "sleetshowersandthunder"

	// SymbolHeavySleetShowersAndThunder means intermittent heavy sleet with thunder
	SymbolHeavySleetShowersAndThunder = "heavysleetshowersandthunder"

	// SymbolLightSnowAndThunder means continuous light snowfall with thunder
	SymbolLightSnowAndThunder = "lightsnowandthunder"

	// SymbolSnowAndThunder means continuous moderate snowfall with thunder
	SymbolSnowAndThunder = "snowandthunder"

	// SymbolHeavySnowAndThunder means continuous heavy snowfall with thunder
	SymbolHeavySnowAndThunder = "heavysnowandthunder"

	// SymbolLightSnowShowersAndThunder means intermittent light snowfall with thunder.
	// The double s is the upstream spelling, not a typo on our side.
	SymbolLightSnowShowersAndThunder = "lightssnowshowersandthunder"

	// SymbolSnowShowersAndThunder means intermittent moderate snowfall with thunder
	SymbolSnowShowersAndThunder = "snowshowersandthunder"

	// SymbolHeavySnowShowersAndThunder means intermittent heavy snowfall with thunder
	SymbolHeavySnowShowersAndThunder = "heavysnowshowersandthunder"
)

// SymbolVariant is the time-of-day suffix of a symbol code. Only symbols that
// draw a sun or moon carry one, e.g. "partlycloudy_night".
type SymbolVariant string

const (
	VariantNone          SymbolVariant = ""
	VariantDay           SymbolVariant = "day"
	VariantNight         SymbolVariant = "night"
	VariantPolarTwilight SymbolVariant = "polartwilight"
)

// PrecipitationKind is the form of precipitation encoded in a symbol.
type PrecipitationKind int

const (
	PrecipitationNone PrecipitationKind = iota
	PrecipitationRain
	PrecipitationSleet
	PrecipitationSnow
)

// SymbolIntensity is the precipitation intensity encoded in a symbol.
// It is only meaningful for symbols that carry precipitation.
type SymbolIntensity int

const (
	IntensityLight SymbolIntensity = iota
	IntensityModerate
	IntensityHeavy
)

// BaseSymbol strips the variant suffix from a symbol code,
// e.g. "clearsky_day" becomes "clearsky".
func BaseSymbol(symbolCode string) string {
	if idx := strings.IndexByte(symbolCode, '_'); idx >= 0 {
		return symbolCode[:idx]
	}
	return symbolCode
}

// Variant returns the time-of-day variant of a symbol code, or VariantNone
// if the code carries no suffix or an unknown one.
func Variant(symbolCode string) SymbolVariant {
	idx := strings.IndexByte(symbolCode, '_')
	if idx < 0 {
		return VariantNone
	}
	switch v := SymbolVariant(symbolCode[idx+1:]); v {
	case VariantDay, VariantNight, VariantPolarTwilight:
		return v
	default:
		return VariantNone
	}
}

// IsValidSymbol checks whether the symbol code (base plus optional variant)
// is one the forecast API can deliver.
func IsValidSymbol(symbolCode string) (returnValue bool) {
	base := BaseSymbol(symbolCode)
	if ConvertSymbolToLegacy(base) == 0 {
		return
	}
	idx := strings.IndexByte(symbolCode, '_')
	if idx < 0 {
		returnValue = true
		return
	}
	if Variant(symbolCode) != VariantNone {
		returnValue = true
	}
	return
}

// IsThunder checks whether the symbol includes thunder
func IsThunder(symbolCode string) (returnValue bool) {
	if strings.Contains(BaseSymbol(symbolCode), "andthunder") {
		returnValue = true
	}
	return
}

// IsShowers checks whether the precipitation is intermittent (showers)
// rather than continuous
func IsShowers(symbolCode string) (returnValue bool) {
	if strings.Contains(BaseSymbol(symbolCode), "showers") {
		returnValue = true
	}
	return
}

// IsPrecipitation checks whether the symbol carries any form of precipitation
func IsPrecipitation(symbolCode string) (returnValue bool) {
	if Precipitation(symbolCode) != PrecipitationNone {
		returnValue = true
	}
	return
}

// Precipitation returns the form of precipitation encoded in the symbol.
// Sleet is checked before rain and snow because it is its own form, not a
// combination of the two in the symbol grammar.
func Precipitation(symbolCode string) PrecipitationKind {
	base := BaseSymbol(symbolCode)
	switch {
	case strings.Contains(base, "sleet"):
		return PrecipitationSleet
	case strings.Contains(base, "snow"):
		return PrecipitationSnow
	case strings.Contains(base, "rain"):
		return PrecipitationRain
	default:
		return PrecipitationNone
	}
}

// Intensity returns the precipitation intensity encoded in the symbol.
// Symbols without an explicit light or heavy prefix are moderate.
func Intensity(symbolCode string) SymbolIntensity {
	base := BaseSymbol(symbolCode)
	switch {
	case strings.HasPrefix(base, "light"):
		return IntensityLight
	case strings.HasPrefix(base, "heavy"):
		return IntensityHeavy
	default:
		return IntensityModerate
	}
}

// SymbolSeverity ranks a symbol code so that worse weather compares higher.
// Dry symbols rank below any precipitation, frozen precipitation ranks above
// rain, continuous above showers, and any thunder above everything else.
// The ranking is used to pick the representative symbol of a day.
func SymbolSeverity(symbolCode string) (severity int) {
	base := BaseSymbol(symbolCode)

	kind := Precipitation(base)
	if kind == PrecipitationNone {
		switch base {
		case SymbolClearsky:
			return 0
		case SymbolFair:
			return 10
		case SymbolPartlycloudy:
			return 20
		case SymbolCloudy:
			return 30
		case SymbolFog:
			return 40
		default:
			// Unknown dry code, rank between fog and rain.
			return 50
		}
	}

	switch kind {
	case PrecipitationRain:
		severity = 100
	case PrecipitationSleet:
		severity = 200
	case PrecipitationSnow:
		severity = 300
	}

	switch Intensity(base) {
	case IntensityModerate:
		severity += 20
	case IntensityHeavy:
		severity += 40
	}

	if !IsShowers(base) {
		severity += 10
	}
	if IsThunder(base) {
		severity += 500
	}

	return severity
}
