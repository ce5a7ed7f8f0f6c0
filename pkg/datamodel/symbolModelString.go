package datamodel

import (
	"fmt"
	"strings"
)

// LanguageCode selects the language of human readable texts
type LanguageCode int

const (
	LanguageGerman  LanguageCode = 0
	LanguageEnglish LanguageCode = 1
)

// ConvertSymbolToString converts a symbol code to a human readable string.
// The variant suffix is ignored, thunder is appended as a suffix so that the
// table only needs the dethundered base codes.
func ConvertSymbolToString(symbolCode string, languageCode LanguageCode) (symbolString string) {
	base := BaseSymbol(symbolCode)
	thunder := IsThunder(base)
	if thunder {
		base = strings.TrimSuffix(base, "andthunder")
		// The upstream double s spelling only exists in thunder codes.
		base = strings.Replace(base, "lightss", "lights", 1)
	}

	if languageCode == LanguageGerman {
		switch base {
		case SymbolClearsky:
			symbolString = "Klarer Himmel"
		case SymbolFair:
			symbolString = "Heiter"
		case SymbolPartlycloudy:
			symbolString = "Teilweise bewölkt"
		case SymbolCloudy:
			symbolString = "Bewölkt"
		case SymbolFog:
			symbolString = "Nebel"
		case SymbolLightRain:
			symbolString = "Leichter Regen"
		case SymbolRain:
			symbolString = "Regen"
		case SymbolHeavyRain:
			symbolString = "Starker Regen"
		case SymbolLightRainShowers:
			symbolString = "Leichte Regenschauer"
		case SymbolRainShowers:
			symbolString = "Regenschauer"
		case SymbolHeavyRainShowers:
			symbolString = "Starke Regenschauer"
		case SymbolLightSleet:
			symbolString = "Leichter Schneeregen"
		case SymbolSleet:
			symbolString = "Schneeregen"
		case SymbolHeavySleet:
			symbolString = "Starker Schneeregen"
		case SymbolLightSleetShowers:
			symbolString = "Leichte Schneeregenschauer"
		case SymbolSleetShowers:
			symbolString = "Schneeregenschauer"
		case SymbolHeavySleetShowers:
			symbolString = "Starke Schneeregenschauer"
		case SymbolLightSnow:
			symbolString = "Leichter Schneefall"
		case SymbolSnow:
			symbolString = "Schneefall"
		case SymbolHeavySnow:
			symbolString = "Starker Schneefall"
		case SymbolLightSnowShowers:
			symbolString = "Leichte Schneeschauer"
		case SymbolSnowShowers:
			symbolString = "Schneeschauer"
		case SymbolHeavySnowShowers:
			symbolString = "Starke Schneeschauer"
		default:
			symbolString = fmt.Sprintf("Unbekanntes Symbol %s", symbolCode)
			return
		}
		if thunder {
			symbolString += " mit Gewitter"
		}
	} else { // ENGLISH
		switch base {
		case SymbolClearsky:
			symbolString = "Clear sky"
		case SymbolFair:
			symbolString = "Fair"
		case SymbolPartlycloudy:
			symbolString = "Partly cloudy"
		case SymbolCloudy:
			symbolString = "Cloudy"
		case SymbolFog:
			symbolString = "Fog"
		case SymbolLightRain:
			symbolString = "Light rain"
		case SymbolRain:
			symbolString = "Rain"
		case SymbolHeavyRain:
			symbolString = "Heavy rain"
		case SymbolLightRainShowers:
			symbolString = "Light rain showers"
		case SymbolRainShowers:
			symbolString = "Rain showers"
		case SymbolHeavyRainShowers:
			symbolString = "Heavy rain showers"
		case SymbolLightSleet:
			symbolString = "Light sleet"
		case SymbolSleet:
			symbolString = "Sleet"
		case SymbolHeavySleet:
			symbolString = "Heavy sleet"
		case SymbolLightSleetShowers:
			symbolString = "Light sleet showers"
		case SymbolSleetShowers:
			symbolString = "Sleet showers"
		case SymbolHeavySleetShowers:
			symbolString = "Heavy sleet showers"
		case SymbolLightSnow:
			symbolString = "Light snow"
		case SymbolSnow:
			symbolString = "Snow"
		case SymbolHeavySnow:
			symbolString = "Heavy snow"
		case SymbolLightSnowShowers:
			symbolString = "Light snow showers"
		case SymbolSnowShowers:
			symbolString = "Snow showers"
		case SymbolHeavySnowShowers:
			symbolString = "Heavy snow showers"
		default:
			symbolString = fmt.Sprintf("Unknown symbol %s", symbolCode)
			return
		}
		if thunder {
			symbolString += " and thunder"
		}
	}

	return
}
