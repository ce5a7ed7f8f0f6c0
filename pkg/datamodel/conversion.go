package datamodel

// ConvertLegacyToSymbol converts a numeric symbol ID from the retired
// weathericon 1.x API to the current symbol code. Unknown IDs return an
// empty string. IDs 16 to 19 and 35 to 39 were dark variants that no longer
// exist and are intentionally absent.
func ConvertLegacyToSymbol(legacyID int) (symbolCode string) {
	switch legacyID {
	case 1:
		symbolCode = SymbolClearsky
	case 2:
		symbolCode = SymbolFair
	case 3:
		symbolCode = SymbolPartlycloudy
	case 4:
		symbolCode = SymbolCloudy
	case 5:
		symbolCode = SymbolRainShowers
	case 6:
		symbolCode = SymbolRainShowersAndThunder
	case 7:
		symbolCode = SymbolSleetShowers
	case 8:
		symbolCode = SymbolSnowShowers
	case 9:
		symbolCode = SymbolRain
	case 10:
		symbolCode = SymbolHeavyRain
	case 11:
		symbolCode = SymbolHeavyRainAndThunder
	case 12:
		symbolCode = SymbolSleet
	case 13:
		symbolCode = SymbolSnow
	case 14:
		symbolCode = SymbolSnowAndThunder
	case 15:
		symbolCode = SymbolFog
	case 20:
		symbolCode = SymbolSleetShowersAndThunder
	case 21:
		symbolCode = SymbolSnowShowersAndThunder
	case 22:
		symbolCode = SymbolRainAndThunder
	case 23:
		symbolCode = SymbolSleetAndThunder
	case 24:
		symbolCode = SymbolLightRainShowersAndThunder
	case 25:
		symbolCode = SymbolHeavyRainShowersAndThunder
	case 26:
		symbolCode = SymbolLightSleetShowersAndThunder
	case 27:
		symbolCode = SymbolHeavySleetShowersAndThunder
	case 28:
		symbolCode = SymbolLightSnowShowersAndThunder
	case 29:
		symbolCode = SymbolHeavySnowShowersAndThunder
	case 30:
		symbolCode = SymbolLightRainAndThunder
	case 31:
		symbolCode = SymbolLightSleetAndThunder
	case 32:
		symbolCode = SymbolHeavySleetAndThunder
	case 33:
		symbolCode = SymbolLightSnowAndThunder
	case 34:
		symbolCode = SymbolHeavySnowAndThunder
	case 40:
		symbolCode = SymbolLightRainShowers
	case 41:
		symbolCode = SymbolHeavyRainShowers
	case 42:
		symbolCode = SymbolLightSleetShowers
	case 43:
		symbolCode = SymbolHeavySleetShowers
	case 44:
		symbolCode = SymbolLightSnowShowers
	case 45:
		symbolCode = SymbolHeavySnowShowers
	case 46:
		symbolCode = SymbolLightRain
	case 47:
		symbolCode = SymbolLightSleet
	case 48:
		symbolCode = SymbolHeavySleet
	case 49:
		symbolCode = SymbolLightSnow
	case 50:
		symbolCode = SymbolHeavySnow
	}

	return
}

// ConvertSymbolToLegacy converts a symbol code to its numeric weathericon 1.x
// ID (used to keep consumers alive that still expect the old numbers).
// The variant suffix is ignored. Unknown codes return 0.
func ConvertSymbolToLegacy(symbolCode string) (legacyID int) {
	switch BaseSymbol(symbolCode) {
	case SymbolClearsky:
		legacyID = 1
	case SymbolFair:
		legacyID = 2
	case SymbolPartlycloudy:
		legacyID = 3
	case SymbolCloudy:
		legacyID = 4
	case SymbolRainShowers:
		legacyID = 5
	case SymbolRainShowersAndThunder:
		legacyID = 6
	case SymbolSleetShowers:
		legacyID = 7
	case SymbolSnowShowers:
		legacyID = 8
	case SymbolRain:
		legacyID = 9
	case SymbolHeavyRain:
		legacyID = 10
	case SymbolHeavyRainAndThunder:
		legacyID = 11
	case SymbolSleet:
		legacyID = 12
	case SymbolSnow:
		legacyID = 13
	case SymbolSnowAndThunder:
		legacyID = 14
	case SymbolFog:
		legacyID = 15
	case SymbolSleetShowersAndThunder:
		legacyID = 20
	case SymbolSnowShowersAndThunder:
		legacyID = 21
	case SymbolRainAndThunder:
		legacyID = 22
	case SymbolSleetAndThunder:
		legacyID = 23
	case SymbolLightRainShowersAndThunder:
		legacyID = 24
	case SymbolHeavyRainShowersAndThunder:
		legacyID = 25
	case SymbolLightSleetShowersAndThunder:
		legacyID = 26
	case SymbolHeavySleetShowersAndThunder:
		legacyID = 27
	case SymbolLightSnowShowersAndThunder:
		legacyID = 28
	case SymbolHeavySnowShowersAndThunder:
		legacyID = 29
	case SymbolLightRainAndThunder:
		legacyID = 30
	case SymbolLightSleetAndThunder:
		legacyID = 31
	case SymbolHeavySleetAndThunder:
		legacyID = 32
	case SymbolLightSnowAndThunder:
		legacyID = 33
	case SymbolHeavySnowAndThunder:
		legacyID = 34
	case SymbolLightRainShowers:
		legacyID = 40
	case SymbolHeavyRainShowers:
		legacyID = 41
	case SymbolLightSleetShowers:
		legacyID = 42
	case SymbolHeavySleetShowers:
		legacyID = 43
	case SymbolLightSnowShowers:
		legacyID = 44
	case SymbolHeavySnowShowers:
		legacyID = 45
	case SymbolLightRain:
		legacyID = 46
	case SymbolLightSleet:
		legacyID = 47
	case SymbolHeavySleet:
		legacyID = 48
	case SymbolLightSnow:
		legacyID = 49
	case SymbolHeavySnow:
		legacyID = 50
	}

	return
}
