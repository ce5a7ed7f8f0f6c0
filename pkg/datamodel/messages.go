package datamodel

/*
 * Payloads published over MQTT. Topic layout per place:
 *   <prefix>/<place-slug>/forecast   ForecastMessage (retained)
 *   <prefix>/<place-slug>/current    CurrentMessage (retained)
 *   <prefix>/<place-slug>/daily      DailySummaryMessage (retained)
 *   <prefix>/<place-slug>/raw        upstream body, verbatim
 * plus the bridge itself:
 *   <prefix>/bridge/status           AvailabilityOnline / AvailabilityOffline (retained)
 *   <prefix>/bridge/stats            StatsMessage
 */

// Availability payloads for the bridge status topic. Offline is also
// registered as the last will so brokers flip the status on connection loss.
const (
	AvailabilityOnline  = "online"
	AvailabilityOffline = "offline"
)

// TimestepMessage is one hourly step of a forecast. Times are RFC3339 in the
// local time of the place. Units follow the upstream defaults: celsius, hPa,
// percent, m/s, degrees and mm.
type TimestepMessage struct {
	Time                       string  `json:"time"`
	AirTemperature             float64 `json:"air_temperature"`
	AirPressureAtSeaLevel      float64 `json:"air_pressure_at_sea_level"`
	RelativeHumidity           float64 `json:"relative_humidity"`
	WindSpeed                  float64 `json:"wind_speed"`
	WindSpeedOfGust            float64 `json:"wind_speed_of_gust,omitempty"`
	WindFromDirection          float64 `json:"wind_from_direction"`
	CloudAreaFraction          float64 `json:"cloud_area_fraction"`
	FogAreaFraction            float64 `json:"fog_area_fraction,omitempty"`
	DewPointTemperature        float64 `json:"dew_point_temperature,omitempty"`
	UltravioletIndex           float64 `json:"ultraviolet_index_clear_sky,omitempty"`
	SymbolCode                 string  `json:"symbol_code,omitempty"`
	SymbolID                   int     `json:"symbol_id,omitempty"`
	PrecipitationAmount        float64 `json:"precipitation_amount"`
	PrecipitationWindowH       int     `json:"precipitation_window_h,omitempty"`
	ProbabilityOfPrecipitation float64 `json:"probability_of_precipitation,omitempty"`
	ProbabilityOfThunder       float64 `json:"probability_of_thunder,omitempty"`
}

// ForecastMessage is the full republished forecast of one place.
type ForecastMessage struct {
	TimestampMs uint64            `json:"timestamp_ms"`
	Place       string            `json:"place"`
	Name        string            `json:"name"`
	Latitude    float64           `json:"latitude"`
	Longitude   float64           `json:"longitude"`
	AltitudeM   int               `json:"altitude_m"`
	Timezone    string            `json:"timezone"`
	UpdatedAt   string            `json:"updated_at"`
	Units       map[string]string `json:"units,omitempty"`
	Timesteps   []TimestepMessage `json:"timesteps"`
}

// CurrentMessage is the first timestep of the latest forecast, published
// separately so dashboards do not need to unpack the whole series.
type CurrentMessage struct {
	TimestampMs uint64  `json:"timestamp_ms"`
	Place       string  `json:"place"`
	Name        string  `json:"name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Timezone    string  `json:"timezone"`
	UpdatedAt   string  `json:"updated_at"`
	SymbolText  string  `json:"symbol_text,omitempty"`
	TimestepMessage
}

// DailySummary aggregates all timesteps that fall on one local calendar day.
// The symbol is the most severe one of the day, see SymbolSeverity.
type DailySummary struct {
	Date                        string  `json:"date"`
	AirTemperatureMin           float64 `json:"air_temperature_min"`
	AirTemperatureMax           float64 `json:"air_temperature_max"`
	AirTemperatureMean          float64 `json:"air_temperature_mean"`
	AirTemperatureMedian        float64 `json:"air_temperature_median"`
	AirTemperatureStdDev        float64 `json:"air_temperature_stddev"`
	WindSpeedMean               float64 `json:"wind_speed_mean"`
	WindSpeedMax                float64 `json:"wind_speed_max"`
	PrecipitationSum            float64 `json:"precipitation_sum"`
	PrecipitationProbabilityMax float64 `json:"probability_of_precipitation_max,omitempty"`
	SymbolCode                  string  `json:"symbol_code,omitempty"`
	SymbolID                    int     `json:"symbol_id,omitempty"`
	SymbolText                  string  `json:"symbol_text,omitempty"`
	Samples                     int     `json:"samples"`
}

// DailySummaryMessage carries the per day aggregates of one place.
type DailySummaryMessage struct {
	TimestampMs uint64         `json:"timestamp_ms"`
	Place       string         `json:"place"`
	Days        []DailySummary `json:"days"`
}

// StatsMessage reports bridge internals, published periodically on the
// stats topic.
type StatsMessage struct {
	TimestampMs          uint64  `json:"timestamp_ms"`
	UptimeS              uint64  `json:"uptime_s"`
	Places               int     `json:"places"`
	ForecastsFetched     uint64  `json:"forecasts_fetched"`
	ForecastsNotModified uint64  `json:"forecasts_not_modified"`
	FetchErrors          uint64  `json:"fetch_errors"`
	MessagesPublished    uint64  `json:"messages_published"`
	MessagesSkipped      uint64  `json:"messages_skipped"`
	PublishErrors        uint64  `json:"publish_errors"`
	QueueLength          uint64  `json:"queue_length"`
	MemoryUsedBytes      uint64  `json:"memory_used_bytes"`
	MemoryUsedPercent    float64 `json:"memory_used_percent"`
	LoadAvg1             float64 `json:"load_avg_1,omitempty"`
	Goroutines           int     `json:"goroutines"`
}
