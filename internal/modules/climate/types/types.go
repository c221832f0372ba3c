package types

// Station is one row of the station reference table. Nullable columns are
// pointers so NULL is served as JSON null.
type Station struct {
	ID        int64    `json:"id"`
	Station   string   `json:"station"`
	Name      *string  `json:"name"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Elevation *float64 `json:"elevation"`
}

// Precipitation is a single (date, prcp) pair. Prcp is nil when the source
// value is NULL.
type Precipitation struct {
	Date string
	Prcp *float64
}

// TemperatureObservation is one measurement row's temperature reading. Tobs
// is nil when the source value is NULL.
type TemperatureObservation struct {
	Date    string   `json:"date"`
	Station string   `json:"station"`
	Tobs    *float64 `json:"tobs"`
}

// TemperatureStats holds MIN/AVG/MAX of tobs over a date range. All three are
// nil when no measurement falls in the range.
type TemperatureStats struct {
	Min *float64
	Avg *float64
	Max *float64
}

// TemperatureSummary is the result of a range aggregation. EndDate is nil
// only for an open-ended query against an empty dataset.
type TemperatureSummary struct {
	StartDate string
	EndDate   *string
	TemperatureStats
}
