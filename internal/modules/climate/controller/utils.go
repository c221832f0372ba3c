package controller

import (
	"fmt"
	"time"

	"climate-server/internal/modules/climate/types"
	"climate-server/internal/modules/climate/views"
)

var indexRoutes = []views.Route{
	{Path: "/api/v1.0/precipitation", Description: "precipitation for the last year of data"},
	{Path: "/api/v1.0/stations", Description: "weather stations"},
	{Path: "/api/v1.0/tobs", Description: "temperature observations for the last year of data"},
	{Path: "/api/v1.0/<start>", Description: "TMIN, TAVG and TMAX from start (YYYY-MM-DD) to the latest date"},
	{Path: "/api/v1.0/<start>/<end>", Description: "TMIN, TAVG and TMAX from start to end inclusive"},
}

type summaryRange struct {
	StartDate string  `json:"start_date"`
	EndDate   *string `json:"end_date"`
}

type summaryObservation struct {
	Observation string   `json:"Observation"`
	Temperature *float64 `json:"Temperature"`
}

// summaryResponse flattens a summary into the route's array shape: the date
// range first, then TMIN, TAVG and TMAX.
func summaryResponse(s types.TemperatureSummary) []any {
	return []any{
		summaryRange{StartDate: s.StartDate, EndDate: s.EndDate},
		summaryObservation{Observation: "TMIN", Temperature: s.Min},
		summaryObservation{Observation: "TAVG", Temperature: s.Avg},
		summaryObservation{Observation: "TMAX", Temperature: s.Max},
	}
}

func parseDate(name, value string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid '%s' date %q (expected YYYY-MM-DD)", name, value)
	}
	return t, nil
}
