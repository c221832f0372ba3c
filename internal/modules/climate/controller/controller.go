package controller

import (
	"context"
	"net/http"
	"time"

	"climate-server/internal/modules/climate/types"
)

// ClimateService is the query surface the handlers depend on.
type ClimateService interface {
	Precipitation(ctx context.Context) (map[string]*float64, error)
	Stations(ctx context.Context) ([]types.Station, error)
	TemperatureObservations(ctx context.Context) ([]types.TemperatureObservation, error)
	TemperatureSummaryFrom(ctx context.Context, start time.Time) (types.TemperatureSummary, error)
	TemperatureSummaryRange(ctx context.Context, start, end time.Time) (types.TemperatureSummary, error)
}

type ClimateController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type climateControllerImpl struct {
	service ClimateService
}

func NewClimateController(service ClimateService) ClimateController {
	return &climateControllerImpl{service: service}
}

func (c *climateControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /", c.handleIndex)
	mux.HandleFunc("GET /api/v1.0/precipitation", c.handlePrecipitation)
	mux.HandleFunc("GET /api/v1.0/stations", c.handleStations)
	mux.HandleFunc("GET /api/v1.0/tobs", c.handleTobs)
	mux.HandleFunc("GET /api/v1.0/{start}", c.handleSummaryFrom)
	mux.HandleFunc("GET /api/v1.0/{start}/{end}", c.handleSummaryRange)
}
