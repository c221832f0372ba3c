package service

import (
	"context"
	"log/slog"
	"time"

	"climate-server/internal/modules/climate/repository"
	"climate-server/internal/modules/climate/types"
)

// trailingYear is the length of the window ending at the latest observation.
const trailingYear = 365

type Service struct {
	repository repository.ClimateRepository
}

func NewService(repository repository.ClimateRepository) *Service {
	return &Service{repository: repository}
}

// WindowStart returns the exclusive lower bound of the trailing-year window.
func WindowStart(latest time.Time) time.Time {
	return latest.AddDate(0, 0, -trailingYear)
}

func (s *Service) session(ctx context.Context) (repository.Session, func(), error) {
	sess, err := s.repository.Session(ctx)
	if err != nil {
		return nil, nil, err
	}
	release := func() {
		if err := sess.Close(); err != nil {
			slog.Error("release climate session", "error", err)
		}
	}
	return sess, release, nil
}

// Precipitation maps each date in the trailing-year window to its prcp.
// Later rows overwrite earlier ones when a date repeats.
func (s *Service) Precipitation(ctx context.Context) (map[string]*float64, error) {
	sess, release, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	out := map[string]*float64{}
	latest, ok, err := sess.LatestDate(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return out, nil
	}
	rows, err := sess.PrecipitationAfter(ctx, WindowStart(latest))
	if err != nil {
		return nil, err
	}
	for _, p := range rows {
		out[p.Date] = p.Prcp
	}
	return out, nil
}

func (s *Service) Stations(ctx context.Context) ([]types.Station, error) {
	sess, release, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return sess.Stations(ctx)
}

// TemperatureObservations returns every tobs row in the trailing-year window.
func (s *Service) TemperatureObservations(ctx context.Context) ([]types.TemperatureObservation, error) {
	sess, release, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	latest, ok, err := sess.LatestDate(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []types.TemperatureObservation{}, nil
	}
	return sess.TemperatureObservationsAfter(ctx, WindowStart(latest))
}

// TemperatureSummaryFrom aggregates from start through the latest observation
// date. EndDate stays nil when there are no measurements.
func (s *Service) TemperatureSummaryFrom(ctx context.Context, start time.Time) (types.TemperatureSummary, error) {
	sess, release, err := s.session(ctx)
	if err != nil {
		return types.TemperatureSummary{}, err
	}
	defer release()

	summary := types.TemperatureSummary{StartDate: start.Format(time.DateOnly)}
	latest, ok, err := sess.LatestDate(ctx)
	if err != nil {
		return types.TemperatureSummary{}, err
	}
	if !ok {
		return summary, nil
	}
	end := latest.Format(time.DateOnly)
	summary.EndDate = &end
	summary.TemperatureStats, err = sess.TemperatureStats(ctx, summary.StartDate, end)
	if err != nil {
		return types.TemperatureSummary{}, err
	}
	return summary, nil
}

// TemperatureSummaryRange aggregates over start <= date <= end. A start after
// end matches nothing and yields nil stats.
func (s *Service) TemperatureSummaryRange(ctx context.Context, start, end time.Time) (types.TemperatureSummary, error) {
	sess, release, err := s.session(ctx)
	if err != nil {
		return types.TemperatureSummary{}, err
	}
	defer release()

	endDate := end.Format(time.DateOnly)
	summary := types.TemperatureSummary{StartDate: start.Format(time.DateOnly), EndDate: &endDate}
	summary.TemperatureStats, err = sess.TemperatureStats(ctx, summary.StartDate, endDate)
	if err != nil {
		return types.TemperatureSummary{}, err
	}
	return summary, nil
}
