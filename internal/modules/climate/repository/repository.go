package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"climate-server/internal/db"
	"climate-server/internal/modules/climate/types"
)

//go:embed sql/get-latest-date.sql
var getLatestDateSQL string

//go:embed sql/get-precipitation-after.sql
var getPrecipitationAfterSQL string

//go:embed sql/get-stations.sql
var getStationsSQL string

//go:embed sql/get-temperature-observations-after.sql
var getTemperatureObservationsAfterSQL string

//go:embed sql/get-temperature-stats.sql
var getTemperatureStatsSQL string

// Tables lists the tables and columns the queries above depend on.
var Tables = []db.Table{
	{Name: "station", Columns: []string{"id", "station", "name", "latitude", "longitude", "elevation"}},
	{Name: "measurement", Columns: []string{"station", "date", "prcp", "tobs"}},
}

// ValidateSchema fails with db.ErrSchemaMismatch when the dataset lacks a
// table or column the repository reads.
func ValidateSchema(ctx context.Context, conn *sql.DB) error {
	return db.ValidateSchema(ctx, conn, Tables)
}

// ClimateRepository hands out query sessions. Every session must be closed.
type ClimateRepository interface {
	Session(ctx context.Context) (Session, error)
}

// Session is one request's query scope. All reads inside a session see the
// same snapshot of the dataset.
type Session interface {
	// LatestDate returns the most recent observation date. ok is false when
	// there are no measurements.
	LatestDate(ctx context.Context) (latest time.Time, ok bool, err error)
	PrecipitationAfter(ctx context.Context, after time.Time) ([]types.Precipitation, error)
	Stations(ctx context.Context) ([]types.Station, error)
	TemperatureObservationsAfter(ctx context.Context, after time.Time) ([]types.TemperatureObservation, error)
	// TemperatureStats aggregates tobs over start <= date <= end. Dates are
	// compared as YYYY-MM-DD strings.
	TemperatureStats(ctx context.Context, start, end string) (types.TemperatureStats, error)
	Close() error
}

type repositoryImpl struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) ClimateRepository {
	return &repositoryImpl{db: db}
}

// Session starts a read-only transaction on a pooled connection. Close
// rolls it back and returns the connection to the pool.
func (r *repositoryImpl) Session(ctx context.Context) (Session, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin session: %w", err)
	}
	return &session{tx: tx}, nil
}

type session struct {
	tx *sql.Tx
}

func (s *session) Close() error {
	err := s.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

func (s *session) LatestDate(ctx context.Context) (time.Time, bool, error) {
	var latest sql.NullString
	if err := s.tx.QueryRowContext(ctx, getLatestDateSQL).Scan(&latest); err != nil {
		return time.Time{}, false, fmt.Errorf("latest date: %w", err)
	}
	if !latest.Valid {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(time.DateOnly, latest.String)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse latest date %q: %w", latest.String, err)
	}
	return t, true, nil
}

func (s *session) PrecipitationAfter(ctx context.Context, after time.Time) ([]types.Precipitation, error) {
	rows, err := s.tx.QueryContext(ctx, getPrecipitationAfterSQL, after.Format(time.DateOnly))
	if err != nil {
		return nil, fmt.Errorf("precipitation: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close precipitation rows", "error", err)
		}
	}()
	out := []types.Precipitation{}
	for rows.Next() {
		var (
			p    types.Precipitation
			prcp sql.NullFloat64
		)
		if err := rows.Scan(&p.Date, &prcp); err != nil {
			return nil, err
		}
		if prcp.Valid {
			p.Prcp = &prcp.Float64
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *session) Stations(ctx context.Context) ([]types.Station, error) {
	rows, err := s.tx.QueryContext(ctx, getStationsSQL)
	if err != nil {
		return nil, fmt.Errorf("stations: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close stations rows", "error", err)
		}
	}()
	out := []types.Station{}
	for rows.Next() {
		var (
			st                  types.Station
			name                sql.NullString
			lat, lon, elevation sql.NullFloat64
		)
		if err := rows.Scan(&st.ID, &st.Station, &name, &lat, &lon, &elevation); err != nil {
			return nil, err
		}
		st.Name = nullString(name)
		st.Latitude = nullFloat(lat)
		st.Longitude = nullFloat(lon)
		st.Elevation = nullFloat(elevation)
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *session) TemperatureObservationsAfter(ctx context.Context, after time.Time) ([]types.TemperatureObservation, error) {
	rows, err := s.tx.QueryContext(ctx, getTemperatureObservationsAfterSQL, after.Format(time.DateOnly))
	if err != nil {
		return nil, fmt.Errorf("temperature observations: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close temperature observation rows", "error", err)
		}
	}()
	out := []types.TemperatureObservation{}
	for rows.Next() {
		var (
			o    types.TemperatureObservation
			tobs sql.NullFloat64
		)
		if err := rows.Scan(&o.Date, &o.Station, &tobs); err != nil {
			return nil, err
		}
		o.Tobs = nullFloat(tobs)
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *session) TemperatureStats(ctx context.Context, start, end string) (types.TemperatureStats, error) {
	var lo, avg, hi sql.NullFloat64
	if err := s.tx.QueryRowContext(ctx, getTemperatureStatsSQL, start, end).Scan(&lo, &avg, &hi); err != nil {
		return types.TemperatureStats{}, fmt.Errorf("temperature stats: %w", err)
	}
	return types.TemperatureStats{
		Min: nullFloat(lo),
		Avg: nullFloat(avg),
		Max: nullFloat(hi),
	}, nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
