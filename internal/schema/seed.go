package schema

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// LoadStationsCSV inserts rows from a CSV with the header
// station,name,latitude,longitude,elevation. Column order may vary.
func LoadStationsCSV(ctx context.Context, db *sql.DB, r io.Reader) (int, error) {
	return loadCSV(ctx, db, r,
		[]string{"station", "name", "latitude", "longitude", "elevation"},
		`INSERT INTO station (station, name, latitude, longitude, elevation) VALUES (?, ?, ?, ?, ?)`,
		func(rec map[string]string) ([]any, error) {
			lat, err := parseFloat(rec["latitude"], false)
			if err != nil {
				return nil, fmt.Errorf("latitude: %w", err)
			}
			lon, err := parseFloat(rec["longitude"], false)
			if err != nil {
				return nil, fmt.Errorf("longitude: %w", err)
			}
			elev, err := parseFloat(rec["elevation"], false)
			if err != nil {
				return nil, fmt.Errorf("elevation: %w", err)
			}
			return []any{rec["station"], rec["name"], lat, lon, elev}, nil
		},
	)
}

// LoadMeasurementsCSV inserts rows from a CSV with the header
// station,date,prcp,tobs. An empty prcp is stored as NULL.
func LoadMeasurementsCSV(ctx context.Context, db *sql.DB, r io.Reader) (int, error) {
	return loadCSV(ctx, db, r,
		[]string{"station", "date", "prcp", "tobs"},
		`INSERT INTO measurement (station, date, prcp, tobs) VALUES (?, ?, ?, ?)`,
		func(rec map[string]string) ([]any, error) {
			date := rec["date"]
			if _, err := time.Parse(time.DateOnly, date); err != nil {
				return nil, fmt.Errorf("date %q: expected YYYY-MM-DD", date)
			}
			prcp, err := parseFloat(rec["prcp"], true)
			if err != nil {
				return nil, fmt.Errorf("prcp: %w", err)
			}
			tobs, err := parseFloat(rec["tobs"], false)
			if err != nil {
				return nil, fmt.Errorf("tobs: %w", err)
			}
			return []any{rec["station"], date, prcp, tobs}, nil
		},
	)
}

func loadCSV(ctx context.Context, db *sql.DB, r io.Reader, columns []string, insertSQL string, row func(map[string]string) ([]any, error)) (int, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range columns {
		if _, ok := index[c]; !ok {
			return 0, fmt.Errorf("header is missing column %q", c)
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return 0, err
	}
	defer func() { _ = stmt.Close() }()

	n := 0
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return n, fmt.Errorf("read row %d: %w", n+1, err)
		}
		rec := make(map[string]string, len(columns))
		for _, c := range columns {
			rec[c] = strings.TrimSpace(fields[index[c]])
		}
		args, err := row(rec)
		if err != nil {
			return n, fmt.Errorf("row %d: %w", n+1, err)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return n, fmt.Errorf("insert row %d: %w", n+1, err)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return n, err
	}
	return n, nil
}

func parseFloat(s string, nullable bool) (any, error) {
	if s == "" {
		if nullable {
			return nil, nil
		}
		return nil, errors.New("value is required")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return f, nil
}
