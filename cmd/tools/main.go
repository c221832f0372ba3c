package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"climate-server/internal/config"
	"climate-server/internal/db"
	"climate-server/internal/schema"
)

const usage = `usage: %s <command> [args]
  migrate                                  create or upgrade the dataset schema
  seed-csv <stations.csv> <measurements.csv>  load CSV exports into the dataset
`

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) < 1 {
		return fmt.Errorf(usage, filepath.Base(os.Args[0]))
	}

	dbPath := os.Getenv("SQLITE_PATH")
	if dbPath == "" {
		dbPath = config.DefaultSQLitePath
	}
	dbPath = filepath.Clean(dbPath)

	switch args[0] {
	case "migrate":
		conn, err := db.OpenWritable(dbPath)
		if err != nil {
			return err
		}
		defer closeDB(conn)
		if err := schema.Migrate(ctx, conn); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		_, _ = fmt.Fprintf(stdout, "migrations applied to %s\n", dbPath)
		return nil

	case "seed-csv":
		if len(args) != 3 {
			return errors.New("seed-csv: expected <stations.csv> <measurements.csv>")
		}
		conn, err := db.OpenWritable(dbPath)
		if err != nil {
			return err
		}
		defer closeDB(conn)
		if err := schema.Migrate(ctx, conn); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		stations, err := loadFile(ctx, conn, args[1], schema.LoadStationsCSV)
		if err != nil {
			return err
		}
		measurements, err := loadFile(ctx, conn, args[2], schema.LoadMeasurementsCSV)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(stdout, "loaded %d stations and %d measurements into %s\n", stations, measurements, dbPath)
		return nil

	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

type csvLoader func(ctx context.Context, conn *sql.DB, r io.Reader) (int, error)

func loadFile(ctx context.Context, conn *sql.DB, path string, load csvLoader) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	n, err := load(ctx, conn, f)
	if err != nil {
		return n, fmt.Errorf("%s: %w", path, err)
	}
	return n, nil
}

func closeDB(conn *sql.DB) {
	if err := db.Close(conn); err != nil {
		slog.Error("db close", "err", err)
	}
}
