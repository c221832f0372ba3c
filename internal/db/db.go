package db

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"climate-server/internal/config"

	_ "github.com/mattn/go-sqlite3"
)

// Open returns a read-only handle on the configured dataset. The file must
// already exist; nothing is created or migrated.
func Open(cfg config.Config, logger *slog.Logger) (*sql.DB, error) {
	dsn := cfg.SQLiteDSN
	if dsn == "" {
		if err := requireFile(cfg.SQLitePath); err != nil {
			return nil, err
		}
		dsn = buildDSN(cfg.SQLitePath, true)
	}

	var db *sql.DB
	if cfg.SQLiteDriver == "sqlite3" {
		connector, err := NewLoggingConnector(dsn, logger, LogOptions{
			Statements: cfg.LogSQL,
			SlowQuery:  cfg.SlowQuery,
		})
		if err != nil {
			return nil, err
		}
		db = sql.OpenDB(connector)
	} else {
		var err error
		db, err = sql.Open(cfg.SQLiteDriver, dsn)
		if err != nil {
			return nil, fmt.Errorf("db open: %w", err)
		}
	}

	if cfg.SQLiteMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.SQLiteMaxOpenConns)
	}
	if cfg.SQLiteMaxIdleConns >= 0 {
		db.SetMaxIdleConns(cfg.SQLiteMaxIdleConns)
	}
	if cfg.SQLiteConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.SQLiteConnMaxLifetime)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	return db, nil
}

// OpenWritable opens (creating if needed) a database file for the dev tooling.
func OpenWritable(path string) (*sql.DB, error) {
	dir := filepath.Dir(path)
	if dir != "." && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", buildDSN(path, false))
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func Close(db *sql.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}

func requireFile(path string) error {
	if strings.HasPrefix(path, "file:") {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("dataset %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("dataset %s: is a directory", path)
	}
	return nil
}

func buildDSN(path string, readOnly bool) string {
	// Dataset files are shipped read-only, so the writable side keeps the
	// default rollback journal instead of WAL.
	var params []string
	if readOnly {
		params = []string{
			"mode=ro",
			"_query_only=1",
			"_busy_timeout=5000",
		}
	} else {
		params = []string{
			"_foreign_keys=on",
			"_busy_timeout=5000",
		}
	}

	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + strings.Join(params, "&")
	}
	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&"))
}
