// Package db stores definition sets in SQLite or PostgreSQL.
//
// Connections go through sqlx, statements are named queries loaded from
// embedded .sql files with dotsql, and the schema is managed by a small
// checksummed migration runner over the files in the migrations package.
package db

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Pool limits sized for a handful of service instances sharing one
// PostgreSQL server (100 connections by default).
const (
	maxOpenConns    = 16
	maxIdleConns    = 4
	connMaxIdleTime = 5 * time.Minute
	connMaxLifetime = 30 * time.Minute
)

// sqliteDefaults are applied to SQLite DSNs unless the URL sets them.
var sqliteDefaults = map[string]string{
	"_foreign_keys": "on",
	"_busy_timeout": "5000",
}

// Open connects to dbURL and configures connection pooling.
//
//	sqlite://relative/file.db
//	sqlite:///absolute/file.db
//	postgres://user@host:5432/dbname?sslmode=disable
func Open(ctx context.Context, dbURL string) (*sqlx.DB, error) {
	driverName, dataSource, err := parseURL(dbURL)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(driverName, dataSource)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxIdleTime(connMaxIdleTime)
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// parseURL maps a database URL to a driver name and driver-specific DSN.
func parseURL(dbURL string) (driver, dsn string, err error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid database URL: %w", err)
	}

	switch u.Scheme {
	case "sqlite":
		// sqlite://file.db puts "file.db" in Host; sqlite:///abs has an empty Host
		path := u.Path
		if u.Host != "" {
			path = u.Host + u.Path
		}
		if path == "" {
			return "", "", fmt.Errorf("invalid database URL: sqlite path is empty")
		}
		params := u.Query()
		for k, v := range sqliteDefaults {
			if !params.Has(k) {
				params.Set(k, v)
			}
		}
		return "sqlite3", path + "?" + params.Encode(), nil
	case "postgres", "postgresql":
		return "postgres", dbURL, nil
	default:
		return "", "", fmt.Errorf("unsupported database scheme: %s (expected sqlite or postgres)", u.Scheme)
	}
}
