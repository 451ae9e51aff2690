// Package history persists submitted alerts so past reports survive a
// restart. The daemon owns one store; flows never touch it directly.
package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"connectaid/internal/alert"
)

type Store interface {
	Save(a *alert.Alert) error
	List() ([]alert.Alert, error)
	Close() error
}

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS alerts (
	id         TEXT PRIMARY KEY,
	category   TEXT NOT NULL,
	details    TEXT NOT NULL,
	lat        REAL,
	lng        REAL,
	created_at TEXT NOT NULL
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Save(a *alert.Alert) error {
	var lat, lng sql.NullFloat64
	if a.Location != nil {
		lat = sql.NullFloat64{Float64: a.Location.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: a.Location.Lng, Valid: true}
	}

	_, err := s.db.Exec(
		`INSERT INTO alerts (id, category, details, lat, lng, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, string(a.Category.ID), a.Details, lat, lng, a.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// List returns all stored alerts, newest first.
func (s *SQLiteStore) List() ([]alert.Alert, error) {
	rows, err := s.db.Query(
		`SELECT id, category, details, lat, lng, created_at FROM alerts ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var out []alert.Alert
	for rows.Next() {
		var (
			a        alert.Alert
			catID    string
			lat, lng sql.NullFloat64
			created  string
		)
		if err := rows.Scan(&a.ID, &catID, &a.Details, &lat, &lng, &created); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}

		if cat, ok := alert.CategoryByID(catID); ok {
			a.Category = cat
		} else {
			a.Category = alert.Category{ID: alert.CategoryID(catID), Name: catID}
		}
		if lat.Valid && lng.Valid {
			a.Location = &alert.GeoPoint{Lat: lat.Float64, Lng: lng.Float64}
		}
		if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
			a.CreatedAt = t
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
