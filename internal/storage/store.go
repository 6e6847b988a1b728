// Package storage is the event-source adapter: it persists and serves the
// resource-state event log (bed occupancy changes, cleaning tasks) that the
// reconstructor and trainer consume.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/wardops/bedcast/internal/models"
)

// Store is the event-log port. FetchEvents returns events for one class
// ordered by timestamp with the store-assigned sequence as tie-breaker.
type Store interface {
	Init(ctx context.Context) error
	Close() error
	AppendEvent(ctx context.Context, class models.EventClass, ev models.Event) error
	FetchEvents(ctx context.Context, class models.EventClass, from, to time.Time) ([]models.Event, error)
}

// Config selects and configures a storage driver.
type Config struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// NewStore builds a Store for the configured driver.
func NewStore(cfg Config) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "sqlite":
		return NewSQLite(cfg.DSN)
	case "postgres", "postgresql":
		return NewPostgres(cfg.DSN)
	default:
		return nil, errors.New("unsupported storage driver: " + cfg.Driver)
	}
}

type baseStore struct {
	db *sql.DB
}

func (b *baseStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableFloat(v float64) any {
	if v == 0 {
		return nil
	}
	return v
}
