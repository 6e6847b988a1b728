package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/wardops/bedcast/internal/models"
)

type postgresStore struct {
	baseStore
}

// NewPostgres opens a postgres-backed event store via the pgx stdlib driver.
func NewPostgres(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "postgres://localhost:5432/bedcast?sslmode=disable"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &postgresStore{baseStore{db: db}}, nil
}

func (s *postgresStore) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS bed_events (
			seq BIGSERIAL PRIMARY KEY,
			class TEXT NOT NULL,
			resource_id TEXT NOT NULL,
			ward TEXT NOT NULL,
			kind TEXT NOT NULL,
			ts TIMESTAMPTZ NOT NULL,
			actor_id TEXT,
			estimate_minutes DOUBLE PRECISION
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bed_events_class_ts ON bed_events(class, ts)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *postgresStore) AppendEvent(ctx context.Context, class models.EventClass, ev models.Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bed_events (class, resource_id, ward, kind, ts, actor_id, estimate_minutes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(class),
		ev.ResourceID,
		ev.Ward,
		string(ev.Kind),
		ev.Timestamp.UTC(),
		nullableString(ev.ActorID),
		nullableFloat(ev.EstimateMinutes),
	)
	return err
}

func (s *postgresStore) FetchEvents(ctx context.Context, class models.EventClass, from, to time.Time) ([]models.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, resource_id, ward, kind, ts, actor_id, estimate_minutes
		FROM bed_events
		WHERE class = $1 AND ts >= $2 AND ts < $3
		ORDER BY ts, seq`,
		string(class), from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var (
			ev       models.Event
			kind     string
			actor    sql.NullString
			estimate sql.NullFloat64
		)
		if err := rows.Scan(&ev.Seq, &ev.ResourceID, &ev.Ward, &kind, &ev.Timestamp, &actor, &estimate); err != nil {
			return nil, err
		}
		ev.Kind = models.ChangeKind(kind)
		ev.ActorID = actor.String
		ev.EstimateMinutes = estimate.Float64
		events = append(events, ev)
	}
	return events, rows.Err()
}
