package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/wardops/bedcast/internal/models"
)

type sqliteStore struct {
	baseStore
}

// Fixed-width UTC layout so stored timestamps order lexicographically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// NewSQLite opens an embedded event store, the default for local development
// and the offline training pipeline.
func NewSQLite(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:bedcast.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &sqliteStore{baseStore{db: db}}, nil
}

func (s *sqliteStore) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS bed_events (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			class TEXT NOT NULL,
			resource_id TEXT NOT NULL,
			ward TEXT NOT NULL,
			kind TEXT NOT NULL,
			ts TEXT NOT NULL,
			actor_id TEXT,
			estimate_minutes REAL
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

func (s *sqliteStore) AppendEvent(ctx context.Context, class models.EventClass, ev models.Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bed_events (class, resource_id, ward, kind, ts, actor_id, estimate_minutes)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(class),
		ev.ResourceID,
		ev.Ward,
		string(ev.Kind),
		ev.Timestamp.UTC().Format(sqliteTimeLayout),
		nullableString(ev.ActorID),
		nullableFloat(ev.EstimateMinutes),
	)
	return err
}

func (s *sqliteStore) FetchEvents(ctx context.Context, class models.EventClass, from, to time.Time) ([]models.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, resource_id, ward, kind, ts, actor_id, estimate_minutes
		FROM bed_events
		WHERE class = ? AND ts >= ? AND ts < ?
		ORDER BY ts, seq`,
		string(class),
		from.UTC().Format(sqliteTimeLayout),
		to.UTC().Format(sqliteTimeLayout),
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
			ts       string
			actor    sql.NullString
			estimate sql.NullFloat64
		)
		if err := rows.Scan(&ev.Seq, &ev.ResourceID, &ev.Ward, &kind, &ts, &actor, &estimate); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, err
		}
		ev.Kind = models.ChangeKind(kind)
		ev.Timestamp = parsed
		ev.ActorID = actor.String
		ev.EstimateMinutes = estimate.Float64
		events = append(events, ev)
	}
	return events, rows.Err()
}
