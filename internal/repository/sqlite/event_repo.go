package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vedran77/replychain/internal/domain"
	"maunium.net/go/mautrix/id"
)

const eventColumns = `event_id, room_id, sender, type, content, origin_ts, redacted_at`

// EventRepo is the SQLite event store, used for single-node deployments and
// tests.
type EventRepo struct {
	db *sql.DB
}

func NewEventRepo(db *sql.DB) *EventRepo {
	return &EventRepo{db: db}
}

func (r *EventRepo) Create(ctx context.Context, ev *domain.Event) error {
	content, err := json.Marshal(ev.Content)
	if err != nil {
		return fmt.Errorf("encoding content: %w", err)
	}

	var replacesID sql.NullString
	if target, ok := ev.ReplacesID(); ok {
		replacesID = sql.NullString{String: target.String(), Valid: true}
	}

	query := `
		INSERT INTO events (event_id, room_id, sender, type, content, replaces_id, origin_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		ev.ID.String(), ev.RoomID.String(), ev.Sender.String(), ev.Type, string(content), replacesID, ev.OriginTS,
	)
	return err
}

func (r *EventRepo) GetByID(ctx context.Context, eventID id.EventID) (*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE event_id = ?`
	return scanOne(r.db.QueryRowContext(ctx, query, eventID.String()))
}

func (r *EventRepo) LatestReplacement(ctx context.Context, eventID id.EventID) (*domain.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE replaces_id = ? AND redacted_at IS NULL
		ORDER BY origin_ts DESC, seq DESC
		LIMIT 1`
	return scanOne(r.db.QueryRowContext(ctx, query, eventID.String()))
}

func (r *EventRepo) ListByRoom(ctx context.Context, roomID id.RoomID, before *id.EventID, limit int) ([]domain.Event, error) {
	var query string
	var args []any

	if before != nil {
		query = `
			SELECT ` + eventColumns + `
			FROM events
			WHERE room_id = ? AND replaces_id IS NULL
				AND seq < (SELECT seq FROM events WHERE event_id = ?)
			ORDER BY seq DESC
			LIMIT ?`
		args = []any{roomID.String(), before.String(), limit}
	} else {
		query = `
			SELECT ` + eventColumns + `
			FROM events
			WHERE room_id = ? AND replaces_id IS NULL
			ORDER BY seq DESC
			LIMIT ?`
		args = []any{roomID.String(), limit}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *ev)
	}

	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}

	return events, rows.Err()
}

func (r *EventRepo) Redact(ctx context.Context, eventID id.EventID, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE events SET content = '{}', redacted_at = ? WHERE event_id = ?`, at.UnixMilli(), eventID.String())
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOne(row scanner) (*domain.Event, error) {
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return ev, err
}

func scanEvent(row scanner) (*domain.Event, error) {
	var ev domain.Event
	var content string
	var redactedAt sql.NullInt64
	if err := row.Scan(
		&ev.ID, &ev.RoomID, &ev.Sender, &ev.Type, &content, &ev.OriginTS, &redactedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(content), &ev.Content); err != nil {
		return nil, fmt.Errorf("decoding content of %s: %w", ev.ID, err)
	}
	if redactedAt.Valid {
		at := time.UnixMilli(redactedAt.Int64)
		ev.RedactedAt = &at
	}
	return &ev, nil
}
