package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/replychain/internal/domain"
	"maunium.net/go/mautrix/id"
)

const eventColumns = `event_id, room_id, sender, type, content, origin_ts, redacted_at`

type EventRepo struct {
	pool *pgxpool.Pool
}

func NewEventRepo(pool *pgxpool.Pool) *EventRepo {
	return &EventRepo{pool: pool}
}

func (r *EventRepo) Create(ctx context.Context, ev *domain.Event) error {
	content, err := json.Marshal(ev.Content)
	if err != nil {
		return fmt.Errorf("encoding content: %w", err)
	}

	var replacesID *string
	if target, ok := ev.ReplacesID(); ok {
		s := target.String()
		replacesID = &s
	}

	query := `
		INSERT INTO events (event_id, room_id, sender, type, content, replaces_id, origin_ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err = r.pool.Exec(ctx, query,
		ev.ID.String(), ev.RoomID.String(), ev.Sender.String(), ev.Type, content, replacesID, ev.OriginTS,
	)
	return err
}

func (r *EventRepo) GetByID(ctx context.Context, eventID id.EventID) (*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE event_id = $1`
	return scanOne(r.pool.QueryRow(ctx, query, eventID.String()))
}

func (r *EventRepo) LatestReplacement(ctx context.Context, eventID id.EventID) (*domain.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE replaces_id = $1 AND redacted_at IS NULL
		ORDER BY origin_ts DESC, seq DESC
		LIMIT 1`
	return scanOne(r.pool.QueryRow(ctx, query, eventID.String()))
}

func (r *EventRepo) ListByRoom(ctx context.Context, roomID id.RoomID, before *id.EventID, limit int) ([]domain.Event, error) {
	var query string
	var args []any

	if before != nil {
		query = fmt.Sprintf(`
			SELECT %s
			FROM events
			WHERE room_id = $1 AND replaces_id IS NULL
				AND seq < (SELECT seq FROM events WHERE event_id = $2)
			ORDER BY seq DESC
			LIMIT %d`, eventColumns, limit)
		args = []any{roomID.String(), before.String()}
	} else {
		query = fmt.Sprintf(`
			SELECT %s
			FROM events
			WHERE room_id = $1 AND replaces_id IS NULL
			ORDER BY seq DESC
			LIMIT %d`, eventColumns, limit)
		args = []any{roomID.String()}
	}

	rows, err := r.pool.Query(ctx, query, args...)
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

	// rows come newest first
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}

	return events, rows.Err()
}

// Redact marks the event redacted and strips its content.
func (r *EventRepo) Redact(ctx context.Context, eventID id.EventID, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE events SET content = '{}', redacted_at = $1 WHERE event_id = $2`, at, eventID.String())
	return err
}

func scanOne(row pgx.Row) (*domain.Event, error) {
	ev, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return ev, err
}

func scanEvent(row pgx.Row) (*domain.Event, error) {
	var ev domain.Event
	var content []byte
	if err := row.Scan(
		&ev.ID, &ev.RoomID, &ev.Sender, &ev.Type, &content, &ev.OriginTS, &ev.RedactedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(content, &ev.Content); err != nil {
		return nil, fmt.Errorf("decoding content of %s: %w", ev.ID, err)
	}
	return &ev, nil
}
