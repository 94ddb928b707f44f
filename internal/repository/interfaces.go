package repository

import (
	"context"
	"time"

	"github.com/vedran77/replychain/internal/domain"
	"maunium.net/go/mautrix/id"
)

// EventRepository stores room events. Lookups return nil, nil when nothing
// matches.
type EventRepository interface {
	Create(ctx context.Context, ev *domain.Event) error
	GetByID(ctx context.Context, eventID id.EventID) (*domain.Event, error)
	// LatestReplacement returns the newest unredacted m.replace event that
	// targets eventID.
	LatestReplacement(ctx context.Context, eventID id.EventID) (*domain.Event, error)
	// ListByRoom returns up to limit events that are not edits, older than
	// before when it is set, in chronological order.
	ListByRoom(ctx context.Context, roomID id.RoomID, before *id.EventID, limit int) ([]domain.Event, error)
	Redact(ctx context.Context, eventID id.EventID, at time.Time) error
}
