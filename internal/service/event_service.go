package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vedran77/replychain/internal/domain"
	"github.com/vedran77/replychain/internal/repository"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

var (
	ErrEventNotFound     = errors.New("event not found")
	ErrNotEventSender    = errors.New("only the event sender can perform this action")
	ErrParentNotFound    = errors.New("reply parent not found")
	ErrParentInOtherRoom = errors.New("reply parent belongs to another room")
	ErrCannotEditEdit    = errors.New("an edit event cannot be edited")
	ErrEventRedacted     = errors.New("event has been redacted")
)

const (
	defaultListLimit  = 50
	maxListLimit      = 100
	defaultChainDepth = 10
	maxChainDepth     = 50
)

// Notifier broadcasts real-time events to connected clients.
type Notifier interface {
	NotifyNewEvent(view *domain.EventView)
	NotifyEditedEvent(view *domain.EventView)
	NotifyRedactedEvent(roomID id.RoomID, eventID id.EventID)
}

type EventService struct {
	eventRepo repository.EventRepository
	notifier  Notifier
}

func NewEventService(eventRepo repository.EventRepository) *EventService {
	return &EventService{eventRepo: eventRepo}
}

// SetNotifier sets the real-time notifier (optional dependency).
func (s *EventService) SetNotifier(n Notifier) {
	s.notifier = n
}

type SendEventInput struct {
	Body      string            `json:"body"`
	MsgType   event.MessageType `json:"msgtype,omitempty"`
	InReplyTo id.EventID        `json:"in_reply_to,omitempty"`
}

// ReplyPatch is the reply change requested by an edit. Set is false when the
// field was left out, which keeps the original reply. A null or empty value
// clears it.
type ReplyPatch struct {
	Set     bool
	EventID id.EventID
}

func (p *ReplyPatch) UnmarshalJSON(data []byte) error {
	p.Set = true
	p.EventID = ""
	if string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, &p.EventID)
}

func (p ReplyPatch) MarshalJSON() ([]byte, error) {
	if !p.Set || p.EventID == "" {
		return []byte("null"), nil
	}
	return json.Marshal(p.EventID)
}

type EditEventInput struct {
	Body    string            `json:"body"`
	MsgType event.MessageType `json:"msgtype,omitempty"`
	Reply   ReplyPatch        `json:"reply"`
}

type EventListResponse struct {
	Events  []domain.EventView `json:"events"`
	HasMore bool               `json:"has_more"`
}

type ReplyChainResponse struct {
	Events []domain.EventView `json:"events"`
	// MissingEventID is set when the chain ends at a parent that is not stored.
	MissingEventID id.EventID `json:"missing_event_id,omitempty"`
	// HasMore is set when the depth limit cut the chain short.
	HasMore bool `json:"has_more"`
}

func (s *EventService) Send(ctx context.Context, sender id.UserID, roomID id.RoomID, input SendEventInput) (*domain.EventView, error) {
	msgType := input.MsgType
	if msgType == "" {
		msgType = event.MsgText
	}

	content := domain.Content{MsgType: msgType, Body: input.Body}
	if input.InReplyTo != "" {
		parent, err := s.loadParent(ctx, roomID, input.InReplyTo)
		if err != nil {
			return nil, err
		}
		content.Body = domain.ReplyFallbackBody(parent, input.Body)
		content.RelatesTo = domain.ReplyTo(parent.ID)
	}

	ev := &domain.Event{
		ID:       domain.NewEventID(),
		RoomID:   roomID,
		Sender:   sender,
		Type:     domain.EventTypeMessage,
		Content:  content,
		OriginTS: time.Now().UnixMilli(),
	}

	if err := s.eventRepo.Create(ctx, ev); err != nil {
		return nil, fmt.Errorf("creating event: %w", err)
	}

	view := domain.NewEventView(ev)
	if s.notifier != nil {
		s.notifier.NotifyNewEvent(&view)
	}

	return &view, nil
}

func (s *EventService) Edit(ctx context.Context, sender id.UserID, eventID id.EventID, input EditEventInput) (*domain.EventView, error) {
	original, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if original == nil {
		return nil, ErrEventNotFound
	}
	if original.Sender != sender {
		return nil, ErrNotEventSender
	}
	if original.IsRedacted() {
		return nil, ErrEventRedacted
	}
	if _, isEdit := original.ReplacesID(); isEdit {
		return nil, ErrCannotEditEdit
	}

	msgType := input.MsgType
	if msgType == "" {
		msgType = original.Content.MsgType
	}
	if msgType == "" {
		msgType = event.MsgText
	}

	newContent := domain.Content{MsgType: msgType, Body: input.Body}
	if input.Reply.Set {
		if input.Reply.EventID == "" {
			newContent.RelatesTo = domain.EmptyRelation()
		} else {
			parent, err := s.loadParent(ctx, original.RoomID, input.Reply.EventID)
			if err != nil {
				return nil, err
			}
			newContent.RelatesTo = domain.ReplyTo(parent.ID)
		}
	}

	edit := &domain.Event{
		ID:     domain.NewEventID(),
		RoomID: original.RoomID,
		Sender: sender,
		Type:   domain.EventTypeMessage,
		Content: domain.Content{
			MsgType:    msgType,
			Body:       domain.EditFallbackBody(input.Body),
			RelatesTo:  domain.ReplaceOf(original.ID),
			NewContent: &newContent,
		},
		OriginTS: time.Now().UnixMilli(),
	}

	if err := s.eventRepo.Create(ctx, edit); err != nil {
		return nil, fmt.Errorf("creating edit: %w", err)
	}

	view, err := s.Get(ctx, original.ID)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.NotifyEditedEvent(view)
	}

	return view, nil
}

func (s *EventService) Redact(ctx context.Context, sender id.UserID, eventID id.EventID) error {
	ev, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return err
	}
	if ev == nil {
		return ErrEventNotFound
	}
	if ev.Sender != sender {
		return ErrNotEventSender
	}
	if ev.IsRedacted() {
		return nil
	}

	if err := s.eventRepo.Redact(ctx, eventID, time.Now()); err != nil {
		return fmt.Errorf("redacting event: %w", err)
	}

	if s.notifier != nil {
		s.notifier.NotifyRedactedEvent(ev.RoomID, eventID)
	}

	return nil
}

// Get returns the event merged with its latest edit.
func (s *EventService) Get(ctx context.Context, eventID id.EventID) (*domain.EventView, error) {
	ev, err := s.load(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if ev == nil {
		return nil, ErrEventNotFound
	}

	view := domain.NewEventView(ev)
	return &view, nil
}

// ParentEventID resolves the reply parent of an event, taking its latest
// edit into account.
func (s *EventService) ParentEventID(ctx context.Context, eventID id.EventID) (id.EventID, bool, error) {
	ev, err := s.load(ctx, eventID)
	if err != nil {
		return "", false, err
	}
	if ev == nil {
		return "", false, ErrEventNotFound
	}

	parent, ok := domain.ParentEventID(ev)
	return parent, ok, nil
}

// List returns a page of roomID's timeline. A before cursor must name an
// event of the same room.
func (s *EventService) List(ctx context.Context, roomID id.RoomID, before *id.EventID, limit int) (*EventListResponse, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}

	if before != nil {
		cursor, err := s.eventRepo.GetByID(ctx, *before)
		if err != nil {
			return nil, err
		}
		if cursor == nil || cursor.RoomID != roomID {
			return nil, fmt.Errorf("before cursor %s: %w", *before, ErrEventNotFound)
		}
	}

	// fetch one extra to know whether older events exist
	events, err := s.eventRepo.ListByRoom(ctx, roomID, before, limit+1)
	if err != nil {
		return nil, err
	}

	hasMore := len(events) > limit
	if hasMore {
		events = events[len(events)-limit:]
	}

	views := make([]domain.EventView, 0, len(events))
	for i := range events {
		ev := &events[i]
		if err := s.attachReplacement(ctx, ev); err != nil {
			return nil, err
		}
		views = append(views, domain.NewEventView(ev))
	}

	return &EventListResponse{
		Events:  views,
		HasMore: hasMore,
	}, nil
}

// ReplyChain walks reply parents starting from eventID's parent, nearest
// first. It stops at a parent that is not stored, at a cycle, or after
// maxDepth parents.
func (s *EventService) ReplyChain(ctx context.Context, eventID id.EventID, maxDepth int) (*ReplyChainResponse, error) {
	if maxDepth <= 0 {
		maxDepth = defaultChainDepth
	}
	if maxDepth > maxChainDepth {
		maxDepth = maxChainDepth
	}

	current, err := s.load(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrEventNotFound
	}

	resp := &ReplyChainResponse{Events: []domain.EventView{}}
	seen := map[id.EventID]struct{}{current.ID: {}}

	for {
		parentID, ok := domain.ParentEventID(current)
		if !ok {
			break
		}
		if _, loop := seen[parentID]; loop {
			break
		}
		if len(resp.Events) == maxDepth {
			resp.HasMore = true
			break
		}

		parent, err := s.load(ctx, parentID)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			resp.MissingEventID = parentID
			break
		}

		seen[parentID] = struct{}{}
		resp.Events = append(resp.Events, domain.NewEventView(parent))
		current = parent
	}

	return resp, nil
}

// load fetches an event and attaches its latest edit.
func (s *EventService) load(ctx context.Context, eventID id.EventID) (*domain.Event, error) {
	ev, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil || ev == nil {
		return nil, err
	}
	if err := s.attachReplacement(ctx, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

func (s *EventService) attachReplacement(ctx context.Context, ev *domain.Event) error {
	if ev.IsRedacted() {
		return nil
	}
	latest, err := s.eventRepo.LatestReplacement(ctx, ev.ID)
	if err != nil {
		return fmt.Errorf("loading edits of %s: %w", ev.ID, err)
	}
	ev.MakeReplaced(latest)
	return nil
}

func (s *EventService) loadParent(ctx context.Context, roomID id.RoomID, parentID id.EventID) (*domain.Event, error) {
	parent, err := s.load(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, ErrParentNotFound
	}
	if parent.RoomID != roomID {
		return nil, ErrParentInOtherRoom
	}
	return parent, nil
}
