package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/vedran77/replychain/internal/service"
	"github.com/vedran77/replychain/internal/transport/http/middleware"
	"github.com/vedran77/replychain/pkg/validator"
	"maunium.net/go/mautrix/id"
)

type EventHandler struct {
	eventService *service.EventService
}

func NewEventHandler(eventService *service.EventService) *EventHandler {
	return &EventHandler{eventService: eventService}
}

type parentResponse struct {
	EventID       id.EventID  `json:"event_id"`
	ParentEventID *id.EventID `json:"parent_event_id"`
}

func (h *EventHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	roomID := id.RoomID(r.PathValue("roomID"))
	if !validator.ValidRoomID(roomID) {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid room ID")
		return
	}

	var input service.SendEventInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if errs := validator.ValidateSendEvent(input.Body, input.MsgType, input.InReplyTo); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	view, err := h.eventService.Send(r.Context(), userID, roomID, input)
	if err != nil {
		writeServiceError(w, "send event", err)
		return
	}

	writeJSON(w, http.StatusCreated, view)
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	roomID := id.RoomID(r.PathValue("roomID"))
	if !validator.ValidRoomID(roomID) {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid room ID")
		return
	}

	var before *id.EventID
	if beforeStr := id.EventID(r.URL.Query().Get("before")); beforeStr != "" {
		if !validator.ValidEventID(beforeStr) {
			writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid before cursor")
			return
		}
		before = &beforeStr
	}

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	resp, err := h.eventService.List(r.Context(), roomID, before, limit)
	if err != nil {
		writeServiceError(w, "list events", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathEventID(w, r)
	if !ok {
		return
	}

	view, err := h.eventService.Get(r.Context(), eventID)
	if err != nil {
		writeServiceError(w, "get event", err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

func (h *EventHandler) Parent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathEventID(w, r)
	if !ok {
		return
	}

	parent, found, err := h.eventService.ParentEventID(r.Context(), eventID)
	if err != nil {
		writeServiceError(w, "resolve parent", err)
		return
	}

	resp := parentResponse{EventID: eventID}
	if found {
		resp.ParentEventID = &parent
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *EventHandler) Chain(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathEventID(w, r)
	if !ok {
		return
	}

	depth := 0
	if depthStr := r.URL.Query().Get("depth"); depthStr != "" {
		d, err := strconv.Atoi(depthStr)
		if err != nil || d < 0 {
			writeError(w, http.StatusBadRequest, "INVALID_DEPTH", "Depth must be a non-negative integer")
			return
		}
		depth = d
	}

	resp, err := h.eventService.ReplyChain(r.Context(), eventID, depth)
	if err != nil {
		writeServiceError(w, "reply chain", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *EventHandler) Edit(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	eventID, ok := pathEventID(w, r)
	if !ok {
		return
	}

	var input service.EditEventInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if errs := validator.ValidateEditEvent(input.Body, input.MsgType, input.Reply.EventID); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	view, err := h.eventService.Edit(r.Context(), userID, eventID, input)
	if err != nil {
		writeServiceError(w, "edit event", err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

func (h *EventHandler) Redact(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	eventID, ok := pathEventID(w, r)
	if !ok {
		return
	}

	if err := h.eventService.Redact(r.Context(), userID, eventID); err != nil {
		writeServiceError(w, "redact event", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func pathEventID(w http.ResponseWriter, r *http.Request) (id.EventID, bool) {
	eventID := id.EventID(r.PathValue("eventID"))
	if !validator.ValidEventID(eventID) {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid event ID")
		return "", false
	}
	return eventID, true
}
