package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"
	"github.com/vedran77/replychain/internal/service"
	"github.com/vedran77/replychain/pkg/validator"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

func writeValidationErrors(w http.ResponseWriter, errs validator.ValidationErrors) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error": map[string]any{
			"code":    "VALIDATION_ERROR",
			"message": "Invalid input",
			"fields":  errs,
		},
	})
}

// writeServiceError maps service errors to responses; anything unknown is
// logged and reported as INTERNAL.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrEventNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Event not found")
	case errors.Is(err, service.ErrParentNotFound):
		writeError(w, http.StatusNotFound, "PARENT_NOT_FOUND", "Reply parent not found")
	case errors.Is(err, service.ErrParentInOtherRoom):
		writeError(w, http.StatusBadRequest, "PARENT_IN_OTHER_ROOM", "Reply parent belongs to another room")
	case errors.Is(err, service.ErrNotEventSender):
		writeError(w, http.StatusForbidden, "FORBIDDEN", "You can only change your own events")
	case errors.Is(err, service.ErrCannotEditEdit):
		writeError(w, http.StatusBadRequest, "CANNOT_EDIT_EDIT", "Edit the original event instead")
	case errors.Is(err, service.ErrEventRedacted):
		writeError(w, http.StatusGone, "REDACTED", "Event has been redacted")
	default:
		log.WithError(err).WithField("op", op).Error("request failed")
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
	}
}
