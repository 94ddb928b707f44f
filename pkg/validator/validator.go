package validator

import (
	"regexp"
	"strings"

	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

type ValidationErrors map[string]string

func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

func (v ValidationErrors) Add(field, message string) {
	v[field] = message
}

const (
	maxIDLength   = 255
	maxBodyLength = 65536
)

var (
	roomIDRegex  = regexp.MustCompile(`^![^:\s]+:[A-Za-z0-9.\-]+(:[0-9]{1,5})?$`)
	eventIDRegex = regexp.MustCompile(`^\$[^\s]+$`)

	allowedMsgTypes = map[event.MessageType]bool{
		event.MsgText:   true,
		event.MsgNotice: true,
		event.MsgEmote:  true,
	}
)

// ValidUserID accepts user ids with a lowercase localpart and a server name.
func ValidUserID(userID id.UserID) bool {
	_, homeserver, err := userID.ParseAndValidate()
	return err == nil && homeserver != ""
}

func ValidRoomID(roomID id.RoomID) bool {
	return len(roomID) <= maxIDLength && roomIDRegex.MatchString(string(roomID))
}

func ValidEventID(eventID id.EventID) bool {
	return len(eventID) <= maxIDLength && eventIDRegex.MatchString(string(eventID))
}

func ValidateSendEvent(body string, msgType event.MessageType, inReplyTo id.EventID) ValidationErrors {
	errs := make(ValidationErrors)

	validateBody(body, errs)
	validateMsgType(msgType, errs)

	if inReplyTo != "" && !ValidEventID(inReplyTo) {
		errs.Add("in_reply_to", "Invalid event ID")
	}

	return errs
}

// ValidateEditEvent checks an edit; an empty reply means "no change" or
// "clear" and is always valid.
func ValidateEditEvent(body string, msgType event.MessageType, reply id.EventID) ValidationErrors {
	errs := make(ValidationErrors)

	validateBody(body, errs)
	validateMsgType(msgType, errs)

	if reply != "" && !ValidEventID(reply) {
		errs.Add("reply", "Invalid event ID")
	}

	return errs
}

func validateBody(body string, errs ValidationErrors) {
	if strings.TrimSpace(body) == "" {
		errs.Add("body", "Message body is required")
	} else if len(body) > maxBodyLength {
		errs.Add("body", "Message body is too long")
	}
}

func validateMsgType(msgType event.MessageType, errs ValidationErrors) {
	if msgType != "" && !allowedMsgTypes[msgType] {
		errs.Add("msgtype", "Message type must be m.text, m.notice, or m.emote")
	}
}
