package domain

import (
	"encoding/json"

	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// RelationState distinguishes a missing m.relates_to block from one that is
// present without a reply target.
type RelationState int

const (
	RelationAbsent RelationState = iota
	RelationEmpty
	RelationReply
)

func (s RelationState) String() string {
	switch s {
	case RelationAbsent:
		return "absent"
	case RelationEmpty:
		return "empty"
	case RelationReply:
		return "reply"
	default:
		return "unknown"
	}
}

// Relation is the m.relates_to block of an event's content.
type Relation struct {
	present   bool
	inReplyTo id.EventID

	// RelType and EventID describe a non-reply relation such as m.replace.
	RelType event.RelationType
	EventID id.EventID

	// extra holds keys of the block that are not interpreted here, such as
	// is_falling_back on threads.
	extra map[string]json.RawMessage
}

// NoRelation returns a relation whose key is missing from the content.
func NoRelation() Relation {
	return Relation{}
}

// EmptyRelation returns a present relation without a reply target. Placed in
// an edit's new content it clears the reply of the original event.
func EmptyRelation() Relation {
	return Relation{present: true}
}

// ReplyTo returns a relation pointing at parentID through m.in_reply_to.
func ReplyTo(parentID id.EventID) Relation {
	if parentID == "" {
		return EmptyRelation()
	}
	return Relation{present: true, inReplyTo: parentID}
}

// ReplaceOf returns the m.replace relation carried by an edit event.
func ReplaceOf(eventID id.EventID) Relation {
	return Relation{present: true, RelType: event.RelReplace, EventID: eventID}
}

func (r Relation) State() RelationState {
	switch {
	case !r.present:
		return RelationAbsent
	case r.inReplyTo == "":
		return RelationEmpty
	default:
		return RelationReply
	}
}

func (r Relation) Present() bool {
	return r.present
}

// ReplyTarget returns the in-reply-to event id, if any.
func (r Relation) ReplyTarget() (id.EventID, bool) {
	switch r.State() {
	case RelationReply:
		return r.inReplyTo, true
	case RelationAbsent, RelationEmpty:
		return "", false
	default:
		return "", false
	}
}

// Replaces returns the id of the event this relation edits.
func (r Relation) Replaces() (id.EventID, bool) {
	if r.present && r.RelType == event.RelReplace && r.EventID != "" {
		return r.EventID, true
	}
	return "", false
}

func (r Relation) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.extra)+3)
	for k, v := range r.extra {
		out[k] = v
	}
	if r.inReplyTo != "" {
		out["m.in_reply_to"] = event.InReplyTo{EventID: r.inReplyTo}
	}
	if r.RelType != "" {
		out["rel_type"] = r.RelType
	}
	if r.EventID != "" {
		out["event_id"] = r.EventID
	}
	return json.Marshal(out)
}

func (r *Relation) UnmarshalJSON(data []byte) error {
	*r = decodeRelation(data)
	return nil
}

// decodeRelation is only called for a key that is present, so the result is
// never absent. Anything that does not look like a reply degrades to an empty
// relation instead of failing. Values that cannot be read are kept verbatim.
func decodeRelation(data json.RawMessage) Relation {
	rel := Relation{present: true}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return rel
	}

	for key, raw := range fields {
		switch key {
		case "rel_type":
			if s, ok := decodeString(raw); ok {
				rel.RelType = event.RelationType(s)
				continue
			}
		case "event_id":
			if s, ok := decodeString(raw); ok {
				rel.EventID = id.EventID(s)
				continue
			}
		case "m.in_reply_to":
			var reply map[string]json.RawMessage
			if err := json.Unmarshal(raw, &reply); err == nil {
				if s, ok := decodeString(reply["event_id"]); ok && s != "" {
					rel.inReplyTo = id.EventID(s)
					continue
				}
			}
		}
		rel.keep(key, raw)
	}

	return rel
}

func (r *Relation) keep(key string, raw json.RawMessage) {
	if r.extra == nil {
		r.extra = make(map[string]json.RawMessage)
	}
	r.extra[key] = raw
}

func decodeString(raw json.RawMessage) (string, bool) {
	if raw == nil {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func stringField(fields map[string]json.RawMessage, key string) string {
	s, _ := decodeString(fields[key])
	return s
}
