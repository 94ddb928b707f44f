package domain

import (
	"encoding/json"

	"maunium.net/go/mautrix/event"
)

// Content is the content of an m.room.message event. Top-level keys this
// package does not interpret are kept in Extra and written back unchanged;
// the same holds inside m.relates_to.
//
// mautrix's MessageEventContent decodes m.relates_to into a pointer, which
// cannot tell a missing block from a null one, so the relation is decoded by
// hand.
type Content struct {
	MsgType   event.MessageType
	Body      string
	RelatesTo Relation
	// NewContent is the m.new_content payload of an edit event.
	NewContent *Content
	Extra      map[string]json.RawMessage
}

func (c Content) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(c.Extra)+4)
	for k, v := range c.Extra {
		out[k] = v
	}
	if c.MsgType != "" {
		out["msgtype"] = c.MsgType
	}
	if c.Body != "" {
		out["body"] = c.Body
	}
	if c.RelatesTo.Present() {
		out["m.relates_to"] = c.RelatesTo
	}
	if c.NewContent != nil {
		out["m.new_content"] = c.NewContent
	}
	return json.Marshal(out)
}

func (c *Content) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*c = Content{}
	for key, val := range raw {
		switch key {
		case "msgtype":
			c.MsgType = event.MessageType(stringField(raw, key))
		case "body":
			c.Body = stringField(raw, key)
		case "m.relates_to":
			c.RelatesTo = decodeRelation(val)
		case "m.new_content":
			var nc Content
			if err := json.Unmarshal(val, &nc); err == nil && string(val) != "null" {
				c.NewContent = &nc
			}
		default:
			if c.Extra == nil {
				c.Extra = make(map[string]json.RawMessage)
			}
			c.Extra[key] = val
		}
	}
	return nil
}
