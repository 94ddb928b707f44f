package domain

import (
	"strings"

	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// ParentEventID returns the id of the event ev replies to. The relation of
// the latest edit's new content wins whenever that content has an
// m.relates_to key at all, so an edit can move or clear a reply. Without such
// a key the original event's relation applies.
func ParentEventID(ev *Event) (id.EventID, bool) {
	if ev == nil || ev.IsRedacted() {
		return "", false
	}
	return EffectiveRelation(ev).ReplyTarget()
}

// EffectiveRelation returns the relation block that decides ev's reply parent.
// A redacted edit is ignored, as it is for display.
func EffectiveRelation(ev *Event) Relation {
	if edit := ev.activeEdit(); edit != nil {
		if rel := edit.Content.NewContent.RelatesTo; rel.Present() {
			return rel
		}
	}
	return ev.Content.RelatesTo
}

// PlainBody returns the body of content without a quoted reply fallback.
func PlainBody(content Content) string {
	return event.TrimReplyFallbackText(content.Body)
}

// ReplyFallbackBody quotes parent above body the way clients without reply
// support expect to see it.
func ReplyFallbackBody(parent *Event, body string) string {
	lines := strings.Split(PlainBody(parent.DisplayContent()), "\n")

	var b strings.Builder
	b.WriteString("> <" + parent.Sender.String() + "> " + lines[0] + "\n")
	for _, line := range lines[1:] {
		b.WriteString("> " + line + "\n")
	}
	b.WriteString("\n")
	b.WriteString(body)
	return b.String()
}

// EditFallbackBody is the outer body of an edit event.
func EditFallbackBody(body string) string {
	return "* " + body
}
