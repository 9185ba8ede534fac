// Package mention decides whether an incoming room message is addressed to
// the bot and extracts the effective prompt from it. Everything here is pure
// string logic so the gate can be tested without a homeserver.
package mention

import (
	"strings"
	"unicode"

	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// Tokens are the literal prefixes that address the bot in a group room. The
// bot's own user ID is always recognized in addition to these.
var Tokens = []string{"!nestor", "!n"}

// ShouldRespond reports whether evt warrants a reply. The bot never answers
// itself. In a direct room every other message qualifies; in group rooms the
// body has to start with a mention token.
func ShouldRespond(evt *event.Event, self id.UserID, directRoom bool) bool {
	if evt.Sender == self {
		return false
	}
	if directRoom {
		return true
	}
	return Mentioned(evt.Content.AsMessage().Body, self)
}

// Mentioned reports whether body starts with one of the recognized mention
// tokens or the bot's user ID. Matching is case-insensitive and a plain
// prefix check with no word boundary, mirroring how users actually type the
// trigger.
func Mentioned(body string, self id.UserID) bool {
	lower := strings.ToLower(body)
	for _, token := range Tokens {
		if strings.HasPrefix(lower, token) {
			return true
		}
	}
	return self != "" && strings.HasPrefix(lower, strings.ToLower(string(self)))
}

// ExtractPrompt returns the text the agent should see: with a leading
// mention token the first word is dropped and the remainder trimmed,
// otherwise the whole body is returned trimmed. A bare mention yields the
// empty string.
func ExtractPrompt(body string, self id.UserID) string {
	if !Mentioned(body, self) {
		return strings.TrimSpace(body)
	}
	idx := strings.IndexFunc(body, unicode.IsSpace)
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(body[idx:])
}
