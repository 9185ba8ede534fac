package threads

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix/crypto"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/nestorlabs/nestor/pkg/mention"
)

// DefaultHistoryLimit caps how many thread replies are fetched for context
// when no limit is configured.
const DefaultHistoryLimit = 10

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one prior message of a thread, reduced to what the reasoning
// agent needs. Turn sequences are rebuilt from fresh fetches for every
// incoming message and never cached.
type Turn struct {
	Role Role
	Text string
}

// Source is the slice of the protocol client the history builder consumes.
type Source interface {
	// Event fetches a single event by ID.
	Event(ctx context.Context, roomID id.RoomID, eventID id.EventID) (*event.Event, error)
	// Relations fetches one page of events related to parentID.
	Relations(ctx context.Context, roomID id.RoomID, parentID id.EventID, req ReqRelations) (*RespRelations, error)
	// Decrypt returns the plaintext form of an encrypted event. Missing
	// megolm sessions are reported with crypto.NoSessionFound.
	Decrypt(ctx context.Context, evt *event.Event) (*event.Event, error)
}

// Builder assembles thread context for incoming messages.
type Builder struct {
	src   Source
	self  id.UserID
	limit int
}

func NewBuilder(src Source, self id.UserID, limit int) *Builder {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &Builder{src: src, self: self, limit: limit}
}

// History returns the prior turns of the thread evt belongs to, root first
// and then replies oldest to newest. A non-threaded evt yields no turns,
// and the trigger event itself is never part of the result. A failed root
// fetch degrades to history without the root; a failed reply fetch
// propagates so the caller can decide to reply without context.
func (b *Builder) History(ctx context.Context, evt *event.Event) ([]Turn, error) {
	rootID := Root(evt)
	if rootID == "" {
		return nil, nil
	}
	log := zerolog.Ctx(ctx).With().Stringer("thread_root", rootID).Logger()

	var ordered []*event.Event
	root, err := b.src.Event(ctx, evt.RoomID, rootID)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to fetch thread root, continuing without it")
	} else {
		ordered = append(ordered, root)
	}

	page, err := b.src.Relations(ctx, evt.RoomID, rootID, ReqRelations{
		RelType: event.RelThread,
		Limit:   b.limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch thread replies: %w", err)
	}
	// The backward page is newest first; flip it so the turns read oldest
	// first behind the root.
	for i := len(page.Events) - 1; i >= 0; i-- {
		ordered = append(ordered, page.Events[i])
	}

	turns := make([]Turn, 0, len(ordered))
	var missingSessions, undecryptable int
	for _, raw := range ordered {
		if raw == nil || raw.ID == evt.ID {
			continue
		}
		decrypted, err := b.decryptIfNeeded(ctx, raw)
		if err != nil {
			if errors.Is(err, crypto.NoSessionFound) {
				missingSessions++
				log.Debug().Stringer("event_id", raw.ID).Msg("Skipping event: missing decryption session")
			} else {
				undecryptable++
				log.Warn().Err(err).Stringer("event_id", raw.ID).Msg("Failed to decrypt event")
			}
			continue
		}
		if turn, ok := b.turnFor(decrypted); ok {
			turns = append(turns, turn)
		}
	}
	if missingSessions > 0 || undecryptable > 0 {
		log.Debug().
			Int("missing_sessions", missingSessions).
			Int("undecryptable", undecryptable).
			Int("turns", len(turns)).
			Msg("Built thread history with decryption gaps")
	}
	return turns, nil
}

func (b *Builder) decryptIfNeeded(ctx context.Context, evt *event.Event) (*event.Event, error) {
	if evt.Type != event.EventEncrypted {
		return evt, nil
	}
	return b.src.Decrypt(ctx, evt)
}

// turnFor reduces a decrypted event to a conversation turn. Events without
// a textual body produce none.
func (b *Builder) turnFor(evt *event.Event) (Turn, bool) {
	if evt.Type != event.EventMessage {
		return Turn{}, false
	}
	if evt.Content.Parsed == nil {
		if err := evt.Content.ParseRaw(evt.Type); err != nil {
			return Turn{}, false
		}
	}
	body := evt.Content.AsMessage().Body
	if body == "" {
		return Turn{}, false
	}
	if evt.Sender == b.self {
		return Turn{Role: RoleAssistant, Text: body}, true
	}
	// Strip the mention prefix so stored history reads naturally.
	text := mention.ExtractPrompt(body, b.self)
	if text == "" {
		return Turn{}, false
	}
	return Turn{Role: RoleUser, Text: text}, true
}

// Root returns the thread root evt replies to, or "" when evt is not part
// of a thread. Other relation kinds do not count as thread membership.
func Root(evt *event.Event) id.EventID {
	rel := evt.Content.AsMessage().RelatesTo
	if rel == nil {
		return ""
	}
	return rel.GetThreadParent()
}
