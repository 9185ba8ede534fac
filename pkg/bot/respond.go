package bot

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/nestorlabs/nestor/pkg/mention"
)

const (
	// helpReply is sent when the bot is mentioned without a prompt.
	helpReply = "Hi! Mention me with a message."
	// fallbackReply is sent when the agent fails. The room never gets
	// silence after the typing indicator acknowledged a request.
	fallbackReply = "Sorry, I encountered an error processing your request."

	typingTimeout = 30 * time.Second
)

// respond runs the mention gate and, if it passes, answers evt in a thread.
func (b *Bot) respond(ctx context.Context, evt *event.Event) {
	log := zerolog.Ctx(ctx)

	direct := b.isDirectRoom(ctx, evt.RoomID)
	if !mention.ShouldRespond(evt, b.self, direct) {
		return
	}

	prompt := mention.ExtractPrompt(evt.Content.AsMessage().Body, b.self)
	if prompt == "" {
		b.replyInThread(ctx, evt, helpReply)
		return
	}

	history, err := b.history.History(ctx, evt)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to build thread history, continuing without it")
		history = nil
	}

	b.setTyping(ctx, evt.RoomID, true)
	reply := fallbackReply
	if answer, err := b.agent.Run(ctx, prompt, history); err != nil {
		log.Error().Err(err).Msg("Failed to get AI response")
	} else {
		reply = answer
	}
	b.setTyping(ctx, evt.RoomID, false)
	b.replyInThread(ctx, evt, reply)
}

// isDirectRoom reports whether the room has exactly two joined members.
// Lookup failures count as not direct so that group-room mention rules apply.
func (b *Bot) isDirectRoom(ctx context.Context, roomID id.RoomID) bool {
	members, err := b.api.JoinedMembers(ctx, roomID)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("Failed to fetch joined members")
		return false
	}
	return len(members.Joined) == 2
}
