package bot

import (
	"context"

	"github.com/rs/xid"
	"maunium.net/go/mautrix/event"
)

func (b *Bot) handleMessage(ctx context.Context, evt *event.Event) {
	if evt.Sender == b.self {
		return
	}
	log := b.log.With().
		Str("request_id", xid.New().String()).
		Stringer("room_id", evt.RoomID).
		Stringer("event_id", evt.ID).
		Stringer("sender", evt.Sender).
		Logger()
	log.Debug().Str("body", evt.Content.AsMessage().Body).Msg("Incoming message")

	b.respond(log.WithContext(ctx), evt)
}

// handleMembership auto-joins rooms the bot is invited to. Invites for other
// users are ignored.
func (b *Bot) handleMembership(ctx context.Context, evt *event.Event) {
	if evt.GetStateKey() != string(b.self) {
		return
	}
	if evt.Content.AsMember().Membership != event.MembershipInvite {
		return
	}
	if _, err := b.api.JoinRoomByID(ctx, evt.RoomID); err != nil {
		b.log.Error().Err(err).Stringer("room_id", evt.RoomID).Msg("Failed to join room")
		return
	}
	b.log.Info().Stringer("room_id", evt.RoomID).Msg("Joined room")
}
