package bot

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/format"
	"maunium.net/go/mautrix/id"

	"github.com/nestorlabs/nestor/pkg/threads"
)

// setTyping signals or clears the composing indicator. Failures are logged
// and ignored, the indicator expires server-side on its own.
func (b *Bot) setTyping(ctx context.Context, roomID id.RoomID, typing bool) {
	var timeout time.Duration
	if typing {
		timeout = typingTimeout
	}
	if _, err := b.api.UserTyping(ctx, roomID, typing, timeout); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Bool("typing", typing).Msg("Failed to set typing indicator")
	}
}

// replyInThread sends text as a notice in the trigger's thread, rendered as
// Markdown. When the trigger already sits in a thread the reply roots there,
// so a conversation stays in a single thread.
func (b *Bot) replyInThread(ctx context.Context, evt *event.Event, text string) {
	content := format.RenderMarkdown(text, true, false)
	content.MsgType = event.MsgNotice

	root := threads.Root(evt)
	if root == "" {
		root = evt.ID
	}
	content.RelatesTo = &event.RelatesTo{
		Type:          event.RelThread,
		EventID:       root,
		IsFallingBack: true,
		InReplyTo:     &event.InReplyTo{EventID: evt.ID},
	}

	if _, err := b.api.SendMessageEvent(ctx, evt.RoomID, event.EventMessage, &content); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to send reply")
	}
}
