package telegram

import (
	"context"
	"time"

	tele "gopkg.in/telebot.v4"

	"digestbot/internal/storage"
	"digestbot/pkg/logx"
)

const recordTimeout = 5 * time.Second

// mediaType classifies a message's attachment for transcript rendering.
// Text-only messages return "".
func mediaType(m *tele.Message) string {
	switch {
	case m.Photo != nil:
		return "photo"
	case m.Video != nil:
		return "video"
	case m.Animation != nil:
		return "animation"
	case m.Sticker != nil:
		return "sticker"
	case m.Voice != nil:
		return "voice"
	case m.Audio != nil:
		return "audio"
	case m.Document != nil:
		return "document"
	default:
		return ""
	}
}

// recordMessage persists a group message for later summarization. The group
// row is upserted first so a group becomes known the moment it speaks.
func (b *Bot) recordMessage(m *tele.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if err := b.db.RegisterGroup(ctx, m.Chat.ID, m.Chat.Title); err != nil {
		b.log.Warn("register group failed",
			logx.Int64("group_id", m.Chat.ID), logx.Err(err))
		return
	}

	content := m.Text
	if content == "" {
		content = m.Caption
	}
	msg := storage.Message{
		MessageID:  int64(m.ID),
		GroupID:    m.Chat.ID,
		SenderID:   senderID(m),
		SenderName: displayName(m.Sender),
		IsBot:      m.Sender != nil && m.Sender.IsBot,
		Content:    content,
		Date:       time.Unix(m.Unixtime, 0).UTC(),
		MediaType:  mediaType(m),
	}
	if err := b.db.SaveMessage(ctx, msg); err != nil {
		b.log.Warn("save message failed",
			logx.Int64("group_id", m.Chat.ID),
			logx.Int64("message_id", msg.MessageID),
			logx.Err(err))
	}
}

func senderID(m *tele.Message) int64 {
	if m.Sender == nil {
		return 0
	}
	return m.Sender.ID
}
