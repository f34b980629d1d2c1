package telegram

import (
	"context"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"digestbot/internal/linuxdo"
	"digestbot/pkg/logx"
)

const unfurlTimeout = 20 * time.Second

// maybeUnfurl replies with topic cards for linux.do links in a group
// message. The fetches run in the background so polling never blocks on a
// slow forum.
func (b *Bot) maybeUnfurl(m *tele.Message) {
	global := b.cfg.Get().LinuxDo
	if !global.Enabled {
		return
	}
	text := m.Text
	if text == "" {
		text = m.Caption
	}
	urls := linuxdo.ExtractURLs(text)
	if len(urls) == 0 {
		return
	}

	groupID := m.Chat.ID
	senderID := senderID(m)
	msgID := m.ID
	b.bg.Go("linuxdo-unfurl", unfurlTimeout, func(ctx context.Context) error {
		cfg, err := b.db.GetGroupConfig(ctx, groupID)
		if err != nil || !cfg.LinuxDoEnabled {
			return nil
		}
		token := b.resolveToken(ctx, senderID, global.APIToken)

		var cards []string
		for _, u := range urls {
			topic, err := b.unfurler.Fetch(ctx, u, token)
			if err != nil {
				b.log.Debug("linuxdo fetch failed",
					logx.String("url", u), logx.Err(err))
				continue
			}
			cards = append(cards, linuxdo.Render(topic))
		}
		if len(cards) == 0 {
			return nil
		}
		_, err = b.bot.Send(&tele.Chat{ID: groupID}, strings.Join(cards, "\n\n"),
			&tele.SendOptions{
				DisableWebPagePreview: true,
				ReplyTo:               &tele.Message{ID: msgID, Chat: &tele.Chat{ID: groupID}},
			})
		return err
	})
}

// resolveToken prefers the sender's personal token over the global one.
func (b *Bot) resolveToken(ctx context.Context, senderID int64, global string) string {
	if senderID != 0 {
		token, err := b.db.GetUserToken(ctx, senderID)
		if err == nil && token != "" {
			return token
		}
	}
	return global
}
