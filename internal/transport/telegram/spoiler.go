package telegram

import (
	"context"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"digestbot/pkg/logx"
	"digestbot/pkg/tgui"
)

// albumDebounce is how long an album waits for more parts before flushing.
// Telegram delivers media-group parts as separate updates in close
// succession with no end marker.
const albumDebounce = 1500 * time.Millisecond

// maybeRedact re-sends an admin's forwarded message behind spoiler markup
// and deletes the original. Returns true when the message was consumed by
// the redaction path.
func (b *Bot) maybeRedact(c tele.Context) bool {
	m := c.Message()
	if m.Origin == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	cfg, err := b.db.GetGroupConfig(ctx, m.Chat.ID)
	if err != nil || !cfg.SpoilerEnabled {
		return false
	}
	if !b.isAdminOrOwner(m.Chat, m.Sender) {
		return false
	}

	if m.AlbumID != "" {
		b.albums.add(m)
		return true
	}
	return b.redactSingle(m)
}

func (b *Bot) isAdminOrOwner(chat *tele.Chat, user *tele.User) bool {
	if user == nil {
		return false
	}
	if b.cfg.Get().IsOwner(user.ID) {
		return true
	}
	member, err := b.bot.ChatMemberOf(chat, user)
	if err != nil {
		return false
	}
	return member.Role == tele.Creator || member.Role == tele.Administrator
}

// redactSingle handles a lone forwarded message. Photos are re-sent with
// Telegram's native media spoiler; anything else falls back to spoiler
// text, and media without any text is left alone.
func (b *Bot) redactSingle(m *tele.Message) bool {
	text := m.Text
	if text == "" {
		text = m.Caption
	}

	var err error
	switch {
	case m.Photo != nil:
		err = b.sendSpoilerPhoto(m.Chat.ID, m.Photo.FileID, text)
	case text != "":
		_, err = b.bot.Send(&tele.Chat{ID: m.Chat.ID}, tgui.Spoiler(text).String(),
			&tele.SendOptions{ParseMode: tele.ModeHTML})
	default:
		return false
	}
	if err != nil {
		b.log.Warn("spoiler redaction failed",
			logx.Int64("group_id", m.Chat.ID), logx.Err(err))
		return false
	}
	if err := b.bot.Delete(m); err != nil {
		b.log.Debug("delete original failed",
			logx.Int64("group_id", m.Chat.ID), logx.Err(err))
	}
	return true
}

// sendSpoilerPhoto goes through the raw API because the spoiler flag is a
// send parameter, not part of the media struct.
func (b *Bot) sendSpoilerPhoto(chatID int64, fileID, caption string) error {
	params := map[string]any{
		"chat_id":     chatID,
		"photo":       fileID,
		"has_spoiler": true,
	}
	if caption != "" {
		// Telegram caps captions at 1024 chars; leave room for the markup.
		params["caption"] = tgui.Spoiler(tgui.TruncRunes(caption, 900)).String()
		params["parse_mode"] = "HTML"
	}
	_, err := b.bot.Raw("sendPhoto", params)
	return err
}

// redactAlbum flushes one debounced media group: a single sendMediaGroup
// call with every part spoilered, then best-effort deletion of the
// originals.
func (b *Bot) redactAlbum(entry *albumEntry) {
	b.bg.Go("spoiler-album", 30*time.Second, func(ctx context.Context) error {
		_ = ctx
		media := make([]map[string]any, 0, len(entry.parts))
		for i, p := range entry.parts {
			item := map[string]any{
				"type":        p.kind,
				"media":       p.fileID,
				"has_spoiler": true,
			}
			if i == 0 && entry.caption != "" {
				item["caption"] = tgui.Spoiler(tgui.TruncRunes(entry.caption, 900)).String()
				item["parse_mode"] = "HTML"
			}
			media = append(media, item)
		}
		if len(media) == 0 {
			return nil
		}
		params := map[string]any{
			"chat_id": entry.groupID,
			"media":   media,
		}
		if _, err := b.bot.Raw("sendMediaGroup", params); err != nil {
			b.log.Warn("album redaction failed",
				logx.Int64("group_id", entry.groupID),
				logx.String("album_id", entry.albumID),
				logx.Err(err))
			return nil
		}
		for _, orig := range entry.originals {
			if err := b.bot.Delete(orig); err != nil {
				b.log.Debug("delete album part failed",
					logx.Int64("group_id", entry.groupID), logx.Err(err))
			}
		}
		return nil
	})
}

type albumPart struct {
	kind   string
	fileID string
}

type albumEntry struct {
	albumID   string
	groupID   int64
	caption   string
	parts     []albumPart
	originals []*tele.Message
	updated   time.Time
	timer     *time.Timer
}

// albumTable collects media-group parts until the group goes quiet for
// albumDebounce, then hands the batch to flush. A timer that fires while a
// new part is still being appended re-arms instead of flushing early: the
// fire path checks the updated watermark under the lock.
type albumTable struct {
	mu      sync.Mutex
	pending map[string]*albumEntry
	flush   func(*albumEntry)
	stopped bool
}

func (t *albumTable) add(m *tele.Message) {
	part, ok := albumPartOf(m)
	if !ok {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	if t.pending == nil {
		t.pending = make(map[string]*albumEntry)
	}
	entry := t.pending[m.AlbumID]
	if entry == nil {
		entry = &albumEntry{albumID: m.AlbumID, groupID: m.Chat.ID}
		t.pending[m.AlbumID] = entry
		id := m.AlbumID
		entry.timer = time.AfterFunc(albumDebounce, func() { t.fire(id) })
	} else {
		entry.timer.Reset(albumDebounce)
	}
	entry.parts = append(entry.parts, part)
	entry.originals = append(entry.originals, m)
	if entry.caption == "" {
		entry.caption = m.Caption
	}
	entry.updated = time.Now()
}

func (t *albumTable) fire(albumID string) {
	t.mu.Lock()
	entry := t.pending[albumID]
	if entry == nil || t.stopped {
		t.mu.Unlock()
		return
	}
	if since := time.Since(entry.updated); since < albumDebounce {
		entry.timer.Reset(albumDebounce - since)
		t.mu.Unlock()
		return
	}
	delete(t.pending, albumID)
	t.mu.Unlock()
	t.flush(entry)
}

func (t *albumTable) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	for id, entry := range t.pending {
		entry.timer.Stop()
		delete(t.pending, id)
	}
}

func albumPartOf(m *tele.Message) (albumPart, bool) {
	switch {
	case m.Photo != nil:
		return albumPart{kind: "photo", fileID: m.Photo.FileID}, true
	case m.Video != nil:
		return albumPart{kind: "video", fileID: m.Video.FileID}, true
	case m.Document != nil:
		return albumPart{kind: "document", fileID: m.Document.FileID}, true
	case m.Audio != nil:
		return albumPart{kind: "audio", fileID: m.Audio.FileID}, true
	default:
		return albumPart{}, false
	}
}
