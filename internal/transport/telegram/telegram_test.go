package telegram

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"

	"digestbot/internal/storage"
	"digestbot/pkg/logx"
)

func TestMediaType(t *testing.T) {
	cases := []struct {
		name string
		msg  *tele.Message
		want string
	}{
		{"text", &tele.Message{Text: "hi"}, ""},
		{"photo", &tele.Message{Photo: &tele.Photo{}}, "photo"},
		{"video", &tele.Message{Video: &tele.Video{}}, "video"},
		{"sticker", &tele.Message{Sticker: &tele.Sticker{}}, "sticker"},
		{"voice", &tele.Message{Voice: &tele.Voice{}}, "voice"},
		{"document", &tele.Message{Document: &tele.Document{}}, "document"},
	}
	for _, tc := range cases {
		if got := mediaType(tc.msg); got != tc.want {
			t.Errorf("%s: mediaType = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestDisplayName(t *testing.T) {
	cases := []struct {
		user *tele.User
		want string
	}{
		{nil, "Unknown"},
		{&tele.User{FirstName: "张", LastName: "三"}, "张 三"},
		{&tele.User{FirstName: "Solo"}, "Solo"},
		{&tele.User{Username: "handle"}, "handle"},
		{&tele.User{ID: 42}, "user42"},
	}
	for _, tc := range cases {
		if got := displayName(tc.user); got != tc.want {
			t.Errorf("displayName(%+v) = %q, want %q", tc.user, got, tc.want)
		}
	}
}

func TestRenderStatusEscapesName(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	cfg := storage.GroupConfig{
		GroupID:            -100,
		GroupName:          "dev <chat>",
		Enabled:            true,
		Schedule:           "0 * * * *",
		LeaderboardWindow:  "24h",
		LastSummaryTime:    &at,
		LeaderboardEnabled: true,
	}
	out := renderStatus(cfg).String()
	if strings.Contains(out, "<chat>") {
		t.Fatalf("group name not escaped: %q", out)
	}
	if !strings.Contains(out, "dev &lt;chat&gt;") {
		t.Errorf("escaped name missing: %q", out)
	}
	if !strings.Contains(out, "0 * * * *") {
		t.Errorf("schedule missing: %q", out)
	}
	if !strings.Contains(out, "2026-03-01 10:00 UTC") {
		t.Errorf("last summary time missing: %q", out)
	}
	if !strings.Contains(out, "从未") {
		t.Errorf("never-ran marker missing: %q", out)
	}
}

func albumMsg(albumID string, chatID int64, msgID int, caption string) *tele.Message {
	return &tele.Message{
		ID:      msgID,
		AlbumID: albumID,
		Chat:    &tele.Chat{ID: chatID},
		Photo:   &tele.Photo{File: tele.File{FileID: "file-" + albumID}},
		Caption: caption,
	}
}

func TestAlbumTableBatchesParts(t *testing.T) {
	var flushed []*albumEntry
	table := &albumTable{flush: func(e *albumEntry) { flushed = append(flushed, e) }}

	table.add(albumMsg("a1", -5, 1, ""))
	table.add(albumMsg("a1", -5, 2, "first caption"))
	table.add(albumMsg("a1", -5, 3, "ignored"))

	// Rewind the watermark so the fire path treats the album as quiet.
	table.mu.Lock()
	table.pending["a1"].updated = time.Now().Add(-2 * albumDebounce)
	table.pending["a1"].timer.Stop()
	table.mu.Unlock()
	table.fire("a1")

	if len(flushed) != 1 {
		t.Fatalf("flush count = %d, want 1", len(flushed))
	}
	e := flushed[0]
	if len(e.parts) != 3 || len(e.originals) != 3 {
		t.Fatalf("parts = %d originals = %d, want 3 each", len(e.parts), len(e.originals))
	}
	if e.caption != "first caption" {
		t.Errorf("caption = %q, want first non-empty", e.caption)
	}
	if e.groupID != -5 {
		t.Errorf("groupID = %d, want -5", e.groupID)
	}

	// A second fire on the drained key is a no-op.
	table.fire("a1")
	if len(flushed) != 1 {
		t.Fatalf("drained key flushed again: %d", len(flushed))
	}
}

func TestAlbumTableFreshWatermarkRearms(t *testing.T) {
	var flushed int
	table := &albumTable{flush: func(*albumEntry) { flushed++ }}
	table.add(albumMsg("a2", -5, 1, ""))

	// Watermark is fresh, so firing must re-arm instead of flushing.
	table.fire("a2")
	if flushed != 0 {
		t.Fatalf("fired with fresh watermark, flushes = %d", flushed)
	}
	table.mu.Lock()
	if table.pending["a2"] == nil {
		table.mu.Unlock()
		t.Fatal("entry dropped instead of re-armed")
	}
	table.pending["a2"].timer.Stop()
	table.mu.Unlock()
	table.stop()
}

func TestAlbumTableStopDropsPending(t *testing.T) {
	var flushed int
	table := &albumTable{flush: func(*albumEntry) { flushed++ }}
	table.add(albumMsg("a3", -5, 1, ""))
	table.stop()
	table.fire("a3")
	table.add(albumMsg("a3", -5, 2, ""))
	if flushed != 0 {
		t.Fatalf("flushes after stop = %d, want 0", flushed)
	}
}

func TestResolveTokenPrefersPersonal(t *testing.T) {
	dir := t.TempDir()
	db, err := storage.Open(storage.Config{Path: filepath.Join(dir, "bot.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.SaveUserToken(ctx, 7, "personal-token"); err != nil {
		t.Fatalf("save token: %v", err)
	}

	b := &Bot{db: db, log: logx.Nop()}
	if got := b.resolveToken(ctx, 7, "global-token"); got != "personal-token" {
		t.Errorf("token = %q, want personal", got)
	}
	if got := b.resolveToken(ctx, 8, "global-token"); got != "global-token" {
		t.Errorf("token = %q, want global fallback", got)
	}
	if got := b.resolveToken(ctx, 0, "global-token"); got != "global-token" {
		t.Errorf("anonymous sender token = %q, want global", got)
	}
}
