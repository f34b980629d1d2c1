// Package telegram implements the bot transport: long polling, group
// message recording, owner commands, inline menus, and outbound delivery
// of summaries, leaderboards and log lines.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"digestbot/internal/background"
	"digestbot/internal/config"
	"digestbot/internal/digest"
	"digestbot/internal/linuxdo"
	"digestbot/internal/storage"
	"digestbot/pkg/logx"
	"digestbot/pkg/tgui"
)

// sendLimit leaves headroom under Telegram's hard 4096-char cap so HTML
// wrappers added around a chunk never push it over.
const sendLimit = 4000

// Jobs triggers digest runs outside the scheduler, for /summary,
// /leaderboard and the run-now menu button.
type Jobs interface {
	RunSummary(ctx context.Context, groupID int64) digest.Result
	RunLeaderboard(ctx context.Context, groupID int64, now time.Time) digest.Result
}

// Bot wraps a telebot long-polling bot with the digestbot handlers.
type Bot struct {
	bot      *tele.Bot
	db       *storage.DB
	cfg      *config.Manager
	jobs     Jobs
	unfurler *linuxdo.Client
	bg       *background.Runner
	log      logx.Logger

	albums albumTable

	cmdMu   sync.Mutex
	cmdHash uint64

	stopOnce sync.Once
	done     chan struct{}
}

// New builds the bot and registers all handlers. It does not start polling.
func New(cfg *config.Manager, db *storage.DB, jobs Jobs, unfurler *linuxdo.Client, bg *background.Runner, log logx.Logger) (*Bot, error) {
	c := cfg.Get()
	tb, err := tele.NewBot(tele.Settings{
		Token:  c.Telegram.Token,
		Poller: &tele.LongPoller{Timeout: c.PollTimeout()},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: create bot: %w", err)
	}
	b := &Bot{
		bot:      tb,
		db:       db,
		cfg:      cfg,
		jobs:     jobs,
		unfurler: unfurler,
		bg:       bg,
		log:      log,
		done:     make(chan struct{}),
	}
	b.albums.flush = b.redactAlbum
	b.registerHandlers()
	return b, nil
}

// Start begins long polling and blocks until ctx is cancelled or Stop is
// called. Command registration runs once before polling starts.
func (b *Bot) Start(ctx context.Context) {
	if err := b.syncCommands(ctx); err != nil {
		b.log.Warn("command sync failed", logx.Err(err))
	}
	go func() {
		select {
		case <-ctx.Done():
			b.Stop()
		case <-b.done:
		}
	}()
	b.log.Info("telegram polling started", logx.String("bot", b.bot.Me.Username))
	b.bot.Start()
}

// Stop halts long polling. Safe to call more than once.
func (b *Bot) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.albums.stop()
		b.bot.Stop()
		b.log.Info("telegram polling stopped")
	})
}

func (b *Bot) registerHandlers() {
	b.bot.Handle("/start", b.ownerOnly(b.handleStart))
	b.bot.Handle("/help", b.ownerOnly(b.handleHelp))
	b.bot.Handle("/status", b.ownerOnly(b.handleStatus))
	b.bot.Handle("/enable", b.ownerOnly(b.handleEnable))
	b.bot.Handle("/disable", b.ownerOnly(b.handleDisable))
	b.bot.Handle("/setschedule", b.ownerOnly(b.handleSetSchedule))
	b.bot.Handle("/setleaderboard", b.ownerOnly(b.handleSetLeaderboard))
	b.bot.Handle("/setwindow", b.ownerOnly(b.handleSetWindow))
	b.bot.Handle("/summary", b.ownerOnly(b.handleRunSummary))
	b.bot.Handle("/leaderboard", b.ownerOnly(b.handleRunLeaderboard))
	b.bot.Handle("/toggle_linuxdo", b.ownerOnly(b.handleToggleLinuxDo))
	b.bot.Handle("/toggle_spoiler", b.ownerOnly(b.handleToggleSpoiler))
	b.bot.Handle("/set_linuxdo_token", b.handleSetToken)
	b.bot.Handle("/delete_linuxdo_token", b.handleDeleteToken)
	b.bot.Handle("/groups", b.ownerOnly(b.handleGroups))

	b.bot.Handle(tele.OnText, b.handleIncoming)
	b.bot.Handle(tele.OnPhoto, b.handleIncoming)
	b.bot.Handle(tele.OnVideo, b.handleIncoming)
	b.bot.Handle(tele.OnDocument, b.handleIncoming)
	b.bot.Handle(tele.OnAudio, b.handleIncoming)
	b.bot.Handle(tele.OnVoice, b.handleIncoming)
	b.bot.Handle(tele.OnSticker, b.handleIncoming)
	b.bot.Handle(tele.OnAnimation, b.handleIncoming)

	b.bot.Handle(tele.OnCallback, b.handleCallback)
}

// ownerOnly wraps a command handler with the owner gate. Non-owners get a
// short refusal in private chats and silence in groups.
func (b *Bot) ownerOnly(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if c.Sender() == nil || !b.cfg.Get().IsOwner(c.Sender().ID) {
			if c.Chat() != nil && c.Chat().Type == tele.ChatPrivate {
				return c.Send("此命令仅限机器人管理员使用。")
			}
			return nil
		}
		return next(c)
	}
}

func isGroupChat(chat *tele.Chat) bool {
	return chat != nil && (chat.Type == tele.ChatGroup || chat.Type == tele.ChatSuperGroup)
}

// handleIncoming fans a group message out to the recorder and the
// feature handlers. Command handlers never reach here; telebot routes
// them first.
func (b *Bot) handleIncoming(c tele.Context) error {
	m := c.Message()
	if m == nil || !isGroupChat(m.Chat) {
		return nil
	}
	b.recordMessage(m)
	if b.maybeRedact(c) {
		return nil
	}
	b.maybeUnfurl(m)
	return nil
}

// SendPlain implements logx.Sender so runtime log lines can reach a chat.
func (b *Bot) SendPlain(ctx context.Context, chatID int64, text string) error {
	_ = ctx
	for _, part := range tgui.SplitMessage(text, sendLimit) {
		if _, err := b.bot.Send(&tele.Chat{ID: chatID}, part); err != nil {
			return err
		}
	}
	return nil
}

// DeliverText sends a plain-text digest artifact, chunked when oversized.
func (b *Bot) DeliverText(ctx context.Context, chatID int64, text string) error {
	return b.SendPlain(ctx, chatID, text)
}

// DeliverSummary sends a summary wrapped in an expandable quote. When the
// HTML send is rejected the content goes out again as plain text rather
// than being dropped.
func (b *Bot) DeliverSummary(ctx context.Context, chatID int64, groupName, content string) error {
	_ = ctx
	header := "📊 " + groupName
	chat := &tele.Chat{ID: chatID}
	opts := &tele.SendOptions{ParseMode: tele.ModeHTML, DisableWebPagePreview: true}

	var htmlErr error
	for _, part := range tgui.SplitMessage(content, sendLimit) {
		body := tgui.ExpandableQuote(header + "\n\n" + part).String()
		if _, err := b.bot.Send(chat, body, opts); err != nil {
			htmlErr = err
			break
		}
	}
	if htmlErr == nil {
		return nil
	}
	b.log.Warn("summary html send failed, falling back to plain text",
		logx.Int64("chat_id", chatID), logx.Err(htmlErr))
	return b.SendPlain(ctx, chatID, header+"\n\n"+content)
}

func (b *Bot) reply(c tele.Context, text string) error {
	return c.Send(text, &tele.SendOptions{DisableWebPagePreview: true})
}

func (b *Bot) replyHTML(c tele.Context, html string) error {
	return c.Send(html, &tele.SendOptions{ParseMode: tele.ModeHTML, DisableWebPagePreview: true})
}

type botCommand struct {
	Command     string `json:"command"`
	Description string `json:"description"`
}

var menuCommands = []botCommand{
	{"help", "查看帮助"},
	{"status", "查看当前群配置"},
	{"enable", "启用本群总结"},
	{"disable", "禁用本群总结"},
	{"setschedule", "设置总结调度 (cron 或 30m/2h/1d)"},
	{"setleaderboard", "设置排行榜调度"},
	{"setwindow", "设置排行榜统计窗口"},
	{"summary", "立即生成总结"},
	{"leaderboard", "立即生成排行榜"},
	{"toggle_linuxdo", "开关 linux.do 链接解析"},
	{"toggle_spoiler", "开关转发消息遮罩"},
	{"set_linuxdo_token", "私聊设置 linux.do 令牌"},
	{"delete_linuxdo_token", "删除已保存的令牌"},
	{"groups", "管理所有群组"},
}

// syncCommands pushes the command menu to Telegram, skipping the call when
// the desired set matches what was last pushed.
func (b *Bot) syncCommands(ctx context.Context) error {
	_ = ctx
	payload, err := json.Marshal(menuCommands)
	if err != nil {
		return fmt.Errorf("telegram: marshal commands: %w", err)
	}
	h := fnv.New64a()
	h.Write(payload)
	sum := h.Sum64()

	b.cmdMu.Lock()
	defer b.cmdMu.Unlock()
	if sum == b.cmdHash {
		b.log.Debug("command menu unchanged, skipping sync")
		return nil
	}
	params := map[string]string{"commands": string(payload)}
	if _, err := b.bot.Raw("setMyCommands", params); err != nil {
		return fmt.Errorf("telegram: setMyCommands: %w", err)
	}
	b.cmdHash = sum
	b.log.Info("command menu updated", logx.Int("commands", len(menuCommands)))
	return nil
}

// displayName renders a user the way transcripts and rankings do.
func displayName(u *tele.User) string {
	if u == nil {
		return "Unknown"
	}
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name == "" {
		name = u.Username
	}
	if name == "" {
		name = fmt.Sprintf("user%d", u.ID)
	}
	return name
}
