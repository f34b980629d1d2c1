package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"digestbot/internal/schedule"
	"digestbot/internal/storage"
	"digestbot/pkg/logx"
	"digestbot/pkg/tgui"
)

const commandTimeout = 10 * time.Second

const helpText = `可用命令：
/status - 查看本群配置
/enable /disable - 启用/禁用本群总结
/setschedule <cron|30m|2h|1d> - 设置总结调度
/setleaderboard <cron|30m|2h|1d> - 设置排行榜调度（off 关闭）
/setwindow <30m|24h|7d> - 设置排行榜统计窗口
/summary - 立即总结积压消息
/leaderboard - 立即生成排行榜
/toggle_linuxdo - 开关 linux.do 链接解析
/toggle_spoiler - 开关转发消息遮罩
/set_linuxdo_token <token> - 私聊设置个人 linux.do 令牌
/delete_linuxdo_token - 删除个人令牌
/groups - 管理所有已知群组`

func (b *Bot) handleStart(c tele.Context) error {
	return b.reply(c, "群聊总结机器人已就绪。使用 /help 查看命令。")
}

func (b *Bot) handleHelp(c tele.Context) error {
	return b.reply(c, helpText)
}

// groupConfig loads the calling chat's config, registering the group on
// first contact so commands work before the group has ever spoken.
func (b *Bot) groupConfig(ctx context.Context, c tele.Context) (storage.GroupConfig, error) {
	chat := c.Chat()
	cfg, err := b.db.GetGroupConfig(ctx, chat.ID)
	if errors.Is(err, storage.ErrNotFound) {
		if err := b.db.RegisterGroup(ctx, chat.ID, chat.Title); err != nil {
			return storage.GroupConfig{}, err
		}
		cfg, err = b.db.GetGroupConfig(ctx, chat.ID)
	}
	return cfg, err
}

// requireGroup rejects group-scoped commands issued in private chats.
func (b *Bot) requireGroup(c tele.Context) bool {
	if isGroupChat(c.Chat()) {
		return true
	}
	_ = b.reply(c, "此命令只能在群聊中使用。")
	return false
}

func (b *Bot) handleStatus(c tele.Context) error {
	if !b.requireGroup(c) {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	cfg, err := b.groupConfig(ctx, c)
	if err != nil {
		return b.reply(c, "读取群配置失败。")
	}
	return b.replyHTML(c, renderStatus(cfg).String())
}

func renderStatus(cfg storage.GroupConfig) tgui.H {
	onOff := func(v bool) string {
		if v {
			return "✅ 开启"
		}
		return "❌ 关闭"
	}
	lastRun := func(t *time.Time) string {
		if t == nil {
			return "从未"
		}
		return t.UTC().Format("2006-01-02 15:04 UTC")
	}
	lbSchedule := cfg.LeaderboardSchedule
	if lbSchedule == "" {
		lbSchedule = "未设置"
	}
	lines := []tgui.H{
		tgui.B("📋 " + cfg.GroupName),
		"",
		tgui.Esc(fmt.Sprintf("总结：%s，调度 %s", onOff(cfg.Enabled), cfg.Schedule)),
		tgui.Esc(fmt.Sprintf("上次总结：%s", lastRun(cfg.LastSummaryTime))),
		tgui.Esc(fmt.Sprintf("排行榜：%s，调度 %s，窗口 %s",
			onOff(cfg.LeaderboardEnabled), lbSchedule, cfg.LeaderboardWindow)),
		tgui.Esc(fmt.Sprintf("上次排行榜：%s", lastRun(cfg.LastLeaderboardTime))),
		tgui.Esc(fmt.Sprintf("linux.do 解析：%s", onOff(cfg.LinuxDoEnabled))),
		tgui.Esc(fmt.Sprintf("转发遮罩：%s", onOff(cfg.SpoilerEnabled))),
	}
	return tgui.JoinH("\n", lines...)
}

func (b *Bot) setGroupFlag(c tele.Context, apply func(ctx context.Context, groupID int64) error, okText string) error {
	if !b.requireGroup(c) {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if _, err := b.groupConfig(ctx, c); err != nil {
		return b.reply(c, "读取群配置失败。")
	}
	if err := apply(ctx, c.Chat().ID); err != nil {
		b.log.Warn("group update failed", logx.Int64("group_id", c.Chat().ID), logx.Err(err))
		return b.reply(c, "更新失败，请稍后重试。")
	}
	return b.reply(c, okText)
}

func (b *Bot) handleEnable(c tele.Context) error {
	return b.setGroupFlag(c, func(ctx context.Context, id int64) error {
		return b.db.SetEnabled(ctx, id, true)
	}, "✅ 本群总结已启用。")
}

func (b *Bot) handleDisable(c tele.Context) error {
	return b.setGroupFlag(c, func(ctx context.Context, id int64) error {
		return b.db.SetEnabled(ctx, id, false)
	}, "已禁用本群总结。")
}

// handleSetSchedule validates before persisting so a typo never lands in
// the database and silently stops the scheduler.
func (b *Bot) handleSetSchedule(c tele.Context) error {
	raw := strings.TrimSpace(strings.Join(c.Args(), " "))
	if raw == "" {
		return b.reply(c, "用法：/setschedule <cron 表达式或 30m/2h/1d>")
	}
	if _, err := schedule.ParseSchedule(raw); err != nil {
		return b.reply(c, fmt.Sprintf("无效的调度表达式：%v", err))
	}
	return b.setGroupFlag(c, func(ctx context.Context, id int64) error {
		return b.db.SetSchedule(ctx, id, raw)
	}, fmt.Sprintf("✅ 总结调度已设置为 %s", raw))
}

func (b *Bot) handleSetLeaderboard(c tele.Context) error {
	raw := strings.TrimSpace(strings.Join(c.Args(), " "))
	if raw == "" {
		return b.reply(c, "用法：/setleaderboard <cron 表达式或 30m/2h/1d>，off 关闭")
	}
	if strings.EqualFold(raw, "off") {
		return b.setGroupFlag(c, func(ctx context.Context, id int64) error {
			return b.db.SetLeaderboardEnabled(ctx, id, false)
		}, "排行榜已关闭。")
	}
	if _, err := schedule.ParseSchedule(raw); err != nil {
		return b.reply(c, fmt.Sprintf("无效的调度表达式：%v", err))
	}
	return b.setGroupFlag(c, func(ctx context.Context, id int64) error {
		if err := b.db.SetLeaderboardSchedule(ctx, id, raw); err != nil {
			return err
		}
		return b.db.SetLeaderboardEnabled(ctx, id, true)
	}, fmt.Sprintf("✅ 排行榜调度已设置为 %s", raw))
}

func (b *Bot) handleSetWindow(c tele.Context) error {
	raw := strings.TrimSpace(strings.Join(c.Args(), " "))
	if raw == "" {
		return b.reply(c, "用法：/setwindow <统计窗口，如 30m、24h、7d>")
	}
	if _, err := schedule.ParseWindow(raw); err != nil {
		return b.reply(c, fmt.Sprintf("无效的窗口：%v", err))
	}
	return b.setGroupFlag(c, func(ctx context.Context, id int64) error {
		return b.db.SetLeaderboardWindow(ctx, id, raw)
	}, fmt.Sprintf("✅ 排行榜窗口已设置为 %s", raw))
}

func (b *Bot) handleToggleLinuxDo(c tele.Context) error {
	return b.toggleFlag(c, "linux.do 解析",
		func(cfg storage.GroupConfig) bool { return cfg.LinuxDoEnabled },
		b.db.SetLinuxDoEnabled)
}

func (b *Bot) handleToggleSpoiler(c tele.Context) error {
	return b.toggleFlag(c, "转发消息遮罩",
		func(cfg storage.GroupConfig) bool { return cfg.SpoilerEnabled },
		b.db.SetSpoilerEnabled)
}

func (b *Bot) toggleFlag(c tele.Context, label string, read func(storage.GroupConfig) bool, write func(context.Context, int64, bool) error) error {
	if !b.requireGroup(c) {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	cfg, err := b.groupConfig(ctx, c)
	if err != nil {
		return b.reply(c, "读取群配置失败。")
	}
	next := !read(cfg)
	if err := write(ctx, cfg.GroupID, next); err != nil {
		return b.reply(c, "更新失败，请稍后重试。")
	}
	state := "已开启"
	if !next {
		state = "已关闭"
	}
	return b.reply(c, fmt.Sprintf("%s%s。", label, state))
}

// handleRunSummary runs a summary for the calling group immediately,
// outside the scheduler.
func (b *Bot) handleRunSummary(c tele.Context) error {
	if !b.requireGroup(c) {
		return nil
	}
	groupID := c.Chat().ID
	_ = b.reply(c, "正在生成总结…")
	b.bg.Go("manual-summary", 5*time.Minute, func(ctx context.Context) error {
		res := b.jobs.RunSummary(ctx, groupID)
		if !res.Success {
			_ = b.SendPlain(ctx, groupID, "总结生成失败，请查看日志。")
			return res.Err
		}
		if res.Messages == 0 {
			_ = b.SendPlain(ctx, groupID, "暂无新消息可以总结。")
		}
		return nil
	})
	return nil
}

func (b *Bot) handleRunLeaderboard(c tele.Context) error {
	if !b.requireGroup(c) {
		return nil
	}
	groupID := c.Chat().ID
	b.bg.Go("manual-leaderboard", time.Minute, func(ctx context.Context) error {
		res := b.jobs.RunLeaderboard(ctx, groupID, time.Now())
		if !res.Success {
			_ = b.SendPlain(ctx, groupID, "排行榜生成失败，请查看日志。")
			return res.Err
		}
		if res.Messages == 0 {
			_ = b.SendPlain(ctx, groupID, "统计窗口内没有发言记录。")
		}
		return nil
	})
	return nil
}

// handleSetToken stores a personal linux.do API token. Private chat only;
// in a group the message is deleted first so the token does not linger.
func (b *Bot) handleSetToken(c tele.Context) error {
	if c.Sender() == nil {
		return nil
	}
	if isGroupChat(c.Chat()) {
		_ = b.bot.Delete(c.Message())
		return b.reply(c, "请私聊我设置令牌，群里发送的消息已删除。")
	}
	token := strings.TrimSpace(strings.Join(c.Args(), " "))
	if token == "" {
		return b.reply(c, "用法：/set_linuxdo_token <令牌>")
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if err := b.db.SaveUserToken(ctx, c.Sender().ID, token); err != nil {
		return b.reply(c, "保存失败，请稍后重试。")
	}
	return b.reply(c, "✅ 令牌已保存，解析 linux.do 链接时将优先使用。")
}

func (b *Bot) handleDeleteToken(c tele.Context) error {
	if c.Sender() == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	existed, err := b.db.DeleteUserToken(ctx, c.Sender().ID)
	if err != nil {
		return b.reply(c, "删除失败，请稍后重试。")
	}
	if !existed {
		return b.reply(c, "没有已保存的令牌。")
	}
	return b.reply(c, "令牌已删除。")
}
