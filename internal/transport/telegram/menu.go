package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"digestbot/internal/storage"
	"digestbot/pkg/logx"
	"digestbot/pkg/tgui"
)

// Callback scope for the group management menu.
const menuScope = "grp"

// handleGroups opens the owner's group management menu.
func (b *Bot) handleGroups(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	text, rm, err := b.groupListView(ctx)
	if err != nil {
		return b.reply(c, "读取群列表失败。")
	}
	return c.Send(text.String(), &tele.SendOptions{ParseMode: tele.ModeHTML}, rm)
}

func (b *Bot) groupListView(ctx context.Context) (tgui.H, *tele.ReplyMarkup, error) {
	groups, err := b.db.AllGroups(ctx)
	if err != nil {
		return "", nil, err
	}
	if len(groups) == 0 {
		return tgui.Esc("还没有已知群组。把我拉进群并发言后再试。"), tgui.NewInline().Markup(), nil
	}
	kb := tgui.NewInline()
	for _, g := range groups {
		mark := "❌"
		if g.Enabled {
			mark = "✅"
		}
		label := fmt.Sprintf("%s %s", mark, tgui.TruncRunes(g.GroupName, 25))
		data := tgui.Data(menuScope, "show", strconv.FormatInt(g.GroupID, 10))
		if err := tgui.ValidData(data); err != nil {
			b.log.Warn("group button skipped", logx.Int64("group_id", g.GroupID), logx.Err(err))
			continue
		}
		kb.Row(tgui.Btn(label, data))
	}
	return tgui.B(fmt.Sprintf("📋 已知群组（%d）", len(groups))), kb.Markup(), nil
}

func (b *Bot) groupDetailView(ctx context.Context, groupID int64) (tgui.H, *tele.ReplyMarkup, error) {
	cfg, err := b.db.GetGroupConfig(ctx, groupID)
	if err != nil {
		return "", nil, err
	}
	id := strconv.FormatInt(groupID, 10)
	toggleLabel := "启用总结"
	if cfg.Enabled {
		toggleLabel = "禁用总结"
	}
	lbLabel := "开启排行榜"
	if cfg.LeaderboardEnabled {
		lbLabel = "关闭排行榜"
	}
	spLabel := "🫥 启用剧透遮罩"
	if cfg.SpoilerEnabled {
		spLabel = "🫥 禁用剧透遮罩"
	}
	ldLabel := "🔗 启用链接解析"
	if cfg.LinuxDoEnabled {
		ldLabel = "🔗 禁用链接解析"
	}
	kb := tgui.NewInline().
		Row(
			tgui.Btn(toggleLabel, tgui.Data(menuScope, "toggle", id)),
			tgui.Btn(lbLabel, tgui.Data(menuScope, "lb", id)),
		).
		Row(
			tgui.Btn(spLabel, tgui.Data(menuScope, "sp", id)),
			tgui.Btn(ldLabel, tgui.Data(menuScope, "ld", id)),
		).
		Row(
			tgui.Btn("立即总结", tgui.Data(menuScope, "run", id)),
			tgui.Btn("立即排行榜", tgui.Data(menuScope, "runlb", id)),
		).
		Row(tgui.Btn("« 返回列表", tgui.Data(menuScope, "list", "")))
	return renderStatus(cfg), kb.Markup(), nil
}

// handleCallback routes all inline button presses. Only owners get past the
// gate; everyone else sees an alert and no state change.
func (b *Bot) handleCallback(c tele.Context) error {
	cb := c.Callback()
	if cb == nil {
		return nil
	}
	if c.Sender() == nil || !b.cfg.Get().IsOwner(c.Sender().ID) {
		return c.Respond(&tele.CallbackResponse{Text: "仅限管理员操作", ShowAlert: true})
	}
	scope, action, payload := tgui.ParseData(strings.TrimPrefix(cb.Data, "\f"))
	if scope != menuScope {
		return c.Respond(&tele.CallbackResponse{})
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	switch action {
	case "list":
		text, rm, err := b.groupListView(ctx)
		if err != nil {
			return c.Respond(&tele.CallbackResponse{Text: "读取失败", ShowAlert: true})
		}
		_ = c.Edit(text.String(), &tele.SendOptions{ParseMode: tele.ModeHTML}, rm)
		return c.Respond(&tele.CallbackResponse{})

	case "show":
		return b.editDetail(ctx, c, payload)

	case "toggle":
		return b.menuToggle(ctx, c, payload, func(cfg storage.GroupConfig) error {
			return b.db.SetEnabled(ctx, cfg.GroupID, !cfg.Enabled)
		})

	case "lb":
		return b.menuToggle(ctx, c, payload, func(cfg storage.GroupConfig) error {
			return b.db.SetLeaderboardEnabled(ctx, cfg.GroupID, !cfg.LeaderboardEnabled)
		})

	case "sp":
		return b.menuToggle(ctx, c, payload, func(cfg storage.GroupConfig) error {
			return b.db.SetSpoilerEnabled(ctx, cfg.GroupID, !cfg.SpoilerEnabled)
		})

	case "ld":
		return b.menuToggle(ctx, c, payload, func(cfg storage.GroupConfig) error {
			return b.db.SetLinuxDoEnabled(ctx, cfg.GroupID, !cfg.LinuxDoEnabled)
		})

	case "run":
		return b.menuRun(c, payload, "总结", func(ctx context.Context, id int64) error {
			res := b.jobs.RunSummary(ctx, id)
			return res.Err
		})

	case "runlb":
		return b.menuRun(c, payload, "排行榜", func(ctx context.Context, id int64) error {
			res := b.jobs.RunLeaderboard(ctx, id, time.Now())
			return res.Err
		})

	default:
		return c.Respond(&tele.CallbackResponse{})
	}
}

func (b *Bot) editDetail(ctx context.Context, c tele.Context, payload string) error {
	groupID, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "无效的群组", ShowAlert: true})
	}
	text, rm, err := b.groupDetailView(ctx, groupID)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "读取群配置失败", ShowAlert: true})
	}
	_ = c.Edit(text.String(), &tele.SendOptions{ParseMode: tele.ModeHTML}, rm)
	return c.Respond(&tele.CallbackResponse{})
}

func (b *Bot) menuToggle(ctx context.Context, c tele.Context, payload string, apply func(storage.GroupConfig) error) error {
	groupID, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "无效的群组", ShowAlert: true})
	}
	cfg, err := b.db.GetGroupConfig(ctx, groupID)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "读取群配置失败", ShowAlert: true})
	}
	if err := apply(cfg); err != nil {
		b.log.Warn("menu toggle failed", logx.Int64("group_id", groupID), logx.Err(err))
		return c.Respond(&tele.CallbackResponse{Text: "更新失败", ShowAlert: true})
	}
	return b.editDetail(ctx, c, payload)
}

// menuRun fires a job in the background and acknowledges the press right
// away; the job result lands in the group chat, not the menu.
func (b *Bot) menuRun(c tele.Context, payload, label string, run func(ctx context.Context, groupID int64) error) error {
	groupID, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "无效的群组", ShowAlert: true})
	}
	b.bg.Go("menu-"+label, 5*time.Minute, func(ctx context.Context) error {
		return run(ctx, groupID)
	})
	return c.Respond(&tele.CallbackResponse{Text: label + "任务已触发"})
}
