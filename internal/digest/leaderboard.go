package digest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"digestbot/internal/schedule"
	"digestbot/internal/storage"
	"digestbot/pkg/logx"
)

// minWindow floors the stats window so a misconfigured tiny duration never
// produces a degenerate near-zero range.
const minWindow = time.Minute

// RunLeaderboard ranks senders over the group's window and posts the result.
// Unlike the summary job, the marker always advances to wall-clock now, even
// on an empty window: the leaderboard is a point-in-time snapshot, not a
// backlog queue, so there is nothing to re-drain later.
func (s *Service) RunLeaderboard(ctx context.Context, groupID int64, now time.Time) Result {
	cfg, err := s.store.GetGroupConfig(ctx, groupID)
	if err != nil {
		return failure(fmt.Errorf("group %d: load config: %w", groupID, err))
	}

	set := s.settings()
	window := s.resolveWindow(cfg, set)
	start := now.Add(-window)

	rows, err := s.store.TopSenders(ctx, groupID, start, now, set.TopN)
	if err != nil {
		return failure(fmt.Errorf("group %d: top senders: %w", groupID, err))
	}
	if len(rows) == 0 {
		if err := s.store.SetLastRun(ctx, groupID, storage.JobLeaderboard, now); err != nil {
			return failure(fmt.Errorf("group %d: record run: %w", groupID, err))
		}
		return Result{Success: true}
	}

	text := RenderLeaderboard(rows, window)
	if err := s.deliver.DeliverText(ctx, cfg.Target(), text); err != nil {
		return failure(fmt.Errorf("group %d: deliver: %w", groupID, err))
	}
	if err := s.store.SetLastRun(ctx, groupID, storage.JobLeaderboard, now); err != nil {
		return failure(fmt.Errorf("group %d: record run: %w", groupID, err))
	}

	return Result{Success: true, Content: text, Messages: len(rows)}
}

// resolveWindow parses the group's window string, falling back to the
// process default when missing or malformed.
func (s *Service) resolveWindow(cfg storage.GroupConfig, set Settings) time.Duration {
	window, err := schedule.ParseWindow(cfg.LeaderboardWindow)
	if err != nil {
		if strings.TrimSpace(cfg.LeaderboardWindow) != "" {
			s.log.Warn("invalid leaderboard window, using default",
				logx.Int64("group_id", cfg.GroupID),
				logx.String("window", cfg.LeaderboardWindow),
			)
		}
		window = set.DefaultWindow
	}
	if window < minWindow {
		window = minWindow
	}
	return window
}

// WindowLabel renders the window length in the largest unit that divides it
// evenly: days, then hours, then minutes.
func WindowLabel(window time.Duration) string {
	switch {
	case window%(24*time.Hour) == 0:
		return fmt.Sprintf("%d天", window/(24*time.Hour))
	case window%time.Hour == 0:
		return fmt.Sprintf("%d小时", window/time.Hour)
	default:
		return fmt.Sprintf("%d分钟", window/time.Minute)
	}
}

// RenderLeaderboard formats the ranked rows as plain text.
func RenderLeaderboard(rows []storage.SenderCount, window time.Duration) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🏆 群聊活跃排行榜（最近%s）\n", WindowLabel(window))
	for i, r := range rows {
		name := r.SenderName
		if strings.TrimSpace(name) == "" {
			name = "Unknown"
		}
		fmt.Fprintf(&b, "\n%d. %s - %d条", i+1, name, r.Count)
	}
	return b.String()
}
