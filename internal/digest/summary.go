package digest

import (
	"context"
	"fmt"
	"time"

	"digestbot/pkg/logx"
)

// RunSummary drains one batch of pending messages for the group, summarizes
// it and advances the message-id watermark. The watermark moves to the
// highest message id in the batch rather than wall-clock time, so overlapping
// runs can never double-count a message: whatever the second run reads has
// ids strictly above what the first run marked.
func (s *Service) RunSummary(ctx context.Context, groupID int64) Result {
	cfg, err := s.store.GetGroupConfig(ctx, groupID)
	if err != nil {
		return failure(fmt.Errorf("group %d: load config: %w", groupID, err))
	}

	set := s.settings()
	msgs, err := s.store.PendingMessages(ctx, groupID, set.BatchCap)
	if err != nil {
		return failure(fmt.Errorf("group %d: load pending: %w", groupID, err))
	}
	if len(msgs) == 0 {
		// Nothing pending is a success with no state mutation. The next due
		// tick re-checks the same (empty) backlog cheaply.
		return Result{Success: true}
	}

	lines := Transcript(msgs, set.TZOffsetMinutes)
	content, err := s.gen.Summarize(ctx, lines)
	if err != nil {
		return failure(fmt.Errorf("group %d: summarize: %w", groupID, err))
	}

	if err := s.deliver.DeliverSummary(ctx, cfg.Target(), cfg.GroupName, content); err != nil {
		return failure(fmt.Errorf("group %d: deliver: %w", groupID, err))
	}

	maxID := msgs[0].MessageID
	for _, m := range msgs[1:] {
		if m.MessageID > maxID {
			maxID = m.MessageID
		}
	}
	if err := s.store.AdvanceSummaryWatermark(ctx, groupID, maxID, time.Now()); err != nil {
		// Delivered but not marked: the batch will be re-summarized next
		// tick. Surface it loudly since duplicates reach the chat.
		s.log.Error("summary watermark advance failed",
			logx.Int64("group_id", groupID), logx.Err(err))
		return failure(fmt.Errorf("group %d: advance watermark: %w", groupID, err))
	}

	return Result{Success: true, Content: content, Messages: len(msgs)}
}
