// Package digest runs the scheduled summary and leaderboard jobs. It decides
// per tick which groups are due, fans the due jobs out concurrently and keeps
// failures isolated per group.
package digest

import (
	"context"
	"time"

	"digestbot/internal/storage"
)

// Store is the persistence surface the jobs need. *storage.DB satisfies it.
type Store interface {
	GetGroupConfig(ctx context.Context, groupID int64) (storage.GroupConfig, error)
	ListEnabledGroups(ctx context.Context, kind storage.JobKind) ([]storage.GroupConfig, error)
	PendingMessages(ctx context.Context, groupID int64, cap int) ([]storage.Message, error)
	AdvanceSummaryWatermark(ctx context.Context, groupID, throughID int64, at time.Time) error
	SetLastRun(ctx context.Context, groupID int64, kind storage.JobKind, at time.Time) error
	TopSenders(ctx context.Context, groupID int64, start, end time.Time, topN int) ([]storage.SenderCount, error)
}

// Generator produces a digest text from transcript lines. Timeout reports the
// generator's own per-call bound so the job deadline can exceed it.
type Generator interface {
	Summarize(ctx context.Context, lines []string) (string, error)
	Timeout() time.Duration
}

// Deliverer sends rendered job output to a chat. Markup and message splitting
// are its concern, not this package's.
type Deliverer interface {
	DeliverSummary(ctx context.Context, chatID int64, groupName, content string) error
	DeliverText(ctx context.Context, chatID int64, text string) error
}

// Result is the outcome of one job invocation. Err is set only when Success
// is false; an empty Content with Success true means the no-op path ran.
type Result struct {
	Success  bool
	Content  string
	Messages int
	Err      error
}

func failure(err error) Result { return Result{Err: err} }

// Settings are the process-wide knobs the jobs consume. They are swapped
// atomically on config reload.
type Settings struct {
	TZOffsetMinutes int
	JobBuffer       time.Duration
	BatchCap        int
	TopN            int
	DefaultWindow   time.Duration
}
