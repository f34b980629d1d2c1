package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a group has no configuration row.
var ErrNotFound = errors.New("group config not found")

// JobKind selects which scheduled job a gate or watermark refers to.
type JobKind string

const (
	JobSummary     JobKind = "summary"
	JobLeaderboard JobKind = "leaderboard"
)

// Config configures storage.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// GroupConfig is one group's persisted configuration row.
//
// The scheduled jobs treat everything except the watermark fields
// (LastSummaryTime, LastLeaderboardTime, LastMessageID) as read-only; those
// three are written through dedicated per-column updates so a concurrent
// admin edit to other fields is never clobbered.
type GroupConfig struct {
	GroupID   int64
	GroupName string

	Enabled  bool
	Schedule string

	LeaderboardEnabled  bool
	LeaderboardSchedule string
	LeaderboardWindow   string

	// TargetChatID is where digests are delivered; 0 means the group itself.
	TargetChatID int64

	LastSummaryTime     *time.Time
	LastLeaderboardTime *time.Time
	LastMessageID       int64

	LinuxDoEnabled bool
	SpoilerEnabled bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Target returns the chat digests should be delivered to.
func (c GroupConfig) Target() int64 {
	if c.TargetChatID != 0 {
		return c.TargetChatID
	}
	return c.GroupID
}

// LastRun returns the watermark for the given job kind.
func (c GroupConfig) LastRun(kind JobKind) *time.Time {
	if kind == JobLeaderboard {
		return c.LastLeaderboardTime
	}
	return c.LastSummaryTime
}

// JobEnabled returns the enable gate for the given job kind.
func (c GroupConfig) JobEnabled(kind JobKind) bool {
	if kind == JobLeaderboard {
		return c.LeaderboardEnabled
	}
	return c.Enabled
}

// JobSchedule returns the raw schedule string for the given job kind.
func (c GroupConfig) JobSchedule(kind JobKind) string {
	if kind == JobLeaderboard {
		return c.LeaderboardSchedule
	}
	return c.Schedule
}

// Message is one recorded group message.
type Message struct {
	MessageID  int64
	GroupID    int64
	SenderID   int64
	SenderName string
	IsBot      bool
	Content    string
	Date       time.Time
	MediaType  string // "" when the message carries no media
}

// SenderCount is one leaderboard aggregation row.
type SenderCount struct {
	SenderID   int64
	SenderName string
	Count      int64
}

// Defaults applied to rows created on first group registration.
const (
	DefaultSchedule          = "0 * * * *"
	DefaultLeaderboardWindow = "24h"
)
