package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"digestbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// DB is the SQLite-backed store for group configs, recorded messages and
// user tokens.
type DB struct {
	db  *sql.DB
	log logx.Logger
}

// Open initializes the store and applies the embedded schema.
func Open(cfg Config, log logx.Logger) (*DB, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if log.IsZero() {
		log = logx.Nop()
	}
	s := &DB{db: db, log: log}

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *DB) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *DB) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ---- group configs ----

const groupColumns = `group_id, group_name, enabled, schedule,
	leaderboard_enabled, leaderboard_schedule, leaderboard_window,
	target_chat_id, last_summary_time, last_leaderboard_time, last_message_id,
	linuxdo_enabled, spoiler_enabled, created_at, updated_at`

func (s *DB) GetGroupConfig(ctx context.Context, groupID int64) (GroupConfig, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+groupColumns+` FROM group_configs WHERE group_id = ?`, groupID)
	cfg, err := scanGroup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return GroupConfig{}, ErrNotFound
	}
	return cfg, err
}

// ListEnabledGroups returns all groups whose gate for the given job kind is
// set. One bulk read per scheduler tick.
func (s *DB) ListEnabledGroups(ctx context.Context, kind JobKind) ([]GroupConfig, error) {
	gate := "enabled"
	if kind == JobLeaderboard {
		gate = "leaderboard_enabled"
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+groupColumns+` FROM group_configs WHERE `+gate+` = 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanGroups(rows)
}

func (s *DB) AllGroups(ctx context.Context) ([]GroupConfig, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+groupColumns+` FROM group_configs ORDER BY group_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanGroups(rows)
}

// RegisterGroup creates the config row on first contact with a group and
// keeps the stored name current afterwards. New rows start disabled with
// the default schedule.
func (s *DB) RegisterGroup(ctx context.Context, groupID int64, name string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO group_configs (group_id, group_name, schedule, leaderboard_schedule, leaderboard_window, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(group_id) DO UPDATE SET
			group_name = excluded.group_name,
			updated_at = excluded.updated_at`,
		groupID, name, DefaultSchedule, DefaultSchedule, DefaultLeaderboardWindow, now, now)
	return err
}

// setGroupColumn updates a single column plus updated_at.
func (s *DB) setGroupColumn(ctx context.Context, groupID int64, column string, v any) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE group_configs SET `+column+` = ?, updated_at = ? WHERE group_id = ?`,
		v, time.Now().UTC().Format(time.RFC3339), groupID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return err
}

func (s *DB) SetEnabled(ctx context.Context, groupID int64, on bool) error {
	return s.setGroupColumn(ctx, groupID, "enabled", boolInt(on))
}

func (s *DB) SetLeaderboardEnabled(ctx context.Context, groupID int64, on bool) error {
	return s.setGroupColumn(ctx, groupID, "leaderboard_enabled", boolInt(on))
}

func (s *DB) SetSchedule(ctx context.Context, groupID int64, schedule string) error {
	return s.setGroupColumn(ctx, groupID, "schedule", schedule)
}

func (s *DB) SetLeaderboardSchedule(ctx context.Context, groupID int64, schedule string) error {
	return s.setGroupColumn(ctx, groupID, "leaderboard_schedule", schedule)
}

func (s *DB) SetLeaderboardWindow(ctx context.Context, groupID int64, window string) error {
	return s.setGroupColumn(ctx, groupID, "leaderboard_window", window)
}

func (s *DB) SetSpoilerEnabled(ctx context.Context, groupID int64, on bool) error {
	return s.setGroupColumn(ctx, groupID, "spoiler_enabled", boolInt(on))
}

func (s *DB) SetLinuxDoEnabled(ctx context.Context, groupID int64, on bool) error {
	return s.setGroupColumn(ctx, groupID, "linuxdo_enabled", boolInt(on))
}

// SetLastRun advances the job watermark to the given wall-clock instant.
func (s *DB) SetLastRun(ctx context.Context, groupID int64, kind JobKind, at time.Time) error {
	column := "last_summary_time"
	if kind == JobLeaderboard {
		column = "last_leaderboard_time"
	}
	return s.setGroupColumn(ctx, groupID, column, at.UTC().Format(time.RFC3339))
}

// ---- messages ----

// SaveMessage records one group message; duplicates (same group and message
// id) are ignored.
func (s *DB) SaveMessage(ctx context.Context, m Message) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO group_messages
			(message_id, group_id, sender_id, sender_name, is_bot, content, message_date, media_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.MessageID, m.GroupID, m.SenderID, m.SenderName, boolInt(m.IsBot),
		m.Content, m.Date.UTC().Format(time.RFC3339), nullStr(m.MediaType),
		time.Now().UTC().Format(time.RFC3339))
	return err
}

// PendingMessages returns up to cap not-yet-summarized messages for the
// group, oldest first.
func (s *DB) PendingMessages(ctx context.Context, groupID int64, cap int) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, group_id, sender_id, sender_name, is_bot, content, message_date, media_type
		FROM group_messages
		WHERE group_id = ? AND is_summarized = 0
		ORDER BY message_date ASC, message_id ASC
		LIMIT ?`, groupID, cap)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var (
			m     Message
			isBot int
			date  string
			media sql.NullString
		)
		if err := rows.Scan(&m.MessageID, &m.GroupID, &m.SenderID, &m.SenderName, &isBot, &m.Content, &date, &media); err != nil {
			return nil, err
		}
		m.IsBot = isBot != 0
		m.MediaType = media.String
		m.Date, _ = time.Parse(time.RFC3339, date)
		out = append(out, m)
	}
	return out, rows.Err()
}

// AdvanceSummaryWatermark marks all messages up to and including throughID
// as summarized and records the run on the group row, atomically.
func (s *DB) AdvanceSummaryWatermark(ctx context.Context, groupID, throughID int64, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		UPDATE group_messages SET is_summarized = 1
		WHERE group_id = ? AND message_id <= ? AND is_summarized = 0`,
		groupID, throughID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE group_configs SET last_message_id = ?, last_summary_time = ?, updated_at = ?
		WHERE group_id = ?`,
		throughID, at.UTC().Format(time.RFC3339), time.Now().UTC().Format(time.RFC3339), groupID); err != nil {
		return err
	}
	return tx.Commit()
}

// TopSenders aggregates message counts per human sender within [start, end),
// ordered by count descending, ties broken by most recent message.
func (s *DB) TopSenders(ctx context.Context, groupID int64, start, end time.Time, topN int) ([]SenderCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.sender_id,
		       (SELECT sender_name FROM group_messages
		        WHERE group_id = m.group_id AND sender_id = m.sender_id
		        ORDER BY message_date DESC LIMIT 1),
		       COUNT(*) AS cnt,
		       MAX(m.message_date) AS last_at
		FROM group_messages m
		WHERE m.group_id = ? AND m.is_bot = 0
		  AND m.message_date >= ? AND m.message_date < ?
		GROUP BY m.sender_id
		ORDER BY cnt DESC, last_at DESC
		LIMIT ?`,
		groupID, start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339), topN)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SenderCount
	for rows.Next() {
		var (
			r      SenderCount
			lastAt string
		)
		if err := rows.Scan(&r.SenderID, &r.SenderName, &r.Count, &lastAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CleanupOldMessages deletes summarized messages older than the retention
// period. Returns the number of rows removed.
func (s *DB) CleanupOldMessages(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM group_messages
		WHERE is_summarized = 1 AND message_date < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ---- scan helpers ----

type rowScanner interface{ Scan(dest ...any) error }

func scanGroup(row rowScanner) (GroupConfig, error) {
	var (
		c                      GroupConfig
		enabled, lbEnabled     int
		linuxdo, spoiler       int
		target                 sql.NullInt64
		lastSummary, lastBoard sql.NullString
		createdAt, updatedAt   sql.NullString
	)
	err := row.Scan(&c.GroupID, &c.GroupName, &enabled, &c.Schedule,
		&lbEnabled, &c.LeaderboardSchedule, &c.LeaderboardWindow,
		&target, &lastSummary, &lastBoard, &c.LastMessageID,
		&linuxdo, &spoiler, &createdAt, &updatedAt)
	if err != nil {
		return GroupConfig{}, err
	}
	c.Enabled = enabled != 0
	c.LeaderboardEnabled = lbEnabled != 0
	c.LinuxDoEnabled = linuxdo != 0
	c.SpoilerEnabled = spoiler != 0
	c.TargetChatID = target.Int64
	c.LastSummaryTime = parseNullTime(lastSummary)
	c.LastLeaderboardTime = parseNullTime(lastBoard)
	if createdAt.Valid {
		c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt.String)
	}
	if updatedAt.Valid {
		c.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt.String)
	}
	return c, nil
}

func scanGroups(rows *sql.Rows) ([]GroupConfig, error) {
	var out []GroupConfig
	for rows.Next() {
		c, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// parseNullTime returns nil for NULL or unparseable timestamps; a corrupted
// watermark then behaves like "never ran" rather than failing the tick.
func parseNullTime(v sql.NullString) *time.Time {
	if !v.Valid || strings.TrimSpace(v.String) == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, v.String)
	if err != nil {
		return nil
	}
	return &t
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
