package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"errors"
	"strconv"
	"time"
)

// Token storage for linux.do access. Tokens are XOR-obfuscated with a key
// derived from the user id and base64-encoded before hitting disk. This is
// obfuscation, not encryption: it keeps tokens out of casual database dumps
// but anyone with the row and the user id can recover them.

func obfuscateToken(token string, userID int64) string {
	if token == "" {
		return ""
	}
	key := sha256.Sum256([]byte(strconv.FormatInt(userID, 10)))
	raw := []byte(token)
	out := make([]byte, len(raw))
	for i, b := range raw {
		out[i] = b ^ key[i%len(key)]
	}
	return base64.StdEncoding.EncodeToString(out)
}

func deobfuscateToken(encoded string, userID int64) string {
	if encoded == "" {
		return ""
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return ""
	}
	key := sha256.Sum256([]byte(strconv.FormatInt(userID, 10)))
	out := make([]byte, len(raw))
	for i, b := range raw {
		out[i] = b ^ key[i%len(key)]
	}
	return string(out)
}

// SaveUserToken stores (or replaces) a user's linux.do token.
func (s *DB) SaveUserToken(ctx context.Context, userID int64, token string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_tokens (user_id, linuxdo_token, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			linuxdo_token = excluded.linuxdo_token,
			updated_at = excluded.updated_at`,
		userID, obfuscateToken(token, userID), time.Now().UTC().Format(time.RFC3339))
	return err
}

// GetUserToken returns the user's token, or "" when none is stored.
func (s *DB) GetUserToken(ctx context.Context, userID int64) (string, error) {
	var enc sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT linuxdo_token FROM user_tokens WHERE user_id = ?`, userID).Scan(&enc)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return deobfuscateToken(enc.String, userID), nil
}

// DeleteUserToken removes the user's token. Returns false when none existed.
func (s *DB) DeleteUserToken(ctx context.Context, userID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM user_tokens WHERE user_id = ?`, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
