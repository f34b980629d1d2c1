package digest

import (
	"fmt"
	"strings"
	"time"

	"digestbot/internal/storage"
)

// Transcript flattens messages into one prompt line each. Media-only
// messages become their bracketed media tag; captions keep the tag as a
// prefix. Timestamps are rendered in the configured UTC offset.
func Transcript(msgs []storage.Message, tzOffsetMin int) []string {
	offset := time.Duration(tzOffsetMin) * time.Minute
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		sender := m.SenderName
		if strings.TrimSpace(sender) == "" {
			sender = "Unknown"
		}
		content := m.Content
		if m.MediaType != "" {
			if content == "" {
				content = "[" + m.MediaType + "]"
			} else {
				content = "[" + m.MediaType + "] " + content
			}
		}
		ts := m.Date.UTC().Add(offset).Format("15:04")
		lines = append(lines, fmt.Sprintf("[%s] %s: %s", ts, sender, content))
	}
	return lines
}
