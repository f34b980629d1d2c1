// Package linuxdo unfurls linux.do forum links via the Discourse JSON API.
// An optional per-user _t cookie grants access to login-gated topics.
package linuxdo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"digestbot/pkg/logx"
)

const (
	defaultBaseURL = "https://linux.do"
	// MaxLinks caps how many links a single message unfurls.
	MaxLinks = 3

	excerptLimit = 400
)

var urlPattern = regexp.MustCompile(`(?i)https?://(?:www\.)?linux\.do/(?:t|p)/[^\s<>\[\]()]+`)

// ExtractURLs returns up to MaxLinks linux.do topic/post links found in text.
func ExtractURLs(text string) []string {
	urls := urlPattern.FindAllString(text, MaxLinks)
	return urls
}

// Topic is the subset of a Discourse topic the unfurl card needs.
type Topic struct {
	Title      string
	PostsCount int
	Views      int
	LikeCount  int
	Author     string
	Excerpt    string
	URL        string
}

type Client struct {
	http    *http.Client
	baseURL string
	log     logx.Logger
}

func New(baseURL string, log logx.Logger) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		http:    &http.Client{Timeout: 15 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log,
	}
}

// Fetch loads the topic behind a linux.do link. token is the _t cookie value
// and may be empty for public topics.
func (c *Client) Fetch(ctx context.Context, rawURL, token string) (*Topic, error) {
	jsonURL, err := c.jsonEndpoint(rawURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jsonURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; digestbot)")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "_t", Value: token})
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", jsonURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: http %d", jsonURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, err
	}
	topic, err := parseTopic(body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", jsonURL, err)
	}
	topic.URL = rawURL
	return topic, nil
}

// jsonEndpoint maps a web link to its Discourse JSON endpoint. Topic links
// (/t/slug/id[/post]) and short post links (/p/id) both accept a .json
// suffix on the path.
func (c *Client) jsonEndpoint(rawURL string) (string, error) {
	m := urlPattern.FindString(rawURL)
	if m == "" {
		return "", fmt.Errorf("not a linux.do topic link: %q", rawURL)
	}
	// Keep only the path; query strings and fragments confuse the API.
	if i := strings.IndexAny(m, "?#"); i >= 0 {
		m = m[:i]
	}
	idx := strings.Index(m, "linux.do")
	path := strings.TrimRight(m[idx+len("linux.do"):], "/")
	return c.baseURL + path + ".json", nil
}

type topicJSON struct {
	Title      string `json:"title"`
	PostsCount int    `json:"posts_count"`
	Views      int    `json:"views"`
	LikeCount  int    `json:"like_count"`
	PostStream struct {
		Posts []struct {
			Username string `json:"username"`
			Cooked   string `json:"cooked"`
		} `json:"posts"`
	} `json:"post_stream"`
}

func parseTopic(body []byte) (*Topic, error) {
	var tj topicJSON
	if err := json.Unmarshal(body, &tj); err != nil {
		return nil, err
	}
	if strings.TrimSpace(tj.Title) == "" {
		return nil, fmt.Errorf("topic has no title")
	}
	t := &Topic{
		Title:      tj.Title,
		PostsCount: tj.PostsCount,
		Views:      tj.Views,
		LikeCount:  tj.LikeCount,
	}
	if len(tj.PostStream.Posts) > 0 {
		first := tj.PostStream.Posts[0]
		t.Author = first.Username
		t.Excerpt = excerpt(first.Cooked, excerptLimit)
	}
	return t, nil
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// excerpt strips markup from cooked HTML and truncates on a rune boundary.
func excerpt(cooked string, limit int) string {
	text := tagPattern.ReplaceAllString(cooked, " ")
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) > limit {
		return string(runes[:limit]) + "…"
	}
	return text
}

// Render formats the topic as a reply card.
func Render(t *Topic) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📄 %s\n", t.Title)
	if t.Author != "" {
		fmt.Fprintf(&b, "👤 %s\n", t.Author)
	}
	fmt.Fprintf(&b, "💬 %d 回复 · 👀 %d 浏览 · ❤️ %d\n", t.PostsCount, t.Views, t.LikeCount)
	if t.Excerpt != "" {
		b.WriteString("\n")
		b.WriteString(t.Excerpt)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(t.URL)
	return b.String()
}
