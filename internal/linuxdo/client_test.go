package linuxdo

import (
	"strings"
	"testing"

	"digestbot/pkg/logx"
)

func TestExtractURLs(t *testing.T) {
	text := "see https://linux.do/t/topic/12345 and http://www.linux.do/p/678 " +
		"plus https://LINUX.DO/t/slug/9/2 not https://example.com/t/1"
	urls := ExtractURLs(text)
	if len(urls) != 3 {
		t.Fatalf("urls = %v", urls)
	}
	if urls[0] != "https://linux.do/t/topic/12345" {
		t.Fatalf("first url = %q", urls[0])
	}

	// Cap at MaxLinks even when more are present.
	many := strings.Repeat("https://linux.do/t/x/1 ", MaxLinks+2)
	if got := ExtractURLs(many); len(got) != MaxLinks {
		t.Fatalf("expected cap of %d, got %d", MaxLinks, len(got))
	}

	if got := ExtractURLs("no links here"); len(got) != 0 {
		t.Fatalf("expected none, got %v", got)
	}
}

func TestJSONEndpoint(t *testing.T) {
	c := New("", logx.Nop())
	cases := []struct{ in, want string }{
		{"https://linux.do/t/topic/12345", "https://linux.do/t/topic/12345.json"},
		{"https://linux.do/t/topic/12345/7", "https://linux.do/t/topic/12345/7.json"},
		{"https://www.linux.do/p/678", "https://linux.do/p/678.json"},
		{"https://linux.do/t/topic/12345?u=ref", "https://linux.do/t/topic/12345.json"},
	}
	for _, tc := range cases {
		got, err := c.jsonEndpoint(tc.in)
		if err != nil {
			t.Fatalf("jsonEndpoint(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("jsonEndpoint(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
	if _, err := c.jsonEndpoint("https://example.com/t/1"); err == nil {
		t.Fatalf("foreign url accepted")
	}
}

func TestParseTopic(t *testing.T) {
	body := []byte(`{
		"title": "一个话题",
		"posts_count": 12,
		"views": 340,
		"like_count": 5,
		"post_stream": {"posts": [
			{"username": "alice", "cooked": "<p>first <b>post</b> body</p>"},
			{"username": "bob", "cooked": "<p>reply</p>"}
		]}
	}`)
	topic, err := parseTopic(body)
	if err != nil {
		t.Fatalf("parseTopic: %v", err)
	}
	if topic.Title != "一个话题" || topic.Author != "alice" {
		t.Fatalf("unexpected topic: %+v", topic)
	}
	if topic.Excerpt != "first post body" {
		t.Fatalf("excerpt = %q", topic.Excerpt)
	}

	if _, err := parseTopic([]byte(`{"posts_count": 1}`)); err == nil {
		t.Fatalf("title-less topic accepted")
	}
	if _, err := parseTopic([]byte(`not json`)); err == nil {
		t.Fatalf("invalid json accepted")
	}
}

func TestExcerptTruncation(t *testing.T) {
	long := strings.Repeat("字", 500)
	got := excerpt("<p>"+long+"</p>", excerptLimit)
	if !strings.HasSuffix(got, "…") {
		t.Fatalf("expected ellipsis suffix")
	}
	if n := len([]rune(got)); n != excerptLimit+1 {
		t.Fatalf("excerpt length = %d runes", n)
	}
}

func TestRender(t *testing.T) {
	text := Render(&Topic{
		Title: "Topic", Author: "alice", PostsCount: 3, Views: 9, LikeCount: 1,
		Excerpt: "body", URL: "https://linux.do/t/topic/1",
	})
	for _, want := range []string{"📄 Topic", "alice", "3 回复", "https://linux.do/t/topic/1"} {
		if !strings.Contains(text, want) {
			t.Fatalf("render missing %q:\n%s", want, text)
		}
	}
}
