// Package llm wraps an OpenAI-compatible chat completion endpoint for chat
// transcript summarization.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"digestbot/internal/config"
	"digestbot/pkg/logx"
)

const systemPrompt = "你是一个专业的消息总结助手。"

// promptTemplate keeps the final output under Telegram's single-message size.
const promptTemplate = `请对以下群组聊天消息进行总结，提取关键信息和重要讨论点：

%s

请用简洁的语言总结以上内容，包括：
1. 主要讨论话题
2. 重要结论或决定
3. 值得关注的信息

重要约束：
- 输出将通过 Telegram 单条消息发送，请将最终总结控制在 3200 个中文字符以内（包含标点和换行）。
- 如果内容过多，请主动压缩表达、合并同类项，保留关键结论与高价值信息。

总结：`

// Result is one completed summarization.
type Result struct {
	Content    string
	TokensUsed int
	Model      string
}

// Client talks to any OpenAI-compatible /chat/completions endpoint.
type Client struct {
	api         *openai.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
	log         logx.Logger
}

func New(cfg config.LLMConfig, timeout time.Duration, model string, log logx.Logger) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		oc.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	}
	return &Client{
		api:         openai.NewClientWithConfig(oc),
		model:       model,
		maxTokens:   cfg.MaxTokens,
		temperature: float32(cfg.Temperature),
		timeout:     timeout,
		log:         log,
	}
}

// Timeout is the per-call deadline this client applies.
func (c *Client) Timeout() time.Duration { return c.timeout }

// Summarize condenses transcript lines into a digest. The call is bounded by
// the configured timeout on top of whatever deadline ctx already carries.
func (c *Client) Summarize(ctx context.Context, lines []string) (Result, error) {
	if len(lines) == 0 {
		return Result{}, fmt.Errorf("nothing to summarize")
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(promptTemplate, strings.Join(lines, "\n"))},
		},
	}
	if c.maxTokens > 0 {
		req.MaxTokens = c.maxTokens
	}
	if c.temperature != 0 {
		req.Temperature = c.temperature
	}

	started := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, fmt.Errorf("chat completion: empty choices")
	}

	choice := resp.Choices[0]
	if choice.FinishReason != openai.FinishReasonStop && choice.FinishReason != "" {
		c.log.Warn("summary may be truncated",
			logx.String("finish_reason", string(choice.FinishReason)),
			logx.Int("max_tokens", c.maxTokens),
		)
	}

	content := strings.TrimSpace(choice.Message.Content)
	if content == "" {
		return Result{}, fmt.Errorf("chat completion: empty content")
	}

	c.log.Debug("summary generated",
		logx.Int("lines", len(lines)),
		logx.Int("tokens", resp.Usage.TotalTokens),
		logx.Duration("took", time.Since(started)),
	)

	return Result{
		Content:    content,
		TokensUsed: resp.Usage.TotalTokens,
		Model:      resp.Model,
	}, nil
}
