// Package explain は単語の解説文を生成する外部コラボレータです。
// 生成した文はエントリの ai_explanation に追記されるだけで、コアは内容を解釈しない。
package explain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"go_vocab_drill/internal/model"
)

// DefaultModel は設定がない場合のモデル
const DefaultModel = anthropic.ModelClaudeSonnet4_5_20250929

//go:generate mockery --name Explainer --output ./mocks --outpkg mocks
type Explainer interface {
	Explain(ctx context.Context, e model.Entry) (string, error)
}

// AIError はAPI呼び出しの失敗
type AIError struct {
	Message    string
	StatusCode int
	RequestID  string
}

func (e *AIError) Error() string {
	msg := fmt.Sprintf("AI API error (%d): %s", e.StatusCode, e.Message)
	if e.RequestID != "" {
		msg += fmt.Sprintf(" (request-id: %s)", e.RequestID)
	}
	return msg
}

// Unwrap により外部サービスの失敗として扱える
func (e *AIError) Unwrap() error { return model.ErrUnavailable }

type ClaudeExplainer struct {
	client  *anthropic.Client
	model   anthropic.Model
	timeout time.Duration
}

func NewClaudeExplainer(apiKey, modelName string) (*ClaudeExplainer, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("NewClaudeExplainer: API key cannot be empty")
	}
	m := anthropic.Model(modelName)
	if modelName == "" {
		m = DefaultModel
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &ClaudeExplainer{client: &client, model: m, timeout: 60 * time.Second}, nil
}

func (c *ClaudeExplainer) Explain(ctx context.Context, e model.Entry) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 600,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(e))),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", &AIError{Message: apiErr.Error(), StatusCode: apiErr.StatusCode, RequestID: apiErr.RequestID}
		}
		return "", &AIError{Message: fmt.Sprintf("failed to call Claude API: %v", err), StatusCode: 500}
	}

	var b strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			b.WriteString(block.AsText().Text)
		}
	}
	return cleanResponse(b.String())
}

func buildPrompt(e model.Entry) string {
	var b strings.Builder
	b.WriteString("You are a tutor helping a Burmese speaker learn Thai vocabulary.\n")
	b.WriteString("Explain the following Thai word briefly: pronunciation (romanized), part of speech, ")
	b.WriteString("meaning in Burmese, and one short example sentence in Thai with a Burmese translation.\n")
	b.WriteString("Answer in plain text, at most 6 lines, no markdown.\n\n")
	fmt.Fprintf(&b, "Thai: %s\n", e.Thai)
	if s := e.SecondaryText(); s != "" {
		fmt.Fprintf(&b, "Known Burmese gloss: %s\n", s)
	}
	if c := e.CategoryLabel(); c != "" {
		fmt.Fprintf(&b, "Category: %s\n", c)
	}
	return b.String()
}

// cleanResponse はコードブロックの囲いと余分な空白を取り除く
func cleanResponse(text string) (string, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```text")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &AIError{Message: "empty explanation", StatusCode: 502}
	}
	return text, nil
}
