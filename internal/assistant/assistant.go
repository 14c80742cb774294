// Package assistant answers free-text information questions (opening hours,
// prices, allergens) with a language model. It is only consulted for
// questions the rule layer classified as info requests; ordering never
// depends on it.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/tbourn/orderflow-agent/internal/menu"
)

// ErrEmptyAnswer is returned when the model produced no text.
var ErrEmptyAnswer = errors.New("assistant returned no answer")

// Question is an info request with the context the model may use.
type Question struct {
	TenantName string
	Language   string
	Menu       []menu.Item
	Text       string
}

// Responder answers info questions.
type Responder interface {
	Answer(ctx context.Context, q Question) (string, error)
}

// Config configures the OpenAI responder.
type Config struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
	Timeout   time.Duration
}

// OpenAI answers with the chat completions API.
type OpenAI struct {
	client    *openai.Client
	model     string
	maxTokens int
	timeout   time.Duration
}

// NewOpenAI builds the responder.
func NewOpenAI(cfg Config) *OpenAI {
	c := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		c.BaseURL = cfg.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 200
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &OpenAI{
		client:    openai.NewClientWithConfig(c),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		timeout:   cfg.Timeout,
	}
}

// Answer asks the model for a short reply in the customer's language.
func (o *OpenAI) Answer(ctx context.Context, q Question) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		MaxTokens:   o.maxTokens,
		Temperature: 0.2,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt(q)},
			{Role: openai.ChatMessageRoleUser, Content: q.Text},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyAnswer
	}
	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if answer == "" {
		return "", ErrEmptyAnswer
	}
	return answer, nil
}

// SystemPrompt grounds the model in the tenant's menu.
func SystemPrompt(q Question) string {
	lang := "Danish"
	if q.Language == "en" {
		lang = "English"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You answer customer questions for the restaurant %q by SMS or chat. ", q.TenantName)
	fmt.Fprintf(&b, "Reply in %s in at most two short sentences. ", lang)
	b.WriteString("Only use the facts below; if the answer is not there, say a member of staff will reply. ")
	b.WriteString("Never take or confirm orders.\n\nMenu:\n")
	for _, it := range q.Menu {
		fmt.Fprintf(&b, "- %s (%s): %.2f", it.Name, it.Category, it.Price)
		if len(it.Allergens) > 0 {
			fmt.Fprintf(&b, ", allergens: %s", strings.Join(it.Allergens, ", "))
		}
		b.WriteByte('\n')
	}
	return b.String()
}
