// Package llm wraps the Gemini API behind a single chat-completion call.
package llm

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"aifeed/internal/provider"
)

const providerName = "gemini"

// DefaultModel is the model used when a call does not name one.
const DefaultModel = "gemini-flash-lite-latest"

// Message is one conversation turn. Role is "user" or "assistant".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage reports token consumption for one completion.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// CompletionRequest describes one chat completion call. No streaming.
type CompletionRequest struct {
	System      string
	Messages    []Message
	MaxTokens   int32
	Temperature float32
	Model       string // optional, defaults to the client's model
}

// Completion is the result of one call.
type Completion struct {
	Text  string
	Usage Usage
}

// Chat is the completion interface consumed by the report builder, the
// podcast composer, and the discovery service.
type Chat interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

// Client is a Gemini-backed Chat.
type Client struct {
	modelName string
	timeout   time.Duration
	gClient   *genai.Client
}

// NewClient creates a Gemini client. modelName defaults to DefaultModel and
// timeout bounds each completion call.
func NewClient(ctx context.Context, apiKey, modelName string, timeout time.Duration) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if modelName == "" {
		modelName = DefaultModel
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	gClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{modelName: modelName, timeout: timeout, gClient: gClient}, nil
}

// Complete runs one blocking chat completion.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	model := req.Model
	if model == "" {
		model = c.modelName
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := genai.RoleUser
		if m.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Parts: []*genai.Part{{Text: m.Content}},
			Role:  role,
		})
	}

	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(req.Temperature)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.gClient.Models.GenerateContent(callCtx, model, contents, cfg)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return nil, provider.New(providerName, provider.KindTransient, 0, "completion timed out")
		}
		return nil, provider.New(providerName, provider.KindTransient, 0, err.Error())
	}

	text := resp.Text()
	if text == "" {
		return nil, provider.New(providerName, provider.KindTransient, 0, "empty response from model")
	}

	completion := &Completion{Text: text}
	if resp.UsageMetadata != nil {
		completion.Usage = Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	return completion, nil
}
