package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/carequery/decision-support/internal/domain/providers"
	"github.com/carequery/decision-support/internal/infrastructure/clients/aimetrics"
	"github.com/carequery/decision-support/pkg/config"
)

const (
	defaultBaseURL = "https://api.anthropic.com/v1"
	apiVersion     = "2023-06-01"
)

// Client implements completion over the Anthropic messages API. It is
// interchangeable with the OpenAI client behind the CompletionProvider
// capability.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

var _ providers.CompletionProvider = (*Client)(nil)

// NewClient creates a new Anthropic client
func NewClient(cfg *config.LLMConfig) (*Client, error) {
	if cfg == nil || cfg.AnthropicKey == "" {
		return nil, errors.New("anthropic api key is required")
	}

	model := cfg.AnthropicModel
	if model == "" {
		model = "claude-3-5-sonnet-20241022"
	}

	return &Client{
		apiKey:  cfg.AnthropicKey,
		model:   model,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// Name returns the provider identity
func (c *Client) Name() string { return "anthropic" }

// Model returns the configured completion model
func (c *Client) Model() string { return c.model }

// SetBaseURL overrides the API base URL. Used by tests.
func (c *Client) SetBaseURL(u string) { c.baseURL = u }

type messageRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messageResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Complete sends the prompt and returns the model's text plus token usage
func (c *Client) Complete(ctx context.Context, prompt string, maxTokens int) (*providers.Completion, error) {
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	body, err := json.Marshal(messageRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages:  []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		aimetrics.RecordCompletion(ctx, c.Name(), c.model, 0, time.Since(start), err)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("anthropic request failed with status %d", resp.StatusCode)
		aimetrics.RecordCompletion(ctx, c.Name(), c.model, resp.StatusCode, time.Since(start), err)
		return nil, err
	}

	var envelope messageResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		aimetrics.RecordCompletion(ctx, c.Name(), c.model, resp.StatusCode, time.Since(start), err)
		return nil, err
	}

	var text string
	for _, block := range envelope.Content {
		if block.Type == "text" && block.Text != "" {
			text = block.Text
			break
		}
	}
	if text == "" {
		err := errors.New("anthropic response missing text content")
		aimetrics.RecordCompletion(ctx, c.Name(), c.model, resp.StatusCode, time.Since(start), err)
		return nil, err
	}

	tokens := envelope.Usage.InputTokens + envelope.Usage.OutputTokens
	aimetrics.RecordCompletion(ctx, c.Name(), c.model, resp.StatusCode, time.Since(start), nil)
	aimetrics.RecordTokens(ctx, c.Name(), c.model, tokens)
	return &providers.Completion{
		Text:       text,
		TokensUsed: tokens,
	}, nil
}
