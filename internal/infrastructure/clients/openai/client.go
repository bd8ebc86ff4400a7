package openai

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

const defaultBaseURL = "https://api.openai.com/v1"

// Client implements completion and embedding over the OpenAI HTTP API.
type Client struct {
	apiKey         string
	model          string
	embeddingModel string
	baseURL        string
	httpClient     *http.Client
	limiter        *tokenBucket
}

var (
	_ providers.CompletionProvider = (*Client)(nil)
	_ providers.EmbeddingProvider  = (*Client)(nil)
)

// NewClient creates a new OpenAI client
func NewClient(cfg *config.LLMConfig, embedCfg *config.EmbeddingConfig) (*Client, error) {
	if cfg == nil || cfg.OpenAIAPIKey == "" {
		return nil, errors.New("openai api key is required")
	}

	model := cfg.OpenAIModel
	if model == "" {
		model = "gpt-4o-mini"
	}
	embeddingModel := "text-embedding-3-small"
	if embedCfg != nil && embedCfg.Model != "" {
		embeddingModel = embedCfg.Model
	}

	return &Client{
		apiKey:         cfg.OpenAIAPIKey,
		model:          model,
		embeddingModel: embeddingModel,
		baseURL:        defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: newTokenBucket(cfg.RateLimitRPM, cfg.RateLimitBurst),
	}, nil
}

// Name returns the provider identity
func (c *Client) Name() string { return "openai" }

// Model returns the configured completion model
func (c *Client) Model() string { return c.model }

// SetBaseURL overrides the API base URL. Used by tests.
func (c *Client) SetBaseURL(u string) { c.baseURL = u }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Complete sends the prompt and returns the model's text plus token usage.
// Temperature is pinned to zero: recommendations must be reproducible.
func (c *Client) Complete(ctx context.Context, prompt string, maxTokens int) (*providers.Completion, error) {
	if c.limiter != nil {
		waitStart := time.Now()
		if err := c.limiter.Wait(ctx); err != nil {
			aimetrics.RecordCompletion(ctx, c.Name(), c.model, 0, 0, err)
			return nil, err
		}
		aimetrics.RecordRateLimitWait(ctx, c.Name(), c.model, time.Since(waitStart))
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 0,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		aimetrics.RecordCompletion(ctx, c.Name(), c.model, 0, time.Since(start), err)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("openai request failed with status %d", resp.StatusCode)
		aimetrics.RecordCompletion(ctx, c.Name(), c.model, resp.StatusCode, time.Since(start), err)
		return nil, err
	}

	var envelope chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		aimetrics.RecordCompletion(ctx, c.Name(), c.model, resp.StatusCode, time.Since(start), err)
		return nil, err
	}
	if len(envelope.Choices) == 0 || envelope.Choices[0].Message.Content == "" {
		err := errors.New("openai response missing completion text")
		aimetrics.RecordCompletion(ctx, c.Name(), c.model, resp.StatusCode, time.Since(start), err)
		return nil, err
	}

	aimetrics.RecordCompletion(ctx, c.Name(), c.model, resp.StatusCode, time.Since(start), nil)
	aimetrics.RecordTokens(ctx, c.Name(), c.model, envelope.Usage.TotalTokens)
	return &providers.Completion{
		Text:       envelope.Choices[0].Message.Content,
		TokensUsed: envelope.Usage.TotalTokens,
	}, nil
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns the fixed-length embedding vector for the text
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embeddingRequest{
		Model: c.embeddingModel,
		Input: text,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("openai embeddings request failed with status %d", resp.StatusCode)
	}

	var envelope embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, err
	}
	if len(envelope.Data) == 0 || len(envelope.Data[0].Embedding) == 0 {
		return nil, errors.New("openai embeddings response missing vector")
	}

	return envelope.Data[0].Embedding, nil
}
