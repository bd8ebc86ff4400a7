package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/carequery/decision-support/pkg/config"
)

// trustedMedicalDomains restricts live search to sources a clinician can
// reasonably cite.
var trustedMedicalDomains = []string{
	"pubmed.ncbi.nlm.nih.gov",
	"nejm.org",
	"bmj.com",
	"jama.ama-assn.org",
	"thelancet.com",
	"who.int",
	"cdc.gov",
	"nih.gov",
	"mayoclinic.org",
	"clevelandclinic.org",
}

// Client is a minimal REST client to the Tavily search API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Result is one raw search hit before evidence normalization
type Result struct {
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	Content     string  `json:"content"`
	Score       float64 `json:"score"`
	PublishedAt string  `json:"published_date,omitempty"`
}

// NewClient creates a new Tavily client
func NewClient(cfg *config.WebSearchConfig) (*Client, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, errors.New("tavily api key is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.tavily.com"
	}
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}, nil
}

// SetBaseURL overrides the API base URL. Used by tests.
func (c *Client) SetBaseURL(u string) { c.baseURL = u }

type searchRequest struct {
	APIKey         string   `json:"api_key"`
	Query          string   `json:"query"`
	SearchDepth    string   `json:"search_depth"`
	MaxResults     int      `json:"max_results"`
	IncludeDomains []string `json:"include_domains,omitempty"`
}

type searchResponse struct {
	Results []Result `json:"results"`
}

// Search runs an advanced-depth search restricted to trusted medical domains
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if maxResults <= 0 {
		maxResults = 5
	}

	body, err := json.Marshal(searchRequest{
		APIKey:         c.apiKey,
		Query:          query,
		SearchDepth:    "advanced",
		MaxResults:     maxResults,
		IncludeDomains: trustedMedicalDomains,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("tavily request failed with status %d", resp.StatusCode)
	}

	var envelope searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, err
	}

	if len(envelope.Results) > maxResults {
		envelope.Results = envelope.Results[:maxResults]
	}
	return envelope.Results, nil
}
