package tavily

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carequery/decision-support/pkg/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(&config.WebSearchConfig{APIKey: "tvly-test"})
	require.NoError(t, err)
	client.SetBaseURL(server.URL)
	return client
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient(&config.WebSearchConfig{})
	assert.Error(t, err)

	_, err = NewClient(nil)
	assert.Error(t, err)
}

func TestSearchSendsAdvancedDomainRestrictedRequest(t *testing.T) {
	var captured searchRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		json.NewEncoder(w).Encode(searchResponse{Results: []Result{
			{Title: "Hypertension guideline", URL: "https://who.int/htn", Content: "first-line therapy", Score: 0.92},
		}})
	})

	results, err := client.Search(context.Background(), "hypertension first-line", 3)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Hypertension guideline", results[0].Title)

	assert.Equal(t, "tvly-test", captured.APIKey)
	assert.Equal(t, "hypertension first-line", captured.Query)
	assert.Equal(t, "advanced", captured.SearchDepth)
	assert.Equal(t, 3, captured.MaxResults)
	assert.Equal(t, trustedMedicalDomains, captured.IncludeDomains)
}

func TestSearchDefaultsMaxResults(t *testing.T) {
	var captured searchRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(searchResponse{})
	})

	_, err := client.Search(context.Background(), "sepsis bundle", 0)
	require.NoError(t, err)
	assert.Equal(t, 5, captured.MaxResults)
}

func TestSearchTruncatesOversizedResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(searchResponse{Results: []Result{
			{Title: "a", Score: 0.9},
			{Title: "b", Score: 0.8},
			{Title: "c", Score: 0.7},
			{Title: "d", Score: 0.6},
		}})
	})

	results, err := client.Search(context.Background(), "anticoagulation", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Title)
	assert.Equal(t, "b", results[1].Title)
}

func TestSearchNonSuccessStatusIsError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})

	_, err := client.Search(context.Background(), "beta blockers asthma", 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
