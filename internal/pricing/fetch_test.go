package pricing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetcherKeepsAnthropicModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"sample_spec": {"max_tokens": "set to max"},
			"claude-sonnet-4-20250514": {
				"input_cost_per_token": 3e-06,
				"output_cost_per_token": 1.5e-05,
				"cache_creation_input_token_cost": 3.75e-06,
				"cache_read_input_token_cost": 3e-07,
				"litellm_provider": "anthropic"
			},
			"gpt-4o": {"input_cost_per_token": 5e-06, "litellm_provider": "openai"}
		}`))
	}))
	defer srv.Close()

	table, err := NewFetcher(srv.Client(), srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, table, 1)
	assert.Equal(t, 3e-06, table["claude-sonnet-4-20250514"].InputCostPerToken)
}

func TestFetcherStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewFetcher(srv.Client(), srv.URL).Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
