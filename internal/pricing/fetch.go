package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// LiteLLMPricingURL is the community-maintained model price list.
const LiteLLMPricingURL = "https://raw.githubusercontent.com/BerriAI/litellm/main/model_prices_and_context_window.json"

// liteLLMModel rates are already per token.
type liteLLMModel struct {
	InputCostPerToken  float64 `json:"input_cost_per_token"`
	OutputCostPerToken float64 `json:"output_cost_per_token"`
	CacheCreationCost  float64 `json:"cache_creation_input_token_cost"`
	CacheReadCost      float64 `json:"cache_read_input_token_cost"`
	LiteLLMProvider    string  `json:"litellm_provider"`
}

// Fetcher downloads a fresh pricing table.
type Fetcher struct {
	client *http.Client
	url    string
}

func NewFetcher(client *http.Client, url string) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if url == "" {
		url = LiteLLMPricingURL
	}
	return &Fetcher{client: client, url: url}
}

// Fetch returns the Anthropic models from the remote list.
func (f *Fetcher) Fetch(ctx context.Context) (Table, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pricing fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pricing fetch: API returned status %d", resp.StatusCode)
	}

	// the document mixes model objects with a sample_spec entry of another shape
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("pricing fetch: decode: %w", err)
	}

	table := make(Table)
	for name, msg := range raw {
		var m liteLLMModel
		if err := json.Unmarshal(msg, &m); err != nil {
			continue
		}
		if m.LiteLLMProvider != "anthropic" {
			continue
		}
		table[name] = ModelPricing{
			InputCostPerToken:         m.InputCostPerToken,
			OutputCostPerToken:        m.OutputCostPerToken,
			CacheCreationCostPerToken: m.CacheCreationCost,
			CacheReadCostPerToken:     m.CacheReadCost,
		}
	}
	if len(table) == 0 {
		return nil, fmt.Errorf("pricing fetch: no anthropic models in response")
	}
	return table, nil
}
