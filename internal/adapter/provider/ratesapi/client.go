package ratesapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/simaogato/wealthflow-core/internal/domain"
)

var (
	_ domain.RateProvider = (*Client)(nil)
)

const DefaultBaseURL = "https://open.er-api.com/v6"

// Client fetches exchange-rate tables over HTTP
type Client struct {
	BaseURL string
	Client  *http.Client
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// {"result":"success","base_code":"USD","time_last_update_unix":1700000000,"rates":{"EUR":0.92}}
type latestResponse struct {
	Result    string                     `json:"result"`
	Base      string                     `json:"base_code"`
	UpdatedAt int64                      `json:"time_last_update_unix"`
	Rates     map[string]decimal.Decimal `json:"rates"`
	ErrorType string                     `json:"error-type"`
}

// GetRates returns how much of each supported currency one unit of pivot buys
func (c *Client) GetRates(ctx context.Context, pivot string) (*domain.RateTable, error) {
	pivot = domain.NormalizeCurrency(pivot)
	endpoint := fmt.Sprintf("%s/latest/%s", c.BaseURL, pivot)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build rates request: %w", err)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d: %w", resp.StatusCode, domain.ErrRatesUnavailable)
	}

	var result latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if result.Result != "" && result.Result != "success" {
		return nil, fmt.Errorf("rates api error %q: %w", result.ErrorType, domain.ErrRatesUnavailable)
	}

	rates := make(map[string]decimal.Decimal, len(domain.SupportedCurrencies))
	for _, code := range domain.SupportedCurrencies {
		if r, ok := result.Rates[code]; ok && r.IsPositive() {
			rates[code] = r
		}
	}
	if len(rates) == 0 {
		return nil, fmt.Errorf("no supported currencies in %s table: %w", pivot, domain.ErrRatesUnavailable)
	}

	table := &domain.RateTable{
		Base:   pivot,
		Rates:  rates,
		Source: domain.RateSourceAPI,
	}
	if result.UpdatedAt > 0 {
		table.FetchedAt = time.Unix(result.UpdatedAt, 0).UTC()
	}
	return table, nil
}
