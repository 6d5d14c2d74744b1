package quoteapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"github.com/simaogato/wealthflow-core/internal/domain"
)

var (
	_ domain.QuoteProvider = (*Client)(nil)
)

const DefaultBaseURL = "https://finnhub.io/api/v1"

// Client fetches stock quotes over HTTP.
// Once the API rejects the token it stops calling out and serves simulated quotes for good.
type Client struct {
	BaseURL  string
	Token    string
	Currency string // currency the API quotes prices in
	Client   *http.Client

	logger *slog.Logger
	now    func() time.Time

	// credentialsRejected is a one-way latch
	credentialsRejected atomic.Bool
}

func NewClient(baseURL, token string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		BaseURL:  baseURL,
		Token:    token,
		Currency: domain.DefaultPivotCurrency,
		Client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
		now:      time.Now,
	}
	if token == "" {
		c.credentialsRejected.Store(true)
	}
	return c
}

// {"c":189.5,"d":1.25,"dp":0.66,"h":190.1,"l":187.2,"o":188,"pc":188.25,"t":1700000000}
type quoteResponse struct {
	Current       decimal.Decimal `json:"c"`
	Change        decimal.Decimal `json:"d"`
	ChangePercent decimal.Decimal `json:"dp"`
	Timestamp     int64           `json:"t"`
}

// Healthy is false once the API rejected the token
func (c *Client) Healthy() bool {
	return !c.credentialsRejected.Load()
}

// GetQuote returns the latest quote for symbol.
// The call that first detects rejected credentials returns ErrInvalidCredentials, later calls return simulated quotes.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("empty symbol: %w", domain.ErrQuoteUnavailable)
	}
	if c.credentialsRejected.Load() {
		q := domain.SimulatedQuote(symbol, c.now())
		return &q, nil
	}

	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("token", c.Token)
	endpoint := fmt.Sprintf("%s/quote?%s", c.BaseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build quote request: %w", err)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch quote: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		if c.credentialsRejected.CompareAndSwap(false, true) {
			c.logger.Warn("quote api rejected credentials, serving simulated quotes", "status", resp.StatusCode)
		}
		return nil, fmt.Errorf("status %d: %w", resp.StatusCode, domain.ErrInvalidCredentials)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("rate limited: %w", domain.ErrQuoteUnavailable)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status code: %d: %w", resp.StatusCode, domain.ErrQuoteUnavailable)
	}

	var result quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	// unknown symbols come back as all zeros
	if !result.Current.IsPositive() {
		return nil, fmt.Errorf("no price for %s: %w", symbol, domain.ErrQuoteUnavailable)
	}

	quote := &domain.Quote{
		Symbol:        symbol,
		Price:         result.Current,
		Change:        result.Change,
		ChangePercent: result.ChangePercent,
		Currency:      c.Currency,
		IsLive:        true,
		Timestamp:     c.now(),
	}
	if result.Timestamp > 0 {
		quote.Timestamp = time.Unix(result.Timestamp, 0).UTC()
	}
	return quote, nil
}
