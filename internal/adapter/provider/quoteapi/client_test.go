package quoteapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/simaogato/wealthflow-core/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestClient_GetQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quote", r.URL.Path)
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		assert.Equal(t, "secret", r.URL.Query().Get("token"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"c":189.5,"d":1.25,"dp":0.6645,"h":190.1,"l":187.2,"o":188,"pc":188.25,"t":1700000000}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret", discardLogger)
	quote, err := client.GetQuote(context.Background(), " aapl ")
	require.NoError(t, err)

	assert.Equal(t, "AAPL", quote.Symbol)
	assert.True(t, quote.Price.Equal(decimal.RequireFromString("189.5")))
	assert.True(t, quote.Change.Equal(decimal.RequireFromString("1.25")))
	assert.True(t, quote.ChangePercent.Equal(decimal.RequireFromString("0.6645")))
	assert.Equal(t, "USD", quote.Currency)
	assert.True(t, quote.IsLive)
	assert.Equal(t, int64(1700000000), quote.Timestamp.Unix())
	assert.True(t, client.Healthy())
}

func TestClient_GetQuote_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"unknown symbol", http.StatusOK, `{"c":0,"d":null,"dp":null,"t":0}`, domain.ErrQuoteUnavailable},
		{"rate limited", http.StatusTooManyRequests, `{"error":"API limit reached"}`, domain.ErrQuoteUnavailable},
		{"server error", http.StatusBadGateway, ``, domain.ErrQuoteUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient(server.URL, "secret", discardLogger)
			_, err := client.GetQuote(context.Background(), "AAPL")
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			assert.True(t, client.Healthy(), "transient failures do not latch")
		})
	}
}

func TestClient_RejectedCredentialsLatch(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(status)
			}))
			defer server.Close()

			client := NewClient(server.URL, "expired", discardLogger)
			_, err := client.GetQuote(context.Background(), "MSFT")
			assert.True(t, errors.Is(err, domain.ErrInvalidCredentials))
			assert.False(t, client.Healthy())

			for i := 0; i < 3; i++ {
				quote, err := client.GetQuote(context.Background(), "MSFT")
				require.NoError(t, err)
				assert.False(t, quote.IsLive)
				assert.Equal(t, "MSFT", quote.Symbol)
			}
			assert.Equal(t, int32(1), calls.Load(), "no calls after the latch")
		})
	}
}

func TestClient_NoTokenServesSimulated(t *testing.T) {
	client := NewClient("http://127.0.0.1:0", "", discardLogger)
	assert.False(t, client.Healthy())

	first, err := client.GetQuote(context.Background(), "NVDA")
	require.NoError(t, err)
	second, err := client.GetQuote(context.Background(), "nvda")
	require.NoError(t, err)

	assert.False(t, first.IsLive)
	assert.True(t, first.Price.Equal(second.Price), "simulated prices are stable within a day")
}
