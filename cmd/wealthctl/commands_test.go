package main

import (
	"bytes"
	"context"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/subcommands"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simaogato/wealthflow-core/internal/adapter/repository/memory"
	"github.com/simaogato/wealthflow-core/internal/config"
	"github.com/simaogato/wealthflow-core/internal/domain"
)

var checkingID = uuid.MustParse("3b9a0c1e-7d51-4c59-8f43-5a1c0a6e0001")

func ratesServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(`{"result":"success","base_code":"USD","time_last_update_unix":1700000000,
			"rates":{"USD":1,"EUR":0.85,"GBP":0.79}}`))
	}))
	t.Cleanup(server.Close)
	return server
}

// testEnv returns an environment with config preloaded and an in-memory store
func testEnv(t *testing.T, ratesURL string, state *domain.State) (*environment, domain.StateStore, *bytes.Buffer) {
	t.Helper()
	cfg := config.Default()
	cfg.Providers.RatesURL = ratesURL
	cfg.Providers.QuoteURL = "http://127.0.0.1:0"

	store := memory.NewStateStore(state)
	out := &bytes.Buffer{}
	env := &environment{
		out:     out,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		cfg:     cfg,
		secrets: &config.Secrets{},
		openStore: func(context.Context) (domain.StateStore, func(), error) {
			return store, func() {}, nil
		},
	}
	return env, store, out
}

func execute(t *testing.T, cmd subcommands.Command, args ...string) subcommands.ExitStatus {
	t.Helper()
	f := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	cmd.SetFlags(f)
	require.NoError(t, f.Parse(args))
	return cmd.Execute(context.Background(), f)
}

func usdState() *domain.State {
	return &domain.State{
		Settings: domain.Settings{Currency: "USD"},
		Accounts: []domain.Account{
			{ID: checkingID, Name: "Checking", Type: domain.AccountTypeChecking, Balance: decimal.NewFromInt(1000), Currency: "USD"},
		},
	}
}

func TestConvertCmd(t *testing.T) {
	server := ratesServer(t, http.StatusOK)
	env, _, out := testEnv(t, server.URL, nil)

	status := execute(t, &convertCmd{env: env}, "85", "eur", "usd")

	assert.Equal(t, subcommands.ExitSuccess, status)
	assert.Equal(t, "$100.00\n", out.String())
}

func TestConvertCmd_Usage(t *testing.T) {
	env, _, _ := testEnv(t, "http://127.0.0.1:0", nil)

	assert.Equal(t, subcommands.ExitUsageError, execute(t, &convertCmd{env: env}, "85", "EUR"))
	assert.Equal(t, subcommands.ExitFailure, execute(t, &convertCmd{env: env}, "lots", "EUR", "USD"))
}

func TestRatesCmd(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   string
	}{
		{"live table", http.StatusOK, "1 USD (API)\n"},
		{"provider down prints the fallback table", http.StatusInternalServerError, "1 USD (FALLBACK)\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := ratesServer(t, tt.status)
			env, _, out := testEnv(t, server.URL, nil)

			status := execute(t, &ratesCmd{env: env})

			assert.Equal(t, subcommands.ExitSuccess, status)
			assert.Contains(t, out.String(), tt.want)
			assert.Contains(t, out.String(), "  EUR ")
		})
	}
}

func TestQuoteCmd_SimulatedWithoutToken(t *testing.T) {
	env, _, out := testEnv(t, "http://127.0.0.1:0", nil)

	status := execute(t, &quoteCmd{env: env}, "AAPL")

	assert.Equal(t, subcommands.ExitSuccess, status)
	assert.Contains(t, out.String(), "AAPL $")
	assert.Contains(t, out.String(), "simulated")
}

func TestNetWorthCmd(t *testing.T) {
	env, _, out := testEnv(t, "http://127.0.0.1:0", usdState())

	status := execute(t, &netWorthCmd{env: env})

	assert.Equal(t, subcommands.ExitSuccess, status)
	assert.Contains(t, out.String(), "Total              $1,000.00")
}

func TestSwitchCurrencyCmd(t *testing.T) {
	server := ratesServer(t, http.StatusOK)
	env, store, out := testEnv(t, server.URL, usdState())

	status := execute(t, &switchCurrencyCmd{env: env}, "EUR")

	require.Equal(t, subcommands.ExitSuccess, status)
	assert.Contains(t, out.String(), "switched USD -> EUR")

	state, err := store.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "EUR", state.Settings.Currency)
	assert.True(t, decimal.NewFromInt(850).Equal(state.Accounts[0].Balance))
}

func TestLogExpenseCmd(t *testing.T) {
	env, store, out := testEnv(t, "http://127.0.0.1:0", usdState())

	status := execute(t, &logExpenseCmd{env: env}, "-d", "Coffee", "-c", "Food", "-date", "2026-03-02", "4.50")

	require.Equal(t, subcommands.ExitSuccess, status)
	assert.Contains(t, out.String(), "logged $4.50")

	state, err := store.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, state.Expenses, 1)
	assert.Equal(t, "Coffee", state.Expenses[0].Description)
}

func TestStoreRequiresDatabase(t *testing.T) {
	env, _, _ := testEnv(t, "http://127.0.0.1:0", nil)
	env.openStore = nil

	_, _, err := env.store(context.Background())
	assert.ErrorIs(t, err, errNoDatabase)
	assert.Equal(t, subcommands.ExitFailure, execute(t, &netWorthCmd{env: env}))
}

func TestParseSplitRule(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	rule, err := parseSplitRule("fixed:" + a.String() + ":50, rest:" + b.String())
	require.NoError(t, err)
	require.Len(t, rule.Items, 2)
	assert.Equal(t, domain.SplitRuleItemTypeFixed, rule.Items[0].Type)
	assert.True(t, decimal.NewFromInt(50).Equal(rule.Items[0].Value))
	assert.Equal(t, b, rule.Items[1].TargetAccountID)

	for _, bad := range []string{
		"fixed:" + a.String(),
		"half:" + a.String() + ":50,rest:" + b.String(),
		"rest:not-a-uuid",
		"fixed:" + a.String() + ":50",
	} {
		_, err := parseSplitRule(bad)
		assert.Error(t, err, bad)
	}
}

func TestRecordIncomeCmd(t *testing.T) {
	env, store, out := testEnv(t, "http://127.0.0.1:0", usdState())

	status := execute(t, &recordIncomeCmd{env: env}, "-d", "Salary", "-to", checkingID.String(), "2500")

	require.Equal(t, subcommands.ExitSuccess, status)
	assert.Contains(t, out.String(), "$2,500.00 -> "+checkingID.String())

	state, err := store.Snapshot(context.Background())
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(3500).Equal(state.Accounts[0].Balance))
}
