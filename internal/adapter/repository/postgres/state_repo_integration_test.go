//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simaogato/wealthflow-core/internal/domain"
)

var db *DB

// TestMain connects to the database named by the DB_* environment
func TestMain(m *testing.M) {
	var err error
	db, err = NewDB(context.Background(), getDBConnectionString())
	if err != nil {
		panic(fmt.Sprintf("Failed to connect to database: %v", err))
	}

	code := m.Run()

	db.Close()
	os.Exit(code)
}

var (
	checkingID = uuid.MustParse("6f1c7c52-31c8-4d8e-9d71-1f0f7a7f0001")
	acmeID     = uuid.MustParse("6f1c7c52-31c8-4d8e-9d71-1f0f7a7f0002")
)

func seedState() *domain.State {
	return &domain.State{
		Settings: domain.Settings{Currency: "USD"},
		Accounts: []domain.Account{
			{ID: checkingID, Name: "Checking", Type: domain.AccountTypeChecking, Balance: decimal.NewFromInt(2000), Currency: "USD"},
		},
		Assets: []domain.Asset{
			{
				ID:            acmeID,
				Name:          "ACME",
				Currency:      "USD",
				Value:         decimal.NewFromInt(1000),
				PurchasePrice: decimal.NewFromInt(800),
				Symbol:        "ACME",
				AutoRefresh:   true,
				Units: &domain.AssetUnits{
					Quantity:      decimal.NewFromInt(10),
					CurrentPrice:  decimal.NewFromInt(100),
					PurchasePrice: decimal.NewFromInt(80),
				},
			},
		},
	}
}

// resetState drops the stored document and seeds a fresh one
func resetState(t *testing.T) domain.StateStore {
	t.Helper()
	ctx := context.Background()
	_, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS app_state`)
	require.NoError(t, err)
	require.NoError(t, Migrate(ctx, db, seedState()))
	return NewStateRepository(db)
}

func TestStateRepository_MigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := resetState(t)

	require.NoError(t, Migrate(ctx, db, &domain.State{Settings: domain.Settings{Currency: "EUR"}}))

	state, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "USD", state.Settings.Currency, "an existing document must not be reseeded")
	assert.Equal(t, uint64(0), state.Version)
	require.Len(t, state.Accounts, 1)
	assert.True(t, decimal.NewFromInt(2000).Equal(state.Accounts[0].Balance))
}

func TestStateRepository_Replace(t *testing.T) {
	ctx := context.Background()
	store := resetState(t)

	next, err := store.Snapshot(ctx)
	require.NoError(t, err)
	next.SetCurrency("EUR")
	next.Accounts[0].Balance = decimal.NewFromInt(1700)
	require.NoError(t, store.Replace(ctx, next))

	stored, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stored.Version)
	assert.Equal(t, "EUR", stored.Settings.Currency)
	assert.True(t, decimal.NewFromInt(1700).Equal(stored.Accounts[0].Balance))

	// next still carries version 0
	err = store.Replace(ctx, next)
	assert.True(t, errors.Is(err, domain.ErrStaleState))
}

func TestStateRepository_PatchAsset(t *testing.T) {
	ctx := context.Background()
	store := resetState(t)
	at := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)

	err := store.PatchAsset(ctx, acmeID, domain.AssetPricePatch{
		PricePerUnit:     decimal.NewFromInt(120),
		Currency:         "USD",
		IsConnectedToAPI: true,
		UpdatedAt:        at,
	})
	require.NoError(t, err)

	state, err := store.Snapshot(ctx)
	require.NoError(t, err)
	asset := state.FindAsset(acmeID)
	require.NotNil(t, asset)
	assert.True(t, decimal.NewFromInt(1200).Equal(asset.Value))
	assert.True(t, asset.IsConnectedToAPI)
	assert.True(t, at.Equal(asset.LastPriceUpdate))

	err = store.PatchAsset(ctx, uuid.New(), domain.AssetPricePatch{PricePerUnit: decimal.NewFromInt(1), Currency: "USD"})
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	err = store.PatchAsset(ctx, acmeID, domain.AssetPricePatch{PricePerUnit: decimal.NewFromInt(99), Currency: "GBP"})
	assert.True(t, errors.Is(err, domain.ErrStaleState))

	state, err = store.Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(1200).Equal(state.FindAsset(acmeID).Value), "a rejected patch leaves the row untouched")
}

func TestStateRepository_UpdateRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := resetState(t)
	boom := errors.New("boom")

	err := store.Update(ctx, func(s *domain.State) error {
		s.Accounts[0].Balance = decimal.Zero
		return boom
	})
	assert.ErrorIs(t, err, boom)

	state, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), state.Version)
	assert.True(t, decimal.NewFromInt(2000).Equal(state.Accounts[0].Balance))
}

func TestStateRepository_ConcurrentUpdatesSerialize(t *testing.T) {
	ctx := context.Background()
	store := resetState(t)
	const writers = 8

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Update(ctx, func(s *domain.State) error {
				s.Accounts[0].Balance = s.Accounts[0].Balance.Add(decimal.NewFromInt(1))
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	state, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(writers), state.Version)
	assert.True(t, decimal.NewFromInt(2000+writers).Equal(state.Accounts[0].Balance))
}

// getDBConnectionString returns the database connection string from environment or defaults
func getDBConnectionString() string {
	connStr := os.Getenv("DB_CONN_STR")
	if connStr != "" {
		return connStr
	}

	host := os.Getenv("DB_HOST")
	if host == "" {
		host = "localhost"
	}

	port := os.Getenv("DB_PORT")
	if port == "" {
		port = "5432"
	}

	user := os.Getenv("DB_USER")
	if user == "" {
		user = "postgres"
	}

	password := os.Getenv("DB_PASSWORD")
	if password == "" {
		password = "postgres"
	}

	dbname := os.Getenv("DB_NAME")
	if dbname == "" {
		dbname = "wealthflow"
	}

	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable", host, port, user, password, dbname)
}
