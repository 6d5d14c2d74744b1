package income

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/wealthflow-core/internal/adapter/repository/memory"
	"github.com/simaogato/wealthflow-core/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockConverter is a mock implementation of AmountConverter for testing
type MockConverter struct {
	mock.Mock
}

func (m *MockConverter) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	args := m.Called(ctx, amount, from, to)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// MockSavingsSyncer is a mock implementation of SavingsSyncer for testing
type MockSavingsSyncer struct {
	mock.Mock
}

func (m *MockSavingsSyncer) Sync(ctx context.Context) (*domain.Asset, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Asset), args.Error(1)
}

var (
	checkingID  = uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000001")
	brokerageID = uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000002")
	savingsID   = uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000003")
	cardID      = uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000004")
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func amount(s string) interface{} {
	return mock.MatchedBy(func(d decimal.Decimal) bool { return d.Equal(dec(s)) })
}

func accountsState() *domain.State {
	return &domain.State{
		Settings: domain.Settings{Currency: "USD"},
		Accounts: []domain.Account{
			{ID: checkingID, Name: "Checking", Type: domain.AccountTypeChecking, Balance: dec("100"), Currency: "USD"},
			{ID: brokerageID, Name: "Brokerage cash", Type: domain.AccountTypeChecking, Balance: dec("0"), Currency: "USD"},
			{ID: savingsID, Name: "Savings", Type: domain.AccountTypeSavings, Balance: dec("1000"), Currency: "EUR"},
			{ID: cardID, Name: "Card", Type: domain.AccountTypeCredit, Balance: dec("250"), Currency: "USD"},
		},
	}
}

func salarySplit() *domain.SplitRule {
	return &domain.SplitRule{Items: []domain.SplitRuleItem{
		{TargetAccountID: savingsID, Type: domain.SplitRuleItemTypeFixed, Value: dec("500"), Priority: 1},
		{TargetAccountID: brokerageID, Type: domain.SplitRuleItemTypePercent, Value: dec("10"), Priority: 2},
		{TargetAccountID: checkingID, Type: domain.SplitRuleItemTypeRemainder, Priority: 3},
	}}
}

func TestRecordIncome_SalaryWithSplitRule(t *testing.T) {
	// Setup
	ctx := context.Background()
	store := memory.NewStateStore(accountsState())
	converter := new(MockConverter)
	converter.On("Convert", ctx, amount("500"), "USD", "EUR").Return(dec("425"), nil)
	converter.On("Convert", ctx, amount("250"), "USD", "USD").Return(dec("250"), nil)
	converter.On("Convert", ctx, amount("2250"), "USD", "USD").Return(dec("2250"), nil)
	savings := new(MockSavingsSyncer)
	savings.On("Sync", ctx).Return(&domain.Asset{}, nil).Once()

	service := NewIncomeService(store, converter, savings)
	payday := time.Date(2026, 3, 31, 9, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return payday }

	// Execute
	receipt, err := service.RecordIncome(ctx, RecordIncomeInput{
		Amount:      dec("3000"),
		Description: "Salary",
		Split:       salarySplit(),
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "USD", receipt.Currency)
	assert.Equal(t, payday, receipt.Date)
	require.Len(t, receipt.Credits, 3)
	assert.Equal(t, savingsID, receipt.Credits[0].AccountID)
	assert.True(t, receipt.Credits[0].Credited.Equal(dec("425")))
	assert.Equal(t, "EUR", receipt.Credits[0].Currency)

	state, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, state.FindAccount(savingsID).Balance.Equal(dec("1425")))
	assert.True(t, state.FindAccount(brokerageID).Balance.Equal(dec("250")))
	assert.True(t, state.FindAccount(checkingID).Balance.Equal(dec("2350")))
	assert.True(t, state.FindAccount(cardID).Balance.Equal(dec("250")))

	converter.AssertExpectations(t)
	savings.AssertExpectations(t)
}

func TestRecordIncome_SingleAccountSkipsSavingsSync(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStateStore(accountsState())
	converter := new(MockConverter)
	converter.On("Convert", ctx, amount("99.99"), "EUR", "USD").Return(dec("117.64"), nil)
	savings := new(MockSavingsSyncer)

	target := checkingID
	receipt, err := NewIncomeService(store, converter, savings).RecordIncome(ctx, RecordIncomeInput{
		Amount:    dec("99.985"),
		Currency:  "eur",
		AccountID: &target,
	})

	require.NoError(t, err)
	assert.True(t, receipt.Amount.Equal(dec("99.99")), "the income is rounded to cents")
	state, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, state.FindAccount(checkingID).Balance.Equal(dec("217.64")))
	savings.AssertNotCalled(t, "Sync", mock.Anything)
}

func TestRecordIncome_Rejections(t *testing.T) {
	checking, card, unknown := checkingID, cardID, uuid.New()

	tests := []struct {
		name    string
		input   RecordIncomeInput
		errMsg  string
		wantErr error
	}{
		{
			name:   "zero amount",
			input:  RecordIncomeInput{Amount: decimal.Zero, AccountID: &checking},
			errMsg: "income amount must be positive",
		},
		{
			name:   "no target",
			input:  RecordIncomeInput{Amount: dec("10")},
			errMsg: "income needs a target account or a split rule",
		},
		{
			name:   "both targets",
			input:  RecordIncomeInput{Amount: dec("10"), AccountID: &checking, Split: salarySplit()},
			errMsg: "income goes to either one account or a split, not both",
		},
		{
			name:   "invalid split",
			input:  RecordIncomeInput{Amount: dec("10"), Split: &domain.SplitRule{}},
			errMsg: "split rule must have at least one item",
		},
		{
			name:    "unsupported currency",
			input:   RecordIncomeInput{Amount: dec("10"), Currency: "XYZ", AccountID: &checking},
			wantErr: domain.ErrUnsupportedCurrency,
		},
		{
			name:    "unknown account",
			input:   RecordIncomeInput{Amount: dec("10"), AccountID: &unknown},
			wantErr: domain.ErrNotFound,
		},
		{
			name:   "credit account",
			input:  RecordIncomeInput{Amount: dec("10"), AccountID: &card},
			errMsg: `account "Card" is a credit account and cannot receive income`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := memory.NewStateStore(accountsState())
			converter := new(MockConverter)

			receipt, err := NewIncomeService(store, converter, nil).RecordIncome(ctx, tt.input)

			assert.Nil(t, receipt)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.EqualError(t, err, tt.errMsg)
			}
			state, _ := store.Snapshot(ctx)
			assert.Equal(t, uint64(0), state.Version, "nothing is written")
			converter.AssertNotCalled(t, "Convert", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestRecordIncome_ConversionFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStateStore(accountsState())
	converter := new(MockConverter)
	converter.On("Convert", ctx, amount("500"), "USD", "EUR").Return(dec("500"), domain.ErrRatesUnavailable)

	_, err := NewIncomeService(store, converter, nil).RecordIncome(ctx, RecordIncomeInput{
		Amount: dec("3000"),
		Split:  salarySplit(),
	})

	assert.ErrorIs(t, err, domain.ErrRatesUnavailable)
	state, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), state.Version)
}

func TestRecordIncome_RejectsConcurrentCurrencyChange(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStateStore(accountsState())
	converter := new(MockConverter)
	converter.On("Convert", ctx, amount("40"), "USD", "USD").
		Run(func(mock.Arguments) {
			// the account is re-expressed in GBP while the share is being converted
			_ = store.Update(ctx, func(s *domain.State) error {
				s.FindAccount(checkingID).Currency = "GBP"
				return nil
			})
		}).
		Return(dec("40"), nil)

	target := checkingID
	_, err := NewIncomeService(store, converter, nil).RecordIncome(ctx, RecordIncomeInput{
		Amount:    dec("40"),
		AccountID: &target,
	})

	assert.ErrorIs(t, err, domain.ErrStaleState)
	state, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, state.FindAccount(checkingID).Balance.Equal(dec("100")))
}

func TestRecordIncome_SavingsSyncFailureKeepsIncome(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStateStore(accountsState())
	converter := new(MockConverter)
	converter.On("Convert", ctx, amount("85"), "EUR", "EUR").Return(dec("85"), nil)
	savings := new(MockSavingsSyncer)
	syncErr := errors.New("store unavailable")
	savings.On("Sync", ctx).Return(nil, syncErr)

	target := savingsID
	receipt, err := NewIncomeService(store, converter, savings).RecordIncome(ctx, RecordIncomeInput{
		Amount:    dec("85"),
		Currency:  "EUR",
		AccountID: &target,
	})

	assert.ErrorIs(t, err, syncErr)
	require.NotNil(t, receipt)
	state, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, state.FindAccount(savingsID).Balance.Equal(dec("1085")))
}
