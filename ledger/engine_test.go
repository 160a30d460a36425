package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/resale-ledger/ledger"
	"github.com/warp/resale-ledger/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestEngine(t *testing.T) (*ledger.Engine, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	return ledger.NewEngine(mem), mem
}

func amt(s string) ledger.Amount {
	return ledger.MustParseAmount(s)
}

func entry(user ledger.UserID, amount string, kind ledger.TransactionKind) ledger.Entry {
	return ledger.Entry{UserID: user, Amount: amt(amount), Kind: kind, Description: "test"}
}

// assertSumInvariant checks balance == Σ live transactions.
func assertSumInvariant(t *testing.T, mem *store.Memory, user ledger.UserID) {
	t.Helper()
	ctx := context.Background()
	b, _, err := mem.GetBalance(ctx, user)
	require.NoError(t, err)
	txs, err := mem.ListTransactions(ctx, user, ledger.Filter{})
	require.NoError(t, err)
	computed := ledger.Summarize(user, txs).CurrentBalance
	assert.True(t, b.CurrentAmount.Equal(computed),
		"balance %s != Σ transactions %s", b.CurrentAmount, computed)
}

// =============================================================================
// RECORD TRANSACTION
// =============================================================================

func TestRecordTransaction_TopUpThenDeduction_UpdatesBalance(t *testing.T) {
	// GIVEN: A user with no balance row
	// WHEN: Topping up 1000.00 and then spending 250.50
	// THEN: Each result reports previous and updated balance

	engine, mem := newTestEngine(t)
	ctx := context.Background()

	res, err := engine.RecordTransaction(ctx, entry("u1", "1000.00", ledger.KindTopUp))
	require.NoError(t, err)
	assert.True(t, res.PreviousBalance.IsZero())
	assert.Equal(t, "1000.00", res.UpdatedBalance.String())
	assert.NotEmpty(t, res.Transaction.ID)

	res, err = engine.RecordTransaction(ctx, entry("u1", "-250.50", ledger.KindOperationalCost))
	require.NoError(t, err)
	assert.Equal(t, "1000.00", res.PreviousBalance.String())
	assert.Equal(t, "749.50", res.UpdatedBalance.String())

	assertSumInvariant(t, mem, "u1")
}

func TestRecordTransaction_InsufficientFunds_WritesNothing(t *testing.T) {
	// GIVEN: Balance of 200.00
	// WHEN: Deducting 800.00
	// THEN: InsufficientFundsError{current 200, required 800}, no new row

	engine, mem := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.TopUp(ctx, "u1", amt("200"), "")
	require.NoError(t, err)

	_, err = engine.RecordTransaction(ctx, entry("u1", "-800", ledger.KindBatchPurchase))
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	assert.True(t, ledger.IsClientError(err))

	var funds *ledger.InsufficientFundsError
	require.ErrorAs(t, err, &funds)
	assert.Equal(t, "200.00", funds.Current.String())
	assert.Equal(t, "800.00", funds.Required.String())

	txs, err := mem.ListTransactions(ctx, "u1", ledger.Filter{})
	require.NoError(t, err)
	assert.Len(t, txs, 1, "only the top-up should exist")
	assertSumInvariant(t, mem, "u1")
}

func TestRecordTransaction_StampsEngineClock(t *testing.T) {
	// GIVEN: An engine with a fixed clock
	// WHEN: Recording a top-up
	// THEN: The transaction and the balance row carry that time

	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	mem := store.NewMemory()
	engine := ledger.NewEngine(mem, ledger.WithClock(func() time.Time { return at }))
	ctx := context.Background()

	res, err := engine.TopUp(ctx, "u1", amt("25"), "")
	require.NoError(t, err)
	assert.True(t, at.Equal(res.Transaction.CreatedAt))
	assert.True(t, at.Equal(engine.Now()))

	b, ok, err := mem.GetBalance(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, at.Equal(b.UpdatedAt))
}

func TestRecordTransaction_ExactBalance_Allowed(t *testing.T) {
	// GIVEN: Balance of 100.00
	// WHEN: Deducting exactly 100.00
	// THEN: Allowed, balance is zero

	engine, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.TopUp(ctx, "u1", amt("100"), "")
	require.NoError(t, err)

	res, err := engine.RecordTransaction(ctx, entry("u1", "-100", ledger.KindOperationalCost))
	require.NoError(t, err)
	assert.True(t, res.UpdatedBalance.IsZero())
}

func TestRecordTransaction_InvalidEntries_Rejected(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		entry   ledger.Entry
		wantErr error
	}{
		{"zero amount", entry("u1", "0", ledger.KindTopUp), ledger.ErrInvalidAmount},
		{"unknown kind", entry("u1", "10", "gift"), ledger.ErrValidation},
		{"missing user", entry("", "10", ledger.KindTopUp), ledger.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.RecordTransaction(ctx, tt.entry)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRecordTransaction_StoreFailure_RollsBack(t *testing.T) {
	// GIVEN: A store whose transaction insert fails
	// WHEN: Recording a top-up
	// THEN: The error surfaces and no balance row is left behind

	engine, mem := newTestEngine(t)
	ctx := context.Background()
	mem.FailInsert = errors.New("disk full")

	_, err := engine.TopUp(ctx, "u1", amt("50"), "")
	require.Error(t, err)
	assert.False(t, ledger.IsClientError(err))

	_, found, err := mem.GetBalance(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, found, "balance row must be rolled back")
}

func TestTopUp_NonPositive_InvalidAmount(t *testing.T) {
	engine, mem := newTestEngine(t)
	ctx := context.Background()

	for _, v := range []string{"0", "-10"} {
		_, err := engine.TopUp(ctx, "u1", amt(v), "")
		assert.ErrorIs(t, err, ledger.ErrInvalidAmount, "amount %s", v)
	}

	txs, err := mem.ListTransactions(ctx, "u1", ledger.Filter{})
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestTopUp_DefaultDescription(t *testing.T) {
	engine, _ := newTestEngine(t)

	res, err := engine.TopUp(context.Background(), "u1", amt("10"), "")
	require.NoError(t, err)
	assert.Equal(t, "Budget top-up", res.Transaction.Description)
	assert.Equal(t, ledger.KindTopUp, res.Transaction.Kind)
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestConcurrentDeductions_NeverNegative(t *testing.T) {
	// GIVEN: Balance of 1000.00
	// WHEN: 50 goroutines each try to deduct 100.00
	// THEN: Exactly 10 succeed, the rest get InsufficientFunds, balance is 0

	engine, mem := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.TopUp(ctx, "u1", amt("1000"), "")
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.RecordTransaction(ctx, entry("u1", "-100", ledger.KindOperationalCost))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if errors.Is(err, ledger.ErrInsufficientFunds) {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	assert.Equal(t, 40, rejected)

	b, _, err := mem.GetBalance(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, b.CurrentAmount.IsZero(), "balance should be 0, got %s", b.CurrentAmount)
	assertSumInvariant(t, mem, "u1")
}

func TestConcurrentUsers_Independent(t *testing.T) {
	engine, mem := newTestEngine(t)
	ctx := context.Background()

	users := []ledger.UserID{"a", "b", "c", "d"}
	var wg sync.WaitGroup
	for _, u := range users {
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(u ledger.UserID) {
				defer wg.Done()
				_, err := engine.TopUp(ctx, u, amt("1.25"), "")
				assert.NoError(t, err)
			}(u)
		}
	}
	wg.Wait()

	for _, u := range users {
		b, _, err := mem.GetBalance(ctx, u)
		require.NoError(t, err)
		assert.Equal(t, "12.50", b.CurrentAmount.String(), "user %s", u)
		assertSumInvariant(t, mem, u)
	}
}

func TestSerialize_ContextExpired_Retryable(t *testing.T) {
	// GIVEN: The user's lock is held by a long-running operation
	// WHEN: Another call arrives with a short deadline
	// THEN: It fails with a retryable error instead of blocking

	engine, _ := newTestEngine(t)
	ctx := context.Background()

	hold := make(chan struct{})
	holding := make(chan struct{})
	go func() {
		_ = engine.Serialize(ctx, "u1", func() error {
			close(holding)
			<-hold
			return nil
		})
	}()
	<-holding
	defer close(hold)

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()

	_, err := engine.TopUp(short, "u1", amt("10"), "")
	require.Error(t, err)
	assert.True(t, ledger.IsRetryable(err))
	assert.Equal(t, "timeout", ledger.Outcome(err))
}

// =============================================================================
// SUMMARY / HISTORY
// =============================================================================

func TestSummary_GroupsByKind(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.TopUp(ctx, "u1", amt("1000"), "")
	require.NoError(t, err)
	_, err = engine.TopUp(ctx, "u1", amt("500"), "")
	require.NoError(t, err)
	_, err = engine.RecordTransaction(ctx, entry("u1", "-800", ledger.KindBatchPurchase))
	require.NoError(t, err)
	_, err = engine.RecordTransaction(ctx, entry("u1", "120", ledger.KindItemSale))
	require.NoError(t, err)

	s, err := engine.Summary(ctx, "u1")
	require.NoError(t, err)

	assert.Equal(t, "820.00", s.CurrentBalance.String())
	assert.Equal(t, 4, s.TransactionCount)
	assert.Equal(t, "1500.00", s.Statistics[ledger.KindTopUp].Sum.String())
	assert.Equal(t, 2, s.Statistics[ledger.KindTopUp].Count)
	assert.Equal(t, "-800.00", s.Statistics[ledger.KindBatchPurchase].Sum.String())
	assert.Equal(t, 0, s.Statistics[ledger.KindOperationalCost].Count)
	assert.Equal(t, "1620.00", s.TotalInflow.String())
	assert.Equal(t, "800.00", s.TotalOutflow.String())
}

func TestSummary_UnknownUser_ZeroBalance(t *testing.T) {
	engine, _ := newTestEngine(t)

	s, err := engine.Summary(context.Background(), "nobody")
	require.NoError(t, err)
	assert.True(t, s.CurrentBalance.IsZero())
	assert.Zero(t, s.TransactionCount)
}

func TestHistory_FiltersByKindAndLimits(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := engine.TopUp(ctx, "u1", amt("10"), "")
		require.NoError(t, err)
	}
	_, err := engine.RecordTransaction(ctx, entry("u1", "-5", ledger.KindOperationalCost))
	require.NoError(t, err)

	txs, err := engine.History(ctx, "u1", ledger.Filter{Kind: ledger.KindTopUp, Limit: 3})
	require.NoError(t, err)
	assert.Len(t, txs, 3)
	for _, tx := range txs {
		assert.Equal(t, ledger.KindTopUp, tx.Kind)
	}

	all, err := engine.History(ctx, "u1", ledger.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 6)

	_, err = engine.History(ctx, "u1", ledger.Filter{Kind: "bogus"})
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

// =============================================================================
// CORRECTIONS
// =============================================================================

func TestVoidTransaction_MovesBalanceAndHidesRow(t *testing.T) {
	// GIVEN: Top-up 500, cost -200 (balance 300)
	// WHEN: Voiding the cost
	// THEN: Balance is 500, the cost is hidden from history, sum invariant holds

	engine, mem := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.TopUp(ctx, "u1", amt("500"), "")
	require.NoError(t, err)
	cost, err := engine.RecordTransaction(ctx, entry("u1", "-200", ledger.KindOperationalCost))
	require.NoError(t, err)

	res, err := engine.VoidTransaction(ctx, "u1", cost.Transaction.ID, "entered twice")
	require.NoError(t, err)
	assert.Equal(t, "500.00", res.UpdatedBalance.String())
	assert.True(t, res.Transaction.Voided())

	txs, err := engine.History(ctx, "u1", ledger.Filter{})
	require.NoError(t, err)
	assert.Len(t, txs, 1)

	withVoided, err := engine.History(ctx, "u1", ledger.Filter{IncludeVoided: true})
	require.NoError(t, err)
	assert.Len(t, withVoided, 2)

	assertSumInvariant(t, mem, "u1")
}

func TestVoidTransaction_Rejections(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	topUp, err := engine.TopUp(ctx, "u1", amt("100"), "")
	require.NoError(t, err)
	_, err = engine.RecordTransaction(ctx, entry("u1", "-80", ledger.KindOperationalCost))
	require.NoError(t, err)

	t.Run("foreign user", func(t *testing.T) {
		_, err := engine.VoidTransaction(ctx, "u2", topUp.Transaction.ID, "")
		assert.ErrorIs(t, err, ledger.ErrNotFoundOrUnauthorized)
	})

	t.Run("would go negative", func(t *testing.T) {
		_, err := engine.VoidTransaction(ctx, "u1", topUp.Transaction.ID, "")
		assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	})

	t.Run("already voided", func(t *testing.T) {
		small, err := engine.TopUp(ctx, "u1", amt("5"), "")
		require.NoError(t, err)
		_, err = engine.VoidTransaction(ctx, "u1", small.Transaction.ID, "")
		require.NoError(t, err)
		_, err = engine.VoidTransaction(ctx, "u1", small.Transaction.ID, "")
		assert.ErrorIs(t, err, ledger.ErrNotFoundOrUnauthorized)
	})
}

func TestReconcile_DetectsAndRepairsDrift(t *testing.T) {
	// GIVEN: A balance row that was changed outside the engine
	// WHEN: Reconciling without and then with repair
	// THEN: Drift is reported, then fixed

	engine, mem := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.TopUp(ctx, "u1", amt("300"), "")
	require.NoError(t, err)
	mem.SetBalanceUnsafe("u1", amt("350"))

	rec, err := engine.Reconcile(ctx, "u1", false)
	require.NoError(t, err)
	assert.False(t, rec.Consistent())
	assert.Equal(t, "50.00", rec.Drift.String())
	assert.False(t, rec.Repaired)

	rec, err = engine.Reconcile(ctx, "u1", true)
	require.NoError(t, err)
	assert.True(t, rec.Repaired)
	assertSumInvariant(t, mem, "u1")

	rec, err = engine.Reconcile(ctx, "u1", false)
	require.NoError(t, err)
	assert.True(t, rec.Consistent())
}
