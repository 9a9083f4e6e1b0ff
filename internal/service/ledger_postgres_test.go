package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forkcast/backend/internal/model"
	"github.com/forkcast/backend/internal/service"
	"github.com/forkcast/backend/internal/testhelpers"
)

// These tests exercise the row-locked serializable path that SQLite cannot.
// They are skipped when Docker is unavailable.

func TestCreditLedger_Postgres_Deduct(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-based test in short mode")
	}

	db := testhelpers.SetupPostgresDatabase(t)
	ledger := service.NewCreditLedgerService(db)
	ctx := context.Background()

	accountID := uuid.New()
	testhelpers.CreateTestAccount(t, db, accountID, 3, 5)

	balance, err := ledger.Deduct(ctx, accountID, 4)
	require.NoError(t, err)
	assert.Equal(t, 0, balance.Recurring)
	assert.Equal(t, 4, balance.Supplemental)

	_, err = ledger.Deduct(ctx, accountID, 5)
	assert.ErrorIs(t, err, service.ErrInsufficientCredits)
}

func TestCreditLedger_Postgres_ConcurrentDeductions(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-based test in short mode")
	}

	db := testhelpers.SetupPostgresDatabase(t)
	ledger := service.NewCreditLedgerService(db)
	ctx := context.Background()

	accountID := uuid.New()
	testhelpers.CreateTestAccount(t, db, accountID, 5, 0)

	// Ten racers chase five credits. A racer may also run out of conflict
	// retries and abort without spending; what must never happen is an
	// overdraw or a spend that the balance does not account for.
	const racers = 10
	var wg sync.WaitGroup
	results := make(chan error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Deduct(ctx, accountID, 1)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, insufficient, aborted int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, service.ErrInsufficientCredits):
			insufficient++
		case errors.Is(err, service.ErrTransactionAborted):
			aborted++
		default:
			t.Errorf("unexpected deduction error: %v", err)
		}
	}
	assert.Equal(t, racers, succeeded+insufficient+aborted)
	assert.LessOrEqual(t, succeeded, 5)

	var account model.CreditAccount
	require.NoError(t, db.First(&account, "account_id = ?", accountID).Error)
	assert.Equal(t, 5-succeeded, account.RecurringCredits)
	assert.Equal(t, 0, account.SupplementalCredits)
}
