package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/forkcast/backend/internal/model"
)

var (
	ErrAccountNotFound     = errors.New("credit account not found")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrInvalidAmount       = errors.New("deduction amount must be positive")
	ErrTransactionAborted  = errors.New("credit transaction aborted")
)

// deductRetries bounds the conflict-retry loop before the deduction is
// surfaced as ErrTransactionAborted.
const deductRetries = 3

// CreditBalance is the post-transaction snapshot of an account's two pools.
type CreditBalance struct {
	Recurring    int `json:"recurring"`
	Supplemental int `json:"supplemental"`
}

// Total returns the spendable balance across both pools.
func (b CreditBalance) Total() int {
	return b.Recurring + b.Supplemental
}

// CreditLedgerService performs atomic credit deductions against the two
// pools of an account. Concurrent deductions against the same account are
// serialized by the underlying transaction; deductions against different
// accounts proceed in parallel.
type CreditLedgerService struct {
	db *gorm.DB
}

// NewCreditLedgerService creates a new CreditLedgerService instance
func NewCreditLedgerService(db *gorm.DB) *CreditLedgerService {
	return &CreditLedgerService{db: db}
}

// Deduct removes amount credits from the account, draining the recurring
// pool before the supplemental pool. The read-check-write runs in one
// serializable transaction so that racing deductions can never overdraw.
func (s *CreditLedgerService) Deduct(ctx context.Context, accountID uuid.UUID, amount int) (CreditBalance, error) {
	if amount <= 0 {
		return CreditBalance{}, ErrInvalidAmount
	}

	var lastErr error
	for attempt := 1; attempt <= deductRetries; attempt++ {
		balance, err := s.deductOnce(ctx, accountID, amount)
		if err == nil {
			return balance, nil
		}
		if errors.Is(err, ErrAccountNotFound) || errors.Is(err, ErrInsufficientCredits) {
			return CreditBalance{}, err
		}
		if !isRetryableTxError(err) {
			return CreditBalance{}, err
		}
		lastErr = err
		log.Printf("[CreditLedger] deduction conflict for account %s (attempt %d/%d): %v", accountID, attempt, deductRetries, err)
		select {
		case <-ctx.Done():
			return CreditBalance{}, ctx.Err()
		case <-time.After(time.Duration(attempt) * 50 * time.Millisecond):
		}
	}

	return CreditBalance{}, fmt.Errorf("%w: %v", ErrTransactionAborted, lastErr)
}

func (s *CreditLedgerService) deductOnce(ctx context.Context, accountID uuid.UUID, amount int) (CreditBalance, error) {
	var balance CreditBalance

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx
		// Row-level locking keeps concurrent deductions on the same account
		// serialized on postgres; sqlite serializes writers itself.
		if tx.Dialector.Name() == "postgres" {
			query = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var account model.CreditAccount
		if err := query.First(&account, "account_id = ?", accountID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAccountNotFound
			}
			return err
		}

		total := account.RecurringCredits + account.SupplementalCredits
		if total < amount {
			return fmt.Errorf("%w: have %d, need %d", ErrInsufficientCredits, total, amount)
		}

		// Business policy: drain the expiring pool first.
		fromRecurring := min(account.RecurringCredits, amount)
		account.RecurringCredits -= fromRecurring
		account.SupplementalCredits -= amount - fromRecurring

		if err := tx.Model(&model.CreditAccount{}).
			Where("account_id = ?", accountID).
			Updates(map[string]interface{}{
				"recurring_credits":    account.RecurringCredits,
				"supplemental_credits": account.SupplementalCredits,
			}).Error; err != nil {
			return err
		}

		balance = CreditBalance{
			Recurring:    account.RecurringCredits,
			Supplemental: account.SupplementalCredits,
		}
		return nil
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})

	if err != nil {
		return CreditBalance{}, err
	}
	return balance, nil
}

// Balance reads the current pools without mutating them.
func (s *CreditLedgerService) Balance(ctx context.Context, accountID uuid.UUID) (CreditBalance, error) {
	var account model.CreditAccount
	if err := s.db.WithContext(ctx).First(&account, "account_id = ?", accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return CreditBalance{}, ErrAccountNotFound
		}
		return CreditBalance{}, err
	}
	return CreditBalance{
		Recurring:    account.RecurringCredits,
		Supplemental: account.SupplementalCredits,
	}, nil
}

// Grant adds credits to one of the pools. Replenishment and purchases live
// outside this service; Grant exists for provisioning and tests.
func (s *CreditLedgerService) Grant(ctx context.Context, accountID uuid.UUID, recurring, supplemental int) error {
	if recurring < 0 || supplemental < 0 {
		return ErrInvalidAmount
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var account model.CreditAccount
		err := tx.First(&account, "account_id = ?", accountID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			account = model.CreditAccount{
				AccountID:           accountID,
				RecurringCredits:    recurring,
				SupplementalCredits: supplemental,
			}
			return tx.Create(&account).Error
		}
		if err != nil {
			return err
		}
		return tx.Model(&model.CreditAccount{}).
			Where("account_id = ?", accountID).
			Updates(map[string]interface{}{
				"recurring_credits":    account.RecurringCredits + recurring,
				"supplemental_credits": account.SupplementalCredits + supplemental,
			}).Error
	})
}

// isRetryableTxError reports whether the failure is a transient conflict
// worth retrying (serialization failure, deadlock, sqlite writer lock).
func isRetryableTxError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "could not serialize") ||
		strings.Contains(msg, "deadlock detected") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}
