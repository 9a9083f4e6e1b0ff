package testhelpers

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/forkcast/backend/internal/model"
)

// SetupTestDatabase creates a file-backed SQLite database for unit tests.
// The concurrency tests need real writer contention, which the in-memory
// driver does not exercise the same way, so the file lives in t.TempDir.
func SetupTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000&_journal_mode=WAL"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	err = db.AutoMigrate(
		&model.User{},
		&model.CreditAccount{},
		&model.Recipe{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// CreateTestUser inserts a user with a hashed password and returns it.
func CreateTestUser(t *testing.T, db *gorm.DB, email, password, plan string) *model.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &model.User{
		Name:         "Test User",
		Email:        email,
		PasswordHash: string(hash),
		Plan:         plan,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestAccount seeds a credit account with the given pool balances.
func CreateTestAccount(t *testing.T, db *gorm.DB, accountID uuid.UUID, recurring, supplemental int) *model.CreditAccount {
	t.Helper()

	account := &model.CreditAccount{
		AccountID:           accountID,
		RecurringCredits:    recurring,
		SupplementalCredits: supplemental,
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("failed to create test credit account: %v", err)
	}
	return account
}
