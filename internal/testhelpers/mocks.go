package testhelpers

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/forkcast/backend/internal/model"
	"github.com/forkcast/backend/internal/service"
	"github.com/forkcast/backend/internal/types"
)

// MockTokenValidator is a mock implementation of the TokenValidator interface
type MockTokenValidator struct {
	mock.Mock
}

func (m *MockTokenValidator) ValidateToken(token string) (*types.TokenClaims, error) {
	args := m.Called(token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.TokenClaims), args.Error(1)
}

// MockCreditLedger is a mock implementation of the CreditLedger interface
type MockCreditLedger struct {
	mock.Mock
}

func (m *MockCreditLedger) Deduct(ctx context.Context, accountID uuid.UUID, amount int) (service.CreditBalance, error) {
	args := m.Called(ctx, accountID, amount)
	return args.Get(0).(service.CreditBalance), args.Error(1)
}

func (m *MockCreditLedger) Balance(ctx context.Context, accountID uuid.UUID) (service.CreditBalance, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(service.CreditBalance), args.Error(1)
}

// MockRecipeGenerator is a mock implementation of the RecipeGenerator interface
type MockRecipeGenerator struct {
	mock.Mock
}

func (m *MockRecipeGenerator) GenerateRecipeStream(ctx context.Context, params service.GenerationParams, onChunk func(chunk string)) (*service.RecipeDraft, error) {
	args := m.Called(ctx, params, onChunk)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.RecipeDraft), args.Error(1)
}

func (m *MockRecipeGenerator) SaveDraft(ctx context.Context, draft *service.RecipeDraft) {
	m.Called(ctx, draft)
}

func (m *MockRecipeGenerator) GetDraft(ctx context.Context, id string) (*service.RecipeDraft, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.RecipeDraft), args.Error(1)
}

func (m *MockRecipeGenerator) CalculateMacros(ctx context.Context, ingredients []string) (*service.Macros, error) {
	args := m.Called(ctx, ingredients)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Macros), args.Error(1)
}

// MockRecipeStore is a mock implementation of the RecipeStore interface
type MockRecipeStore struct {
	mock.Mock
}

func (m *MockRecipeStore) Create(ctx context.Context, recipe *model.Recipe) (*model.Recipe, error) {
	args := m.Called(ctx, recipe)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Recipe), args.Error(1)
}

func (m *MockRecipeStore) Get(ctx context.Context, id, requesterID uuid.UUID) (*model.Recipe, error) {
	args := m.Called(ctx, id, requesterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Recipe), args.Error(1)
}

func (m *MockRecipeStore) Update(ctx context.Context, id, requesterID uuid.UUID, patch service.RecipePatch) (*model.Recipe, error) {
	args := m.Called(ctx, id, requesterID, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Recipe), args.Error(1)
}

func (m *MockRecipeStore) ListByOwner(ctx context.Context, ownerID uuid.UUID, search, style string) ([]*model.Recipe, error) {
	args := m.Called(ctx, ownerID, search, style)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Recipe), args.Error(1)
}

// MockEnricher is a mock implementation of the Enricher interface
type MockEnricher struct {
	mock.Mock
}

func (m *MockEnricher) EnrichAsync(recipe model.Recipe, tier service.Tier) {
	m.Called(recipe, tier)
}

// MockUsageTracker is a mock implementation of the UsageTracker interface
type MockUsageTracker struct {
	mock.Mock
}

func (m *MockUsageTracker) IncrementGlobalCount(ctx context.Context, key string) {
	m.Called(ctx, key)
}

// MockIdempotencyClaimer is a mock implementation of the IdempotencyClaimer interface
type MockIdempotencyClaimer struct {
	mock.Mock
}

func (m *MockIdempotencyClaimer) Claim(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyClaimer) Release(ctx context.Context, key string) {
	m.Called(ctx, key)
}

// MockImageBackend is a mock implementation of the ImageBackend interface
type MockImageBackend struct {
	mock.Mock
}

func (m *MockImageBackend) Generate(ctx context.Context, prompt string, provider service.ImageProvider) ([]byte, error) {
	args := m.Called(ctx, prompt, provider)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockImageBackend) Upload(ctx context.Context, data []byte) (string, error) {
	args := m.Called(ctx, data)
	return args.String(0), args.Error(1)
}

// MockRecipeImageSetter is a mock implementation of the RecipeImageSetter interface
type MockRecipeImageSetter struct {
	mock.Mock
}

func (m *MockRecipeImageSetter) SetImageURL(ctx context.Context, id, ownerID uuid.UUID, imageURL string) error {
	args := m.Called(ctx, id, ownerID, imageURL)
	return args.Error(0)
}
