package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/forkcast/backend/internal/model"
)

// RecipeGenerator is the generation backend as the orchestrator sees it.
type RecipeGenerator interface {
	GenerateRecipeStream(ctx context.Context, params GenerationParams, onChunk func(chunk string)) (*RecipeDraft, error)
	CalculateMacros(ctx context.Context, ingredients []string) (*Macros, error)
	SaveDraft(ctx context.Context, draft *RecipeDraft)
	GetDraft(ctx context.Context, id string) (*RecipeDraft, error)
}

// CreditLedger performs atomic deductions against an account's pools.
type CreditLedger interface {
	Deduct(ctx context.Context, accountID uuid.UUID, amount int) (CreditBalance, error)
	Balance(ctx context.Context, accountID uuid.UUID) (CreditBalance, error)
}

// RecipeStore persists generated recipes with ownership checks.
type RecipeStore interface {
	Create(ctx context.Context, recipe *model.Recipe) (*model.Recipe, error)
	Get(ctx context.Context, id, requesterID uuid.UUID) (*model.Recipe, error)
	Update(ctx context.Context, id, requesterID uuid.UUID, patch RecipePatch) (*model.Recipe, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, search, style string) ([]*model.Recipe, error)
}

// ImageBackend is the provider surface the enrichment worker drives.
type ImageBackend interface {
	Generate(ctx context.Context, prompt string, provider ImageProvider) ([]byte, error)
	Upload(ctx context.Context, data []byte) (string, error)
}

// RecipeImageSetter is the single store mutation enrichment may perform.
type RecipeImageSetter interface {
	SetImageURL(ctx context.Context, id, ownerID uuid.UUID, imageURL string) error
}

// Enricher kicks off the detached image attempt for a persisted recipe.
type Enricher interface {
	EnrichAsync(recipe model.Recipe, tier Tier)
}

// UsageTracker is the fire-and-forget telemetry counter.
type UsageTracker interface {
	IncrementGlobalCount(ctx context.Context, key string)
}

// IdempotencyClaimer dedups client-retried generation requests. Release
// undoes a claim whose request ended before any credit was spent.
type IdempotencyClaimer interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string)
}
