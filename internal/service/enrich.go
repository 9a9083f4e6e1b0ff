package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/forkcast/backend/internal/model"
)

// Tier selects the image provider chain for an enrichment attempt. It is
// snapshot once when the worker starts so a concurrent subscription change
// cannot switch chains mid-attempt.
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// TierForPlan maps a subscription plan to an enrichment tier.
func TierForPlan(plan string) Tier {
	if plan == model.PlanPremium {
		return TierPremium
	}
	return TierFree
}

// Provider chains per tier. Premium gets a high-quality attempt plus one
// lower-resolution fallback; free gets a single low-cost attempt.
var (
	premiumProviders = []ImageProvider{
		{Name: "dalle3-hd", Model: "dall-e-3", Size: "1024x1024", Quality: "hd"},
		{Name: "dalle2-standard", Model: "dall-e-2", Size: "512x512", Quality: "standard"},
	}
	freeProviders = []ImageProvider{
		{Name: "dalle2-standard", Model: "dall-e-2", Size: "512x512", Quality: "standard"},
	}
)

func providersFor(tier Tier) []ImageProvider {
	if tier == TierPremium {
		return premiumProviders
	}
	return freeProviders
}

// EnrichmentWorker attaches a generated image to an already-persisted
// recipe. It runs decoupled from the request that created the recipe, once
// per recipe, with no retry scheduler: a missing image is a valid terminal
// state.
type EnrichmentWorker struct {
	images  ImageBackend
	recipes RecipeImageSetter
	timeout time.Duration
}

// NewEnrichmentWorker creates a new EnrichmentWorker instance
func NewEnrichmentWorker(images ImageBackend, recipes RecipeImageSetter) *EnrichmentWorker {
	return &EnrichmentWorker{
		images:  images,
		recipes: recipes,
		timeout: 30 * time.Second,
	}
}

// EnrichAsync fires the attempt sequence in a detached goroutine. The HTTP
// response that created the recipe may complete before it runs.
func (w *EnrichmentWorker) EnrichAsync(recipe model.Recipe, tier Tier) {
	go func() {
		if err := w.Enrich(context.Background(), recipe, tier); err != nil {
			log.Printf("[EnrichmentWorker] recipe %s left without image: %v", recipe.ID, err)
		}
	}()
}

// Enrich walks the tier's provider chain until one attempt produces an
// image within the byte budget, then writes the URL to the store. On total
// failure the store is never touched.
func (w *EnrichmentWorker) Enrich(ctx context.Context, recipe model.Recipe, tier Tier) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	prompt := BuildRecipeImagePrompt(recipe.Title, recipe.Description, recipe.Style)

	var lastErr error
	for _, provider := range providersFor(tier) {
		data, err := w.images.Generate(ctx, prompt, provider)
		if err != nil {
			log.Printf("[EnrichmentWorker] provider %s failed for recipe %s: %v", provider.Name, recipe.ID, err)
			lastErr = err
			continue
		}

		url, err := w.images.Upload(ctx, data)
		if err != nil {
			log.Printf("[EnrichmentWorker] upload failed for recipe %s via %s: %v", recipe.ID, provider.Name, err)
			lastErr = err
			continue
		}

		return w.recipes.SetImageURL(ctx, recipe.ID, recipe.OwnerID, url)
	}

	return fmt.Errorf("all providers exhausted: %w", lastErr)
}
