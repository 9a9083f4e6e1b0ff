package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/forkcast/backend/internal/middleware"
	"github.com/forkcast/backend/internal/model"
	"github.com/forkcast/backend/internal/service"
)

// generationCost is the flat price of one generation call.
const generationCost = 1

// GenerateHandler sequences authentication, payment, model invocation and
// persistence into one server-push event stream. Event order per call:
// deducted, zero or more chunk events, then exactly one terminal event
// (done or error).
type GenerateHandler struct {
	db       *gorm.DB
	tokens   middleware.TokenValidator
	ledger   service.CreditLedger
	llm      service.RecipeGenerator
	recipes  service.RecipeStore
	enricher service.Enricher
	usage    service.UsageTracker
	idem     service.IdempotencyClaimer
	limiter  *middleware.RateLimiter
}

// NewGenerateHandler creates a new GenerateHandler instance. The limiter may
// be nil when no Redis is configured.
func NewGenerateHandler(
	db *gorm.DB,
	tokens middleware.TokenValidator,
	ledger service.CreditLedger,
	llm service.RecipeGenerator,
	recipes service.RecipeStore,
	enricher service.Enricher,
	usage service.UsageTracker,
	idem service.IdempotencyClaimer,
	limiter *middleware.RateLimiter,
) *GenerateHandler {
	return &GenerateHandler{
		db:       db,
		tokens:   tokens,
		ledger:   ledger,
		llm:      llm,
		recipes:  recipes,
		enricher: enricher,
		usage:    usage,
		idem:     idem,
		limiter:  limiter,
	}
}

// RegisterRoutes registers the generation route. Authentication happens
// inside the handler, not in middleware, so that auth failures are reported
// on the event stream like every other failure.
func (h *GenerateHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/recipes/generate", h.Generate)
	router.GET("/recipes/drafts/:id", middleware.AuthMiddleware(h.tokens), h.GetDraft)
}

// GetDraft returns a cached generation draft before it was persisted.
func (h *GenerateHandler) GetDraft(c *gin.Context) {
	draft, err := h.llm.GetDraft(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Draft not found"})
		return
	}
	c.JSON(http.StatusOK, draft)
}

// Generate handles one generation call end to end.
func (h *GenerateHandler) Generate(c *gin.Context) {
	var req GenerateRecipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	// emit drops events once the client has disconnected; the pipeline
	// keeps running because the credit is already spent by then.
	emit := func(event string, payload interface{}) {
		if c.Request.Context().Err() != nil {
			return
		}
		c.SSEvent(event, payload)
		c.Writer.Flush()
	}
	fail := func(message string) {
		emit("error", gin.H{"message": message})
	}

	// Authenticate. No credit is touched and nothing is persisted on
	// failure.
	token := middleware.BearerToken(c)
	if token == "" {
		fail("missing or malformed authorization header")
		return
	}
	claims, err := h.tokens.ValidateToken(token)
	if err != nil {
		fail(err.Error())
		return
	}
	accountID := claims.UserID
	ctx := c.Request.Context()

	if h.limiter != nil {
		allowed, _, resetTime, err := h.limiter.IsAllowed(ctx, accountID.String())
		if err != nil {
			// The ledger is the real spend bound; a limiter outage only
			// loses burst protection.
			log.Printf("[GenerateHandler] rate limit check failed: %v", err)
		} else if !allowed {
			fail("rate limit exceeded, retry after " + resetTime.UTC().Format(time.RFC3339))
			return
		}
	}

	// An already-claimed idempotency key means a client retry of a request
	// that was charged; refuse before touching the ledger.
	var idemKey string
	if key := c.GetHeader("Idempotency-Key"); key != "" && h.idem != nil {
		claimed, err := h.idem.Claim(ctx, key)
		if err != nil {
			log.Printf("[GenerateHandler] idempotency claim failed: %v", err)
		} else if !claimed {
			fail("duplicate request: idempotency key already used")
			return
		} else {
			idemKey = key
		}
	}

	// Reserve the credit before the backend call: model output is never
	// streamed to a caller who cannot pay for it.
	balance, err := h.ledger.Deduct(ctx, accountID, generationCost)
	if err != nil {
		// Nothing was spent, so the key must not block a retry.
		if idemKey != "" {
			h.idem.Release(ctx, idemKey)
		}
		switch {
		case errors.Is(err, service.ErrInsufficientCredits):
			fail(err.Error())
		case errors.Is(err, service.ErrAccountNotFound):
			fail("no credit account for this user")
		default:
			log.Printf("[GenerateHandler] deduction failed for %s: %v", accountID, err)
			fail("generation temporarily unavailable, please retry")
		}
		return
	}
	emit("deducted", balance)

	// The spend is committed; finish the generation even if the caller
	// disconnects, so the paid-for result is still persisted.
	genCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Minute)
	defer cancel()

	params := service.GenerationParams{
		Prompt:       req.Prompt,
		Restrictions: req.Restrictions,
		Excluded:     req.ExcludedIngredients,
		Locale:       req.Locale,
	}

	draft, err := h.llm.GenerateRecipeStream(genCtx, params, func(chunk string) {
		emit("chunk", chunk)
	})
	if err != nil {
		log.Printf("[GenerateHandler] generation failed for %s: %v", accountID, err)
		fail("failed to generate recipe")
		return
	}

	if draft.IsError() {
		// Semantic failure: the credit stays spent. The draft is persisted
		// for audit with its error title, which keeps it out of every
		// recipe read path.
		if _, err := h.recipes.Create(genCtx, draft.ToModel(accountID, params)); err != nil {
			log.Printf("[GenerateHandler] failed to record error draft: %v", err)
		}
		fail(service.ErrNoUsableRecipe.Error())
		return
	}

	if !draft.HasMacros() {
		if macros, err := h.llm.CalculateMacros(genCtx, draft.Ingredients); err == nil && macros != nil {
			draft.Calories = macros.Calories
			draft.Protein = macros.Protein
			draft.Carbs = macros.Carbs
			draft.Fat = macros.Fat
		}
	}

	recipe, err := h.recipes.Create(genCtx, draft.ToModel(accountID, params))
	if err != nil {
		log.Printf("[GenerateHandler] failed to persist recipe for %s: %v", accountID, err)
		fail("failed to save recipe")
		return
	}

	// Best effort from here on: neither the draft cache, telemetry nor
	// enrichment may affect the response.
	draft.ID = recipe.ID.String()
	h.llm.SaveDraft(genCtx, draft)
	go h.usage.IncrementGlobalCount(context.Background(), service.GeneratedRecipesKey)
	h.enricher.EnrichAsync(*recipe, h.snapshotTier(genCtx, accountID))

	emit("done", gin.H{"recipe_id": recipe.ID})
}

// snapshotTier resolves the account's enrichment tier once, before the
// worker starts, so a concurrent subscription change cannot race the
// attempt.
func (h *GenerateHandler) snapshotTier(ctx context.Context, accountID uuid.UUID) service.Tier {
	var user model.User
	if err := h.db.WithContext(ctx).First(&user, "id = ?", accountID).Error; err != nil {
		return service.TierFree
	}
	return service.TierForPlan(user.Plan)
}
