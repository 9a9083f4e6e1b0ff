package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	pgvector "github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/forkcast/backend/internal/model"
)

var (
	ErrRecipeNotFound = errors.New("recipe not found")
	ErrAccessDenied   = errors.New("access denied")
)

// RecipeService persists generated recipes. Every read and write that acts
// on an existing recipe checks ownership: the predicate, not locking, is
// what keeps two accounts from ever writing the same row.
type RecipeService struct {
	db *gorm.DB
}

// NewRecipeService creates a new RecipeService instance
func NewRecipeService(db *gorm.DB) *RecipeService {
	return &RecipeService{db: db}
}

// Create stores a new recipe. The owner is fixed at creation time and the
// id is assigned by the store; an incoming id is discarded so an existing
// row can never be overwritten.
func (s *RecipeService) Create(ctx context.Context, recipe *model.Recipe) (*model.Recipe, error) {
	recipe.ID = uuid.Nil
	recipe.Embedding = textEmbedding(recipe.Title + " " + recipe.Description)
	if err := s.db.WithContext(ctx).Create(recipe).Error; err != nil {
		return nil, err
	}
	return recipe, nil
}

// Get returns the recipe only when it belongs to the requester. Recipes
// flagged with the generation error marker are not consumable and are
// reported as missing.
func (s *RecipeService) Get(ctx context.Context, id, requesterID uuid.UUID) (*model.Recipe, error) {
	var recipe model.Recipe
	if err := s.db.WithContext(ctx).First(&recipe, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecipeNotFound
		}
		return nil, err
	}
	if recipe.OwnerID != requesterID {
		return nil, ErrAccessDenied
	}
	if strings.HasPrefix(strings.TrimSpace(recipe.Title), ErrorTitlePrefix) {
		return nil, ErrRecipeNotFound
	}
	return &recipe, nil
}

// RecipePatch is the set of caller-mutable fields. OwnerID and CreatedAt are
// deliberately absent; they survive every update.
type RecipePatch struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Ingredients []string `json:"ingredients"`
	Steps       []string `json:"steps"`
	ImageURL    *string  `json:"image_url"`
}

// Update applies a patch after the same ownership check as Get.
func (s *RecipeService) Update(ctx context.Context, id, requesterID uuid.UUID, patch RecipePatch) (*model.Recipe, error) {
	var recipe model.Recipe
	if err := s.db.WithContext(ctx).First(&recipe, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecipeNotFound
		}
		return nil, err
	}
	if recipe.OwnerID != requesterID {
		return nil, ErrAccessDenied
	}
	// A failed generation stays failed; patching must not resurrect it.
	if strings.HasPrefix(strings.TrimSpace(recipe.Title), ErrorTitlePrefix) {
		return nil, ErrRecipeNotFound
	}

	updates := map[string]interface{}{}
	if patch.Title != nil {
		updates["title"] = *patch.Title
	}
	if patch.Description != nil {
		updates["description"] = *patch.Description
	}
	if patch.Ingredients != nil {
		updates["ingredients"] = model.JSONBStringArray(patch.Ingredients)
	}
	if patch.Steps != nil {
		updates["steps"] = model.JSONBStringArray(patch.Steps)
	}
	if patch.ImageURL != nil {
		updates["image_url"] = *patch.ImageURL
	}
	if len(updates) == 0 {
		return &recipe, nil
	}

	if patch.Title != nil || patch.Description != nil {
		title := recipe.Title
		if patch.Title != nil {
			title = *patch.Title
		}
		description := recipe.Description
		if patch.Description != nil {
			description = *patch.Description
		}
		updates["embedding"] = textEmbedding(title + " " + description)
	}

	if err := s.db.WithContext(ctx).Model(&model.Recipe{}).
		Where("id = ? AND owner_id = ?", id, requesterID).
		Updates(updates).Error; err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).First(&recipe, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &recipe, nil
}

// SetImageURL attaches the enriched image to a recipe. Used only by the
// enrichment worker, which already snapshot the owner at start.
func (s *RecipeService) SetImageURL(ctx context.Context, id, ownerID uuid.UUID, imageURL string) error {
	_, err := s.Update(ctx, id, ownerID, RecipePatch{ImageURL: &imageURL})
	return err
}

// ListByOwner returns the requester's recipes, optionally ordered by
// semantic similarity to a search query and filtered by style. Failed
// generations (error-marker titles) are filtered out.
func (s *RecipeService) ListByOwner(ctx context.Context, ownerID uuid.UUID, search, style string) ([]*model.Recipe, error) {
	query := s.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	query = query.Where("title NOT LIKE ?", ErrorTitlePrefix+"%")

	if search != "" {
		if s.db.Dialector.Name() == "postgres" {
			vec := textEmbedding(search)
			query = query.Clauses(clause.OrderBy{
				Expression: clause.Expr{SQL: "embedding <-> ?", Vars: []interface{}{vec}},
			})
		} else {
			like := "%" + strings.ToLower(search) + "%"
			query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", like, like)
		}
	}

	if style != "" {
		query = query.Where("style = ?", style)
	}

	var recipes []model.Recipe
	if err := query.Find(&recipes).Error; err != nil {
		return nil, err
	}

	result := make([]*model.Recipe, len(recipes))
	for i := range recipes {
		result[i] = &recipes[i]
	}
	return result, nil
}

// textEmbedding returns a simple deterministic embedding for the given text:
// total length, vowels and consonants.
func textEmbedding(text string) pgvector.Vector {
	text = strings.ToLower(text)
	var vowels, consonants float32
	for _, r := range text {
		if strings.ContainsRune("aeiou", r) {
			vowels++
		} else if r >= 'a' && r <= 'z' {
			consonants++
		}
	}
	length := float32(len(text))
	return pgvector.NewVector([]float32{length, vowels, consonants})
}
