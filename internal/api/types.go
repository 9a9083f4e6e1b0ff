package api

// GenerateRecipeRequest carries the user-supplied generation parameters.
type GenerateRecipeRequest struct {
	Prompt              string   `json:"prompt" binding:"required"`
	Restrictions        []string `json:"restrictions"`
	ExcludedIngredients []string `json:"excluded_ingredients"`
	Locale              string   `json:"locale"`
}

// LoginRequest is the credential pair for token issuance.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UpdateRecipeRequest mirrors the caller-mutable recipe fields.
type UpdateRecipeRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Ingredients []string `json:"ingredients"`
	Steps       []string `json:"steps"`
	ImageURL    *string  `json:"image_url"`
}
