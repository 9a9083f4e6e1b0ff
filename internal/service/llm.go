package service

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/forkcast/backend/internal/model"
)

// ErrorTitlePrefix marks a structured result in which the backend explicitly
// reports that no usable recipe could be produced from the given input.
// Drafts with this prefix are never served as consumable recipes.
const ErrorTitlePrefix = "ERROR:"

var ErrNoUsableRecipe = errors.New("the backend could not produce a usable recipe from the given input")

// GenerationParams are the user-supplied inputs for one generation call.
type GenerationParams struct {
	Prompt       string   `json:"prompt"`
	Restrictions []string `json:"restrictions"`
	Excluded     []string `json:"excluded_ingredients"`
	Locale       string   `json:"locale"`
}

// ServingCount tolerates the backend returning servings as a number,
// a numeric string, or a string with trailing words ("4 servings").
type ServingCount int

func (s *ServingCount) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*s = ServingCount(int(num))
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		fields := strings.Fields(str)
		if len(fields) > 0 {
			if n, err := strconv.Atoi(fields[0]); err == nil {
				*s = ServingCount(n)
				return nil
			}
		}
		*s = 0
		return nil
	}

	return fmt.Errorf("invalid servings format")
}

// RecipeDraft is the normalized structured result of a generation call,
// before it becomes a persisted Recipe.
type RecipeDraft struct {
	ID          string       `json:"id,omitempty"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Style       string       `json:"style"`
	Ingredients []string     `json:"ingredients"`
	Steps       []string     `json:"steps"`
	PrepTime    string       `json:"prep_time"`
	CookTime    string       `json:"cook_time"`
	Servings    ServingCount `json:"servings"`
	Difficulty  string       `json:"difficulty"`
	Calories    float64      `json:"calories"`
	Protein     float64      `json:"protein"`
	Carbs       float64      `json:"carbs"`
	Fat         float64      `json:"fat"`
}

// IsError reports whether the backend flagged this draft as a semantic
// failure rather than a consumable recipe.
func (d *RecipeDraft) IsError() bool {
	return strings.HasPrefix(strings.TrimSpace(d.Title), ErrorTitlePrefix)
}

// HasMacros reports whether the draft carries any nutrition values.
func (d *RecipeDraft) HasMacros() bool {
	return d.Calories != 0 || d.Protein != 0 || d.Carbs != 0 || d.Fat != 0
}

// ToModel converts the draft into a Recipe owned by the given account.
func (d *RecipeDraft) ToModel(ownerID uuid.UUID, params GenerationParams) *model.Recipe {
	return &model.Recipe{
		OwnerID:             ownerID,
		Title:               d.Title,
		Description:         d.Description,
		Style:               d.Style,
		Ingredients:         model.JSONBStringArray(d.Ingredients),
		Steps:               model.JSONBStringArray(d.Steps),
		Restrictions:        model.JSONBStringArray(params.Restrictions),
		ExcludedIngredients: model.JSONBStringArray(params.Excluded),
		PrepTime:            d.PrepTime,
		CookTime:            d.CookTime,
		Servings:            int(d.Servings),
		Difficulty:          d.Difficulty,
		Calories:            d.Calories,
		Protein:             d.Protein,
		Carbs:               d.Carbs,
		Fat:                 d.Fat,
	}
}

// Message represents a message in the chat
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request represents a request to the chat completions API
type Request struct {
	Model            string            `json:"model"`
	Messages         []Message         `json:"messages"`
	ResponseFormat   map[string]string `json:"response_format,omitempty"`
	Temperature      float64           `json:"temperature,omitempty"`
	TopP             float64           `json:"top_p,omitempty"`
	FrequencyPenalty float64           `json:"frequency_penalty,omitempty"`
	PresencePenalty  float64           `json:"presence_penalty,omitempty"`
	Stream           bool              `json:"stream,omitempty"`
}

// Macros represents nutritional macros information
type Macros struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

// LLMService talks to the chat completions backend and normalizes its
// output into recipe drafts.
type LLMService struct {
	apiKey string
	apiURL string
	model  string
	client *http.Client
	redis  *redis.Client
}

// NewLLMService creates a new LLMService instance. The Redis client is used
// as a best-effort draft cache and may be nil in tests.
func NewLLMService(apiKey, apiURL string, redisClient *redis.Client) (*LLMService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("LLM API key must be set")
	}
	if apiURL == "" {
		apiURL = "https://api.deepseek.com/v1/chat/completions"
	}

	return &LLMService{
		apiKey: apiKey,
		apiURL: apiURL,
		model:  "deepseek-chat",
		client: &http.Client{Timeout: 120 * time.Second},
		redis:  redisClient,
	}, nil
}

const recipeSystemPrompt = `You are a professional chef and nutritionist. Please provide your response in JSON format with the following structure:
{
    "title": "Recipe title",
    "description": "Brief description of the recipe",
    "style": "One of: Italian, French, Chinese, Japanese, Thai, Indian, Mexican, Mediterranean, American, British, German, Korean, Spanish, Brazilian, Moroccan, Fusion, or Other",
    "ingredients": [
        "2 cups flour",
        "1 cup sugar",
        "3 eggs"
    ],
    "steps": [
        "Step 1: Mix the dry ingredients",
        "Step 2: Add the wet ingredients",
        "Step 3: Bake at 350°F for 30 minutes"
    ],
    "prep_time": "Preparation time",
    "cook_time": "Cooking time",
    "servings": 4,
    "difficulty": "Easy/Medium/Hard",
    "calories": 350,
    "protein": 15,
    "carbs": 45,
    "fat": 12
}

Note: The calories, protein, carbs, and fat fields must be numbers, not strings.
The style field MUST be one of the listed styles above.
If no usable recipe can be made from the given input, set the title to "ERROR: " followed by a short reason and leave the other fields empty.`

// GenerateRecipeStream asks the backend for a recipe and relays incremental
// text chunks through onChunk as they arrive. It returns the normalized
// draft after the stream completes. Both the incremental shape and the
// single-document shape of the backend response are handled.
func (s *LLMService) GenerateRecipeStream(ctx context.Context, params GenerationParams, onChunk func(chunk string)) (*RecipeDraft, error) {
	prompt := fmt.Sprintf("Generate a recipe for: %s", params.Prompt)
	if len(params.Restrictions) > 0 {
		prompt += ". The recipe should be suitable for: " + strings.Join(params.Restrictions, ", ")
	}
	if len(params.Excluded) > 0 {
		prompt += ". Avoid using: " + strings.Join(params.Excluded, ", ")
	}
	if params.Locale != "" {
		prompt += ". Write the recipe in locale " + params.Locale
	}

	reqBody := Request{
		Model: s.model,
		Messages: []Message{
			{Role: "system", Content: recipeSystemPrompt},
			{Role: "user", Content: prompt},
		},
		ResponseFormat:   map[string]string{"type": "json_object"},
		Temperature:      0.9,
		TopP:             0.9,
		FrequencyPenalty: 0.5,
		PresencePenalty:  0.5,
		Stream:           true,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var content string
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		content, err = s.relayStream(resp.Body, onChunk)
	} else {
		content, err = s.readSingleDocument(resp.Body, onChunk)
	}
	if err != nil {
		return nil, err
	}

	var draft RecipeDraft
	if err := json.Unmarshal([]byte(content), &draft); err != nil {
		return nil, fmt.Errorf("failed to parse recipe: %w", err)
	}

	return &draft, nil
}

// relayStream reads incremental delta chunks, forwarding each to onChunk
// and accumulating the full document.
func (s *LLMService) relayStream(body io.Reader, onChunk func(chunk string)) (string, error) {
	var buf strings.Builder

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			break
		}

		var event struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
			} `json:"choices"`
		}
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			log.Printf("[LLMService] skipping malformed stream event: %v", err)
			continue
		}
		if len(event.Choices) == 0 || event.Choices[0].Delta.Content == "" {
			continue
		}

		chunk := event.Choices[0].Delta.Content
		buf.WriteString(chunk)
		if onChunk != nil {
			onChunk(chunk)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read stream: %w", err)
	}

	if buf.Len() == 0 {
		return "", fmt.Errorf("no response from API")
	}
	return buf.String(), nil
}

// readSingleDocument normalizes the non-streaming response shape, emitting
// the whole document as one chunk.
func (s *LLMService) readSingleDocument(body io.Reader, onChunk func(chunk string)) (string, error) {
	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no response from API")
	}

	content := result.Choices[0].Message.Content
	if onChunk != nil {
		onChunk(content)
	}
	return content, nil
}

// CalculateMacros estimates the macronutrients for a set of ingredients
func (s *LLMService) CalculateMacros(ctx context.Context, ingredients []string) (*Macros, error) {
	prompt := "Provide an approximate macronutrient breakdown as JSON with fields calories, protein, carbs and fat for the following ingredients:" + "\n" + strings.Join(ingredients, "\n")

	reqBody := Request{
		Model: s.model,
		Messages: []Message{
			{Role: "system", Content: "You are a nutrition expert. Respond only with JSON like {\"calories\":0,\"protein\":0,\"carbs\":0,\"fat\":0}"},
			{Role: "user", Content: prompt},
		},
		ResponseFormat: map[string]string{"type": "json_object"},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	content, err := s.readSingleDocument(resp.Body, nil)
	if err != nil {
		return nil, err
	}

	var macros Macros
	if err := json.Unmarshal([]byte(content), &macros); err != nil {
		return nil, fmt.Errorf("failed to parse macros: %w", err)
	}

	return &macros, nil
}

// SaveDraft caches a normalized draft in Redis for 24 hours. Best effort:
// a cache failure never affects the generation result.
func (s *LLMService) SaveDraft(ctx context.Context, draft *RecipeDraft) {
	if s.redis == nil {
		return
	}
	if draft.ID == "" {
		draft.ID = uuid.New().String()
	}

	data, err := json.Marshal(draft)
	if err != nil {
		log.Printf("[LLMService] failed to marshal draft: %v", err)
		return
	}

	key := fmt.Sprintf("recipe:draft:%s", draft.ID)
	if err := s.redis.Set(ctx, key, data, 24*time.Hour).Err(); err != nil {
		log.Printf("[LLMService] failed to cache draft: %v", err)
	}
}

// GetDraft retrieves a cached draft from Redis.
func (s *LLMService) GetDraft(ctx context.Context, id string) (*RecipeDraft, error) {
	if s.redis == nil {
		return nil, fmt.Errorf("draft cache unavailable")
	}
	key := fmt.Sprintf("recipe:draft:%s", id)
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}

	var draft RecipeDraft
	if err := json.Unmarshal(data, &draft); err != nil {
		return nil, fmt.Errorf("failed to unmarshal draft: %w", err)
	}

	return &draft, nil
}
