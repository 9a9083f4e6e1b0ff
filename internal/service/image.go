package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/forkcast/backend/config"
)

// ImageByteBudget is the hard cap on stored image size. Oversized payloads
// are re-encoded; if they still cannot fit, the attempt fails and nothing
// is written.
const ImageByteBudget = 400 * 1024

// ImageProvider describes one provider/model/size combination in a tier's
// fallback chain.
type ImageProvider struct {
	Name    string
	Model   string
	Size    string
	Quality string
}

// ImageGenerationRequest represents a request to the image generations API
type ImageGenerationRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	Quality        string `json:"quality"`
	ResponseFormat string `json:"response_format"`
}

// ImageGenerationResponse represents the response from the image generations API
type ImageGenerationResponse struct {
	Created int64 `json:"created"`
	Data    []struct {
		URL           string `json:"url,omitempty"`
		B64JSON       string `json:"b64_json,omitempty"`
		RevisedPrompt string `json:"revised_prompt,omitempty"`
	} `json:"data"`
}

// ImageService generates recipe images and stores them in S3.
type ImageService struct {
	apiKey   string
	apiURL   string
	s3Config *config.S3Config
	client   *http.Client
}

// NewImageService creates a new ImageService instance
func NewImageService(apiKey, apiURL string, s3Config *config.S3Config) (*ImageService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("image API key must be set")
	}
	if apiURL == "" {
		apiURL = "https://api.openai.com/v1/images/generations"
	}

	return &ImageService{
		apiKey:   apiKey,
		apiURL:   apiURL,
		s3Config: s3Config,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

// Generate performs a single image generation attempt against one provider
// and returns the raw image bytes.
func (s *ImageService) Generate(ctx context.Context, prompt string, provider ImageProvider) ([]byte, error) {
	reqBody := ImageGenerationRequest{
		Model:          provider.Model,
		Prompt:         prompt,
		N:              1,
		Size:           provider.Size,
		Quality:        provider.Quality,
		ResponseFormat: "b64_json",
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
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Printf("[ImageService] %s request failed with status %d: %s", provider.Name, resp.StatusCode, string(body))
		return nil, fmt.Errorf("API request failed with status %d", resp.StatusCode)
	}

	var result ImageGenerationResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(result.Data) == 0 || result.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("no image data in API response")
	}

	imageData, err := base64.StdEncoding.DecodeString(result.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image data: %w", err)
	}

	return imageData, nil
}

// Upload compresses the image to the byte budget and uploads it to S3,
// returning the public URL.
func (s *ImageService) Upload(ctx context.Context, imageData []byte) (string, error) {
	imageData, contentType, err := FitByteBudget(imageData, ImageByteBudget)
	if err != nil {
		return "", err
	}

	ext := ".png"
	if contentType == "image/jpeg" {
		ext = ".jpg"
	}
	fileName := fmt.Sprintf("recipe-images/%s%s", uuid.New().String(), ext)

	_, err = s.s3Config.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.s3Config.BucketName),
		Key:         aws.String(fileName),
		Body:        bytes.NewReader(imageData),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	publicURL := s.s3Config.PublicURL(fileName)
	log.Printf("[ImageService] uploaded image to %s (%d bytes)", publicURL, len(imageData))

	return publicURL, nil
}

// FitByteBudget returns image data no larger than budget. Payloads already
// within budget pass through untouched; larger ones are re-encoded as JPEG,
// stepping the quality down until they fit.
func FitByteBudget(data []byte, budget int) ([]byte, string, error) {
	if len(data) <= budget {
		return data, http.DetectContentType(data), nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode oversized image: %w", err)
	}

	for quality := 85; quality >= 30; quality -= 15 {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, "", fmt.Errorf("failed to re-encode image: %w", err)
		}
		if buf.Len() <= budget {
			return buf.Bytes(), "image/jpeg", nil
		}
	}

	return nil, "", fmt.Errorf("image exceeds %d byte budget after compression", budget)
}

// BuildRecipeImagePrompt creates a detailed prompt for recipe image generation.
func BuildRecipeImagePrompt(title, description, style string) string {
	basePrompt := "A professional food photography shot of "

	recipeDescription := strings.ToLower(title)
	if description != "" {
		recipeDescription += ", " + strings.ToLower(description)
	}

	styleSuffix := ""
	if style != "" && !strings.EqualFold(style, "other") {
		styleSuffix = fmt.Sprintf(", %s style", strings.ToLower(style))
	}

	stylePrompt := ", shot with natural lighting, shallow depth of field, garnished beautifully, restaurant quality presentation, high resolution, food styling, appetizing colors"

	fullPrompt := basePrompt + recipeDescription + styleSuffix + stylePrompt

	// Keep within typical prompt limits.
	if len(fullPrompt) > 900 {
		fullPrompt = fullPrompt[:900]
	}

	return fullPrompt
}
