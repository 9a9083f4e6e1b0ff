package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noisyPNG produces a PNG that compresses badly, so it reliably exceeds
// small byte budgets.
func noisyPNG(t *testing.T, width, height int) []byte {
	t.Helper()

	rng := rand.New(rand.NewSource(42))
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(rng.Intn(256)),
				G: uint8(rng.Intn(256)),
				B: uint8(rng.Intn(256)),
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestFitByteBudget(t *testing.T) {
	t.Run("data within budget passes through untouched", func(t *testing.T) {
		data := noisyPNG(t, 8, 8)

		out, contentType, err := FitByteBudget(data, 1024*1024)

		require.NoError(t, err)
		assert.Equal(t, data, out)
		assert.Equal(t, "image/png", contentType)
	})

	t.Run("pass-through keeps the payload's real content type", func(t *testing.T) {
		img := image.NewRGBA(image.Rect(0, 0, 8, 8))
		var buf bytes.Buffer
		require.NoError(t, jpeg.Encode(&buf, img, nil))
		data := buf.Bytes()

		out, contentType, err := FitByteBudget(data, 1024*1024)

		require.NoError(t, err)
		assert.Equal(t, data, out)
		assert.Equal(t, "image/jpeg", contentType)
	})

	t.Run("oversized image is re-encoded under the budget", func(t *testing.T) {
		data := noisyPNG(t, 400, 400)
		budget := len(data) / 2
		require.Greater(t, len(data), budget)

		out, contentType, err := FitByteBudget(data, budget)

		require.NoError(t, err)
		assert.LessOrEqual(t, len(out), budget)
		assert.Equal(t, "image/jpeg", contentType)
	})

	t.Run("incompressible payload fails rather than exceeding the budget", func(t *testing.T) {
		data := noisyPNG(t, 400, 400)

		_, _, err := FitByteBudget(data, 64)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "byte budget")
	})

	t.Run("oversized non-image payload is rejected", func(t *testing.T) {
		data := bytes.Repeat([]byte("x"), 2048)

		_, _, err := FitByteBudget(data, 1024)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to decode")
	})
}

func TestImageService_Generate(t *testing.T) {
	t.Run("decodes the base64 payload", func(t *testing.T) {
		imageBytes := []byte("fake image bytes")
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req ImageGenerationRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "dall-e-3", req.Model)
			assert.Equal(t, "1024x1024", req.Size)
			assert.Equal(t, "b64_json", req.ResponseFormat)

			json.NewEncoder(w).Encode(map[string]interface{}{
				"created": 1,
				"data": []map[string]string{
					{"b64_json": base64.StdEncoding.EncodeToString(imageBytes)},
				},
			})
		}))
		defer server.Close()

		svc, err := NewImageService("test-api-key", server.URL, nil)
		require.NoError(t, err)

		provider := ImageProvider{Name: "dalle3-hd", Model: "dall-e-3", Size: "1024x1024", Quality: "hd"}
		data, err := svc.Generate(context.Background(), "a stew", provider)

		require.NoError(t, err)
		assert.Equal(t, imageBytes, data)
	})

	t.Run("provider error status fails the attempt", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "content policy violation", http.StatusBadRequest)
		}))
		defer server.Close()

		svc, err := NewImageService("test-api-key", server.URL, nil)
		require.NoError(t, err)

		_, err = svc.Generate(context.Background(), "a stew", ImageProvider{Model: "dall-e-2"})
		assert.Error(t, err)
	})

	t.Run("empty data array fails the attempt", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{"created": 1, "data": []interface{}{}})
		}))
		defer server.Close()

		svc, err := NewImageService("test-api-key", server.URL, nil)
		require.NoError(t, err)

		_, err = svc.Generate(context.Background(), "a stew", ImageProvider{Model: "dall-e-2"})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "no image data")
	})
}

func TestBuildRecipeImagePrompt(t *testing.T) {
	t.Run("includes title, description and style", func(t *testing.T) {
		prompt := BuildRecipeImagePrompt("Beef Stew", "A rich stew", "French")

		assert.Contains(t, prompt, "beef stew")
		assert.Contains(t, prompt, "a rich stew")
		assert.Contains(t, prompt, "french style")
	})

	t.Run("omits the style suffix for Other", func(t *testing.T) {
		prompt := BuildRecipeImagePrompt("Beef Stew", "", "Other")
		assert.NotContains(t, prompt, "other style")
	})

	t.Run("caps the prompt length", func(t *testing.T) {
		prompt := BuildRecipeImagePrompt(strings.Repeat("very long title ", 100), "", "")
		assert.LessOrEqual(t, len(prompt), 900)
	})
}
