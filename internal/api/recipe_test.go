package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/forkcast/backend/internal/api"
	"github.com/forkcast/backend/internal/model"
	"github.com/forkcast/backend/internal/service"
	"github.com/forkcast/backend/internal/testhelpers"
	"github.com/forkcast/backend/internal/types"
)

type recipeFixture struct {
	tokens  *testhelpers.MockTokenValidator
	recipes *testhelpers.MockRecipeStore
	router  *gin.Engine
	userID  uuid.UUID
}

func newRecipeFixture(t *testing.T) *recipeFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &recipeFixture{
		tokens:  new(testhelpers.MockTokenValidator),
		recipes: new(testhelpers.MockRecipeStore),
		userID:  uuid.New(),
	}
	f.tokens.On("ValidateToken", "good-token").Return(&types.TokenClaims{UserID: f.userID}, nil)

	handler := api.NewRecipeHandler(f.recipes, f.tokens)
	f.router = gin.New()
	handler.RegisterRoutes(f.router.Group("/api/v1"))
	return f
}

func (f *recipeFixture) request(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestRecipeHandler_ListRecipes(t *testing.T) {
	t.Run("returns the owner's recipes", func(t *testing.T) {
		f := newRecipeFixture(t)
		f.recipes.On("ListByOwner", mock.Anything, f.userID, "", "").
			Return([]*model.Recipe{{ID: uuid.New(), OwnerID: f.userID, Title: "Beef Stew"}}, nil)

		w := f.request(t, http.MethodGet, "/api/v1/recipes", "", "good-token")

		assert.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Recipes []model.Recipe `json:"recipes"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Recipes, 1)
		assert.Equal(t, "Beef Stew", resp.Recipes[0].Title)
	})

	t.Run("passes search and style filters through", func(t *testing.T) {
		f := newRecipeFixture(t)
		f.recipes.On("ListByOwner", mock.Anything, f.userID, "stew", "French").
			Return([]*model.Recipe{}, nil)

		w := f.request(t, http.MethodGet, "/api/v1/recipes?q=stew&style=French", "", "good-token")

		assert.Equal(t, http.StatusOK, w.Code)
		f.recipes.AssertExpectations(t)
	})

	t.Run("requires authentication", func(t *testing.T) {
		f := newRecipeFixture(t)

		w := f.request(t, http.MethodGet, "/api/v1/recipes", "", "")

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		f.recipes.AssertNotCalled(t, "ListByOwner", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestRecipeHandler_GetRecipe(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		f := newRecipeFixture(t)
		id := uuid.New()
		f.recipes.On("Get", mock.Anything, id, f.userID).
			Return(&model.Recipe{ID: id, OwnerID: f.userID, Title: "Beef Stew"}, nil)

		w := f.request(t, http.MethodGet, "/api/v1/recipes/"+id.String(), "", "good-token")

		assert.Equal(t, http.StatusOK, w.Code)
		var recipe model.Recipe
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &recipe))
		assert.Equal(t, "Beef Stew", recipe.Title)
	})

	t.Run("access denied reads as not found", func(t *testing.T) {
		f := newRecipeFixture(t)
		id := uuid.New()
		f.recipes.On("Get", mock.Anything, id, f.userID).Return(nil, service.ErrAccessDenied)

		w := f.request(t, http.MethodGet, "/api/v1/recipes/"+id.String(), "", "good-token")

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "Recipe not found")
	})

	t.Run("invalid id", func(t *testing.T) {
		f := newRecipeFixture(t)

		w := f.request(t, http.MethodGet, "/api/v1/recipes/not-a-uuid", "", "good-token")

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestRecipeHandler_UpdateRecipe(t *testing.T) {
	t.Run("applies the patch", func(t *testing.T) {
		f := newRecipeFixture(t)
		id := uuid.New()
		f.recipes.On("Update", mock.Anything, id, f.userID, mock.MatchedBy(func(p service.RecipePatch) bool {
			return p.Title != nil && *p.Title == "Lamb Stew" && p.Description == nil
		})).Return(&model.Recipe{ID: id, OwnerID: f.userID, Title: "Lamb Stew"}, nil)

		w := f.request(t, http.MethodPut, "/api/v1/recipes/"+id.String(), `{"title":"Lamb Stew"}`, "good-token")

		assert.Equal(t, http.StatusOK, w.Code)
		f.recipes.AssertExpectations(t)
	})

	t.Run("someone else's recipe reads as not found", func(t *testing.T) {
		f := newRecipeFixture(t)
		id := uuid.New()
		f.recipes.On("Update", mock.Anything, id, f.userID, mock.Anything).
			Return(nil, service.ErrAccessDenied)

		w := f.request(t, http.MethodPut, "/api/v1/recipes/"+id.String(), `{"title":"Hijacked"}`, "good-token")

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		f := newRecipeFixture(t)
		id := uuid.New()

		w := f.request(t, http.MethodPut, "/api/v1/recipes/"+id.String(), `{"title":`, "good-token")

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
