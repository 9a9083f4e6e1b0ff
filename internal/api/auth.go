package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/forkcast/backend/internal/middleware"
	"github.com/forkcast/backend/internal/service"
)

// AuthHandler issues bearer tokens and exposes the credit balance.
type AuthHandler struct {
	auth   *service.AuthService
	ledger service.CreditLedger
}

// NewAuthHandler creates a new AuthHandler instance
func NewAuthHandler(auth *service.AuthService, ledger service.CreditLedger) *AuthHandler {
	return &AuthHandler{
		auth:   auth,
		ledger: ledger,
	}
}

// RegisterRoutes registers the auth routes
func (h *AuthHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/auth/login", h.Login)
	router.GET("/credits", middleware.AuthMiddleware(h.auth), h.GetCredits)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := h.auth.Login(req.Email, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (h *AuthHandler) GetCredits(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	balance, err := h.ledger.Balance(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no credit account"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch balance"})
		return
	}

	c.JSON(http.StatusOK, balance)
}
