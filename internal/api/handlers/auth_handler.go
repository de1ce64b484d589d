// internal/api/handlers/auth_handler.go
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"voucher-service/internal/api/responses"
	"voucher-service/internal/core/auth"

	"github.com/gin-gonic/gin"
)

// ContextClaimsKey holds the verified *auth.Claims on authenticated requests.
const ContextClaimsKey = "claims"

type AuthHandler struct {
	service auth.Service
}

func NewAuthHandler(service auth.Service) *AuthHandler {
	return &AuthHandler{service: service}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.Error(c, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	token, err := h.service.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			responses.Error(c, http.StatusUnauthorized, err.Error())
			return
		}
		responses.Error(c, http.StatusInternalServerError, "login failed", err.Error())
		return
	}

	responses.Success(c, gin.H{"token": token}, "login successful")
}

// RequireAuth rejects requests without a valid Bearer token.
func RequireAuth(service auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			responses.Error(c, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims, err := service.Verify(strings.TrimSpace(token))
		if err != nil {
			responses.Error(c, http.StatusUnauthorized, "invalid token")
			return
		}
		c.Set(ContextClaimsKey, claims)
		c.Next()
	}
}
