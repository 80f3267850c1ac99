package handlers

import (
	"errors"
	"net/http"

	"github.com/lperezmo/sms-helper/internal/config"
	"github.com/lperezmo/sms-helper/internal/services"
	"github.com/lperezmo/sms-helper/pkg/logger"
	"github.com/lperezmo/sms-helper/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	TOTPCode string `json:"totp_code,omitempty"`
}

// AuthHandler handles admin authentication
type AuthHandler struct {
	config *config.Config
	admin  AdminAuthenticatorInterface
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(cfg *config.Config, admin AdminAuthenticatorInterface) *AuthHandler {
	return &AuthHandler{config: cfg, admin: admin}
}

// Login checks the admin credentials and returns a JWT token
func (h *AuthHandler) Login(c *gin.Context) {
	logger.Info("Auth login endpoint called")
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Error("Failed to parse login request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	if req.Username == "" || req.Password == "" {
		logger.Error("Missing username or password")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
		return
	}

	if err := h.admin.Authenticate(req.Username, req.Password, req.TOTPCode); err != nil {
		switch {
		case errors.Is(err, services.ErrAccountLocked):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many failed attempts, try again later"})
		case errors.Is(err, services.ErrInvalidTOTP):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid TOTP code"})
		case errors.Is(err, services.ErrAdminDisabled):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Admin login is disabled"})
		default:
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		}
		return
	}

	token, err := middleware.GenerateToken(req.Username, h.config)
	if err != nil {
		logger.Error("Failed to generate token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}
