package handlers

import (
	"net/http"
	"strconv"

	"github.com/lperezmo/sms-helper/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TurnHandler serves the turn audit log
type TurnHandler struct {
	turns TurnListerInterface
}

// NewTurnHandler creates a new turn handler
func NewTurnHandler(turns TurnListerInterface) *TurnHandler {
	return &TurnHandler{turns: turns}
}

// ListTurns handles GET /api/turns
// Query params: limit (default 50, max 500), offset (default 0)
func (h *TurnHandler) ListTurns(c *gin.Context) {
	limit := 50
	offset := 0

	if limitParam := c.Query("limit"); limitParam != "" {
		l, err := strconv.Atoi(limitParam)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
			return
		}
		if l > 0 && l <= 500 {
			limit = l
		}
	}

	if offsetParam := c.Query("offset"); offsetParam != "" {
		o, err := strconv.Atoi(offsetParam)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid offset parameter"})
			return
		}
		if o >= 0 {
			offset = o
		}
	}

	turns, err := h.turns.List(c.Request.Context(), limit, offset)
	if err != nil {
		logger.Error("Failed to list turns", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list turns"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"turns":  turns,
		"limit":  limit,
		"offset": offset,
	})
}
