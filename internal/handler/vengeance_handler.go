package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"Territory-App/internal/domain/repository"
)

// VengeanceHandler リベンジターゲットに関するHTTPハンドラー
type VengeanceHandler struct {
	vengeanceRepo repository.VengeanceRepository
}

// NewVengeanceHandler VengeanceHandlerの新しいインスタンスを作成
func NewVengeanceHandler(vengeanceRepo repository.VengeanceRepository) *VengeanceHandler {
	return &VengeanceHandler{
		vengeanceRepo: vengeanceRepo,
	}
}

// GetVengeanceTargets GET /users/:id/vengeance-targets - 指定ユーザーのリベンジターゲット一覧を取得
func (h *VengeanceHandler) GetVengeanceTargets(c *gin.Context) {
	userID := c.Param("id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "missing_parameter",
			"message": "User ID is required",
		})
		return
	}

	targets, err := h.vengeanceRepo.ListByUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to get vengeance targets: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id": userID,
		"targets": targets,
		"count":   len(targets),
	})
}
