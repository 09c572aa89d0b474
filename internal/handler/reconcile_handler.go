package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"Territory-App/internal/usecase"
)

// ReconcileHandler 整合性照合スイープの管理用HTTPハンドラー
type ReconcileHandler struct {
	reconcileUsecase *usecase.ReconcileUsecase
}

// NewReconcileHandler ReconcileHandlerの新しいインスタンスを作成
func NewReconcileHandler(reconcileUsecase *usecase.ReconcileUsecase) *ReconcileHandler {
	return &ReconcileHandler{
		reconcileUsecase: reconcileUsecase,
	}
}

// reconcileRequest 照合スイープのリクエストボディ
// user_id を指定するとそのユーザーのゴーストターゲット掃除を行う
type reconcileRequest struct {
	UserID string `json:"user_id"`
}

// Reconcile POST /admin/reconcile - ゴーストターゲット掃除とカウンター修復
func (h *ReconcileHandler) Reconcile(c *gin.Context) {
	var req reconcileRequest
	// ボディは省略可能（省略時はカウンター修復のみ）
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_request",
				"message": "Invalid JSON format: " + err.Error(),
			})
			return
		}
	}

	response := gin.H{}

	if req.UserID != "" {
		targetReport, err := h.reconcileUsecase.ReconcileUserTargets(c.Request.Context(), req.UserID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "internal_error",
				"message": "Failed to reconcile vengeance targets: " + err.Error(),
			})
			return
		}
		response["ghost_targets_removed"] = targetReport.GhostTargetsRemoved
		response["expired_targets_removed"] = targetReport.ExpiredTargetsRemoved
	}

	rivalryReport, err := h.reconcileUsecase.ReconcileRivalries(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to reconcile rivalry counters: " + err.Error(),
		})
		return
	}
	response["rivalry_patches"] = rivalryReport.RivalryPatches
	response["status"] = "success"

	c.JSON(http.StatusOK, response)
}
