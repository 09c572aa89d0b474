package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"Territory-App/internal/domain/model"
	"Territory-App/internal/usecase"
)

// ActivityHandler アクティビティ取り込みに関するHTTPハンドラー
type ActivityHandler struct {
	ingestUsecase *usecase.ActivityIngestUsecase
}

// NewActivityHandler ActivityHandlerの新しいインスタンスを作成
func NewActivityHandler(ingestUsecase *usecase.ActivityIngestUsecase) *ActivityHandler {
	return &ActivityHandler{
		ingestUsecase: ingestUsecase,
	}
}

// IngestActivity POST /activities - 完了済みアクティビティの取り込み
func (h *ActivityHandler) IngestActivity(c *gin.Context) {
	var req model.IngestActivityRequest

	// リクエストボディの解析（Ginが自動でContent-Type確認）
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid JSON format: " + err.Error(),
		})
		return
	}

	if req.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "missing_parameter",
			"message": "user_id is required",
		})
		return
	}
	if req.ActivityType == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "missing_parameter",
			"message": "activity_type is required",
		})
		return
	}
	if len(req.Route) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "missing_parameter",
			"message": "route is required",
		})
		return
	}

	// アクティビティIDが未指定の場合はサーバー側で生成（冪等リトライにはクライアント指定IDを推奨）
	activityID := req.ActivityID
	if activityID == "" {
		activityID = uuid.New().String()
	}

	activity := &model.Activity{
		ID:           activityID,
		UserID:       req.UserID,
		ActivityType: req.ActivityType,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		Route:        req.Route,
	}

	// ユースケース層で処理
	result, err := h.ingestUsecase.ProcessActivity(c.Request.Context(), activity)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "processing_failed",
			"message": "Failed to process activity: " + err.Error(),
		})
		return
	}

	// 屋内アクティビティは処理対象外（エラーではない）
	if result == nil {
		c.JSON(http.StatusOK, model.IngestActivityResponse{Status: "skipped"})
		return
	}

	status := "success"
	if result.FailedCells > 0 {
		status = "partial"
	}
	c.JSON(http.StatusCreated, model.IngestActivityResponse{
		Status: status,
		Result: result,
	})
}
