package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"Territory-App/internal/application"
)

// TerritoryHandler 領土の読み取りに関するHTTPハンドラー
type TerritoryHandler struct {
	syncService *application.TerritorySyncService
}

// NewTerritoryHandler TerritoryHandlerの新しいインスタンスを作成
func NewTerritoryHandler(syncService *application.TerritorySyncService) *TerritoryHandler {
	return &TerritoryHandler{
		syncService: syncService,
	}
}

// GetTerritoriesByBoundingBox GET /territories - 境界ボックス内の領土一覧を取得
func (h *TerritoryHandler) GetTerritoriesByBoundingBox(c *gin.Context) {
	// クエリパラメータの解析
	bbox := c.Query("bbox")
	if bbox == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "missing_parameter",
			"message": "bbox parameter is required (format: min_lng,min_lat,max_lng,max_lat)",
		})
		return
	}

	// bbox の解析
	coords := strings.Split(bbox, ",")
	if len(coords) != 4 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_parameter",
			"message": "bbox must contain 4 coordinates: min_lng,min_lat,max_lng,max_lat",
		})
		return
	}

	values := make([]float64, 4)
	names := []string{"min_lng", "min_lat", "max_lng", "max_lat"}
	for i, coord := range coords {
		value, err := strconv.ParseFloat(coord, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_parameter",
				"message": "Invalid " + names[i] + " value",
			})
			return
		}
		values[i] = value
	}

	// サービス層で処理
	territories, err := h.syncService.GetCellsByBoundingBox(c.Request.Context(), values[0], values[1], values[2], values[3])
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to get territories: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"territories": territories,
		"count":       len(territories),
	})
}

// GetTerritoriesByIDs GET /territories/cells - セルIDリストによる一括取得
func (h *TerritoryHandler) GetTerritoriesByIDs(c *gin.Context) {
	ids := c.Query("ids")
	if ids == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "missing_parameter",
			"message": "ids parameter is required (comma-separated cell IDs)",
		})
		return
	}

	cellIDs := make([]string, 0)
	for _, id := range strings.Split(ids, ",") {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			cellIDs = append(cellIDs, trimmed)
		}
	}
	if len(cellIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_parameter",
			"message": "ids must contain at least one cell ID",
		})
		return
	}

	territories, err := h.syncService.GetCells(c.Request.Context(), cellIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to get territories: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"territories": territories,
		"count":       len(territories),
	})
}

// GetTerritoriesByUser GET /users/:id/territories - 指定ユーザーの所有セル一覧を取得
func (h *TerritoryHandler) GetTerritoriesByUser(c *gin.Context) {
	userID := c.Param("id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "missing_parameter",
			"message": "User ID is required",
		})
		return
	}

	territories, err := h.syncService.GetCellsByOwner(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to get user territories: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":     userID,
		"territories": territories,
		"count":       len(territories),
	})
}
