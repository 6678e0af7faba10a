package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stock_screener/internal/cache"
	"stock_screener/internal/config"
	"stock_screener/internal/models"
	"stock_screener/internal/service"
)

// Handler API 处理器
type Handler struct {
	screener *service.Screener
	store    *cache.Store
	calendar *service.TradingCalendar
	cfg      *config.Config
	logger   *zap.Logger
}

// NewHandler 创建处理器
func NewHandler(screener *service.Screener, store *cache.Store, calendar *service.TradingCalendar,
	cfg *config.Config, logger *zap.Logger) *Handler {
	return &Handler{
		screener: screener,
		store:    store,
		calendar: calendar,
		cfg:      cfg,
		logger:   logger,
	}
}

// Response 统一响应结构
type Response struct {
	Success      bool             `json:"success"`
	Message      string           `json:"message"`
	Data         interface{}      `json:"data,omitempty"`
	DataSource   string           `json:"data_source,omitempty"`
	DateInfo     *models.DateInfo `json:"date_info,omitempty"`
	DeletedFiles []string         `json:"deleted_files,omitempty"`
}

// ClearRequest 缓存清理请求
type ClearRequest struct {
	Type string `json:"type"` // all / current / strategy
	Date string `json:"date"` // 指定日期，可空
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.Use(corsMiddleware())

	// 前端页面
	r.GET("/", func(c *gin.Context) {
		c.File("./web/index.html")
	})

	api := r.Group("/api")
	{
		api.GET("/health", h.HealthCheck)
		api.GET("/stocks/current", h.GetCurrentStocks)
		api.GET("/cache/status", h.GetCacheStatus)
		api.POST("/cache/clear", h.ClearCache)
		api.GET("/config", h.GetConfig)
	}
}

// corsMiddleware 允许跨域请求
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: "OK",
		Data: gin.H{
			"status": "healthy",
		},
	})
}

// GetCurrentStocks 获取当前符合条件的股票
func (h *Handler) GetCurrentStocks(c *gin.Context) {
	forceRefresh := strings.EqualFold(c.DefaultQuery("refresh", "false"), "true")

	info := h.calendar.Resolve(time.Now())
	stocks := h.screener.GetActiveStocks(c.Request.Context(), !forceRefresh, true, forceRefresh)

	if len(stocks) == 0 {
		c.JSON(http.StatusOK, Response{
			Success:  false,
			Message:  "无符合条件的股票",
			Data:     []models.StockSnapshot{},
			DateInfo: &info,
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success:    true,
		Message:    fmt.Sprintf("找到 %d 只符合条件的股票（%s）", len(stocks), info.TimeStatus),
		Data:       stocks,
		DataSource: h.dataSource(forceRefresh, &info),
		DateInfo:   &info,
	})
}

// dataSource 判断本次响应的数据来源
func (h *Handler) dataSource(forceRefresh bool, info *models.DateInfo) string {
	if forceRefresh {
		return "强制刷新"
	}
	if info.IsTodayData && h.store.Exists(info.DataDate) {
		return "今日缓存"
	}
	if !info.IsTodayData && h.store.Exists(info.DataDate) {
		return "昨日缓存"
	}
	return "实时获取"
}

// GetCacheStatus 获取缓存状态
func (h *Handler) GetCacheStatus(c *gin.Context) {
	files := h.store.List()

	var totalSize int64
	for _, f := range files {
		totalSize += f.Size
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: "success",
		Data: gin.H{
			"cache_files": files,
			"total_files": len(files),
			"cache_size":  totalSize,
		},
	})
}

// ClearCache 清理缓存
func (h *Handler) ClearCache(c *gin.Context) {
	req := ClearRequest{Type: "all"}
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Message: "参数错误: " + err.Error(),
		})
		return
	}
	if req.Type == "" {
		req.Type = "all"
	}
	if req.Type != "all" && req.Type != "current" && req.Type != "strategy" {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Message: "无效的清理类型: " + req.Type,
		})
		return
	}

	deleted := h.store.Clear(req.Type, req.Date)
	h.logger.Info("缓存清理完成",
		zap.String("type", req.Type),
		zap.String("date", req.Date),
		zap.Int("deleted", len(deleted)))

	c.JSON(http.StatusOK, Response{
		Success:      true,
		Message:      fmt.Sprintf("成功删除 %d 个缓存文件", len(deleted)),
		DeletedFiles: deleted,
	})
}

// GetConfig 获取当前配置（只读展示）
func (h *Handler) GetConfig(c *gin.Context) {
	criteria := h.cfg.Screener
	selectConfig := gin.H{
		"upDownMin":   criteria.ChangePctMin,
		"upDownMax":   criteria.ChangePctMax,
		"turnoverMin": criteria.TurnoverMin,
		"turnoverMax": criteria.TurnoverMax,
		"valMin":      criteria.FloatCapMin / 1e8, // 转换为亿
		"valMax":      criteria.FloatCapMax / 1e8,
		"ratio":       criteria.VolumeRatioMin,
	}

	indicators := make([]gin.H, 0, len(h.cfg.Indicators))
	for _, ind := range h.cfg.Indicators {
		indicators = append(indicators, gin.H{
			"key":    ind.Key,
			"name":   ind.Name,
			"enable": ind.Enabled,
		})
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: "success",
		Data: gin.H{
			"selectConfig": selectConfig,
			"indicators":   indicators,
		},
	})
}
