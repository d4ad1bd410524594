// Package api 提供研究服务的HTTP接口。
package api

import (
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/researchkeeper/service/internal/config"
	"github.com/researchkeeper/service/internal/models"
	"github.com/researchkeeper/service/internal/services"
)

// 查询文本长度约束
const (
	minQueryLength = 3
	maxQueryLength = 500
)

// Handler API处理器
type Handler struct {
	research  *services.ResearchService
	config    *config.Config
	startTime time.Time
}

// NewHandler 创建新的API处理器
func NewHandler(research *services.ResearchService, cfg *config.Config) *Handler {
	return &Handler{
		research:  research,
		config:    cfg,
		startTime: time.Now(),
	}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	// 服务信息与健康检查
	router.GET("/", h.handleRoot)
	router.GET("/health", h.handleHealth)

	// 研究接口
	router.POST("/research", h.handleResearch)
	router.POST("/query", h.handleQuery)

	// 历史查询接口
	router.GET("/history", h.handleHistory)
	router.GET("/history/search", h.handleHistorySearch)

	// 记忆（向量检索）接口
	router.GET("/memory/search", h.handleMemorySearch)
	router.GET("/memory/stats", h.handleMemoryStats)

	// 学习效果接口
	router.GET("/learning/stats", h.handleLearningStats)
	router.GET("/learning/history", h.handleLearningHistory)
}

// handleRoot 服务信息
func (h *Handler) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":     h.config.ServiceName,
		"version":     "1.0.0",
		"status":      "running",
		"timestamp":   time.Now().Format(time.RFC3339),
		"description": "自适应质量反馈的研究助手服务",
		"endpoints": gin.H{
			"research":       "/research",
			"query":          "/query",
			"history":        "/history",
			"memory_search":  "/memory/search",
			"memory_stats":   "/memory/stats",
			"learning_stats": "/learning/stats",
		},
	})
}

// handleHealth 健康检查
func (h *Handler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":               "healthy",
		"pipeline_initialized": true,
		"uptime_seconds":       time.Since(h.startTime).Seconds(),
		"llm_provider":         h.config.LLMProvider,
		"vector_store": gin.H{
			"type":    h.config.VectorStoreType,
			"enabled": h.research.Vector() != nil,
		},
	})
}

// validateQuery 校验查询文本，返回错误消息（为空表示通过）
func validateQuery(query string) string {
	trimmed := strings.TrimSpace(query)
	if len(trimmed) < minQueryLength {
		return "查询文本过短，至少3个字符"
	}
	if len(trimmed) > maxQueryLength {
		return "查询文本过长，最多500个字符"
	}
	return ""
}

// handleResearch 执行一次完整研究
func (h *Handler) handleResearch(c *gin.Context) {
	var req models.ResearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "无效的请求体: " + err.Error()})
		return
	}

	if msg := validateQuery(req.Query); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": msg})
		return
	}
	req.Query = strings.TrimSpace(req.Query)

	resp, err := h.research.Run(c.Request.Context(), &req)
	if err != nil {
		log.Printf("[API] 研究执行失败: %v", err)
		c.JSON(http.StatusInternalServerError, &models.ResearchResponse{
			Success:   false,
			Query:     req.Query,
			Error:     err.Error(),
			Timestamp: time.Now().Format(time.RFC3339),
		})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// handleQuery 前端兼容的简化查询接口：返回扁平化字段与格式化后的展示文本
func (h *Handler) handleQuery(c *gin.Context) {
	var req models.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "无效的请求体: " + err.Error()})
		return
	}

	if msg := validateQuery(req.Query); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": msg})
		return
	}

	resp, err := h.research.Run(c.Request.Context(), &models.ResearchRequest{
		Query: strings.TrimSpace(req.Query),
	})
	if err != nil {
		log.Printf("[API] 查询执行失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"query":          resp.Query,
		"response":       formatQueryResponse(resp.Query, resp.Report, resp.Metadata),
		"report":         resp.Report,
		"quality_score":  resp.Metadata.QualityScore,
		"claims_count":   resp.Metadata.ClaimsCount,
		"sources_count":  resp.Metadata.SourcesCount,
		"retry_count":    resp.Metadata.RetryCount,
		"improved":       resp.Metadata.Improved,
		"execution_time": resp.Metadata.ExecutionTime,
		"timestamp":      resp.Timestamp,
	})
}

// handleHistory 最近的查询历史摘要
func (h *Handler) handleHistory(c *gin.Context) {
	limit := parseLimit(c.DefaultQuery("limit", "10"), 10)

	summaries, err := h.research.History().FetchRecent(limit)
	if err != nil {
		log.Printf("[API] 获取历史失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   len(summaries),
		"history": summaries,
	})
}

// handleHistorySearch 按文本子串搜索历史查询
func (h *Handler) handleHistorySearch(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "缺少查询参数 q"})
		return
	}
	limit := parseLimit(c.DefaultQuery("limit", "10"), 10)

	outcomes, err := h.research.History().SearchByText(q, limit)
	if err != nil {
		log.Printf("[API] 历史搜索失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   len(outcomes),
		"results": outcomes,
	})
}

// handleMemorySearch 按语义检索过往研究报告
func (h *Handler) handleMemorySearch(c *gin.Context) {
	if h.research.Vector() == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "向量存储未启用"})
		return
	}

	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "缺少查询参数 q"})
		return
	}
	topK := parseLimit(c.DefaultQuery("top_k", "5"), 5)

	results, err := h.research.Vector().Search(c.Request.Context(), q, topK)
	if err != nil {
		log.Printf("[API] 记忆检索失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   len(results),
		"results": results,
	})
}

// handleMemoryStats 记忆存储统计：历史记录与向量索引
func (h *Handler) handleMemoryStats(c *gin.Context) {
	stats, err := h.research.History().Stats()
	if err != nil {
		log.Printf("[API] 获取记忆统计失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	indexed := 0
	vectorEnabled := h.research.Vector() != nil
	if vectorEnabled {
		indexed = h.research.Vector().Count()
	}

	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"total_queries":     stats.TotalQueries,
		"total_claims":      stats.TotalClaims,
		"total_sources":     stats.TotalSources,
		"avg_quality":       stats.AvgQuality,
		"vector_enabled":    vectorEnabled,
		"indexed_documents": indexed,
	})
}

// handleLearningStats 质量反馈循环的汇总统计
func (h *Handler) handleLearningStats(c *gin.Context) {
	stats := h.research.Tracker().Stats()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats":   stats,
	})
}

// handleLearningHistory 质量反馈循环的逐条记录
func (h *Handler) handleLearningHistory(c *gin.Context) {
	records := h.research.Tracker().History()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   len(records),
		"records": records,
	})
}

// parseLimit 解析limit参数，非法值回退到默认值
func parseLimit(value string, defaultValue int) int {
	limit, err := strconv.Atoi(value)
	if err != nil || limit <= 0 || limit > 100 {
		return defaultValue
	}
	return limit
}
