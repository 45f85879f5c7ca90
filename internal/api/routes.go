package api

import (
	"context"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rawblock/muling-engine/internal/db"
	"github.com/rawblock/muling-engine/internal/engine"
	"github.com/rawblock/muling-engine/internal/metrics"
	"github.com/rawblock/muling-engine/pkg/models"
)

type APIHandler struct {
	engine    *engine.Engine
	dbStore   *db.PostgresStore
	wsHub     *Hub
	collector *metrics.Collector
}

// AnalyzeRequest is the transport envelope for one batch.
type AnalyzeRequest struct {
	Transactions []models.Transaction `json:"transactions"`
}

func SetupRouter(eng *engine.Engine, dbStore *db.PostgresStore, wsHub *Hub, collector *metrics.Collector, maxConcurrent int) *gin.Engine {
	r := gin.Default()
	r.Use(corsMiddleware(os.Getenv("ALLOWED_ORIGINS")))

	handler := &APIHandler{engine: eng, dbStore: dbStore, wsHub: wsHub, collector: collector}
	gate := NewAnalysisGate(maxConcurrent)

	api := r.Group("/api/v1")
	{
		api.POST("/analyze", gate.Middleware(), handler.handleAnalyze)
		api.GET("/health", handler.handleHealth)
		api.GET("/stream", wsHub.Subscribe)

		// Report archive (requires a connected database)
		api.GET("/reports", handler.handleListReports)
		api.GET("/reports/:id", handler.handleGetReport)
	}

	if collector != nil {
		r.GET("/metrics", gin.WrapH(collector.Handler()))
	}

	return r
}

// corsMiddleware answers preflights and stamps the CORS headers the
// dashboard needs. The allowlist is a comma-separated origin list; an empty
// or "*" list opens the surface up, which is what local development wants.
func corsMiddleware(allowlist string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if origin := allowedOrigin(allowlist, c.Request.Header.Get("Origin")); origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// allowedOrigin resolves the Access-Control-Allow-Origin value for a
// request origin, or "" when the origin is not on the allowlist.
func allowedOrigin(allowlist, origin string) string {
	if allowlist == "" || allowlist == "*" {
		return "*"
	}
	for _, allowed := range strings.Split(allowlist, ",") {
		if strings.TrimSpace(allowed) == origin {
			return origin
		}
	}
	return ""
}

// handleAnalyze runs the full detection pipeline over the posted batch.
func (h *APIHandler) handleAnalyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_input",
			"message": "malformed request body: " + err.Error(),
		})
		return
	}

	started := time.Now()
	report, err := h.engine.Analyze(c.Request.Context(), req.Transactions)
	if err != nil {
		if h.collector != nil {
			h.collector.RecordFailure()
		}
		category := engine.Category(err)
		status := http.StatusBadRequest
		if category == "internal_error" {
			status = http.StatusInternalServerError
		}
		c.JSON(status, gin.H{"error": category, "message": err.Error()})
		return
	}

	if h.collector != nil {
		scores := make([]int, len(report.SuspiciousAccounts))
		for i, acct := range report.SuspiciousAccounts {
			scores[i] = acct.SuspicionScore
		}
		h.collector.RecordAnalysis(time.Since(started),
			report.Summary.SuspiciousAccountsFlagged,
			report.Summary.FraudRingsDetected,
			scores)
	}

	if h.dbStore != nil {
		if err := h.dbStore.SaveReport(context.Background(), report); err != nil {
			log.Printf("Failed to archive analysis %s: %v", report.AnalysisID, err)
		}
	}

	if h.wsHub != nil {
		h.wsHub.PublishRings(report.AnalysisID, report.FraudRings)
	}

	c.JSON(http.StatusOK, report)
}

// handleHealth returns engine status and capabilities for service discovery.
func (h *APIHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "operational",
		"engine": "Muling Detection Engine v1.0",
		"capabilities": gin.H{
			"cycle_detection":       true,
			"smurfing_detection":    true,
			"shell_chain_detection": true,
			"false_positive_veto":   true,
			"ring_alerts":           true,
		},
		"dbConnected": h.dbStore != nil,
	})
}

// handleListReports pages through archived analysis summaries.
func (h *APIHandler) handleListReports(c *gin.Context) {
	if h.dbStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database not connected"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	reports, totalCount, err := h.dbStore.ListReports(c.Request.Context(), page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list archived reports", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":       reports,
		"totalCount": totalCount,
		"page":       page,
		"limit":      limit,
	})
}

// handleGetReport fetches one archived report document.
func (h *APIHandler) handleGetReport(c *gin.Context) {
	if h.dbStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database not connected"})
		return
	}

	report, err := h.dbStore.GetReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}
