package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fraudsentry/fraudsentry/internal/alertstream"
	"github.com/fraudsentry/fraudsentry/internal/batch"
	"github.com/fraudsentry/fraudsentry/internal/fraud"
	"github.com/fraudsentry/fraudsentry/internal/ledger"
	"github.com/fraudsentry/fraudsentry/internal/logging"
)

// MaxBatchSize bounds a single batch request.
const MaxBatchSize = 1000

// Handler exposes the scoring service over HTTP.
type Handler struct {
	svc      *Service
	batch    *batch.Coordinator
	streamer *alertstream.Streamer
}

// NewHandler creates an HTTP handler for the service.
func NewHandler(svc *Service, coordinator *batch.Coordinator, streamer *alertstream.Streamer) *Handler {
	return &Handler{svc: svc, batch: coordinator, streamer: streamer}
}

// RegisterRoutes mounts the scoring API on a router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/transactions/process", h.ProcessTransaction)
	rg.POST("/fraud-score", h.FraudScore)
	rg.POST("/transactions/batch", h.ProcessBatch)
	rg.GET("/transactions/:id", h.GetTransaction)
	rg.GET("/users/:id/risk-score", h.GetUserRisk)
	rg.GET("/alerts", h.ListAlerts)
	rg.GET("/alerts/stream", h.StreamAlerts)
	rg.GET("/model", h.ModelInfo)
}

// ProcessTransaction handles POST /v1/transactions/process
func (h *Handler) ProcessTransaction(c *gin.Context) {
	var tx fraud.Transaction
	if err := c.ShouldBindJSON(&tx); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	result, err := h.svc.ProcessTransaction(c.Request.Context(), tx)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// FraudScore handles POST /v1/fraud-score
//
// Stateless scoring: nothing is cached, audited or published.
func (h *Handler) FraudScore(c *gin.Context) {
	var tx fraud.Transaction
	if err := c.ShouldBindJSON(&tx); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	result, err := h.svc.ScoreTransaction(c.Request.Context(), tx)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ProcessBatch handles POST /v1/transactions/batch
//
// Always returns one result per submitted transaction, in input order.
// Items that fail to score come back as degraded placeholders instead of
// failing the batch.
func (h *Handler) ProcessBatch(c *gin.Context) {
	var req struct {
		Transactions []fraud.Transaction `json:"transactions"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}
	if len(req.Transactions) > MaxBatchSize {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "batch_too_large",
			"message": fmt.Sprintf("batch size %d exceeds limit of %d", len(req.Transactions), MaxBatchSize),
		})
		return
	}

	res := h.batch.Process(c.Request.Context(), req.Transactions)
	c.JSON(http.StatusOK, res)
}

// GetTransaction handles GET /v1/transactions/:id
func (h *Handler) GetTransaction(c *gin.Context) {
	status, err := h.svc.GetTransaction(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, fraud.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Transaction not found",
			})
			return
		}
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// GetUserRisk handles GET /v1/users/:id/risk-score
func (h *Handler) GetUserRisk(c *gin.Context) {
	risk, err := h.svc.GetUserRisk(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, fraud.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "User not found",
			})
			return
		}
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, risk)
}

// ListAlerts handles GET /v1/alerts?user_id=&since=&max_alerts=
func (h *Handler) ListAlerts(c *gin.Context) {
	req, ok := h.alertQuery(c)
	if !ok {
		return
	}

	alerts, err := h.svc.ListAlerts(c.Request.Context(), req.UserID, req.Since, req.MaxAlerts)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// StreamAlerts handles GET /v1/alerts/stream as server-sent events.
//
// The snapshot is delivered newest first, one event per alert, paced by the
// client: the next alert is written only after the previous write drained.
// Client disconnect cancels the stream.
func (h *Handler) StreamAlerts(c *gin.Context) {
	req, ok := h.alertQuery(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	ch, err := h.streamer.Open(ctx, req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	for alert := range ch {
		data, err := json.Marshal(alert)
		if err != nil {
			logging.L(ctx).Error("alert marshal failed", "alert_id", alert.AlertID, "error", err)
			continue
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
			return
		}
		c.Writer.Flush()
	}
}

// ModelInfo handles GET /v1/model
func (h *Handler) ModelInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"model_version": h.svc.ModelVersion(),
	})
}

func (h *Handler) alertQuery(c *gin.Context) (alertstream.Request, bool) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "missing_user_id",
			"message": "user_id query parameter is required",
		})
		return alertstream.Request{}, false
	}

	var since time.Time
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_since",
				"message": "since must be RFC3339, e.g. 2026-01-02T15:04:05Z",
			})
			return alertstream.Request{}, false
		}
		since = parsed
	}

	maxAlerts := ledger.DefaultMaxAlerts
	if raw := c.Query("max_alerts"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_max_alerts",
				"message": "max_alerts must be a positive integer",
			})
			return alertstream.Request{}, false
		}
		maxAlerts = n
	}

	return alertstream.Request{UserID: userID, Since: since, MaxAlerts: maxAlerts}, true
}

// writeError maps pipeline errors onto HTTP responses. Invalid input is the
// caller's fault; everything else is reported as an internal error without
// leaking details.
func (h *Handler) writeError(c *gin.Context, err error) {
	var invalid *fraud.InvalidFeatureError
	if errors.As(err, &invalid) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": invalid.Reason,
		})
		return
	}

	logging.L(c.Request.Context()).Error("request failed",
		"path", c.Request.URL.Path, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "internal_error",
		"message": "An unexpected error occurred",
	})
}
