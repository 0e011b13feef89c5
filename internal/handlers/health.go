package handlers

import (
	"net/http"

	"github.com/bugdesk/bugdesk/internal/services"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// HealthHandler reports the state of the subsystems.
type HealthHandler struct {
	db      *gorm.DB
	queue   services.TaskQueue
	indexer services.SearchIndexer
	hub     *services.SSEHub
}

func NewHealthHandler(db *gorm.DB, queue services.TaskQueue, indexer services.SearchIndexer, hub *services.SSEHub) *HealthHandler {
	return &HealthHandler{db: db, queue: queue, indexer: indexer, hub: hub}
}

// GET /api/health
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	overall := "healthy"
	status := http.StatusOK

	dbStatus := "ok"
	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		dbStatus = "error: " + err.Error()
		overall = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	queueMode := "in-process"
	if h.queue != nil && h.queue.IsAsync() {
		queueMode = "async (Redis)"
	}

	searchMode := "database"
	if h.indexer != nil && h.indexer.Enabled() {
		searchMode = "index"
	}

	c.JSON(status, gin.H{
		"status":  overall,
		"service": "bugdesk",
		"components": gin.H{
			"database":    dbStatus,
			"queue_mode":  queueMode,
			"search_mode": searchMode,
			"sse_clients": h.hub.ClientCount(),
		},
	})
}
