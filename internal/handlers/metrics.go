package handlers

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/bugdesk/bugdesk/internal/models"
	"github.com/bugdesk/bugdesk/internal/services"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

var startTime = time.Now()

// MetricsHandler renders gauges in the Prometheus text format.
type MetricsHandler struct {
	db    *gorm.DB
	queue services.TaskQueue
	hub   *services.SSEHub
}

func NewMetricsHandler(db *gorm.DB, queue services.TaskQueue, hub *services.SSEHub) *MetricsHandler {
	return &MetricsHandler{db: db, queue: queue, hub: hub}
}

// GET /metrics
func (h *MetricsHandler) Metrics(c *gin.Context) {
	var b strings.Builder

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	writeGauge(&b, "bugdesk_uptime_seconds", "Time since server start in seconds", time.Since(startTime).Seconds())
	writeGauge(&b, "bugdesk_goroutines", "Number of active goroutines", float64(runtime.NumGoroutine()))
	writeGauge(&b, "bugdesk_memory_alloc_bytes", "Current heap allocation in bytes", float64(m.Alloc))
	writeGauge(&b, "bugdesk_gc_runs_total", "Total number of GC runs", float64(m.NumGC))

	if sqlDB, err := h.db.DB(); err == nil {
		stats := sqlDB.Stats()
		writeGauge(&b, "bugdesk_db_open_connections", "Number of open DB connections", float64(stats.OpenConnections))
		writeGauge(&b, "bugdesk_db_in_use_connections", "Number of in-use DB connections", float64(stats.InUse))
	}

	writeGauge(&b, "bugdesk_sse_active_clients", "Number of live notification streams", float64(h.hub.ClientCount()))

	queueAsync := 0.0
	if h.queue != nil && h.queue.IsAsync() {
		queueAsync = 1.0
	}
	writeGauge(&b, "bugdesk_queue_async_enabled", "Whether the Redis queue is enabled (1=yes, 0=no)", queueAsync)

	var byStatus []struct {
		Status string
		Count  int64
	}
	h.db.Model(&models.Ticket{}).Select("status, COUNT(*) AS count").Group("status").Scan(&byStatus)
	fmt.Fprintf(&b, "# HELP bugdesk_tickets Number of tickets by status\n# TYPE bugdesk_tickets gauge\n")
	for _, row := range byStatus {
		fmt.Fprintf(&b, "bugdesk_tickets{status=%q} %d\n", row.Status, row.Count)
	}
	b.WriteString("\n")

	var orgs, pending, unread int64
	h.db.Model(&models.Organization{}).Count(&orgs)
	h.db.Model(&models.OrganizationMember{}).Where("status = ?", models.MemberStatusPending).Count(&pending)
	h.db.Model(&models.Notification{}).Where("is_read = ?", false).Count(&unread)

	writeGauge(&b, "bugdesk_organizations_total", "Number of organizations", float64(orgs))
	writeGauge(&b, "bugdesk_join_requests_pending", "Join requests waiting for an admin", float64(pending))
	writeGauge(&b, "bugdesk_notifications_unread", "Unread notifications across all users", float64(unread))

	c.Data(200, "text/plain; version=0.0.4; charset=utf-8", []byte(b.String()))
}

func writeGauge(b *strings.Builder, name, help string, value float64) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s gauge\n", name)
	fmt.Fprintf(b, "%s %g\n\n", name, value)
}
