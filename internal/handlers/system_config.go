package handlers

import (
	"strconv"

	"github.com/bugdesk/bugdesk/internal/services"
	"github.com/bugdesk/bugdesk/pkg/response"
	"github.com/gin-gonic/gin"
)

// SystemConfigHandler exposes the runtime overrides (token lifetimes, join
// code TTL, log retention) to admins.
type SystemConfigHandler struct {
	configService *services.SystemConfigService
}

func NewSystemConfigHandler(configService *services.SystemConfigService) *SystemConfigHandler {
	return &SystemConfigHandler{configService: configService}
}

type updateConfigRequest struct {
	Value string `json:"value" binding:"required"`
}

// GET /api/system-config?group=
func (h *SystemConfigHandler) List(c *gin.Context) {
	var (
		items interface{}
		err   error
	)
	if group := c.Query("group"); group != "" {
		items, err = h.configService.GetByGroup(group)
	} else {
		items, err = h.configService.List()
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, items)
}

// Update changes a seeded key; unknown keys are rejected.
// PUT /api/system-config/:key
func (h *SystemConfigHandler) Update(c *gin.Context) {
	key := c.Param("key")
	if _, err := h.configService.Get(key); err != nil {
		response.NotFound(c, "config key not found")
		return
	}

	var req updateConfigRequest
	if !bindJSON(c, &req) {
		return
	}
	if n, err := strconv.Atoi(req.Value); err != nil || n <= 0 {
		response.BadRequest(c, "value must be a positive integer")
		return
	}

	if err := h.configService.Set(key, req.Value); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"key": key, "value": req.Value})
}
