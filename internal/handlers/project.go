package handlers

import (
	"github.com/bugdesk/bugdesk/internal/middleware"
	"github.com/bugdesk/bugdesk/internal/services"
	"github.com/bugdesk/bugdesk/pkg/response"
	"github.com/gin-gonic/gin"
)

type ProjectHandler struct {
	projectService *services.ProjectService
	ticketService  *services.TicketService
}

func NewProjectHandler(projectService *services.ProjectService, ticketService *services.TicketService) *ProjectHandler {
	return &ProjectHandler{projectService: projectService, ticketService: ticketService}
}

// List returns paginated projects
// GET /api/projects
func (h *ProjectHandler) List(c *gin.Context) {
	var req services.ProjectListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.projectService.List(&req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}

// GetByID returns a project by ID
// GET /api/projects/:id
func (h *ProjectHandler) GetByID(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	project, err := h.projectService.GetByID(id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, project)
}

// Create creates a new project owned by the caller
// POST /api/projects
func (h *ProjectHandler) Create(c *gin.Context) {
	var req services.CreateProjectRequest
	if !bindJSON(c, &req) {
		return
	}

	project, err := h.projectService.Create(&req, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, project)
}

// Update updates a project
// PUT /api/projects/:id
func (h *ProjectHandler) Update(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	var req services.UpdateProjectRequest
	if !bindJSON(c, &req) {
		return
	}

	project, err := h.projectService.Update(id, &req, middleware.GetPrincipal(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, project)
}

// Delete deletes a project
// DELETE /api/projects/:id
func (h *ProjectHandler) Delete(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	if err := h.projectService.Delete(id, middleware.GetPrincipal(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "project deleted successfully")
}

// ListTickets returns the tickets of a project
// GET /api/projects/:id/tickets
func (h *ProjectHandler) ListTickets(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	tickets, err := h.ticketService.ListByProject(id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, tickets)
}
