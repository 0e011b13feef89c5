package handlers

import (
	"github.com/bugdesk/bugdesk/internal/middleware"
	"github.com/bugdesk/bugdesk/internal/services"
	"github.com/bugdesk/bugdesk/pkg/response"
	"github.com/gin-gonic/gin"
)

type TicketHandler struct {
	ticketService *services.TicketService
}

func NewTicketHandler(ticketService *services.TicketService) *TicketHandler {
	return &TicketHandler{ticketService: ticketService}
}

// POST /api/tickets
func (h *TicketHandler) Create(c *gin.Context) {
	var req services.CreateTicketRequest
	if !bindJSON(c, &req) {
		return
	}

	ticket, err := h.ticketService.Create(&req, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, ticket)
}

// GET /api/tickets/:id
func (h *TicketHandler) Get(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	ticket, err := h.ticketService.Get(id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, ticket)
}

// Update changes the fields present in the body
// PUT /api/tickets/:id
func (h *TicketHandler) Update(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	var req services.UpdateTicketRequest
	if !bindJSON(c, &req) {
		return
	}

	ticket, err := h.ticketService.Update(id, &req, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, ticket)
}

// Delete returns the deleted row
// DELETE /api/tickets/:id
func (h *TicketHandler) Delete(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	ticket, err := h.ticketService.Delete(id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, ticket)
}

// GET /api/tickets/user/:userId
func (h *TicketHandler) ListForUser(c *gin.Context) {
	userID, ok := uintParam(c, "userId")
	if !ok {
		return
	}

	tickets, err := h.ticketService.ListForUser(userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, tickets)
}

// Search queries the index, or the database when no index is configured
// GET /api/tickets/search?q=&organization_id=
func (h *TicketHandler) Search(c *gin.Context) {
	var query struct {
		Q              string `form:"q"`
		OrganizationID *uint  `form:"organization_id"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	tickets, err := h.ticketService.Search(c.Request.Context(), query.Q, query.OrganizationID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, tickets)
}

// Assign adds users to the ticket's assignee list
// POST /api/tickets/:id/assign
func (h *TicketHandler) Assign(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	var req services.AssignTicketRequest
	if !bindJSON(c, &req) {
		return
	}

	added, err := h.ticketService.AssignMultiple(id, req.UserIDs, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, added)
}

// GET /api/tickets/:id/assignees
func (h *TicketHandler) ListAssignees(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	assignees, err := h.ticketService.ListAssignees(id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, assignees)
}

// DELETE /api/tickets/:id/assignees/:userId
func (h *TicketHandler) Unassign(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	userID, ok := uintParam(c, "userId")
	if !ok {
		return
	}

	if err := h.ticketService.Unassign(id, userID); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "assignee removed")
}

// GET /api/tickets/:id/history
func (h *TicketHandler) History(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	history, err := h.ticketService.GetHistory(id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, history)
}
