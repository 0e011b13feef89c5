package handlers

import (
	"github.com/bugdesk/bugdesk/internal/middleware"
	"github.com/bugdesk/bugdesk/internal/services"
	"github.com/bugdesk/bugdesk/pkg/response"
	"github.com/gin-gonic/gin"
)

type CommentHandler struct {
	commentService *services.CommentService
}

func NewCommentHandler(commentService *services.CommentService) *CommentHandler {
	return &CommentHandler{commentService: commentService}
}

// GET /api/tickets/:id/comments
func (h *CommentHandler) List(c *gin.Context) {
	ticketID, ok := uintParam(c, "id")
	if !ok {
		return
	}

	comments, err := h.commentService.ListByTicket(ticketID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, comments)
}

// POST /api/tickets/:id/comments
func (h *CommentHandler) Create(c *gin.Context) {
	ticketID, ok := uintParam(c, "id")
	if !ok {
		return
	}

	var req services.CreateCommentRequest
	if !bindJSON(c, &req) {
		return
	}

	comment, err := h.commentService.Create(ticketID, middleware.GetUserID(c), req.Text)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, comment)
}
