package handlers

import (
	"github.com/bugdesk/bugdesk/internal/middleware"
	"github.com/bugdesk/bugdesk/internal/services"
	"github.com/bugdesk/bugdesk/pkg/response"
	"github.com/gin-gonic/gin"
)

type AttachmentHandler struct {
	attachmentService *services.AttachmentService
}

func NewAttachmentHandler(attachmentService *services.AttachmentService) *AttachmentHandler {
	return &AttachmentHandler{attachmentService: attachmentService}
}

// Upload stores the multipart "file" field
// POST /api/tickets/:id/attachments
func (h *AttachmentHandler) Upload(c *gin.Context) {
	ticketID, ok := uintParam(c, "id")
	if !ok {
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file is required")
		return
	}

	att, err := h.attachmentService.Upload(ticketID, middleware.GetUserID(c), file, c.PostForm("description"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, att)
}

// GET /api/tickets/:id/attachments
func (h *AttachmentHandler) List(c *gin.Context) {
	ticketID, ok := uintParam(c, "id")
	if !ok {
		return
	}

	items, err := h.attachmentService.ListByTicket(ticketID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, items)
}

// Download streams the file under its original name
// GET /api/attachments/:id
func (h *AttachmentHandler) Download(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	att, path, err := h.attachmentService.Get(id)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Type", att.ContentType)
	c.FileAttachment(path, att.Filename)
}

// DELETE /api/attachments/:id
func (h *AttachmentHandler) Delete(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	if err := h.attachmentService.Delete(id, middleware.GetPrincipal(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "attachment deleted")
}
