package handlers

import (
	"github.com/bugdesk/bugdesk/internal/middleware"
	"github.com/bugdesk/bugdesk/internal/services"
	"github.com/bugdesk/bugdesk/pkg/response"
	"github.com/gin-gonic/gin"
)

type OrganizationHandler struct {
	orgService *services.OrganizationService
}

func NewOrganizationHandler(orgService *services.OrganizationService) *OrganizationHandler {
	return &OrganizationHandler{orgService: orgService}
}

// Create creates an organization administered by the caller
// POST /api/organizations/create
func (h *OrganizationHandler) Create(c *gin.Context) {
	var req services.CreateOrganizationRequest
	if !bindJSON(c, &req) {
		return
	}

	org, err := h.orgService.Create(req.Name, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, org)
}

// JoinWithCode admits the caller immediately
// POST /api/organizations/join-code
func (h *OrganizationHandler) JoinWithCode(c *gin.Context) {
	var req services.JoinWithCodeRequest
	if !bindJSON(c, &req) {
		return
	}

	member, err := h.orgService.JoinWithCode(middleware.GetUserID(c), req.OrganizationID, req.OrgCode)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, member)
}

// RequestJoin files a pending membership for the admin to decide on
// POST /api/organizations/request-join
func (h *OrganizationHandler) RequestJoin(c *gin.Context) {
	var req services.RequestJoinRequest
	if !bindJSON(c, &req) {
		return
	}

	member, err := h.orgService.RequestJoin(middleware.GetUserID(c), req.OrganizationID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, member)
}

// Search matches organization names
// GET /api/organizations/search?searchTerm=
func (h *OrganizationHandler) Search(c *gin.Context) {
	items, err := h.orgService.Search(c.Query("searchTerm"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, items)
}

// GET /api/organizations/:id
func (h *OrganizationHandler) Get(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	org, err := h.orgService.Get(id, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, org)
}

// RotateCode issues a fresh join code
// POST /api/organizations/:id/rotate-code
func (h *OrganizationHandler) RotateCode(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	org, err := h.orgService.RotateJoinCode(id, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{
		"org_code":        org.OrgCode,
		"code_expiration": org.CodeExpiration,
	})
}

// GET /api/organizations/:id/members
func (h *OrganizationHandler) ListMembers(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	members, err := h.orgService.ListMembers(id, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, members)
}

// GET /api/organizations/:id/requests
func (h *OrganizationHandler) ListRequests(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	requests, err := h.orgService.ListPendingRequests(id, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, requests)
}

// POST /api/organizations/:id/requests/:userId/approve
func (h *OrganizationHandler) Approve(c *gin.Context) {
	orgID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	userID, ok := uintParam(c, "userId")
	if !ok {
		return
	}

	member, err := h.orgService.ApproveRequest(orgID, userID, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, member)
}

// POST /api/organizations/:id/requests/:userId/reject
func (h *OrganizationHandler) Reject(c *gin.Context) {
	orgID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	userID, ok := uintParam(c, "userId")
	if !ok {
		return
	}

	if err := h.orgService.RejectRequest(orgID, userID, middleware.GetUserID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "request rejected")
}
