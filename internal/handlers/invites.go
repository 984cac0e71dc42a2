package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/estateportal/internal/models"
	"github.com/charlesng35/estateportal/internal/repository"
	"github.com/charlesng35/estateportal/internal/services"
	appErrors "github.com/charlesng35/estateportal/pkg/errors"
	"github.com/charlesng35/estateportal/pkg/response"
)

type InviteHandler struct {
	invites *services.InviteService
}

func NewInviteHandler(invites *services.InviteService) *InviteHandler {
	return &InviteHandler{invites: invites}
}

type createInviteRequest struct {
	OrganizationID string `json:"organization_id" validate:"omitempty,uuid"`
	Email          string `json:"email" validate:"omitempty,email,max=320"`
	InviteType     string `json:"invite_type"`
	Role           string `json:"role"`
	ProjectID      string `json:"project_id" validate:"omitempty,uuid"`
	ExpiresHours   int    `json:"expires_hours" validate:"omitempty,min=1"`
	MaxAttempts    int    `json:"max_attempts" validate:"omitempty,min=1"`
	CreatedBy      string `json:"created_by" validate:"max=128"`
}

type revokeInviteRequest struct {
	OrganizationID string `json:"organization_id" validate:"omitempty,uuid"`
	Reason         string `json:"reason" validate:"max=512"`
}

type inviteCreatedResponse struct {
	Invite    *models.PortalInvite `json:"invite"`
	Code      string               `json:"code"`
	EmailSent bool                 `json:"email_sent"`
}

// POST /api/portal/invites
func (h *InviteHandler) Create(c *gin.Context) {
	if h.invites == nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	var req createInviteRequest
	if !bindAndValidate(c, &req) {
		return
	}

	createdBy := strings.TrimSpace(req.CreatedBy)
	if createdBy == "" {
		createdBy = adminActor(c)
	}

	issued, err := h.invites.Issue(requestContext(c), services.IssueInviteInput{
		OrganizationID: organizationID(c, req.OrganizationID),
		Email:          req.Email,
		InviteType:     models.InviteType(strings.TrimSpace(req.InviteType)),
		Role:           models.PortalRole(strings.TrimSpace(req.Role)),
		ProjectID:      req.ProjectID,
		ExpiresHours:   req.ExpiresHours,
		MaxAttempts:    req.MaxAttempts,
		CreatedBy:      createdBy,
		Meta:           requestMeta(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, inviteCreatedResponse{
		Invite:    issued.Invite,
		Code:      issued.Code,
		EmailSent: issued.EmailSent,
	})
}

// GET /api/portal/invites
func (h *InviteHandler) List(c *gin.Context) {
	if h.invites == nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	filters := repository.InviteFilter{
		Status:    models.InviteStatus(strings.TrimSpace(c.Query("status"))),
		ProjectID: strings.TrimSpace(c.Query("project_id")),
		Email:     strings.TrimSpace(c.Query("email")),
	}

	result, err := h.invites.List(requestContext(c), organizationID(c, ""), filters,
		parseIntQuery(c, "page", 1), parseIntQuery(c, "per_page", 0))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, result.Invites, response.NewMeta(result.Page, result.PerPage, result.Total))
}

// POST /api/portal/invites/:id/revoke
func (h *InviteHandler) Revoke(c *gin.Context) {
	if h.invites == nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	var req revokeInviteRequest
	if c.Request.ContentLength != 0 && !bindAndValidate(c, &req) {
		return
	}

	invite, err := h.invites.Revoke(requestContext(c), organizationID(c, req.OrganizationID), c.Param("id"), req.Reason, adminActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, invite)
}
