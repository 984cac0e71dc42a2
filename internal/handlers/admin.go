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

// AdminHandler serves the admin-key routes: memberships, account status and
// the access log.
type AdminHandler struct {
	admin      *services.AdminService
	accessLogs *services.AccessLogService
}

func NewAdminHandler(admin *services.AdminService, accessLogs *services.AccessLogService) *AdminHandler {
	return &AdminHandler{admin: admin, accessLogs: accessLogs}
}

type grantMembershipRequest struct {
	OrganizationID     string `json:"organization_id" validate:"omitempty,uuid"`
	PortalAccountID    string `json:"portal_account_id" validate:"required"`
	ProjectID          string `json:"project_id" validate:"required"`
	AccessScope        string `json:"access_scope"`
	DisputeWindowHours int    `json:"dispute_window_hours" validate:"omitempty,min=0"`
}

type updateMembershipRequest struct {
	OrganizationID     string  `json:"organization_id" validate:"omitempty,uuid"`
	AccessScope        *string `json:"access_scope"`
	Status             *string `json:"status"`
	DisputeWindowHours *int    `json:"dispute_window_hours" validate:"omitempty,min=0"`
}

type accountStatusRequest struct {
	OrganizationID string `json:"organization_id" validate:"omitempty,uuid"`
	Status         string `json:"status" validate:"required"`
}

// POST /api/portal/memberships
func (h *AdminHandler) GrantMembership(c *gin.Context) {
	if h.admin == nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	var req grantMembershipRequest
	if !bindAndValidate(c, &req) {
		return
	}

	membership, err := h.admin.GrantMembership(requestContext(c), services.GrantMembershipInput{
		OrganizationID:     organizationID(c, req.OrganizationID),
		AccountID:          req.PortalAccountID,
		ProjectID:          req.ProjectID,
		AccessScope:        models.AccessScope(strings.TrimSpace(req.AccessScope)),
		DisputeWindowHours: req.DisputeWindowHours,
		GrantedBy:          adminActor(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, membership)
}

// PATCH /api/portal/memberships/:id
func (h *AdminHandler) UpdateMembership(c *gin.Context) {
	if h.admin == nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	var req updateMembershipRequest
	if !bindAndValidate(c, &req) {
		return
	}

	in := services.UpdateMembershipInput{
		OrganizationID:     organizationID(c, req.OrganizationID),
		MembershipID:       c.Param("id"),
		DisputeWindowHours: req.DisputeWindowHours,
		Actor:              adminActor(c),
	}
	if req.AccessScope != nil {
		scope := models.AccessScope(strings.TrimSpace(*req.AccessScope))
		in.AccessScope = &scope
	}
	if req.Status != nil {
		status := models.MembershipStatus(strings.TrimSpace(*req.Status))
		in.Status = &status
	}

	membership, err := h.admin.UpdateMembership(requestContext(c), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, membership)
}

// PATCH /api/portal/accounts/:id/status
func (h *AdminHandler) SetAccountStatus(c *gin.Context) {
	if h.admin == nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	var req accountStatusRequest
	if !bindAndValidate(c, &req) {
		return
	}

	account, err := h.admin.SetAccountStatus(requestContext(c), organizationID(c, req.OrganizationID), c.Param("id"),
		models.AccountStatus(strings.TrimSpace(req.Status)), adminActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, account)
}

// GET /api/portal/access-logs
func (h *AdminHandler) AccessLogs(c *gin.Context) {
	if h.accessLogs == nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	orgID := organizationID(c, "")
	if orgID == "" {
		response.Error(c, services.ErrOrganizationRequired)
		return
	}

	result, err := h.accessLogs.List(requestContext(c), services.AccessLogListOptions{
		Page:    parseIntQuery(c, "page", 1),
		PerPage: parseIntQuery(c, "per_page", 0),
		Filters: repository.AccessLogFilter{
			OrganizationID:  orgID,
			PortalAccountID: strings.TrimSpace(c.Query("portal_account_id")),
			EventType:       models.AccessEventType(strings.TrimSpace(c.Query("event_type"))),
			Email:           strings.TrimSpace(c.Query("email")),
			Since:           parseTimeQuery(c, "since"),
			Until:           parseTimeQuery(c, "until"),
		},
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, result.Records, response.NewMeta(result.Page, result.PerPage, result.Total))
}
