package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/estateportal/internal/middleware"
	"github.com/charlesng35/estateportal/internal/models"
	"github.com/charlesng35/estateportal/internal/services"
	appErrors "github.com/charlesng35/estateportal/pkg/errors"
	"github.com/charlesng35/estateportal/pkg/response"
)

// LeadHandler exposes lead submission and the visits booked against a lead.
type LeadHandler struct {
	leads  *services.LeadService
	visits *services.VisitService
}

func NewLeadHandler(leads *services.LeadService, visits *services.VisitService) *LeadHandler {
	return &LeadHandler{leads: leads, visits: visits}
}

type submitLeadRequest struct {
	FullName string `json:"full_name" validate:"max=255"`
	Email    string `json:"email" validate:"omitempty,email,max=320"`
	Phone    string `json:"phone" validate:"omitempty,phone"`
	Message  string `json:"message" validate:"max=4000"`
}

type visitRequestRequest struct {
	Mode          string             `json:"request_mode"`
	ProposedSlots []models.VisitSlot `json:"proposed_slots"`
	Notes         string             `json:"notes" validate:"max=4000"`
}

type patchVisitRequest struct {
	Status        *string           `json:"status"`
	ConfirmedSlot *models.VisitSlot `json:"confirmed_slot" validate:"-"`
	Notes         *string           `json:"notes" validate:"omitempty,max=4000"`
}

type submittedLeadResponse struct {
	Lead      *models.Lead         `json:"lead"`
	Contact   *models.Contact      `json:"contact"`
	Tracking  *models.LeadTracking `json:"tracking"`
	Duplicate bool                 `json:"duplicate"`
}

// POST /api/portal/projects/:id/leads
func (h *LeadHandler) Submit(c *gin.Context) {
	authCtx := middleware.AuthContextFrom(c)
	if authCtx == nil {
		response.Error(c, services.ErrAuthTokenRequired)
		return
	}
	if h.leads == nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	var req submitLeadRequest
	if !bindAndValidate(c, &req) {
		return
	}

	submitted, err := h.leads.SubmitLead(requestContext(c), authCtx, c.Param("id"), services.SubmitLeadInput{
		FullName: req.FullName,
		Email:    req.Email,
		Phone:    req.Phone,
		Message:  req.Message,
		Meta:     requestMeta(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, submittedLeadResponse{
		Lead:      submitted.Lead,
		Contact:   submitted.Contact,
		Tracking:  submitted.Tracking,
		Duplicate: submitted.Duplicate,
	})
}

// GET /api/portal/leads
func (h *LeadHandler) List(c *gin.Context) {
	authCtx := middleware.AuthContextFrom(c)
	if authCtx == nil {
		response.Error(c, services.ErrAuthTokenRequired)
		return
	}
	if h.leads == nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	result, err := h.leads.ListLeads(requestContext(c), authCtx, services.LeadListOptions{
		ProjectID:         strings.TrimSpace(c.Query("project_id")),
		AttributionStatus: models.AttributionStatus(strings.TrimSpace(c.Query("attribution_status"))),
		Page:              parseIntQuery(c, "page", 1),
		PerPage:           parseIntQuery(c, "per_page", 0),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, result.Items, response.NewMeta(result.Page, result.PerPage, result.Total))
}

// GET /api/portal/leads/:id
func (h *LeadHandler) Get(c *gin.Context) {
	authCtx := middleware.AuthContextFrom(c)
	if authCtx == nil {
		response.Error(c, services.ErrAuthTokenRequired)
		return
	}
	if h.leads == nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	detail, err := h.leads.LeadDetail(requestContext(c), authCtx, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, detail)
}

// POST /api/portal/leads/:id/visit-requests
func (h *LeadHandler) RequestVisit(c *gin.Context) {
	authCtx := middleware.AuthContextFrom(c)
	if authCtx == nil {
		response.Error(c, services.ErrAuthTokenRequired)
		return
	}
	if h.visits == nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	var req visitRequestRequest
	if !bindAndValidate(c, &req) {
		return
	}

	visit, err := h.visits.RequestVisit(requestContext(c), authCtx, c.Param("id"), services.VisitRequestInput{
		Mode:          models.VisitMode(strings.TrimSpace(req.Mode)),
		ProposedSlots: req.ProposedSlots,
		Notes:         req.Notes,
		Meta:          requestMeta(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, visit)
}

// PATCH /api/portal/visit-requests/:id
func (h *LeadHandler) PatchVisit(c *gin.Context) {
	authCtx := middleware.AuthContextFrom(c)
	if authCtx == nil {
		response.Error(c, services.ErrAuthTokenRequired)
		return
	}
	if h.visits == nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	var req patchVisitRequest
	if !bindAndValidate(c, &req) {
		return
	}

	in := services.PatchVisitInput{
		ConfirmedSlot: req.ConfirmedSlot,
		Notes:         req.Notes,
		Meta:          requestMeta(c),
	}
	if req.Status != nil {
		status := models.VisitStatus(strings.TrimSpace(*req.Status))
		in.Status = &status
	}

	visit, err := h.visits.PatchVisit(requestContext(c), authCtx, c.Param("id"), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, visit)
}
