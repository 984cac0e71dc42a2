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

type CommissionHandler struct {
	commissions *services.CommissionService
}

func NewCommissionHandler(commissions *services.CommissionService) *CommissionHandler {
	return &CommissionHandler{commissions: commissions}
}

// GET /api/portal/commissions
func (h *CommissionHandler) List(c *gin.Context) {
	authCtx := middleware.AuthContextFrom(c)
	if authCtx == nil {
		response.Error(c, services.ErrAuthTokenRequired)
		return
	}
	if h.commissions == nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	result, err := h.commissions.ListCommissions(requestContext(c), authCtx, services.CommissionListOptions{
		Status:    models.CommissionStatus(strings.TrimSpace(c.Query("status"))),
		ProjectID: strings.TrimSpace(c.Query("project_id")),
		Page:      parseIntQuery(c, "page", 1),
		PerPage:   parseIntQuery(c, "per_page", 0),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, result.Commissions, response.NewMeta(result.Page, result.PerPage, result.Total))
}
