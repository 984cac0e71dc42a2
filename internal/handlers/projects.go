package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/estateportal/internal/middleware"
	"github.com/charlesng35/estateportal/internal/services"
	appErrors "github.com/charlesng35/estateportal/pkg/errors"
	"github.com/charlesng35/estateportal/pkg/response"
)

type ProjectHandler struct {
	gate *services.MembershipGate
}

func NewProjectHandler(gate *services.MembershipGate) *ProjectHandler {
	return &ProjectHandler{gate: gate}
}

// GET /api/portal/projects
func (h *ProjectHandler) List(c *gin.Context) {
	authCtx := middleware.AuthContextFrom(c)
	if authCtx == nil {
		response.Error(c, services.ErrAuthTokenRequired)
		return
	}
	if h.gate == nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	projects, err := h.gate.ListProjects(requestContext(c), authCtx.Account)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, projects)
}

// GET /api/portal/projects/:id
func (h *ProjectHandler) Get(c *gin.Context) {
	authCtx := middleware.AuthContextFrom(c)
	if authCtx == nil {
		response.Error(c, services.ErrAuthTokenRequired)
		return
	}
	if h.gate == nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	detail, err := h.gate.ProjectDetail(requestContext(c), authCtx.Account, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, detail)
}
