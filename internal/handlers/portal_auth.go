package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/estateportal/internal/auth/providers"
	"github.com/charlesng35/estateportal/internal/middleware"
	"github.com/charlesng35/estateportal/internal/models"
	"github.com/charlesng35/estateportal/internal/services"
	appErrors "github.com/charlesng35/estateportal/pkg/errors"
	"github.com/charlesng35/estateportal/pkg/response"
)

// AuthHandler serves the public invite, activation and sign-in flow plus the
// authenticated self lookup.
type AuthHandler struct {
	invites    *services.InviteService
	activation *services.ActivationService
	login      *services.LoginService
	gate       *services.MembershipGate
	verifier   providers.TokenVerifier
}

func NewAuthHandler(
	invites *services.InviteService,
	activation *services.ActivationService,
	login *services.LoginService,
	gate *services.MembershipGate,
	verifier providers.TokenVerifier,
) *AuthHandler {
	return &AuthHandler{
		invites:    invites,
		activation: activation,
		login:      login,
		gate:       gate,
		verifier:   verifier,
	}
}

type validateCodeRequest struct {
	OrganizationID string `json:"organization_id" validate:"omitempty,uuid"`
	Email          string `json:"email" validate:"omitempty,email,max=320"`
	Code           string `json:"code" validate:"max=64"`
	ProjectID      string `json:"project_id" validate:"omitempty,uuid"`
}

type activateRequest struct {
	OrganizationID string `json:"organization_id" validate:"omitempty,uuid"`
	Email          string `json:"email" validate:"omitempty,email,max=320"`
	Code           string `json:"code" validate:"max=64"`
	Password       string `json:"password" validate:"max=256"`
	ExternalUserID string `json:"external_user_id" validate:"max=255"`
	FullName       string `json:"full_name" validate:"max=255"`
	ProjectID      string `json:"project_id" validate:"omitempty,uuid"`
}

type loginRequest struct {
	OrganizationID string `json:"organization_id" validate:"omitempty,uuid"`
	Email          string `json:"email" validate:"omitempty,email,max=320"`
	Password       string `json:"password" validate:"max=256"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type inviteSummaryDTO struct {
	InviteID          string              `json:"invite_id"`
	OrganizationID    string              `json:"organization_id"`
	Email             string              `json:"email"`
	InviteType        models.InviteType   `json:"invite_type"`
	Role              models.PortalRole   `json:"role"`
	ProjectID         *string             `json:"project_id,omitempty"`
	Status            models.InviteStatus `json:"status"`
	ExpiresAt         time.Time           `json:"expires_at"`
	RemainingAttempts int                 `json:"remaining_attempts"`
}

type tokensDTO struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type activationResponse struct {
	Account        *models.PortalAccount    `json:"account"`
	Membership     *models.PortalMembership `json:"membership,omitempty"`
	ExternalUserID string                   `json:"external_user_id"`
}

type loginResponse struct {
	Account *models.PortalAccount `json:"account"`
	Tokens  tokensDTO             `json:"tokens"`
}

type meResponse struct {
	ExternalUserID string                    `json:"external_user_id"`
	OrganizationID string                    `json:"organization_id"`
	Email          string                    `json:"email"`
	Account        *models.PortalAccount     `json:"account"`
	Memberships    []models.PortalMembership `json:"memberships"`
	Projects       []services.ProjectAccess  `json:"projects"`
}

// POST /api/portal/auth/validate-code
func (h *AuthHandler) ValidateCode(c *gin.Context) {
	if h.invites == nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	var req validateCodeRequest
	if !bindAndValidate(c, &req) {
		return
	}

	invite, err := h.invites.Validate(requestContext(c), services.ValidateInput{
		OrganizationID: organizationID(c, req.OrganizationID),
		Email:          req.Email,
		Code:           req.Code,
		ProjectID:      req.ProjectID,
		Meta:           requestMeta(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, toInviteSummary(invite))
}

// POST /api/portal/auth/activate
//
// An external_user_id links an identity that already exists at the credential
// store. It must be backed by a bearer token for that same identity.
func (h *AuthHandler) Activate(c *gin.Context) {
	if h.activation == nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	var req activateRequest
	if !bindAndValidate(c, &req) {
		return
	}

	ctx := requestContext(c)
	externalUserID := strings.TrimSpace(req.ExternalUserID)
	if token := middleware.BearerToken(c); token != "" && h.verifier != nil {
		identity, err := h.verifier.VerifyToken(ctx, token)
		if err != nil {
			response.Error(c, services.ErrInvalidAuthToken.WithInternal(err))
			return
		}
		if externalUserID != "" && externalUserID != identity.UserID {
			response.Error(c, services.ErrInvalidAuthToken)
			return
		}
		externalUserID = identity.UserID
	} else if externalUserID != "" {
		response.Error(c, services.ErrAuthTokenRequired)
		return
	}

	result, err := h.activation.Activate(ctx, services.ActivateInput{
		OrganizationID: organizationID(c, req.OrganizationID),
		Email:          req.Email,
		Code:           req.Code,
		Password:       req.Password,
		ExternalUserID: externalUserID,
		FullName:       req.FullName,
		ProjectID:      req.ProjectID,
		Meta:           requestMeta(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, activationResponse{
		Account:        result.Account,
		Membership:     result.Membership,
		ExternalUserID: result.ExternalUserID,
	})
}

// POST /api/portal/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	if h.login == nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.login.Login(requestContext(c), services.LoginInput{
		OrganizationID: organizationID(c, req.OrganizationID),
		Email:          req.Email,
		Password:       req.Password,
		Meta:           requestMeta(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, loginResponse{Account: result.Account, Tokens: toTokensDTO(result.Tokens)})
}

// POST /api/portal/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	if h.login == nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	var req refreshRequest
	if !bindAndValidate(c, &req) {
		return
	}

	tokens, err := h.login.Refresh(requestContext(c), req.RefreshToken)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, toTokensDTO(tokens))
}

// GET /api/portal/me
func (h *AuthHandler) Me(c *gin.Context) {
	authCtx := middleware.AuthContextFrom(c)
	if authCtx == nil || authCtx.Account == nil {
		response.Error(c, services.ErrAuthTokenRequired)
		return
	}
	if h.gate == nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	ctx := requestContext(c)
	memberships, err := h.gate.Memberships(ctx, authCtx.Account)
	if err != nil {
		response.Error(c, err)
		return
	}
	projects, err := h.gate.ListProjects(ctx, authCtx.Account)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, meResponse{
		ExternalUserID: authCtx.ExternalUserID,
		OrganizationID: authCtx.OrganizationID,
		Email:          authCtx.Email,
		Account:        authCtx.Account,
		Memberships:    memberships,
		Projects:       projects,
	})
}

func toInviteSummary(invite *models.PortalInvite) inviteSummaryDTO {
	return inviteSummaryDTO{
		InviteID:          invite.ID,
		OrganizationID:    invite.OrganizationID,
		Email:             invite.Email,
		InviteType:        invite.InviteType,
		Role:              invite.Role,
		ProjectID:         invite.ProjectID,
		Status:            invite.Status,
		ExpiresAt:         invite.ExpiresAt,
		RemainingAttempts: invite.RemainingAttempts(),
	}
}

func toTokensDTO(tokens *providers.Tokens) tokensDTO {
	if tokens == nil {
		return tokensDTO{}
	}
	return tokensDTO{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		TokenType:    tokens.TokenType,
		ExpiresIn:    int64(tokens.ExpiresIn / time.Second),
	}
}
