package services

import (
	"errors"
	"net/http"

	"github.com/charlesng35/estateportal/internal/auth/providers"
	"github.com/charlesng35/estateportal/internal/repository"
	apperrors "github.com/charlesng35/estateportal/pkg/errors"
)

// Validation and business rule failures (422).
var (
	ErrEmailRequired           = apperrors.NewValidation("email_required", "Email is required")
	ErrOrganizationRequired    = apperrors.NewValidation("organization_required", "Organization is required")
	ErrInvalidInviteType       = apperrors.NewValidation("invalid_invite_type", "Invite type must be agent or client")
	ErrInvalidRole             = apperrors.NewValidation("invalid_role", "Unknown portal role")
	ErrInviteTypeRoleMismatch  = apperrors.NewValidation("invite_type_role_mismatch", "Role is not compatible with the invite type")
	ErrProjectMustBeProject    = apperrors.NewValidation("project_property_must_be_project", "Project must be a top-level project property")
	ErrInviteNotRevocable      = apperrors.NewValidation("invite_not_revocable", "Used invites cannot be revoked")
	ErrInvalidCode             = apperrors.NewValidation("invalid_code", "Invite code is invalid")
	ErrInviteBlocked           = apperrors.NewValidation("invite_blocked", "Invite is blocked after too many failed attempts")
	ErrCodeRequired            = apperrors.NewValidation("code_required", "Invite code is required")
	ErrEmailOrPhoneRequired    = apperrors.NewValidation("email_or_phone_required", "Email or phone is required")
	ErrProposalSlotCount       = apperrors.NewValidation("proposal_slots_requires_2_to_3_entries", "Proposal mode requires 2 to 3 slots")
	ErrDirectBookingSlot       = apperrors.NewValidation("direct_booking_requires_1_entry", "Direct booking requires exactly 1 slot")
	ErrConfirmedSlotRequired   = apperrors.NewValidation("confirmed_slot_required_for_status", "A confirmed slot is required for this status")
	ErrInvalidVisitStatus      = apperrors.NewValidation("invalid_visit_status", "Unknown visit status")
	ErrInvalidRequestMode      = apperrors.NewValidation("invalid_request_mode", "Unknown visit request mode")
	ErrInvalidVisitSlot        = apperrors.NewValidation("invalid_visit_slot", "Visit slot end must follow its start")
	ErrInvalidAccountStatus    = apperrors.NewValidation("invalid_account_status", "Unknown account status")
	ErrInvalidAccessScope      = apperrors.NewValidation("invalid_access_scope", "Unknown access scope")
	ErrInvalidMembershipStatus = apperrors.NewValidation("invalid_membership_status", "Unknown membership status")
)

// Lookup failures (404).
var (
	ErrInviteNotFound          = apperrors.New("portal_invite_not_found", "Invite not found", http.StatusNotFound)
	ErrInviteNotFoundOrExpired = apperrors.New("invite_not_found_or_expired", "No valid invite for this email", http.StatusNotFound)
	ErrMembershipNotFound      = apperrors.New("portal_membership_not_found", "Membership not found", http.StatusNotFound)
	ErrAccountNotFoundAdmin    = apperrors.New("portal_account_not_found", "Portal account not found", http.StatusNotFound)
)

// Authentication failures (401).
var (
	ErrAuthTokenRequired   = apperrors.New("auth_token_required", "Authentication token required", http.StatusUnauthorized)
	ErrInvalidAuthToken    = apperrors.New("invalid_auth_token", "Authentication token is invalid", http.StatusUnauthorized)
	ErrInvalidRefreshToken = apperrors.New("invalid_refresh_token", "Refresh token is invalid", http.StatusUnauthorized)
)

// Authorization failures (403). Gate denials never reveal which check failed.
var (
	ErrAccountNotFound     = apperrors.New("portal_account_not_found", "Portal account not found", http.StatusForbidden)
	ErrAccountNotActive    = apperrors.New("portal_account_not_active", "Portal account is not active", http.StatusForbidden)
	ErrProjectAccessDenied = apperrors.New("project_access_denied", "Project access denied", http.StatusForbidden)
	ErrLeadAccessDenied    = apperrors.New("lead_access_denied", "Lead access denied", http.StatusForbidden)
	ErrProjectWriteDenied  = apperrors.New("project_write_denied", "Membership scope does not allow writes", http.StatusForbidden)
	ErrVisitAccessDenied   = apperrors.New("visit_access_denied", "Visit access denied", http.StatusForbidden)
)

// dbError reports a storage failure as db_<op>_error with the driver message in details.
func dbError(op string, err error) *apperrors.AppError {
	return apperrors.Upstream("db_"+op+"_error", err)
}

// createUserError maps credential store failures during activation. Policy
// rejections are the caller's fault; anything else is an upstream failure.
func createUserError(err error) *apperrors.AppError {
	appErr := apperrors.Upstream("auth_create_user_failed", err)
	if errors.Is(err, providers.ErrUserExists) || errors.Is(err, providers.ErrWeakPassword) {
		appErr.StatusCode = http.StatusUnprocessableEntity
		appErr.Message = "Identity could not be created"
	}
	return appErr
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
