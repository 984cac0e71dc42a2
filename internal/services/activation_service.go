package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/charlesng35/estateportal/internal/auth/providers"
	"github.com/charlesng35/estateportal/internal/models"
	"github.com/charlesng35/estateportal/internal/repository"
	"github.com/charlesng35/estateportal/pkg/crypto"
	"github.com/charlesng35/estateportal/pkg/logger"
	"github.com/charlesng35/estateportal/pkg/metrics"
)

// ActivateInput redeems an invite. Exactly one of Password or ExternalUserID
// is expected: a password creates a new identity, an external user id links
// an identity that already exists in the credential store.
type ActivateInput struct {
	OrganizationID string
	Email          string
	Code           string
	Password       string
	ExternalUserID string
	FullName       string
	ProjectID      string
	Meta           RequestMeta
}

// ActivationResult describes the account produced by a successful activation.
type ActivationResult struct {
	Account        *models.PortalAccount
	Membership     *models.PortalMembership
	Invite         *models.PortalInvite
	ExternalUserID string
}

// ActivationService turns a valid invite code into an active portal account.
type ActivationService struct {
	store       repository.Store
	invites     *InviteService
	credentials providers.CredentialStore
	audit       *AccessLogService
	now         func() time.Time
	log         *zap.Logger
}

// NewActivationService constructs an ActivationService.
func NewActivationService(store repository.Store, invites *InviteService, credentials providers.CredentialStore, audit *AccessLogService) (*ActivationService, error) {
	if store == nil {
		return nil, errors.New("activation service: store is required")
	}
	if invites == nil {
		return nil, errors.New("activation service: invite service is required")
	}
	if credentials == nil {
		return nil, errors.New("activation service: credential store is required")
	}
	return &ActivationService{
		store:       store,
		invites:     invites,
		credentials: credentials,
		audit:       audit,
		now:         invites.now,
		log:         logger.WithModule("portal.activation"),
	}, nil
}

// Activate verifies the code, provisions the identity and binds it to a
// portal account in one transaction. The invite is consumed exactly once.
func (s *ActivationService) Activate(ctx context.Context, in ActivateInput) (*ActivationResult, error) {
	externalUserID := strings.TrimSpace(in.ExternalUserID)

	invite, err := s.invites.verifyCode(ctx, ValidateInput{
		OrganizationID: in.OrganizationID,
		Email:          in.Email,
		Code:           in.Code,
		ProjectID:      in.ProjectID,
		Meta:           in.Meta,
	})
	if err != nil {
		metrics.Activations.WithLabelValues("failure").Inc()
		return nil, err
	}

	email := invite.EmailNormalized
	fullName := strings.TrimSpace(in.FullName)
	baseEvent := AccessEvent{
		OrganizationID: invite.OrganizationID,
		ProjectID:      derefID(invite.ProjectID),
		Email:          email,
		IP:             in.Meta.IP,
		UserAgent:      in.Meta.UserAgent,
	}

	createdIdentity := false
	if externalUserID == "" {
		var (
			identity  *providers.Identity
			createErr error
		)
		if len(in.Password) < crypto.MinPasswordLength {
			createErr = providers.ErrWeakPassword
		} else {
			identity, createErr = s.credentials.CreateUser(ctx, providers.CreateUserInput{
				Email:    email,
				Password: in.Password,
				FullName: fullName,
			})
		}
		if createErr != nil {
			ev := baseEvent
			ev.EventType = models.EventSignupFail
			ev.Metadata = map[string]any{"invite_id": invite.ID, "provider": s.credentials.Name(), "reason": createErr.Error()}
			s.audit.Record(ctx, ev)
			metrics.Activations.WithLabelValues("failure").Inc()
			return nil, createUserError(createErr)
		}
		externalUserID = identity.UserID
		createdIdentity = true
	}

	result := &ActivationResult{ExternalUserID: externalUserID}
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		return s.bind(ctx, tx, invite, externalUserID, email, fullName, result)
	})
	if err != nil {
		if createdIdentity {
			if delErr := s.credentials.DeleteUser(context.WithoutCancel(ctx), externalUserID); delErr != nil {
				s.log.Error("failed to remove identity after aborted activation",
					zap.String("invite_id", invite.ID),
					zap.String("external_user_id", externalUserID),
					zap.Error(delErr),
				)
			}
		}
		metrics.Activations.WithLabelValues("failure").Inc()
		return nil, err
	}

	ev := baseEvent
	ev.PortalAccountID = result.Account.ID
	ev.EventType = models.EventSignupOK
	ev.Metadata = map[string]any{
		"invite_id":        invite.ID,
		"role":             string(result.Account.Role),
		"external_user_id": externalUserID,
	}
	s.audit.Record(ctx, ev)
	metrics.Activations.WithLabelValues("success").Inc()

	return result, nil
}

func (s *ActivationService) bind(ctx context.Context, tx repository.Store, invite *models.PortalInvite, externalUserID, email, fullName string, result *ActivationResult) error {
	now := s.now()

	contact, err := findOrCreateContact(ctx, tx, invite.OrganizationID, email, fullName, invite.InviteType.ContactType())
	if err != nil {
		return err
	}

	account := &models.PortalAccount{
		OrganizationID: invite.OrganizationID,
		ExternalUserID: externalUserID,
		Email:          email,
		FullName:       fullName,
		Role:           invite.Role,
		Status:         models.AccountStatusActive,
		ContactID:      &contact.ID,
	}
	if fullName == "" {
		account.FullName = contact.FullName
	}

	if client, err := tx.FindClientByContact(ctx, invite.OrganizationID, contact.ID); err == nil {
		account.ClientID = &client.ID
		account.AgencyID = client.AgencyID
	} else if !isNotFound(err) {
		return dbError("client_lookup", err)
	}
	if invite.InviteType == models.InviteTypeAgent {
		if agency, err := tx.FindAgencyByContact(ctx, invite.OrganizationID, contact.ID); err == nil {
			account.AgencyID = &agency.ID
		} else if !isNotFound(err) {
			return dbError("agency_lookup", err)
		}
	}

	metadata := datatypes.JSONMap{}
	existing, err := tx.ListAccountsByExternalUser(ctx, externalUserID, invite.OrganizationID)
	if err != nil {
		return dbError("account_lookup", err)
	}
	if len(existing) > 0 {
		for k, v := range existing[0].Metadata {
			metadata[k] = v
		}
	}
	metadata["activated_invite_id"] = invite.ID
	metadata["activated_at"] = now.Format(time.RFC3339)
	account.Metadata = metadata

	if err := tx.UpsertAccount(ctx, account); err != nil {
		return dbError("account_upsert", err)
	}
	result.Account = account

	if invite.ProjectID != nil {
		membership, err := s.grantInviteMembership(ctx, tx, invite, account)
		if err != nil {
			return err
		}
		result.Membership = membership
	}

	applied, err := tx.TransitionInvite(ctx, invite.ID, repository.InviteTransition{
		From:   []models.InviteStatus{models.InviteStatusPending},
		To:     models.InviteStatusUsed,
		UsedAt: &now,
		Metadata: map[string]any{
			"activated_user_id":    externalUserID,
			"activated_account_id": account.ID,
		},
	})
	if err != nil {
		return dbError("invite_consume", err)
	}
	if !applied {
		return ErrInviteNotFoundOrExpired
	}

	consumed, err := tx.GetInvite(ctx, invite.OrganizationID, invite.ID)
	if err != nil {
		return dbError("invite_lookup", err)
	}
	result.Invite = consumed
	return nil
}

func (s *ActivationService) grantInviteMembership(ctx context.Context, tx repository.Store, invite *models.PortalInvite, account *models.PortalAccount) (*models.PortalMembership, error) {
	window := models.DefaultDisputeWindowHours
	current, err := tx.GetMembership(ctx, account.ID, *invite.ProjectID)
	switch {
	case err == nil:
		window = current.DisputeWindowHours
	case !isNotFound(err):
		return nil, dbError("membership_lookup", err)
	}

	membership := &models.PortalMembership{
		OrganizationID:     invite.OrganizationID,
		PortalAccountID:    account.ID,
		ProjectID:          *invite.ProjectID,
		AccessScope:        invite.Role.DefaultScope(),
		Status:             models.MembershipStatusActive,
		DisputeWindowHours: models.ClampDisputeWindow(window),
		GrantedBy:          "invite:" + invite.ID,
	}
	if err := tx.UpsertMembership(ctx, membership); err != nil {
		return nil, dbError("membership_upsert", err)
	}
	return membership, nil
}

// findOrCreateContact matches a contact by normalized email, creating one of
// contactType when none exists.
func findOrCreateContact(ctx context.Context, tx repository.Store, orgID, email, fullName string, contactType models.ContactType) (*models.Contact, error) {
	contact, err := tx.FindContactByEmail(ctx, orgID, email)
	if err == nil {
		return contact, nil
	}
	if !isNotFound(err) {
		return nil, dbError("contact_lookup", err)
	}

	if fullName == "" {
		fullName = email
	}
	contact = &models.Contact{
		OrganizationID: orgID,
		FullName:       fullName,
		Email:          email,
		ContactType:    contactType,
	}
	if err := tx.CreateContact(ctx, contact); err != nil {
		return nil, dbError("contact_create", err)
	}
	return contact, nil
}
