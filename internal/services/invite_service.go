package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/estateportal/internal/models"
	"github.com/charlesng35/estateportal/internal/repository"
	"github.com/charlesng35/estateportal/pkg/crypto"
	apperrors "github.com/charlesng35/estateportal/pkg/errors"
	"github.com/charlesng35/estateportal/pkg/logger"
	"github.com/charlesng35/estateportal/pkg/mail"
	"github.com/charlesng35/estateportal/pkg/metrics"
)

const (
	defaultInviteExpiryHours = 72
	maxInviteExpiryHours     = 30 * 24
	defaultInviteMaxAttempts = 5
	maxInviteMaxAttempts     = 20
)

// InviteOption customises InviteService behaviour.
type InviteOption func(*InviteService)

// WithInviteClock injects a custom clock primarily for testing.
func WithInviteClock(clock func() time.Time) InviteOption {
	return func(s *InviteService) {
		if clock != nil {
			s.now = utcClock(clock)
		}
	}
}

// WithInviteCodeGenerator replaces the random code source.
func WithInviteCodeGenerator(generate func() (string, error)) InviteOption {
	return func(s *InviteService) {
		if generate != nil {
			s.generate = generate
		}
	}
}

// WithInviteMailer enables delivery of the code by email. portalURL is
// rendered as the activation link.
func WithInviteMailer(mailer mail.Mailer, portalURL string) InviteOption {
	return func(s *InviteService) {
		s.mailer = mailer
		s.portalURL = strings.TrimRight(strings.TrimSpace(portalURL), "/")
	}
}

// WithInviteKDF overrides the Argon2id cost parameters used for code hashes.
func WithInviteKDF(params crypto.Argon2Parameters) InviteOption {
	return func(s *InviteService) {
		if params.Validate() == nil {
			s.kdf = params
		}
	}
}

// InviteService issues, lists, revokes and validates portal invites.
type InviteService struct {
	store     repository.Store
	audit     *AccessLogService
	mailer    mail.Mailer
	portalURL string
	kdf       crypto.Argon2Parameters
	generate  func() (string, error)
	now       func() time.Time
	log       *zap.Logger
}

// NewInviteService constructs an InviteService with the provided dependencies.
func NewInviteService(store repository.Store, audit *AccessLogService, opts ...InviteOption) (*InviteService, error) {
	if store == nil {
		return nil, errors.New("invite service: store is required")
	}

	service := &InviteService{
		store:    store,
		audit:    audit,
		kdf:      crypto.DefaultArgon2Params(),
		generate: crypto.GenerateInviteCode,
		now:      utcClock(nil),
		log:      logger.WithModule("portal.invites"),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// IssueInviteInput describes a new invite.
type IssueInviteInput struct {
	OrganizationID string
	Email          string
	InviteType     models.InviteType
	Role           models.PortalRole
	ProjectID      string
	ExpiresHours   int
	MaxAttempts    int
	CreatedBy      string
	Meta           RequestMeta
}

// IssuedInvite carries the plaintext code. It is returned exactly once.
type IssuedInvite struct {
	Invite    *models.PortalInvite
	Code      string
	EmailSent bool
}

// Issue creates a pending invite and returns its one-time code.
func (s *InviteService) Issue(ctx context.Context, in IssueInviteInput) (*IssuedInvite, error) {
	orgID := strings.TrimSpace(in.OrganizationID)
	if orgID == "" {
		return nil, ErrOrganizationRequired
	}
	email := models.NormalizeEmail(in.Email)
	if email == "" {
		return nil, ErrEmailRequired
	}
	if !in.InviteType.Valid() {
		return nil, ErrInvalidInviteType
	}
	if !in.Role.Valid() {
		return nil, ErrInvalidRole
	}
	if in.Role.InviteType() != in.InviteType {
		return nil, ErrInviteTypeRoleMismatch
	}

	projectID := optionalID(in.ProjectID)
	var project *models.Property
	if projectID != nil {
		var err error
		project, err = requireTopLevelProject(ctx, s.store, orgID, *projectID)
		if err != nil {
			return nil, err
		}
	}

	code, err := s.generate()
	if err != nil {
		return nil, apperrors.Wrap(err, "Failed to generate invite code")
	}
	salt, hash, err := crypto.HashInviteCode(code, s.kdf)
	if err != nil {
		return nil, apperrors.Wrap(err, "Failed to hash invite code")
	}

	now := s.now()
	expiresHours := clampInt(in.ExpiresHours, defaultInviteExpiryHours, 1, maxInviteExpiryHours)
	invite := &models.PortalInvite{
		OrganizationID:  orgID,
		Email:           strings.TrimSpace(in.Email),
		EmailNormalized: email,
		InviteType:      in.InviteType,
		Role:            in.Role,
		ProjectID:       projectID,
		CodeSalt:        salt,
		CodeHash:        hash,
		CodeLast4:       crypto.InviteCodeLast4(code),
		Status:          models.InviteStatusPending,
		ExpiresAt:       now.Add(time.Duration(expiresHours) * time.Hour),
		MaxAttempts:     clampInt(in.MaxAttempts, defaultInviteMaxAttempts, 1, maxInviteMaxAttempts),
		CreatedBy:       strings.TrimSpace(in.CreatedBy),
	}
	invite.CreatedAt = now
	if err := s.store.CreateInvite(ctx, invite); err != nil {
		return nil, dbError("invite_create", err)
	}

	sent := s.deliver(ctx, invite, code, project)

	s.audit.Record(ctx, AccessEvent{
		OrganizationID: orgID,
		ProjectID:      derefID(projectID),
		Email:          email,
		EventType:      models.EventInviteIssued,
		IP:             in.Meta.IP,
		UserAgent:      in.Meta.UserAgent,
		Metadata: map[string]any{
			"invite_id":   invite.ID,
			"invite_type": string(invite.InviteType),
			"role":        string(invite.Role),
			"email_sent":  sent,
		},
	})

	return &IssuedInvite{Invite: invite, Code: code, EmailSent: sent}, nil
}

// requireTopLevelProject loads a property that must be a project with no parent.
func requireTopLevelProject(ctx context.Context, catalog repository.CatalogRepository, orgID, projectID string) (*models.Property, error) {
	project, err := catalog.GetProperty(ctx, orgID, projectID)
	if isNotFound(err) {
		return nil, ErrProjectMustBeProject
	}
	if err != nil {
		return nil, dbError("property_lookup", err)
	}
	if project.RecordType != models.RecordTypeProject || project.ParentID != nil {
		return nil, ErrProjectMustBeProject
	}
	return project, nil
}

// deliver mails the code when a mailer is configured. Delivery is best effort;
// the admin still receives the code in the response.
func (s *InviteService) deliver(ctx context.Context, invite *models.PortalInvite, code string, project *models.Property) bool {
	if s.mailer == nil {
		return false
	}

	content := mail.InviteContent{
		Email:      invite.Email,
		Code:       code,
		InviteType: string(invite.InviteType),
		ExpiresAt:  invite.ExpiresAt,
		PortalURL:  s.portalURL,
	}
	if project != nil {
		content.ProjectName = project.Name
	}

	if err := s.mailer.Send(ctx, mail.InviteMessage(content)); err != nil {
		if !errors.Is(err, mail.ErrSMTPDisabled) {
			s.log.Warn("invite email delivery failed", zap.String("invite_id", invite.ID), zap.Error(err))
		}
		return false
	}
	return true
}

// InviteListResult is a page of invites.
type InviteListResult struct {
	Invites []models.PortalInvite
	Total   int64
	Page    int
	PerPage int
}

// List returns the organization's invites newest first.
func (s *InviteService) List(ctx context.Context, orgID string, filters repository.InviteFilter, page, perPage int) (*InviteListResult, error) {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return nil, ErrOrganizationRequired
	}

	p := pageOf(page, perPage)
	invites, total, err := s.store.ListInvites(ctx, orgID, filters, p)
	if err != nil {
		return nil, dbError("invite_list", err)
	}
	return &InviteListResult{Invites: invites, Total: total, Page: p.Page, PerPage: p.PerPage}, nil
}

// Revoke marks an invite revoked. Revoking a revoked invite returns it unchanged.
func (s *InviteService) Revoke(ctx context.Context, orgID, inviteID, reason, actor string) (*models.PortalInvite, error) {
	invite, err := s.getInvite(ctx, orgID, inviteID)
	if err != nil {
		return nil, err
	}

	switch invite.Status {
	case models.InviteStatusRevoked:
		return invite, nil
	case models.InviteStatusUsed:
		return nil, ErrInviteNotRevocable
	}

	applied, err := s.store.TransitionInvite(ctx, invite.ID, repository.InviteTransition{
		From: []models.InviteStatus{models.InviteStatusPending, models.InviteStatusBlocked, models.InviteStatusExpired},
		To:   models.InviteStatusRevoked,
		Metadata: map[string]any{
			"revoked_reason": strings.TrimSpace(reason),
			"revoked_by":     strings.TrimSpace(actor),
			"revoked_at":     s.now().Format(time.RFC3339),
		},
	})
	if err != nil {
		return nil, dbError("invite_revoke", err)
	}

	updated, err := s.getInvite(ctx, orgID, inviteID)
	if err != nil {
		return nil, err
	}
	if !applied {
		// Lost a race with activation or another revoke.
		if updated.Status == models.InviteStatusUsed {
			return nil, ErrInviteNotRevocable
		}
		return updated, nil
	}

	s.audit.Record(ctx, AccessEvent{
		OrganizationID: updated.OrganizationID,
		ProjectID:      derefID(updated.ProjectID),
		Email:          updated.EmailNormalized,
		EventType:      models.EventInviteRevoked,
		Metadata:       map[string]any{"invite_id": updated.ID, "reason": strings.TrimSpace(reason)},
	})
	return updated, nil
}

func (s *InviteService) getInvite(ctx context.Context, orgID, inviteID string) (*models.PortalInvite, error) {
	invite, err := s.store.GetInvite(ctx, strings.TrimSpace(orgID), strings.TrimSpace(inviteID))
	if isNotFound(err) {
		return nil, ErrInviteNotFound
	}
	if err != nil {
		return nil, dbError("invite_lookup", err)
	}
	return invite, nil
}

// ValidateInput identifies the invite to check a code against.
type ValidateInput struct {
	OrganizationID string
	Email          string
	Code           string
	ProjectID      string
	Meta           RequestMeta
}

// Validate checks a code without consuming the invite. A wrong code counts
// against the invite's attempt budget.
func (s *InviteService) Validate(ctx context.Context, in ValidateInput) (*models.PortalInvite, error) {
	return s.verifyCode(ctx, in)
}

func (s *InviteService) verifyCode(ctx context.Context, in ValidateInput) (*models.PortalInvite, error) {
	orgID := strings.TrimSpace(in.OrganizationID)
	if orgID == "" {
		return nil, ErrOrganizationRequired
	}
	email := models.NormalizeEmail(in.Email)
	if email == "" {
		return nil, ErrEmailRequired
	}
	if crypto.NormalizeInviteCode(in.Code) == "" {
		return nil, ErrCodeRequired
	}

	invite, err := s.store.FindLatestInvite(ctx, orgID, email, optionalID(in.ProjectID), s.now())
	if isNotFound(err) {
		metrics.InviteValidations.WithLabelValues("not_found").Inc()
		return nil, ErrInviteNotFoundOrExpired
	}
	if err != nil {
		return nil, dbError("invite_lookup", err)
	}
	if invite.Status == models.InviteStatusBlocked {
		metrics.InviteValidations.WithLabelValues("blocked").Inc()
		return nil, blockedError()
	}

	ok, err := crypto.VerifyInviteCode(in.Code, invite.CodeSalt, invite.CodeHash, s.kdf)
	if err != nil {
		return nil, apperrors.Wrap(err, "Failed to verify invite code")
	}
	if ok {
		metrics.InviteValidations.WithLabelValues("ok").Inc()
		return invite, nil
	}

	return nil, s.registerFailure(ctx, invite, in.Meta)
}

func (s *InviteService) registerFailure(ctx context.Context, invite *models.PortalInvite, meta RequestMeta) error {
	updated, blocked, err := s.store.RegisterFailedAttempt(ctx, invite.ID)
	if err != nil {
		return dbError("invite_attempt", err)
	}

	event := AccessEvent{
		OrganizationID: updated.OrganizationID,
		ProjectID:      derefID(updated.ProjectID),
		Email:          updated.EmailNormalized,
		IP:             meta.IP,
		UserAgent:      meta.UserAgent,
	}

	codeFail := event
	codeFail.EventType = models.EventCodeFail
	codeFail.Metadata = map[string]any{
		"invite_id":          updated.ID,
		"attempts":           updated.Attempts,
		"remaining_attempts": updated.RemainingAttempts(),
	}
	s.audit.Record(ctx, codeFail)

	if blocked {
		blockedEvent := event
		blockedEvent.EventType = models.EventBlocked
		blockedEvent.Metadata = map[string]any{"invite_id": updated.ID, "attempts": updated.Attempts}
		s.audit.Record(ctx, blockedEvent)
		s.log.Info("invite blocked after failed attempts", zap.String("invite_id", updated.ID))
	}

	if updated.Status == models.InviteStatusBlocked {
		metrics.InviteValidations.WithLabelValues("blocked").Inc()
		return blockedError()
	}

	metrics.InviteValidations.WithLabelValues("invalid_code").Inc()
	return ErrInvalidCode.WithDetails(map[string]any{"remaining_attempts": updated.RemainingAttempts()})
}

func blockedError() error {
	return ErrInviteBlocked.WithDetails(map[string]any{"remaining_attempts": 0})
}
