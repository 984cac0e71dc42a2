package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/estateportal/internal/auth/providers"
	"github.com/charlesng35/estateportal/internal/models"
	"github.com/charlesng35/estateportal/internal/repository"
	apperrors "github.com/charlesng35/estateportal/pkg/errors"
	"github.com/charlesng35/estateportal/pkg/logger"
	"github.com/charlesng35/estateportal/pkg/metrics"
)

type LoginInput struct {
	OrganizationID string
	Email          string
	Password       string
	Meta           RequestMeta
}

type LoginResult struct {
	Account *models.PortalAccount
	Tokens  *providers.Tokens
}

// LoginService signs portal users in through the credential store.
type LoginService struct {
	accounts    repository.AccountRepository
	credentials providers.CredentialStore
	audit       *AccessLogService
	now         func() time.Time
	log         *zap.Logger
}

func NewLoginService(accounts repository.AccountRepository, credentials providers.CredentialStore, audit *AccessLogService) (*LoginService, error) {
	if accounts == nil {
		return nil, errors.New("login service: account repository is required")
	}
	if credentials == nil {
		return nil, errors.New("login service: credential store is required")
	}
	return &LoginService{
		accounts:    accounts,
		credentials: credentials,
		audit:       audit,
		now:         utcClock(nil),
		log:         logger.WithModule("portal.login"),
	}, nil
}

// Login authenticates the email/password pair and resolves the portal account.
func (s *LoginService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	email := models.NormalizeEmail(in.Email)
	if email == "" {
		return nil, ErrEmailRequired
	}
	orgID := strings.TrimSpace(in.OrganizationID)

	fail := func(reason string) {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		s.audit.Record(ctx, AccessEvent{
			OrganizationID: orgID,
			Email:          email,
			EventType:      models.EventLoginFail,
			IP:             in.Meta.IP,
			UserAgent:      in.Meta.UserAgent,
			Metadata:       map[string]any{"reason": reason},
		})
	}

	tokens, identity, err := s.credentials.Login(ctx, providers.LoginInput{
		Email:     email,
		Password:  in.Password,
		IPAddress: in.Meta.IP,
		UserAgent: in.Meta.UserAgent,
	})
	if err != nil {
		if errors.Is(err, providers.ErrInvalidCredentials) || errors.Is(err, providers.ErrUserDisabled) {
			fail("invalid_credentials")
			return nil, apperrors.ErrInvalidCredentials
		}
		fail("provider_error")
		return nil, apperrors.Upstream("auth_login_failed", err)
	}

	accounts, err := s.accounts.ListAccountsByExternalUser(ctx, identity.UserID, orgID)
	if err != nil {
		return nil, dbError("account_lookup", err)
	}
	account, err := selectAccount(accounts, false)
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			fail(appErr.Code)
		}
		return nil, err
	}

	now := s.now()
	if err := s.accounts.TouchAccountLogin(ctx, account.ID, now); err != nil {
		s.log.Warn("failed to record last login", zap.String("account_id", account.ID), zap.Error(err))
	} else {
		account.LastLoginAt = &now
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	s.audit.Record(ctx, AccessEvent{
		OrganizationID:  account.OrganizationID,
		PortalAccountID: account.ID,
		Email:           email,
		EventType:       models.EventLoginOK,
		IP:              in.Meta.IP,
		UserAgent:       in.Meta.UserAgent,
	})

	return &LoginResult{Account: account, Tokens: tokens}, nil
}

// Refresh exchanges a refresh token for a new token pair.
func (s *LoginService) Refresh(ctx context.Context, refreshToken string) (*providers.Tokens, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, ErrInvalidRefreshToken
	}

	tokens, err := s.credentials.Refresh(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, providers.ErrInvalidToken) || errors.Is(err, providers.ErrUserDisabled) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, apperrors.Upstream("auth_refresh_failed", err)
	}
	return tokens, nil
}
