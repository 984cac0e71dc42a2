package security

import (
	"fmt"
	"strings"
	"time"

	"github.com/charlesng35/estateportal/internal/app"
)

// CheckStatus captures the outcome of a security audit check.
type CheckStatus string

const (
	StatusPass CheckStatus = "pass"
	StatusWarn CheckStatus = "warn"
	StatusFail CheckStatus = "fail"
)

// Argon2id memory below this many KiB is weaker than the commonly
// recommended baseline.
const recommendedKDFMemory = 19 * 1024

// Check contains the result of a single audit verification.
type Check struct {
	ID          string      `json:"id"`
	Status      CheckStatus `json:"status"`
	Message     string      `json:"message"`
	Remediation string      `json:"remediation,omitempty"`
	Details     any         `json:"details,omitempty"`
}

// Result aggregates all checks with a simple status summary.
type Result struct {
	CheckedAt time.Time      `json:"checked_at"`
	Checks    []Check        `json:"checks"`
	Summary   map[string]int `json:"summary"`
}

// AuditService evaluates the security-relevant parts of the portal configuration.
type AuditService struct {
	cfg *app.Config
	now func() time.Time
}

// NewAuditService constructs the audit service. A nil config degrades every
// check to a warning.
func NewAuditService(cfg *app.Config) *AuditService {
	return &AuditService{cfg: cfg, now: time.Now}
}

// WithClock overrides the clock used in results (primarily for testing).
func (s *AuditService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Run executes all audit checks and returns their outcome.
func (s *AuditService) Run() Result {
	checks := []Check{
		s.checkJWTSecret(),
		s.checkAdminKey(),
		s.checkSessionTTL(),
		s.checkInviteKDF(),
		s.checkCORS(),
		s.checkSMTPTransport(),
	}

	summary := map[string]int{
		string(StatusPass): 0,
		string(StatusWarn): 0,
		string(StatusFail): 0,
	}
	for _, check := range checks {
		summary[string(check.Status)]++
	}

	return Result{
		CheckedAt: s.now().UTC(),
		Checks:    checks,
		Summary:   summary,
	}
}

func configMissing(id string) Check {
	return Check{
		ID:          id,
		Status:      StatusWarn,
		Message:     "Configuration not loaded; check skipped.",
		Remediation: "Load configuration before running the security audit.",
	}
}

func (s *AuditService) checkJWTSecret() Check {
	const id = "jwt_secret_strength"
	if s.cfg == nil {
		return configMissing(id)
	}
	if !s.cfg.Auth.UsesLocalStore() {
		return Check{ID: id, Status: StatusPass, Message: "Tokens are issued by the hosted credential store."}
	}

	length := len(strings.TrimSpace(s.cfg.Auth.JWT.Secret))
	switch {
	case length == 0:
		return Check{
			ID:          id,
			Status:      StatusFail,
			Message:     "Missing JWT signing secret.",
			Remediation: "Provide a cryptographically secure signing secret (>= 32 bytes).",
		}
	case length < 32:
		return Check{
			ID:          id,
			Status:      StatusFail,
			Message:     fmt.Sprintf("JWT signing secret is too short (%d bytes).", length),
			Remediation: "Use a randomly generated secret of at least 32 bytes.",
		}
	case length < 48:
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("JWT signing secret is %d bytes. Consider increasing to 48+ bytes.", length),
			Remediation: "Increase the length of PORTAL_AUTH_JWT_SECRET to at least 48 bytes.",
			Details:     map[string]any{"length": length},
		}
	default:
		return Check{
			ID:      id,
			Status:  StatusPass,
			Message: fmt.Sprintf("JWT signing secret length is %d bytes.", length),
			Details: map[string]any{"length": length},
		}
	}
}

func (s *AuditService) checkAdminKey() Check {
	const id = "admin_key_strength"
	if s.cfg == nil {
		return configMissing(id)
	}

	length := len(strings.TrimSpace(s.cfg.Server.AdminKey))
	switch {
	case length == 0:
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     "Admin key is not configured; admin routes reject every request.",
			Remediation: "Set PORTAL_SERVER_ADMIN_KEY to enable invite and membership administration.",
		}
	case length < 32:
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("Admin key is short (%d characters).", length),
			Remediation: "Use a randomly generated admin key of at least 32 characters.",
			Details:     map[string]any{"length": length},
		}
	default:
		return Check{ID: id, Status: StatusPass, Message: "Admin key configured."}
	}
}

func (s *AuditService) checkSessionTTL() Check {
	const id = "session_refresh_ttl"
	if s.cfg == nil {
		return configMissing(id)
	}

	ttl := s.cfg.Auth.Session.RefreshTTL
	if ttl <= 0 {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     "Refresh token TTL is not configured; using default duration.",
			Remediation: "Set PORTAL_AUTH_SESSION_REFRESH_TOKEN_TTL to control session lifetime.",
		}
	}

	const maxRecommended = 30 * 24 * time.Hour
	if ttl > maxRecommended {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("Refresh token TTL (%s) exceeds recommended maximum (%s).", ttl, maxRecommended),
			Remediation: "Reduce refresh token TTL to 30 days or lower to limit credential exposure.",
			Details:     map[string]any{"ttl": ttl.String()},
		}
	}

	return Check{
		ID:      id,
		Status:  StatusPass,
		Message: fmt.Sprintf("Refresh token TTL is %s.", ttl),
		Details: map[string]any{"ttl": ttl.String()},
	}
}

func (s *AuditService) checkInviteKDF() Check {
	const id = "invite_code_kdf"
	if s.cfg == nil {
		return configMissing(id)
	}

	params := s.cfg.Invites.KDFParams()
	details := map[string]any{"time": params.Time, "memory_kib": params.Memory, "threads": params.Threads}
	if params.Memory < recommendedKDFMemory {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("Invite code hashing uses %d KiB of memory.", params.Memory),
			Remediation: fmt.Sprintf("Raise invites.kdf.memory to at least %d KiB.", recommendedKDFMemory),
			Details:     details,
		}
	}
	return Check{ID: id, Status: StatusPass, Message: "Invite code hashing parameters meet the baseline.", Details: details}
}

func (s *AuditService) checkCORS() Check {
	const id = "cors_origins"
	if s.cfg == nil {
		return configMissing(id)
	}

	for _, origin := range s.cfg.Server.CORSOrigins {
		if strings.TrimSpace(origin) == "*" {
			return Check{
				ID:          id,
				Status:      StatusWarn,
				Message:     "CORS allows any origin.",
				Remediation: "List the portal front-end origins explicitly in server.cors_origins.",
			}
		}
	}
	return Check{ID: id, Status: StatusPass, Message: "CORS origins are restricted."}
}

func (s *AuditService) checkSMTPTransport() Check {
	const id = "smtp_transport"
	if s.cfg == nil {
		return configMissing(id)
	}

	smtp := s.cfg.Email.SMTP
	switch {
	case !smtp.Enabled:
		return Check{ID: id, Status: StatusPass, Message: "Invite mail delivery is disabled."}
	case !smtp.UseTLS:
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     "Invite codes are mailed without TLS.",
			Remediation: "Enable email.smtp.use_tls so activation codes are not sent in clear text.",
		}
	default:
		return Check{ID: id, Status: StatusPass, Message: "Invite mail uses TLS."}
	}
}
