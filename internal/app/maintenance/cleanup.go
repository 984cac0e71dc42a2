package maintenance

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	iauth "github.com/charlesng35/estateportal/internal/auth"
	"github.com/charlesng35/estateportal/internal/models"
	"github.com/charlesng35/estateportal/internal/services"
	"github.com/charlesng35/estateportal/pkg/logger"
)

const (
	defaultInviteSpec   = "@every 15m"
	defaultSessionSpec  = "@hourly"
	defaultAnomalySpec  = "@hourly"
	defaultAnomalyGrace = 15 * time.Minute
)

// InviteSweeper is the slice of the portal store the invite jobs need.
type InviteSweeper interface {
	ExpireInvites(ctx context.Context, now time.Time) (int64, error)
	UsedInvitesWithoutAccount(ctx context.Context, usedBefore time.Time) ([]models.PortalInvite, error)
}

// CachePurger removes expired entries from a cache that does not expire them itself.
type CachePurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Cleaner coordinates background maintenance: expiring stale invites,
// reporting activations that never produced an account, and purging
// expired sessions and cache rows.
type Cleaner struct {
	invites  InviteSweeper
	audit    *services.AccessLogService
	sessions *iauth.SessionService
	cache    CachePurger
	cron     *cron.Cron
	now      func() time.Time
	log      *zap.Logger
	grace    time.Duration

	inviteSchedule  string
	sessionSchedule string
	anomalySchedule string

	mu       sync.Mutex
	reported map[string]struct{}
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for expiry comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithAccessLog records activation anomalies in the portal access log.
func WithAccessLog(audit *services.AccessLogService) Option {
	return func(cleaner *Cleaner) {
		cleaner.audit = audit
	}
}

// WithSessions enables refresh session cleanup.
func WithSessions(sessions *iauth.SessionService) Option {
	return func(cleaner *Cleaner) {
		cleaner.sessions = sessions
	}
}

// WithCachePurger enables purging of expired cache entries on the session schedule.
func WithCachePurger(purger CachePurger) Option {
	return func(cleaner *Cleaner) {
		cleaner.cache = purger
	}
}

// WithAnomalyGrace sets how long a used invite may lack an account before it is reported.
func WithAnomalyGrace(grace time.Duration) Option {
	return func(cleaner *Cleaner) {
		if grace > 0 {
			cleaner.grace = grace
		}
	}
}

// WithInviteSchedule overrides the cron specification for invite expiry.
func WithInviteSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.inviteSchedule = spec
		}
	}
}

// WithSessionSchedule overrides the cron specification for session and cache cleanup.
func WithSessionSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.sessionSchedule = spec
		}
	}
}

// WithAnomalySchedule overrides the cron specification for the anomaly scan.
func WithAnomalySchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.anomalySchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. Any nil dependency results in
// the corresponding cleanup job being skipped.
func NewCleaner(invites InviteSweeper, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		invites:         invites,
		now:             time.Now,
		grace:           defaultAnomalyGrace,
		inviteSchedule:  defaultInviteSpec,
		sessionSchedule: defaultSessionSpec,
		anomalySchedule: defaultAnomalySpec,
		log:             logger.WithModule("maintenance"),
		reported:        make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers cleanup jobs with the cron scheduler and launches it if at least one job is enabled.
func (c *Cleaner) Start() error {
	jobs := 0

	if c.invites != nil {
		if _, err := c.cron.AddFunc(c.inviteSchedule, func() {
			if _, err := c.ExpireInvites(context.Background()); err != nil {
				c.log.Warn("invite expiry failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
		if _, err := c.cron.AddFunc(c.anomalySchedule, func() {
			if _, err := c.ReportAnomalies(context.Background()); err != nil {
				c.log.Warn("activation anomaly scan failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
		jobs += 2
	}

	if c.sessions != nil || c.cache != nil {
		if _, err := c.cron.AddFunc(c.sessionSchedule, func() {
			if err := c.purgeSessions(context.Background()); err != nil {
				c.log.Warn("session cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
		jobs++
	}

	if jobs == 0 {
		return nil
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured cleanup routines sequentially.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.invites != nil {
		if _, err := c.ExpireInvites(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
		if _, err := c.ReportAnomalies(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	errs = multierr.Append(errs, c.purgeSessions(ctx))
	return errs
}

// ExpireInvites moves pending invites past their expiry to expired.
func (c *Cleaner) ExpireInvites(ctx context.Context) (int64, error) {
	if c.invites == nil {
		return 0, nil
	}
	count, err := c.invites.ExpireInvites(ctx, c.now().UTC())
	if err != nil {
		return 0, err
	}
	if count > 0 {
		c.log.Info("expired portal invites", zap.Int64("count", count))
	}
	return count, nil
}

// ReportAnomalies records an activation_anomaly event for each invite that
// was consumed more than the grace period ago without an account appearing.
// Each invite is reported once per process.
func (c *Cleaner) ReportAnomalies(ctx context.Context) (int, error) {
	if c.invites == nil {
		return 0, nil
	}

	invites, err := c.invites.UsedInvitesWithoutAccount(ctx, c.now().UTC().Add(-c.grace))
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	reported := 0
	for _, invite := range invites {
		if _, seen := c.reported[invite.ID]; seen {
			continue
		}
		c.reported[invite.ID] = struct{}{}
		reported++

		c.log.Warn("invite used without portal account",
			zap.String("invite_id", invite.ID),
			zap.String("organization_id", invite.OrganizationID),
		)

		var projectID string
		if invite.ProjectID != nil {
			projectID = *invite.ProjectID
		}
		metadata := map[string]any{"invite_id": invite.ID}
		if invite.UsedAt != nil {
			metadata["used_at"] = invite.UsedAt.UTC().Format(time.RFC3339)
		}
		c.audit.Record(ctx, services.AccessEvent{
			OrganizationID: invite.OrganizationID,
			ProjectID:      projectID,
			Email:          invite.Email,
			EventType:      models.EventActivationAnomaly,
			Metadata:       metadata,
		})
	}
	return reported, nil
}

func (c *Cleaner) purgeSessions(ctx context.Context) error {
	var errs error
	if c.sessions != nil {
		if _, err := c.sessions.CleanupExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if c.cache != nil {
		if _, err := c.cache.PurgeExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}
