package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/charlesng35/estateportal/internal/auditctx"
	"github.com/charlesng35/estateportal/internal/models"
	"github.com/charlesng35/estateportal/internal/repository"
	"github.com/charlesng35/estateportal/pkg/logger"
)

// AccessEvent is a fact to append to the portal access log.
type AccessEvent struct {
	OrganizationID  string
	PortalAccountID string
	LeadID          string
	ProjectID       string
	Email           string
	EventType       models.AccessEventType
	IP              string
	UserAgent       string
	Metadata        map[string]any
}

// AccessLogListOptions filters and paginates the access log.
type AccessLogListOptions struct {
	Page    int
	PerPage int
	Filters repository.AccessLogFilter
}

// AccessLogResult is a page of access log entries.
type AccessLogResult struct {
	Records []models.PortalAccessLog
	Total   int64
	Page    int
	PerPage int
}

// AccessLogService appends and queries portal access events.
type AccessLogService struct {
	store repository.AccessLogRepository
	now   func() time.Time
	log   *zap.Logger
}

// NewAccessLogService constructs an AccessLogService.
func NewAccessLogService(store repository.AccessLogRepository) (*AccessLogService, error) {
	if store == nil {
		return nil, errors.New("access log service: store is required")
	}
	return &AccessLogService{
		store: store,
		now:   utcClock(nil),
		log:   logger.WithModule("portal.audit"),
	}, nil
}

// Record appends an event. Failures are logged and never surface to the
// caller, and a cancelled request context does not drop the write. Missing
// client details are taken from the request actor when one is present.
func (s *AccessLogService) Record(ctx context.Context, ev AccessEvent) {
	if s == nil {
		return
	}
	if actor, ok := auditctx.FromContext(ctx); ok {
		if ev.IP == "" {
			ev.IP = actor.IPAddress
		}
		if ev.UserAgent == "" {
			ev.UserAgent = actor.UserAgent
		}
	}

	entry := &models.PortalAccessLog{
		OrganizationID:  ev.OrganizationID,
		PortalAccountID: optionalID(ev.PortalAccountID),
		LeadID:          optionalID(ev.LeadID),
		ProjectID:       optionalID(ev.ProjectID),
		Email:           models.NormalizeEmail(ev.Email),
		EventType:       ev.EventType,
		IP:              ev.IP,
		UserAgent:       ev.UserAgent,
		CreatedAt:       s.now(),
	}
	if len(ev.Metadata) > 0 {
		entry.Metadata = datatypes.JSONMap(ev.Metadata)
	}

	if err := s.store.AppendAccessLog(context.WithoutCancel(ctx), entry); err != nil {
		s.log.Warn("access log append failed",
			zap.String("event", string(ev.EventType)),
			zap.String("organization_id", ev.OrganizationID),
			zap.Error(err),
		)
	}
}

// List returns access log entries newest first.
func (s *AccessLogService) List(ctx context.Context, opts AccessLogListOptions) (*AccessLogResult, error) {
	page := pageOf(opts.Page, opts.PerPage)

	records, total, err := s.store.ListAccessLogs(ctx, opts.Filters, page)
	if err != nil {
		return nil, dbError("access_log_list", err)
	}

	return &AccessLogResult{
		Records: records,
		Total:   total,
		Page:    page.Page,
		PerPage: page.PerPage,
	}, nil
}
