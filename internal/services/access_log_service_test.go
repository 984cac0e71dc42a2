package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/estateportal/internal/auditctx"
	"github.com/charlesng35/estateportal/internal/models"
	"github.com/charlesng35/estateportal/internal/repository"
)

type brokenAccessLog struct {
	appends int
}

func (b *brokenAccessLog) AppendAccessLog(context.Context, *models.PortalAccessLog) error {
	b.appends++
	return errors.New("database is locked")
}

func (b *brokenAccessLog) ListAccessLogs(context.Context, repository.AccessLogFilter, repository.Pagination) ([]models.PortalAccessLog, int64, error) {
	return nil, 0, errors.New("database is locked")
}

func TestAccessLogRecordAndList(t *testing.T) {
	env := newTestEnv(t)

	env.audit.Record(env.ctx, AccessEvent{
		OrganizationID: env.org,
		Email:          " Someone@Example.com ",
		EventType:      models.EventCodeFail,
		IP:             "203.0.113.7",
		Metadata:       map[string]any{"remaining_attempts": 4},
	})
	env.advance(time.Minute)
	env.audit.Record(env.ctx, AccessEvent{OrganizationID: env.org, Email: "other@example.com", EventType: models.EventLoginFail})
	env.advance(time.Minute)
	env.audit.Record(env.ctx, AccessEvent{OrganizationID: env.org, Email: "someone@example.com", EventType: models.EventLoginFail})

	all, err := env.audit.List(env.ctx, AccessLogListOptions{Filters: repository.AccessLogFilter{OrganizationID: env.org}})
	require.NoError(t, err)
	require.EqualValues(t, 3, all.Total)
	require.Equal(t, models.EventLoginFail, all.Records[0].EventType)
	require.Equal(t, "someone@example.com", all.Records[0].Email)
	require.Equal(t, models.EventCodeFail, all.Records[2].EventType)
	require.Equal(t, "someone@example.com", all.Records[2].Email)
	require.Nil(t, all.Records[2].PortalAccountID)

	bySomeone, err := env.audit.List(env.ctx, AccessLogListOptions{Filters: repository.AccessLogFilter{
		OrganizationID: env.org,
		Email:          "SOMEONE@example.com",
	}})
	require.NoError(t, err)
	require.EqualValues(t, 2, bySomeone.Total)

	since := env.now.Add(-90 * time.Second)
	recent, err := env.audit.List(env.ctx, AccessLogListOptions{Filters: repository.AccessLogFilter{
		OrganizationID: env.org,
		EventType:      models.EventLoginFail,
		Since:          &since,
	}})
	require.NoError(t, err)
	require.EqualValues(t, 2, recent.Total)

	paged, err := env.audit.List(env.ctx, AccessLogListOptions{PerPage: 1, Page: 3, Filters: repository.AccessLogFilter{OrganizationID: env.org}})
	require.NoError(t, err)
	require.Len(t, paged.Records, 1)
	require.Equal(t, models.EventCodeFail, paged.Records[0].EventType)
}

func TestAccessLogRecordSurvivesCancellationAndFailures(t *testing.T) {
	env := newTestEnv(t)

	ctx, cancel := context.WithCancel(env.ctx)
	cancel()
	env.audit.Record(ctx, AccessEvent{OrganizationID: env.org, EventType: models.EventSignupOK})
	require.Len(t, env.events(models.EventSignupOK), 1)

	broken := &brokenAccessLog{}
	svc, err := NewAccessLogService(broken)
	require.NoError(t, err)
	require.NotPanics(t, func() {
		svc.Record(env.ctx, AccessEvent{OrganizationID: env.org, EventType: models.EventSignupFail})
	})
	require.Equal(t, 1, broken.appends)

	_, err = svc.List(env.ctx, AccessLogListOptions{})
	requireAppError(t, err, "db_access_log_list_error")

	var nilSvc *AccessLogService
	require.NotPanics(t, func() {
		nilSvc.Record(env.ctx, AccessEvent{EventType: models.EventSignupOK})
	})
}

func TestAccessLogRecordFillsClientFromActor(t *testing.T) {
	env := newTestEnv(t)

	ctx := auditctx.WithActor(env.ctx, auditctx.Actor{Label: "admin:ops", IPAddress: "198.51.100.4", UserAgent: "ops-console"})
	env.audit.Record(ctx, AccessEvent{OrganizationID: env.org, EventType: models.EventMembershipGranted})
	env.audit.Record(ctx, AccessEvent{OrganizationID: env.org, EventType: models.EventAccountStatusChanged, IP: "203.0.113.9"})

	granted := env.events(models.EventMembershipGranted)
	require.Len(t, granted, 1)
	require.Equal(t, "198.51.100.4", granted[0].IP)
	require.Equal(t, "ops-console", granted[0].UserAgent)

	changed := env.events(models.EventAccountStatusChanged)
	require.Len(t, changed, 1)
	require.Equal(t, "203.0.113.9", changed[0].IP)
}
