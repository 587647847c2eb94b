package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"smallbiznis-crm/pkg/mailer"
	"smallbiznis-crm/pkg/repository"
	"smallbiznis-crm/pkg/taskname"
	"smallbiznis-crm/services/subscription"
	"smallbiznis-crm/services/tenant"
	"smallbiznis-crm/services/testutil"
	"smallbiznis-crm/services/trial"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

const day = 24 * time.Hour

var t0 = time.Date(2026, 4, 1, 1, 0, 0, 0, time.UTC)

type fakeEnqueuer struct {
	mu    sync.Mutex
	ids   map[string]bool
	tasks []*asynq.Task
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, opt := range opts {
		if opt.Type() == asynq.TaskIDOpt {
			id := opt.Value().(string)
			if f.ids[id] {
				return nil, asynq.ErrTaskIDConflict
			}
			f.ids[id] = true
		}
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{}, nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (f *fakeMailer) Send(_ context.Context, msg mailer.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeSubscriptions map[string]*subscription.Subscription

func (f fakeSubscriptions) ActiveForTenant(_ context.Context, tenantID string) (*subscription.Subscription, error) {
	return f[tenantID], nil
}

type fixture struct {
	svc      *Service
	enqueuer *fakeEnqueuer
	mailer   *fakeMailer
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()

	db := testutil.NewTestDB(t, &tenant.Tenant{}, &Reminder{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	seed := []*tenant.Tenant{
		{ID: "three-left", Name: "Kedai Ali", Slug: "three-left", BillingEmail: "ali@example.com", CreatedAt: t0},
		{ID: "one-left", Name: "Siti & Co", Slug: "one-left", BillingEmail: "siti@example.com", CreatedAt: t0.Add(-2 * day)},
		{ID: "eight-left", Name: "Early", Slug: "eight-left", BillingEmail: "early@example.com", CreatedAt: t0.Add(5 * day)},
		{ID: "expired", Name: "Late", Slug: "expired", BillingEmail: "late@example.com", CreatedAt: t0.Add(-20 * day)},
		{ID: "subscribed", Name: "Paid", Slug: "subscribed", BillingEmail: "paid@example.com", CreatedAt: t0},
		{ID: "no-email", Name: "Quiet", Slug: "no-email", CreatedAt: t0},
	}
	for _, tn := range seed {
		tn.Status = tenant.Active
		require.NoError(t, db.Create(tn).Error)
	}

	tenants := tenant.NewService(tenant.ServiceParams{DB: db, Node: node})
	clock := func() time.Time { return now }
	trials := trial.New(trial.Options{
		Tenants:       tenants,
		Subscriptions: fakeSubscriptions{"subscribed": {TenantID: "subscribed", Status: subscription.StatusActive}},
		TrialLength:   14 * day,
		Pricing:       trial.Pricing{Amount: 5999, Currency: "MYR", Interval: "month"},
		Now:           clock,
	})

	f := &fixture{
		enqueuer: &fakeEnqueuer{ids: map[string]bool{}},
		mailer:   &fakeMailer{},
	}
	f.svc = &Service{
		db:        db,
		node:      node,
		repo:      repository.ProvideStore[Reminder](db),
		tenants:   tenants,
		trials:    trials,
		enqueuer:  f.enqueuer,
		mailer:    f.mailer,
		days:      []int{3, 1},
		appURL:    "https://crm.example.com",
		subscribe: "/settings/billing",
		now:       clock,
	}
	return f
}

func payloadTask(t *testing.T, tenantID string, daysLeft int) *asynq.Task {
	t.Helper()
	b, err := json.Marshal(Payload{TenantID: tenantID, DaysLeft: daysLeft})
	require.NoError(t, err)
	return asynq.NewTask(taskname.TrialReminder, b)
}

func TestEnqueueDue(t *testing.T) {
	f := newFixture(t, t0.Add(11*day))
	ctx := context.Background()

	n, err := f.svc.EnqueueDue(ctx)
	require.NoError(t, err)
	// three-left and no-email have 3 days, one-left has 1
	require.Equal(t, 3, n)
	require.True(t, f.enqueuer.ids["billing:trial:reminder:three-left:3"])
	require.True(t, f.enqueuer.ids["billing:trial:reminder:one-left:1"])
	require.True(t, f.enqueuer.ids["billing:trial:reminder:no-email:3"])

	for _, task := range f.enqueuer.tasks {
		require.Equal(t, taskname.TrialReminder, task.Type())
	}

	// a second scan on the same day is deduplicated by task ID
	n, err = f.svc.EnqueueDue(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestEnqueueDueNoReminderDays(t *testing.T) {
	f := newFixture(t, t0.Add(11*day))
	f.svc.days = nil

	n, err := f.svc.EnqueueDue(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
	require.Empty(t, f.enqueuer.tasks)
}

func TestHandleReminderSends(t *testing.T) {
	f := newFixture(t, t0.Add(11*day))
	ctx := context.Background()

	require.NoError(t, f.svc.HandleReminder(ctx, payloadTask(t, "one-left", 1)))
	require.Len(t, f.mailer.sent, 1)

	msg := f.mailer.sent[0]
	require.Equal(t, "siti@example.com", msg.To)
	require.Equal(t, "Your free trial ends tomorrow", msg.Subject)
	require.Contains(t, msg.Text, "1 day left in your free trial. Subscribe to keep access (RM59.99/month)")
	require.Contains(t, msg.Text, "https://crm.example.com/settings/billing")
	require.Contains(t, msg.HTML, "Siti &amp; Co")

	// redelivery does not send twice
	require.NoError(t, f.svc.HandleReminder(ctx, payloadTask(t, "one-left", 1)))
	require.Len(t, f.mailer.sent, 1)

	r, err := f.svc.repo.FindOne(ctx, &Reminder{TenantID: "one-left", DaysLeft: 1})
	require.NoError(t, err)
	require.Equal(t, StatusSent, r.Status)
	require.NotNil(t, r.SentAt)
}

func TestHandleReminderSkips(t *testing.T) {
	f := newFixture(t, t0.Add(11*day))
	ctx := context.Background()

	require.NoError(t, f.svc.HandleReminder(ctx, payloadTask(t, "subscribed", 3)))
	require.NoError(t, f.svc.HandleReminder(ctx, payloadTask(t, "no-email", 3)))
	require.Empty(t, f.mailer.sent)

	r, err := f.svc.repo.FindOne(ctx, &Reminder{TenantID: "subscribed", DaysLeft: 3})
	require.NoError(t, err)
	require.Equal(t, StatusSkipped, r.Status)
	require.Nil(t, r.SentAt)
}

func TestHandleReminderDaysLeftMoved(t *testing.T) {
	// queued with 2 days left, delivered after the tenant dropped to 1
	f := newFixture(t, t0.Add(11*day))
	ctx := context.Background()

	require.NoError(t, f.svc.HandleReminder(ctx, payloadTask(t, "one-left", 2)))
	require.Empty(t, f.mailer.sent)

	r, err := f.svc.repo.FindOne(ctx, &Reminder{TenantID: "one-left", DaysLeft: 2})
	require.NoError(t, err)
	require.Equal(t, StatusSkipped, r.Status)

	require.NoError(t, f.svc.HandleReminder(ctx, payloadTask(t, "one-left", 1)))
	require.Len(t, f.mailer.sent, 1)
	require.Equal(t, "Your free trial ends tomorrow", f.mailer.sent[0].Subject)
}

func TestHandleReminderMailerFailureRetries(t *testing.T) {
	f := newFixture(t, t0.Add(11*day))
	ctx := context.Background()
	f.mailer.err = errors.New("smtp down")

	require.Error(t, f.svc.HandleReminder(ctx, payloadTask(t, "three-left", 3)))

	r, err := f.svc.repo.FindOne(ctx, &Reminder{TenantID: "three-left", DaysLeft: 3})
	require.NoError(t, err)
	require.Nil(t, r)

	f.mailer.err = nil
	require.NoError(t, f.svc.HandleReminder(ctx, payloadTask(t, "three-left", 3)))
	require.Len(t, f.mailer.sent, 1)
	require.Equal(t, "Your free trial ends in 3 days", f.mailer.sent[0].Subject)
}

func TestHandleReminderInvalidPayload(t *testing.T) {
	f := newFixture(t, t0.Add(11*day))

	err := f.svc.HandleReminder(context.Background(), asynq.NewTask(taskname.TrialReminder, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestNextRunTime(t *testing.T) {
	loc := time.FixedZone("MYT", 8*60*60)

	before := time.Date(2026, 4, 1, 0, 30, 0, 0, loc)
	require.Equal(t, time.Date(2026, 4, 1, 1, 0, 0, 0, loc), nextRunTime(before, 1, 0))

	at := time.Date(2026, 4, 1, 1, 0, 0, 0, loc)
	require.Equal(t, time.Date(2026, 4, 2, 1, 0, 0, 0, loc), nextRunTime(at, 1, 0))

	after := time.Date(2026, 4, 30, 13, 0, 0, 0, loc)
	require.Equal(t, time.Date(2026, 5, 1, 1, 0, 0, 0, loc), nextRunTime(after, 1, 0))
}
