package trial

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"smallbiznis-crm/pkg/errutil"
	"smallbiznis-crm/pkg/rediskey"
	"smallbiznis-crm/services/subscription"
	"smallbiznis-crm/services/tenant"
	"smallbiznis-crm/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeTenants struct {
	mu      sync.Mutex
	tenants map[string]*tenant.Tenant
	calls   atomic.Int32
	block   chan struct{}
}

func (f *fakeTenants) GetTenant(ctx context.Context, tenantID string) (*tenant.Tenant, error) {
	f.calls.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.tenants[tenantID]; ok {
		return t, nil
	}
	return nil, errutil.NotFound("tenant not found", nil)
}

type fakeSubscriptions struct {
	mu   sync.Mutex
	subs map[string]*subscription.Subscription
	err  error
}

func (f *fakeSubscriptions) ActiveForTenant(_ context.Context, tenantID string) (*subscription.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.subs[tenantID], nil
}

func (f *fakeSubscriptions) set(tenantID string, sub *subscription.Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[tenantID] = sub
}

type fixedOverride map[string]int

func (o fixedOverride) TrialLengthDays(_ context.Context, tenantID string) (int, bool) {
	days, ok := o[tenantID]
	return days, ok
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	svc   *Service
	tens  *fakeTenants
	subs  *fakeSubscriptions
	clock *clock
	redis *miniredis.Miniredis
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	rdb, mr := testutil.NewTestRedis(t)

	f := &fixture{
		tens: &fakeTenants{tenants: map[string]*tenant.Tenant{
			"tenant-1": {ID: "tenant-1", CreatedAt: t0},
			"tenant-2": {ID: "tenant-2", CreatedAt: t0},
		}},
		subs:  &fakeSubscriptions{subs: map[string]*subscription.Subscription{}},
		clock: &clock{now: t0},
		redis: mr,
	}
	f.svc = New(Options{
		Tenants:       f.tens,
		Subscriptions: f.subs,
		Overrides:     fixedOverride{"tenant-2": 30},
		Cache:         NewRedisFactsCache(rdb, time.Minute),
		TrialLength:   fourteenDays,
		Pricing:       myr,
		SubscribeURL:  "/settings/billing",
		Now:           f.clock.Now,
	})
	return f
}

func TestStatusFollowsClock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.clock.Set(t0.Add(13*day + 12*time.Hour))
	s, err := f.svc.Status(ctx, "tenant-1")
	require.NoError(t, err)
	require.True(t, s.IsTrialActive)
	require.Equal(t, 1, s.DaysLeft)

	// cached facts must not freeze the countdown
	f.clock.Set(t0.Add(15 * day))
	s, err = f.svc.Status(ctx, "tenant-1")
	require.NoError(t, err)
	require.Equal(t, Expired, StateOf(s))
	require.Equal(t, int32(1), f.tens.calls.Load())
}

func TestStatusUsesTrialLengthOverride(t *testing.T) {
	f := newFixture(t)
	f.clock.Set(t0.Add(20 * day))

	s, err := f.svc.Status(context.Background(), "tenant-2")
	require.NoError(t, err)
	require.True(t, s.IsTrialActive)
	require.Equal(t, 10, s.DaysLeft)
	require.Equal(t, t0.Add(30*day), s.TrialEndDate)
}

func TestStatusUnknownTenant(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Status(context.Background(), "nobody")
	require.Error(t, err)
	require.Equal(t, errutil.StatusNotFound, errutil.StatusOf(err))
	require.False(t, f.redis.Exists(rediskey.BuildTrialFactsKey("nobody")))
}

func TestStatusSubscriptionError(t *testing.T) {
	f := newFixture(t)
	f.subs.err = errutil.Internal("failed to get subscription", errors.New("db down"))

	_, err := f.svc.Status(context.Background(), "tenant-1")
	require.Equal(t, errutil.StatusInternal, errutil.StatusOf(err))
}

func TestInvalidateAfterSubscribe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.clock.Set(t0.Add(15 * day))

	s, err := f.svc.Status(ctx, "tenant-1")
	require.NoError(t, err)
	require.Equal(t, Expired, StateOf(s))
	require.True(t, f.redis.Exists(rediskey.BuildTrialFactsKey("tenant-1")))

	started := t0.Add(15 * day)
	f.subs.set("tenant-1", &subscription.Subscription{TenantID: "tenant-1", Status: subscription.StatusActive, StartedAt: &started})

	// stale until invalidated
	s, err = f.svc.Status(ctx, "tenant-1")
	require.NoError(t, err)
	require.Equal(t, Expired, StateOf(s))

	f.svc.Invalidate(ctx, "tenant-1")

	s, err = f.svc.Status(ctx, "tenant-1")
	require.NoError(t, err)
	require.Equal(t, Hidden, StateOf(s))
	require.Equal(t, t0.Add(fourteenDays), s.TrialEndDate)
}

func TestStatusWithoutRedis(t *testing.T) {
	f := newFixture(t)
	f.redis.Close()
	f.clock.Set(t0.Add(day))

	s, err := f.svc.Status(context.Background(), "tenant-1")
	require.NoError(t, err)
	require.Equal(t, 13, s.DaysLeft)
}

func TestFactsSingleflight(t *testing.T) {
	f := newFixture(t)
	f.tens.block = make(chan struct{})

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Facts(context.Background(), "tenant-1")
			errs <- err
		}()
	}

	require.Eventually(t, func() bool { return f.tens.calls.Load() >= 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(f.tens.block)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, int32(1), f.tens.calls.Load())
}

func TestFactsSurvivesFirstCallerCancel(t *testing.T) {
	f := newFixture(t)
	f.tens.block = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := f.svc.Facts(ctx, "tenant-1")
		first <- err
	}()
	require.Eventually(t, func() bool { return f.tens.calls.Load() >= 1 }, time.Second, time.Millisecond)

	second := make(chan error, 1)
	go func() {
		_, err := f.svc.Facts(context.Background(), "tenant-1")
		second <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	time.Sleep(20 * time.Millisecond)
	close(f.tens.block)

	require.NoError(t, <-first)
	require.NoError(t, <-second)
	require.Equal(t, int32(1), f.tens.calls.Load())
}

func TestBanner(t *testing.T) {
	f := newFixture(t)
	f.clock.Set(t0.Add(15 * day))

	b, err := f.svc.Banner(context.Background(), "tenant-1")
	require.NoError(t, err)
	require.Equal(t, Expired, b.State)
	require.Equal(t, "/settings/billing", b.SubscribeURL)
}
