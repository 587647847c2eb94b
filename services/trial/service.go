package trial

import (
	"context"
	"time"

	"smallbiznis-crm/pkg/config"
	"smallbiznis-crm/pkg/featureflags"
	"smallbiznis-crm/services/subscription"
	"smallbiznis-crm/services/tenant"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type TenantLookup interface {
	GetTenant(ctx context.Context, tenantID string) (*tenant.Tenant, error)
}

type SubscriptionLookup interface {
	ActiveForTenant(ctx context.Context, tenantID string) (*subscription.Subscription, error)
}

// TrialLengthOverride returns a per-tenant trial length in days when one is configured.
type TrialLengthOverride interface {
	TrialLengthDays(ctx context.Context, tenantID string) (int, bool)
}

type Options struct {
	Tenants       TenantLookup
	Subscriptions SubscriptionLookup
	Overrides     TrialLengthOverride
	Cache         FactsCache
	TrialLength   time.Duration
	Pricing       Pricing
	SubscribeURL  string
	Now           func() time.Time
}

type Service struct {
	tenants       TenantLookup
	subscriptions SubscriptionLookup
	overrides     TrialLengthOverride
	cache         FactsCache
	group         singleflight.Group

	trialLength  time.Duration
	pricing      Pricing
	subscribeURL string
	now          func() time.Time
}

func New(opts Options) *Service {
	s := &Service{
		tenants:       opts.Tenants,
		subscriptions: opts.Subscriptions,
		overrides:     opts.Overrides,
		cache:         opts.Cache,
		trialLength:   opts.TrialLength,
		pricing:       opts.Pricing,
		subscribeURL:  opts.SubscribeURL,
		now:           opts.Now,
	}
	if s.cache == nil {
		s.cache = noopCache{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

type ServiceParams struct {
	fx.In
	Config        *config.Config
	Tenants       *tenant.Service
	Subscriptions *subscription.Service
	Overrides     *featureflags.TrialLength `optional:"true"`
	Redis         *redis.Client             `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	cfg := p.Config.Trial

	opts := Options{
		Tenants:       p.Tenants,
		Subscriptions: p.Subscriptions,
		TrialLength:   time.Duration(cfg.LengthDays) * day,
		Pricing: Pricing{
			Amount:   cfg.PriceAmount,
			Currency: cfg.Currency,
			Interval: cfg.Interval,
		},
		SubscribeURL: cfg.SubscribeURL,
	}
	if p.Overrides != nil {
		opts.Overrides = p.Overrides
	}
	if p.Redis != nil && cfg.CacheTTL > 0 {
		opts.Cache = NewRedisFactsCache(p.Redis, cfg.CacheTTL)
	}

	return New(opts)
}

func logger(ctx context.Context) *zap.Logger {
	sc := trace.SpanFromContext(ctx).SpanContext()
	return zap.L().With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}

func (s *Service) Pricing() Pricing {
	return s.pricing
}

// Status computes the tenant's trial status at the current time.
func (s *Service) Status(ctx context.Context, tenantID string) (TrialStatus, error) {
	f, err := s.Facts(ctx, tenantID)
	if err != nil {
		return TrialStatus{}, err
	}

	status := Compute(f, s.now())
	decisions.WithLabelValues(string(StateOf(status))).Inc()

	return status, nil
}

func (s *Service) Banner(ctx context.Context, tenantID string) (Banner, error) {
	status, err := s.Status(ctx, tenantID)
	if err != nil {
		return Banner{}, err
	}
	return RenderBanner(status, s.pricing, s.subscribeURL), nil
}

// Facts returns the cached gate inputs, loading them once per tenant on a miss.
func (s *Service) Facts(ctx context.Context, tenantID string) (Facts, error) {
	if f, ok := s.cache.Get(ctx, tenantID); ok {
		return *f, nil
	}

	// the shared load must outlive whichever caller started it
	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := s.group.Do(tenantID, func() (any, error) {
		f, err := s.loadFacts(loadCtx, tenantID)
		if err != nil {
			return nil, err
		}
		s.cache.Set(loadCtx, tenantID, f)
		return f, nil
	})
	if err != nil {
		return Facts{}, err
	}

	return v.(Facts), nil
}

func (s *Service) loadFacts(ctx context.Context, tenantID string) (Facts, error) {
	t, err := s.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return Facts{}, err
	}

	sub, err := s.subscriptions.ActiveForTenant(ctx, tenantID)
	if err != nil {
		return Facts{}, err
	}

	length := s.trialLength
	if s.overrides != nil {
		if days, ok := s.overrides.TrialLengthDays(ctx, tenantID); ok {
			length = time.Duration(days) * day
		}
	}

	f := Facts{
		CreatedAt:   t.CreatedAt.UTC(),
		TrialLength: length,
	}
	if sub != nil {
		f.Subscribed = true
		f.SubscribedAt = sub.StartedAt
	}

	return f, nil
}

// Invalidate drops the cached facts so the next Status reads fresh records.
func (s *Service) Invalidate(ctx context.Context, tenantID string) {
	if err := s.cache.Invalidate(ctx, tenantID); err != nil {
		logger(ctx).Warn("failed to invalidate trial facts", zap.String("tenant_id", tenantID), zap.Error(err))
	}
}
