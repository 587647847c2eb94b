package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"smallbiznis-crm/pkg/db/option"
	"smallbiznis-crm/pkg/errutil"
	"smallbiznis-crm/pkg/payment"
	"smallbiznis-crm/pkg/repository"
	"smallbiznis-crm/services/tenant"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ChangeFunc is notified after a tenant's subscription row changed.
type ChangeFunc func(ctx context.Context, tenantID string)

type TenantLookup interface {
	GetTenant(ctx context.Context, tenantID string) (*tenant.Tenant, error)
}

type Service struct {
	db       *gorm.DB
	node     *snowflake.Node
	repo     repository.Repository[Subscription]
	tenants  TenantLookup
	provider payment.Provider
	now      func() time.Time

	mu        sync.RWMutex
	listeners []ChangeFunc
}

type ServiceParams struct {
	fx.In
	DB       *gorm.DB
	Node     *snowflake.Node
	Tenants  *tenant.Service
	Provider payment.Provider
}

func NewService(p ServiceParams) *Service {
	return newService(p.DB, p.Node, p.Tenants, p.Provider)
}

func newService(db *gorm.DB, node *snowflake.Node, tenants TenantLookup, provider payment.Provider) *Service {
	return &Service{
		db:       db,
		node:     node,
		repo:     repository.ProvideStore[Subscription](db),
		tenants:  tenants,
		provider: provider,
		now:      time.Now,
	}
}

func logger(ctx context.Context) *zap.Logger {
	sc := trace.SpanFromContext(ctx).SpanContext()
	return zap.L().With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}

func (s *Service) AddListener(fn ChangeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Service) notify(ctx context.Context, tenantID string) {
	s.mu.RLock()
	listeners := append([]ChangeFunc(nil), s.listeners...)
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(ctx, tenantID)
	}
}

// ActiveForTenant returns the tenant's oldest paid subscription, or nil when it has none.
func (s *Service) ActiveForTenant(ctx context.Context, tenantID string) (*Subscription, error) {
	sub, err := s.repo.FindOne(ctx, &Subscription{TenantID: tenantID},
		option.WithWhere("status IN ?", PaidStatuses()),
		option.WithOrder("created_at ASC"),
	)
	if err != nil {
		logger(ctx).Error("failed query active subscription", zap.String("tenant_id", tenantID), zap.Error(err))
		return nil, errutil.Internal("failed to get subscription", err)
	}

	return sub, nil
}

func (s *Service) CreateCheckout(ctx context.Context, tenantID string) (*CheckoutResponse, error) {
	zapLog := logger(ctx).With(zap.String("tenant_id", tenantID))

	t, err := s.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	active, err := s.ActiveForTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, errutil.Conflict("tenant already has an active subscription", nil)
	}

	url, err := s.provider.CreateCheckoutSession(ctx, payment.CheckoutRequest{
		TenantID:      t.ID,
		CustomerEmail: t.BillingEmail,
	})
	if err != nil {
		if errors.Is(err, payment.ErrNotConfigured) {
			return nil, errutil.ServiceUnavailable("billing is not configured", err)
		}
		zapLog.Error("failed to create checkout session", zap.Error(err))
		return nil, errutil.BadGateway("failed to create checkout session", err)
	}

	zapLog.Info("checkout session created")

	return &CheckoutResponse{URL: url}, nil
}

// HandleWebhook verifies and applies a provider event. Events that cannot be
// tied to a tenant are acknowledged and dropped so the provider stops retrying.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	zapLog := logger(ctx)

	event, err := s.provider.ParseEvent(payload, signature)
	if err != nil {
		if errors.Is(err, payment.ErrNotConfigured) {
			return errutil.ServiceUnavailable("billing is not configured", err)
		}
		zapLog.Warn("rejected webhook", zap.Error(err))
		return errutil.BadRequest("invalid webhook payload", err)
	}

	zapLog = zapLog.With(zap.String("event_id", event.ID), zap.String("event_type", event.Type))

	if event.Ignored {
		zapLog.Debug("ignored webhook event")
		return nil
	}

	var (
		tenantID string
		changed  bool
	)
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tx = tx.Scopes(option.LockingUpdate)

		sub, applied, err := s.apply(ctx, tx, event)
		if err != nil {
			return err
		}
		if sub != nil {
			tenantID = sub.TenantID
		}
		changed = applied
		return nil
	}); err != nil {
		zapLog.Error("failed to apply webhook event", zap.Error(err))
		return errutil.Internal("failed to apply webhook event", err)
	}

	if tenantID == "" {
		zapLog.Warn("webhook event has no tenant", zap.String("subscription_id", event.SubscriptionID))
		return nil
	}
	if !changed {
		zapLog.Info("skipped stale webhook event", zap.String("tenant_id", tenantID))
		return nil
	}

	zapLog.Info("subscription updated", zap.String("tenant_id", tenantID), zap.String("status", event.Status))
	s.notify(ctx, tenantID)

	return nil
}

// apply upserts the row for event. It reports false when the event is a
// duplicate or older than what the row already reflects.
func (s *Service) apply(ctx context.Context, tx *gorm.DB, event *payment.Event) (*Subscription, bool, error) {
	repo := s.repo.WithTrx(tx)

	existing, err := repo.FindOne(ctx, &Subscription{ProviderSubscriptionID: event.SubscriptionID})
	if err != nil {
		return nil, false, err
	}

	if existing == nil {
		if strings.TrimSpace(event.TenantID) == "" {
			return nil, false, nil
		}
		sub := &Subscription{
			ID:                     s.node.Generate().String(),
			TenantID:               event.TenantID,
			Provider:               ProviderStripe,
			ProviderSubscriptionID: event.SubscriptionID,
		}
		merge(sub, event, s.now())
		if err := repo.Create(ctx, sub); err != nil {
			return nil, false, err
		}
		return sub, true, nil
	}

	if stale(existing, event) {
		return existing, false, nil
	}

	// subscription.* events own the status; a late checkout event only fills gaps.
	if event.Type == payment.EventCheckoutCompleted {
		if existing.ProviderCustomerID == "" && event.CustomerID != "" {
			existing.ProviderCustomerID = event.CustomerID
		}
		if existing.TenantID == "" {
			existing.TenantID = event.TenantID
		}
	} else {
		merge(existing, event, s.now())
	}

	if err := tx.WithContext(ctx).Save(existing).Error; err != nil {
		return nil, false, err
	}

	return existing, true, nil
}

// stale reports whether event must not touch sub. Provider delivery order is
// not guaranteed, and a terminal status is final.
func stale(sub *Subscription, event *payment.Event) bool {
	if event.ID != "" && event.ID == sub.LastEventID {
		return true
	}
	if event.Type == payment.EventCheckoutCompleted {
		return false
	}
	if sub.Status.IsTerminal() && !Status(event.Status).IsTerminal() {
		return true
	}
	if sub.LastEventAt != nil && !event.Created.IsZero() && event.Created.Before(*sub.LastEventAt) {
		return true
	}
	return false
}

func merge(sub *Subscription, event *payment.Event, now time.Time) {
	sub.Status = Status(event.Status)
	sub.LastEventID = event.ID
	if !event.Created.IsZero() {
		created := event.Created.UTC()
		sub.LastEventAt = &created
	}
	if event.CustomerID != "" {
		sub.ProviderCustomerID = event.CustomerID
	}
	if event.PriceID != "" {
		sub.PriceID = event.PriceID
	}
	if event.CanceledAt != nil {
		sub.CanceledAt = event.CanceledAt
	}
	if sub.Status.IsPaid() && sub.StartedAt == nil {
		started := now.UTC()
		sub.StartedAt = &started
	}
	if len(event.Metadata) > 0 {
		if b, err := json.Marshal(event.Metadata); err == nil {
			sub.Metadata = datatypes.JSON(b)
		}
	}
}
