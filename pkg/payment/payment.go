package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"smallbiznis-crm/pkg/config"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("payment", fx.Provide(ProvideProvider))

// Event types the billing service reacts to.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionCreated = "customer.subscription.created"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// MetadataTenantID links Stripe objects back to the tenant.
const MetadataTenantID = "tenant_id"

var (
	ErrNotConfigured    = errors.New("stripe: not configured")
	ErrInvalidSignature = errors.New("stripe: invalid webhook signature")
)

type CheckoutRequest struct {
	TenantID      string
	CustomerEmail string
}

// Event is the subset of a Stripe webhook event the billing service persists.
// Ignored is true for event types that carry no subscription change.
type Event struct {
	ID             string
	Type           string
	Created        time.Time
	Ignored        bool
	TenantID       string
	SubscriptionID string
	CustomerID     string
	PriceID        string
	Status         string
	CanceledAt     *time.Time
	Metadata       map[string]string
}

type Provider interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (string, error)
	ParseEvent(payload []byte, signature string) (*Event, error)
}

type provider struct {
	sessions      *session.Client
	webhookSecret string
	priceID       string
	successURL    string
	cancelURL     string
}

func ProvideProvider(cfg *config.Config) Provider {
	return NewProvider(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret, cfg.Stripe.PriceID, cfg.Stripe.SuccessURL, cfg.Stripe.CancelURL)
}

// NewProvider keeps the API key on its own session client instead of the package-global stripe.Key.
func NewProvider(apiKey, webhookSecret, priceID, successURL, cancelURL string) Provider {
	p := &provider{
		webhookSecret: webhookSecret,
		priceID:       priceID,
		successURL:    successURL,
		cancelURL:     cancelURL,
	}
	if apiKey != "" {
		p.sessions = &session.Client{B: stripe.GetBackend(stripe.APIBackend), Key: apiKey}
	}
	return p
}

func (p *provider) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (string, error) {
	if p.sessions == nil || p.priceID == "" {
		return "", ErrNotConfigured
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		ClientReferenceID: stripe.String(req.TenantID),
		SuccessURL:        stripe.String(p.successURL),
		CancelURL:         stripe.String(p.cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(p.priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{MetadataTenantID: req.TenantID},
		},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.Context = ctx

	cs, err := p.sessions.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: create checkout session: %w", err)
	}
	return cs.URL, nil
}

func (p *provider) ParseEvent(payload []byte, signature string) (*Event, error) {
	if p.webhookSecret == "" {
		return nil, ErrNotConfigured
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	return decodeEvent(event)
}

func decodeEvent(event stripe.Event) (*Event, error) {
	out := &Event{ID: event.ID, Type: string(event.Type)}
	if event.Created > 0 {
		out.Created = time.Unix(event.Created, 0).UTC()
	}
	if event.Data == nil {
		out.Ignored = true
		return out, nil
	}

	switch out.Type {
	case EventCheckoutCompleted:
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			return nil, fmt.Errorf("stripe: parse checkout session: %w", err)
		}
		if cs.Mode != stripe.CheckoutSessionModeSubscription || cs.Subscription == nil {
			out.Ignored = true
			return out, nil
		}
		out.TenantID = cs.ClientReferenceID
		out.SubscriptionID = cs.Subscription.ID
		if cs.Customer != nil {
			out.CustomerID = cs.Customer.ID
		}
		if cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid {
			out.Status = string(stripe.SubscriptionStatusActive)
		} else {
			out.Status = string(stripe.SubscriptionStatusIncomplete)
		}
		out.Metadata = cs.Metadata
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("stripe: parse subscription: %w", err)
		}
		out.SubscriptionID = sub.ID
		out.Status = string(sub.Status)
		out.Metadata = sub.Metadata
		out.TenantID = sub.Metadata[MetadataTenantID]
		if sub.Customer != nil {
			out.CustomerID = sub.Customer.ID
		}
		if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
			out.PriceID = sub.Items.Data[0].Price.ID
		}
		if sub.CanceledAt > 0 {
			t := time.Unix(sub.CanceledAt, 0).UTC()
			out.CanceledAt = &t
		}
		if out.Type == EventSubscriptionDeleted {
			out.Status = string(stripe.SubscriptionStatusCanceled)
		}
	default:
		out.Ignored = true
	}

	return out, nil
}
