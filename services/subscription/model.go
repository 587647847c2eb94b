package subscription

import (
	"time"

	"gorm.io/datatypes"
)

type Status string

var (
	StatusIncomplete        Status = "incomplete"
	StatusIncompleteExpired Status = "incomplete_expired"
	StatusTrialing          Status = "trialing"
	StatusActive            Status = "active"
	StatusPastDue           Status = "past_due"
	StatusUnpaid            Status = "unpaid"
	StatusCanceled          Status = "canceled"
	StatusPaused            Status = "paused"
)

// IsTerminal reports whether the provider can never move the subscription out of s.
func (s Status) IsTerminal() bool {
	return s == StatusCanceled || s == StatusIncompleteExpired
}

// IsPaid reports whether the subscription grants access. past_due stays paid
// while the provider retries the charge.
func (s Status) IsPaid() bool {
	return s == StatusActive || s == StatusPastDue
}

func PaidStatuses() []Status {
	return []Status{StatusActive, StatusPastDue}
}

const ProviderStripe = "stripe"

type Subscription struct {
	ID                     string         `gorm:"column:id;primaryKey" json:"id"`
	CreatedAt              time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt              time.Time      `gorm:"column:updated_at" json:"updated_at"`
	TenantID               string         `gorm:"column:tenant_id;index" json:"tenant_id"`
	Provider               string         `gorm:"column:provider" json:"provider"`
	ProviderSubscriptionID string         `gorm:"column:provider_subscription_id;uniqueIndex" json:"provider_subscription_id"`
	ProviderCustomerID     string         `gorm:"column:provider_customer_id" json:"provider_customer_id"`
	PriceID                string         `gorm:"column:price_id" json:"price_id"`
	Status                 Status         `gorm:"column:status;index" json:"status"`
	StartedAt              *time.Time     `gorm:"column:started_at" json:"started_at,omitempty"`
	CanceledAt             *time.Time     `gorm:"column:canceled_at" json:"canceled_at,omitempty"`
	LastEventID            string         `gorm:"column:last_event_id" json:"-"`
	LastEventAt            *time.Time     `gorm:"column:last_event_at" json:"-"`
	Metadata               datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
}

type CheckoutResponse struct {
	URL string `json:"url"`
}
