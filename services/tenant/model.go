package tenant

import (
	"time"
)

type TenantType string

var (
	Personal TenantType = "personal"
	Company  TenantType = "company"
)

func (t TenantType) String() string {
	switch t {
	case Personal, Company:
		return string(t)
	default:
		return ""
	}
}

type TenantStatus string

var (
	Active    TenantStatus = "active"
	Suspended TenantStatus = "suspended"
	Archived  TenantStatus = "archived"
)

func (t TenantStatus) String() string {
	switch t {
	case Active, Suspended, Archived:
		return string(t)
	default:
		return ""
	}
}

// Tenant is a CRM account. CreatedAt is the signup time the trial window starts from.
type Tenant struct {
	ID           string       `gorm:"column:id;primaryKey" json:"id"`
	CreatedAt    time.Time    `gorm:"column:created_at;index" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"column:updated_at" json:"updated_at"`
	Type         TenantType   `gorm:"column:type" json:"type"`
	Name         string       `gorm:"column:name" json:"name"`
	Slug         string       `gorm:"column:slug;uniqueIndex" json:"slug"`
	BillingEmail string       `gorm:"column:billing_email" json:"billing_email"`
	CountryCode  string       `gorm:"column:country_code" json:"country_code"`
	Timezone     string       `gorm:"column:timezone" json:"timezone"`
	Status       TenantStatus `gorm:"column:status" json:"status"`
}

type CreateTenantRequest struct {
	Type         string `json:"type"`
	Name         string `json:"name" binding:"required"`
	Slug         string `json:"slug"`
	BillingEmail string `json:"billing_email" binding:"omitempty,email"`
	CountryCode  string `json:"country_code"`
	Timezone     string `json:"timezone"`
}
