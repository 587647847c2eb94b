package reminder

import (
	"time"
)

type Status string

var (
	StatusSent    Status = "sent"
	StatusSkipped Status = "skipped"
)

// Reminder records that a tenant was reminded at a given daysLeft.
type Reminder struct {
	ID        string     `gorm:"column:id;primaryKey"`
	TenantID  string     `gorm:"column:tenant_id;uniqueIndex:idx_reminder_tenant_days;not null"`
	DaysLeft  int        `gorm:"column:days_left;uniqueIndex:idx_reminder_tenant_days;not null"`
	Status    Status     `gorm:"column:status;type:varchar(20)"`
	Reason    string     `gorm:"column:reason;type:text"`
	SentAt    *time.Time `gorm:"column:sent_at"`
	CreatedAt time.Time  `gorm:"autoCreateTime"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime"`
}

type Payload struct {
	TenantID string `json:"tenant_id"`
	DaysLeft int    `json:"days_left"`
}
