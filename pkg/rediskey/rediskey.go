package rediskey

import "fmt"

// Tenant keys (global convention across services)
const (
	TenantPrefix       = "tenant"
	TrialFactsPrefix   = "billing:trial:facts"
	ReminderLockPrefix = "billing:trial:reminder"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildTenantIDKey returns "tenant:{tenantID}"
func BuildTenantIDKey(tenantID string) string {
	return NamespaceKey(TenantPrefix, tenantID)
}

// BuildTrialFactsKey returns "billing:trial:facts:{tenantID}"
func BuildTrialFactsKey(tenantID string) string {
	return NamespaceKey(TrialFactsPrefix, tenantID)
}

// BuildReminderKey returns "billing:trial:reminder:{tenantID}:{daysLeft}"
func BuildReminderKey(tenantID string, daysLeft int) string {
	return NamespaceKey(ReminderLockPrefix, fmt.Sprintf("%s:%d", tenantID, daysLeft))
}
