package models

import "time"

// Capability is a role held by a user, used to pick alert recipients.
type Capability string

const (
	CapabilityAdmin              Capability = "admin"
	CapabilityHR                 Capability = "hr"
	CapabilityManufactureManager Capability = "manufacture_manager"
	CapabilityInventoryManager   Capability = "inventory_manager"
	CapabilityPurchasing         Capability = "purchasing"
	CapabilityCFO                Capability = "cfo"
)

// Valid returns true if the capability is known.
func (c Capability) Valid() bool {
	switch c {
	case CapabilityAdmin, CapabilityHR, CapabilityManufactureManager,
		CapabilityInventoryManager, CapabilityPurchasing, CapabilityCFO:
		return true
	default:
		return false
	}
}

// Severity grades a notification.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Notification is a fire-and-forget alert for a set of users.
type Notification struct {
	UserIDs       []string `json:"user_ids"`
	Title         string   `json:"title"`
	Message       string   `json:"message"`
	Severity      Severity `json:"severity"`
	ReferenceType string   `json:"reference_type"`
	ReferenceID   string   `json:"reference_id"`
}

// StoredNotification is one recipient's copy of a notification.
type StoredNotification struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	Title         string     `json:"title"`
	Message       string     `json:"message"`
	Severity      Severity   `json:"severity"`
	ReferenceType string     `json:"reference_type"`
	ReferenceID   string     `json:"reference_id"`
	ReadAt        *time.Time `json:"read_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}
