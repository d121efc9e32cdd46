package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// MOStatus is the lifecycle state of a manufacturing order.
type MOStatus string

const (
	MOStatusPlanned    MOStatus = "planned"
	MOStatusInProgress MOStatus = "in_progress"
	MOStatusUnderQC    MOStatus = "under_qc"
	// MOStatusCompleted is never persisted; production completion moves
	// straight to under_qc. Rows carrying it from older data are still
	// deletable.
	MOStatusCompleted  MOStatus = "completed"
	MOStatusQCRejected MOStatus = "qc_rejected"
	MOStatusClosed     MOStatus = "closed"
	MOStatusCancelled  MOStatus = "cancelled"
)

// Valid returns true if the MO status is known.
func (s MOStatus) Valid() bool {
	switch s {
	case MOStatusPlanned, MOStatusInProgress, MOStatusUnderQC, MOStatusCompleted,
		MOStatusQCRejected, MOStatusClosed, MOStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further lifecycle transition is possible.
func (s MOStatus) Terminal() bool {
	return s == MOStatusClosed || s == MOStatusCancelled || s == MOStatusQCRejected
}

var moTransitions = map[MOStatus][]MOStatus{
	MOStatusPlanned:    {MOStatusInProgress, MOStatusCancelled},
	MOStatusInProgress: {MOStatusUnderQC, MOStatusCancelled},
	MOStatusUnderQC:    {MOStatusClosed, MOStatusQCRejected},
}

// CanTransition reports whether from -> to is a legal lifecycle edge.
func (s MOStatus) CanTransition(to MOStatus) bool {
	for _, next := range moTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Priority ranks manufacturing orders for the shop floor.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid returns true if the priority is known.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}

// ManufacturingOrder is one unit of production work for a primary product
// plus optional co-produced items.
type ManufacturingOrder struct {
	ID           string          `json:"id"`
	MONumber     string          `json:"mo_number"`
	ProductID    string          `json:"product_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	Status       MOStatus        `json:"status"`
	Priority     Priority        `json:"priority"`
	SalesOrderID *string         `json:"sales_order_id,omitempty"`
	QuotationID  *string         `json:"quotation_id,omitempty"`
	PlannedStart *time.Time      `json:"planned_start,omitempty"`
	PlannedEnd   *time.Time      `json:"planned_end,omitempty"`
	ActualStart  *time.Time      `json:"actual_start,omitempty"`
	ActualEnd    *time.Time      `json:"actual_end,omitempty"`
	Notes        string          `json:"notes,omitempty"`
	CreatedBy    *string         `json:"created_by,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`

	Items []*MoItem `json:"items,omitempty"`
}

// Validate checks if the manufacturing order data is valid.
func (m *ManufacturingOrder) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("id is required")
	}
	if m.MONumber == "" {
		return fmt.Errorf("mo_number is required")
	}
	if m.ProductID == "" {
		return fmt.Errorf("product_id is required")
	}
	if !m.Quantity.IsPositive() {
		return fmt.Errorf("quantity must be positive")
	}
	if !m.Status.Valid() {
		return fmt.Errorf("invalid status: %s", m.Status)
	}
	if !m.Priority.Valid() {
		return fmt.Errorf("invalid priority: %s", m.Priority)
	}
	return nil
}

// BuildToStock reports whether finished output goes back into inventory.
// Orders linked to a sales order are earmarked for direct delivery.
func (m *ManufacturingOrder) BuildToStock() bool {
	return m.SalesOrderID == nil
}

// ProductQuantities returns the primary product followed by every MoItem.
func (m *ManufacturingOrder) ProductQuantities() []ProductQuantity {
	out := make([]ProductQuantity, 0, len(m.Items)+1)
	out = append(out, ProductQuantity{ProductID: m.ProductID, Quantity: m.Quantity})
	for _, item := range m.Items {
		out = append(out, ProductQuantity{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return out
}

// ProductQuantity pairs a product with a quantity.
type ProductQuantity struct {
	ProductID string          `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// MoItemStatus is the lifecycle state of a co-produced item.
type MoItemStatus string

const (
	MoItemStatusPending    MoItemStatus = "pending"
	MoItemStatusInProgress MoItemStatus = "in_progress"
	MoItemStatusCompleted  MoItemStatus = "completed"
)

// MoItem is an additional product produced by the same order.
type MoItem struct {
	ID        string          `json:"id"`
	MOID      string          `json:"mo_id"`
	ProductID string          `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	Status    MoItemStatus    `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// MoDeletionAudit preserves a full snapshot of a manufacturing order
// taken immediately before the row was removed.
type MoDeletionAudit struct {
	ID        string    `json:"id"`
	MOID      string    `json:"mo_id"`
	MONumber  string    `json:"mo_number"`
	Snapshot  string    `json:"snapshot"` // JSON of the order including items
	DeletedBy *string   `json:"deleted_by,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	DeletedAt time.Time `json:"deleted_at"`
}

// MOFilter defines filters for querying manufacturing orders.
type MOFilter struct {
	Status       *MOStatus
	ProductID    string
	QuotationID  string
	SalesOrderID string
}

// MOList represents a paginated list of manufacturing orders.
type MOList struct {
	Orders     []*ManufacturingOrder `json:"orders"`
	Total      int                   `json:"total"`
	Page       int                   `json:"page"`
	TotalPages int                   `json:"total_pages"`
}
