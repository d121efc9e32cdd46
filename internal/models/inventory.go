package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType represents the direction of an inventory ledger row.
type TransactionType string

const (
	TransactionTypeIn         TransactionType = "in"
	TransactionTypeOut        TransactionType = "out"
	TransactionTypeAdjustment TransactionType = "adjustment"
)

func (t TransactionType) String() string {
	return string(t)
}

// Valid returns true if the transaction type is known.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeIn, TransactionTypeOut, TransactionTypeAdjustment:
		return true
	default:
		return false
	}
}

// Reference types written to the ledger.
const (
	ReferenceManufacturingOrder = "manufacturing_order"
	ReferenceQualityControl     = "quality_control"
	ReferenceOpeningStock       = "opening_stock"
	ReferenceStockAdjustment    = "stock_adjustment"
)

// InventoryTransaction is an immutable ledger row. Quantity is always
// positive for in/out rows; adjustment rows carry a signed quantity.
type InventoryTransaction struct {
	ID            string          `json:"id"`
	Type          TransactionType `json:"type"`
	Quantity      decimal.Decimal `json:"quantity"`
	ItemKind      ItemKind        `json:"item_kind"`
	ItemID        string          `json:"item_id"`
	ReferenceType string          `json:"reference_type"`
	ReferenceID   string          `json:"reference_id"`
	Notes         string          `json:"notes,omitempty"`
	CreatedBy     *string         `json:"created_by,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// SignedQuantity returns the row's effect on the stock balance.
func (t *InventoryTransaction) SignedQuantity() decimal.Decimal {
	if t.Type == TransactionTypeOut {
		return t.Quantity.Neg()
	}
	return t.Quantity
}

// TransactionFilter defines filters for querying ledger rows.
type TransactionFilter struct {
	ItemKind      ItemKind
	ItemID        string
	Type          *TransactionType
	ReferenceType string
	ReferenceID   string
	StartDate     *time.Time
	EndDate       *time.Time
}

// TransactionList represents a paginated list of ledger rows.
type TransactionList struct {
	Transactions []*InventoryTransaction `json:"transactions"`
	Total        int                     `json:"total"`
	Page         int                     `json:"page"`
	TotalPages   int                     `json:"total_pages"`
}

// Reconciliation compares the ledger balance against the stored counter.
type Reconciliation struct {
	ItemKind      ItemKind        `json:"item_kind"`
	ItemID        string          `json:"item_id"`
	LedgerBalance decimal.Decimal `json:"ledger_balance"`
	CurrentStock  decimal.Decimal `json:"current_stock"`
	Drift         decimal.Decimal `json:"drift"`
}

// Balanced reports whether the counter matches the ledger.
func (r *Reconciliation) Balanced() bool {
	return r.Drift.IsZero()
}
