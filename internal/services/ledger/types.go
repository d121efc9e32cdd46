package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/plantops/plantops/internal/models"
)

// Entry describes one stock movement against a product or raw material.
type Entry struct {
	Kind          models.ItemKind `json:"item_kind" validate:"required,oneof=product raw_material"`
	ItemID        string          `json:"item_id" validate:"required"`
	Quantity      decimal.Decimal `json:"quantity" validate:"dgt0"`
	ReferenceType string          `json:"reference_type" validate:"required"`
	ReferenceID   string          `json:"reference_id" validate:"required"`
	Note          string          `json:"note"`
	CreatedBy     *string         `json:"created_by"`
}

// Adjustment describes a signed correction to a stock counter.
type Adjustment struct {
	Kind          models.ItemKind `json:"item_kind" validate:"required,oneof=product raw_material"`
	ItemID        string          `json:"item_id" validate:"required"`
	Delta         decimal.Decimal `json:"delta" validate:"dne0"`
	ReferenceType string          `json:"reference_type"`
	ReferenceID   string          `json:"reference_id" validate:"required"`
	Note          string          `json:"note"`
	CreatedBy     *string         `json:"created_by"`
}

// Result reports the effect of a ledger primitive. Applied is false when the
// same movement was already recorded and stock was left untouched.
type Result struct {
	Applied   bool            `json:"applied"`
	Before    decimal.Decimal `json:"before"`
	After     decimal.Decimal `json:"after"`
	Shortfall decimal.Decimal `json:"shortfall"`
}
