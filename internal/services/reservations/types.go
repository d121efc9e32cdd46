package reservations

import (
	"github.com/shopspring/decimal"

	"github.com/plantops/plantops/internal/models"
)

// CreateInput contains data for creating a reservation.
type CreateInput struct {
	ProductID   string          `json:"product_id" validate:"required"`
	QuotationID *string         `json:"quotation_id"`
	MOID        *string         `json:"mo_id"`
	Quantity    decimal.Decimal `json:"quantity" validate:"dgt0"`
}

// Availability is a product's available-to-promise position.
type Availability struct {
	ProductID        string          `json:"product_id"`
	CurrentStock     decimal.Decimal `json:"current_stock"`
	AssignedQuantity decimal.Decimal `json:"assigned_quantity"`
	Available        decimal.Decimal `json:"available"`
	OverCommitted    bool            `json:"over_committed"`
}

// Release lists the reservations a release completed and the products whose
// assigned quantity was recomputed.
type Release struct {
	Reservations []*models.Reservation `json:"reservations"`
	Products     []string              `json:"products"`
}
