package sales

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/plantops/plantops/internal/models"
	"github.com/plantops/plantops/internal/notify"
	"github.com/plantops/plantops/internal/services/manufacturing"
	"github.com/plantops/plantops/internal/services/reservations"
	"github.com/plantops/plantops/internal/util"
)

// Options wires the collaborators of the sales service.
type Options struct {
	Clock         util.Clock
	Dispatcher    *notify.Dispatcher
	Manufacturing *manufacturing.Service
}

// CreateQuotationInput contains data for creating a quotation.
type CreateQuotationInput struct {
	CustomerName string      `json:"customer_name" validate:"required"`
	ValidUntil   *time.Time  `json:"valid_until"`
	Notes        string      `json:"notes"`
	Items        []ItemInput `json:"items" validate:"min=1,dive"`
}

// ItemInput is one quotation line. Lines without a product are commercial
// only.
type ItemInput struct {
	ProductID   *string         `json:"product_id"`
	Description string          `json:"description" validate:"required"`
	Quantity    decimal.Decimal `json:"quantity" validate:"dgt0"`
	UnitPrice   decimal.Decimal `json:"unit_price" validate:"dgte0"`
}

// Acceptance is the result of accepting a quotation.
type Acceptance struct {
	Quotation    *models.Quotation            `json:"quotation"`
	Reservations []*models.Reservation        `json:"reservations"`
	Orders       []*models.ManufacturingOrder `json:"manufacturing_orders,omitempty"`
}

// Closure is the result of a transition that released reservations.
type Closure struct {
	Quotation  *models.Quotation     `json:"quotation,omitempty"`
	SalesOrder *models.SalesOrder    `json:"sales_order,omitempty"`
	Released   *reservations.Release `json:"released"`
}
