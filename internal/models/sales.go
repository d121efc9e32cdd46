package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuotationStatus is the lifecycle state of a quotation.
type QuotationStatus string

const (
	QuotationStatusDraft     QuotationStatus = "draft"
	QuotationStatusSent      QuotationStatus = "sent"
	QuotationStatusAccepted  QuotationStatus = "accepted"
	QuotationStatusRejected  QuotationStatus = "rejected"
	QuotationStatusExpired   QuotationStatus = "expired"
	QuotationStatusConverted QuotationStatus = "converted"
)

// Decidable reports whether the quotation can still be accepted or rejected.
func (s QuotationStatus) Decidable() bool {
	return s == QuotationStatusDraft || s == QuotationStatusSent
}

// Quotation is a commercial offer that can turn into reservations and MOs.
type Quotation struct {
	ID              string          `json:"id"`
	QuotationNumber string          `json:"quotation_number"`
	CustomerName    string          `json:"customer_name"`
	Status          QuotationStatus `json:"status"`
	ValidUntil      *time.Time      `json:"valid_until,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`

	Items []*QuotationItem `json:"items,omitempty"`
}

// QuotationItem is one line of a quotation. Lines without a product link
// (services, freight) never produce reservations or MOs.
type QuotationItem struct {
	ID          string          `json:"id"`
	QuotationID string          `json:"quotation_id"`
	ProductID   *string         `json:"product_id,omitempty"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// LineTotal is quantity times unit price.
func (i *QuotationItem) LineTotal() decimal.Decimal {
	return i.Quantity.Mul(i.UnitPrice)
}

// SalesOrderStatus is the shipment-oriented lifecycle of a sales order.
type SalesOrderStatus string

const (
	SalesOrderStatusPending   SalesOrderStatus = "pending"
	SalesOrderStatusConfirmed SalesOrderStatus = "confirmed"
	SalesOrderStatusShipped   SalesOrderStatus = "shipped"
	SalesOrderStatusDelivered SalesOrderStatus = "delivered"
	SalesOrderStatusCancelled SalesOrderStatus = "cancelled"
)

// Open reports whether the order can still ship or be cancelled.
func (s SalesOrderStatus) Open() bool {
	return s == SalesOrderStatusPending || s == SalesOrderStatusConfirmed
}

// SalesOrder is the downstream commitment created from an accepted quotation.
type SalesOrder struct {
	ID           string           `json:"id"`
	OrderNumber  string           `json:"order_number"`
	QuotationID  *string          `json:"quotation_id,omitempty"`
	CustomerName string           `json:"customer_name"`
	Status       SalesOrderStatus `json:"status"`
	ShippedAt    *time.Time       `json:"shipped_at,omitempty"`
	Notes        string           `json:"notes,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`

	Items []*SalesOrderItem `json:"items,omitempty"`
}

// SalesOrderItem is one line of a sales order.
type SalesOrderItem struct {
	ID           string          `json:"id"`
	SalesOrderID string          `json:"sales_order_id"`
	ProductID    *string         `json:"product_id,omitempty"`
	Description  string          `json:"description"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
}
