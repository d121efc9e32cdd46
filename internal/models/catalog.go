package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ItemKind distinguishes the two stock-bearing entities.
type ItemKind string

const (
	ItemKindProduct     ItemKind = "product"
	ItemKindRawMaterial ItemKind = "raw_material"
)

// Valid returns true if the item kind is known.
func (k ItemKind) Valid() bool {
	return k == ItemKindProduct || k == ItemKindRawMaterial
}

// Table returns the table holding stock counters for this kind.
func (k ItemKind) Table() string {
	if k == ItemKindRawMaterial {
		return "raw_materials"
	}
	return "products"
}

// Product is a finished good. AssignedQuantity is derived from open
// reservations and is only ever written by the reservation manager.
type Product struct {
	ID               string          `json:"id"`
	SKU              string          `json:"sku"`
	Name             string          `json:"name"`
	Unit             string          `json:"unit"`
	CurrentStock     decimal.Decimal `json:"current_stock"`
	MinimumStock     decimal.Decimal `json:"minimum_stock"`
	ReorderPoint     decimal.Decimal `json:"reorder_point"`
	AssignedQuantity decimal.Decimal `json:"assigned_quantity"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// AvailableToPromise is on-hand stock minus open reservations.
// A negative value signals over-commitment, not an error.
func (p *Product) AvailableToPromise() decimal.Decimal {
	return p.CurrentStock.Sub(p.AssignedQuantity)
}

// IsOverCommitted reports whether reservations exceed on-hand stock.
func (p *Product) IsOverCommitted() bool {
	return p.AvailableToPromise().IsNegative()
}

// Validate checks if the product data is valid.
func (p *Product) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("id is required")
	}
	if p.SKU == "" {
		return fmt.Errorf("sku is required")
	}
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	return nil
}

// RawMaterial is a stock-bearing input consumed by production.
type RawMaterial struct {
	ID           string          `json:"id"`
	SKU          string          `json:"sku"`
	Name         string          `json:"name"`
	Unit         string          `json:"unit"`
	CurrentStock decimal.Decimal `json:"current_stock"`
	MinimumStock decimal.Decimal `json:"minimum_stock"`
	ReorderPoint decimal.Decimal `json:"reorder_point"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// BelowReorderPoint reports whether the material needs replenishing.
func (m *RawMaterial) BelowReorderPoint() bool {
	return m.CurrentStock.LessThanOrEqual(m.ReorderPoint)
}

// Validate checks if the raw material data is valid.
func (m *RawMaterial) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("id is required")
	}
	if m.SKU == "" {
		return fmt.Errorf("sku is required")
	}
	if m.Name == "" {
		return fmt.Errorf("name is required")
	}
	return nil
}

// BOMLine is the quantity of one raw material needed per unit of a product.
type BOMLine struct {
	ID              string          `json:"id"`
	ProductID       string          `json:"product_id"`
	RawMaterialID   string          `json:"raw_material_id"`
	QuantityPerUnit decimal.Decimal `json:"quantity_per_unit"`
	Notes           string          `json:"notes,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`

	// Joined fields
	Material *RawMaterial `json:"material,omitempty"`
}

// ProductList represents a paginated list of products.
type ProductList struct {
	Products   []*Product `json:"products"`
	Total      int        `json:"total"`
	Page       int        `json:"page"`
	TotalPages int        `json:"total_pages"`
}
