package catalog

import "github.com/shopspring/decimal"

// CreateProductInput contains data for creating a product. Assigned
// quantity is derived and cannot be supplied.
type CreateProductInput struct {
	SKU          string          `json:"sku" validate:"required,max=64"`
	Name         string          `json:"name" validate:"required"`
	Unit         string          `json:"unit"`
	OpeningStock decimal.Decimal `json:"opening_stock" validate:"dgte0"`
	MinimumStock decimal.Decimal `json:"minimum_stock" validate:"dgte0"`
	ReorderPoint decimal.Decimal `json:"reorder_point" validate:"dgte0"`
	CreatedBy    *string         `json:"-"`
}

// CreateRawMaterialInput contains data for creating a raw material.
type CreateRawMaterialInput struct {
	SKU          string          `json:"sku" validate:"required,max=64"`
	Name         string          `json:"name" validate:"required"`
	Unit         string          `json:"unit"`
	OpeningStock decimal.Decimal `json:"opening_stock" validate:"dgte0"`
	MinimumStock decimal.Decimal `json:"minimum_stock" validate:"dgte0"`
	ReorderPoint decimal.Decimal `json:"reorder_point" validate:"dgte0"`
	CreatedBy    *string         `json:"-"`
}

// AddBOMLineInput contains data for adding a material to a product's BOM.
type AddBOMLineInput struct {
	ProductID       string          `json:"product_id" validate:"required"`
	RawMaterialID   string          `json:"raw_material_id" validate:"required"`
	QuantityPerUnit decimal.Decimal `json:"quantity_per_unit" validate:"dgt0"`
	Notes           string          `json:"notes"`
}
