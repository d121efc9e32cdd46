// Package bom resolves bill-of-materials requirements against raw material
// stock. Everything here is read-only.
package bom

import (
	"context"
	"database/sql"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/plantops/plantops/internal/models"
	"github.com/plantops/plantops/internal/repository"
)

// Resolver answers material availability questions.
type Resolver struct {
	catalog *repository.CatalogRepository
}

// NewResolver creates a new BOM resolver.
func NewResolver(db *sql.DB) *Resolver {
	return &Resolver{catalog: repository.NewCatalogRepository(db)}
}

// CheckAvailability reports the material lines needed to make quantity units
// of a product. A product without BOM lines is fully available.
func (r *Resolver) CheckAvailability(ctx context.Context, productID string, quantity decimal.Decimal) (*Availability, error) {
	return r.CheckAvailabilityTx(ctx, nil, productID, quantity)
}

// CheckAvailabilityTx is CheckAvailability reading through tx.
func (r *Resolver) CheckAvailabilityTx(ctx context.Context, tx *sql.Tx, productID string, quantity decimal.Decimal) (*Availability, error) {
	if !quantity.IsPositive() {
		return nil, &models.ValidationError{Entity: "availability check", Field: "quantity", Message: "must be greater than zero"}
	}
	if _, err := r.catalog.GetProduct(ctx, tx, productID); err != nil {
		return nil, err
	}

	lines, err := r.catalog.ListBOM(ctx, tx, productID)
	if err != nil {
		return nil, err
	}

	a := &Availability{
		ProductID:      productID,
		Quantity:       quantity,
		HasBOM:         len(lines) > 0,
		Lines:          make([]Line, 0, len(lines)),
		FullyAvailable: true,
	}

	for _, bl := range lines {
		req := requirement(bl.Material, bl.QuantityPerUnit.Mul(quantity))
		if req.Short() {
			a.FullyAvailable = false
		}
		a.Lines = append(a.Lines, Line{
			Requirement:     req,
			BOMLineID:       bl.ID,
			QuantityPerUnit: bl.QuantityPerUnit,
		})
	}

	return a, nil
}

// Requirements aggregates the BOM demand of several products per raw
// material, ordered by material SKU.
func (r *Resolver) Requirements(ctx context.Context, tx *sql.Tx, demand []models.ProductQuantity) ([]Requirement, error) {
	required := make(map[string]decimal.Decimal)
	materials := make(map[string]*models.RawMaterial)

	for _, d := range demand {
		lines, err := r.catalog.ListBOM(ctx, tx, d.ProductID)
		if err != nil {
			return nil, err
		}
		for _, bl := range lines {
			required[bl.RawMaterialID] = required[bl.RawMaterialID].Add(bl.QuantityPerUnit.Mul(d.Quantity))
			materials[bl.RawMaterialID] = bl.Material
		}
	}

	reqs := make([]Requirement, 0, len(required))
	for id, qty := range required {
		reqs = append(reqs, requirement(materials[id], qty))
	}
	sort.Slice(reqs, func(i, j int) bool {
		return reqs[i].Material.SKU < reqs[j].Material.SKU
	})

	return reqs, nil
}

func requirement(m *models.RawMaterial, required decimal.Decimal) Requirement {
	shortage := required.Sub(m.CurrentStock)
	if shortage.IsNegative() {
		shortage = decimal.Zero
	}
	return Requirement{
		Material:  m,
		Required:  required,
		Available: m.CurrentStock,
		Shortage:  shortage,
	}
}
