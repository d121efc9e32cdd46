// Package catalog provides product, raw material and BOM management.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/plantops/plantops/internal/database"
	"github.com/plantops/plantops/internal/models"
	"github.com/plantops/plantops/internal/repository"
	"github.com/plantops/plantops/internal/services/ledger"
	"github.com/plantops/plantops/internal/util"
	"github.com/plantops/plantops/internal/validate"
)

// Service provides catalog operations.
type Service struct {
	db          *sql.DB
	catalog     *repository.CatalogRepository
	ledger      *ledger.Service
	idGenerator *util.IDGenerator
	clock       util.Clock
}

// NewService creates a new catalog service.
func NewService(db *sql.DB, clock util.Clock) *Service {
	return &Service{
		db:          db,
		catalog:     repository.NewCatalogRepository(db),
		ledger:      ledger.NewService(db, clock),
		idGenerator: util.NewIDGenerator(),
		clock:       clock,
	}
}

// ============================================================================
// PRODUCTS
// ============================================================================

// CreateProduct creates a product. Opening stock is booked through the
// ledger so the counter reconciles from the first row.
func (s *Service) CreateProduct(ctx context.Context, input CreateProductInput) (*models.Product, error) {
	if err := validate.Struct("product", input); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	p := &models.Product{
		ID:           s.idGenerator.NewID(),
		SKU:          input.SKU,
		Name:         input.Name,
		Unit:         input.Unit,
		MinimumStock: input.MinimumStock,
		ReorderPoint: input.ReorderPoint,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.catalog.CreateProduct(ctx, tx, p); err != nil {
			return fmt.Errorf("creating product: %w", err)
		}
		return s.bookOpeningStock(ctx, tx, models.ItemKindProduct, p.ID, input.OpeningStock, input.CreatedBy)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("product created", "product_id", p.ID, "sku", p.SKU)
	return s.catalog.GetProduct(ctx, nil, p.ID)
}

// GetProduct retrieves a product by ID.
func (s *Service) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	return s.catalog.GetProduct(ctx, nil, id)
}

// ListProducts retrieves a page of products.
func (s *Service) ListProducts(ctx context.Context, page models.Pagination) (*models.ProductList, error) {
	return s.catalog.ListProducts(ctx, page)
}

// ============================================================================
// RAW MATERIALS
// ============================================================================

// CreateRawMaterial creates a raw material with its opening stock.
func (s *Service) CreateRawMaterial(ctx context.Context, input CreateRawMaterialInput) (*models.RawMaterial, error) {
	if err := validate.Struct("raw material", input); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	m := &models.RawMaterial{
		ID:           s.idGenerator.NewID(),
		SKU:          input.SKU,
		Name:         input.Name,
		Unit:         input.Unit,
		MinimumStock: input.MinimumStock,
		ReorderPoint: input.ReorderPoint,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.catalog.CreateRawMaterial(ctx, tx, m); err != nil {
			return fmt.Errorf("creating raw material: %w", err)
		}
		return s.bookOpeningStock(ctx, tx, models.ItemKindRawMaterial, m.ID, input.OpeningStock, input.CreatedBy)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("raw material created", "raw_material_id", m.ID, "sku", m.SKU)
	return s.catalog.GetRawMaterial(ctx, nil, m.ID)
}

// GetRawMaterial retrieves a raw material by ID.
func (s *Service) GetRawMaterial(ctx context.Context, id string) (*models.RawMaterial, error) {
	return s.catalog.GetRawMaterial(ctx, nil, id)
}

// ListRawMaterials retrieves all raw materials.
func (s *Service) ListRawMaterials(ctx context.Context) ([]*models.RawMaterial, error) {
	return s.catalog.ListRawMaterials(ctx)
}

func (s *Service) bookOpeningStock(ctx context.Context, tx *sql.Tx, kind models.ItemKind, id string, qty decimal.Decimal, by *string) error {
	if !qty.IsPositive() {
		return nil
	}
	_, err := s.ledger.ReplenishTx(ctx, tx, ledger.Entry{
		Kind:          kind,
		ItemID:        id,
		Quantity:      qty,
		ReferenceType: models.ReferenceOpeningStock,
		ReferenceID:   id,
		Note:          "Opening stock",
		CreatedBy:     by,
	})
	return err
}

// ============================================================================
// BILL OF MATERIALS
// ============================================================================

// AddBOMLine adds a raw material to a product's BOM. A material appears at
// most once per product.
func (s *Service) AddBOMLine(ctx context.Context, input AddBOMLineInput) (*models.BOMLine, error) {
	if err := validate.Struct("bom line", input); err != nil {
		return nil, err
	}

	line := &models.BOMLine{
		ID:              s.idGenerator.NewID(),
		ProductID:       input.ProductID,
		RawMaterialID:   input.RawMaterialID,
		QuantityPerUnit: input.QuantityPerUnit,
		Notes:           input.Notes,
		CreatedAt:       s.clock.Now(),
	}

	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := s.catalog.GetProduct(ctx, tx, input.ProductID); err != nil {
			return err
		}
		m, err := s.catalog.GetRawMaterial(ctx, tx, input.RawMaterialID)
		if err != nil {
			return err
		}

		existing, err := s.catalog.ListBOM(ctx, tx, input.ProductID)
		if err != nil {
			return err
		}
		for _, l := range existing {
			if l.RawMaterialID == input.RawMaterialID {
				return &models.ConflictError{
					Entity: "bom line",
					ID:     l.ID,
					Reason: fmt.Sprintf("material %s already on the BOM", m.SKU),
				}
			}
		}

		line.Material = m
		return s.catalog.CreateBOMLine(ctx, tx, line)
	})
	if err != nil {
		return nil, err
	}

	return line, nil
}

// RemoveBOMLine deletes a BOM line.
func (s *Service) RemoveBOMLine(ctx context.Context, id string) error {
	return s.catalog.DeleteBOMLine(ctx, nil, id)
}

// ListBOM retrieves a product's BOM lines with their materials.
func (s *Service) ListBOM(ctx context.Context, productID string) ([]*models.BOMLine, error) {
	if _, err := s.catalog.GetProduct(ctx, nil, productID); err != nil {
		return nil, err
	}
	return s.catalog.ListBOM(ctx, nil, productID)
}
