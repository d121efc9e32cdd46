package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/plantops/plantops/internal/models"
)

// CatalogRepository handles products, raw materials and BOM lines.
type CatalogRepository struct {
	db *sql.DB
}

// NewCatalogRepository creates a new catalog repository.
func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// ============================================================================
// PRODUCTS
// ============================================================================

const productColumns = `id, sku, name, unit, current_stock, minimum_stock,
	reorder_point, assigned_quantity, created_at, updated_at`

// CreateProduct inserts a new product.
func (r *CatalogRepository) CreateProduct(ctx context.Context, tx *sql.Tx, p *models.Product) error {
	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := conn(r.db, tx).ExecContext(ctx, query,
		p.ID, p.SKU, p.Name, p.Unit,
		p.CurrentStock, p.MinimumStock, p.ReorderPoint, p.AssignedQuantity,
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting product: %w", err)
	}
	return nil
}

// GetProduct retrieves a product by ID.
func (r *CatalogRepository) GetProduct(ctx context.Context, tx *sql.Tx, id string) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = ?`

	p, err := scanProduct(conn(r.db, tx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Entity: "product", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("scanning product: %w", err)
	}
	return p, nil
}

// ListProducts retrieves a page of products ordered by SKU.
func (r *CatalogRepository) ListProducts(ctx context.Context, page models.Pagination) (*models.ProductList, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products").Scan(&total); err != nil {
		return nil, fmt.Errorf("counting products: %w", err)
	}

	query := `SELECT ` + productColumns + ` FROM products ORDER BY sku LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, page.Limit(), page.Offset())
	if err != nil {
		return nil, fmt.Errorf("querying products: %w", err)
	}
	defer rows.Close()

	list := &models.ProductList{Total: total, Page: page.Page, TotalPages: page.TotalPages(total)}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning product row: %w", err)
		}
		list.Products = append(list.Products, p)
	}
	return list, rows.Err()
}

// SetAssignedQuantity overwrites the derived reservation total.
func (r *CatalogRepository) SetAssignedQuantity(ctx context.Context, tx *sql.Tx, productID string, qty decimal.Decimal, at time.Time) error {
	res, err := conn(r.db, tx).ExecContext(ctx,
		"UPDATE products SET assigned_quantity = ?, updated_at = ? WHERE id = ?",
		qty, formatTime(at), productID,
	)
	if err != nil {
		return fmt.Errorf("updating assigned quantity: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return &models.NotFoundError{Entity: "product", ID: productID}
	}
	return nil
}

func scanProduct(s rowScanner) (*models.Product, error) {
	var p models.Product
	var createdStr, updatedStr string

	err := s.Scan(
		&p.ID, &p.SKU, &p.Name, &p.Unit,
		&p.CurrentStock, &p.MinimumStock, &p.ReorderPoint, &p.AssignedQuantity,
		&createdStr, &updatedStr,
	)
	if err != nil {
		return nil, err
	}

	p.CreatedAt = parseTime(createdStr)
	p.UpdatedAt = parseTime(updatedStr)
	return &p, nil
}

// ============================================================================
// RAW MATERIALS
// ============================================================================

const rawMaterialColumns = `id, sku, name, unit, current_stock, minimum_stock,
	reorder_point, created_at, updated_at`

// CreateRawMaterial inserts a new raw material.
func (r *CatalogRepository) CreateRawMaterial(ctx context.Context, tx *sql.Tx, m *models.RawMaterial) error {
	query := `
		INSERT INTO raw_materials (` + rawMaterialColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := conn(r.db, tx).ExecContext(ctx, query,
		m.ID, m.SKU, m.Name, m.Unit,
		m.CurrentStock, m.MinimumStock, m.ReorderPoint,
		formatTime(m.CreatedAt), formatTime(m.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting raw material: %w", err)
	}
	return nil
}

// GetRawMaterial retrieves a raw material by ID.
func (r *CatalogRepository) GetRawMaterial(ctx context.Context, tx *sql.Tx, id string) (*models.RawMaterial, error) {
	query := `SELECT ` + rawMaterialColumns + ` FROM raw_materials WHERE id = ?`

	m, err := scanRawMaterial(conn(r.db, tx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Entity: "raw material", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("scanning raw material: %w", err)
	}
	return m, nil
}

// ListRawMaterials retrieves all raw materials ordered by SKU.
func (r *CatalogRepository) ListRawMaterials(ctx context.Context) ([]*models.RawMaterial, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+rawMaterialColumns+` FROM raw_materials ORDER BY sku`)
	if err != nil {
		return nil, fmt.Errorf("querying raw materials: %w", err)
	}
	defer rows.Close()

	var materials []*models.RawMaterial
	for rows.Next() {
		m, err := scanRawMaterial(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning raw material row: %w", err)
		}
		materials = append(materials, m)
	}
	return materials, rows.Err()
}

func scanRawMaterial(s rowScanner) (*models.RawMaterial, error) {
	var m models.RawMaterial
	var createdStr, updatedStr string

	err := s.Scan(
		&m.ID, &m.SKU, &m.Name, &m.Unit,
		&m.CurrentStock, &m.MinimumStock, &m.ReorderPoint,
		&createdStr, &updatedStr,
	)
	if err != nil {
		return nil, err
	}

	m.CreatedAt = parseTime(createdStr)
	m.UpdatedAt = parseTime(updatedStr)
	return &m, nil
}

// ============================================================================
// STOCK COUNTERS
// ============================================================================

// GetStock reads current_stock for a product or raw material.
func (r *CatalogRepository) GetStock(ctx context.Context, tx *sql.Tx, kind models.ItemKind, id string) (decimal.Decimal, error) {
	var stock decimal.Decimal
	query := fmt.Sprintf("SELECT current_stock FROM %s WHERE id = ?", kind.Table())

	err := conn(r.db, tx).QueryRowContext(ctx, query, id).Scan(&stock)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, &models.NotFoundError{Entity: string(kind), ID: id}
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("reading stock: %w", err)
	}
	return stock, nil
}

// SetStock overwrites current_stock for a product or raw material.
func (r *CatalogRepository) SetStock(ctx context.Context, tx *sql.Tx, kind models.ItemKind, id string, qty decimal.Decimal, at time.Time) error {
	query := fmt.Sprintf("UPDATE %s SET current_stock = ?, updated_at = ? WHERE id = ?", kind.Table())

	res, err := conn(r.db, tx).ExecContext(ctx, query, qty, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("updating stock: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return &models.NotFoundError{Entity: string(kind), ID: id}
	}
	return nil
}

// ============================================================================
// BILL OF MATERIALS
// ============================================================================

// CreateBOMLine inserts a BOM line.
func (r *CatalogRepository) CreateBOMLine(ctx context.Context, tx *sql.Tx, line *models.BOMLine) error {
	query := `
		INSERT INTO bom_lines (id, product_id, raw_material_id, quantity_per_unit, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err := conn(r.db, tx).ExecContext(ctx, query,
		line.ID, line.ProductID, line.RawMaterialID, line.QuantityPerUnit,
		nullableString(line.Notes), formatTime(line.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting bom line: %w", err)
	}
	return nil
}

// ListBOM retrieves the BOM lines of a product with their raw materials joined.
func (r *CatalogRepository) ListBOM(ctx context.Context, tx *sql.Tx, productID string) ([]*models.BOMLine, error) {
	query := `
		SELECT b.id, b.product_id, b.raw_material_id, b.quantity_per_unit, b.notes, b.created_at,
			m.id, m.sku, m.name, m.unit, m.current_stock, m.minimum_stock,
			m.reorder_point, m.created_at, m.updated_at
		FROM bom_lines b
		JOIN raw_materials m ON m.id = b.raw_material_id
		WHERE b.product_id = ?
		ORDER BY m.sku`

	rows, err := conn(r.db, tx).QueryContext(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("querying bom lines: %w", err)
	}
	defer rows.Close()

	var lines []*models.BOMLine
	for rows.Next() {
		var line models.BOMLine
		var m models.RawMaterial
		var notes sql.NullString
		var createdStr, mCreatedStr, mUpdatedStr string

		err := rows.Scan(
			&line.ID, &line.ProductID, &line.RawMaterialID, &line.QuantityPerUnit, &notes, &createdStr,
			&m.ID, &m.SKU, &m.Name, &m.Unit, &m.CurrentStock, &m.MinimumStock,
			&m.ReorderPoint, &mCreatedStr, &mUpdatedStr,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning bom line: %w", err)
		}

		line.Notes = notes.String
		line.CreatedAt = parseTime(createdStr)
		m.CreatedAt = parseTime(mCreatedStr)
		m.UpdatedAt = parseTime(mUpdatedStr)
		line.Material = &m
		lines = append(lines, &line)
	}
	return lines, rows.Err()
}

// DeleteBOMLine removes a BOM line.
func (r *CatalogRepository) DeleteBOMLine(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := conn(r.db, tx).ExecContext(ctx, "DELETE FROM bom_lines WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting bom line: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return &models.NotFoundError{Entity: "bom line", ID: id}
	}
	return nil
}
