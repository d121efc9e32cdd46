package seed

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math/rand"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/plantops/plantops/internal/models"
	"github.com/plantops/plantops/internal/util"
)

// Config configures the seed data generator.
type Config struct {
	// MaxOpeningStock bounds the random opening stock of each item.
	MaxOpeningStock int
	RandomSeed      int64
	Now             time.Time
}

// DefaultConfig returns a default seed configuration.
func DefaultConfig() Config {
	return Config{
		MaxOpeningStock: 200,
		RandomSeed:      1979,
		Now:             time.Now().UTC(),
	}
}

// Generator writes demo catalog data.
type Generator struct {
	db    *sql.DB
	cfg   Config
	rng   *rand.Rand
	idGen *util.IDGenerator

	materials map[string]string
	products  int
	lines     int
}

// NewGenerator creates a new seed data generator.
func NewGenerator(db *sql.DB, cfg Config) *Generator {
	return &Generator{
		db:        db,
		cfg:       cfg,
		rng:       rand.New(rand.NewSource(cfg.RandomSeed)),
		idGen:     util.NewIDGenerator(),
		materials: make(map[string]string),
	}
}

// Generate creates all seed data in one transaction. Opening stock is booked
// through the ledger so reconciliation holds from the start.
func (g *Generator) Generate(ctx context.Context) error {
	slog.Info("starting seed data generation",
		"materials", len(Materials), "products", len(Products))

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if err := g.generateMaterials(ctx, tx); err != nil {
		return fmt.Errorf("generating materials: %w", err)
	}
	if err := g.generateProducts(ctx, tx); err != nil {
		return fmt.Errorf("generating products: %w", err)
	}
	if err := g.generateUsers(ctx, tx); err != nil {
		return fmt.Errorf("generating users: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	slog.Info("seed data generation complete",
		"materials", len(g.materials), "products", g.products, "bom_lines", g.lines)
	return nil
}

func (g *Generator) generateMaterials(ctx context.Context, tx *sql.Tx) error {
	query := `INSERT INTO raw_materials (
		id, sku, name, unit, current_stock, minimum_stock, reorder_point, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	now := util.FormatTimestamp(g.cfg.Now)
	for _, m := range Materials {
		id := g.idGen.NewID()
		stock := g.openingStock()

		if _, err := tx.ExecContext(ctx, query,
			id, m.SKU, m.Name, m.Unit, stock.String(), m.MinimumStock, m.ReorderPoint, now, now,
		); err != nil {
			return fmt.Errorf("inserting material %s: %w", m.SKU, err)
		}
		if err := g.bookOpening(ctx, tx, models.ItemKindRawMaterial, id, stock); err != nil {
			return err
		}
		g.materials[m.SKU] = id
	}

	slog.Debug("materials generated", "count", len(g.materials))
	return nil
}

func (g *Generator) generateProducts(ctx context.Context, tx *sql.Tx) error {
	productQuery := `INSERT INTO products (
		id, sku, name, unit, current_stock, minimum_stock, reorder_point, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	lineQuery := `INSERT INTO bom_lines (id, product_id, raw_material_id, quantity_per_unit, created_at)
		VALUES (?, ?, ?, ?, ?)`

	now := util.FormatTimestamp(g.cfg.Now)
	for _, p := range Products {
		id := g.idGen.NewID()
		stock := g.openingStock().Div(decimal.NewFromInt(10)).Floor()

		if _, err := tx.ExecContext(ctx, productQuery,
			id, p.SKU, p.Name, p.Unit, stock.String(), p.MinimumStock, p.ReorderPoint, now, now,
		); err != nil {
			return fmt.Errorf("inserting product %s: %w", p.SKU, err)
		}
		if err := g.bookOpening(ctx, tx, models.ItemKindProduct, id, stock); err != nil {
			return err
		}

		// map order is random; keep line insertion stable
		skus := make([]string, 0, len(p.BOM))
		for sku := range p.BOM {
			skus = append(skus, sku)
		}
		slices.Sort(skus)

		for _, sku := range skus {
			materialID, ok := g.materials[sku]
			if !ok {
				return fmt.Errorf("product %s references unknown material %s", p.SKU, sku)
			}
			if _, err := tx.ExecContext(ctx, lineQuery,
				g.idGen.NewID(), id, materialID, p.BOM[sku], now,
			); err != nil {
				return fmt.Errorf("inserting BOM line %s/%s: %w", p.SKU, sku, err)
			}
			g.lines++
		}
		g.products++
	}

	slog.Debug("products generated", "count", g.products, "bom_lines", g.lines)
	return nil
}

func (g *Generator) generateUsers(ctx context.Context, tx *sql.Tx) error {
	query := `INSERT INTO user_capabilities (user_id, capability, granted_at) VALUES (?, ?, ?)`

	now := util.FormatTimestamp(g.cfg.Now)
	for user, caps := range Users {
		for _, c := range caps {
			if _, err := tx.ExecContext(ctx, query, user, c, now); err != nil {
				return fmt.Errorf("granting %s to %s: %w", c, user, err)
			}
		}
	}
	return nil
}

func (g *Generator) bookOpening(ctx context.Context, tx *sql.Tx, kind models.ItemKind, id string, qty decimal.Decimal) error {
	if qty.IsZero() {
		return nil
	}

	_, err := tx.ExecContext(ctx, `INSERT INTO inventory_transactions (
		id, type, quantity, item_kind, item_id, reference_type, reference_id, notes, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.idGen.NewID(), models.TransactionTypeIn, qty.String(), kind, id,
		models.ReferenceOpeningStock, id, "Seeded opening stock", util.FormatTimestamp(g.cfg.Now),
	)
	if err != nil {
		return fmt.Errorf("booking opening stock for %s: %w", id, err)
	}
	return nil
}

func (g *Generator) openingStock() decimal.Decimal {
	return decimal.NewFromInt(int64(g.rng.Intn(g.cfg.MaxOpeningStock + 1)))
}
