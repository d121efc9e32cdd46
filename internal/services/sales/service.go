// Package sales provides the quotation and sales order flow that produces
// reservations and manufacturing orders upstream of production and releases
// them on shipment or cancellation.
package sales

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/plantops/plantops/internal/database"
	"github.com/plantops/plantops/internal/models"
	"github.com/plantops/plantops/internal/notify"
	"github.com/plantops/plantops/internal/repository"
	"github.com/plantops/plantops/internal/services/bom"
	"github.com/plantops/plantops/internal/services/manufacturing"
	"github.com/plantops/plantops/internal/services/reservations"
	"github.com/plantops/plantops/internal/util"
	"github.com/plantops/plantops/internal/validate"
)

const (
	quotationPrefix  = "QT"
	salesOrderPrefix = "SO"

	referenceSalesOrder = "sales_order"
)

// Service provides quotation and sales order operations.
type Service struct {
	db            *sql.DB
	sales         *repository.SalesRepository
	catalog       *repository.CatalogRepository
	orders        *repository.ManufacturingRepository
	reservations  *reservations.Service
	manufacturing *manufacturing.Service
	dispatcher    *notify.Dispatcher
	idGenerator   *util.IDGenerator
	clock         util.Clock
}

// NewService creates a new sales service.
func NewService(db *sql.DB, opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = util.SystemClock{}
	}
	if opts.Manufacturing == nil {
		opts.Manufacturing = manufacturing.NewService(db, manufacturing.Options{
			Clock:      opts.Clock,
			Dispatcher: opts.Dispatcher,
		})
	}

	return &Service{
		db:            db,
		sales:         repository.NewSalesRepository(db),
		catalog:       repository.NewCatalogRepository(db),
		orders:        repository.NewManufacturingRepository(db),
		reservations:  reservations.NewService(db, opts.Clock),
		manufacturing: opts.Manufacturing,
		dispatcher:    opts.Dispatcher,
		idGenerator:   util.NewIDGenerator(),
		clock:         opts.Clock,
	}
}

// ============================================================================
// QUOTATIONS
// ============================================================================

// CreateQuotation creates a draft quotation.
func (s *Service) CreateQuotation(ctx context.Context, input CreateQuotationInput) (*models.Quotation, error) {
	if err := validate.Struct("quotation", input); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	q := &models.Quotation{
		ID:           s.idGenerator.NewID(),
		CustomerName: input.CustomerName,
		Status:       models.QuotationStatusDraft,
		ValidUntil:   input.ValidUntil,
		Notes:        input.Notes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, it := range input.Items {
		q.Items = append(q.Items, &models.QuotationItem{
			ID:          s.idGenerator.NewID(),
			QuotationID: q.ID,
			ProductID:   it.ProductID,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		})
	}

	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, it := range q.Items {
			if it.ProductID == nil {
				continue
			}
			if _, err := s.catalog.GetProduct(ctx, tx, *it.ProductID); err != nil {
				return err
			}
		}

		number, err := s.sales.NextQuotationNumber(ctx, tx, quotationPrefix)
		if err != nil {
			return err
		}
		q.QuotationNumber = number

		return s.sales.CreateQuotation(ctx, tx, q)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("quotation created", "quotation_id", q.ID, "quotation_number", q.QuotationNumber, "items", len(q.Items))
	return q, nil
}

// GetQuotation retrieves a quotation with its items.
func (s *Service) GetQuotation(ctx context.Context, id string) (*models.Quotation, error) {
	return s.sales.GetQuotation(ctx, nil, id)
}

// Send marks a draft quotation as sent to the customer.
func (s *Service) Send(ctx context.Context, id string) (*models.Quotation, error) {
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		q, err := s.sales.GetQuotation(ctx, tx, id)
		if err != nil {
			return err
		}
		return s.moveQuotation(ctx, tx, q, models.QuotationStatusSent, models.QuotationStatusDraft)
	})
	if err != nil {
		return nil, err
	}
	return s.sales.GetQuotation(ctx, nil, id)
}

// Accept accepts a draft or sent quotation and reserves every product line.
// With createMO, each product line also gets its own manufacturing order,
// linked to the line's reservation. Shortage alerts go out after commit.
func (s *Service) Accept(ctx context.Context, id string, createMO bool, actor *string) (*Acceptance, error) {
	acc := &Acceptance{}
	var shortages [][]bom.Requirement

	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		q, err := s.sales.GetQuotation(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.moveQuotation(ctx, tx, q, models.QuotationStatusAccepted,
			models.QuotationStatusDraft, models.QuotationStatusSent); err != nil {
			return err
		}
		acc.Quotation = q

		for _, item := range q.Items {
			if item.ProductID == nil {
				continue
			}

			res, err := s.reservations.CreateTx(ctx, tx, reservations.CreateInput{
				ProductID:   *item.ProductID,
				QuotationID: &q.ID,
				Quantity:    item.Quantity,
			})
			if err != nil {
				return err
			}
			acc.Reservations = append(acc.Reservations, res)

			if !createMO {
				continue
			}

			mo, short, err := s.manufacturing.CreateTx(ctx, tx, manufacturing.CreateInput{
				ProductID:   *item.ProductID,
				Quantity:    item.Quantity,
				QuotationID: &q.ID,
				Notes:       fmt.Sprintf("From quotation %s: %s", q.QuotationNumber, item.Description),
				CreatedBy:   actor,
			})
			if err != nil {
				return err
			}
			if err := s.reservations.LinkMOTx(ctx, tx, res.ID, mo.ID); err != nil {
				return err
			}
			res.MOID = &mo.ID

			acc.Orders = append(acc.Orders, mo)
			shortages = append(shortages, short)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, mo := range acc.Orders {
		s.manufacturing.NotifyShortage(ctx, mo, shortages[i])
	}

	slog.Info("quotation accepted",
		"quotation_id", id, "reservations", len(acc.Reservations), "manufacturing_orders", len(acc.Orders))
	return acc, nil
}

// Reject rejects a quotation and releases its reservations.
func (s *Service) Reject(ctx context.Context, id string) (*Closure, error) {
	return s.closeQuotation(ctx, id, models.QuotationStatusRejected)
}

// Expire expires a quotation and releases its reservations.
func (s *Service) Expire(ctx context.Context, id string) (*Closure, error) {
	return s.closeQuotation(ctx, id, models.QuotationStatusExpired)
}

func (s *Service) closeQuotation(ctx context.Context, id string, to models.QuotationStatus) (*Closure, error) {
	c := &Closure{}
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		q, err := s.sales.GetQuotation(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.moveQuotation(ctx, tx, q, to,
			models.QuotationStatusDraft, models.QuotationStatusSent, models.QuotationStatusAccepted); err != nil {
			return err
		}
		c.Quotation = q

		c.Released, err = s.reservations.ReleaseAllForQuotationTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("quotation closed", "quotation_id", id, "status", to, "released", len(c.Released.Reservations))
	return c, nil
}

// ConvertToSalesOrder copies an accepted quotation into a new pending sales
// order, marks the quotation converted, and links its open manufacturing
// orders to the sales order.
func (s *Service) ConvertToSalesOrder(ctx context.Context, id string) (*models.SalesOrder, error) {
	var soID string

	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		q, err := s.sales.GetQuotation(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.moveQuotation(ctx, tx, q, models.QuotationStatusConverted, models.QuotationStatusAccepted); err != nil {
			return err
		}

		number, err := s.sales.NextOrderNumber(ctx, tx, salesOrderPrefix)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		so := &models.SalesOrder{
			ID:           s.idGenerator.NewID(),
			OrderNumber:  number,
			QuotationID:  &q.ID,
			CustomerName: q.CustomerName,
			Status:       models.SalesOrderStatusPending,
			Notes:        q.Notes,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		for _, it := range q.Items {
			so.Items = append(so.Items, &models.SalesOrderItem{
				ID:           s.idGenerator.NewID(),
				SalesOrderID: so.ID,
				ProductID:    it.ProductID,
				Description:  it.Description,
				Quantity:     it.Quantity,
				UnitPrice:    it.UnitPrice,
			})
		}
		if err := s.sales.CreateSalesOrder(ctx, tx, so); err != nil {
			return err
		}

		open, err := s.orders.ListOpenByQuotation(ctx, tx, q.ID)
		if err != nil {
			return err
		}
		for _, mo := range open {
			if err := s.orders.LinkSalesOrder(ctx, tx, mo.ID, so.ID, now); err != nil {
				return err
			}
		}

		soID = so.ID
		slog.Info("quotation converted",
			"quotation_id", q.ID, "sales_order_id", so.ID, "order_number", so.OrderNumber, "linked_orders", len(open))
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.sales.GetSalesOrder(ctx, nil, soID)
}

func (s *Service) moveQuotation(ctx context.Context, tx *sql.Tx, q *models.Quotation, to models.QuotationStatus, from ...models.QuotationStatus) error {
	if !slices.Contains(from, q.Status) {
		return &models.TransitionError{
			Entity:    "quotation",
			ID:        q.ID,
			Current:   string(q.Status),
			Requested: string(to),
		}
	}

	now := s.clock.Now()
	ok, err := s.sales.TransitionQuotation(ctx, tx, q.ID, from, to, now)
	if err != nil {
		return err
	}
	if !ok {
		return &models.ConflictError{Entity: "quotation", ID: q.ID, Reason: "status changed concurrently"}
	}

	q.Status = to
	q.UpdatedAt = now
	return nil
}

// ============================================================================
// SALES ORDERS
// ============================================================================

// GetSalesOrder retrieves a sales order with its items.
func (s *Service) GetSalesOrder(ctx context.Context, id string) (*models.SalesOrder, error) {
	return s.sales.GetSalesOrder(ctx, nil, id)
}

// ConfirmSalesOrder confirms a pending sales order.
func (s *Service) ConfirmSalesOrder(ctx context.Context, id string) (*models.SalesOrder, error) {
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		so, err := s.sales.GetSalesOrder(ctx, tx, id)
		if err != nil {
			return err
		}
		return s.moveSalesOrder(ctx, tx, so, models.SalesOrderStatusConfirmed, models.SalesOrderStatusPending)
	})
	if err != nil {
		return nil, err
	}
	return s.sales.GetSalesOrder(ctx, nil, id)
}

// OnShipment marks an open sales order shipped, releases every reservation
// under it and alerts shipment recipients after commit. Stock is not
// deducted here.
func (s *Service) OnShipment(ctx context.Context, id string) (*Closure, error) {
	c, err := s.closeSalesOrder(ctx, id, models.SalesOrderStatusShipped)
	if err != nil {
		return nil, err
	}

	so := c.SalesOrder
	lines := make([]string, 0, len(so.Items))
	for _, it := range so.Items {
		lines = append(lines, fmt.Sprintf("%s x %s", it.Quantity, it.Description))
	}

	s.dispatcher.Dispatch(ctx, notify.KindShipment, models.Notification{
		Title:         fmt.Sprintf("Sales order %s shipped", so.OrderNumber),
		Message:       fmt.Sprintf("Shipped to %s: %s", so.CustomerName, strings.Join(lines, "; ")),
		Severity:      models.SeverityInfo,
		ReferenceType: referenceSalesOrder,
		ReferenceID:   so.ID,
	})

	return c, nil
}

// CancelSalesOrder cancels an open sales order and releases its
// reservations.
func (s *Service) CancelSalesOrder(ctx context.Context, id string) (*Closure, error) {
	return s.closeSalesOrder(ctx, id, models.SalesOrderStatusCancelled)
}

func (s *Service) closeSalesOrder(ctx context.Context, id string, to models.SalesOrderStatus) (*Closure, error) {
	c := &Closure{}
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		so, err := s.sales.GetSalesOrder(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.moveSalesOrder(ctx, tx, so, to,
			models.SalesOrderStatusPending, models.SalesOrderStatusConfirmed); err != nil {
			return err
		}
		c.SalesOrder = so

		c.Released, err = s.reservations.ReleaseAllForSalesOrderTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("sales order closed",
		"sales_order_id", id, "status", to, "released", len(c.Released.Reservations))
	return c, nil
}

func (s *Service) moveSalesOrder(ctx context.Context, tx *sql.Tx, so *models.SalesOrder, to models.SalesOrderStatus, from ...models.SalesOrderStatus) error {
	if !slices.Contains(from, so.Status) {
		return &models.TransitionError{
			Entity:    "sales order",
			ID:        so.ID,
			Current:   string(so.Status),
			Requested: string(to),
		}
	}

	now := s.clock.Now()
	var shippedAt *time.Time
	if to == models.SalesOrderStatusShipped {
		shippedAt = &now
	}

	ok, err := s.sales.TransitionSalesOrder(ctx, tx, so.ID, from, to, shippedAt, now)
	if err != nil {
		return err
	}
	if !ok {
		return &models.ConflictError{Entity: "sales order", ID: so.ID, Reason: "status changed concurrently"}
	}

	so.Status = to
	so.ShippedAt = shippedAt
	so.UpdatedAt = now
	return nil
}
