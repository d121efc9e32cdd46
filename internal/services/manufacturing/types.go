package manufacturing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/plantops/plantops/internal/config"
	"github.com/plantops/plantops/internal/lock"
	"github.com/plantops/plantops/internal/models"
	"github.com/plantops/plantops/internal/notify"
	"github.com/plantops/plantops/internal/util"
)

// Options wires the collaborators of the manufacturing service.
type Options struct {
	Clock      util.Clock
	Locker     lock.Locker
	LockTTL    time.Duration
	Dispatcher *notify.Dispatcher
	Config     config.ManufacturingConfig
}

// CreateInput contains data for creating a manufacturing order.
type CreateInput struct {
	ProductID    string          `json:"product_id" validate:"required"`
	Quantity     decimal.Decimal `json:"quantity" validate:"dgt0"`
	Priority     models.Priority `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	SalesOrderID *string         `json:"sales_order_id"`
	QuotationID  *string         `json:"quotation_id"`
	PlannedStart *time.Time      `json:"planned_start"`
	PlannedEnd   *time.Time      `json:"planned_end"`
	Notes        string          `json:"notes"`
	Items        []ItemInput     `json:"items" validate:"dive"`
	CreatedBy    *string         `json:"-"`
}

// ItemInput describes a co-produced product.
type ItemInput struct {
	ProductID string          `json:"product_id" validate:"required"`
	Quantity  decimal.Decimal `json:"quantity" validate:"dgt0"`
}

// Completion is the result of marking production complete.
type Completion struct {
	Order   *models.ManufacturingOrder     `json:"order"`
	Records []*models.QualityControlRecord `json:"quality_control_records"`
}
