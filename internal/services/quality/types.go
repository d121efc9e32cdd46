package quality

import (
	"time"

	"github.com/plantops/plantops/internal/lock"
	"github.com/plantops/plantops/internal/models"
	"github.com/plantops/plantops/internal/notify"
	"github.com/plantops/plantops/internal/util"
)

// Options wires the collaborators of the quality service.
type Options struct {
	Clock      util.Clock
	Locker     lock.Locker
	LockTTL    time.Duration
	Dispatcher *notify.Dispatcher
}

// Decision is the outcome of accepting or rejecting a record. Progress
// tells a partially inspected order (still under_qc) from a closed one.
type Decision struct {
	Record    *models.QualityControlRecord `json:"record"`
	Order     *models.ManufacturingOrder   `json:"order"`
	Progress  models.QCProgress            `json:"progress"`
	Restocked bool                         `json:"restocked"`
}

// Inspection lists an order's records with its progress.
type Inspection struct {
	Records  []*models.QualityControlRecord `json:"records"`
	Progress models.QCProgress              `json:"progress"`
}
