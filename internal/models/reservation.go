package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReservationStatus is the lifecycle state of a product assignment.
type ReservationStatus string

const (
	ReservationStatusPending      ReservationStatus = "pending"
	ReservationStatusInProduction ReservationStatus = "in_production"
	ReservationStatusCompleted    ReservationStatus = "completed"
)

// Valid returns true if the reservation status is known.
func (s ReservationStatus) Valid() bool {
	switch s {
	case ReservationStatusPending, ReservationStatusInProduction, ReservationStatusCompleted:
		return true
	default:
		return false
	}
}

// Open reports whether the status counts toward assigned quantity.
func (s ReservationStatus) Open() bool {
	return s == ReservationStatusPending || s == ReservationStatusInProduction
}

var reservationTransitions = map[ReservationStatus][]ReservationStatus{
	ReservationStatusPending:      {ReservationStatusInProduction, ReservationStatusCompleted},
	ReservationStatusInProduction: {ReservationStatusPending, ReservationStatusCompleted},
}

// CanTransition reports whether from -> to is a legal reservation edge.
// Completed reservations are final.
func (s ReservationStatus) CanTransition(to ReservationStatus) bool {
	for _, next := range reservationTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// OpenReservationStatuses lists the statuses summed into assigned quantity.
var OpenReservationStatuses = []ReservationStatus{
	ReservationStatusPending,
	ReservationStatusInProduction,
}

// Reservation is a claim against a product's current or future stock.
type Reservation struct {
	ID          string            `json:"id"`
	ProductID   string            `json:"product_id"`
	QuotationID *string           `json:"quotation_id,omitempty"`
	MOID        *string           `json:"mo_id,omitempty"`
	Quantity    decimal.Decimal   `json:"quantity"`
	Status      ReservationStatus `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// ReservationFilter defines filters for querying reservations.
type ReservationFilter struct {
	ProductID    string
	QuotationID  string
	MOID         string
	SalesOrderID string
	Statuses     []ReservationStatus
}
