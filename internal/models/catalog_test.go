package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestProduct_AvailableToPromise(t *testing.T) {
	tests := []struct {
		name          string
		stock         string
		assigned      string
		want          string
		overCommitted bool
	}{
		{"No reservations", "100", "0", "100", false},
		{"Some reservations", "100", "25.5", "74.5", false},
		{"Fully reserved", "100", "100", "0", false},
		{"Over-committed", "100", "110", "-10", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Product{
				CurrentStock:     decimal.RequireFromString(tt.stock),
				AssignedQuantity: decimal.RequireFromString(tt.assigned),
			}
			if got := p.AvailableToPromise(); !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("AvailableToPromise() = %s, want %s", got, tt.want)
			}
			if got := p.IsOverCommitted(); got != tt.overCommitted {
				t.Errorf("IsOverCommitted() = %v, want %v", got, tt.overCommitted)
			}
		})
	}
}

func TestRawMaterial_BelowReorderPoint(t *testing.T) {
	tests := []struct {
		stock, reorder string
		want           bool
	}{
		{"50", "20", false},
		{"20", "20", true},
		{"5", "20", true},
	}

	for _, tt := range tests {
		m := &RawMaterial{
			CurrentStock: decimal.RequireFromString(tt.stock),
			ReorderPoint: decimal.RequireFromString(tt.reorder),
		}
		if got := m.BelowReorderPoint(); got != tt.want {
			t.Errorf("stock %s reorder %s: BelowReorderPoint() = %v, want %v", tt.stock, tt.reorder, got, tt.want)
		}
	}
}

func TestInventoryTransaction_SignedQuantity(t *testing.T) {
	tests := []struct {
		typ  TransactionType
		qty  string
		want string
	}{
		{TransactionTypeIn, "10", "10"},
		{TransactionTypeOut, "10", "-10"},
		{TransactionTypeAdjustment, "3", "3"},
		{TransactionTypeAdjustment, "-3", "-3"},
	}

	for _, tt := range tests {
		txn := &InventoryTransaction{Type: tt.typ, Quantity: decimal.RequireFromString(tt.qty)}
		if got := txn.SignedQuantity(); !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("%s %s: SignedQuantity() = %s, want %s", tt.typ, tt.qty, got, tt.want)
		}
	}
}

func TestReservationStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to ReservationStatus
		want     bool
	}{
		{ReservationStatusPending, ReservationStatusInProduction, true},
		{ReservationStatusPending, ReservationStatusCompleted, true},
		{ReservationStatusInProduction, ReservationStatusPending, true},
		{ReservationStatusInProduction, ReservationStatusCompleted, true},
		{ReservationStatusCompleted, ReservationStatusPending, false},
		{ReservationStatusCompleted, ReservationStatusInProduction, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("%s -> %s: CanTransition() = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestErrorPredicates(t *testing.T) {
	var err error = &TransitionError{Entity: "manufacturing order", ID: "mo-1", Current: "closed", Requested: "in_progress"}
	if !IsTransition(err) || IsConflict(err) || IsNotFound(err) || IsValidation(err) {
		t.Errorf("predicates misclassified %v", err)
	}
	if want := "manufacturing order mo-1: cannot move from closed to in_progress"; err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
