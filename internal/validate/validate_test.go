package validate

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/plantops/plantops/internal/models"
)

type lineInput struct {
	ProductID string          `json:"product_id" validate:"required"`
	Quantity  decimal.Decimal `json:"quantity" validate:"dgt0"`
}

type orderInput struct {
	Customer string          `json:"customer" validate:"required,max=10"`
	Discount decimal.Decimal `json:"discount" validate:"dgte0"`
	Priority string          `json:"priority" validate:"omitempty,oneof=low normal"`
	Lines    []lineInput     `json:"lines" validate:"min=1,dive"`
}

func TestStruct(t *testing.T) {
	valid := func() orderInput {
		return orderInput{
			Customer: "ACME",
			Lines:    []lineInput{{ProductID: "p1", Quantity: decimal.NewFromInt(2)}},
		}
	}

	t.Run("valid input", func(t *testing.T) {
		if err := Struct("order", valid()); err != nil {
			t.Fatalf("Struct() error = %v", err)
		}
	})

	tests := []struct {
		name   string
		mutate func(*orderInput)
		field  string
	}{
		{"missing customer", func(o *orderInput) { o.Customer = "" }, "customer"},
		{"long customer", func(o *orderInput) { o.Customer = "ACME Corporation" }, "customer"},
		{"negative discount", func(o *orderInput) { o.Discount = decimal.NewFromInt(-1) }, "discount"},
		{"unknown priority", func(o *orderInput) { o.Priority = "asap" }, "priority"},
		{"no lines", func(o *orderInput) { o.Lines = nil }, "lines"},
		{"zero line quantity", func(o *orderInput) { o.Lines[0].Quantity = decimal.Zero }, "lines[0].quantity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid()
			tt.mutate(&in)

			err := Struct("order", in)
			if !models.IsValidation(err) {
				t.Fatalf("Struct() error = %v, want validation error", err)
			}
			ve := err.(*models.ValidationError)
			if ve.Field != tt.field {
				t.Errorf("Field = %q, want %q", ve.Field, tt.field)
			}
			if ve.Entity != "order" {
				t.Errorf("Entity = %q, want order", ve.Entity)
			}
		})
	}
}

type adjustInput struct {
	Delta decimal.Decimal `json:"delta" validate:"dne0"`
}

func TestStruct_DecimalsCompareExactly(t *testing.T) {
	tiny := decimal.New(1, -400)

	if err := Struct("line", lineInput{ProductID: "p1", Quantity: tiny}); err != nil {
		t.Errorf("Struct() error = %v, want tiny positive quantity accepted", err)
	}
	if err := Struct("line", lineInput{ProductID: "p1", Quantity: tiny.Neg()}); !models.IsValidation(err) {
		t.Errorf("Struct() error = %v, want tiny negative quantity rejected", err)
	}
	if err := Struct("adjustment", adjustInput{Delta: tiny.Neg()}); err != nil {
		t.Errorf("Struct() error = %v, want non-zero delta accepted", err)
	}

	err := Struct("adjustment", adjustInput{})
	if !models.IsValidation(err) {
		t.Fatalf("Struct() error = %v, want validation error", err)
	}
	if msg := err.(*models.ValidationError).Message; msg != "must not be 0" {
		t.Errorf("Message = %q, want %q", msg, "must not be 0")
	}
}
