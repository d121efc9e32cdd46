package bom

import (
	"github.com/shopspring/decimal"

	"github.com/plantops/plantops/internal/models"
)

// Requirement is the demand placed on one raw material.
type Requirement struct {
	Material  *models.RawMaterial `json:"material"`
	Required  decimal.Decimal     `json:"required"`
	Available decimal.Decimal     `json:"available"`
	Shortage  decimal.Decimal     `json:"shortage"`
}

// Short reports whether stock does not cover the requirement.
func (r Requirement) Short() bool {
	return r.Shortage.IsPositive()
}

// Line is one BOM line evaluated for a production quantity.
type Line struct {
	Requirement
	BOMLineID       string          `json:"bom_line_id"`
	QuantityPerUnit decimal.Decimal `json:"quantity_per_unit"`
}

// Availability is the result of checking a product's BOM against stock.
type Availability struct {
	ProductID      string          `json:"product_id"`
	Quantity       decimal.Decimal `json:"quantity"`
	HasBOM         bool            `json:"has_bom"`
	Lines          []Line          `json:"lines"`
	FullyAvailable bool            `json:"fully_available"`
}

// Shortages returns the lines stock does not cover.
func (a *Availability) Shortages() []Line {
	var out []Line
	for _, l := range a.Lines {
		if l.Short() {
			out = append(out, l)
		}
	}
	return out
}

// Shortages filters requirements down to those stock does not cover.
func Shortages(reqs []Requirement) []Requirement {
	var out []Requirement
	for _, r := range reqs {
		if r.Short() {
			out = append(out, r)
		}
	}
	return out
}
