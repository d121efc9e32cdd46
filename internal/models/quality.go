package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// QCStatus is the inspection state of a quality control record.
type QCStatus string

const (
	QCStatusUnderReview QCStatus = "under_review"
	QCStatusAccepted    QCStatus = "accepted"
	QCStatusRejected    QCStatus = "rejected"
)

// Terminal reports whether the record has been decided.
func (s QCStatus) Terminal() bool {
	return s == QCStatusAccepted || s == QCStatusRejected
}

// QualityControlRecord gates one product's output from an MO.
type QualityControlRecord struct {
	ID              string          `json:"id"`
	MOID            string          `json:"mo_id"`
	ProductID       string          `json:"product_id"`
	Quantity        decimal.Decimal `json:"quantity"`
	Status          QCStatus        `json:"status"`
	InspectorID     *string         `json:"inspector_id,omitempty"`
	InspectedAt     *time.Time      `json:"inspected_at,omitempty"`
	RejectionReason *string         `json:"rejection_reason,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// QCProgress summarizes the decisions recorded against one MO.
type QCProgress struct {
	Total       int `json:"total"`
	Accepted    int `json:"accepted"`
	Rejected    int `json:"rejected"`
	UnderReview int `json:"under_review"`
}

// AllAccepted reports whether every record has been accepted.
func (p QCProgress) AllAccepted() bool {
	return p.Total > 0 && p.Accepted == p.Total
}
