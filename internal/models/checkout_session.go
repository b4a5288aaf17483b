package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type SessionStatus string

const (
	SessionOpen      SessionStatus = "open"
	SessionCompleted SessionStatus = "completed"
	SessionExpired   SessionStatus = "expired"
)

// CheckoutSession records what was sent to the gateway. It is not authoritative
// for the payment outcome.
type CheckoutSession struct {
	ID              uint            `gorm:"primaryKey"`
	OrderID         string          `gorm:"size:64;not null;uniqueIndex"`
	CustomerID      uint            `gorm:"not null;index"`
	PropertyID      uint            `gorm:"not null;index"`
	MonthlyRent     decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	SecurityDeposit decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Amount          decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Currency        string          `gorm:"size:3;not null"`
	Status          SessionStatus   `gorm:"size:20;not null;default:'open';index:idx_session_sweep,priority:1"`
	ExpiresAt       time.Time       `gorm:"not null;index:idx_session_sweep,priority:2"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
