package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Property is owned by the listing side of the marketplace; this service only
// reads the rent terms and clears IsAvailable once a booking is paid.
type Property struct {
	ID              uint            `gorm:"primaryKey"`
	Title           string          `gorm:"size:255"`
	MonthlyRent     decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	SecurityDeposit decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	IsAvailable     bool            `gorm:"not null;default:true"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
