package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type PaymentStatus string

const (
	PaymentPending     PaymentStatus = "pending"
	PaymentSuccessful  PaymentStatus = "successful"
	PaymentFailed      PaymentStatus = "failed"
	PaymentCancelled   PaymentStatus = "cancelled"
	PaymentChargedBack PaymentStatus = "chargedback"
)

// Rank orders statuses by finality. Zero means the status is not part of the order.
func (s PaymentStatus) Rank() int {
	switch s {
	case PaymentSuccessful:
		return 5
	case PaymentChargedBack:
		return 4
	case PaymentFailed:
		return 3
	case PaymentCancelled:
		return 2
	case PaymentPending:
		return 1
	}
	return 0
}

// Terminal reports whether no further gateway report is expected for the order.
func (s PaymentStatus) Terminal() bool {
	return s.Rank() > PaymentPending.Rank()
}

// Payment is the ledger row for one checkout attempt. OrderID is unique for the
// lifetime of the system; the row is mutated in place after the first callback.
type Payment struct {
	ID               uint            `gorm:"primaryKey"`
	OrderID          string          `gorm:"size:64;not null;uniqueIndex"`
	GatewayPaymentID *string         `gorm:"size:64"`
	Amount           decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Currency         string          `gorm:"size:3;not null"`
	Status           PaymentStatus   `gorm:"size:20;not null;default:'pending';index"`
	StatusCode       string          `gorm:"size:8"`
	RawCallback      datatypes.JSON  `gorm:"column:raw_callback_payload"`
	LastChannel      string          `gorm:"size:16"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
