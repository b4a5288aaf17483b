package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

type BookingPaymentStatus string

const (
	BookingUnpaid   BookingPaymentStatus = "unpaid"
	BookingPaid     BookingPaymentStatus = "paid"
	BookingRefunded BookingPaymentStatus = "refunded"
)

// Booking is created by the first reconciliation of an order and holds one
// row per order. PaymentStatus only moves unpaid -> paid -> refunded.
type Booking struct {
	ID              uint                 `gorm:"primaryKey"`
	OrderID         string               `gorm:"size:64;not null;uniqueIndex"`
	PropertyID      uint                 `gorm:"not null;index"`
	CustomerID      uint                 `gorm:"not null;index"`
	MonthlyRent     decimal.Decimal      `gorm:"type:numeric(12,2);not null"`
	SecurityDeposit decimal.Decimal      `gorm:"type:numeric(12,2);not null"`
	TotalAmount     decimal.Decimal      `gorm:"type:numeric(12,2);not null"`
	Status          BookingStatus        `gorm:"size:20;not null;default:'pending';index"`
	PaymentStatus   BookingPaymentStatus `gorm:"size:20;not null;default:'unpaid'"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type RentalAgreement struct {
	ID        uint `gorm:"primaryKey"`
	BookingID uint `gorm:"not null;uniqueIndex"`
	CreatedAt time.Time
}
