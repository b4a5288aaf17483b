package notify

import (
	"context"
	"errors"
	"time"
)

type Kind string

const (
	BookingConfirmed Kind = "booking.confirmed"
	BookingCancelled Kind = "booking.cancelled"
	BookingRefunded  Kind = "booking.refunded"
	PaymentFailed    Kind = "payment.failed"
)

// Event describes a ledger change that has already been committed.
type Event struct {
	Kind          Kind      `json:"event"`
	OrderID       string    `json:"order_id"`
	BookingID     uint      `json:"booking_id"`
	PropertyID    uint      `json:"property_id"`
	CustomerID    uint      `json:"customer_id"`
	Amount        string    `json:"amount"`
	Currency      string    `json:"currency"`
	PaymentStatus string    `json:"payment_status"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Dispatcher delivers events outside the ledger. Failures are reported to the
// caller but never undo the committed change.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev Event) error
}

// Multi fans an event out to every dispatcher.
type Multi []Dispatcher

func (m Multi) Dispatch(ctx context.Context, ev Event) error {
	var errs []error
	for _, d := range m {
		if err := d.Dispatch(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
