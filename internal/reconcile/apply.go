package reconcile

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/ChinthakaSandaruwan/property-system-sub000/internal/ledger"
	"github.com/ChinthakaSandaruwan/property-system-sub000/internal/models"
	"github.com/ChinthakaSandaruwan/property-system-sub000/internal/notify"
	"github.com/ChinthakaSandaruwan/property-system-sub000/internal/payment"
)

type result struct {
	payment *models.Payment
	booking *models.Booking
	events  []notify.Event
}

// apply runs inside one ledger transaction. Rows are locked in the order
// payment, checkout session, booking, property.
func (c *Coordinator) apply(tx ledger.Tx, ch Channel, cb *payment.Callback) (*result, error) {
	stored, err := tx.PaymentByOrderForUpdate(cb.OrderID)
	if err != nil && !errors.Is(err, ledger.ErrNotFound) {
		return nil, err
	}

	session, err := tx.SessionByOrderForUpdate(cb.OrderID)
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		session = nil
	case err != nil:
		return nil, err
	}
	if err := checkAgainstSession(cb, session); err != nil {
		return nil, err
	}

	if cb.Outcome == payment.OutcomeRefund {
		return c.applyRefund(tx, cb, stored)
	}

	incoming, _ := cb.Outcome.PaymentStatus()
	if stored == nil {
		stored = newPayment(cb, incoming, ch)
		if err := tx.InsertPayment(stored); err != nil {
			return nil, err
		}
	} else {
		switch {
		case incoming.Rank() == stored.Status.Rank():
			return nil, ErrDuplicateCallback
		case incoming.Rank() < stored.Status.Rank():
			return nil, fmt.Errorf("%w: stored %s, incoming %s", ErrStaleStatusDowngrade, stored.Status, incoming)
		}
		updatePayment(stored, cb, incoming, ch)
		if err := tx.SavePayment(stored); err != nil {
			return nil, err
		}
	}

	booking, err := c.bookingFor(tx, cb, session)
	if err != nil {
		return nil, err
	}

	res := &result{payment: stored, booking: booking}
	if err := c.applyToBooking(tx, res, incoming); err != nil {
		return nil, err
	}

	if session != nil && incoming.Terminal() && session.Status != models.SessionCompleted {
		session.Status = models.SessionCompleted
		if err := tx.SaveSession(session); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// applyToBooking moves the booking to match the payment status. Only the
// first successful payment confirms it and fires the availability side
// effects; a paid booking is never moved back.
func (c *Coordinator) applyToBooking(tx ledger.Tx, res *result, status models.PaymentStatus) error {
	b := res.booking
	switch status {
	case models.PaymentSuccessful:
		if b.PaymentStatus != models.BookingUnpaid {
			return nil
		}
		if err := c.availability.confirm(tx, b); err != nil {
			return err
		}
		res.events = append(res.events, event(notify.BookingConfirmed, res))

	case models.PaymentCancelled, models.PaymentFailed, models.PaymentChargedBack:
		if b.PaymentStatus != models.BookingUnpaid || b.Status == models.BookingCancelled {
			return nil
		}
		b.Status = models.BookingCancelled
		if err := tx.SaveBooking(b); err != nil {
			return err
		}
		kind := notify.BookingCancelled
		if status == models.PaymentFailed {
			kind = notify.PaymentFailed
		}
		res.events = append(res.events, event(kind, res))
	}
	return nil
}

// applyRefund marks a paid booking refunded. The payment keeps its finality
// rank and the property stays let.
func (c *Coordinator) applyRefund(tx ledger.Tx, cb *payment.Callback, stored *models.Payment) (*result, error) {
	if stored == nil || stored.Status != models.PaymentSuccessful {
		return nil, errNothingToRefund
	}
	b, err := tx.BookingByOrderForUpdate(cb.OrderID)
	if err != nil {
		return nil, err
	}
	switch b.PaymentStatus {
	case models.BookingRefunded:
		return nil, ErrDuplicateCallback
	case models.BookingUnpaid:
		return nil, errNothingToRefund
	}

	b.PaymentStatus = models.BookingRefunded
	if err := tx.SaveBooking(b); err != nil {
		return nil, err
	}
	res := &result{payment: stored, booking: b}
	res.events = append(res.events, event(notify.BookingRefunded, res))
	return res, nil
}

// bookingFor locks the order's booking, creating it from the checkout session
// (or, without one, from the property's rent terms) on first sight.
func (c *Coordinator) bookingFor(tx ledger.Tx, cb *payment.Callback, session *models.CheckoutSession) (*models.Booking, error) {
	b, err := tx.BookingByOrderForUpdate(cb.OrderID)
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, ledger.ErrNotFound) {
		return nil, err
	}

	b = &models.Booking{
		OrderID:       cb.OrderID,
		Status:        models.BookingPending,
		PaymentStatus: models.BookingUnpaid,
	}
	if session != nil {
		b.PropertyID = session.PropertyID
		b.CustomerID = session.CustomerID
		b.MonthlyRent = session.MonthlyRent
		b.SecurityDeposit = session.SecurityDeposit
		b.TotalAmount = session.Amount
	} else {
		prop, err := tx.Property(cb.PropertyID)
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown property %d", ErrCallbackMismatch, cb.PropertyID)
		}
		if err != nil {
			return nil, err
		}
		if !prop.MonthlyRent.Add(prop.SecurityDeposit).Equal(cb.Amount) {
			return nil, fmt.Errorf("%w: amount does not match property terms", ErrCallbackMismatch)
		}
		b.PropertyID = prop.ID
		b.CustomerID = cb.CustomerID
		b.MonthlyRent = prop.MonthlyRent
		b.SecurityDeposit = prop.SecurityDeposit
		b.TotalAmount = cb.Amount
	}

	if err := tx.InsertBooking(b); err != nil {
		return nil, err
	}
	c.log.WithFields(logrus.Fields{"order_id": cb.OrderID, "booking_id": b.ID}).Info("Booking created")
	return b, nil
}

// checkAgainstSession rejects callbacks whose signed fields disagree with
// what was sent at checkout. Without a session the custom fields are the only
// link to a property and customer, so both must be present.
func checkAgainstSession(cb *payment.Callback, s *models.CheckoutSession) error {
	if s == nil {
		if cb.PropertyID == 0 || cb.CustomerID == 0 {
			return fmt.Errorf("%w: no checkout session and no custom fields", ErrCallbackMismatch)
		}
		return nil
	}
	switch {
	case !s.Amount.Equal(cb.Amount):
		return fmt.Errorf("%w: amount", ErrCallbackMismatch)
	case s.Currency != cb.Currency:
		return fmt.Errorf("%w: currency", ErrCallbackMismatch)
	case cb.PropertyID != 0 && cb.PropertyID != s.PropertyID:
		return fmt.Errorf("%w: property", ErrCallbackMismatch)
	case cb.CustomerID != 0 && cb.CustomerID != s.CustomerID:
		return fmt.Errorf("%w: customer", ErrCallbackMismatch)
	}
	return nil
}

func newPayment(cb *payment.Callback, status models.PaymentStatus, ch Channel) *models.Payment {
	p := &models.Payment{
		OrderID:  cb.OrderID,
		Amount:   cb.Amount,
		Currency: cb.Currency,
	}
	updatePayment(p, cb, status, ch)
	return p
}

func updatePayment(p *models.Payment, cb *payment.Callback, status models.PaymentStatus, ch Channel) {
	p.Status = status
	p.StatusCode = cb.StatusCode
	p.LastChannel = string(ch)
	if cb.GatewayPaymentID != "" {
		id := cb.GatewayPaymentID
		p.GatewayPaymentID = &id
	}
	if raw, err := json.Marshal(cb.Raw); err == nil {
		p.RawCallback = datatypes.JSON(raw)
	}
}

func event(kind notify.Kind, res *result) notify.Event {
	return notify.Event{
		Kind:          kind,
		OrderID:       res.booking.OrderID,
		BookingID:     res.booking.ID,
		PropertyID:    res.booking.PropertyID,
		CustomerID:    res.booking.CustomerID,
		Amount:        payment.FormatAmount(res.payment.Amount),
		Currency:      res.payment.Currency,
		PaymentStatus: string(res.booking.PaymentStatus),
		OccurredAt:    time.Now().UTC(),
	}
}
