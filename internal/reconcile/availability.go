package reconcile

import (
	"github.com/sirupsen/logrus"

	"github.com/ChinthakaSandaruwan/property-system-sub000/internal/ledger"
	"github.com/ChinthakaSandaruwan/property-system-sub000/internal/models"
)

// availabilityUpdater performs the one-time effects of a booking's first
// successful payment. The caller holds the booking row lock and has checked
// that the booking is still unpaid.
type availabilityUpdater struct {
	log *logrus.Logger
}

func (u availabilityUpdater) confirm(tx ledger.Tx, b *models.Booking) error {
	b.Status = models.BookingConfirmed
	b.PaymentStatus = models.BookingPaid
	if err := tx.SaveBooking(b); err != nil {
		return err
	}

	flipped, err := tx.SetPropertyUnavailable(b.PropertyID)
	if err != nil {
		return err
	}
	if !flipped {
		// Another booking already took the property; ops must resolve the overlap.
		u.log.WithFields(logrus.Fields{
			"order_id":    b.OrderID,
			"booking_id":  b.ID,
			"property_id": b.PropertyID,
		}).Warn("Property was already unavailable when booking was paid")
	}

	created, err := tx.CreateAgreement(b.ID)
	if err != nil {
		return err
	}
	if !created {
		u.log.WithField("booking_id", b.ID).Warn("Rental agreement already existed for unpaid booking")
	}
	return nil
}
