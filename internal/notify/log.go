package notify

import (
	"context"

	"github.com/sirupsen/logrus"
)

type LogDispatcher struct {
	log *logrus.Logger
}

func NewLogDispatcher(log *logrus.Logger) *LogDispatcher {
	return &LogDispatcher{log: log}
}

func (d *LogDispatcher) Dispatch(_ context.Context, ev Event) error {
	d.log.WithFields(logrus.Fields{
		"event":       ev.Kind,
		"order_id":    ev.OrderID,
		"booking_id":  ev.BookingID,
		"property_id": ev.PropertyID,
	}).Info("Booking event")
	return nil
}
