package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/ChinthakaSandaruwan/property-system-sub000/internal/models"
)

var tracer = otel.Tracer("property-system/ledger")

// Store owns the payments, bookings, rental agreements, checkout sessions and
// the property availability flag. All coordination between concurrent
// reconciliations goes through its transactions and unique indexes.
type Store struct {
	db      *gorm.DB
	retries int
	backoff time.Duration
	log     *logrus.Logger
}

func NewStore(db *gorm.DB, retries int, log *logrus.Logger) *Store {
	if retries <= 0 {
		retries = 1
	}
	return &Store{
		db:      db,
		retries: retries,
		backoff: 25 * time.Millisecond,
		log:     log,
	}
}

// InTx runs fn inside one database transaction. Conflicts (serialization
// failures, deadlocks, lock timeouts) are retried up to the configured number
// of attempts; errors returned by fn itself are passed through untouched.
func (s *Store) InTx(ctx context.Context, fn func(Tx) error) error {
	ctx, span := tracer.Start(ctx, "ledger.InTx")
	defer span.End()

	var err error
	for attempt := 1; attempt <= s.retries; attempt++ {
		span.SetAttributes(attribute.Int("ledger.attempt", attempt))

		var fnErr error
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			fnErr = fn(&gormTx{db: tx})
			return fnErr
		})
		if err != nil && (fnErr == nil || !errors.Is(err, fnErr)) {
			err = translate(err)
		}
		if !errors.Is(err, ErrConflict) {
			return err
		}

		s.log.WithFields(logrus.Fields{"attempt": attempt, "error": err}).Warn("ledger transaction conflict, retrying")
		select {
		case <-ctx.Done():
			return translate(ctx.Err())
		case <-time.After(s.backoff * time.Duration(attempt)):
		}
	}
	span.RecordError(err)
	return errors.Join(ErrPersistence, err)
}

func (s *Store) reader(ctx context.Context) *gormTx {
	return &gormTx{db: s.db.WithContext(ctx)}
}

func (s *Store) PaymentByOrder(ctx context.Context, orderID string) (*models.Payment, error) {
	var p models.Payment
	err := s.db.WithContext(ctx).Where("order_id = ?", orderID).Take(&p).Error
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *Store) BookingByOrder(ctx context.Context, orderID string) (*models.Booking, error) {
	var b models.Booking
	err := s.db.WithContext(ctx).Where("order_id = ?", orderID).Take(&b).Error
	if err != nil {
		return nil, translate(err)
	}
	return &b, nil
}

func (s *Store) Property(ctx context.Context, id uint) (*models.Property, error) {
	return s.reader(ctx).Property(id)
}

func (s *Store) CreateSession(ctx context.Context, session *models.CheckoutSession) error {
	return translate(s.db.WithContext(ctx).Create(session).Error)
}

func (s *Store) AgreementCount(ctx context.Context, bookingID uint) (int64, error) {
	return s.reader(ctx).AgreementCount(bookingID)
}

// StaleSessions lists open checkout sessions that expired before the given time,
// oldest first.
func (s *Store) StaleSessions(ctx context.Context, before time.Time, limit int) ([]models.CheckoutSession, error) {
	var out []models.CheckoutSession
	err := s.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", models.SessionOpen, before).
		Order("expires_at ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, translate(err)
	}
	return out, nil
}
