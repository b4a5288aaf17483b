package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ChinthakaSandaruwan/property-system-sub000/internal/ledger"
	"github.com/ChinthakaSandaruwan/property-system-sub000/internal/models"
)

const sweepLockKey = "lock:sweep_checkout_sessions"

// releaseLock deletes the lock only if we still own it.
var releaseLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type SessionLedger interface {
	InTx(ctx context.Context, fn func(ledger.Tx) error) error
	StaleSessions(ctx context.Context, before time.Time, limit int) ([]models.CheckoutSession, error)
}

// Sweeper expires checkout sessions that never received a final callback so
// that their pending bookings do not linger. A Redis lock keeps concurrent
// hosts from sweeping the same cycle.
type Sweeper struct {
	Ledger   SessionLedger
	Redis    *redis.Client
	Interval time.Duration
	Batch    int
	Log      *logrus.Logger

	now func() time.Time
}

func NewSweeper(l SessionLedger, rdb *redis.Client, interval time.Duration, batch int, log *logrus.Logger) *Sweeper {
	return &Sweeper{
		Ledger:   l,
		Redis:    rdb,
		Interval: interval,
		Batch:    batch,
		Log:      log,
		now:      time.Now,
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	s.Log.WithField("interval", s.Interval).Info("Checkout session sweeper started")

	// Run once at start
	s.runLogged(ctx)

	for {
		select {
		case <-ctx.Done():
			s.Log.Info("Checkout session sweeper stopped")
			return
		case <-ticker.C:
			s.runLogged(ctx)
		}
	}
}

func (s *Sweeper) runLogged(ctx context.Context) {
	n, err := s.RunOnce(ctx)
	if err != nil {
		s.Log.WithError(err).Error("Checkout session sweep failed")
		return
	}
	if n > 0 {
		s.Log.WithField("expired", n).Info("Expired stale checkout sessions")
	}
}

// RunOnce expires one batch of stale sessions and returns how many it
// expired. It does nothing when another host holds the sweep lock.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	token := uuid.NewString()
	ok, err := s.Redis.SetNX(ctx, sweepLockKey, token, s.lockTTL()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to acquire sweep lock: %w", err)
	}
	if !ok {
		s.Log.Debug("Sweep lock held elsewhere, skipping cycle")
		return 0, nil
	}
	defer func() {
		if err := releaseLock.Run(context.WithoutCancel(ctx), s.Redis, []string{sweepLockKey}, token).Err(); err != nil {
			s.Log.WithError(err).Warn("Failed to release sweep lock")
		}
	}()

	stale, err := s.Ledger.StaleSessions(ctx, s.now(), s.Batch)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, session := range stale {
		var didExpire bool
		err := s.Ledger.InTx(ctx, func(tx ledger.Tx) error {
			var err error
			didExpire, err = expireSession(tx, session.OrderID)
			return err
		})
		if err != nil {
			s.Log.WithFields(logrus.Fields{"order_id": session.OrderID, "error": err}).Error("Failed to expire checkout session")
			continue
		}
		if didExpire {
			expired++
		}
	}
	return expired, nil
}

func (s *Sweeper) lockTTL() time.Duration {
	if s.Interval > time.Minute {
		return s.Interval
	}
	return time.Minute
}

// expireSession closes a stale session. A pending payment becomes cancelled,
// which is a legal finality step: a genuine success arriving later still wins.
// Lock order matches the reconciliation coordinator.
func expireSession(tx ledger.Tx, orderID string) (bool, error) {
	p, err := tx.PaymentByOrderForUpdate(orderID)
	if err != nil && !errors.Is(err, ledger.ErrNotFound) {
		return false, err
	}
	session, err := tx.SessionByOrderForUpdate(orderID)
	if err != nil {
		return false, err
	}
	if session.Status != models.SessionOpen {
		return false, nil
	}

	if p != nil && p.Status.Terminal() {
		session.Status = models.SessionCompleted
		return false, tx.SaveSession(session)
	}

	session.Status = models.SessionExpired
	if err := tx.SaveSession(session); err != nil {
		return false, err
	}

	if p != nil {
		p.Status = models.PaymentCancelled
		p.LastChannel = "sweep"
		if err := tx.SavePayment(p); err != nil {
			return false, err
		}
	}

	b, err := tx.BookingByOrderForUpdate(orderID)
	if errors.Is(err, ledger.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	if b.Status == models.BookingPending && b.PaymentStatus == models.BookingUnpaid {
		b.Status = models.BookingCancelled
		if err := tx.SaveBooking(b); err != nil {
			return false, err
		}
	}
	return true, nil
}
