package worker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/ChinthakaSandaruwan/property-system-sub000/internal/ledger"
	"github.com/ChinthakaSandaruwan/property-system-sub000/internal/models"
	"github.com/ChinthakaSandaruwan/property-system-sub000/internal/payment"
	"github.com/ChinthakaSandaruwan/property-system-sub000/internal/reconcile"
	"github.com/ChinthakaSandaruwan/property-system-sub000/internal/testutil"
)

type sweepFixture struct {
	db      *gorm.DB
	store   *ledger.Store
	redis   *miniredis.Miniredis
	sweeper *Sweeper
	prop    *models.Property
	now     time.Time
}

func newSweepFixture(t *testing.T) *sweepFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	db := testutil.NewDB(t)
	store := ledger.NewStore(db, 3, testutil.NewLogger())
	f := &sweepFixture{
		db:      db,
		store:   store,
		redis:   mr,
		sweeper: NewSweeper(store, rdb, 5*time.Minute, 50, testutil.NewLogger()),
		prop:    testutil.SeedProperty(t, db, "50000", "25000"),
		now:     time.Now(),
	}
	f.sweeper.now = func() time.Time { return f.now }
	return f
}

func (f *sweepFixture) session(t *testing.T, orderID string, expiresIn time.Duration) {
	t.Helper()
	s := &models.CheckoutSession{
		OrderID:         orderID,
		CustomerID:      7,
		PropertyID:      f.prop.ID,
		MonthlyRent:     f.prop.MonthlyRent,
		SecurityDeposit: f.prop.SecurityDeposit,
		Amount:          f.prop.MonthlyRent.Add(f.prop.SecurityDeposit),
		Currency:        "LKR",
		Status:          models.SessionOpen,
		ExpiresAt:       f.now.Add(expiresIn),
	}
	if err := f.store.CreateSession(context.Background(), s); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
}

func (f *sweepFixture) coordinator() (*reconcile.Coordinator, *payment.Signer) {
	signer := payment.NewSigner("1211149", "s3cr3t")
	return reconcile.NewCoordinator(payment.NewVerifier(signer), f.store, nil, time.Second, testutil.NewLogger()), signer
}

func (f *sweepFixture) notify(t *testing.T, orderID, code string) {
	t.Helper()
	c, signer := f.coordinator()
	res := c.HandleNotify(context.Background(), payment.CallbackFields{
		MerchantID: "1211149",
		OrderID:    orderID,
		Amount:     "75000.00",
		Currency:   "LKR",
		StatusCode: code,
		Signature:  signer.CallbackHash(orderID, "75000.00", "LKR", code),
		Custom1:    fmt.Sprint(f.prop.ID),
		Custom2:    "7",
	})
	if !res.Ack {
		t.Fatalf("notify %s not acked: %+v", code, res)
	}
}

func (f *sweepFixture) sessionStatus(t *testing.T, orderID string) models.SessionStatus {
	t.Helper()
	var s models.CheckoutSession
	if err := f.db.Where("order_id = ?", orderID).Take(&s).Error; err != nil {
		t.Fatalf("load session: %v", err)
	}
	return s.Status
}

func TestRunOnceExpiresStaleSessions(t *testing.T) {
	f := newSweepFixture(t)
	ctx := context.Background()

	f.session(t, "ORD-ABANDONED", -time.Hour)
	f.session(t, "ORD-PENDING", -time.Hour)
	f.session(t, "ORD-PAID", -time.Hour)
	f.session(t, "ORD-FRESH", time.Hour)
	f.notify(t, "ORD-PENDING", "0")
	f.notify(t, "ORD-PAID", "2")

	// The paid order's session was completed by the coordinator already.
	n, err := f.sweeper.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if n != 2 {
		t.Errorf("expired = %d, want 2", n)
	}

	want := map[string]models.SessionStatus{
		"ORD-ABANDONED": models.SessionExpired,
		"ORD-PENDING":   models.SessionExpired,
		"ORD-PAID":      models.SessionCompleted,
		"ORD-FRESH":     models.SessionOpen,
	}
	for order, status := range want {
		if got := f.sessionStatus(t, order); got != status {
			t.Errorf("%s session = %s, want %s", order, got, status)
		}
	}

	p, err := f.store.PaymentByOrder(ctx, "ORD-PENDING")
	if err != nil {
		t.Fatalf("PaymentByOrder: %v", err)
	}
	if p.Status != models.PaymentCancelled || p.LastChannel != "sweep" {
		t.Errorf("payment = %s via %s, want cancelled via sweep", p.Status, p.LastChannel)
	}
	b, err := f.store.BookingByOrder(ctx, "ORD-PENDING")
	if err != nil {
		t.Fatalf("BookingByOrder: %v", err)
	}
	if b.Status != models.BookingCancelled {
		t.Errorf("booking = %s, want cancelled", b.Status)
	}

	if f.redis.Exists(sweepLockKey) {
		t.Error("sweep lock was not released")
	}
}

func TestLateSuccessAfterExpiryStillConfirms(t *testing.T) {
	f := newSweepFixture(t)
	ctx := context.Background()
	f.session(t, "ORD-LATE", -time.Hour)
	f.notify(t, "ORD-LATE", "0")

	if _, err := f.sweeper.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	f.notify(t, "ORD-LATE", "2")

	b, err := f.store.BookingByOrder(ctx, "ORD-LATE")
	if err != nil {
		t.Fatalf("BookingByOrder: %v", err)
	}
	if b.Status != models.BookingConfirmed || b.PaymentStatus != models.BookingPaid {
		t.Errorf("booking = %s/%s, want confirmed/paid", b.Status, b.PaymentStatus)
	}
	prop, err := f.store.Property(ctx, f.prop.ID)
	if err != nil {
		t.Fatalf("Property: %v", err)
	}
	if prop.IsAvailable {
		t.Error("property still available after late success")
	}
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	f := newSweepFixture(t)
	f.session(t, "ORD-ABANDONED", -time.Hour)
	if err := f.redis.Set(sweepLockKey, "other-host"); err != nil {
		t.Fatalf("seed lock: %v", err)
	}

	n, err := f.sweeper.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if n != 0 {
		t.Errorf("expired = %d, want 0", n)
	}
	if got := f.sessionStatus(t, "ORD-ABANDONED"); got != models.SessionOpen {
		t.Errorf("session = %s, want open", got)
	}
	if v, _ := f.redis.Get(sweepLockKey); v != "other-host" {
		t.Errorf("foreign lock overwritten: %q", v)
	}
}
