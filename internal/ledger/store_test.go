package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ChinthakaSandaruwan/property-system-sub000/internal/models"
	"github.com/ChinthakaSandaruwan/property-system-sub000/internal/testutil"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(testutil.NewDB(t), 3, testutil.NewLogger())
	s.backoff = time.Millisecond
	return s
}

func makePayment(orderID string) *models.Payment {
	return &models.Payment{
		OrderID:  orderID,
		Amount:   decimal.RequireFromString("75000.00"),
		Currency: "LKR",
		Status:   models.PaymentPending,
	}
}

func TestInsertPaymentDuplicateOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	insert := func() error {
		return s.InTx(ctx, func(tx Tx) error {
			return tx.InsertPayment(makePayment("ORD-dup"))
		})
	}

	if err := insert(); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	err := insert()
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second insert error = %v, want ErrDuplicate", err)
	}

	p, err := s.PaymentByOrder(ctx, "ORD-dup")
	if err != nil {
		t.Fatalf("PaymentByOrder: %v", err)
	}
	if p.Status != models.PaymentPending {
		t.Errorf("status = %s, want pending", p.Status)
	}
}

func TestPaymentByOrderNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.PaymentByOrder(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestCreateAgreementOncePerBooking(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var created []bool
	for i := 0; i < 3; i++ {
		err := s.InTx(ctx, func(tx Tx) error {
			ok, err := tx.CreateAgreement(42)
			created = append(created, ok)
			return err
		})
		if err != nil {
			t.Fatalf("CreateAgreement #%d: %v", i, err)
		}
	}

	if !created[0] || created[1] || created[2] {
		t.Errorf("created = %v, want [true false false]", created)
	}
	n, err := s.AgreementCount(ctx, 42)
	if err != nil {
		t.Fatalf("AgreementCount: %v", err)
	}
	if n != 1 {
		t.Errorf("agreements = %d, want 1", n)
	}
}

func TestSetPropertyUnavailableFlipsOnce(t *testing.T) {
	db := testutil.NewDB(t)
	s := NewStore(db, 1, testutil.NewLogger())
	prop := testutil.SeedProperty(t, db, "50000", "25000")
	ctx := context.Background()

	var flips []bool
	for i := 0; i < 2; i++ {
		err := s.InTx(ctx, func(tx Tx) error {
			ok, err := tx.SetPropertyUnavailable(prop.ID)
			flips = append(flips, ok)
			return err
		})
		if err != nil {
			t.Fatalf("SetPropertyUnavailable: %v", err)
		}
	}
	if !flips[0] || flips[1] {
		t.Errorf("flips = %v, want [true false]", flips)
	}

	got, err := s.Property(ctx, prop.ID)
	if err != nil {
		t.Fatalf("Property: %v", err)
	}
	if got.IsAvailable {
		t.Error("property still available")
	}
}

func TestInTx(t *testing.T) {
	errDomain := errors.New("domain rejection")

	tests := []struct {
		name      string
		failures  int
		failWith  error
		wantCalls int
		wantErr   error
	}{
		{
			name:      "Given no error When running Then fn runs once",
			wantCalls: 1,
		},
		{
			name:      "Given one conflict When running Then it retries and succeeds",
			failures:  1,
			failWith:  fmt.Errorf("%w: sqlstate 40001", ErrConflict),
			wantCalls: 2,
		},
		{
			name:      "Given persistent conflicts When running Then retries are bounded",
			failures:  10,
			failWith:  fmt.Errorf("%w: sqlstate 40P01", ErrConflict),
			wantCalls: 3,
			wantErr:   ErrPersistence,
		},
		{
			name:      "Given a domain error When running Then it is returned untouched",
			failures:  1,
			failWith:  errDomain,
			wantCalls: 1,
			wantErr:   errDomain,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			calls := 0
			err := s.InTx(context.Background(), func(tx Tx) error {
				calls++
				if calls <= tt.failures {
					return tt.failWith
				}
				return nil
			})

			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if tt.wantErr == nil && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestInTxRollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.InTx(ctx, func(tx Tx) error {
		if err := tx.InsertPayment(makePayment("ORD-rollback")); err != nil {
			return err
		}
		return errors.New("abort")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if _, err := s.PaymentByOrder(ctx, "ORD-rollback"); !errors.Is(err, ErrNotFound) {
		t.Errorf("payment survived rollback: err = %v", err)
	}
}

func TestStaleSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	sessions := []models.CheckoutSession{
		{OrderID: "ORD-old", ExpiresAt: now.Add(-2 * time.Hour), Status: models.SessionOpen},
		{OrderID: "ORD-older", ExpiresAt: now.Add(-3 * time.Hour), Status: models.SessionOpen},
		{OrderID: "ORD-fresh", ExpiresAt: now.Add(time.Hour), Status: models.SessionOpen},
		{OrderID: "ORD-done", ExpiresAt: now.Add(-time.Hour), Status: models.SessionCompleted},
	}
	for i := range sessions {
		sessions[i].CustomerID = 1
		sessions[i].PropertyID = 1
		sessions[i].Currency = "LKR"
		if err := s.CreateSession(ctx, &sessions[i]); err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
	}

	got, err := s.StaleSessions(ctx, now, 10)
	if err != nil {
		t.Fatalf("StaleSessions: %v", err)
	}
	if len(got) != 2 || got[0].OrderID != "ORD-older" || got[1].OrderID != "ORD-old" {
		t.Errorf("stale sessions = %+v, want ORD-older then ORD-old", got)
	}

	limited, err := s.StaleSessions(ctx, now, 1)
	if err != nil {
		t.Fatalf("StaleSessions: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("len = %d, want 1", len(limited))
	}
}
