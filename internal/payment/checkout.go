package payment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ChinthakaSandaruwan/property-system-sub000/internal/ledger"
	"github.com/ChinthakaSandaruwan/property-system-sub000/internal/models"
)

var (
	ErrInvalidCheckout     = errors.New("payment: invalid checkout request")
	ErrPropertyUnavailable = errors.New("payment: property is not available")
)

// SessionStore persists checkout sessions and reads property rent terms.
type SessionStore interface {
	Property(ctx context.Context, id uint) (*models.Property, error)
	CreateSession(ctx context.Context, session *models.CheckoutSession) error
}

type BuilderConfig struct {
	CheckoutURL string
	Currency    string
	ReturnURL   string
	NotifyURL   string
	CancelURL   string
	SessionTTL  time.Duration
}

// Builder produces signed checkout forms and records a CheckoutSession for
// each one.
type Builder struct {
	signer *Signer
	store  SessionStore
	cfg    BuilderConfig
	log    *logrus.Logger

	now        func() time.Time
	newOrderID func() string
}

func NewBuilder(signer *Signer, store SessionStore, cfg BuilderConfig, log *logrus.Logger) *Builder {
	return &Builder{
		signer:     signer,
		store:      store,
		cfg:        cfg,
		log:        log,
		now:        time.Now,
		newOrderID: NewOrderID,
	}
}

// NewOrderID mints a random order id. It is never derived from the clock or
// from the customer and property ids.
func NewOrderID() string {
	return "ORD-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

func (b *Builder) Build(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	if req.CustomerID == 0 || req.PropertyID == 0 || req.Email == "" || req.FirstName == "" {
		return nil, fmt.Errorf("%w: customer, property, name and email are required", ErrInvalidCheckout)
	}
	if req.MonthlyRent.IsNegative() || req.SecurityDeposit.IsNegative() {
		return nil, fmt.Errorf("%w: negative amount", ErrInvalidCheckout)
	}

	prop, err := b.store.Property(ctx, req.PropertyID)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, fmt.Errorf("%w: unknown property %d", ErrInvalidCheckout, req.PropertyID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load property: %w", err)
	}
	if !prop.IsAvailable {
		return nil, ErrPropertyUnavailable
	}

	rent, deposit, err := rentTerms(req, prop)
	if err != nil {
		return nil, err
	}
	amount := rent.Add(deposit)
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidCheckout)
	}

	now := b.now()
	orderID := b.newOrderID()
	amountText := FormatAmount(amount)
	currency := b.cfg.Currency

	session := &models.CheckoutSession{
		OrderID:         orderID,
		CustomerID:      req.CustomerID,
		PropertyID:      req.PropertyID,
		MonthlyRent:     rent,
		SecurityDeposit: deposit,
		Amount:          amount,
		Currency:        currency,
		Status:          models.SessionOpen,
		ExpiresAt:       now.Add(b.cfg.SessionTTL),
	}
	if err := b.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save checkout session: %w", err)
	}

	items := req.Items
	if items == "" {
		items = fmt.Sprintf("Rent and deposit for %s", prop.Title)
	}

	fields := map[string]string{
		"merchant_id": b.signer.MerchantID(),
		"return_url":  firstNonEmpty(req.ReturnURL, b.cfg.ReturnURL),
		"cancel_url":  firstNonEmpty(req.CancelURL, b.cfg.CancelURL),
		"notify_url":  firstNonEmpty(req.NotifyURL, b.cfg.NotifyURL),
		"order_id":    orderID,
		"items":       items,
		"currency":    currency,
		"amount":      amountText,
		"first_name":  req.FirstName,
		"last_name":   req.LastName,
		"email":       req.Email,
		"phone":       req.Phone,
		"address":     req.Address,
		"city":        req.City,
		"country":     req.Country,
		"custom_1":    strconv.FormatUint(uint64(req.PropertyID), 10),
		"custom_2":    strconv.FormatUint(uint64(req.CustomerID), 10),
		"hash":        b.signer.CheckoutHash(orderID, amountText, currency),
	}

	b.log.WithFields(logrus.Fields{
		"order_id":    orderID,
		"property_id": req.PropertyID,
		"customer_id": req.CustomerID,
		"amount":      amountText,
	}).Info("Checkout session created")

	return &Checkout{
		ActionURL: b.cfg.CheckoutURL,
		OrderID:   orderID,
		Fields:    fields,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// rentTerms uses the property's rent terms; amounts supplied by the client
// must agree with them.
func rentTerms(req CheckoutRequest, prop *models.Property) (decimal.Decimal, decimal.Decimal, error) {
	rent, deposit := prop.MonthlyRent, prop.SecurityDeposit
	if !req.MonthlyRent.IsZero() && !req.MonthlyRent.Equal(rent) {
		return rent, deposit, fmt.Errorf("%w: monthly rent does not match the listing", ErrInvalidCheckout)
	}
	if !req.SecurityDeposit.IsZero() && !req.SecurityDeposit.Equal(deposit) {
		return rent, deposit, fmt.Errorf("%w: security deposit does not match the listing", ErrInvalidCheckout)
	}
	return rent, deposit, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
