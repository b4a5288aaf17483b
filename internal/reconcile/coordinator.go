package reconcile

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ChinthakaSandaruwan/property-system-sub000/internal/ledger"
	"github.com/ChinthakaSandaruwan/property-system-sub000/internal/models"
	"github.com/ChinthakaSandaruwan/property-system-sub000/internal/notify"
	"github.com/ChinthakaSandaruwan/property-system-sub000/internal/payment"
)

var tracer = otel.Tracer("property-system/reconcile")

type Channel string

const (
	ChannelReturn Channel = "return"
	ChannelNotify Channel = "notify"
)

type Verifier interface {
	Verify(f payment.CallbackFields) (*payment.Callback, error)
}

// Ledger is the slice of ledger.Store the coordinator needs.
type Ledger interface {
	InTx(ctx context.Context, fn func(ledger.Tx) error) error
	PaymentByOrder(ctx context.Context, orderID string) (*models.Payment, error)
}

// Coordinator merges gateway callbacks from both delivery paths into the
// ledger. It keeps no per-order state in memory: concurrent calls for the same
// order, on this process or another, are serialised by the ledger.
type Coordinator struct {
	verifier        Verifier
	ledger          Ledger
	dispatcher      notify.Dispatcher
	dispatchTimeout time.Duration
	availability    availabilityUpdater
	log             *logrus.Logger

	inflight sync.WaitGroup
}

func NewCoordinator(v Verifier, l Ledger, d notify.Dispatcher, dispatchTimeout time.Duration, log *logrus.Logger) *Coordinator {
	if dispatchTimeout <= 0 {
		dispatchTimeout = 10 * time.Second
	}
	return &Coordinator{
		verifier:        v,
		ledger:          l,
		dispatcher:      d,
		dispatchTimeout: dispatchTimeout,
		availability:    availabilityUpdater{log: log},
		log:             log,
	}
}

type NotifyResult struct {
	// Ack false asks the gateway to retry later.
	Ack      bool
	Decision Decision
}

// HandleNotify processes the gateway's server-to-server callback. Every
// interpretable callback is acknowledged; only persistence failures are not.
func (c *Coordinator) HandleNotify(ctx context.Context, f payment.CallbackFields) NotifyResult {
	decision, err := c.handle(ctx, ChannelNotify, f)
	return NotifyResult{
		Ack:      !errors.Is(err, ErrPersistenceFailure),
		Decision: decision,
	}
}

type View string

const (
	ViewConfirmed  View = "confirmed"
	ViewProcessing View = "processing"
	ViewCancelled  View = "cancelled"
	ViewFailed     View = "failed"
	ViewInvalid    View = "invalid"
)

type ReturnResult struct {
	OrderID  string
	View     View
	Decision Decision
}

// HandleReturn processes the browser redirect. The redirect alone never proves
// success: the view is derived from the stored payment after reconciliation.
func (c *Coordinator) HandleReturn(ctx context.Context, f payment.CallbackFields) ReturnResult {
	decision, _ := c.handle(ctx, ChannelReturn, f)
	if decision == DecisionRejected {
		return ReturnResult{OrderID: f.OrderID, View: ViewInvalid, Decision: decision}
	}
	return ReturnResult{OrderID: f.OrderID, View: c.View(ctx, f.OrderID), Decision: decision}
}

// View reports what the customer should be shown for an order.
func (c *Coordinator) View(ctx context.Context, orderID string) View {
	p, err := c.ledger.PaymentByOrder(ctx, orderID)
	if err != nil {
		if !errors.Is(err, ledger.ErrNotFound) {
			c.log.WithFields(logrus.Fields{"order_id": orderID, "error": err}).Warn("Failed to read payment for view")
		}
		return ViewProcessing
	}
	switch p.Status {
	case models.PaymentSuccessful:
		return ViewConfirmed
	case models.PaymentCancelled:
		return ViewCancelled
	case models.PaymentFailed, models.PaymentChargedBack:
		return ViewFailed
	}
	return ViewProcessing
}

// Wait blocks until post-commit dispatches started so far have finished.
func (c *Coordinator) Wait() {
	c.inflight.Wait()
}

func (c *Coordinator) handle(ctx context.Context, ch Channel, f payment.CallbackFields) (Decision, error) {
	ctx, span := tracer.Start(ctx, "reconcile."+string(ch), trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()
	span.SetAttributes(attribute.String("order_id", f.OrderID))

	entry := c.log.WithFields(logrus.Fields{
		"channel":     ch,
		"order_id":    f.OrderID,
		"status_code": f.StatusCode,
	})
	if sc := span.SpanContext(); sc.IsValid() {
		entry = entry.WithField("trace_id", sc.TraceID().String())
	}

	cb, err := c.verifier.Verify(f)
	if err == nil {
		var res *result
		res, err = c.reconcile(ctx, ch, cb)
		if err == nil {
			c.dispatch(res.events)
		}
	}

	decision := decisionFor(err)
	span.SetAttributes(attribute.String("decision", string(decision)))
	entry = entry.WithField("decision", decision)

	switch decision {
	case DecisionApplied:
		entry.Info("Callback applied")
	case DecisionDuplicate, DecisionIgnored:
		entry.Info("Callback acknowledged without changes")
	case DecisionDowngrade:
		entry.WithError(err).Warn("Rejected stale status downgrade")
	case DecisionUnknownStatus:
		entry.Warn("Unknown gateway status code, no changes made")
	case DecisionRejected:
		entry.WithError(err).Error("Rejected callback")
	default:
		span.SetStatus(codes.Error, "persistence failure")
		span.RecordError(err)
		entry.WithError(err).Error("Failed to reconcile callback")
		err = errors.Join(ErrPersistenceFailure, err)
	}
	return decision, err
}

// reconcile applies a verified callback. A lost insert race means the other
// channel created the payment first; the attempt is repeated once against the
// now existing row.
func (c *Coordinator) reconcile(ctx context.Context, ch Channel, cb *payment.Callback) (*result, error) {
	if cb.Outcome == payment.OutcomeUnknown {
		return nil, ErrUnknownStatusCode
	}

	var err error
	for attempt := 0; attempt < 2; attempt++ {
		var res *result
		err = c.ledger.InTx(ctx, func(tx ledger.Tx) error {
			var applyErr error
			res, applyErr = c.apply(tx, ch, cb)
			return applyErr
		})
		if errors.Is(err, ledger.ErrDuplicate) {
			c.log.WithField("order_id", cb.OrderID).Info("Payment row created concurrently, re-applying")
			continue
		}
		return res, err
	}
	return nil, err
}

func (c *Coordinator) dispatch(events []notify.Event) {
	if c.dispatcher == nil || len(events) == 0 {
		return
	}

	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()

		ctx, cancel := context.WithTimeout(context.Background(), c.dispatchTimeout)
		defer cancel()
		for _, ev := range events {
			if err := c.dispatcher.Dispatch(ctx, ev); err != nil {
				c.log.WithFields(logrus.Fields{"order_id": ev.OrderID, "event": ev.Kind, "error": err}).Warn("Failed to dispatch booking event")
			}
		}
	}()
}
