package reconcile

import (
	"errors"

	"github.com/ChinthakaSandaruwan/property-system-sub000/internal/ledger"
	"github.com/ChinthakaSandaruwan/property-system-sub000/internal/payment"
)

// Callback error taxonomy. Everything except ErrPersistenceFailure is answered
// to the gateway as a success so it stops retrying.
var (
	ErrSignatureMismatch    = payment.ErrSignatureMismatch
	ErrMalformedCallback    = payment.ErrMalformedCallback
	ErrCallbackMismatch     = errors.New("reconcile: callback does not match checkout")
	ErrDuplicateCallback    = errors.New("reconcile: duplicate callback")
	ErrStaleStatusDowngrade = errors.New("reconcile: stale status downgrade")
	ErrUnknownStatusCode    = errors.New("reconcile: unknown status code")
	ErrPersistenceFailure   = ledger.ErrPersistence

	errNothingToRefund = errors.New("reconcile: refund for unpaid booking")
)

type Decision string

const (
	DecisionApplied       Decision = "applied"
	DecisionDuplicate     Decision = "duplicate"
	DecisionDowngrade     Decision = "downgrade"
	DecisionIgnored       Decision = "ignored"
	DecisionUnknownStatus Decision = "unknown_status"
	DecisionRejected      Decision = "rejected"
	DecisionFailed        Decision = "persistence_failure"
)

func decisionFor(err error) Decision {
	switch {
	case err == nil:
		return DecisionApplied
	case errors.Is(err, ErrDuplicateCallback):
		return DecisionDuplicate
	case errors.Is(err, ErrStaleStatusDowngrade):
		return DecisionDowngrade
	case errors.Is(err, ErrUnknownStatusCode):
		return DecisionUnknownStatus
	case errors.Is(err, errNothingToRefund):
		return DecisionIgnored
	case errors.Is(err, ErrSignatureMismatch), errors.Is(err, ErrMalformedCallback), errors.Is(err, ErrCallbackMismatch):
		return DecisionRejected
	}
	return DecisionFailed
}
