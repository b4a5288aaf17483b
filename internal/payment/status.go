package payment

import "github.com/ChinthakaSandaruwan/property-system-sub000/internal/models"

type Outcome string

const (
	OutcomeSuccess    Outcome = "success"
	OutcomePending    Outcome = "pending"
	OutcomeCancelled  Outcome = "cancelled"
	OutcomeFailed     Outcome = "failed"
	OutcomeChargeback Outcome = "chargeback"
	OutcomeRefund     Outcome = "refund"
	OutcomeUnknown    Outcome = "unknown"
)

var statusCodes = map[string]Outcome{
	"2":  OutcomeSuccess,
	"0":  OutcomePending,
	"-1": OutcomeCancelled,
	"-2": OutcomeFailed,
	"-3": OutcomeChargeback,
	"-4": OutcomeRefund,
}

// OutcomeForCode maps a gateway status_code. Codes missing from the table are
// OutcomeUnknown and must never be treated as success.
func OutcomeForCode(code string) Outcome {
	if o, ok := statusCodes[code]; ok {
		return o
	}
	return OutcomeUnknown
}

// PaymentStatus is the ledger status an outcome records. Refund and unknown
// outcomes have none.
func (o Outcome) PaymentStatus() (models.PaymentStatus, bool) {
	switch o {
	case OutcomeSuccess:
		return models.PaymentSuccessful, true
	case OutcomePending:
		return models.PaymentPending, true
	case OutcomeCancelled:
		return models.PaymentCancelled, true
	case OutcomeFailed:
		return models.PaymentFailed, true
	case OutcomeChargeback:
		return models.PaymentChargedBack, true
	}
	return "", false
}
