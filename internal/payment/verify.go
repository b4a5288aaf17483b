package payment

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrSignatureMismatch = errors.New("payment: callback signature mismatch")
	ErrMalformedCallback = errors.New("payment: malformed callback")
)

type Verifier struct {
	signer *Signer
}

func NewVerifier(signer *Signer) *Verifier {
	return &Verifier{signer: signer}
}

// Verify recomputes the callback signature and parses the fields. It fails
// closed, and its errors never include the expected signature.
func (v *Verifier) Verify(f CallbackFields) (*Callback, error) {
	if f.OrderID == "" || f.Amount == "" || f.Currency == "" || f.StatusCode == "" || f.Signature == "" {
		return nil, fmt.Errorf("%w: missing required field", ErrMalformedCallback)
	}
	if f.MerchantID != v.signer.MerchantID() {
		return nil, fmt.Errorf("%w: unexpected merchant", ErrSignatureMismatch)
	}

	expected := v.signer.CallbackHash(f.OrderID, f.Amount, f.Currency, f.StatusCode)
	received := strings.ToUpper(strings.TrimSpace(f.Signature))
	if subtle.ConstantTimeCompare([]byte(expected), []byte(received)) != 1 {
		return nil, ErrSignatureMismatch
	}

	amount, err := decimal.NewFromString(f.Amount)
	if err != nil {
		return nil, fmt.Errorf("%w: amount %q", ErrMalformedCallback, f.Amount)
	}

	return &Callback{
		OrderID:          f.OrderID,
		GatewayPaymentID: f.GatewayPaymentID,
		Amount:           amount,
		Currency:         strings.ToUpper(f.Currency),
		StatusCode:       f.StatusCode,
		StatusMessage:    f.StatusMessage,
		Outcome:          OutcomeForCode(f.StatusCode),
		PropertyID:       parseID(f.Custom1),
		CustomerID:       parseID(f.Custom2),
		Raw:              f.Map(),
	}, nil
}

func parseID(s string) uint {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return uint(id)
}
