package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

// CheckoutRequest is what the customer submits to start renting a property.
// MonthlyRent and SecurityDeposit may be left zero to use the property's terms.
type CheckoutRequest struct {
	CustomerID      uint            `json:"customer_id" binding:"required"`
	PropertyID      uint            `json:"property_id" binding:"required"`
	FirstName       string          `json:"first_name" binding:"required"`
	LastName        string          `json:"last_name"`
	Email           string          `json:"email" binding:"required,email"`
	Phone           string          `json:"phone"`
	Address         string          `json:"address"`
	City            string          `json:"city"`
	Country         string          `json:"country"`
	MonthlyRent     decimal.Decimal `json:"monthly_rent"`
	SecurityDeposit decimal.Decimal `json:"security_deposit"`
	Items           string          `json:"items"`
	ReturnURL       string          `json:"return_url"`
	NotifyURL       string          `json:"notify_url"`
	CancelURL       string          `json:"cancel_url"`
}

// Checkout is the signed form the customer's browser posts to the gateway.
type Checkout struct {
	ActionURL string            `json:"action_url"`
	OrderID   string            `json:"order_id"`
	Fields    map[string]string `json:"fields"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// CallbackFields is the raw callback as received on either the return query
// string or the notify form body. Nothing in it is trusted before Verify.
type CallbackFields struct {
	MerchantID       string `form:"merchant_id"`
	OrderID          string `form:"order_id"`
	GatewayPaymentID string `form:"gateway_payment_id"`
	Amount           string `form:"amount"`
	Currency         string `form:"currency"`
	StatusCode       string `form:"status_code"`
	Signature        string `form:"signature"`
	Custom1          string `form:"custom_1"`
	Custom2          string `form:"custom_2"`
	StatusMessage    string `form:"status_message"`
}

func (f CallbackFields) Map() map[string]string {
	return map[string]string{
		"merchant_id":        f.MerchantID,
		"order_id":           f.OrderID,
		"gateway_payment_id": f.GatewayPaymentID,
		"amount":             f.Amount,
		"currency":           f.Currency,
		"status_code":        f.StatusCode,
		"signature":          f.Signature,
		"custom_1":           f.Custom1,
		"custom_2":           f.Custom2,
		"status_message":     f.StatusMessage,
	}
}

// Callback is a callback whose signature has been checked.
type Callback struct {
	OrderID          string
	GatewayPaymentID string
	Amount           decimal.Decimal
	Currency         string
	StatusCode       string
	StatusMessage    string
	Outcome          Outcome
	// PropertyID and CustomerID come from custom_1/custom_2; zero when absent.
	PropertyID uint
	CustomerID uint
	Raw        map[string]string
}
