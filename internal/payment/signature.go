package payment

import (
	"crypto/md5"
	"encoding/hex"
	"strings"

	"github.com/shopspring/decimal"
)

// Signer computes the gateway's hashes. Both checkout and callback hashes are
// chained through the uppercase MD5 of the merchant secret.
type Signer struct {
	merchantID   string
	secretDigest string
}

func NewSigner(merchantID, merchantSecret string) *Signer {
	return &Signer{
		merchantID:   merchantID,
		secretDigest: upperMD5(merchantSecret),
	}
}

func (s *Signer) MerchantID() string {
	return s.merchantID
}

// CheckoutHash signs the outbound checkout form.
func (s *Signer) CheckoutHash(orderID, amount, currency string) string {
	return upperMD5(s.merchantID + orderID + amount + currency + s.secretDigest)
}

// CallbackHash is the signature the gateway attaches to return and notify
// callbacks. amount must be the literal string the gateway sent.
func (s *Signer) CallbackHash(orderID, amount, currency, statusCode string) string {
	return upperMD5(s.merchantID + orderID + amount + currency + statusCode + s.secretDigest)
}

// FormatAmount renders an amount the way the gateway signs it: two decimals,
// no grouping.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func upperMD5(s string) string {
	sum := md5.Sum([]byte(s))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}
