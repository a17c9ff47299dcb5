// Package payments talks to the card and checkout gateways that sell credits.
package payments

import (
	"errors"
	"fmt"
)

// ErrDeclined is returned when a gateway refuses a charge.
var ErrDeclined = errors.New("payment declined")

// ErrDisabled is returned when a gateway has no credentials configured.
var ErrDisabled = errors.New("payment gateway is not configured")

// CheckoutRequest describes one hosted checkout for a credits purchase.
type CheckoutRequest struct {
	PaymentID   string
	ApiKeyID    string
	OrderRef    string
	Credits     int
	AmountCents int64
	Currency    string
	Email       string
}

type CheckoutSession struct {
	ID  string
	URL string
}

// CheckoutEvent is the gateway-independent view of a checkout webhook.
type CheckoutEvent struct {
	Type      string
	SessionID string
	PaymentID string
	Paid      bool
}

const (
	EventCheckoutCompleted = "checkout.completed"
	EventCheckoutExpired   = "checkout.expired"
	EventIgnored           = "ignored"
)

type SaleRequest struct {
	OrderRef     string
	AmountCents  int64
	Currency     string
	PaymentToken string
}

type SaleResult struct {
	TransactionID string
	AuthCode      string
	Message       string
}

func formatAmount(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
