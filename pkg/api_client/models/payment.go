package models

import "time"

const (
	GatewayStripe     = "stripe"
	GatewayNMI        = "nmi"
	GatewayMerchantic = "merchantic"

	PaymentPending = "pending"
	PaymentPaid    = "paid"
	PaymentFailed  = "failed"
)

// Payment correlates a gateway charge with the credits it buys for one key.
type Payment struct {
	ID            string     `gorm:"column:id;primaryKey" json:"id"`
	UserID        string     `gorm:"column:user_id;index;not null" json:"userId"`
	ApiKeyID      string     `gorm:"column:api_key_id;index;not null" json:"apiKeyId"`
	Gateway       string     `gorm:"column:gateway;not null" json:"gateway"`
	ExternalID    string     `gorm:"column:external_id;index" json:"externalId,omitempty"`
	OrderRef      string     `gorm:"column:order_ref;uniqueIndex" json:"orderRef"`
	Credits       int        `gorm:"column:credits;not null" json:"credits"`
	AmountCents   int64      `gorm:"column:amount_cents;not null" json:"amountCents"`
	Currency      string     `gorm:"column:currency;not null" json:"currency"`
	Status        string     `gorm:"column:status;index;not null" json:"status"`
	FailureReason string     `gorm:"column:failure_reason" json:"failureReason,omitempty"`
	CreatedAt     time.Time  `gorm:"column:created_at" json:"createdAt"`
	PaidAt        *time.Time `gorm:"column:paid_at" json:"paidAt,omitempty"`
}

// MaxPurchaseCredits caps a single purchase.
const MaxPurchaseCredits = 100000000

type QuoteParams struct {
	Credits int `query:"credits" binding:"required,min=1,max=100000000"`
}

type Quote struct {
	Credits     int    `json:"credits"`
	AmountCents int64  `json:"amountCents"`
	Currency    string `json:"currency"`
}

type CheckoutInput struct {
	ApiKeyID string `json:"apiKeyId" binding:"required"`
	Credits  int    `json:"credits" binding:"required,min=1,max=100000000"`
}

type CheckoutResponse struct {
	PaymentID   string `json:"paymentId"`
	CheckoutURL string `json:"checkoutUrl"`
	Quote
}

type ChargeInput struct {
	ApiKeyID     string `json:"apiKeyId" binding:"required"`
	Credits      int    `json:"credits" binding:"required,min=1,max=100000000"`
	Gateway      string `json:"gateway" binding:"required,oneof=nmi merchantic"`
	PaymentToken string `json:"paymentToken" binding:"required"`
}
