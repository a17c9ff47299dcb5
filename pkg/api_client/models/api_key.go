package models

import "time"

const (
	VendorDeeep        = "deeep"
	VendorInstantEmail = "instantemail"
)

// ApiKey mirrors a vendor API key owned by a portal user. The plain key is
// only returned once, right after generation.
type ApiKey struct {
	ID           string    `gorm:"column:id;primaryKey" json:"id"`
	UserID       string    `gorm:"column:user_id;index;not null" json:"userId"`
	Vendor       string    `gorm:"column:vendor;index;not null" json:"vendor"`
	Label        string    `gorm:"column:label" json:"label,omitempty"`
	Key          string    `gorm:"column:key;not null" json:"-"`
	MaskedKey    string    `gorm:"column:masked_key" json:"maskedKey"`
	CustomerLink *string   `gorm:"column:customer_link" json:"customerLink,omitempty"`
	Credits      int       `gorm:"column:credits;not null;default:0" json:"credits"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"column:updated_at" json:"updatedAt"`
}

type ApiKeyParams struct {
	ID string `path:"id" binding:"required"`
}

type CreateApiKeyInput struct {
	Vendor string `json:"vendor" binding:"required,oneof=deeep instantemail"`
	Label  string `json:"label" binding:"max=64"`
}

// CreatedApiKey is the one-time view of a freshly generated key.
type CreatedApiKey struct {
	ApiKeySummary
	Key string `json:"key"`
}

type ApiKeySummary struct {
	ID           string    `json:"id"`
	Vendor       string    `json:"vendor"`
	Label        string    `json:"label,omitempty"`
	MaskedKey    string    `json:"maskedKey"`
	CustomerLink *string   `json:"customerLink,omitempty"`
	Credits      int       `json:"credits"`
	CreatedAt    time.Time `json:"createdAt"`
	Links        *Links    `json:"_links,omitempty"`
}

type AdjustCreditsInput struct {
	ID     string `path:"id" binding:"required"`
	Amount int    `json:"amount" binding:"required"`
	Reason string `json:"reason"`
}

type CreditBalance struct {
	ApiKeyID string `json:"apiKeyId"`
	Vendor   string `json:"vendor"`
	Credits  int    `json:"credits"`
	Live     bool   `json:"live"`
}
