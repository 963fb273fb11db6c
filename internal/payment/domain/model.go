package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// PaymentStatus is the lifecycle state of a payment. CREATED is the only
// non-terminal state; no transition out of a terminal state is permitted.
type PaymentStatus string

const (
	StatusCreated   PaymentStatus = "CREATED"
	StatusPaid      PaymentStatus = "PAID"
	StatusDeclined  PaymentStatus = "DECLINED"
	StatusError     PaymentStatus = "ERROR"
	StatusCancelled PaymentStatus = "CANCELLED"
)

// Terminal reports whether no further transition is accepted from s.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case StatusPaid, StatusDeclined, StatusError, StatusCancelled:
		return true
	}
	return false
}

// Valid reports whether s is a known status value.
func (s PaymentStatus) Valid() bool {
	return s == StatusCreated || s.Terminal()
}

const (
	ProductTypeCourse     = "course"
	ProductTypeGiftCard   = "gift_card"
	ProductTypeArtProduct = "art_product"
)

// Audit trail sources. Every observed transition records which path saw it.
const (
	SourceCallback    = "callback"
	SourcePoll        = "poll"
	SourceForcedCheck = "forced-check"
	SourceCancel      = "cancel"
	SourceError       = "error"
)

// PaymentRecord is the durable source of truth for one payment. Reference is
// the caller-generated correlation key shared with the provider; Metadata is
// an append-only audit trail of observed transitions.
type PaymentRecord struct {
	ID                snowflake.ID   `json:"id" gorm:"primaryKey"`
	Reference         string         `json:"reference" gorm:"type:text;not null;uniqueIndex"`
	ProviderPaymentID string         `json:"provider_payment_id" gorm:"type:text"`
	Status            PaymentStatus  `json:"status" gorm:"type:text;not null"`
	Amount            int64          `json:"amount" gorm:"not null"`
	Currency          string         `json:"currency" gorm:"type:text;not null"`
	ProductType       string         `json:"product_type" gorm:"type:text;not null"`
	ProductID         string         `json:"product_id" gorm:"type:text;not null"`
	PayerContact      string         `json:"payer_contact" gorm:"type:text;not null"`
	CustomerName      string         `json:"customer_name" gorm:"type:text"`
	CustomerEmail     string         `json:"customer_email" gorm:"type:text"`
	Metadata          datatypes.JSON `json:"metadata" gorm:"type:jsonb"`
	BookingID         *snowflake.ID  `json:"booking_id"`
	GiftCardID        *snowflake.ID  `json:"gift_card_id"`
	FulfilledAt       *time.Time     `json:"fulfilled_at"`
	CreatedAt         time.Time      `json:"created_at" gorm:"not null"`
	UpdatedAt         time.Time      `json:"updated_at" gorm:"not null"`
}

func (PaymentRecord) TableName() string { return "payments" }

// AuditEntry is one element of the PaymentRecord metadata trail.
type AuditEntry struct {
	Status         PaymentStatus `json:"status"`
	Source         string        `json:"source"`
	ObservedAmount *int64        `json:"observed_amount,omitempty"`
	Note           string        `json:"note,omitempty"`
	At             time.Time     `json:"at"`
}
