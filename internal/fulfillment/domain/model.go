package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrBookingNotFound  = errors.New("fulfillment: booking not found")
	ErrGiftCardNotFound = errors.New("fulfillment: gift card not found")
)

// Booking is a confirmed course seat created when a course payment settles.
// PaymentReference is unique, so a replayed settlement signal cannot create a
// second booking for the same payment.
type Booking struct {
	ID               snowflake.ID `json:"id" gorm:"primaryKey"`
	PaymentReference string       `json:"payment_reference" gorm:"type:text;not null;uniqueIndex"`
	CourseID         string       `json:"course_id" gorm:"type:text;not null"`
	CustomerName     string       `json:"customer_name" gorm:"type:text"`
	CustomerEmail    string       `json:"customer_email" gorm:"type:text"`
	CustomerPhone    string       `json:"customer_phone" gorm:"type:text"`
	Participants     int          `json:"participants" gorm:"not null"`
	Status           string       `json:"status" gorm:"type:text;not null"`
	CreatedAt        time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt        time.Time    `json:"updated_at" gorm:"not null"`
}

func (Booking) TableName() string { return "bookings" }

const (
	BookingStatusConfirmed = "confirmed"
	BookingStatusCancelled = "cancelled"
)

// GiftCard is issued when a gift-card payment settles. Code is the
// customer-facing redemption key; InvoiceNumber ties the card to the invoice
// document sent by the delivery job.
type GiftCard struct {
	ID               snowflake.ID `json:"id" gorm:"primaryKey"`
	Code             string       `json:"code" gorm:"type:text;not null;uniqueIndex"`
	InvoiceNumber    string       `json:"invoice_number" gorm:"type:text"`
	PaymentReference string       `json:"payment_reference" gorm:"type:text;not null;index"`
	Amount           int64        `json:"amount" gorm:"not null"`
	Currency         string       `json:"currency" gorm:"type:text;not null"`
	RecipientName    string       `json:"recipient_name" gorm:"type:text"`
	RecipientEmail   string       `json:"recipient_email" gorm:"type:text"`
	Message          string       `json:"message" gorm:"type:text"`
	Status           string       `json:"status" gorm:"type:text;not null"`
	ExpiresAt        *time.Time   `json:"expires_at"`
	CreatedAt        time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt        time.Time    `json:"updated_at" gorm:"not null"`
}

func (GiftCard) TableName() string { return "gift_cards" }

const (
	GiftCardStatusActive   = "active"
	GiftCardStatusRedeemed = "redeemed"
	GiftCardStatusExpired  = "expired"
)

// Course is catalog data for a bookable course.
type Course struct {
	ID          string     `json:"id" gorm:"primaryKey"`
	Title       string     `json:"title" gorm:"type:text;not null"`
	Description string     `json:"description" gorm:"type:text"`
	StartAt     *time.Time `json:"start_at"`
	Location    string     `json:"location" gorm:"type:text"`
	Price       int64      `json:"price" gorm:"not null"`
	Currency    string     `json:"currency" gorm:"type:text;not null"`
	Seats       int        `json:"seats" gorm:"not null"`
	CreatedAt   time.Time  `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time  `json:"updated_at" gorm:"not null"`
}

func (Course) TableName() string { return "courses" }

// ArtProduct is catalog data for a purchasable art piece.
type ArtProduct struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	Title       string    `json:"title" gorm:"type:text;not null"`
	Description string    `json:"description" gorm:"type:text"`
	Price       int64     `json:"price" gorm:"not null"`
	Currency    string    `json:"currency" gorm:"type:text;not null"`
	CreatedAt   time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"not null"`
}

func (ArtProduct) TableName() string { return "art_products" }
