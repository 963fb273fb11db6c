package domain

import (
	"context"

	"gorm.io/gorm"
)

// Repository owns the fulfillment tables. InsertBooking relies on the unique
// payment_reference index to stay idempotent under replayed signals.
type Repository interface {
	InsertBooking(ctx context.Context, db *gorm.DB, booking *Booking) (created bool, err error)
	FindBookingByPaymentReference(ctx context.Context, db *gorm.DB, reference string) (*Booking, error)

	InsertGiftCard(ctx context.Context, db *gorm.DB, card *GiftCard) (created bool, err error)
	FindGiftCardByPaymentReference(ctx context.Context, db *gorm.DB, reference string) (*GiftCard, error)
	FindGiftCardByCode(ctx context.Context, db *gorm.DB, code string) (*GiftCard, error)
	FindGiftCardByInvoiceNumber(ctx context.Context, db *gorm.DB, invoiceNumber string) (*GiftCard, error)

	FindCourse(ctx context.Context, db *gorm.DB, id string) (*Course, error)
	FindArtProduct(ctx context.Context, db *gorm.DB, id string) (*ArtProduct, error)
}
