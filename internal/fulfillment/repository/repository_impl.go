package repository

import (
	"context"

	"github.com/jespen/studioclay-sub001/internal/fulfillment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertBooking(ctx context.Context, conn *gorm.DB, booking *domain.Booking) (bool, error) {
	res := conn.WithContext(ctx).Exec(
		`INSERT INTO bookings (
			id, payment_reference, course_id, customer_name, customer_email,
			customer_phone, participants, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (payment_reference) DO NOTHING`,
		booking.ID,
		booking.PaymentReference,
		booking.CourseID,
		booking.CustomerName,
		booking.CustomerEmail,
		booking.CustomerPhone,
		booking.Participants,
		booking.Status,
		booking.CreatedAt,
		booking.UpdatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindBookingByPaymentReference(ctx context.Context, conn *gorm.DB, reference string) (*domain.Booking, error) {
	var item domain.Booking
	err := conn.WithContext(ctx).Raw(
		`SELECT id, payment_reference, course_id, customer_name, customer_email,
			customer_phone, participants, status, created_at, updated_at
		 FROM bookings
		 WHERE payment_reference = ?
		 LIMIT 1`,
		reference,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, domain.ErrBookingNotFound
	}
	return &item, nil
}

func (r *repo) InsertGiftCard(ctx context.Context, conn *gorm.DB, card *domain.GiftCard) (bool, error) {
	res := conn.WithContext(ctx).Exec(
		`INSERT INTO gift_cards (
			id, code, invoice_number, payment_reference, amount, currency,
			recipient_name, recipient_email, message, status, expires_at,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (code) DO NOTHING`,
		card.ID,
		card.Code,
		card.InvoiceNumber,
		card.PaymentReference,
		card.Amount,
		card.Currency,
		card.RecipientName,
		card.RecipientEmail,
		card.Message,
		card.Status,
		card.ExpiresAt,
		card.CreatedAt,
		card.UpdatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindGiftCardByPaymentReference(ctx context.Context, conn *gorm.DB, reference string) (*domain.GiftCard, error) {
	return r.findGiftCard(ctx, conn, `payment_reference = ?`, reference)
}

func (r *repo) FindGiftCardByCode(ctx context.Context, conn *gorm.DB, code string) (*domain.GiftCard, error) {
	return r.findGiftCard(ctx, conn, `code = ?`, code)
}

func (r *repo) FindGiftCardByInvoiceNumber(ctx context.Context, conn *gorm.DB, invoiceNumber string) (*domain.GiftCard, error) {
	return r.findGiftCard(ctx, conn, `invoice_number = ?`, invoiceNumber)
}

func (r *repo) findGiftCard(ctx context.Context, conn *gorm.DB, where string, arg string) (*domain.GiftCard, error) {
	var item domain.GiftCard
	err := conn.WithContext(ctx).Raw(
		`SELECT id, code, invoice_number, payment_reference, amount, currency,
			recipient_name, recipient_email, message, status, expires_at,
			created_at, updated_at
		 FROM gift_cards
		 WHERE `+where+`
		 LIMIT 1`,
		arg,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, domain.ErrGiftCardNotFound
	}
	return &item, nil
}

func (r *repo) FindCourse(ctx context.Context, conn *gorm.DB, id string) (*domain.Course, error) {
	var item domain.Course
	err := conn.WithContext(ctx).Raw(
		`SELECT id, title, description, start_at, location, price, currency,
			seats, created_at, updated_at
		 FROM courses
		 WHERE id = ?
		 LIMIT 1`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == "" {
		return nil, gorm.ErrRecordNotFound
	}
	return &item, nil
}

func (r *repo) FindArtProduct(ctx context.Context, conn *gorm.DB, id string) (*domain.ArtProduct, error) {
	var item domain.ArtProduct
	err := conn.WithContext(ctx).Raw(
		`SELECT id, title, description, price, currency, created_at, updated_at
		 FROM art_products
		 WHERE id = ?
		 LIMIT 1`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == "" {
		return nil, gorm.ErrRecordNotFound
	}
	return &item, nil
}
