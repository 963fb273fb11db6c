package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/jespen/studioclay-sub001/internal/clock"
	"github.com/jespen/studioclay-sub001/internal/fulfillment/domain"
	jobdomain "github.com/jespen/studioclay-sub001/internal/job/domain"
	paymentdomain "github.com/jespen/studioclay-sub001/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Gift cards are valid one year from issue.
const giftCardValidity = 365 * 24 * time.Hour

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Repo        domain.Repository
	PaymentRepo paymentdomain.Repository
	JobRepo     jobdomain.Repository
	Clock       clock.Clock
}

// Service performs the post-settlement sequence for a paid payment: create
// the product-specific records, link them back to the payment, and enqueue
// the delivery jobs. The settlement core calls Fulfill at most once per
// reference; the unique indexes on bookings and gift cards keep a replay
// harmless anyway.
type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	repo        domain.Repository
	paymentRepo paymentdomain.Repository
	jobRepo     jobdomain.Repository
	clock       clock.Clock
}

func NewService(p Params) *Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("fulfillment.service"),
		genID:       p.GenID,
		repo:        p.Repo,
		paymentRepo: p.PaymentRepo,
		jobRepo:     p.JobRepo,
		clock:       p.Clock,
	}
}

var _ paymentdomain.Fulfiller = (*Service)(nil)

// Fulfill runs on the caller's connection so the settlement core's claim and
// the records created here commit or roll back together.
func (s *Service) Fulfill(ctx context.Context, conn *gorm.DB, record *paymentdomain.PaymentRecord) error {
	return conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		switch record.ProductType {
		case paymentdomain.ProductTypeCourse:
			return s.fulfillCourse(ctx, tx, record)
		case paymentdomain.ProductTypeGiftCard:
			return s.fulfillGiftCard(ctx, tx, record)
		case paymentdomain.ProductTypeArtProduct:
			return s.enqueue(ctx, tx, jobdomain.JobTypeInvoiceEmail, record)
		default:
			return paymentdomain.ErrInvalidProduct
		}
	})
}

func (s *Service) fulfillCourse(ctx context.Context, tx *gorm.DB, record *paymentdomain.PaymentRecord) error {
	now := s.clock.Now()
	booking := &domain.Booking{
		ID:               s.genID.Generate(),
		PaymentReference: record.Reference,
		CourseID:         record.ProductID,
		CustomerName:     record.CustomerName,
		CustomerEmail:    record.CustomerEmail,
		CustomerPhone:    record.PayerContact,
		Participants:     1,
		Status:           domain.BookingStatusConfirmed,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	created, err := s.repo.InsertBooking(ctx, tx, booking)
	if err != nil {
		return err
	}
	if !created {
		// Replay: the booking and its jobs already exist.
		existing, err := s.repo.FindBookingByPaymentReference(ctx, tx, record.Reference)
		if err != nil {
			return err
		}
		return s.paymentRepo.SetFulfillmentRefs(ctx, tx, record.Reference, &existing.ID, nil)
	}
	if err := s.paymentRepo.SetFulfillmentRefs(ctx, tx, record.Reference, &booking.ID, nil); err != nil {
		return err
	}

	s.log.Info("booking created",
		zap.String("reference", record.Reference),
		zap.String("course_id", record.ProductID),
		zap.String("booking_id", booking.ID.String()),
	)
	if err := s.enqueue(ctx, tx, jobdomain.JobTypeOrderConfirmation, record); err != nil {
		return err
	}
	return s.enqueue(ctx, tx, jobdomain.JobTypeInvoiceEmail, record)
}

func (s *Service) fulfillGiftCard(ctx context.Context, tx *gorm.DB, record *paymentdomain.PaymentRecord) error {
	// Replay guard: the card is keyed by its code, so an existing card for
	// this payment has to be found by reference before issuing a new one.
	existing, err := s.repo.FindGiftCardByPaymentReference(ctx, tx, record.Reference)
	if err == nil {
		return s.paymentRepo.SetFulfillmentRefs(ctx, tx, record.Reference, nil, &existing.ID)
	}
	if !errors.Is(err, domain.ErrGiftCardNotFound) {
		return err
	}

	now := s.clock.Now()
	expires := now.Add(giftCardValidity)
	card := &domain.GiftCard{
		ID:               s.genID.Generate(),
		Code:             NewGiftCardCode(),
		InvoiceNumber:    "INV-" + s.genID.Generate().String(),
		PaymentReference: record.Reference,
		Amount:           record.Amount,
		Currency:         record.Currency,
		RecipientName:    record.CustomerName,
		RecipientEmail:   record.CustomerEmail,
		Status:           domain.GiftCardStatusActive,
		ExpiresAt:        &expires,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	created, err := s.repo.InsertGiftCard(ctx, tx, card)
	if err != nil {
		return err
	}
	if !created {
		return fmt.Errorf("gift card code collision for %s", record.Reference)
	}
	if err := s.paymentRepo.SetFulfillmentRefs(ctx, tx, record.Reference, nil, &card.ID); err != nil {
		return err
	}

	s.log.Info("gift card issued",
		zap.String("reference", record.Reference),
		zap.String("code", card.Code),
	)
	if err := s.enqueue(ctx, tx, jobdomain.JobTypeGiftCardDelivery, record); err != nil {
		return err
	}
	return s.enqueue(ctx, tx, jobdomain.JobTypeInvoiceEmail, record)
}

func (s *Service) enqueue(ctx context.Context, tx *gorm.DB, jobType jobdomain.JobType, record *paymentdomain.PaymentRecord) error {
	data, err := json.Marshal(jobdomain.InvoiceEmailData{
		PaymentReference: record.Reference,
		RecipientEmail:   record.CustomerEmail,
	})
	if err != nil {
		return err
	}
	now := s.clock.Now()
	return s.jobRepo.Enqueue(ctx, tx, &jobdomain.BackgroundJob{
		ID:        s.genID.Generate(),
		JobType:   jobType,
		JobData:   datatypes.JSON(data),
		Status:    jobdomain.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// ResolveGiftCard finds a card by payment reference, then code, then invoice
// number. Callers hold whichever identifier the customer has at hand.
func (s *Service) ResolveGiftCard(ctx context.Context, key string) (*domain.GiftCard, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, domain.ErrGiftCardNotFound
	}
	if card, err := s.repo.FindGiftCardByPaymentReference(ctx, s.db, key); err == nil {
		return card, nil
	} else if !errors.Is(err, domain.ErrGiftCardNotFound) {
		return nil, err
	}
	if card, err := s.repo.FindGiftCardByCode(ctx, s.db, key); err == nil {
		return card, nil
	} else if !errors.Is(err, domain.ErrGiftCardNotFound) {
		return nil, err
	}
	return s.repo.FindGiftCardByInvoiceNumber(ctx, s.db, key)
}

// CourseInfo returns catalog data for a course, or a labelled placeholder
// when the catalog row is missing. Invoice rendering must not fail because a
// course was retired after its last booking was paid.
func (s *Service) CourseInfo(ctx context.Context, id string) *domain.Course {
	course, err := s.repo.FindCourse(ctx, s.db, id)
	if err != nil {
		return &domain.Course{ID: id, Title: "Kurs " + id, Currency: "SEK"}
	}
	return course
}

// ArtProductInfo mirrors CourseInfo for art products.
func (s *Service) ArtProductInfo(ctx context.Context, id string) *domain.ArtProduct {
	product, err := s.repo.FindArtProduct(ctx, s.db, id)
	if err != nil {
		return &domain.ArtProduct{ID: id, Title: "Konstverk " + id, Currency: "SEK"}
	}
	return product
}

func (s *Service) BookingByReference(ctx context.Context, reference string) (*domain.Booking, error) {
	return s.repo.FindBookingByPaymentReference(ctx, s.db, reference)
}

// NewGiftCardCode produces a customer-facing redemption code.
func NewGiftCardCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "GC-" + strings.ToUpper(raw[:10])
}
