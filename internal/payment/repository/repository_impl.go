package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jespen/studioclay-sub001/internal/payment/domain"
	"github.com/jespen/studioclay-sub001/pkg/db"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, record *domain.PaymentRecord) error {
	if len(record.Metadata) == 0 {
		record.Metadata = datatypes.JSON([]byte("[]"))
	}
	err := conn.WithContext(ctx).Exec(
		`INSERT INTO payments (
			id, reference, provider_payment_id, status, amount, currency,
			product_type, product_id, payer_contact, customer_name, customer_email,
			metadata, booking_id, gift_card_id, fulfilled_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.Reference,
		record.ProviderPaymentID,
		record.Status,
		record.Amount,
		record.Currency,
		record.ProductType,
		record.ProductID,
		record.PayerContact,
		record.CustomerName,
		record.CustomerEmail,
		record.Metadata,
		record.BookingID,
		record.GiftCardID,
		record.FulfilledAt,
		record.CreatedAt,
		record.UpdatedAt,
	).Error
	if db.IsDuplicateKeyErr(err) {
		return domain.ErrDuplicateReference
	}
	return err
}

func (r *repo) FindByReference(ctx context.Context, conn *gorm.DB, reference string) (*domain.PaymentRecord, error) {
	var item domain.PaymentRecord
	err := conn.WithContext(ctx).Raw(
		`SELECT id, reference, provider_payment_id, status, amount, currency,
			product_type, product_id, payer_contact, customer_name, customer_email,
			metadata, booking_id, gift_card_id, fulfilled_at, created_at, updated_at
		 FROM payments
		 WHERE reference = ?
		 LIMIT 1`,
		reference,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, domain.ErrNotFound
	}
	return &item, nil
}

func (r *repo) Transition(ctx context.Context, conn *gorm.DB, reference string, to domain.PaymentStatus, entry domain.AuditEntry) (bool, error) {
	if !to.Terminal() {
		return false, domain.ErrInvalidStatus
	}

	transitioned := false
	err := conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(
			`UPDATE payments
			 SET status = ?, updated_at = ?
			 WHERE reference = ? AND status = ?`,
			to,
			entry.At,
			reference,
			domain.StatusCreated,
		)
		if res.Error != nil {
			return res.Error
		}
		transitioned = res.RowsAffected > 0
		if !transitioned {
			return nil
		}
		return appendAudit(ctx, tx, reference, entry)
	})
	return transitioned, err
}

func (r *repo) AppendAudit(ctx context.Context, conn *gorm.DB, reference string, entry domain.AuditEntry) error {
	return conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return appendAudit(ctx, tx, reference, entry)
	})
}

func (r *repo) ClaimFulfillment(ctx context.Context, conn *gorm.DB, reference string, now time.Time) (bool, error) {
	res := conn.WithContext(ctx).Exec(
		`UPDATE payments
		 SET fulfilled_at = ?, updated_at = ?
		 WHERE reference = ? AND status = ? AND fulfilled_at IS NULL`,
		now,
		now,
		reference,
		domain.StatusPaid,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) SetFulfillmentRefs(ctx context.Context, conn *gorm.DB, reference string, bookingID, giftCardID *snowflake.ID) error {
	return conn.WithContext(ctx).Exec(
		`UPDATE payments
		 SET booking_id = COALESCE(?, booking_id),
		     gift_card_id = COALESCE(?, gift_card_id),
		     updated_at = ?
		 WHERE reference = ?`,
		bookingID,
		giftCardID,
		time.Now().UTC(),
		reference,
	).Error
}

func (r *repo) SetProviderPaymentID(ctx context.Context, conn *gorm.DB, reference string, providerPaymentID string) error {
	return conn.WithContext(ctx).Exec(
		`UPDATE payments
		 SET provider_payment_id = ?, updated_at = ?
		 WHERE reference = ?`,
		providerPaymentID,
		time.Now().UTC(),
		reference,
	).Error
}

// appendAudit rewrites the metadata array with one more entry. The read
// locks the row on postgres so two writers cannot read the same trail and
// overwrite each other's entry; sqlite serializes writers on its own.
func appendAudit(ctx context.Context, tx *gorm.DB, reference string, entry domain.AuditEntry) error {
	query := `SELECT COALESCE(metadata, '[]') FROM payments WHERE reference = ?` + auditLockClause(tx)
	var raw sql.NullString
	if err := tx.WithContext(ctx).Raw(query, reference).Row().Scan(&raw); err != nil {
		return err
	}

	var trail []domain.AuditEntry
	if raw.Valid && raw.String != "" {
		if err := json.Unmarshal([]byte(raw.String), &trail); err != nil {
			trail = nil
		}
	}
	trail = append(trail, entry)

	encoded, err := json.Marshal(trail)
	if err != nil {
		return err
	}
	return tx.WithContext(ctx).Exec(
		`UPDATE payments SET metadata = ? WHERE reference = ?`,
		datatypes.JSON(encoded),
		reference,
	).Error
}

func auditLockClause(tx *gorm.DB) string {
	if tx.Dialector.Name() == "postgres" {
		return " FOR UPDATE"
	}
	return ""
}
