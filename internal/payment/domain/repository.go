package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository owns all mutation of the payments table. State transitions and
// the fulfillment claim are conditional writes so that concurrent observers
// cannot race each other.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, record *PaymentRecord) error
	FindByReference(ctx context.Context, db *gorm.DB, reference string) (*PaymentRecord, error)

	// Transition applies CREATED -> to. It returns true when this call
	// performed the transition; false when the record was already terminal.
	Transition(ctx context.Context, db *gorm.DB, reference string, to PaymentStatus, entry AuditEntry) (bool, error)

	// AppendAudit records an observation without changing status (duplicate
	// and conflicting signals, amount mismatches).
	AppendAudit(ctx context.Context, db *gorm.DB, reference string, entry AuditEntry) error

	// ClaimFulfillment is the idempotency guard: it sets fulfilled_at only
	// when the record is PAID and unfulfilled, and reports whether this
	// caller won the claim.
	ClaimFulfillment(ctx context.Context, db *gorm.DB, reference string, now time.Time) (bool, error)

	SetFulfillmentRefs(ctx context.Context, db *gorm.DB, reference string, bookingID, giftCardID *snowflake.ID) error
	SetProviderPaymentID(ctx context.Context, db *gorm.DB, reference string, providerPaymentID string) error
}
