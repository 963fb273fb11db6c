package domain

import (
	"context"

	"gorm.io/gorm"
)

// Fulfiller performs the post-settlement sequence (booking or gift-card
// creation plus job enqueue) for a payment that reached PAID. The settlement
// core invokes it inside the transaction holding the fulfillment claim, so a
// failed run releases the claim and the next PAID signal retries.
type Fulfiller interface {
	Fulfill(ctx context.Context, conn *gorm.DB, record *PaymentRecord) error
}

// ObservedStatus is a status signal seen by the callback handler, the
// reconciliation poller or a forced provider check.
type ObservedStatus struct {
	Status       PaymentStatus
	Amount       *int64
	ErrorCode    string
	ErrorMessage string
	Source       string
}
