package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type JobType string

const (
	JobTypeInvoiceEmail      JobType = "invoice_email"
	JobTypeOrderConfirmation JobType = "order_confirmation"
	JobTypeGiftCardDelivery  JobType = "gift_card_delivery"
)

// Known reports whether t has a registered handler. Unknown types are marked
// failed instead of being retried forever.
func (t JobType) Known() bool {
	switch t {
	case JobTypeInvoiceEmail, JobTypeOrderConfirmation, JobTypeGiftCardDelivery:
		return true
	}
	return false
}

type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// BackgroundJob is one unit of deferred post-settlement work. Jobs survive
// process crashes: a pending row stays claimable until a worker flips it to
// processing inside a locked claim.
type BackgroundJob struct {
	ID        snowflake.ID   `json:"id" gorm:"primaryKey"`
	JobType   JobType        `json:"job_type" gorm:"type:text;not null"`
	JobData   datatypes.JSON `json:"job_data" gorm:"type:jsonb"`
	Status    JobStatus      `json:"status" gorm:"type:text;not null"`
	Result    datatypes.JSON `json:"result"`
	CreatedAt time.Time      `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"not null"`
}

func (BackgroundJob) TableName() string { return "background_jobs" }

// InvoiceEmailData is the payload for invoice_email, order_confirmation and
// gift_card_delivery jobs. The payment reference is the only required key;
// everything else is re-derived from the payment record at processing time.
type InvoiceEmailData struct {
	PaymentReference string `json:"payment_reference"`
	RecipientEmail   string `json:"recipient_email,omitempty"`
}

// Result is the stored outcome of a processed job.
type Result struct {
	Success  bool     `json:"success"`
	Message  string   `json:"message,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}
