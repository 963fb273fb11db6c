package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/jespen/studioclay-sub001/internal/clock"
	fulfillmentservice "github.com/jespen/studioclay-sub001/internal/fulfillment/service"
	"github.com/jespen/studioclay-sub001/internal/job/domain"
	"github.com/jespen/studioclay-sub001/internal/observability/metrics"
	paymentdomain "github.com/jespen/studioclay-sub001/internal/payment/domain"
	paymentservice "github.com/jespen/studioclay-sub001/internal/payment/service"
	"github.com/jespen/studioclay-sub001/internal/providers/email"
	"github.com/jespen/studioclay-sub001/internal/providers/pdf"
	"github.com/jespen/studioclay-sub001/internal/providers/storage"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// How many jobs one trigger drains at most.
const maxJobsPerRun = 10

const sellerName = "Studio Clay"

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Repo        domain.Repository
	PaymentRepo paymentdomain.Repository
	Fulfillment *fulfillmentservice.Service
	PDF         pdf.Provider
	Email       email.Provider
	Storage     storage.Store
	Metrics     *metrics.Metrics `optional:"true"`
	Clock       clock.Clock
}

// Processor drains the background job queue. Each claim flips exactly one
// pending job to processing; the handler outcome lands in the job's result
// column. A failed job stays failed until an operator intervenes, it is
// never retried automatically.
type Processor struct {
	db          *gorm.DB
	log         *zap.Logger
	repo        domain.Repository
	paymentRepo paymentdomain.Repository
	fulfillment *fulfillmentservice.Service
	pdf         pdf.Provider
	email       email.Provider
	storage     storage.Store
	metrics     *metrics.Metrics
	clock       clock.Clock
}

func NewProcessor(p Params) *Processor {
	return &Processor{
		db:          p.DB,
		log:         p.Log.Named("job.processor"),
		repo:        p.Repo,
		paymentRepo: p.PaymentRepo,
		fulfillment: p.Fulfillment,
		pdf:         p.PDF,
		email:       p.Email,
		storage:     p.Storage,
		metrics:     p.Metrics,
		clock:       p.Clock,
	}
}

// ProcessNext claims and runs one job. It returns false when the queue had
// nothing pending.
func (p *Processor) ProcessNext(ctx context.Context) (bool, error) {
	job, err := p.repo.ClaimNext(ctx, p.db, p.clock.Now())
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	result := p.run(ctx, job)
	if result.Success {
		if err := p.repo.Complete(ctx, p.db, job.ID, result, p.clock.Now()); err != nil {
			return true, err
		}
		p.metrics.RecordJob(string(job.JobType), "completed")
		p.log.Info("job completed",
			zap.String("job_id", job.ID.String()),
			zap.String("job_type", string(job.JobType)),
			zap.Strings("warnings", result.Warnings),
		)
		return true, nil
	}

	if err := p.repo.Fail(ctx, p.db, job.ID, result, p.clock.Now()); err != nil {
		return true, err
	}
	p.metrics.RecordJob(string(job.JobType), "failed")
	p.log.Error("job failed",
		zap.String("job_id", job.ID.String()),
		zap.String("job_type", string(job.JobType)),
		zap.String("message", result.Message),
	)
	return true, nil
}

// ProcessPending drains up to maxJobsPerRun jobs and reports how many ran.
func (p *Processor) ProcessPending(ctx context.Context) (int, error) {
	processed := 0
	for processed < maxJobsPerRun {
		ok, err := p.ProcessNext(ctx)
		if err != nil {
			return processed, err
		}
		if !ok {
			break
		}
		processed++
	}
	return processed, nil
}

func (p *Processor) run(ctx context.Context, job *domain.BackgroundJob) domain.Result {
	switch job.JobType {
	case domain.JobTypeInvoiceEmail:
		return p.runInvoiceEmail(ctx, job)
	case domain.JobTypeOrderConfirmation:
		return p.runOrderConfirmation(ctx, job)
	case domain.JobTypeGiftCardDelivery:
		return p.runGiftCardDelivery(ctx, job)
	default:
		return domain.Result{Message: fmt.Sprintf("unknown job type %q", job.JobType)}
	}
}

func (p *Processor) runInvoiceEmail(ctx context.Context, job *domain.BackgroundJob) domain.Result {
	data, record, result := p.loadPayment(ctx, job)
	if record == nil {
		return result
	}

	var warnings []string

	invoiceNumber := "INV-" + record.Reference
	description := p.describeProduct(ctx, record)
	invoiceDoc, err := p.pdf.GenerateInvoice(ctx, pdf.InvoiceData{
		InvoiceNumber:    invoiceNumber,
		IssueDate:        p.clock.Now().Format("2006-01-02"),
		PaymentReference: record.Reference,
		SellerName:       sellerName,
		SellerEmail:      "info@studioclay.se",
		CustomerName:     record.CustomerName,
		CustomerEmail:    record.CustomerEmail,
		Items: []pdf.InvoiceItem{{
			Description: description,
			Qty:         1,
			UnitPrice:   formatSEK(record.Amount, record.Currency),
			Amount:      formatSEK(record.Amount, record.Currency),
		}},
		Total: formatSEK(record.Amount, record.Currency),
	})
	if err != nil {
		return domain.Result{Message: "invoice pdf generation failed: " + err.Error()}
	}

	invoiceBytes, err := io.ReadAll(invoiceDoc)
	if err != nil {
		return domain.Result{Message: "invoice pdf read failed: " + err.Error()}
	}

	if _, err := p.storage.Put(ctx, invoiceNumber+".pdf", bytes.NewReader(invoiceBytes)); err != nil {
		// Storage is best-effort; the attachment still goes out from memory.
		warnings = append(warnings, "invoice not persisted: "+err.Error())
	}

	attachments := []email.Attachment{{
		Filename:    invoiceNumber + ".pdf",
		ContentType: "application/pdf",
		Data:        invoiceBytes,
	}}

	if record.ProductType == paymentdomain.ProductTypeGiftCard {
		if att, warn := p.giftCardAttachment(ctx, record); att != nil {
			attachments = append(attachments, *att)
		} else if warn != "" {
			// The invoice still ships when the gift card document cannot
			// be produced.
			warnings = append(warnings, warn)
		}
	}

	to := recipient(data, record)
	if to == "" {
		return domain.Result{Message: "no recipient email for " + record.Reference, Warnings: warnings}
	}

	body := fmt.Sprintf(
		"<p>Hej %s,</p><p>Tack för din betalning. Din faktura %s är bifogad.</p><p>%s</p>",
		record.CustomerName, invoiceNumber, sellerName,
	)
	if err := p.email.SendWithAttachments(ctx, []string{to}, "Din faktura från "+sellerName, body, attachments); err != nil {
		return domain.Result{Message: "email send failed: " + err.Error(), Warnings: warnings}
	}

	return domain.Result{Success: true, Message: "invoice sent to " + to, Warnings: warnings}
}

func (p *Processor) runOrderConfirmation(ctx context.Context, job *domain.BackgroundJob) domain.Result {
	data, record, result := p.loadPayment(ctx, job)
	if record == nil {
		return result
	}

	to := recipient(data, record)
	if to == "" {
		return domain.Result{Message: "no recipient email for " + record.Reference}
	}

	description := p.describeProduct(ctx, record)
	body := fmt.Sprintf(
		"<p>Hej %s,</p><p>Din bokning är bekräftad: %s.</p><p>Betalningsreferens: %s</p><p>%s</p>",
		record.CustomerName, description, record.Reference, sellerName,
	)
	if err := p.email.Send(ctx, []string{to}, "Bokningsbekräftelse från "+sellerName, body); err != nil {
		return domain.Result{Message: "email send failed: " + err.Error()}
	}
	return domain.Result{Success: true, Message: "confirmation sent to " + to}
}

func (p *Processor) runGiftCardDelivery(ctx context.Context, job *domain.BackgroundJob) domain.Result {
	data, record, result := p.loadPayment(ctx, job)
	if record == nil {
		return result
	}

	card, err := p.fulfillment.ResolveGiftCard(ctx, record.Reference)
	if err != nil {
		return domain.Result{Message: "gift card lookup failed: " + err.Error()}
	}

	var warnings []string
	var attachments []email.Attachment
	if att, warn := p.giftCardAttachment(ctx, record); att != nil {
		attachments = append(attachments, *att)
	} else if warn != "" {
		// Deliver the code in the body when the document fails.
		warnings = append(warnings, warn)
	}

	to := recipient(data, record)
	if to == "" {
		return domain.Result{Message: "no recipient email for " + record.Reference, Warnings: warnings}
	}

	body := fmt.Sprintf(
		"<p>Hej %s,</p><p>Här är ditt presentkort på %s.</p><p>Kod: <strong>%s</strong></p><p>%s</p>",
		card.RecipientName, formatSEK(card.Amount, card.Currency), card.Code, sellerName,
	)
	if err := p.email.SendWithAttachments(ctx, []string{to}, "Ditt presentkort från "+sellerName, body, attachments); err != nil {
		return domain.Result{Message: "email send failed: " + err.Error(), Warnings: warnings}
	}
	return domain.Result{Success: true, Message: "gift card sent to " + to, Warnings: warnings}
}

func (p *Processor) loadPayment(ctx context.Context, job *domain.BackgroundJob) (domain.InvoiceEmailData, *paymentdomain.PaymentRecord, domain.Result) {
	var data domain.InvoiceEmailData
	if err := json.Unmarshal(job.JobData, &data); err != nil {
		return data, nil, domain.Result{Message: "malformed job data: " + err.Error()}
	}
	if data.PaymentReference == "" {
		return data, nil, domain.Result{Message: "job data missing payment_reference"}
	}
	record, err := p.paymentRepo.FindByReference(ctx, p.db, data.PaymentReference)
	if err != nil {
		return data, nil, domain.Result{Message: "payment lookup failed: " + err.Error()}
	}
	return data, record, domain.Result{}
}

func (p *Processor) giftCardAttachment(ctx context.Context, record *paymentdomain.PaymentRecord) (*email.Attachment, string) {
	card, err := p.fulfillment.ResolveGiftCard(ctx, record.Reference)
	if err != nil {
		return nil, "gift card lookup failed: " + err.Error()
	}

	expires := ""
	if card.ExpiresAt != nil {
		expires = card.ExpiresAt.Format("2006-01-02")
	}
	doc, err := p.pdf.GenerateGiftCard(ctx, pdf.GiftCardData{
		Code:          card.Code,
		Amount:        formatSEK(card.Amount, card.Currency),
		RecipientName: card.RecipientName,
		Message:       card.Message,
		ExpiresAt:     expires,
		SellerName:    sellerName,
	})
	if err != nil {
		return nil, "gift card pdf generation failed: " + err.Error()
	}
	raw, err := io.ReadAll(doc)
	if err != nil {
		return nil, "gift card pdf read failed: " + err.Error()
	}
	return &email.Attachment{
		Filename:    "presentkort-" + card.Code + ".pdf",
		ContentType: "application/pdf",
		Data:        raw,
	}, ""
}

func (p *Processor) describeProduct(ctx context.Context, record *paymentdomain.PaymentRecord) string {
	switch record.ProductType {
	case paymentdomain.ProductTypeCourse:
		return p.fulfillment.CourseInfo(ctx, record.ProductID).Title
	case paymentdomain.ProductTypeArtProduct:
		return p.fulfillment.ArtProductInfo(ctx, record.ProductID).Title
	case paymentdomain.ProductTypeGiftCard:
		return "Presentkort"
	default:
		return record.ProductID
	}
}

func recipient(data domain.InvoiceEmailData, record *paymentdomain.PaymentRecord) string {
	if data.RecipientEmail != "" {
		return data.RecipientEmail
	}
	return record.CustomerEmail
}

func formatSEK(ore int64, currency string) string {
	if currency == "" {
		currency = "SEK"
	}
	return fmt.Sprintf("%s %s", paymentservice.AmountString(ore), currency)
}

