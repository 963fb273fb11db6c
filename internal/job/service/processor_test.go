package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/jespen/studioclay-sub001/internal/clock"
	fulfillmentdomain "github.com/jespen/studioclay-sub001/internal/fulfillment/domain"
	fulfillmentrepository "github.com/jespen/studioclay-sub001/internal/fulfillment/repository"
	fulfillmentservice "github.com/jespen/studioclay-sub001/internal/fulfillment/service"
	"github.com/jespen/studioclay-sub001/internal/job/domain"
	"github.com/jespen/studioclay-sub001/internal/job/repository"
	paymentdomain "github.com/jespen/studioclay-sub001/internal/payment/domain"
	paymentrepository "github.com/jespen/studioclay-sub001/internal/payment/repository"
	"github.com/jespen/studioclay-sub001/internal/providers/email"
	"github.com/jespen/studioclay-sub001/internal/providers/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type fakePDF struct {
	failGiftCard bool
	failInvoice  bool
}

func (f *fakePDF) GenerateInvoice(ctx context.Context, data pdf.InvoiceData) (io.Reader, error) {
	if f.failInvoice {
		return nil, errors.New("render broken")
	}
	return bytes.NewReader([]byte("%PDF-invoice " + data.InvoiceNumber)), nil
}

func (f *fakePDF) GenerateGiftCard(ctx context.Context, data pdf.GiftCardData) (io.Reader, error) {
	if f.failGiftCard {
		return nil, errors.New("render broken")
	}
	return bytes.NewReader([]byte("%PDF-giftcard " + data.Code)), nil
}

type sentMail struct {
	to          []string
	subject     string
	body        string
	attachments []email.Attachment
}

type fakeEmail struct {
	sent []sentMail
	err  error
}

func (f *fakeEmail) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	return f.SendWithAttachments(ctx, to, subject, htmlBody, nil)
}

func (f *fakeEmail) SendWithAttachments(ctx context.Context, to []string, subject string, htmlBody string, attachments []email.Attachment) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{to: to, subject: subject, body: htmlBody, attachments: attachments})
	return nil
}

type fakeStorage struct {
	puts []string
	err  error
}

func (f *fakeStorage) Put(ctx context.Context, name string, r io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.puts = append(f.puts, name)
	return "https://files.example.com/" + name, nil
}

func (f *fakeStorage) Get(ctx context.Context, name string) ([]byte, error) {
	return nil, errors.New("not implemented")
}

type fixture struct {
	db          *gorm.DB
	node        *snowflake.Node
	processor   *Processor
	fulfillment *fulfillmentservice.Service
	email       *fakeEmail
	storage     *fakeStorage
	pdf         *fakePDF
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&paymentdomain.PaymentRecord{},
		&domain.BackgroundJob{},
		&fulfillmentdomain.Booking{},
		&fulfillmentdomain.GiftCard{},
		&fulfillmentdomain.Course{},
		&fulfillmentdomain.ArtProduct{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fulfillSvc := fulfillmentservice.NewService(fulfillmentservice.Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Repo:        fulfillmentrepository.Provide(),
		PaymentRepo: paymentrepository.Provide(),
		JobRepo:     repository.Provide(),
		Clock:       clock.NewSystemClock(),
	})

	fakeMail := &fakeEmail{}
	fakeStore := &fakeStorage{}
	fakeDocs := &fakePDF{}
	processor := NewProcessor(Params{
		DB:          db,
		Log:         zap.NewNop(),
		Repo:        repository.Provide(),
		PaymentRepo: paymentrepository.Provide(),
		Fulfillment: fulfillSvc,
		PDF:         fakeDocs,
		Email:       fakeMail,
		Storage:     fakeStore,
		Clock:       clock.NewSystemClock(),
	})

	return &fixture{
		db:          db,
		node:        node,
		processor:   processor,
		fulfillment: fulfillSvc,
		email:       fakeMail,
		storage:     fakeStore,
		pdf:         fakeDocs,
	}
}

func (f *fixture) seedPaidPayment(t *testing.T, reference, productType, productID string) *paymentdomain.PaymentRecord {
	t.Helper()
	now := time.Now().UTC()
	record := &paymentdomain.PaymentRecord{
		ID:            f.node.Generate(),
		Reference:     reference,
		Status:        paymentdomain.StatusPaid,
		Amount:        25000,
		Currency:      "SEK",
		ProductType:   productType,
		ProductID:     productID,
		PayerContact:  "46712345678",
		CustomerName:  "Anna Andersson",
		CustomerEmail: "anna@example.com",
		FulfilledAt:   &now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, paymentrepository.Provide().Insert(context.Background(), f.db, record))
	return record
}

func (f *fixture) enqueue(t *testing.T, jobType domain.JobType, reference string) snowflake.ID {
	t.Helper()
	data, err := json.Marshal(domain.InvoiceEmailData{PaymentReference: reference})
	require.NoError(t, err)
	job := &domain.BackgroundJob{
		ID:        f.node.Generate(),
		JobType:   jobType,
		JobData:   datatypes.JSON(data),
		Status:    domain.StatusPending,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, repository.Provide().Enqueue(context.Background(), f.db, job))
	return job.ID
}

func (f *fixture) jobStatus(t *testing.T, id snowflake.ID) (domain.JobStatus, domain.Result) {
	t.Helper()
	job, err := repository.Provide().FindByID(context.Background(), f.db, id)
	require.NoError(t, err)
	var result domain.Result
	if len(job.Result) > 0 {
		require.NoError(t, json.Unmarshal(job.Result, &result))
	}
	return job.Status, result
}

func TestProcessNextEmptyQueue(t *testing.T) {
	f := newFixture(t)
	ok, err := f.processor.ProcessNext(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInvoiceEmailJobSendsInvoice(t *testing.T) {
	f := newFixture(t)
	f.seedPaidPayment(t, "JOB-0001", paymentdomain.ProductTypeCourse, "course-7")
	jobID := f.enqueue(t, domain.JobTypeInvoiceEmail, "JOB-0001")

	ok, err := f.processor.ProcessNext(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	status, result := f.jobStatus(t, jobID)
	assert.Equal(t, domain.StatusCompleted, status)
	assert.True(t, result.Success)
	assert.Empty(t, result.Warnings)

	require.Len(t, f.email.sent, 1)
	mail := f.email.sent[0]
	assert.Equal(t, []string{"anna@example.com"}, mail.to)
	require.Len(t, mail.attachments, 1)
	assert.Equal(t, "INV-JOB-0001.pdf", mail.attachments[0].Filename)

	require.Len(t, f.storage.puts, 1)
	assert.Equal(t, "INV-JOB-0001.pdf", f.storage.puts[0])
}

func TestInvoiceEmailGiftCardPDFFailureDegrades(t *testing.T) {
	f := newFixture(t)
	f.pdf.failGiftCard = true

	record := f.seedPaidPayment(t, "JOB-0002", paymentdomain.ProductTypeGiftCard, "gift-500")
	require.NoError(t, f.fulfillment.Fulfill(context.Background(), f.db, record))

	// Fulfill enqueued gift_card_delivery and invoice_email; drain both.
	processed, err := f.processor.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, processed)

	// Both jobs completed despite the broken gift card document, with the
	// failure surfaced as a warning.
	var failed int64
	require.NoError(t, f.db.Raw(
		`SELECT COUNT(1) FROM background_jobs WHERE status = ?`, domain.StatusFailed,
	).Scan(&failed).Error)
	assert.Zero(t, failed)

	var sawWarning bool
	for _, mail := range f.email.sent {
		for _, att := range mail.attachments {
			assert.NotContains(t, att.Filename, "presentkort")
		}
	}
	var jobs []domain.BackgroundJob
	require.NoError(t, f.db.Raw(`SELECT * FROM background_jobs`).Scan(&jobs).Error)
	for _, job := range jobs {
		var result domain.Result
		require.NoError(t, json.Unmarshal(job.Result, &result))
		if len(result.Warnings) > 0 {
			sawWarning = true
		}
	}
	assert.True(t, sawWarning)
}

func TestGiftCardDeliveryIncludesCode(t *testing.T) {
	f := newFixture(t)
	record := f.seedPaidPayment(t, "JOB-0003", paymentdomain.ProductTypeGiftCard, "gift-500")
	require.NoError(t, f.fulfillment.Fulfill(context.Background(), f.db, record))

	card, err := f.fulfillment.ResolveGiftCard(context.Background(), "JOB-0003")
	require.NoError(t, err)

	processed, err := f.processor.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, processed)

	var deliveryMail *sentMail
	for i := range f.email.sent {
		if strings.Contains(f.email.sent[i].subject, "presentkort") {
			deliveryMail = &f.email.sent[i]
		}
	}
	require.NotNil(t, deliveryMail)
	assert.Contains(t, deliveryMail.body, card.Code)
	require.Len(t, deliveryMail.attachments, 1)
	assert.Contains(t, deliveryMail.attachments[0].Filename, card.Code)
}

func TestUnknownJobTypeFails(t *testing.T) {
	f := newFixture(t)
	jobID := f.enqueue(t, domain.JobType("mystery"), "JOB-0004")

	ok, err := f.processor.ProcessNext(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	status, result := f.jobStatus(t, jobID)
	assert.Equal(t, domain.StatusFailed, status)
	assert.Contains(t, result.Message, "unknown job type")
}

func TestStorageFailureIsAWarningNotAFailure(t *testing.T) {
	f := newFixture(t)
	f.storage.err = errors.New("disk full")

	f.seedPaidPayment(t, "JOB-0005", paymentdomain.ProductTypeCourse, "course-7")
	jobID := f.enqueue(t, domain.JobTypeInvoiceEmail, "JOB-0005")

	ok, err := f.processor.ProcessNext(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	status, result := f.jobStatus(t, jobID)
	assert.Equal(t, domain.StatusCompleted, status)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "not persisted")
	require.Len(t, f.email.sent, 1)
	assert.Len(t, f.email.sent[0].attachments, 1)
}

func TestEmailFailureFailsJob(t *testing.T) {
	f := newFixture(t)
	f.email.err = errors.New("smtp down")

	f.seedPaidPayment(t, "JOB-0006", paymentdomain.ProductTypeCourse, "course-7")
	jobID := f.enqueue(t, domain.JobTypeInvoiceEmail, "JOB-0006")

	ok, err := f.processor.ProcessNext(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	status, result := f.jobStatus(t, jobID)
	assert.Equal(t, domain.StatusFailed, status)
	assert.Contains(t, result.Message, "email send failed")
}
