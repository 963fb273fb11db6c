package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/jespen/studioclay-sub001/internal/clock"
	"github.com/jespen/studioclay-sub001/internal/config"
	fulfillmentdomain "github.com/jespen/studioclay-sub001/internal/fulfillment/domain"
	fulfillmentrepository "github.com/jespen/studioclay-sub001/internal/fulfillment/repository"
	fulfillmentservice "github.com/jespen/studioclay-sub001/internal/fulfillment/service"
	jobdomain "github.com/jespen/studioclay-sub001/internal/job/domain"
	jobrepository "github.com/jespen/studioclay-sub001/internal/job/repository"
	obsmetrics "github.com/jespen/studioclay-sub001/internal/observability/metrics"
	paymentdomain "github.com/jespen/studioclay-sub001/internal/payment/domain"
	"github.com/jespen/studioclay-sub001/internal/payment/reconcile"
	paymentrepository "github.com/jespen/studioclay-sub001/internal/payment/repository"
	paymentservice "github.com/jespen/studioclay-sub001/internal/payment/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type serverFixture struct {
	db       *gorm.DB
	node     *snowflake.Node
	server   *Server
	payments *paymentservice.Service
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&paymentdomain.PaymentRecord{},
		&jobdomain.BackgroundJob{},
		&fulfillmentdomain.Booking{},
		&fulfillmentdomain.GiftCard{},
		&fulfillmentdomain.Course{},
		&fulfillmentdomain.ArtProduct{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	log := zap.NewNop()
	sysClock := clock.NewSystemClock()

	fulfillSvc := fulfillmentservice.NewService(fulfillmentservice.Params{
		DB:          db,
		Log:         log,
		GenID:       node,
		Repo:        fulfillmentrepository.Provide(),
		PaymentRepo: paymentrepository.Provide(),
		JobRepo:     jobrepository.Provide(),
		Clock:       sysClock,
	})

	paySvc := paymentservice.NewService(paymentservice.Params{
		DB:        db,
		Log:       log,
		GenID:     node,
		Repo:      paymentrepository.Provide(),
		Fulfiller: fulfillSvc,
		Clock:     sysClock,
	})

	poller := reconcile.NewPollerWithConfig(paySvc, log, reconcile.Config{
		Interval:    time.Millisecond,
		MaxAttempts: 3,
	})

	engine := NewEngine(log, obsmetrics.New(prometheus.NewRegistry()))
	cfg := config.Config{Environment: config.EnvDevelopment}

	srv := NewServer(ServerParams{
		Gin:         engine,
		Cfg:         cfg,
		DB:          db,
		Log:         log,
		GenID:       node,
		Payments:    paySvc,
		Poller:      poller,
		Fulfillment: fulfillSvc,
	})

	return &serverFixture{db: db, node: node, server: srv, payments: paySvc}
}

func (f *serverFixture) seedCreatedPayment(t *testing.T, reference string) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, paymentrepository.Provide().Insert(context.Background(), f.db, &paymentdomain.PaymentRecord{
		ID:            f.node.Generate(),
		Reference:     reference,
		Status:        paymentdomain.StatusCreated,
		Amount:        25000,
		Currency:      "SEK",
		ProductType:   paymentdomain.ProductTypeCourse,
		ProductID:     "course-7",
		PayerContact:  "46712345678",
		CustomerName:  "Anna Andersson",
		CustomerEmail: "anna@example.com",
		CreatedAt:     now,
		UpdatedAt:     now,
	}))
}

func (f *serverFixture) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.server.Engine().ServeHTTP(w, req)
	return w
}

func (f *serverFixture) countJobs(t *testing.T, jobType jobdomain.JobType) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Raw(
		`SELECT COUNT(1) FROM background_jobs WHERE job_type = ?`, jobType,
	).Scan(&count).Error)
	return count
}

func TestCallbackSettlesPaymentAndEnqueuesOneInvoiceJob(t *testing.T) {
	f := newServerFixture(t)
	f.seedCreatedPayment(t, "TEST-0001")

	callback := map[string]any{
		"id":                    "AB23D7406ECE4542A80152D909EF9F6B",
		"payeePaymentReference": "TEST-0001",
		"status":                "PAID",
		"amount":                "250.00",
		"currency":              "SEK",
	}

	w := f.do(http.MethodPost, "/api/payments/callback", callback)
	assert.Equal(t, http.StatusOK, w.Code)

	stored, err := paymentrepository.Provide().FindByReference(context.Background(), f.db, "TEST-0001")
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.StatusPaid, stored.Status)
	require.NotNil(t, stored.FulfilledAt)
	assert.Equal(t, int64(1), f.countJobs(t, jobdomain.JobTypeInvoiceEmail))

	// The provider delivers at least once; a replay must ack without any
	// new side effects.
	w = f.do(http.MethodPost, "/api/payments/callback", callback)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), f.countJobs(t, jobdomain.JobTypeInvoiceEmail))

	var bookings int64
	require.NoError(t, f.db.Raw(`SELECT COUNT(1) FROM bookings`).Scan(&bookings).Error)
	assert.Equal(t, int64(1), bookings)
}

func TestCallbackUnknownReferenceStillAcks(t *testing.T) {
	f := newServerFixture(t)

	w := f.do(http.MethodPost, "/api/payments/callback", map[string]any{
		"payeePaymentReference": "NEVER-SEEN",
		"status":                "PAID",
		"amount":                "100.00",
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCallbackMalformedBodyRejected(t *testing.T) {
	f := newServerFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/payments/callback", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.server.Engine().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCallbackAfterCancelKeepsCancelled(t *testing.T) {
	f := newServerFixture(t)
	f.seedCreatedPayment(t, "TEST-0002")

	w := f.do(http.MethodPost, "/api/payments/TEST-0002/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodPost, "/api/payments/callback", map[string]any{
		"payeePaymentReference": "TEST-0002",
		"status":                "PAID",
		"amount":                "250.00",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	stored, err := paymentrepository.Provide().FindByReference(context.Background(), f.db, "TEST-0002")
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.StatusCancelled, stored.Status)
	assert.Nil(t, stored.FulfilledAt)
	assert.Equal(t, int64(0), f.countJobs(t, jobdomain.JobTypeInvoiceEmail))
}

func TestGetPaymentNotFound(t *testing.T) {
	f := newServerFixture(t)
	w := f.do(http.MethodGet, "/api/payments/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetPaymentReturnsRecord(t *testing.T) {
	f := newServerFixture(t)
	f.seedCreatedPayment(t, "TEST-0003")

	w := f.do(http.MethodGet, "/api/payments/TEST-0003?bypass_cache=true", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var record paymentdomain.PaymentRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &record))
	assert.Equal(t, "TEST-0003", record.Reference)
	assert.Equal(t, paymentdomain.StatusCreated, record.Status)
}

func TestAwaitPaymentReturnsSettled(t *testing.T) {
	f := newServerFixture(t)
	f.seedCreatedPayment(t, "TEST-0004")

	_, _, err := f.payments.ApplyObserved(context.Background(), "TEST-0004", paymentdomain.ObservedStatus{
		Status: paymentdomain.StatusPaid,
		Source: paymentdomain.SourceCallback,
	})
	require.NoError(t, err)

	w := f.do(http.MethodGet, "/api/payments/TEST-0004/await", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Status   string `json:"status"`
		Attempts int    `json:"attempts"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "PAID", resp.Status)
	assert.Equal(t, 1, resp.Attempts)
}

func TestCreatePaymentRejectsUnknownProductType(t *testing.T) {
	f := newServerFixture(t)

	w := f.do(http.MethodPost, "/api/payments", map[string]any{
		"amount":       25000,
		"product_type": "subscription",
		"product_id":   "x",
		"payer_phone":  "0712345678",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProcessJobsRequiresTokenOutsideDevelopment(t *testing.T) {
	f := newServerFixture(t)
	f.server.cfg = config.Config{Environment: "production", JobTriggerToken: "secret"}

	w := f.do(http.MethodGet, "/api/jobs/process", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(http.MethodGet, "/api/jobs/process?token=wrong", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetGiftCardByAnyKey(t *testing.T) {
	f := newServerFixture(t)

	// Settle a gift card payment through the callback path.
	now := time.Now().UTC()
	require.NoError(t, paymentrepository.Provide().Insert(context.Background(), f.db, &paymentdomain.PaymentRecord{
		ID:            f.node.Generate(),
		Reference:     "TEST-0006",
		Status:        paymentdomain.StatusCreated,
		Amount:        50000,
		Currency:      "SEK",
		ProductType:   paymentdomain.ProductTypeGiftCard,
		ProductID:     "gift-500",
		PayerContact:  "46712345678",
		CustomerName:  "Anna Andersson",
		CustomerEmail: "anna@example.com",
		CreatedAt:     now,
		UpdatedAt:     now,
	}))

	w := f.do(http.MethodPost, "/api/payments/callback", map[string]any{
		"payeePaymentReference": "TEST-0006",
		"status":                "PAID",
		"amount":                "500.00",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodGet, "/api/gift-cards/TEST-0006", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var card fulfillmentdomain.GiftCard
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &card))
	assert.NotEmpty(t, card.Code)

	w = f.do(http.MethodGet, "/api/gift-cards/"+card.Code, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
