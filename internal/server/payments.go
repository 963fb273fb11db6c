package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/jespen/studioclay-sub001/internal/payment/domain"
	paymentservice "github.com/jespen/studioclay-sub001/internal/payment/service"
	"github.com/jespen/studioclay-sub001/internal/swish"
	"go.uber.org/zap"
)

// How long the callback handler keeps retrying a reference lookup before
// acknowledging anyway. Covers the window where the provider's callback
// lands before the creating request committed its record.
const (
	callbackLookupRetries  = 5
	callbackLookupInterval = 100 * time.Millisecond
)

type createPaymentRequest struct {
	Reference     string `json:"reference"`
	Amount        int64  `json:"amount" binding:"required"`
	Currency      string `json:"currency"`
	ProductType   string `json:"product_type" binding:"required"`
	ProductID     string `json:"product_id" binding:"required"`
	PayerPhone    string `json:"payer_phone" binding:"required"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	Message       string `json:"message"`
}

func (s *Server) CreatePayment(c *gin.Context) {
	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, &swish.ValidationError{Field: "request", Message: "invalid request body"})
		return
	}

	record, err := s.payments.CreatePayment(c.Request.Context(), paymentservice.CreatePaymentInput{
		Reference:     req.Reference,
		Amount:        req.Amount,
		Currency:      req.Currency,
		ProductType:   req.ProductType,
		ProductID:     req.ProductID,
		PayerPhone:    req.PayerPhone,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		Message:       req.Message,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, record)
}

func (s *Server) GetPayment(c *gin.Context) {
	opts := paymentservice.StatusOptions{
		BypassCache: isTruthy(c.Query("bypass_cache")),
		ForceCheck:  isTruthy(c.Query("forceCheck")),
	}

	record, err := s.payments.Status(c.Request.Context(), c.Param("reference"), opts)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// AwaitPayment runs a reconciliation session bound to the request. The
// connection going away cancels the session.
func (s *Server) AwaitPayment(c *gin.Context) {
	outcome, err := s.poller.Await(c.Request.Context(), c.Param("reference"))
	if err != nil {
		if errors.Is(err, c.Request.Context().Err()) {
			return
		}
		AbortWithError(c, err)
		return
	}

	if !outcome.Settled {
		c.JSON(http.StatusOK, gin.H{
			"status":   "PROCESSING",
			"attempts": outcome.Attempts,
			"payment":  outcome.Record,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   string(outcome.Record.Status),
		"attempts": outcome.Attempts,
		"payment":  outcome.Record,
	})
}

func (s *Server) CancelPayment(c *gin.Context) {
	record, err := s.payments.Cancel(c.Request.Context(), c.Param("reference"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

type callbackRequest struct {
	ID                    string      `json:"id"`
	PayeePaymentReference string      `json:"payeePaymentReference"`
	PaymentReference      string      `json:"paymentReference"`
	Status                string      `json:"status"`
	Amount                json.Number `json:"amount"`
	Currency              string      `json:"currency"`
	ErrorCode             string      `json:"errorCode"`
	ErrorMessage          string      `json:"errorMessage"`
}

// PaymentCallback ingests the provider's push notification. Once the body
// parses, the handler always acknowledges with 200: the provider treats
// anything else as a delivery failure and the reconciliation path recovers
// whatever a dropped signal would lose.
func (s *Server) PaymentCallback(c *gin.Context) {
	var req callbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, &swish.ValidationError{Field: "request", Message: "invalid callback body"})
		return
	}

	reference := strings.TrimSpace(req.PayeePaymentReference)
	status := paymentdomain.PaymentStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	if reference == "" || !status.Valid() {
		s.log.Error("callback missing reference or status",
			zap.String("reference", reference),
			zap.String("status", req.Status),
		)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	obs := paymentdomain.ObservedStatus{
		Status:       status,
		ErrorCode:    req.ErrorCode,
		ErrorMessage: req.ErrorMessage,
		Source:       paymentdomain.SourceCallback,
	}
	if amount, err := req.Amount.Float64(); err == nil && amount > 0 {
		ore := int64(amount*100 + 0.5)
		obs.Amount = &ore
	}

	ctx := c.Request.Context()
	var applyErr error
	for attempt := 0; attempt < callbackLookupRetries; attempt++ {
		_, _, applyErr = s.payments.ApplyObserved(ctx, reference, obs)
		if !errors.Is(applyErr, paymentdomain.ErrNotFound) {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(callbackLookupInterval):
		}
	}

	switch {
	case applyErr == nil:
	case errors.Is(applyErr, paymentdomain.ErrNotFound):
		s.log.Error("callback for unknown payment reference",
			zap.String("reference", reference),
			zap.String("status", string(status)),
		)
	case errors.Is(applyErr, paymentdomain.ErrConflictingTerminal):
		// Already logged as an anomaly by the settlement core.
	default:
		s.log.Error("callback processing failed",
			zap.String("reference", reference),
			zap.Error(applyErr),
		)
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (s *Server) GetBooking(c *gin.Context) {
	booking, err := s.fulfillment.BookingByReference(c.Request.Context(), c.Param("reference"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

func (s *Server) GetGiftCard(c *gin.Context) {
	card, err := s.fulfillment.ResolveGiftCard(c.Request.Context(), c.Param("key"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

func isTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes":
		return true
	}
	return false
}
