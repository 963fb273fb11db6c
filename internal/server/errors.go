package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	fulfillmentdomain "github.com/jespen/studioclay-sub001/internal/fulfillment/domain"
	jobdomain "github.com/jespen/studioclay-sub001/internal/job/domain"
	paymentdomain "github.com/jespen/studioclay-sub001/internal/payment/domain"
	"github.com/jespen/studioclay-sub001/internal/swish"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	var vErr *swish.ValidationError
	if errors.As(err, &vErr) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: vErr.Message,
			Field:   vErr.Field,
		}
	}

	var certErr *swish.CertificateError
	if errors.As(err, &certErr) {
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "provider_unavailable",
			Message: "payment provider not reachable",
		}
	}

	var apiErr *swish.APIError
	if errors.As(err, &apiErr) {
		return http.StatusBadGateway, errorPayload{
			Type:    "provider_error",
			Message: apiErr.Error(),
		}
	}

	switch {
	case errors.Is(err, paymentdomain.ErrNotFound),
		errors.Is(err, jobdomain.ErrNotFound),
		errors.Is(err, fulfillmentdomain.ErrBookingNotFound),
		errors.Is(err, fulfillmentdomain.ErrGiftCardNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "resource not found",
		}
	case errors.Is(err, paymentdomain.ErrDuplicateReference):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "payment reference already exists",
		}
	case errors.Is(err, paymentdomain.ErrConflictingTerminal):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "payment already settled with a different status",
		}
	case errors.Is(err, paymentdomain.ErrNotCancellable):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "payment is no longer cancellable",
		}
	case errors.Is(err, paymentdomain.ErrInvalidProduct):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "unknown product type or missing product id",
		}
	}

	return http.StatusInternalServerError, errorPayload{
		Type:    "internal_error",
		Message: "internal server error",
	}
}
