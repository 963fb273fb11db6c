package swish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jespen/studioclay-sub001/internal/config"
	"go.uber.org/zap"
)

// PaymentRequest is the outbound payment-creation body.
type PaymentRequest struct {
	PayeePaymentReference string `json:"payeePaymentReference"`
	CallbackURL           string `json:"callbackUrl"`
	PayeeAlias            string `json:"payeeAlias"`
	PayerAlias            string `json:"payerAlias"`
	Amount                string `json:"amount"`
	Currency              string `json:"currency"`
	Message               string `json:"message"`
}

// PaymentStatus is the provider's view of a payment, returned by GetPayment.
type PaymentStatus struct {
	ID                    string `json:"id"`
	PayeePaymentReference string `json:"payeePaymentReference"`
	PaymentReference      string `json:"paymentReference"`
	Status                string `json:"status"`
	Amount                json.Number `json:"amount"`
	Currency              string `json:"currency"`
	DateCreated           string `json:"dateCreated"`
	DatePaid              string `json:"datePaid"`
	ErrorCode             string `json:"errorCode"`
	ErrorMessage          string `json:"errorMessage"`
}

type providerError struct {
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// Client issues payment requests and status queries over the
// certificate-bound transport.
type Client struct {
	cfg    config.SwishConfig
	client *http.Client
	log    *zap.Logger
}

func NewClient(cfg config.SwishConfig, httpClient *http.Client, log *zap.Logger) *Client {
	return &Client{
		cfg:    cfg,
		client: httpClient,
		log:    log.Named("swish.client"),
	}
}

// CreatePayment validates the request, POSTs it to the provider and returns
// the provider-assigned payment id taken from the Location header of the 201
// response. Validation failures surface before any network call.
func (c *Client) CreatePayment(ctx context.Context, req PaymentRequest) (string, error) {
	if err := c.validate(&req); err != nil {
		return "", err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/v1/paymentrequests", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", parseProviderError(resp)
	}

	location := strings.TrimSpace(resp.Header.Get("Location"))
	if location == "" {
		return "", &APIError{StatusCode: resp.StatusCode, Message: "created response missing Location header"}
	}
	segments := strings.Split(strings.TrimRight(location, "/"), "/")
	id := segments[len(segments)-1]
	if id == "" {
		return "", &APIError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("unparseable Location header %q", location)}
	}

	c.log.Info("payment request created",
		zap.String("reference", req.PayeePaymentReference),
		zap.String("provider_payment_id", id),
	)
	return id, nil
}

// GetPayment queries current payment state directly by provider payment id.
func (c *Client) GetPayment(ctx context.Context, providerPaymentID string) (*PaymentStatus, error) {
	providerPaymentID = strings.TrimSpace(providerPaymentID)
	if providerPaymentID == "" {
		return nil, &ValidationError{Field: "providerPaymentId", Message: "required"}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/api/v1/paymentrequests/"+providerPaymentID, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseProviderError(resp)
	}

	var status PaymentStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode payment status: %w", err)
	}
	return &status, nil
}

func (c *Client) validate(req *PaymentRequest) error {
	req.PayeePaymentReference = strings.TrimSpace(req.PayeePaymentReference)
	if err := ValidateReference(req.PayeePaymentReference); err != nil {
		return err
	}

	payer, err := NormalizePhone(req.PayerAlias)
	if err != nil {
		return err
	}
	req.PayerAlias = payer

	if err := ValidateAmount(req.Amount); err != nil {
		return err
	}
	if err := validateMessage(req.Message); err != nil {
		return err
	}

	if req.PayeeAlias == "" {
		req.PayeeAlias = c.cfg.PayeeAlias
	}
	if req.PayeeAlias == "" {
		return &ValidationError{Field: "payeeAlias", Message: "required"}
	}
	if req.CallbackURL == "" {
		req.CallbackURL = c.cfg.CallbackURL
	}
	if !strings.HasPrefix(req.CallbackURL, "https://") && !strings.HasPrefix(req.CallbackURL, "http://") {
		return &ValidationError{Field: "callbackUrl", Message: "must be an absolute URL"}
	}
	if req.Currency == "" {
		req.Currency = "SEK"
	}
	return nil
}

func parseProviderError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	// Swish reports errors either as a single object or an array of them.
	var single providerError
	if err := json.Unmarshal(raw, &single); err == nil && single.ErrorCode != "" {
		return &APIError{StatusCode: resp.StatusCode, Code: single.ErrorCode, Message: single.ErrorMessage}
	}
	var many []providerError
	if err := json.Unmarshal(raw, &many); err == nil && len(many) > 0 {
		return &APIError{StatusCode: resp.StatusCode, Code: many[0].ErrorCode, Message: many[0].ErrorMessage}
	}

	return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
}
