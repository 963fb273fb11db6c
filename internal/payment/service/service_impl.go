package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/jespen/studioclay-sub001/internal/cache"
	"github.com/jespen/studioclay-sub001/internal/clock"
	"github.com/jespen/studioclay-sub001/internal/observability/metrics"
	"github.com/jespen/studioclay-sub001/internal/payment/domain"
	"github.com/jespen/studioclay-sub001/internal/swish"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Repo      domain.Repository
	Swish     *swish.Client       `optional:"true"`
	Cache     *cache.StatusCache  `optional:"true"`
	Fulfiller domain.Fulfiller    `optional:"true"`
	Metrics   *metrics.Metrics    `optional:"true"`
	Clock     clock.Clock
}

// Service is the payment settlement core. It is the single authority for
// PaymentRecord state transitions; the callback handler, the reconciliation
// poller and forced checks all converge on ApplyObserved.
type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	repo      domain.Repository
	swish     *swish.Client
	cache     *cache.StatusCache
	fulfiller domain.Fulfiller
	metrics   *metrics.Metrics
	clock     clock.Clock
}

func NewService(p Params) *Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("payment.service"),
		genID:     p.GenID,
		repo:      p.Repo,
		swish:     p.Swish,
		cache:     p.Cache,
		fulfiller: p.Fulfiller,
		metrics:   p.Metrics,
		clock:     p.Clock,
	}
}

type CreatePaymentInput struct {
	Reference     string
	Amount        int64 // öre
	Currency      string
	ProductType   string
	ProductID     string
	PayerPhone    string
	CustomerName  string
	CustomerEmail string
	Message       string
}

// CreatePayment persists a CREATED record, then issues the provider request.
// A transport or provider failure transitions the record to ERROR; the typed
// swish error is returned so the caller can distinguish retryable 5xx from
// fatal configuration or validation problems.
func (s *Service) CreatePayment(ctx context.Context, in CreatePaymentInput) (*domain.PaymentRecord, error) {
	if err := validateInput(&in); err != nil {
		return nil, err
	}

	payer, err := swish.NormalizePhone(in.PayerPhone)
	if err != nil {
		return nil, err
	}

	reference := strings.TrimSpace(in.Reference)
	if reference == "" {
		reference = "SC-" + s.genID.Generate().String()
	}
	if err := swish.ValidateReference(reference); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	record := &domain.PaymentRecord{
		ID:            s.genID.Generate(),
		Reference:     reference,
		Status:        domain.StatusCreated,
		Amount:        in.Amount,
		Currency:      in.Currency,
		ProductType:   in.ProductType,
		ProductID:     in.ProductID,
		PayerContact:  payer,
		CustomerName:  strings.TrimSpace(in.CustomerName),
		CustomerEmail: strings.TrimSpace(in.CustomerEmail),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Insert(ctx, s.db, record); err != nil {
		return nil, err
	}

	if s.swish == nil {
		return record, nil
	}

	providerID, err := s.swish.CreatePayment(ctx, swish.PaymentRequest{
		PayeePaymentReference: reference,
		PayerAlias:            payer,
		Amount:                AmountString(in.Amount),
		Currency:              in.Currency,
		Message:               in.Message,
	})
	if err != nil {
		s.markError(ctx, reference, err)
		return nil, err
	}

	if err := s.repo.SetProviderPaymentID(ctx, s.db, reference, providerID); err != nil {
		return nil, err
	}
	record.ProviderPaymentID = providerID
	return record, nil
}

// ApplyObserved applies one observed status signal to the state machine.
// It returns the current record and whether this call performed the
// transition. Duplicate terminal signals are absorbed; a conflicting terminal
// signal keeps the stored status and returns ErrConflictingTerminal.
//
// A PAID observation always runs the fulfillment claim, whether or not this
// call performed the transition: the claim is a compare-and-set, so a crashed
// earlier invocation is recovered and a concurrent one stays exactly-once.
func (s *Service) ApplyObserved(ctx context.Context, reference string, obs domain.ObservedStatus) (*domain.PaymentRecord, bool, error) {
	record, err := s.repo.FindByReference(ctx, s.db, reference)
	if err != nil {
		return nil, false, err
	}

	if !obs.Status.Terminal() {
		// CREATED from a poll is not a signal, just absence of one.
		return record, false, nil
	}

	now := s.clock.Now()
	entry := domain.AuditEntry{
		Status:         obs.Status,
		Source:         obs.Source,
		ObservedAmount: obs.Amount,
		At:             now,
	}
	if obs.Amount != nil && *obs.Amount != record.Amount {
		// The request-time amount is authoritative; never adopt the
		// callback's.
		entry.Note = "amount mismatch"
		s.log.Error("payment amount mismatch",
			zap.String("reference", reference),
			zap.Int64("recorded_amount", record.Amount),
			zap.Int64("observed_amount", *obs.Amount),
			zap.String("source", obs.Source),
		)
	}
	if obs.ErrorCode != "" || obs.ErrorMessage != "" {
		entry.Note = strings.TrimSpace(entry.Note + " " + strings.TrimSpace(obs.ErrorCode+" "+obs.ErrorMessage))
	}

	transitioned, err := s.repo.Transition(ctx, s.db, reference, obs.Status, entry)
	if err != nil {
		return record, false, err
	}

	if transitioned {
		s.metrics.RecordPaymentEvent(string(obs.Status), obs.Source)
		s.cache.Invalidate(ctx, reference)
		record.Status = obs.Status
		record.UpdatedAt = now
		if obs.Status == domain.StatusPaid {
			s.runFulfillment(ctx, record)
		}
		return record, true, nil
	}

	// Already terminal: same value is an at-least-once duplicate, a
	// different value is a data-integrity anomaly. First-observed wins.
	stored, err := s.repo.FindByReference(ctx, s.db, reference)
	if err != nil {
		return record, false, err
	}
	if stored.Status == obs.Status {
		entry.Note = strings.TrimSpace("duplicate signal " + entry.Note)
		if err := s.repo.AppendAudit(ctx, s.db, reference, entry); err != nil {
			return stored, false, err
		}
		if obs.Status == domain.StatusPaid {
			s.runFulfillment(ctx, stored)
		}
		return stored, false, nil
	}

	s.log.Error("conflicting terminal payment status",
		zap.String("reference", reference),
		zap.String("stored_status", string(stored.Status)),
		zap.String("proposed_status", string(obs.Status)),
		zap.String("source", obs.Source),
	)
	entry.Note = strings.TrimSpace("conflicting terminal signal ignored " + entry.Note)
	if err := s.repo.AppendAudit(ctx, s.db, reference, entry); err != nil {
		return stored, false, err
	}
	return stored, false, domain.ErrConflictingTerminal
}

type StatusOptions struct {
	BypassCache bool
	ForceCheck  bool
	// Source tags a ForceCheck transition in the audit trail. Defaults to
	// forced-check.
	Source string
}

// Status returns the local view of a payment. ForceCheck queries the
// provider live and routes any terminal result through ApplyObserved, so a
// webhook that never arrived cannot strand a payment in CREATED.
func (s *Service) Status(ctx context.Context, reference string, opts StatusOptions) (*domain.PaymentRecord, error) {
	if opts.ForceCheck {
		return s.forcedCheck(ctx, reference, opts.Source)
	}

	if !opts.BypassCache {
		if cached, ok := s.cache.Get(ctx, reference); ok {
			var record domain.PaymentRecord
			if err := json.Unmarshal([]byte(cached), &record); err == nil {
				return &record, nil
			}
		}
	}

	record, err := s.repo.FindByReference(ctx, s.db, reference)
	if err != nil {
		return nil, err
	}
	if encoded, err := json.Marshal(record); err == nil {
		s.cache.Set(ctx, reference, string(encoded))
	}
	return record, nil
}

// Cancel transitions CREATED -> CANCELLED before settlement. Cancelling an
// already-cancelled payment is a no-op; any other terminal state rejects.
func (s *Service) Cancel(ctx context.Context, reference string) (*domain.PaymentRecord, error) {
	entry := domain.AuditEntry{
		Status: domain.StatusCancelled,
		Source: domain.SourceCancel,
		At:     s.clock.Now(),
	}
	transitioned, err := s.repo.Transition(ctx, s.db, reference, domain.StatusCancelled, entry)
	if err != nil {
		return nil, err
	}
	record, ferr := s.repo.FindByReference(ctx, s.db, reference)
	if ferr != nil {
		return nil, ferr
	}
	if !transitioned && record.Status != domain.StatusCancelled {
		return record, domain.ErrNotCancellable
	}
	s.cache.Invalidate(ctx, reference)
	return record, nil
}

func (s *Service) forcedCheck(ctx context.Context, reference string, source string) (*domain.PaymentRecord, error) {
	record, err := s.repo.FindByReference(ctx, s.db, reference)
	if err != nil {
		return nil, err
	}
	if record.Status.Terminal() || s.swish == nil || record.ProviderPaymentID == "" {
		return record, nil
	}

	status, err := s.swish.GetPayment(ctx, record.ProviderPaymentID)
	if err != nil {
		// A failed direct check leaves the local view authoritative.
		s.log.Warn("forced provider check failed",
			zap.String("reference", reference),
			zap.Error(err),
		)
		return record, nil
	}

	observed := domain.PaymentStatus(strings.ToUpper(strings.TrimSpace(status.Status)))
	if !observed.Terminal() {
		return record, nil
	}
	if source == "" {
		source = domain.SourceForcedCheck
	}

	obs := domain.ObservedStatus{
		Status:       observed,
		ErrorCode:    status.ErrorCode,
		ErrorMessage: status.ErrorMessage,
		Source:       source,
	}
	if amount, err := status.Amount.Float64(); err == nil && amount > 0 {
		ore := int64(amount*100 + 0.5)
		obs.Amount = &ore
	}

	updated, _, err := s.ApplyObserved(ctx, reference, obs)
	if err != nil && !errors.Is(err, domain.ErrConflictingTerminal) {
		return record, err
	}
	return updated, nil
}

// runFulfillment takes the claim and runs the fulfiller in one transaction.
// When the fulfiller fails the claim rolls back with it, so a re-delivered
// PAID signal gets another attempt; the payment itself stays settled either
// way.
func (s *Service) runFulfillment(ctx context.Context, record *domain.PaymentRecord) {
	if s.fulfiller == nil {
		s.log.Warn("no fulfiller configured", zap.String("reference", record.Reference))
		return
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		won, err := s.repo.ClaimFulfillment(ctx, tx, record.Reference, s.clock.Now())
		if err != nil {
			return err
		}
		if !won {
			return nil
		}
		return s.fulfiller.Fulfill(ctx, tx, record)
	})
	if err != nil {
		s.log.Error("post-settlement fulfillment failed",
			zap.String("reference", record.Reference),
			zap.Error(err),
		)
	}
}

func (s *Service) markError(ctx context.Context, reference string, cause error) {
	entry := domain.AuditEntry{
		Status: domain.StatusError,
		Source: domain.SourceError,
		Note:   cause.Error(),
		At:     s.clock.Now(),
	}
	if _, err := s.repo.Transition(ctx, s.db, reference, domain.StatusError, entry); err != nil {
		s.log.Error("failed to mark payment error",
			zap.String("reference", reference),
			zap.Error(err),
		)
	}
	s.cache.Invalidate(ctx, reference)
}

func validateInput(in *CreatePaymentInput) error {
	switch in.ProductType {
	case domain.ProductTypeCourse, domain.ProductTypeGiftCard, domain.ProductTypeArtProduct:
	default:
		return domain.ErrInvalidProduct
	}
	if strings.TrimSpace(in.ProductID) == "" {
		return domain.ErrInvalidProduct
	}
	if in.Amount <= 0 {
		return &swish.ValidationError{Field: "amount", Message: "must be positive"}
	}
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if in.Currency == "" {
		in.Currency = "SEK"
	}
	return nil
}

// AmountString renders an öre amount as the fixed-precision decimal string
// the provider expects (10050 -> "100.50").
func AmountString(ore int64) string {
	return fmt.Sprintf("%d.%02d", ore/100, ore%100)
}
