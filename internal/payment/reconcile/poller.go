package reconcile

import (
	"context"
	"time"

	"github.com/jespen/studioclay-sub001/internal/observability/metrics"
	"github.com/jespen/studioclay-sub001/internal/payment/domain"
	"github.com/jespen/studioclay-sub001/internal/payment/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Checkpoint attempts. At the first the local read bypasses the status
// cache, at the second and after exhaustion the provider is queried live.
const (
	bypassCacheAttempt = 5
	forceCheckAttempt  = 10
)

type Config struct {
	Interval    time.Duration
	MaxAttempts int
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 2 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 15
	}
	return c
}

// Outcome is the result of one reconciliation session.
type Outcome struct {
	Record   *domain.PaymentRecord
	Settled  bool
	Attempts int
}

type Params struct {
	fx.In

	Service *service.Service
	Log     *zap.Logger
	Metrics *metrics.Metrics `optional:"true"`
}

// Poller drives the client-side reconciliation loop for one in-flight
// payment: a fixed-cadence local status read with cache-bypass and
// forced-check escalation, ending in a last direct provider check when the
// attempt budget runs out.
type Poller struct {
	svc     *service.Service
	log     *zap.Logger
	metrics *metrics.Metrics
	cfg     Config
}

func NewPoller(p Params) *Poller {
	return &Poller{
		svc:     p.Service,
		log:     p.Log.Named("payment.reconcile"),
		metrics: p.Metrics,
		cfg:     Config{}.withDefaults(),
	}
}

func NewPollerWithConfig(svc *service.Service, log *zap.Logger, cfg Config) *Poller {
	return &Poller{svc: svc, log: log.Named("payment.reconcile"), cfg: cfg.withDefaults()}
}

// Await polls until the payment reaches a terminal status, the context is
// cancelled, or the attempt budget is exhausted. Exhaustion without a
// terminal result is not an error: the payment is still processing and the
// caller decides how to present that.
func (p *Poller) Await(ctx context.Context, reference string) (Outcome, error) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	var record *domain.PaymentRecord
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return Outcome{Record: record, Attempts: attempt - 1}, ctx.Err()
		case <-ticker.C:
		}

		opts := service.StatusOptions{}
		switch attempt {
		case bypassCacheAttempt:
			opts.BypassCache = true
		case forceCheckAttempt:
			opts.ForceCheck = true
			opts.Source = domain.SourcePoll
		}

		current, err := p.svc.Status(ctx, reference, opts)
		if err != nil {
			p.log.Warn("reconciliation read failed",
				zap.String("reference", reference),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			continue
		}
		record = current
		if record.Status.Terminal() {
			p.metrics.RecordPollSession("settled")
			return Outcome{Record: record, Settled: true, Attempts: attempt}, nil
		}
	}

	// Budget exhausted: one last authoritative provider check so a lost
	// callback cannot strand the session.
	current, err := p.svc.Status(ctx, reference, service.StatusOptions{
		ForceCheck: true,
		Source:     domain.SourcePoll,
	})
	if err != nil {
		return Outcome{Record: record, Attempts: p.cfg.MaxAttempts}, err
	}
	record = current
	if record.Status.Terminal() {
		p.metrics.RecordPollSession("settled")
		return Outcome{Record: record, Settled: true, Attempts: p.cfg.MaxAttempts}, nil
	}

	p.log.Info("reconciliation budget exhausted, payment still processing",
		zap.String("reference", reference),
	)
	p.metrics.RecordPollSession("exhausted")
	return Outcome{Record: record, Attempts: p.cfg.MaxAttempts}, nil
}
