package outreach

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadflow/internal/config"
	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/internal/resilience"
)

// ErrPushFailed is wrapped by Push when one or more batches failed.
var ErrPushFailed = eris.New("outreach: push failed")

// PushResult reports a tier push.
type PushResult struct {
	Tier       model.Tier     `json:"tier"`
	CampaignID string         `json:"campaign_id,omitempty"`
	Skipped    bool           `json:"skipped"`
	Batches    int            `json:"batches"`
	Uploaded   int            `json:"uploaded"`
	Failed     []BatchFailure `json:"failed,omitempty"`
}

// BatchFailure records one batch that could not be uploaded.
type BatchFailure struct {
	Index int    `json:"index"`
	Size  int    `json:"size"`
	Error string `json:"error"`
}

// Syncer routes leads to the campaign configured for their tier.
type Syncer struct {
	platform Platform
	cfg      config.OutreachConfig
	breaker  *resilience.CircuitBreaker
	log      *zap.Logger
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithBreaker guards platform calls with cb.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(s *Syncer) { s.breaker = cb }
}

// New creates a Syncer. A nil platform behaves like NopPlatform.
func New(p Platform, cfg config.OutreachConfig, opts ...Option) *Syncer {
	if p == nil {
		p = NopPlatform{}
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	s := &Syncer{
		platform: p,
		cfg:      cfg,
		log:      zap.L().With(zap.String("component", "outreach")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Platform returns the underlying provider.
func (s *Syncer) Platform() Platform {
	return s.platform
}

// CampaignFor returns the campaign configured for tier, or "".
func (s *Syncer) CampaignFor(tier model.Tier) string {
	return s.cfg.Campaign(string(tier))
}

// Push uploads leads to the campaign for tier in batches. An unconfigured
// tier is skipped with a nil error. Leads without an email are dropped.
// A failed batch does not stop later batches; the returned error counts
// the failures.
func (s *Syncer) Push(ctx context.Context, tier model.Tier, leads []model.Lead) (*PushResult, error) {
	res := &PushResult{Tier: tier}
	campaignID := s.CampaignFor(tier)
	if campaignID == "" {
		s.log.Warn("outreach: no campaign configured for tier, skipping", zap.String("tier", string(tier)))
		res.Skipped = true
		return res, nil
	}
	res.CampaignID = campaignID

	sendable := make([]model.Lead, 0, len(leads))
	for _, l := range leads {
		if l.HasEmail() {
			sendable = append(sendable, l)
		}
	}

	for start := 0; start < len(sendable); start += s.cfg.BatchSize {
		end := min(start+s.cfg.BatchSize, len(sendable))
		batch := sendable[start:end]
		idx := res.Batches
		res.Batches++

		added, err := resilience.DoVal(ctx, s.retryConfig("add_to_campaign"), func(ctx context.Context) (*AddResult, error) {
			return guard(ctx, s.breaker, func(ctx context.Context) (*AddResult, error) {
				return s.platform.AddToCampaign(ctx, campaignID, batch)
			})
		})
		if err != nil {
			s.log.Error("outreach: batch failed",
				zap.String("campaign_id", campaignID),
				zap.Int("batch", idx),
				zap.Int("size", len(batch)),
				zap.Error(err),
			)
			res.Failed = append(res.Failed, BatchFailure{Index: idx, Size: len(batch), Error: err.Error()})
			continue
		}
		res.Uploaded += added.Uploaded
	}

	if n := len(res.Failed); n > 0 {
		return res, eris.Wrapf(ErrPushFailed, "%d of %d batches failed", n, res.Batches)
	}
	return res, nil
}

// Remove deletes emails from campaignID, or from every campaign when
// campaignID is empty.
func (s *Syncer) Remove(ctx context.Context, emails []string, campaignID string) (int, error) {
	if len(emails) == 0 {
		return 0, nil
	}
	n, err := resilience.DoVal(ctx, s.retryConfig("remove_leads"), func(ctx context.Context) (int, error) {
		return guard(ctx, s.breaker, func(ctx context.Context) (int, error) {
			return s.platform.RemoveLeads(ctx, emails, campaignID)
		})
	})
	if err != nil {
		return 0, eris.Wrap(err, "outreach: remove leads")
	}
	return n, nil
}

// retryConfig retries rate-limited calls only, waiting attempt*interval.
// MaxRetries counts every attempt including the first.
func (s *Syncer) retryConfig(op string) resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts: s.cfg.MaxRetries,
		MaxBackoff:  time.Duration(s.cfg.MaxRetries) * s.cfg.RetryInterval(),
		Backoff:     resilience.LinearBackoff(s.cfg.RetryInterval()),
		ShouldRetry: resilience.IsRateLimited,
		OnRetry:     resilience.RetryLogger("outreach", op),
	}
}

func guard[T any](ctx context.Context, cb *resilience.CircuitBreaker, fn func(context.Context) (T, error)) (T, error) {
	if cb == nil {
		return fn(ctx)
	}
	return resilience.ExecuteVal(ctx, cb, fn)
}

// String is used in log lines.
func (r *PushResult) String() string {
	if r.Skipped {
		return fmt.Sprintf("%s: skipped", r.Tier)
	}
	return fmt.Sprintf("%s: %d uploaded in %d batches, %d failed", r.Tier, r.Uploaded, r.Batches, len(r.Failed))
}
