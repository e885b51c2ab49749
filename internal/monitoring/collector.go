package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/internal/notify"
	"github.com/sells-group/leadflow/internal/outreach"
	"github.com/sells-group/leadflow/internal/store"
)

// unhandledScanLimit caps how many open replies a snapshot counts.
const unhandledScanLimit = 1000

// Report is the weekly pipeline report.
type Report struct {
	Pipeline    map[string]int `json:"pipeline"`
	Signals     map[string]int `json:"signals"`
	Tiers       map[string]int `json:"tiers"`
	Replies     map[string]int `json:"replies"`
	ReplyRate   float64        `json:"reply_rate"`
	Outreach    *OutreachStats `json:"instantly"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// OutreachStats summarizes the outreach platform. Nil in a Report when the
// platform could not be reached.
type OutreachStats struct {
	Campaigns int `json:"campaigns"`
}

// Stats returns the headline numbers of r.
func (r *Report) Stats() notify.PipelineStats {
	p := r.Pipeline
	return notify.PipelineStats{
		Ingested:  p[string(model.StatusIngested)],
		Enriched:  p[string(model.StatusEnriched)],
		Emailed:   p[string(model.StatusEmailed)],
		Replied:   p[string(model.StatusReplied)],
		Booked:    p[string(model.StatusBooked)],
		Failed:    p[string(model.StatusEnrichmentFailed)],
		ReplyRate: r.ReplyRate,
	}
}

// Snapshot is the point-in-time health view the Alerter evaluates.
type Snapshot struct {
	Failed           int       `json:"failed"`
	Scored           int       `json:"scored"`
	Emailed          int       `json:"emailed"`
	UnhandledReplies int       `json:"unhandled_replies"`
	CollectedAt      time.Time `json:"collected_at"`
}

// FailureRate is failed over finished enrichments, or 0 when none finished.
func (s *Snapshot) FailureRate() float64 {
	finished := s.Finished()
	if finished == 0 {
		return 0
	}
	return float64(s.Failed) / float64(finished)
}

// Finished counts leads whose enrichment ended either way.
func (s *Snapshot) Finished() int {
	return s.Failed + s.Scored + s.Emailed
}

// Collector gathers pipeline counts from the store and the outreach platform.
type Collector struct {
	store    store.Store
	platform outreach.Platform
	notifier notify.Notifier
	log      *zap.Logger
}

// NewCollector creates a collector. platform and n may be nil.
func NewCollector(st store.Store, platform outreach.Platform, n notify.Notifier) *Collector {
	if n == nil {
		n = notify.Nop{}
	}
	return &Collector{
		store:    st,
		platform: platform,
		notifier: n,
		log:      zap.L().With(zap.String("component", "monitoring.collector")),
	}
}

// Collect builds a Report. The four store aggregations run concurrently;
// any failure fails the report. The outreach lookup is best effort.
func (c *Collector) Collect(ctx context.Context) (*Report, error) {
	rep := &Report{GeneratedAt: time.Now().UTC()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		counts, err := c.store.CountLeadsBy(gctx, store.GroupStatus)
		if err != nil {
			return eris.Wrap(err, "monitoring: count by status")
		}
		rep.Pipeline = fill(counts, pipelineStatuses)
		return nil
	})
	g.Go(func() error {
		counts, err := c.store.CountLeadsBy(gctx, store.GroupTier)
		if err != nil {
			return eris.Wrap(err, "monitoring: count by tier")
		}
		rep.Tiers = fill(counts, reportTiers)
		return nil
	})
	g.Go(func() error {
		counts, err := c.store.CountLeadsBy(gctx, store.GroupSignalType)
		if err != nil {
			return eris.Wrap(err, "monitoring: count by signal")
		}
		delete(counts, "")
		rep.Signals = counts
		return nil
	})
	g.Go(func() error {
		counts, err := c.store.CountRepliesBy(gctx)
		if err != nil {
			return eris.Wrap(err, "monitoring: count replies")
		}
		rep.Replies = counts
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rep.ReplyRate = replyRate(rep.Pipeline)

	if c.platform != nil {
		campaigns, err := c.platform.ListCampaigns(ctx)
		if err != nil {
			c.log.Warn("monitoring: outreach stats unavailable", zap.Error(err))
		} else {
			rep.Outreach = &OutreachStats{Campaigns: len(campaigns)}
		}
	}
	return rep, nil
}

// Dashboard collects the report, records it as a dashboard log entry and
// posts the summary.
func (c *Collector) Dashboard(ctx context.Context) (*Report, error) {
	rep, err := c.Collect(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := c.store.AppendLog(ctx, model.LogDashboard, rep); err != nil {
		c.log.Warn("monitoring: append log failed", zap.Error(err))
	}
	c.notifier.Send(ctx, notify.Dashboard(rep.Stats()))
	c.log.Info("monitoring: dashboard report generated", zap.Any("pipeline", rep.Pipeline))
	return rep, nil
}

// Snapshot reads the counts the health alerts need.
func (c *Collector) Snapshot(ctx context.Context) (*Snapshot, error) {
	counts, err := c.store.CountLeadsBy(ctx, store.GroupStatus)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count by status")
	}
	handled := false
	open, err := c.store.ListReplies(ctx, store.ReplyFilter{Handled: &handled, Limit: unhandledScanLimit})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list unhandled replies")
	}
	return &Snapshot{
		Failed:           counts[string(model.StatusEnrichmentFailed)],
		Scored:           counts[string(model.StatusScored)],
		Emailed:          counts[string(model.StatusEmailed)],
		UnhandledReplies: len(open),
		CollectedAt:      time.Now().UTC(),
	}, nil
}

var pipelineStatuses = []string{
	string(model.StatusIngested),
	string(model.StatusEnriched),
	string(model.StatusScored),
	string(model.StatusEmailed),
	string(model.StatusReplied),
	string(model.StatusBooked),
	string(model.StatusDead),
	string(model.StatusEnrichmentFailed),
}

var reportTiers = []string{
	string(model.TierPriority),
	string(model.TierStandard),
	string(model.TierNurture),
	string(model.TierManualReview),
}

// fill returns counts restricted to keys, with zeros for missing keys.
func fill(counts map[string]int, keys []string) map[string]int {
	out := make(map[string]int, len(keys))
	for _, k := range keys {
		out[k] = counts[k]
	}
	return out
}

// replyRate is (replied+booked) over every lead that was emailed.
func replyRate(p map[string]int) float64 {
	engaged := p[string(model.StatusReplied)] + p[string(model.StatusBooked)]
	reached := p[string(model.StatusEmailed)] + engaged + p[string(model.StatusDead)]
	if reached == 0 {
		return 0
	}
	return float64(engaged) / float64(reached)
}
