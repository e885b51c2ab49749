// Package enrich researches ingested leads, scores them and routes the
// scored leads to outreach.
package enrich

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadflow/internal/config"
	"github.com/sells-group/leadflow/internal/effect"
	"github.com/sells-group/leadflow/internal/emailguess"
	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/internal/oracle"
	"github.com/sells-group/leadflow/internal/outreach"
	"github.com/sells-group/leadflow/internal/research"
	"github.com/sells-group/leadflow/internal/scoring"
	"github.com/sells-group/leadflow/internal/signal"
	"github.com/sells-group/leadflow/internal/store"
)

// Pusher sends scored leads to the outreach campaign for their tier.
type Pusher interface {
	Push(ctx context.Context, tier model.Tier, leads []model.Lead) (*outreach.PushResult, error)
}

// Deps are the orchestrator's collaborators. Content, News and Oracle may
// be nil, in which case that step is skipped. Effects may be nil.
type Deps struct {
	Store   store.Store
	Content research.ContentFetcher
	News    research.NewsFetcher
	Oracle  oracle.Oracle
	Pusher  Pusher
	Effects *effect.Dispatcher
}

// LeadResult is the outcome for one lead in a batch.
type LeadResult struct {
	ID         string           `json:"id"`
	Email      string           `json:"email"`
	Status     model.LeadStatus `json:"status"`
	Score      *int             `json:"score"`
	Tier       model.Tier       `json:"tier,omitempty"`
	SignalType model.SignalType `json:"signal_type,omitempty"`
	Error      string           `json:"error,omitempty"`
}

// BatchResult summarizes a batch. Scored counts leads left at scored
// because outreach was skipped or failed; Emailed counts leads pushed.
type BatchResult struct {
	Processed int          `json:"processed"`
	Scored    int          `json:"scored"`
	Emailed   int          `json:"emailed"`
	Failed    int          `json:"failed"`
	Results   []LeadResult `json:"results"`
}

// Orchestrator runs enrichment batches.
type Orchestrator struct {
	deps Deps
	cfg  config.EnrichConfig
	log  *zap.Logger
}

// New creates an Orchestrator.
func New(deps Deps, cfg config.EnrichConfig) *Orchestrator {
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 10
	}
	if cfg.DefaultBatchSize <= 0 || cfg.DefaultBatchSize > cfg.MaxBatchSize {
		cfg.DefaultBatchSize = cfg.MaxBatchSize
	}
	return &Orchestrator{
		deps: deps,
		cfg:  cfg,
		log:  zap.L().With(zap.String("component", "enrich")),
	}
}

// BatchSize clamps a requested size to [1, MaxBatchSize]; zero or negative
// selects the default.
func (o *Orchestrator) BatchSize(requested int) int {
	switch {
	case requested <= 0:
		return o.cfg.DefaultBatchSize
	case requested > o.cfg.MaxBatchSize:
		return o.cfg.MaxBatchSize
	}
	return requested
}

// RunBatch enriches up to batchSize ingested leads, oldest first. Leads are
// processed one at a time; a failing lead is marked enrichment_failed and
// the batch moves on. Only a failure to load the worklist aborts the run.
func (o *Orchestrator) RunBatch(ctx context.Context, batchSize int) (*BatchResult, error) {
	size := o.BatchSize(batchSize)
	worklist, err := o.deps.Store.FindLeads(ctx, store.LeadFilter{
		Status: model.StatusIngested,
		Oldest: true,
		Limit:  size,
	})
	if err != nil {
		return nil, eris.Wrap(err, "enrich: load worklist")
	}
	o.log.Info("enrich: batch started", zap.Int("leads", len(worklist)), zap.Int("batch_size", size))

	res := &BatchResult{Results: make([]LeadResult, 0, len(worklist))}
	for _, l := range worklist {
		if ctx.Err() != nil {
			break
		}
		lr := o.processLead(ctx, l.ID)
		res.Processed++
		switch lr.Status {
		case model.StatusEmailed:
			res.Emailed++
		case model.StatusScored:
			res.Scored++
		case model.StatusEnrichmentFailed:
			res.Failed++
		}
		res.Results = append(res.Results, lr)
	}

	if _, err := o.deps.Store.AppendLog(ctx, model.LogEnrichment, map[string]any{
		"processed": res.Processed,
		"results":   res.Results,
	}); err != nil {
		o.log.Warn("enrich: append log failed", zap.Error(err))
	}

	o.log.Info("enrich: batch complete",
		zap.Int("processed", res.Processed),
		zap.Int("emailed", res.Emailed),
		zap.Int("scored", res.Scored),
		zap.Int("failed", res.Failed),
	)
	return res, ctx.Err()
}

// processLead never returns an error: any failure, including a panic,
// marks the lead enrichment_failed.
func (o *Orchestrator) processLead(ctx context.Context, id string) (lr LeadResult) {
	log := o.log.With(zap.String("lead_id", id))
	lr = LeadResult{ID: id}

	defer func() {
		if r := recover(); r != nil {
			log.Error("enrich: panic", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			lr = o.fail(ctx, lr, eris.Errorf("panic: %v", r))
		}
	}()

	lead, err := o.deps.Store.GetLead(ctx, id)
	if err != nil {
		return o.fail(ctx, lr, eris.Wrap(err, "enrich: reload lead"))
	}
	lr.Email = lead.Email
	if lead.Status != model.StatusIngested {
		// Claimed by a concurrent run since the worklist was read.
		lr.Status = lead.Status
		return lr
	}

	if err := o.enrich(ctx, lead, log); err != nil {
		lr.Status = lead.Status
		return o.fail(ctx, lr, err)
	}

	lr.Email = lead.Email
	lr.Status = lead.Status
	lr.Score = lead.Score
	lr.Tier = lead.Tier
	lr.SignalType = lead.SignalType
	return lr
}

func (o *Orchestrator) enrich(ctx context.Context, lead *model.Lead, log *zap.Logger) error {
	if err := o.setStatus(ctx, lead, model.StatusEnriching, model.LeadPatch{}); err != nil {
		return err
	}

	in := signal.Input{
		CompanyName:   lead.CompanyName,
		CompanyDomain: lead.CompanyDomain,
		RoleTitle:     lead.RoleTitle,
	}
	if lead.CompanyDomain != "" && o.deps.Content != nil {
		text, err := o.deps.Content.FetchText(ctx, lead.CompanyDomain)
		if err != nil {
			log.Warn("enrich: website fetch failed", zap.Error(err))
		}
		in.WebsiteText = research.Truncate(text, o.cfg.ContentMaxRunes)
	}
	if lead.CompanyName != "" && o.deps.News != nil {
		items, err := o.deps.News.Search(ctx, lead.CompanyName)
		if err != nil {
			log.Warn("enrich: news search failed", zap.Error(err))
		}
		if limit := o.cfg.NewsMaxItems; limit > 0 && len(items) > limit {
			items = items[:limit]
		}
		in.NewsText = research.FormatNews(items)
	}

	sig := signal.Fallback()
	if in.HasResearch() && o.deps.Oracle != nil {
		var answer signal.Result
		if err := o.deps.Oracle.Complete(ctx, signal.Prompt(in), &answer); err != nil {
			log.Warn("enrich: signal extraction failed", zap.Error(err))
		} else {
			sig = answer
		}
	}

	patch := model.LeadPatch{}
	if !lead.HasEmail() {
		if guess := o.guessEmail(ctx, lead); guess != "" {
			guessed := true
			patch.Email = &guess
			patch.EmailGuessed = &guessed
		}
	}

	sigType, strength := sig.Type(), sig.Strength()
	now := time.Now().UTC()
	patch.SignalType = &sigType
	patch.SignalStrength = &strength
	patch.SignalSummary = &sig.SignalSummary
	patch.CompanyDescription = &sig.CompanyDescription
	patch.DetectedIndustry = &sig.DetectedIndustry
	patch.EnrichedAt = &now

	// Score the lead as it will be stored.
	scored := *lead
	patch.Apply(&scored)
	result := scoring.Score(scored)
	patch.Score = &result.Score
	patch.Tier = &result.Tier

	if err := model.Transition(lead.Status, model.StatusEnriched); err != nil {
		return err
	}
	lead.Status = model.StatusEnriched
	if err := o.setStatus(ctx, lead, model.StatusScored, patch); err != nil {
		return err
	}
	log.Info("enrich: lead scored",
		zap.Int("score", result.Score),
		zap.String("tier", string(result.Tier)),
		zap.String("signal_type", string(sigType)),
	)

	o.push(ctx, lead, log)

	if o.deps.Effects != nil {
		o.deps.Effects.Run(ctx, effect.UpsertLead(lead))
	}
	return nil
}

// guessEmail returns the first address pattern no other lead already uses.
func (o *Orchestrator) guessEmail(ctx context.Context, lead *model.Lead) string {
	for _, candidate := range emailguess.Patterns(lead.FirstName, lead.LastName, lead.CompanyDomain) {
		existing, err := o.deps.Store.FindLeadByEmail(ctx, candidate)
		if err != nil {
			return ""
		}
		if existing == nil {
			return candidate
		}
	}
	return ""
}

// push sends a scored lead to outreach. A skipped or failed push leaves
// the lead at scored.
func (o *Orchestrator) push(ctx context.Context, lead *model.Lead, log *zap.Logger) {
	if o.deps.Pusher == nil || lead.Tier == model.TierManualReview || !lead.HasEmail() {
		return
	}
	res, err := o.deps.Pusher.Push(ctx, lead.Tier, []model.Lead{*lead})
	switch {
	case err != nil:
		log.Warn("enrich: outreach push failed", zap.Error(err))
		return
	case res == nil || res.Skipped:
		log.Warn("enrich: no campaign for tier, lead stays scored", zap.String("tier", string(lead.Tier)))
		return
	}

	campaign := res.CampaignID
	if err := o.setStatus(ctx, lead, model.StatusEmailed, model.LeadPatch{InstantlyCampaign: &campaign}); err != nil {
		log.Warn("enrich: mark emailed failed", zap.Error(err))
	}
}

// setStatus validates the transition, then persists patch with the new
// status and applies it to lead.
func (o *Orchestrator) setStatus(ctx context.Context, lead *model.Lead, to model.LeadStatus, patch model.LeadPatch) error {
	if err := model.Transition(lead.Status, to); err != nil {
		return err
	}
	patch.Status = &to
	if err := o.deps.Store.UpdateLead(ctx, lead.ID, patch); err != nil {
		return eris.Wrapf(err, "enrich: set status %s", to)
	}
	patch.Apply(lead)
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, lr LeadResult, cause error) LeadResult {
	msg := cause.Error()
	status := model.StatusEnrichmentFailed
	o.log.Error("enrich: lead failed", zap.String("lead_id", lr.ID), zap.Error(cause))

	if lr.Status != "" {
		if err := model.Transition(lr.Status, status); err != nil {
			o.log.Warn("enrich: cannot mark failed", zap.String("lead_id", lr.ID), zap.Error(err))
			lr.Error = msg
			return lr
		}
	}
	if err := o.deps.Store.UpdateLead(ctx, lr.ID, model.LeadPatch{Status: &status, EnrichmentError: &msg}); err != nil {
		o.log.Warn("enrich: persist failure", zap.String("lead_id", lr.ID), zap.Error(err))
	}
	lr.Status = status
	lr.Error = msg
	return lr
}

// Requeue moves an enrichment_failed lead back to ingested so the next
// batch picks it up.
func (o *Orchestrator) Requeue(ctx context.Context, id string) (*model.Lead, error) {
	lead, err := o.deps.Store.GetLead(ctx, id)
	if err != nil {
		return nil, eris.Wrapf(err, "enrich: requeue %s", id)
	}
	if lead.Status != model.StatusEnrichmentFailed {
		return nil, eris.Wrapf(model.ErrIllegalTransition, "enrich: requeue %s from %s", id, lead.Status)
	}
	cleared := ""
	if err := o.setStatus(ctx, lead, model.StatusIngested, model.LeadPatch{EnrichmentError: &cleared}); err != nil {
		return nil, err
	}
	o.log.Info("enrich: lead requeued", zap.String("lead_id", id))
	return lead, nil
}

// String is used by the CLI.
func (r *BatchResult) String() string {
	return fmt.Sprintf("processed %d: %d emailed, %d scored, %d failed", r.Processed, r.Emailed, r.Scored, r.Failed)
}
