// Package ingest normalizes raw lead records, runs them through the dedup
// guard and inserts the survivors.
package ingest

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadflow/internal/dedup"
	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/internal/normalize"
	"github.com/sells-group/leadflow/internal/store"
)

// ErrNoLeads is returned when Ingest is called with nothing to ingest.
var ErrNoLeads = eris.New("ingest: no leads provided")

// Record is the outcome for one input record, in input order.
type Record struct {
	Decision string `json:"decision"`
	LeadID   string `json:"lead_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Result summarizes one ingestion call.
type Result struct {
	Ingested   int      `json:"ingested"`
	Duplicates int      `json:"duplicates"`
	Invalid    int      `json:"invalid"`
	LeadIDs    []string `json:"lead_ids"`
	Records    []Record `json:"-"`
}

// Service admits leads into the store.
type Service struct {
	store store.Store
	log   *zap.Logger
}

// NewService creates an ingestion service backed by st.
func NewService(st store.Store) *Service {
	return &Service{
		store: st,
		log:   zap.L().With(zap.String("component", "ingest")),
	}
}

// Ingest normalizes, guards and inserts raws one at a time, so a batch that
// repeats an email yields a single lead. source and campaignTag override the
// values carried by each record when non-empty. Guard options such as
// dedup.WithFirmCheck apply to every record.
func (s *Service) Ingest(ctx context.Context, raws []model.RawLead, source model.Source, campaignTag string, opts ...dedup.Option) (*Result, error) {
	if len(raws) == 0 {
		return nil, ErrNoLeads
	}

	guard := dedup.New(s.store, opts...)
	res := &Result{
		LeadIDs: make([]string, 0, len(raws)),
		Records: make([]Record, 0, len(raws)),
	}

	for _, raw := range raws {
		if err := ctx.Err(); err != nil {
			return res, eris.Wrap(err, "ingest: cancelled")
		}
		res.Records = append(res.Records, s.admit(ctx, guard, raw, source, campaignTag, res))
	}

	s.log.Info("ingest: complete",
		zap.String("source", string(source)),
		zap.String("campaign_tag", campaignTag),
		zap.Int("ingested", res.Ingested),
		zap.Int("duplicates", res.Duplicates),
		zap.Int("invalid", res.Invalid),
	)

	if _, err := s.store.AppendLog(ctx, model.LogIngestion, map[string]any{
		"source":       source,
		"campaign_tag": campaignTag,
		"ingested":     res.Ingested,
		"duplicates":   res.Duplicates,
		"invalid":      res.Invalid,
	}); err != nil {
		s.log.Warn("ingest: append log failed", zap.Error(err))
	}
	return res, nil
}

func (s *Service) admit(ctx context.Context, guard *dedup.Guard, raw model.RawLead, source model.Source, campaignTag string, res *Result) Record {
	lead := normalize.Normalize(raw, source, campaignTag)

	decision, existing, err := guard.Check(ctx, &lead)
	if err != nil {
		s.log.Warn("ingest: guard failed", zap.String("lead_id", lead.ID), zap.Error(err))
		res.Invalid++
		return Record{Decision: dedup.Invalid.String(), Error: err.Error()}
	}

	switch decision {
	case dedup.Duplicate:
		res.Duplicates++
		return Record{Decision: decision.String(), LeadID: existing.ID}
	case dedup.Invalid:
		res.Invalid++
		return Record{Decision: decision.String()}
	}

	if err := s.store.InsertLead(ctx, &lead); err != nil {
		if eris.Is(err, store.ErrDuplicate) {
			res.Duplicates++
			return Record{Decision: dedup.Duplicate.String()}
		}
		s.log.Warn("ingest: insert failed", zap.String("lead_id", lead.ID), zap.Error(err))
		res.Invalid++
		return Record{Decision: dedup.Invalid.String(), Error: err.Error()}
	}

	res.Ingested++
	res.LeadIDs = append(res.LeadIDs, lead.ID)
	return Record{Decision: decision.String(), LeadID: lead.ID}
}
