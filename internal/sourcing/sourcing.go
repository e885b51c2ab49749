// Package sourcing pulls leads from scraper actors and ingests them.
package sourcing

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadflow/internal/dedup"
	"github.com/sells-group/leadflow/internal/ingest"
	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/pkg/apify"
)

const defaultItemLimit = 1000

// ErrRunFailed is returned when the actor run does not succeed.
var ErrRunFailed = eris.New("sourcing: actor run did not succeed")

// Ingester admits raw leads.
type Ingester interface {
	Ingest(ctx context.Context, raws []model.RawLead, source model.Source, campaignTag string, opts ...dedup.Option) (*ingest.Result, error)
}

// Logger appends an audit entry.
type Logger interface {
	AppendLog(ctx context.Context, typ model.LogType, data any) (*model.LogEntry, error)
}

// Request describes one scraper run.
type Request struct {
	ActorID     string         `json:"actor_id"`
	Input       map[string]any `json:"input"`
	CampaignTag string         `json:"campaign_tag"`
	Limit       int            `json:"limit"`
}

// Result summarizes a scraper run.
type Result struct {
	ActorID    string `json:"actor_id"`
	RunID      string `json:"run_id"`
	Items      int    `json:"items"`
	Ingested   int    `json:"ingested"`
	Duplicates int    `json:"duplicates"`
	Invalid    int    `json:"invalid"`
}

// Runner runs actors and feeds their datasets to ingestion.
type Runner struct {
	client apify.Client
	ingest Ingester
	audit  Logger
	log    *zap.Logger
}

// New creates a Runner.
func New(client apify.Client, ing Ingester, audit Logger) *Runner {
	return &Runner{
		client: client,
		ingest: ing,
		audit:  audit,
		log:    zap.L().With(zap.String("component", "sourcing")),
	}
}

// Run starts the actor, waits for it, maps its dataset items to raw leads
// and ingests them with source scraper. Scraped lists often repeat a firm
// under several contacts, so the firm-level dedup check is on.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	if req.ActorID == "" {
		return nil, eris.New("sourcing: actor id is required")
	}
	if req.Limit <= 0 {
		req.Limit = defaultItemLimit
	}
	log := r.log.With(zap.String("actor", req.ActorID))

	run, err := r.client.RunActor(ctx, req.ActorID, req.Input)
	if err != nil {
		return nil, eris.Wrap(err, "sourcing: run actor")
	}
	if !run.Succeeded() {
		return nil, eris.Wrapf(ErrRunFailed, "run %s finished %s", run.ID, run.Status)
	}

	items, err := r.client.DatasetItems(ctx, run.DefaultDatasetID, req.Limit)
	if err != nil {
		return nil, eris.Wrap(err, "sourcing: read dataset")
	}
	res := &Result{ActorID: req.ActorID, RunID: run.ID, Items: len(items)}
	log.Info("sourcing: actor finished", zap.String("run_id", run.ID), zap.Int("items", len(items)))

	raws := ToRawLeads(items)
	if len(raws) > 0 {
		ir, err := r.ingest.Ingest(ctx, raws, model.SourceScraper, req.CampaignTag, dedup.WithFirmCheck())
		if err != nil {
			return nil, eris.Wrap(err, "sourcing: ingest")
		}
		res.Ingested, res.Duplicates, res.Invalid = ir.Ingested, ir.Duplicates, ir.Invalid
	}

	if _, err := r.audit.AppendLog(ctx, model.LogScraperRun, res); err != nil {
		log.Warn("sourcing: append log failed", zap.Error(err))
	}
	return res, nil
}

// ToRawLeads maps dataset items to raw leads, dropping items that carry no
// usable field.
func ToRawLeads(items []apify.Item) []model.RawLead {
	out := make([]model.RawLead, 0, len(items))
	for _, it := range items {
		fields := it.Fields()
		if len(fields) == 0 {
			continue
		}
		out = append(out, model.RawLeadFromStrings(fields))
	}
	return out
}
