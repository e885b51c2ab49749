// Package cleanup removes stale leads from outreach campaigns.
package cleanup

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadflow/internal/config"
	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/internal/notify"
	"github.com/sells-group/leadflow/internal/outreach"
)

// completedStatus selects leads whose sequence has finished.
const completedStatus = "completed"

// Remover deletes addresses from a campaign.
type Remover interface {
	Remove(ctx context.Context, emails []string, campaignID string) (int, error)
}

// Logger appends an audit entry.
type Logger interface {
	AppendLog(ctx context.Context, typ model.LogType, data any) (*model.LogEntry, error)
}

// Result summarizes a cleanup run.
type Result struct {
	TotalDeleted      int      `json:"total_deleted"`
	CampaignsAffected int      `json:"campaigns_affected"`
	Errors            []string `json:"errors"`
}

// Policy decides which campaign leads are stale and removes them.
type Policy struct {
	platform outreach.Platform
	remover  Remover
	audit    Logger
	notifier notify.Notifier
	cfg      config.CleanupConfig
	log      *zap.Logger
}

// New creates a Policy. Removal goes through remover so it shares the
// outreach retry policy.
func New(platform outreach.Platform, remover Remover, audit Logger, n notify.Notifier, cfg config.CleanupConfig) *Policy {
	if n == nil {
		n = notify.Nop{}
	}
	if cfg.MaxDeletions <= 0 {
		cfg.MaxDeletions = 500
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 500
	}
	if len(cfg.ProtectedStatuses) == 0 {
		cfg.ProtectedStatuses = append([]string(nil), config.DefaultProtectedStatuses...)
	}
	return &Policy{
		platform: platform,
		remover:  remover,
		audit:    audit,
		notifier: n,
		cfg:      cfg,
		log:      zap.L().With(zap.String("component", "cleanup")),
	}
}

// Run deletes completed, never-replied leads that are not in a protected
// status, at most maxDeletions in total (<= 0 uses the configured cap).
// A failing campaign is logged and recorded; the run continues.
func (p *Policy) Run(ctx context.Context, maxDeletions int) (*Result, error) {
	if maxDeletions <= 0 {
		maxDeletions = p.cfg.MaxDeletions
	}
	campaigns, err := p.platform.ListCampaigns(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "cleanup: list campaigns")
	}
	res := &Result{Errors: []string{}}
	if len(campaigns) == 0 {
		p.log.Info("cleanup: no campaigns found")
		return res, nil
	}

	for _, c := range campaigns {
		remaining := maxDeletions - res.TotalDeleted
		if remaining <= 0 || ctx.Err() != nil {
			break
		}
		n, err := p.cleanCampaign(ctx, c, remaining)
		if err != nil {
			p.log.Error("cleanup: campaign failed", zap.String("campaign_id", c.ID), zap.Error(err))
			res.Errors = append(res.Errors, c.ID+": "+err.Error())
			continue
		}
		if n > 0 {
			res.TotalDeleted += n
			res.CampaignsAffected++
			p.log.Info("cleanup: removed stale leads",
				zap.String("campaign", campaignLabel(c)),
				zap.Int("deleted", n),
			)
		}
	}

	if _, err := p.audit.AppendLog(ctx, model.LogCleanup, res); err != nil {
		p.log.Warn("cleanup: append log failed", zap.Error(err))
	}
	p.notifier.Send(ctx, notify.Cleanup(res.TotalDeleted, res.CampaignsAffected))

	p.log.Info("cleanup: done",
		zap.Int("total_deleted", res.TotalDeleted),
		zap.Int("campaigns_affected", res.CampaignsAffected),
	)
	return res, nil
}

func (p *Policy) cleanCampaign(ctx context.Context, c outreach.Campaign, remaining int) (int, error) {
	leads, err := p.platform.ListCampaignLeads(ctx, c.ID, outreach.LeadQuery{Status: completedStatus, Limit: p.cfg.PageSize})
	if err != nil {
		return 0, eris.Wrap(err, "list leads")
	}
	stale := Stale(leads, p.cfg.ProtectedStatuses, remaining)
	if len(stale) == 0 {
		return 0, nil
	}
	if _, err := p.remover.Remove(ctx, stale, c.ID); err != nil {
		return 0, err
	}
	return len(stale), nil
}

// Stale returns up to limit emails of leads that never replied and whose
// status is not protected. Protected statuses compare case-insensitively.
func Stale(leads []outreach.CampaignLead, protected []string, limit int) []string {
	var out []string
	for _, l := range leads {
		if len(out) >= limit {
			break
		}
		if l.ReplyCount > 0 || l.Email == "" || isProtected(l.Status, protected) {
			continue
		}
		out = append(out, l.Email)
	}
	return out
}

func isProtected(status string, protected []string) bool {
	for _, p := range protected {
		if strings.EqualFold(strings.TrimSpace(status), p) {
			return true
		}
	}
	return false
}

func campaignLabel(c outreach.Campaign) string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}
