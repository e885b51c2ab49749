// Package effect describes the side effects pipeline steps request and
// runs them after the step's own writes are persisted.
package effect

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/leadflow/internal/crm"
	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/internal/notify"
	"github.com/sells-group/leadflow/pkg/slack"
)

// Effect is a side effect descriptor.
type Effect interface {
	Kind() string
}

// RemoveFromOutreach removes an address from a campaign, or from every
// campaign when CampaignID is empty.
type RemoveFromOutreach struct {
	Email      string
	CampaignID string
}

func (RemoveFromOutreach) Kind() string { return "remove_from_outreach" }

// CRMUpsert mirrors a lead into the CRM. The returned contact ID is stored
// on the lead.
type CRMUpsert struct {
	LeadID string
	Email  string
	Props  map[string]string
}

func (CRMUpsert) Kind() string { return "crm_upsert" }

// UpsertLead builds a CRMUpsert from the lead's current state.
func UpsertLead(lead *model.Lead) CRMUpsert {
	return CRMUpsert{LeadID: lead.ID, Email: lead.Email, Props: crm.Properties(lead)}
}

// Notify posts a team notification.
type Notify struct {
	Message slack.Message
}

func (Notify) Kind() string { return "notify" }

// Remover removes addresses from outreach campaigns.
type Remover interface {
	Remove(ctx context.Context, emails []string, campaignID string) (int, error)
}

// LeadUpdater persists a partial lead update.
type LeadUpdater interface {
	UpdateLead(ctx context.Context, id string, patch model.LeadPatch) error
}

// Dispatcher executes effects. Failures are logged and never returned, so
// a failed notification cannot undo a persisted reply or enrichment.
type Dispatcher struct {
	remover  Remover
	crm      crm.CRM
	notifier notify.Notifier
	leads    LeadUpdater
	log      *zap.Logger
}

// NewDispatcher creates a Dispatcher. Nil collaborators are replaced with
// no-ops.
func NewDispatcher(remover Remover, c crm.CRM, n notify.Notifier, leads LeadUpdater) *Dispatcher {
	if c == nil {
		c = crm.Nop{}
	}
	if n == nil {
		n = notify.Nop{}
	}
	return &Dispatcher{
		remover:  remover,
		crm:      c,
		notifier: n,
		leads:    leads,
		log:      zap.L().With(zap.String("component", "effect")),
	}
}

// Run executes effects in order and returns how many succeeded.
func (d *Dispatcher) Run(ctx context.Context, effects ...Effect) int {
	ok := 0
	for _, e := range effects {
		if err := d.run(ctx, e); err != nil {
			d.log.Warn("effect: failed", zap.String("kind", e.Kind()), zap.Error(err))
			continue
		}
		ok++
	}
	return ok
}

func (d *Dispatcher) run(ctx context.Context, e Effect) error {
	switch e := e.(type) {
	case RemoveFromOutreach:
		if d.remover == nil || e.Email == "" {
			return nil
		}
		_, err := d.remover.Remove(ctx, []string{e.Email}, e.CampaignID)
		return err

	case CRMUpsert:
		if e.Email == "" {
			return nil
		}
		id, err := d.crm.UpsertContactByEmail(ctx, e.Email, e.Props)
		if err != nil {
			return err
		}
		if id == "" || e.LeadID == "" || d.leads == nil {
			return nil
		}
		return d.leads.UpdateLead(ctx, e.LeadID, model.LeadPatch{HubSpotContactID: &id})

	case Notify:
		d.notifier.Send(ctx, e.Message)
		return nil
	}
	d.log.Warn("effect: unknown kind", zap.String("kind", e.Kind()))
	return nil
}
