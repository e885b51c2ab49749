// Package crm mirrors leads into the sales team's CRM as contacts.
package crm

import (
	"context"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/pkg/hubspot"
	"github.com/sells-group/leadflow/pkg/salesforce"
)

// CRM upserts a contact keyed by email and returns its ID.
type CRM interface {
	UpsertContactByEmail(ctx context.Context, email string, props map[string]string) (string, error)
}

// Properties renders lead as HubSpot-style contact properties. Empty values
// are omitted so an upsert never blanks a field set elsewhere.
func Properties(lead *model.Lead) map[string]string {
	props := map[string]string{
		"email":               lead.Email,
		"firstname":           lead.FirstName,
		"lastname":            lead.LastName,
		"company":             lead.CompanyName,
		"jobtitle":            lead.RoleTitle,
		"gtm_source":          string(lead.Source),
		"gtm_campaign_tag":    lead.CampaignTag,
		"gtm_signal_type":     string(lead.SignalType),
		"gtm_signal_strength": string(lead.SignalStrength),
		"gtm_status":          string(lead.Status),
		// The campaign property carries the routing tier.
		"gtm_instantly_campaign": string(lead.Tier),
	}
	if lead.SignalSummary != nil {
		props["gtm_signal_summary"] = *lead.SignalSummary
	}
	if lead.Score != nil {
		props["gtm_lead_score"] = strconv.Itoa(*lead.Score)
	}
	if lead.EnrichedAt != nil {
		props["gtm_enriched_at"] = lead.EnrichedAt.UTC().Format(time.RFC3339)
	}
	for k, v := range props {
		if v == "" {
			delete(props, k)
		}
	}
	return props
}

// Nop discards upserts. It stands in when no CRM is configured.
type Nop struct{}

func (Nop) UpsertContactByEmail(context.Context, string, map[string]string) (string, error) {
	return "", nil
}

// HubSpot upserts contacts through the HubSpot CRM API.
type HubSpot struct {
	client hubspot.Client
}

// NewHubSpot wraps client.
func NewHubSpot(client hubspot.Client) *HubSpot {
	return &HubSpot{client: client}
}

func (h *HubSpot) UpsertContactByEmail(ctx context.Context, email string, props map[string]string) (string, error) {
	id, err := hubspot.UpsertContactByEmail(ctx, h.client, email, props)
	if err != nil {
		return "", eris.Wrap(err, "crm: hubspot upsert")
	}
	return id, nil
}

// Salesforce upserts Contact records.
type Salesforce struct {
	client salesforce.Client
}

// NewSalesforce wraps client.
func NewSalesforce(client salesforce.Client) *Salesforce {
	return &Salesforce{client: client}
}

// salesforceFields maps contact properties onto standard Contact fields.
// Pipeline properties without a standard home are dropped except the
// signal summary, which goes to Description.
var salesforceFields = map[string]string{
	"firstname":          "FirstName",
	"lastname":           "LastName",
	"jobtitle":           "Title",
	"gtm_signal_summary": "Description",
}

func (s *Salesforce) UpsertContactByEmail(ctx context.Context, email string, props map[string]string) (string, error) {
	fields := make(map[string]any, len(salesforceFields))
	for k, v := range props {
		if f, ok := salesforceFields[k]; ok && v != "" {
			fields[f] = v
		}
	}
	id, err := salesforce.UpsertContactByEmail(ctx, s.client, email, fields)
	if err != nil {
		return "", eris.Wrap(err, "crm: salesforce upsert")
	}
	return id, nil
}
