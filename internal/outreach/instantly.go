package outreach

import (
	"context"

	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/pkg/instantly"
)

// Instantly adapts an Instantly client to Platform.
type Instantly struct {
	client instantly.Client
}

// NewInstantly wraps client.
func NewInstantly(client instantly.Client) *Instantly {
	return &Instantly{client: client}
}

func (p *Instantly) AddToCampaign(ctx context.Context, campaignID string, leads []model.Lead) (*AddResult, error) {
	batch := make([]instantly.Lead, len(leads))
	for i := range leads {
		batch[i] = toInstantlyLead(&leads[i])
	}
	res, err := p.client.AddLeads(ctx, campaignID, batch)
	if err != nil {
		return nil, err
	}
	return &AddResult{
		Uploaded:          res.Uploaded,
		AlreadyInCampaign: res.AlreadyInCampaign,
		InvalidEmails:     res.InvalidEmails,
	}, nil
}

func (p *Instantly) RemoveLeads(ctx context.Context, emails []string, campaignID string) (int, error) {
	return p.client.DeleteLeads(ctx, emails, campaignID)
}

func (p *Instantly) ListCampaigns(ctx context.Context) ([]Campaign, error) {
	cs, err := p.client.ListCampaigns(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Campaign, len(cs))
	for i, c := range cs {
		out[i] = Campaign{ID: c.ID, Name: c.Name}
	}
	return out, nil
}

func (p *Instantly) ListCampaignLeads(ctx context.Context, campaignID string, q LeadQuery) ([]CampaignLead, error) {
	ls, err := p.client.ListLeads(ctx, campaignID, instantly.LeadQuery{Status: q.Status, Limit: q.Limit})
	if err != nil {
		return nil, err
	}
	out := make([]CampaignLead, len(ls))
	for i, l := range ls {
		replies := l.ReplyCount
		if replies == 0 && l.HasReplied() {
			replies = 1
		}
		out[i] = CampaignLead{Email: l.Email, Status: l.Status, ReplyCount: replies}
	}
	return out, nil
}

// toInstantlyLead fills the personalization variables the sequences use.
func toInstantlyLead(l *model.Lead) instantly.Lead {
	return instantly.Lead{
		Email:       l.Email,
		FirstName:   l.FirstName,
		LastName:    l.LastName,
		CompanyName: l.CompanyName,
		CustomVariables: map[string]string{
			"companyName":        l.CompanyName,
			"firstName":          l.FirstName,
			"industry":           deref(l.DetectedIndustry),
			"signal":             deref(l.SignalSummary),
			"signalType":         string(l.SignalType),
			"companyDescription": deref(l.CompanyDescription),
		},
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
