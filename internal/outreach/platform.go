// Package outreach pushes scored leads into email campaigns and removes
// them again when they reply negatively or go stale.
package outreach

import (
	"context"

	"github.com/sells-group/leadflow/internal/model"
)

// Platform is an outreach provider.
type Platform interface {
	AddToCampaign(ctx context.Context, campaignID string, leads []model.Lead) (*AddResult, error)
	RemoveLeads(ctx context.Context, emails []string, campaignID string) (int, error)
	ListCampaigns(ctx context.Context) ([]Campaign, error)
	ListCampaignLeads(ctx context.Context, campaignID string, q LeadQuery) ([]CampaignLead, error)
}

// AddResult summarizes one campaign upload.
type AddResult struct {
	Uploaded          int `json:"uploaded"`
	AlreadyInCampaign int `json:"already_in_campaign"`
	InvalidEmails     int `json:"invalid_emails"`
}

// Campaign is a provider campaign.
type Campaign struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CampaignLead is a lead as the provider tracks it. Status is the
// provider-side label, e.g. "Meeting Booked".
type CampaignLead struct {
	Email      string `json:"email"`
	Status     string `json:"status"`
	ReplyCount int    `json:"reply_count"`
}

// LeadQuery filters ListCampaignLeads.
type LeadQuery struct {
	Status string
	Limit  int
}

// NopPlatform accepts nothing and lists nothing. It stands in when no
// outreach provider is configured.
type NopPlatform struct{}

func (NopPlatform) AddToCampaign(context.Context, string, []model.Lead) (*AddResult, error) {
	return &AddResult{}, nil
}

func (NopPlatform) RemoveLeads(context.Context, []string, string) (int, error) { return 0, nil }

func (NopPlatform) ListCampaigns(context.Context) ([]Campaign, error) { return nil, nil }

func (NopPlatform) ListCampaignLeads(context.Context, string, LeadQuery) ([]CampaignLead, error) {
	return nil, nil
}
