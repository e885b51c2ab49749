package model

import "time"

// Source identifies where a lead entered the pipeline.
type Source string

const (
	SourceManual  Source = "manual"
	SourceCSV     Source = "csv"
	SourceWebhook Source = "webhook"
	SourceScraper Source = "scraper"
	SourceAPI     Source = "api"
	SourceNotion  Source = "notion"
)

// ParseSource maps a free-form source string to a Source, returning ok=false
// for values outside the known set.
func ParseSource(s string) (Source, bool) {
	switch src := Source(s); src {
	case SourceManual, SourceCSV, SourceWebhook, SourceScraper, SourceAPI, SourceNotion:
		return src, true
	default:
		return "", false
	}
}

// Tier is the outreach routing bucket derived from a lead's score.
type Tier string

const (
	TierPriority     Tier = "priority"
	TierStandard     Tier = "standard"
	TierNurture      Tier = "nurture"
	TierManualReview Tier = "manual_review"
)

// SignalType is the closed set of intent signals the oracle may report.
type SignalType string

const (
	SignalFundingGrowth    SignalType = "funding_growth"
	SignalHiringComms      SignalType = "hiring_comms"
	SignalCompetitorPR     SignalType = "competitor_pr"
	SignalLeadershipChange SignalType = "leadership_change"
	SignalProductLaunch    SignalType = "product_launch"
	SignalNegativePress    SignalType = "negative_press"
	SignalActiveAdSpend    SignalType = "active_ad_spend"
	SignalIndustryEvent    SignalType = "industry_event"
	SignalContentGap       SignalType = "content_gap"
	SignalNone             SignalType = "no_signal"
)

// SignalTypes lists every valid signal type in prompt order.
var SignalTypes = []SignalType{
	SignalFundingGrowth, SignalHiringComms, SignalCompetitorPR, SignalLeadershipChange,
	SignalProductLaunch, SignalNegativePress, SignalActiveAdSpend, SignalIndustryEvent,
	SignalContentGap, SignalNone,
}

// ParseSignalType returns the matching SignalType or SignalNone.
func ParseSignalType(s string) SignalType {
	for _, st := range SignalTypes {
		if string(st) == s {
			return st
		}
	}
	return SignalNone
}

// Strength grades how actionable a signal is.
type Strength string

const (
	StrengthHot  Strength = "hot"
	StrengthWarm Strength = "warm"
	StrengthCold Strength = "cold"
)

// ParseStrength returns the matching Strength or StrengthCold.
func ParseStrength(s string) Strength {
	switch st := Strength(s); st {
	case StrengthHot, StrengthWarm, StrengthCold:
		return st
	default:
		return StrengthCold
	}
}

// Lead is a prospect tracked through the pipeline.
type Lead struct {
	ID    string `json:"id"`
	Email string `json:"email"`

	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	CompanyName   string `json:"company_name"`
	CompanyDomain string `json:"company_domain"`
	RoleTitle     string `json:"role_title"`
	LinkedInURL   string `json:"linkedin_url"`

	Source      Source `json:"source"`
	CampaignTag string `json:"campaign_tag"`

	Status          LeadStatus `json:"status"`
	EnrichmentError string     `json:"enrichment_error,omitempty"`

	SignalType         SignalType `json:"signal_type,omitempty"`
	SignalStrength     Strength   `json:"signal_strength,omitempty"`
	SignalSummary      *string    `json:"signal_summary"`
	CompanyDescription *string    `json:"company_description"`
	DetectedIndustry   *string    `json:"detected_industry"`
	EmailGuessed       bool       `json:"email_guessed"`
	EnrichedAt         *time.Time `json:"enriched_at,omitempty"`

	Score *int `json:"score"`
	Tier  Tier `json:"tier,omitempty"`

	InstantlyCampaignID string         `json:"instantly_campaign_id,omitempty"`
	HubSpotContactID    string         `json:"hubspot_contact_id,omitempty"`
	LastReply           Classification `json:"last_reply,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasEmail reports whether the lead carries a non-empty email.
func (l *Lead) HasEmail() bool {
	return l.Email != ""
}

// LeadPatch is a partial update. Nil fields are left untouched.
type LeadPatch struct {
	Email              *string
	EmailGuessed       *bool
	Status             *LeadStatus
	EnrichmentError    *string
	SignalType         *SignalType
	SignalStrength     *Strength
	SignalSummary      *string
	CompanyDescription *string
	DetectedIndustry   *string
	EnrichedAt         *time.Time
	Score              *int
	Tier               *Tier
	InstantlyCampaign  *string
	HubSpotContactID   *string
	LastReply          *Classification
}

// Empty reports whether the patch would change nothing.
func (p LeadPatch) Empty() bool {
	return p.Email == nil && p.EmailGuessed == nil && p.Status == nil &&
		p.EnrichmentError == nil && p.SignalType == nil && p.SignalStrength == nil &&
		p.SignalSummary == nil && p.CompanyDescription == nil && p.DetectedIndustry == nil &&
		p.EnrichedAt == nil && p.Score == nil && p.Tier == nil &&
		p.InstantlyCampaign == nil && p.HubSpotContactID == nil && p.LastReply == nil
}

// Apply copies the non-nil patch fields onto l.
func (p LeadPatch) Apply(l *Lead) {
	if p.Email != nil {
		l.Email = *p.Email
	}
	if p.EmailGuessed != nil {
		l.EmailGuessed = *p.EmailGuessed
	}
	if p.Status != nil {
		l.Status = *p.Status
	}
	if p.EnrichmentError != nil {
		l.EnrichmentError = *p.EnrichmentError
	}
	if p.SignalType != nil {
		l.SignalType = *p.SignalType
	}
	if p.SignalStrength != nil {
		l.SignalStrength = *p.SignalStrength
	}
	if p.SignalSummary != nil {
		l.SignalSummary = p.SignalSummary
	}
	if p.CompanyDescription != nil {
		l.CompanyDescription = p.CompanyDescription
	}
	if p.DetectedIndustry != nil {
		l.DetectedIndustry = p.DetectedIndustry
	}
	if p.EnrichedAt != nil {
		l.EnrichedAt = p.EnrichedAt
	}
	if p.Score != nil {
		l.Score = p.Score
	}
	if p.Tier != nil {
		l.Tier = *p.Tier
	}
	if p.InstantlyCampaign != nil {
		l.InstantlyCampaignID = *p.InstantlyCampaign
	}
	if p.HubSpotContactID != nil {
		l.HubSpotContactID = *p.HubSpotContactID
	}
	if p.LastReply != nil {
		l.LastReply = *p.LastReply
	}
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
