package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadflow/internal/model"
)

const leadColumns = `id, email, first_name, last_name, company_name, company_domain, role_title, linkedin_url,
	source, campaign_tag, status, enrichment_error, signal_type, signal_strength, signal_summary,
	company_description, detected_industry, email_guessed, enriched_at, score, tier,
	instantly_campaign_id, hubspot_contact_id, last_reply, created_at, updated_at`

const replyColumns = `id, lead_id, email, reply_text, campaign_id, classification, sentiment, summary,
	suggested_macro, suggested_action, draft_response, handled, created_at`

const defaultLimit = 100

// placeholder renders the nth (1-based) bind parameter for a dialect.
type placeholder func(n int) string

func sqlitePlaceholder(int) string { return "?" }

func postgresPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }

// whereBuilder accumulates AND-ed equality conditions.
type whereBuilder struct {
	ph    placeholder
	conds []string
	args  []any
}

func (w *whereBuilder) eq(column string, value any) {
	w.args = append(w.args, value)
	w.conds = append(w.conds, fmt.Sprintf("%s = %s", column, w.ph(len(w.args))))
}

func (w *whereBuilder) sql() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// page appends LIMIT/OFFSET binds.
func (w *whereBuilder) page(limit, offset int) string {
	if limit <= 0 {
		limit = defaultLimit
	}
	w.args = append(w.args, limit)
	s := fmt.Sprintf(" LIMIT %s", w.ph(len(w.args)))
	if offset > 0 {
		w.args = append(w.args, offset)
		s += fmt.Sprintf(" OFFSET %s", w.ph(len(w.args)))
	}
	return s
}

func leadWhere(ph placeholder, f LeadFilter) *whereBuilder {
	w := &whereBuilder{ph: ph}
	if f.Status != "" {
		w.eq("status", string(f.Status))
	}
	if f.Tier != "" {
		w.eq("tier", string(f.Tier))
	}
	if f.Email != "" {
		w.eq("email", normalizeEmail(f.Email))
	}
	if f.CompanyName != "" {
		w.eq("company_name", f.CompanyName)
	}
	if f.Source != "" {
		w.eq("source", string(f.Source))
	}
	return w
}

func leadOrder(f LeadFilter) string {
	if f.Oldest {
		return " ORDER BY created_at ASC"
	}
	return " ORDER BY created_at DESC"
}

func replyWhere(ph placeholder, f ReplyFilter) *whereBuilder {
	w := &whereBuilder{ph: ph}
	if f.Classification != "" {
		w.eq("classification", string(f.Classification))
	}
	if f.Email != "" {
		w.eq("email", normalizeEmail(f.Email))
	}
	if f.Handled != nil {
		w.eq("handled", *f.Handled)
	}
	return w
}

// patchSet renders the SET clause for a partial lead update. updated_at is
// always written. The returned args end with the bind for the id.
func patchSet(ph placeholder, p model.LeadPatch, id string, now time.Time) (string, []any) {
	var sets []string
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = %s", col, ph(len(args))))
	}

	if p.Email != nil {
		add("email", normalizeEmail(*p.Email))
	}
	if p.EmailGuessed != nil {
		add("email_guessed", *p.EmailGuessed)
	}
	if p.Status != nil {
		add("status", string(*p.Status))
	}
	if p.EnrichmentError != nil {
		add("enrichment_error", *p.EnrichmentError)
	}
	if p.SignalType != nil {
		add("signal_type", string(*p.SignalType))
	}
	if p.SignalStrength != nil {
		add("signal_strength", string(*p.SignalStrength))
	}
	if p.SignalSummary != nil {
		add("signal_summary", *p.SignalSummary)
	}
	if p.CompanyDescription != nil {
		add("company_description", *p.CompanyDescription)
	}
	if p.DetectedIndustry != nil {
		add("detected_industry", *p.DetectedIndustry)
	}
	if p.EnrichedAt != nil {
		add("enriched_at", p.EnrichedAt.UTC())
	}
	if p.Score != nil {
		add("score", *p.Score)
	}
	if p.Tier != nil {
		add("tier", string(*p.Tier))
	}
	if p.InstantlyCampaign != nil {
		add("instantly_campaign_id", *p.InstantlyCampaign)
	}
	if p.HubSpotContactID != nil {
		add("hubspot_contact_id", *p.HubSpotContactID)
	}
	if p.LastReply != nil {
		add("last_reply", string(*p.LastReply))
	}
	add("updated_at", now)

	args = append(args, id)
	return fmt.Sprintf("UPDATE leads SET %s WHERE id = %s", strings.Join(sets, ", "), ph(len(args))), args
}

// leadArgs returns insert binds in leadColumns order.
func leadArgs(l *model.Lead) []any {
	var score any
	if l.Score != nil {
		score = *l.Score
	}
	var enrichedAt any
	if l.EnrichedAt != nil {
		enrichedAt = l.EnrichedAt.UTC()
	}
	return []any{
		l.ID, normalizeEmail(l.Email), l.FirstName, l.LastName, l.CompanyName, l.CompanyDomain,
		l.RoleTitle, l.LinkedInURL, string(l.Source), l.CampaignTag, string(l.Status),
		l.EnrichmentError, string(l.SignalType), string(l.SignalStrength),
		nullable(l.SignalSummary), nullable(l.CompanyDescription), nullable(l.DetectedIndustry),
		l.EmailGuessed, enrichedAt, score, string(l.Tier),
		l.InstantlyCampaignID, l.HubSpotContactID, string(l.LastReply),
		l.CreatedAt.UTC(), l.UpdatedAt.UTC(),
	}
}

func placeholders(ph placeholder, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = ph(i + 1)
	}
	return strings.Join(parts, ", ")
}

func nullable(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func marshalLogData(data any) ([]byte, error) {
	if data == nil {
		return []byte("{}"), nil
	}
	if raw, ok := data.(json.RawMessage); ok {
		return raw, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal log data")
	}
	return b, nil
}
