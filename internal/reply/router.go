// Package reply classifies inbound replies and routes their consequences.
package reply

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadflow/internal/effect"
	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/internal/notify"
	"github.com/sells-group/leadflow/internal/oracle"
	"github.com/sells-group/leadflow/internal/store"
)

// ErrInvalidReply is returned when the email or reply text is missing.
var ErrInvalidReply = eris.New("reply: email and reply_text are required")

// Inbound is a reply as delivered by the outreach webhook.
type Inbound struct {
	Email       string `json:"email"`
	ReplyText   string `json:"reply_text"`
	CampaignID  string `json:"campaign_id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	CompanyName string `json:"company_name"`
}

// Outcome reports what Handle did.
type Outcome struct {
	Reply      *model.Reply     `json:"reply"`
	LeadID     string           `json:"lead_id,omitempty"`
	LeadStatus model.LeadStatus `json:"lead_status,omitempty"`
	Effects    []string         `json:"effects"`
}

// Router handles inbound replies.
type Router struct {
	store       store.Store
	oracle      oracle.Oracle
	effects     *effect.Dispatcher
	calendlyURL string
	log         *zap.Logger
}

// NewRouter creates a Router. A nil oracle classifies every reply with the
// fallback answer; a nil dispatcher drops effects.
func NewRouter(st store.Store, orc oracle.Oracle, effects *effect.Dispatcher, calendlyURL string) *Router {
	return &Router{
		store:       st,
		oracle:      orc,
		effects:     effects,
		calendlyURL: calendlyURL,
		log:         zap.L().With(zap.String("component", "reply")),
	}
}

// statusFor maps a classification to the lead status it implies. ok is
// false when the lead's status should not change.
func statusFor(c model.Classification) (model.LeadStatus, bool) {
	switch c {
	case model.ClassNotInterested, model.ClassBounce:
		return model.StatusDead, true
	case model.ClassOOO:
		return "", false
	default:
		return model.StatusReplied, true
	}
}

// Handle classifies in, stores it, updates the matching lead and runs the
// resulting effects. The reply is stored even when no lead matches and
// even when classification fails. Deliveries are not deduplicated.
func (r *Router) Handle(ctx context.Context, in Inbound) (*Outcome, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || strings.TrimSpace(in.ReplyText) == "" {
		return nil, ErrInvalidReply
	}
	log := r.log.With(zap.String("email", email))

	lead, err := r.store.FindLeadByEmail(ctx, email)
	if err != nil {
		log.Warn("reply: lead lookup failed, continuing unmatched", zap.Error(err))
		lead = nil
	}

	ans := r.classify(ctx, in, lead, log)
	rep := &model.Reply{
		ID:              uuid.New().String(),
		Email:           email,
		ReplyText:       in.ReplyText,
		CampaignID:      in.CampaignID,
		Classification:  model.ParseClassification(strings.ToLower(strings.TrimSpace(ans.Classification))),
		Sentiment:       model.ParseSentiment(strings.ToLower(strings.TrimSpace(ans.Sentiment))),
		Summary:         ans.Summary,
		SuggestedMacro:  model.ParseMacro(strings.ToUpper(strings.TrimSpace(ans.SuggestedMacro))),
		SuggestedAction: ans.SuggestedAction,
		DraftResponse:   ans.DraftResponse,
		CreatedAt:       time.Now().UTC(),
	}
	if lead != nil {
		rep.LeadID = &lead.ID
	}
	if err := r.store.InsertReply(ctx, rep); err != nil {
		return nil, eris.Wrap(err, "reply: persist")
	}

	out := &Outcome{Reply: rep}
	if lead != nil {
		out.LeadID = lead.ID
		r.route(ctx, lead, rep.Classification, log)
		out.LeadStatus = lead.Status
	}

	effects := r.effectsFor(rep, lead, in)
	for _, e := range effects {
		out.Effects = append(out.Effects, e.Kind())
	}
	if r.effects != nil && len(effects) > 0 {
		r.effects.Run(ctx, effects...)
	}

	var leadID any
	if lead != nil {
		leadID = lead.ID
	}
	if _, err := r.store.AppendLog(ctx, model.LogReply, map[string]any{
		"email":          email,
		"classification": rep.Classification,
		"sentiment":      rep.Sentiment,
		"lead_id":        leadID,
	}); err != nil {
		log.Warn("reply: append log failed", zap.Error(err))
	}

	log.Info("reply: handled",
		zap.String("classification", string(rep.Classification)),
		zap.Bool("matched", lead != nil),
		zap.Strings("effects", out.Effects),
	)
	return out, nil
}

func (r *Router) classify(ctx context.Context, in Inbound, lead *model.Lead, log *zap.Logger) answer {
	if r.oracle == nil {
		return fallbackAnswer()
	}
	rc := replyContext{
		Name:    strings.TrimSpace(in.FirstName + " " + in.LastName),
		Company: in.CompanyName,
	}
	if lead != nil {
		if name := strings.TrimSpace(lead.FirstName + " " + lead.LastName); name != "" {
			rc.Name = name
		}
		if lead.CompanyName != "" {
			rc.Company = lead.CompanyName
		}
		rc.Role = lead.RoleTitle
		if lead.SignalSummary != nil {
			rc.Signal = *lead.SignalSummary
		}
	}

	var ans answer
	if err := r.oracle.Complete(ctx, buildPrompt(in.ReplyText, rc), &ans); err != nil {
		log.Warn("reply: classification failed", zap.Error(err))
		return fallbackAnswer()
	}
	return ans
}

// route records the classification on the lead and moves its status. An
// illegal move (for example dead -> replied) is logged and skipped; the
// classification is still recorded.
func (r *Router) route(ctx context.Context, lead *model.Lead, c model.Classification, log *zap.Logger) {
	patch := model.LeadPatch{LastReply: &c}
	if to, ok := statusFor(c); ok {
		if err := model.Transition(lead.Status, to); err != nil {
			log.Warn("reply: status change skipped", zap.String("lead_id", lead.ID), zap.Error(err))
		} else {
			patch.Status = &to
		}
	}
	if err := r.store.UpdateLead(ctx, lead.ID, patch); err != nil {
		log.Error("reply: update lead failed", zap.String("lead_id", lead.ID), zap.Error(err))
		return
	}
	patch.Apply(lead)
}

func (r *Router) effectsFor(rep *model.Reply, lead *model.Lead, in Inbound) []effect.Effect {
	var out []effect.Effect
	c := rep.Classification

	// A dead lead leaves every campaign, not only the one it replied to.
	if c == model.ClassNotInterested || c == model.ClassBounce {
		out = append(out, effect.RemoveFromOutreach{Email: rep.Email})
	}
	if lead != nil {
		out = append(out, effect.UpsertLead(lead))
	}
	if c != model.ClassOOO && c != model.ClassBounce {
		company := in.CompanyName
		if lead != nil && lead.CompanyName != "" {
			company = lead.CompanyName
		}
		out = append(out, effect.Notify{Message: notify.NewReply(rep, company, r.calendlyURL)})
	}
	return out
}
