// Package notify sends team notifications to Slack.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/pkg/slack"
)

// Notifier delivers a message. Delivery is best effort: failures are
// logged by the implementation and never returned.
type Notifier interface {
	Send(ctx context.Context, msg slack.Message)
}

// Nop drops every message.
type Nop struct{}

func (Nop) Send(context.Context, slack.Message) {}

// Slack posts messages to an incoming webhook.
type Slack struct {
	hook    *slack.Webhook
	timeout time.Duration
}

// NewSlack creates a Slack notifier for webhookURL.
func NewSlack(webhookURL string) *Slack {
	return &Slack{hook: slack.NewWebhook(webhookURL), timeout: 10 * time.Second}
}

func (s *Slack) Send(ctx context.Context, msg slack.Message) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.hook.Post(ctx, msg); err != nil {
		zap.L().Error("notify: slack post failed", zap.String("text", msg.Text), zap.Error(err))
	}
}

var replyEmoji = map[model.Classification]string{
	model.ClassInterested:    ":fire:",
	model.ClassNotInterested: ":x:",
	model.ClassOOO:           ":palm_tree:",
	model.ClassBounce:        ":warning:",
	model.ClassReferral:      ":handshake:",
}

// ReplyEmoji returns the emoji shown for a classification.
func ReplyEmoji(c model.Classification) string {
	if e, ok := replyEmoji[c]; ok {
		return e
	}
	return ":speech_balloon:"
}

// NewReply builds the alert for a classified reply. company may be empty.
// The booking link is added for interested replies when calendlyURL is set.
func NewReply(r *model.Reply, company, calendlyURL string) slack.Message {
	emoji := ReplyEmoji(r.Classification)
	if company == "" {
		company = "Unknown"
	}

	head := fmt.Sprintf("%s *New Reply: %s*\n*From:* %s (%s)\n*Sentiment:* %s\n*Summary:* %s",
		emoji, strings.ToUpper(string(r.Classification)), r.Email, company, r.Sentiment, r.Summary)
	blocks := []slack.Block{slack.Section(head)}

	if (r.SuggestedMacro != "" && r.SuggestedMacro != model.MacroNone) || r.SuggestedAction != "" {
		blocks = append(blocks, slack.Section(fmt.Sprintf("*Macro:* %s\n*Next step:* %s", r.SuggestedMacro, r.SuggestedAction)))
	}
	if r.DraftResponse != "" {
		blocks = append(blocks, slack.Section("*Suggested Response:*\n>"+r.DraftResponse))
	}
	if r.Classification == model.ClassInterested && calendlyURL != "" {
		blocks = append(blocks, slack.Section(fmt.Sprintf(":calendar: <%s|Book a call>", calendlyURL)))
	}

	return slack.Message{
		Text:   fmt.Sprintf("%s New reply from %s", emoji, r.Email),
		Blocks: blocks,
	}
}

// Cleanup summarizes a cleanup run.
func Cleanup(deleted, campaigns int) slack.Message {
	return slack.Message{Text: fmt.Sprintf(
		":broom: Weekly Cleanup Complete\nDeleted %d stale leads across %d campaigns", deleted, campaigns)}
}

// PipelineStats are the headline numbers of the weekly report.
type PipelineStats struct {
	Ingested  int
	Enriched  int
	Emailed   int
	Replied   int
	Booked    int
	Failed    int
	ReplyRate float64
}

// Dashboard renders the weekly pipeline report.
func Dashboard(s PipelineStats) slack.Message {
	var b strings.Builder
	b.WriteString(":bar_chart: Weekly Pipeline Report\n")
	fmt.Fprintf(&b, "• Ingested: %d\n", s.Ingested)
	fmt.Fprintf(&b, "• Enriched: %d\n", s.Enriched)
	fmt.Fprintf(&b, "• Emailed: %d\n", s.Emailed)
	fmt.Fprintf(&b, "• Replied: %d (%.1f%%)\n", s.Replied, s.ReplyRate*100)
	fmt.Fprintf(&b, "• Booked: %d", s.Booked)
	if s.Failed > 0 {
		fmt.Fprintf(&b, "\n• Enrichment failed: %d", s.Failed)
	}
	return slack.Message{Text: b.String()}
}

// Alert renders a health alert.
func Alert(severity, message string) slack.Message {
	return slack.Message{Text: fmt.Sprintf(":rotating_light: [%s] %s", strings.ToUpper(severity), message)}
}
