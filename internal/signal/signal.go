// Package signal builds the intent-signal prompt and interprets the
// oracle's answer.
package signal

import (
	"fmt"
	"strings"

	"github.com/sells-group/leadflow/internal/model"
)

// Result is the JSON object the oracle is asked to return.
type Result struct {
	SignalType         string `json:"intent_signal_type"`
	SignalSummary      string `json:"intent_signal_summary"`
	SignalStrength     string `json:"signal_strength"`
	CompanyDescription string `json:"company_description"`
	DetectedIndustry   string `json:"detected_industry"`
}

// Fallback is used when the oracle is unavailable or fails.
func Fallback() Result {
	return Result{SignalType: string(model.SignalNone), SignalStrength: string(model.StrengthCold)}
}

// Type returns the validated signal type; unknown values become no_signal.
func (r Result) Type() model.SignalType {
	return model.ParseSignalType(strings.ToLower(strings.TrimSpace(r.SignalType)))
}

// Strength returns the validated strength. A missing strength is cold; an
// unrecognised one is stored as warm, which scores with the neutral 1.0
// multiplier.
func (r Result) Strength() model.Strength {
	s := strings.ToLower(strings.TrimSpace(r.SignalStrength))
	switch s {
	case "":
		return model.StrengthCold
	case string(model.StrengthHot), string(model.StrengthWarm), string(model.StrengthCold):
		return model.Strength(s)
	default:
		return model.StrengthWarm
	}
}

// Input is the research gathered for one lead.
type Input struct {
	CompanyName   string
	CompanyDomain string
	RoleTitle     string
	WebsiteText   string
	NewsText      string
}

// HasResearch reports whether there is any text for the oracle to read.
func (in Input) HasResearch() bool {
	return strings.TrimSpace(in.WebsiteText) != "" || strings.TrimSpace(in.NewsText) != ""
}

// System is the fixed system prompt; it is sent as a cacheable block.
const System = `You are a B2B sales research analyst. You read a company's website and recent news and identify the single strongest buying signal for outbound outreach. Respond with a JSON object only, no prose and no code fences.`

// Prompt renders the user prompt for in.
func Prompt(in Input) string {
	types := make([]string, len(model.SignalTypes))
	for i, t := range model.SignalTypes {
		types[i] = string(t)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Company: %s\n", orUnknown(in.CompanyName))
	fmt.Fprintf(&b, "Domain: %s\n", orUnknown(in.CompanyDomain))
	if in.RoleTitle != "" {
		fmt.Fprintf(&b, "Contact role: %s\n", in.RoleTitle)
	}
	if in.WebsiteText != "" {
		fmt.Fprintf(&b, "\n<website>\n%s\n</website>\n", in.WebsiteText)
	}
	if in.NewsText != "" {
		fmt.Fprintf(&b, "\n<news>\n%s\n</news>\n", in.NewsText)
	}
	b.WriteString("\nReturn JSON with these keys:\n")
	fmt.Fprintf(&b, "- intent_signal_type: one of %s\n", strings.Join(types, ", "))
	b.WriteString("- intent_signal_summary: one sentence naming the evidence\n")
	b.WriteString("- signal_strength: hot, warm or cold\n")
	b.WriteString("- company_description: one sentence on what the company does\n")
	b.WriteString("- detected_industry: short industry label\n")
	return b.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
