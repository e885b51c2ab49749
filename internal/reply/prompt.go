package reply

import (
	"fmt"
	"strings"

	"github.com/sells-group/leadflow/internal/model"
)

// system is sent as a cacheable block on every classification call.
const system = `You triage replies to B2B cold outreach for a sales team. Classify the reply, judge its sentiment, summarize it in one sentence, pick the best canned response macro, suggest the next action and draft a short, friendly response. Respond with a JSON object only, no prose and no code fences.`

// System returns the classifier's system prompt.
func System() string { return system }

// answer is the JSON object the oracle is asked for.
type answer struct {
	Classification  string `json:"classification"`
	Sentiment       string `json:"sentiment"`
	Summary         string `json:"summary"`
	SuggestedMacro  string `json:"suggested_macro"`
	SuggestedAction string `json:"suggested_action"`
	DraftResponse   string `json:"draft_response"`
}

func fallbackAnswer() answer {
	return answer{
		Classification:  string(model.ClassOther),
		Sentiment:       string(model.SentimentNeutral),
		Summary:         "Classification failed",
		SuggestedMacro:  string(model.MacroNone),
		SuggestedAction: "Review manually",
	}
}

// replyContext describes who replied, preferring the stored lead.
type replyContext struct {
	Name    string
	Company string
	Role    string
	Signal  string
}

func buildPrompt(text string, rc replyContext) string {
	classes := make([]string, len(model.Classifications))
	for i, c := range model.Classifications {
		classes[i] = string(c)
	}
	macros := make([]string, len(model.Macros))
	for i, m := range model.Macros {
		macros[i] = string(m)
	}

	var b strings.Builder
	if rc.Name != "" {
		fmt.Fprintf(&b, "From: %s\n", rc.Name)
	}
	fmt.Fprintf(&b, "Company: %s\n", orUnknown(rc.Company))
	if rc.Role != "" {
		fmt.Fprintf(&b, "Role: %s\n", rc.Role)
	}
	if rc.Signal != "" {
		fmt.Fprintf(&b, "Outreach angle: %s\n", rc.Signal)
	}
	fmt.Fprintf(&b, "\n<reply>\n%s\n</reply>\n", strings.TrimSpace(text))
	b.WriteString("\nReturn JSON with these keys:\n")
	fmt.Fprintf(&b, "- classification: one of %s\n", strings.Join(classes, ", "))
	b.WriteString("- sentiment: positive, neutral or negative\n")
	b.WriteString("- summary: one sentence\n")
	fmt.Fprintf(&b, "- suggested_macro: one of %s\n", strings.Join(macros, ", "))
	b.WriteString("- suggested_action: the next step for the rep\n")
	b.WriteString("- draft_response: a reply of 50 to 90 words, or empty for ooo and bounce\n")
	return b.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
