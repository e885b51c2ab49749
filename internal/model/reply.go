package model

import "time"

// Classification is the oracle's reading of an inbound reply.
type Classification string

const (
	ClassInterested    Classification = "interested"
	ClassNotInterested Classification = "not_interested"
	ClassWhyReachOut   Classification = "why_reach_out"
	ClassMoreInfo      Classification = "more_info"
	ClassCostQuestion  Classification = "cost_question"
	ClassQuestionOther Classification = "question_other"
	ClassReferral      Classification = "referral"
	ClassReEngage      Classification = "re_engage"
	ClassOOO           Classification = "ooo"
	ClassBounce        Classification = "bounce"
	ClassOther         Classification = "other"
)

// Classifications lists every valid classification.
var Classifications = []Classification{
	ClassInterested, ClassNotInterested, ClassWhyReachOut, ClassMoreInfo,
	ClassCostQuestion, ClassQuestionOther, ClassReferral, ClassReEngage,
	ClassOOO, ClassBounce, ClassOther,
}

// ParseClassification returns the matching Classification or ClassOther.
func ParseClassification(s string) Classification {
	for _, c := range Classifications {
		if string(c) == s {
			return c
		}
	}
	return ClassOther
}

// Sentiment is the tone of a reply.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// ParseSentiment returns the matching Sentiment or SentimentNeutral.
func ParseSentiment(s string) Sentiment {
	switch st := Sentiment(s); st {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return st
	default:
		return SentimentNeutral
	}
}

// Macro is a canned response template suggested for a reply.
type Macro string

const (
	MacroCallTime     Macro = "CALL_TIME"
	MacroWhyReachOut  Macro = "WHY_REACH_OUT"
	MacroMoreInfo     Macro = "MORE_INFO"
	MacroCostQuestion Macro = "COST_QUESTION"
	MacroReEngage     Macro = "RE_ENGAGE"
	MacroCaseStudy    Macro = "CASE_STUDY"
	MacroPostBooking  Macro = "POST_BOOKING"
	MacroNone         Macro = "NONE"
)

// Macros lists every valid macro.
var Macros = []Macro{
	MacroCallTime, MacroWhyReachOut, MacroMoreInfo, MacroCostQuestion,
	MacroReEngage, MacroCaseStudy, MacroPostBooking, MacroNone,
}

// ParseMacro returns the matching Macro or MacroNone.
func ParseMacro(s string) Macro {
	for _, m := range Macros {
		if string(m) == s {
			return m
		}
	}
	return MacroNone
}

// Reply is an inbound message tied to a lead by email lookup.
type Reply struct {
	ID              string         `json:"id"`
	LeadID          *string        `json:"lead_id"`
	Email           string         `json:"email"`
	ReplyText       string         `json:"reply_text"`
	CampaignID      string         `json:"campaign_id"`
	Classification  Classification `json:"classification"`
	Sentiment       Sentiment      `json:"sentiment"`
	Summary         string         `json:"summary"`
	SuggestedMacro  Macro          `json:"suggested_macro"`
	SuggestedAction string         `json:"suggested_action"`
	DraftResponse   string         `json:"draft_response"`
	Handled         bool           `json:"handled"`
	CreatedAt       time.Time      `json:"created_at"`
}
