// Package scoring computes a lead's score and outreach tier. It performs no I/O.
package scoring

import (
	"math"
	"regexp"

	"github.com/sells-group/leadflow/internal/model"
)

// Base score components.
const (
	EmailPoints      = 10
	LinkedInPoints   = 5
	LeadershipPoints = 15
	DomainPoints     = 5
)

// Tier thresholds.
const (
	PriorityThreshold = 60
	StandardThreshold = 30
)

var leadershipRe = regexp.MustCompile(`(?i)\b(CEO|CFO|CTO|COO|CMO|CRO|Chief|President|Founder|Owner|Managing Director|VP|Vice President|Director|Head of)\b`)

// SignalValues is the base value of each signal type before the strength
// multiplier. Types not listed score zero.
var SignalValues = map[model.SignalType]float64{
	model.SignalFundingGrowth:    30,
	model.SignalHiringComms:      30,
	model.SignalCompetitorPR:     25,
	model.SignalLeadershipChange: 25,
	model.SignalProductLaunch:    20,
	model.SignalNegativePress:    20,
	model.SignalActiveAdSpend:    20,
	model.SignalIndustryEvent:    15,
	model.SignalContentGap:       10,
	model.SignalNone:             0,
}

// StrengthMultipliers scales a signal value. Unknown strengths use 1.0.
var StrengthMultipliers = map[model.Strength]float64{
	model.StrengthHot:  1.5,
	model.StrengthWarm: 1.0,
	model.StrengthCold: 0.5,
}

// Result is the scoring outcome for one lead.
type Result struct {
	Score  int        `json:"score"`
	Tier   model.Tier `json:"tier"`
	Base   int        `json:"base"`
	Signal float64    `json:"signal"`
}

// Score computes the score and tier for a lead merged with its enrichment
// outputs. Missing fields contribute nothing.
func Score(lead model.Lead) Result {
	base := BaseScore(lead)
	signal := SignalScore(lead.SignalType, lead.SignalStrength)
	total := int(math.Round(float64(base) + signal))

	return Result{
		Score:  total,
		Tier:   TierFor(total, lead.HasEmail()),
		Base:   base,
		Signal: signal,
	}
}

// BaseScore sums the profile completeness components.
func BaseScore(lead model.Lead) int {
	base := 0
	if lead.Email != "" {
		base += EmailPoints
	}
	if lead.LinkedInURL != "" {
		base += LinkedInPoints
	}
	if IsLeadership(lead.RoleTitle) {
		base += LeadershipPoints
	}
	if lead.CompanyDomain != "" {
		base += DomainPoints
	}
	return base
}

// IsLeadership reports whether a title reads as C-suite or leadership.
func IsLeadership(title string) bool {
	return title != "" && leadershipRe.MatchString(title)
}

// SignalScore is the signal value scaled by its strength.
func SignalScore(st model.SignalType, strength model.Strength) float64 {
	value := SignalValues[st]
	mult, ok := StrengthMultipliers[strength]
	if !ok {
		mult = 1.0
	}
	return value * mult
}

// TierFor routes a total score. A lead without an email always goes to
// manual review.
func TierFor(total int, hasEmail bool) model.Tier {
	switch {
	case !hasEmail:
		return model.TierManualReview
	case total >= PriorityThreshold:
		return model.TierPriority
	case total >= StandardThreshold:
		return model.TierStandard
	default:
		return model.TierNurture
	}
}
