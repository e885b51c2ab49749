package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/leadflow/internal/model"
)

func fullProfile() model.Lead {
	return model.Lead{
		Email:         "a@b.com",
		LinkedInURL:   "x",
		RoleTitle:     "CEO",
		CompanyDomain: "b.com",
	}
}

func TestScore_BaseOnlyIsStandard(t *testing.T) {
	t.Parallel()

	r := Score(fullProfile())
	assert.Equal(t, 35, r.Score)
	assert.Equal(t, 35, r.Base)
	assert.Zero(t, r.Signal)
	assert.Equal(t, model.TierStandard, r.Tier)
}

func TestScore_NoEmailIsManualReview(t *testing.T) {
	t.Parallel()

	l := fullProfile()
	l.Email = ""
	l.SignalType = model.SignalFundingGrowth
	l.SignalStrength = model.StrengthHot

	r := Score(l)
	assert.Equal(t, 70, r.Score) // 25 base + 45 signal
	assert.Equal(t, model.TierManualReview, r.Tier)
}

func TestScore_Priority(t *testing.T) {
	t.Parallel()

	l := fullProfile()
	l.SignalType = model.SignalHiringComms
	l.SignalStrength = model.StrengthWarm

	r := Score(l)
	assert.Equal(t, 65, r.Score)
	assert.Equal(t, model.TierPriority, r.Tier)
}

func TestScore_Nurture(t *testing.T) {
	t.Parallel()

	r := Score(model.Lead{Email: "a@b.com"})
	assert.Equal(t, 10, r.Score)
	assert.Equal(t, model.TierNurture, r.Tier)
}

func TestScore_Rounding(t *testing.T) {
	t.Parallel()

	// industry_event cold = 7.5, 10 + 7.5 rounds half away from zero.
	l := model.Lead{Email: "a@b.com", SignalType: model.SignalIndustryEvent, SignalStrength: model.StrengthCold}
	assert.Equal(t, 18, Score(l).Score)
}

func TestScore_Deterministic(t *testing.T) {
	t.Parallel()

	l := fullProfile()
	l.SignalType = model.SignalCompetitorPR
	l.SignalStrength = model.StrengthHot
	first := Score(l)
	for range 50 {
		assert.Equal(t, first, Score(l))
	}
}

func TestSignalScore_StrengthMonotonic(t *testing.T) {
	t.Parallel()

	for _, st := range model.SignalTypes {
		hot := SignalScore(st, model.StrengthHot)
		warm := SignalScore(st, model.StrengthWarm)
		cold := SignalScore(st, model.StrengthCold)
		assert.GreaterOrEqual(t, hot, warm, st)
		assert.GreaterOrEqual(t, warm, cold, st)
	}
}

func TestSignalScore_Defaults(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 30.0, SignalScore(model.SignalFundingGrowth, model.Strength("unknown")))
	assert.Equal(t, 0.0, SignalScore(model.SignalType("mystery"), model.StrengthHot))
	assert.Equal(t, 0.0, SignalScore("", ""))
}

func TestIsLeadership(t *testing.T) {
	t.Parallel()

	for _, title := range []string{"CEO", "Co-Founder", "Managing Director", "VP Sales", "head of growth", "Owner"} {
		assert.True(t, IsLeadership(title), title)
	}
	for _, title := range []string{"", "Engineer", "Account Executive", "directory admin"} {
		assert.False(t, IsLeadership(title), title)
	}
}
