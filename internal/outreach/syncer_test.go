package outreach

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadflow/internal/config"
	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/internal/resilience"
)

type mockPlatform struct{ mock.Mock }

func (m *mockPlatform) AddToCampaign(ctx context.Context, campaignID string, leads []model.Lead) (*AddResult, error) {
	args := m.Called(ctx, campaignID, leads)
	if v := args.Get(0); v != nil {
		return v.(*AddResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockPlatform) RemoveLeads(ctx context.Context, emails []string, campaignID string) (int, error) {
	args := m.Called(ctx, emails, campaignID)
	return args.Int(0), args.Error(1)
}

func (m *mockPlatform) ListCampaigns(ctx context.Context) ([]Campaign, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.([]Campaign), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockPlatform) ListCampaignLeads(ctx context.Context, campaignID string, q LeadQuery) ([]CampaignLead, error) {
	args := m.Called(ctx, campaignID, q)
	if v := args.Get(0); v != nil {
		return v.([]CampaignLead), args.Error(1)
	}
	return nil, args.Error(1)
}

func testConfig() config.OutreachConfig {
	return config.OutreachConfig{
		Campaigns: map[string]string{
			"priority": "camp-p",
			"standard": config.PlaceholderCampaign,
		},
		BatchSize:  2,
		MaxRetries: 3,
	}
}

func leads(n int) []model.Lead {
	out := make([]model.Lead, n)
	for i := range out {
		out[i] = model.Lead{ID: fmt.Sprint(i), Email: fmt.Sprintf("l%d@x.com", i)}
	}
	return out
}

func rateLimited() error {
	return resilience.NewTransientError(errors.New("slow down"), 429)
}

func TestPush_SkipsUnconfiguredTier(t *testing.T) {
	t.Parallel()
	p := &mockPlatform{}
	s := New(p, testConfig())

	for _, tier := range []model.Tier{model.TierStandard, model.TierNurture} {
		res, err := s.Push(context.Background(), tier, leads(3))
		require.NoError(t, err)
		assert.True(t, res.Skipped)
		assert.Equal(t, string(tier)+": skipped", res.String())
	}
	p.AssertNotCalled(t, "AddToCampaign", mock.Anything, mock.Anything, mock.Anything)
}

func TestPush_BatchesAndDropsNoEmail(t *testing.T) {
	t.Parallel()
	in := leads(5)
	in[2].Email = ""

	p := &mockPlatform{}
	p.On("AddToCampaign", mock.Anything, "camp-p", mock.MatchedBy(func(b []model.Lead) bool { return len(b) == 2 })).
		Return(&AddResult{Uploaded: 2}, nil).Twice()

	res, err := New(p, testConfig()).Push(context.Background(), model.TierPriority, in)
	require.NoError(t, err)
	assert.Equal(t, "camp-p", res.CampaignID)
	assert.Equal(t, 2, res.Batches)
	assert.Equal(t, 4, res.Uploaded)
	assert.Empty(t, res.Failed)
	p.AssertExpectations(t)
}

func TestPush_RetriesRateLimit(t *testing.T) {
	t.Parallel()
	p := &mockPlatform{}
	p.On("AddToCampaign", mock.Anything, "camp-p", mock.Anything).Return(nil, rateLimited()).Twice()
	p.On("AddToCampaign", mock.Anything, "camp-p", mock.Anything).Return(&AddResult{Uploaded: 1}, nil).Once()

	res, err := New(p, testConfig()).Push(context.Background(), model.TierPriority, leads(1))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Uploaded)
	p.AssertNumberOfCalls(t, "AddToCampaign", 3)
}

func TestPush_ExhaustedRetriesFailBatchOnly(t *testing.T) {
	t.Parallel()
	in := leads(4)
	p := &mockPlatform{}
	p.On("AddToCampaign", mock.Anything, "camp-p", in[:2]).Return(nil, rateLimited())
	p.On("AddToCampaign", mock.Anything, "camp-p", in[2:]).Return(&AddResult{Uploaded: 2}, nil)

	res, err := New(p, testConfig()).Push(context.Background(), model.TierPriority, in)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPushFailed)
	assert.Contains(t, err.Error(), "1 of 2 batches failed")
	assert.Equal(t, 2, res.Uploaded)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, BatchFailure{Index: 0, Size: 2, Error: "slow down"}, res.Failed[0])
	// three attempts on the first batch, one on the second
	p.AssertNumberOfCalls(t, "AddToCampaign", 4)
}

func TestPush_PermanentErrorNotRetried(t *testing.T) {
	t.Parallel()
	p := &mockPlatform{}
	p.On("AddToCampaign", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &resilience.HTTPError{Service: "instantly", StatusCode: 400, Body: "bad"})

	_, err := New(p, testConfig()).Push(context.Background(), model.TierPriority, leads(1))
	require.Error(t, err)
	p.AssertNumberOfCalls(t, "AddToCampaign", 1)
}

func TestPush_BreakerOpens(t *testing.T) {
	t.Parallel()
	p := &mockPlatform{}
	p.On("AddToCampaign", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("down"))
	cb := resilience.NewCircuitBreaker("instantly", resilience.CircuitBreakerConfig{FailureThreshold: 1})

	res, err := New(p, testConfig(), WithBreaker(cb)).Push(context.Background(), model.TierPriority, leads(4))
	require.Error(t, err)
	require.Len(t, res.Failed, 2)
	assert.Contains(t, res.Failed[1].Error, "circuit breaker is open")
	p.AssertNumberOfCalls(t, "AddToCampaign", 1)
}

func TestRemove(t *testing.T) {
	t.Parallel()
	p := &mockPlatform{}
	p.On("RemoveLeads", mock.Anything, []string{"a@x.com"}, "camp-p").Return(0, rateLimited()).Once()
	p.On("RemoveLeads", mock.Anything, []string{"a@x.com"}, "camp-p").Return(1, nil).Once()

	s := New(p, testConfig())
	n, err := s.Remove(context.Background(), []string{"a@x.com"}, "camp-p")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.Remove(context.Background(), nil, "camp-p")
	require.NoError(t, err)
	assert.Zero(t, n)
	p.AssertNumberOfCalls(t, "RemoveLeads", 2)
}

func TestRemove_Error(t *testing.T) {
	t.Parallel()
	p := &mockPlatform{}
	p.On("RemoveLeads", mock.Anything, mock.Anything, "").Return(0, errors.New("boom"))

	_, err := New(p, testConfig()).Remove(context.Background(), []string{"a@x.com"}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outreach: remove leads")
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()
	s := New(nil, config.OutreachConfig{})
	assert.IsType(t, NopPlatform{}, s.Platform())
	assert.Equal(t, 100, s.cfg.BatchSize)
	assert.Equal(t, 3, s.cfg.MaxRetries)
	assert.Empty(t, s.CampaignFor(model.TierPriority))
}
