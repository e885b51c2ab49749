package sourcing

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadflow/internal/ingest"
	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/internal/store"
	"github.com/sells-group/leadflow/pkg/apify"
)

type mockApify struct{ mock.Mock }

func (m *mockApify) RunActor(ctx context.Context, actorID string, input any) (*apify.Run, error) {
	args := m.Called(ctx, actorID, input)
	if v := args.Get(0); v != nil {
		return v.(*apify.Run), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockApify) DatasetItems(ctx context.Context, datasetID string, limit int) ([]apify.Item, error) {
	args := m.Called(ctx, datasetID, limit)
	if v := args.Get(0); v != nil {
		return v.([]apify.Item), args.Error(1)
	}
	return nil, args.Error(1)
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "leads.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	return st
}

func TestToRawLeads(t *testing.T) {
	t.Parallel()
	raws := ToRawLeads([]apify.Item{
		{"firstName": "Ana", "lastName": "Ruiz", "companyName": "Ruiz Wealth", "website": "https://ruizwealth.com", "position": "Founder"},
		{"nested": map[string]any{"a": 1}},
		{"email": "ops@acme.com", "linkedinUrl": "https://linkedin.com/in/ops"},
	})
	require.Len(t, raws, 2)
	require.NotNil(t, raws[0].CompanyDomain)
	assert.Equal(t, "https://ruizwealth.com", *raws[0].CompanyDomain)
	assert.Equal(t, "Founder", *raws[0].RoleTitle)
	assert.Equal(t, "ops@acme.com", *raws[1].Email)
	assert.Equal(t, "https://linkedin.com/in/ops", *raws[1].LinkedInURL)
}

func TestRun(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)
	client := &mockApify{}
	client.On("RunActor", ctx, "acme~advisors", map[string]any{"query": "ria"}).
		Return(&apify.Run{ID: "run1", Status: "SUCCEEDED", DefaultDatasetID: "ds1"}, nil)
	client.On("DatasetItems", ctx, "ds1", 1000).Return([]apify.Item{
		{"email": "ana@ruizwealth.com", "firstName": "Ana", "companyName": "Ruiz Wealth", "domain": "ruizwealth.com"},
		{"email": "bo@ruizwealth.com", "firstName": "Bo", "companyName": "Ruiz Wealth", "domain": "ruizwealth.com"},
		{"firstName": "Nobody"},
	}, nil)

	res, err := New(client, ingest.NewService(st), st).Run(ctx, Request{
		ActorID:     "acme~advisors",
		Input:       map[string]any{"query": "ria"},
		CampaignTag: "ria-q4",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Items)
	assert.Equal(t, 1, res.Ingested)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, 1, res.Invalid)
	assert.Equal(t, "run1", res.RunID)

	lead, err := st.FindLeadByEmail(ctx, "ana@ruizwealth.com")
	require.NoError(t, err)
	require.NotNil(t, lead)
	assert.Equal(t, model.SourceScraper, lead.Source)
	assert.Equal(t, "ria-q4", lead.CampaignTag)

	logs, err := st.ListLogs(ctx, store.LogFilter{Type: model.LogScraperRun})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Contains(t, string(logs[0].Data), `"run_id":"run1"`)
	client.AssertExpectations(t)
}

func TestRun_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("missing actor", func(t *testing.T) {
		t.Parallel()
		_, err := New(&mockApify{}, nil, nil).Run(ctx, Request{})
		require.Error(t, err)
	})

	t.Run("run fails", func(t *testing.T) {
		t.Parallel()
		client := &mockApify{}
		client.On("RunActor", ctx, "a", mock.Anything).Return(nil, errors.New("apify: unexpected status 402"))
		_, err := New(client, nil, nil).Run(ctx, Request{ActorID: "a"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sourcing: run actor")
	})

	t.Run("run not succeeded", func(t *testing.T) {
		t.Parallel()
		client := &mockApify{}
		client.On("RunActor", ctx, "a", mock.Anything).Return(&apify.Run{ID: "r", Status: "TIMED-OUT"}, nil)
		_, err := New(client, nil, nil).Run(ctx, Request{ActorID: "a"})
		require.ErrorIs(t, err, ErrRunFailed)
		client.AssertNotCalled(t, "DatasetItems", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestRun_EmptyDataset(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)
	client := &mockApify{}
	client.On("RunActor", ctx, "a", mock.Anything).Return(&apify.Run{ID: "r", Status: "SUCCEEDED", DefaultDatasetID: "d"}, nil)
	client.On("DatasetItems", ctx, "d", 50).Return([]apify.Item{}, nil)

	res, err := New(client, ingest.NewService(st), st).Run(ctx, Request{ActorID: "a", Limit: 50})
	require.NoError(t, err)
	assert.Zero(t, res.Ingested)
	assert.Zero(t, res.Items)
}
