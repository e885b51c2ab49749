package ingest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadflow/internal/dedup"
	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "leads.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	return st
}

func raw(fields map[string]string) model.RawLead {
	return model.RawLeadFromStrings(fields)
}

func TestIngest_Counts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)
	svc := NewService(st)

	res, err := svc.Ingest(ctx, []model.RawLead{
		raw(map[string]string{"email": "Jane@Acme.com", "firstName": "Jane", "company": "Acme, Inc."}),
		raw(map[string]string{"email": "jane@acme.com ", "first_name": "Janet"}),
		raw(map[string]string{"first_name": "Bob", "company_name": "Bobco"}),
		raw(map[string]string{"last_name": "Nobody"}),
	}, model.SourceCSV, "q3")
	require.NoError(t, err)

	assert.Equal(t, 2, res.Ingested)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, 1, res.Invalid)
	assert.Len(t, res.LeadIDs, 2)
	require.Len(t, res.Records, 4)
	assert.Equal(t, "accept", res.Records[0].Decision)
	assert.Equal(t, "duplicate", res.Records[1].Decision)
	assert.Equal(t, res.Records[0].LeadID, res.Records[1].LeadID)
	assert.Equal(t, "invalid", res.Records[3].Decision)

	lead, err := st.FindLeadByEmail(ctx, "jane@acme.com")
	require.NoError(t, err)
	require.NotNil(t, lead)
	assert.Equal(t, "Acme", lead.CompanyName)
	assert.Equal(t, model.SourceCSV, lead.Source)
	assert.Equal(t, "q3", lead.CampaignTag)
	assert.Equal(t, model.StatusIngested, lead.Status)

	logs, err := st.ListLogs(ctx, store.LogFilter{Type: model.LogIngestion})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Contains(t, string(logs[0].Data), `"ingested":2`)
}

func TestIngest_Idempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)
	svc := NewService(st)
	batch := []model.RawLead{raw(map[string]string{"email": "a@b.co", "first_name": "A"})}

	first, err := svc.Ingest(ctx, batch, "", "")
	require.NoError(t, err)
	second, err := svc.Ingest(ctx, batch, "", "")
	require.NoError(t, err)

	assert.Equal(t, 1, first.Ingested)
	assert.Equal(t, 0, second.Ingested)
	assert.Equal(t, 1, second.Duplicates)

	n, err := st.CountLeads(ctx, store.LeadFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIngest_NoEmailClearsInvalidAddress(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)

	res, err := NewService(st).Ingest(ctx, []model.RawLead{
		raw(map[string]string{"email": "broken", "first_name": "Ann", "company": "Annco"}),
	}, model.SourceManual, "")
	require.NoError(t, err)
	require.Equal(t, 1, res.Ingested)

	lead, err := st.GetLead(ctx, res.LeadIDs[0])
	require.NoError(t, err)
	assert.Empty(t, lead.Email)
}

func TestIngest_FirmCheck(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)
	svc := NewService(st)

	firm := func(first string) model.RawLead {
		return raw(map[string]string{"first_name": first, "company_name": "Ridge Wealth LLC"})
	}
	res, err := svc.Ingest(ctx, []model.RawLead{firm("Ann"), firm("Ben")}, model.SourceScraper, "", dedup.WithFirmCheck())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Ingested)
	assert.Equal(t, 1, res.Duplicates)
}

func TestIngest_Empty(t *testing.T) {
	t.Parallel()
	_, err := NewService(newTestStore(t)).Ingest(context.Background(), nil, "", "")
	assert.ErrorIs(t, err, ErrNoLeads)
}

func TestIngest_Cancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := NewService(newTestStore(t)).Ingest(ctx, []model.RawLead{raw(map[string]string{"email": "a@b.co"})}, "", "")
	require.Error(t, err)
	assert.Zero(t, res.Ingested)
}
