//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/sells-group/leadflow/internal/model"
)

func newContainerPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("leadflow"),
		tcpostgres.WithUsername("leadflow"),
		tcpostgres.WithPassword("leadflow"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(2*time.Minute),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	st, err := NewPostgres(ctx, dsn, &PoolConfig{MaxConns: 4, MinConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(ctx))
	return st
}

func TestPostgresIntegration_LeadLifecycle(t *testing.T) {
	st := newContainerPostgresStore(t)
	ctx := context.Background()

	l := &model.Lead{
		Email:       "jane@acme.com",
		FirstName:   "Jane",
		CompanyName: "Acme",
		Source:      model.SourceWebhook,
		Status:      model.StatusIngested,
	}
	require.NoError(t, st.InsertLead(ctx, l))

	err := st.InsertLead(ctx, &model.Lead{Email: "JANE@acme.com", Status: model.StatusIngested})
	assert.True(t, eris.Is(err, ErrDuplicate))

	require.NoError(t, st.UpdateLead(ctx, l.ID, model.LeadPatch{
		Status: model.Ptr(model.StatusScored),
		Score:  model.Ptr(42),
		Tier:   model.Ptr(model.TierStandard),
	}))

	got, err := st.FindLeadByEmail(ctx, "jane@acme.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.StatusScored, got.Status)
	require.NotNil(t, got.Score)
	assert.Equal(t, 42, *got.Score)

	counts, err := st.CountLeadsBy(ctx, GroupTier)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"standard": 1}, counts)

	_, err = st.AppendLog(ctx, model.LogIngestion, map[string]int{"inserted": 1})
	require.NoError(t, err)
	logs, err := st.ListLogs(ctx, LogFilter{Type: model.LogIngestion})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.JSONEq(t, `{"inserted":1}`, string(logs[0].Data))
}
