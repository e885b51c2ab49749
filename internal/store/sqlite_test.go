package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadflow/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testLead(email, company string, created time.Time) *model.Lead {
	return &model.Lead{
		Email:       email,
		FirstName:   "Jane",
		LastName:    "Doe",
		CompanyName: company,
		RoleTitle:   "VP Sales",
		Source:      model.SourceCSV,
		Status:      model.StatusIngested,
		CreatedAt:   created,
	}
}

// --- Leads ---

func TestSQLite_InsertAndGetLead(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	l := testLead("Jane@Acme.com ", "Acme", time.Time{})
	require.NoError(t, st.InsertLead(ctx, l))
	assert.NotEmpty(t, l.ID)
	assert.False(t, l.CreatedAt.IsZero())

	got, err := st.GetLead(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "jane@acme.com", got.Email)
	assert.Equal(t, "Acme", got.CompanyName)
	assert.Equal(t, model.SourceCSV, got.Source)
	assert.Equal(t, model.StatusIngested, got.Status)
	assert.Nil(t, got.Score)
	assert.Nil(t, got.EnrichedAt)
	assert.Nil(t, got.SignalSummary)
	assert.False(t, got.EmailGuessed)
}

func TestSQLite_GetLead_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetLead(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestSQLite_InsertLead_DuplicateEmail(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.InsertLead(ctx, testLead("dup@acme.com", "Acme", time.Time{})))
	err := st.InsertLead(ctx, testLead("DUP@acme.com", "Acme", time.Time{}))
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrDuplicate))

	n, err := st.CountLeads(ctx, LeadFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLite_InsertLead_EmptyEmailsDoNotCollide(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.InsertLead(ctx, testLead("", "Acme", time.Time{})))
	require.NoError(t, st.InsertLead(ctx, testLead("", "Beta", time.Time{})))

	n, err := st.CountLeads(ctx, LeadFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSQLite_FindLeadByEmail(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	l := testLead("find@acme.com", "Acme", time.Time{})
	require.NoError(t, st.InsertLead(ctx, l))

	got, err := st.FindLeadByEmail(ctx, " FIND@acme.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, l.ID, got.ID)

	got, err = st.FindLeadByEmail(ctx, "nobody@acme.com")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = st.FindLeadByEmail(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_FindLeads_FilterAndOrder(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	a := testLead("a@acme.com", "Acme", base)
	b := testLead("b@acme.com", "Acme", base.Add(time.Minute))
	c := testLead("c@beta.com", "Beta", base.Add(2*time.Minute))
	c.Status = model.StatusEnriched
	for _, l := range []*model.Lead{a, b, c} {
		require.NoError(t, st.InsertLead(ctx, l))
	}

	oldest, err := st.FindLeads(ctx, LeadFilter{Status: model.StatusIngested, Oldest: true, Limit: 10})
	require.NoError(t, err)
	require.Len(t, oldest, 2)
	assert.Equal(t, a.ID, oldest[0].ID)
	assert.Equal(t, b.ID, oldest[1].ID)

	newest, err := st.FindLeads(ctx, LeadFilter{})
	require.NoError(t, err)
	require.Len(t, newest, 3)
	assert.Equal(t, c.ID, newest[0].ID)

	limited, err := st.FindLeads(ctx, LeadFilter{Oldest: true, Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, b.ID, limited[0].ID)

	byCompany, err := st.FindLeads(ctx, LeadFilter{CompanyName: "Beta", Source: model.SourceCSV})
	require.NoError(t, err)
	require.Len(t, byCompany, 1)
	assert.Equal(t, c.ID, byCompany[0].ID)
}

func TestSQLite_UpdateLead(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	l := testLead("patch@acme.com", "Acme", time.Time{})
	require.NoError(t, st.InsertLead(ctx, l))

	now := time.Now().UTC().Truncate(time.Second)
	patch := model.LeadPatch{
		Status:         model.Ptr(model.StatusScored),
		SignalType:     model.Ptr(model.SignalHiringComms),
		SignalStrength: model.Ptr(model.StrengthHot),
		SignalSummary:  model.Ptr("Hiring 5 SDRs"),
		EnrichedAt:     &now,
		Score:          model.Ptr(65),
		Tier:           model.Ptr(model.TierPriority),
		EmailGuessed:   model.Ptr(true),
	}
	require.NoError(t, st.UpdateLead(ctx, l.ID, patch))

	got, err := st.GetLead(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusScored, got.Status)
	assert.Equal(t, model.SignalHiringComms, got.SignalType)
	assert.Equal(t, model.StrengthHot, got.SignalStrength)
	require.NotNil(t, got.SignalSummary)
	assert.Equal(t, "Hiring 5 SDRs", *got.SignalSummary)
	require.NotNil(t, got.Score)
	assert.Equal(t, 65, *got.Score)
	assert.Equal(t, model.TierPriority, got.Tier)
	require.NotNil(t, got.EnrichedAt)
	assert.True(t, now.Equal(*got.EnrichedAt))
	assert.True(t, got.EmailGuessed)
	assert.Equal(t, "Acme", got.CompanyName, "untouched fields survive")
}

func TestSQLite_UpdateLead_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.UpdateLead(context.Background(), "missing", model.LeadPatch{Status: model.Ptr(model.StatusDead)})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestSQLite_CountLeadsBy(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a := testLead("a@acme.com", "Acme", time.Time{})
	b := testLead("b@acme.com", "Acme", time.Time{})
	c := testLead("c@acme.com", "Acme", time.Time{})
	a.Tier = model.TierPriority
	b.Tier = model.TierPriority
	for _, l := range []*model.Lead{a, b, c} {
		require.NoError(t, st.InsertLead(ctx, l))
	}

	byTier, err := st.CountLeadsBy(ctx, GroupTier)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"priority": 2}, byTier)

	byStatus, err := st.CountLeadsBy(ctx, GroupStatus)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"ingested": 3}, byStatus)

	_, err = st.CountLeadsBy(ctx, GroupColumn("email; DROP TABLE leads"))
	require.Error(t, err)
}

// --- Replies ---

func TestSQLite_Replies(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	leadID := "lead-1"
	r1 := &model.Reply{
		LeadID:         &leadID,
		Email:          "Jane@Acme.com",
		ReplyText:      "Sounds good, send times",
		Classification: model.ClassInterested,
		Sentiment:      model.SentimentPositive,
		Summary:        "Wants a call",
		SuggestedMacro: model.MacroCallTime,
		CreatedAt:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	r2 := &model.Reply{
		Email:          "ooo@acme.com",
		ReplyText:      "Away until Monday",
		Classification: model.ClassOOO,
		Sentiment:      model.SentimentNeutral,
		SuggestedMacro: model.MacroNone,
		CreatedAt:      time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, st.InsertReply(ctx, r1))
	require.NoError(t, st.InsertReply(ctx, r2))

	got, err := st.GetReply(ctx, r1.ID)
	require.NoError(t, err)
	assert.Equal(t, "jane@acme.com", got.Email)
	require.NotNil(t, got.LeadID)
	assert.Equal(t, leadID, *got.LeadID)
	assert.Equal(t, model.MacroCallTime, got.SuggestedMacro)
	assert.False(t, got.Handled)

	all, err := st.ListReplies(ctx, ReplyFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, r2.ID, all[0].ID)
	assert.Nil(t, all[0].LeadID)

	require.NoError(t, st.SetReplyHandled(ctx, r1.ID, true))
	handled := true
	done, err := st.ListReplies(ctx, ReplyFilter{Handled: &handled})
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, r1.ID, done[0].ID)

	counts, err := st.CountRepliesBy(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"interested": 1, "ooo": 1}, counts)

	err = st.SetReplyHandled(ctx, "missing", true)
	assert.True(t, eris.Is(err, ErrNotFound))

	_, err = st.GetReply(ctx, "missing")
	assert.True(t, eris.Is(err, ErrNotFound))
}

// --- Logs ---

func TestSQLite_Logs(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	e, err := st.AppendLog(ctx, model.LogCleanup, map[string]int{"deleted": 3})
	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)

	_, err = st.AppendLog(ctx, model.LogEnrichment, nil)
	require.NoError(t, err)

	entries, err := st.ListLogs(ctx, LogFilter{Type: model.LogCleanup})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.LogCleanup, entries[0].Type)

	var data map[string]int
	require.NoError(t, json.Unmarshal(entries[0].Data, &data))
	assert.Equal(t, 3, data["deleted"])

	all, err := st.ListLogs(ctx, LogFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSQLite_Ping(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.NoError(t, st.Ping(context.Background()))
}
