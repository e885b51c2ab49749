package ingest

import (
	"context"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadflow/internal/model"
	notionpkg "github.com/sells-group/leadflow/pkg/notion"
)

type mockNotion struct {
	mock.Mock
}

func (m *mockNotion) QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	args := m.Called(ctx, dbID, req)
	resp, _ := args.Get(0).(*notionapi.DatabaseQueryResponse)
	return resp, args.Error(1)
}

func (m *mockNotion) UpdatePage(ctx context.Context, pageID string, req *notionapi.PageUpdateRequest) (*notionapi.Page, error) {
	args := m.Called(ctx, pageID, req)
	page, _ := args.Get(0).(*notionapi.Page)
	return page, args.Error(1)
}

func notionPage(id string, props notionapi.Properties) notionapi.Page {
	return notionapi.Page{ID: notionapi.ObjectID(id), Properties: props}
}

func statusIs(want string) any {
	return mock.MatchedBy(func(req *notionapi.PageUpdateRequest) bool {
		st, ok := req.Properties["Status"].(notionapi.StatusProperty)
		return ok && st.Status.Name == want
	})
}

func TestImportNotion(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)
	mc := new(mockNotion)

	mc.On("QueryDatabase", ctx, "lead-db", mock.Anything).Return(&notionapi.DatabaseQueryResponse{
		Results: []notionapi.Page{
			notionPage("p1", notionapi.Properties{
				"First Name": &notionapi.RichTextProperty{RichText: []notionapi.RichText{{PlainText: "Jane"}}},
				"Company":    &notionapi.TitleProperty{Title: []notionapi.RichText{{PlainText: "Acme"}}},
				"Email":      &notionapi.EmailProperty{Email: "jane@acme.com"},
			}),
			notionPage("p2", notionapi.Properties{
				"Email": &notionapi.EmailProperty{Email: "junk"},
			}),
		},
	}, nil).Once()
	mc.On("UpdatePage", ctx, "p1", statusIs(notionpkg.StatusImported)).Return(&notionapi.Page{}, nil).Once()
	mc.On("UpdatePage", ctx, "p2", statusIs(notionpkg.StatusRejected)).Return(nil, assert.AnError).Once()

	res, err := NewService(st).ImportNotion(ctx, mc, "lead-db", "notion-q")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Ingested)
	assert.Equal(t, 1, res.Invalid)

	lead, err := st.FindLeadByEmail(ctx, "jane@acme.com")
	require.NoError(t, err)
	require.NotNil(t, lead)
	assert.Equal(t, model.SourceNotion, lead.Source)
	assert.Equal(t, "notion-q", lead.CampaignTag)
	mc.AssertExpectations(t)
}

func TestImportNotion_Empty(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mc := new(mockNotion)
	mc.On("QueryDatabase", ctx, "lead-db", mock.Anything).Return(&notionapi.DatabaseQueryResponse{}, nil)

	_, err := NewService(newTestStore(t)).ImportNotion(ctx, mc, "lead-db", "")
	assert.ErrorIs(t, err, ErrNoLeads)
}
