package notion

import (
	"context"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestQueryAll_SinglePage(t *testing.T) {
	t.Parallel()
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "db-1", mock.AnythingOfType("*notionapi.DatabaseQueryRequest")).
		Return(&notionapi.DatabaseQueryResponse{
			Results: []notionapi.Page{{ID: "p1"}, {ID: "p2"}},
		}, nil).Once()

	pages, err := QueryAll(ctx, mc, "db-1", nil)
	require.NoError(t, err)
	assert.Len(t, pages, 2)
	mc.AssertExpectations(t)
}

func TestQueryAll_MultiPage(t *testing.T) {
	t.Parallel()
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "db-1", mock.MatchedBy(func(req *notionapi.DatabaseQueryRequest) bool {
		return req.StartCursor == ""
	})).Return(&notionapi.DatabaseQueryResponse{
		Results:    []notionapi.Page{{ID: "p1"}},
		HasMore:    true,
		NextCursor: notionapi.Cursor("cursor-abc"),
	}, nil).Once()

	mc.On("QueryDatabase", ctx, "db-1", mock.MatchedBy(func(req *notionapi.DatabaseQueryRequest) bool {
		return req.StartCursor == notionapi.Cursor("cursor-abc")
	})).Return(&notionapi.DatabaseQueryResponse{
		Results: []notionapi.Page{{ID: "p2"}},
	}, nil).Once()

	pages, err := QueryAll(ctx, mc, "db-1", nil)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, notionapi.ObjectID("p1"), pages[0].ID)
	assert.Equal(t, notionapi.ObjectID("p2"), pages[1].ID)
	mc.AssertExpectations(t)
}

func TestQueryAll_Error(t *testing.T) {
	t.Parallel()
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "db-1", mock.Anything).Return(nil, assert.AnError)

	_, err := QueryAll(ctx, mc, "db-1", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notion: query all")
}

func TestQueryQueuedLeads_FiltersOnStatus(t *testing.T) {
	t.Parallel()
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "leads-db", mock.MatchedBy(func(req *notionapi.DatabaseQueryRequest) bool {
		pf, ok := req.Filter.(notionapi.PropertyFilter)
		return ok && pf.Property == "Status" && pf.Status != nil && pf.Status.Equals == StatusQueued
	})).Return(&notionapi.DatabaseQueryResponse{
		Results: []notionapi.Page{{ID: "q1"}},
	}, nil).Once()

	pages, err := QueryQueuedLeads(ctx, mc, "leads-db")
	require.NoError(t, err)
	assert.Len(t, pages, 1)
	mc.AssertExpectations(t)
}

func TestMarkStatus(t *testing.T) {
	t.Parallel()
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("UpdatePage", ctx, "page-1", mock.MatchedBy(func(req *notionapi.PageUpdateRequest) bool {
		st, ok := req.Properties["Status"].(notionapi.StatusProperty)
		if !ok || st.Status.Name != StatusImported {
			return false
		}
		id, ok := req.Properties["Lead ID"].(notionapi.RichTextProperty)
		return ok && len(id.RichText) == 1 && id.RichText[0].Text.Content == "lead-9"
	})).Return(&notionapi.Page{ID: "page-1"}, nil).Once()

	require.NoError(t, MarkStatus(ctx, mc, "page-1", StatusImported, "lead-9"))
	mc.AssertExpectations(t)
}

func TestMarkStatus_Error(t *testing.T) {
	t.Parallel()
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("UpdatePage", ctx, "page-1", mock.MatchedBy(func(req *notionapi.PageUpdateRequest) bool {
		_, hasID := req.Properties["Lead ID"]
		return !hasID
	})).Return(nil, assert.AnError)

	err := MarkStatus(ctx, mc, "page-1", StatusRejected, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Rejected")
}

func TestNewClient(t *testing.T) {
	t.Parallel()
	assert.NotNil(t, NewClient("secret", WithRateLimit(10)))
	assert.NotNil(t, NewClient("secret", WithRateLimit(0)))
}
