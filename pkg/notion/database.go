package notion

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
)

// Lead queue statuses.
const (
	StatusQueued   = "Queued"
	StatusImported = "Imported"
	StatusRejected = "Rejected"
)

// QueryAll fetches every page matching filter, following cursors. The next
// page is requested in the background while the current one is appended.
func QueryAll(ctx context.Context, c Client, dbID string, filter *notionapi.DatabaseQueryRequest) ([]notionapi.Page, error) {
	newReq := func(cursor notionapi.Cursor) *notionapi.DatabaseQueryRequest {
		req := &notionapi.DatabaseQueryRequest{StartCursor: cursor}
		if filter != nil {
			req.Filter = filter.Filter
			req.Sorts = filter.Sorts
			req.PageSize = filter.PageSize
		}
		return req
	}

	type result struct {
		resp *notionapi.DatabaseQueryResponse
		err  error
	}
	fetch := func(cursor notionapi.Cursor) <-chan result {
		ch := make(chan result, 1)
		go func() {
			resp, err := c.QueryDatabase(ctx, dbID, newReq(cursor))
			ch <- result{resp, err}
		}()
		return ch
	}

	var all []notionapi.Page
	next := fetch("")
	for next != nil {
		r := <-next
		if r.err != nil {
			return nil, eris.Wrap(r.err, "notion: query all")
		}
		next = nil
		if r.resp.HasMore {
			next = fetch(r.resp.NextCursor)
		}
		all = append(all, r.resp.Results...)
	}
	return all, nil
}

// QueryQueuedLeads returns every page whose Status is Queued.
func QueryQueuedLeads(ctx context.Context, c Client, dbID string) ([]notionapi.Page, error) {
	filter := &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: "Status",
			Status:   &notionapi.StatusFilterCondition{Equals: StatusQueued},
		},
	}
	pages, err := QueryAll(ctx, c, dbID, filter)
	if err != nil {
		return nil, eris.Wrap(err, "notion: query queued leads")
	}
	return pages, nil
}

// MarkStatus sets a queue page's Status and, when leadID is non-empty, its
// "Lead ID" text property.
func MarkStatus(ctx context.Context, c Client, pageID, status, leadID string) error {
	props := notionapi.Properties{
		"Status": notionapi.StatusProperty{Status: notionapi.Status{Name: status}},
	}
	if leadID != "" {
		props["Lead ID"] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{{Text: &notionapi.Text{Content: leadID}}},
		}
	}
	if _, err := c.UpdatePage(ctx, pageID, &notionapi.PageUpdateRequest{Properties: props}); err != nil {
		return eris.Wrapf(err, "notion: mark page %s %s", pageID, status)
	}
	return nil
}
