package ingest

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadflow/internal/dedup"
	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/pkg/notion"
)

// ImportNotion ingests every Queued page of the Notion lead database with
// source notion. Each page is then marked Imported with its lead ID, or
// Rejected when the record was invalid. A failed status write is logged and
// leaves the page Queued for the next run; the dedup guard absorbs the
// repeat.
func (s *Service) ImportNotion(ctx context.Context, client notion.Client, dbID, campaignTag string) (*Result, error) {
	pages, err := notion.QueryQueuedLeads(ctx, client, dbID)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: query notion")
	}
	if len(pages) == 0 {
		return nil, ErrNoLeads
	}

	raws := make([]model.RawLead, len(pages))
	for i, p := range pages {
		raws[i] = model.RawLeadFromStrings(notion.PageFields(p))
	}

	res, err := s.Ingest(ctx, raws, model.SourceNotion, campaignTag)
	if err != nil {
		return nil, err
	}

	for i, rec := range res.Records {
		status := notion.StatusImported
		if rec.Decision == dedup.Invalid.String() {
			status = notion.StatusRejected
		}
		pageID := string(pages[i].ID)
		if err := notion.MarkStatus(ctx, client, pageID, status, rec.LeadID); err != nil {
			s.log.Warn("ingest: mark notion page failed", zap.String("page_id", pageID), zap.Error(err))
		}
	}
	return res, nil
}
