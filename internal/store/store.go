// Package store persists leads, replies and audit log entries.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadflow/internal/model"
)

var (
	// ErrNotFound is returned when a lookup by ID matches nothing.
	ErrNotFound = eris.New("store: not found")
	// ErrDuplicate is returned when an insert collides with the unique email index.
	ErrDuplicate = eris.New("store: duplicate")
)

// LeadFilter specifies equality filters and pagination for lead queries.
// Results are ordered by creation time, newest first unless Oldest is set.
type LeadFilter struct {
	Status      model.LeadStatus `json:"status,omitempty"`
	Tier        model.Tier       `json:"tier,omitempty"`
	Email       string           `json:"email,omitempty"`
	CompanyName string           `json:"company_name,omitempty"`
	Source      model.Source     `json:"source,omitempty"`
	Oldest      bool             `json:"oldest,omitempty"`
	Limit       int              `json:"limit,omitempty"`
	Offset      int              `json:"offset,omitempty"`
}

// ReplyFilter specifies criteria for listing replies.
type ReplyFilter struct {
	Classification model.Classification `json:"classification,omitempty"`
	Email          string               `json:"email,omitempty"`
	Handled        *bool                `json:"handled,omitempty"`
	Limit          int                  `json:"limit,omitempty"`
	Offset         int                  `json:"offset,omitempty"`
}

// LogFilter specifies criteria for listing audit entries.
type LogFilter struct {
	Type  model.LogType `json:"type,omitempty"`
	Limit int           `json:"limit,omitempty"`
}

// GroupColumn is a lead column that CountLeadsBy may aggregate on.
type GroupColumn string

const (
	GroupStatus     GroupColumn = "status"
	GroupTier       GroupColumn = "tier"
	GroupSignalType GroupColumn = "signal_type"
	GroupSource     GroupColumn = "source"
)

func (c GroupColumn) valid() bool {
	switch c {
	case GroupStatus, GroupTier, GroupSignalType, GroupSource:
		return true
	}
	return false
}

// Store defines the persistence interface for the lead pipeline.
type Store interface {
	// Leads
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	FindLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error)
	CountLeads(ctx context.Context, filter LeadFilter) (int, error)
	CountLeadsBy(ctx context.Context, column GroupColumn) (map[string]int, error)
	// FindLeadByEmail returns nil, nil when no lead has the email.
	FindLeadByEmail(ctx context.Context, email string) (*model.Lead, error)
	InsertLead(ctx context.Context, lead *model.Lead) error
	UpdateLead(ctx context.Context, id string, patch model.LeadPatch) error

	// Replies
	InsertReply(ctx context.Context, reply *model.Reply) error
	GetReply(ctx context.Context, id string) (*model.Reply, error)
	ListReplies(ctx context.Context, filter ReplyFilter) ([]model.Reply, error)
	CountRepliesBy(ctx context.Context) (map[string]int, error)
	SetReplyHandled(ctx context.Context, id string, handled bool) error

	// Audit log
	AppendLog(ctx context.Context, typ model.LogType, data any) (*model.LogEntry, error)
	ListLogs(ctx context.Context, filter LogFilter) ([]model.LogEntry, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}
